// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v3"
)

func TestCollect(t *testing.T) {
	tree := []*cli.Command{
		{Name: "lookup"},
		{Name: "cache", Commands: []*cli.Command{{Name: "list"}, {Name: "clear"}}},
		{Name: "secret", Hidden: true},
	}

	var slugs []string
	for _, p := range collect(tree, nil) {
		slugs = append(slugs, p.slug())
	}
	assert.Equal(t, []string{"lookup", "cache-list", "cache-clear"}, slugs)
}

func TestBuildTLDR(t *testing.T) {
	p := page{
		path: []string{"lookup"},
		cmd: &cli.Command{
			Name:     "lookup",
			Usage:    "price LCSC part numbers",
			Metadata: map[string]any{"examples": [][2]string{{"bomprice   lookup C1", "price one part"}}},
		},
	}

	got := buildTLDR(p)
	assert.Contains(t, got, "# bomprice-lookup\n")
	assert.Contains(t, got, "> Price LCSC part numbers.\n")
	assert.Contains(t, got, "- Price one part:\n\n`bomprice lookup C1`\n")
}

func TestBuildTLDR_NoExamples(t *testing.T) {
	p := page{path: []string{"cache", "clear"}, cmd: &cli.Command{Name: "clear", Usage: "remove every cached quote"}}
	assert.Contains(t, buildTLDR(p), "`bomprice cache clear --help`")
}

func TestRenderMarkdown(t *testing.T) {
	p := page{
		path: []string{"lookup"},
		cmd: &cli.Command{
			Name:      "lookup",
			Usage:     "price LCSC part numbers",
			UsageText: "bomprice lookup [options] PART...",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "currency", Usage: "currency prices are reported in"},
				&cli.StringFlag{Name: "search-url", Usage: "hidden", Hidden: true},
			},
		},
	}

	got := renderMarkdown(p)
	assert.Contains(t, got, "bomprice lookup - price LCSC part numbers")
	assert.Contains(t, got, "`bomprice lookup [options] PART...`")
	assert.Contains(t, got, "--currency")
	assert.NotContains(t, got, "search-url")
	assert.NotContains(t, got, "# EXAMPLES")
}
