// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	md2man "github.com/cpuguy83/go-md2man/v2/md2man"
	"github.com/urfave/cli/v3"

	"github.com/staranto/bomprice/internal/command"
)

// Doc generator. Walks the bomprice command tree and writes, per leaf
// command:
//   - docs/commands/bomprice-<cmd>.md
//   - docs/man/share/man1/bomprice-<cmd>.1 via md2man
//   - docs/tldr/bomprice-<cmd>.md from the command's examples

func main() {
	var (
		repoRoot           string
		writeOnlyIfChanged bool
	)

	flag.StringVar(&repoRoot, "root", ".", "repo root (default current dir)")
	flag.BoolVar(&writeOnlyIfChanged, "only-if-changed", true, "only write files if content changed")
	flag.Parse()

	mdOutDir := filepath.Join(repoRoot, "docs", "commands")
	manOutDir := filepath.Join(repoRoot, "docs", "man", "share", "man1")
	tldrOutDir := filepath.Join(repoRoot, "docs", "tldr")

	for _, dir := range []string{mdOutDir, manOutDir, tldrOutDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fatalf("creating output dir %s: %v", dir, err)
		}
	}

	app, err := command.InitApp(context.Background(), []string{"bomprice"})
	if err != nil {
		fatalf("building command tree: %v", err)
	}

	pages := collect(app.Commands, nil)
	if len(pages) == 0 {
		fatalf("no commands found")
	}

	for _, p := range pages {
		md := renderMarkdown(p)
		if err := writeFileIfChanged(filepath.Join(mdOutDir, "bomprice-"+p.slug()+".md"), []byte(md), writeOnlyIfChanged); err != nil {
			fatalf("writing markdown for %s: %v", p.slug(), err)
		}

		manBytes := md2man.Render([]byte(md))
		if err := writeFileIfChanged(filepath.Join(manOutDir, "bomprice-"+p.slug()+".1"), manBytes, writeOnlyIfChanged); err != nil {
			fatalf("writing man page for %s: %v", p.slug(), err)
		}

		tldr := buildTLDR(p)
		if err := writeFileIfChanged(filepath.Join(tldrOutDir, "bomprice-"+p.slug()+".md"), []byte(tldr), writeOnlyIfChanged); err != nil {
			fatalf("writing TLDR for %s: %v", p.slug(), err)
		}
	}
}

// page is one leaf command and the names of its parents.
type page struct {
	path []string
	cmd  *cli.Command
}

func (p page) slug() string {
	return strings.Join(p.path, "-")
}

func (p page) name() string {
	return "bomprice " + strings.Join(p.path, " ")
}

// collect flattens the command tree into leaf pages.
func collect(cmds []*cli.Command, parents []string) []page {
	var pages []page
	for _, c := range cmds {
		if c.Hidden {
			continue
		}
		path := append(append([]string{}, parents...), c.Name)
		if len(c.Commands) > 0 {
			pages = append(pages, collect(c.Commands, path)...)
			continue
		}
		pages = append(pages, page{path: path, cmd: c})
	}
	return pages
}

func renderMarkdown(p page) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s 1 \"\" \"bomprice\" \"bomprice Manual\"\n\n", strings.ToUpper("bomprice-"+p.slug()))
	b.WriteString("# NAME\n\n")
	fmt.Fprintf(&b, "%s - %s\n\n", p.name(), p.cmd.Usage)

	b.WriteString("# SYNOPSIS\n\n")
	synopsis := p.cmd.UsageText
	if synopsis == "" {
		synopsis = strings.TrimSpace(p.name() + " [options] " + p.cmd.ArgsUsage)
	}
	fmt.Fprintf(&b, "`%s`\n\n", synopsis)

	var opts []string
	for _, f := range p.cmd.Flags {
		if vf, ok := f.(cli.VisibleFlag); ok && !vf.IsVisible() {
			continue
		}
		opts = append(opts, f.String())
	}
	if len(opts) > 0 {
		b.WriteString("# OPTIONS\n\n")
		for _, o := range opts {
			head, usage, _ := strings.Cut(o, "\t")
			fmt.Fprintf(&b, "**%s**\n: %s\n\n", strings.TrimSpace(head), strings.TrimSpace(usage))
		}
	}

	if exs := command.GetExamples(p.cmd); len(exs) > 0 {
		b.WriteString("# EXAMPLES\n\n")
		for _, ex := range exs {
			fmt.Fprintf(&b, "%s:\n\n    %s\n\n", capitalize(ex[1]), ex[0])
		}
	}

	return b.String()
}

func buildTLDR(p page) string {
	var b strings.Builder
	b.WriteString("# bomprice-" + p.slug() + "\n\n")
	b.WriteString("> " + capitalize(p.cmd.Usage) + ".\n")
	b.WriteString("> More information: https://github.com/staranto/bomprice.\n\n")

	exs := command.GetExamples(p.cmd)
	if len(exs) == 0 {
		b.WriteString("- Show help for the command:\n\n")
		b.WriteString("`" + p.name() + " --help`\n")
		return b.String()
	}

	for i, ex := range exs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + capitalize(ex[1]) + ":\n\n")
		b.WriteString("`" + strings.Join(strings.Fields(ex[0]), " ") + "`\n")
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func fatalf(f string, a ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", a...)
	os.Exit(1)
}

func writeFileIfChanged(path string, new []byte, onlyIfChanged bool) error {
	if !onlyIfChanged {
		return os.WriteFile(path, new, 0o644)
	}
	old, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return os.WriteFile(path, new, 0o644)
		}
		return err
	}
	if bytes.Equal(bytes.TrimSpace(old), bytes.TrimSpace(new)) {
		return nil
	}
	return os.WriteFile(path, new, 0o644)
}
