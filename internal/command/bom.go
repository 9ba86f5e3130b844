// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/bomprice/internal/bom"
	"github.com/staranto/bomprice/internal/meta"
	"github.com/staranto/bomprice/internal/netlist"
	"github.com/staranto/bomprice/internal/version"
)

// BomCommandAction is the action handler for the "bom" subcommand. It reads a
// KiCad generic netlist, prices each group of equivalent components and
// writes the BOM CSV, then prints the total.
func BomCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if cmd.Args().Len() != 2 { //nolint:mnd
		return fmt.Errorf("usage: %s", cmd.UsageText)
	}
	in, out := cmd.Args().Get(0), cmd.Args().Get(1)

	n, err := netlist.Load(in)
	if err != nil {
		return err
	}

	store, err := OpenStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore(store)

	resolver, err := NewResolver(cmd, store)
	if err != nil {
		return err
	}

	sum, path, err := bom.WriteFile(ctx, out, n, resolver, bom.Options{
		Generator:   "bomprice " + version.Version,
		Exclusions:  netlist.DefaultExclusions,
		Equivalence: netlist.ByPartNumber,
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	log.Infof("wrote %s with %d lines", path, sum.Lines)
	sum.Report(cmd.Root().Writer)
	return nil
}

// BomCommandBuilder constructs the cli.Command definition for the "bom"
// command.
func BomCommandBuilder(meta meta.Meta) *cli.Command {
	flags := NewCacheFlags("bom")
	flags = append(flags, NewLookupFlags("bom")...)

	return (&CommandBuilder{
		Name:      "bom",
		Usage:     "priced BOM from a KiCad netlist",
		UsageText: `bomprice bom [options] NETLIST.xml OUTPUT[.csv]`,
		ArgsUsage: "NETLIST.xml OUTPUT[.csv]",
		Flags:     flags,
		Examples: [][2]string{
			{"bomprice bom board.xml board-bom", "write board-bom.csv"},
			{"bomprice bom --ttl 24h board.xml bom.csv", "refresh quotes older than a day"},
		},
		Action: BomCommandAction,
		Meta:   meta,
	}).Build()
}
