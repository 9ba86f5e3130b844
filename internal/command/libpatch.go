// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/bomprice/internal/kicadlib"
	"github.com/staranto/bomprice/internal/meta"
)

// LibpatchCommandAction is the action handler for the "libpatch" subcommand.
// It writes current prices into the Price field of every symbol in a legacy
// KiCad library that carries an LCSC part number.
func LibpatchCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: %s", cmd.UsageText)
	}
	lib := cmd.Args().First()

	// Fail on missing files before touching the cache or the network.
	if err := kicadlib.CheckFiles(lib); err != nil {
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

	stats, backup, err := kicadlib.PatchFile(ctx, lib, resolver, time.Now())
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	fmt.Fprintf(w, "Backup: %s\n", backup)
	fmt.Fprintf(w, "Symbols: %d, priced: %d\n", stats.Symbols, stats.Priced)
	for _, s := range stats.Unnumbered {
		fmt.Fprintf(w, "   no LCSC Part #: %s\n", s)
	}
	for _, pn := range stats.Unpriced {
		fmt.Fprintf(w, "   no price: %s\n", pn)
	}
	return nil
}

// LibpatchCommandBuilder constructs the cli.Command definition for the
// "libpatch" command.
func LibpatchCommandBuilder(meta meta.Meta) *cli.Command {
	flags := NewCacheFlags("libpatch")
	flags = append(flags, NewLookupFlags("libpatch")...)

	return (&CommandBuilder{
		Name:      "libpatch",
		Usage:     "update Price fields in a KiCad symbol library",
		UsageText: `bomprice libpatch [options] LIBRARY[.lib]`,
		ArgsUsage: "LIBRARY[.lib]",
		Flags:     flags,
		Examples: [][2]string{
			{`bomprice libpatch "LCSC parts.lib"`, "reprice a library, keeping a backup"},
		},
		Action: LibpatchCommandAction,
		Meta:   meta,
	}).Build()
}
