// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/bomprice/internal/meta"
	"github.com/staranto/bomprice/internal/output"
	"github.com/staranto/bomprice/internal/partcache"
)

var lookupColumns = []string{"part", "price", "in_stock", "footprint"}

var errNoParts = errors.New("no part numbers given")

// quoteRecord flattens a quote into an output record. Absent fields are left
// out so filters treat them as missing.
func quoteRecord(partNumber string, q partcache.Quote) map[string]interface{} {
	r := map[string]interface{}{"part": partNumber}
	if q.Price != nil {
		r["price"] = *q.Price
	}
	if q.InStock != nil {
		r["in_stock"] = *q.InStock
	}
	if q.Footprint != nil {
		r["footprint"] = *q.Footprint
	}
	return r
}

// LookupCommandAction is the action handler for the "lookup" subcommand. It
// prices each part number through the cache and prints one record per part.
func LookupCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	partNumbers := cmd.Args().Slice()
	if len(partNumbers) == 0 {
		return errNoParts
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

	quotes, err := resolver.ResolveAll(ctx, partNumbers)
	if err != nil {
		return err
	}

	seen := map[string]bool{}
	records := make([]map[string]interface{}, 0, len(quotes))
	for _, pn := range partNumbers {
		q, ok := quotes[pn]
		if !ok || seen[pn] {
			continue
		}
		seen[pn] = true
		records = append(records, quoteRecord(pn, q))
	}

	return output.Spit(cmd.Root().Writer, records, BuildColumns(cmd, lookupColumns...), OutputOptions(cmd))
}

// LookupCommandBuilder constructs the cli.Command definition for the "lookup"
// command.
func LookupCommandBuilder(meta meta.Meta) *cli.Command {
	flags := NewOutputFlags("lookup")
	flags = append(flags, NewCacheFlags("lookup")...)
	flags = append(flags, NewLookupFlags("lookup")...)

	return (&CommandBuilder{
		Name:      "lookup",
		Usage:     "price LCSC part numbers",
		UsageText: `bomprice lookup [options] PART...`,
		ArgsUsage: "PART...",
		Flags:     flags,
		Examples: [][2]string{
			{"bomprice lookup C25804", "price one part"},
			{"bomprice lookup -o json C25804 C1525", "price two parts as json"},
			{"bomprice lookup --rate 0.65 C25804", "use a fixed exchange rate"},
			{"bomprice lookup -f 'price<0.01' C25804 C1525", "only parts under 0.01"},
		},
		Action: LookupCommandAction,
		Meta:   meta,
	}).Build()
}
