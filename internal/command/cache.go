// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/staranto/bomprice/internal/meta"
	"github.com/staranto/bomprice/internal/output"
	"github.com/staranto/bomprice/internal/partcache"
)

var cacheColumns = []string{"part", "price", "in_stock", "footprint", "age", "!updated"}

var errCacheDisabled = errors.New("part cache is disabled")

// openMaintainer opens the configured cache for maintenance.
func openMaintainer(cmd *cli.Command) (partcache.Maintainer, func(), error) {
	store, err := OpenStore(cmd)
	if err != nil {
		return nil, nil, err
	}
	m, ok := store.(partcache.Maintainer)
	if !ok {
		closeStore(store)
		return nil, nil, errCacheDisabled
	}
	return m, func() { closeStore(store) }, nil
}

// entryRecord flattens a cache entry into an output record.
func entryRecord(e partcache.Entry, now time.Time) map[string]interface{} {
	r := quoteRecord(e.PartNumber, e.Quote)
	r["updated"] = e.UpdatedAt
	r["age"] = humanize.RelTime(e.UpdatedAt, now, "ago", "from now")
	return r
}

// CacheListAction prints every cached entry, stale ones included.
func CacheListAction(ctx context.Context, cmd *cli.Command) error {
	m, done, err := openMaintainer(cmd)
	if err != nil {
		return err
	}
	defer done()

	entries, err := m.Entries(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	records := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		records = append(records, entryRecord(e, now))
	}

	return output.Spit(cmd.Root().Writer, records, BuildColumns(cmd, cacheColumns...), OutputOptions(cmd))
}

// CachePruneAction removes entries older than --older-than, or --ttl when it
// is not given.
func CachePruneAction(ctx context.Context, cmd *cli.Command) error {
	maxAge := cmd.Duration("older-than")
	if maxAge <= 0 {
		maxAge = cmd.Duration("ttl")
	}
	if maxAge <= 0 {
		return errors.New("prune needs --older-than or --ttl")
	}

	m, done, err := openMaintainer(cmd)
	if err != nil {
		return err
	}
	defer done()

	n, err := m.Prune(ctx, maxAge)
	if err != nil {
		return err
	}
	log.Infof("pruned %d entries older than %s", n, maxAge)
	fmt.Fprintf(cmd.Root().Writer, "Pruned %d entries\n", n)
	return nil
}

// CacheClearAction drops every entry.
func CacheClearAction(ctx context.Context, cmd *cli.Command) error {
	m, done, err := openMaintainer(cmd)
	if err != nil {
		return err
	}
	defer done()

	if err := m.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, "Cache cleared")
	return nil
}

// CacheCommandBuilder constructs the "cache" command and its list, prune and
// clear subcommands.
func CacheCommandBuilder(meta meta.Meta) *cli.Command {
	listFlags := NewOutputFlags("cache")
	listFlags = append(listFlags, NewCacheFlags("cache")...)

	pruneFlags := append(NewCacheFlags("cache"), &cli.DurationFlag{
		Name:  "older-than",
		Usage: "age beyond which entries are removed",
	})

	return &cli.Command{
		Name:  "cache",
		Usage: "inspect and maintain the part cache",
		Metadata: map[string]any{
			"meta": meta,
		},
		Commands: []*cli.Command{
			(&CommandBuilder{
				Name:      "list",
				Usage:     "list cached quotes",
				UsageText: `bomprice cache list [options]`,
				Flags:     listFlags,
				Examples: [][2]string{
					{"bomprice cache list -t", "list with titles"},
					{"bomprice cache list -a updated -s -updated", "newest first"},
				},
				Action: CacheListAction,
				Meta:   meta,
			}).Build(),
			(&CommandBuilder{
				Name:      "prune",
				Usage:     "remove old cached quotes",
				UsageText: `bomprice cache prune [--older-than DURATION]`,
				Flags:     pruneFlags,
				Examples: [][2]string{
					{"bomprice cache prune --older-than 720h", "drop quotes older than 30 days"},
				},
				Action: CachePruneAction,
				Meta:   meta,
			}).Build(),
			(&CommandBuilder{
				Name:      "clear",
				Usage:     "remove every cached quote",
				UsageText: `bomprice cache clear`,
				Flags:     NewCacheFlags("cache"),
				Action:    CacheClearAction,
				Meta:      meta,
			}).Build(),
		},
	}
}
