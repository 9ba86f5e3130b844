// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/apex/log"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"

	"github.com/staranto/bomprice/internal/cacheutil"
	"github.com/staranto/bomprice/internal/currency"
	"github.com/staranto/bomprice/internal/lcsc"
	"github.com/staranto/bomprice/internal/meta"
	"github.com/staranto/bomprice/internal/output"
	"github.com/staranto/bomprice/internal/partcache"
	"github.com/staranto/bomprice/internal/pricing"
)

// ShortCircuitTLDR checks the --tldr flag and, if present and available,
// runs `tldr bomprice-<subcmd>` and returns true so the caller can exit early.
func ShortCircuitTLDR(ctx context.Context, cmd *cli.Command, subcmd string) bool {
	if cmd.Bool("tldr") {
		if _, err := exec.LookPath("tldr"); err == nil {
			c := exec.CommandContext(ctx, "tldr", "bomprice-"+subcmd)
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			_ = c.Run()
		}
		return true
	}
	return false
}

// ShortCircuitExamples prints examples when --examples is set and returns
// true if it handled the request.
func ShortCircuitExamples(cmd *cli.Command, examples [][2]string) bool {
	if cmd.Bool("examples") {
		output.DumpExamples(cmd.Root().Writer, examples)
		return true
	}
	return false
}

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// CommandBuilder constructs a subcommand in the common shape: metadata, the
// tldr and examples flags, the command's own flags and the action. Examples
// are also kept in Metadata["examples"] for the doc generator.
type CommandBuilder struct {
	Name      string
	Usage     string
	UsageText string
	ArgsUsage string
	Flags     []cli.Flag
	Examples  [][2]string
	Action    func(context.Context, *cli.Command) error
	Meta      meta.Meta
}

// Build returns a configured cli.Command from the builder.
func (b *CommandBuilder) Build() *cli.Command {
	action := b.Action
	examples := b.Examples
	name := b.Name

	return &cli.Command{
		Name:      b.Name,
		Usage:     b.Usage,
		UsageText: b.UsageText,
		ArgsUsage: b.ArgsUsage,
		Metadata: map[string]any{
			"meta":     b.Meta,
			"examples": b.Examples,
		},
		Flags: append(b.Flags, newTldrFlag(), newExamplesFlag()),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if ShortCircuitTLDR(ctx, cmd, name) || ShortCircuitExamples(cmd, examples) {
				return nil
			}
			return action(ctx, cmd)
		},
	}
}

// GetExamples returns the examples a CommandBuilder stored on cmd.
func GetExamples(cmd *cli.Command) [][2]string {
	if cmd == nil || cmd.Metadata == nil {
		return nil
	}
	ex, _ := cmd.Metadata["examples"].([][2]string)
	return ex
}

// OutputOptions gathers the output flags.
func OutputOptions(cmd *cli.Command) output.Options {
	return output.Options{
		Format: cmd.String("output"),
		Titles: cmd.Bool("titles"),
		Color:  cmd.Bool("color"),
		Filter: cmd.String("filter"),
		Sort:   cmd.String("sort"),
	}
}

// BuildColumns applies --columns to the command's default columns. Defaults
// use the --columns syntax, so "!key" is a hidden default.
func BuildColumns(cmd *cli.Command, defaults ...string) output.Columns {
	cols := output.Columns{}.Apply(strings.Join(defaults, ",")).Apply(cmd.String("columns"))
	log.Debugf("columns: %s", cols)
	return cols
}

// OpenStore opens the part cache selected by the cache flags.
func OpenStore(cmd *cli.Command) (partcache.Store, error) {
	path := cmd.String("cache-file")
	if path == "" {
		path = cacheutil.FilePath(partcache.DefaultFileName)
	}

	store, err := partcache.Open(partcache.Options{
		Backend:  cmd.String("cache-backend"),
		Path:     path,
		RedisURL: cmd.String("redis-url"),
		TTL:      cmd.Duration("ttl"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open part cache: %w", err)
	}
	return store, nil
}

// closeStore releases stores that hold a connection.
func closeStore(store partcache.Store) {
	if c, ok := store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.WithError(err).Debug("closing part cache")
		}
	}
}

// NewConverter builds the currency converter from --rate or the rate service.
func NewConverter(cmd *cli.Command) (*currency.Converter, error) {
	if s := cmd.String("rate"); s != "" {
		rate, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid --rate %q: %w", s, err)
		}
		return currency.NewConverter(currency.FixedRate(rate)), nil
	}

	target := strings.ToUpper(cmd.String("currency"))
	return currency.NewConverter(currency.NewHTTPRateProvider(cmd.String("rate-url"), "USD", target)), nil
}

// NewResolver wires the cache, the catalog client and the currency converter
// into a Resolver. The catalog session is opened on the first cache miss.
func NewResolver(cmd *cli.Command, store partcache.Store) (*pricing.Resolver, error) {
	conv, err := NewConverter(cmd)
	if err != nil {
		return nil, err
	}

	client := lcsc.NewClient(conv,
		lcsc.WithSearchURL(cmd.String("search-url")),
		lcsc.WithMaxRetries(int(cmd.Int("max-retries"))),
		lcsc.WithPauses(lcsc.DefaultRateLimitBackoff, lcsc.DefaultGatewayPause, cmd.Duration("throttle")),
	)

	sessionURL := cmd.String("session-url")
	fetcher := pricing.NewSessionFetcher(client, func(ctx context.Context) (lcsc.Credentials, error) {
		return lcsc.NewSession(ctx, sessionURL)
	})

	return pricing.NewResolver(store, fetcher), nil
}
