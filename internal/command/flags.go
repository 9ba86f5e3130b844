// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"os"
	"os/exec"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/staranto/bomprice/internal/config"
	"github.com/staranto/bomprice/internal/currency"
	"github.com/staranto/bomprice/internal/lcsc"
)

func init() {
	cfg, _ = config.Load("")
}

var cfg config.Type

func newExamplesFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:        "examples",
		Usage:       "show usage examples",
		HideDefault: true,
	}
}

func newTldrFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:        "tldr",
		Usage:       "show tldr page",
		Hidden:      !pathHas("tldr"),
		HideDefault: true,
	}
}

// configSources returns the namespaced then global config file sources for
// key.
func configSources(ns, key string) []cli.ValueSource {
	return []cli.ValueSource{
		yaml.YAML(ns+"."+key, altsrc.StringSourcer(cfg.Source)),
		yaml.YAML(key, altsrc.StringSourcer(cfg.Source)),
	}
}

// NewOutputFlags constructs the flags that shape printed results. params[0] is
// the config namespace.
func NewOutputFlags(params ...string) (flags []cli.Flag) {
	ns := params[0]

	flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "columns",
			Aliases: []string{"a"},
			Usage:   "comma-separated list of columns to show, !col hides one",
			Sources: cli.NewValueSourceChain(configSources(ns, "columns")...),
		},
		&cli.BoolWithInverseFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored text output",
			Sources: cli.NewValueSourceChain(configSources(ns, "color")...),
			Value:   term.IsTerminal(int(os.Stdout.Fd())),
		},
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "comma-separated list of filters to apply to results",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format",
			Sources: cli.NewValueSourceChain(configSources(ns, "output")...),
			Value:   "text",
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator, OutputValidator)
			},
		},
		&cli.StringFlag{
			Name:    "sort",
			Aliases: []string{"s"},
			Usage:   "comma-separated list of columns to sort the results by",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+"."+"sort", altsrc.StringSourcer(cfg.Source)),
			),
		},
		&cli.BoolWithInverseFlag{
			Name:    "titles",
			Aliases: []string{"t"},
			Usage:   "show titles with text output",
			Sources: cli.NewValueSourceChain(configSources(ns, "titles")...),
			Value:   false,
		},
	}

	return
}

// NewCacheFlags constructs the flags selecting and tuning the part cache.
func NewCacheFlags(params ...string) (flags []cli.Flag) {
	ns := params[0]

	flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "cache-backend",
			Usage: "part cache backend, file or redis",
			Sources: cli.NewValueSourceChain(append(
				[]cli.ValueSource{cli.EnvVar("BOMPRICE_CACHE_BACKEND")},
				configSources(ns, "cache.backend")...)...),
			Value: "file",
			Validator: func(value string) error {
				return FlagValidators(value, BackendValidator)
			},
		},
		&cli.StringFlag{
			Name:  "cache-file",
			Usage: "part cache file, defaults to lcsc_part_cache.json in the cache directory",
			Sources: cli.NewValueSourceChain(append(
				[]cli.ValueSource{cli.EnvVar("BOMPRICE_CACHE_FILE")},
				configSources(ns, "cache.file")...)...),
		},
		&cli.StringFlag{
			Name:  "redis-url",
			Usage: "redis URL when --cache-backend=redis",
			Sources: cli.NewValueSourceChain(append(
				[]cli.ValueSource{cli.EnvVar("BOMPRICE_REDIS_URL")},
				configSources(ns, "cache.redis_url")...)...),
			Value: "redis://localhost:6379/0",
		},
		&cli.DurationFlag{
			Name:    "ttl",
			Usage:   "how long a cached quote stays fresh, 0 for forever",
			Sources: cli.NewValueSourceChain(configSources(ns, "cache.ttl")...),
		},
	}

	return
}

// NewLookupFlags constructs the flags that tune catalog lookups and currency
// conversion.
func NewLookupFlags(params ...string) (flags []cli.Flag) {
	ns := params[0]

	flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "currency",
			Usage:   "currency prices are reported in",
			Sources: cli.NewValueSourceChain(configSources(ns, "currency")...),
			Value:   "AUD",
		},
		&cli.StringFlag{
			Name:  "rate",
			Usage: "fixed units of USD per one unit of --currency, skips the rate lookup",
			Sources: cli.NewValueSourceChain(append(
				[]cli.ValueSource{cli.EnvVar("BOMPRICE_RATE")},
				configSources(ns, "rate")...)...),
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator, DecimalValidator)
			},
		},
		&cli.StringFlag{
			Name:    "rate-url",
			Usage:   "exchange rate service",
			Sources: cli.NewValueSourceChain(configSources(ns, "rate_url")...),
			Value:   currency.DefaultURL,
		},
		&cli.IntFlag{
			Name:    "max-retries",
			Usage:   "retries per part while the catalog is rate limiting",
			Sources: cli.NewValueSourceChain(configSources(ns, "lcsc.max_retries")...),
			Value:   lcsc.DefaultMaxRetries,
		},
		&cli.DurationFlag{
			Name:    "throttle",
			Usage:   "pause after every catalog request",
			Sources: cli.NewValueSourceChain(configSources(ns, "lcsc.throttle")...),
			Value:   lcsc.DefaultThrottle,
		},
		&cli.StringFlag{
			Name:    "search-url",
			Usage:   "catalog search endpoint",
			Hidden:  true,
			Sources: cli.NewValueSourceChain(configSources(ns, "lcsc.search_url")...),
			Value:   lcsc.DefaultSearchURL,
		},
		&cli.StringFlag{
			Name:    "session-url",
			Usage:   "catalog page the session token is read from",
			Hidden:  true,
			Sources: cli.NewValueSourceChain(configSources(ns, "lcsc.session_url")...),
			Value:   lcsc.DefaultSessionURL,
		},
	}

	return
}

// pathHas reports whether target is on PATH.
func pathHas(target string) bool {
	_, err := exec.LookPath(target)
	return err == nil
}
