// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package partcache

import (
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/staranto/bomprice/internal/cacheutil"
)

// Options selects and configures a Store.
type Options struct {
	// Backend is "file" (default) or "redis".
	Backend  string
	Path     string
	RedisURL string
	TTL      time.Duration
}

// Open builds the Store described by opts. When caching is disabled via
// BOMPRICE_CACHE a NopStore is returned.
func Open(opts Options) (Store, error) {
	if !cacheutil.Enabled() {
		log.Debug("part cache disabled")
		return NopStore{}, nil
	}

	switch strings.ToLower(opts.Backend) {
	case "", "file":
		return NewFileStore(opts.Path, opts.TTL), nil
	case "redis":
		return NewRedisStore(opts.RedisURL, opts.TTL)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
