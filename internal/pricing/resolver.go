// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/apex/log"
	"golang.org/x/sync/singleflight"

	"github.com/staranto/bomprice/internal/lcsc"
	"github.com/staranto/bomprice/internal/partcache"
)

// Fetcher performs an uncached lookup of one part number.
type Fetcher interface {
	Fetch(ctx context.Context, partNumber string) (partcache.Quote, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, partNumber string) (partcache.Quote, error)

func (f FetcherFunc) Fetch(ctx context.Context, partNumber string) (partcache.Quote, error) {
	return f(ctx, partNumber)
}

// LCSCFetcher binds an lcsc.Client to a session's credentials.
func LCSCFetcher(c *lcsc.Client, creds lcsc.Credentials) Fetcher {
	return FetcherFunc(func(ctx context.Context, partNumber string) (partcache.Quote, error) {
		return c.Fetch(ctx, partNumber, creds)
	})
}

// Resolver is the single entry point callers use to price a part. It reads
// through the cache and falls back to the Fetcher on a miss.
type Resolver struct {
	Store   partcache.Store
	Fetcher Fetcher

	group singleflight.Group
}

func NewResolver(store partcache.Store, fetcher Fetcher) *Resolver {
	return &Resolver{Store: store, Fetcher: fetcher}
}

// Resolve returns the quote for partNumber. Per-part trouble never surfaces
// as an error: the quote simply has no price. The only errors are a broken
// cache, which should stop the run, and ctx being done.
func (r *Resolver) Resolve(ctx context.Context, partNumber string) (partcache.Quote, error) {
	if partNumber == "" {
		return partcache.Quote{}, nil
	}
	if err := ctx.Err(); err != nil {
		return partcache.Quote{}, err
	}

	v, err, _ := r.group.Do(partNumber, func() (interface{}, error) {
		return r.resolve(ctx, partNumber)
	})
	if err != nil {
		return partcache.Quote{}, err
	}
	return v.(partcache.Quote), nil //nolint:forcetypeassert
}

func (r *Resolver) resolve(ctx context.Context, partNumber string) (partcache.Quote, error) {
	q, ok, err := r.Store.Get(ctx, partNumber)
	if err != nil {
		return partcache.Quote{}, fmt.Errorf("failed to read part cache: %w", err)
	}
	if ok {
		return q, nil
	}

	q, err = r.Fetcher.Fetch(ctx, partNumber)
	if err != nil {
		// A cancelled run never reports a part as unpriced.
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(err, ctxErr) {
				return partcache.Quote{}, err
			}
			return partcache.Quote{}, fmt.Errorf("%s: %v: %w", partNumber, err, ctxErr)
		}
		// Not a settled answer, so it is not cached.
		log.WithError(err).WithField("part", partNumber).Warn("lookup failed, no price")
		return partcache.Quote{}, nil
	}

	// Empty quotes are cached as well so known unpriceable parts are not
	// looked up again until they expire.
	if err := r.Store.Put(ctx, partNumber, q); err != nil {
		return partcache.Quote{}, fmt.Errorf("failed to write part cache: %w", err)
	}
	return q, nil
}

// ResolveAll resolves part numbers one at a time, in order. Duplicates and
// empty part numbers are skipped. It stops at the first fatal error or when
// ctx is done, returning what was resolved so far.
func (r *Resolver) ResolveAll(ctx context.Context, partNumbers []string) (map[string]partcache.Quote, error) {
	results := make(map[string]partcache.Quote, len(partNumbers))
	for _, pn := range partNumbers {
		if pn == "" {
			continue
		}
		if _, done := results[pn]; done {
			continue
		}
		q, err := r.Resolve(ctx, pn)
		if err != nil {
			return results, err
		}
		results[pn] = q
	}
	return results, nil
}
