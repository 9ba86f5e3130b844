// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package partcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrCorrupt means the store exists but cannot be read back. It is fatal for
// the run: quietly treating it as a miss would hide the problem behind slow
// repeated lookups.
var ErrCorrupt = errors.New("part cache is corrupt")

// Quote is the outcome of resolving one part number. A nil field is absent.
// A Quote with every field absent is a valid answer: no price could be
// determined.
type Quote struct {
	Price     *decimal.Decimal `json:"price,omitempty" yaml:"price,omitempty"`
	InStock   *int64           `json:"in_stock,omitempty" yaml:"in_stock,omitempty"`
	Footprint *string          `json:"footprint,omitempty" yaml:"footprint,omitempty"`
}

// Empty reports whether every field is absent.
func (q Quote) Empty() bool {
	return q.Price == nil && q.InStock == nil && q.Footprint == nil
}

func (q Quote) String() string {
	parts := []string{}
	if q.Price != nil {
		parts = append(parts, "price="+q.Price.String())
	}
	if q.InStock != nil {
		parts = append(parts, fmt.Sprintf("in_stock=%d", *q.InStock))
	}
	if q.Footprint != nil {
		parts = append(parts, "footprint="+*q.Footprint)
	}
	if len(parts) == 0 {
		return "<no price>"
	}
	return strings.Join(parts, " ")
}

// Entry is the persisted unit of the cache. There is one per part number.
type Entry struct {
	PartNumber string    `json:"-"`
	UpdatedAt  time.Time `json:"updated_at"`
	Quote      Quote     `json:"data"`
}

// Store is a durable part number -> Quote mapping. Get reports ok=false for a
// missing or stale entry.
type Store interface {
	Get(ctx context.Context, partNumber string) (q Quote, ok bool, err error)
	Put(ctx context.Context, partNumber string, q Quote) error
}

// Maintainer is implemented by stores that can be listed and cleaned.
type Maintainer interface {
	Entries(ctx context.Context) ([]Entry, error)
	Prune(ctx context.Context, maxAge time.Duration) (int, error)
	Clear(ctx context.Context) error
}

// expired applies the read-boundary TTL. A zero ttl never expires.
func expired(updatedAt, now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(updatedAt) > ttl
}

// NopStore is used when caching is disabled. It never hits and drops writes.
type NopStore struct{}

func (NopStore) Get(context.Context, string) (Quote, bool, error) { return Quote{}, false, nil }
func (NopStore) Put(context.Context, string, Quote) error         { return nil }
