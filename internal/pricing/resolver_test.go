// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package pricing

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/bomprice/internal/lcsc"
	"github.com/staranto/bomprice/internal/partcache"
)

// spyStore wraps a Store and counts calls.
type spyStore struct {
	inner partcache.Store
	gets  int
	puts  int
	err   error
}

func (s *spyStore) Get(ctx context.Context, pn string) (partcache.Quote, bool, error) {
	s.gets++
	if s.err != nil {
		return partcache.Quote{}, false, s.err
	}
	return s.inner.Get(ctx, pn)
}

func (s *spyStore) Put(ctx context.Context, pn string, q partcache.Quote) error {
	s.puts++
	if s.err != nil {
		return s.err
	}
	return s.inner.Put(ctx, pn, q)
}

type spyFetcher struct {
	calls map[string]int
	quote partcache.Quote
	err   error
}

func (f *spyFetcher) Fetch(_ context.Context, pn string) (partcache.Quote, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[pn]++
	return f.quote, f.err
}

func priced(s string) partcache.Quote {
	p := decimal.RequireFromString(s)
	fp := "0805"
	stock := int64(7)
	return partcache.Quote{Price: &p, Footprint: &fp, InStock: &stock}
}

func newFixture(t *testing.T, ttl time.Duration, f *spyFetcher) (*Resolver, *spyStore) {
	t.Helper()
	store := &spyStore{inner: partcache.NewFileStore(filepath.Join(t.TempDir(), "cache.json"), ttl)}
	return NewResolver(store, f), store
}

func TestResolve_EmptyPartNumber(t *testing.T) {
	f := &spyFetcher{quote: priced("1")}
	r, store := newFixture(t, 0, f)

	q, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, q.Empty())
	assert.Equal(t, 0, store.gets)
	assert.Equal(t, 0, store.puts)
	assert.Empty(t, f.calls)
}

func TestResolve_MissThenHit(t *testing.T) {
	f := &spyFetcher{quote: priced("0.25")}
	r, store := newFixture(t, time.Hour, f)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "C17414")
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls["C17414"])
	assert.Equal(t, 1, store.puts)

	second, err := r.Resolve(ctx, "C17414")
	require.NoError(t, err)
	assert.Equal(t, 1, f.calls["C17414"], "second resolve must not fetch")
	assert.Equal(t, 1, store.puts)
	assert.Equal(t, first.String(), second.String())
}

func TestResolve_EmptyResultIsCached(t *testing.T) {
	f := &spyFetcher{}
	r, store := newFixture(t, 0, f)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		q, err := r.Resolve(ctx, "C404")
		require.NoError(t, err)
		assert.True(t, q.Empty())
	}
	assert.Equal(t, 1, f.calls["C404"])
	assert.Equal(t, 1, store.puts)
}

func TestResolve_FetchErrorNotCached(t *testing.T) {
	errs := []error{
		fmt.Errorf("C1: %w", lcsc.ErrRateLimited),
		fmt.Errorf("C1: %w", lcsc.ErrMalformedResponse),
		fmt.Errorf("C1: %w", lcsc.ErrUnreachable),
	}
	for _, fetchErr := range errs {
		t.Run(fetchErr.Error(), func(t *testing.T) {
			f := &spyFetcher{quote: priced("9"), err: fetchErr}
			r, store := newFixture(t, 0, f)
			ctx := context.Background()

			q, err := r.Resolve(ctx, "C1")
			require.NoError(t, err, "per-part failures never abort the batch")
			assert.True(t, q.Empty())
			assert.Equal(t, 0, store.puts)

			_, err = r.Resolve(ctx, "C1")
			require.NoError(t, err)
			assert.Equal(t, 2, f.calls["C1"], "failed lookups are retried on the next resolve")
		})
	}
}

func TestResolve_CacheErrorIsFatal(t *testing.T) {
	f := &spyFetcher{quote: priced("1")}
	r, store := newFixture(t, 0, f)
	store.err = fmt.Errorf("x: %w", partcache.ErrCorrupt)

	_, err := r.Resolve(context.Background(), "C1")
	assert.ErrorIs(t, err, partcache.ErrCorrupt)
	assert.Empty(t, f.calls)
}

func TestResolve_Canceled(t *testing.T) {
	f := &spyFetcher{quote: priced("1")}
	r, _ := newFixture(t, 0, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Resolve(ctx, "C1")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, f.calls)
}

func TestResolve_CanceledDuringFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := FetcherFunc(func(ctx context.Context, _ string) (partcache.Quote, error) {
		cancel()
		return partcache.Quote{}, ctx.Err()
	})
	store := &spyStore{inner: partcache.NewFileStore(filepath.Join(t.TempDir(), "c.json"), 0)}
	r := NewResolver(store, fetcher)

	_, err := r.Resolve(ctx, "C1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.puts)
}

func TestResolveAll(t *testing.T) {
	f := &spyFetcher{quote: priced("0.5")}
	r, _ := newFixture(t, 0, f)

	got, err := r.ResolveAll(context.Background(), []string{"C1", "", "C2", "C1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, f.calls["C1"])
	assert.Equal(t, 1, f.calls["C2"])
	assert.Equal(t, "0.5", got["C2"].Price.String())
}

func TestResolveAll_StopsOnFatal(t *testing.T) {
	f := &spyFetcher{quote: priced("0.5")}
	r, store := newFixture(t, 0, f)
	store.err = partcache.ErrCorrupt

	got, err := r.ResolveAll(context.Background(), []string{"C1", "C2"})
	assert.ErrorIs(t, err, partcache.ErrCorrupt)
	assert.Empty(t, got)
	assert.Equal(t, 1, store.gets)
}

func TestResolve_ConcurrentCallsShareOneFetch(t *testing.T) {
	var fetches atomic.Int32
	f := FetcherFunc(func(context.Context, string) (partcache.Quote, error) {
		fetches.Add(1)
		time.Sleep(50 * time.Millisecond)
		return priced("0.3"), nil
	})
	store := partcache.NewFileStore(filepath.Join(t.TempDir(), "cache.json"), 0)
	r := NewResolver(store, f)

	const n = 8
	start := make(chan struct{})
	quotes := make([]partcache.Quote, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			quotes[i], errs[i] = r.Resolve(context.Background(), "C1")
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), fetches.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, quotes[i].Price)
		assert.Equal(t, "0.3", quotes[i].Price.String())
	}
}
