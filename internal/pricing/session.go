// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package pricing

import (
	"context"
	"fmt"
	"sync"

	"github.com/apex/log"

	"github.com/staranto/bomprice/internal/lcsc"
	"github.com/staranto/bomprice/internal/partcache"
)

// SessionOpener performs the catalog handshake.
type SessionOpener func(ctx context.Context) (lcsc.Credentials, error)

// SessionFetcher is a Fetcher that opens the catalog session on first use,
// so a run fully served by the cache never contacts the catalog. A failed
// handshake is retried by the next Fetch.
type SessionFetcher struct {
	Client *lcsc.Client
	Open   SessionOpener

	mu    sync.Mutex
	creds *lcsc.Credentials
}

func NewSessionFetcher(c *lcsc.Client, open SessionOpener) *SessionFetcher {
	return &SessionFetcher{Client: c, Open: open}
}

func (f *SessionFetcher) credentials(ctx context.Context) (lcsc.Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.creds != nil {
		return *f.creds, nil
	}

	creds, err := f.Open(ctx)
	if err != nil {
		return lcsc.Credentials{}, fmt.Errorf("failed to open catalog session: %w", err)
	}
	log.Debugf("catalog session opened, %d cookies", len(creds.Cookies))
	f.creds = &creds
	return creds, nil
}

func (f *SessionFetcher) Fetch(ctx context.Context, partNumber string) (partcache.Quote, error) {
	creds, err := f.credentials(ctx)
	if err != nil {
		return partcache.Quote{}, err
	}
	return f.Client.Fetch(ctx, partNumber, creds)
}
