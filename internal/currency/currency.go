// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package currency

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/apex/log"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"resty.dev/v3"
)

// ErrRateUnavailable means the rate source could not produce a usable rate.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// DefaultURL is the rate source used when none is configured.
const DefaultURL = "https://api.exchangeratesapi.io/latest"

// RateProvider yields the number of source-currency units per target-currency
// unit.
type RateProvider interface {
	Rate(ctx context.Context) (decimal.Decimal, error)
}

// FixedRate is a RateProvider that never touches the network.
type FixedRate decimal.Decimal

func (f FixedRate) Rate(context.Context) (decimal.Decimal, error) {
	r := decimal.Decimal(f)
	if !r.IsPositive() {
		return decimal.Zero, fmt.Errorf("fixed rate %s: %w", r, ErrRateUnavailable)
	}
	return r, nil
}

// HTTPRateProvider asks an exchangeratesapi.io style endpoint for the rate of
// Source against Target, e.g. GET ...?base=AUD&symbols=USD.
type HTTPRateProvider struct {
	URL    string
	Source string
	Target string
	Client *resty.Client
}

func NewHTTPRateProvider(url, source, target string) *HTTPRateProvider {
	if url == "" {
		url = DefaultURL
	}
	return &HTTPRateProvider{
		URL:    url,
		Source: source,
		Target: target,
		Client: resty.New(),
	}
}

func (p *HTTPRateProvider) Rate(ctx context.Context) (decimal.Decimal, error) {
	resp, err := p.Client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("base", p.Target).
		SetQueryParam("symbols", p.Source).
		Get(p.URL)
	if err != nil {
		if ctx.Err() != nil {
			return decimal.Zero, ctx.Err()
		}
		return decimal.Zero, fmt.Errorf("failed to fetch rate: %v: %w", err, ErrRateUnavailable)
	}
	if resp.StatusCode() != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rate source returned %d: %w", resp.StatusCode(), ErrRateUnavailable)
	}

	body := resp.String()
	if !gjson.Valid(body) {
		return decimal.Zero, fmt.Errorf("rate source returned unparsable body: %w", ErrRateUnavailable)
	}

	v := gjson.Get(body, "rates."+gjson.Escape(p.Source))
	if !v.Exists() {
		return decimal.Zero, fmt.Errorf("no %s rate in response: %w", p.Source, ErrRateUnavailable)
	}

	// Raw keeps the digits as sent, avoiding a float64 round trip.
	rate, err := decimal.NewFromString(v.Raw)
	if err != nil || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("bad %s rate %q: %w", p.Source, v.Raw, ErrRateUnavailable)
	}
	return rate, nil
}

// Converter converts amounts from the catalog's reporting currency into the
// target currency. The first rate obtained from Provider is kept for the life
// of the Converter; a failed fetch is not kept and the next call tries again.
type Converter struct {
	Provider RateProvider

	mu   sync.Mutex
	rate *decimal.Decimal
}

func NewConverter(p RateProvider) *Converter {
	return &Converter{Provider: p}
}

// Rate returns the memoized rate, fetching it on first use.
func (c *Converter) Rate(ctx context.Context) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rate != nil {
		return *c.rate, nil
	}

	r, err := c.Provider.Rate(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	log.Debugf("exchange rate: %s", r)
	c.rate = &r
	return r, nil
}

// Convert returns amount / rate.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	r, err := c.Rate(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Div(r), nil
}
