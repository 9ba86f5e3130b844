// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package lcsc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/apex/log"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"resty.dev/v3"

	"github.com/staranto/bomprice/internal/partcache"
)

const (
	DefaultSearchURL        = "https://lcsc.com/api/products/search"
	DefaultMaxRetries       = 3
	DefaultRateLimitBackoff = 10 * time.Second
	DefaultGatewayPause     = 5 * time.Second
	DefaultThrottle         = 500 * time.Millisecond

	rateLimitMarker = "exceeded the maximum number of attempts"
	gatewayMarker   = "Bad Gateway"
	maxLoggedBody   = 512
)

// Sentinel errors. Each means "no price this time" rather than "no price at
// all", so callers should not remember the outcome.
var (
	ErrRateLimited       = errors.New("rate limited by catalog")
	ErrMalformedResponse = errors.New("malformed catalog response")
	ErrUnreachable       = errors.New("catalog unreachable")
)

// Converter turns a catalog (USD) amount into the target currency.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error)
}

// Credentials is the token and cookie bundle every search request carries.
type Credentials struct {
	Token   string
	Cookies []*http.Cookie
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Client looks up single part numbers against the LCSC product search.
type Client struct {
	SearchURL        string
	MaxRetries       int
	RateLimitBackoff time.Duration
	GatewayPause     time.Duration
	Throttle         time.Duration
	Converter        Converter
	Sleep            Sleeper

	http *resty.Client
}

// Option customizes a Client.
type Option func(*Client)

func WithSearchURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.SearchURL = url
		}
	}
}

// WithMaxRetries caps how many times a rate limited search is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.MaxRetries = n
		}
	}
}

// WithPauses overrides the rate limit backoff, the bad gateway pause and the
// per-request throttle. Negative values keep the default.
func WithPauses(rateLimit, gateway, throttle time.Duration) Option {
	return func(c *Client) {
		if rateLimit >= 0 {
			c.RateLimitBackoff = rateLimit
		}
		if gateway >= 0 {
			c.GatewayPause = gateway
		}
		if throttle >= 0 {
			c.Throttle = throttle
		}
	}
}

func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.Sleep = s }
}

func WithRestyClient(r *resty.Client) Option {
	return func(c *Client) { c.http = r }
}

func NewClient(conv Converter, opts ...Option) *Client {
	c := &Client{
		SearchURL:        DefaultSearchURL,
		MaxRetries:       DefaultMaxRetries,
		RateLimitBackoff: DefaultRateLimitBackoff,
		GatewayPause:     DefaultGatewayPause,
		Throttle:         DefaultThrottle,
		Converter:        conv,
		Sleep:            Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = resty.New().SetTimeout(30 * time.Second) //nolint:mnd
	}
	return c
}

// searchHeaders mimic the browser XHR the catalog page itself makes.
var searchHeaders = map[string]string{
	"pragma":           "no-cache",
	"cache-control":    "no-cache",
	"accept":           "application/json, text/javascript, */*; q=0.01",
	"x-requested-with": "XMLHttpRequest",
	"user-agent":       userAgent,
	"isajax":           "true",
	"content-type":     "application/x-www-form-urlencoded; charset=UTF-8",
	"origin":           "https://lcsc.com",
	"sec-fetch-site":   "same-origin",
	"sec-fetch-mode":   "cors",
	"sec-fetch-dest":   "empty",
	"referer":          "https://lcsc.com",
	"accept-language":  "en;q=0.9",
}

// Fetch resolves partNumber. Ambiguous or mismatched results and parts
// without price tiers are not errors: they produce a Quote with the missing
// fields absent. An error means the lookup could not complete this time
// (rate limiting that outlasted the retries, a malformed response, an
// unreachable catalog or exchange rate source); the Quote is then empty.
func (c *Client) Fetch(ctx context.Context, partNumber string, creds Credentials) (partcache.Quote, error) {
	logger := log.WithField("part", partNumber)

	for retry := 0; ; retry++ {
		q, err := c.search(ctx, partNumber, creds)

		// Self-throttle after every request, successful or not.
		if serr := c.Sleep(ctx, c.Throttle); serr != nil {
			return partcache.Quote{}, serr
		}

		if !errors.Is(err, ErrRateLimited) {
			return q, err
		}

		if retry >= c.MaxRetries {
			logger.WithField("retries", retry).Warn("still rate limited, giving up")
			return partcache.Quote{}, fmt.Errorf("%s: gave up after %d retries: %w", partNumber, retry, err)
		}

		logger.WithField("backoff", c.RateLimitBackoff).Warn("too many requests, waiting")
		if serr := c.Sleep(ctx, c.RateLimitBackoff); serr != nil {
			return partcache.Quote{}, serr
		}
	}
}

// search makes one request and classifies the response.
func (c *Client) search(ctx context.Context, partNumber string, creds Credentials) (partcache.Quote, error) {
	logger := log.WithField("part", partNumber)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(searchHeaders).
		SetHeader("x-csrf-token", creds.Token).
		SetCookies(creds.Cookies).
		SetFormData(map[string]string{
			"current_page":   "1",
			"in_stock":       "false",
			"is_RoHS":        "false",
			"show_icon":      "false",
			"search_content": partNumber,
		}).
		Post(c.SearchURL)
	if err != nil {
		if ctx.Err() != nil {
			return partcache.Quote{}, ctx.Err()
		}
		logger.WithError(err).Warn("search request failed")
		return partcache.Quote{}, fmt.Errorf("%s: %v: %w", partNumber, err, ErrUnreachable)
	}

	body := resp.String()

	if resp.StatusCode() == http.StatusTooManyRequests ||
		strings.Contains(body, rateLimitMarker) ||
		gjson.Get(body, "code").Int() == http.StatusTooManyRequests {
		return partcache.Quote{}, fmt.Errorf("%s: %w", partNumber, ErrRateLimited)
	}

	if !gjson.Valid(body) {
		return c.malformed(ctx, partNumber, body, fmt.Sprintf("status %d, body is not JSON", resp.StatusCode()))
	}
	data := gjson.Get(body, "result.data")
	if !data.IsArray() {
		return c.malformed(ctx, partNumber, body, "no result.data list")
	}

	results := data.Array()
	if len(results) != 1 {
		logger.WithField("results", len(results)).Warn("search did not return a single result")
		log.Debugf("response: %s", truncate(body))
		return partcache.Quote{}, nil
	}

	component := results[0]
	if number := component.Get("number").String(); number != partNumber {
		logger.WithField("number", number).Warn("search result does not match part number")
		return partcache.Quote{}, nil
	}

	var q partcache.Quote
	if v := component.Get("stock"); v.Exists() && v.Type != gjson.Null {
		stock := v.Int()
		q.InStock = &stock
	}
	if v := component.Get("package"); v.Exists() && v.Type != gjson.Null {
		pkg := v.String()
		q.Footprint = &pkg
	}

	// Tiers are [min_qty, unit_price] pairs ordered by ascending min_qty, so
	// the first is the price at the smallest quantity break.
	tiers := component.Get("price").Array()
	if len(tiers) == 0 {
		logger.Warn("no price info")
		return q, nil
	}

	minQty := tiers[0].Get("0").Int()
	unit, err := decimal.NewFromString(tiers[0].Get("1").String())
	if err != nil {
		logger.WithField("tier", tiers[0].Raw).Warn("unreadable price tier")
		return q, nil
	}

	price, err := c.Converter.Convert(ctx, unit)
	if err != nil {
		logger.WithError(err).Warn("cannot convert price")
		return partcache.Quote{}, fmt.Errorf("%s: %w", partNumber, err)
	}

	if minQty > 1 {
		logger.WithField("min_qty", minQty).Info("only available in bulk, using per unit price")
		price = price.Div(decimal.NewFromInt(minQty))
	}
	q.Price = &price

	return q, nil
}

func (c *Client) malformed(ctx context.Context, partNumber, body, cause string) (partcache.Quote, error) {
	log.WithFields(log.Fields{
		"part":     partNumber,
		"response": truncate(body),
	}).Warnf("cannot parse response: %s", cause)

	if strings.Contains(body, gatewayMarker) {
		log.WithField("pause", c.GatewayPause).Warn("bad gateway, pausing")
		if err := c.Sleep(ctx, c.GatewayPause); err != nil {
			return partcache.Quote{}, err
		}
	}
	return partcache.Quote{}, fmt.Errorf("%s: %s: %w", partNumber, cause, ErrMalformedResponse)
}

func truncate(s string) string {
	if len(s) <= maxLoggedBody {
		return s
	}
	// Back off to a rune boundary.
	end := maxLoggedBody
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end] + "..."
}
