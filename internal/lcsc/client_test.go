// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package lcsc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/bomprice/internal/currency"
)

// recorder is a Sleeper that records instead of sleeping.
type recorder struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (r *recorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauses = append(r.pauses, d)
	return ctx.Err()
}

func (r *recorder) count(d time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.pauses {
		if p == d {
			n++
		}
	}
	return n
}

const (
	testBackoff  = 10 * time.Second
	testGateway  = 5 * time.Second
	testThrottle = 500 * time.Millisecond
)

// catalog serves the given bodies in order, repeating the last one.
type catalog struct {
	t      *testing.T
	bodies []string
	status int

	mu    sync.Mutex
	calls int
}

func (c *catalog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	i := c.calls
	c.calls++
	c.mu.Unlock()

	assert.Equal(c.t, http.MethodPost, r.Method)
	assert.NoError(c.t, r.ParseForm())
	assert.Equal(c.t, "1", r.PostForm.Get("current_page"))
	assert.Equal(c.t, "false", r.PostForm.Get("in_stock"))
	assert.Equal(c.t, "false", r.PostForm.Get("is_RoHS"))
	assert.NotEmpty(c.t, r.PostForm.Get("search_content"))
	assert.Equal(c.t, "tok3n", r.Header.Get("x-csrf-token"))
	if ck, err := r.Cookie("lcsc_session"); assert.NoError(c.t, err) {
		assert.Equal(c.t, "abc", ck.Value)
	}

	if i >= len(c.bodies) {
		i = len(c.bodies) - 1
	}
	if c.status != 0 {
		w.WriteHeader(c.status)
	}
	_, _ = w.Write([]byte(c.bodies[i]))
}

func (c *catalog) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

var creds = Credentials{
	Token:   "tok3n",
	Cookies: []*http.Cookie{{Name: "lcsc_session", Value: "abc"}},
}

func newTestClient(t *testing.T, cat *catalog, conv Converter) (*Client, *recorder) {
	t.Helper()
	cat.t = t
	srv := httptest.NewServer(cat)
	t.Cleanup(srv.Close)

	if conv == nil {
		// 1 AUD buys 0.5 USD, so AUD = USD / 0.5.
		conv = currency.NewConverter(currency.FixedRate(decimal.RequireFromString("0.5")))
	}
	rec := &recorder{}
	c := NewClient(conv,
		WithSearchURL(srv.URL),
		WithMaxRetries(3),
		WithPauses(testBackoff, testGateway, testThrottle),
		WithSleeper(rec.Sleep),
	)
	return c, rec
}

const cleanBody = `{"code":200,"result":{"data":[
	{"number":"C25804","stock":41250,"package":"0603","price":[[1,0.0123],[100,0.0051]]}
]}}`

func TestFetch_CleanMatch(t *testing.T) {
	cat := &catalog{bodies: []string{cleanBody}}
	c, rec := newTestClient(t, cat, nil)

	q, err := c.Fetch(context.Background(), "C25804", creds)
	require.NoError(t, err)
	require.NotNil(t, q.Price)
	assert.Equal(t, "0.0246", q.Price.String())
	require.NotNil(t, q.InStock)
	assert.Equal(t, int64(41250), *q.InStock)
	require.NotNil(t, q.Footprint)
	assert.Equal(t, "0603", *q.Footprint)

	assert.Equal(t, 1, cat.Calls())
	assert.Equal(t, []time.Duration{testThrottle}, rec.pauses, "throttle applies on success too")
}

func TestFetch_BulkTierNormalized(t *testing.T) {
	body := `{"code":200,"result":{"data":[
		{"number":"C9999","stock":10,"package":"SOT-23","price":[[10,5.00],[100,4.00]]}
	]}}`
	cat := &catalog{bodies: []string{body}}
	conv := currency.NewConverter(currency.FixedRate(decimal.RequireFromString("0.5")))
	c, _ := newTestClient(t, cat, conv)

	q, err := c.Fetch(context.Background(), "C9999", creds)
	require.NoError(t, err)

	converted, err := conv.Convert(context.Background(), decimal.RequireFromString("5.00"))
	require.NoError(t, err)
	want := converted.Div(decimal.NewFromInt(10))

	require.NotNil(t, q.Price)
	assert.True(t, want.Equal(*q.Price), "want %s got %s", want, q.Price)
	assert.Equal(t, "1", q.Price.String())
}

func TestFetch_NoPriceResults(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantStock     bool
		wantFootprint bool
	}{
		{
			name: "two matching records",
			body: `{"code":200,"result":{"data":[
				{"number":"C1","stock":1,"package":"0402","price":[[1,0.1]]},
				{"number":"C1","stock":2,"package":"0402","price":[[1,0.2]]}]}}`,
		},
		{
			name: "no records",
			body: `{"code":200,"result":{"data":[]}}`,
		},
		{
			name: "mismatched identity",
			body: `{"code":200,"result":{"data":[{"number":"C10","stock":1,"package":"0402","price":[[1,0.1]]}]}}`,
		},
		{
			name:          "empty price list",
			body:          `{"code":200,"result":{"data":[{"number":"C1","stock":0,"package":"0402","price":[]}]}}`,
			wantStock:     true,
			wantFootprint: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := &catalog{bodies: []string{tt.body}}
			c, rec := newTestClient(t, cat, nil)

			q, err := c.Fetch(context.Background(), "C1", creds)
			require.NoError(t, err, "no-price outcomes are not errors")
			assert.Nil(t, q.Price)
			assert.Equal(t, tt.wantStock, q.InStock != nil)
			assert.Equal(t, tt.wantFootprint, q.Footprint != nil)
			assert.Equal(t, 1, cat.Calls())
			assert.Equal(t, 1, rec.count(testThrottle))
		})
	}
}

func TestFetch_RateLimitRetryBound(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "code in payload", body: `{"code":429,"msg":"Too Many Requests"}`},
		{name: "text marker", body: `You have exceeded the maximum number of attempts.`},
		{name: "http status", body: `{}`, status: http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := &catalog{bodies: []string{tt.body}, status: tt.status}
			c, rec := newTestClient(t, cat, nil)

			q, err := c.Fetch(context.Background(), "C1", creds)
			assert.ErrorIs(t, err, ErrRateLimited)
			assert.True(t, q.Empty())
			assert.Equal(t, 4, cat.Calls(), "one attempt plus three retries")
			assert.Equal(t, 3, rec.count(testBackoff))
			assert.Equal(t, 4, rec.count(testThrottle))
		})
	}
}

func TestFetch_RateLimitThenSuccess(t *testing.T) {
	cat := &catalog{bodies: []string{`{"code":429}`, cleanBody}}
	c, rec := newTestClient(t, cat, nil)

	q, err := c.Fetch(context.Background(), "C25804", creds)
	require.NoError(t, err)
	require.NotNil(t, q.Price)
	assert.Equal(t, 2, cat.Calls())
	assert.Equal(t, 1, rec.count(testBackoff))
}

func TestFetch_ZeroRetries(t *testing.T) {
	cat := &catalog{bodies: []string{`{"code":429}`}}
	c, rec := newTestClient(t, cat, nil)
	c.MaxRetries = 0

	_, err := c.Fetch(context.Background(), "C1", creds)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, cat.Calls())
	assert.Equal(t, 0, rec.count(testBackoff))
}

func TestFetch_Malformed(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		status      int
		wantGateway bool
	}{
		{name: "bad gateway page", body: `<html><title>502 Bad Gateway</title></html>`, status: http.StatusBadGateway, wantGateway: true},
		{name: "html", body: `<html>maintenance</html>`},
		{name: "null result", body: `{"code":200,"result":null}`},
		{name: "data is object", body: `{"code":200,"result":{"data":{}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := &catalog{bodies: []string{tt.body}, status: tt.status}
			c, rec := newTestClient(t, cat, nil)

			q, err := c.Fetch(context.Background(), "C1", creds)
			assert.ErrorIs(t, err, ErrMalformedResponse)
			assert.True(t, q.Empty())
			assert.Equal(t, 1, cat.Calls(), "malformed responses are not retried")
			if tt.wantGateway {
				assert.Equal(t, 1, rec.count(testGateway))
			} else {
				assert.Equal(t, 0, rec.count(testGateway))
			}
			assert.Equal(t, 1, rec.count(testThrottle))
		})
	}
}

func TestFetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	rec := &recorder{}
	c := NewClient(currency.NewConverter(currency.FixedRate(decimal.NewFromInt(1))),
		WithSearchURL(url), WithSleeper(rec.Sleep))

	q, err := c.Fetch(context.Background(), "C1", creds)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.True(t, q.Empty())
	assert.Equal(t, 1, rec.count(DefaultThrottle))
}

type failingProvider struct{}

func (failingProvider) Rate(context.Context) (decimal.Decimal, error) {
	return decimal.Zero, currency.ErrRateUnavailable
}

func TestFetch_RateUnavailable(t *testing.T) {
	cat := &catalog{bodies: []string{cleanBody}}
	c, _ := newTestClient(t, cat, currency.NewConverter(failingProvider{}))

	q, err := c.Fetch(context.Background(), "C25804", creds)
	assert.ErrorIs(t, err, currency.ErrRateUnavailable)
	assert.True(t, q.Empty(), "no partial price when the rate is missing")
}

func TestFetch_CanceledDuringBackoff(t *testing.T) {
	cat := &catalog{bodies: []string{`{"code":429}`}}
	c, _ := newTestClient(t, cat, nil)

	ctx, cancel := context.WithCancel(context.Background())
	c.Sleep = func(_ context.Context, d time.Duration) error {
		if d == testBackoff {
			cancel()
			return context.Canceled
		}
		return nil
	}

	_, err := c.Fetch(ctx, "C1", creds)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, cat.Calls())
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestTruncate(t *testing.T) {
	short := "ok"
	assert.Equal(t, short, truncate(short))

	// A three-byte rune straddles the cut.
	body := strings.Repeat("a", maxLoggedBody-1) + "€" + "tail"
	got := truncate(body)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", maxLoggedBody-1)+"...", got)
}
