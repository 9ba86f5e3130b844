// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package lcsc

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/apex/log"
	"resty.dev/v3"
)

// DefaultSessionURL is any catalog page that embeds the CSRF token.
const DefaultSessionURL = "https://lcsc.com/products/Pre-ordered-Products_11171.html"

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/83.0.4103.116 Safari/537.36"

var ErrNoToken = errors.New("no CSRF token in catalog page")

var tokenRe = regexp.MustCompile(`'X-CSRF-TOKEN':\s*'([^']*)'`)

// ExtractToken pulls the CSRF token out of a catalog page.
func ExtractToken(page string) (string, bool) {
	m := tokenRe.FindStringSubmatch(page)
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// NewSession loads a catalog page and returns the credentials that later
// search requests must present.
func NewSession(ctx context.Context, url string) (Credentials, error) {
	if url == "" {
		url = DefaultSessionURL
	}

	client := resty.New()
	defer client.Close()

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("user-agent", userAgent).
		Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return Credentials{}, ctx.Err()
		}
		return Credentials{}, fmt.Errorf("failed to load %s: %v: %w", url, err, ErrUnreachable)
	}

	token, ok := ExtractToken(resp.String())
	if !ok {
		return Credentials{}, fmt.Errorf("%s (status %d): %w", url, resp.StatusCode(), ErrNoToken)
	}
	log.Debugf("session token: %.8s...", token)

	return Credentials{Token: token, Cookies: resp.Cookies()}, nil
}
