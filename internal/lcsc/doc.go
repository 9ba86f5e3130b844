// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package lcsc talks to the LCSC catalog: it opens a session to obtain the
// CSRF token and cookies, then searches for single part numbers and turns the
// result into a price quote.
package lcsc
