// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package kicadlib writes current prices into the "Price" field of symbols in
// a legacy (.lib/.dcm) KiCad symbol library.
package kicadlib
