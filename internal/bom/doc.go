// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package bom writes a priced bill of materials, one CSV line per group of
// equivalent components.
package bom
