// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package netlist reads KiCad generic netlists and groups their components
// into BOM lines.
package netlist
