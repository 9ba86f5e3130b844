// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// bomprice is the main package for the bomprice command line tool. It prices
// LCSC parts for KiCad projects, wires the CLI and delegates to internal
// packages.
package main
