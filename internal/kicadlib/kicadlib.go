// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package kicadlib

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/staranto/bomprice/internal/cacheutil"
	"github.com/staranto/bomprice/internal/partcache"
)

const (
	partFieldName  = `"LCSC Part #"`
	priceFieldName = `"Price"`
	// A symbol field line has exactly this many columns.
	fieldColumns = 10
	backupLayout = "20060102_150405"
)

var ErrMissingFile = errors.New("library file not found")

// fieldRe splits a field line on whitespace, keeping quoted strings whole.
var fieldRe = regexp.MustCompile(`(?:".*?"|\S)+`)

// Resolver prices a single part number.
type Resolver interface {
	Resolve(ctx context.Context, partNumber string) (partcache.Quote, error)
}

// Stats describes what a patch run did.
type Stats struct {
	Symbols int
	Priced  int
	// Symbols without an LCSC part number field.
	Unnumbered []string
	// Part numbers that resolved without a price.
	Unpriced []string
}

// Paths returns the .lib and .dcm paths for a library given either path or
// the path without extension.
func Paths(path string) (lib string, dcm string) {
	root := strings.TrimSuffix(path, ".lib")
	return root + ".lib", root + ".dcm"
}

// CheckFiles verifies that both library files exist.
func CheckFiles(path string) error {
	lib, dcm := Paths(path)
	for _, p := range []string{lib, dcm} {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: %s", ErrMissingFile, p)
			}
			return err
		}
		if info.IsDir() {
			return fmt.Errorf("%w: %s is a directory", ErrMissingFile, p)
		}
	}
	return nil
}

// SplitFields splits a field line into columns, quoted strings intact.
func SplitFields(line string) []string {
	return fieldRe.FindAllString(line, -1)
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// Patch reads a legacy KiCad symbol library from r and returns its lines with
// every symbol's "Price" field set from res. Symbols lacking an LCSC part
// number are left untouched. Trailing whitespace is trimmed from all lines.
func Patch(ctx context.Context, r io.Reader, res Resolver) ([]string, Stats, error) {
	var (
		stats  Stats
		out    []string
		symbol string
		inDef  bool
		fields []string
	)

	flush := func() error {
		patched, err := patchFields(ctx, symbol, fields, res, &stats)
		if err != nil {
			return err
		}
		out = append(out, patched...)
		fields = nil
		return nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")

		switch {
		case !inDef:
			if strings.HasPrefix(line, "DEF") {
				inDef = true
				symbol = ""
				if cols := strings.Fields(line); len(cols) > 1 {
					symbol = cols[1]
				}
				stats.Symbols++
				log.Debugf("symbol %s", symbol)
			}
			out = append(out, line)
		case fields != nil && strings.HasPrefix(line, "F"):
			fields = append(fields, line)
		case fields == nil && strings.HasPrefix(line, "F0"):
			fields = []string{line}
		default:
			if fields != nil {
				if err := flush(); err != nil {
					return nil, stats, err
				}
			}
			if strings.HasPrefix(line, "ENDDEF") {
				inDef = false
			}
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, stats, err
	}
	if fields != nil {
		if err := flush(); err != nil {
			return nil, stats, err
		}
	}

	return out, stats, nil
}

func patchFields(ctx context.Context, symbol string, fields []string, res Resolver, stats *Stats) ([]string, error) {
	partNo := ""
	priceIdx := -1
	for i, f := range fields {
		cols := SplitFields(f)
		if len(cols) != fieldColumns {
			continue
		}
		switch cols[9] {
		case partFieldName:
			partNo = unquote(cols[1])
		case priceFieldName:
			priceIdx = i
		}
	}

	if partNo == "" {
		log.WithField("symbol", symbol).Warn(`no "LCSC Part #" field`)
		stats.Unnumbered = append(stats.Unnumbered, symbol)
		return fields, nil
	}

	q, err := res.Resolve(ctx, partNo)
	if err != nil {
		return nil, err
	}
	if q.Price == nil {
		log.WithFields(log.Fields{"symbol": symbol, "part": partNo}).Warn("no price, field left as is")
		stats.Unpriced = append(stats.Unpriced, partNo)
		return fields, nil
	}

	price := fmt.Sprintf("%q", q.Price.StringFixed(4))
	if priceIdx >= 0 {
		cols := SplitFields(fields[priceIdx])
		cols[1] = price
		fields[priceIdx] = strings.Join(cols, " ")
	} else {
		fields = append(fields, fmt.Sprintf(`F%d %s 0 0 50 H I C CNN %s`, len(fields), price, priceFieldName))
	}
	stats.Priced++
	return fields, nil
}

// BackupPath names the backup taken before a library is rewritten.
func BackupPath(lib string, now time.Time) string {
	return fmt.Sprintf("%s.bak_%s", lib, now.Format(backupLayout))
}

// PatchFile updates the Price fields of the library at path in place, after
// copying the original to a timestamped backup. It returns the run's stats and
// the backup path.
func PatchFile(ctx context.Context, path string, res Resolver, now time.Time) (Stats, string, error) {
	if err := CheckFiles(path); err != nil {
		return Stats{}, "", err
	}
	lib, _ := Paths(path)

	original, err := os.ReadFile(lib)
	if err != nil {
		return Stats{}, "", err
	}

	lines, stats, err := Patch(ctx, bytes.NewReader(original), res)
	if err != nil {
		return stats, "", err
	}

	info, err := os.Stat(lib)
	if err != nil {
		return stats, "", err
	}

	backup := BackupPath(lib, now)
	if err := cacheutil.WriteFile(backup, original, info.Mode().Perm()); err != nil {
		return stats, "", fmt.Errorf("failed to write backup: %w", err)
	}

	patched := []byte(strings.Join(lines, "\n") + "\n")
	if err := cacheutil.WriteFile(lib, patched, info.Mode().Perm()); err != nil {
		return stats, backup, fmt.Errorf("failed to write library: %w", err)
	}

	log.Infof("patched %s: %d of %d symbols priced", lib, stats.Priced, stats.Symbols)
	return stats, backup, nil
}
