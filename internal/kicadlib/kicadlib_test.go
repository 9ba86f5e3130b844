// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package kicadlib

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/bomprice/internal/partcache"
)

type stubResolver map[string]string

func (s stubResolver) Resolve(_ context.Context, pn string) (partcache.Quote, error) {
	price, ok := s[pn]
	if !ok {
		return partcache.Quote{}, nil
	}
	p := decimal.RequireFromString(price)
	return partcache.Quote{Price: &p}, nil
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, string) (partcache.Quote, error) {
	return partcache.Quote{}, partcache.ErrCorrupt
}

func copyLibrary(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, ext := range []string{".lib", ".dcm"} {
		data, err := os.ReadFile(filepath.Join("testdata", "LCSC parts"+ext))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "LCSC parts"+ext), data, 0o644))
	}
	return filepath.Join(dir, "LCSC parts.lib")
}

func TestSplitFields(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{
			line: `F4 "C25804" 0 0 50 H I C CNN "LCSC Part #"`,
			want: []string{"F4", `"C25804"`, "0", "0", "50", "H", "I", "C", "CNN", `"LCSC Part #"`},
		},
		{line: `F3 "" 0 0 50 H I C CNN`, want: []string{"F3", `""`, "0", "0", "50", "H", "I", "C", "CNN"}},
		{line: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitFields(tt.line))
		})
	}
}

func TestPaths(t *testing.T) {
	lib, dcm := Paths("/x/LCSC parts.lib")
	assert.Equal(t, "/x/LCSC parts.lib", lib)
	assert.Equal(t, "/x/LCSC parts.dcm", dcm)

	lib, dcm = Paths("/x/LCSC parts")
	assert.Equal(t, "/x/LCSC parts.lib", lib)
	assert.Equal(t, "/x/LCSC parts.dcm", dcm)
}

func TestCheckFiles(t *testing.T) {
	lib := copyLibrary(t)
	require.NoError(t, CheckFiles(lib))

	_, dcm := Paths(lib)
	require.NoError(t, os.Remove(dcm))
	err := CheckFiles(lib)
	assert.ErrorIs(t, err, ErrMissingFile)
	assert.Contains(t, err.Error(), ".dcm")

	assert.ErrorIs(t, CheckFiles(filepath.Join(t.TempDir(), "nope.lib")), ErrMissingFile)
}

func TestPatch(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "LCSC parts.lib"))
	require.NoError(t, err)
	defer f.Close()

	res := stubResolver{"C7593": "0.12345", "C25804": "0.0246"}
	lines, stats, err := Patch(context.Background(), f, res)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Symbols)
	assert.Equal(t, 2, stats.Priced)
	assert.Equal(t, []string{"LOGO"}, stats.Unnumbered)
	assert.Empty(t, stats.Unpriced)

	text := strings.Join(lines, "\n")
	assert.Contains(t, text, "F4 \"C7593\" 0 0 50 H I C CNN \"LCSC Part #\"\nF5 \"0.1235\" 0 0 50 H I C CNN \"Price\"\nDRAW")
	assert.Contains(t, text, `F5 "0.0246" 0 0 50 H I C CNN "Price"`)
	assert.NotContains(t, text, "9.9999")
	assert.Equal(t, 1, strings.Count(text, `"0.0246"`), "existing field replaced, not duplicated")
	assert.Contains(t, text, "F1 \"LOGO\" 0 0 50 H I C CNN\nDRAW", "unnumbered symbol untouched")
	assert.Equal(t, "#End Library", lines[len(lines)-1])
}

func TestPatch_NoPriceLeavesField(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "LCSC parts.lib"))
	require.NoError(t, err)
	defer f.Close()

	lines, stats, err := Patch(context.Background(), f, stubResolver{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Priced)
	assert.Equal(t, []string{"C7593", "C25804"}, stats.Unpriced)
	assert.Contains(t, strings.Join(lines, "\n"), `F5 "9.9999" 0 0 50 H I C CNN "Price"`)
}

func TestPatch_FieldsAtEndOfInput(t *testing.T) {
	in := "DEF X U 0 40 Y Y 1 F N\nF0 \"U\" 0 0 50 H V C CNN\nF1 \"C1\" 0 0 50 H I C CNN \"LCSC Part #\""
	lines, stats, err := Patch(context.Background(), strings.NewReader(in), stubResolver{"C1": "2"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Priced)
	assert.Equal(t, `F2 "2.0000" 0 0 50 H I C CNN "Price"`, lines[len(lines)-1])
}

func TestPatch_ResolverError(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "LCSC parts.lib"))
	require.NoError(t, err)
	defer f.Close()

	_, _, err = Patch(context.Background(), f, failingResolver{})
	assert.ErrorIs(t, err, partcache.ErrCorrupt)
}

func TestPatchFile(t *testing.T) {
	lib := copyLibrary(t)
	original, err := os.ReadFile(lib)
	require.NoError(t, err)

	now := time.Date(2026, 10, 19, 8, 30, 5, 0, time.UTC)
	stats, backup, err := PatchFile(context.Background(), lib, stubResolver{"C25804": "1"}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Priced)
	assert.Equal(t, lib+".bak_20261019_083005", backup)

	saved, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, original, saved)

	patched, err := os.ReadFile(lib)
	require.NoError(t, err)
	assert.Contains(t, string(patched), `F5 "1.0000" 0 0 50 H I C CNN "Price"`)
}

func TestPatchFile_Missing(t *testing.T) {
	_, _, err := PatchFile(context.Background(), filepath.Join(t.TempDir(), "x.lib"), stubResolver{}, time.Now())
	assert.ErrorIs(t, err, ErrMissingFile)
}
