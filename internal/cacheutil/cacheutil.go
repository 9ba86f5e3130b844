// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cacheutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir resolves the base cache directory.
// Precedence:
//  1. BOMPRICE_CACHE_DIR, if set and non-empty
//  2. os.TempDir()
//
// The temp dir default means the cache is shared by every user and run on the
// machine. A miss always falls through to a remote lookup, so that is fine.
func Dir() string {
	if c, ok := os.LookupEnv("BOMPRICE_CACHE_DIR"); ok && c != "" {
		return c
	}
	return os.TempDir()
}

// Enabled returns true unless BOMPRICE_CACHE explicitly disables it ("0"/"false").
func Enabled() bool {
	enabled, _ := os.LookupEnv("BOMPRICE_CACHE")
	return enabled == "" || (enabled != "0" && enabled != "false")
}

// EnsureBaseDir creates the base cache directory if caching is enabled.
// Returns the path, whether it is usable, and an error if creation failed.
func EnsureBaseDir() (string, bool, error) {
	if !Enabled() {
		return "", false, nil
	}
	base := Dir()
	if err := os.MkdirAll(base, 0o755); err != nil { //nolint:mnd
		return base, false, fmt.Errorf("failed to create cache base directory: %w", err)
	}
	return base, true, nil
}

// FilePath returns the absolute path of a named cache file beneath Dir. An
// absolute name is returned untouched.
func FilePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(Dir(), name)
}

// WriteFile replaces path with data via a sibling temp file and a rename, so a
// reader never observes a half-written file.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op once the rename has happened.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
