// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package partcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/staranto/bomprice/internal/cacheutil"
)

// DefaultFileName is the cache file created beneath cacheutil.Dir().
const DefaultFileName = "lcsc_part_cache.json"

const emptyDocument = `{"data":{}}`

// FileStore keeps every entry in one JSON document:
//
//	{"last_written": "...", "data": {"C25804": {"updated_at": "...", "data": {...}}}}
//
// Each call opens, reads or rewrites, and closes the file; no handle is held
// between calls so separate runs of the tool can share it.
type FileStore struct {
	Path string
	TTL  time.Duration
	// Now is the clock used for timestamps and TTL checks.
	Now func() time.Time

	mu sync.Mutex
}

func NewFileStore(path string, ttl time.Duration) *FileStore {
	if path == "" {
		path = cacheutil.FilePath(DefaultFileName)
	}
	return &FileStore{Path: path, TTL: ttl, Now: time.Now}
}

func (s *FileStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// load returns the raw document, or nil if the file does not exist yet.
func (s *FileStore) load() ([]byte, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read part cache %s: %w", s.Path, err)
	}
	if !gjson.ValidBytes(b) || !gjson.GetBytes(b, "data").IsObject() {
		return nil, fmt.Errorf("%s: %w", s.Path, ErrCorrupt)
	}
	return b, nil
}

func (s *FileStore) save(b []byte) error {
	b, err := sjson.SetBytes(b, "last_written", s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to stamp part cache: %w", err)
	}
	return cacheutil.WriteFile(s.Path, b, 0o600) //nolint:mnd
}

func keyPath(partNumber string) string {
	return "data." + gjson.Escape(partNumber)
}

func decodeEntry(partNumber, raw string) (Entry, error) {
	if !gjson.Parse(raw).IsObject() {
		return Entry{}, fmt.Errorf("entry %s is not an object: %w", partNumber, ErrCorrupt)
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Entry{}, fmt.Errorf("entry %s: %v: %w", partNumber, err, ErrCorrupt)
	}
	e.PartNumber = partNumber
	return e, nil
}

func (s *FileStore) Get(_ context.Context, partNumber string) (Quote, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.load()
	if err != nil || b == nil {
		return Quote{}, false, err
	}

	// Only the one entry is decoded, not the whole mapping.
	raw := gjson.GetBytes(b, keyPath(partNumber))
	if !raw.Exists() {
		log.Debugf("cache miss: %s", partNumber)
		return Quote{}, false, nil
	}

	e, err := decodeEntry(partNumber, raw.Raw)
	if err != nil {
		return Quote{}, false, err
	}

	// Stale entries stay put; the next Put overwrites them.
	if expired(e.UpdatedAt, s.now(), s.TTL) {
		log.Debugf("cache stale: %s updated %s", partNumber, e.UpdatedAt)
		return Quote{}, false, nil
	}

	log.Debugf("cache hit: %s", partNumber)
	return e.Quote, true, nil
}

func (s *FileStore) Put(_ context.Context, partNumber string, q Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.load()
	if err != nil {
		return err
	}
	if b == nil {
		b = []byte(emptyDocument)
	}

	entry, err := json.Marshal(Entry{UpdatedAt: s.now().UTC(), Quote: q})
	if err != nil {
		return fmt.Errorf("failed to encode entry %s: %w", partNumber, err)
	}

	b, err = sjson.SetRawBytes(b, keyPath(partNumber), entry)
	if err != nil {
		return fmt.Errorf("failed to set entry %s: %w", partNumber, err)
	}

	return s.save(b)
}

// Entries lists every entry, stale or not, ordered by part number.
func (s *FileStore) Entries(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.load()
	if err != nil || b == nil {
		return nil, err
	}

	var entries []Entry
	var decodeErr error
	gjson.GetBytes(b, "data").ForEach(func(key, value gjson.Result) bool {
		e, err := decodeEntry(key.String(), value.Raw)
		if err != nil {
			decodeErr = err
			return false
		}
		entries = append(entries, e)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].PartNumber < entries[j].PartNumber
	})
	return entries, nil
}

// Prune removes entries last written more than maxAge ago and returns how
// many went. A maxAge <= 0 is a no-op.
func (s *FileStore) Prune(_ context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		log.Debug("cache pruning disabled")
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.load()
	if err != nil || b == nil {
		return 0, err
	}

	now := s.now()
	var stale []string
	gjson.GetBytes(b, "data").ForEach(func(key, value gjson.Result) bool {
		if now.Sub(value.Get("updated_at").Time()) > maxAge {
			stale = append(stale, key.String())
		}
		return true
	})
	if len(stale) == 0 {
		return 0, nil
	}

	for _, pn := range stale {
		if b, err = sjson.DeleteBytes(b, keyPath(pn)); err != nil {
			return 0, fmt.Errorf("failed to delete entry %s: %w", pn, err)
		}
		log.Debugf("pruned cache entry %s", pn)
	}

	if err := s.save(b); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// Clear removes the cache file.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove part cache: %w", err)
	}
	return nil
}
