// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package partcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces part entries in a shared Redis.
const DefaultRedisPrefix = "bomprice:part:"

// RedisStore keeps one key per part number in Redis, for teams that want a
// cache shared between machines. Keys carry no Redis expiry; the TTL is
// applied on read, same as FileStore.
type RedisStore struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
	Now    func() time.Time
}

// NewRedisStore connects to the given redis:// URL.
func NewRedisStore(url string, ttl time.Duration) (*RedisStore, error) {
	if url == "" {
		url = "redis://localhost:6379"
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return &RedisStore{
		Client: redis.NewClient(opts),
		Prefix: DefaultRedisPrefix,
		TTL:    ttl,
		Now:    time.Now,
	}, nil
}

func (s *RedisStore) key(partNumber string) string {
	return s.Prefix + partNumber
}

func (s *RedisStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *RedisStore) Get(ctx context.Context, partNumber string) (Quote, bool, error) {
	raw, err := s.Client.Get(ctx, s.key(partNumber)).Result()
	if errors.Is(err, redis.Nil) {
		return Quote{}, false, nil
	}
	if err != nil {
		return Quote{}, false, fmt.Errorf("failed to read %s from redis: %w", partNumber, err)
	}

	e, err := decodeEntry(partNumber, raw)
	if err != nil {
		return Quote{}, false, err
	}
	if expired(e.UpdatedAt, s.now(), s.TTL) {
		log.Debugf("cache stale: %s updated %s", partNumber, e.UpdatedAt)
		return Quote{}, false, nil
	}
	return e.Quote, true, nil
}

func (s *RedisStore) Put(ctx context.Context, partNumber string, q Quote) error {
	b, err := json.Marshal(Entry{UpdatedAt: s.now().UTC(), Quote: q})
	if err != nil {
		return fmt.Errorf("failed to encode entry %s: %w", partNumber, err)
	}
	if err := s.Client.Set(ctx, s.key(partNumber), b, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s to redis: %w", partNumber, err)
	}
	return nil
}

func (s *RedisStore) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.Client.Scan(ctx, 0, s.Prefix+"*", 0).Iterator() //nolint:mnd
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan redis: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) Entries(ctx context.Context) ([]Entry, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		raw, err := s.Client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s from redis: %w", k, err)
		}
		e, err := decodeEntry(strings.TrimPrefix(k, s.Prefix), raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *RedisStore) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	entries, err := s.Entries(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	removed := 0
	for _, e := range entries {
		if now.Sub(e.UpdatedAt) <= maxAge {
			continue
		}
		if err := s.Client.Del(ctx, s.key(e.PartNumber)).Err(); err != nil {
			return removed, fmt.Errorf("failed to delete %s: %w", e.PartNumber, err)
		}
		removed++
	}
	return removed, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	keys, err := s.keys(ctx)
	if err != nil || len(keys) == 0 {
		return err
	}
	if err := s.Client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear redis cache: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.Client.Close()
}
