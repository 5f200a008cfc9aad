// Package cache puts a Redis read-through cache in front of a Store. Cached
// values are the records' canonical binary encoding, so a hit decodes with
// the same codec and id check as a read from the data file.
package cache

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/codec"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/entity"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Academic-Graph-Store/pkg/redis"
)

const keyPrefix = "graphstore:"

// KV is the subset of the Redis client the cache needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type RecordCache[T any] struct {
	client  KV
	store   *store.Store[T]
	codec   codec.Codec[T]
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
}

// New wraps s. m may be nil.
func New[T any](client KV, s *store.Store[T], ttl time.Duration, m *metrics.Metrics) *RecordCache[T] {
	return &RecordCache[T]{
		client:  client,
		store:   s,
		codec:   s.Codec(),
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "record-cache", "kind", s.Kind()),
	}
}

func (c *RecordCache[T]) kind() entity.Kind {
	return c.store.Kind()
}

// KeyPattern matches every cached record of kind.
func KeyPattern(kind entity.Kind) string {
	return keyPrefix + string(kind) + ":*"
}

func (c *RecordCache[T]) key(id uint64) string {
	return keyPrefix + string(c.kind()) + ":" + strconv.FormatUint(id, 10)
}

func (c *RecordCache[T]) get(ctx context.Context, id uint64) (T, bool) {
	var zero T
	key := c.key(id)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return zero, false
	}
	rec, err := c.codec.Decode(bytes.NewReader(data), id)
	if err != nil {
		c.logger.Warn("evicting undecodable cache entry", "key", key, "error", err)
		if err := c.client.Del(ctx, key); err != nil {
			c.logger.Error("cache delete failed", "key", key, "error", err)
		}
		return zero, false
	}
	return rec, true
}

func (c *RecordCache[T]) set(ctx context.Context, id uint64, rec T) {
	key := c.key(id)
	data, err := codec.Encode(c.codec, rec)
	if err != nil {
		c.logger.Error("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// Lookup returns the record for id from the cache or, on a miss, from the
// store, filling the cache. Concurrent misses for one id share a single store
// read. The bool reports a cache hit. Cache failures degrade to store reads.
func (c *RecordCache[T]) Lookup(ctx context.Context, id uint64) (T, bool, error) {
	if rec, ok := c.get(ctx, id); ok {
		c.hit()
		return rec, true, nil
	}
	c.miss()
	val, err, _ := c.group.Do(c.key(id), func() (any, error) {
		if rec, ok := c.get(ctx, id); ok {
			return rec, nil
		}
		rec, err := c.store.Lookup(id)
		if err != nil {
			return nil, err
		}
		c.set(ctx, id, rec)
		return rec, nil
	})
	c.observe(err)
	if err != nil {
		var zero T
		return zero, false, err
	}
	return val.(T), false, nil
}

// Invalidate drops every cached record of kind and reports how many keys
// went. It must run after the kind's store is rebuilt.
func Invalidate(ctx context.Context, client KV, kind entity.Kind) (int64, error) {
	deleted, err := client.FlushByPattern(ctx, KeyPattern(kind))
	if err != nil {
		return 0, fmt.Errorf("invalidating %s cache: %w", kind, err)
	}
	return deleted, nil
}

func (c *RecordCache[T]) hit() {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.observe(nil)
}

func (c *RecordCache[T]) miss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *RecordCache[T]) observe(err error) {
	if c.metrics != nil {
		c.metrics.ObserveLookup(string(c.kind()), err)
	}
}
