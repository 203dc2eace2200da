// Package querycache caches query results by key and supports optimistic writes that are
// restored verbatim when the backend rejects the change.
//
// Values are stored JSON-encoded so the in-memory and redis backends behave the same.
// Two mutations racing on one key can overwrite each other's rollback baseline; callers
// serialize saves per record instead.
package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Key identifies a query, e.g. {"providers"} or {"provider", id}.
type Key []string

func (k Key) String() string { return strings.Join(k, ":") }

// Backend stores raw encoded values.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

type Cache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	logger  *zap.Logger
	onHit   func()
	onMiss  func()
}

type Option func(*Cache)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithLookupHooks reports hits and misses, used for metrics.
func WithLookupHooks(hit, miss func()) Option {
	return func(c *Cache) {
		c.onHit = hit
		c.onMiss = miss
	}
}

func New(backend Backend, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		backend: backend,
		ttl:     ttl,
		logger:  zap.NewNop(),
		onHit:   func() {},
		onMiss:  func() {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get decodes the cached value for key into target.
func (c *Cache) Get(ctx context.Context, key Key, target any) (bool, error) {
	raw, ok, err := c.backend.Get(ctx, key.String())
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if !ok {
		c.onMiss()
		return false, nil
	}
	c.onHit()
	if err := json.Unmarshal(raw, target); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key Key, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.backend.Set(ctx, key.String(), raw, c.ttl); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete drops the given queries so the next read goes to the backend.
func (c *Cache) Delete(ctx context.Context, keys ...Key) error {
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, key.String())
	}
	if len(names) == 0 {
		return nil
	}
	if err := c.backend.Delete(ctx, names...); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// Invalidate drops every query whose key starts with prefix.
func (c *Cache) Invalidate(ctx context.Context, prefix Key) error {
	if err := c.backend.DeletePrefix(ctx, prefix.String()); err != nil {
		return fmt.Errorf("cache invalidate %s*: %w", prefix, err)
	}
	return nil
}

// Fetch returns the cached value or loads it once, however many callers ask concurrently.
func (c *Cache) Fetch(ctx context.Context, key Key, target any, load func(context.Context) (any, error)) error {
	if ok, err := c.Get(ctx, key, target); err != nil {
		c.logger.Warn("cache read failed, loading from backend", zap.String("key", key.String()), zap.Error(err))
	} else if ok {
		return nil
	}

	raw, err, _ := c.group.Do(key.String(), func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		if err := c.backend.Set(ctx, key.String(), encoded, c.ttl); err != nil {
			c.logger.Warn("cache write failed", zap.String("key", key.String()), zap.Error(err))
		}
		return encoded, nil
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw.([]byte), target); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Snapshot is the raw state of one key, absent keys included.
type Snapshot struct {
	key     string
	raw     []byte
	present bool
}

func (c *Cache) Snapshot(ctx context.Context, key Key) (Snapshot, error) {
	raw, ok, err := c.backend.Get(ctx, key.String())
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %s: %w", key, err)
	}
	return Snapshot{key: key.String(), raw: raw, present: ok}, nil
}

// Restore puts a key back exactly as it was captured.
func (c *Cache) Restore(ctx context.Context, snap Snapshot) error {
	if !snap.present {
		return c.backend.Delete(ctx, snap.key)
	}
	return c.backend.Set(ctx, snap.key, snap.raw, c.ttl)
}

// Optimistic snapshots keys, applies the local cache writes, then runs commit against the
// backend. If commit fails every snapshot is restored and the commit error is returned
// unchanged. A cache that cannot be snapshotted or written does not block the commit: it runs
// without the optimistic writes and the keys are dropped afterwards.
func (c *Cache) Optimistic(ctx context.Context, keys []Key, apply, commit func(context.Context) error) error {
	snapshots, err := c.snapshotAll(ctx, keys)
	if err == nil {
		if err = apply(ctx); err != nil {
			c.rollback(ctx, snapshots)
		}
	}
	if err != nil {
		c.logger.Warn("optimistic cache update skipped", zap.Error(err))
		if err := commit(ctx); err != nil {
			return err
		}
		c.forget(ctx, keys)
		return nil
	}

	if err := commit(ctx); err != nil {
		c.rollback(ctx, snapshots)
		return err
	}
	return nil
}

func (c *Cache) snapshotAll(ctx context.Context, keys []Key) ([]Snapshot, error) {
	snapshots := make([]Snapshot, 0, len(keys))
	for _, key := range keys {
		snap, err := c.Snapshot(ctx, key)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// forget drops keys so the next read goes to the backend.
func (c *Cache) forget(ctx context.Context, keys []Key) {
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, key.String())
	}
	if err := c.backend.Delete(ctx, names...); err != nil {
		c.logger.Warn("cache delete failed", zap.Strings("keys", names), zap.Error(err))
	}
}

func (c *Cache) rollback(ctx context.Context, snapshots []Snapshot) {
	var errs []error
	for _, snap := range snapshots {
		if err := c.Restore(ctx, snap); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", snap.key, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		c.logger.Error("optimistic rollback incomplete", zap.Error(err))
	}
}

// Mutate rewrites one cached value in place. fn receives the decoded current value (zero
// when absent) and reports whether anything should be written.
func Mutate[T any](ctx context.Context, c *Cache, key Key, fn func(current T, present bool) (T, bool)) error {
	var current T
	present, err := c.Get(ctx, key, &current)
	if err != nil {
		return err
	}
	next, write := fn(current, present)
	if !write {
		return nil
	}
	return c.Set(ctx, key, next)
}
