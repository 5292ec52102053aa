package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"
)

// Lookup outcomes reported to the Recorder.
const (
	ResultHit          = "hit"
	ResultMiss         = "miss"
	ResultStale        = "stale"
	ResultRefreshError = "refresh_error"
)

// DefaultTTL is the freshness window when Options.TTL is zero.
const DefaultTTL = 6 * time.Hour

// Recorder observes lookup outcomes.
type Recorder interface {
	CacheLookup(result string)
}

// FetchFunc produces a fresh value for key.
type FetchFunc[T any] func(ctx context.Context, key string) (T, error)

// Result is a value served by the cache.
type Result[T any] struct {
	Value     T
	FetchedAt time.Time
	Stale     bool
	Warning   string
}

// Options configure a Cache.
type Options struct {
	TTL            time.Duration
	Background     bool          // serve expired entries immediately and refresh asynchronously
	RefreshTimeout time.Duration // bounds background refreshes (default: 2m)
	Logger         *slog.Logger
	Recorder       Recorder
	Now            func() time.Time
}

// Cache serves values of type T from a Store, refreshing them with a FetchFunc.
type Cache[T any] struct {
	store Store
	fetch FetchFunc[T]
	opts  Options

	group singleflight.Group

	mu        sync.Mutex
	inflight  map[string]bool
	onRefresh []func(key string, r Result[T])
	wg        sync.WaitGroup
}

// New creates a Cache.
func New[T any](store Store, fetch FetchFunc[T], opts Options) *Cache[T] {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 2 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache[T]{
		store:    store,
		fetch:    fetch,
		opts:     opts,
		inflight: make(map[string]bool),
	}
}

// OnRefresh registers fn to run after every successful refresh.
func (c *Cache[T]) OnRefresh(fn func(key string, r Result[T])) {
	c.mu.Lock()
	c.onRefresh = append(c.onRefresh, fn)
	c.mu.Unlock()
}

// Get returns the value for key.
//
// A fresh entry is served directly. An expired entry is either served
// immediately while a background refresh runs, or refreshed in place; a
// failed refresh falls back to the expired entry with Stale set. Without any
// stored entry a failed fetch is returned as an error.
func (c *Cache[T]) Get(ctx context.Context, key string) (Result[T], error) {
	cached, ok := c.load(ctx, key)

	if ok && c.opts.Now().Sub(cached.FetchedAt) < c.opts.TTL {
		c.record(ResultHit)
		return cached, nil
	}

	if ok && c.opts.Background {
		c.record(ResultStale)
		c.refreshAsync(ctx, key)
		cached.Stale = true
		cached.Warning = fmt.Sprintf("cached data from %s is older than %s; refreshing in background",
			cached.FetchedAt.UTC().Format(time.RFC3339), c.opts.TTL)
		return cached, nil
	}

	if !ok {
		c.record(ResultMiss)
	}

	fresh, err := c.Refresh(ctx, key)
	if err == nil {
		return fresh, nil
	}
	if !ok {
		return Result[T]{}, err
	}

	c.record(ResultStale)
	c.opts.Logger.Warn("serving stale cache entry",
		"key", key,
		"fetched_at", cached.FetchedAt,
		"error", err,
	)
	cached.Stale = true
	cached.Warning = fmt.Sprintf("refresh failed (%v); serving cached data from %s",
		err, cached.FetchedAt.UTC().Format(time.RFC3339))
	return cached, nil
}

// Refresh fetches key now, stores it and notifies OnRefresh hooks.
// Concurrent refreshes of the same key share one fetch.
func (c *Cache[T]) Refresh(ctx context.Context, key string) (Result[T], error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		value, err := c.fetch(ctx, key)
		if err != nil {
			return nil, err
		}

		payload, err := msgpack.Marshal(&value)
		if err != nil {
			return nil, fmt.Errorf("encode value: %w", err)
		}

		r := Result[T]{Value: value, FetchedAt: c.opts.Now().UTC()}
		if err := c.store.Save(ctx, key, Entry{FetchedAt: r.FetchedAt, Payload: payload}); err != nil {
			// The value is still good; it just will not survive a restart.
			c.opts.Logger.Warn("failed to save cache entry", "key", key, "error", err)
		}

		c.notify(key, r)
		return r, nil
	})
	if err != nil {
		c.record(ResultRefreshError)
		return Result[T]{}, fmt.Errorf("refresh %s: %w", key, err)
	}
	return v.(Result[T]), nil
}

// Wait blocks until background refreshes finish.
func (c *Cache[T]) Wait() {
	c.wg.Wait()
}

func (c *Cache[T]) refreshAsync(ctx context.Context, key string) {
	c.mu.Lock()
	if c.inflight[key] {
		c.mu.Unlock()
		return
	}
	c.inflight[key] = true
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.inflight, key)
			c.mu.Unlock()
		}()

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.RefreshTimeout)
		defer cancel()

		if _, err := c.Refresh(rctx, key); err != nil {
			c.opts.Logger.Warn("background refresh failed", "key", key, "error", err)
		}
	}()
}

func (c *Cache[T]) load(ctx context.Context, key string) (Result[T], bool) {
	e, ok, err := c.store.Load(ctx, key)
	if err != nil {
		c.opts.Logger.Warn("failed to load cache entry", "key", key, "error", err)
		return Result[T]{}, false
	}
	if !ok {
		return Result[T]{}, false
	}

	var value T
	if err := msgpack.Unmarshal(e.Payload, &value); err != nil {
		c.opts.Logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		return Result[T]{}, false
	}
	return Result[T]{Value: value, FetchedAt: e.FetchedAt}, true
}

func (c *Cache[T]) notify(key string, r Result[T]) {
	c.mu.Lock()
	hooks := append([]func(string, Result[T]){}, c.onRefresh...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(key, r)
	}
}

func (c *Cache[T]) record(result string) {
	if c.opts.Recorder != nil {
		c.opts.Recorder.CacheLookup(result)
	}
}

// ErrNoEntry reports that nothing has been cached for a key.
var ErrNoEntry = errors.New("no cached entry")

// Peek returns the stored value for key without fetching.
func (c *Cache[T]) Peek(ctx context.Context, key string) (Result[T], error) {
	r, ok := c.load(ctx, key)
	if !ok {
		return Result[T]{}, ErrNoEntry
	}
	r.Stale = c.opts.Now().Sub(r.FetchedAt) >= c.opts.TTL
	return r, nil
}
