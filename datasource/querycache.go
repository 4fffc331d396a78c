package datasource

import (
	"context"
	"log/slog"

	"github.com/goliatone/go-graph-datasource/cache"
	"github.com/goliatone/go-graph-datasource/query"
)

// QueryCache runs queries through an Executor and keeps their rows in a
// KeyValueCache under the query fingerprint. The cache is advisory: every
// cache failure degrades to a live execution.
type QueryCache struct {
	exec   query.Executor
	store  cache.KeyValueCache
	keys   cache.Fingerprinter
	codec  cache.Codec
	logger *slog.Logger
}

// Option configures a QueryCache.
type Option func(*QueryCache)

// WithFingerprinter replaces the default fingerprinter. Use a namespaced
// fingerprinter when several applications share one remote store.
func WithFingerprinter(f cache.Fingerprinter) Option {
	return func(c *QueryCache) {
		if f != nil {
			c.keys = f
		}
	}
}

// WithCodec replaces the JSON codec used for cached rows. Every reader of a
// store must use the same codec; entries that fail to decode count as misses.
func WithCodec(codec cache.Codec) Option {
	return func(c *QueryCache) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithLogger sets the logger. Hits and misses are logged at debug level,
// swallowed cache failures at warn level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *QueryCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewQueryCache wraps exec. A nil store disables caching.
func NewQueryCache(exec query.Executor, store cache.KeyValueCache, opts ...Option) *QueryCache {
	c := &QueryCache{
		exec:   exec,
		store:  store,
		keys:   cache.NewFingerprinter(),
		codec:  cache.JSONCodec{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type queryOptions struct {
	useCache bool
}

// QueryOption configures a single Query call.
type QueryOption func(*queryOptions)

// WithoutCache skips both the cache lookup and the cache write.
func WithoutCache() QueryOption {
	return func(o *queryOptions) { o.useCache = false }
}

// Execute implements query.Executor with the cache enabled, so a QueryCache
// can stand in wherever an Executor is expected.
func (c *QueryCache) Execute(ctx context.Context, q query.Query) ([]any, error) {
	return c.Query(ctx, q)
}

// Fingerprint returns the cache key used for q. Queries that differ only in
// the order of their bind variables share a key.
func (c *QueryCache) Fingerprint(q query.Query) string {
	return c.keys.Fingerprint(q)
}

// Query returns the rows for q, from the cache when possible. Executor errors
// are returned unchanged; cache errors never are.
func (c *QueryCache) Query(ctx context.Context, q query.Query, opts ...QueryOption) ([]any, error) {
	o := queryOptions{useCache: true}
	for _, opt := range opts {
		opt(&o)
	}

	if !o.useCache || c.store == nil {
		return c.exec.Execute(ctx, q)
	}

	key := c.Fingerprint(q)
	if rows, ok := c.cached(ctx, key); ok {
		return rows, nil
	}

	rows, err := c.exec.Execute(ctx, q)
	if err != nil {
		return nil, err
	}

	// empty results are not worth an entry
	if len(rows) > 0 {
		c.save(ctx, key, rows)
	}

	return rows, nil
}

func (c *QueryCache) cached(ctx context.Context, key string) ([]any, bool) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("query cache get failed", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	if !ok {
		c.logger.Debug("query cache miss", slog.String("key", key))
		return nil, false
	}

	var rows []any
	if err := c.codec.Unmarshal(data, &rows); err != nil {
		c.logger.Warn("query cache entry unreadable", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	if rows == nil {
		return nil, false
	}

	c.logger.Debug("query cache hit", slog.String("key", key), slog.Int("rows", len(rows)))
	return rows, true
}

func (c *QueryCache) save(ctx context.Context, key string, rows []any) {
	data, err := c.codec.Marshal(rows)
	if err != nil {
		c.logger.Warn("query cache encode failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	if err := c.store.Set(ctx, key, data); err != nil {
		c.logger.Warn("query cache set failed", slog.String("key", key), slog.Any("error", err))
	}
}
