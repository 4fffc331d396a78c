package di

import (
	"fmt"
	"log/slog"
	"time"

	repository "github.com/goliatone/go-repository-bun"

	"github.com/goliatone/go-graph-datasource/cache"
	"github.com/goliatone/go-graph-datasource/cursor"
	"github.com/goliatone/go-graph-datasource/datasource"
	"github.com/goliatone/go-graph-datasource/loader"
	"github.com/goliatone/go-graph-datasource/manager"
	"github.com/goliatone/go-graph-datasource/query"
)

// Config aggregates the configuration of every component the container builds.
type Config struct {
	Cache  cache.Config
	Loader loader.Config
	Page   cursor.Config
}

// DefaultLoaderWait is the batching window of request loaders built with
// DefaultConfig. Loads issued from separate goroutines within the window
// share one fetch.
const DefaultLoaderWait = 2 * time.Millisecond

// DefaultConfig returns the default configuration of every component.
// Request loaders batch over a DefaultLoaderWait window, which suits
// resolvers that fan out across goroutines. Set Loader.Wait to zero to
// dispatch at the first wait instead.
func DefaultConfig() Config {
	loaderConfig := loader.DefaultConfig()
	loaderConfig.Wait = DefaultLoaderWait

	return Config{
		Cache:  cache.DefaultConfig(),
		Loader: loaderConfig,
		Page:   cursor.DefaultConfig(),
	}
}

// Validate checks every component configuration.
func (c Config) Validate() error {
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Loader.Validate(); err != nil {
		return fmt.Errorf("loader config: %w", err)
	}
	if err := c.Page.Validate(); err != nil {
		return fmt.Errorf("page config: %w", err)
	}
	return nil
}

// Container holds the process wide components: the executor, the result
// cache and its query cache. Request scoped components are built from it
// with NewRequest.
type Container struct {
	exec    query.Executor
	store   cache.KeyValueCache
	codec   cache.Codec
	queries *datasource.QueryCache
	config  Config
	logger  *slog.Logger
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger handed to every component. Requests derive a
// child logger tagged with their id. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithKeyValueCache replaces the in-process sturdyc store, e.g. with a
// shared remote cache.
func WithKeyValueCache(store cache.KeyValueCache) Option {
	return func(c *Container) { c.store = store }
}

// WithCodec sets the codec used for cached rows. Defaults to
// cache.JSONCodec; cache.MsgpackCodec trades readability for size.
func WithCodec(codec cache.Codec) Option {
	return func(c *Container) { c.codec = codec }
}

// NewContainer validates cfg and wires the process wide components around exec.
func NewContainer(exec query.Executor, cfg Config, opts ...Option) (*Container, error) {
	if exec == nil {
		return nil, fmt.Errorf("di: executor is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		exec:   exec,
		codec:  cache.JSONCodec{},
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.store == nil {
		store, err := cache.NewKeyValueCache(cfg.Cache)
		if err != nil {
			return nil, err
		}
		c.store = store
	}

	c.queries = datasource.NewQueryCache(exec, c.store,
		datasource.WithFingerprinter(cfg.Cache.NewFingerprinter()),
		datasource.WithCodec(c.codec),
		datasource.WithLogger(c.logger),
	)

	return c, nil
}

// NewContainerWithDefaults creates a container using DefaultConfig.
func NewContainerWithDefaults(exec query.Executor, opts ...Option) (*Container, error) {
	return NewContainer(exec, DefaultConfig(), opts...)
}

// Executor returns the executor the container was built with.
// Writes and uncached reads go straight to it.
func (c *Container) Executor() query.Executor {
	return c.exec
}

// KeyValueCache returns the store behind the query cache. It is the
// in-process sturdyc store unless WithKeyValueCache replaced it.
func (c *Container) KeyValueCache() cache.KeyValueCache {
	return c.store
}

// Queries returns the shared query cache. The same instance backs every
// request built from this container, so results are shared across requests
// until they expire.
func (c *Container) Queries() *datasource.QueryCache {
	return c.queries
}

// Config returns a copy of the configuration used by this container.
// Changing the copy does not affect the container.
func (c *Container) Config() Config {
	return c.config
}

// NewEdgeManager returns an EdgeManager for collection using the container's executor.
// Edge removal queries bypass the query cache.
func (c *Container) NewEdgeManager(collection manager.EdgeCollection) *manager.EdgeManager {
	return manager.NewEdgeManager(c.exec, collection)
}

// NewRepositoryManager returns a DocumentManager writing through a
// go-repository-bun repository. Writes are logged with the container's
// logger; opts may override it or set the id field.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewRepositoryManager[User](container, userRepository)
func NewRepositoryManager[T any](c *Container, repo repository.Repository[T], opts ...manager.RepositoryOption) *manager.DocumentManager {
	opts = append([]manager.RepositoryOption{manager.WithLogger(c.logger)}, opts...)
	return manager.NewDocumentManager(manager.NewRepositoryCollection(repo, opts...))
}
