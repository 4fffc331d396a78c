package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/puzpuzpuz/xsync/v3"
)

// Result is the outcome for one key: a value, or an explicit absence when
// Found is false. Absence is never reported as an error.
type Result[V any] struct {
	Value V
	Found bool
}

// Found wraps a resolved value.
func Found[V any](v V) Result[V] {
	return Result[V]{Value: v, Found: true}
}

// NotFound is the absence outcome.
func NotFound[V any]() Result[V] {
	return Result[V]{}
}

// BatchFunc fetches a batch of distinct keys. It must return exactly one
// result per key, in the order of keys.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]Result[V], error)

// Thunk blocks until the value it was created for is resolved.
type Thunk[V any] func() (V, bool, error)

// BatchSizeError reports a BatchFunc that broke the one result per key contract.
type BatchSizeError struct {
	Keys    int
	Results int
}

func (e *BatchSizeError) Error() string {
	return fmt.Sprintf("loader: batch function returned %d results for %d keys", e.Results, e.Keys)
}

// Config controls when a pending batch is dispatched.
type Config struct {
	// Wait, when positive, dispatches a batch this long after its first key
	// was queued. When zero the batch is dispatched by the first caller that
	// waits on a result, so every key queued before that point shares it.
	Wait time.Duration
	// MaxBatch, when positive, dispatches a batch as soon as it holds this many keys.
	MaxBatch int
}

// DefaultConfig dispatches on the first wait with unbounded batches.
func DefaultConfig() Config {
	return Config{}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Wait, validation.Min(time.Duration(0)).Error("must be non-negative")),
		validation.Field(&c.MaxBatch, validation.Min(0).Error("must be non-negative")),
	)
}

type options struct {
	config Config
	logger *slog.Logger
	name   string
}

// Option configures a Loader. Options are applied in order by New, so a
// later option overrides an earlier one.
type Option func(*options)

// WithConfig sets the dispatch configuration. Negative Wait or MaxBatch
// values are treated as zero; use Config.Validate to reject them upfront.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.config = cfg }
}

// WithLogger sets the logger used for dispatch records. Every batch is
// logged at debug level with its size, duration and error. A nil logger
// keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName labels the loader in log records. It is useful when several
// loaders share one request logger.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// Loader coalesces key lookups into batches, shares one outcome between all
// callers of a key, and memoizes resolved keys for its lifetime.
//
// A Loader is meant to live for one request: nothing it caches is ever
// invalidated, except keys whose batch failed, which are fetched again on
// the next load.
type Loader[K comparable, V any] struct {
	ctx    context.Context
	fetch  BatchFunc[K, V]
	config Config
	logger *slog.Logger
	name   string

	memo *xsync.MapOf[K, *entry[K, V]]

	mu      sync.Mutex
	pending *batch[K, V]
}

type batch[K comparable, V any] struct {
	keys    []K
	entries []*entry[K, V]
	timer   *time.Timer
	once    sync.Once
	done    chan struct{}
	err     error
}

type entry[K comparable, V any] struct {
	// nil for primed entries
	batch  *batch[K, V]
	result Result[V]
}

// New creates a Loader. Batches run with ctx detached from its cancellation:
// once dispatched, a batch completes for every caller.
func New[K comparable, V any](ctx context.Context, fetch BatchFunc[K, V], opts ...Option) *Loader[K, V] {
	if ctx == nil {
		ctx = context.Background()
	}

	o := options{config: DefaultConfig(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.config.Wait < 0 {
		o.config.Wait = 0
	}
	if o.config.MaxBatch < 0 {
		o.config.MaxBatch = 0
	}

	return &Loader[K, V]{
		ctx:    ctx,
		fetch:  fetch,
		config: o.config,
		logger: o.logger,
		name:   o.name,
		memo:   xsync.NewMapOf[K, *entry[K, V]](),
	}
}

// Load returns the value for key, whether it was found, and the batch error if any.
func (l *Loader[K, V]) Load(key K) (V, bool, error) {
	return l.LoadThunk(key)()
}

// LoadThunk queues key without waiting. Calling the returned thunk waits for
// the result.
func (l *Loader[K, V]) LoadThunk(key K) Thunk[V] {
	e, _ := l.memo.LoadOrCompute(key, func() *entry[K, V] {
		return l.enqueue(key)
	})
	return func() (V, bool, error) {
		return l.await(e)
	}
}

// LoadMany returns one result per key, in order, duplicates included.
func (l *Loader[K, V]) LoadMany(keys []K) ([]Result[V], error) {
	return l.LoadManyThunk(keys)()
}

// LoadManyThunk queues every key before any of them is waited on, so they all
// share the pending batch.
func (l *Loader[K, V]) LoadManyThunk(keys []K) func() ([]Result[V], error) {
	thunks := make([]Thunk[V], len(keys))
	for i, key := range keys {
		thunks[i] = l.LoadThunk(key)
	}

	return func() ([]Result[V], error) {
		results := make([]Result[V], len(thunks))
		for i, thunk := range thunks {
			value, found, err := thunk()
			if err != nil {
				return nil, err
			}
			results[i] = Result[V]{Value: value, Found: found}
		}
		return results, nil
	}
}

// Prime stores value for key if the key is unknown to the loader.
// It returns false, leaving the existing entry untouched, otherwise.
// A primed key is served without a fetch for the rest of the loader's life.
func (l *Loader[K, V]) Prime(key K, value V) bool {
	_, loaded := l.memo.LoadOrStore(key, &entry[K, V]{result: Found(value)})
	return !loaded
}

func (l *Loader[K, V]) enqueue(key K) *entry[K, V] {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.pending
	if b == nil {
		b = &batch[K, V]{done: make(chan struct{})}
		l.pending = b
		if l.config.Wait > 0 {
			b.timer = time.AfterFunc(l.config.Wait, func() { l.dispatch(b) })
		}
	}

	e := &entry[K, V]{batch: b}
	b.keys = append(b.keys, key)
	b.entries = append(b.entries, e)

	if l.config.MaxBatch > 0 && len(b.keys) >= l.config.MaxBatch {
		l.pending = nil
		// never run the fetch inside the memo's compute callback
		go l.dispatch(b)
	}

	return e
}

func (l *Loader[K, V]) await(e *entry[K, V]) (V, bool, error) {
	if b := e.batch; b != nil {
		if l.config.Wait == 0 {
			l.dispatch(b)
		}
		<-b.done
		if b.err != nil {
			var zero V
			return zero, false, b.err
		}
	}
	return e.result.Value, e.result.Found, nil
}

// dispatch closes the batch to new keys and runs it, at most once.
func (l *Loader[K, V]) dispatch(b *batch[K, V]) {
	l.mu.Lock()
	if l.pending == b {
		l.pending = nil
	}
	l.mu.Unlock()

	b.once.Do(func() { l.run(b) })
}

func (l *Loader[K, V]) run(b *batch[K, V]) {
	if b.timer != nil {
		b.timer.Stop()
	}

	start := time.Now()
	results, err := l.call(b.keys)
	if err == nil && len(results) != len(b.keys) {
		err = &BatchSizeError{Keys: len(b.keys), Results: len(results)}
	}

	if err != nil {
		// failed keys were never resolved; the next load fetches them again
		for _, key := range b.keys {
			l.memo.Delete(key)
		}
		b.err = err
	} else {
		for i, e := range b.entries {
			e.result = results[i]
		}
	}

	l.logger.Debug("loader batch dispatched",
		slog.String("loader", l.name),
		slog.Int("keys", len(b.keys)),
		slog.Duration("duration", time.Since(start)),
		slog.Any("error", err),
	)

	close(b.done)
}

func (l *Loader[K, V]) call(keys []K) (results []Result[V], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader: batch function panicked: %v", r)
		}
	}()
	return l.fetch(context.WithoutCancel(l.ctx), append([]K(nil), keys...))
}
