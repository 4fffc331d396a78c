package testsupport

import (
	"context"
	"sort"
	"sync"

	"github.com/goliatone/go-graph-datasource/query"
)

// MemoryCache is an in-memory cache.KeyValueCache that counts calls.
// GetErr and SetErr, when set, are returned instead of touching the map.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	gets    int
	sets    int

	GetErr error
	SetErr error
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

// Get implements cache.KeyValueCache.
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.GetErr != nil {
		return nil, false, m.GetErr
	}
	value, ok := m.entries[key]
	return value, ok, nil
}

// Set implements cache.KeyValueCache.
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.SetErr != nil {
		return m.SetErr
	}
	m.entries[key] = append([]byte(nil), value...)
	return nil
}

// Put seeds an entry without counting it as a Set call.
func (m *MemoryCache) Put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

// Raw returns the stored bytes for key.
func (m *MemoryCache) Raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.entries[key]
	return value, ok
}

// Keys returns the stored keys sorted.
func (m *MemoryCache) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetCalls returns the number of Get calls.
func (m *MemoryCache) GetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

// SetCalls returns the number of Set calls.
func (m *MemoryCache) SetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

// HandlerFunc answers a query on behalf of a RecordingExecutor.
type HandlerFunc func(ctx context.Context, q query.Query) ([]any, error)

// RecordingExecutor is a query.Executor that records every query it runs.
type RecordingExecutor struct {
	mu      sync.Mutex
	calls   []query.Query
	handler HandlerFunc
}

// NewRecordingExecutor wraps handler. A nil handler returns no rows.
func NewRecordingExecutor(handler HandlerFunc) *RecordingExecutor {
	if handler == nil {
		handler = StaticRows()
	}
	return &RecordingExecutor{handler: handler}
}

// StaticRows returns a handler answering every query with rows.
func StaticRows(rows ...any) HandlerFunc {
	return func(ctx context.Context, q query.Query) ([]any, error) {
		return rows, nil
	}
}

// Failing returns a handler answering every query with err.
func Failing(err error) HandlerFunc {
	return func(ctx context.Context, q query.Query) ([]any, error) {
		return nil, err
	}
}

// Execute implements query.Executor.
func (e *RecordingExecutor) Execute(ctx context.Context, q query.Query) ([]any, error) {
	e.mu.Lock()
	e.calls = append(e.calls, q)
	handler := e.handler
	e.mu.Unlock()
	return handler(ctx, q)
}

// Calls returns a copy of the recorded queries.
func (e *RecordingExecutor) Calls() []query.Query {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]query.Query(nil), e.calls...)
}

// CallCount returns the number of executed queries.
func (e *RecordingExecutor) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}
