package datasource

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-graph-datasource/cache"
	"github.com/goliatone/go-graph-datasource/pkg/testsupport"
	"github.com/goliatone/go-graph-datasource/query"
)

var usersQuery = query.New("FOR u IN users FILTER u.team == @team RETURN u", map[string]any{"team": "core"})

func userRows() []any {
	return []any{
		map[string]any{"_id": "users/1", "name": "ada"},
		map[string]any{"_id": "users/2", "name": "grace"},
	}
}

func TestQueryCache_ColdThenWarm(t *testing.T) {
	ctx := context.Background()
	exec := testsupport.NewRecordingExecutor(testsupport.StaticRows(userRows()...))
	store := testsupport.NewMemoryCache()
	qc := NewQueryCache(exec, store)

	first, err := qc.Query(ctx, usersQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, exec.CallCount())
	assert.Equal(t, 1, store.SetCalls())
	assert.Equal(t, 1, store.GetCalls())

	second, err := qc.Query(ctx, usersQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, exec.CallCount(), "warm query must not hit the executor")
	assert.Equal(t, 2, store.GetCalls())
	assert.Equal(t, 1, store.SetCalls())
	assert.Equal(t, first, second)
}

func TestQueryCache_WithoutCache(t *testing.T) {
	exec := testsupport.NewRecordingExecutor(testsupport.StaticRows(userRows()...))
	store := testsupport.NewMemoryCache()
	qc := NewQueryCache(exec, store)

	rows, err := qc.Query(context.Background(), usersQuery, WithoutCache())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 1, exec.CallCount())
	assert.Zero(t, store.GetCalls())
	assert.Zero(t, store.SetCalls())
}

func TestQueryCache_UnreadableEntryIsAMiss(t *testing.T) {
	exec := testsupport.NewRecordingExecutor(testsupport.StaticRows(userRows()...))
	store := testsupport.NewMemoryCache()
	qc := NewQueryCache(exec, store)

	key := qc.Fingerprint(usersQuery)
	store.Put(key, []byte("{not json"))

	rows, err := qc.Query(context.Background(), usersQuery)
	require.NoError(t, err)
	assert.Equal(t, userRows(), rows)
	assert.Equal(t, 1, exec.CallCount())

	raw, ok := store.Raw(key)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(string(raw), "["), "entry should be rewritten, got %s", raw)
}

func TestQueryCache_BackendFailuresAreSoft(t *testing.T) {
	exec := testsupport.NewRecordingExecutor(testsupport.StaticRows(userRows()...))
	store := testsupport.NewMemoryCache()
	store.GetErr = errors.New("cache down")
	store.SetErr = errors.New("cache down")
	qc := NewQueryCache(exec, store)

	rows, err := qc.Query(context.Background(), usersQuery)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 1, store.SetCalls())
}

func TestQueryCache_EmptyResultsAreNotStored(t *testing.T) {
	exec := testsupport.NewRecordingExecutor(testsupport.StaticRows())
	store := testsupport.NewMemoryCache()
	qc := NewQueryCache(exec, store)

	rows, err := qc.Query(context.Background(), usersQuery)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, store.SetCalls())

	_, err = qc.Query(context.Background(), usersQuery)
	require.NoError(t, err)
	assert.Equal(t, 2, exec.CallCount())
}

func TestQueryCache_ExecutorErrorIsReturned(t *testing.T) {
	boom := errors.New("syntax error near FOR")
	exec := testsupport.NewRecordingExecutor(testsupport.Failing(boom))
	store := testsupport.NewMemoryCache()
	qc := NewQueryCache(exec, store)

	rows, err := qc.Query(context.Background(), usersQuery)
	assert.Nil(t, rows)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, store.SetCalls())
}

func TestQueryCache_NilStoreExecutesDirectly(t *testing.T) {
	exec := testsupport.NewRecordingExecutor(testsupport.StaticRows(userRows()...))
	qc := NewQueryCache(exec, nil)

	for i := 0; i < 2; i++ {
		_, err := qc.Query(context.Background(), usersQuery)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, exec.CallCount())
}

func TestQueryCache_NamespacedKeys(t *testing.T) {
	exec := testsupport.NewRecordingExecutor(testsupport.StaticRows(userRows()...))
	store := testsupport.NewMemoryCache()
	qc := NewQueryCache(exec, store, WithFingerprinter(cache.NewFingerprinter(cache.WithNamespace("GraphQueries"))))

	_, err := qc.Query(context.Background(), usersQuery)
	require.NoError(t, err)

	keys := store.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "graph_queries"+cache.KeySeparator))
	assert.Equal(t, keys[0], qc.Fingerprint(usersQuery))
}

func TestQueryCache_BindVarOrderSharesEntry(t *testing.T) {
	exec := testsupport.NewRecordingExecutor(testsupport.StaticRows(userRows()...))
	qc := NewQueryCache(exec, testsupport.NewMemoryCache())

	a := query.New("FOR u IN users FILTER u.a == @a AND u.b == @b RETURN u", map[string]any{"a": 1, "b": 2})
	b := query.New(a.Text, map[string]any{"b": 2, "a": 1})

	_, err := qc.Query(context.Background(), a)
	require.NoError(t, err)
	_, err = qc.Query(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, 1, exec.CallCount())
}

func TestQueryCache_MsgpackCodec(t *testing.T) {
	exec := testsupport.NewRecordingExecutor(testsupport.StaticRows("users/1", "users/2"))
	qc := NewQueryCache(exec, testsupport.NewMemoryCache(), WithCodec(cache.MsgpackCodec{}))

	first, err := qc.Query(context.Background(), usersQuery)
	require.NoError(t, err)
	second, err := qc.Query(context.Background(), usersQuery)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, exec.CallCount())
}

func TestQueryCache_SturdycBackend(t *testing.T) {
	store, err := cache.NewKeyValueCache(cache.DefaultConfig())
	require.NoError(t, err)

	exec := testsupport.NewRecordingExecutor(testsupport.StaticRows(userRows()...))
	qc := NewQueryCache(exec, store)

	first, err := qc.Query(context.Background(), usersQuery)
	require.NoError(t, err)
	second, err := qc.Query(context.Background(), usersQuery)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, exec.CallCount())
}

func TestQueryCache_IsAnExecutor(t *testing.T) {
	exec := testsupport.NewRecordingExecutor(testsupport.StaticRows("x"))
	var qc query.Executor = NewQueryCache(exec, testsupport.NewMemoryCache())

	for i := 0; i < 3; i++ {
		rows, err := qc.Execute(context.Background(), usersQuery)
		require.NoError(t, err)
		assert.Equal(t, []any{"x"}, rows)
	}
	assert.Equal(t, 1, exec.CallCount())
}
