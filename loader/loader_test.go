package loader

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a BatchFunc that records every batch it receives.
type recorder struct {
	mu      sync.Mutex
	batches [][]string
	err     error
	missing map[string]bool
}

func (r *recorder) fetch(ctx context.Context, keys []string) ([]Result[string], error) {
	r.mu.Lock()
	r.batches = append(r.batches, append([]string(nil), keys...))
	err := r.err
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}

	results := make([]Result[string], len(keys))
	for i, key := range keys {
		if r.missing[key] {
			results[i] = NotFound[string]()
			continue
		}
		results[i] = Found("value:" + key)
	}
	return results, nil
}

func (r *recorder) calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.batches...)
}

func (r *recorder) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func TestLoader_CoalescesKeysIntoOneBatch(t *testing.T) {
	rec := &recorder{}
	l := New(context.Background(), rec.fetch)

	a := l.LoadThunk("A")
	b := l.LoadThunk("B")

	va, foundA, err := a()
	require.NoError(t, err)
	vb, foundB, err := b()
	require.NoError(t, err)

	assert.True(t, foundA)
	assert.True(t, foundB)
	assert.Equal(t, "value:A", va)
	assert.Equal(t, "value:B", vb)

	if diff := cmp.Diff([][]string{{"A", "B"}}, rec.calls()); diff != "" {
		t.Errorf("batches mismatch (-want +got):\n%s", diff)
	}
}

func TestLoader_DeduplicatesKeysInWindow(t *testing.T) {
	rec := &recorder{}
	l := New(context.Background(), rec.fetch)

	first := l.LoadThunk("A")
	second := l.LoadThunk("A")

	v1, found1, err1 := first()
	v2, found2, err2 := second()

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, v1, v2)
	assert.Equal(t, found1, found2)
	assert.Equal(t, [][]string{{"A"}}, rec.calls())
}

func TestLoader_MemoizesResolvedKeys(t *testing.T) {
	rec := &recorder{missing: map[string]bool{"gone": true}}
	l := New(context.Background(), rec.fetch)

	_, found, err := l.Load("123")
	require.NoError(t, err)
	require.True(t, found)

	_, found, err = l.Load("gone")
	require.NoError(t, err)
	require.False(t, found)

	_, _, _ = l.Load("123")
	_, found, _ = l.Load("gone")

	assert.False(t, found, "absence is memoized as absence")
	assert.Len(t, rec.calls(), 2)
}

func TestLoader_MissingKeyIsNotAnError(t *testing.T) {
	rec := &recorder{missing: map[string]bool{"B": true}}
	l := New(context.Background(), rec.fetch)

	results, err := l.LoadMany([]string{"A", "B"})
	require.NoError(t, err)

	want := []Result[string]{Found("value:A"), NotFound[string]()}
	assert.Equal(t, want, results)
}

func TestLoader_LoadManyKeepsOrderAndDuplicates(t *testing.T) {
	rec := &recorder{}
	l := New(context.Background(), rec.fetch)

	results, err := l.LoadMany([]string{"B", "A", "B", "C"})
	require.NoError(t, err)

	values := make([]string, len(results))
	for i, r := range results {
		values[i] = r.Value
	}
	assert.Equal(t, []string{"value:B", "value:A", "value:B", "value:C"}, values)
	assert.Equal(t, [][]string{{"B", "A", "C"}}, rec.calls())
}

func TestLoader_LoadManyEmpty(t *testing.T) {
	rec := &recorder{}
	l := New(context.Background(), rec.fetch)

	results, err := l.LoadMany(nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, rec.calls())
}

func TestLoader_FailurePropagatesAndIsRetried(t *testing.T) {
	boom := errors.New("store unavailable")
	rec := &recorder{err: boom}
	l := New(context.Background(), rec.fetch)

	a := l.LoadThunk("A")
	b := l.LoadThunk("B")

	_, _, errA := a()
	_, _, errB := b()
	assert.ErrorIs(t, errA, boom)
	assert.ErrorIs(t, errB, boom)

	rec.setErr(nil)

	v, found, err := l.Load("A")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value:A", v)

	assert.Equal(t, [][]string{{"A", "B"}, {"A"}}, rec.calls())
}

func TestLoader_BatchSizeMismatch(t *testing.T) {
	l := New(context.Background(), func(ctx context.Context, keys []string) ([]Result[string], error) {
		return []Result[string]{Found("only")}, nil
	})

	results, err := l.LoadMany([]string{"A", "B"})
	assert.Nil(t, results)

	var sizeErr *BatchSizeError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, 2, sizeErr.Keys)
	assert.Equal(t, 1, sizeErr.Results)
}

func TestLoader_RecoversPanics(t *testing.T) {
	calls := 0
	l := New(context.Background(), func(ctx context.Context, keys []string) ([]Result[string], error) {
		calls++
		if calls == 1 {
			panic("bad row")
		}
		return []Result[string]{Found("ok")}, nil
	})

	_, _, err := l.Load("A")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad row")

	v, _, err := l.Load("A")
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestLoader_Prime(t *testing.T) {
	rec := &recorder{}
	l := New(context.Background(), rec.fetch)

	assert.True(t, l.Prime("A", "primed"))
	assert.False(t, l.Prime("A", "other"), "prime never overwrites")

	v, found, err := l.Load("A")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "primed", v)
	assert.Empty(t, rec.calls())

	_, _, _ = l.Load("B")
	assert.False(t, l.Prime("B", "late"))
	v, _, _ = l.Load("B")
	assert.Equal(t, "value:B", v)
}

func TestLoader_MaxBatch(t *testing.T) {
	rec := &recorder{}
	l := New(context.Background(), rec.fetch, WithConfig(Config{MaxBatch: 2}))

	results, err := l.LoadMany([]string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	calls := rec.calls()
	sort.Slice(calls, func(i, j int) bool { return len(calls[i]) > len(calls[j]) })
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, calls)
}

func TestLoader_WaitWindowCoalescesGoroutines(t *testing.T) {
	rec := &recorder{}
	l := New(context.Background(), rec.fetch, WithConfig(Config{Wait: 50 * time.Millisecond}))

	keys := []string{"k1", "k2", "k3", "k4", "k5"}
	var wg sync.WaitGroup
	errs := make(chan error, len(keys))
	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			v, _, err := l.Load(key)
			if err == nil && v != "value:"+key {
				err = errors.New("unexpected value " + v)
			}
			errs <- err
		}(key)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	calls := rec.calls()
	require.Len(t, calls, 1)
	assert.ElementsMatch(t, keys, calls[0])
}

func TestLoader_DetachesRequestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var seen error
	l := New(ctx, func(ctx context.Context, keys []string) ([]Result[string], error) {
		seen = ctx.Err()
		return []Result[string]{Found("v")}, nil
	})

	_, found, err := l.Load("A")
	require.NoError(t, err)
	assert.True(t, found)
	assert.NoError(t, seen)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, Config{Wait: time.Millisecond, MaxBatch: 100}.Validate())
	assert.Error(t, Config{Wait: -time.Second}.Validate())
	assert.Error(t, Config{MaxBatch: -1}.Validate())
}
