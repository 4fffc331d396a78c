package datasource

import (
	"context"

	"github.com/samber/lo"

	"github.com/goliatone/go-graph-datasource/loader"
	"github.com/goliatone/go-graph-datasource/query"
)

// ExistenceLoader answers whether documents exist, batching and memoizing
// checks for the lifetime of one request.
type ExistenceLoader struct {
	loader *loader.Loader[string, bool]
}

// NewExistenceLoader creates a request scoped ExistenceLoader.
func NewExistenceLoader(ctx context.Context, exec query.Executor, opts ...loader.Option) *ExistenceLoader {
	opts = append([]loader.Option{loader.WithName("existence")}, opts...)
	return &ExistenceLoader{loader: loader.New(ctx, fetchExistence(exec), opts...)}
}

// Exists reports whether a document with the given _id exists.
func (e *ExistenceLoader) Exists(id string) (bool, error) {
	exists, _, err := e.loader.Load(id)
	return exists, err
}

// ManyExist returns one flag per id, in order.
func (e *ExistenceLoader) ManyExist(ids []string) ([]bool, error) {
	results, err := e.loader.LoadMany(ids)
	if err != nil {
		return nil, err
	}
	return lo.Map(results, func(r loader.Result[bool], _ int) bool {
		return r.Found && r.Value
	}), nil
}

// fetchExistence relies on the query returning one row per key at the key's
// position, null for missing documents. A store that reorders or drops rows
// would misreport existence.
func fetchExistence(exec query.Executor) loader.BatchFunc[string, bool] {
	return func(ctx context.Context, keys []string) ([]loader.Result[bool], error) {
		rows, err := exec.Execute(ctx, query.New(existenceQuery, map[string]any{"keys": keys}))
		if err != nil {
			return nil, err
		}

		return lo.Map(keys, func(key string, i int) loader.Result[bool] {
			if i >= len(rows) {
				return loader.Found(false)
			}
			id, _ := rows[i].(string)
			return loader.Found(id == key)
		}), nil
	}
}
