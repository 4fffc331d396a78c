package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-graph-datasource/query"
)

// ErrEdgeNotFound is returned when no edge connects the given documents.
var ErrEdgeNotFound = errors.New("edge not found")

const removeEdgeQuery = `FOR edge IN @@collection
  FILTER edge._from == @from
  FILTER edge._to == @to
  REMOVE edge._key IN @@collection
  RETURN OLD`

// EdgeManager creates and removes edges between documents.
type EdgeManager struct {
	exec       query.Executor
	collection EdgeCollection
}

// NewEdgeManager manages edges of collection. exec runs the removal query.
func NewEdgeManager(exec query.Executor, collection EdgeCollection) *EdgeManager {
	return &EdgeManager{exec: exec, collection: collection}
}

// Create connects from to to. properties may be nil.
func (m *EdgeManager) Create(ctx context.Context, from, to string, properties Document) (Change, error) {
	if properties == nil {
		properties = Document{}
	}
	res, err := m.collection.SaveEdge(ctx, from, to, properties, WriteOptions{ReturnNew: true})
	if err != nil {
		return Change{}, fmt.Errorf("create edge %s -> %s: %w", from, to, err)
	}
	return Change{New: res.New}, nil
}

// Remove deletes the edges from from to to and returns the first removed one.
func (m *EdgeManager) Remove(ctx context.Context, from, to string) (Change, error) {
	rows, err := m.exec.Execute(ctx, query.New(removeEdgeQuery, map[string]any{
		"@collection": m.collection.Name(),
		"from":        from,
		"to":          to,
	}))
	if err != nil {
		return Change{}, fmt.Errorf("remove edge %s -> %s: %w", from, to, err)
	}

	for _, row := range rows {
		if edge := asDocument(row); edge != nil {
			return Change{Old: edge}, nil
		}
	}
	return Change{}, fmt.Errorf("%w: %s -> %s", ErrEdgeNotFound, from, to)
}

func asDocument(v any) Document {
	switch doc := v.(type) {
	case Document:
		return doc
	case map[string]any:
		return doc
	}
	return nil
}
