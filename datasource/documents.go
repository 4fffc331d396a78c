package datasource

import (
	"context"
	"maps"

	"github.com/samber/lo"

	"github.com/goliatone/go-graph-datasource/loader"
	"github.com/goliatone/go-graph-datasource/query"
)

const (
	// IDField is the native identity field of a stored document.
	IDField = "_id"
	// NormalizedIDField mirrors IDField on every loaded document.
	NormalizedIDField = "id"

	documentsQuery = "RETURN DOCUMENT(@ids)"
	existenceQuery = "FOR key IN @keys RETURN (DOCUMENT(key))._id"
)

// Document is a stored document as returned by the executor.
type Document map[string]any

// ID returns the native identifier, or "" when missing.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// DocumentLoader resolves documents by _id, batching and memoizing lookups
// for the lifetime of one request.
type DocumentLoader struct {
	loader *loader.Loader[string, Document]
}

// NewDocumentLoader creates a request scoped DocumentLoader.
func NewDocumentLoader(ctx context.Context, exec query.Executor, opts ...loader.Option) *DocumentLoader {
	opts = append([]loader.Option{loader.WithName("documents")}, opts...)
	return &DocumentLoader{loader: loader.New(ctx, fetchDocuments(exec), opts...)}
}

// Get returns the document with the given _id. found is false when it does
// not exist.
func (d *DocumentLoader) Get(id string) (Document, bool, error) {
	return d.loader.Load(id)
}

// GetThunk queues id and returns a function waiting for the document.
func (d *DocumentLoader) GetThunk(id string) loader.Thunk[Document] {
	return d.loader.LoadThunk(id)
}

// GetMany returns one entry per id in order, nil for missing documents.
func (d *DocumentLoader) GetMany(ids []string) ([]Document, error) {
	results, err := d.loader.LoadMany(ids)
	if err != nil {
		return nil, err
	}
	return lo.Map(results, func(r loader.Result[Document], _ int) Document {
		if !r.Found {
			return nil
		}
		return r.Value
	}), nil
}

// Prime seeds the loader with a document fetched elsewhere.
func (d *DocumentLoader) Prime(doc Document) bool {
	id := doc.ID()
	if id == "" {
		return false
	}
	return d.loader.Prime(id, tag(doc))
}

func fetchDocuments(exec query.Executor) loader.BatchFunc[string, Document] {
	return func(ctx context.Context, keys []string) ([]loader.Result[Document], error) {
		rows, err := exec.Execute(ctx, query.New(documentsQuery, map[string]any{"ids": keys}))
		if err != nil {
			return nil, err
		}

		var byID map[string]Document
		if len(rows) > 0 {
			byID = indexDocuments(rows[0])
		}

		results := make([]loader.Result[Document], len(keys))
		for i, key := range keys {
			if doc, ok := byID[key]; ok {
				results[i] = loader.Found(tag(doc))
			}
		}
		return results, nil
	}
}

// indexDocuments keys the documents of a DOCUMENT(@ids) row by _id. Elements
// that are not documents (null for unknown ids) are skipped.
func indexDocuments(row any) map[string]Document {
	var items []any
	switch v := row.(type) {
	case []any:
		items = v
	case []map[string]any:
		items = lo.ToAnySlice(v)
	case []Document:
		items = lo.ToAnySlice(v)
	default:
		return nil
	}

	docs := lo.FilterMap(items, func(item any, _ int) (Document, bool) {
		var doc Document
		switch v := item.(type) {
		case map[string]any:
			doc = v
		case Document:
			doc = v
		}
		return doc, doc.ID() != ""
	})

	byID := make(map[string]Document, len(docs))
	for _, doc := range docs {
		if _, seen := byID[doc.ID()]; !seen {
			byID[doc.ID()] = doc
		}
	}
	return byID
}

// tag copies doc and mirrors _id into id, leaving the executor's data untouched.
func tag(doc Document) Document {
	out := maps.Clone(doc)
	out[NormalizedIDField] = doc[IDField]
	return out
}
