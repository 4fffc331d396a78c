package manager

import (
	"context"

	"github.com/goliatone/go-graph-datasource/datasource"
)

// Document is a stored document or a write payload.
type Document = datasource.Document

// WriteOptions are passed to every collection write.
type WriteOptions struct {
	ReturnNew bool
	ReturnOld bool
	// KeepNull keeps null valued patch attributes instead of removing them.
	KeepNull bool
	// MergeObjects merges nested objects instead of replacing them.
	MergeObjects bool
}

// WriteResult holds the document versions a write returned.
type WriteResult struct {
	Old Document
	New Document
}

// Change is what a manager returns for a write: the previous version, the
// current one, or both.
type Change struct {
	Old Document `json:"old,omitempty"`
	New Document `json:"new,omitempty"`
}

// DocumentCollection is the write contract of a document collection.
type DocumentCollection interface {
	Save(ctx context.Context, doc Document, opts WriteOptions) (WriteResult, error)
	Replace(ctx context.Context, id string, doc Document, opts WriteOptions) (WriteResult, error)
	Update(ctx context.Context, id string, patch Document, opts WriteOptions) (WriteResult, error)
	Remove(ctx context.Context, id string, opts WriteOptions) (WriteResult, error)
}

// EdgeCollection is the write contract of an edge collection.
type EdgeCollection interface {
	// Name is the collection name used in queries.
	Name() string
	SaveEdge(ctx context.Context, from, to string, properties Document, opts WriteOptions) (WriteResult, error)
}
