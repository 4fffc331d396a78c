package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"

	repository "github.com/goliatone/go-repository-bun"
)

// RepositoryCollection is a DocumentCollection backed by a go-repository-bun
// repository. Documents and records convert through their JSON form, so
// document keys follow the record's json tags.
type RepositoryCollection[T any] struct {
	repo    repository.Repository[T]
	idField string
	logger  *slog.Logger
}

var _ DocumentCollection = (*RepositoryCollection[struct{}])(nil)

// RepositoryOption configures a RepositoryCollection.
type RepositoryOption func(*repositoryOptions)

type repositoryOptions struct {
	idField string
	logger  *slog.Logger
}

// WithIDField sets the document key holding the record id. Defaults to "id".
func WithIDField(field string) RepositoryOption {
	return func(o *repositoryOptions) {
		if field != "" {
			o.idField = field
		}
	}
}

// WithLogger sets the logger that records every write at debug level.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) RepositoryOption {
	return func(o *repositoryOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewRepositoryCollection wraps repo. Documents are keyed by the "id" field
// unless WithIDField says otherwise.
func NewRepositoryCollection[T any](repo repository.Repository[T], opts ...RepositoryOption) *RepositoryCollection[T] {
	o := repositoryOptions{idField: "id", logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &RepositoryCollection[T]{repo: repo, idField: o.idField, logger: o.logger}
}

// Save implements DocumentCollection.
func (c *RepositoryCollection[T]) Save(ctx context.Context, doc Document, opts WriteOptions) (WriteResult, error) {
	record, err := toRecord[T](doc)
	if err != nil {
		return WriteResult{}, err
	}

	created, err := c.repo.Create(ctx, record)
	c.logWrite(ctx, "save", "", err)
	if err != nil {
		return WriteResult{}, err
	}

	return c.result(nil, &created, opts)
}

// Replace implements DocumentCollection.
func (c *RepositoryCollection[T]) Replace(ctx context.Context, id string, doc Document, opts WriteOptions) (WriteResult, error) {
	old, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return WriteResult{}, err
	}

	replacement := maps.Clone(doc)
	if replacement == nil {
		replacement = Document{}
	}
	replacement[c.idField] = id

	return c.write(ctx, old, replacement, opts)
}

// Update implements DocumentCollection. The patch is applied to the stored
// record with the keepNull and mergeObjects rules before it is written back.
func (c *RepositoryCollection[T]) Update(ctx context.Context, id string, patch Document, opts WriteOptions) (WriteResult, error) {
	old, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return WriteResult{}, err
	}

	current, err := toDocument(old)
	if err != nil {
		return WriteResult{}, err
	}

	merged := ApplyPatch(current, patch, opts.KeepNull, opts.MergeObjects)
	merged[c.idField] = id

	return c.write(ctx, old, merged, opts)
}

// Remove implements DocumentCollection.
func (c *RepositoryCollection[T]) Remove(ctx context.Context, id string, opts WriteOptions) (WriteResult, error) {
	old, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return WriteResult{}, err
	}

	err = c.repo.Delete(ctx, old)
	c.logWrite(ctx, "remove", id, err)
	if err != nil {
		return WriteResult{}, err
	}

	return c.result(&old, nil, opts)
}

func (c *RepositoryCollection[T]) write(ctx context.Context, old T, doc Document, opts WriteOptions) (WriteResult, error) {
	record, err := toRecord[T](doc)
	if err != nil {
		return WriteResult{}, err
	}

	updated, err := c.repo.Update(ctx, record)
	c.logWrite(ctx, "update", fmt.Sprint(doc[c.idField]), err)
	if err != nil {
		return WriteResult{}, err
	}

	return c.result(&old, &updated, opts)
}

func (c *RepositoryCollection[T]) logWrite(ctx context.Context, op, id string, err error) {
	c.logger.DebugContext(ctx, "repository write",
		slog.String("op", op),
		slog.String("id", id),
		slog.Any("error", err),
	)
}

func (c *RepositoryCollection[T]) result(old, updated *T, opts WriteOptions) (WriteResult, error) {
	var res WriteResult
	var err error

	if opts.ReturnOld && old != nil {
		if res.Old, err = toDocument(*old); err != nil {
			return WriteResult{}, err
		}
	}
	if opts.ReturnNew && updated != nil {
		if res.New, err = toDocument(*updated); err != nil {
			return WriteResult{}, err
		}
	}
	return res, nil
}

// ApplyPatch returns a copy of doc with patch applied. Null patch values
// remove the attribute unless keepNull is set. With mergeObjects, nested
// objects present on both sides are merged recursively instead of replaced.
func ApplyPatch(doc, patch Document, keepNull, mergeObjects bool) Document {
	out := maps.Clone(doc)
	if out == nil {
		out = Document{}
	}

	for key, value := range patch {
		if value == nil && !keepNull {
			delete(out, key)
			continue
		}

		if mergeObjects {
			existing, okExisting := asObject(out[key])
			incoming, okIncoming := asObject(value)
			if okExisting && okIncoming {
				out[key] = map[string]any(ApplyPatch(existing, incoming, keepNull, mergeObjects))
				continue
			}
		}

		out[key] = value
	}

	return out
}

func asObject(v any) (Document, bool) {
	switch obj := v.(type) {
	case Document:
		return obj, true
	case map[string]any:
		return obj, true
	}
	return nil, false
}

func toRecord[T any](doc Document) (T, error) {
	var record T
	data, err := json.Marshal(doc)
	if err != nil {
		return record, fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("decode record: %w", err)
	}
	return record, nil
}

func toDocument(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
