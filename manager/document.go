package manager

import (
	"context"
	"fmt"
)

// DocumentManager creates, replaces, updates and removes documents.
type DocumentManager struct {
	collection DocumentCollection
}

// NewDocumentManager manages documents in collection.
func NewDocumentManager(collection DocumentCollection) *DocumentManager {
	return &DocumentManager{collection: collection}
}

// Create stores input and returns the new document.
func (m *DocumentManager) Create(ctx context.Context, input Document) (Change, error) {
	res, err := m.collection.Save(ctx, input, WriteOptions{ReturnNew: true})
	if err != nil {
		return Change{}, fmt.Errorf("create document: %w", err)
	}
	return Change{New: res.New}, nil
}

// Replace overwrites every value of the document.
func (m *DocumentManager) Replace(ctx context.Context, id string, input Document) (Change, error) {
	res, err := m.collection.Replace(ctx, id, input, WriteOptions{ReturnNew: true, ReturnOld: true})
	if err != nil {
		return Change{}, fmt.Errorf("replace document %s: %w", id, err)
	}
	return Change{Old: res.Old, New: res.New}, nil
}

type updateOptions struct {
	keepNull     bool
	mergeObjects bool
}

// UpdateOption configures Update.
type UpdateOption func(*updateOptions)

// KeepNull keeps attributes patched to null instead of removing them.
func KeepNull(keep bool) UpdateOption {
	return func(o *updateOptions) { o.keepNull = keep }
}

// MergeObjects merges nested objects of the patch into the stored ones.
func MergeObjects(merge bool) UpdateOption {
	return func(o *updateOptions) { o.mergeObjects = merge }
}

// Update patches a subset of the document's values. Values missing from
// input are left unchanged. Both options default to false.
func (m *DocumentManager) Update(ctx context.Context, id string, input Document, opts ...UpdateOption) (Change, error) {
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}

	res, err := m.collection.Update(ctx, id, input, WriteOptions{
		ReturnNew:    true,
		ReturnOld:    true,
		KeepNull:     o.keepNull,
		MergeObjects: o.mergeObjects,
	})
	if err != nil {
		return Change{}, fmt.Errorf("update document %s: %w", id, err)
	}
	return Change{Old: res.Old, New: res.New}, nil
}

// Remove deletes the document and returns its last version.
func (m *DocumentManager) Remove(ctx context.Context, id string) (Change, error) {
	res, err := m.collection.Remove(ctx, id, WriteOptions{ReturnOld: true})
	if err != nil {
		return Change{}, fmt.Errorf("remove document %s: %w", id, err)
	}
	return Change{Old: res.Old}, nil
}
