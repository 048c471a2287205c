// Package domain provides the record model, the storage contract and the
// service that runs BREAD operations on any registered model.
package domain

import (
	"context"
	"maps"

	"bread/internal/core/id"
	"bread/internal/domain/filter"
	"bread/internal/metadata"
)

// Record is one row of any model. Values are keyed by field name and hold
// canonical values (see metadata.Coerce); to-one relations hold the target ID.
type Record struct {
	ID     id.ID
	Values map[string]any
}

// NewRecord creates an empty record with a fresh ID.
func NewRecord() *Record {
	return &Record{ID: id.New(), Values: make(map[string]any)}
}

// Get returns the value of a field, nil when unset.
func (r *Record) Get(name string) any {
	if name == metadata.PrimaryKey {
		return r.ID
	}
	return r.Values[name]
}

// Set assigns a field value.
func (r *Record) Set(name string, v any) {
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	r.Values[name] = v
}

// Clone returns a copy of the record under a new ID.
func (r *Record) Clone() *Record {
	return &Record{ID: id.New(), Values: maps.Clone(r.Values)}
}

// Label is the display text of the record: its label field, or the ID.
func (r *Record) Label(m *metadata.Model) string {
	if m.LabelField != "" {
		if f, ok := m.Field(m.LabelField); ok {
			if s := metadata.Format(f, r.Get(f.Name)); s != "" {
				return s
			}
		}
	}
	return m.Label + " " + r.ID.String()
}

// --- Filter & Pagination ---

// Query selects records of one model.
type Query struct {
	// Filter is a checked expression; nil selects everything.
	Filter filter.Node

	// IDs restricts the result to specific records
	IDs []id.ID

	// IncludeDeleted includes soft-deleted records
	IncludeDeleted bool

	// OrderBy lists paths, "-" prefixed for descending ("-date", "customer.name").
	// Empty uses the model's default ordering.
	OrderBy []string

	// Pagination; Limit 0 returns every matching record.
	Limit  int
	Offset int
}

// ListResult contains paginated results.
type ListResult struct {
	Items      []*Record `json:"items"`
	TotalCount int64     `json:"totalCount"`
	Limit      int       `json:"limit"`
	Offset     int       `json:"offset"`
}

// --- Storage contract ---

// Reader is the read side of a store.
type Reader interface {
	// Get retrieves a record by ID, soft-deleted or not.
	Get(ctx context.Context, m *metadata.Model, recordID id.ID) (*Record, error)

	// List retrieves records with filtering, ordering and pagination.
	List(ctx context.Context, m *metadata.Model, q Query) (ListResult, error)
}

// Store persists records of every registered model.
type Store interface {
	Reader

	// Create inserts a new record.
	Create(ctx context.Context, m *metadata.Model, rec *Record) error

	// Update replaces the stored values of an existing record.
	Update(ctx context.Context, m *metadata.Model, rec *Record) error

	// Delete physically removes a record.
	Delete(ctx context.Context, m *metadata.Model, recordID id.ID) error
}
