// Package memory is an in-process domain.Store for tests and for runs
// without a database.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	"bread/internal/core/apperror"
	"bread/internal/core/id"
	"bread/internal/domain"
	"bread/internal/domain/filter"
	"bread/internal/metadata"
)

var _ domain.Store = (*Store)(nil)

type table struct {
	rows  map[id.ID]*domain.Record
	order []id.ID
}

// Store keeps records of every model in maps guarded by one RWMutex.
type Store struct {
	reg *metadata.Registry

	mu     sync.RWMutex
	tables map[string]*table
}

// NewStore creates an empty store for the models in reg.
func NewStore(reg *metadata.Registry) *Store {
	return &Store{reg: reg, tables: make(map[string]*table)}
}

func (s *Store) table(m *metadata.Model) *table {
	t, ok := s.tables[m.Key()]
	if !ok {
		t = &table{rows: make(map[id.ID]*domain.Record)}
		s.tables[m.Key()] = t
	}
	return t
}

func copyRecord(rec *domain.Record) *domain.Record {
	return &domain.Record{ID: rec.ID, Values: maps.Clone(rec.Values)}
}

// Get retrieves a record by ID.
func (s *Store) Get(ctx context.Context, m *metadata.Model, recordID id.ID) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return unlocked{s}.Get(ctx, m, recordID)
}

// List filters, orders and pages the records of m.
func (s *Store) List(ctx context.Context, m *metadata.Model, q domain.Query) (domain.ListResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return unlocked{s}.List(ctx, m, q)
}

// Create inserts a new record.
func (s *Store) Create(ctx context.Context, m *metadata.Model, rec *domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(m)
	if _, exists := t.rows[rec.ID]; exists {
		return apperror.NewConflict(fmt.Sprintf("%s %s already exists", m.Label, rec.ID))
	}
	t.rows[rec.ID] = copyRecord(rec)
	t.order = append(t.order, rec.ID)
	return nil
}

// Update replaces the values of an existing record.
func (s *Store) Update(ctx context.Context, m *metadata.Model, rec *domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(m)
	if _, exists := t.rows[rec.ID]; !exists {
		return apperror.NewNotFound(m.Label, rec.ID.String())
	}
	t.rows[rec.ID] = copyRecord(rec)
	return nil
}

// Delete removes a record. Records still referenced by a to-one field
// elsewhere are refused with a conflict, as a foreign key would.
func (s *Store) Delete(ctx context.Context, m *metadata.Model, recordID id.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(m)
	if _, exists := t.rows[recordID]; !exists {
		return apperror.NewNotFound(m.Label, recordID.String())
	}
	if by, ok := s.referencedBy(m, recordID); ok {
		return apperror.NewConflict(fmt.Sprintf("%s is still referenced by %s", m.Label, by)).
			WithDetail("id", recordID.String())
	}
	delete(t.rows, recordID)
	t.order = slices.DeleteFunc(t.order, func(x id.ID) bool { return x == recordID })
	return nil
}

func (s *Store) referencedBy(m *metadata.Model, recordID id.ID) (string, bool) {
	for _, other := range s.reg.Models() {
		t, ok := s.tables[other.Key()]
		if !ok {
			continue
		}
		for i := range other.Fields {
			f := &other.Fields[i]
			if f.Kind != metadata.KindRelationToOne || f.Target != m.Key() {
				continue
			}
			for _, row := range t.rows {
				if ref, ok := row.Values[f.Name].(id.ID); ok && ref == recordID {
					return other.LabelPlural, true
				}
			}
		}
	}
	return "", false
}

// snapshot deep-copies every table. Callers hold mu.
func (s *Store) snapshot() map[string]*table {
	out := make(map[string]*table, len(s.tables))
	for key, t := range s.tables {
		rows := make(map[id.ID]*domain.Record, len(t.rows))
		for recordID, rec := range t.rows {
			rows[recordID] = copyRecord(rec)
		}
		out[key] = &table{rows: rows, order: slices.Clone(t.order)}
	}
	return out
}

// unlocked reads without taking the mutex. Relation paths evaluated during
// List recurse into Get and List, which must not lock again.
type unlocked struct{ s *Store }

func (u unlocked) Get(ctx context.Context, m *metadata.Model, recordID id.ID) (*domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, ok := u.s.tables[m.Key()]
	if !ok {
		return nil, apperror.NewNotFound(m.Label, recordID.String())
	}
	rec, ok := t.rows[recordID]
	if !ok {
		return nil, apperror.NewNotFound(m.Label, recordID.String())
	}
	return copyRecord(rec), nil
}

func (u unlocked) List(ctx context.Context, m *metadata.Model, q domain.Query) (domain.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ListResult{}, err
	}
	result := domain.ListResult{Limit: q.Limit, Offset: q.Offset}
	t, ok := u.s.tables[m.Key()]
	if !ok {
		result.Items = []*domain.Record{}
		return result, nil
	}

	var wanted map[id.ID]struct{}
	if q.IDs != nil {
		wanted = make(map[id.ID]struct{}, len(q.IDs))
		for _, x := range q.IDs {
			wanted[x] = struct{}{}
		}
	}

	resolver := domain.NewResolver(u.s.reg, u)
	matched := make([]*domain.Record, 0, len(t.order))
	for _, recordID := range t.order {
		rec := t.rows[recordID]
		if wanted != nil {
			if _, ok := wanted[recordID]; !ok {
				continue
			}
		}
		if m.SoftDeleteField != "" && !q.IncludeDeleted {
			if deleted, _ := rec.Values[m.SoftDeleteField].(bool); deleted {
				continue
			}
		}
		ok, err := filter.Match(q.Filter, resolver.Accessor(ctx, m, rec))
		if err != nil {
			return domain.ListResult{}, fmt.Errorf("filter %s: %w", m.Key(), err)
		}
		if ok {
			matched = append(matched, rec)
		}
	}

	orderBy := q.OrderBy
	if len(orderBy) == 0 {
		orderBy = m.Ordering
	}
	if err := sortRecords(ctx, resolver, m, matched, orderBy); err != nil {
		return domain.ListResult{}, err
	}

	result.TotalCount = int64(len(matched))
	if q.Offset > 0 {
		matched = matched[min(q.Offset, len(matched)):]
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	result.Items = make([]*domain.Record, len(matched))
	for i, rec := range matched {
		result.Items[i] = copyRecord(rec)
	}
	return result, nil
}

// sortRecords orders rows by the given paths. Text compares case-insensitively
// and nil sorts first; ties keep insertion order.
func sortRecords(ctx context.Context, rv *domain.Resolver, m *metadata.Model, rows []*domain.Record, orderBy []string) error {
	if len(orderBy) == 0 {
		return nil
	}
	type key struct {
		path string
		desc bool
	}
	keys := make([]key, 0, len(orderBy))
	for _, o := range orderBy {
		path, desc := strings.CutPrefix(o, "-")
		keys = append(keys, key{path: path, desc: desc})
	}

	sortValues := make(map[id.ID][]any, len(rows))
	for _, rec := range rows {
		values := make([]any, len(keys))
		for i, k := range keys {
			v, err := rv.First(ctx, m, rec, k.path)
			if err != nil {
				return err
			}
			if s, ok := v.(string); ok {
				v = strings.ToLower(s)
			}
			values[i] = v
		}
		sortValues[rec.ID] = values
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := sortValues[rows[i].ID], sortValues[rows[j].ID]
		for n, k := range keys {
			c, _ := metadata.Compare(a[n], b[n])
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return nil
}
