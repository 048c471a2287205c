package domain

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"bread/internal/core/apperror"
	"bread/internal/domain/filter"
	"bread/internal/metadata"
)

// Resolver follows accessor paths from a record across relations.
// It caches related records for its lifetime; create one per request.
type Resolver struct {
	reg    *metadata.Registry
	reader Reader

	byID     map[uuid.UUID]*Record
	children map[string][]*Record
}

// NewResolver creates a resolver reading through r.
func NewResolver(reg *metadata.Registry, r Reader) *Resolver {
	return &Resolver{
		reg:      reg,
		reader:   r,
		byID:     make(map[uuid.UUID]*Record),
		children: make(map[string][]*Record),
	}
}

// Values returns every value reached from rec through path. A branch that
// ends early (null relation, no related rows) contributes a single nil.
// Computed leaves are evaluated on the record that owns them.
func (rv *Resolver) Values(ctx context.Context, m *metadata.Model, rec *Record, path string) ([]any, error) {
	steps, err := rv.reg.ResolvePath(m.Key(), path)
	if err != nil {
		return nil, err
	}
	return rv.walk(ctx, steps, rec)
}

// First returns the first value reached through path, or nil.
func (rv *Resolver) First(ctx context.Context, m *metadata.Model, rec *Record, path string) (any, error) {
	values, err := rv.Values(ctx, m, rec, path)
	if err != nil || len(values) == 0 {
		return nil, err
	}
	return values[0], nil
}

// Accessor adapts the resolver to filter evaluation for one record.
func (rv *Resolver) Accessor(ctx context.Context, m *metadata.Model, rec *Record) filter.Accessor {
	return func(path string) ([]any, error) {
		return rv.Values(ctx, m, rec, path)
	}
}

func (rv *Resolver) walk(ctx context.Context, steps []Step, rec *Record) ([]any, error) {
	step := steps[0]
	f := step.Field
	last := len(steps) == 1

	switch f.Kind {
	case metadata.KindComputed:
		v, err := rv.reg.Compute(step.Model, f, rec.Values)
		if err != nil {
			// a row whose inputs are incomplete renders as empty
			return []any{nil}, nil
		}
		return []any{v}, nil

	case metadata.KindRelationToOne:
		if last {
			return []any{rec.Get(f.Name)}, nil
		}
		targetID, ok := rec.Get(f.Name).(uuid.UUID)
		if !ok {
			return []any{nil}, nil
		}
		target, err := rv.reg.Model(f.Target)
		if err != nil {
			return nil, err
		}
		related, err := rv.get(ctx, target, targetID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return []any{nil}, nil
			}
			return nil, err
		}
		return rv.walk(ctx, steps[1:], related)

	case metadata.KindRelationToMany:
		if last {
			return nil, apperror.NewPathResolution(step.Model.Key(), f.Name, "a to-many relation has no single value")
		}
		target, err := rv.reg.Model(f.Target)
		if err != nil {
			return nil, err
		}
		rows, err := rv.related(ctx, target, f.Reverse, rec.ID)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return []any{nil}, nil
		}
		var out []any
		for _, row := range rows {
			values, err := rv.walk(ctx, steps[1:], row)
			if err != nil {
				return nil, err
			}
			out = append(out, values...)
		}
		return out, nil
	}

	if !last {
		return nil, apperror.NewPathResolution(step.Model.Key(), f.Name, fmt.Sprintf("%q is not a relation", f.Name))
	}
	return []any{rec.Get(f.Name)}, nil
}

func (rv *Resolver) get(ctx context.Context, m *metadata.Model, recordID uuid.UUID) (*Record, error) {
	if rec, ok := rv.byID[recordID]; ok {
		return rec, nil
	}
	rec, err := rv.reader.Get(ctx, m, recordID)
	if err != nil {
		return nil, err
	}
	rv.byID[recordID] = rec
	return rec, nil
}

// related lists the rows of m whose reverse field points at parentID.
func (rv *Resolver) related(ctx context.Context, m *metadata.Model, reverse string, parentID uuid.UUID) ([]*Record, error) {
	key := m.Key() + "." + reverse + "=" + parentID.String()
	if rows, ok := rv.children[key]; ok {
		return rows, nil
	}
	rows, err := Children(ctx, rv.reader, m, reverse, parentID)
	if err != nil {
		return nil, err
	}
	rv.children[key] = rows
	return rows, nil
}

// Children lists every row of m whose to-one field reverse equals parentID.
func Children(ctx context.Context, r Reader, m *metadata.Model, reverse string, parentID uuid.UUID) ([]*Record, error) {
	result, err := r.List(ctx, m, Query{
		Filter:         &filter.Comparison{Path: reverse, Operator: metadata.OpEqual, Value: parentID},
		IncludeDeleted: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list %s by %s: %w", m.Key(), reverse, err)
	}
	return result.Items, nil
}

// Step aliases metadata.Step for readability inside this package.
type Step = metadata.Step
