package domain

import (
	"context"
	"fmt"
	"unicode/utf8"

	"bread/internal/core/apperror"
	"bread/internal/core/id"
	"bread/internal/core/tx"
	"bread/internal/metadata"
	"bread/pkg/logger"
)

// ModelService runs BREAD operations on records of any registered model.
// Writes go through the transaction manager and the lifecycle hooks.
type ModelService struct {
	reg       *metadata.Registry
	store     Store
	txManager tx.Manager
	hooks     *HookRegistry[Change]
}

// ServiceConfig configures the model service.
type ServiceConfig struct {
	Registry  *metadata.Registry
	Store     Store
	TxManager tx.Manager
}

// NewModelService creates a new model service.
func NewModelService(cfg ServiceConfig) *ModelService {
	return &ModelService{
		reg:       cfg.Registry,
		store:     cfg.Store,
		txManager: cfg.TxManager,
		hooks:     NewHookRegistry[Change](),
	}
}

// Hooks returns the hook registry for external registration.
func (s *ModelService) Hooks() *HookRegistry[Change] {
	return s.hooks
}

// Registry returns the model registry the service was built with.
func (s *ModelService) Registry() *metadata.Registry {
	return s.reg
}

// Reader exposes the read side of the store, for resolvers and exports.
func (s *ModelService) Reader() Reader {
	return s.store
}

func (s *ModelService) normalizeGetErr(m *metadata.Model, err error, recordID id.ID) error {
	if err == nil {
		return nil
	}
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound(m.Label, recordID.String())
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewInternal(err).WithDetail("model", m.Key()).WithDetail("id", recordID.String())
}

// Get retrieves a record by ID.
func (s *ModelService) Get(ctx context.Context, m *metadata.Model, recordID id.ID) (*Record, error) {
	rec, err := s.store.Get(ctx, m, recordID)
	if err != nil {
		return nil, s.normalizeGetErr(m, err, recordID)
	}
	return rec, nil
}

// List retrieves records matching q.
func (s *ModelService) List(ctx context.Context, m *metadata.Model, q Query) (ListResult, error) {
	if len(q.OrderBy) == 0 {
		q.OrderBy = m.Ordering
	}
	var res ListResult
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.store.List(ctx, m, q)
		return err
	})
	return res, err
}

// read runs fn in a read-only transaction when the manager offers one.
func (s *ModelService) read(ctx context.Context, fn func(ctx context.Context) error) error {
	if ro, ok := s.txManager.(tx.ReadOnlyManager); ok {
		return ro.ReadOnly(ctx, fn)
	}
	return fn(ctx)
}

// Validate checks a record against its model and returns the problems per field.
func (s *ModelService) Validate(ctx context.Context, m *metadata.Model, rec *Record) apperror.FieldErrors {
	errs := apperror.FieldErrors{}
	for i := range m.Fields {
		f := &m.Fields[i]
		if !f.Editable() {
			continue
		}
		v := rec.Get(f.Name)

		if isBlank(v) {
			if f.Required {
				errs.Add(f.Name, "This field is required.")
			}
			continue
		}
		if s, ok := v.(string); ok && f.MaxLength > 0 && utf8.RuneCountInString(s) > f.MaxLength {
			errs.Add(f.Name, fmt.Sprintf("Ensure this value has at most %d characters (it has %d).", f.MaxLength, utf8.RuneCountInString(s)))
		}
		if f.Kind == metadata.KindRelationToOne {
			s.validateTarget(ctx, f, v, errs)
		}
	}
	return errs
}

func (s *ModelService) validateTarget(ctx context.Context, f *metadata.Field, v any, errs apperror.FieldErrors) {
	targetID, ok := v.(id.ID)
	if !ok {
		errs.Add(f.Name, "Enter a valid identifier.")
		return
	}
	target, err := s.reg.Model(f.Target)
	if err != nil {
		errs.Add(f.Name, err.Error())
		return
	}
	if _, err := s.store.Get(ctx, target, targetID); err != nil {
		errs.Add(f.Name, "Select a valid choice. That choice is not one of the available choices.")
	}
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case id.ID:
		return id.IsNil(x)
	}
	return false
}

// Create validates and stores a new record.
func (s *ModelService) Create(ctx context.Context, m *metadata.Model, rec *Record) error {
	if err := s.Validate(ctx, m, rec).Err(); err != nil {
		return err
	}
	change := Change{Model: m, Record: rec}

	if err := s.hooks.Run(ctx, BeforeCreate, change); err != nil {
		return err
	}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, m, rec); err != nil {
			return fmt.Errorf("create %s: %w", m.Key(), err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.runAfter(ctx, AfterCreate, change)
	return nil
}

// Update validates and stores new values for an existing record.
func (s *ModelService) Update(ctx context.Context, m *metadata.Model, rec *Record) error {
	previous, err := s.Get(ctx, m, rec.ID)
	if err != nil {
		return err
	}
	if err := s.Validate(ctx, m, rec).Err(); err != nil {
		return err
	}
	change := Change{Model: m, Record: rec, Previous: previous}

	if err := s.hooks.Run(ctx, BeforeUpdate, change); err != nil {
		return err
	}
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Update(ctx, m, rec); err != nil {
			return fmt.Errorf("update %s: %w", m.Key(), err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.runAfter(ctx, AfterUpdate, change)
	return nil
}

// Delete removes a record. Models with a soft-delete field are marked instead.
func (s *ModelService) Delete(ctx context.Context, m *metadata.Model, recordID id.ID) error {
	return s.DeleteMany(ctx, m, []id.ID{recordID})
}

// DeleteMany deletes several records in one transaction.
func (s *ModelService) DeleteMany(ctx context.Context, m *metadata.Model, ids []id.ID) error {
	changes := make([]Change, 0, len(ids))
	for _, recordID := range ids {
		previous, err := s.Get(ctx, m, recordID)
		if err != nil {
			return err
		}
		change := Change{Model: m, Record: previous, Previous: previous}
		if err := s.hooks.Run(ctx, BeforeDelete, change); err != nil {
			return err
		}
		changes = append(changes, change)
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, change := range changes {
			if err := s.remove(ctx, m, change.Previous); err != nil {
				return fmt.Errorf("delete %s %s: %w", m.Key(), change.Previous.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, change := range changes {
		s.runAfter(ctx, AfterDelete, change)
	}
	return nil
}

func (s *ModelService) remove(ctx context.Context, m *metadata.Model, rec *Record) error {
	if m.SoftDeleteField == "" {
		return s.store.Delete(ctx, m, rec.ID)
	}
	marked := &Record{ID: rec.ID, Values: rec.Clone().Values}
	marked.Set(m.SoftDeleteField, true)
	return s.store.Update(ctx, m, marked)
}

// Restore clears the soft-delete mark of a record.
func (s *ModelService) Restore(ctx context.Context, m *metadata.Model, recordID id.ID) error {
	if m.SoftDeleteField == "" {
		return apperror.NewValidation(fmt.Sprintf("%s records cannot be restored", m.Label))
	}
	previous, err := s.Get(ctx, m, recordID)
	if err != nil {
		return err
	}
	restored := &Record{ID: previous.ID, Values: previous.Clone().Values}
	restored.Set(m.SoftDeleteField, false)

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.store.Update(ctx, m, restored)
	})
	if err != nil {
		return fmt.Errorf("restore %s: %w", m.Key(), err)
	}

	s.runAfter(ctx, AfterRestore, Change{Model: m, Record: restored, Previous: previous})
	return nil
}

// Copy clones a record under a new ID. The label field gets a copy marker
// and the rows of every CopyRelated relation are cloned along, pointing at
// the new record. Every clone passes the BeforeCreate hooks. All of it
// happens in one transaction.
func (s *ModelService) Copy(ctx context.Context, m *metadata.Model, recordID id.ID) (*Record, error) {
	copies, err := s.CopyMany(ctx, m, []id.ID{recordID})
	if err != nil {
		return nil, err
	}
	return copies[0], nil
}

// CopyMany copies several records in one transaction.
func (s *ModelService) CopyMany(ctx context.Context, m *metadata.Model, ids []id.ID) ([]*Record, error) {
	copies := make([]*Record, 0, len(ids))
	sources := make([]*Record, 0, len(ids))

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, recordID := range ids {
			source, err := s.Get(ctx, m, recordID)
			if err != nil {
				return err
			}
			clone := source.Clone()
			if m.LabelField != "" {
				if label, ok := clone.Get(m.LabelField).(string); ok {
					clone.Set(m.LabelField, CopyLabel(label))
				}
			}
			if err := s.hooks.Run(ctx, BeforeCreate, Change{Model: m, Record: clone}); err != nil {
				return err
			}
			if err := s.store.Create(ctx, m, clone); err != nil {
				return fmt.Errorf("copy %s %s: %w", m.Key(), recordID, err)
			}
			if err := s.copyRelated(ctx, m, source.ID, clone.ID); err != nil {
				return err
			}
			sources = append(sources, source)
			copies = append(copies, clone)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range copies {
		s.runAfter(ctx, AfterCopy, Change{Model: m, Record: copies[i], Previous: sources[i]})
	}
	return copies, nil
}

func (s *ModelService) copyRelated(ctx context.Context, m *metadata.Model, sourceID, cloneID id.ID) error {
	for _, name := range m.CopyRelated {
		f, ok := m.Field(name)
		if !ok || f.Kind != metadata.KindRelationToMany {
			return apperror.NewModelConfiguration(fmt.Sprintf("%s.%s is not a to-many relation", m.Key(), name))
		}
		child, err := s.reg.Model(f.Target)
		if err != nil {
			return err
		}
		rows, err := Children(ctx, s.store, child, f.Reverse, sourceID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			clone := row.Clone()
			clone.Set(f.Reverse, cloneID)
			if err := s.hooks.Run(ctx, BeforeCreate, Change{Model: child, Record: clone}); err != nil {
				return err
			}
			if err := s.store.Create(ctx, child, clone); err != nil {
				return fmt.Errorf("copy %s %s: %w", child.Key(), row.ID, err)
			}
			if err := s.copyRelated(ctx, child, row.ID, clone.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// runAfter runs after-hooks. The change is already committed, so failures are logged only.
func (s *ModelService) runAfter(ctx context.Context, event HookEvent, change Change) {
	if err := s.hooks.Run(ctx, event, change); err != nil {
		logger.Warn(ctx, "after hook failed",
			"event", string(event),
			"model", change.Model.Key(),
			"id", change.Record.ID.String(),
			"error", err,
		)
	}
}
