// Package audit records who changed which record and how. A Recorder
// attaches to the model service hooks and writes entries to a Sink.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appctx "bread/internal/core/context"
	"bread/internal/core/id"
	"bread/internal/domain"
	"bread/internal/metadata"
)

// Action is the audited operation.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionRestore Action = "restore"
	ActionCopy    Action = "copy"
)

// FieldChange holds the displayed value of a field before and after a change.
type FieldChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Entry is one audit log record.
type Entry struct {
	ID          id.ID
	Model       string
	RecordID    id.ID
	Action      Action
	UserID      string
	UserEmail   string
	Changes     json.RawMessage
	Compression Compression
	CreatedAt   time.Time
}

// Decode unmarshals the changes of the entry.
func (e Entry) Decode() (map[string]FieldChange, error) {
	changes := make(map[string]FieldChange)
	if len(e.Changes) == 0 {
		return changes, nil
	}
	if err := json.Unmarshal(e.Changes, &changes); err != nil {
		return nil, fmt.Errorf("decode audit changes: %w", err)
	}
	return changes, nil
}

// Sink stores audit entries.
type Sink interface {
	Write(ctx context.Context, e Entry) error
	// History returns the latest entries of one record, newest first.
	History(ctx context.Context, model string, recordID id.ID, limit int) ([]Entry, error)
}

// Recorder turns service changes into audit entries.
type Recorder struct {
	sink Sink
	now  func() time.Time
}

// NewRecorder creates a recorder writing to sink.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink, now: time.Now}
}

// Attach registers the recorder on the after-hooks of a model service.
func (r *Recorder) Attach(hooks *domain.HookRegistry[domain.Change]) {
	hooks.On(domain.AfterCreate, r.hook(ActionCreate))
	hooks.On(domain.AfterUpdate, r.hook(ActionUpdate))
	hooks.On(domain.AfterDelete, r.hook(ActionDelete))
	hooks.On(domain.AfterRestore, r.hook(ActionRestore))
	hooks.On(domain.AfterCopy, r.hook(ActionCopy))
}

func (r *Recorder) hook(action Action) domain.Hook[domain.Change] {
	return func(ctx context.Context, c domain.Change) error {
		return r.Record(ctx, action, c)
	}
}

// Record writes one entry for change c.
func (r *Recorder) Record(ctx context.Context, action Action, c domain.Change) error {
	var before, after map[string]string
	switch action {
	case ActionCreate:
		after = Snapshot(c.Model, c.Record)
	case ActionDelete:
		before = Snapshot(c.Model, c.Previous)
	case ActionCopy:
		after = Snapshot(c.Model, c.Record)
	default:
		before = Snapshot(c.Model, c.Previous)
		after = Snapshot(c.Model, c.Record)
	}
	changes := Diff(before, after)
	if action == ActionCopy && c.Previous != nil {
		changes[metadata.PrimaryKey] = FieldChange{Old: c.Previous.ID.String(), New: c.Record.ID.String()}
	}

	payload, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal audit changes: %w", err)
	}

	e := Entry{
		ID:        id.New(),
		Model:     c.Model.Key(),
		RecordID:  c.Record.ID,
		Action:    action,
		Changes:   payload,
		CreatedAt: r.now().UTC(),
	}
	if user := appctx.GetUser(ctx); user != nil {
		e.UserID = user.UserID
		e.UserEmail = user.Email
	}
	return r.sink.Write(ctx, e)
}

// Snapshot renders the stored fields of rec as display strings.
func Snapshot(m *metadata.Model, rec *domain.Record) map[string]string {
	out := make(map[string]string, len(m.Fields))
	if rec == nil {
		return out
	}
	for i := range m.Fields {
		f := &m.Fields[i]
		if f.Internal {
			continue
		}
		switch f.Kind {
		case metadata.KindScalar, metadata.KindRelationToOne, metadata.KindFile:
			out[f.Name] = metadata.Format(f, rec.Get(f.Name))
		}
	}
	return out
}

// Diff returns the fields whose value differs between two snapshots.
func Diff(before, after map[string]string) map[string]FieldChange {
	changes := make(map[string]FieldChange)
	for name, v := range after {
		if old := before[name]; old != v {
			changes[name] = FieldChange{Old: old, New: v}
		}
	}
	for name, old := range before {
		if _, ok := after[name]; !ok && old != "" {
			changes[name] = FieldChange{Old: old}
		}
	}
	return changes
}
