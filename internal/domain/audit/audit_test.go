package audit_test

import (
	"context"
	"maps"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "bread/internal/core/context"
	"bread/internal/domain"
	"bread/internal/domain/audit"
	"bread/internal/infrastructure/storage/memory"
	"bread/internal/metadata"
	"bread/internal/metadata/metadatatest"
)

func newService(t *testing.T, reg *metadata.Registry) *domain.ModelService {
	t.Helper()
	store := memory.NewStore(reg)
	return domain.NewModelService(domain.ServiceConfig{
		Registry:  reg,
		Store:     store,
		TxManager: memory.NewTxManager(store),
	})
}

func userContext() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u-1", Email: "ada@example.com"})
}

func TestRecorder_TracksLifecycle(t *testing.T) {
	ctx := userContext()
	reg := metadatatest.Registry(t)
	svc := newService(t, reg)
	customer, err := reg.Model("crm.customer")
	require.NoError(t, err)

	codec, err := audit.NewCodec(64)
	require.NoError(t, err)
	sink := audit.NewMemorySink(codec)
	audit.NewRecorder(sink).Attach(svc.Hooks())

	rec := domain.NewRecord()
	rec.Set("name", "Acme")
	rec.Set("notes", strings.Repeat("x", 200))
	require.NoError(t, svc.Create(ctx, customer, rec))

	updated := &domain.Record{ID: rec.ID, Values: maps.Clone(rec.Values)}
	updated.Set("city", "Bern")
	require.NoError(t, svc.Update(ctx, customer, updated))

	require.NoError(t, svc.Delete(ctx, customer, rec.ID))

	entries, err := sink.History(ctx, "crm.customer", rec.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, audit.ActionDelete, entries[0].Action)
	assert.Equal(t, audit.ActionUpdate, entries[1].Action)
	assert.Equal(t, audit.ActionCreate, entries[2].Action)
	assert.Equal(t, "ada@example.com", entries[2].UserEmail)
	assert.Equal(t, "u-1", entries[2].UserID)

	assert.Equal(t, audit.CompressionZstd, entries[2].Compression)
	created, err := entries[2].Decode()
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 200), created["notes"].New)
	assert.Equal(t, "Acme", created["name"].New)

	changed, err := entries[1].Decode()
	require.NoError(t, err)
	assert.Equal(t, map[string]audit.FieldChange{"city": {Old: "", New: "Bern"}}, changed)

	removed, err := entries[0].Decode()
	require.NoError(t, err)
	assert.Equal(t, "Bern", removed["city"].Old)
	assert.Empty(t, removed["city"].New)

	latest, err := sink.History(ctx, "crm.customer", rec.ID, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, audit.ActionDelete, latest[0].Action)
}

func TestRecorder_Copy(t *testing.T) {
	ctx := context.Background()
	reg := metadatatest.Registry(t)
	svc := newService(t, reg)
	customer, err := reg.Model("crm.customer")
	require.NoError(t, err)

	codec, err := audit.NewCodec(audit.DefaultCompressThreshold)
	require.NoError(t, err)
	sink := audit.NewMemorySink(codec)
	audit.NewRecorder(sink).Attach(svc.Hooks())

	rec := domain.NewRecord()
	rec.Set("name", "Acme")
	require.NoError(t, svc.Create(ctx, customer, rec))

	clone, err := svc.Copy(ctx, customer, rec.ID)
	require.NoError(t, err)

	entries, err := sink.History(ctx, "crm.customer", clone.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionCopy, entries[0].Action)
	assert.Equal(t, audit.CompressionNone, entries[0].Compression)
	assert.Empty(t, entries[0].UserEmail)

	changes, err := entries[0].Decode()
	require.NoError(t, err)
	assert.Equal(t, audit.FieldChange{Old: rec.ID.String(), New: clone.ID.String()}, changes["id"])
	assert.Equal(t, "Acme (Copy)", changes["name"].New)
}

func TestDiff(t *testing.T) {
	before := map[string]string{"name": "Acme", "city": "Bern", "notes": ""}
	after := map[string]string{"name": "Acme", "city": "Basel"}

	assert.Equal(t, map[string]audit.FieldChange{
		"city": {Old: "Bern", New: "Basel"},
	}, audit.Diff(before, after))
	assert.Empty(t, audit.Diff(after, after))
}

func TestCodec(t *testing.T) {
	codec, err := audit.NewCodec(8)
	require.NoError(t, err)

	small, algo := codec.Encode([]byte(`{}`))
	assert.Equal(t, audit.CompressionNone, algo)
	assert.Equal(t, `{}`, string(small))

	raw := []byte(strings.Repeat(`{"a":"b"}`, 50))
	packed, algo := codec.Encode(raw)
	assert.Equal(t, audit.CompressionZstd, algo)
	assert.Less(t, len(packed), len(raw))

	unpacked, err := codec.Decode(packed, algo)
	require.NoError(t, err)
	assert.Equal(t, raw, unpacked)

	_, err = codec.Decode(packed, "lz4")
	assert.Error(t, err)
}

func TestAttachStamps(t *testing.T) {
	b := metadata.NewBuilder().Add(metadata.Model{
		App:  "crm",
		Name: "note",
		Fields: []metadata.Field{
			{Name: "title", Type: metadata.TypeString},
			{Name: audit.CreatedByField, Type: metadata.TypeString, ReadOnly: true},
			{Name: audit.UpdatedByField, Type: metadata.TypeString, ReadOnly: true},
		},
	})
	reg, err := b.Build()
	require.NoError(t, err)
	note, err := reg.Model("crm.note")
	require.NoError(t, err)

	svc := newService(t, reg)
	audit.AttachStamps(svc.Hooks())

	rec := domain.NewRecord()
	rec.Set("title", "First")
	require.NoError(t, svc.Create(userContext(), note, rec))

	stored, err := svc.Get(context.Background(), note, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", stored.Get(audit.CreatedByField))
	assert.Equal(t, "ada@example.com", stored.Get(audit.UpdatedByField))

	anonymous := domain.NewRecord()
	anonymous.Set("title", "Second")
	require.NoError(t, svc.Create(context.Background(), note, anonymous))
	assert.Nil(t, anonymous.Get(audit.CreatedByField))
}

const stampedSchema = `
models:
  - app: crm
    name: note
    labelField: title
    copyRelated: [items]
    fields:
      - {name: title, type: string}
      - {name: created_by, type: string, readOnly: true}
      - {name: updated_by, type: string, readOnly: true}
      - {name: items, kind: many, target: crm.item, reverse: note}
  - app: crm
    name: item
    fields:
      - {name: note, kind: one, target: crm.note}
      - {name: text, type: string}
      - {name: created_by, type: string, readOnly: true}
`

func TestAttachStamps_CopyRestampsClones(t *testing.T) {
	b := metadata.NewBuilder()
	require.NoError(t, metadata.LoadYAML(b, strings.NewReader(stampedSchema)))
	reg, err := b.Build()
	require.NoError(t, err)
	note, err := reg.Model("crm.note")
	require.NoError(t, err)
	item, err := reg.Model("crm.item")
	require.NoError(t, err)

	store := memory.NewStore(reg)
	svc := domain.NewModelService(domain.ServiceConfig{Registry: reg, Store: store, TxManager: memory.NewTxManager(store)})
	audit.AttachStamps(svc.Hooks())

	alice := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u-1", Email: "alice@example.com"})
	bob := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u-2", Email: "bob@example.com"})

	rec := domain.NewRecord()
	rec.Set("title", "Invoice A")
	require.NoError(t, svc.Create(alice, note, rec))
	child := domain.NewRecord()
	child.Set("note", rec.ID)
	child.Set("text", "first")
	require.NoError(t, svc.Create(alice, item, child))

	clone, err := svc.Copy(bob, note, rec.ID)
	require.NoError(t, err)

	stored, err := svc.Get(context.Background(), note, clone.ID)
	require.NoError(t, err)
	assert.Equal(t, "Invoice A (Copy)", stored.Get("title"))
	assert.Equal(t, "bob@example.com", stored.Get(audit.CreatedByField))
	assert.Equal(t, "bob@example.com", stored.Get(audit.UpdatedByField))

	children, err := domain.Children(context.Background(), store, item, "note", clone.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "bob@example.com", children[0].Get(audit.CreatedByField))

	original, err := svc.Get(context.Background(), note, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", original.Get(audit.CreatedByField))
}
