package domain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bread/internal/core/apperror"
	"bread/internal/core/id"
	"bread/internal/domain"
	"bread/internal/domain/filter"
	"bread/internal/infrastructure/storage/memory"
	"bread/internal/metadata"
	"bread/internal/metadata/metadatatest"
)

type env struct {
	svc      *domain.ModelService
	reg      *metadata.Registry
	customer *metadata.Model
	invoice  *metadata.Model
	line     *metadata.Model
}

func newEnv(t *testing.T) *env {
	t.Helper()
	reg := metadatatest.Registry(t)
	store := memory.NewStore(reg)
	e := &env{
		reg: reg,
		svc: domain.NewModelService(domain.ServiceConfig{
			Registry:  reg,
			Store:     store,
			TxManager: memory.NewTxManager(store),
		}),
	}
	e.customer, _ = reg.Model("crm.customer")
	e.invoice, _ = reg.Model("sales.invoice")
	e.line, _ = reg.Model("sales.line")
	return e
}

func (e *env) create(t *testing.T, m *metadata.Model, values map[string]any) *domain.Record {
	t.Helper()
	rec := domain.NewRecord()
	for k, v := range values {
		rec.Set(k, v)
	}
	require.NoError(t, e.svc.Create(context.Background(), m, rec))
	return rec
}

func TestModelService_CreateValidates(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	rec := domain.NewRecord()
	rec.Set("customer", id.New())
	err := e.svc.Create(ctx, e.invoice, rec)

	fields, ok := apperror.GetFieldErrors(err)
	require.True(t, ok)
	assert.Equal(t, []string{"customer", "number"}, fields.Fields())
	assert.Equal(t, []string{"This field is required."}, fields["number"])
}

func TestModelService_CreateChecksMaxLength(t *testing.T) {
	e := newEnv(t)
	rec := domain.NewRecord()
	long := make([]rune, 101)
	for i := range long {
		long[i] = 'x'
	}
	rec.Set("name", string(long))

	fields := e.svc.Validate(context.Background(), e.customer, rec)
	assert.Contains(t, fields["name"][0], "at most 100 characters")
}

func TestModelService_UpdateRunsHooks(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	acme := e.create(t, e.customer, map[string]any{"name": "Acme"})

	var seen []string
	e.svc.Hooks().On(domain.AfterUpdate, func(_ context.Context, c domain.Change) error {
		seen = append(seen, c.Previous.Get("name").(string)+"->"+c.Record.Get("name").(string))
		return nil
	})

	acme.Set("name", "Acme Corp")
	require.NoError(t, e.svc.Update(ctx, e.customer, acme))
	assert.Equal(t, []string{"Acme->Acme Corp"}, seen)

	err := e.svc.Update(ctx, e.customer, domain.NewRecord())
	assert.True(t, apperror.IsNotFound(err))
}

func TestModelService_BeforeHookAborts(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	veto := errors.New("veto")
	e.svc.Hooks().On(domain.BeforeCreate, func(context.Context, domain.Change) error { return veto })

	rec := domain.NewRecord()
	rec.Set("name", "Acme")
	assert.ErrorIs(t, e.svc.Create(ctx, e.customer, rec), veto)

	res, err := e.svc.List(ctx, e.customer, domain.Query{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestModelService_SoftDeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	acme := e.create(t, e.customer, map[string]any{"name": "Acme"})

	require.NoError(t, e.svc.Delete(ctx, e.customer, acme.ID))

	stored, err := e.svc.Get(ctx, e.customer, acme.ID)
	require.NoError(t, err)
	assert.Equal(t, true, stored.Get("archived"))

	res, err := e.svc.List(ctx, e.customer, domain.Query{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)

	require.NoError(t, e.svc.Restore(ctx, e.customer, acme.ID))
	res, err = e.svc.List(ctx, e.customer, domain.Query{})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
}

func TestModelService_HardDeleteAndRestoreRefused(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	acme := e.create(t, e.customer, map[string]any{"name": "Acme"})
	inv := e.create(t, e.invoice, map[string]any{"number": "1", "customer": acme.ID})

	require.NoError(t, e.svc.Delete(ctx, e.invoice, inv.ID))
	_, err := e.svc.Get(ctx, e.invoice, inv.ID)
	assert.True(t, apperror.IsNotFound(err))

	err = e.svc.Restore(ctx, e.invoice, inv.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestModelService_CopyCascadesIntoRelatedRows(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	acme := e.create(t, e.customer, map[string]any{"name": "Acme"})
	inv := e.create(t, e.invoice, map[string]any{"number": "INV-1", "customer": acme.ID, "total": decimal.NewFromInt(30)})
	e.create(t, e.line, map[string]any{"invoice": inv.ID, "product": "Bolt", "quantity": int64(2)})
	e.create(t, e.line, map[string]any{"invoice": inv.ID, "product": "Nut", "quantity": int64(4)})

	clone, err := e.svc.Copy(ctx, e.invoice, inv.ID)
	require.NoError(t, err)
	assert.NotEqual(t, inv.ID, clone.ID)
	assert.Equal(t, "INV-1 (Copy)", clone.Get("number"))
	assert.Equal(t, acme.ID, clone.Get("customer"))

	lines, err := domain.Children(ctx, e.svc.Reader(), e.line, "invoice", clone.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.ElementsMatch(t, []any{"Bolt", "Nut"}, []any{lines[0].Get("product"), lines[1].Get("product")})

	original, err := domain.Children(ctx, e.svc.Reader(), e.line, "invoice", inv.ID)
	require.NoError(t, err)
	assert.Len(t, original, 2)

	again, err := e.svc.Copy(ctx, e.invoice, clone.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-1 (Copy 2)", again.Get("number"))
}

func TestModelService_CopyIsAtomic(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	acme := e.create(t, e.customer, map[string]any{"name": "Acme"})

	_, err := e.svc.CopyMany(ctx, e.customer, []id.ID{acme.ID, id.New()})
	assert.True(t, apperror.IsNotFound(err))

	res, err := e.svc.List(ctx, e.customer, domain.Query{})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
}

func TestResolver_ValuesAcrossRelations(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	acme := e.create(t, e.customer, map[string]any{"name": "Acme", "city": "Bern"})
	inv := e.create(t, e.invoice, map[string]any{"number": "1", "customer": acme.ID})
	line := e.create(t, e.line, map[string]any{"invoice": inv.ID, "product": "Bolt", "quantity": int64(3), "price": decimal.RequireFromString("2.5")})

	rv := domain.NewResolver(e.reg, e.svc.Reader())

	v, err := rv.First(ctx, e.line, line, "invoice.customer.city")
	require.NoError(t, err)
	assert.Equal(t, "Bern", v)

	amount, err := rv.First(ctx, e.line, line, "amount")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("7.5").Equal(amount.(decimal.Decimal)))

	products, err := rv.Values(ctx, e.customer, acme, "invoices.lines.product")
	require.NoError(t, err)
	assert.Equal(t, []any{"Bolt"}, products)

	lonely := e.create(t, e.customer, map[string]any{"name": "Lonely"})
	empty, err := rv.Values(ctx, e.customer, lonely, "invoices.number")
	require.NoError(t, err)
	assert.Equal(t, []any{nil}, empty)

	_, err = rv.Values(ctx, e.customer, acme, "name.length")
	assert.True(t, apperror.HasCode(err, apperror.CodePathResolution))
}

type readOnlySpy struct {
	*memory.TxManager
	reads int
}

func (s *readOnlySpy) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	s.reads++
	return fn(ctx)
}

func TestModelService_ListUsesReadOnlySnapshot(t *testing.T) {
	reg := metadatatest.Registry(t)
	store := memory.NewStore(reg)
	spy := &readOnlySpy{TxManager: memory.NewTxManager(store)}
	svc := domain.NewModelService(domain.ServiceConfig{Registry: reg, Store: store, TxManager: spy})
	customer, err := reg.Model("crm.customer")
	require.NoError(t, err)

	_, err = svc.List(context.Background(), customer, domain.Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, spy.reads)
}

func TestModelService_ListIgnoresChildOrder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.create(t, e.customer, map[string]any{"name": "Acme", "city": "Bern", "vip": true, "score": int64(7)})
	e.create(t, e.customer, map[string]any{"name": "Globex", "city": "Basel", "vip": false, "score": int64(3)})
	e.create(t, e.customer, map[string]any{"name": "Initech", "city": "Bern", "vip": false, "score": int64(9)})
	e.create(t, e.customer, map[string]any{"name": "Umbrella", "city": "Zurich", "vip": true})

	tests := []struct {
		name  string
		exprs []string
		want  int
	}{
		{
			name:  "and",
			exprs: []string{`city = "Bern" and score > 5`, `score > 5 and city = "Bern"`},
			want:  2,
		},
		{
			name:  "or",
			exprs: []string{`vip = True or city = "Basel"`, `city = "Basel" or vip = True`},
			want:  3,
		},
		{
			name: "nested",
			exprs: []string{
				`(city = "Bern" or city = "Zurich") and vip = True`,
				`vip = True and (city = "Zurich" or city = "Bern")`,
			},
			want: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var first []id.ID
			for i, expr := range tt.exprs {
				n, err := filter.ParseChecked(e.reg, "crm.customer", expr)
				require.NoError(t, err)
				res, err := e.svc.List(ctx, e.customer, domain.Query{Filter: n})
				require.NoError(t, err)

				ids := make([]id.ID, 0, len(res.Items))
				for _, rec := range res.Items {
					ids = append(ids, rec.ID)
				}
				require.Len(t, ids, tt.want, expr)
				if i == 0 {
					first = ids
					continue
				}
				assert.ElementsMatch(t, first, ids, expr)
			}
		})
	}
}
