package record_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bread/internal/core/apperror"
	"bread/internal/domain"
	"bread/internal/domain/filter"
	"bread/internal/metadata"
	"bread/internal/metadata/metadatatest"
)

func TestToSqlizer(t *testing.T) {
	reg := metadatatest.Registry(t)

	tests := []struct {
		name     string
		model    string
		expr     string
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "contains",
			model:    "crm.customer",
			expr:     `city ~ "Bern"`,
			wantSQL:  `t0."city"::text ILIKE ?`,
			wantArgs: []any{"%Bern%"},
		},
		{
			name:     "startswith escapes wildcards",
			model:    "crm.customer",
			expr:     `name startswith "50%"`,
			wantSQL:  `t0."name"::text ILIKE ?`,
			wantArgs: []any{`50\%%`},
		},
		{
			name:     "ordered",
			model:    "crm.customer",
			expr:     `score >= 10`,
			wantSQL:  `t0."score" >= ?`,
			wantArgs: []any{int64(10)},
		},
		{
			name:     "text ordered by code point",
			model:    "crm.customer",
			expr:     `name < "M"`,
			wantSQL:  `t0."name" COLLATE "C" < ?`,
			wantArgs: []any{"M"},
		},
		{
			name:    "equal none",
			model:   "crm.customer",
			expr:    `score = None`,
			wantSQL: `t0."score" IS NULL`,
		},
		{
			name:     "negation treats unknown as no match",
			model:    "crm.customer",
			expr:     `city != "Bern"`,
			wantSQL:  `NOT COALESCE(t0."city" = ?, FALSE)`,
			wantArgs: []any{"Bern"},
		},
		{
			name:     "in list",
			model:    "sales.invoice",
			expr:     `status in ("draft", "sent")`,
			wantSQL:  `t0."status" IN (?,?)`,
			wantArgs: []any{"draft", "sent"},
		},
		{
			name:     "or group",
			model:    "crm.customer",
			expr:     `city = "Bern" or vip = True`,
			wantSQL:  `(t0."city" = ? OR t0."vip" = ?)`,
			wantArgs: []any{"Bern", true},
		},
		{
			name:     "to-one hop",
			model:    "sales.invoice",
			expr:     `customer.city = "Bern"`,
			wantSQL:  `t0."customer" IN (SELECT t1."id" FROM "crm_customer" t1 WHERE t1."city" = ?)`,
			wantArgs: []any{"Bern"},
		},
		{
			name:    "to-one hop matching null keeps rows without a relation",
			model:   "sales.invoice",
			expr:    `customer.city = None`,
			wantSQL: `(t0."customer" IS NULL OR t0."customer" IN (SELECT t1."id" FROM "crm_customer" t1 WHERE t1."city" IS NULL))`,
		},
		{
			name:  "to-many hops",
			model: "crm.customer",
			expr:  `invoices.lines.product ~ "bolt"`,
			wantSQL: `t0."id" IN (SELECT t1."customer" FROM "sales_invoice" t1 WHERE ` +
				`t1."id" IN (SELECT t2."invoice" FROM "sales_line" t2 WHERE t2."product"::text ILIKE ?))`,
			wantArgs: []any{"%bolt%"},
		},
		{
			name:  "to-many matching null keeps rows without related rows",
			model: "crm.customer",
			expr:  `invoices.number = None`,
			wantSQL: `(NOT EXISTS (SELECT 1 FROM "sales_invoice" t2 WHERE t2."customer" = t0."id") OR ` +
				`t0."id" IN (SELECT t1."customer" FROM "sales_invoice" t1 WHERE t1."number" IS NULL))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := reg.Model(tt.model)
			require.NoError(t, err)
			n, err := filter.ParseChecked(reg, tt.model, tt.expr)
			require.NoError(t, err)

			cond, err := ToSqlizer(reg, m, n)
			require.NoError(t, err)
			sql, args, err := cond.ToSql()
			require.NoError(t, err)

			assert.Equal(t, tt.wantSQL, sql)
			if len(tt.wantArgs) == 0 {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestToSqlizer_NilFilter(t *testing.T) {
	reg := metadatatest.Registry(t)
	m, err := reg.Model("crm.customer")
	require.NoError(t, err)

	cond, err := ToSqlizer(reg, m, nil)
	require.NoError(t, err)
	assert.Nil(t, cond)
}

func TestListQueries(t *testing.T) {
	reg := metadatatest.Registry(t)
	repo := NewRepo(reg, nil)
	m, err := reg.Model("crm.customer")
	require.NoError(t, err)
	n, err := filter.ParseChecked(reg, "crm.customer", `city ~ "Bern"`)
	require.NoError(t, err)

	sel, count, err := repo.listQueries(m, domain.Query{
		Filter:  n,
		OrderBy: []string{"-name"},
		Limit:   10,
		Offset:  20,
	})
	require.NoError(t, err)

	sql, args, err := sel.ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT t0."id", t0."name", t0."city", t0."email", t0."vip", t0."score", t0."notes", t0."logo", t0."archived" `+
			`FROM "crm_customer" t0 `+
			`WHERE (NOT COALESCE(t0."archived", FALSE) AND t0."city"::text ILIKE $1) `+
			`ORDER BY LOWER(t0."name") COLLATE "C" DESC NULLS LAST, t0."id" `+
			`LIMIT 10 OFFSET 20`,
		sql)
	assert.Equal(t, []any{"%Bern%"}, args)

	countSQL, countArgs, err := count.ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT COUNT(*) FROM "crm_customer" t0 WHERE (NOT COALESCE(t0."archived", FALSE) AND t0."city"::text ILIKE $1)`,
		countSQL)
	assert.Equal(t, []any{"%Bern%"}, countArgs)
}

func TestListQueries_IncludeDeletedAndRelationOrdering(t *testing.T) {
	reg := metadatatest.Registry(t)
	repo := NewRepo(reg, nil)
	m, err := reg.Model("sales.invoice")
	require.NoError(t, err)

	sel, _, err := repo.listQueries(m, domain.Query{
		IncludeDeleted: true,
		OrderBy:        []string{"customer.name", "-date"},
	})
	require.NoError(t, err)

	sql, _, err := sel.ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "WHERE")
	assert.Contains(t, sql,
		`ORDER BY (SELECT LOWER(t101."name") COLLATE "C" FROM "crm_customer" t101 WHERE t101."id" = t0."customer") ASC NULLS FIRST, `+
			`t0."date" DESC NULLS LAST, t0."id"`)
}

func TestListQueries_RejectsUnsortablePaths(t *testing.T) {
	reg := metadatatest.Registry(t)
	repo := NewRepo(reg, nil)

	tests := []struct {
		model string
		key   string
	}{
		{"sales.line", "amount"},
		{"crm.customer", "invoices.number"},
		{"crm.customer", "logo"},
	}
	for _, tt := range tests {
		t.Run(tt.model+" "+tt.key, func(t *testing.T) {
			m, err := reg.Model(tt.model)
			require.NoError(t, err)
			_, _, err = repo.listQueries(m, domain.Query{OrderBy: []string{tt.key}})
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
		})
	}
}

func TestStoredFields(t *testing.T) {
	reg := metadatatest.Registry(t)
	m, err := reg.Model("sales.line")
	require.NoError(t, err)

	var names []string
	for _, f := range storedFields(m) {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{metadata.PrimaryKey, "invoice", "product", "quantity", "price"}, names)
}

func TestToRecord(t *testing.T) {
	reg := metadatatest.Registry(t)
	m, err := reg.Model("sales.line")
	require.NoError(t, err)
	recordID := [16]byte{1, 2, 3}
	invoiceID := [16]byte{4, 5, 6}

	rec, err := toRecord(m, map[string]any{
		"id":       recordID,
		"invoice":  invoiceID,
		"product":  "Bolt",
		"quantity": int32(3),
		"price":    "2.50",
	})
	require.NoError(t, err)

	assert.Equal(t, [16]byte(rec.ID), recordID)
	assert.Equal(t, int64(3), rec.Get("quantity"))
	assert.Equal(t, "2.5", metadata.Format(nil, rec.Get("price")))
	assert.Equal(t, "Bolt", rec.Get("product"))
}
