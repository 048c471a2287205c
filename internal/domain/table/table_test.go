package table_test

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bread/internal/domain"
	"bread/internal/domain/table"
	"bread/internal/infrastructure/storage/memory"
	"bread/internal/metadata"
	"bread/internal/metadata/metadatatest"
)

func TestNextOrdering(t *testing.T) {
	state := ""
	var seen []string
	for i := 0; i < 3; i++ {
		state = table.NextOrdering(state, "name")
		seen = append(seen, state)
	}
	assert.Equal(t, []string{"name", "-name", ""}, seen)
	assert.Equal(t, "city", table.NextOrdering("-name", "city"))
	assert.Equal(t, "desc", table.SortState("-name", "name"))
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name                string
		total               int64
		page, perPage       int
		wantNumber          int
		wantPages           int
		wantOffset          int
		wantFirst, wantLast int64
	}{
		{"first page", 45, 1, 20, 1, 3, 0, 1, 20},
		{"last page", 45, 3, 20, 3, 3, 40, 41, 45},
		{"past the end clamps", 45, 9, 20, 3, 3, 40, 41, 45},
		{"all on one page", 45, 2, 0, 1, 1, 0, 1, 45},
		{"empty", 0, 1, 20, 1, 1, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := table.Paginate(tt.total, tt.page, tt.perPage)
			assert.Equal(t, tt.wantNumber, p.Number)
			assert.Equal(t, tt.wantPages, p.Pages)
			assert.Equal(t, tt.wantOffset, p.Offset())
			assert.Equal(t, tt.wantFirst, p.First())
			assert.Equal(t, tt.wantLast, p.Last())
		})
	}
}

func TestParsePaging(t *testing.T) {
	page, per := table.ParsePaging(url.Values{"page": {"3"}, "itemsperpage": {"-1"}}, 25)
	assert.Equal(t, 3, page)
	assert.Equal(t, 0, per)

	page, per = table.ParsePaging(url.Values{"page": {"x"}}, 25)
	assert.Equal(t, 1, page)
	assert.Equal(t, 25, per)
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"Acme &amp; Sons", "Acme & Sons"},
		{"<b>bold</b><br/>next", "bold\nnext"},
		{"a<br><br>b", "a\nb"},
		{"  <span>42</span> ", 42},
		{"4 2", "4 2"},
		{"", ""},
		{"&lt;tag&gt;", "<tag>"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, table.CleanCell(tt.in))
		})
	}
}

type fixture struct {
	ctx     context.Context
	reg     *metadata.Registry
	store   *memory.Store
	invoice *metadata.Model
	records []*domain.Record
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	reg := metadatatest.Registry(t)
	store := memory.NewStore(reg)
	customer, _ := reg.Model("crm.customer")
	invoice, _ := reg.Model("sales.invoice")
	line, _ := reg.Model("sales.line")

	acme := domain.NewRecord()
	acme.Set("name", "Acme & Sons")
	require.NoError(t, store.Create(ctx, customer, acme))

	inv := domain.NewRecord()
	inv.Set("number", "1001")
	inv.Set("customer", acme.ID)
	inv.Set("total", decimal.RequireFromString("12.5"))
	require.NoError(t, store.Create(ctx, invoice, inv))

	for _, p := range []string{"Bolt", "Nut"} {
		l := domain.NewRecord()
		l.Set("invoice", inv.ID)
		l.Set("product", p)
		require.NoError(t, store.Create(ctx, line, l))
	}
	return &fixture{ctx: ctx, reg: reg, store: store, invoice: invoice, records: []*domain.Record{inv}}
}

func TestColumns(t *testing.T) {
	f := newFixture(t)
	cols, err := table.Columns(f.reg, "sales.invoice", metadata.AllFields)
	require.NoError(t, err)

	var headers, sortKeys []string
	for _, c := range cols {
		headers = append(headers, c.Header)
		sortKeys = append(sortKeys, c.SortKey)
	}
	assert.Equal(t, []string{"Number", "Customer", "Date", "Total", "Status", "Lines"}, headers)
	assert.Equal(t, []string{"number", "customer.name", "date", "total", "status", ""}, sortKeys)

	_, err = table.Columns(f.reg, "sales.invoice", "customer.nope")
	assert.Error(t, err)
}

func TestColumns_ExplicitColumnKeepsItsKeys(t *testing.T) {
	f := newFixture(t)
	cols, err := table.Columns(f.reg, "sales.invoice",
		table.Column{Path: "customer", Header: "Client", FilterKey: "customer.city"},
		table.Column{Path: "number"},
	)
	require.NoError(t, err)
	require.Len(t, cols, 2)

	assert.Equal(t, "Client", cols[0].Header)
	assert.Equal(t, "customer.city", cols[0].FilterKey)
	assert.Equal(t, "customer.name", cols[0].SortKey)
	require.NotNil(t, cols[0].Field)
	assert.Equal(t, "customer", cols[0].Field.Name)

	assert.Equal(t, "Number", cols[1].Header)
	assert.Equal(t, "number", cols[1].SortKey)
}

func TestBuildRowsAndExportAgree(t *testing.T) {
	f := newFixture(t)
	cols, err := table.Columns(f.reg, "sales.invoice",
		"number", "customer", "total", "lines",
		table.Column{Header: "Note", Cell: func(context.Context, *domain.Record) (any, error) {
			return template.HTML("<em>see</em> &amp; check"), nil
		}},
	)
	require.NoError(t, err)

	rows, err := table.BuildRows(f.ctx, domain.NewResolver(f.reg, f.store), f.invoice, cols, f.records)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	cells := rows[0].Cells
	assert.Equal(t, template.HTML("Acme &amp; Sons"), cells[1].HTML)
	assert.Equal(t, template.HTML("12.50"), cells[2].HTML)
	assert.Equal(t, template.HTML("Bolt<br>Nut"), cells[3].HTML)

	var buf bytes.Buffer
	require.NoError(t, table.Export(&buf, "Invoices", cols, rows, true))

	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer wb.Close()

	got, err := wb.GetRows("Invoices")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"Number", "Customer", "Total", "Lines", "Note"}, got[0])

	for i, cell := range cells {
		want := table.CleanCell(string(cell.HTML))
		assert.Equal(t, fmt.Sprint(want), got[1][i], "column %d", i)
	}

	// digit-only cells are stored as numbers
	typ, err := wb.GetCellType("Invoices", "A2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ)

	width, err := wb.GetColWidth("Invoices", "D")
	require.NoError(t, err)
	assert.InDelta(t, float64(len("Bolt\nNut")+3)*1.2, width, 0.01)
}

func TestRender(t *testing.T) {
	f := newFixture(t)
	cols, err := table.Columns(f.reg, "sales.invoice", "number", "customer", "lines")
	require.NoError(t, err)
	rows, err := table.BuildRows(f.ctx, domain.NewResolver(f.reg, f.store), f.invoice, cols, f.records)
	require.NoError(t, err)

	view := &table.View{
		Title:               "Invoices",
		Path:                "/sales/invoice/browse",
		Query:               url.Values{"ordering": {"number"}, "q": {"acme"}},
		Columns:             cols,
		Rows:                rows,
		Page:                table.Paginate(1, 1, 25),
		Search:              "acme",
		ItemsPerPageOptions: []int{25, -1},
		BulkActions:         []table.BulkAction{{Name: "excel", Label: "Excel"}},
		RowLinks: func(rec *domain.Record) []table.Link {
			return []table.Link{{Label: "Edit", URL: "/sales/invoice/edit/" + rec.ID.String()}}
		},
	}

	var buf bytes.Buffer
	require.NoError(t, table.Render(&buf, view))
	out := buf.String()

	assert.Contains(t, out, `class="sorted asc"`)
	assert.Contains(t, out, `href="/sales/invoice/browse?ordering=-number&amp;q=acme"`)
	assert.Contains(t, out, "Acme &amp; Sons")
	assert.Contains(t, out, "Bolt<br>Nut")
	assert.Contains(t, out, "/sales/invoice/edit/"+f.records[0].ID.String())
	assert.Contains(t, out, `<option value="excel">Excel</option>`)
	assert.NotContains(t, out, "No items found")
}
