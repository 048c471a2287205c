package views_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bread/internal/core/apperror"
	appctx "bread/internal/core/context"
	"bread/internal/core/id"
	"bread/internal/domain"
	"bread/internal/domain/audit"
	"bread/internal/domain/table"
	"bread/internal/infrastructure/http/v1/dto"
	"bread/internal/infrastructure/http/v1/middleware"
	"bread/internal/infrastructure/http/v1/pages"
	"bread/internal/infrastructure/http/v1/views"
	"bread/internal/infrastructure/storage/memory"
	"bread/internal/metadata"
	"bread/internal/metadata/metadatatest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	admin = &appctx.UserContext{UserID: "u-admin", Email: "admin@example.com", IsAdmin: true}
	clerk = &appctx.UserContext{UserID: "u-clerk", Email: "clerk@example.com", Permissions: []string{"crm.view_customer"}}
)

type env struct {
	models   *domain.ModelService
	site     *views.Site
	engine   *gin.Engine
	customer *metadata.Model
	user     *appctx.UserContext
}

func newEnv(t *testing.T, overrides map[string]views.Overrides) *env {
	t.Helper()
	reg := metadatatest.Registry(t)
	store := memory.NewStore(reg)
	models := domain.NewModelService(domain.ServiceConfig{Registry: reg, Store: store, TxManager: memory.NewTxManager(store)})

	codec, err := audit.NewCodec(audit.DefaultCompressThreshold)
	require.NoError(t, err)
	sink := audit.NewMemorySink(codec)
	audit.NewRecorder(sink).Attach(models.Hooks())

	renderer := pages.MustRenderer()
	b := views.NewBuilder(views.Config{Models: models, Renderer: renderer, Audit: sink})
	b.RegisterCRUD("crm.customer", overrides["crm.customer"])
	b.RegisterCRUD("sales.invoice", overrides["sales.invoice"])
	site, err := b.Build()
	require.NoError(t, err)

	e := &env{models: models, site: site, user: admin}
	e.customer, err = reg.Model("crm.customer")
	require.NoError(t, err)

	e.engine = gin.New()
	e.engine.Use(middleware.ErrorHandler(renderer), middleware.Recovery(), func(c *gin.Context) {
		if e.user != nil {
			c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), e.user))
		}
		c.Next()
	})
	site.Mount(e.engine)
	return e
}

func (e *env) create(t *testing.T, name, city string) *domain.Record {
	t.Helper()
	rec := domain.NewRecord()
	rec.Set("name", name)
	rec.Set("city", city)
	require.NoError(t, e.models.Create(appctx.WithUser(context.Background(), admin), e.customer, rec))
	return rec
}

func (e *env) get(t *testing.T, raw string) *domain.Record {
	t.Helper()
	recordID, err := id.Parse(raw)
	require.NoError(t, err)
	rec, err := e.models.Get(context.Background(), e.customer, recordID)
	require.NoError(t, err)
	return rec
}

func (e *env) do(method, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func cookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

func flashes(t *testing.T, w *httptest.ResponseRecorder) []string {
	t.Helper()
	c := cookie(w, pages.FlashCookie)
	if c == nil || c.Value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	require.NoError(t, err)
	var list []pages.Flash
	require.NoError(t, json.Unmarshal(raw, &list))
	out := make([]string, 0, len(list))
	for _, f := range list {
		out = append(out, f.Message)
	}
	return out
}

func TestSite_NamesAndReverse(t *testing.T) {
	e := newEnv(t, nil)

	path, err := e.site.Reverse("crm.customer.read", "42")
	require.NoError(t, err)
	assert.Equal(t, "/crm/customer/read/42", path)

	path, err = e.site.Reverse("sales.invoice.browse")
	require.NoError(t, err)
	assert.Equal(t, "/sales/invoice/browse", path)

	_, err = e.site.Reverse("sales.invoice.print")
	assert.True(t, apperror.IsNotFound(err))

	set, ok := e.site.URLs("crm.customer")
	require.True(t, ok)
	assert.Equal(t, "crm.customer.edit", set.Name(views.ActionEdit))
	reg, ok := set.Registration(views.ActionDelete)
	require.True(t, ok)
	assert.Equal(t, "crm.delete_customer", reg.Permission)
	assert.Equal(t, []string{http.MethodGet, http.MethodPost}, reg.Methods)

	assert.Len(t, e.site.Registrations(), 12)
}

func TestBuilder_RejectsConflicts(t *testing.T) {
	reg := metadatatest.Registry(t)
	store := memory.NewStore(reg)
	models := domain.NewModelService(domain.ServiceConfig{Registry: reg, Store: store, TxManager: memory.NewTxManager(store)})
	cfg := views.Config{Models: models, Renderer: pages.MustRenderer()}

	tests := []struct {
		name     string
		register func(b *views.Builder)
		message  string
	}{
		{
			name: "model twice",
			register: func(b *views.Builder) {
				b.RegisterCRUD("crm.customer", views.Overrides{})
				b.RegisterCRUD("crm.customer", views.Overrides{Prefix: "/customers"})
			},
			message: "registered twice",
		},
		{
			name: "shared prefix",
			register: func(b *views.Builder) {
				b.RegisterCRUD("crm.customer", views.Overrides{})
				b.RegisterCRUD("sales.invoice", views.Overrides{Prefix: "crm/customer"})
			},
			message: "already used",
		},
		{
			name: "unknown model",
			register: func(b *views.Builder) {
				b.RegisterCRUD("crm.lead", views.Overrides{})
			},
			message: "crm.lead",
		},
		{
			name: "extension shadows an action",
			register: func(b *views.Builder) {
				b.RegisterCRUD("crm.customer", views.Overrides{Extra: []views.Extension{{
					Name:    "browse",
					Handler: func(*views.ModelViews) gin.HandlerFunc { return func(*gin.Context) {} },
				}}})
			},
			message: "invalid extension",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := views.NewBuilder(cfg)
			tt.register(b)
			_, err := b.Build()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestBrowse_SearchAndExpressions(t *testing.T) {
	e := newEnv(t, nil)
	e.create(t, "Acme", "Bern")
	e.create(t, "Globex", "Basel")
	e.create(t, "Initech", "Bern")

	tests := []struct {
		name    string
		query   string
		shown   []string
		hidden  []string
		message string
	}{
		{name: "everything", query: "", shown: []string{"Acme", "Globex", "Initech"}},
		{name: "free text", query: "bern", shown: []string{"Acme", "Initech"}, hidden: []string{"Globex"}},
		{name: "expression", query: `=city = "Basel"`, shown: []string{"Globex"}, hidden: []string{"Acme", "Initech"}},
		{name: "bad expression lists everything", query: "=nope = 1", shown: []string{"Acme", "Globex", "Initech"}, message: "Bad filter string"},
		{name: "unbalanced parenthesis lists everything", query: `=(city = "Bern"`, shown: []string{"Acme", "Globex", "Initech"}, message: "at position 14"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(http.MethodGet, "/crm/customer/browse?"+url.Values{views.SearchParam: {tt.query}}.Encode(), nil)
			require.Equal(t, http.StatusOK, w.Code)
			body := w.Body.String()
			for _, s := range tt.shown {
				assert.Contains(t, body, s)
			}
			for _, s := range tt.hidden {
				assert.NotContains(t, body, s)
			}
			if tt.message != "" {
				assert.Contains(t, body, tt.message)
			}
		})
	}
}

func TestBrowse_PagingClampsToLastPage(t *testing.T) {
	e := newEnv(t, nil)
	for _, name := range []string{"Acme", "Globex", "Initech"} {
		e.create(t, name, "")
	}

	w := e.do(http.MethodGet, "/crm/customer/browse?"+table.ItemsPerPageParam+"=2&"+table.PageParam+"=9", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Initech")
	assert.NotContains(t, body, "Acme")
	assert.Contains(t, body, "3–3 of 3")

	w = e.do(http.MethodGet, "/crm/customer/browse?"+table.OrderingParam+"=-name&"+table.ItemsPerPageParam+"=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Initech")
	assert.NotContains(t, w.Body.String(), "Globex")
}

func TestBrowse_PermissionsShapeLinks(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.create(t, "Acme", "Bern")
	e.user = clerk

	w := e.do(http.MethodGet, "/crm/customer/browse", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "/crm/customer/read/"+rec.ID.String())
	assert.NotContains(t, body, "/crm/customer/edit/")
	assert.NotContains(t, body, "/crm/customer/add")
	assert.Contains(t, body, `value="excel"`)
	assert.NotContains(t, body, `value="delete"`)

	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/crm/customer/add", nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/sales/invoice/browse", nil).Code)

	e.user = nil
	w = e.do(http.MethodGet, "/crm/customer/browse", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next=%2Fcrm%2Fcustomer%2Fbrowse", w.Header().Get("Location"))
}

func TestBrowse_BulkActions(t *testing.T) {
	tests := []struct {
		name    string
		user    *appctx.UserContext
		query   func(a, b *domain.Record) url.Values
		flash   string
		deleted int
	}{
		{
			name:  "unknown action",
			user:  admin,
			query: func(a, b *domain.Record) url.Values { return url.Values{views.BulkActionParam: {"archive"}} },
			flash: "Action 'archive' is not configured for this view",
		},
		{
			name:  "action without permission",
			user:  clerk,
			query: func(a, b *domain.Record) url.Values { return url.Values{views.BulkActionParam: {"delete"}, views.SelectedParam: {a.ID.String()}} },
			flash: "Action 'delete' is not configured for this view",
		},
		{
			name:  "delete needs a selection",
			user:  admin,
			query: func(a, b *domain.Record) url.Values { return url.Values{views.BulkActionParam: {"delete"}} },
			flash: "Select at least one item first",
		},
		{
			name: "delete selected",
			user: admin,
			query: func(a, b *domain.Record) url.Values {
				return url.Values{views.BulkActionParam: {"delete"}, views.SelectedParam: {a.ID.String(), b.ID.String()}}
			},
			flash:   "Deleted 2 Customers",
			deleted: 2,
		},
		{
			name: "delete all of a search",
			user: admin,
			query: func(a, b *domain.Record) url.Values {
				return url.Values{views.BulkActionParam: {"delete"}, views.SelectedParam: {"all"}, views.SearchParam: {"bern"}}
			},
			flash:   "Deleted 1 Customers",
			deleted: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, nil)
			a := e.create(t, "Acme", "Bern")
			b := e.create(t, "Globex", "Basel")
			e.user = tt.user

			query := tt.query(a, b)
			w := e.do(http.MethodPost, "/crm/customer/browse?"+query.Encode(), url.Values{})
			require.Equal(t, http.StatusSeeOther, w.Code)

			query.Del(views.BulkActionParam)
			query.Del(views.SelectedParam)
			back := "/crm/customer/browse"
			if len(query) > 0 {
				back += "?" + query.Encode()
			}
			assert.Equal(t, back, w.Header().Get("Location"))
			assert.Equal(t, []string{tt.flash}, flashes(t, w))

			res, err := e.models.List(context.Background(), e.customer, domain.Query{})
			require.NoError(t, err)
			assert.Len(t, res.Items, 2-tt.deleted)
		})
	}
}

func TestBrowse_BulkActionsConfirmOnGet(t *testing.T) {
	tests := []struct {
		action  string
		message string
	}{
		{action: "delete", message: "Delete 2 Customers?"},
		{action: "copy", message: "Copy 2 Customers?"},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			e := newEnv(t, nil)
			e.create(t, "Acme", "Bern")
			e.create(t, "Globex", "Basel")
			e.user = admin

			query := url.Values{views.BulkActionParam: {tt.action}, views.SelectedParam: {"all"}}
			target := "/crm/customer/browse?" + query.Encode()
			w := e.do(http.MethodGet, target, nil)
			require.Equal(t, http.StatusOK, w.Code)
			body := w.Body.String()
			assert.Contains(t, body, tt.message)
			assert.Contains(t, body, `method="post"`)
			assert.Contains(t, body, "_bulkaction="+tt.action)

			res, err := e.models.List(context.Background(), e.customer, domain.Query{})
			require.NoError(t, err)
			assert.Len(t, res.Items, 2)
		})
	}
}

func TestBrowse_ExportsFilteredListing(t *testing.T) {
	e := newEnv(t, map[string]views.Overrides{"crm.customer": {Columns: []any{"name", "city"}}})
	e.create(t, "Acme", "Bern")
	e.create(t, "Globex", "Basel")
	e.create(t, "Initech", "Bern")

	w := e.do(http.MethodGet, "/crm/customer/browse?"+url.Values{
		views.BulkActionParam:   {"excel"},
		views.SearchParam:       {"bern"},
		table.ItemsPerPageParam: {"1"},
	}.Encode(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, table.XLSXContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="customers.xlsx"`, w.Header().Get("Content-Disposition"))

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Customers")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Name", "City"}, {"Acme", "Bern"}, {"Initech", "Bern"}}, rows)
}

func TestBrowse_RememberedState(t *testing.T) {
	e := newEnv(t, map[string]views.Overrides{"crm.customer": {RememberState: true}})
	e.create(t, "Acme", "Bern")

	w := e.do(http.MethodGet, "/crm/customer/browse?q=bern", nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := cookie(w, "bread_view_crm_customer")
	require.NotNil(t, state)
	assert.Equal(t, "/crm/customer/browse", state.Path)

	w = e.do(http.MethodGet, "/crm/customer/browse", nil, state)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/crm/customer/browse?q=bern", w.Header().Get("Location"))

	w = e.do(http.MethodGet, "/crm/customer/browse?"+views.ResetParam, nil, state)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/crm/customer/browse", w.Header().Get("Location"))
	cleared := cookie(w, "bread_view_crm_customer")
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

func TestRead_ShowsHistory(t *testing.T) {
	e := newEnv(t, map[string]views.Overrides{"crm.customer": {History: true, ReadFields: []string{"name", "city"}}})
	rec := e.create(t, "Acme", "Bern")

	w := e.do(http.MethodGet, "/crm/customer/read/"+rec.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<title>Acme</title>")
	assert.Contains(t, body, "<th>City</th><td>Bern</td>")
	assert.Contains(t, body, "/crm/customer/edit/"+rec.ID.String())

	e.user = clerk
	w = e.do(http.MethodGet, "/crm/customer/read/"+rec.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = w.Body.String()
	assert.Contains(t, body, "<h2>History</h2>")
	assert.Contains(t, body, "<td>admin@example.com</td><td>Create</td>")
	assert.NotContains(t, body, "/crm/customer/edit/")

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/crm/customer/read/not-an-id", nil).Code)
}

func TestAdd(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(http.MethodGet, "/crm/customer/add?city=Bern", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="city" value="Bern"`)
	assert.NotContains(t, w.Body.String(), "This field is required.")

	w = e.do(http.MethodPost, "/crm/customer/add", url.Values{"city": {"Bern"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "This field is required.")

	w = e.do(http.MethodPost, "/crm/customer/add", url.Values{"name": {strings.Repeat("x", 101)}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "at most 100 characters")

	w = e.do(http.MethodPost, "/crm/customer/add", url.Values{"name": {"Acme"}, "city": {"Bern"}, "vip": {"true"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, []string{"Saved Customer Acme"}, flashes(t, w))

	res, err := e.models.List(context.Background(), e.customer, domain.Query{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	created := res.Items[0]
	assert.Equal(t, "/crm/customer/read/"+created.ID.String(), w.Header().Get("Location"))
	assert.Equal(t, "Bern", created.Get("city"))
	assert.Equal(t, true, created.Get("vip"))
}

func TestEdit(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.create(t, "Acme", "Bern")
	target := "/crm/customer/edit/" + rec.ID.String()

	w := e.do(http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="name" value="Acme"`)

	w = e.do(http.MethodPost, target, url.Values{"name": {""}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "Acme", e.get(t, rec.ID.String()).Get("name"))

	w = e.do(http.MethodPost, target+"?next="+url.QueryEscape("/crm/customer/browse?q=acme"), url.Values{"name": {"Acme Corp"}, "city": {"Basel"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/crm/customer/browse?q=acme", w.Header().Get("Location"))
	assert.Equal(t, "Acme Corp", e.get(t, rec.ID.String()).Get("name"))

	w = e.do(http.MethodPost, target+"?next="+url.QueryEscape("https://evil.example.com/"), url.Values{"name": {"Acme"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/crm/customer/read/"+rec.ID.String(), w.Header().Get("Location"))
}

func TestDeleteAndRestore(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.create(t, "Acme", "Bern")
	recordID := rec.ID.String()

	w := e.do(http.MethodGet, "/crm/customer/delete/"+recordID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Are you sure you want to delete Acme?")

	w = e.do(http.MethodPost, "/crm/customer/delete/"+recordID, url.Values{})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/crm/customer/browse", w.Header().Get("Location"))
	assert.Equal(t, []string{"Deleted Customer Acme"}, flashes(t, w))
	assert.Equal(t, true, e.get(t, recordID).Get("archived"))

	w = e.do(http.MethodGet, "/crm/customer/read/"+recordID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "This record is deleted.")
	assert.Contains(t, w.Body.String(), `action="/crm/customer/delete/`+recordID+`?restore"`)

	// restoring needs the change permission, not the delete one
	e.user = &appctx.UserContext{UserID: "u-3", Permissions: []string{"crm.delete_customer"}}
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPost, "/crm/customer/delete/"+recordID+"?restore", url.Values{}).Code)

	e.user = &appctx.UserContext{UserID: "u-4", Permissions: []string{"crm.change_customer"}}
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodPost, "/crm/customer/delete/"+recordID, url.Values{}).Code)
	w = e.do(http.MethodPost, "/crm/customer/delete/"+recordID+"?restore", url.Values{})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/crm/customer/read/"+recordID, w.Header().Get("Location"))
	assert.Equal(t, []string{"Restored Customer Acme"}, flashes(t, w))
	assert.Equal(t, false, e.get(t, recordID).Get("archived"))
}

func TestRestore_RefusedWithoutSoftDelete(t *testing.T) {
	e := newEnv(t, nil)
	customer := e.create(t, "Acme", "Bern")
	invoiceModel, err := e.models.Registry().Model("sales.invoice")
	require.NoError(t, err)
	invoice := domain.NewRecord()
	invoice.Set("number", "A-1")
	invoice.Set("customer", customer.ID)
	require.NoError(t, e.models.Create(context.Background(), invoiceModel, invoice))

	w := e.do(http.MethodPost, "/sales/invoice/delete/"+invoice.ID.String()+"?restore", url.Values{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCopy(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.create(t, "Acme", "Bern")

	w := e.do(http.MethodGet, "/crm/customer/copy/"+rec.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Create a copy of Acme?")

	w = e.do(http.MethodPost, "/crm/customer/copy/"+rec.ID.String(), url.Values{})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, []string{"Created copy Acme (Copy)"}, flashes(t, w))

	res, err := e.models.List(context.Background(), e.customer, domain.Query{})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	var clone *domain.Record
	for _, item := range res.Items {
		if item.ID != rec.ID {
			clone = item
		}
	}
	require.NotNil(t, clone)
	assert.Equal(t, "Acme (Copy)", clone.Get("name"))
	assert.Equal(t, "/crm/customer/read/"+clone.ID.String(), w.Header().Get("Location"))
}

func TestQuickSearch(t *testing.T) {
	e := newEnv(t, map[string]views.Overrides{"crm.customer": {Extra: []views.Extension{views.QuickSearch()}}})
	acme := e.create(t, "Acme", "Bern")
	e.create(t, "Globex", "Basel")
	e.user = clerk

	path, err := e.site.Reverse("crm.customer.quicksearch")
	require.NoError(t, err)

	w := e.do(http.MethodGet, path+"?q=acm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got []dto.SearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, []dto.SearchResult{{
		ID:    acme.ID.String(),
		Label: "Acme",
		URL:   "/crm/customer/read/" + acme.ID.String(),
	}}, got)

	w = e.do(http.MethodGet, path+"?q=", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}
