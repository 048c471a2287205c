package pages

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "bread/internal/core/context"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRenderer_EveryPage(t *testing.T) {
	r := MustRenderer()
	contents := map[string]any{
		"index":   IndexContent{Sections: []Section{{Title: "Crm", Links: []NavLink{{Label: "Customers", URL: "/crm/customer/browse"}}}}},
		"browse":  BrowseContent{Path: "/crm/customer/browse", ResetURL: "/crm/customer/browse?reset"},
		"read":    ReadContent{Fields: []ReadField{{Label: "Name", Value: "Acme"}}, Deleted: true, RestoreURL: "/x"},
		"confirm": ConfirmContent{Message: "Delete Acme?", Action: "/x", Submit: "Delete"},
		"error":   ErrorContent{Status: 404, Code: "NOT_FOUND", Message: "gone", Fields: map[string][]string{"name": {"a", "b"}}},
		"login":   LoginContent{Action: "/login", Next: "/crm"},
		"reports": ReportListContent{},
		"report":  ReportContent{Error: "report \"x\" no longer matches its model"},
	}
	for name, content := range contents {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			err := r.Render(&buf, name, &Page{Title: "Title", Content: content})
			require.NoError(t, err)
			assert.Contains(t, buf.String(), "<title>Title</title>")
		})
	}

	var buf bytes.Buffer
	assert.Error(t, r.Render(&buf, "missing", &Page{}))
}

func TestRenderer_EscapesContent(t *testing.T) {
	var buf bytes.Buffer
	err := MustRenderer().Render(&buf, "error", &Page{Content: ErrorContent{Message: "<script>"}})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "<script>")
	assert.Contains(t, buf.String(), "&lt;script&gt;")
}

func TestRenderer_HTMLShowsUserAndNav(t *testing.T) {
	r := MustRenderer()
	r.Nav = func(*gin.Context) []NavLink {
		return []NavLink{{Label: "Invoices", URL: "/sales/invoice/browse"}}
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request = req.WithContext(appctx.WithUser(req.Context(), &appctx.UserContext{UserID: "u1", Email: "ada@example.com"}))

	r.HTML(c, http.StatusTeapot, "index", "Home", IndexContent{})

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Contains(t, w.Body.String(), "ada@example.com")
	assert.Contains(t, w.Body.String(), `href="/sales/invoice/browse"`)
}

func TestFlashes_SurviveRedirect(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	AddFlash(c, FlashSuccess, "Saved")
	AddFlash(c, FlashError, "But not everything")

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	last := cookies[len(cookies)-1]
	assert.Equal(t, FlashCookie, last.Name)

	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	c2.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c2.Request.AddCookie(last)

	assert.Equal(t, []Flash{
		{Level: FlashSuccess, Message: "Saved"},
		{Level: FlashError, Message: "But not everything"},
	}, TakeFlashes(c2))
	assert.Empty(t, TakeFlashes(c2))
}
