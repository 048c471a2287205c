package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bread/internal/core/apperror"
	appctx "bread/internal/core/context"
	"bread/internal/infrastructure/http/v1/pages"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubValidator map[string]*appctx.UserContext

func (v stubValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	if u, ok := v[token]; ok {
		return u, nil
	}
	return nil, errors.New("bad token")
}

var users = stubValidator{
	"clerk": {UserID: "u1", Email: "clerk@example.com", Permissions: []string{"sales.view_invoice"}},
	"admin": {UserID: "u2", Email: "admin@example.com", IsAdmin: true},
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Trace(), ErrorHandler(pages.MustRenderer()), Recovery())
	r.GET("/*path", handlers...)
	r.POST("/*path", handlers...)
	return r
}

func ok(c *gin.Context) {
	c.String(http.StatusOK, appctx.GetUserID(c.Request.Context()))
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth(users), RequirePermission("sales.view_invoice"), ok)

	tests := []struct {
		name     string
		prepare  func(*http.Request)
		status   int
		body     string
		location string
	}{
		{
			name:    "bearer token",
			prepare: func(req *http.Request) { req.Header.Set("Authorization", "Bearer clerk") },
			status:  http.StatusOK,
			body:    "u1",
		},
		{
			name:    "session cookie",
			prepare: func(req *http.Request) { req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "admin"}) },
			status:  http.StatusOK,
			body:    "u2",
		},
		{
			name:     "missing token redirects browsers",
			prepare:  func(*http.Request) {},
			status:   http.StatusFound,
			location: "/login?next=%2Fsales%2Finvoice%2Fbrowse%3Fpage%3D2",
		},
		{
			name:    "invalid token for api clients",
			prepare: func(req *http.Request) { req.Header.Set("Authorization", "Bearer nope"); req.Header.Set("Accept", "application/json") },
			status:  http.StatusUnauthorized,
			body:    apperror.CodeUnauthorized,
		},
		{
			name:    "malformed header",
			prepare: func(req *http.Request) { req.Header.Set("Authorization", "Token clerk"); req.Header.Set("Accept", "application/json") },
			status:  http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/sales/invoice/browse?page=2", nil)
			tt.prepare(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Contains(t, w.Body.String(), tt.body)
			}
			if tt.location != "" {
				assert.Equal(t, tt.location, w.Header().Get("Location"))
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	r := newEngine(OptionalAuth(users), ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer clerk")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "u1", w.Body.String())
}

func TestRequirePermission_Forbidden(t *testing.T) {
	r := newEngine(Auth(users), RequirePermission("sales.delete_invoice"), ok)

	req := httptest.NewRequest(http.MethodGet, "/sales/invoice/delete/1", nil)
	req.Header.Set("Authorization", "Bearer clerk")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient permissions")
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	req = httptest.NewRequest(http.MethodGet, "/sales/invoice/delete/1", nil)
	req.Header.Set("Authorization", "Bearer admin")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAnyPermission(t *testing.T) {
	r := newEngine(Auth(users), RequireAnyPermission("sales.add_invoice", "sales.view_invoice"), ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer clerk")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		_ = c.Error(errors.New("connection refused to 10.0.0.3"))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/meta", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.3")
	assert.Contains(t, w.Body.String(), w.Header().Get(HeaderRequestID))
}

func TestErrorHandler_ValidationPage(t *testing.T) {
	r := newEngine(func(c *gin.Context) {
		fields := apperror.FieldErrors{}
		fields.Add("name", "This field is required.")
		_ = c.Error(fields.Err())
	})

	req := httptest.NewRequest(http.MethodPost, "/crm/customer/add", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "This field is required.")
}

func TestRecovery(t *testing.T) {
	r := newEngine(func(*gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "req-1", w.Header().Get(HeaderRequestID))
	assert.JSONEq(t, `{"code":"INTERNAL_ERROR","message":"Internal server error","details":{"request_id":"req-1"}}`, w.Body.String())
}
