package views

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"bread/internal/core/apperror"
	appctx "bread/internal/core/context"
	"bread/internal/core/id"
	"bread/internal/domain"
	"bread/internal/infrastructure/http/v1/pages"
)

// NextParam overrides where a view redirects after success.
const NextParam = "next"

// can reports whether the current user may open the view registered for action.
func (v *ModelViews) can(c *gin.Context, action Action) bool {
	r, ok := v.URLs.regs[action]
	if !ok {
		return false
	}
	return appctx.GetUser(c.Request.Context()).HasPermission(r.Permission)
}

// record loads the record named by the ":id" parameter. It reports false
// after registering the error on c.
func (v *ModelViews) record(c *gin.Context) (*domain.Record, bool) {
	raw := c.Param("id")
	recordID, err := id.Parse(raw)
	if err != nil {
		fail(c, apperror.NewNotFound(v.Model.Label, raw))
		return nil, false
	}
	rec, err := v.cfg.Models.Get(c.Request.Context(), v.Model, recordID)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return rec, true
}

// html renders a page titled title.
func (v *ModelViews) html(c *gin.Context, status int, name, title string, content any) {
	v.cfg.Renderer.HTML(c, status, name, title, content)
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// redirect sends the browser to the next parameter, if it is a local path,
// and to fallback otherwise.
func redirect(c *gin.Context, fallback string) {
	c.Redirect(http.StatusSeeOther, nextOr(c, fallback))
}

func nextOr(c *gin.Context, fallback string) string {
	next := c.Query(NextParam)
	if next == "" {
		next = c.PostForm(NextParam)
	}
	if IsLocalPath(next) {
		return next
	}
	return fallback
}

// IsLocalPath accepts absolute paths on this host only.
func IsLocalPath(s string) bool {
	if !strings.HasPrefix(s, "/") || strings.HasPrefix(s, "//") || strings.HasPrefix(s, "/\\") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme == "" && u.Host == ""
}

// withNext appends a next parameter pointing back to the current page.
func withNext(target string, c *gin.Context) string {
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + NextParam + "=" + url.QueryEscape(c.Request.URL.RequestURI())
}

// passNext keeps an incoming next parameter on a form action.
func passNext(target string, c *gin.Context) string {
	next := c.Query(NextParam)
	if !IsLocalPath(next) {
		return target
	}
	return target + "?" + NextParam + "=" + url.QueryEscape(next)
}

func flash(c *gin.Context, level, message string) {
	pages.AddFlash(c, level, message)
}
