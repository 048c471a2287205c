// Package pages renders the HTML pages of the web interface: a shared
// layout around one content template per page.
package pages

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	appctx "bread/internal/core/context"
	"bread/pkg/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

var funcs = template.FuncMap{
	"join": strings.Join,
}

// NavLink is an entry of the navigation bar.
type NavLink struct {
	Label  string
	URL    string
	Active bool
}

// Page is the data every template receives. Content is the page specific part.
type Page struct {
	Title   string
	User    *appctx.UserContext
	Flashes []Flash
	Nav     []NavLink
	Content any
}

// Renderer executes page templates.
type Renderer struct {
	pages map[string]*template.Template

	// Nav lists the navigation entries for the current request. Set once at
	// startup, before the server accepts requests.
	Nav func(c *gin.Context) []NavLink
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	layout, err := template.New("layout").Funcs(funcs).ParseFS(templateFS, layoutFile)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(files))}
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		t, err := template.Must(layout.Clone()).ParseFS(templateFS, file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		r.pages[strings.TrimSuffix(path.Base(file), ".html")] = t
	}
	return r, nil
}

// MustRenderer is NewRenderer for package-level setup and tests.
func MustRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

// Render writes page name to w.
func (r *Renderer) Render(w io.Writer, name string, p *Page) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	return t.ExecuteTemplate(w, "layout", p)
}

// HTML renders page name as the response. The page is buffered, so a
// template failure still produces a clean 500.
func (r *Renderer) HTML(c *gin.Context, status int, name, title string, content any) {
	p := &Page{
		Title:   title,
		User:    appctx.GetUser(c.Request.Context()),
		Flashes: TakeFlashes(c),
		Content: content,
	}
	if r.Nav != nil && p.User != nil {
		p.Nav = r.Nav(c)
	}

	var buf bytes.Buffer
	if err := r.Render(&buf, name, p); err != nil {
		logger.Error(c.Request.Context(), "render page failed", "page", name, "error", err)
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}
