package views

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"bread/internal/core/apperror"
	"bread/internal/core/id"
	"bread/internal/domain"
	"bread/internal/domain/filter"
	"bread/internal/domain/table"
	"bread/internal/infrastructure/http/v1/pages"
)

// Browse query parameters.
const (
	SearchParam     = "q"
	SelectedParam   = "_selected"
	BulkActionParam = "_bulkaction"
	ResetParam      = "reset"
	DeletedParam    = "deleted"
)

// listing is a parsed browse request.
type listing struct {
	query       domain.Query
	panel       *filter.Panel
	panelErrors []string
	search      string
	searchError string
	// selected is true when the request names rows, or "all".
	selected bool
}

// parseListing turns the browse parameters into a query over the whole
// filtered listing, without pagination. A malformed expression or panel
// value is reported on the listing and does not narrow the query.
func (v *ModelViews) parseListing(c *gin.Context) (*listing, error) {
	ctx := c.Request.Context()
	reg := v.cfg.Models.Registry()
	key := v.Model.Key()
	values := c.Request.URL.Query()
	l := &listing{search: strings.TrimSpace(values.Get(SearchParam))}

	var nodes []filter.Node
	if expr, ok := strings.CutPrefix(l.search, "="); ok {
		n, err := filter.ParseChecked(reg, key, expr)
		if err != nil {
			l.searchError = fmt.Sprintf("Bad filter string %q: %s", l.search, errorMessage(err))
			v.log.WithContext(ctx).Infow("ignoring filter expression", "q", l.search, "error", err)
		} else {
			nodes = append(nodes, n)
		}
	} else if l.search != "" {
		n, err := filter.Search(reg, key, l.search)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}

	if v.panel != nil {
		p, err := filter.BuildPanel(reg, key, *v.panel)
		if err != nil {
			return nil, err
		}
		l.panel = p
		n, err := p.Bind(values)
		if err != nil {
			fields, ok := apperror.GetFieldErrors(err)
			if !ok {
				return nil, err
			}
			for _, param := range fields.Fields() {
				l.panelErrors = append(l.panelErrors, panelLabel(p.Root, param)+": "+strings.Join(fields[param], " "))
			}
		} else {
			nodes = append(nodes, n)
		}
	}

	l.query.Filter = filter.NewGroup(filter.And, nodes...)
	if _, ok := values[DeletedParam]; ok && v.Model.SoftDeleteField != "" {
		l.query.IncludeDeleted = true
	}
	l.query.OrderBy = table.OrderBy(values.Get(table.OrderingParam), v.Columns)

	if selected := values[SelectedParam]; len(selected) > 0 {
		l.selected = true
		if !slices.Contains(selected, "all") {
			ids, err := id.ParseAll(selected)
			if err != nil {
				return nil, apperror.NewValidation("invalid selection")
			}
			l.query.IDs = ids
		}
	}
	return l, nil
}

func panelLabel(g *filter.PanelGroup, param string) string {
	for _, f := range g.Fields {
		if f.Param == param {
			return f.Label
		}
	}
	for _, sub := range g.Groups {
		if label := panelLabel(sub, param); label != "" {
			return label
		}
	}
	return ""
}

func errorMessage(err error) string {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}

// Browse lists the records of the model and runs bulk actions. Actions
// that change data run only on POST.
func (v *ModelViews) Browse(c *gin.Context) {
	ctx := c.Request.Context()
	path := v.URLs.URL(ActionBrowse)
	values := c.Request.URL.Query()

	if _, ok := values[ResetParam]; ok {
		v.clearState(c)
		c.Redirect(http.StatusFound, path)
		return
	}
	if v.remember {
		if len(values) == 0 {
			if saved := v.savedState(c); saved != "" {
				c.Redirect(http.StatusFound, path+"?"+saved)
				return
			}
		} else if _, bulk := values[BulkActionParam]; !bulk {
			v.saveState(c, values)
		}
	}

	l, err := v.parseListing(c)
	if err != nil {
		fail(c, err)
		return
	}

	if name := values.Get(BulkActionParam); name != "" {
		v.runBulkAction(c, name, l)
		return
	}

	page, perPage := table.ParsePaging(values, v.perPage)
	q := l.query
	if perPage > 0 {
		q.Limit, q.Offset = perPage, (page-1)*perPage
	}
	res, err := v.cfg.Models.List(ctx, v.Model, q)
	if err != nil {
		fail(c, err)
		return
	}
	pg := table.Paginate(res.TotalCount, page, perPage)
	if pg.Offset() != q.Offset {
		// page out of range; show the last one
		q.Offset = pg.Offset()
		if res, err = v.cfg.Models.List(ctx, v.Model, q); err != nil {
			fail(c, err)
			return
		}
	}

	rv := domain.NewResolver(v.cfg.Models.Registry(), v.cfg.Models.Reader())
	rows, err := table.BuildRows(ctx, rv, v.Model, v.Columns, res.Items)
	if err != nil {
		fail(c, err)
		return
	}

	view := &table.View{
		Title:               v.Model.LabelPlural,
		Path:                path,
		Query:               values,
		Columns:             v.Columns,
		Rows:                rows,
		Page:                pg,
		Search:              l.search,
		SearchError:         l.searchError,
		ItemsPerPageOptions: v.cfg.ItemsPerPageOptions,
		RowLinks:            func(rec *domain.Record) []table.Link { return v.rowLinks(c, rec) },
	}
	for _, a := range v.bulkActions {
		if a.allowed(c) {
			view.BulkActions = append(view.BulkActions, table.BulkAction{Name: a.Name, Label: a.Label})
		}
	}
	if v.can(c, ActionAdd) {
		view.AddURL = withNext(v.URLs.URL(ActionAdd), c)
	}

	var buf bytes.Buffer
	if err := table.Render(&buf, view); err != nil {
		fail(c, err)
		return
	}

	content := pages.BrowseContent{
		Path:        path,
		Table:       template.HTML(buf.String()),
		Panel:       l.panel,
		PanelErrors: l.panelErrors,
		Keep:        url.Values{},
		ResetURL:    path + "?" + ResetParam,
	}
	if l.panel != nil {
		content.PanelActive = l.panel.Root.Active()
		owned := l.panel.Root.Params()
		for k, vals := range values {
			if k == table.PageParam || slices.Contains(owned, k) {
				continue
			}
			content.Keep[k] = vals
		}
	}
	v.html(c, http.StatusOK, "browse", v.Model.LabelPlural, content)
}

func (v *ModelViews) rowLinks(c *gin.Context, rec *domain.Record) []table.Link {
	recordID := rec.ID.String()
	var links []table.Link
	if v.can(c, ActionRead) {
		links = append(links, table.Link{Label: "View", URL: v.URLs.URL(ActionRead, recordID)})
	}
	if v.can(c, ActionEdit) {
		links = append(links, table.Link{Label: "Edit", URL: withNext(v.URLs.URL(ActionEdit, recordID), c)})
	}
	if v.can(c, ActionCopy) {
		links = append(links, table.Link{Label: "Copy", URL: v.URLs.URL(ActionCopy, recordID)})
	}
	if v.can(c, ActionDelete) {
		links = append(links, table.Link{Label: "Delete", URL: withNext(v.URLs.URL(ActionDelete, recordID), c)})
	}
	return links
}

// stateCookie names the cookie remembering the browse parameters.
func (v *ModelViews) stateCookie() string {
	return "bread_view_" + v.Model.App + "_" + v.Model.Name
}

func (v *ModelViews) savedState(c *gin.Context) string {
	raw, err := c.Cookie(v.stateCookie())
	if err != nil {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	return values.Encode()
}

func (v *ModelViews) saveState(c *gin.Context, values url.Values) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(v.stateCookie(), values.Encode(), 0, v.URLs.URL(ActionBrowse), "", false, true)
}

func (v *ModelViews) clearState(c *gin.Context) {
	c.SetCookie(v.stateCookie(), "", -1, v.URLs.URL(ActionBrowse), "", false, true)
}
