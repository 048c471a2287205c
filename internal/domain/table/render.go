package table

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strconv"

	"bread/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var tableTemplate = template.Must(template.New("table").ParseFS(templateFS, "templates/*.html"))

// Link is a labelled URL.
type Link struct {
	Label string
	URL   string
}

// BulkAction is an action offered for the selected rows.
type BulkAction struct {
	Name  string
	Label string
}

// View is everything needed to render a browse table.
type View struct {
	Title   string
	Path    string     // URL path of the listing
	Query   url.Values // current query parameters
	Columns []Column
	Rows    []Row
	Page    Page

	Search              string
	SearchError         string
	ItemsPerPageOptions []int
	BulkActions         []BulkAction
	AddURL              string
	// RowLinks returns the actions shown for each row (read, edit, ...).
	RowLinks func(rec *domain.Record) []Link
}

type headerCell struct {
	Label     string
	SortURL   string
	SortState string
}

type renderedRow struct {
	ID    string
	Cells []Cell
	Links []Link
}

type pageLink struct {
	Number  int
	URL     string
	Current bool
}

type perPageLink struct {
	Label   string
	URL     string
	Current bool
}

type renderData struct {
	*View
	Headers     []headerCell
	Body        []renderedRow
	PrevURL     string
	NextURL     string
	PageLinks   []pageLink
	PerPage     []perPageLink
	Hidden      url.Values
	ColumnCount int
}

// Render writes the HTML of the table.
func Render(w io.Writer, v *View) error {
	data := renderData{View: v, ColumnCount: len(v.Columns) + 2}
	current := v.Query.Get(OrderingParam)

	for _, c := range v.Columns {
		h := headerCell{Label: c.Header}
		if c.SortKey != "" {
			h.SortURL = v.url(OrderingParam, NextOrdering(current, c.SortKey), PageParam, "")
			h.SortState = SortState(current, c.SortKey)
		}
		data.Headers = append(data.Headers, h)
	}

	for _, row := range v.Rows {
		r := renderedRow{ID: row.Record.ID.String(), Cells: row.Cells}
		if v.RowLinks != nil {
			r.Links = v.RowLinks(row.Record)
		}
		data.Body = append(data.Body, r)
	}

	if v.Page.HasPrev() {
		data.PrevURL = v.url(PageParam, strconv.Itoa(v.Page.Number-1))
	}
	if v.Page.HasNext() {
		data.NextURL = v.url(PageParam, strconv.Itoa(v.Page.Number+1))
	}
	if v.Page.Pages > 1 {
		for n := 1; n <= v.Page.Pages; n++ {
			data.PageLinks = append(data.PageLinks, pageLink{
				Number:  n,
				URL:     v.url(PageParam, strconv.Itoa(n)),
				Current: n == v.Page.Number,
			})
		}
	}
	for _, n := range v.ItemsPerPageOptions {
		label := strconv.Itoa(n)
		if n <= 0 {
			label = "All"
		}
		data.PerPage = append(data.PerPage, perPageLink{
			Label:   label,
			URL:     v.url(ItemsPerPageParam, strconv.Itoa(n), PageParam, ""),
			Current: n == v.Page.PerPage || (n <= 0 && v.Page.PerPage == 0),
		})
	}

	// the search and bulk forms resubmit everything but their own inputs
	data.Hidden = url.Values{}
	for k, vals := range v.Query {
		switch k {
		case "q", PageParam, "_selected", "_bulkaction":
			continue
		}
		data.Hidden[k] = vals
	}

	if err := tableTemplate.ExecuteTemplate(w, "table", data); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return nil
}

// url returns the listing URL with pairs of parameters replaced; an empty
// value removes the parameter.
func (v *View) url(pairs ...string) string {
	q := url.Values{}
	for k, vals := range v.Query {
		q[k] = append([]string(nil), vals...)
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			q.Del(pairs[i])
			continue
		}
		q.Set(pairs[i], pairs[i+1])
	}
	if len(q) == 0 {
		return v.Path
	}
	return v.Path + "?" + q.Encode()
}
