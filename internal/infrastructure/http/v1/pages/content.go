package pages

import (
	"html/template"
	"net/url"

	"bread/internal/domain/filter"
	"bread/internal/domain/forms"
	"bread/internal/domain/table"
)

// Section groups navigation links, one per app.
type Section struct {
	Title string
	Links []NavLink
}

// IndexContent is the start page.
type IndexContent struct {
	Sections []Section
}

// BrowseContent is a model listing with its filter panel.
type BrowseContent struct {
	Path        string
	Table       template.HTML
	Panel       *filter.Panel
	PanelActive bool
	PanelErrors []string
	// Keep are the listing parameters resubmitted with the panel form.
	Keep     url.Values
	ResetURL string
}

// ReadField is one labelled value of the read view.
type ReadField struct {
	Label string
	Value template.HTML
}

// HistoryChange is one field of an audit entry.
type HistoryChange struct {
	Field string
	Old   string
	New   string
}

// HistoryEntry is one audit entry shown under a record.
type HistoryEntry struct {
	When    string
	Who     string
	Action  string
	Changes []HistoryChange
}

// ReadContent shows a single record.
type ReadContent struct {
	Fields     []ReadField
	Links      []table.Link
	Deleted    bool
	RestoreURL string
	History    []HistoryEntry
}

// FormContent is an add or edit form.
type FormContent struct {
	Form      *forms.Form
	Action    string
	CancelURL string
	Submit    string
}

// ConfirmContent asks before a destructive or creating POST.
type ConfirmContent struct {
	Message   string
	Action    string
	Submit    string
	CancelURL string
	Danger    bool
}

// ErrorContent is an error page.
type ErrorContent struct {
	Status    int
	Code      string
	Message   string
	Fields    map[string][]string
	RequestID string
}

// LoginContent is the login form.
type LoginContent struct {
	Action string
	Next   string
	Email  string
	Error  string
}

// ReportContent is one executed report, or the configuration problem that
// stops it from running.
type ReportContent struct {
	Error     string
	Table     template.HTML
	Headers   []string
	Totals    []string
	ExportURL string
}

// ReportListContent lists the saved reports.
type ReportListContent struct {
	Reports []NavLink
}
