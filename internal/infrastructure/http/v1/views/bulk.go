package views

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	appctx "bread/internal/core/context"
	"bread/internal/core/id"
	"bread/internal/domain"
	"bread/internal/domain/auth"
	"bread/internal/domain/table"
	"bread/internal/infrastructure/http/v1/pages"
	"bread/internal/metadata"
)

// BulkAction runs on the selected rows of a browse view.
type BulkAction struct {
	Name       string
	Label      string
	Permission string
	// NeedsSelection refuses to run when no rows are selected; otherwise the
	// whole filtered listing is used.
	NeedsSelection bool
	// Confirm marks actions that change data. A GET shows a confirmation
	// page and the action runs on the POST it submits.
	Confirm bool
	// Run executes the action. It may write a response; when it does not,
	// the browse view redirects back to the listing.
	Run func(c *gin.Context, v *ModelViews, q domain.Query) error
}

func (a BulkAction) allowed(c *gin.Context) bool {
	return a.Permission == "" || appctx.GetUser(c.Request.Context()).HasPermission(a.Permission)
}

// DefaultBulkActions offers spreadsheet export, delete and copy.
func DefaultBulkActions(m *metadata.Model) []BulkAction {
	return []BulkAction{
		{
			Name:       "excel",
			Label:      "Excel",
			Permission: auth.Permission(m.App, "view", m.Name),
			Run:        ExportAction,
		},
		{
			Name:           "delete",
			Label:          "Delete",
			Permission:     auth.Permission(m.App, "delete", m.Name),
			NeedsSelection: true,
			Confirm:        true,
			Run:            DeleteAction,
		},
		{
			Name:           "copy",
			Label:          "Copy",
			Permission:     auth.Permission(m.App, "add", m.Name),
			NeedsSelection: true,
			Confirm:        true,
			Run:            CopyAction,
		},
	}
}

func (v *ModelViews) runBulkAction(c *gin.Context, name string, l *listing) {
	params := c.Request.URL.Query()
	params.Del(BulkActionParam)
	params.Del(SelectedParam)
	back := v.URLs.URL(ActionBrowse)
	if len(params) > 0 {
		back += "?" + params.Encode()
	}

	var action *BulkAction
	for i := range v.bulkActions {
		if v.bulkActions[i].Name == name && v.bulkActions[i].allowed(c) {
			action = &v.bulkActions[i]
			break
		}
	}
	status := http.StatusFound
	if c.Request.Method == http.MethodPost {
		status = http.StatusSeeOther
	}
	switch {
	case action == nil:
		flash(c, pages.FlashError, fmt.Sprintf("Action '%s' is not configured for this view", name))
	case action.NeedsSelection && !l.selected:
		flash(c, pages.FlashError, "Select at least one item first")
	case action.Confirm && c.Request.Method != http.MethodPost:
		if err := v.confirmBulkAction(c, action, l, back); err != nil {
			flash(c, pages.FlashError, errorMessage(err))
			break
		}
		return
	default:
		if err := action.Run(c, v, l.query); err != nil {
			v.log.WithContext(c.Request.Context()).Warnw("bulk action failed", "action", name, "error", err)
			flash(c, pages.FlashError, errorMessage(err))
		}
		if c.Writer.Written() {
			return
		}
	}
	c.Redirect(status, back)
}

func (v *ModelViews) confirmBulkAction(c *gin.Context, a *BulkAction, l *listing, back string) error {
	ids, err := v.ids(c, l.query)
	if err != nil {
		return err
	}
	v.html(c, http.StatusOK, "confirm", a.Label+" "+v.Model.LabelPlural, pages.ConfirmContent{
		Message:   fmt.Sprintf("%s %d %s?", a.Label, len(ids), v.Model.LabelPlural),
		Action:    withQuery(c, v.URLs.URL(ActionBrowse)),
		Submit:    a.Label,
		CancelURL: back,
		Danger:    a.Name == "delete",
	})
	return nil
}

// ExportAction sends the listing as a spreadsheet with the browse columns.
func ExportAction(c *gin.Context, v *ModelViews, q domain.Query) error {
	ctx := c.Request.Context()
	res, err := v.cfg.Models.List(ctx, v.Model, q)
	if err != nil {
		return err
	}
	rv := domain.NewResolver(v.cfg.Models.Registry(), v.cfg.Models.Reader())
	rows, err := table.BuildRows(ctx, rv, v.Model, v.Columns, res.Items)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := table.Export(&buf, v.Model.LabelPlural, v.Columns, rows, true); err != nil {
		return err
	}
	filename := strings.ReplaceAll(strings.ToLower(v.Model.LabelPlural), " ", "_") + ".xlsx"
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, table.XLSXContentType, buf.Bytes())
	return nil
}

// DeleteAction deletes every record of the listing in one transaction.
func DeleteAction(c *gin.Context, v *ModelViews, q domain.Query) error {
	ids, err := v.ids(c, q)
	if err != nil {
		return err
	}
	if err := v.cfg.Models.DeleteMany(c.Request.Context(), v.Model, ids); err != nil {
		return err
	}
	flash(c, pages.FlashSuccess, fmt.Sprintf("Deleted %d %s", len(ids), v.Model.LabelPlural))
	return nil
}

// CopyAction copies every record of the listing in one transaction.
func CopyAction(c *gin.Context, v *ModelViews, q domain.Query) error {
	ids, err := v.ids(c, q)
	if err != nil {
		return err
	}
	copies, err := v.cfg.Models.CopyMany(c.Request.Context(), v.Model, ids)
	if err != nil {
		return err
	}
	flash(c, pages.FlashSuccess, fmt.Sprintf("Created %d copies", len(copies)))
	return nil
}

func (v *ModelViews) ids(c *gin.Context, q domain.Query) ([]id.ID, error) {
	q.OrderBy = nil
	res, err := v.cfg.Models.List(c.Request.Context(), v.Model, q)
	if err != nil {
		return nil, err
	}
	ids := make([]id.ID, 0, len(res.Items))
	for _, rec := range res.Items {
		ids = append(ids, rec.ID)
	}
	return ids, nil
}
