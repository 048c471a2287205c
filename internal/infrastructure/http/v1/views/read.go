package views

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"bread/internal/domain"
	"bread/internal/domain/table"
	"bread/internal/infrastructure/http/v1/pages"
	"bread/internal/metadata"
)

// historyLimit caps the audit entries shown under a record.
const historyLimit = 50

// Read shows one record.
func (v *ModelViews) Read(c *gin.Context) {
	rec, ok := v.record(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	reg := v.cfg.Models.Registry()

	cols, err := table.Columns(reg, v.Model.Key(), anySlice(v.readFields)...)
	if err != nil {
		fail(c, err)
		return
	}
	rv := domain.NewResolver(reg, v.cfg.Models.Reader())
	rows, err := table.BuildRows(ctx, rv, v.Model, cols, []*domain.Record{rec})
	if err != nil {
		fail(c, err)
		return
	}

	content := pages.ReadContent{Fields: make([]pages.ReadField, 0, len(cols))}
	for i, col := range cols {
		content.Fields = append(content.Fields, pages.ReadField{Label: col.Header, Value: rows[0].Cells[i].HTML})
	}

	recordID := rec.ID.String()
	if v.Model.SoftDeleteField != "" {
		content.Deleted, _ = rec.Get(v.Model.SoftDeleteField).(bool)
	}
	if content.Deleted {
		if v.canRestore(c) {
			content.RestoreURL = v.URLs.URL(ActionDelete, recordID) + "?" + RestoreParam
		}
	} else {
		if v.can(c, ActionEdit) {
			content.Links = append(content.Links, table.Link{Label: "Edit", URL: v.URLs.URL(ActionEdit, recordID)})
		}
		if v.can(c, ActionCopy) {
			content.Links = append(content.Links, table.Link{Label: "Copy", URL: v.URLs.URL(ActionCopy, recordID)})
		}
		if v.can(c, ActionDelete) {
			content.Links = append(content.Links, table.Link{Label: "Delete", URL: v.URLs.URL(ActionDelete, recordID)})
		}
	}

	if v.history && v.cfg.Audit != nil {
		if content.History, err = v.historyOf(ctx, rec); err != nil {
			// the record itself is still worth showing
			v.log.WithContext(ctx).Warnw("load history failed", "id", recordID, "error", err)
		}
	}

	v.html(c, http.StatusOK, "read", rec.Label(v.Model), content)
}

func (v *ModelViews) historyOf(ctx context.Context, rec *domain.Record) ([]pages.HistoryEntry, error) {
	entries, err := v.cfg.Audit.History(ctx, v.Model.Key(), rec.ID, historyLimit)
	if err != nil {
		return nil, err
	}
	out := make([]pages.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		changes, err := e.Decode()
		if err != nil {
			return nil, err
		}
		h := pages.HistoryEntry{
			When:   e.CreatedAt.Format("2006-01-02 15:04"),
			Who:    e.UserEmail,
			Action: metadata.Humanize(string(e.Action)),
		}
		names := make([]string, 0, len(changes))
		for name := range changes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			label := metadata.Humanize(name)
			if f, ok := v.Model.Field(name); ok {
				label = f.Label
			}
			h.Changes = append(h.Changes, pages.HistoryChange{Field: label, Old: changes[name].Old, New: changes[name].New})
		}
		out = append(out, h)
	}
	return out, nil
}

func anySlice(names []string) []any {
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}
