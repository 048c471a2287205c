package views

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"bread/internal/core/apperror"
	"bread/internal/infrastructure/http/v1/pages"
)

// RestoreParam turns the delete view into restoring a soft-deleted record.
const RestoreParam = "restore"

func restoring(c *gin.Context) bool {
	_, ok := c.GetQuery(RestoreParam)
	return ok
}

// canRestore reports whether the user may clear a soft-delete mark, which
// needs the edit permission rather than the delete one.
func (v *ModelViews) canRestore(c *gin.Context) bool {
	return v.Model.SoftDeleteField != "" && v.can(c, ActionEdit)
}

// deletePermission picks the permission of the delete view per request.
func (v *ModelViews) deletePermission(c *gin.Context) string {
	action := ActionDelete
	if restoring(c) {
		action = ActionEdit
	}
	if r, ok := v.URLs.regs[action]; ok {
		return r.Permission
	}
	return v.URLs.regs[ActionDelete].Permission
}

// Delete asks for confirmation and deletes the record on POST. Models with
// a soft-delete field are marked instead; "?restore" clears the mark.
func (v *ModelViews) Delete(c *gin.Context) {
	rec, ok := v.record(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	recordID := rec.ID.String()
	label := rec.Label(v.Model)
	restore := restoring(c)
	if restore && v.Model.SoftDeleteField == "" {
		fail(c, apperror.NewValidation(fmt.Sprintf("%s records cannot be restored", v.Model.Label)))
		return
	}

	if c.Request.Method != http.MethodPost {
		content := pages.ConfirmContent{
			Message:   fmt.Sprintf("Are you sure you want to delete %s?", label),
			Action:    withQuery(c, v.URLs.URL(ActionDelete, recordID)),
			Submit:    "Delete",
			CancelURL: nextOr(c, v.URLs.URL(ActionRead, recordID)),
			Danger:    true,
		}
		if restore {
			content.Message = fmt.Sprintf("Restore %s?", label)
			content.Submit = "Restore"
			content.Danger = false
		}
		v.html(c, http.StatusOK, "confirm", "Delete "+label, content)
		return
	}

	if restore {
		if err := v.cfg.Models.Restore(ctx, v.Model, rec.ID); err != nil {
			fail(c, err)
			return
		}
		flash(c, pages.FlashSuccess, fmt.Sprintf("Restored %s %s", v.Model.Label, label))
		redirect(c, v.URLs.URL(ActionRead, recordID))
		return
	}

	if err := v.cfg.Models.Delete(ctx, v.Model, rec.ID); err != nil {
		fail(c, err)
		return
	}
	flash(c, pages.FlashSuccess, fmt.Sprintf("Deleted %s %s", v.Model.Label, label))
	redirect(c, v.URLs.URL(ActionBrowse))
}

// Copy asks for confirmation and clones the record on POST. Failures are
// flashed and lead back to the listing.
func (v *ModelViews) Copy(c *gin.Context) {
	rec, ok := v.record(c)
	if !ok {
		return
	}
	recordID := rec.ID.String()
	label := rec.Label(v.Model)

	if c.Request.Method != http.MethodPost {
		v.html(c, http.StatusOK, "confirm", "Copy "+label, pages.ConfirmContent{
			Message:   fmt.Sprintf("Create a copy of %s?", label),
			Action:    withQuery(c, v.URLs.URL(ActionCopy, recordID)),
			Submit:    "Copy",
			CancelURL: nextOr(c, v.URLs.URL(ActionRead, recordID)),
		})
		return
	}

	clone, err := v.cfg.Models.Copy(c.Request.Context(), v.Model, rec.ID)
	if err != nil {
		v.log.WithContext(c.Request.Context()).Warnw("copy failed", "id", recordID, "error", err)
		flash(c, pages.FlashError, errorMessage(err))
		redirect(c, v.URLs.URL(ActionBrowse))
		return
	}
	flash(c, pages.FlashSuccess, fmt.Sprintf("Created copy %s", clone.Label(v.Model)))
	redirect(c, v.URLs.URL(ActionRead, clone.ID.String()))
}

// withQuery keeps the current query string on a form action.
func withQuery(c *gin.Context, target string) string {
	if raw := c.Request.URL.RawQuery; raw != "" {
		return target + "?" + raw
	}
	return target
}
