package views

import (
	"fmt"
	"maps"
	"net/http"

	"github.com/gin-gonic/gin"

	"bread/internal/core/apperror"
	"bread/internal/domain"
	"bread/internal/domain/forms"
	"bread/internal/infrastructure/http/v1/pages"
)

// Add shows an empty form and creates a record from its submission.
// Query parameters naming form fields prefill the empty form.
func (v *ModelViews) Add(c *gin.Context) {
	form, ok := v.form(c)
	if !ok {
		return
	}
	rec := domain.NewRecord()
	title := "Add " + v.Model.Label

	if c.Request.Method != http.MethodPost {
		initial := domain.NewRecord()
		form.Bind(c.Request.URL.Query(), initial)
		for _, ff := range form.Fields {
			// unsubmitted fields show blank, not as errors
			ff.Errors = nil
		}
		form.Errors = nil
		v.renderForm(c, http.StatusOK, title, form, v.URLs.URL(ActionAdd), "Create")
		return
	}

	v.save(c, form, rec, title, v.URLs.URL(ActionAdd), func() error {
		return v.cfg.Models.Create(c.Request.Context(), v.Model, rec)
	})
}

// Edit shows the form of a record and stores its submission.
func (v *ModelViews) Edit(c *gin.Context) {
	stored, ok := v.record(c)
	if !ok {
		return
	}
	form, ok := v.form(c)
	if !ok {
		return
	}
	title := "Edit " + stored.Label(v.Model)
	action := v.URLs.URL(ActionEdit, stored.ID.String())

	if c.Request.Method != http.MethodPost {
		form.Fill(stored)
		v.renderForm(c, http.StatusOK, title, form, action, "Save")
		return
	}

	rec := &domain.Record{ID: stored.ID, Values: maps.Clone(stored.Values)}
	v.save(c, form, rec, title, action, func() error {
		return v.cfg.Models.Update(c.Request.Context(), v.Model, rec)
	})
}

func (v *ModelViews) form(c *gin.Context) (*forms.Form, bool) {
	reg := v.cfg.Models.Registry()
	form, err := forms.New(reg, v.Model, v.formFields)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	if err := form.LoadChoices(c.Request.Context(), reg, v.cfg.Models.Reader()); err != nil {
		fail(c, err)
		return nil, false
	}
	return form, true
}

// save binds the submission onto rec and runs store. Invalid input and
// validation or uniqueness failures re-render the form with 422.
func (v *ModelViews) save(c *gin.Context, form *forms.Form, rec *domain.Record, title, action string, store func() error) {
	if err := c.Request.ParseForm(); err != nil {
		fail(c, apperror.NewValidation("invalid form submission"))
		return
	}
	if errs := form.Bind(c.Request.PostForm, rec); !errs.Empty() {
		v.renderForm(c, http.StatusUnprocessableEntity, title, form, action, "Save")
		return
	}

	if err := store(); err != nil {
		fields, ok := apperror.GetFieldErrors(err)
		switch {
		case ok:
			form.SetErrors(fields)
		case apperror.HasCode(err, apperror.CodeDuplicate), apperror.HasCode(err, apperror.CodeConflict):
			form.SetErrors(apperror.FieldErrors{forms.NonFieldErrors: {errorMessage(err)}})
		default:
			fail(c, err)
			return
		}
		v.renderForm(c, http.StatusUnprocessableEntity, title, form, action, "Save")
		return
	}

	flash(c, pages.FlashSuccess, fmt.Sprintf("Saved %s %s", v.Model.Label, rec.Label(v.Model)))
	redirect(c, v.URLs.URL(ActionRead, rec.ID.String()))
}

func (v *ModelViews) renderForm(c *gin.Context, status int, title string, form *forms.Form, action, submit string) {
	cancel := nextOr(c, v.URLs.URL(ActionBrowse))
	v.html(c, status, "form", title, pages.FormContent{
		Form:      form,
		Action:    passNext(action, c),
		CancelURL: cancel,
		Submit:    submit,
	})
}
