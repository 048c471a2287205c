// Package forms binds submitted values to records of any registered model.
package forms

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"bread/internal/core/apperror"
	"bread/internal/domain"
	"bread/internal/metadata"
)

// NonFieldErrors is the key for errors that belong to the form as a whole.
const NonFieldErrors = ""

// Choice is one option of a select input.
type Choice struct {
	Value    string
	Label    string
	Selected bool
}

// Field is one input of a form.
type Field struct {
	*metadata.Field
	Widget   metadata.Widget
	Value    string
	Checked  bool
	Choices  []Choice
	Errors   []string
	Disabled bool
}

// Form holds the inputs for one model and the state of a submission.
type Form struct {
	Model  *metadata.Model
	Fields []*Field
	Errors []string
}

// New builds a form for names (AllFields allowed) of the model.
func New(reg *metadata.Registry, m *metadata.Model, names []string) (*Form, error) {
	if len(names) == 0 {
		names = []string{metadata.AllFields}
	}
	fields, err := reg.FormFields(m.Key(), names)
	if err != nil {
		return nil, err
	}
	form := &Form{Model: m, Fields: make([]*Field, 0, len(fields))}
	for _, f := range fields {
		form.Fields = append(form.Fields, &Field{Field: f, Widget: metadata.CapabilityOf(f).Widget})
	}
	return form, nil
}

// Field returns the input for name.
func (f *Form) Field(name string) (*Field, bool) {
	for _, ff := range f.Fields {
		if ff.Name == name {
			return ff, true
		}
	}
	return nil, false
}

// Fill shows the values of rec in the inputs.
func (f *Form) Fill(rec *domain.Record) {
	for _, ff := range f.Fields {
		v := rec.Get(ff.Name)
		if ff.Widget == metadata.WidgetCheckbox {
			b, _ := v.(bool)
			ff.Checked = b
			continue
		}
		ff.Value = metadata.FormatInput(ff.Field, v)
	}
	f.markChoices()
}

// Bind coerces the submitted values onto rec. Inputs that do not convert keep
// the raw text for re-display and are reported per field; rec is left
// unchanged for those. Missing checkboxes bind as false. File inputs are left
// alone unless the submission names a file.
func (f *Form) Bind(values url.Values, rec *domain.Record) apperror.FieldErrors {
	errs := apperror.FieldErrors{}
	for _, ff := range f.Fields {
		if ff.Disabled {
			continue
		}
		raw := values.Get(ff.Name)
		switch ff.Widget {
		case metadata.WidgetCheckbox:
			_, submitted := values[ff.Name]
			on := submitted && raw != "" && raw != "false" && raw != "0"
			ff.Checked = on
			rec.Set(ff.Name, on)
			continue
		case metadata.WidgetFile:
			if raw != "" {
				ff.Value = raw
				rec.Set(ff.Name, raw)
			}
			continue
		}

		ff.Value = raw
		if !ff.Type.TextLike() {
			raw = strings.TrimSpace(raw)
		}
		v, err := metadata.Coerce(ff.Field, raw)
		if err != nil {
			errs.Add(ff.Name, capitalize(err.Error())+".")
			continue
		}
		if s, ok := v.(string); ok && s == "" && ff.Nullable {
			v = nil
		}
		rec.Set(ff.Name, v)
	}
	f.markChoices()
	f.SetErrors(errs)
	return errs
}

// SetErrors attaches validation messages to their inputs.
func (f *Form) SetErrors(errs apperror.FieldErrors) {
	for _, ff := range f.Fields {
		ff.Errors = errs[ff.Name]
	}
	f.Errors = nil
	for name, messages := range errs {
		if _, ok := f.Field(name); !ok {
			for _, msg := range messages {
				if name != NonFieldErrors {
					msg = metadata.Humanize(name) + ": " + msg
				}
				f.Errors = append(f.Errors, msg)
			}
		}
	}
}

// Valid reports whether the last Bind or SetErrors found no problems.
func (f *Form) Valid() bool {
	if len(f.Errors) > 0 {
		return false
	}
	for _, ff := range f.Fields {
		if len(ff.Errors) > 0 {
			return false
		}
	}
	return true
}

// LoadChoices fills the options of enum and relation inputs. Relation
// options list the target's records by label.
func (f *Form) LoadChoices(ctx context.Context, reg *metadata.Registry, r domain.Reader) error {
	for _, ff := range f.Fields {
		switch {
		case ff.Kind == metadata.KindScalar && ff.Type == metadata.TypeEnum:
			ff.Choices = make([]Choice, 0, len(ff.Field.Choices))
			for _, c := range ff.Field.Choices {
				ff.Choices = append(ff.Choices, Choice{Value: c, Label: metadata.Humanize(c)})
			}
		case ff.Kind == metadata.KindRelationToOne:
			target, err := reg.Model(ff.Target)
			if err != nil {
				return err
			}
			res, err := r.List(ctx, target, domain.Query{})
			if err != nil {
				return fmt.Errorf("load choices for %s: %w", ff.Name, err)
			}
			ff.Choices = make([]Choice, 0, len(res.Items))
			for _, rec := range res.Items {
				ff.Choices = append(ff.Choices, Choice{Value: rec.ID.String(), Label: rec.Label(target)})
			}
		}
	}
	f.markChoices()
	return nil
}

func (f *Form) markChoices() {
	for _, ff := range f.Fields {
		for i := range ff.Choices {
			ff.Choices[i].Selected = ff.Choices[i].Value == ff.Value
		}
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
