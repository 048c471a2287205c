package metadata

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"bread/internal/core/apperror"
)

// AllFields expands to every visible field of a model.
const AllFields = "__all__"

// Builder collects model definitions and validates them as a whole.
type Builder struct {
	models map[string]*Model
	order  []string
	errs   []error
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{models: make(map[string]*Model)}
}

// Add registers a model. Duplicate keys are reported by Build.
func (b *Builder) Add(m Model) *Builder {
	key := m.Key()
	if m.App == "" || m.Name == "" {
		b.errs = append(b.errs, fmt.Errorf("model %q: app and name are required", key))
		return b
	}
	if _, dup := b.models[key]; dup {
		b.errs = append(b.errs, fmt.Errorf("model %q registered twice", key))
		return b
	}
	cp := m
	cp.Fields = append([]Field(nil), m.Fields...)
	b.models[key] = &cp
	b.order = append(b.order, key)
	return b
}

// Build validates every model and returns the immutable registry.
func (b *Builder) Build() (*Registry, error) {
	errs := append([]error(nil), b.errs...)

	for _, key := range b.order {
		errs = append(errs, b.normalize(b.models[key])...)
	}
	for _, key := range b.order {
		errs = append(errs, b.validateRelations(b.models[key])...)
	}

	reg := &Registry{
		models:   b.models,
		order:    b.order,
		programs: make(map[string]cel.Program),
	}
	for _, key := range b.order {
		errs = append(errs, reg.compileComputed(b.models[key])...)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, apperror.NewModelConfiguration("invalid model definitions").WithCause(err)
	}
	return reg, nil
}

func (b *Builder) normalize(m *Model) []error {
	var errs []error
	if m.Label == "" {
		m.Label = Humanize(m.Name)
	}
	if m.LabelPlural == "" {
		m.LabelPlural = m.Label + "s"
	}
	if m.Table == "" {
		m.Table = m.App + "_" + m.Name
	}

	if _, ok := m.Field(PrimaryKey); !ok {
		pk := Field{Name: PrimaryKey, Label: "ID", Kind: KindScalar, Type: TypeString, ReadOnly: true, Internal: true}
		m.Fields = append([]Field{pk}, m.Fields...)
	}

	seen := make(map[string]bool, len(m.Fields))
	for i := range m.Fields {
		f := &m.Fields[i]
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("%s: field #%d has no name", m.Key(), i))
			continue
		}
		if strings.Contains(f.Name, ".") || strings.Contains(f.Name, "__") {
			errs = append(errs, fmt.Errorf("%s.%s: field names must not contain path separators", m.Key(), f.Name))
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Errorf("%s.%s: duplicate field", m.Key(), f.Name))
		}
		seen[f.Name] = true

		if f.Name == PrimaryKey {
			f.Internal = true
			f.ReadOnly = true
		}
		if f.Label == "" {
			f.Label = Humanize(f.Name)
		}
		if f.Column == "" {
			f.Column = f.Name
		}
		if f.Kind == 0 {
			f.Kind = KindScalar
		}
		if (f.Kind == KindScalar || f.Kind == KindComputed) && f.Type == "" {
			f.Type = TypeString
		}
		if f.Kind == KindComputed {
			f.ReadOnly = true
			if f.Expr == "" {
				errs = append(errs, fmt.Errorf("%s.%s: computed field needs an expression", m.Key(), f.Name))
			}
		}
		if f.Type == TypeEnum && len(f.Choices) == 0 {
			errs = append(errs, fmt.Errorf("%s.%s: enum field needs choices", m.Key(), f.Name))
		}
	}

	if m.LabelField != "" {
		if f, ok := m.Field(m.LabelField); !ok || !(f.Kind == KindScalar && f.Type.TextLike()) {
			errs = append(errs, fmt.Errorf("%s: label field %q must be a text field", m.Key(), m.LabelField))
		}
	}
	if m.SoftDeleteField != "" {
		if f, ok := m.Field(m.SoftDeleteField); !ok || f.Type != TypeBoolean {
			errs = append(errs, fmt.Errorf("%s: soft delete field %q must be a boolean field", m.Key(), m.SoftDeleteField))
		}
	}
	for _, name := range m.SearchFields {
		f, ok := m.Field(name)
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("%s: unknown search field %q", m.Key(), name))
		case !CapabilityOf(f).Searchable:
			errs = append(errs, fmt.Errorf("%s: search field %q is not a text field", m.Key(), name))
		}
	}
	return errs
}

func (b *Builder) validateRelations(m *Model) []error {
	var errs []error
	for i := range m.Fields {
		f := &m.Fields[i]
		if !f.IsRelation() {
			continue
		}
		target, ok := b.models[f.Target]
		if !ok {
			errs = append(errs, fmt.Errorf("%s.%s: unknown target model %q", m.Key(), f.Name, f.Target))
			continue
		}
		if f.Kind != KindRelationToMany {
			continue
		}
		back, ok := target.Field(f.Reverse)
		if !ok || back.Kind != KindRelationToOne || back.Target != m.Key() {
			errs = append(errs, fmt.Errorf("%s.%s: %s.%s must be a to-one relation back to %s",
				m.Key(), f.Name, f.Target, f.Reverse, m.Key()))
		}
	}
	for _, name := range m.CopyRelated {
		f, ok := m.Field(name)
		if !ok || f.Kind != KindRelationToMany {
			errs = append(errs, fmt.Errorf("%s: copy related field %q must be a to-many relation", m.Key(), name))
		}
	}
	return errs
}

// Registry holds the validated models. It is safe for concurrent use.
type Registry struct {
	models   map[string]*Model
	order    []string
	programs map[string]cel.Program

	// write-once descriptor cache, keyed by model key
	descriptors sync.Map
}

// Model returns the model registered under key ("app.model").
func (r *Registry) Model(key string) (*Model, error) {
	m, ok := r.models[key]
	if !ok {
		return nil, apperror.NewModelConfiguration(fmt.Sprintf("model %q is not registered", key)).
			WithDetail("model", key)
	}
	return m, nil
}

// Models returns all models in registration order.
func (r *Registry) Models() []*Model {
	out := make([]*Model, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.models[key])
	}
	return out
}

// Apps returns the distinct app labels, sorted.
func (r *Registry) Apps() []string {
	set := make(map[string]struct{})
	for _, m := range r.models {
		set[m.App] = struct{}{}
	}
	apps := make([]string, 0, len(set))
	for app := range set {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	return apps
}

// Describe returns the visible fields of a model in declaration order.
// The result is computed once per model and shared; callers must not modify it.
func (r *Registry) Describe(key string) ([]Field, error) {
	if cached, ok := r.descriptors.Load(key); ok {
		return cached.([]Field), nil
	}
	m, err := r.Model(key)
	if err != nil {
		return nil, err
	}
	fields := make([]Field, 0, len(m.Fields))
	for _, f := range m.Fields {
		if !f.Internal {
			fields = append(fields, f)
		}
	}
	actual, _ := r.descriptors.LoadOrStore(key, fields)
	return actual.([]Field), nil
}

// Step is one hop of a resolved accessor path.
type Step struct {
	Model *Model
	Field *Field
}

// ResolvePath walks a dotted (or "__"-separated) path starting at model key.
func (r *Registry) ResolvePath(key, path string) ([]Step, error) {
	m, err := r.Model(key)
	if err != nil {
		return nil, err
	}
	segments := SplitPath(path)
	if len(segments) == 0 {
		return nil, apperror.NewPathResolution(key, path, "empty path")
	}

	steps := make([]Step, 0, len(segments))
	current := m
	for i, seg := range segments {
		if current == nil {
			prev := steps[i-1].Field
			return nil, apperror.NewPathResolution(key, path,
				fmt.Sprintf("%q is not a relation and cannot be traversed", prev.Name))
		}
		f, ok := current.Field(seg)
		if !ok {
			return nil, apperror.NewPathResolution(key, path,
				fmt.Sprintf("%s has no field %q", current.Key(), seg))
		}
		steps = append(steps, Step{Model: current, Field: f})

		current = nil
		if f.IsRelation() {
			current = r.models[f.Target]
		}
	}
	return steps, nil
}

// Leaf returns the last field of a resolved path.
func Leaf(steps []Step) *Field {
	return steps[len(steps)-1].Field
}

// SplitPath splits "a.b__c" into its segments.
func SplitPath(path string) []string {
	path = strings.ReplaceAll(strings.TrimSpace(path), "__", ".")
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// JoinPath is the canonical dotted form of segments.
func JoinPath(segments ...string) string {
	return strings.Join(segments, ".")
}

// ExpandFields replaces AllFields with every visible field in declaration
// order. With forForm only editable fields are kept. Other names pass through.
func (r *Registry) ExpandFields(key string, names []string, forForm bool) ([]string, error) {
	fields, err := r.Describe(key)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range names {
		if name != AllFields {
			out = append(out, name)
			continue
		}
		for i := range fields {
			if forForm && !fields[i].Editable() {
				continue
			}
			out = append(out, fields[i].Name)
		}
	}
	return out, nil
}

// FormFields returns the editable fields for names (AllFields allowed).
func (r *Registry) FormFields(key string, names []string) ([]*Field, error) {
	m, err := r.Model(key)
	if err != nil {
		return nil, err
	}
	expanded, err := r.ExpandFields(key, names, true)
	if err != nil {
		return nil, err
	}
	out := make([]*Field, 0, len(expanded))
	for _, name := range expanded {
		f, ok := m.Field(name)
		if !ok {
			return nil, apperror.NewModelConfiguration(fmt.Sprintf("%s has no field %q", key, name))
		}
		if !f.Editable() {
			return nil, apperror.NewModelConfiguration(fmt.Sprintf("%s.%s is not editable", key, name))
		}
		out = append(out, f)
	}
	return out, nil
}

// TextFields returns the fields used by free-text search.
func (r *Registry) TextFields(key string) ([]*Field, error) {
	m, err := r.Model(key)
	if err != nil {
		return nil, err
	}
	var out []*Field
	if len(m.SearchFields) > 0 {
		for _, name := range m.SearchFields {
			f, _ := m.Field(name)
			out = append(out, f)
		}
		return out, nil
	}
	for i := range m.Fields {
		f := &m.Fields[i]
		if !f.Internal && CapabilityOf(f).Searchable {
			out = append(out, f)
		}
	}
	return out, nil
}
