// Package metadata describes models: their fields, relations and the
// capabilities each field kind carries. Descriptors are registered once at
// startup through a Builder and are immutable afterwards.
package metadata

import (
	"strings"
)

// Kind is the closed set of field categories.
type Kind int

const (
	KindScalar Kind = iota + 1
	KindRelationToOne
	KindRelationToMany
	KindFile
	KindComputed
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindRelationToOne:
		return "relation_to_one"
	case KindRelationToMany:
		return "relation_to_many"
	case KindFile:
		return "file"
	case KindComputed:
		return "computed"
	}
	return "unknown"
}

// ScalarType defines the value type of scalar and computed fields.
type ScalarType string

const (
	TypeString   ScalarType = "string"
	TypeText     ScalarType = "text" // multi-line
	TypeEmail    ScalarType = "email"
	TypeURL      ScalarType = "url"
	TypeEnum     ScalarType = "enum"
	TypeInteger  ScalarType = "integer"
	TypeDecimal  ScalarType = "decimal"
	TypeBoolean  ScalarType = "boolean"
	TypeDate     ScalarType = "date"
	TypeDateTime ScalarType = "datetime"
)

// TextLike reports whether values of t are free text.
func (t ScalarType) TextLike() bool {
	switch t {
	case TypeString, TypeText, TypeEmail, TypeURL:
		return true
	}
	return false
}

// PrimaryKey is the name of the implicit identifier field of every model.
const PrimaryKey = "id"

// Field describes one attribute of a model.
type Field struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
	Kind  Kind   `json:"kind"`

	// Type is set for scalar and computed fields.
	Type ScalarType `json:"type,omitempty"`

	// Column is the storage column. Defaults to Name.
	Column string `json:"-"`

	// Target is the related model key ("app.model") for relations.
	Target string `json:"target,omitempty"`
	// Reverse is the to-one field on Target pointing back (to-many only).
	Reverse string `json:"reverse,omitempty"`

	Required  bool     `json:"required,omitempty"`
	Nullable  bool     `json:"nullable,omitempty"`
	ReadOnly  bool     `json:"readOnly,omitempty"`
	MaxLength int      `json:"maxLength,omitempty"`
	Scale     int      `json:"scale,omitempty"`
	Choices   []string `json:"choices,omitempty"`

	// Expr is a CEL expression over the row's scalar fields (computed only).
	Expr string `json:"expr,omitempty"`

	// Internal fields (the primary key) never appear in expansions.
	Internal bool `json:"-"`
}

// Editable reports whether the field can appear on an add/edit form.
func (f *Field) Editable() bool {
	if f.Internal || f.ReadOnly {
		return false
	}
	switch f.Kind {
	case KindScalar, KindRelationToOne, KindFile:
		return true
	}
	return false
}

// IsRelation reports whether the field points at another model.
func (f *Field) IsRelation() bool {
	return f.Kind == KindRelationToOne || f.Kind == KindRelationToMany
}

// Model describes a record type.
type Model struct {
	App         string `json:"app"`
	Name        string `json:"name"`
	Label       string `json:"label,omitempty"`
	LabelPlural string `json:"labelPlural,omitempty"`
	Table       string `json:"-"`

	Fields []Field `json:"fields"`

	// LabelField is the text field used to display a record and to mark copies.
	LabelField string `json:"labelField,omitempty"`
	// SoftDeleteField is a boolean field; when set, delete marks instead of removing.
	SoftDeleteField string `json:"softDeleteField,omitempty"`
	// Ordering is the default browse ordering ("-created", "name").
	Ordering []string `json:"ordering,omitempty"`
	// CopyRelated names to-many fields whose rows are cloned along with a copy.
	CopyRelated []string `json:"copyRelated,omitempty"`
	// SearchFields overrides the fields used by free-text search.
	SearchFields []string `json:"searchFields,omitempty"`
}

// Key returns the registry key "app.model".
func (m *Model) Key() string {
	return m.App + "." + m.Name
}

// Field looks up a field by name.
func (m *Model) Field(name string) (*Field, bool) {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i], true
		}
	}
	return nil, false
}

// Classify returns the kind of f.
func Classify(f Field) Kind {
	return f.Kind
}

// SplitKey splits "app.model" into its parts.
func SplitKey(key string) (app, model string, ok bool) {
	app, model, ok = strings.Cut(key, ".")
	if !ok || app == "" || model == "" {
		return "", "", false
	}
	return app, model, true
}

// Humanize turns "unit_price" or "UnitPrice" into "Unit price".
func Humanize(name string) string {
	var b strings.Builder
	prevLower := false
	for i, r := range name {
		switch {
		case r == '_' || r == '-':
			b.WriteRune(' ')
			prevLower = false
			continue
		case r >= 'A' && r <= 'Z':
			if prevLower {
				b.WriteRune(' ')
			}
			if i > 0 {
				r += 'a' - 'A'
			}
			prevLower = false
		default:
			prevLower = true
		}
		if i == 0 && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
