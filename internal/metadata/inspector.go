package metadata

import (
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"bread/internal/core/id"
)

// Inspect analyzes a struct and returns its Model.
//
// Field names come from the json tag. Further hints go into the bread tag:
//
//	Customer id.ID   `json:"customer" bread:"target=crm.customer"`
//	Lines    []Line  `json:"lines" bread:"target=sales.invoiceline,reverse=invoice"`
//	Notes    string  `json:"notes" bread:"text"`
//	Total    string  `json:"total" bread:"computed,expr=double(quantity) * price"`
//
// A binding:"required" tag marks the field as required.
func Inspect(entity any, app, name string) Model {
	t := reflect.TypeOf(entity)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if name == "" {
		name = strings.ToLower(t.Name())
	}

	m := Model{
		App:    app,
		Name:   name,
		Label:  Humanize(t.Name()),
		Fields: make([]Field, 0, t.NumField()),
	}
	inspectStruct(t, &m)
	return m
}

func inspectStruct(t reflect.Type, m *Model) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)

		// embedded structs are flattened, exported or not
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			inspectStruct(sf.Type, m)
			continue
		}

		if sf.PkgPath != "" { // unexported
			continue
		}

		f := Field{
			Name:     jsonName(sf),
			Label:    Humanize(sf.Name),
			Required: isRequired(sf),
		}
		if f.Name == "-" {
			continue
		}

		hints := parseHints(sf.Tag.Get("bread"))
		if _, ok := hints["skip"]; ok {
			continue
		}
		if label, ok := sf.Tag.Lookup("label"); ok {
			f.Label = label
		}
		mapFieldType(&f, sf, hints)
		m.Fields = append(m.Fields, f)

		if _, ok := hints["label"]; ok {
			m.LabelField = f.Name
		}
		if _, ok := hints["softdelete"]; ok {
			m.SoftDeleteField = f.Name
		}
	}
}

func mapFieldType(f *Field, sf reflect.StructField, hints map[string]string) {
	t := sf.Type
	if t.Kind() == reflect.Ptr {
		f.Nullable = true
		t = t.Elem()
	}

	if _, ok := hints["readonly"]; ok {
		f.ReadOnly = true
	}
	if target, ok := hints["target"]; ok {
		f.Target = target
		f.Kind = KindRelationToOne
		if t.Kind() == reflect.Slice {
			f.Kind = KindRelationToMany
			f.Reverse = hints["reverse"]
		}
		return
	}
	if expr, ok := hints["expr"]; ok {
		f.Kind = KindComputed
		f.Expr = expr
		f.Type = scalarTypeOf(t, hints)
		return
	}
	if _, ok := hints["file"]; ok {
		f.Kind = KindFile
		return
	}

	if t == reflect.TypeOf(id.ID{}) {
		f.Kind = KindRelationToOne
		// "CustomerID" -> "customer"; the app is assumed to match the owner
		if base, ok := strings.CutSuffix(sf.Name, "ID"); ok && base != "" {
			f.Target = strings.ToLower(base)
		}
		if sf.Name == "ID" {
			f.Kind = KindScalar
			f.Type = TypeString
			f.Internal = true
		}
		return
	}

	f.Kind = KindScalar
	f.Type = scalarTypeOf(t, hints)
	if f.Type == TypeEnum {
		if choices, ok := hints["choices"]; ok {
			f.Choices = strings.Split(choices, "|")
		}
	}
}

func scalarTypeOf(t reflect.Type, hints map[string]string) ScalarType {
	for _, st := range []ScalarType{TypeText, TypeEmail, TypeURL, TypeEnum, TypeDate} {
		if _, ok := hints[string(st)]; ok {
			return st
		}
	}

	switch t {
	case reflect.TypeOf(time.Time{}):
		return TypeDateTime
	case reflect.TypeOf(decimal.Decimal{}):
		return TypeDecimal
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeDecimal
	case reflect.Bool:
		return TypeBoolean
	}
	return TypeString
}

// parseHints splits `a,b=c` into {"a": "", "b": "c"}.
// The expr hint swallows the rest of the tag so expressions may contain commas.
func parseHints(tag string) map[string]string {
	hints := make(map[string]string)
	for tag = strings.TrimLeft(tag, " "); tag != ""; tag = strings.TrimLeft(tag, " ") {
		var part string
		if strings.HasPrefix(tag, "expr=") {
			part, tag = tag, ""
		} else {
			part, tag, _ = strings.Cut(tag, ",")
		}
		k, v, _ := strings.Cut(strings.TrimSpace(part), "=")
		if k != "" {
			hints[k] = v
		}
	}
	return hints
}

func jsonName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("json"); ok {
		parts := strings.Split(tag, ",")
		if parts[0] != "" {
			return parts[0]
		}
	}
	// Fallback: lower camelCase
	runes := []rune(field.Name)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

func isRequired(field reflect.StructField) bool {
	if tag, ok := field.Tag.Lookup("binding"); ok {
		return strings.Contains(tag, "required")
	}
	return false
}
