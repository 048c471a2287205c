package postgres

import (
	"maps"
	"reflect"
	"sync"
)

// columnField maps a struct field to its "db" column.
type columnField struct {
	index    int
	column   string
	embedded bool
}

// type -> []columnField
var columnCache sync.Map

func columnFields(t reflect.Type) []columnField {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := columnCache.Load(t); ok {
		return cached.([]columnField)
	}

	var fields []columnField
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if sf.Anonymous {
				fields = append(fields, columnField{index: i, embedded: true})
				continue
			}
			tag := sf.Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			fields = append(fields, columnField{index: i, column: tag})
		}
	}
	actual, _ := columnCache.LoadOrStore(t, fields)
	return actual.([]columnField)
}

// ExtractDBColumns lists the "db" tags of T in declaration order,
// descending into embedded structs.
//
//	cols := ExtractDBColumns[auth.User]()
func ExtractDBColumns[T any]() []string {
	return extractColumns(reflect.TypeOf((*T)(nil)).Elem())
}

func extractColumns(t reflect.Type) []string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	var cols []string
	for _, f := range columnFields(t) {
		if f.embedded {
			cols = append(cols, extractColumns(t.Field(f.index).Type)...)
			continue
		}
		cols = append(cols, f.column)
	}
	return cols
}

// StructToMap converts a struct to a column -> value map using "db" tags.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	fields := columnFields(rv.Type())
	res := make(map[string]any, len(fields))
	for _, f := range fields {
		if f.embedded {
			maps.Copy(res, StructToMap(rv.Field(f.index).Interface()))
			continue
		}
		res[f.column] = rv.Field(f.index).Interface()
	}
	return res
}
