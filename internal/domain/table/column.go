// Package table turns records into columns and rows for the HTML browse
// view and the spreadsheet export, which share the same column definitions.
package table

import (
	"context"
	"fmt"

	"bread/internal/domain"
	"bread/internal/metadata"
)

// CellFunc computes a cell from a record. Returning template.HTML renders
// the value as markup; anything else is formatted and escaped.
type CellFunc func(ctx context.Context, rec *domain.Record) (any, error)

// Column is one column of a table.
type Column struct {
	Header string
	// Path is the accessor path the column shows, when it is path based.
	Path string
	// Cell overrides Path for computing the cell.
	Cell CellFunc
	// SortKey is the ordering value for the column; empty means not sortable.
	SortKey string
	// FilterKey is the path the column can be filtered by; empty means none.
	FilterKey string
	// Field is the field at the end of Path.
	Field *metadata.Field

	display string
}

// Columns builds columns from specs. A spec is AllFields, an accessor path or
// a ready Column. A Column with a Path is derived from the path and keeps
// the keys it sets. Relation columns show the label of the related records.
func Columns(reg *metadata.Registry, modelKey string, specs ...any) ([]Column, error) {
	var cols []Column
	for _, spec := range specs {
		switch s := spec.(type) {
		case string:
			paths := []string{s}
			if s == metadata.AllFields {
				var err error
				if paths, err = reg.ExpandFields(modelKey, paths, false); err != nil {
					return nil, err
				}
			}
			for _, p := range paths {
				col, err := PathColumn(reg, modelKey, p)
				if err != nil {
					return nil, err
				}
				cols = append(cols, col)
			}
		case Column:
			if s.Cell == nil && s.Path != "" {
				col, err := PathColumn(reg, modelKey, s.Path)
				if err != nil {
					return nil, err
				}
				if s.Header != "" {
					col.Header = s.Header
				}
				if s.SortKey != "" {
					col.SortKey = s.SortKey
				}
				if s.FilterKey != "" {
					col.FilterKey = s.FilterKey
				}
				if s.Field != nil {
					col.Field = s.Field
				}
				s = col
			}
			cols = append(cols, s)
		default:
			return nil, fmt.Errorf("unsupported column spec %T", spec)
		}
	}
	return cols, nil
}

// PathColumn derives a column from an accessor path.
func PathColumn(reg *metadata.Registry, modelKey, path string) (Column, error) {
	steps, err := reg.ResolvePath(modelKey, path)
	if err != nil {
		return Column{}, err
	}
	path = metadata.JoinPath(metadata.SplitPath(path)...)
	leaf := metadata.Leaf(steps)
	capability := metadata.CapabilityOf(leaf)

	col := Column{
		Header:  leaf.Label,
		Path:    path,
		Field:   leaf,
		display: path,
	}

	crossesMany := false
	for _, s := range steps[:len(steps)-1] {
		if s.Field.Kind == metadata.KindRelationToMany {
			crossesMany = true
		}
	}

	if leaf.IsRelation() {
		target, err := reg.Model(leaf.Target)
		if err != nil {
			return Column{}, err
		}
		labelPath := metadata.JoinPath(path, metadata.PrimaryKey)
		if target.LabelField != "" {
			labelPath = metadata.JoinPath(path, target.LabelField)
		}
		col.display = labelPath
		if leaf.Kind == metadata.KindRelationToOne && target.LabelField != "" && !crossesMany {
			col.SortKey = labelPath
		}
	} else if capability.Sortable && !crossesMany {
		col.SortKey = path
	}
	if capability.Filterable {
		col.FilterKey = path
	}
	return col, nil
}
