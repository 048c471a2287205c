package table

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"bread/internal/domain"
	"bread/internal/metadata"
)

// Cell is a rendered table cell.
type Cell struct {
	HTML template.HTML
}

// Text is the spreadsheet value of the cell.
func (c Cell) Text() any {
	return CleanCell(string(c.HTML))
}

// Row is one rendered record.
type Row struct {
	Record *domain.Record
	Cells  []Cell
}

// BuildRows renders every column for every record. Values reached through a
// to-many path are joined with line breaks.
func BuildRows(ctx context.Context, rv *domain.Resolver, m *metadata.Model, cols []Column, recs []*domain.Record) ([]Row, error) {
	rows := make([]Row, 0, len(recs))
	for _, rec := range recs {
		row := Row{Record: rec, Cells: make([]Cell, len(cols))}
		for i, col := range cols {
			cell, err := buildCell(ctx, rv, m, col, rec)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col.Header, err)
			}
			row.Cells[i] = cell
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func buildCell(ctx context.Context, rv *domain.Resolver, m *metadata.Model, col Column, rec *domain.Record) (Cell, error) {
	if col.Cell != nil {
		v, err := col.Cell(ctx, rec)
		if err != nil {
			return Cell{}, err
		}
		if h, ok := v.(template.HTML); ok {
			return Cell{HTML: h}, nil
		}
		return Cell{HTML: escape(metadata.Format(col.Field, v))}, nil
	}

	values, err := rv.Values(ctx, m, rec, col.display)
	if err != nil {
		return Cell{}, err
	}
	field := col.Field
	if field != nil && field.IsRelation() {
		// the displayed leaf is the target's label field
		field = nil
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		parts = append(parts, string(escape(metadata.Format(field, v))))
	}
	return Cell{HTML: template.HTML(strings.Join(parts, "<br>"))}, nil
}

func escape(s string) template.HTML {
	return template.HTML(strings.ReplaceAll(template.HTMLEscapeString(s), "\n", "<br>"))
}
