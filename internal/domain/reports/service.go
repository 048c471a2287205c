package reports

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"sync"
	texttemplate "text/template"

	"github.com/shopspring/decimal"

	"bread/internal/core/apperror"
	"bread/internal/domain"
	"bread/internal/domain/filter"
	"bread/internal/domain/table"
	"bread/internal/metadata"
)

// Service runs report definitions against the model service.
type Service struct {
	models *domain.ModelService

	mu     sync.RWMutex
	defs   []Definition
	bySlug map[string]int
}

// NewService creates a report service over defs.
func NewService(models *domain.ModelService, defs []Definition) *Service {
	s := &Service{models: models}
	s.Replace(defs)
	return s
}

// Replace swaps the definitions, e.g. after the reports file changed.
func (s *Service) Replace(defs []Definition) {
	bySlug := make(map[string]int, len(defs))
	for i, d := range defs {
		bySlug[d.Slug] = i
	}
	s.mu.Lock()
	s.defs, s.bySlug = defs, bySlug
	s.mu.Unlock()
}

// List returns every definition in declaration order.
func (s *Service) List() []Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defs
}

// Get returns the definition with slug.
func (s *Service) Get(slug string) (Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.bySlug[slug]
	if !ok {
		return Definition{}, apperror.NewNotFound("report", slug)
	}
	return s.defs[i], nil
}

// Prepared is a definition checked against the current models.
type Prepared struct {
	Definition
	Model   *metadata.Model
	Filter  filter.Node
	Columns []table.Column

	templates []*texttemplate.Template
}

// Prepare checks that the report's model, filter and columns still resolve.
// Any mismatch is a model configuration error naming the report.
func (s *Service) Prepare(def Definition) (*Prepared, error) {
	reg := s.models.Registry()
	broken := func(err error) error {
		return apperror.NewModelConfiguration(fmt.Sprintf("report %q no longer matches its model: %v", def.Name, err)).
			WithDetail("report", def.Slug).
			WithCause(err)
	}

	m, err := reg.Model(def.Model)
	if err != nil {
		return nil, broken(err)
	}
	p := &Prepared{Definition: def, Model: m}

	if strings.TrimSpace(def.Filter) != "" {
		if p.Filter, err = filter.ParseChecked(reg, m.Key(), def.Filter); err != nil {
			return nil, broken(err)
		}
	}
	for _, o := range def.Ordering {
		if _, err := reg.ResolvePath(m.Key(), strings.TrimPrefix(o, "-")); err != nil {
			return nil, broken(err)
		}
	}

	if len(def.Columns) == 0 {
		if p.Columns, err = table.Columns(reg, m.Key(), metadata.AllFields); err != nil {
			return nil, broken(err)
		}
		p.templates = make([]*texttemplate.Template, len(p.Columns))
		return p, nil
	}
	for i, c := range def.Columns {
		col, err := table.PathColumn(reg, m.Key(), c.Column)
		if err != nil {
			return nil, broken(err)
		}
		if c.Header != "" {
			col.Header = c.Header
		}
		switch c.Aggregation {
		case "", AggregateCount, AggregateSum:
		default:
			return nil, broken(fmt.Errorf("column %d: unknown aggregation %q", i+1, c.Aggregation))
		}

		var tmpl *texttemplate.Template
		if c.Template != "" {
			if tmpl, err = texttemplate.New(c.Column).Parse(c.Template); err != nil {
				return nil, broken(fmt.Errorf("column %d: %w", i+1, err))
			}
		}
		p.Columns = append(p.Columns, col)
		p.templates = append(p.templates, tmpl)
	}
	return p, nil
}

// Result is one executed page of a report.
type Result struct {
	*Prepared
	Rows []table.Row
	Page table.Page
	// Totals holds the aggregate of each column, empty where none is configured.
	Totals []string
}

// HasTotals reports whether any column is aggregated.
func (r *Result) HasTotals() bool {
	for _, t := range r.Totals {
		if t != "" {
			return true
		}
	}
	return false
}

// Run executes the report. perPage < 0 uses the report's own pagination;
// 0 returns every row.
func (s *Service) Run(ctx context.Context, def Definition, page, perPage int) (*Result, error) {
	p, err := s.Prepare(def)
	if err != nil {
		return nil, err
	}
	if perPage < 0 {
		perPage = def.Pagination
	}

	q := domain.Query{Filter: p.Filter, OrderBy: def.Ordering}
	if !p.aggregated() {
		count, err := s.models.List(ctx, p.Model, domain.Query{Filter: p.Filter, Limit: 1})
		if err != nil {
			return nil, err
		}
		pg := table.Paginate(count.TotalCount, page, perPage)
		q.Limit, q.Offset = pg.Limit(), pg.Offset()
	}
	res, err := s.models.List(ctx, p.Model, q)
	if err != nil {
		return nil, err
	}

	rv := domain.NewResolver(s.models.Registry(), s.models.Reader())
	out := &Result{Prepared: p, Page: table.Paginate(res.TotalCount, page, perPage)}

	items := res.Items
	if p.aggregated() {
		if out.Totals, err = p.totals(ctx, rv, items); err != nil {
			return nil, err
		}
		start := min(out.Page.Offset(), len(items))
		end := len(items)
		if out.Page.PerPage > 0 {
			end = min(start+out.Page.PerPage, len(items))
		}
		items = items[start:end]
	}

	out.Rows, err = table.BuildRows(ctx, rv, p.Model, p.cellColumns(rv), items)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rows returns every row of the report, for export.
func (s *Service) Rows(ctx context.Context, def Definition) (*Result, error) {
	return s.Run(ctx, def, 1, 0)
}

func (p *Prepared) aggregated() bool {
	for _, c := range p.Definition.Columns {
		if c.Aggregation != "" {
			return true
		}
	}
	return false
}

// cellColumns wraps templated columns so their cells render through the template.
func (p *Prepared) cellColumns(rv *domain.Resolver) []table.Column {
	cols := make([]table.Column, len(p.Columns))
	copy(cols, p.Columns)
	for i, tmpl := range p.templates {
		if tmpl == nil {
			continue
		}
		col := p.Columns[i]
		allowHTML := p.Definition.Columns[i].AllowHTML
		cols[i].Cell = func(ctx context.Context, rec *domain.Record) (any, error) {
			v, err := rv.First(ctx, p.Model, rec, col.Path)
			if err != nil {
				return nil, err
			}
			var buf bytes.Buffer
			err = tmpl.Execute(&buf, map[string]any{
				"Value":  metadata.Format(col.Field, v),
				"Raw":    v,
				"Object": rec.Values,
			})
			if err != nil {
				return fmt.Sprintf("### ERROR: %v ###", err), nil
			}
			if allowHTML {
				return template.HTML(buf.String()), nil
			}
			return buf.String(), nil
		}
	}
	return cols
}

func (p *Prepared) totals(ctx context.Context, rv *domain.Resolver, items []*domain.Record) ([]string, error) {
	totals := make([]string, len(p.Columns))
	for i, c := range p.Definition.Columns {
		if c.Aggregation == "" {
			continue
		}
		count := 0
		sum := decimal.Zero
		for _, rec := range items {
			values, err := rv.Values(ctx, p.Model, rec, p.Columns[i].Path)
			if err != nil {
				return nil, err
			}
			for _, v := range values {
				switch x := v.(type) {
				case nil:
					continue
				case int64:
					sum = sum.Add(decimal.NewFromInt(x))
				case decimal.Decimal:
					sum = sum.Add(x)
				}
				count++
			}
		}
		if c.Aggregation == AggregateCount {
			totals[i] = fmt.Sprint(count)
		} else {
			totals[i] = metadata.Format(p.Columns[i].Field, sum)
		}
	}
	return totals, nil
}
