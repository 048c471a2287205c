package filter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"bread/internal/core/apperror"
	"bread/internal/metadata"
)

// ParamPrefix starts every query parameter owned by the filter panel.
const ParamPrefix = "filter_"

// PanelConfig declares the layout of a filter panel: field specs (paths,
// optionally with a lookup such as "total__gte") and nested groups.
//
//	filter.AndConfig("status", "date__gte", filter.OrConfig("customer.city", "customer.name"))
type PanelConfig struct {
	Op    Logic
	Items []any // string or PanelConfig
}

// AndConfig groups items with AND.
func AndConfig(items ...any) PanelConfig {
	return PanelConfig{Op: And, Items: items}
}

// OrConfig groups items with OR.
func OrConfig(items ...any) PanelConfig {
	return PanelConfig{Op: Or, Items: items}
}

// PanelField is one input of the panel.
type PanelField struct {
	Param    string
	Path     string
	Label    string
	Operator metadata.Operator
	Field    *metadata.Field
	Widget   metadata.Widget
	Value    string
}

// PanelGroup is a bound group of inputs.
type PanelGroup struct {
	Op     Logic
	Prefix string
	Fields []*PanelField
	Groups []*PanelGroup
}

// Panel is the structured counterpart to the text query.
// Bind records the submitted values on the fields, so a Panel is built per request.
type Panel struct {
	Root *PanelGroup
	// Skipped lists config entries that do not resolve to a filterable field.
	Skipped []string
}

// BuildPanel resolves cfg against the model. Entries naming unknown paths,
// file fields, computed fields or to-many relations are skipped, not fatal.
func BuildPanel(reg *metadata.Registry, modelKey string, cfg PanelConfig) (*Panel, error) {
	if _, err := reg.Model(modelKey); err != nil {
		return nil, err
	}
	p := &Panel{}
	root, err := p.buildGroup(reg, modelKey, cfg, "f")
	if err != nil {
		return nil, err
	}
	p.Root = root
	return p, nil
}

func (p *Panel) buildGroup(reg *metadata.Registry, modelKey string, cfg PanelConfig, prefix string) (*PanelGroup, error) {
	if cfg.Op != And && cfg.Op != Or {
		return nil, apperror.NewModelConfiguration(fmt.Sprintf("filter group %q must be and/or", cfg.Op))
	}
	g := &PanelGroup{Op: cfg.Op, Prefix: prefix}
	subgroup := 0
	for _, item := range cfg.Items {
		switch x := item.(type) {
		case string:
			pf, ok := resolvePanelField(reg, modelKey, x, prefix)
			if !ok {
				p.Skipped = append(p.Skipped, x)
				continue
			}
			g.Fields = append(g.Fields, pf)
		case PanelConfig:
			childPrefix := prefix + strconv.Itoa(subgroup)
			if prefix != "f" {
				childPrefix = prefix + "_" + strconv.Itoa(subgroup)
			}
			subgroup++
			child, err := p.buildGroup(reg, modelKey, x, childPrefix)
			if err != nil {
				return nil, err
			}
			g.Groups = append(g.Groups, child)
		default:
			return nil, apperror.NewModelConfiguration(fmt.Sprintf("unsupported filter panel entry %T", item))
		}
	}
	return g, nil
}

func resolvePanelField(reg *metadata.Registry, modelKey, spec, prefix string) (*PanelField, bool) {
	path, op, hasLookup := SplitLookup(spec)
	steps, err := reg.ResolvePath(modelKey, path)
	if err != nil {
		return nil, false
	}
	leaf := metadata.Leaf(steps)
	capability := metadata.CapabilityOf(leaf)
	if !capability.Filterable {
		return nil, false
	}
	if !hasLookup {
		op = DefaultOperator(leaf)
	}
	if !capability.Allows(op) {
		return nil, false
	}

	label := leaf.Label
	if len(steps) > 1 {
		labels := make([]string, 0, len(steps))
		for _, s := range steps {
			labels = append(labels, s.Field.Label)
		}
		label = strings.Join(labels, " / ")
	}

	return &PanelField{
		Param:    ParamPrefix + prefix + "-" + strings.ReplaceAll(spec, ".", "__"),
		Path:     path,
		Label:    label,
		Operator: op,
		Field:    leaf,
		Widget:   capability.Widget,
	}, true
}

// Bind reads the panel's parameters from values and returns the expression
// they describe, or nil when nothing was entered. Values that do not fit
// their field are reported together as a validation error.
func (p *Panel) Bind(values url.Values) (Node, error) {
	errs := apperror.FieldErrors{}
	n := p.Root.bind(values, errs)
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return n, nil
}

// bind returns nil for a group without changed inputs. For AND that means
// "no narrowing"; for OR it means pass-through rather than an empty union.
func (g *PanelGroup) bind(values url.Values, errs apperror.FieldErrors) Node {
	var children []Node
	for _, f := range g.Fields {
		raw := strings.TrimSpace(values.Get(f.Param))
		f.Value = raw
		if raw == "" {
			continue
		}
		c, err := f.comparison(raw)
		if err != nil {
			errs.Add(f.Param, err.Error())
			continue
		}
		children = append(children, c)
	}
	for _, sub := range g.Groups {
		if n := sub.bind(values, errs); n != nil {
			children = append(children, n)
		}
	}
	return NewGroup(g.Op, children...)
}

func (f *PanelField) comparison(raw string) (*Comparison, error) {
	if f.Operator == metadata.OpIn {
		var list []any
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			v, err := metadata.Coerce(f.Field, part)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return &Comparison{Path: f.Path, Operator: f.Operator, Value: list}, nil
	}
	if isTextOperator(f.Operator) {
		return &Comparison{Path: f.Path, Operator: f.Operator, Value: raw}, nil
	}
	v, err := metadata.Coerce(f.Field, raw)
	if err != nil {
		return nil, err
	}
	return &Comparison{Path: f.Path, Operator: f.Operator, Value: v}, nil
}

// Active reports whether any panel input carries a value after Bind.
func (g *PanelGroup) Active() bool {
	for _, f := range g.Fields {
		if f.Value != "" {
			return true
		}
	}
	for _, sub := range g.Groups {
		if sub.Active() {
			return true
		}
	}
	return false
}

// Params lists every parameter name owned by the panel.
func (g *PanelGroup) Params() []string {
	var out []string
	for _, f := range g.Fields {
		out = append(out, f.Param)
	}
	for _, sub := range g.Groups {
		out = append(out, sub.Params()...)
	}
	return out
}
