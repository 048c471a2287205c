// Package filter implements the query language used by browse views:
// a parsed expression tree, a structured filter panel that produces the
// same tree, and evaluation against in-memory rows.
package filter

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bread/internal/metadata"
)

// Logic joins the children of a group.
type Logic string

const (
	And Logic = "and"
	Or  Logic = "or"
)

// Node is either a *Group or a *Comparison.
type Node interface {
	// String renders the node in the query language.
	String() string
	isNode()
}

// Group combines children with AND or OR.
// An empty group is a no-op: it neither narrows nor excludes.
type Group struct {
	Op       Logic
	Children []Node
}

// Comparison is a single test of the value reached by Path.
type Comparison struct {
	Path     string
	Operator metadata.Operator
	// Value is nil, string, int64, decimal.Decimal, bool, time.Time,
	// uuid.UUID or []any for in / not in.
	Value any
}

func (*Group) isNode()      {}
func (*Comparison) isNode() {}

// NewGroup builds a group, collapsing a single child and dropping nil ones.
func NewGroup(op Logic, children ...Node) Node {
	kept := make([]Node, 0, len(children))
	for _, c := range children {
		if c == nil {
			continue
		}
		if g, ok := c.(*Group); ok && len(g.Children) == 0 {
			continue
		}
		kept = append(kept, c)
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &Group{Op: op, Children: kept}
}

func (g *Group) String() string {
	parts := make([]string, 0, len(g.Children))
	for _, c := range g.Children {
		s := c.String()
		if _, nested := c.(*Group); nested {
			s = "(" + s + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " "+string(g.Op)+" ")
}

func (c *Comparison) String() string {
	return c.Path + " " + string(c.Operator) + " " + formatValue(c.Value)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case decimal.Decimal:
		return x.String()
	case string:
		return quote(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return quote(x.Format(metadata.DateLayout))
		}
		return quote(x.Format(time.RFC3339))
	case uuid.UUID:
		return quote(x.String())
	case []any:
		items := make([]string, 0, len(x))
		for _, item := range x {
			items = append(items, formatValue(item))
		}
		return "(" + strings.Join(items, ", ") + ")"
	}
	return quote(metadata.Format(nil, v))
}

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Walk calls fn for every comparison in n.
func Walk(n Node, fn func(*Comparison) error) error {
	switch x := n.(type) {
	case nil:
		return nil
	case *Comparison:
		return fn(x)
	case *Group:
		for _, c := range x.Children {
			if err := Walk(c, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
