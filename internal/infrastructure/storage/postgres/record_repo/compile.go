package record_repo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/squirrel"

	"bread/internal/core/apperror"
	"bread/internal/domain/filter"
	"bread/internal/infrastructure/storage/postgres"
	"bread/internal/metadata"
)

// rootAlias names the table of the model being listed.
const rootAlias = "t0"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// compiler turns filter trees and orderings into SQL for one statement.
// Relation hops become subqueries, each with its own table alias.
type compiler struct {
	reg     *metadata.Registry
	aliases int
}

func newCompiler(reg *metadata.Registry) *compiler {
	return &compiler{reg: reg}
}

func (c *compiler) alias() string {
	c.aliases++
	return "t" + strconv.Itoa(c.aliases)
}

// ToSqlizer compiles a checked filter tree against rows of m aliased as t0.
// A nil tree compiles to nil.
func ToSqlizer(reg *metadata.Registry, m *metadata.Model, n filter.Node) (squirrel.Sqlizer, error) {
	return newCompiler(reg).node(m, rootAlias, n)
}

func (c *compiler) node(m *metadata.Model, alias string, n filter.Node) (squirrel.Sqlizer, error) {
	switch x := n.(type) {
	case nil:
		return nil, nil
	case *filter.Group:
		parts := make([]squirrel.Sqlizer, 0, len(x.Children))
		for _, child := range x.Children {
			part, err := c.node(m, alias, child)
			if err != nil {
				return nil, err
			}
			if part != nil {
				parts = append(parts, part)
			}
		}
		if len(parts) == 0 {
			return nil, nil
		}
		if x.Op == filter.Or {
			return squirrel.Or(parts), nil
		}
		return squirrel.And(parts), nil
	case *filter.Comparison:
		return c.comparison(m, alias, x)
	}
	return nil, fmt.Errorf("unknown filter node %T", n)
}

// comparison compiles the positive form of the operator; negated operators
// wrap it so that rows where the test is unknown count as not matching first.
func (c *compiler) comparison(m *metadata.Model, alias string, cmp *filter.Comparison) (squirrel.Sqlizer, error) {
	steps, err := c.reg.ResolvePath(m.Key(), cmp.Path)
	if err != nil {
		return nil, err
	}
	op := cmp.Operator.Positive()
	leaf := metadata.Leaf(steps)
	if !metadata.CapabilityOf(leaf).Allows(op) {
		return nil, apperror.NewValidation(fmt.Sprintf("operator %q cannot be used with %s", cmp.Operator, leaf.Label)).
			WithDetail("path", cmp.Path)
	}

	test := func(col string) (squirrel.Sqlizer, error) {
		return leafCondition(leaf, col, op, cmp.Value)
	}
	positive, err := c.path(alias, steps, test, nilMatches(op, cmp.Value))
	if err != nil {
		return nil, err
	}
	if cmp.Operator.Negated() {
		return wrap("NOT COALESCE(", positive, ", FALSE)"), nil
	}
	return positive, nil
}

// path compiles the steps below the row aliased alias. A relation that leads
// nowhere stands for a single null value, so it matches exactly when the
// test would match null.
func (c *compiler) path(alias string, steps []metadata.Step, test func(col string) (squirrel.Sqlizer, error), matchesNull bool) (squirrel.Sqlizer, error) {
	step := steps[0]
	f := step.Field
	if len(steps) == 1 {
		if f.Kind == metadata.KindComputed || f.Kind == metadata.KindRelationToMany {
			return nil, apperror.NewPathResolution(step.Model.Key(), f.Name, "field has no stored value")
		}
		return test(column(alias, f))
	}

	target, err := c.reg.Model(f.Target)
	if err != nil {
		return nil, err
	}
	sub := c.alias()
	inner, err := c.path(sub, steps[1:], test, matchesNull)
	if err != nil {
		return nil, err
	}

	switch f.Kind {
	case metadata.KindRelationToOne:
		in := subquery(column(alias, f)+" IN (SELECT "+sub+"."+postgres.Ident(metadata.PrimaryKey)+" FROM "+from(target, sub)+" WHERE ", inner)
		if !matchesNull {
			return in, nil
		}
		return squirrel.Or{squirrel.Expr(column(alias, f) + " IS NULL"), in}, nil

	case metadata.KindRelationToMany:
		back, ok := target.Field(f.Reverse)
		if !ok {
			return nil, apperror.NewModelConfiguration(fmt.Sprintf("%s has no field %q", target.Key(), f.Reverse))
		}
		key := alias + "." + postgres.Ident(metadata.PrimaryKey)
		in := subquery(key+" IN (SELECT "+column(sub, back)+" FROM "+from(target, sub)+" WHERE ", inner)
		if !matchesNull {
			return in, nil
		}
		none := c.alias()
		empty := squirrel.Expr("NOT EXISTS (SELECT 1 FROM " + from(target, none) + " WHERE " + column(none, back) + " = " + key + ")")
		return squirrel.Or{empty, in}, nil
	}
	return nil, apperror.NewPathResolution(step.Model.Key(), f.Name, fmt.Sprintf("%q is not a relation", f.Name))
}

func leafCondition(f *metadata.Field, col string, op metadata.Operator, value any) (squirrel.Sqlizer, error) {
	switch op {
	case metadata.OpEqual:
		if value == nil {
			return squirrel.Expr(col + " IS NULL"), nil
		}
		return squirrel.Expr(col+" = ?", value), nil

	case metadata.OpIn:
		list, _ := value.([]any)
		values := make([]any, 0, len(list))
		hasNull := false
		for _, v := range list {
			if v == nil {
				hasNull = true
				continue
			}
			values = append(values, v)
		}
		var in squirrel.Sqlizer = squirrel.Expr("FALSE")
		if len(values) > 0 {
			in = squirrel.Expr(col+" IN ("+squirrel.Placeholders(len(values))+")", values...)
		}
		if hasNull {
			return squirrel.Or{in, squirrel.Expr(col + " IS NULL")}, nil
		}
		return in, nil

	case metadata.OpContains, metadata.OpStartsWith, metadata.OpEndsWith:
		pattern := likeEscaper.Replace(fmt.Sprint(value))
		switch op {
		case metadata.OpContains:
			pattern = "%" + pattern + "%"
		case metadata.OpStartsWith:
			pattern += "%"
		default:
			pattern = "%" + pattern
		}
		return squirrel.Expr(col+"::text ILIKE ?", pattern), nil

	case metadata.OpLess, metadata.OpLessOrEqual, metadata.OpGreater, metadata.OpGreaterOrEqual:
		if value == nil {
			return squirrel.Expr("FALSE"), nil
		}
		if sortsAsText(f) {
			col += ` COLLATE "C"`
		}
		return squirrel.Expr(col+" "+string(op)+" ?", value), nil
	}
	return nil, apperror.NewValidation(fmt.Sprintf("unsupported operator %q", op))
}

// nilMatches reports whether the positive operator accepts a null value.
func nilMatches(op metadata.Operator, value any) bool {
	switch op {
	case metadata.OpEqual:
		return value == nil
	case metadata.OpIn:
		list, _ := value.([]any)
		for _, v := range list {
			if v == nil {
				return true
			}
		}
	}
	return false
}

// orderBy compiles one ordering key ("name", "-customer.name").
// Text sorts case-insensitively; nulls sort first ascending and last descending.
func (c *compiler) orderBy(m *metadata.Model, key string) (string, error) {
	path, desc := strings.CutPrefix(key, "-")
	steps, err := c.reg.ResolvePath(m.Key(), path)
	if err != nil {
		return "", err
	}
	expr, err := c.sortExpr(rootAlias, steps, key)
	if err != nil {
		return "", err
	}
	if desc {
		return expr + " DESC NULLS LAST", nil
	}
	return expr + " ASC NULLS FIRST", nil
}

func (c *compiler) sortExpr(alias string, steps []metadata.Step, key string) (string, error) {
	step := steps[0]
	f := step.Field
	if len(steps) == 1 {
		if !metadata.CapabilityOf(f).Sortable {
			return "", apperror.NewValidation(fmt.Sprintf("cannot order by %s", f.Label)).WithDetail("ordering", key)
		}
		col := column(alias, f)
		if sortsAsText(f) {
			col = "LOWER(" + col + `) COLLATE "C"`
		}
		return col, nil
	}
	if f.Kind != metadata.KindRelationToOne {
		return "", apperror.NewValidation(fmt.Sprintf("cannot order across %s", f.Label)).WithDetail("ordering", key)
	}
	target, err := c.reg.Model(f.Target)
	if err != nil {
		return "", err
	}
	sub := c.alias()
	inner, err := c.sortExpr(sub, steps[1:], key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(SELECT %s FROM %s WHERE %s.%s = %s)",
		inner, from(target, sub), sub, postgres.Ident(metadata.PrimaryKey), column(alias, f)), nil
}

func sortsAsText(f *metadata.Field) bool {
	return f.Name != metadata.PrimaryKey && f.Kind == metadata.KindScalar && (f.Type.TextLike() || f.Type == metadata.TypeEnum)
}

func column(alias string, f *metadata.Field) string {
	return alias + "." + postgres.Ident(f.Column)
}

func from(m *metadata.Model, alias string) string {
	return postgres.Ident(m.Table) + " " + alias
}

// wrapped places the SQL of a nested condition between a prefix and a suffix.
type wrapped struct {
	prefix string
	inner  squirrel.Sqlizer
	suffix string
}

func wrap(prefix string, inner squirrel.Sqlizer, suffix string) squirrel.Sqlizer {
	return wrapped{prefix: prefix, inner: inner, suffix: suffix}
}

func (w wrapped) ToSql() (string, []any, error) {
	sql, args, err := w.inner.ToSql()
	if err != nil {
		return "", nil, err
	}
	return w.prefix + sql + w.suffix, args, nil
}

func subquery(head string, where squirrel.Sqlizer) squirrel.Sqlizer {
	return wrap(head, where, ")")
}
