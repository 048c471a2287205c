package filter

import (
	"fmt"

	"bread/internal/core/apperror"
	"bread/internal/metadata"
)

// Check resolves every path of n against the model, verifies that each
// operator is allowed for the field it targets and converts literal values
// to the field's type. The returned tree is a copy; n is not modified.
func Check(reg *metadata.Registry, modelKey string, n Node) (Node, error) {
	switch x := n.(type) {
	case nil:
		return nil, nil
	case *Group:
		out := &Group{Op: x.Op, Children: make([]Node, 0, len(x.Children))}
		for _, c := range x.Children {
			checked, err := Check(reg, modelKey, c)
			if err != nil {
				return nil, err
			}
			out.Children = append(out.Children, checked)
		}
		return out, nil
	case *Comparison:
		return checkComparison(reg, modelKey, x)
	}
	return nil, fmt.Errorf("unknown filter node %T", n)
}

func checkComparison(reg *metadata.Registry, modelKey string, c *Comparison) (*Comparison, error) {
	steps, err := reg.ResolvePath(modelKey, c.Path)
	if err != nil {
		return nil, err
	}
	leaf := metadata.Leaf(steps)
	capability := metadata.CapabilityOf(leaf)

	if !capability.Filterable || !capability.Allows(c.Operator) {
		return nil, apperror.NewValidation(fmt.Sprintf("operator %q cannot be used with %s", c.Operator, leaf.Label)).
			WithDetail("path", c.Path).
			WithDetail("operator", string(c.Operator))
	}

	out := &Comparison{Path: metadata.JoinPath(metadata.SplitPath(c.Path)...), Operator: c.Operator}

	if list, ok := c.Value.([]any); ok {
		if c.Operator.Positive() != metadata.OpIn {
			return nil, apperror.NewValidation(fmt.Sprintf("operator %q does not take a list", c.Operator)).
				WithDetail("path", c.Path)
		}
		values := make([]any, 0, len(list))
		for _, item := range list {
			v, err := coerceLiteral(leaf, c, item)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		out.Value = values
		return out, nil
	}

	if c.Operator.Positive() == metadata.OpIn {
		return nil, apperror.NewValidation(fmt.Sprintf("operator %q needs a list", c.Operator)).
			WithDetail("path", c.Path)
	}
	if isTextOperator(c.Operator) {
		s, ok := c.Value.(string)
		if !ok {
			return nil, apperror.NewValidation(fmt.Sprintf("operator %q needs a quoted string", c.Operator)).
				WithDetail("path", c.Path)
		}
		out.Value = s
		return out, nil
	}

	v, err := coerceLiteral(leaf, c, c.Value)
	if err != nil {
		return nil, err
	}
	out.Value = v
	return out, nil
}

func coerceLiteral(leaf *metadata.Field, c *Comparison, v any) (any, error) {
	coerced, err := metadata.Coerce(leaf, v)
	if err != nil {
		return nil, apperror.NewValidation(fmt.Sprintf("%s: %v", leaf.Label, err)).
			WithDetail("path", c.Path).
			WithCause(err)
	}
	return coerced, nil
}

// ParseChecked parses input and checks it against the model in one step.
func ParseChecked(reg *metadata.Registry, modelKey, input string) (Node, error) {
	n, err := Parse(input)
	if err != nil {
		return nil, err
	}
	return Check(reg, modelKey, n)
}
