package filter

import (
	"fmt"
	"strings"

	"bread/internal/metadata"
)

// Accessor returns every value reachable from the current row through path.
// A path that dead-ends (null relation, no related rows) yields a single nil.
type Accessor func(path string) ([]any, error)

// Match evaluates a checked tree against one row. Empty groups match.
func Match(n Node, get Accessor) (bool, error) {
	switch x := n.(type) {
	case nil:
		return true, nil
	case *Group:
		if len(x.Children) == 0 {
			return true, nil
		}
		for _, c := range x.Children {
			ok, err := Match(c, get)
			if err != nil {
				return false, err
			}
			if x.Op == Or && ok {
				return true, nil
			}
			if x.Op == And && !ok {
				return false, nil
			}
		}
		return x.Op == And, nil
	case *Comparison:
		values, err := get(x.Path)
		if err != nil {
			return false, err
		}
		positive := x.Operator.Positive()
		matched := false
		for _, v := range values {
			ok, err := compare(positive, v, x.Value)
			if err != nil {
				return false, fmt.Errorf("%s: %w", x.Path, err)
			}
			if ok {
				matched = true
				break
			}
		}
		if x.Operator.Negated() {
			return !matched, nil
		}
		return matched, nil
	}
	return false, fmt.Errorf("unknown filter node %T", n)
}

func compare(op metadata.Operator, actual, expected any) (bool, error) {
	switch op {
	case metadata.OpIn:
		list, _ := expected.([]any)
		for _, item := range list {
			if equalValues(actual, item) {
				return true, nil
			}
		}
		return false, nil
	case metadata.OpEqual:
		return equalValues(actual, expected), nil
	case metadata.OpContains, metadata.OpStartsWith, metadata.OpEndsWith:
		s, ok := actual.(string)
		if !ok {
			return false, nil
		}
		sub := fmt.Sprint(expected)
		switch op {
		case metadata.OpContains:
			return foldContains(s, sub), nil
		case metadata.OpStartsWith:
			return strings.HasPrefix(strings.ToLower(s), strings.ToLower(sub)), nil
		default:
			return strings.HasSuffix(strings.ToLower(s), strings.ToLower(sub)), nil
		}
	case metadata.OpLess, metadata.OpLessOrEqual, metadata.OpGreater, metadata.OpGreaterOrEqual:
		if actual == nil || expected == nil {
			return false, nil
		}
		c, ok := metadata.Compare(actual, expected)
		if !ok {
			return false, fmt.Errorf("cannot compare %T with %T", actual, expected)
		}
		switch op {
		case metadata.OpLess:
			return c < 0, nil
		case metadata.OpLessOrEqual:
			return c <= 0, nil
		case metadata.OpGreater:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	}
	return false, fmt.Errorf("unsupported operator %q", op)
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	c, ok := metadata.Compare(a, b)
	return ok && c == 0
}
