package filter

import (
	"strings"

	"bread/internal/metadata"
)

// lookups translates field lookups used in panel configs and query strings
// ("total__gte", "name__icontains") into operators.
var lookups = map[string]metadata.Operator{
	"exact":       metadata.OpEqual,
	"iexact":      metadata.OpEqual,
	"gt":          metadata.OpGreater,
	"gte":         metadata.OpGreaterOrEqual,
	"lt":          metadata.OpLess,
	"lte":         metadata.OpLessOrEqual,
	"contains":    metadata.OpContains,
	"icontains":   metadata.OpContains,
	"in":          metadata.OpIn,
	"startswith":  metadata.OpStartsWith,
	"istartswith": metadata.OpStartsWith,
	"endswith":    metadata.OpEndsWith,
	"iendswith":   metadata.OpEndsWith,
}

// LookupOperator returns the operator for a lookup name.
func LookupOperator(lookup string) (metadata.Operator, bool) {
	op, ok := lookups[lookup]
	return op, ok
}

// SplitLookup separates a trailing lookup from a path:
// "customer__name__icontains" -> ("customer.name", "~", true).
// Without a known lookup the whole string is the path.
func SplitLookup(spec string) (path string, op metadata.Operator, ok bool) {
	segments := metadata.SplitPath(spec)
	if len(segments) > 1 {
		if op, found := lookups[segments[len(segments)-1]]; found {
			return metadata.JoinPath(segments[:len(segments)-1]...), op, true
		}
	}
	return metadata.JoinPath(segments...), "", false
}

// DefaultOperator is the operator used when a field is filtered without an
// explicit lookup: contains for text, equality for everything else.
func DefaultOperator(f *metadata.Field) metadata.Operator {
	if op := metadata.CapabilityOf(f).DefaultOperator; op != "" {
		return op
	}
	return metadata.OpEqual
}

// Operators lists every operator of the language in display order.
func Operators() []metadata.Operator {
	return []metadata.Operator{
		metadata.OpEqual, metadata.OpNotEqual,
		metadata.OpLess, metadata.OpLessOrEqual, metadata.OpGreater, metadata.OpGreaterOrEqual,
		metadata.OpContains, metadata.OpNotContains,
		metadata.OpStartsWith, metadata.OpNotStartsWith,
		metadata.OpEndsWith, metadata.OpNotEndsWith,
		metadata.OpIn, metadata.OpNotIn,
	}
}

func isTextOperator(op metadata.Operator) bool {
	switch op.Positive() {
	case metadata.OpContains, metadata.OpStartsWith, metadata.OpEndsWith:
		return true
	}
	return false
}

func foldContains(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
