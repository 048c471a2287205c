package filter

import (
	"strings"

	"bread/internal/metadata"
)

// Search builds the expression for a free-text search box. Every
// whitespace-separated term must appear (case-insensitively) in at least
// one text field of the model or of a model it points to.
// Blank input yields nil.
func Search(reg *metadata.Registry, modelKey, text string) (Node, error) {
	terms := strings.Fields(text)
	if len(terms) == 0 {
		return nil, nil
	}
	paths, err := SearchPaths(reg, modelKey)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}

	perTerm := make([]Node, 0, len(terms))
	for _, term := range terms {
		alternatives := make([]Node, 0, len(paths))
		for _, p := range paths {
			alternatives = append(alternatives, &Comparison{Path: p, Operator: metadata.OpContains, Value: term})
		}
		perTerm = append(perTerm, NewGroup(Or, alternatives...))
	}
	return NewGroup(And, perTerm...), nil
}

// SearchPaths lists the paths Search looks at: the model's own text fields
// followed by the text fields of each to-one relation.
func SearchPaths(reg *metadata.Registry, modelKey string) ([]string, error) {
	own, err := reg.TextFields(modelKey)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(own))
	for _, f := range own {
		paths = append(paths, f.Name)
	}

	m, err := reg.Model(modelKey)
	if err != nil {
		return nil, err
	}
	for i := range m.Fields {
		f := &m.Fields[i]
		if f.Kind != metadata.KindRelationToOne {
			continue
		}
		related, err := reg.TextFields(f.Target)
		if err != nil {
			return nil, err
		}
		for _, rf := range related {
			paths = append(paths, metadata.JoinPath(f.Name, rf.Name))
		}
	}
	return paths, nil
}
