// Package reports runs saved listings: a model, a filter expression and a
// set of columns, declared in YAML and rendered with the table machinery.
package reports

import (
	"fmt"
	"io"
	"regexp"

	"gopkg.in/yaml.v3"

	"bread/internal/core/apperror"
)

// Aggregations supported in a report footer.
const (
	AggregateCount = "count"
	AggregateSum   = "sum"
)

// Definition is a saved report.
type Definition struct {
	Slug  string `yaml:"slug"`
	Name  string `yaml:"name"`
	Model string `yaml:"model"`
	// Filter is an expression in the filter language; empty selects everything.
	Filter   string   `yaml:"filter"`
	Ordering []string `yaml:"ordering"`
	// Pagination is the page size in the browser, 0 for one page.
	Pagination int            `yaml:"pagination"`
	Columns    []ColumnConfig `yaml:"columns"`
}

// ColumnConfig is one report column.
type ColumnConfig struct {
	Header string `yaml:"header"`
	// Column is an accessor path from the report's model.
	Column string `yaml:"column"`
	// Template optionally formats the value; it sees .Value and .Object.
	Template    string `yaml:"template"`
	AllowHTML   bool   `yaml:"allowHtml"`
	Aggregation string `yaml:"aggregation"`
}

type definitionsFile struct {
	Reports []Definition `yaml:"reports"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// LoadYAML reads report definitions. Only the document shape is checked
// here; whether a report still fits its model is decided when it runs.
func LoadYAML(r io.Reader) ([]Definition, error) {
	var doc definitionsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode reports: %w", err)
	}

	seen := make(map[string]bool, len(doc.Reports))
	for i, d := range doc.Reports {
		switch {
		case !slugPattern.MatchString(d.Slug):
			return nil, apperror.NewValidation(fmt.Sprintf("report %d: invalid slug %q", i+1, d.Slug))
		case seen[d.Slug]:
			return nil, apperror.NewValidation(fmt.Sprintf("report %q is declared twice", d.Slug))
		case d.Name == "":
			doc.Reports[i].Name = d.Slug
		}
		seen[d.Slug] = true
	}
	return doc.Reports, nil
}
