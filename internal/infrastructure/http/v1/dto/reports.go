package dto

import (
	"bread/internal/domain/reports"
)

// ReportSummary lists a saved report.
type ReportSummary struct {
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Model string `json:"model"`
}

// FromDefinitions summarizes report definitions.
func FromDefinitions(defs []reports.Definition) []ReportSummary {
	out := make([]ReportSummary, 0, len(defs))
	for _, d := range defs {
		out = append(out, ReportSummary{Slug: d.Slug, Name: d.Name, Model: d.Model})
	}
	return out
}
