package dto

import (
	"bread/internal/metadata"
)

// ModelResponse describes a registered model.
type ModelResponse struct {
	Key             string          `json:"key"`
	App             string          `json:"app"`
	Name            string          `json:"name"`
	Label           string          `json:"label"`
	LabelPlural     string          `json:"labelPlural"`
	LabelField      string          `json:"labelField,omitempty"`
	SoftDeleteField string          `json:"softDeleteField,omitempty"`
	Fields          []FieldResponse `json:"fields,omitempty"`
}

// FieldResponse describes a field together with what can be done with it.
type FieldResponse struct {
	Name            string   `json:"name"`
	Label           string   `json:"label"`
	Kind            string   `json:"kind"`
	Type            string   `json:"type,omitempty"`
	Target          string   `json:"target,omitempty"`
	Required        bool     `json:"required,omitempty"`
	Nullable        bool     `json:"nullable,omitempty"`
	Editable        bool     `json:"editable"`
	Choices         []string `json:"choices,omitempty"`
	Operators       []string `json:"operators,omitempty"`
	DefaultOperator string   `json:"defaultOperator,omitempty"`
	Widget          string   `json:"widget,omitempty"`
	Sortable        bool     `json:"sortable"`
	Filterable      bool     `json:"filterable"`
}

// FromModel summarizes m without its fields.
func FromModel(m *metadata.Model) ModelResponse {
	return ModelResponse{
		Key:             m.Key(),
		App:             m.App,
		Name:            m.Name,
		Label:           m.Label,
		LabelPlural:     m.LabelPlural,
		LabelField:      m.LabelField,
		SoftDeleteField: m.SoftDeleteField,
	}
}

// FromModelFields describes m with the given descriptor list.
func FromModelFields(m *metadata.Model, fields []metadata.Field) ModelResponse {
	resp := FromModel(m)
	resp.Fields = make([]FieldResponse, 0, len(fields))
	for i := range fields {
		f := &fields[i]
		capability := metadata.CapabilityOf(f)
		fr := FieldResponse{
			Name:            f.Name,
			Label:           f.Label,
			Kind:            f.Kind.String(),
			Type:            string(f.Type),
			Target:          f.Target,
			Required:        f.Required,
			Nullable:        f.Nullable,
			Editable:        f.Editable(),
			Choices:         f.Choices,
			DefaultOperator: string(capability.DefaultOperator),
			Widget:          string(capability.Widget),
			Sortable:        capability.Sortable,
			Filterable:      capability.Filterable,
		}
		for _, op := range capability.Operators {
			fr.Operators = append(fr.Operators, string(op))
		}
		resp.Fields = append(resp.Fields, fr)
	}
	return resp
}
