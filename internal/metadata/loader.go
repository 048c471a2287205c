package metadata

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"bread/internal/core/apperror"
)

//go:embed model.schema.json
var modelSchemaJSON string

var modelSchema = gojsonschema.NewStringLoader(modelSchemaJSON)

type fileDoc struct {
	Models []modelDoc `yaml:"models"`
}

type modelDoc struct {
	App             string     `yaml:"app"`
	Name            string     `yaml:"name"`
	Label           string     `yaml:"label"`
	LabelPlural     string     `yaml:"labelPlural"`
	Table           string     `yaml:"table"`
	LabelField      string     `yaml:"labelField"`
	SoftDeleteField string     `yaml:"softDeleteField"`
	Ordering        []string   `yaml:"ordering"`
	CopyRelated     []string   `yaml:"copyRelated"`
	SearchFields    []string   `yaml:"searchFields"`
	Fields          []fieldDoc `yaml:"fields"`
}

type fieldDoc struct {
	Name      string   `yaml:"name"`
	Label     string   `yaml:"label"`
	Kind      string   `yaml:"kind"`
	Type      string   `yaml:"type"`
	Column    string   `yaml:"column"`
	Target    string   `yaml:"target"`
	Reverse   string   `yaml:"reverse"`
	Required  bool     `yaml:"required"`
	Nullable  bool     `yaml:"nullable"`
	ReadOnly  bool     `yaml:"readOnly"`
	MaxLength int      `yaml:"maxLength"`
	Scale     int      `yaml:"scale"`
	Choices   []string `yaml:"choices"`
	Expr      string   `yaml:"expr"`
}

var kindNames = map[string]Kind{
	"":         KindScalar,
	"scalar":   KindScalar,
	"one":      KindRelationToOne,
	"many":     KindRelationToMany,
	"file":     KindFile,
	"computed": KindComputed,
}

// LoadYAML reads model definitions and adds them to b.
// The document is checked against the model JSON schema before decoding.
func LoadYAML(b *Builder, r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return apperror.NewModelConfiguration("schema file is not valid YAML").WithCause(err)
	}

	result, err := gojsonschema.Validate(modelSchema, gojsonschema.NewGoLoader(generic))
	if err != nil {
		return apperror.NewModelConfiguration("schema file could not be validated").WithCause(err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return apperror.NewModelConfiguration("schema file does not match the model schema").
			WithDetail("errors", msgs).
			WithCause(fmt.Errorf("%s", strings.Join(msgs, "; ")))
	}

	var doc fileDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return apperror.NewModelConfiguration("schema file could not be decoded").WithCause(err)
	}

	for _, md := range doc.Models {
		b.Add(md.toModel())
	}
	return nil
}

func (md modelDoc) toModel() Model {
	m := Model{
		App:             md.App,
		Name:            md.Name,
		Label:           md.Label,
		LabelPlural:     md.LabelPlural,
		Table:           md.Table,
		LabelField:      md.LabelField,
		SoftDeleteField: md.SoftDeleteField,
		Ordering:        md.Ordering,
		CopyRelated:     md.CopyRelated,
		SearchFields:    md.SearchFields,
		Fields:          make([]Field, 0, len(md.Fields)),
	}
	for _, fd := range md.Fields {
		m.Fields = append(m.Fields, Field{
			Name:      fd.Name,
			Label:     fd.Label,
			Kind:      kindNames[fd.Kind],
			Type:      ScalarType(fd.Type),
			Column:    fd.Column,
			Target:    fd.Target,
			Reverse:   fd.Reverse,
			Required:  fd.Required,
			Nullable:  fd.Nullable,
			ReadOnly:  fd.ReadOnly,
			MaxLength: fd.MaxLength,
			Scale:     fd.Scale,
			Choices:   fd.Choices,
			Expr:      fd.Expr,
		})
	}
	return m
}
