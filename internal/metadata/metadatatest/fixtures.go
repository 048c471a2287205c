// Package metadatatest provides a small model set shared by tests.
package metadatatest

import (
	"strings"
	"testing"

	"bread/internal/metadata"
)

// SchemaYAML declares crm.customer, sales.invoice and sales.line.
const SchemaYAML = `
models:
  - app: crm
    name: customer
    labelField: name
    softDeleteField: archived
    ordering: [name]
    fields:
      - {name: name, type: string, required: true, maxLength: 100}
      - {name: city, type: string}
      - {name: email, type: email}
      - {name: vip, type: boolean}
      - {name: score, type: integer, nullable: true}
      - {name: notes, type: text}
      - {name: logo, kind: file}
      - {name: archived, type: boolean, readOnly: true}
      - {name: invoices, kind: many, target: sales.invoice, reverse: customer}
  - app: sales
    name: invoice
    labelField: number
    ordering: ["-date"]
    copyRelated: [lines]
    fields:
      - {name: number, type: string, required: true}
      - {name: customer, kind: one, target: crm.customer, required: true}
      - {name: date, type: date}
      - {name: total, type: decimal, scale: 2}
      - {name: status, type: enum, choices: [draft, sent, paid]}
      - {name: lines, kind: many, target: sales.line, reverse: invoice}
  - app: sales
    name: line
    fields:
      - {name: invoice, kind: one, target: sales.invoice, required: true}
      - {name: product, type: string, required: true}
      - {name: quantity, type: integer}
      - {name: price, type: decimal, scale: 2}
      - {name: amount, kind: computed, type: decimal, expr: "double(quantity) * price"}
`

// Registry builds the fixture registry or fails the test.
func Registry(tb testing.TB) *metadata.Registry {
	tb.Helper()
	b := metadata.NewBuilder()
	if err := metadata.LoadYAML(b, strings.NewReader(SchemaYAML)); err != nil {
		tb.Fatalf("load fixture schema: %v", err)
	}
	reg, err := b.Build()
	if err != nil {
		tb.Fatalf("build fixture registry: %v", err)
	}
	return reg
}
