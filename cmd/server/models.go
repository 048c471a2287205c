package main

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"bread/internal/core/id"
	"bread/internal/metadata"
)

// Customer is a built-in demo model.
type Customer struct {
	ID       id.ID      `json:"id"`
	Name     string     `json:"name" binding:"required" bread:"label"`
	City     string     `json:"city"`
	Email    string     `json:"email" bread:"email"`
	Website  string     `json:"website" bread:"url"`
	VIP      bool       `json:"vip" label:"VIP"`
	Notes    string     `json:"notes" bread:"text"`
	Archived bool       `json:"archived" bread:"readonly,softdelete"`
	Invoices []struct{} `json:"invoices" bread:"target=sales.invoice,reverse=customer"`
}

// Invoice is a built-in demo model.
type Invoice struct {
	ID         id.ID           `json:"id"`
	Number     string          `json:"number" binding:"required" bread:"label"`
	CustomerID id.ID           `json:"customer" binding:"required" bread:"target=crm.customer"`
	Date       time.Time       `json:"date" bread:"date"`
	Status     string          `json:"status" bread:"enum,choices=draft|sent|paid"`
	Total      decimal.Decimal `json:"total"`
	CreatedBy  string          `json:"created_by" bread:"readonly"`
	UpdatedBy  string          `json:"updated_by" bread:"readonly"`
	Lines      []struct{}      `json:"lines" bread:"target=sales.line,reverse=invoice"`
}

// Line is an invoice line.
type Line struct {
	ID        id.ID           `json:"id"`
	InvoiceID id.ID           `json:"invoice" binding:"required" bread:"target=sales.invoice"`
	Product   string          `json:"product" binding:"required" bread:"label"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount" bread:"expr=double(quantity) * price"`
}

// buildRegistry registers the demo models and then the models of schemaFile, if any.
func buildRegistry(schemaFile string) (*metadata.Registry, error) {
	b := metadata.NewBuilder()

	customer := metadata.Inspect(Customer{}, "crm", "customer")
	customer.Ordering = []string{"name"}
	b.Add(customer)

	invoice := metadata.Inspect(Invoice{}, "sales", "invoice")
	invoice.Ordering = []string{"-date", "number"}
	invoice.CopyRelated = []string{"lines"}
	b.Add(invoice)

	b.Add(metadata.Inspect(Line{}, "sales", "line"))

	if schemaFile != "" {
		f, err := os.Open(schemaFile)
		if err != nil {
			return nil, fmt.Errorf("open schema file: %w", err)
		}
		defer f.Close()
		if err := metadata.LoadYAML(b, f); err != nil {
			return nil, err
		}
	}
	return b.Build()
}
