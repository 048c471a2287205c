package record_repo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bread/internal/metadata/metadatatest"
)

func TestDDL(t *testing.T) {
	stmts, err := DDL(metadatatest.Registry(t))
	require.NoError(t, err)
	require.Len(t, stmts, 3)

	assert.True(t, strings.HasPrefix(stmts[0], `CREATE TABLE IF NOT EXISTS "crm_customer"`))
	assert.True(t, strings.HasPrefix(stmts[1], `CREATE TABLE IF NOT EXISTS "sales_invoice"`))
	assert.True(t, strings.HasPrefix(stmts[2], `CREATE TABLE IF NOT EXISTS "sales_line"`))

	assert.Contains(t, stmts[0], `"id" uuid PRIMARY KEY`)
	assert.Contains(t, stmts[0], `"name" varchar(100)`)
	assert.Contains(t, stmts[0], `"score" bigint`)
	assert.NotContains(t, stmts[0], `"invoices"`)

	assert.Contains(t, stmts[1], `"customer" uuid REFERENCES "crm_customer" ("id")`)
	assert.Contains(t, stmts[1], `"total" numeric`)
	assert.Contains(t, stmts[1], `"date" date`)

	assert.NotContains(t, stmts[2], `"amount"`)
}
