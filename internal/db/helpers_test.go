package db

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tordrt/schemadiff/internal/schema"
)

// verifyTablesExist checks that exactly the expected tables are present, in order
func verifyTablesExist(t *testing.T, s *schema.Snapshot, expectedTables []string) {
	t.Helper()

	names := make([]string, 0, len(s.Tables))
	for _, table := range s.Tables {
		names = append(names, table.Name)
	}
	assert.Equal(t, expectedTables, names)
}

// verifyColumns checks that expected columns exist in a table
func verifyColumns(t *testing.T, table *schema.Table, expectedColumns []string) {
	t.Helper()

	for _, colName := range expectedColumns {
		assert.NotNil(t, findColumn(table, colName), "column %s not found in %s", colName, table.Name)
	}
}

// findTable finds a table by name in the snapshot
func findTable(s *schema.Snapshot, tableName string) *schema.Table {
	for i := range s.Tables {
		if s.Tables[i].Name == tableName {
			return &s.Tables[i]
		}
	}
	return nil
}

func findColumn(table *schema.Table, name string) *schema.Column {
	for i := range table.Columns {
		if table.Columns[i].Name == name {
			return &table.Columns[i]
		}
	}
	return nil
}
