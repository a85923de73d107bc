package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemadiff/internal/dialect"
	"github.com/tordrt/schemadiff/internal/diff"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schemadiff.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
dialect: mysql
schema: app
tables: [users, orders]
exclude_tables: [schema_migrations]
migration:
  use_cascade: true
  include_comments: false
diff:
  case_insensitive: true
  default_schema: app
  renames:
    - kind: table
      from: customers
      to: users
    - kind: column
      table: users
      from: fullname
      to: full_name
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Dialect)
	assert.Equal(t, "app", cfg.Schema)
	assert.Equal(t, []string{"users", "orders"}, cfg.Tables)
	assert.Equal(t, []string{"schema_migrations"}, cfg.ExcludeTables)
	assert.True(t, cfg.Diff.CaseInsensitive)
	assert.Equal(t, "app", cfg.Diff.DefaultSchema)
	assert.Equal(t, []diff.Rename{
		{Kind: diff.RenameTable, From: "customers", To: "users"},
		{Kind: diff.RenameColumn, Table: "users", From: "fullname", To: "full_name"},
	}, cfg.Diff.Renames)

	d, err := cfg.ResolveDialect(dialect.PostgreSQL)
	require.NoError(t, err)
	assert.Equal(t, dialect.MySQL, d)

	mc := cfg.MigrationFor(d)
	assert.Equal(t, dialect.MySQL, mc.Dialect)
	assert.True(t, mc.UseIfExists, "unset flags keep the default")
	assert.True(t, mc.UseCascade)
	assert.False(t, mc.IncludeComments)
}

func TestLoadFromFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "dialect: [", "failed to parse config file"},
		{"unknown dialect", "dialect: oracle", "unknown dialect"},
		{"unknown rename kind", "diff:\n  renames:\n    - kind: index\n      from: a\n      to: b\n", "unknown kind"},
		{"column rename without table", "diff:\n  renames:\n    - kind: column\n      from: a\n      to: b\n", "needs a table"},
		{"rename without target", "diff:\n  renames:\n    - kind: table\n      from: a\n", "from and to are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestEmptyConfigKeepsDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Validate())

	d, err := cfg.ResolveDialect(dialect.SQLite)
	require.NoError(t, err)
	assert.Equal(t, dialect.SQLite, d)

	mc := cfg.MigrationFor(d)
	assert.True(t, mc.UseIfExists)
	assert.False(t, mc.UseCascade)
	assert.True(t, mc.IncludeComments)
}
