package main

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemadiff/internal/config"
	"github.com/tordrt/schemadiff/internal/dialect"
)

func TestParseTableList(t *testing.T) {
	tests := []struct {
		name       string
		tablesStr  string
		wantTables []string
	}{
		{
			name:       "single table",
			tablesStr:  "users",
			wantTables: []string{"users"},
		},
		{
			name:       "multiple tables",
			tablesStr:  "users,posts,comments",
			wantTables: []string{"users", "posts", "comments"},
		},
		{
			name:       "tables with spaces",
			tablesStr:  "users, posts, comments",
			wantTables: []string{"users", "posts", "comments"},
		},
		{
			name:       "empty string",
			tablesStr:  "",
			wantTables: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotTables := parseTableList(tt.tablesStr)

			if len(gotTables) != len(tt.wantTables) {
				t.Errorf("parseTableList() returned %d tables, want %d", len(gotTables), len(tt.wantTables))
				return
			}

			for i, table := range gotTables {
				if table != tt.wantTables[i] {
					t.Errorf("parseTableList() table[%d] = %s, want %s", i, table, tt.wantTables[i])
				}
			}
		})
	}
}

func TestApplyFlags(t *testing.T) {
	t.Cleanup(func() {
		dialectName, tables, cascade, noComments = "", "", false, false
	})

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringVar(&dialectName, "dialect", "", "")
	fs.StringVar(&tables, "tables", "", "")
	fs.BoolVar(&cascade, "cascade", false, "")
	fs.BoolVar(&noComments, "no-comments", false, "")
	fs.BoolVar(&noIfExists, "no-if-exists", false, "")
	require.NoError(t, fs.Parse([]string{"--dialect", "mysql", "--tables", "users, orders", "--cascade", "--no-comments"}))

	useIfExists := false
	cfg := &config.Config{
		Dialect:       "sqlite",
		ExcludeTables: []string{"schema_migrations"},
		Migration:     config.MigrationConfig{UseIfExists: &useIfExists},
	}
	applyFlags(fs, cfg)

	assert.Equal(t, "mysql", cfg.Dialect)
	assert.Equal(t, []string{"users", "orders"}, cfg.Tables)
	assert.Equal(t, []string{"schema_migrations"}, cfg.ExcludeTables, "unset flags keep file values")

	m := cfg.MigrationFor(dialect.MySQL)
	assert.True(t, m.UseCascade)
	assert.False(t, m.IncludeComments)
	assert.False(t, m.UseIfExists, "file value survives when --no-if-exists is not given")
}

func TestDefaultDialect(t *testing.T) {
	assert.Equal(t, dialect.MySQL, defaultDialect("mysql://root@tcp(localhost:3306)/app"))
	assert.Equal(t, dialect.SQLite, defaultDialect("sqlite://app.db"))
	assert.Equal(t, dialect.PostgreSQL, defaultDialect("postgres://localhost/app"))
	assert.Equal(t, dialect.PostgreSQL, defaultDialect("schema/target.yaml"))
}

func TestSourceLabel(t *testing.T) {
	assert.Equal(t, "postgres://...", sourceLabel("postgres://admin:secret@db/app"))
	assert.Equal(t, "schema/target.yaml", sourceLabel("schema/target.yaml"))
	assert.Equal(t, "file://target.yaml", sourceLabel("file://target.yaml"))
}

func createSQLiteDB(t *testing.T, dir, name, ddl string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	conn, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec(ddl)
	require.NoError(t, err)
	return path
}

func TestSnapshotThenDiff(t *testing.T) {
	dir := t.TempDir()
	v1 := createSQLiteDB(t, dir, "v1.db", `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);`)
	v2 := createSQLiteDB(t, dir, "v2.db", `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, email TEXT);`)

	v1Snapshot := filepath.Join(dir, "v1.yaml")
	rootCmd.SetArgs([]string{"snapshot", "--db-url", "sqlite://" + v1, "-o", v1Snapshot})
	require.NoError(t, rootCmd.Execute())

	snapshot, err := os.ReadFile(v1Snapshot)
	require.NoError(t, err)
	assert.Contains(t, string(snapshot), "name: users")

	out := filepath.Join(dir, "migration.sql")
	rootCmd.SetArgs([]string{"--from", v1Snapshot, "--to", "sqlite://" + v2, "-o", out})
	require.NoError(t, rootCmd.Execute())

	migration, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(migration), "-- schemadiff migration for sqlite")
	assert.Contains(t, string(migration), `ALTER TABLE "users" ADD COLUMN "email" TEXT`)
}
