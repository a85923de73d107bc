package formatter

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemadiff/internal/dialect"
	"github.com/tordrt/schemadiff/internal/diff"
	"github.com/tordrt/schemadiff/internal/migration"
	"github.com/tordrt/schemadiff/internal/schema"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// samplePlan adds orders, adds users.email and drops legacy_logs
func samplePlan() *Plan {
	steps := []migration.Step{
		{
			Phase:  migration.PhaseTables,
			Object: "table orders",
			Up:     migration.Statement{Outcome: migration.Reversible, SQL: `CREATE TABLE "orders" ("id" INTEGER NOT NULL, PRIMARY KEY ("id"))`},
			Down:   migration.Statement{Outcome: migration.Reversible, SQL: `DROP TABLE IF EXISTS "orders"`},
		},
		{
			Phase:  migration.PhaseTables,
			Object: "table users",
			Up:     migration.Statement{Outcome: migration.Reversible, SQL: `ALTER TABLE "users" ADD COLUMN "email" TEXT NOT NULL`},
			Down:   migration.Statement{Outcome: migration.Reversible, SQL: `ALTER TABLE "users" DROP COLUMN IF EXISTS "email"`},
		},
		{
			Phase:  migration.PhaseTables,
			Object: "table legacy_logs",
			Up:     migration.Statement{Outcome: migration.Reversible, SQL: `DROP TABLE IF EXISTS "legacy_logs"`},
			Down: migration.Statement{
				Outcome: migration.BestEffort,
				SQL:     `CREATE TABLE "legacy_logs" ("id" INTEGER NOT NULL)`,
				Note:    "recreates the table structure only; rows are not restored",
			},
		},
	}

	m := &migration.Migration{Steps: steps}
	for _, s := range steps {
		m.UpSQL = append(m.UpSQL, s.Up.Render())
		m.DownSQL = append(m.DownSQL, s.Down.Render())
	}

	return &Plan{
		Dialect: dialect.PostgreSQL,
		Diff: &diff.SchemaDiff{
			AddedTables:   []schema.Table{{Name: "orders"}},
			RemovedTables: []schema.Table{{Name: "legacy_logs"}},
			ModifiedTables: []diff.TableDiff{{
				Name:         "users",
				AddedColumns: []schema.Column{{Name: "email", Type: "TEXT"}},
			}},
		},
		Migration: m,
	}
}

func emptyPlan() *Plan {
	return &Plan{
		Dialect:   dialect.MySQL,
		Diff:      &diff.SchemaDiff{},
		Migration: &migration.Migration{},
	}
}

func TestTextFormatter(t *testing.T) {
	g := newGoldie(t)

	tests := []struct {
		name string
		plan *Plan
	}{
		{"text_plan", samplePlan()},
		{"text_empty", emptyPlan()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewTextFormatter(&buf).Format(tt.plan))
			g.Assert(t, tt.name, buf.Bytes())
		})
	}
}

func TestMarkdownFormatter(t *testing.T) {
	g := newGoldie(t)

	tests := []struct {
		name string
		plan *Plan
	}{
		{"markdown_plan", samplePlan()},
		{"markdown_empty", emptyPlan()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewMarkdownFormatter(&buf).Format(tt.plan))
			g.Assert(t, tt.name, buf.Bytes())
		})
	}
}

func TestMultiFileFormatter(t *testing.T) {
	g := newGoldie(t)
	plan := samplePlan()

	tests := []struct {
		format   string
		overview string
		golden   string
	}{
		{formatMarkdown, "_overview.md", "overview_markdown"},
		{formatText, "_overview.txt", "overview_text"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "migration")
			require.NoError(t, NewMultiFileFormatter(dir, tt.format).Format(plan))

			up, err := os.ReadFile(filepath.Join(dir, UpFileName))
			require.NoError(t, err)
			assert.Equal(t, plan.Migration.UpScript()+"\n", string(up))

			down, err := os.ReadFile(filepath.Join(dir, DownFileName))
			require.NoError(t, err)
			assert.Equal(t, plan.Migration.DownScript()+"\n", string(down))

			overview, err := os.ReadFile(filepath.Join(dir, tt.overview))
			require.NoError(t, err)
			g.Assert(t, tt.golden, overview)
		})
	}
}

func TestMultiFileFormatterEmptyPlan(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewMultiFileFormatter(dir, formatText).Format(emptyPlan()))

	for _, name := range []string{UpFileName, DownFileName} {
		content, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Empty(t, content, name)
	}
}

func TestNilMigrationIsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).Format(&Plan{Dialect: dialect.SQLite}))
	assert.Equal(t, "-- schemadiff migration for sqlite\n-- no changes\n", buf.String())
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "1 change", plural(1, "change"))
	assert.Equal(t, "0 steps", plural(0, "step"))
	assert.Equal(t, "2 steps", plural(2, "step"))
}
