// Package db introspects live databases into schema snapshots.
package db

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/tordrt/schemadiff/internal/schema"
)

// Extractor captures a snapshot from a live database. A non-empty tables list
// restricts the tables captured and the triggers attached to them.
type Extractor interface {
	ExtractSnapshot(ctx context.Context, tables []string) (*schema.Snapshot, error)
}

var (
	_ Extractor = (*PostgresExtractor)(nil)
	_ Extractor = (*MySQLExtractor)(nil)
	_ Extractor = (*SQLiteExtractor)(nil)
)

// ParseDatabaseName returns the database named in a MySQL DSN
func ParseDatabaseName(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse MySQL DSN: %w", err)
	}
	if cfg.DBName == "" {
		return "", fmt.Errorf("MySQL DSN does not name a database")
	}
	return cfg.DBName, nil
}

// tableFilter reports whether a table was requested. An empty request selects everything.
type tableFilter map[string]bool

func newTableFilter(tables []string) tableFilter {
	if len(tables) == 0 {
		return nil
	}
	f := make(tableFilter, len(tables))
	for _, t := range tables {
		f[strings.TrimSpace(t)] = true
	}
	return f
}

func (f tableFilter) has(table string) bool {
	return f == nil || f[table]
}

// checkTriggerNames rejects trigger names shared by several tables. PostgreSQL scopes
// trigger names to their table, but a snapshot keys triggers by (schema, name).
func checkTriggerNames(triggers []schema.Trigger) error {
	tables := make(map[schema.Key][]string)
	var keys []schema.Key
	for _, t := range triggers {
		k := t.Key()
		if _, ok := tables[k]; !ok {
			keys = append(keys, k)
		}
		tables[k] = append(tables[k], t.Table)
	}

	var problems []string
	for _, k := range keys {
		if on := tables[k]; len(on) > 1 {
			slices.Sort(on)
			problems = append(problems, fmt.Sprintf("trigger %s is defined on tables %s", k, strings.Join(on, ", ")))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s; give each table its own trigger name or narrow the capture with a table filter",
			strings.Join(problems, "; "))
	}
	return nil
}

// sortSnapshot orders every object list by (schema, name) so snapshots of the same
// database compare equal regardless of catalog order
func sortSnapshot(s *schema.Snapshot) {
	slices.SortFunc(s.Tables, func(a, b schema.Table) int { return compareKey(a.Key(), b.Key()) })
	for i := range s.Tables {
		t := &s.Tables[i]
		slices.SortFunc(t.Indexes, func(a, b schema.Index) int { return cmp.Compare(a.Name, b.Name) })
		slices.SortFunc(t.ForeignKeys, func(a, b schema.ForeignKey) int { return cmp.Compare(a.Name, b.Name) })
		slices.SortFunc(t.Constraints, func(a, b schema.Constraint) int { return cmp.Compare(a.Name, b.Name) })
	}
	slices.SortFunc(s.Views, func(a, b schema.View) int { return compareKey(a.Key(), b.Key()) })
	slices.SortFunc(s.Functions, func(a, b schema.Function) int { return compareKey(a.Key(), b.Key()) })
	slices.SortFunc(s.Procedures, func(a, b schema.Procedure) int { return compareKey(a.Key(), b.Key()) })
	slices.SortFunc(s.Triggers, func(a, b schema.Trigger) int { return compareKey(a.Key(), b.Key()) })
	slices.SortFunc(s.Sequences, func(a, b schema.Sequence) int { return compareKey(a.Key(), b.Key()) })
	slices.SortFunc(s.Types, func(a, b schema.Type) int { return compareKey(a.Key(), b.Key()) })
}

func compareKey(a, b schema.Key) int {
	return cmp.Or(cmp.Compare(a.Schema, b.Schema), cmp.Compare(a.Name, b.Name))
}

// markKeyColumns sets the per-column primary key and unique flags from the table's keys
func markKeyColumns(t *schema.Table) {
	pk := map[string]bool{}
	if t.PrimaryKey != nil {
		for _, c := range t.PrimaryKey.Columns {
			pk[c] = true
		}
	}
	unique := map[string]bool{}
	for _, idx := range t.Indexes {
		if idx.IsUnique && len(idx.Columns) == 1 {
			unique[idx.Columns[0]] = true
		}
	}
	for _, c := range t.Constraints {
		if c.Kind == schema.ConstraintUnique && len(c.Columns) == 1 {
			unique[c.Columns[0]] = true
		}
	}
	for i := range t.Columns {
		c := &t.Columns[i]
		c.IsPrimaryKey = pk[c.Name]
		c.IsUnique = !c.IsPrimaryKey && unique[c.Name]
	}
}

func strPtr(s string) *string { return &s }

func nonEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
