package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/tordrt/schemadiff/internal/schema"
)

// SQLiteExtractor handles snapshot extraction from SQLite
type SQLiteExtractor struct {
	client *SQLiteClient
}

// NewSQLiteExtractor creates a new SQLite snapshot extractor
func NewSQLiteExtractor(client *SQLiteClient) *SQLiteExtractor {
	return &SQLiteExtractor{
		client: client,
	}
}

// ExtractSnapshot captures the tables, views and triggers of the main database.
// SQLite has no routines, sequences or user-defined types.
func (e *SQLiteExtractor) ExtractSnapshot(ctx context.Context, tables []string) (*schema.Snapshot, error) {
	filter := newTableFilter(tables)
	snap := &schema.Snapshot{}

	tableList, err := e.extractTables(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}
	for i := range tableList {
		if err := e.fillTable(ctx, &tableList[i]); err != nil {
			return nil, fmt.Errorf("failed to extract table %s: %w", tableList[i].Name, err)
		}
		snap.Tables = append(snap.Tables, tableList[i].Table)
	}

	if snap.Views, err = e.extractViews(ctx); err != nil {
		return nil, fmt.Errorf("failed to extract views: %w", err)
	}
	if snap.Triggers, err = e.extractTriggers(ctx, filter); err != nil {
		return nil, fmt.Errorf("failed to extract triggers: %w", err)
	}

	sortSnapshot(snap)
	return snap, nil
}

// sqliteTable is a table with the CREATE statement it was declared with
type sqliteTable struct {
	schema.Table
	ddl string
}

// extractTables lists user tables, skipping SQLite's internal ones
func (e *SQLiteExtractor) extractTables(ctx context.Context, filter tableFilter) ([]sqliteTable, error) {
	query := `
		SELECT name, COALESCE(sql, '')
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []sqliteTable
	for rows.Next() {
		t := sqliteTable{Table: schema.Table{Kind: schema.TableKindTable}}
		if err := rows.Scan(&t.Name, &t.ddl); err != nil {
			return nil, err
		}
		if !filter.has(t.Name) {
			continue
		}
		tables = append(tables, t)
	}

	return tables, rows.Err()
}

var autoIncrementRe = regexp.MustCompile(`(?i)\bAUTOINCREMENT\b`)

func hasAutoIncrement(ddl string) bool {
	return autoIncrementRe.MatchString(ddl)
}

// fillTable extracts columns, keys and indexes for a single table
func (e *SQLiteExtractor) fillTable(ctx context.Context, st *sqliteTable) error {
	table := &st.Table
	columns, pk, err := e.extractColumns(ctx, table.Name)
	if err != nil {
		return fmt.Errorf("failed to extract columns: %w", err)
	}
	table.Columns = columns
	if len(pk) > 0 {
		table.PrimaryKey = &schema.PrimaryKey{Columns: pk}
	}
	// AUTOINCREMENT is only legal on a single INTEGER PRIMARY KEY column
	if len(pk) == 1 && hasAutoIncrement(st.ddl) {
		for i := range table.Columns {
			if table.Columns[i].Name == pk[0] {
				table.Columns[i].IsAutoIncrement = true
			}
		}
	}

	foreignKeys, err := e.extractForeignKeys(ctx, table.Name)
	if err != nil {
		return fmt.Errorf("failed to extract foreign keys: %w", err)
	}
	table.ForeignKeys = foreignKeys

	indexes, uniques, err := e.extractIndexes(ctx, table.Name)
	if err != nil {
		return fmt.Errorf("failed to extract indexes: %w", err)
	}
	table.Indexes = indexes
	table.Constraints = uniques

	markKeyColumns(table)
	return nil
}

// extractColumns extracts column information and the primary key columns in key order
func (e *SQLiteExtractor) extractColumns(ctx context.Context, tableName string) ([]schema.Column, []string, error) {
	query := `SELECT cid, name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`

	rows, err := e.client.GetDB().QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	pkOrder := map[int]string{}

	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, nil, err
		}

		col := schema.Column{
			Name:     name,
			Ordinal:  cid,
			Type:     colType,
			Nullable: notNull == 0 && pk == 0,
		}
		if defaultValue.Valid {
			col.DefaultValue = &defaultValue.String
		}
		if pk > 0 {
			pkOrder[pk] = name
		}

		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	pk := make([]string, 0, len(pkOrder))
	for i := 1; i <= len(pkOrder); i++ {
		pk = append(pk, pkOrder[i])
	}
	return columns, pk, nil
}

// extractForeignKeys extracts foreign keys. SQLite does not name them, so each gets
// a <table>_<columns>_fkey name that stays stable across snapshots.
func (e *SQLiteExtractor) extractForeignKeys(ctx context.Context, tableName string) ([]schema.ForeignKey, error) {
	query := `SELECT id, seq, "table", "from", "to", on_update, on_delete FROM pragma_foreign_key_list(?) ORDER BY id, seq`

	rows, err := e.client.GetDB().QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var foreignKeys []schema.ForeignKey
	lastID := -1
	for rows.Next() {
		var id, seq int
		var targetTable, fromCol, onUpdate, onDelete string
		var toCol sql.NullString

		if err := rows.Scan(&id, &seq, &targetTable, &fromCol, &toCol, &onUpdate, &onDelete); err != nil {
			return nil, err
		}

		if id != lastID {
			foreignKeys = append(foreignKeys, schema.ForeignKey{
				ReferencedTable: targetTable,
				OnUpdate:        schema.ParseForeignKeyAction(onUpdate),
				OnDelete:        schema.ParseForeignKeyAction(onDelete),
			})
			lastID = id
		}
		last := &foreignKeys[len(foreignKeys)-1]
		last.Columns = append(last.Columns, fromCol)
		// a NULL target column references the parent's primary key
		last.ReferencedColumns = append(last.ReferencedColumns, toCol.String)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range foreignKeys {
		fk := &foreignKeys[i]
		fk.Name = fmt.Sprintf("%s_%s_fkey", tableName, strings.Join(fk.Columns, "_"))
		if allEmpty(fk.ReferencedColumns) {
			_, parentPK, err := e.extractColumns(ctx, fk.ReferencedTable)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve key of %s: %w", fk.ReferencedTable, err)
			}
			fk.ReferencedColumns = parentPK
		}
	}
	return foreignKeys, nil
}

func allEmpty(values []string) bool {
	for _, v := range values {
		if v != "" {
			return false
		}
	}
	return true
}

// extractIndexes extracts declared indexes. Automatic indexes backing UNIQUE
// clauses are reported as unique constraints and those backing the primary key
// are skipped.
func (e *SQLiteExtractor) extractIndexes(ctx context.Context, tableName string) ([]schema.Index, []schema.Constraint, error) {
	query := `SELECT name, "unique", origin FROM pragma_index_list(?) ORDER BY name`

	rows, err := e.client.GetDB().QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, nil, err
	}

	type indexRow struct {
		name, origin string
		unique       bool
	}
	var list []indexRow
	for rows.Next() {
		var r indexRow
		var unique int
		if err := rows.Scan(&r.name, &unique, &r.origin); err != nil {
			rows.Close()
			return nil, nil, err
		}
		r.unique = unique == 1
		list = append(list, r)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, nil, err
	}

	var indexes []schema.Index
	var uniques []schema.Constraint
	for _, r := range list {
		if r.origin == "pk" {
			continue
		}
		columns, err := e.indexColumns(ctx, r.name)
		if err != nil {
			return nil, nil, err
		}
		if len(columns) == 0 {
			continue
		}
		if r.origin == "u" {
			uniques = append(uniques, schema.Constraint{
				Name:    r.name,
				Kind:    schema.ConstraintUnique,
				Columns: columns,
			})
			continue
		}
		indexes = append(indexes, schema.Index{
			Name:     r.name,
			IsUnique: r.unique,
			Columns:  columns,
		})
	}

	return indexes, uniques, nil
}

// indexColumns lists the named columns of an index in key order. Expression
// key parts have no name and are left out.
func (e *SQLiteExtractor) indexColumns(ctx context.Context, indexName string) ([]string, error) {
	rows, err := e.client.GetDB().QueryContext(ctx, `SELECT name FROM pragma_index_info(?) ORDER BY seqno`, indexName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var colName sql.NullString
		if err := rows.Scan(&colName); err != nil {
			return nil, err
		}
		if colName.Valid {
			columns = append(columns, colName.String)
		}
	}
	return columns, rows.Err()
}

// extractViews extracts views with the query text of their CREATE statement
func (e *SQLiteExtractor) extractViews(ctx context.Context) ([]schema.View, error) {
	query := `SELECT name, COALESCE(sql, '') FROM sqlite_master WHERE type = 'view' ORDER BY name`

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []schema.View
	for rows.Next() {
		var v schema.View
		var ddl string
		if err := rows.Scan(&v.Name, &ddl); err != nil {
			return nil, err
		}
		v.Definition = nonEmpty(viewQuery(ddl))
		views = append(views, v)
	}

	return views, rows.Err()
}

var viewRe = regexp.MustCompile(`(?is)^\s*CREATE\s+(?:TEMP(?:ORARY)?\s+)?VIEW\s+(?:IF\s+NOT\s+EXISTS\s+)?\S+(?:\s*\([^)]*\))?\s+AS\s+(.*)$`)

// viewQuery returns the SELECT of a CREATE VIEW statement
func viewQuery(ddl string) string {
	m := viewRe.FindStringSubmatch(ddl)
	if m == nil {
		return ""
	}
	return strings.TrimSuffix(strings.TrimSpace(m[1]), ";")
}

// extractTriggers extracts triggers on the requested tables
func (e *SQLiteExtractor) extractTriggers(ctx context.Context, filter tableFilter) ([]schema.Trigger, error) {
	query := `SELECT name, tbl_name, COALESCE(sql, '') FROM sqlite_master WHERE type = 'trigger' ORDER BY name`

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triggers []schema.Trigger
	for rows.Next() {
		var tr schema.Trigger
		var ddl string
		if err := rows.Scan(&tr.Name, &tr.Table, &ddl); err != nil {
			return nil, err
		}
		if !filter.has(tr.Table) {
			continue
		}
		parseSQLiteTrigger(ddl, &tr)
		triggers = append(triggers, tr)
	}

	return triggers, rows.Err()
}

var triggerRe = regexp.MustCompile(`(?is)^\s*CREATE\s+(?:TEMP(?:ORARY)?\s+)?TRIGGER\s+(?:IF\s+NOT\s+EXISTS\s+)?\S+\s+(?:(BEFORE|AFTER|INSTEAD\s+OF)\s+)?(DELETE|INSERT|UPDATE)(?:\s+OF\s+.+?)?\s+ON\s+\S+\s+(?:FOR\s+EACH\s+ROW\s+)?(.*)$`)

// parseSQLiteTrigger fills timing, event and body from a CREATE TRIGGER statement.
// SQLite triggers are row-level, fire on one event and default to BEFORE. A statement
// that does not parse leaves the definition empty.
func parseSQLiteTrigger(ddl string, tr *schema.Trigger) {
	tr.ForEach = schema.ForEachRow
	tr.Enabled = true
	tr.Timing = schema.TimingBefore

	m := triggerRe.FindStringSubmatch(ddl)
	if m == nil {
		return
	}
	switch strings.ToUpper(strings.Join(strings.Fields(m[1]), " ")) {
	case "AFTER":
		tr.Timing = schema.TimingAfter
	case "INSTEAD OF":
		tr.Timing = schema.TimingInsteadOf
	}
	tr.Events = []schema.TriggerEvent{schema.TriggerEvent(strings.ToLower(m[2]))}
	tr.Definition = nonEmpty(strings.TrimSuffix(strings.TrimSpace(m[3]), ";"))
}
