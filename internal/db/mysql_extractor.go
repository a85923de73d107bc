package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tordrt/schemadiff/internal/schema"
)

// MySQLExtractor handles snapshot extraction from MySQL
type MySQLExtractor struct {
	client     *MySQLClient
	schemaName string
}

// NewMySQLExtractor creates a new MySQL snapshot extractor
func NewMySQLExtractor(client *MySQLClient, schemaName string) *MySQLExtractor {
	return &MySQLExtractor{
		client:     client,
		schemaName: schemaName,
	}
}

// ExtractSnapshot captures the tables, views, routines and triggers of the database.
// Objects carry no schema name, so snapshots of two databases compare by name alone.
func (e *MySQLExtractor) ExtractSnapshot(ctx context.Context, tables []string) (*schema.Snapshot, error) {
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
	}
	snap.Tables = tableList

	if snap.Views, err = e.extractViews(ctx); err != nil {
		return nil, fmt.Errorf("failed to extract views: %w", err)
	}
	if snap.Functions, snap.Procedures, err = e.extractRoutines(ctx); err != nil {
		return nil, fmt.Errorf("failed to extract routines: %w", err)
	}
	if snap.Triggers, err = e.extractTriggers(ctx, filter); err != nil {
		return nil, fmt.Errorf("failed to extract triggers: %w", err)
	}

	sortSnapshot(snap)
	return snap, nil
}

// extractTables lists the base tables of the database with their statistics
func (e *MySQLExtractor) extractTables(ctx context.Context, filter tableFilter) ([]schema.Table, error) {
	query := `
		SELECT
			table_name,
			table_comment,
			table_rows,
			data_length + index_length
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []schema.Table
	for rows.Next() {
		var comment string
		var rowCount, size sql.NullInt64
		t := schema.Table{Kind: schema.TableKindTable}
		if err := rows.Scan(&t.Name, &comment, &rowCount, &size); err != nil {
			return nil, err
		}
		if !filter.has(t.Name) {
			continue
		}
		t.Comment = nonEmpty(comment)
		if rowCount.Valid {
			t.RowCount = &rowCount.Int64
		}
		if size.Valid {
			t.SizeBytes = &size.Int64
		}
		tables = append(tables, t)
	}

	return tables, rows.Err()
}

// fillTable extracts columns, keys, indexes and constraints for a single table
func (e *MySQLExtractor) fillTable(ctx context.Context, table *schema.Table) error {
	columns, err := e.extractColumns(ctx, table.Name)
	if err != nil {
		return fmt.Errorf("failed to extract columns: %w", err)
	}
	table.Columns = columns

	pk, err := e.extractPrimaryKey(ctx, table.Name)
	if err != nil {
		return fmt.Errorf("failed to extract primary key: %w", err)
	}
	table.PrimaryKey = pk

	foreignKeys, err := e.extractForeignKeys(ctx, table.Name)
	if err != nil {
		return fmt.Errorf("failed to extract foreign keys: %w", err)
	}
	table.ForeignKeys = foreignKeys

	indexes, err := e.extractIndexes(ctx, table.Name)
	if err != nil {
		return fmt.Errorf("failed to extract indexes: %w", err)
	}
	table.Indexes = indexes

	checks, err := e.extractChecks(ctx, table.Name)
	if err != nil {
		return fmt.Errorf("failed to extract check constraints: %w", err)
	}
	table.Constraints = checks

	markKeyColumns(table)
	return nil
}

// extractColumns extracts column information for a table
func (e *MySQLExtractor) extractColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := `
		SELECT
			c.column_name,
			c.ordinal_position,
			c.column_type,
			c.data_type,
			c.is_nullable,
			c.column_default,
			c.extra,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale,
			c.column_comment
		FROM information_schema.columns c
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var col schema.Column
		var dataType, nullable, extra, comment string
		var defaultVal sql.NullString
		var maxLength, precision, scale sql.NullInt64

		if err := rows.Scan(&col.Name, &col.Ordinal, &col.Type, &dataType, &nullable, &defaultVal,
			&extra, &maxLength, &precision, &scale, &comment); err != nil {
			return nil, err
		}

		// ordinal_position is 1-based
		col.Ordinal--
		col.Nullable = nullable == "YES"
		col.IsAutoIncrement = strings.Contains(strings.ToLower(extra), "auto_increment")
		col.Comment = nonEmpty(comment)
		if defaultVal.Valid {
			col.DefaultValue = mysqlDefault(dataType, extra, defaultVal.String)
		}
		if maxLength.Valid {
			col.MaxLength = &maxLength.Int64
		}
		if dataType == "decimal" && precision.Valid {
			p := int(precision.Int64)
			col.Precision = &p
			if scale.Valid {
				s := int(scale.Int64)
				col.Scale = &s
			}
		}

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// mysqlDefault turns information_schema.columns.column_default into DDL text.
// MySQL 8 stores string literals unquoted and marks expressions DEFAULT_GENERATED.
func mysqlDefault(dataType, extra, raw string) *string {
	if strings.Contains(strings.ToUpper(extra), "DEFAULT_GENERATED") {
		return &raw
	}
	if strings.HasPrefix(raw, "'") {
		return &raw
	}
	switch strings.ToLower(dataType) {
	case "char", "varchar", "tinytext", "text", "mediumtext", "longtext", "enum", "set",
		"binary", "varbinary", "date", "time", "datetime", "timestamp", "year":
		if strings.EqualFold(raw, "CURRENT_TIMESTAMP") || strings.HasPrefix(strings.ToUpper(raw), "CURRENT_TIMESTAMP(") {
			return &raw
		}
		quoted := "'" + strings.ReplaceAll(raw, "'", "''") + "'"
		return &quoted
	}
	return &raw
}

// extractPrimaryKey extracts primary key columns. MySQL names every primary key
// PRIMARY, so the name is left empty.
func (e *MySQLExtractor) extractPrimaryKey(ctx context.Context, tableName string) (*schema.PrimaryKey, error) {
	query := `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
			AND table_name = ?
			AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var colName string
		if err := rows.Scan(&colName); err != nil {
			return nil, err
		}
		pk = append(pk, colName)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(pk) == 0 {
		return nil, nil
	}
	return &schema.PrimaryKey{Columns: pk}, nil
}

// extractForeignKeys extracts foreign keys with their referential actions
func (e *MySQLExtractor) extractForeignKeys(ctx context.Context, tableName string) ([]schema.ForeignKey, error) {
	query := `
		SELECT
			kcu.constraint_name,
			kcu.column_name,
			kcu.referenced_table_schema,
			kcu.referenced_table_name,
			kcu.referenced_column_name,
			rc.update_rule,
			rc.delete_rule
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_schema = kcu.constraint_schema
			AND rc.constraint_name = kcu.constraint_name
			AND rc.table_name = kcu.table_name
		WHERE kcu.table_schema = ?
			AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var foreignKeys []schema.ForeignKey
	for rows.Next() {
		var name, column, refSchema, refTable, refColumn, updateRule, deleteRule string
		if err := rows.Scan(&name, &column, &refSchema, &refTable, &refColumn, &updateRule, &deleteRule); err != nil {
			return nil, err
		}
		if len(foreignKeys) == 0 || foreignKeys[len(foreignKeys)-1].Name != name {
			fk := schema.ForeignKey{
				Name:            name,
				ReferencedTable: refTable,
				OnUpdate:        schema.ParseForeignKeyAction(updateRule),
				OnDelete:        schema.ParseForeignKeyAction(deleteRule),
			}
			if refSchema != e.schemaName {
				fk.ReferencedSchema = refSchema
			}
			foreignKeys = append(foreignKeys, fk)
		}
		last := &foreignKeys[len(foreignKeys)-1]
		last.Columns = append(last.Columns, column)
		last.ReferencedColumns = append(last.ReferencedColumns, refColumn)
	}

	return foreignKeys, rows.Err()
}

// extractIndexes extracts index information. Unique constraints are unique
// indexes in MySQL and are reported here.
func (e *MySQLExtractor) extractIndexes(ctx context.Context, tableName string) ([]schema.Index, error) {
	query := `
		SELECT
			s.index_name,
			s.non_unique = 0 AS is_unique,
			LOWER(s.index_type),
			GROUP_CONCAT(s.column_name ORDER BY s.seq_in_index) AS column_names
		FROM information_schema.statistics s
		WHERE s.table_schema = ?
			AND s.table_name = ?
			AND s.index_name != 'PRIMARY'
		GROUP BY s.index_name, s.non_unique, s.index_type
		ORDER BY s.index_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []schema.Index
	for rows.Next() {
		var idx schema.Index
		var isUnique int
		var columnNames sql.NullString

		if err := rows.Scan(&idx.Name, &isUnique, &idx.Type, &columnNames); err != nil {
			return nil, err
		}

		idx.IsUnique = isUnique == 1
		// functional key parts have no column name
		if columnNames.Valid {
			idx.Columns = strings.Split(columnNames.String, ",")
		}

		indexes = append(indexes, idx)
	}

	return indexes, rows.Err()
}

// extractChecks extracts CHECK constraints. Servers older than MySQL 8.0.16 have
// no CHECK_CONSTRAINTS table and yield none.
func (e *MySQLExtractor) extractChecks(ctx context.Context, tableName string) ([]schema.Constraint, error) {
	query := `
		SELECT tc.constraint_name, cc.check_clause
		FROM information_schema.table_constraints tc
		JOIN information_schema.check_constraints cc
			ON cc.constraint_schema = tc.constraint_schema
			AND cc.constraint_name = tc.constraint_name
		WHERE tc.table_schema = ?
			AND tc.table_name = ?
			AND tc.constraint_type = 'CHECK'
		ORDER BY tc.constraint_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		if isMissingCatalogTable(err) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var checks []schema.Constraint
	for rows.Next() {
		var name, clause string
		if err := rows.Scan(&name, &clause); err != nil {
			return nil, err
		}
		checks = append(checks, schema.Constraint{
			Name:       name,
			Kind:       schema.ConstraintCheck,
			Definition: nonEmpty(checkExpression(clause)),
		})
	}

	return checks, rows.Err()
}

// extractViews extracts view definitions
func (e *MySQLExtractor) extractViews(ctx context.Context) ([]schema.View, error) {
	query := `
		SELECT table_name, view_definition
		FROM information_schema.views
		WHERE table_schema = ?
		ORDER BY table_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []schema.View
	for rows.Next() {
		var v schema.View
		var definition string
		if err := rows.Scan(&v.Name, &definition); err != nil {
			return nil, err
		}
		v.Definition = nonEmpty(definition)
		views = append(views, v)
	}

	return views, rows.Err()
}

// extractRoutines extracts stored functions and procedures with their parameter lists
func (e *MySQLExtractor) extractRoutines(ctx context.Context) ([]schema.Function, []schema.Procedure, error) {
	query := `
		SELECT
			r.routine_name,
			r.routine_type,
			COALESCE(r.dtd_identifier, ''),
			COALESCE(r.routine_definition, ''),
			COALESCE((
				SELECT GROUP_CONCAT(
					CONCAT_WS(' ', p.parameter_mode, p.parameter_name, p.dtd_identifier)
					ORDER BY p.ordinal_position SEPARATOR ', ')
				FROM information_schema.parameters p
				WHERE p.specific_schema = r.routine_schema
					AND p.specific_name = r.specific_name
					AND p.ordinal_position > 0
			), '')
		FROM information_schema.routines r
		WHERE r.routine_schema = ?
		ORDER BY r.routine_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var functions []schema.Function
	var procedures []schema.Procedure
	for rows.Next() {
		var name, kind, returnType, definition, arguments string
		if err := rows.Scan(&name, &kind, &returnType, &definition, &arguments); err != nil {
			return nil, nil, err
		}
		if kind == "PROCEDURE" {
			procedures = append(procedures, schema.Procedure{
				Name: name, Language: "SQL", Arguments: arguments, Definition: nonEmpty(definition),
			})
			continue
		}
		functions = append(functions, schema.Function{
			Name: name, Language: "SQL", ReturnType: returnType, Arguments: arguments, Definition: nonEmpty(definition),
		})
	}

	return functions, procedures, rows.Err()
}

// extractTriggers extracts triggers on the requested tables. MySQL triggers fire
// on a single event and are always enabled.
func (e *MySQLExtractor) extractTriggers(ctx context.Context, filter tableFilter) ([]schema.Trigger, error) {
	query := `
		SELECT
			trigger_name,
			event_object_table,
			action_timing,
			event_manipulation,
			action_orientation,
			action_statement
		FROM information_schema.triggers
		WHERE trigger_schema = ?
		ORDER BY trigger_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triggers []schema.Trigger
	for rows.Next() {
		var tr schema.Trigger
		var timing, event, orientation, statement string
		if err := rows.Scan(&tr.Name, &tr.Table, &timing, &event, &orientation, &statement); err != nil {
			return nil, err
		}
		if !filter.has(tr.Table) {
			continue
		}
		tr.Timing = schema.TimingAfter
		if strings.EqualFold(timing, "BEFORE") {
			tr.Timing = schema.TimingBefore
		}
		tr.Events = []schema.TriggerEvent{schema.TriggerEvent(strings.ToLower(event))}
		tr.ForEach = schema.ForEachStatement
		if strings.EqualFold(orientation, "ROW") {
			tr.ForEach = schema.ForEachRow
		}
		tr.Enabled = true
		tr.Definition = nonEmpty(statement)
		triggers = append(triggers, tr)
	}

	return triggers, rows.Err()
}
