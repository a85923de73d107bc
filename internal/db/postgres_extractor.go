package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/tordrt/schemadiff/internal/schema"
)

const varcharType = "varchar"

// PostgresExtractor handles snapshot extraction from PostgreSQL
type PostgresExtractor struct {
	client *PostgresClient
	schema string
}

// NewPostgresExtractor creates a new PostgreSQL snapshot extractor
func NewPostgresExtractor(client *PostgresClient, schemaName string) *PostgresExtractor {
	return &PostgresExtractor{
		client: client,
		schema: schemaName,
	}
}

// ExtractSnapshot captures the tables, views, routines, triggers, sequences and
// types of the extractor's schema
func (e *PostgresExtractor) ExtractSnapshot(ctx context.Context, tables []string) (*schema.Snapshot, error) {
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
	if snap.Sequences, err = e.extractSequences(ctx); err != nil {
		return nil, fmt.Errorf("failed to extract sequences: %w", err)
	}
	if snap.Types, err = e.extractTypes(ctx); err != nil {
		return nil, fmt.Errorf("failed to extract types: %w", err)
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

// extractTables lists the base and partitioned tables of the schema with their statistics
func (e *PostgresExtractor) extractTables(ctx context.Context, filter tableFilter) ([]schema.Table, error) {
	query := `
		SELECT
			c.relname,
			obj_description(c.oid, 'pg_class'),
			c.reltuples::bigint,
			pg_total_relation_size(c.oid)
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relkind IN ('r', 'p')
		ORDER BY c.relname
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []schema.Table
	for rows.Next() {
		var rowCount, size int64
		t := schema.Table{Schema: e.schema, Kind: schema.TableKindTable}
		if err := rows.Scan(&t.Name, &t.Comment, &rowCount, &size); err != nil {
			return nil, err
		}
		if !filter.has(t.Name) {
			continue
		}
		// reltuples is -1 until the table is first analyzed
		if rowCount >= 0 {
			t.RowCount = &rowCount
		}
		t.SizeBytes = &size
		tables = append(tables, t)
	}

	return tables, rows.Err()
}

// fillTable extracts columns, keys, indexes and constraints for a single table
func (e *PostgresExtractor) fillTable(ctx context.Context, table *schema.Table) error {
	columns, err := e.extractColumns(ctx, table.Name)
	if err != nil {
		return fmt.Errorf("failed to extract columns: %w", err)
	}
	table.Columns = columns

	pk, constraints, err := e.extractConstraints(ctx, table.Name)
	if err != nil {
		return fmt.Errorf("failed to extract constraints: %w", err)
	}
	table.PrimaryKey = pk
	table.Constraints = constraints

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

	markKeyColumns(table)
	return nil
}

// normalizePostgresType maps verbose SQL type names to commonly-used PostgreSQL equivalents
func normalizePostgresType(dataType, udtName string, charMaxLength *int) string {
	switch dataType {
	case "timestamp with time zone":
		return "timestamptz"
	case "timestamp without time zone":
		return "timestamp"
	case "time with time zone":
		return "timetz"
	case "time without time zone":
		return "time"
	case "character varying":
		if charMaxLength != nil {
			return fmt.Sprintf("varchar(%d)", *charMaxLength)
		}
		return varcharType
	case "character":
		if charMaxLength != nil {
			return fmt.Sprintf("char(%d)", *charMaxLength)
		}
		return "char"
	case "ARRAY":
		// udt_name has underscore prefix for arrays (e.g., "_text" for text[], "_int4" for integer[])
		if len(udtName) > 0 && udtName[0] == '_' {
			elementType := normalizeUdtName(udtName[1:])
			return fmt.Sprintf("%s[]", elementType)
		}
		return "array"
	case "USER-DEFINED":
		return udtName
	default:
		return dataType
	}
}

// normalizeUdtName converts PostgreSQL internal type names to more readable forms
func normalizeUdtName(udtName string) string {
	switch udtName {
	case "int4":
		return "integer"
	case "int8":
		return "bigint"
	case "int2":
		return "smallint"
	case "float4":
		return "real"
	case "float8":
		return "double precision"
	case "bool":
		return "boolean"
	case varcharType:
		return varcharType
	default:
		return udtName
	}
}

// extractColumns extracts column information for a table
func (e *PostgresExtractor) extractColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := `
		SELECT
			c.column_name,
			c.ordinal_position,
			c.data_type,
			c.udt_name,
			c.is_nullable,
			c.column_default,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale,
			c.is_identity,
			col_description(a.attrelid, a.attnum)
		FROM information_schema.columns c
		LEFT JOIN pg_attribute a
			ON a.attrelid = format('%I.%I', c.table_schema, c.table_name)::regclass
			AND a.attname = c.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var col schema.Column
		var ordinal int
		var dataType, udtName, nullable, identity string
		var charMaxLength, precision, scale *int

		if err := rows.Scan(&col.Name, &ordinal, &dataType, &udtName, &nullable, &col.DefaultValue,
			&charMaxLength, &precision, &scale, &identity, &col.Comment); err != nil {
			return nil, err
		}

		col.Ordinal = ordinal - 1
		col.Nullable = nullable == "YES"
		col.Type = normalizePostgresType(dataType, udtName, charMaxLength)
		if charMaxLength != nil {
			length := int64(*charMaxLength)
			col.MaxLength = &length
		}
		// integer types report a binary precision that is not part of their DDL
		if dataType == "numeric" {
			col.Precision, col.Scale = precision, scale
		}
		col.IsAutoIncrement = identity == "YES" ||
			(col.DefaultValue != nil && strings.HasPrefix(*col.DefaultValue, "nextval("))

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// extractConstraints returns the primary key and the unique and check constraints of a table
func (e *PostgresExtractor) extractConstraints(ctx context.Context, tableName string) (*schema.PrimaryKey, []schema.Constraint, error) {
	query := `
		SELECT
			con.conname,
			con.contype::text,
			pg_get_constraintdef(con.oid),
			COALESCE((
				SELECT array_agg(a.attname::text ORDER BY k.ord)
				FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
				JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
			), '{}')
		FROM pg_constraint con
		JOIN pg_class t ON t.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE n.nspname = $1
			AND t.relname = $2
			AND con.contype IN ('p', 'u', 'c')
		ORDER BY con.conname
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema, tableName)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var pk *schema.PrimaryKey
	var constraints []schema.Constraint
	for rows.Next() {
		var name, kind, definition string
		var columns []string
		if err := rows.Scan(&name, &kind, &definition, &columns); err != nil {
			return nil, nil, err
		}

		switch kind {
		case "p":
			pk = &schema.PrimaryKey{Name: name, Columns: columns}
		case "u":
			constraints = append(constraints, schema.Constraint{Name: name, Kind: schema.ConstraintUnique, Columns: columns})
		case "c":
			constraints = append(constraints, schema.Constraint{
				Name:       name,
				Kind:       schema.ConstraintCheck,
				Columns:    columns,
				Definition: strPtr(checkExpression(definition)),
			})
		}
	}

	return pk, constraints, rows.Err()
}

// checkExpression strips pg_get_constraintdef's "CHECK (...)" wrapper down to the expression
func checkExpression(def string) string {
	def = strings.TrimSpace(def)
	def = strings.TrimSuffix(def, " NOT VALID")
	if rest, ok := strings.CutPrefix(def, "CHECK "); ok {
		def = strings.TrimSpace(rest)
	}
	if strings.HasPrefix(def, "(") && strings.HasSuffix(def, ")") && balanced(def[1:len(def)-1]) {
		def = def[1 : len(def)-1]
	}
	return def
}

// balanced reports whether the parentheses in s pair up without going negative
func balanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// extractForeignKeys extracts foreign keys with their referential actions
func (e *PostgresExtractor) extractForeignKeys(ctx context.Context, tableName string) ([]schema.ForeignKey, error) {
	query := `
		SELECT
			con.conname,
			rn.nspname,
			rt.relname,
			con.confupdtype::text,
			con.confdeltype::text,
			(
				SELECT array_agg(a.attname::text ORDER BY k.ord)
				FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
				JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
			),
			(
				SELECT array_agg(a.attname::text ORDER BY k.ord)
				FROM unnest(con.confkey) WITH ORDINALITY AS k(attnum, ord)
				JOIN pg_attribute a ON a.attrelid = con.confrelid AND a.attnum = k.attnum
			)
		FROM pg_constraint con
		JOIN pg_class t ON t.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_class rt ON rt.oid = con.confrelid
		JOIN pg_namespace rn ON rn.oid = rt.relnamespace
		WHERE n.nspname = $1
			AND t.relname = $2
			AND con.contype = 'f'
		ORDER BY con.conname
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var foreignKeys []schema.ForeignKey
	for rows.Next() {
		var fk schema.ForeignKey
		var onUpdate, onDelete string
		if err := rows.Scan(&fk.Name, &fk.ReferencedSchema, &fk.ReferencedTable, &onUpdate, &onDelete,
			&fk.Columns, &fk.ReferencedColumns); err != nil {
			return nil, err
		}
		fk.OnUpdate = postgresAction(onUpdate)
		fk.OnDelete = postgresAction(onDelete)
		foreignKeys = append(foreignKeys, fk)
	}

	return foreignKeys, rows.Err()
}

// postgresAction decodes pg_constraint.confupdtype and confdeltype
func postgresAction(code string) schema.ForeignKeyAction {
	switch code {
	case "r":
		return schema.Restrict
	case "c":
		return schema.Cascade
	case "n":
		return schema.SetNull
	case "d":
		return schema.SetDefault
	default:
		return schema.NoAction
	}
}

// extractIndexes extracts indexes that do not back a primary key or unique constraint
func (e *PostgresExtractor) extractIndexes(ctx context.Context, tableName string) ([]schema.Index, error) {
	query := `
		SELECT
			i.relname AS index_name,
			ix.indisunique AS is_unique,
			am.amname,
			array_agg(a.attname::text ORDER BY array_position(ix.indkey, a.attnum)) AS column_names
		FROM pg_class t
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_am am ON am.oid = i.relam
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE t.relkind IN ('r', 'p')
			AND n.nspname = $1
			AND t.relname = $2
			AND NOT ix.indisprimary
			AND NOT EXISTS (
				SELECT 1 FROM pg_constraint con
				WHERE con.conindid = ix.indexrelid
					AND con.conrelid = t.oid
					AND con.contype IN ('p', 'u', 'x')
			)
		GROUP BY i.relname, ix.indisunique, am.amname
		ORDER BY i.relname
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []schema.Index
	for rows.Next() {
		var idx schema.Index
		if err := rows.Scan(&idx.Name, &idx.IsUnique, &idx.Type, &idx.Columns); err != nil {
			return nil, err
		}
		indexes = append(indexes, idx)
	}

	return indexes, rows.Err()
}
