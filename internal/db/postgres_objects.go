package db

import (
	"context"
	"strings"

	"github.com/tordrt/schemadiff/internal/schema"
)

// PostgreSQL 11 introduced procedures and pg_proc.prokind
const postgres11 = 110000

// extractViews extracts plain and materialized views
func (e *PostgresExtractor) extractViews(ctx context.Context) ([]schema.View, error) {
	query := `
		SELECT
			c.relname,
			c.relkind = 'm',
			pg_get_viewdef(c.oid, true),
			obj_description(c.oid, 'pg_class')
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relkind IN ('v', 'm')
		ORDER BY c.relname
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []schema.View
	for rows.Next() {
		v := schema.View{Schema: e.schema}
		var definition string
		if err := rows.Scan(&v.Name, &v.Materialized, &definition, &v.Comment); err != nil {
			return nil, err
		}
		v.Definition = nonEmpty(strings.TrimSuffix(strings.TrimSpace(definition), ";"))
		views = append(views, v)
	}

	return views, rows.Err()
}

// extractSequences extracts standalone and serial sequences. Identity sequences are
// owned by their column and left out.
func (e *PostgresExtractor) extractSequences(ctx context.Context) ([]schema.Sequence, error) {
	query := `
		SELECT
			c.relname,
			format_type(s.seqtypid, NULL),
			s.seqstart,
			s.seqincrement,
			s.seqmin,
			s.seqmax
		FROM pg_sequence s
		JOIN pg_class c ON c.oid = s.seqrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
			AND NOT EXISTS (
				SELECT 1 FROM pg_depend d
				WHERE d.objid = c.oid AND d.deptype = 'i'
			)
		ORDER BY c.relname
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sequences []schema.Sequence
	for rows.Next() {
		s := schema.Sequence{Schema: e.schema}
		if err := rows.Scan(&s.Name, &s.DataType, &s.Start, &s.Increment, &s.Min, &s.Max); err != nil {
			return nil, err
		}
		sequences = append(sequences, s)
	}

	return sequences, rows.Err()
}

// extractTypes extracts enum, domain and composite types
func (e *PostgresExtractor) extractTypes(ctx context.Context) ([]schema.Type, error) {
	enums, err := e.extractEnums(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			t.typname,
			t.typtype::text,
			CASE t.typtype
				WHEN 'd' THEN concat_ws(' ',
					format_type(t.typbasetype, t.typtypmod),
					CASE WHEN t.typnotnull THEN 'NOT NULL' END,
					'DEFAULT ' || t.typdefault,
					(SELECT string_agg(pg_get_constraintdef(con.oid), ' ' ORDER BY con.conname)
						FROM pg_constraint con WHERE con.contypid = t.oid))
				ELSE '(' || (
					SELECT string_agg(format('%I %s', a.attname, format_type(a.atttypid, a.atttypmod)), ', ' ORDER BY a.attnum)
					FROM pg_attribute a
					WHERE a.attrelid = t.typrelid AND a.attnum > 0 AND NOT a.attisdropped
				) || ')'
			END
		FROM pg_type t
		JOIN pg_namespace n ON n.oid = t.typnamespace
		LEFT JOIN pg_class c ON c.oid = t.typrelid
		WHERE n.nspname = $1
			AND (t.typtype = 'd' OR (t.typtype = 'c' AND c.relkind = 'c'))
		ORDER BY t.typname
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := enums
	for rows.Next() {
		t := schema.Type{Schema: e.schema}
		var kind string
		var definition *string
		if err := rows.Scan(&t.Name, &kind, &definition); err != nil {
			return nil, err
		}
		t.Kind = schema.TypeComposite
		if kind == "d" {
			t.Kind = schema.TypeDomain
		}
		t.Definition = definition
		types = append(types, t)
	}

	return types, rows.Err()
}

// extractEnums extracts every enum type of the schema with its labels in sort order
func (e *PostgresExtractor) extractEnums(ctx context.Context) ([]schema.Type, error) {
	query := `
		SELECT t.typname, e.enumlabel
		FROM pg_type t
		JOIN pg_enum e ON t.oid = e.enumtypid
		JOIN pg_namespace n ON t.typnamespace = n.oid
		WHERE n.nspname = $1
		ORDER BY t.typname, e.enumsortorder
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enums []schema.Type
	for rows.Next() {
		var typName, enumLabel string
		if err := rows.Scan(&typName, &enumLabel); err != nil {
			return nil, err
		}
		if len(enums) == 0 || enums[len(enums)-1].Name != typName {
			enums = append(enums, schema.Type{Schema: e.schema, Name: typName, Kind: schema.TypeEnum})
		}
		last := &enums[len(enums)-1]
		last.Values = append(last.Values, enumLabel)
	}

	return enums, rows.Err()
}

// extractRoutines extracts functions and procedures, skipping those owned by extensions.
// Overloads share a key, so only the first signature of each name is kept.
func (e *PostgresExtractor) extractRoutines(ctx context.Context) ([]schema.Function, []schema.Procedure, error) {
	version, err := e.client.ServerVersion(ctx)
	if err != nil {
		return nil, nil, err
	}

	kind := "p.prokind::text"
	filter := "p.prokind IN ('f', 'p')"
	if version < postgres11 {
		kind = "'f'"
		filter = "NOT p.proisagg AND NOT p.proiswindow"
	}

	query := `
		SELECT
			p.proname,
			` + kind + `,
			l.lanname,
			pg_get_function_identity_arguments(p.oid),
			COALESCE(pg_get_function_result(p.oid), ''),
			p.prosrc
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		JOIN pg_language l ON l.oid = p.prolang
		WHERE n.nspname = $1
			AND ` + filter + `
			AND NOT EXISTS (
				SELECT 1 FROM pg_depend d
				WHERE d.objid = p.oid AND d.deptype = 'e'
			)
		ORDER BY p.proname, p.oid
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	seen := map[string]bool{}
	var functions []schema.Function
	var procedures []schema.Procedure
	for rows.Next() {
		var name, kind, language, arguments, result, source string
		if err := rows.Scan(&name, &kind, &language, &arguments, &result, &source); err != nil {
			return nil, nil, err
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		if kind == "p" {
			procedures = append(procedures, schema.Procedure{
				Schema: e.schema, Name: name, Language: language, Arguments: arguments, Definition: nonEmpty(source),
			})
			continue
		}
		functions = append(functions, schema.Function{
			Schema: e.schema, Name: name, Language: language, ReturnType: result, Arguments: arguments, Definition: nonEmpty(source),
		})
	}

	return functions, procedures, rows.Err()
}

// extractTriggers extracts user triggers on the requested tables
func (e *PostgresExtractor) extractTriggers(ctx context.Context, filter tableFilter) ([]schema.Trigger, error) {
	query := `
		SELECT
			t.tgname,
			c.relname,
			t.tgtype,
			t.tgenabled <> 'D',
			pg_get_triggerdef(t.oid, true)
		FROM pg_trigger t
		JOIN pg_class c ON c.oid = t.tgrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND NOT t.tgisinternal
		ORDER BY t.tgname
	`

	rows, err := e.client.GetConnection().Query(ctx, query, e.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triggers []schema.Trigger
	for rows.Next() {
		tr := schema.Trigger{Schema: e.schema}
		var tgtype int16
		var definition string
		if err := rows.Scan(&tr.Name, &tr.Table, &tgtype, &tr.Enabled, &definition); err != nil {
			return nil, err
		}
		if !filter.has(tr.Table) {
			continue
		}
		tr.Timing, tr.Events, tr.ForEach = decodeTriggerType(tgtype)
		tr.Definition = nonEmpty(triggerBody(definition))
		triggers = append(triggers, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return triggers, checkTriggerNames(triggers)
}

// pg_trigger.tgtype bits
const (
	tgTypeRow      = 1 << 0
	tgTypeBefore   = 1 << 1
	tgTypeInsert   = 1 << 2
	tgTypeDelete   = 1 << 3
	tgTypeUpdate   = 1 << 4
	tgTypeTruncate = 1 << 5
	tgTypeInstead  = 1 << 6
)

func decodeTriggerType(tgtype int16) (schema.TriggerTiming, []schema.TriggerEvent, schema.TriggerForEach) {
	timing := schema.TimingAfter
	switch {
	case tgtype&tgTypeInstead != 0:
		timing = schema.TimingInsteadOf
	case tgtype&tgTypeBefore != 0:
		timing = schema.TimingBefore
	}

	var events []schema.TriggerEvent
	if tgtype&tgTypeInsert != 0 {
		events = append(events, schema.EventInsert)
	}
	if tgtype&tgTypeUpdate != 0 {
		events = append(events, schema.EventUpdate)
	}
	if tgtype&tgTypeDelete != 0 {
		events = append(events, schema.EventDelete)
	}
	if tgtype&tgTypeTruncate != 0 {
		events = append(events, schema.EventTruncate)
	}

	forEach := schema.ForEachStatement
	if tgtype&tgTypeRow != 0 {
		forEach = schema.ForEachRow
	}
	return timing, events, forEach
}

// triggerBody returns what follows FOR EACH ROW|STATEMENT in a trigger definition:
// the optional WHEN clause and the EXECUTE call
func triggerBody(def string) string {
	for _, marker := range []string{" FOR EACH ROW ", " FOR EACH STATEMENT "} {
		if _, rest, ok := strings.Cut(def, marker); ok {
			return strings.TrimSpace(rest)
		}
	}
	if i := strings.Index(def, " EXECUTE "); i >= 0 {
		return strings.TrimSpace(def[i:])
	}
	return def
}
