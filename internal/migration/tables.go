package migration

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/tordrt/schemadiff/internal/dialect"
	"github.com/tordrt/schemadiff/internal/diff"
	"github.com/tordrt/schemadiff/internal/schema"
)

// tables emits added tables (with their foreign keys last), then modified, then removed.
// Removed tables are restored on the down side before their foreign keys.
func (g *Generator) tables(p *plan, sd *diff.SchemaDiff) error {
	for i := range sd.AddedTables {
		if err := g.createTable(p, &sd.AddedTables[i]); err != nil {
			return err
		}
	}

	// SQLite declares foreign keys inline in CREATE TABLE
	if g.d != dialect.SQLite {
		for i := range sd.AddedTables {
			t := &sd.AddedTables[i]
			for _, fk := range t.ForeignKeys {
				p.add(objectName("foreign key", t.Name, fk.Name),
					reversible(g.addForeignKeySQL(t.Schema, t.Name, fk)),
					droppedWith(t.Schema, t.Name))
			}
		}
	}

	for i := range sd.ModifiedTables {
		if err := g.alterTable(p, &sd.ModifiedTables[i]); err != nil {
			return err
		}
	}

	for i := range sd.RemovedTables {
		if err := g.dropTable(p, &sd.RemovedTables[i]); err != nil {
			return err
		}
	}

	// restored tables get their foreign keys once every one of them exists again
	if g.d != dialect.SQLite {
		for i := range sd.RemovedTables {
			t := &sd.RemovedTables[i]
			for _, fk := range t.ForeignKeys {
				p.add(objectName("foreign key", t.Name, fk.Name),
					droppedWith(t.Schema, t.Name),
					reversible(g.addForeignKeySQL(t.Schema, t.Name, fk)))
			}
		}
	}
	return nil
}

func droppedWith(schemaName, table string) Statement {
	return implied(fmt.Sprintf("dropped with table %s", schema.Key{Schema: schemaName, Name: table}))
}

func (g *Generator) createTable(p *plan, t *schema.Table) error {
	if err := validateTable(t); err != nil {
		return err
	}

	obj := objectName("table", t.Schema, t.Name)
	name := g.qn(t.Schema, t.Name)
	drop := reversible(g.dropTableSQL(t.Schema, t.Name))
	gone := droppedWith(t.Schema, t.Name)
	cols := sortedColumns(t.Columns)

	switch g.d {
	case dialect.SQLite:
		create, err := g.createTableSQL(t, true)
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			p.add(obj, bestEffort(create, "table has no columns"), drop)
		} else {
			p.add(obj, reversible(create), drop)
		}
		cols = nil
	case dialect.MySQL, dialect.MsSql:
		if len(cols) == 0 {
			p.add(obj, bestEffort(fmt.Sprintf("CREATE TABLE %s ()", name), "table has no columns"), drop)
		} else {
			p.add(obj, reversible(fmt.Sprintf("CREATE TABLE %s (%s)", name, g.columnDefinition(cols[0]))), drop)
			cols = cols[1:]
		}
	default:
		p.add(obj, reversible(fmt.Sprintf("CREATE TABLE %s ()", name)), drop)
	}

	for _, c := range cols {
		p.add(objectName("column", t.Name, c.Name), reversible(g.addColumnSQL(t.Schema, t.Name, c)), gone)
	}

	if g.d != dialect.SQLite {
		if t.PrimaryKey != nil {
			p.add(objectName("primary key", "", t.Name), g.addPrimaryKey(t.Schema, t.Name, t.PrimaryKey), gone)
		}
		for _, c := range t.Constraints {
			up, err := g.addConstraint(t.Schema, t.Name, c)
			if err != nil {
				return err
			}
			p.add(objectName("constraint", t.Name, c.Name), up, gone)
		}
	}

	for _, idx := range t.Indexes {
		if idx.IsPrimary {
			continue
		}
		p.add(objectName("index", t.Schema, idx.Name), reversible(g.createIndexSQL(t.Schema, t.Name, idx)), gone)
	}

	if g.cfg.IncludeComments {
		if t.Comment != nil {
			p.add(objectName("comment on table", t.Schema, t.Name), g.tableComment(t.Schema, t.Name, t.Comment), gone)
		}
		if g.d == dialect.PostgreSQL {
			for _, c := range sortedColumns(t.Columns) {
				if c.Comment != nil {
					p.add(objectName("comment on column", t.Name, c.Name),
						reversible(g.columnCommentSQL(t.Schema, t.Name, c.Name, c.Comment)), gone)
				}
			}
		}
	}
	return nil
}

func (g *Generator) dropTable(p *plan, t *schema.Table) error {
	if err := validateTable(t); err != nil {
		return err
	}

	create, err := g.createTableSQL(t, g.d == dialect.SQLite)
	if err != nil {
		return err
	}
	parts := []Statement{reversible(create)}
	for _, idx := range t.Indexes {
		if !idx.IsPrimary {
			parts = append(parts, reversible(g.createIndexSQL(t.Schema, t.Name, idx)))
		}
	}
	down := joinStatements(parts...)
	if len(t.Columns) == 0 {
		down = bestEffort(down.SQL, "no column definitions were captured for the dropped table")
	}

	p.add(objectName("table", t.Schema, t.Name), reversible(g.dropTableSQL(t.Schema, t.Name)), down)
	return nil
}

func (g *Generator) alterTable(p *plan, td *diff.TableDiff) error {
	if err := requireName("table", td.Name); err != nil {
		return err
	}
	s, t := td.Schema, td.Name

	if td.Rename != nil {
		if err := requireName("table", td.Rename.Old); err != nil {
			return err
		}
		p.add(objectName("table", s, t),
			reversible(g.renameTableSQL(s, td.Rename.Old, td.Rename.New)),
			reversible(g.renameTableSQL(s, td.Rename.New, td.Rename.Old)))
	}

	for i := range td.ModifiedColumns {
		cd := &td.ModifiedColumns[i]
		if cd.Rename == nil {
			continue
		}
		if err := requireName("column", cd.Rename.Old); err != nil {
			return err
		}
		p.add(objectName("column", t, cd.Name),
			reversible(g.renameColumnSQL(s, t, cd.Rename.Old, cd.Rename.New)),
			reversible(g.renameColumnSQL(s, t, cd.Rename.New, cd.Rename.Old)))
	}

	for _, c := range td.AddedColumns {
		if err := requireName("column", c.Name); err != nil {
			return err
		}
		p.add(objectName("column", t, c.Name),
			reversible(g.addColumnSQL(s, t, c)),
			reversible(g.dropColumnSQL(s, t, c.Name)))
	}

	for i := range td.ModifiedColumns {
		if err := g.alterColumn(p, s, t, &td.ModifiedColumns[i]); err != nil {
			return err
		}
	}

	for _, c := range td.RemovedColumns {
		if err := requireName("column", c.Name); err != nil {
			return err
		}
		p.add(objectName("column", t, c.Name),
			reversible(g.dropColumnSQL(s, t, c.Name)),
			reversible(g.addColumnSQL(s, t, c)))
	}

	if td.Comment != nil && g.cfg.IncludeComments {
		p.add(objectName("comment on table", s, t),
			g.tableComment(s, t, td.Comment.New),
			g.tableComment(s, t, td.Comment.Old))
	}

	if err := g.alterIndexes(p, td); err != nil {
		return err
	}
	if err := g.alterForeignKeys(p, td); err != nil {
		return err
	}
	if err := g.alterConstraints(p, td); err != nil {
		return err
	}
	g.alterPrimaryKey(p, td)
	return nil
}

func (g *Generator) alterColumn(p *plan, s, t string, cd *diff.ColumnDiff) error {
	if err := requireName("column", cd.Name); err != nil {
		return err
	}
	obj := objectName("column", t, cd.Name)
	table := g.qn(s, t)
	col := g.q(cd.Name)
	comment := cd.Comment != nil && g.cfg.IncludeComments

	switch g.d {
	case dialect.PostgreSQL:
		if cd.TypeChanged() {
			newType, oldType, err := changedTypes(cd)
			if err != nil {
				return err
			}
			p.add(obj,
				reversible(fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", table, col, newType)),
				reversible(fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", table, col, oldType)))
		}
		if cd.Nullable != nil {
			p.add(obj,
				reversible(fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s", table, col, nullability(cd.Nullable.New))),
				reversible(fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s", table, col, nullability(cd.Nullable.Old))))
		}
		if cd.Default != nil {
			p.add(obj,
				reversible(fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s", table, col, setDefault(cd.Default.New))),
				reversible(fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s", table, col, setDefault(cd.Default.Old))))
		}
		if comment {
			p.add(objectName("comment on column", t, cd.Name),
				reversible(g.columnCommentSQL(s, t, cd.Name, cd.Comment.New)),
				reversible(g.columnCommentSQL(s, t, cd.Name, cd.Comment.Old)))
		}

	case dialect.MySQL:
		if !cd.TypeChanged() && cd.Nullable == nil && cd.Default == nil && !comment {
			return nil
		}
		if cd.From == nil || cd.To == nil {
			return invalidElement(obj, "column change is missing its before and after images")
		}
		before := *cd.From
		before.Name = cd.To.Name
		p.add(obj,
			reversible(fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", table, g.columnDefinition(*cd.To))),
			reversible(fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", table, g.columnDefinition(before))))

	case dialect.MsSql:
		if cd.TypeChanged() || cd.Nullable != nil {
			if cd.From == nil || cd.To == nil {
				return invalidElement(obj, "column change is missing its before and after images")
			}
			p.add(obj,
				reversible(fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s %s", table, col, columnType(*cd.To), nullKeyword(cd.To.Nullable))),
				reversible(fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s %s", table, col, columnType(*cd.From), nullKeyword(cd.From.Nullable))))
		}
		if cd.Default != nil {
			p.add(obj, g.msSqlDefault(table, cd.Name, cd.Default.Old, cd.Default.New), g.msSqlDefault(table, cd.Name, cd.Default.New, cd.Default.Old))
		}
		if comment {
			p.add(objectName("comment on column", t, cd.Name), g.unsupportedHere("column comments"), g.unsupportedHere("column comments"))
		}

	case dialect.SQLite:
		if cd.TypeChanged() || cd.Nullable != nil || cd.Default != nil {
			note := fmt.Sprintf("SQLite: cannot alter column %s of table %s in place; rebuild the table", cd.Name, t)
			p.add(obj, irreversible(note), irreversible(note))
		}
		if comment {
			p.add(objectName("comment on column", t, cd.Name), g.unsupportedHere("column comments"), g.unsupportedHere("column comments"))
		}
	}
	return nil
}

// msSqlDefault moves a column default from old to new. SQL Server names default
// constraints, so only adding a default onto a column without one is expressible.
func (g *Generator) msSqlDefault(table, column string, old, new *string) Statement {
	if old == nil && new != nil {
		return reversible(fmt.Sprintf("ALTER TABLE %s ADD DEFAULT %s FOR %s", table, *new, g.q(column)))
	}
	return irreversible(fmt.Sprintf("SQL Server: drop the default constraint on column %s by name before changing it", column))
}

func changedTypes(cd *diff.ColumnDiff) (newType, oldType string, err error) {
	switch {
	case cd.From != nil && cd.To != nil:
		return columnType(*cd.To), columnType(*cd.From), nil
	case cd.Type != nil:
		return cd.Type.New, cd.Type.Old, nil
	default:
		return "", "", invalidElement("column "+cd.Name, "type modifier change is missing the column images")
	}
}

func nullability(nullable bool) string {
	if nullable {
		return "DROP NOT NULL"
	}
	return "SET NOT NULL"
}

func nullKeyword(nullable bool) string {
	if nullable {
		return "NULL"
	}
	return "NOT NULL"
}

func setDefault(v *string) string {
	if v == nil {
		return "DROP DEFAULT"
	}
	return "SET DEFAULT " + *v
}

func (g *Generator) tableComment(s, t string, comment *string) Statement {
	switch g.d {
	case dialect.PostgreSQL:
		return reversible(fmt.Sprintf("COMMENT ON TABLE %s IS %s", g.qn(s, t), g.commentLiteral(comment)))
	case dialect.MySQL:
		return reversible(fmt.Sprintf("ALTER TABLE %s COMMENT = %s", g.qn(s, t), g.literal(deref(comment, ""))))
	default:
		return g.unsupportedHere("table comments")
	}
}

func (g *Generator) columnCommentSQL(s, t, column string, comment *string) string {
	return fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s", g.qn(s, t), g.q(column), g.commentLiteral(comment))
}

func (g *Generator) commentLiteral(comment *string) string {
	if comment == nil {
		return "NULL"
	}
	return g.literal(*comment)
}

// createTableSQL renders a full CREATE TABLE. Foreign keys are inlined only when
// inlineForeignKeys is set; otherwise the caller adds them afterwards.
func (g *Generator) createTableSQL(t *schema.Table, inlineForeignKeys bool) (string, error) {
	var defs []string
	for _, c := range sortedColumns(t.Columns) {
		defs = append(defs, g.columnDefinition(c))
	}
	if t.PrimaryKey != nil {
		defs = append(defs, g.primaryKeyClause(t.PrimaryKey))
	}
	for _, c := range t.Constraints {
		clause, err := g.constraintClause(t.Name, c)
		if err != nil {
			return "", err
		}
		defs = append(defs, clause)
	}
	if inlineForeignKeys {
		for _, fk := range t.ForeignKeys {
			defs = append(defs, g.foreignKeyClause(fk))
		}
	}

	if len(defs) == 0 {
		return fmt.Sprintf("CREATE TABLE %s ()", g.qn(t.Schema, t.Name)), nil
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", g.qn(t.Schema, t.Name), strings.Join(defs, ",\n  ")), nil
}

func (g *Generator) dropTableSQL(s, t string) string {
	return fmt.Sprintf("DROP TABLE %s%s%s", g.ifExists(), g.qn(s, t), g.cascade())
}

func (g *Generator) renameTableSQL(s, from, to string) string {
	switch g.d {
	case dialect.MySQL:
		return fmt.Sprintf("RENAME TABLE %s TO %s", g.qn(s, from), g.qn(s, to))
	case dialect.MsSql:
		return fmt.Sprintf("EXEC sp_rename %s, %s", g.literal(schema.Key{Schema: s, Name: from}.String()), g.literal(to))
	default:
		return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", g.qn(s, from), g.q(to))
	}
}

func (g *Generator) renameColumnSQL(s, t, from, to string) string {
	if g.d == dialect.MsSql {
		return fmt.Sprintf("EXEC sp_rename %s, %s, 'COLUMN'", g.literal(schema.Key{Schema: s, Name: t}.String()+"."+from), g.literal(to))
	}
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", g.qn(s, t), g.q(from), g.q(to))
}

func (g *Generator) addColumnSQL(s, t string, c schema.Column) string {
	if g.d == dialect.MsSql {
		return fmt.Sprintf("ALTER TABLE %s ADD %s", g.qn(s, t), g.columnDefinition(c))
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", g.qn(s, t), g.columnDefinition(c))
}

func (g *Generator) dropColumnSQL(s, t, column string) string {
	ifExists := ""
	if g.d.SupportsDropColumnIfExists() {
		ifExists = g.ifExists()
	}
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s%s", g.qn(s, t), ifExists, g.q(column))
}

// columnDefinition renders "name type [NOT NULL] [DEFAULT x]"
func (g *Generator) columnDefinition(c schema.Column) string {
	var sb strings.Builder
	sb.WriteString(g.q(c.Name))
	sb.WriteString(" ")
	sb.WriteString(columnType(c))
	if !c.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if c.DefaultValue != nil {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(*c.DefaultValue)
	}
	if g.d == dialect.MySQL && g.cfg.IncludeComments && c.Comment != nil {
		sb.WriteString(" COMMENT ")
		sb.WriteString(g.literal(*c.Comment))
	}
	return sb.String()
}

// columnType appends length or precision unless the type text already carries modifiers
func columnType(c schema.Column) string {
	if strings.Contains(c.Type, "(") {
		return c.Type
	}
	switch {
	case c.MaxLength != nil && *c.MaxLength < 0:
		return c.Type + "(MAX)"
	case c.MaxLength != nil:
		return fmt.Sprintf("%s(%d)", c.Type, *c.MaxLength)
	case c.Precision != nil && c.Scale != nil:
		return fmt.Sprintf("%s(%d, %d)", c.Type, *c.Precision, *c.Scale)
	case c.Precision != nil:
		return fmt.Sprintf("%s(%d)", c.Type, *c.Precision)
	default:
		return c.Type
	}
}

func sortedColumns(cols []schema.Column) []schema.Column {
	out := slices.Clone(cols)
	slices.SortStableFunc(out, func(a, b schema.Column) int {
		return cmp.Compare(a.Ordinal, b.Ordinal)
	})
	return out
}

func validateTable(t *schema.Table) error {
	if err := requireName("table", t.Name); err != nil {
		return err
	}
	for _, c := range t.Columns {
		if err := requireName("column", c.Name); err != nil {
			return err
		}
	}
	for _, idx := range t.Indexes {
		if err := requireName("index", idx.Name); err != nil {
			return err
		}
	}
	for _, fk := range t.ForeignKeys {
		if err := requireName("foreign key", fk.Name); err != nil {
			return err
		}
	}
	for _, c := range t.Constraints {
		if err := requireName("constraint", c.Name); err != nil {
			return err
		}
	}
	return nil
}
