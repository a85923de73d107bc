package migration

import (
	"fmt"
	"strings"

	"github.com/tordrt/schemadiff/internal/dialect"
	"github.com/tordrt/schemadiff/internal/diff"
	"github.com/tordrt/schemadiff/internal/schema"
)

func (g *Generator) alterIndexes(p *plan, td *diff.TableDiff) error {
	s, t := td.Schema, td.Name

	for _, idx := range td.AddedIndexes {
		if err := requireName("index", idx.Name); err != nil {
			return err
		}
		if idx.IsPrimary {
			continue
		}
		p.add(objectName("index", s, idx.Name),
			reversible(g.createIndexSQL(s, t, idx)),
			reversible(g.dropIndexSQL(s, t, idx.Name)))
	}

	for _, id := range td.ModifiedIndexes {
		if err := requireName("index", id.Name); err != nil {
			return err
		}
		if id.Old.IsPrimary || id.New.IsPrimary {
			continue
		}
		p.add(objectName("index", s, id.Name),
			joinStatements(reversible(g.dropIndexSQL(s, t, id.Old.Name)), reversible(g.createIndexSQL(s, t, id.New))),
			joinStatements(reversible(g.dropIndexSQL(s, t, id.New.Name)), reversible(g.createIndexSQL(s, t, id.Old))))
	}

	for _, idx := range td.RemovedIndexes {
		if err := requireName("index", idx.Name); err != nil {
			return err
		}
		if idx.IsPrimary {
			continue
		}
		p.add(objectName("index", s, idx.Name),
			reversible(g.dropIndexSQL(s, t, idx.Name)),
			reversible(g.createIndexSQL(s, t, idx)))
	}
	return nil
}

func (g *Generator) createIndexSQL(s, t string, idx schema.Index) string {
	unique := ""
	if idx.IsUnique {
		unique = "UNIQUE "
	}

	switch g.d {
	case dialect.PostgreSQL:
		using := ""
		if idx.Type != "" && !strings.EqualFold(idx.Type, "btree") {
			using = " USING " + strings.ToLower(idx.Type)
		}
		return fmt.Sprintf("CREATE %sINDEX %s ON %s%s (%s)", unique, g.q(idx.Name), g.qn(s, t), using, g.list(idx.Columns))
	case dialect.SQLite:
		return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique, g.qn(s, idx.Name), g.q(t), g.list(idx.Columns))
	default:
		return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique, g.q(idx.Name), g.qn(s, t), g.list(idx.Columns))
	}
}

func (g *Generator) dropIndexSQL(s, t, name string) string {
	switch g.d {
	case dialect.MySQL:
		return fmt.Sprintf("DROP INDEX %s ON %s", g.q(name), g.qn(s, t))
	case dialect.MsSql:
		return fmt.Sprintf("DROP INDEX %s%s ON %s", g.ifExists(), g.q(name), g.qn(s, t))
	default:
		return fmt.Sprintf("DROP INDEX %s%s", g.ifExists(), g.qn(s, name))
	}
}

func (g *Generator) alterForeignKeys(p *plan, td *diff.TableDiff) error {
	s, t := td.Schema, td.Name

	for _, fk := range td.AddedForeignKeys {
		if err := requireName("foreign key", fk.Name); err != nil {
			return err
		}
		obj := objectName("foreign key", t, fk.Name)
		if g.d == dialect.SQLite {
			note := sqliteRebuild("adding foreign key "+fk.Name, t)
			p.add(obj, irreversible(note), irreversible(note))
			continue
		}
		p.add(obj, reversible(g.addForeignKeySQL(s, t, fk)), reversible(g.dropForeignKeySQL(s, t, fk.Name)))
	}

	for _, fd := range td.ModifiedForeignKeys {
		if err := requireName("foreign key", fd.Name); err != nil {
			return err
		}
		obj := objectName("foreign key", t, fd.Name)
		if g.d == dialect.SQLite {
			note := sqliteRebuild("changing foreign key "+fd.Name, t)
			p.add(obj, irreversible(note), irreversible(note))
			continue
		}
		if fd.From == nil || fd.To == nil {
			caveat := fmt.Sprintf("foreign key %s was only dropped; its definition was not available to re-add", fd.Name)
			drop := bestEffort(g.dropForeignKeySQL(s, t, fd.Name), caveat)
			p.add(obj, drop, drop)
			continue
		}
		p.add(obj,
			joinStatements(reversible(g.dropForeignKeySQL(s, t, fd.From.Name)), reversible(g.addForeignKeySQL(s, t, *fd.To))),
			joinStatements(reversible(g.dropForeignKeySQL(s, t, fd.To.Name)), reversible(g.addForeignKeySQL(s, t, *fd.From))))
	}

	for _, fk := range td.RemovedForeignKeys {
		if err := requireName("foreign key", fk.Name); err != nil {
			return err
		}
		obj := objectName("foreign key", t, fk.Name)
		if g.d == dialect.SQLite {
			note := sqliteRebuild("dropping foreign key "+fk.Name, t)
			p.add(obj, irreversible(note), irreversible(note))
			continue
		}
		p.add(obj, reversible(g.dropForeignKeySQL(s, t, fk.Name)), reversible(g.addForeignKeySQL(s, t, fk)))
	}
	return nil
}

func (g *Generator) addForeignKeySQL(s, t string, fk schema.ForeignKey) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s", g.qn(s, t), g.foreignKeyClause(fk))
}

func (g *Generator) foreignKeyClause(fk schema.ForeignKey) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		g.q(fk.Name), g.list(fk.Columns), g.qn(fk.ReferencedSchema, fk.ReferencedTable), g.list(fk.ReferencedColumns))
	if action := g.referentialAction(fk.OnUpdate); action != "" {
		sb.WriteString(" ON UPDATE " + action)
	}
	if action := g.referentialAction(fk.OnDelete); action != "" {
		sb.WriteString(" ON DELETE " + action)
	}
	return sb.String()
}

// referentialAction returns "" for the default action so the clause is omitted
func (g *Generator) referentialAction(a schema.ForeignKeyAction) string {
	a = a.Normalize()
	if a == schema.NoAction || (a == schema.Restrict && g.d == dialect.MsSql) {
		return ""
	}
	return a.SQL()
}

func (g *Generator) dropForeignKeySQL(s, t, name string) string {
	if g.d == dialect.MySQL {
		return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", g.qn(s, t), g.q(name))
	}
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s%s", g.qn(s, t), g.ifExists(), g.q(name))
}

func (g *Generator) alterConstraints(p *plan, td *diff.TableDiff) error {
	s, t := td.Schema, td.Name

	for _, c := range td.AddedConstraints {
		if err := requireName("constraint", c.Name); err != nil {
			return err
		}
		up, err := g.addConstraint(s, t, c)
		if err != nil {
			return err
		}
		down, err := g.dropConstraint(s, t, c)
		if err != nil {
			return err
		}
		p.add(objectName("constraint", t, c.Name), up, down)
	}

	for _, cd := range td.ModifiedConstraints {
		if err := requireName("constraint", cd.Name); err != nil {
			return err
		}
		addNew, err := g.addConstraint(s, t, cd.New)
		if err != nil {
			return err
		}
		addOld, err := g.addConstraint(s, t, cd.Old)
		if err != nil {
			return err
		}
		dropOld, err := g.dropConstraint(s, t, cd.Old)
		if err != nil {
			return err
		}
		dropNew, err := g.dropConstraint(s, t, cd.New)
		if err != nil {
			return err
		}
		p.add(objectName("constraint", t, cd.Name), joinStatements(dropOld, addNew), joinStatements(dropNew, addOld))
	}

	for _, c := range td.RemovedConstraints {
		if err := requireName("constraint", c.Name); err != nil {
			return err
		}
		up, err := g.dropConstraint(s, t, c)
		if err != nil {
			return err
		}
		down, err := g.addConstraint(s, t, c)
		if err != nil {
			return err
		}
		p.add(objectName("constraint", t, c.Name), up, down)
	}
	return nil
}

func (g *Generator) constraintClause(table string, c schema.Constraint) (string, error) {
	switch c.Kind {
	case schema.ConstraintCheck:
		return fmt.Sprintf("CONSTRAINT %s CHECK (%s)", g.q(c.Name), deref(c.Definition, "1 = 1")), nil
	case schema.ConstraintUnique:
		return fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", g.q(c.Name), g.list(c.Columns)), nil
	default:
		return "", unsupported(objectName("constraint", table, c.Name), "constraint type %q", c.Kind)
	}
}

func (g *Generator) addConstraint(s, t string, c schema.Constraint) (Statement, error) {
	clause, err := g.constraintClause(t, c)
	if err != nil {
		return Statement{}, err
	}
	if g.d == dialect.SQLite {
		return irreversible(sqliteRebuild("adding constraint "+c.Name, t)), nil
	}
	return reversible(fmt.Sprintf("ALTER TABLE %s ADD %s", g.qn(s, t), clause)), nil
}

func (g *Generator) dropConstraint(s, t string, c schema.Constraint) (Statement, error) {
	if _, err := g.constraintClause(t, c); err != nil {
		return Statement{}, err
	}

	switch g.d {
	case dialect.SQLite:
		return irreversible(sqliteRebuild("dropping constraint "+c.Name, t)), nil
	case dialect.MySQL:
		if c.Kind == schema.ConstraintUnique {
			return reversible(fmt.Sprintf("ALTER TABLE %s DROP INDEX %s", g.qn(s, t), g.q(c.Name))), nil
		}
		return reversible(fmt.Sprintf("ALTER TABLE %s DROP CHECK %s", g.qn(s, t), g.q(c.Name))), nil
	default:
		return reversible(fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s%s", g.qn(s, t), g.ifExists(), g.q(c.Name))), nil
	}
}

func (g *Generator) alterPrimaryKey(p *plan, td *diff.TableDiff) {
	pc := td.PrimaryKey
	if pc == nil {
		return
	}
	s, t := td.Schema, td.Name
	obj := objectName("primary key", "", t)

	switch pc.Kind {
	case diff.PrimaryKeyAdded:
		p.add(obj, g.addPrimaryKey(s, t, pc.New), g.dropPrimaryKey(s, t, pc.New))
	case diff.PrimaryKeyRemoved:
		p.add(obj, g.dropPrimaryKey(s, t, pc.Old), g.addPrimaryKey(s, t, pc.Old))
	case diff.PrimaryKeyModified:
		p.add(obj,
			joinStatements(g.dropPrimaryKey(s, t, pc.Old), g.addPrimaryKey(s, t, pc.New)),
			joinStatements(g.dropPrimaryKey(s, t, pc.New), g.addPrimaryKey(s, t, pc.Old)))
	}
}

func (g *Generator) primaryKeyClause(pk *schema.PrimaryKey) string {
	if pk.Name != "" {
		return fmt.Sprintf("CONSTRAINT %s PRIMARY KEY (%s)", g.q(pk.Name), g.list(pk.Columns))
	}
	return fmt.Sprintf("PRIMARY KEY (%s)", g.list(pk.Columns))
}

func (g *Generator) addPrimaryKey(s, t string, pk *schema.PrimaryKey) Statement {
	if g.d == dialect.SQLite {
		return irreversible(sqliteRebuild("adding a primary key", t))
	}
	return reversible(fmt.Sprintf("ALTER TABLE %s ADD %s", g.qn(s, t), g.primaryKeyClause(pk)))
}

func (g *Generator) dropPrimaryKey(s, t string, pk *schema.PrimaryKey) Statement {
	switch g.d {
	case dialect.PostgreSQL:
		name := pk.Name
		if name == "" {
			name = t + "_pkey"
		}
		return reversible(fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s%s", g.qn(s, t), g.ifExists(), g.q(name)))
	case dialect.MySQL:
		return reversible(fmt.Sprintf("ALTER TABLE %s DROP PRIMARY KEY", g.qn(s, t)))
	case dialect.MsSql:
		if pk.Name == "" {
			return irreversible(fmt.Sprintf("SQL Server: dropping the primary key of %s requires its constraint name", t))
		}
		return reversible(fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s%s", g.qn(s, t), g.ifExists(), g.q(pk.Name)))
	default:
		return irreversible(sqliteRebuild("dropping the primary key", t))
	}
}

func sqliteRebuild(what, table string) string {
	return fmt.Sprintf("SQLite: %s requires rebuilding table %s", what, table)
}
