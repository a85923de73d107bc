package migration

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tordrt/schemadiff/internal/dialect"
	"github.com/tordrt/schemadiff/internal/diff"
	"github.com/tordrt/schemadiff/internal/schema"
)

func (g *Generator) views(p *plan, sd *diff.SchemaDiff) error {
	for i := range sd.AddedViews {
		v := &sd.AddedViews[i]
		if err := requireName("view", v.Name); err != nil {
			return err
		}
		obj := objectName("view", v.Schema, v.Name)
		p.add(obj, g.createView(v), reversible(g.dropViewSQL(v)))
		if g.cfg.IncludeComments && v.Comment != nil {
			p.add(objectName("comment on view", v.Schema, v.Name), g.viewComment(v, v.Comment), implied("dropped with view "+v.Name))
		}
	}

	for i := range sd.ModifiedViews {
		vd := &sd.ModifiedViews[i]
		if err := requireName("view", vd.Name); err != nil {
			return err
		}
		if vd.From == nil || vd.To == nil {
			return invalidElement(objectName("view", vd.Schema, vd.Name), "view change is missing its before and after images")
		}
		obj := objectName("view", vd.Schema, vd.Name)
		if vd.Definition != nil || vd.Materialized != nil {
			p.add(obj, g.replaceView(vd.From, vd.To), g.replaceView(vd.To, vd.From))
		}
		if vd.Comment != nil && g.cfg.IncludeComments {
			p.add(objectName("comment on view", vd.Schema, vd.Name), g.viewComment(vd.To, vd.Comment.New), g.viewComment(vd.To, vd.Comment.Old))
		}
	}

	for i := range sd.RemovedViews {
		v := &sd.RemovedViews[i]
		if err := requireName("view", v.Name); err != nil {
			return err
		}
		p.add(objectName("view", v.Schema, v.Name), reversible(g.dropViewSQL(v)), g.createView(v))
	}
	return nil
}

func (g *Generator) createView(v *schema.View) Statement {
	def := deref(v.Definition, "SELECT 1")
	name := g.qn(v.Schema, v.Name)

	var stmt Statement
	switch {
	case v.Materialized && g.d == dialect.PostgreSQL:
		stmt = reversible(fmt.Sprintf("CREATE MATERIALIZED VIEW %s AS %s", name, def))
	case v.Materialized:
		stmt = bestEffort(fmt.Sprintf("CREATE VIEW %s AS %s", name, def),
			fmt.Sprintf("%s has no materialized views; %s is created as a plain view", dialectLabel(g.d), v.Name))
	default:
		stmt = reversible(fmt.Sprintf("CREATE VIEW %s AS %s", name, def))
	}
	if v.Definition == nil || strings.TrimSpace(*v.Definition) == "" {
		return joinStatements(stmt, bestEffort("", fmt.Sprintf("view %s has no captured definition", v.Name)))
	}
	return stmt
}

func (g *Generator) dropViewSQL(v *schema.View) string {
	kind := "VIEW"
	if v.Materialized && g.d == dialect.PostgreSQL {
		kind = "MATERIALIZED VIEW"
	}
	return fmt.Sprintf("DROP %s %s%s%s", kind, g.ifExists(), g.qn(v.Schema, v.Name), g.cascade())
}

// replaceView moves a view from one definition to another in a single step
func (g *Generator) replaceView(from, to *schema.View) Statement {
	materialized := from.Materialized || to.Materialized
	if !materialized && g.d.SupportsCreateOrReplaceView() {
		return reversible(fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s", g.qn(to.Schema, to.Name), deref(to.Definition, "SELECT 1")))
	}
	return joinStatements(reversible(g.dropViewSQL(from)), g.createView(to))
}

func (g *Generator) viewComment(v *schema.View, comment *string) Statement {
	if g.d != dialect.PostgreSQL {
		return g.unsupportedHere("view comments")
	}
	kind := "VIEW"
	if v.Materialized {
		kind = "MATERIALIZED VIEW"
	}
	return reversible(fmt.Sprintf("COMMENT ON %s %s IS %s", kind, g.qn(v.Schema, v.Name), g.commentLiteral(comment)))
}

func (g *Generator) sequences(p *plan, sd *diff.SchemaDiff) error {
	supported := g.d == dialect.PostgreSQL || g.d == dialect.MsSql

	for i := range sd.AddedSequences {
		s := &sd.AddedSequences[i]
		if err := requireName("sequence", s.Name); err != nil {
			return err
		}
		obj := objectName("sequence", s.Schema, s.Name)
		if !supported {
			p.add(obj, g.unsupportedHere("sequences"), g.unsupportedHere("sequences"))
			continue
		}
		p.add(obj, reversible(g.createSequenceSQL(s)), reversible(g.dropSequenceSQL(s.Schema, s.Name)))
	}

	for i := range sd.ModifiedSequences {
		sq := &sd.ModifiedSequences[i]
		if err := requireName("sequence", sq.Name); err != nil {
			return err
		}
		obj := objectName("sequence", sq.Schema, sq.Name)
		if !supported {
			p.add(obj, g.unsupportedHere("sequences"), g.unsupportedHere("sequences"))
			continue
		}
		p.add(obj, g.alterSequence(sq, false), g.alterSequence(sq, true))
	}

	for i := range sd.RemovedSequences {
		s := &sd.RemovedSequences[i]
		if err := requireName("sequence", s.Name); err != nil {
			return err
		}
		obj := objectName("sequence", s.Schema, s.Name)
		if !supported {
			p.add(obj, g.unsupportedHere("sequences"), g.unsupportedHere("sequences"))
			continue
		}
		p.add(obj, reversible(g.dropSequenceSQL(s.Schema, s.Name)), reversible(g.createSequenceSQL(s)))
	}
	return nil
}

func (g *Generator) createSequenceSQL(s *schema.Sequence) string {
	as := ""
	if s.DataType != "" {
		as = " AS " + s.DataType
	}
	return fmt.Sprintf("CREATE SEQUENCE %s%s START WITH %d INCREMENT BY %d MINVALUE %d MAXVALUE %d",
		g.qn(s.Schema, s.Name), as, s.Start, s.Increment, s.Min, s.Max)
}

func (g *Generator) dropSequenceSQL(schemaName, name string) string {
	return fmt.Sprintf("DROP SEQUENCE %s%s%s", g.ifExists(), g.qn(schemaName, name), g.cascade())
}

// alterSequence composes only the changed clauses. reverse selects the old values.
func (g *Generator) alterSequence(sq *diff.SequenceDiff, reverse bool) Statement {
	pick := func(c *diff.Change[int64]) int64 {
		if reverse {
			return c.Old
		}
		return c.New
	}

	var clauses []string
	if sq.DataType != nil {
		if g.d == dialect.MsSql {
			return irreversible(fmt.Sprintf("SQL Server: changing the data type of sequence %s requires recreating it", sq.Name))
		}
		dataType := sq.DataType.New
		if reverse {
			dataType = sq.DataType.Old
		}
		clauses = append(clauses, "AS "+dataType)
	}
	if sq.Start != nil {
		clauses = append(clauses, fmt.Sprintf("RESTART WITH %d", pick(sq.Start)))
	}
	if sq.Increment != nil {
		clauses = append(clauses, fmt.Sprintf("INCREMENT BY %d", pick(sq.Increment)))
	}
	if sq.Min != nil {
		clauses = append(clauses, fmt.Sprintf("MINVALUE %d", pick(sq.Min)))
	}
	if sq.Max != nil {
		clauses = append(clauses, fmt.Sprintf("MAXVALUE %d", pick(sq.Max)))
	}

	stmt := fmt.Sprintf("ALTER SEQUENCE %s %s", g.qn(sq.Schema, sq.Name), strings.Join(clauses, " "))
	if sq.Start != nil {
		return bestEffort(stmt, fmt.Sprintf("sequence %s is restarted; its current value is not preserved", sq.Name))
	}
	return reversible(stmt)
}

func (g *Generator) types(p *plan, sd *diff.SchemaDiff) error {
	for i := range sd.AddedTypes {
		t := &sd.AddedTypes[i]
		if err := requireName("type", t.Name); err != nil {
			return err
		}
		p.add(objectName("type", t.Schema, t.Name), g.createType(t), g.dropType(t))
	}

	for i := range sd.ModifiedTypes {
		if err := g.alterType(p, &sd.ModifiedTypes[i]); err != nil {
			return err
		}
	}

	for i := range sd.RemovedTypes {
		t := &sd.RemovedTypes[i]
		if err := requireName("type", t.Name); err != nil {
			return err
		}
		p.add(objectName("type", t.Schema, t.Name), g.dropType(t), g.createType(t))
	}
	return nil
}

func (g *Generator) createType(t *schema.Type) Statement {
	name := g.qn(t.Schema, t.Name)

	switch g.d {
	case dialect.PostgreSQL:
		switch t.Kind {
		case schema.TypeEnum:
			values := make([]string, len(t.Values))
			for i, v := range t.Values {
				values[i] = g.literal(v)
			}
			return reversible(fmt.Sprintf("CREATE TYPE %s AS ENUM (%s)", name, strings.Join(values, ", ")))
		case schema.TypeDomain:
			return g.typeFromDefinition(t, fmt.Sprintf("CREATE DOMAIN %s AS ", name))
		default:
			return g.typeFromDefinition(t, fmt.Sprintf("CREATE TYPE %s AS ", name))
		}
	case dialect.MsSql:
		if t.Kind == schema.TypeEnum {
			return g.unsupportedHere("enum types")
		}
		return g.typeFromDefinition(t, fmt.Sprintf("CREATE TYPE %s FROM ", name))
	default:
		return g.unsupportedHere("user-defined types")
	}
}

func (g *Generator) typeFromDefinition(t *schema.Type, prefix string) Statement {
	if t.Definition == nil || strings.TrimSpace(*t.Definition) == "" {
		return irreversible(fmt.Sprintf("type %s has no captured definition", t.Name))
	}
	return reversible(prefix + *t.Definition)
}

func (g *Generator) dropType(t *schema.Type) Statement {
	switch g.d {
	case dialect.PostgreSQL:
		kind := "TYPE"
		if t.Kind == schema.TypeDomain {
			kind = "DOMAIN"
		}
		return reversible(fmt.Sprintf("DROP %s %s%s%s", kind, g.ifExists(), g.qn(t.Schema, t.Name), g.cascade()))
	case dialect.MsSql:
		if t.Kind == schema.TypeEnum {
			return g.unsupportedHere("enum types")
		}
		return reversible(fmt.Sprintf("DROP TYPE %s%s", g.ifExists(), g.qn(t.Schema, t.Name)))
	default:
		return g.unsupportedHere("user-defined types")
	}
}

func (g *Generator) alterType(p *plan, td *diff.TypeDiff) error {
	if err := requireName("type", td.Name); err != nil {
		return err
	}
	if td.From == nil || td.To == nil {
		return invalidElement(objectName("type", td.Schema, td.Name), "type change is missing its before and after images")
	}
	obj := objectName("type", td.Schema, td.Name)
	name := g.qn(td.Schema, td.Name)

	enum := td.Kind == nil && td.To.Kind == schema.TypeEnum
	if !enum || td.Definition != nil {
		p.add(obj,
			joinStatements(g.dropType(td.From), g.createType(td.To)),
			joinStatements(g.dropType(td.To), g.createType(td.From)))
		return nil
	}

	if g.d != dialect.PostgreSQL {
		p.add(obj, g.unsupportedHere("enum types"), g.unsupportedHere("enum types"))
		return nil
	}

	for _, v := range td.AddedValues() {
		p.add(obj,
			reversible(fmt.Sprintf("ALTER TYPE %s ADD VALUE %s%s", name, g.literal(v), g.enumPosition(td.Values.New, td.Values.Old, v))),
			irreversible(fmt.Sprintf("Cannot remove enum value '%s' directly in PostgreSQL; recreate type %s without it", v, td.Name)))
	}
	for _, v := range td.RemovedValues() {
		p.add(obj,
			irreversible(fmt.Sprintf("Cannot remove enum value '%s' directly in PostgreSQL; recreate type %s without it", v, td.Name)),
			reversible(fmt.Sprintf("ALTER TYPE %s ADD VALUE %s%s", name, g.literal(v), g.enumPosition(td.Values.Old, td.Values.New, v))))
	}
	if td.Values != nil && !sameRelativeOrder(td.Values.Old, td.Values.New) {
		p.add(obj,
			irreversible(fmt.Sprintf("Cannot reorder enum values in place in PostgreSQL; recreate type %s as (%s)", td.Name, strings.Join(td.Values.New, ", "))),
			irreversible(fmt.Sprintf("Cannot reorder enum values in place in PostgreSQL; recreate type %s as (%s)", td.Name, strings.Join(td.Values.Old, ", "))))
	}
	return nil
}

// sameRelativeOrder reports whether the values both lists share appear in the same order
func sameRelativeOrder(a, b []string) bool {
	common := func(xs, other []string) []string {
		in := make(map[string]bool, len(other))
		for _, o := range other {
			in[o] = true
		}
		var out []string
		for _, x := range xs {
			if in[x] {
				out = append(out, x)
			}
		}
		return out
	}
	return slices.Equal(common(a, b), common(b, a))
}

// enumPosition places v before the next value of target that already exists in existing
func (g *Generator) enumPosition(target, existing []string, v string) string {
	present := make(map[string]bool, len(existing))
	for _, e := range existing {
		present[e] = true
	}
	after := false
	for _, t := range target {
		if t == v {
			after = true
			continue
		}
		if after && present[t] {
			return " BEFORE " + g.literal(t)
		}
	}
	return ""
}
