package migration

import (
	"fmt"
	"strings"

	"github.com/tordrt/schemadiff/internal/dialect"
	"github.com/tordrt/schemadiff/internal/diff"
	"github.com/tordrt/schemadiff/internal/schema"
)

func (g *Generator) functions(p *plan, sd *diff.SchemaDiff) error {
	for i := range sd.AddedFunctions {
		f := &sd.AddedFunctions[i]
		if err := requireName("function", f.Name); err != nil {
			return err
		}
		p.add(objectName("function", f.Schema, f.Name), g.createFunction(f), g.dropFunction(f))
	}

	for i := range sd.ModifiedFunctions {
		fd := &sd.ModifiedFunctions[i]
		if err := requireName("function", fd.Name); err != nil {
			return err
		}
		if fd.From == nil || fd.To == nil {
			return invalidElement(objectName("function", fd.Schema, fd.Name), "function change is missing its before and after images")
		}
		signature := fd.ReturnType != nil || fd.Arguments != nil
		p.add(objectName("function", fd.Schema, fd.Name),
			g.replaceFunction(fd.From, fd.To, signature),
			g.replaceFunction(fd.To, fd.From, signature))
	}

	for i := range sd.RemovedFunctions {
		f := &sd.RemovedFunctions[i]
		if err := requireName("function", f.Name); err != nil {
			return err
		}
		p.add(objectName("function", f.Schema, f.Name), g.dropFunction(f), g.createFunction(f))
	}
	return nil
}

func (g *Generator) createFunction(f *schema.Function) Statement {
	name := g.qn(f.Schema, f.Name)
	returns := f.ReturnType
	if returns == "" {
		returns = "void"
	}
	body := deref(f.Definition, "")

	var sql string
	switch g.d {
	case dialect.PostgreSQL:
		sql = fmt.Sprintf("CREATE OR REPLACE FUNCTION %s(%s) RETURNS %s LANGUAGE %s AS %s",
			name, f.Arguments, returns, language(f.Language), dollarQuote(body))
	case dialect.MsSql:
		sql = fmt.Sprintf("CREATE OR ALTER FUNCTION %s(%s) RETURNS %s AS %s", name, f.Arguments, returns, body)
	case dialect.MySQL:
		sql = fmt.Sprintf("CREATE FUNCTION %s(%s) RETURNS %s %s", name, f.Arguments, returns, body)
	default:
		return g.unsupportedHere("stored functions")
	}
	return withBody(sql, body, "function", f.Name)
}

func (g *Generator) dropFunction(f *schema.Function) Statement {
	switch g.d {
	case dialect.PostgreSQL:
		return reversible(fmt.Sprintf("DROP FUNCTION %s%s(%s)%s", g.ifExists(), g.qn(f.Schema, f.Name), f.Arguments, g.cascade()))
	case dialect.MsSql, dialect.MySQL:
		return reversible(fmt.Sprintf("DROP FUNCTION %s%s", g.ifExists(), g.qn(f.Schema, f.Name)))
	default:
		return g.unsupportedHere("stored functions")
	}
}

// replaceFunction re-creates a function in place where the dialect allows it.
// A changed signature always drops the old function first.
func (g *Generator) replaceFunction(from, to *schema.Function, signature bool) Statement {
	switch g.d {
	case dialect.PostgreSQL:
		if signature {
			return joinStatements(g.dropFunction(from), g.createFunction(to))
		}
		return g.createFunction(to)
	case dialect.MsSql:
		return g.createFunction(to)
	case dialect.MySQL:
		return joinStatements(g.dropFunction(from), g.createFunction(to))
	default:
		return g.unsupportedHere("stored functions")
	}
}

func (g *Generator) procedures(p *plan, sd *diff.SchemaDiff) error {
	for i := range sd.AddedProcedures {
		pr := &sd.AddedProcedures[i]
		if err := requireName("procedure", pr.Name); err != nil {
			return err
		}
		p.add(objectName("procedure", pr.Schema, pr.Name), g.createProcedure(pr), g.dropProcedure(pr))
	}

	for i := range sd.ModifiedProcedures {
		pd := &sd.ModifiedProcedures[i]
		if err := requireName("procedure", pd.Name); err != nil {
			return err
		}
		if pd.From == nil || pd.To == nil {
			return invalidElement(objectName("procedure", pd.Schema, pd.Name), "procedure change is missing its before and after images")
		}
		signature := pd.Arguments != nil
		p.add(objectName("procedure", pd.Schema, pd.Name),
			g.replaceProcedure(pd.From, pd.To, signature),
			g.replaceProcedure(pd.To, pd.From, signature))
	}

	for i := range sd.RemovedProcedures {
		pr := &sd.RemovedProcedures[i]
		if err := requireName("procedure", pr.Name); err != nil {
			return err
		}
		p.add(objectName("procedure", pr.Schema, pr.Name), g.dropProcedure(pr), g.createProcedure(pr))
	}
	return nil
}

func (g *Generator) createProcedure(pr *schema.Procedure) Statement {
	name := g.qn(pr.Schema, pr.Name)
	body := deref(pr.Definition, "")

	var sql string
	switch g.d {
	case dialect.PostgreSQL:
		sql = fmt.Sprintf("CREATE OR REPLACE PROCEDURE %s(%s) LANGUAGE %s AS %s",
			name, pr.Arguments, language(pr.Language), dollarQuote(body))
	case dialect.MsSql:
		params := ""
		if pr.Arguments != "" {
			params = " " + pr.Arguments
		}
		sql = fmt.Sprintf("CREATE OR ALTER PROCEDURE %s%s AS %s", name, params, body)
	case dialect.MySQL:
		sql = fmt.Sprintf("CREATE PROCEDURE %s(%s) %s", name, pr.Arguments, body)
	default:
		return g.unsupportedHere("stored procedures")
	}
	return withBody(sql, body, "procedure", pr.Name)
}

func (g *Generator) dropProcedure(pr *schema.Procedure) Statement {
	switch g.d {
	case dialect.PostgreSQL:
		return reversible(fmt.Sprintf("DROP PROCEDURE %s%s(%s)%s", g.ifExists(), g.qn(pr.Schema, pr.Name), pr.Arguments, g.cascade()))
	case dialect.MsSql, dialect.MySQL:
		return reversible(fmt.Sprintf("DROP PROCEDURE %s%s", g.ifExists(), g.qn(pr.Schema, pr.Name)))
	default:
		return g.unsupportedHere("stored procedures")
	}
}

func (g *Generator) replaceProcedure(from, to *schema.Procedure, signature bool) Statement {
	switch g.d {
	case dialect.PostgreSQL:
		if signature {
			return joinStatements(g.dropProcedure(from), g.createProcedure(to))
		}
		return g.createProcedure(to)
	case dialect.MsSql:
		return g.createProcedure(to)
	case dialect.MySQL:
		return joinStatements(g.dropProcedure(from), g.createProcedure(to))
	default:
		return g.unsupportedHere("stored procedures")
	}
}

func language(lang string) string {
	if lang == "" {
		return "sql"
	}
	return strings.ToLower(lang)
}

// dollarQuote wraps a PostgreSQL routine body, picking a tag the body does not contain
func dollarQuote(body string) string {
	tag := "$$"
	if strings.Contains(body, tag) {
		tag = "$body$"
	}
	return tag + body + tag
}

func withBody(sql, body, kind, name string) Statement {
	if strings.TrimSpace(body) == "" {
		return bestEffort(sql, fmt.Sprintf("%s %s has no captured body", kind, name))
	}
	return reversible(sql)
}

func (g *Generator) triggers(p *plan, sd *diff.SchemaDiff) error {
	removedTables := make(map[schema.Key]bool, len(sd.RemovedTables))
	for _, t := range sd.RemovedTables {
		removedTables[schema.Key{Schema: t.Schema, Name: t.Name}] = true
	}

	for i := range sd.AddedTriggers {
		t := &sd.AddedTriggers[i]
		if err := requireName("trigger", t.Name); err != nil {
			return err
		}
		obj := objectName("trigger", t.Schema, t.Name)
		p.add(obj, g.createTrigger(t), g.dropTrigger(t))
		if !t.Enabled {
			p.add(obj, g.toggleTrigger(t, false), implied("dropped with trigger "+t.Name))
		}
	}

	for i := range sd.ModifiedTriggers {
		td := &sd.ModifiedTriggers[i]
		if err := requireName("trigger", td.Name); err != nil {
			return err
		}
		obj := objectName("trigger", td.Schema, td.Name)
		if td.From == nil || td.To == nil {
			return invalidElement(obj, "trigger change is missing its before and after images")
		}
		if td.OnlyEnabledChanged() {
			p.add(obj, g.toggleTrigger(td.To, td.To.Enabled), g.toggleTrigger(td.To, td.From.Enabled))
			continue
		}
		p.add(obj,
			joinStatements(g.dropTrigger(td.From), g.createTrigger(td.To)),
			joinStatements(g.dropTrigger(td.To), g.createTrigger(td.From)))
		if !td.To.Enabled {
			p.add(obj, g.toggleTrigger(td.To, false), implied("recreated by the previous step"))
		}
	}

	for i := range sd.RemovedTriggers {
		t := &sd.RemovedTriggers[i]
		if err := requireName("trigger", t.Name); err != nil {
			return err
		}
		up := g.dropTrigger(t)
		if removedTables[schema.Key{Schema: t.Schema, Name: t.Table}] {
			up = droppedWith(t.Schema, t.Table)
		}
		p.add(objectName("trigger", t.Schema, t.Name), up, g.createTrigger(t))
	}
	return nil
}

func (g *Generator) createTrigger(t *schema.Trigger) Statement {
	if t.Definition == nil || strings.TrimSpace(*t.Definition) == "" {
		return irreversible(fmt.Sprintf("trigger %s has no captured definition", t.Name))
	}
	body := *t.Definition
	events := make([]string, len(t.Events))
	for i, e := range t.Events {
		events[i] = e.SQL()
	}
	forEach := "ROW"
	if t.ForEach == schema.ForEachStatement {
		forEach = "STATEMENT"
	}

	switch g.d {
	case dialect.PostgreSQL:
		return reversible(fmt.Sprintf("CREATE TRIGGER %s %s %s ON %s FOR EACH %s %s",
			g.q(t.Name), t.Timing.SQL(), strings.Join(events, " OR "), g.qn(t.Schema, t.Table), forEach, body))
	case dialect.MsSql:
		if t.Timing == schema.TimingBefore {
			return g.unsupportedHere("BEFORE triggers")
		}
		return reversible(fmt.Sprintf("CREATE TRIGGER %s ON %s %s %s AS %s",
			g.qn(t.Schema, t.Name), g.qn(t.Schema, t.Table), t.Timing.SQL(), strings.Join(events, ", "), body))
	default:
		if len(events) != 1 {
			return irreversible(fmt.Sprintf("%s: trigger %s must fire on exactly one event; split it per event", dialectLabel(g.d), t.Name))
		}
		if g.d == dialect.MySQL && (t.ForEach == schema.ForEachStatement || t.Timing == schema.TimingInsteadOf) {
			return g.unsupportedHere("statement-level and INSTEAD OF triggers")
		}
		return reversible(fmt.Sprintf("CREATE TRIGGER %s %s %s ON %s FOR EACH ROW %s",
			g.qn(t.Schema, t.Name), t.Timing.SQL(), events[0], g.qn(t.Schema, t.Table), body))
	}
}

func (g *Generator) dropTrigger(t *schema.Trigger) Statement {
	if g.d == dialect.PostgreSQL {
		return reversible(fmt.Sprintf("DROP TRIGGER %s%s ON %s", g.ifExists(), g.q(t.Name), g.qn(t.Schema, t.Table)))
	}
	return reversible(fmt.Sprintf("DROP TRIGGER %s%s", g.ifExists(), g.qn(t.Schema, t.Name)))
}

func (g *Generator) toggleTrigger(t *schema.Trigger, enabled bool) Statement {
	verb := "DISABLE"
	if enabled {
		verb = "ENABLE"
	}
	switch g.d {
	case dialect.PostgreSQL:
		return reversible(fmt.Sprintf("ALTER TABLE %s %s TRIGGER %s", g.qn(t.Schema, t.Table), verb, g.q(t.Name)))
	case dialect.MsSql:
		return reversible(fmt.Sprintf("%s TRIGGER %s ON %s", verb, g.qn(t.Schema, t.Name), g.qn(t.Schema, t.Table)))
	default:
		return g.unsupportedHere("disabling triggers")
	}
}
