package migration

import (
	"fmt"
	"strings"

	"github.com/tordrt/schemadiff/internal/dialect"
	"github.com/tordrt/schemadiff/internal/diff"
)

// Generator compiles diffs for a single configuration. It holds no state between calls.
type Generator struct {
	cfg Config
	d   dialect.Dialect
}

// NewGenerator creates a new generator
func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg, d: cfg.Dialect}
}

// Generate compiles sd using cfg
func Generate(sd *diff.SchemaDiff, cfg Config) (*Migration, error) {
	return NewGenerator(cfg).Generate(sd)
}

// Generate compiles sd into a migration. An empty diff yields an empty migration.
// The first error aborts generation and no partial migration is returned.
func (g *Generator) Generate(sd *diff.SchemaDiff) (*Migration, error) {
	if sd == nil || sd.IsEmpty() {
		return &Migration{}, nil
	}

	p := &plan{}
	for _, phase := range phaseOrder {
		p.phase = phase
		var err error
		switch phase {
		case PhaseTypes:
			err = g.types(p, sd)
		case PhaseSequences:
			err = g.sequences(p, sd)
		case PhaseTables:
			err = g.tables(p, sd)
		case PhaseViews:
			err = g.views(p, sd)
		case PhaseFunctions:
			err = g.functions(p, sd)
		case PhaseProcedures:
			err = g.procedures(p, sd)
		case PhaseTriggers:
			err = g.triggers(p, sd)
		}
		if err != nil {
			return nil, err
		}
	}

	m := &Migration{Steps: p.steps}
	for _, s := range p.steps {
		m.UpSQL = append(m.UpSQL, s.Up.Render())
		m.DownSQL = append(m.DownSQL, s.Down.Render())
	}
	return m, nil
}

// plan accumulates steps for the phase being emitted
type plan struct {
	phase Phase
	steps []Step
}

func (p *plan) add(object string, up, down Statement) {
	p.steps = append(p.steps, Step{Phase: p.phase, Object: object, Up: up, Down: down})
}

func (g *Generator) q(name string) string {
	return g.d.QuoteIdentifier(name)
}

func (g *Generator) qn(schemaName, name string) string {
	return g.d.QuoteQualified(schemaName, name)
}

func (g *Generator) list(names []string) string {
	return g.d.QuoteList(names)
}

func (g *Generator) literal(s string) string {
	return g.d.QuoteString(s)
}

func (g *Generator) ifExists() string {
	if g.cfg.UseIfExists && g.d.SupportsIfExists() {
		return "IF EXISTS "
	}
	return ""
}

func (g *Generator) cascade() string {
	if g.cfg.UseCascade && g.d.SupportsCascade() {
		return " CASCADE"
	}
	return ""
}

// unsupportedHere is the placeholder used when the dialect has no DDL for an operation
func (g *Generator) unsupportedHere(what string) Statement {
	return irreversible(fmt.Sprintf("%s: %s is not supported", dialectLabel(g.d), what))
}

func dialectLabel(d dialect.Dialect) string {
	switch d {
	case dialect.PostgreSQL:
		return "PostgreSQL"
	case dialect.MySQL:
		return "MySQL"
	case dialect.SQLite:
		return "SQLite"
	case dialect.MsSql:
		return "SQL Server"
	default:
		return d.String()
	}
}

func requireName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return invalidElement(kind, "%s has an empty name", kind)
	}
	return nil
}

func objectName(kind, schemaName, name string) string {
	if schemaName == "" {
		return kind + " " + name
	}
	return kind + " " + schemaName + "." + name
}

func deref(s *string, fallback string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return fallback
	}
	return *s
}
