// Package migration compiles a schema diff into ordered, dialect-specific DDL.
package migration

import (
	"strings"

	"github.com/tordrt/schemadiff/internal/dialect"
)

// Config controls how statements are rendered
type Config struct {
	Dialect         dialect.Dialect `yaml:"dialect"`
	UseIfExists     bool            `yaml:"use_if_exists"`
	UseCascade      bool            `yaml:"use_cascade"`
	IncludeComments bool            `yaml:"include_comments"`
}

// DefaultConfig returns the PostgreSQL configuration with IF EXISTS guards and comments enabled
func DefaultConfig() Config {
	return ConfigFor(dialect.PostgreSQL)
}

// ConfigFor returns the default configuration for the given dialect
func ConfigFor(d dialect.Dialect) Config {
	return Config{
		Dialect:         d,
		UseIfExists:     true,
		UseCascade:      false,
		IncludeComments: true,
	}
}

// Outcome classifies a statement by how faithfully it can be executed
type Outcome int

const (
	// Reversible is plain executable SQL
	Reversible Outcome = iota
	// BestEffort is executable SQL that is lossy or approximate
	BestEffort
	// Irreversible carries no SQL, only an explanation
	Irreversible
	// Implied carries no SQL because another statement in the same list covers it
	Implied
)

func (o Outcome) String() string {
	switch o {
	case Reversible:
		return "reversible"
	case BestEffort:
		return "best-effort"
	case Irreversible:
		return "irreversible"
	case Implied:
		return "implied"
	default:
		return "unknown"
	}
}

// Statement is one side of a migration step
type Statement struct {
	Outcome Outcome
	SQL     string
	Note    string
}

// Render returns the text placed in UpSQL or DownSQL
func (s Statement) Render() string {
	switch s.Outcome {
	case Irreversible, Implied:
		return "-- " + s.Note
	default:
		return s.SQL
	}
}

// Executable reports whether the statement carries SQL
func (s Statement) Executable() bool {
	return s.Outcome == Reversible || s.Outcome == BestEffort
}

func reversible(sql string) Statement {
	return Statement{Outcome: Reversible, SQL: sql}
}

func bestEffort(sql, caveat string) Statement {
	return Statement{Outcome: BestEffort, SQL: sql, Note: caveat}
}

func irreversible(note string) Statement {
	return Statement{Outcome: Irreversible, Note: note}
}

func implied(note string) Statement {
	return Statement{Outcome: Implied, Note: note}
}

// joinStatements combines statements into a single step side. The weakest outcome wins.
func joinStatements(stmts ...Statement) Statement {
	var sqls, notes []string
	outcome := Reversible
	for _, s := range stmts {
		if s.Outcome > outcome {
			outcome = s.Outcome
		}
		if s.Executable() && s.SQL != "" {
			sqls = append(sqls, s.SQL)
		}
		if s.Note != "" {
			notes = append(notes, s.Note)
		}
	}
	if outcome == Irreversible || outcome == Implied {
		return Statement{Outcome: outcome, Note: strings.Join(notes, "; ")}
	}
	return Statement{Outcome: outcome, SQL: strings.Join(sqls, ";\n"), Note: strings.Join(notes, "; ")}
}

// Step is one forward operation and its inverse
type Step struct {
	Phase  Phase
	Object string
	Up     Statement
	Down   Statement
}

// Migration is the compiled result. DownSQL[i] reverses UpSQL[i].
type Migration struct {
	UpSQL   []string
	DownSQL []string
	Steps   []Step
}

// IsEmpty reports whether the migration has no statements
func (m *Migration) IsEmpty() bool {
	return len(m.UpSQL) == 0 && len(m.DownSQL) == 0
}

// UpScript joins the forward statements into a single script
func (m *Migration) UpScript() string {
	return script(m.UpSQL)
}

// DownScript joins the reverse statements into a single script
func (m *Migration) DownScript() string {
	return script(m.DownSQL)
}

func script(stmts []string) string {
	if len(stmts) == 0 {
		return ""
	}
	return strings.Join(stmts, ";\n\n") + ";"
}

// Direction names the side of a step a warning refers to
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Warning flags a step side that is not plain reversible SQL
type Warning struct {
	Phase     Phase
	Object    string
	Direction Direction
	Outcome   Outcome
	Message   string
}

// Warnings lists every best-effort or irreversible statement, up before down per step
func (m *Migration) Warnings() []Warning {
	var out []Warning
	for _, s := range m.Steps {
		for _, side := range []struct {
			dir  Direction
			stmt Statement
		}{{DirectionUp, s.Up}, {DirectionDown, s.Down}} {
			if side.stmt.Outcome == BestEffort || side.stmt.Outcome == Irreversible {
				out = append(out, Warning{
					Phase:     s.Phase,
					Object:    s.Object,
					Direction: side.dir,
					Outcome:   side.stmt.Outcome,
					Message:   side.stmt.Note,
				})
			}
		}
	}
	return out
}
