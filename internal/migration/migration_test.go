package migration

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemadiff/internal/schema"
)

func TestStatementRender(t *testing.T) {
	tests := []struct {
		name       string
		stmt       Statement
		want       string
		executable bool
	}{
		{"reversible", reversible("DROP TABLE t"), "DROP TABLE t", true},
		{"best effort", bestEffort("CREATE VIEW v AS SELECT 1", "no definition"), "CREATE VIEW v AS SELECT 1", true},
		{"irreversible", irreversible("cannot undo"), "-- cannot undo", false},
		{"implied", implied("dropped with table t"), "-- dropped with table t", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.stmt.Render())
			assert.Equal(t, tt.executable, tt.stmt.Executable())
		})
	}
}

func TestJoinStatements(t *testing.T) {
	joined := joinStatements(reversible("A"), reversible("B"))
	assert.Equal(t, Statement{Outcome: Reversible, SQL: "A;\nB"}, joined)

	lossy := joinStatements(reversible("A"), bestEffort("", "lossy"))
	assert.Equal(t, BestEffort, lossy.Outcome)
	assert.Equal(t, "A", lossy.SQL)
	assert.Equal(t, "lossy", lossy.Note)

	blocked := joinStatements(reversible("A"), irreversible("first"), irreversible("second"))
	assert.Equal(t, Irreversible, blocked.Outcome)
	assert.Empty(t, blocked.SQL)
	assert.Equal(t, "-- first; second", blocked.Render())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "reversible", Reversible.String())
	assert.Equal(t, "best-effort", BestEffort.String())
	assert.Equal(t, "irreversible", Irreversible.String())
	assert.Equal(t, "implied", Implied.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}

func TestScripts(t *testing.T) {
	m := &Migration{
		UpSQL:   []string{"CREATE TABLE a ()", "CREATE TABLE b ()"},
		DownSQL: []string{"DROP TABLE a", "DROP TABLE b"},
	}
	assert.False(t, m.IsEmpty())
	assert.Equal(t, "CREATE TABLE a ();\n\nCREATE TABLE b ();", m.UpScript())
	assert.Equal(t, "DROP TABLE a;\n\nDROP TABLE b;", m.DownScript())

	empty := &Migration{}
	assert.True(t, empty.IsEmpty())
	assert.Empty(t, empty.DownScript())
}

func TestWarnings(t *testing.T) {
	m := &Migration{Steps: []Step{
		{Phase: PhaseTables, Object: "table a", Up: reversible("DROP TABLE a"), Down: bestEffort("CREATE TABLE a ()", "no columns")},
		{Phase: PhaseTypes, Object: "type s", Up: irreversible("cannot remove"), Down: reversible("ALTER TYPE s ADD VALUE 'x'")},
		{Phase: PhaseTables, Object: "index i", Up: reversible("CREATE INDEX i ON a (x)"), Down: implied("dropped with table a")},
	}}

	assert.Equal(t, []Warning{
		{Phase: PhaseTables, Object: "table a", Direction: DirectionDown, Outcome: BestEffort, Message: "no columns"},
		{Phase: PhaseTypes, Object: "type s", Direction: DirectionUp, Outcome: Irreversible, Message: "cannot remove"},
	}, m.Warnings())
}

func TestErrors(t *testing.T) {
	err := fmt.Errorf("failed to generate: %w", unsupported("constraint t.x", "constraint type %q", "exclusion"))
	assert.True(t, IsUnsupported(err))
	assert.False(t, IsInvalidElement(err))
	assert.False(t, IsEmptyDiff(err))
	assert.Contains(t, err.Error(), `UNSUPPORTED_OPERATION: constraint type "exclusion" (constraint t.x)`)

	var me *Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "constraint t.x", me.Object)

	bare := &Error{Code: ErrCodeEmptyDiff, Message: "nothing to do"}
	assert.Equal(t, "EMPTY_DIFF: nothing to do", bare.Error())
	assert.True(t, IsEmptyDiff(bare))
	assert.False(t, IsUnsupported(fmt.Errorf("plain")))
}

func TestConfigFor(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.UseIfExists)
	assert.False(t, cfg.UseCascade)
	assert.True(t, cfg.IncludeComments)
	assert.Equal(t, "postgresql", cfg.Dialect.String())
}

func TestColumnType(t *testing.T) {
	tests := []struct {
		name string
		col  schema.Column
		want string
	}{
		{"plain", schema.Column{Type: "text"}, "text"},
		{"length", schema.Column{Type: "varchar", MaxLength: int64Ptr(50)}, "varchar(50)"},
		{"max", schema.Column{Type: "nvarchar", MaxLength: int64Ptr(-1)}, "nvarchar(MAX)"},
		{"precision", schema.Column{Type: "numeric", Precision: intPtr(12), Scale: intPtr(4)}, "numeric(12, 4)"},
		{"precision only", schema.Column{Type: "float", Precision: intPtr(24)}, "float(24)"},
		{"already modified", schema.Column{Type: "varchar(10)", MaxLength: int64Ptr(20)}, "varchar(10)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, columnType(tt.col))
		})
	}
}
