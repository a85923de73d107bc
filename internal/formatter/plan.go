// Package formatter renders migration plans as SQL scripts and review documents.
package formatter

import (
	"fmt"

	"github.com/tordrt/schemadiff/internal/dialect"
	"github.com/tordrt/schemadiff/internal/diff"
	"github.com/tordrt/schemadiff/internal/migration"
)

const (
	formatMarkdown = "markdown"
	formatText     = "text"
)

// Plan is a generated migration with the diff it was compiled from
type Plan struct {
	Dialect   dialect.Dialect
	Diff      *diff.SchemaDiff
	Migration *migration.Migration
}

// Formatter writes a plan in one output format
type Formatter interface {
	Format(p *Plan) error
}

func (p *Plan) changeCount() int {
	if p.Diff == nil {
		return 0
	}
	return p.Diff.ChangeCount()
}

func (p *Plan) stepCount() int {
	if p.Migration == nil {
		return 0
	}
	return len(p.Migration.Steps)
}

func (p *Plan) isEmpty() bool {
	return p.Migration == nil || p.Migration.IsEmpty()
}

func (p *Plan) warnings() []migration.Warning {
	if p.Migration == nil {
		return nil
	}
	return p.Migration.Warnings()
}

func (p *Plan) breaking() bool {
	return p.Diff != nil && p.Diff.HasBreakingChanges()
}

// describeWarning renders a warning as "table users (down, best-effort): message"
func describeWarning(w migration.Warning) string {
	return fmt.Sprintf("%s (%s, %s): %s", w.Object, w.Direction, w.Outcome, w.Message)
}

// countLine renders "2 changes, 3 steps"
func countLine(p *Plan) string {
	return fmt.Sprintf("%s, %s", plural(p.changeCount(), "change"), plural(p.stepCount(), "step"))
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
