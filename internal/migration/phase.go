package migration

import "slices"

// Phase groups statements by object kind
type Phase int

const (
	PhaseTypes Phase = iota
	PhaseSequences
	PhaseTables
	PhaseViews
	PhaseFunctions
	PhaseProcedures
	PhaseTriggers
)

// phaseOrder is the order the generator emits phases in. Types and sequences come
// first because columns may use them; triggers come last because they need their
// tables and functions.
var phaseOrder = []Phase{
	PhaseTypes,
	PhaseSequences,
	PhaseTables,
	PhaseViews,
	PhaseFunctions,
	PhaseProcedures,
	PhaseTriggers,
}

// Phases returns the emission order
func Phases() []Phase {
	return slices.Clone(phaseOrder)
}

func (p Phase) String() string {
	switch p {
	case PhaseTypes:
		return "types"
	case PhaseSequences:
		return "sequences"
	case PhaseTables:
		return "tables"
	case PhaseViews:
		return "views"
	case PhaseFunctions:
		return "functions"
	case PhaseProcedures:
		return "procedures"
	case PhaseTriggers:
		return "triggers"
	default:
		return "unknown"
	}
}
