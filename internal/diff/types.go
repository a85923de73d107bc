package diff

import (
	"github.com/tordrt/schemadiff/internal/schema"
)

// Change holds the before and after values of a single field.
// A nil *Change means the field did not change.
type Change[T any] struct {
	Old T
	New T
}

// SchemaDiff is the structural difference between two snapshots.
// Every slice is sorted by (schema, name).
type SchemaDiff struct {
	AddedTables    []schema.Table
	RemovedTables  []schema.Table
	ModifiedTables []TableDiff

	AddedViews    []schema.View
	RemovedViews  []schema.View
	ModifiedViews []ViewDiff

	AddedFunctions    []schema.Function
	RemovedFunctions  []schema.Function
	ModifiedFunctions []FunctionDiff

	AddedProcedures    []schema.Procedure
	RemovedProcedures  []schema.Procedure
	ModifiedProcedures []ProcedureDiff

	AddedTriggers    []schema.Trigger
	RemovedTriggers  []schema.Trigger
	ModifiedTriggers []TriggerDiff

	AddedSequences    []schema.Sequence
	RemovedSequences  []schema.Sequence
	ModifiedSequences []SequenceDiff

	AddedTypes    []schema.Type
	RemovedTypes  []schema.Type
	ModifiedTypes []TypeDiff
}

// TableDiff describes changes inside a table present on both sides.
// Schema and Name are the table's after-image identity.
type TableDiff struct {
	Schema  string
	Name    string
	Rename  *Change[string]
	Comment *Change[*string]

	AddedColumns    []schema.Column
	RemovedColumns  []schema.Column
	ModifiedColumns []ColumnDiff

	AddedIndexes    []schema.Index
	RemovedIndexes  []schema.Index
	ModifiedIndexes []IndexDiff

	AddedForeignKeys    []schema.ForeignKey
	RemovedForeignKeys  []schema.ForeignKey
	ModifiedForeignKeys []ForeignKeyDiff

	AddedConstraints    []schema.Constraint
	RemovedConstraints  []schema.Constraint
	ModifiedConstraints []ConstraintDiff

	PrimaryKey *PrimaryKeyChange
}

// QualifiedName returns schema.name of the after-image
func (t *TableDiff) QualifiedName() string {
	return schema.Key{Schema: t.Schema, Name: t.Name}.String()
}

// IsEmpty reports whether the table diff records no change at all
func (t *TableDiff) IsEmpty() bool {
	return t.Rename == nil && t.Comment == nil &&
		len(t.AddedColumns) == 0 && len(t.RemovedColumns) == 0 && len(t.ModifiedColumns) == 0 &&
		len(t.AddedIndexes) == 0 && len(t.RemovedIndexes) == 0 && len(t.ModifiedIndexes) == 0 &&
		len(t.AddedForeignKeys) == 0 && len(t.RemovedForeignKeys) == 0 && len(t.ModifiedForeignKeys) == 0 &&
		len(t.AddedConstraints) == 0 && len(t.RemovedConstraints) == 0 && len(t.ModifiedConstraints) == 0 &&
		t.PrimaryKey == nil
}

// ColumnDiff describes changes to a column present on both sides.
// From and To carry the full column images for dialects that restate a definition.
type ColumnDiff struct {
	Name      string
	Rename    *Change[string]
	Type      *Change[string]
	Nullable  *Change[bool]
	Default   *Change[*string]
	MaxLength *Change[*int64]
	Precision *Change[*int]
	Scale     *Change[*int]
	Comment   *Change[*string]

	From *schema.Column
	To   *schema.Column
}

// TypeChanged reports whether the type or any of its modifiers changed
func (c *ColumnDiff) TypeChanged() bool {
	return c.Type != nil || c.MaxLength != nil || c.Precision != nil || c.Scale != nil
}

// IndexDiff holds both images of a changed index
type IndexDiff struct {
	Name string
	Old  schema.Index
	New  schema.Index
}

// ForeignKeyDiff describes changes to a foreign key present on both sides
type ForeignKeyDiff struct {
	Name              string
	Columns           *Change[[]string]
	ReferencedSchema  *Change[string]
	ReferencedTable   *Change[string]
	ReferencedColumns *Change[[]string]
	OnUpdate          *Change[schema.ForeignKeyAction]
	OnDelete          *Change[schema.ForeignKeyAction]

	From *schema.ForeignKey
	To   *schema.ForeignKey
}

// ConstraintDiff holds both images of a changed constraint
type ConstraintDiff struct {
	Name string
	Old  schema.Constraint
	New  schema.Constraint
}

// PrimaryKeyChangeKind is the kind of primary key change
type PrimaryKeyChangeKind int

const (
	PrimaryKeyAdded PrimaryKeyChangeKind = iota
	PrimaryKeyRemoved
	PrimaryKeyModified
)

func (k PrimaryKeyChangeKind) String() string {
	switch k {
	case PrimaryKeyAdded:
		return "added"
	case PrimaryKeyRemoved:
		return "removed"
	default:
		return "modified"
	}
}

// PrimaryKeyChange records an added, removed or modified primary key.
// Old is nil for Added and New is nil for Removed.
type PrimaryKeyChange struct {
	Kind PrimaryKeyChangeKind
	Old  *schema.PrimaryKey
	New  *schema.PrimaryKey
}

// ViewDiff describes changes to a view present on both sides
type ViewDiff struct {
	Schema       string
	Name         string
	Definition   *Change[*string]
	Materialized *Change[bool]
	Comment      *Change[*string]

	From *schema.View
	To   *schema.View
}

// FunctionDiff describes changes to a function present on both sides
type FunctionDiff struct {
	Schema     string
	Name       string
	ReturnType *Change[string]
	Language   *Change[string]
	Arguments  *Change[string]
	Definition *Change[*string]

	From *schema.Function
	To   *schema.Function
}

// ProcedureDiff describes changes to a procedure present on both sides
type ProcedureDiff struct {
	Schema     string
	Name       string
	Language   *Change[string]
	Arguments  *Change[string]
	Definition *Change[*string]

	From *schema.Procedure
	To   *schema.Procedure
}

// TriggerDiff describes changes to a trigger present on both sides
type TriggerDiff struct {
	Schema     string
	Name       string
	Table      *Change[string]
	Definition *Change[*string]
	Enabled    *Change[bool]
	Timing     *Change[schema.TriggerTiming]
	Events     *Change[[]schema.TriggerEvent]
	ForEach    *Change[schema.TriggerForEach]

	From *schema.Trigger
	To   *schema.Trigger
}

// OnlyEnabledChanged reports whether the enabled flag is the sole change
func (t *TriggerDiff) OnlyEnabledChanged() bool {
	return t.Enabled != nil && t.Table == nil && t.Definition == nil &&
		t.Timing == nil && t.Events == nil && t.ForEach == nil
}

// SequenceDiff describes changes to a sequence present on both sides
type SequenceDiff struct {
	Schema    string
	Name      string
	DataType  *Change[string]
	Start     *Change[int64]
	Increment *Change[int64]
	Min       *Change[int64]
	Max       *Change[int64]
}

// TypeDiff describes changes to a user-defined type present on both sides
type TypeDiff struct {
	Schema     string
	Name       string
	Kind       *Change[schema.TypeKind]
	Values     *Change[[]string]
	Definition *Change[*string]

	From *schema.Type
	To   *schema.Type
}

// AddedValues returns enum values present only in the after-image, in after order
func (t *TypeDiff) AddedValues() []string {
	if t.Values == nil {
		return nil
	}
	return missingFrom(t.Values.New, t.Values.Old)
}

// RemovedValues returns enum values present only in the before-image, in before order
func (t *TypeDiff) RemovedValues() []string {
	if t.Values == nil {
		return nil
	}
	return missingFrom(t.Values.Old, t.Values.New)
}

func missingFrom(values, other []string) []string {
	seen := make(map[string]bool, len(other))
	for _, v := range other {
		seen[v] = true
	}
	var out []string
	for _, v := range values {
		if !seen[v] {
			out = append(out, v)
		}
	}
	return out
}
