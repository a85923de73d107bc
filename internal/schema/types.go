package schema

import "strings"

// Snapshot represents the complete structure of a database at one point in time
type Snapshot struct {
	Tables     []Table     `yaml:"tables,omitempty"`
	Views      []View      `yaml:"views,omitempty"`
	Functions  []Function  `yaml:"functions,omitempty"`
	Procedures []Procedure `yaml:"procedures,omitempty"`
	Triggers   []Trigger   `yaml:"triggers,omitempty"`
	Sequences  []Sequence  `yaml:"sequences,omitempty"`
	Types      []Type      `yaml:"types,omitempty"`
}

// TableKind distinguishes base tables from views and catalog tables
type TableKind string

const (
	TableKindTable  TableKind = "table"
	TableKindView   TableKind = "view"
	TableKindSystem TableKind = "system"
)

// Table represents a database table
type Table struct {
	Schema      string       `yaml:"schema,omitempty"`
	Name        string       `yaml:"name"`
	Kind        TableKind    `yaml:"kind,omitempty"`
	RowCount    *int64       `yaml:"row_count,omitempty"`
	SizeBytes   *int64       `yaml:"size_bytes,omitempty"`
	Comment     *string      `yaml:"comment,omitempty"`
	Columns     []Column     `yaml:"columns,omitempty"`
	PrimaryKey  *PrimaryKey  `yaml:"primary_key,omitempty"`
	Indexes     []Index      `yaml:"indexes,omitempty"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys,omitempty"`
	Constraints []Constraint `yaml:"constraints,omitempty"`
}

// Column represents a table column
type Column struct {
	Name            string  `yaml:"name"`
	Ordinal         int     `yaml:"ordinal"`
	Type            string  `yaml:"type"`
	Nullable        bool    `yaml:"nullable"`
	DefaultValue    *string `yaml:"default,omitempty"`
	MaxLength       *int64  `yaml:"max_length,omitempty"`
	Precision       *int    `yaml:"precision,omitempty"`
	Scale           *int    `yaml:"scale,omitempty"`
	IsPrimaryKey    bool    `yaml:"primary_key,omitempty"`
	IsAutoIncrement bool    `yaml:"auto_increment,omitempty"`
	IsUnique        bool    `yaml:"unique,omitempty"`
	Comment         *string `yaml:"comment,omitempty"`
}

// Index represents a database index
type Index struct {
	Name      string   `yaml:"name"`
	Columns   []string `yaml:"columns"`
	IsUnique  bool     `yaml:"unique,omitempty"`
	IsPrimary bool     `yaml:"primary,omitempty"`
	Type      string   `yaml:"type,omitempty"`
}

// ForeignKeyAction is the referential action taken on update or delete
type ForeignKeyAction string

const (
	NoAction   ForeignKeyAction = "no_action"
	Restrict   ForeignKeyAction = "restrict"
	Cascade    ForeignKeyAction = "cascade"
	SetNull    ForeignKeyAction = "set_null"
	SetDefault ForeignKeyAction = "set_default"
)

// SQL returns the keyword form used in DDL. The empty action is NO ACTION.
func (a ForeignKeyAction) SQL() string {
	switch a {
	case Restrict:
		return "RESTRICT"
	case Cascade:
		return "CASCADE"
	case SetNull:
		return "SET NULL"
	case SetDefault:
		return "SET DEFAULT"
	default:
		return "NO ACTION"
	}
}

// Normalize maps the empty action to NoAction so that both compare equal
func (a ForeignKeyAction) Normalize() ForeignKeyAction {
	if a == "" {
		return NoAction
	}
	return a
}

// ParseForeignKeyAction converts a catalog rule such as "SET NULL" into an action
func ParseForeignKeyAction(rule string) ForeignKeyAction {
	switch strings.ToUpper(strings.TrimSpace(rule)) {
	case "RESTRICT":
		return Restrict
	case "CASCADE":
		return Cascade
	case "SET NULL":
		return SetNull
	case "SET DEFAULT":
		return SetDefault
	default:
		return NoAction
	}
}

// ForeignKey represents a foreign key relationship
type ForeignKey struct {
	Name              string           `yaml:"name"`
	Columns           []string         `yaml:"columns"`
	ReferencedSchema  string           `yaml:"referenced_schema,omitempty"`
	ReferencedTable   string           `yaml:"referenced_table"`
	ReferencedColumns []string         `yaml:"referenced_columns"`
	OnUpdate          ForeignKeyAction `yaml:"on_update,omitempty"`
	OnDelete          ForeignKeyAction `yaml:"on_delete,omitempty"`
}

// PrimaryKey represents the primary key of a table
type PrimaryKey struct {
	Name    string   `yaml:"name,omitempty"`
	Columns []string `yaml:"columns"`
}

// ConstraintKind is the kind of a table constraint
type ConstraintKind string

const (
	ConstraintCheck  ConstraintKind = "check"
	ConstraintUnique ConstraintKind = "unique"
)

// Constraint represents a check or unique constraint
type Constraint struct {
	Name       string         `yaml:"name"`
	Kind       ConstraintKind `yaml:"kind"`
	Columns    []string       `yaml:"columns,omitempty"`
	Definition *string        `yaml:"definition,omitempty"`
}

// View represents a view or materialized view
type View struct {
	Schema       string  `yaml:"schema,omitempty"`
	Name         string  `yaml:"name"`
	Materialized bool    `yaml:"materialized,omitempty"`
	Definition   *string `yaml:"definition,omitempty"`
	Comment      *string `yaml:"comment,omitempty"`
}

// Function represents a stored function
type Function struct {
	Schema     string  `yaml:"schema,omitempty"`
	Name       string  `yaml:"name"`
	Language   string  `yaml:"language,omitempty"`
	ReturnType string  `yaml:"return_type,omitempty"`
	Arguments  string  `yaml:"arguments,omitempty"`
	Definition *string `yaml:"definition,omitempty"`
}

// Procedure represents a stored procedure
type Procedure struct {
	Schema     string  `yaml:"schema,omitempty"`
	Name       string  `yaml:"name"`
	Language   string  `yaml:"language,omitempty"`
	Arguments  string  `yaml:"arguments,omitempty"`
	Definition *string `yaml:"definition,omitempty"`
}

// TriggerTiming is when a trigger fires relative to its event
type TriggerTiming string

const (
	TimingBefore    TriggerTiming = "before"
	TimingAfter     TriggerTiming = "after"
	TimingInsteadOf TriggerTiming = "instead_of"
)

// SQL returns the keyword form of the timing
func (t TriggerTiming) SQL() string {
	switch t {
	case TimingBefore:
		return "BEFORE"
	case TimingInsteadOf:
		return "INSTEAD OF"
	default:
		return "AFTER"
	}
}

// TriggerEvent is a statement kind that fires a trigger
type TriggerEvent string

const (
	EventInsert   TriggerEvent = "insert"
	EventUpdate   TriggerEvent = "update"
	EventDelete   TriggerEvent = "delete"
	EventTruncate TriggerEvent = "truncate"
)

// SQL returns the keyword form of the event
func (e TriggerEvent) SQL() string {
	return strings.ToUpper(string(e))
}

// TriggerForEach is the trigger granularity
type TriggerForEach string

const (
	ForEachRow       TriggerForEach = "row"
	ForEachStatement TriggerForEach = "statement"
)

// Trigger represents a table trigger
type Trigger struct {
	Schema     string         `yaml:"schema,omitempty"`
	Name       string         `yaml:"name"`
	Table      string         `yaml:"table"`
	Timing     TriggerTiming  `yaml:"timing"`
	Events     []TriggerEvent `yaml:"events"`
	ForEach    TriggerForEach `yaml:"for_each,omitempty"`
	Enabled    bool           `yaml:"enabled"`
	Definition *string        `yaml:"definition,omitempty"`
}

// Sequence represents a sequence generator
type Sequence struct {
	Schema    string `yaml:"schema,omitempty"`
	Name      string `yaml:"name"`
	DataType  string `yaml:"data_type,omitempty"`
	Start     int64  `yaml:"start"`
	Increment int64  `yaml:"increment"`
	Min       int64  `yaml:"min"`
	Max       int64  `yaml:"max"`
}

// TypeKind is the kind of a user-defined type
type TypeKind string

const (
	TypeEnum      TypeKind = "enum"
	TypeComposite TypeKind = "composite"
	TypeDomain    TypeKind = "domain"
	TypeRange     TypeKind = "range"
	TypeBase      TypeKind = "base"
)

// Type represents a user-defined type
type Type struct {
	Schema     string   `yaml:"schema,omitempty"`
	Name       string   `yaml:"name"`
	Kind       TypeKind `yaml:"kind"`
	Values     []string `yaml:"values,omitempty"`
	Definition *string  `yaml:"definition,omitempty"`
}
