package diff

// Options controls how two snapshots are compared. The zero value compares everything.
type Options struct {
	// CaseInsensitive folds object names and type text before matching
	CaseInsensitive bool `yaml:"case_insensitive"`

	IgnoreComments  bool `yaml:"ignore_comments"`
	SkipIndexes     bool `yaml:"skip_indexes"`
	SkipForeignKeys bool `yaml:"skip_foreign_keys"`
	SkipConstraints bool `yaml:"skip_constraints"`
	SkipTriggers    bool `yaml:"skip_triggers"`

	// DefaultSchema is assumed for objects whose schema is empty
	DefaultSchema string `yaml:"default_schema"`

	// Renames pairs objects that would otherwise show up as a drop and an add
	Renames []Rename `yaml:"renames"`
}

// RenameKind is the object kind a rename hint applies to
type RenameKind string

const (
	RenameTable  RenameKind = "table"
	RenameColumn RenameKind = "column"
)

// Rename is an explicit hint that From in the before snapshot became To in the after snapshot.
// For column hints Table names the table as it appears in the after snapshot.
type Rename struct {
	Kind   RenameKind `yaml:"kind"`
	Schema string     `yaml:"schema,omitempty"`
	Table  string     `yaml:"table,omitempty"`
	From   string     `yaml:"from"`
	To     string     `yaml:"to"`
}
