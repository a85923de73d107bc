package schema

import (
	"fmt"
	"strings"
)

// Key identifies an object within its kind
type Key struct {
	Schema string
	Name   string
}

// String returns the dotted form of the key
func (k Key) String() string {
	if k.Schema == "" {
		return k.Name
	}
	return k.Schema + "." + k.Name
}

// Key returns the (schema, name) key of the table
func (t *Table) Key() Key { return Key{Schema: t.Schema, Name: t.Name} }

// QualifiedName returns schema.name, or name when no schema is set
func (t *Table) QualifiedName() string { return t.Key().String() }

// Column looks up a column by name
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// Key returns the (schema, name) key of the view
func (v *View) Key() Key { return Key{Schema: v.Schema, Name: v.Name} }

// Key returns the (schema, name) key of the function
func (f *Function) Key() Key { return Key{Schema: f.Schema, Name: f.Name} }

// Key returns the (schema, name) key of the procedure
func (p *Procedure) Key() Key { return Key{Schema: p.Schema, Name: p.Name} }

// Key returns the (schema, name) key of the trigger
func (t *Trigger) Key() Key { return Key{Schema: t.Schema, Name: t.Name} }

// Key returns the (schema, name) key of the sequence
func (s *Sequence) Key() Key { return Key{Schema: s.Schema, Name: s.Name} }

// Key returns the (schema, name) key of the type
func (t *Type) Key() Key { return Key{Schema: t.Schema, Name: t.Name} }

// ValidationError lists every problem found in a snapshot
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid snapshot: %s", strings.Join(e.Problems, "; "))
}

// Validate checks that every object has a name and that (schema, name) is unique
// within each kind. Columns must be uniquely named within their table.
func (s *Snapshot) Validate() error {
	v := &validator{}

	tables := make(map[Key]bool, len(s.Tables))
	for i := range s.Tables {
		t := &s.Tables[i]
		v.check("table", tables, t.Key())

		cols := make(map[Key]bool, len(t.Columns))
		for _, c := range t.Columns {
			v.check("column in table "+t.QualifiedName(), cols, Key{Name: c.Name})
		}
		idx := make(map[Key]bool, len(t.Indexes))
		for _, ix := range t.Indexes {
			v.check("index on table "+t.QualifiedName(), idx, Key{Name: ix.Name})
		}
		fks := make(map[Key]bool, len(t.ForeignKeys))
		for _, fk := range t.ForeignKeys {
			v.check("foreign key on table "+t.QualifiedName(), fks, Key{Name: fk.Name})
		}
		cons := make(map[Key]bool, len(t.Constraints))
		for _, c := range t.Constraints {
			v.check("constraint on table "+t.QualifiedName(), cons, Key{Name: c.Name})
		}
	}

	views := make(map[Key]bool, len(s.Views))
	for i := range s.Views {
		v.check("view", views, s.Views[i].Key())
	}
	funcs := make(map[Key]bool, len(s.Functions))
	for i := range s.Functions {
		v.check("function", funcs, s.Functions[i].Key())
	}
	procs := make(map[Key]bool, len(s.Procedures))
	for i := range s.Procedures {
		v.check("procedure", procs, s.Procedures[i].Key())
	}
	triggers := make(map[Key]bool, len(s.Triggers))
	for i := range s.Triggers {
		v.check("trigger", triggers, s.Triggers[i].Key())
	}
	seqs := make(map[Key]bool, len(s.Sequences))
	for i := range s.Sequences {
		v.check("sequence", seqs, s.Sequences[i].Key())
	}
	types := make(map[Key]bool, len(s.Types))
	for i := range s.Types {
		v.check("type", types, s.Types[i].Key())
	}

	if len(v.problems) > 0 {
		return &ValidationError{Problems: v.problems}
	}
	return nil
}

type validator struct {
	problems []string
}

func (v *validator) check(kind string, seen map[Key]bool, key Key) {
	if strings.TrimSpace(key.Name) == "" {
		v.problems = append(v.problems, fmt.Sprintf("%s with empty name", kind))
		return
	}
	if seen[key] {
		v.problems = append(v.problems, fmt.Sprintf("duplicate %s %s", kind, key))
		return
	}
	seen[key] = true
}
