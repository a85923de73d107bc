package diff

import (
	"fmt"

	"github.com/tordrt/schemadiff/internal/schema"
)

// CheckKeys reports objects that are distinct in s but share a key once names are
// normalized by opts, such as Users and users with CaseInsensitive, or "" and public
// with DefaultSchema set to public. Compare can pair only one of them, so callers
// reject such snapshots before diffing.
func CheckKeys(s schema.Snapshot, opts Options) error {
	c := newComparer(opts)

	var problems []string
	problems = append(problems, collisions(c, "table", s.Tables, (*schema.Table).Key)...)
	problems = append(problems, collisions(c, "view", s.Views, (*schema.View).Key)...)
	problems = append(problems, collisions(c, "function", s.Functions, (*schema.Function).Key)...)
	problems = append(problems, collisions(c, "procedure", s.Procedures, (*schema.Procedure).Key)...)
	problems = append(problems, collisions(c, "trigger", s.Triggers, (*schema.Trigger).Key)...)
	problems = append(problems, collisions(c, "sequence", s.Sequences, (*schema.Sequence).Key)...)
	problems = append(problems, collisions(c, "type", s.Types, (*schema.Type).Key)...)

	for i := range s.Tables {
		t := &s.Tables[i]
		on := " in table " + t.QualifiedName()
		problems = append(problems, collisions(c, "column"+on, t.Columns, columnKey)...)
		problems = append(problems, collisions(c, "index"+on, t.Indexes, indexKey)...)
		problems = append(problems, collisions(c, "foreign key"+on, t.ForeignKeys, foreignKeyKey)...)
		problems = append(problems, collisions(c, "constraint"+on, t.Constraints, constraintKey)...)
	}

	if len(problems) > 0 {
		return &schema.ValidationError{Problems: problems}
	}
	return nil
}

func collisions[T any](c *comparer, kind string, items []T, keyOf func(*T) schema.Key) []string {
	var problems []string
	seen := make(map[schema.Key]schema.Key, len(items))
	for i := range items {
		k := keyOf(&items[i])
		nk := c.key(k)
		if prev, ok := seen[nk]; ok {
			if prev != k {
				problems = append(problems, fmt.Sprintf("%s %q collides with %q when matched", kind, k, prev))
			}
			continue
		}
		seen[nk] = k
	}
	return problems
}
