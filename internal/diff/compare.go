// Package diff computes the structural difference between two schema snapshots.
package diff

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/tordrt/schemadiff/internal/schema"
)

// Compare returns the difference that turns before into after.
// Matching is by (schema, name) for top-level objects and by name inside a table.
// Identical inputs always produce identical output.
func Compare(before, after schema.Snapshot, opts Options) SchemaDiff {
	c := newComparer(opts)

	var d SchemaDiff
	d.AddedTables, d.RemovedTables, d.ModifiedTables = compareKind(c, before.Tables, after.Tables,
		(*schema.Table).Key, c.tableAlias, c.compareTable)
	d.AddedViews, d.RemovedViews, d.ModifiedViews = compareKind(c, before.Views, after.Views,
		(*schema.View).Key, nil, c.compareView)
	d.AddedFunctions, d.RemovedFunctions, d.ModifiedFunctions = compareKind(c, before.Functions, after.Functions,
		(*schema.Function).Key, nil, c.compareFunction)
	d.AddedProcedures, d.RemovedProcedures, d.ModifiedProcedures = compareKind(c, before.Procedures, after.Procedures,
		(*schema.Procedure).Key, nil, c.compareProcedure)
	if !opts.SkipTriggers {
		d.AddedTriggers, d.RemovedTriggers, d.ModifiedTriggers = compareKind(c, before.Triggers, after.Triggers,
			(*schema.Trigger).Key, nil, c.compareTrigger)
	}
	d.AddedSequences, d.RemovedSequences, d.ModifiedSequences = compareKind(c, before.Sequences, after.Sequences,
		(*schema.Sequence).Key, nil, c.compareSequence)
	d.AddedTypes, d.RemovedTypes, d.ModifiedTypes = compareKind(c, before.Types, after.Types,
		(*schema.Type).Key, nil, c.compareType)

	return d
}

type comparer struct {
	opts          Options
	fold          cases.Caser
	tableRenames  map[schema.Key]schema.Key
	columnRenames map[schema.Key]map[schema.Key]schema.Key
}

func newComparer(opts Options) *comparer {
	c := &comparer{
		opts:          opts,
		fold:          cases.Fold(),
		tableRenames:  make(map[schema.Key]schema.Key),
		columnRenames: make(map[schema.Key]map[schema.Key]schema.Key),
	}

	for _, r := range opts.Renames {
		switch r.Kind {
		case RenameTable:
			c.tableRenames[c.key(schema.Key{Schema: r.Schema, Name: r.From})] = c.key(schema.Key{Schema: r.Schema, Name: r.To})
		case RenameColumn:
			tk := c.key(schema.Key{Schema: r.Schema, Name: r.Table})
			if c.columnRenames[tk] == nil {
				c.columnRenames[tk] = make(map[schema.Key]schema.Key)
			}
			c.columnRenames[tk][c.key(schema.Key{Name: r.From})] = c.key(schema.Key{Name: r.To})
		}
	}
	return c
}

// key normalizes a key for matching
func (c *comparer) key(k schema.Key) schema.Key {
	if k.Schema == "" {
		k.Schema = c.opts.DefaultSchema
	}
	k.Schema = c.text(k.Schema)
	k.Name = c.text(k.Name)
	return k
}

func (c *comparer) text(s string) string {
	if c.opts.CaseInsensitive {
		return c.fold.String(s)
	}
	return s
}

func (c *comparer) tableAlias(k schema.Key) schema.Key {
	if to, ok := c.tableRenames[k]; ok {
		return to
	}
	return k
}

func (c *comparer) columnAlias(table schema.Key) func(schema.Key) schema.Key {
	renames := c.columnRenames[c.key(table)]
	if len(renames) == 0 {
		return nil
	}
	return func(k schema.Key) schema.Key {
		if to, ok := renames[k]; ok {
			return to
		}
		return k
	}
}

type keyed[T any] struct {
	key   schema.Key
	value *T
}

type pair[T any] struct {
	key      schema.Key
	old, new *T
}

func compareKeys(a, b schema.Key) int {
	return cmp.Or(cmp.Compare(a.Schema, b.Schema), cmp.Compare(a.Name, b.Name))
}

// compareKind matches before and after by key and returns the sorted added, removed
// and modified sets. alias maps a before key to the key it is expected under after.
func compareKind[T any, D any](
	c *comparer,
	before, after []T,
	keyOf func(*T) schema.Key,
	alias func(schema.Key) schema.Key,
	diffFn func(old, new *T) (D, bool),
) (added, removed []T, modified []D) {
	afterByKey := make(map[schema.Key]*T, len(after))
	for i := range after {
		afterByKey[c.key(keyOf(&after[i]))] = &after[i]
	}

	matched := make(map[schema.Key]bool, len(before))
	var pairs []pair[T]
	var gone []keyed[T]
	for i := range before {
		k := c.key(keyOf(&before[i]))
		if alias != nil {
			k = alias(k)
		}
		if n, ok := afterByKey[k]; ok && !matched[k] {
			matched[k] = true
			pairs = append(pairs, pair[T]{key: k, old: &before[i], new: n})
			continue
		}
		gone = append(gone, keyed[T]{key: c.key(keyOf(&before[i])), value: &before[i]})
	}

	var fresh []keyed[T]
	for i := range after {
		k := c.key(keyOf(&after[i]))
		if !matched[k] {
			fresh = append(fresh, keyed[T]{key: k, value: &after[i]})
		}
	}

	byKey := func(a, b keyed[T]) int { return compareKeys(a.key, b.key) }
	slices.SortFunc(fresh, byKey)
	slices.SortFunc(gone, byKey)
	slices.SortFunc(pairs, func(a, b pair[T]) int { return compareKeys(a.key, b.key) })

	for _, f := range fresh {
		added = append(added, *f.value)
	}
	for _, g := range gone {
		removed = append(removed, *g.value)
	}
	for _, p := range pairs {
		if d, ok := diffFn(p.old, p.new); ok {
			modified = append(modified, d)
		}
	}
	return added, removed, modified
}

func (c *comparer) compareTable(old, new *schema.Table) (TableDiff, bool) {
	td := TableDiff{Schema: new.Schema, Name: new.Name}

	if old.Name != new.Name {
		td.Rename = &Change[string]{Old: old.Name, New: new.Name}
	}
	if !c.opts.IgnoreComments {
		td.Comment = textPtrChange(old.Comment, new.Comment)
	}

	td.AddedColumns, td.RemovedColumns, td.ModifiedColumns = compareKind(c, old.Columns, new.Columns,
		columnKey, c.columnAlias(new.Key()), c.compareColumn)

	if !c.opts.SkipIndexes {
		td.AddedIndexes, td.RemovedIndexes, td.ModifiedIndexes = compareKind(c, old.Indexes, new.Indexes,
			indexKey, nil, c.compareIndex)
	}
	if !c.opts.SkipForeignKeys {
		td.AddedForeignKeys, td.RemovedForeignKeys, td.ModifiedForeignKeys = compareKind(c, old.ForeignKeys, new.ForeignKeys,
			foreignKeyKey, nil, c.compareForeignKey)
	}
	if !c.opts.SkipConstraints {
		td.AddedConstraints, td.RemovedConstraints, td.ModifiedConstraints = compareKind(c, old.Constraints, new.Constraints,
			constraintKey, nil, c.compareConstraint)
	}

	td.PrimaryKey = c.comparePrimaryKey(old.PrimaryKey, new.PrimaryKey)

	return td, !td.IsEmpty()
}

func columnKey(col *schema.Column) schema.Key         { return schema.Key{Name: col.Name} }
func indexKey(idx *schema.Index) schema.Key           { return schema.Key{Name: idx.Name} }
func foreignKeyKey(fk *schema.ForeignKey) schema.Key  { return schema.Key{Name: fk.Name} }
func constraintKey(con *schema.Constraint) schema.Key { return schema.Key{Name: con.Name} }

func (c *comparer) compareColumn(old, new *schema.Column) (ColumnDiff, bool) {
	cd := ColumnDiff{Name: new.Name, From: old, To: new}

	if old.Name != new.Name {
		cd.Rename = &Change[string]{Old: old.Name, New: new.Name}
	}
	cd.Type = c.textChange(old.Type, new.Type)
	cd.Nullable = valueChange(old.Nullable, new.Nullable)
	cd.Default = ptrChange(old.DefaultValue, new.DefaultValue)
	cd.MaxLength = ptrChange(old.MaxLength, new.MaxLength)
	cd.Precision = ptrChange(old.Precision, new.Precision)
	cd.Scale = ptrChange(old.Scale, new.Scale)
	if !c.opts.IgnoreComments {
		cd.Comment = textPtrChange(old.Comment, new.Comment)
	}

	changed := cd.Rename != nil || cd.Type != nil || cd.Nullable != nil || cd.Default != nil ||
		cd.MaxLength != nil || cd.Precision != nil || cd.Scale != nil || cd.Comment != nil
	return cd, changed
}

func (c *comparer) compareIndex(old, new *schema.Index) (IndexDiff, bool) {
	same := c.namesEqual(old.Columns, new.Columns) &&
		old.IsUnique == new.IsUnique &&
		old.IsPrimary == new.IsPrimary &&
		(old.Type == "" || new.Type == "" || c.text(old.Type) == c.text(new.Type))
	return IndexDiff{Name: new.Name, Old: *old, New: *new}, !same
}

func (c *comparer) compareForeignKey(old, new *schema.ForeignKey) (ForeignKeyDiff, bool) {
	fd := ForeignKeyDiff{Name: new.Name, From: old, To: new}

	fd.Columns = c.namesChange(old.Columns, new.Columns)
	if c.key(schema.Key{Schema: old.ReferencedSchema}).Schema != c.key(schema.Key{Schema: new.ReferencedSchema}).Schema {
		fd.ReferencedSchema = &Change[string]{Old: old.ReferencedSchema, New: new.ReferencedSchema}
	}
	fd.ReferencedTable = c.textChange(old.ReferencedTable, new.ReferencedTable)
	fd.ReferencedColumns = c.namesChange(old.ReferencedColumns, new.ReferencedColumns)
	fd.OnUpdate = valueChange(old.OnUpdate.Normalize(), new.OnUpdate.Normalize())
	fd.OnDelete = valueChange(old.OnDelete.Normalize(), new.OnDelete.Normalize())

	changed := fd.Columns != nil || fd.ReferencedSchema != nil || fd.ReferencedTable != nil ||
		fd.ReferencedColumns != nil || fd.OnUpdate != nil || fd.OnDelete != nil
	return fd, changed
}

func (c *comparer) compareConstraint(old, new *schema.Constraint) (ConstraintDiff, bool) {
	same := c.text(string(old.Kind)) == c.text(string(new.Kind)) &&
		c.namesEqual(old.Columns, new.Columns) &&
		textPtrChange(old.Definition, new.Definition) == nil
	return ConstraintDiff{Name: new.Name, Old: *old, New: *new}, !same
}

func (c *comparer) comparePrimaryKey(old, new *schema.PrimaryKey) *PrimaryKeyChange {
	switch {
	case old == nil && new == nil:
		return nil
	case old == nil:
		return &PrimaryKeyChange{Kind: PrimaryKeyAdded, New: new}
	case new == nil:
		return &PrimaryKeyChange{Kind: PrimaryKeyRemoved, Old: old}
	case !c.namesEqual(old.Columns, new.Columns):
		return &PrimaryKeyChange{Kind: PrimaryKeyModified, Old: old, New: new}
	default:
		return nil
	}
}

func (c *comparer) compareView(old, new *schema.View) (ViewDiff, bool) {
	vd := ViewDiff{Schema: new.Schema, Name: new.Name, From: old, To: new}
	vd.Definition = textPtrChange(old.Definition, new.Definition)
	vd.Materialized = valueChange(old.Materialized, new.Materialized)
	if !c.opts.IgnoreComments {
		vd.Comment = textPtrChange(old.Comment, new.Comment)
	}
	return vd, vd.Definition != nil || vd.Materialized != nil || vd.Comment != nil
}

func (c *comparer) compareFunction(old, new *schema.Function) (FunctionDiff, bool) {
	fd := FunctionDiff{Schema: new.Schema, Name: new.Name, From: old, To: new}
	fd.ReturnType = c.textChange(old.ReturnType, new.ReturnType)
	fd.Language = c.textChange(old.Language, new.Language)
	fd.Arguments = c.textChange(old.Arguments, new.Arguments)
	fd.Definition = textPtrChange(old.Definition, new.Definition)
	return fd, fd.ReturnType != nil || fd.Language != nil || fd.Arguments != nil || fd.Definition != nil
}

func (c *comparer) compareProcedure(old, new *schema.Procedure) (ProcedureDiff, bool) {
	pd := ProcedureDiff{Schema: new.Schema, Name: new.Name, From: old, To: new}
	pd.Language = c.textChange(old.Language, new.Language)
	pd.Arguments = c.textChange(old.Arguments, new.Arguments)
	pd.Definition = textPtrChange(old.Definition, new.Definition)
	return pd, pd.Language != nil || pd.Arguments != nil || pd.Definition != nil
}

func (c *comparer) compareTrigger(old, new *schema.Trigger) (TriggerDiff, bool) {
	td := TriggerDiff{Schema: new.Schema, Name: new.Name, From: old, To: new}
	td.Table = c.textChange(old.Table, new.Table)
	td.Definition = textPtrChange(old.Definition, new.Definition)
	td.Enabled = valueChange(old.Enabled, new.Enabled)
	td.Timing = valueChange(old.Timing, new.Timing)
	td.ForEach = valueChange(old.ForEach, new.ForEach)
	if !slices.Equal(sortedEvents(old.Events), sortedEvents(new.Events)) {
		td.Events = &Change[[]schema.TriggerEvent]{Old: old.Events, New: new.Events}
	}
	changed := td.Table != nil || td.Definition != nil || td.Enabled != nil ||
		td.Timing != nil || td.ForEach != nil || td.Events != nil
	return td, changed
}

func (c *comparer) compareSequence(old, new *schema.Sequence) (SequenceDiff, bool) {
	sd := SequenceDiff{Schema: new.Schema, Name: new.Name}
	sd.DataType = c.textChange(old.DataType, new.DataType)
	sd.Start = valueChange(old.Start, new.Start)
	sd.Increment = valueChange(old.Increment, new.Increment)
	sd.Min = valueChange(old.Min, new.Min)
	sd.Max = valueChange(old.Max, new.Max)
	changed := sd.DataType != nil || sd.Start != nil || sd.Increment != nil || sd.Min != nil || sd.Max != nil
	return sd, changed
}

func (c *comparer) compareType(old, new *schema.Type) (TypeDiff, bool) {
	td := TypeDiff{Schema: new.Schema, Name: new.Name, From: old, To: new}
	td.Kind = valueChange(old.Kind, new.Kind)
	if !slices.Equal(old.Values, new.Values) {
		td.Values = &Change[[]string]{Old: old.Values, New: new.Values}
	}
	td.Definition = textPtrChange(old.Definition, new.Definition)
	return td, td.Kind != nil || td.Values != nil || td.Definition != nil
}

func (c *comparer) textChange(old, new string) *Change[string] {
	if c.text(old) == c.text(new) {
		return nil
	}
	return &Change[string]{Old: old, New: new}
}

func (c *comparer) namesEqual(a, b []string) bool {
	return slices.EqualFunc(a, b, func(x, y string) bool { return c.text(x) == c.text(y) })
}

func (c *comparer) namesChange(old, new []string) *Change[[]string] {
	if c.namesEqual(old, new) {
		return nil
	}
	return &Change[[]string]{Old: old, New: new}
}

func valueChange[T comparable](old, new T) *Change[T] {
	if old == new {
		return nil
	}
	return &Change[T]{Old: old, New: new}
}

func ptrChange[T comparable](old, new *T) *Change[*T] {
	if old == nil && new == nil {
		return nil
	}
	if old != nil && new != nil && *old == *new {
		return nil
	}
	return &Change[*T]{Old: old, New: new}
}

// textPtrChange compares optional SQL or comment text. Surrounding whitespace is
// ignored and a missing value equals an empty one.
func textPtrChange(old, new *string) *Change[*string] {
	if trimmed(old) == trimmed(new) {
		return nil
	}
	return &Change[*string]{Old: old, New: new}
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func sortedEvents(events []schema.TriggerEvent) []schema.TriggerEvent {
	out := slices.Clone(events)
	slices.Sort(out)
	return out
}
