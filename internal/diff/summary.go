package diff

// KindSummary counts changes of one object kind
type KindSummary struct {
	Kind     string
	Added    int
	Removed  int
	Modified int
}

// Total returns the number of changes of this kind
func (k KindSummary) Total() int {
	return k.Added + k.Removed + k.Modified
}

// Summary returns per-kind change counts in migration phase order
func (d *SchemaDiff) Summary() []KindSummary {
	return []KindSummary{
		{"types", len(d.AddedTypes), len(d.RemovedTypes), len(d.ModifiedTypes)},
		{"sequences", len(d.AddedSequences), len(d.RemovedSequences), len(d.ModifiedSequences)},
		{"tables", len(d.AddedTables), len(d.RemovedTables), len(d.ModifiedTables)},
		{"views", len(d.AddedViews), len(d.RemovedViews), len(d.ModifiedViews)},
		{"functions", len(d.AddedFunctions), len(d.RemovedFunctions), len(d.ModifiedFunctions)},
		{"procedures", len(d.AddedProcedures), len(d.RemovedProcedures), len(d.ModifiedProcedures)},
		{"triggers", len(d.AddedTriggers), len(d.RemovedTriggers), len(d.ModifiedTriggers)},
	}
}

// ChangeCount returns the number of top-level objects added, removed or modified
func (d *SchemaDiff) ChangeCount() int {
	total := 0
	for _, k := range d.Summary() {
		total += k.Total()
	}
	return total
}

// IsEmpty reports whether the snapshots were structurally identical
func (d *SchemaDiff) IsEmpty() bool {
	return d.ChangeCount() == 0
}

// HasBreakingChanges reports whether applying the diff can lose data or
// reject rows that were previously valid
func (d *SchemaDiff) HasBreakingChanges() bool {
	if len(d.RemovedTables) > 0 || len(d.RemovedViews) > 0 || len(d.RemovedFunctions) > 0 ||
		len(d.RemovedProcedures) > 0 || len(d.RemovedTriggers) > 0 ||
		len(d.RemovedSequences) > 0 || len(d.RemovedTypes) > 0 {
		return true
	}

	for i := range d.ModifiedTables {
		t := &d.ModifiedTables[i]
		if len(t.RemovedColumns) > 0 {
			return true
		}
		if t.PrimaryKey != nil && t.PrimaryKey.Kind != PrimaryKeyAdded {
			return true
		}
		for j := range t.ModifiedColumns {
			c := &t.ModifiedColumns[j]
			if c.TypeChanged() {
				return true
			}
			if c.Nullable != nil && c.Nullable.Old && !c.Nullable.New {
				return true
			}
		}
	}

	for i := range d.ModifiedTypes {
		if len(d.ModifiedTypes[i].RemovedValues()) > 0 {
			return true
		}
	}
	return false
}
