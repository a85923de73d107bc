package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotValidate(t *testing.T) {
	tests := []struct {
		name         string
		snapshot     Snapshot
		wantProblems []string
	}{
		{
			name: "valid snapshot",
			snapshot: Snapshot{
				Tables: []Table{
					{Name: "users", Columns: []Column{{Name: "id"}, {Name: "email", Ordinal: 1}}},
					{Schema: "audit", Name: "users"},
				},
				Types: []Type{{Name: "status", Kind: TypeEnum, Values: []string{"a"}}},
			},
		},
		{
			name: "duplicate table in same schema",
			snapshot: Snapshot{
				Tables: []Table{{Schema: "public", Name: "users"}, {Schema: "public", Name: "users"}},
			},
			wantProblems: []string{"duplicate table public.users"},
		},
		{
			name: "blank names",
			snapshot: Snapshot{
				Tables: []Table{{Name: "users", Columns: []Column{{Name: " "}}}},
				Views:  []View{{Name: ""}},
			},
			wantProblems: []string{
				"column in table users with empty name",
				"view with empty name",
			},
		},
		{
			name: "duplicate column",
			snapshot: Snapshot{
				Tables: []Table{{Name: "t", Columns: []Column{{Name: "a"}, {Name: "a", Ordinal: 1}}}},
			},
			wantProblems: []string{"duplicate column in table t a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.snapshot.Validate()
			if len(tt.wantProblems) == 0 {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantProblems, verr.Problems)
		})
	}
}

func TestForeignKeyActionSQL(t *testing.T) {
	tests := []struct {
		action ForeignKeyAction
		want   string
	}{
		{"", "NO ACTION"},
		{NoAction, "NO ACTION"},
		{Restrict, "RESTRICT"},
		{Cascade, "CASCADE"},
		{SetNull, "SET NULL"},
		{SetDefault, "SET DEFAULT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.action.SQL())
	}

	assert.Equal(t, SetNull, ParseForeignKeyAction("set null"))
	assert.Equal(t, NoAction, ParseForeignKeyAction("NO ACTION"))
	assert.Equal(t, NoAction, ForeignKeyAction("").Normalize())
}

func TestTableLookup(t *testing.T) {
	table := Table{Schema: "app", Name: "orders", Columns: []Column{{Name: "id"}, {Name: "total", Ordinal: 1}}}

	assert.Equal(t, "app.orders", table.QualifiedName())
	require.NotNil(t, table.Column("total"))
	assert.Equal(t, 1, table.Column("total").Ordinal)
	assert.Nil(t, table.Column("missing"))
}
