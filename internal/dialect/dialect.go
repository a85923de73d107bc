// Package dialect describes the SQL dialects migrations can be generated for.
package dialect

import (
	"fmt"
	"strings"
)

// Dialect is a target SQL dialect
type Dialect int

const (
	PostgreSQL Dialect = iota
	MySQL
	SQLite
	MsSql
)

// All returns every supported dialect
func All() []Dialect {
	return []Dialect{PostgreSQL, MySQL, SQLite, MsSql}
}

func (d Dialect) String() string {
	switch d {
	case PostgreSQL:
		return "postgresql"
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	case MsSql:
		return "mssql"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// Parse converts a dialect name or common alias into a Dialect
func Parse(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgresql", "postgres", "pg":
		return PostgreSQL, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mssql", "sqlserver":
		return MsSql, nil
	default:
		return 0, fmt.Errorf("unknown dialect: %q (must be postgresql, mysql, sqlite or mssql)", name)
	}
}

// FromURL detects the dialect from a database connection URL scheme
func FromURL(url string) (Dialect, error) {
	scheme, _, ok := strings.Cut(url, "://")
	if !ok {
		return 0, fmt.Errorf("invalid database URL: missing scheme")
	}
	return Parse(scheme)
}

// MarshalText implements encoding.TextMarshaler so dialects read naturally in config files
func (d Dialect) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Dialect) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// QuoteIdentifier quotes a single identifier, doubling any embedded closing quote
func (d Dialect) QuoteIdentifier(name string) string {
	switch d {
	case MySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case MsSql:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// QuoteQualified quotes schema.name, omitting the schema when empty
func (d Dialect) QuoteQualified(schemaName, name string) string {
	if schemaName == "" {
		return d.QuoteIdentifier(name)
	}
	return d.QuoteIdentifier(schemaName) + "." + d.QuoteIdentifier(name)
}

// QuoteList quotes and comma-joins a list of identifiers
func (d Dialect) QuoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}

// QuoteString returns a single-quoted SQL string literal
func (d Dialect) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// SupportsIfExists reports whether DROP ... IF EXISTS is accepted
func (d Dialect) SupportsIfExists() bool {
	return true
}

// SupportsCascade reports whether DROP ... CASCADE is accepted
func (d Dialect) SupportsCascade() bool {
	return d == PostgreSQL
}

// SupportsCreateOrReplaceView reports whether CREATE OR REPLACE VIEW is accepted
func (d Dialect) SupportsCreateOrReplaceView() bool {
	return d == PostgreSQL || d == MySQL
}

// SupportsAlterColumnType reports whether a column type can be changed in place
func (d Dialect) SupportsAlterColumnType() bool {
	return d != SQLite
}

// SupportsDropColumnIfExists reports whether DROP COLUMN accepts IF EXISTS
func (d Dialect) SupportsDropColumnIfExists() bool {
	return d == PostgreSQL || d == MsSql
}

// SupportsSchemas reports whether objects may be qualified with a schema
func (d Dialect) SupportsSchemas() bool {
	return d == PostgreSQL || d == MsSql
}
