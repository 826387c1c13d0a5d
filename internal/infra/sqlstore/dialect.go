package sqlstore

import "fmt"

// Backend names the live storage engine.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
)

// Dialect renders the few query fragments the two backends spell differently.
// Everything else in this package is written once in the shared SQL subset.
type Dialect struct {
	backend Backend
}

// Backend reports the backend the fragments are rendered for.
func (d Dialect) Backend() Backend {
	return d.backend
}

// ILike renders a case-insensitive pattern match of column against one placeholder.
// SQLite's LIKE folds ASCII case only.
func (d Dialect) ILike(column string) string {
	if d.backend == BackendSQLite {
		return column + " LIKE ?"
	}
	return column + " ILIKE ?"
}

// DaysAgo renders "the current time minus days days".
func (d Dialect) DaysAgo(days int) string {
	if d.backend == BackendSQLite {
		return fmt.Sprintf("datetime('now', '-%d days')", days)
	}
	return fmt.Sprintf("NOW() - INTERVAL '%d days'", days)
}

// Now renders the current timestamp.
func (d Dialect) Now() string {
	if d.backend == BackendSQLite {
		return "CURRENT_TIMESTAMP"
	}
	return "NOW()"
}
