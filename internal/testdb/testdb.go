// internal/testdb/testdb.go
package testdb

import (
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var bindOnce sync.Once

// Open returns an in-memory SQLite database for store tests. A single
// connection keeps the in-memory database alive and serializes writers the
// way the production database's row locks would.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()
	bindOnce.Do(func() {
		sqlx.BindDriver("sqlite", sqlx.QUESTION)
	})

	db, err := sqlx.Open("sqlite", "file::memory:?_time_format=sqlite")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
