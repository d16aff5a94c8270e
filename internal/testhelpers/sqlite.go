// Package testhelpers opens databases for tests: a private in-memory
// sqlite for unit tests and MariaDB plus Redis containers for integration.
package testhelpers

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/localnerve/minisitedb/internal/database"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewSQLiteDB returns a migrated in-memory database. The pool is pinned to a
// single connection so every statement sees the same database, which also
// serializes concurrent transactions.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(sqlite.Open(":memory:"), "silent", 1)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}
