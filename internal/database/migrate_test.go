package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var schemaTables = []string{"accounts", "categories", "transactions", "failed_extractions", "settings"}

func requireTables(t *testing.T, dbPath string) {
	t.Helper()
	db, err := Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	for _, table := range schemaTables {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}
}

func TestRunMigrationsCreatesSchema(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrations, err := filepath.Abs("migrations")
	require.NoError(t, err)

	require.NoError(t, RunMigrations(dbPath, migrations))
	// a second run finds nothing to apply
	require.NoError(t, RunMigrations(dbPath, migrations))

	requireTables(t, dbPath)
}

func TestRunMigrationsWithDB(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrations, err := filepath.Abs("migrations")
	require.NoError(t, err)

	db, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, RunMigrationsWithDB(db, migrations))
	require.NoError(t, db.Close())

	requireTables(t, dbPath)
}
