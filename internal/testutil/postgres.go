package testutil

import (
	"os"
	"testing"

	"anoa.com/threadgraph/pkg/database"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// OpenTestDB connects to TEST_DATABASE_URL, migrates, and empties every table when the test
// ends. Tests are skipped when the variable is unset.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.Connect(dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	truncate := func() {
		require.NoError(t, db.Exec("TRUNCATE notifications, likes, follows, threads, profiles CASCADE").Error)
	}
	truncate()
	t.Cleanup(func() {
		truncate()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
