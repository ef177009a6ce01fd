package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/court-reservation/internal/database"
	"github.com/iliyamo/court-reservation/internal/database/dbtest"
)

func TestMigratorAppliesSchema(t *testing.T) {
	db, d := dbtest.Open(t)
	mg := database.NewMigrator(db, d, zap.NewNop())

	version, err := mg.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// Re-running is a no-op.
	require.NoError(t, mg.Run(context.Background()))

	for _, table := range []string{"reservations", "approval_requests", "blocked_windows", "slot_locks"} {
		assert.Zero(t, dbtest.Count(t, db, table), table)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, _, err := database.Open(database.Config{Driver: "oracle"})
	assert.Error(t, err)
}
