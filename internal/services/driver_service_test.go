package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fleetdeck-io/fleetdeck/internal/database/testutil"
	apperrors "github.com/fleetdeck-io/fleetdeck/pkg/errors"
)

func TestDriverCRUD(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewDriverService(db)
	require.NoError(t, err)

	ctx := context.Background()
	created, err := svc.Create(ctx, DriverInput{Name: "Ali", Phone: "+90 555 000 0001"})
	require.NoError(t, err)
	require.Zero(t, created.TotalDeliveries)

	rating := 4.8
	updated, err := svc.Update(ctx, created.ID, DriverInput{Rating: &rating})
	require.NoError(t, err)
	require.InDelta(t, 4.8, updated.Rating, 0.01)
	require.Equal(t, "Ali", updated.Name)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDriverLeaderboardOrdering(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewDriverService(db)
	require.NoError(t, err)

	ctx := context.Background()
	slow, err := svc.Create(ctx, DriverInput{Name: "Slow"})
	require.NoError(t, err)
	fast, err := svc.Create(ctx, DriverInput{Name: "Fast"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.RecordDelivery(ctx, fast.ID))
	}
	require.NoError(t, svc.RecordDelivery(ctx, slow.ID))

	board, err := svc.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	require.Equal(t, "Fast", board[0].Name)
	require.Equal(t, 3, board[0].TotalDeliveries)
}
