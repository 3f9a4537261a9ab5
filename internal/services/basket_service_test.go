package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fleetdeck-io/fleetdeck/internal/database/testutil"
	"github.com/fleetdeck-io/fleetdeck/internal/models"
)

func newBasketFixture(t *testing.T) (*gorm.DB, *BasketService, *DriverService) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	drivers, err := NewDriverService(db)
	require.NoError(t, err)
	baskets, err := NewBasketService(db, nil, drivers)
	require.NoError(t, err)
	return db, baskets, drivers
}

func TestBasketCreateAndGet(t *testing.T) {
	_, baskets, _ := newBasketFixture(t)
	ctx := context.Background()

	temp := 4.2
	created, err := baskets.Create(ctx, CreateBasketInput{
		Lat:         41.0082,
		Lon:         28.9784,
		Temperature: &temp,
	})
	require.NoError(t, err)
	require.Equal(t, models.BasketStatusActive, created.Status)

	fetched, err := baskets.Get(ctx, created.ID)
	require.NoError(t, err)
	require.InDelta(t, 41.0082, fetched.Lat, 0.0001)
	require.InDelta(t, 4.2, *fetched.Temperature, 0.01)
}

func TestBasketUpdatePositionAndStatus(t *testing.T) {
	_, baskets, _ := newBasketFixture(t)
	ctx := context.Background()

	created, err := baskets.Create(ctx, CreateBasketInput{Lat: 41.0, Lon: 29.0})
	require.NoError(t, err)

	lat, lon := 41.1, 29.1
	status := models.BasketStatusDelayed
	updated, err := baskets.Update(ctx, created.ID, UpdateBasketInput{
		Lat:    &lat,
		Lon:    &lon,
		Status: &status,
	})
	require.NoError(t, err)
	require.InDelta(t, 41.1, updated.Lat, 0.0001)
	require.Equal(t, models.BasketStatusDelayed, updated.Status)

	bad := "teleporting"
	_, err = baskets.Update(ctx, created.ID, UpdateBasketInput{Status: &bad})
	require.Error(t, err)
}

func TestBasketDeliveryCreditsDriver(t *testing.T) {
	_, baskets, drivers := newBasketFixture(t)
	ctx := context.Background()

	driver, err := drivers.Create(ctx, DriverInput{Name: "Ayşe"})
	require.NoError(t, err)

	created, err := baskets.Create(ctx, CreateBasketInput{Lat: 41.0, Lon: 29.0, DriverID: &driver.ID})
	require.NoError(t, err)

	status := models.BasketStatusDelivered
	_, err = baskets.Update(ctx, created.ID, UpdateBasketInput{Status: &status})
	require.NoError(t, err)

	reloaded, err := drivers.Get(ctx, driver.ID)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.TotalDeliveries)

	// Re-delivering the same basket does not double count.
	_, err = baskets.Update(ctx, created.ID, UpdateBasketInput{Status: &status})
	require.NoError(t, err)
	reloaded, err = drivers.Get(ctx, driver.ID)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.TotalDeliveries)
}

func TestBasketListFiltersByStatus(t *testing.T) {
	_, baskets, _ := newBasketFixture(t)
	ctx := context.Background()

	first, err := baskets.Create(ctx, CreateBasketInput{Lat: 1, Lon: 1})
	require.NoError(t, err)
	_, err = baskets.Create(ctx, CreateBasketInput{Lat: 2, Lon: 2})
	require.NoError(t, err)

	status := models.BasketStatusDelayed
	_, err = baskets.Update(ctx, first.ID, UpdateBasketInput{Status: &status})
	require.NoError(t, err)

	delayed, err := baskets.List(ctx, models.BasketStatusDelayed, 0, 0)
	require.NoError(t, err)
	require.Len(t, delayed, 1)

	all, err := baskets.List(ctx, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestBasketDeleteCascadesOrders(t *testing.T) {
	db, baskets, _ := newBasketFixture(t)
	ctx := context.Background()

	created, err := baskets.Create(ctx, CreateBasketInput{Lat: 1, Lon: 1})
	require.NoError(t, err)

	orders, err := NewOrderService(db, nil)
	require.NoError(t, err)
	_, err = orders.Create(ctx, CreateOrderInput{BasketID: created.ID, Customer: "Mehmet"})
	require.NoError(t, err)

	require.NoError(t, baskets.Delete(ctx, created.ID))

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	require.Zero(t, count)
}
