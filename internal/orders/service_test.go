package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	"github.com/ITDevS919/marketplace-backend/pkg/enums"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
	"github.com/ITDevS919/marketplace-backend/pkg/logger"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Checkout{}, &models.OrderGroup{}, &models.OrderLine{}))

	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(db),
		Logger: logger.New(logger.Options{ServiceName: "orders-test", Level: zerolog.ErrorLevel}),
	})
	require.NoError(t, err)
	return svc, db
}

func seedGroup(t *testing.T, db *gorm.DB, retailerID uuid.UUID, status enums.OrderStatus) models.OrderGroup {
	t.Helper()
	group := models.OrderGroup{
		ID:            uuid.New(),
		CheckoutID:    uuid.New(),
		UserID:        uuid.New(),
		RetailerID:    retailerID,
		Status:        status,
		SubtotalCents: 1000,
		TotalCents:    1000,
	}
	require.NoError(t, db.Create(&group).Error)
	return group
}

func TestUpdateStatusForward(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	retailer := uuid.New()
	group := seedGroup(t, db, retailer, enums.OrderStatusPending)
	ctx := context.Background()

	updated, err := svc.UpdateStatus(ctx, retailer, group.ID, enums.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, updated.Status)

	updated, err = svc.UpdateStatus(ctx, retailer, group.ID, enums.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, updated.Status)
}

func TestUpdateStatusNeverMovesBackward(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	retailer := uuid.New()
	group := seedGroup(t, db, retailer, enums.OrderStatusShipped)

	_, err := svc.UpdateStatus(context.Background(), retailer, group.ID, enums.OrderStatusProcessing)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestCancelOnlyFromPending(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	retailer := uuid.New()
	ctx := context.Background()

	pending := seedGroup(t, db, retailer, enums.OrderStatusPending)
	updated, err := svc.UpdateStatus(ctx, retailer, pending.ID, enums.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, updated.Status)
	assert.NotNil(t, updated.CanceledAt)

	shipped := seedGroup(t, db, retailer, enums.OrderStatusShipped)
	_, err = svc.UpdateStatus(ctx, retailer, shipped.ID, enums.OrderStatusCancelled)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	// Cancelled is terminal.
	_, err = svc.UpdateStatus(ctx, retailer, pending.ID, enums.OrderStatusProcessing)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestUpdateStatusWrongRetailer(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	group := seedGroup(t, db, uuid.New(), enums.OrderStatusPending)

	_, err := svc.UpdateStatus(context.Background(), uuid.New(), group.ID, enums.OrderStatusProcessing)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestUpdateStatusInvalidValue(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	retailer := uuid.New()
	group := seedGroup(t, db, retailer, enums.OrderStatusPending)

	_, err := svc.UpdateStatus(context.Background(), retailer, group.ID, enums.OrderStatus("teleported"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestGetForUserHidesOtherBuyers(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	group := seedGroup(t, db, uuid.New(), enums.OrderStatusPending)

	_, err := svc.GetForUser(context.Background(), uuid.New(), group.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	found, err := svc.GetForUser(context.Background(), group.UserID, group.ID)
	require.NoError(t, err)
	assert.Equal(t, group.ID, found.ID)
}
