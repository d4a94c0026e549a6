package settlement

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ITDevS919/marketplace-backend/internal/commission"
	"github.com/ITDevS919/marketplace-backend/internal/orders"
	"github.com/ITDevS919/marketplace-backend/internal/retailers"
	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	"github.com/ITDevS919/marketplace-backend/pkg/enums"
	"github.com/ITDevS919/marketplace-backend/pkg/logger"
	"github.com/ITDevS919/marketplace-backend/pkg/payments"
)

type fixture struct {
	db  *gorm.DB
	svc *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:settlement_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.OrderGroup{}, &models.OrderLine{},
		&models.Retailer{}, &models.PayoutAccount{}, &models.CommissionSetting{},
	))

	_, err = commission.NewRepository(db).Publish(context.Background(), 1000)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Orders:     orders.NewRepository(db),
		Retailers:  retailers.NewRepository(db),
		Commission: commission.NewRepository(db),
		Logger:     logger.New(logger.Options{ServiceName: "settlement-test", Level: zerolog.ErrorLevel}),
	})
	require.NoError(t, err)
	return &fixture{db: db, svc: svc}
}

func (f *fixture) seedGroup(t *testing.T, sessionRef string, totalCents int) models.OrderGroup {
	t.Helper()
	group := models.OrderGroup{
		ID:            uuid.New(),
		CheckoutID:    uuid.New(),
		UserID:        uuid.New(),
		RetailerID:    uuid.New(),
		Status:        enums.OrderStatusPending,
		SubtotalCents: totalCents,
		TotalCents:    totalCents,
	}
	if sessionRef != "" {
		group.SessionRef = &sessionRef
	}
	require.NoError(t, f.db.Create(&group).Error)
	return group
}

func paymentSucceededEvent(t *testing.T, intentID string, groupID uuid.UUID) *stripe.Event {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":       intentID,
		"metadata": map[string]string{"order_group_id": groupID.String()},
	})
	require.NoError(t, err)
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: stripe.EventTypePaymentIntentSucceeded,
		Data: &stripe.EventData{Raw: payload},
	}
}

func TestPaymentSucceededSettlesGroup(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	group := f.seedGroup(t, "cs_1", 2000)

	require.NoError(t, f.svc.HandleEvent(ctx, paymentSucceededEvent(t, "pi_1", group.ID)))

	var stored models.OrderGroup
	require.NoError(t, f.db.First(&stored, "id = ?", group.ID).Error)
	require.NotNil(t, stored.PaymentRef)
	assert.Equal(t, "pi_1", *stored.PaymentRef)
	assert.Equal(t, 1000, stored.CommissionRateBps)
	assert.Equal(t, 200, stored.CommissionCents)
	assert.Equal(t, 1800, stored.RetailerNetCents)
	assert.NotNil(t, stored.PaidAt)
	assert.Equal(t, enums.OrderStatusProcessing, stored.Status)
}

func TestPaymentSucceededReplayIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	group := f.seedGroup(t, "cs_1", 2000)

	require.NoError(t, f.svc.HandleEvent(ctx, paymentSucceededEvent(t, "pi_1", group.ID)))

	var first models.OrderGroup
	require.NoError(t, f.db.First(&first, "id = ?", group.ID).Error)

	// Redelivery runs the overwrite again; the row must come out identical.
	require.NoError(t, f.svc.HandleEvent(ctx, paymentSucceededEvent(t, "pi_1", group.ID)))

	var second models.OrderGroup
	require.NoError(t, f.db.First(&second, "id = ?", group.ID).Error)
	assert.Equal(t, first.PaymentRef, second.PaymentRef)
	assert.Equal(t, first.CommissionCents, second.CommissionCents)
	assert.Equal(t, first.RetailerNetCents, second.RetailerNetCents)
	assert.Equal(t, first.Status, second.Status)
	require.NotNil(t, second.PaidAt)
	assert.WithinDuration(t, *first.PaidAt, *second.PaidAt, time.Millisecond)
}

func TestSessionCompletedMovesPendingToProcessing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	group := f.seedGroup(t, "cs_done", 1500)

	payload, err := json.Marshal(map[string]any{
		"id":             "cs_done",
		"payment_intent": map[string]any{"id": "pi_9"},
	})
	require.NoError(t, err)

	event := &stripe.Event{
		ID:   "evt_s",
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: payload},
	}
	require.NoError(t, f.svc.HandleEvent(ctx, event))

	var stored models.OrderGroup
	require.NoError(t, f.db.First(&stored, "id = ?", group.ID).Error)
	assert.Equal(t, enums.OrderStatusProcessing, stored.Status)
	require.NotNil(t, stored.PaymentRef)
	assert.Equal(t, "pi_9", *stored.PaymentRef)
	// Completion alone does not settle the group.
	assert.Nil(t, stored.PaidAt)
}

func TestAccountUpdatedTouchesEligibilityOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	retailerID := uuid.New()
	require.NoError(t, f.db.Create(&models.PayoutAccount{
		RetailerID:        retailerID,
		ProviderAccountID: "acct_1",
	}).Error)
	group := f.seedGroup(t, "cs_1", 2000)

	payload, err := json.Marshal(map[string]any{
		"id":                "acct_1",
		"charges_enabled":   true,
		"payouts_enabled":   true,
		"details_submitted": true,
	})
	require.NoError(t, err)

	event := &stripe.Event{
		ID:   "evt_a",
		Type: stripe.EventTypeAccountUpdated,
		Data: &stripe.EventData{Raw: payload},
	}
	require.NoError(t, f.svc.HandleEvent(ctx, event))

	var account models.PayoutAccount
	require.NoError(t, f.db.First(&account, "retailer_id = ?", retailerID).Error)
	assert.True(t, account.Eligible())

	// Order state is untouched by account events.
	var stored models.OrderGroup
	require.NoError(t, f.db.First(&stored, "id = ?", group.ID).Error)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
}

func TestAccountUpdatedUnknownAccountIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	payload, err := json.Marshal(map[string]any{"id": "acct_stranger"})
	require.NoError(t, err)

	event := &stripe.Event{
		ID:   "evt_u",
		Type: stripe.EventTypeAccountUpdated,
		Data: &stripe.EventData{Raw: payload},
	}
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))
}

func TestUnknownEventTypeIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	event := &stripe.Event{
		ID:   "evt_x",
		Type: stripe.EventType("customer.created"),
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))
}

func TestSettleFromSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	group := f.seedGroup(t, "cs_lost", 3000)

	// An unpaid session is a no-op.
	require.NoError(t, f.svc.SettleFromSession(ctx, group.ID, &payments.CheckoutSession{ID: "cs_lost", Paid: false}))
	var stored models.OrderGroup
	require.NoError(t, f.db.First(&stored, "id = ?", group.ID).Error)
	assert.Nil(t, stored.PaidAt)

	require.NoError(t, f.svc.SettleFromSession(ctx, group.ID, &payments.CheckoutSession{
		ID:         "cs_lost",
		Paid:       true,
		PaymentRef: "pi_lost",
	}))
	require.NoError(t, f.db.First(&stored, "id = ?", group.ID).Error)
	require.NotNil(t, stored.PaymentRef)
	assert.Equal(t, "pi_lost", *stored.PaymentRef)
	assert.NotNil(t, stored.PaidAt)
	assert.Equal(t, 300, stored.CommissionCents)
	assert.Equal(t, 2700, stored.RetailerNetCents)
}

func TestSettleRejectsCancelledGroup(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	group := f.seedGroup(t, "cs_c", 1000)
	require.NoError(t, f.db.Model(&models.OrderGroup{}).Where("id = ?", group.ID).
		UpdateColumn("status", enums.OrderStatusCancelled).Error)

	err := f.svc.HandleEvent(ctx, paymentSucceededEvent(t, "pi_c", group.ID))
	require.Error(t, err)
}
