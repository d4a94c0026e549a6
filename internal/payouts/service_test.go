package payouts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ITDevS919/marketplace-backend/internal/retailers"
	"github.com/ITDevS919/marketplace-backend/pkg/currency"
	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	"github.com/ITDevS919/marketplace-backend/pkg/enums"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
	"github.com/ITDevS919/marketplace-backend/pkg/logger"
	"github.com/ITDevS919/marketplace-backend/pkg/payments"
)

type txRunner struct {
	db *gorm.DB
}

func (r txRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

type stubTransfers struct {
	err   error
	calls []payments.TransferParams
}

func (s *stubTransfers) CreateTransfer(_ context.Context, params payments.TransferParams) (*payments.Transfer, error) {
	s.calls = append(s.calls, params)
	if s.err != nil {
		return nil, s.err
	}
	return &payments.Transfer{ID: "tr_" + params.PayoutID}, nil
}

type fixture struct {
	db        *gorm.DB
	svc       *Service
	transfers *stubTransfers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:payouts_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Retailer{}, &models.PayoutAccount{},
		&models.OrderGroup{}, &models.OrderLine{}, &models.Payout{},
	))

	transfers := &stubTransfers{}
	svc, err := NewService(ServiceParams{
		Tx:        txRunner{db: db},
		Payouts:   NewRepository(db),
		Retailers: retailers.NewRepository(db),
		Rates:     currency.DefaultTable(),
		Transfers: transfers,
		Logger:    logger.New(logger.Options{ServiceName: "payouts-test", Level: zerolog.ErrorLevel}),
	})
	require.NoError(t, err)
	return &fixture{db: db, svc: svc, transfers: transfers}
}

func (f *fixture) seedRetailer(t *testing.T) uuid.UUID {
	t.Helper()
	retailer := models.Retailer{ID: uuid.New(), UserID: uuid.New(), Name: "shop"}
	require.NoError(t, f.db.Create(&retailer).Error)
	require.NoError(t, f.db.Create(&models.PayoutAccount{
		RetailerID:        retailer.ID,
		ProviderAccountID: "acct_" + retailer.ID.String(),
		ChargesEnabled:    true,
		PayoutsEnabled:    true,
		DetailsSubmitted:  true,
	}).Error)
	return retailer.ID
}

func (f *fixture) seedSettledGroup(t *testing.T, retailerID uuid.UUID, netCents int) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, f.db.Create(&models.OrderGroup{
		ID:               uuid.New(),
		CheckoutID:       uuid.New(),
		UserID:           uuid.New(),
		RetailerID:       retailerID,
		Status:           enums.OrderStatusProcessing,
		SubtotalCents:    netCents,
		TotalCents:       netCents,
		RetailerNetCents: netCents,
		PaidAt:           &now,
	}).Error)
}

func (f *fixture) seedPayout(t *testing.T, retailerID uuid.UUID, baseCents int, status enums.PayoutStatus) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.Payout{
		ID:              uuid.New(),
		RetailerID:      retailerID,
		AmountCents:     baseCents,
		Currency:        enums.CurrencyGBP,
		BaseAmountCents: baseCents,
		Status:          status,
	}).Error)
}

func TestAvailableBalance(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	retailer := f.seedRetailer(t)

	// £60 settled, £10 completed, £10 in flight: £40 available.
	f.seedSettledGroup(t, retailer, 6000)
	f.seedPayout(t, retailer, 1000, enums.PayoutStatusCompleted)
	f.seedPayout(t, retailer, 1000, enums.PayoutStatusProcessing)

	balance, err := f.svc.Available(ctx, retailer)
	require.NoError(t, err)
	assert.Equal(t, 6000, balance.SettledCents)
	assert.Equal(t, 1000, balance.CompletedCents)
	assert.Equal(t, 1000, balance.InFlightCents)
	assert.Equal(t, 4000, balance.AvailableCents)
	assert.Equal(t, enums.CurrencyGBP, balance.Currency)
}

func TestAvailableIgnoresUnsettledAndCancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	retailer := f.seedRetailer(t)

	f.seedSettledGroup(t, retailer, 2000)

	// Unsettled group: no paid_at.
	require.NoError(t, f.db.Create(&models.OrderGroup{
		ID: uuid.New(), CheckoutID: uuid.New(), UserID: uuid.New(),
		RetailerID: retailer, Status: enums.OrderStatusPending,
		SubtotalCents: 999, TotalCents: 999, RetailerNetCents: 999,
	}).Error)

	// Cancelled group: settled then cancelled, excluded.
	now := time.Now().UTC()
	require.NoError(t, f.db.Create(&models.OrderGroup{
		ID: uuid.New(), CheckoutID: uuid.New(), UserID: uuid.New(),
		RetailerID: retailer, Status: enums.OrderStatusCancelled,
		SubtotalCents: 500, TotalCents: 500, RetailerNetCents: 500, PaidAt: &now,
	}).Error)

	// Failed payouts release their reservation.
	f.seedPayout(t, retailer, 700, enums.PayoutStatusFailed)

	balance, err := f.svc.Available(ctx, retailer)
	require.NoError(t, err)
	assert.Equal(t, 2000, balance.AvailableCents)
}

func TestRequestOverBalanceLeavesNoRow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	retailer := f.seedRetailer(t)
	f.seedSettledGroup(t, retailer, 6000)
	f.seedPayout(t, retailer, 1000, enums.PayoutStatusCompleted)
	f.seedPayout(t, retailer, 1000, enums.PayoutStatusProcessing)

	_, err := f.svc.Request(ctx, RequestInput{
		RetailerID:  retailer,
		AmountCents: 5000,
		Currency:    enums.CurrencyGBP,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInsufficientBalance, pkgerrors.As(err).Code())

	var count int64
	require.NoError(t, f.db.Model(&models.Payout{}).
		Where("retailer_id = ? AND status = ?", retailer, enums.PayoutStatusPending).
		Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.transfers.calls)
}

func TestRequestWithinBalanceCompletes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	retailer := f.seedRetailer(t)
	f.seedSettledGroup(t, retailer, 6000)
	f.seedPayout(t, retailer, 1000, enums.PayoutStatusCompleted)
	f.seedPayout(t, retailer, 1000, enums.PayoutStatusProcessing)

	payout, err := f.svc.Request(ctx, RequestInput{
		RetailerID:  retailer,
		AmountCents: 4000,
		Currency:    enums.CurrencyGBP,
		Notes:       "weekly drawdown",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PayoutStatusCompleted, payout.Status)
	require.NotNil(t, payout.TransferRef)
	assert.Equal(t, "tr_"+payout.ID.String(), *payout.TransferRef)
	assert.NotNil(t, payout.CompletedAt)
	require.Len(t, f.transfers.calls, 1)
	assert.Equal(t, 4000, f.transfers.calls[0].AmountCents)

	// The balance is now fully drawn.
	balance, err := f.svc.Available(ctx, retailer)
	require.NoError(t, err)
	assert.Zero(t, balance.AvailableCents)
}

func TestRequestFailedTransferIsTerminal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	retailer := f.seedRetailer(t)
	f.seedSettledGroup(t, retailer, 6000)
	f.transfers.err = pkgerrors.New(pkgerrors.CodeDependency, "processor rejected transfer")

	payout, err := f.svc.Request(ctx, RequestInput{
		RetailerID:  retailer,
		AmountCents: 2000,
		Currency:    enums.CurrencyGBP,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PayoutStatusFailed, payout.Status)
	assert.Nil(t, payout.TransferRef)
	require.NotNil(t, payout.FailureReason)

	// No automatic retry: exactly one transfer attempt.
	assert.Len(t, f.transfers.calls, 1)

	var stored models.Payout
	require.NoError(t, f.db.First(&stored, "id = ?", payout.ID).Error)
	assert.Equal(t, enums.PayoutStatusFailed, stored.Status)

	// A failed payout stops reserving balance.
	balance, err := f.svc.Available(ctx, retailer)
	require.NoError(t, err)
	assert.Equal(t, 6000, balance.AvailableCents)
}

func TestRequestCurrencyConversion(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	retailer := f.seedRetailer(t)
	f.seedSettledGroup(t, retailer, 6000)

	payout, err := f.svc.Request(ctx, RequestInput{
		RetailerID:  retailer,
		AmountCents: 1000,
		Currency:    enums.CurrencyUSD,
	})
	require.NoError(t, err)
	assert.Equal(t, 1000, payout.AmountCents)
	assert.Equal(t, enums.CurrencyUSD, payout.Currency)
	// $10.00 at the 0.79 rate reserves £7.90 of the balance.
	assert.Equal(t, 790, payout.BaseAmountCents)
}

func TestRequestValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	retailer := f.seedRetailer(t)

	_, err := f.svc.Request(ctx, RequestInput{RetailerID: retailer, AmountCents: 0, Currency: enums.CurrencyGBP})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = f.svc.Request(ctx, RequestInput{RetailerID: retailer, AmountCents: 100, Currency: enums.Currency("JPY")})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestRequestRequiresEligibleAccount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	retailer := models.Retailer{ID: uuid.New(), UserID: uuid.New(), Name: "shop"}
	require.NoError(t, f.db.Create(&retailer).Error)
	f.seedSettledGroup(t, retailer.ID, 6000)

	_, err := f.svc.Request(ctx, RequestInput{
		RetailerID:  retailer.ID,
		AmountCents: 1000,
		Currency:    enums.CurrencyGBP,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	assert.Empty(t, f.transfers.calls)
}
