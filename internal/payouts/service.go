package payouts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ITDevS919/marketplace-backend/internal/retailers"
	"github.com/ITDevS919/marketplace-backend/pkg/currency"
	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	"github.com/ITDevS919/marketplace-backend/pkg/enums"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
	"github.com/ITDevS919/marketplace-backend/pkg/logger"
	"github.com/ITDevS919/marketplace-backend/pkg/payments"
)

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TransferCreator executes payout transfers. Satisfied by payments.Client;
// stubbed in tests.
type TransferCreator interface {
	CreateTransfer(ctx context.Context, params payments.TransferParams) (*payments.Transfer, error)
}

// Service calculates available balances and executes payout requests.
//
// Available balance = settled retailer-net minus completed payouts minus
// in-flight payouts, all in the base currency. The comparison happens under a
// row lock on the retailer, so two concurrent requests cannot both draw from
// the same funds.
type Service struct {
	tx        TxRunner
	payouts   *Repository
	retailers *retailers.Repository
	rates     *currency.Table
	transfers TransferCreator
	logg      *logger.Logger
}

type ServiceParams struct {
	Tx        TxRunner
	Payouts   *Repository
	Retailers *retailers.Repository
	Rates     *currency.Table
	Transfers TransferCreator
	Logger    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner is required")
	case params.Payouts == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payouts repository is required")
	case params.Retailers == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "retailers repository is required")
	case params.Rates == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "currency table is required")
	case params.Transfers == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transfer creator is required")
	case params.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	return &Service{
		tx:        params.Tx,
		payouts:   params.Payouts,
		retailers: params.Retailers,
		rates:     params.Rates,
		transfers: params.Transfers,
		logg:      params.Logger,
	}, nil
}

// Balance reports the retailer's payout position in base-currency cents.
type Balance struct {
	Currency       enums.Currency `json:"currency"`
	SettledCents   int            `json:"settled_cents"`
	CompletedCents int            `json:"completed_cents"`
	InFlightCents  int            `json:"in_flight_cents"`
	AvailableCents int            `json:"available_cents"`
}

// Available computes the retailer's current payout balance.
func (s *Service) Available(ctx context.Context, retailerID uuid.UUID) (*Balance, error) {
	return s.available(ctx, s.payouts, retailerID)
}

func (s *Service) available(ctx context.Context, repo *Repository, retailerID uuid.UUID) (*Balance, error) {
	settled, err := repo.SumSettledNet(ctx, retailerID)
	if err != nil {
		return nil, err
	}
	completed, err := repo.SumByStatuses(ctx, retailerID, enums.PayoutStatusCompleted)
	if err != nil {
		return nil, err
	}
	inFlight, err := repo.SumByStatuses(ctx, retailerID, enums.PayoutStatusPending, enums.PayoutStatusProcessing)
	if err != nil {
		return nil, err
	}
	return &Balance{
		Currency:       s.rates.Base(),
		SettledCents:   settled,
		CompletedCents: completed,
		InFlightCents:  inFlight,
		AvailableCents: settled - completed - inFlight,
	}, nil
}

// RequestInput is one payout request.
type RequestInput struct {
	RetailerID  uuid.UUID
	AmountCents int
	Currency    enums.Currency
	Notes       string
}

// Request reserves the amount against the retailer's balance and executes the
// transfer. The balance check and the payout insert share one transaction
// under a row lock on the retailer; an insufficient balance leaves no row
// behind. The transfer itself runs strictly after commit: success completes
// the payout, failure marks it failed with no automatic retry, since the
// processor may have moved the funds even when the call errored.
func (s *Service) Request(ctx context.Context, input RequestInput) (*models.Payout, error) {
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !s.rates.Supports(input.Currency) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency").WithDetails(map[string]any{
			"currency": input.Currency.String(),
		})
	}
	baseAmount, err := s.rates.ToBase(input.AmountCents, input.Currency)
	if err != nil {
		return nil, err
	}

	account, err := s.retailers.PayoutAccount(ctx, input.RetailerID)
	if err != nil {
		return nil, err
	}
	if !account.Eligible() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payout account is not ready")
	}

	payout := &models.Payout{
		ID:              uuid.New(),
		RetailerID:      input.RetailerID,
		AmountCents:     input.AmountCents,
		Currency:        input.Currency,
		BaseAmountCents: baseAmount,
		Status:          enums.PayoutStatusPending,
	}
	if notes := strings.TrimSpace(input.Notes); notes != "" {
		payout.Notes = &notes
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.retailers.LockForUpdate(ctx, tx, input.RetailerID); err != nil {
			return err
		}
		balance, err := s.available(ctx, s.payouts.WithTx(tx), input.RetailerID)
		if err != nil {
			return err
		}
		if baseAmount > balance.AvailableCents {
			return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "amount exceeds available balance").WithDetails(map[string]any{
				"requested_cents": baseAmount,
				"available_cents": balance.AvailableCents,
			})
		}
		return s.payouts.WithTx(tx).Create(ctx, payout)
	})
	if err != nil {
		return nil, err
	}

	s.execute(ctx, payout, account.ProviderAccountID)
	return payout, nil
}

// execute runs the transfer for a committed pending payout and records the
// terminal status.
func (s *Service) execute(ctx context.Context, payout *models.Payout, destination string) {
	logCtx := s.logg.WithField(ctx, "payout_id", payout.ID.String())

	transfer, err := s.transfers.CreateTransfer(ctx, payments.TransferParams{
		PayoutID:           payout.ID.String(),
		AmountCents:        payout.AmountCents,
		Currency:           payout.Currency.String(),
		DestinationAccount: destination,
	})
	if err != nil {
		s.logg.Error(logCtx, "payout transfer failed", err)
		payout.Status = enums.PayoutStatusFailed
		reason := err.Error()
		payout.FailureReason = &reason
		if saveErr := s.payouts.Update(ctx, payout); saveErr != nil {
			s.logg.Error(logCtx, "persist failed payout", saveErr)
		}
		return
	}

	now := time.Now().UTC()
	payout.Status = enums.PayoutStatusCompleted
	payout.TransferRef = &transfer.ID
	payout.CompletedAt = &now
	if err := s.payouts.Update(ctx, payout); err != nil {
		s.logg.Error(logCtx, "persist completed payout", err)
		return
	}
	s.logg.Info(logCtx, "payout completed")
}

// ListForRetailer returns the retailer's payout history.
func (s *Service) ListForRetailer(ctx context.Context, retailerID uuid.UUID, limit int) ([]models.Payout, error) {
	return s.payouts.ListByRetailer(ctx, retailerID, limit)
}
