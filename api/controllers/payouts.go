package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ITDevS919/marketplace-backend/api/responses"
	"github.com/ITDevS919/marketplace-backend/api/validators"
	payoutsvc "github.com/ITDevS919/marketplace-backend/internal/payouts"
	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	"github.com/ITDevS919/marketplace-backend/pkg/enums"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
	"github.com/ITDevS919/marketplace-backend/pkg/logger"
)

const (
	defaultPayoutListLimit = 50
	maxPayoutListLimit     = 200
	maxPayoutNotesLen      = 500
)

// PayoutBalance reports the retailer's withdrawable balance broken into its
// settled, completed and in-flight components.
func PayoutBalance(svc *payoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		retailerID, err := retailerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Available(r.Context(), retailerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, balance)
	}
}

// PayoutRequest reserves part of the retailer's balance and executes one
// transfer against it.
func PayoutRequest(svc *payoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		retailerID, err := retailerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload payoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		currency, err := enums.ParseCurrency(payload.Currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency"))
			return
		}

		payout, err := svc.Request(r.Context(), payoutsvc.RequestInput{
			RetailerID:  retailerID,
			AmountCents: payload.AmountCents,
			Currency:    currency,
			Notes:       validators.SanitizeString(payload.Notes, maxPayoutNotesLen),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newPayoutResponse(payout))
	}
}

// PayoutList returns the retailer's payout history, newest first.
func PayoutList(svc *payoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		retailerID, err := retailerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultPayoutListLimit, 1, maxPayoutListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payouts, err := svc.ListForRetailer(r.Context(), retailerID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]payoutResponse, 0, len(payouts))
		for i := range payouts {
			out = append(out, newPayoutResponse(&payouts[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

type payoutRequest struct {
	AmountCents int    `json:"amount_cents" validate:"required,min=1"`
	Currency    string `json:"currency" validate:"required"`
	Notes       string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

type payoutResponse struct {
	PayoutID        uuid.UUID  `json:"payout_id"`
	RetailerID      uuid.UUID  `json:"retailer_id"`
	AmountCents     int        `json:"amount_cents"`
	Currency        string     `json:"currency"`
	BaseAmountCents int        `json:"base_amount_cents"`
	Status          string     `json:"status"`
	TransferRef     *string    `json:"transfer_ref,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	FailureReason   *string    `json:"failure_reason,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func newPayoutResponse(payout *models.Payout) payoutResponse {
	if payout == nil {
		return payoutResponse{}
	}
	return payoutResponse{
		PayoutID:        payout.ID,
		RetailerID:      payout.RetailerID,
		AmountCents:     payout.AmountCents,
		Currency:        string(payout.Currency),
		BaseAmountCents: payout.BaseAmountCents,
		Status:          string(payout.Status),
		TransferRef:     payout.TransferRef,
		Notes:           payout.Notes,
		FailureReason:   payout.FailureReason,
		CompletedAt:     payout.CompletedAt,
		CreatedAt:       payout.CreatedAt,
	}
}
