package controllers

import (
	"net/http"

	"github.com/ITDevS919/marketplace-backend/api/middleware"
	"github.com/ITDevS919/marketplace-backend/api/responses"
	"github.com/ITDevS919/marketplace-backend/api/validators"
	checkoutsvc "github.com/ITDevS919/marketplace-backend/internal/checkout"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
	"github.com/ITDevS919/marketplace-backend/pkg/logger"
)

// Checkout submits the buyer's cart: one ledger transaction, then payment
// sessions for the groups that can take one.
func Checkout(svc *checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Submit(r.Context(), checkoutsvc.SubmitInput{
			UserID:       userID,
			BuyerEmail:   middleware.EmailFromContext(r.Context()),
			DiscountCode: validators.SanitizeString(payload.DiscountCode, 64),
			PointsCents:  payload.PointsCents,
			SuccessURL:   payload.SuccessURL,
			CancelURL:    payload.CancelURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type checkoutRequest struct {
	DiscountCode string `json:"discount_code,omitempty" validate:"omitempty,max=64"`
	PointsCents  int    `json:"points_cents,omitempty" validate:"omitempty,min=0"`
	SuccessURL   string `json:"success_url" validate:"required,url"`
	CancelURL    string `json:"cancel_url" validate:"required,url"`
}
