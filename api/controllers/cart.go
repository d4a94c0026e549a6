package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ITDevS919/marketplace-backend/api/responses"
	"github.com/ITDevS919/marketplace-backend/api/validators"
	cartsvc "github.com/ITDevS919/marketplace-backend/internal/cart"
	"github.com/ITDevS919/marketplace-backend/pkg/db"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
	"github.com/ITDevS919/marketplace-backend/pkg/logger"
)

// CartFetch materializes the buyer's cart into per-retailer groups with
// current prices and availability. An empty cart is a valid empty response,
// not an error.
func CartFetch(repo *cartsvc.Repository, dbc *db.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil || dbc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart repository unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines, err := repo.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(lines) == 0 {
			responses.WriteSuccess(w, newCartResponse(nil))
			return
		}

		materialized, err := cartsvc.Materialize(r.Context(), dbc.DB(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(materialized))
	}
}

// CartPut sets the quantity for one product in the buyer's cart.
func CartPut(repo *cartsvc.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart repository unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartPutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		line, err := repo.Put(r.Context(), userID, payload.ProductID, payload.Qty)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, cartLineResponse{
			CartLineID: line.ID,
			ProductID:  line.ProductID,
			Qty:        line.Qty,
		})
	}
}

// CartRemove drops one line from the buyer's cart.
func CartRemove(repo *cartsvc.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart repository unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lineID, err := parseUUID("lineId", chi.URLParam(r, "lineId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := repo.Remove(r.Context(), userID, lineID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}

// CartClear empties the buyer's cart.
func CartClear(repo *cartsvc.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart repository unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := repo.Clear(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}

type cartPutRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
}

type cartLineResponse struct {
	CartLineID uuid.UUID `json:"cart_line_id"`
	ProductID  uuid.UUID `json:"product_id"`
	Qty        int       `json:"qty"`
}

type cartGroupResponse struct {
	RetailerID    uuid.UUID          `json:"retailer_id"`
	SubtotalCents int                `json:"subtotal_cents"`
	Lines         []cartItemResponse `json:"lines"`
}

type cartItemResponse struct {
	CartLineID     uuid.UUID `json:"cart_line_id"`
	ProductID      uuid.UUID `json:"product_id"`
	Title          string    `json:"title"`
	Qty            int       `json:"qty"`
	UnitPriceCents int       `json:"unit_price_cents"`
}

type cartResponse struct {
	Groups        []cartGroupResponse `json:"groups"`
	SubtotalCents int                 `json:"subtotal_cents"`
}

func newCartResponse(materialized *cartsvc.Materialized) cartResponse {
	if materialized == nil {
		return cartResponse{Groups: []cartGroupResponse{}}
	}
	groups := make([]cartGroupResponse, 0, len(materialized.Groups))
	for _, group := range materialized.Groups {
		lines := make([]cartItemResponse, 0, len(group.Lines))
		for _, line := range group.Lines {
			lines = append(lines, cartItemResponse{
				CartLineID:     line.CartLineID,
				ProductID:      line.ProductID,
				Title:          line.Title,
				Qty:            line.Qty,
				UnitPriceCents: line.UnitPriceCents,
			})
		}
		groups = append(groups, cartGroupResponse{
			RetailerID:    group.RetailerID,
			SubtotalCents: group.SubtotalCents,
			Lines:         lines,
		})
	}
	return cartResponse{
		Groups:        groups,
		SubtotalCents: materialized.SubtotalCents,
	}
}
