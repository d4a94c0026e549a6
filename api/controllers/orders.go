package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ITDevS919/marketplace-backend/api/responses"
	"github.com/ITDevS919/marketplace-backend/api/validators"
	ordersvc "github.com/ITDevS919/marketplace-backend/internal/orders"
	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	"github.com/ITDevS919/marketplace-backend/pkg/enums"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
	"github.com/ITDevS919/marketplace-backend/pkg/logger"
)

const (
	defaultOrderListLimit = 50
	maxOrderListLimit     = 200
)

// OrderList returns the buyer's order groups, newest first.
func OrderList(svc *ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultOrderListLimit, 1, maxOrderListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groups, err := svc.ListForUser(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderListResponse(groups))
	}
}

// OrderDetail returns one of the buyer's order groups with its lines.
func OrderDetail(svc *ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groupID, err := parseUUID("orderId", chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		group, err := svc.GetForUser(r.Context(), userID, groupID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderGroupResponse(group))
	}
}

// RetailerOrderList returns the order groups addressed to the caller's
// retailer.
func RetailerOrderList(svc *ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		retailerID, err := retailerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultOrderListLimit, 1, maxOrderListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groups, err := svc.ListForRetailer(r.Context(), retailerID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderListResponse(groups))
	}
}

// RetailerOrderStatusUpdate advances one order group along its fulfilment
// lifecycle. Backward moves and transitions out of a terminal state are
// rejected by the service.
func RetailerOrderStatusUpdate(svc *ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		retailerID, err := retailerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groupID, err := parseUUID("orderId", chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload orderStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		group, err := svc.UpdateStatus(r.Context(), retailerID, groupID, enums.OrderStatus(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderGroupResponse(group))
	}
}

type orderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type orderGroupResponse struct {
	OrderGroupID      uuid.UUID            `json:"order_group_id"`
	CheckoutID        uuid.UUID            `json:"checkout_id"`
	RetailerID        uuid.UUID            `json:"retailer_id"`
	Status            string               `json:"status"`
	SubtotalCents     int                  `json:"subtotal_cents"`
	DiscountCents     int                  `json:"discount_cents"`
	PointsUsedCents   int                  `json:"points_used_cents"`
	PointsEarned      int                  `json:"points_earned"`
	TotalCents        int                  `json:"total_cents"`
	CommissionRateBps int                  `json:"commission_rate_bps"`
	CommissionCents   int                  `json:"commission_cents"`
	RetailerNetCents  int                  `json:"retailer_net_cents"`
	Warnings          []enums.OrderWarning `json:"warnings,omitempty"`
	PaidAt            *time.Time           `json:"paid_at,omitempty"`
	CanceledAt        *time.Time           `json:"canceled_at,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	Lines             []orderLineResponse  `json:"lines,omitempty"`
}

type orderLineResponse struct {
	LineID         uuid.UUID `json:"line_id"`
	ProductID      uuid.UUID `json:"product_id"`
	Qty            int       `json:"qty"`
	UnitPriceCents int       `json:"unit_price_cents"`
	SubtotalCents  int       `json:"subtotal_cents"`
}

func newOrderGroupResponse(group *models.OrderGroup) orderGroupResponse {
	if group == nil {
		return orderGroupResponse{}
	}
	lines := make([]orderLineResponse, 0, len(group.Lines))
	for _, line := range group.Lines {
		lines = append(lines, orderLineResponse{
			LineID:         line.ID,
			ProductID:      line.ProductID,
			Qty:            line.Qty,
			UnitPriceCents: line.UnitPriceCents,
			SubtotalCents:  line.SubtotalCents(),
		})
	}
	return orderGroupResponse{
		OrderGroupID:      group.ID,
		CheckoutID:        group.CheckoutID,
		RetailerID:        group.RetailerID,
		Status:            string(group.Status),
		SubtotalCents:     group.SubtotalCents,
		DiscountCents:     group.DiscountCents,
		PointsUsedCents:   group.PointsUsedCents,
		PointsEarned:      group.PointsEarned,
		TotalCents:        group.TotalCents,
		CommissionRateBps: group.CommissionRateBps,
		CommissionCents:   group.CommissionCents,
		RetailerNetCents:  group.RetailerNetCents,
		Warnings:          group.Warnings,
		PaidAt:            group.PaidAt,
		CanceledAt:        group.CanceledAt,
		CreatedAt:         group.CreatedAt,
		Lines:             lines,
	}
}

func newOrderListResponse(groups []models.OrderGroup) []orderGroupResponse {
	out := make([]orderGroupResponse, 0, len(groups))
	for i := range groups {
		out = append(out, newOrderGroupResponse(&groups[i]))
	}
	return out
}
