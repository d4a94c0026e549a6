package settlement

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/ITDevS919/marketplace-backend/internal/commission"
	"github.com/ITDevS919/marketplace-backend/internal/orders"
	"github.com/ITDevS919/marketplace-backend/internal/retailers"
	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	"github.com/ITDevS919/marketplace-backend/pkg/enums"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
	"github.com/ITDevS919/marketplace-backend/pkg/logger"
	"github.com/ITDevS919/marketplace-backend/pkg/metrics"
	"github.com/ITDevS919/marketplace-backend/pkg/payments"
)

// Service applies payment processor events to the order ledger. Settlement is
// a pure overwrite of the derived fields keyed by the payment reference, so
// replaying an event produces the same row it produced the first time.
type Service struct {
	orders     *orders.Repository
	retailers  *retailers.Repository
	commission *commission.Repository
	metrics    *metrics.WebhookMetrics
	logg       *logger.Logger
}

type ServiceParams struct {
	Orders     *orders.Repository
	Retailers  *retailers.Repository
	Commission *commission.Repository
	Metrics    *metrics.WebhookMetrics
	Logger     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Orders == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository is required")
	case params.Retailers == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "retailers repository is required")
	case params.Commission == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commission repository is required")
	case params.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	return &Service{
		orders:     params.Orders,
		retailers:  params.Retailers,
		commission: params.Commission,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

// HandleEvent dispatches one verified processor event. Unknown event types
// are acknowledged without effect so the processor stops retrying them.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event data required")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID,
		"event_type": string(event.Type),
	})

	var err error
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		err = s.handleSessionCompleted(logCtx, event)
	case stripe.EventTypePaymentIntentSucceeded:
		err = s.handlePaymentSucceeded(logCtx, event)
	case stripe.EventTypeAccountUpdated:
		err = s.handleAccountUpdated(logCtx, event)
	default:
		s.logg.Info(logCtx, "ignoring unhandled event type")
		return nil
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncRejected("handler_error")
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.IncProcessed(string(event.Type))
	}
	return nil
}

func (s *Service) handleSessionCompleted(ctx context.Context, event *stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session payload")
	}
	if session.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id missing from payload")
	}

	group, err := s.orders.GetGroupBySessionRef(ctx, session.ID)
	if err != nil {
		return err
	}

	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		ref := session.PaymentIntent.ID
		group.PaymentRef = &ref
	}
	if group.Status == enums.OrderStatusPending {
		group.Status = enums.OrderStatusProcessing
	}
	if err := s.orders.UpdateGroup(ctx, group); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "order_group_id", group.ID.String()), "checkout session completed")
	return nil
}

func (s *Service) handlePaymentSucceeded(ctx context.Context, event *stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent payload")
	}
	if intent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing from payload")
	}

	group, err := s.findGroupForIntent(ctx, &intent)
	if err != nil {
		return err
	}
	return s.settle(ctx, group, intent.ID)
}

func (s *Service) handleAccountUpdated(ctx context.Context, event *stripe.Event) error {
	var account stripe.Account
	if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode account payload")
	}
	if account.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "account id missing from payload")
	}

	err := s.retailers.UpdateEligibility(ctx, account.ID, account.ChargesEnabled, account.PayoutsEnabled, account.DetailsSubmitted)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			// Accounts we never onboarded are none of our business.
			s.logg.Info(ctx, "account update for unknown payout account ignored")
			return nil
		}
		return err
	}
	return nil
}

// SettleFromSession applies the settlement transition from a polled session
// instead of a webhook. Used by the reconciliation sweep when a
// payment-succeeded delivery was lost.
func (s *Service) SettleFromSession(ctx context.Context, groupID uuid.UUID, session *payments.CheckoutSession) error {
	if session == nil || !session.Paid {
		return nil
	}
	group, err := s.orders.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	paymentRef := session.PaymentRef
	if paymentRef == "" {
		paymentRef = session.ID
	}
	return s.settle(ctx, group, paymentRef)
}

// settle overwrites the group's derived settlement fields keyed by the
// payment reference. Running it twice with the same reference leaves the row
// unchanged the second time, except that PaidAt keeps its first value.
func (s *Service) settle(ctx context.Context, group *models.OrderGroup, paymentRef string) error {
	if group.Status == enums.OrderStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot settle a cancelled order")
	}

	setting, err := s.commission.Latest(ctx)
	if err != nil {
		return err
	}

	group.PaymentRef = &paymentRef
	group.CommissionRateBps = setting.RateBps
	group.CommissionCents = commission.Fee(group.TotalCents, setting.RateBps)
	group.RetailerNetCents = group.TotalCents - group.CommissionCents
	if group.PaidAt == nil {
		now := time.Now().UTC()
		group.PaidAt = &now
	}
	if group.Status == enums.OrderStatusPending {
		group.Status = enums.OrderStatusProcessing
	}

	if err := s.orders.UpdateGroup(ctx, group); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_group_id": group.ID.String(),
		"payment_ref":    paymentRef,
	}), "order settled")
	return nil
}

func (s *Service) findGroupForIntent(ctx context.Context, intent *stripe.PaymentIntent) (*models.OrderGroup, error) {
	if raw, ok := intent.Metadata["order_group_id"]; ok && raw != "" {
		groupID, err := uuid.Parse(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse order group id metadata")
		}
		return s.orders.GetGroup(ctx, groupID)
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent carries no order group reference")
}
