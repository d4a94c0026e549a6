package orders

import (
	"context"

	"github.com/google/uuid"

	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	"github.com/ITDevS919/marketplace-backend/pkg/enums"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
	"github.com/ITDevS919/marketplace-backend/pkg/logger"
)

// Service exposes order reads and the retailer-driven status transitions.
type Service struct {
	repo *Repository
	logg *logger.Logger
}

type ServiceParams struct {
	Repo   *Repository
	Logger *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	return &Service{repo: params.Repo, logg: params.Logger}, nil
}

// GetForUser returns an order group owned by the buyer.
func (s *Service) GetForUser(ctx context.Context, userID, groupID uuid.UUID) (*models.OrderGroup, error) {
	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return group, nil
}

// ListForUser returns the buyer's orders.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.OrderGroup, error) {
	return s.repo.ListByUser(ctx, userID, limit)
}

// ListForRetailer returns the retailer's orders.
func (s *Service) ListForRetailer(ctx context.Context, retailerID uuid.UUID, limit int) ([]models.OrderGroup, error) {
	return s.repo.ListByRetailer(ctx, retailerID, limit)
}

// UpdateStatus applies a retailer-requested status change. Transitions only
// move forward through the fulfilment progression; cancellation is allowed
// while the group is still pending. The write carries an optimistic guard on
// the status read here, so concurrent updates cannot leapfrog each other.
func (s *Service) UpdateStatus(ctx context.Context, retailerID, groupID uuid.UUID, next enums.OrderStatus) (*models.OrderGroup, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").WithDetails(map[string]any{
			"status": next.String(),
		})
	}

	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.RetailerID != retailerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !group.Status.CanTransitionTo(next) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "status transition disallowed").WithDetails(map[string]any{
			"from": group.Status.String(),
			"to":   next.String(),
		})
	}

	if err := s.repo.TransitionStatus(ctx, groupID, group.Status, next); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_group_id": groupID.String(),
		"from":           group.Status.String(),
		"to":             next.String(),
	})
	s.logg.Info(logCtx, "order status updated")

	return s.repo.GetGroup(ctx, groupID)
}
