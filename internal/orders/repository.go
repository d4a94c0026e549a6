package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ITDevS919/marketplace-backend/internal/repo"
	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	"github.com/ITDevS919/marketplace-backend/pkg/enums"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
)

// Repository persists checkouts and their per-retailer order groups.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a clone bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{Base: repo.NewBase(tx)}
}

// CreateCheckout inserts the checkout parent row.
func (r *Repository) CreateCheckout(ctx context.Context, checkout *models.Checkout) error {
	if err := r.DB(ctx).Create(checkout).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout")
	}
	return nil
}

// CreateGroup inserts an order group with its lines.
func (r *Repository) CreateGroup(ctx context.Context, group *models.OrderGroup) error {
	if err := r.DB(ctx).Create(group).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order group")
	}
	return nil
}

// GetGroup loads an order group with its lines.
func (r *Repository) GetGroup(ctx context.Context, groupID uuid.UUID) (*models.OrderGroup, error) {
	var group models.OrderGroup
	err := r.DB(ctx).Preload("Lines").Where("id = ?", groupID).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order group")
	}
	return &group, nil
}

// GetGroupBySessionRef loads the group a checkout session belongs to.
func (r *Repository) GetGroupBySessionRef(ctx context.Context, sessionRef string) (*models.OrderGroup, error) {
	var group models.OrderGroup
	err := r.DB(ctx).Where("session_ref = ?", sessionRef).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found for session")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order group by session")
	}
	return &group, nil
}

// ListByUser returns the buyer's order groups, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.OrderGroup, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var groups []models.OrderGroup
	err := r.DB(ctx).
		Preload("Lines").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&groups).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders by user")
	}
	return groups, nil
}

// ListByRetailer returns a retailer's order groups, newest first.
func (r *Repository) ListByRetailer(ctx context.Context, retailerID uuid.UUID, limit int) ([]models.OrderGroup, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var groups []models.OrderGroup
	err := r.DB(ctx).
		Preload("Lines").
		Where("retailer_id = ?", retailerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&groups).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders by retailer")
	}
	return groups, nil
}

// ListStaleAwaitingPayment returns groups that created a payment session but
// never saw it settle, for the reconciliation sweep.
func (r *Repository) ListStaleAwaitingPayment(ctx context.Context, cutoff time.Time, limit int) ([]models.OrderGroup, error) {
	if limit <= 0 {
		limit = 50
	}
	var groups []models.OrderGroup
	err := r.DB(ctx).
		Where("session_ref IS NOT NULL AND paid_at IS NULL AND status IN ? AND created_at < ?",
			[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusProcessing}, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&groups).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale order groups")
	}
	return groups, nil
}

// UpdateGroup saves the full group row.
func (r *Repository) UpdateGroup(ctx context.Context, group *models.OrderGroup) error {
	if err := r.DB(ctx).Save(group).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order group")
	}
	return nil
}

// TransitionStatus moves a group's status with an optimistic guard on the
// current value. Zero affected rows means a concurrent writer got there
// first.
func (r *Repository) TransitionStatus(ctx context.Context, groupID uuid.UUID, from, to enums.OrderStatus) error {
	updates := map[string]any{"status": to}
	if to == enums.OrderStatusCancelled {
		updates["canceled_at"] = time.Now().UTC()
	}
	result := r.DB(ctx).Model(&models.OrderGroup{}).
		Where("id = ? AND status = ?", groupID, from).
		Updates(updates)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "transition order status")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
	}
	return nil
}
