package payouts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ITDevS919/marketplace-backend/internal/repo"
	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	"github.com/ITDevS919/marketplace-backend/pkg/enums"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
)

// Repository persists payouts and aggregates the balances they draw from.
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

// Create inserts a payout row.
func (r *Repository) Create(ctx context.Context, payout *models.Payout) error {
	if err := r.DB(ctx).Create(payout).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
	}
	return nil
}

// Update saves the full payout row.
func (r *Repository) Update(ctx context.Context, payout *models.Payout) error {
	if err := r.DB(ctx).Save(payout).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payout")
	}
	return nil
}

// ListByRetailer returns the retailer's payouts, newest first.
func (r *Repository) ListByRetailer(ctx context.Context, retailerID uuid.UUID, limit int) ([]models.Payout, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var payouts []models.Payout
	err := r.DB(ctx).
		Where("retailer_id = ?", retailerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&payouts).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	return payouts, nil
}

// SumSettledNet totals the retailer-net of every settled, non-cancelled order
// group.
func (r *Repository) SumSettledNet(ctx context.Context, retailerID uuid.UUID) (int, error) {
	var total int
	err := r.DB(ctx).Model(&models.OrderGroup{}).
		Select("COALESCE(SUM(retailer_net_cents), 0)").
		Where("retailer_id = ? AND paid_at IS NOT NULL AND status <> ?", retailerID, enums.OrderStatusCancelled).
		Scan(&total).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum settled retailer net")
	}
	return total, nil
}

// SumByStatuses totals base-currency payout amounts in the given statuses.
func (r *Repository) SumByStatuses(ctx context.Context, retailerID uuid.UUID, statuses ...enums.PayoutStatus) (int, error) {
	var total int
	err := r.DB(ctx).Model(&models.Payout{}).
		Select("COALESCE(SUM(base_amount_cents), 0)").
		Where("retailer_id = ? AND status IN ?", retailerID, statuses).
		Scan(&total).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum payouts")
	}
	return total, nil
}
