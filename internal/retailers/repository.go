package retailers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ITDevS919/marketplace-backend/internal/repo"
	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
)

// Repository reads retailers and their payout account eligibility.
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

// GetByID loads a retailer.
func (r *Repository) GetByID(ctx context.Context, retailerID uuid.UUID) (*models.Retailer, error) {
	var retailer models.Retailer
	err := r.DB(ctx).Where("id = ?", retailerID).First(&retailer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "retailer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load retailer")
	}
	return &retailer, nil
}

// LockForUpdate loads a retailer row under SELECT ... FOR UPDATE, serializing
// concurrent payout requests for the same retailer.
func (r *Repository) LockForUpdate(ctx context.Context, tx *gorm.DB, retailerID uuid.UUID) (*models.Retailer, error) {
	query := tx.WithContext(ctx)
	// sqlite has no row locks; its transactions serialize writes anyway.
	if tx.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var retailer models.Retailer
	err := query.Where("id = ?", retailerID).First(&retailer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "retailer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock retailer")
	}
	return &retailer, nil
}

// PayoutAccount returns the retailer's payout account, nil when onboarding
// has not started.
func (r *Repository) PayoutAccount(ctx context.Context, retailerID uuid.UUID) (*models.PayoutAccount, error) {
	var account models.PayoutAccount
	err := r.DB(ctx).Where("retailer_id = ?", retailerID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout account")
	}
	return &account, nil
}

// PayoutAccountByProviderRef looks an account up by the processor's account
// id, for account.updated webhooks.
func (r *Repository) PayoutAccountByProviderRef(ctx context.Context, providerAccountID string) (*models.PayoutAccount, error) {
	var account models.PayoutAccount
	err := r.DB(ctx).Where("provider_account_id = ?", providerAccountID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout account")
	}
	return &account, nil
}

// UpdateEligibility overwrites the capability flags reported by the payment
// processor. Nothing else on the account moves here.
func (r *Repository) UpdateEligibility(ctx context.Context, providerAccountID string, chargesEnabled, payoutsEnabled, detailsSubmitted bool) error {
	result := r.DB(ctx).Model(&models.PayoutAccount{}).
		Where("provider_account_id = ?", providerAccountID).
		Updates(map[string]any{
			"charges_enabled":   chargesEnabled,
			"payouts_enabled":   payoutsEnabled,
			"details_submitted": detailsSubmitted,
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "update payout account eligibility")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payout account not found")
	}
	return nil
}
