package promotion

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ITDevS919/marketplace-backend/internal/repo"
	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
)

// Repository reads discount codes and claims their usage slots.
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

// FindByCode looks a code up case-insensitively.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code required")
	}
	var record models.DiscountCode
	err := r.DB(ctx).Where("LOWER(code) = LOWER(?)", trimmed).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodePromotionInvalid, "unknown discount code").WithDetails(map[string]any{
				"code": trimmed,
			})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount code")
	}
	return &record, nil
}

// ConsumeUsage claims one usage slot with a conditional increment. The guard
// re-checks the cap at write time, so two racing checkouts on a
// usage_limit=1 code cannot both succeed.
func (r *Repository) ConsumeUsage(ctx context.Context, codeID uuid.UUID) error {
	result := r.DB(ctx).
		Model(&models.DiscountCode{}).
		Where("id = ? AND active AND (usage_limit IS NULL OR used_count < usage_limit)", codeID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "consume discount usage")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodePromotionInvalid, "usage limit reached").WithDetails(map[string]any{
			"discount_code_id": codeID.String(),
		})
	}
	return nil
}
