package commission

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ITDevS919/marketplace-backend/internal/repo"
	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
)

const rateDenominatorBps = 10_000

// Repository reads the versioned platform commission rate. Settings are
// append-only; callers read the latest version exactly once per operation and
// stamp it onto the derived record, so later rate changes never rewrite
// history.
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

// Latest returns the highest-version commission setting.
func (r *Repository) Latest(ctx context.Context) (*models.CommissionSetting, error) {
	var setting models.CommissionSetting
	err := r.DB(ctx).Order("version DESC").First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "no commission setting configured")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load commission setting")
	}
	return &setting, nil
}

// Publish appends a new setting at the next version.
func (r *Repository) Publish(ctx context.Context, rateBps int) (*models.CommissionSetting, error) {
	if rateBps < 0 || rateBps > rateDenominatorBps {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rate out of range")
	}
	var maxVersion int
	err := r.DB(ctx).Model(&models.CommissionSetting{}).
		Select("COALESCE(MAX(version), 0)").
		Scan(&maxVersion).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read commission version")
	}
	setting := models.CommissionSetting{RateBps: rateBps, Version: maxVersion + 1}
	if err := r.DB(ctx).Create(&setting).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish commission setting")
	}
	return &setting, nil
}

// Fee computes the platform cut of a total at the given rate, truncated to
// whole cents.
func Fee(totalCents, rateBps int) int {
	if totalCents <= 0 || rateBps <= 0 {
		return 0
	}
	return totalCents * rateBps / rateDenominatorBps
}
