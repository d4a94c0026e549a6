package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ITDevS919/marketplace-backend/internal/repo"
	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
)

// Repository manages a buyer's cart lines.
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

// List returns the buyer's cart lines in insertion order.
func (r *Repository) List(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.DB(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&lines).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart lines")
	}
	return lines, nil
}

// Put sets the quantity for a product, inserting the line when missing. A
// cart holds at most one line per product.
func (r *Repository) Put(ctx context.Context, userID, productID uuid.UUID, qty int) (*models.CartLine, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}

	var line models.CartLine
	err := r.DB(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&line).Error
	switch {
	case err == nil:
		line.Qty = qty
		if err := r.DB(ctx).Model(&line).UpdateColumn("qty", qty).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
		}
		return &line, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		line = models.CartLine{UserID: userID, ProductID: productID, Qty: qty}
		if err := r.DB(ctx).Create(&line).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
		}
		return &line, nil
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}
}

// Remove deletes one of the buyer's lines. Removing a line that is not there
// is not an error.
func (r *Repository) Remove(ctx context.Context, userID, lineID uuid.UUID) error {
	err := r.DB(ctx).
		Where("id = ? AND user_id = ?", lineID, userID).
		Delete(&models.CartLine{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
	}
	return nil
}

// Clear removes every line for the buyer. Called when the checkout that
// consumed the cart commits.
func (r *Repository) Clear(ctx context.Context, userID uuid.UUID) error {
	err := r.DB(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartLine{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}
