package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
)

// DeductionRequest asks for qty units of a product to be taken from stock.
type DeductionRequest struct {
	ProductID uuid.UUID
	Qty       int
}

// Deduct decrements stock for every request inside the supplied transaction.
// Each decrement is conditional on available_qty >= qty, so a concurrent
// checkout that loses the race observes zero affected rows and the whole
// transaction rolls back with OutOfStock. Stock never goes negative.
func Deduct(ctx context.Context, tx *gorm.DB, requests []DeductionRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	for _, request := range requests {
		if request.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if request.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "deduction qty must be positive")
		}

		result := tx.WithContext(ctx).
			Model(&models.InventoryLevel{}).
			Where("product_id = ? AND available_qty >= ?", request.ProductID, request.Qty).
			UpdateColumn("available_qty", gorm.Expr("available_qty - ?", request.Qty))
		if result.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "deduct inventory")
		}
		if result.RowsAffected == 0 {
			available, err := availableQty(ctx, tx, request.ProductID)
			if err != nil {
				return err
			}
			return OutOfStock(request.ProductID, available, request.Qty)
		}
	}
	return nil
}

// OutOfStock builds the canonical stock-exhaustion error for a product.
func OutOfStock(productID uuid.UUID, available, requested int) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").WithDetails(map[string]any{
		"product_id": productID.String(),
		"available":  available,
		"requested":  requested,
	})
}

func availableQty(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (int, error) {
	var level models.InventoryLevel
	err := tx.WithContext(ctx).
		Where("product_id = ?", productID).
		First(&level).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory level")
	}
	return level.AvailableQty, nil
}
