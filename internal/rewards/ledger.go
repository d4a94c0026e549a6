package rewards

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ITDevS919/marketplace-backend/internal/repo"
	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	"github.com/ITDevS919/marketplace-backend/pkg/enums"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
)

// Ledger maintains buyer points balances. Every movement writes an
// append-only PointsTransaction next to the balance mutation, so the balance
// is always reconstructable from the transaction log.
type Ledger struct {
	repo.Base
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{Base: repo.NewBase(db)}
}

// WithTx returns a clone bound to the supplied transaction.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	if tx == nil {
		return l
	}
	return &Ledger{Base: repo.NewBase(tx)}
}

// Balance returns the buyer's points balance, zero-valued when the buyer has
// never earned points.
func (l *Ledger) Balance(ctx context.Context, userID uuid.UUID) (*models.PointsBalance, error) {
	var balance models.PointsBalance
	err := l.DB(ctx).Where("user_id = ?", userID).First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.PointsBalance{UserID: userID}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load points balance")
	}
	return &balance, nil
}

// Accrue credits earned points, creating the balance row on first earn.
func (l *Ledger) Accrue(ctx context.Context, userID uuid.UUID, orderGroupID *uuid.UUID, amount int) error {
	if amount <= 0 {
		return nil
	}
	db := l.DB(ctx)

	result := db.Model(&models.PointsBalance{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"balance":      gorm.Expr("balance + ?", amount),
			"total_earned": gorm.Expr("total_earned + ?", amount),
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "credit points balance")
	}
	if result.RowsAffected == 0 {
		created := models.PointsBalance{UserID: userID, Balance: amount, TotalEarned: amount}
		if err := db.Create(&created).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create points balance")
		}
	}

	return l.record(ctx, userID, orderGroupID, enums.PointsTransactionEarned, amount)
}

// Redeem debits points with a conditional update so the balance cannot go
// negative. Zero affected rows means the buyer no longer has the points.
func (l *Ledger) Redeem(ctx context.Context, userID uuid.UUID, orderGroupID *uuid.UUID, amount int) error {
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "redeem amount must be positive")
	}

	result := l.DB(ctx).Model(&models.PointsBalance{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]any{
			"balance":        gorm.Expr("balance - ?", amount),
			"total_redeemed": gorm.Expr("total_redeemed + ?", amount),
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "debit points balance")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "not enough points").WithDetails(map[string]any{
			"requested": amount,
		})
	}

	return l.record(ctx, userID, orderGroupID, enums.PointsTransactionRedeemed, amount)
}

func (l *Ledger) record(ctx context.Context, userID uuid.UUID, orderGroupID *uuid.UUID, kind enums.PointsTransactionKind, amount int) error {
	entry := models.PointsTransaction{
		UserID:       userID,
		OrderGroupID: orderGroupID,
		Kind:         kind,
		Amount:       amount,
	}
	if err := l.DB(ctx).Create(&entry).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record points transaction")
	}
	return nil
}

// History returns the buyer's points movements, newest first.
func (l *Ledger) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.PointsTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var entries []models.PointsTransaction
	err := l.DB(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load points history")
	}
	return entries, nil
}
