package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
)

func TestDeduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	productA := uuid.New()
	productB := uuid.New()

	for _, level := range []models.InventoryLevel{
		{ProductID: productA, AvailableQty: 5},
		{ProductID: productB, AvailableQty: 1},
	} {
		if err := db.Create(&level).Error; err != nil {
			t.Fatalf("seed inventory: %v", err)
		}
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return Deduct(ctx, tx, []DeductionRequest{
			{ProductID: productA, Qty: 3},
			{ProductID: productB, Qty: 1},
		})
	})
	if err != nil {
		t.Fatalf("deduct transaction: %v", err)
	}

	var levelA, levelB models.InventoryLevel
	if err := db.First(&levelA, "product_id = ?", productA).Error; err != nil {
		t.Fatalf("load level a: %v", err)
	}
	if err := db.First(&levelB, "product_id = ?", productB).Error; err != nil {
		t.Fatalf("load level b: %v", err)
	}
	if levelA.AvailableQty != 2 {
		t.Fatalf("unexpected level a state: %+v", levelA)
	}
	if levelB.AvailableQty != 0 {
		t.Fatalf("unexpected level b state: %+v", levelB)
	}
}

func TestDeductInsufficientStockRollsBack(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	productA := uuid.New()
	productB := uuid.New()

	for _, level := range []models.InventoryLevel{
		{ProductID: productA, AvailableQty: 5},
		{ProductID: productB, AvailableQty: 2},
	} {
		if err := db.Create(&level).Error; err != nil {
			t.Fatalf("seed inventory: %v", err)
		}
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return Deduct(ctx, tx, []DeductionRequest{
			{ProductID: productA, Qty: 2},
			{ProductID: productB, Qty: 3},
		})
	})
	if err == nil {
		t.Fatal("expected out of stock error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("unexpected error: %v", err)
	}

	// The partial deduction on product A must have rolled back.
	var levelA models.InventoryLevel
	if err := db.First(&levelA, "product_id = ?", productA).Error; err != nil {
		t.Fatalf("load level a: %v", err)
	}
	if levelA.AvailableQty != 5 {
		t.Fatalf("expected rollback, got %+v", levelA)
	}
}

func TestDeductSequentialExhaustion(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := uuid.New()
	if err := db.Create(&models.InventoryLevel{ProductID: product, AvailableQty: 5}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	// With stock 5 and qty 2, exactly two buyers succeed.
	succeeded := 0
	for i := 0; i < 3; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			return Deduct(ctx, tx, []DeductionRequest{{ProductID: product, Qty: 2}})
		})
		if err == nil {
			succeeded++
			continue
		}
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 2 {
		t.Fatalf("expected 2 successful deductions, got %d", succeeded)
	}

	var level models.InventoryLevel
	if err := db.First(&level, "product_id = ?", product).Error; err != nil {
		t.Fatalf("load level: %v", err)
	}
	if level.AvailableQty != 1 {
		t.Fatalf("unexpected remaining stock: %+v", level)
	}
}

func TestDeductInvalidQty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := uuid.New()
	if err := db.Create(&models.InventoryLevel{ProductID: product, AvailableQty: 5}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	err := Deduct(ctx, db, []DeductionRequest{{ProductID: product, Qty: 0}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.InventoryLevel{}); err != nil {
		t.Fatalf("migrate inventory: %v", err)
	}
	return db
}
