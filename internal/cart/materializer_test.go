package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.CartLine{}, &models.Product{}, &models.InventoryLevel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, retailerID uuid.UUID, priceCents, stock int) models.Product {
	t.Helper()
	product := models.Product{
		ID:         uuid.New(),
		RetailerID: retailerID,
		Title:      "product",
		PriceCents: priceCents,
		Active:     true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if err := db.Create(&models.InventoryLevel{ProductID: product.ID, AvailableQty: stock}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return product
}

func addLine(t *testing.T, db *gorm.DB, userID uuid.UUID, productID uuid.UUID, qty int, at time.Time) {
	t.Helper()
	line := models.CartLine{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		Qty:       qty,
		CreatedAt: at,
	}
	if err := db.Create(&line).Error; err != nil {
		t.Fatalf("seed cart line: %v", err)
	}
}

func TestMaterializeGroupsByRetailer(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	user := uuid.New()
	retailerA := uuid.New()
	retailerB := uuid.New()

	// Retailer A appears first in the cart, so its group comes first.
	productA1 := seedProduct(t, db, retailerA, 1000, 10)
	productB1 := seedProduct(t, db, retailerB, 250, 10)
	productA2 := seedProduct(t, db, retailerA, 500, 10)

	base := time.Now().Add(-time.Minute)
	addLine(t, db, user, productA1.ID, 1, base)
	addLine(t, db, user, productB1.ID, 1, base.Add(time.Second))
	addLine(t, db, user, productA2.ID, 2, base.Add(2*time.Second))

	materialized, err := Materialize(ctx, db, user)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}

	if len(materialized.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(materialized.Groups))
	}
	if materialized.Groups[0].RetailerID != retailerA {
		t.Fatalf("expected retailer A first, got %v", materialized.Groups[0].RetailerID)
	}
	if materialized.Groups[0].SubtotalCents != 2000 {
		t.Fatalf("unexpected group A subtotal: %d", materialized.Groups[0].SubtotalCents)
	}
	if materialized.Groups[1].SubtotalCents != 250 {
		t.Fatalf("unexpected group B subtotal: %d", materialized.Groups[1].SubtotalCents)
	}
	if materialized.SubtotalCents != 2250 {
		t.Fatalf("unexpected cart subtotal: %d", materialized.SubtotalCents)
	}
}

func TestMaterializePriceFrozenAtReadTime(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	user := uuid.New()
	product := seedProduct(t, db, uuid.New(), 1000, 5)
	addLine(t, db, user, product.ID, 1, time.Now())

	materialized, err := Materialize(ctx, db, user)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}

	// A later catalog price change does not touch the snapshot.
	if err := db.Model(&models.Product{}).Where("id = ?", product.ID).UpdateColumn("price_cents", 9999).Error; err != nil {
		t.Fatalf("update price: %v", err)
	}
	if materialized.Groups[0].Lines[0].UnitPriceCents != 1000 {
		t.Fatalf("price not frozen: %+v", materialized.Groups[0].Lines[0])
	}
}

func TestMaterializeOutOfStockAbortsWholeCart(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	user := uuid.New()
	inStock := seedProduct(t, db, uuid.New(), 1000, 10)
	scarce := seedProduct(t, db, uuid.New(), 500, 1)

	addLine(t, db, user, inStock.ID, 1, time.Now())
	addLine(t, db, user, scarce.ID, 3, time.Now().Add(time.Second))

	_, err := Materialize(ctx, db, user)
	if err == nil {
		t.Fatal("expected out of stock")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMaterializeEmptyCart(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	_, err := Materialize(context.Background(), db, uuid.New())
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMaterializeInactiveProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	user := uuid.New()
	product := seedProduct(t, db, uuid.New(), 1000, 5)
	if err := db.Model(&models.Product{}).Where("id = ?", product.ID).UpdateColumn("active", false).Error; err != nil {
		t.Fatalf("deactivate product: %v", err)
	}
	addLine(t, db, user, product.ID, 1, time.Now())

	_, err := Materialize(ctx, db, user)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeductionsMergedAcrossGroups(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	m := &Materialized{
		Groups: []Group{
			{Lines: []Line{{ProductID: productID, Qty: 2}}},
			{Lines: []Line{{ProductID: productID, Qty: 3}}},
		},
	}
	requests := m.Deductions()
	if len(requests) != 1 {
		t.Fatalf("expected merged request, got %d", len(requests))
	}
	if requests[0].Qty != 5 {
		t.Fatalf("unexpected merged qty: %+v", requests[0])
	}
}
