package cart

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ITDevS919/marketplace-backend/internal/inventory"
	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
)

// Line is a cart entry with its price frozen at read time.
type Line struct {
	CartLineID     uuid.UUID
	ProductID      uuid.UUID
	Title          string
	Qty            int
	UnitPriceCents int
}

// Group is one retailer's share of the materialized cart.
type Group struct {
	RetailerID    uuid.UUID
	Lines         []Line
	SubtotalCents int
}

// Materialized is a cart resolved into per-retailer groups, ready for the
// checkout transaction.
type Materialized struct {
	Groups        []Group
	SubtotalCents int
}

// Materialize loads the buyer's cart, freezes catalog prices, verifies stock
// against the current snapshot and groups the lines by retailer. Groups are
// ordered by each retailer's first appearance in the cart, which also fixes
// how discount shares are assigned later.
//
// The stock check here is advisory; the conditional decrement inside the
// checkout transaction is what actually guards against concurrent buyers.
func Materialize(ctx context.Context, db *gorm.DB, userID uuid.UUID) (*Materialized, error) {
	var cartLines []models.CartLine
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&cartLines).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart lines")
	}
	if len(cartLines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	productIDs := make([]uuid.UUID, 0, len(cartLines))
	for _, line := range cartLines {
		productIDs = append(productIDs, line.ProductID)
	}

	var products []models.Product
	if err := db.WithContext(ctx).Where("id IN ?", productIDs).Find(&products).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	productByID := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		productByID[product.ID] = product
	}

	var levels []models.InventoryLevel
	if err := db.WithContext(ctx).Where("product_id IN ?", productIDs).Find(&levels).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory levels")
	}
	availableByProduct := make(map[uuid.UUID]int, len(levels))
	for _, level := range levels {
		availableByProduct[level.ProductID] = level.AvailableQty
	}

	groupByRetailer := make(map[uuid.UUID]*Group)
	order := make([]uuid.UUID, 0)
	result := &Materialized{}

	for _, cartLine := range cartLines {
		product, ok := productByID[cartLine.ProductID]
		if !ok || !product.Active {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product unavailable").WithDetails(map[string]any{
				"product_id": cartLine.ProductID.String(),
			})
		}
		if available := availableByProduct[cartLine.ProductID]; cartLine.Qty > available {
			return nil, inventory.OutOfStock(cartLine.ProductID, available, cartLine.Qty)
		}

		group, ok := groupByRetailer[product.RetailerID]
		if !ok {
			group = &Group{RetailerID: product.RetailerID}
			groupByRetailer[product.RetailerID] = group
			order = append(order, product.RetailerID)
		}

		line := Line{
			CartLineID:     cartLine.ID,
			ProductID:      product.ID,
			Title:          product.Title,
			Qty:            cartLine.Qty,
			UnitPriceCents: product.PriceCents,
		}
		group.Lines = append(group.Lines, line)
		group.SubtotalCents += line.Qty * line.UnitPriceCents
		result.SubtotalCents += line.Qty * line.UnitPriceCents
	}

	result.Groups = make([]Group, 0, len(order))
	for _, retailerID := range order {
		result.Groups = append(result.Groups, *groupByRetailer[retailerID])
	}
	return result, nil
}

// Deductions converts the materialized cart into the per-product stock
// requests for the checkout transaction, merged across groups.
func (m *Materialized) Deductions() []inventory.DeductionRequest {
	if m == nil {
		return nil
	}
	byProduct := make(map[uuid.UUID]int)
	for _, group := range m.Groups {
		for _, line := range group.Lines {
			byProduct[line.ProductID] += line.Qty
		}
	}
	requests := make([]inventory.DeductionRequest, 0, len(byProduct))
	for productID, qty := range byProduct {
		requests = append(requests, inventory.DeductionRequest{ProductID: productID, Qty: qty})
	}
	// Deterministic order keeps lock acquisition stable across transactions.
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].ProductID.String() < requests[j].ProductID.String()
	})
	return requests
}
