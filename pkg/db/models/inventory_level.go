package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryLevel tracks sellable stock for a product. AvailableQty is only
// ever decremented with a conditional update inside the order transaction, so
// it can never go negative.
type InventoryLevel struct {
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
