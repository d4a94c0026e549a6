package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the sellable catalog entry. Catalog editing happens in a separate
// admin surface; the checkout pipeline only reads price and retailer here.
type Product struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RetailerID uuid.UUID `gorm:"column:retailer_id;type:uuid;not null;index"`
	Title      string    `gorm:"column:title;not null"`
	PriceCents int       `gorm:"column:price_cents;not null"`
	Active     bool      `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
