package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLine is an immutable snapshot of a purchased product. UnitPriceCents is
// frozen at cart-read time so later catalog price changes cannot alter a
// committed order.
type OrderLine struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderGroupID   uuid.UUID `gorm:"column:order_group_id;type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Qty            int       `gorm:"column:qty;not null"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// SubtotalCents returns the line's contribution to the group subtotal.
func (l OrderLine) SubtotalCents() int {
	return l.Qty * l.UnitPriceCents
}
