package models

import (
	"time"

	"github.com/google/uuid"
)

// Checkout links one buyer submission to the per-retailer order groups it
// produced.
type Checkout struct {
	ID          uuid.UUID    `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID    `gorm:"column:user_id;type:uuid;not null;index"`
	OrderGroups []OrderGroup `gorm:"foreignKey:CheckoutID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time    `gorm:"column:created_at;autoCreateTime"`
}
