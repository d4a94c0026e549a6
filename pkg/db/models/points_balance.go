package models

import (
	"time"

	"github.com/google/uuid"
)

// PointsBalance is the per-buyer cashback balance. One point redeems for one
// cent. Balance is debited only with a conditional update so it never drops
// below zero.
type PointsBalance struct {
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Balance       int       `gorm:"column:balance;not null;default:0"`
	TotalEarned   int       `gorm:"column:total_earned;not null;default:0"`
	TotalRedeemed int       `gorm:"column:total_redeemed;not null;default:0"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
