package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ITDevS919/marketplace-backend/pkg/enums"
)

// DiscountCode is a redeemable promotion. UsedCount only moves forward and is
// bounded by UsageLimit through a conditional update.
type DiscountCode struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code             string             `gorm:"column:code;not null;uniqueIndex"`
	Kind             enums.DiscountKind `gorm:"column:kind;type:text;not null"`
	PercentBps       int                `gorm:"column:percent_bps;not null;default:0"`
	AmountCents      int                `gorm:"column:amount_cents;not null;default:0"`
	MinPurchaseCents int                `gorm:"column:min_purchase_cents;not null;default:0"`
	MaxDiscountCents *int               `gorm:"column:max_discount_cents"`
	UsageLimit       *int               `gorm:"column:usage_limit"`
	UsedCount        int                `gorm:"column:used_count;not null;default:0"`
	StartsAt         time.Time          `gorm:"column:starts_at;not null"`
	ExpiresAt        time.Time          `gorm:"column:expires_at;not null"`
	Active           bool               `gorm:"column:active;not null;default:true"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
