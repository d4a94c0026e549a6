package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ITDevS919/marketplace-backend/pkg/enums"
	"github.com/ITDevS919/marketplace-backend/pkg/types"
)

// OrderGroup is one retailer's slice of a multi-retailer checkout. Monetary
// fields are immutable snapshots: totals are fixed at checkout commit,
// commission and retailer net are stamped when the payment settles and are
// never recomputed afterwards.
type OrderGroup struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CheckoutID        uuid.UUID           `gorm:"column:checkout_id;type:uuid;not null;index"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	RetailerID        uuid.UUID           `gorm:"column:retailer_id;type:uuid;not null;index"`
	Status            enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	SubtotalCents     int                 `gorm:"column:subtotal_cents;not null"`
	DiscountCents     int                 `gorm:"column:discount_cents;not null;default:0"`
	PointsUsedCents   int                 `gorm:"column:points_used_cents;not null;default:0"`
	PointsEarned      int                 `gorm:"column:points_earned;not null;default:0"`
	TotalCents        int                 `gorm:"column:total_cents;not null"`
	CommissionRateBps int                 `gorm:"column:commission_rate_bps;not null;default:0"`
	CommissionCents   int                 `gorm:"column:commission_cents;not null;default:0"`
	RetailerNetCents  int                 `gorm:"column:retailer_net_cents;not null;default:0"`
	SessionRef        *string             `gorm:"column:session_ref;uniqueIndex"`
	PaymentRef        *string             `gorm:"column:payment_ref;uniqueIndex"`
	Warnings          types.OrderWarnings `gorm:"column:warnings;type:jsonb;serializer:json"`
	PaidAt            *time.Time          `gorm:"column:paid_at"`
	CanceledAt        *time.Time          `gorm:"column:canceled_at"`
	Lines             []OrderLine         `gorm:"foreignKey:OrderGroupID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Settled reports whether the group's payment has been confirmed and its
// retailer net counts toward the payout balance.
func (o *OrderGroup) Settled() bool {
	return o != nil && o.PaidAt != nil && o.Status != enums.OrderStatusCancelled
}
