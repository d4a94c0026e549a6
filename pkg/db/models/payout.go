package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ITDevS919/marketplace-backend/pkg/enums"
)

// Payout records a retailer's request to move settled earnings to their
// destination account. BaseAmountCents is the requested amount converted to
// the base currency at request time; the balance check and all aggregates use
// it so mixed-currency requests compare consistently.
type Payout struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RetailerID      uuid.UUID          `gorm:"column:retailer_id;type:uuid;not null;index"`
	AmountCents     int                `gorm:"column:amount_cents;not null"`
	Currency        enums.Currency     `gorm:"column:currency;type:text;not null"`
	BaseAmountCents int                `gorm:"column:base_amount_cents;not null"`
	Status          enums.PayoutStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	TransferRef     *string            `gorm:"column:transfer_ref"`
	Notes           *string            `gorm:"column:notes"`
	FailureReason   *string            `gorm:"column:failure_reason"`
	CompletedAt     *time.Time         `gorm:"column:completed_at"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
