package models

import (
	"time"

	"github.com/google/uuid"
)

// PayoutAccount mirrors the retailer's externally-registered destination
// account. It is written only by onboarding and by account-updated webhooks;
// order state never flows through it.
type PayoutAccount struct {
	RetailerID        uuid.UUID `gorm:"column:retailer_id;type:uuid;primaryKey"`
	ProviderAccountID string    `gorm:"column:provider_account_id;not null;uniqueIndex"`
	ChargesEnabled    bool      `gorm:"column:charges_enabled;not null;default:false"`
	PayoutsEnabled    bool      `gorm:"column:payouts_enabled;not null;default:false"`
	DetailsSubmitted  bool      `gorm:"column:details_submitted;not null;default:false"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Eligible reports whether checkout sessions may route funds to this account.
func (p *PayoutAccount) Eligible() bool {
	return p != nil && p.ProviderAccountID != "" && p.ChargesEnabled && p.DetailsSubmitted
}
