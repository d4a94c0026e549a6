package enums

// OrderWarning flags non-fatal conditions recorded on an order group during
// checkout. Warnings never block order creation.
type OrderWarning string

const (
	OrderWarningNoPayoutAccount OrderWarning = "no_payout_account"
	OrderWarningSessionFailed   OrderWarning = "checkout_session_failed"
	OrderWarningPromotionVoided OrderWarning = "promotion_voided"
)

// String implements fmt.Stringer.
func (o OrderWarning) String() string {
	return string(o)
}
