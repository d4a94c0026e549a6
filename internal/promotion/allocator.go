package promotion

import (
	"time"

	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	"github.com/ITDevS919/marketplace-backend/pkg/enums"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
)

const percentDenominatorBps = 10_000

// Resolve validates a discount code against the checkout subtotal and returns
// the discount in cents. The returned amount never exceeds the subtotal.
func Resolve(code *models.DiscountCode, subtotalCents int, now time.Time) (int, error) {
	if code == nil {
		return 0, pkgerrors.New(pkgerrors.CodePromotionInvalid, "unknown discount code")
	}
	if !code.Active {
		return 0, invalid(code.Code, "code is inactive")
	}
	if now.Before(code.StartsAt) {
		return 0, invalid(code.Code, "code is not yet active")
	}
	if now.After(code.ExpiresAt) {
		return 0, invalid(code.Code, "code has expired")
	}
	if code.UsageLimit != nil && code.UsedCount >= *code.UsageLimit {
		return 0, invalid(code.Code, "usage limit reached")
	}
	if subtotalCents < code.MinPurchaseCents {
		return 0, invalid(code.Code, "minimum purchase not met")
	}

	var discount int
	switch code.Kind {
	case enums.DiscountKindPercentage:
		discount = subtotalCents * code.PercentBps / percentDenominatorBps
		if code.MaxDiscountCents != nil && discount > *code.MaxDiscountCents {
			discount = *code.MaxDiscountCents
		}
	case enums.DiscountKindFixed:
		discount = code.AmountCents
	default:
		return 0, invalid(code.Code, "unsupported discount kind")
	}

	if discount > subtotalCents {
		discount = subtotalCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount, nil
}

// CapPoints clamps a redemption request to the buyer's balance. One point is
// worth one cent.
func CapPoints(balance, requested int) int {
	if requested < 0 {
		return 0
	}
	if requested > balance {
		return balance
	}
	return requested
}

// SplitEvenly divides total cents across n shares by count. The remainder is
// assigned one cent at a time to the earliest shares so the parts always sum
// back to the total.
func SplitEvenly(totalCents, n int) []int {
	if n <= 0 {
		return nil
	}
	shares := make([]int, n)
	if totalCents <= 0 {
		return shares
	}
	base := totalCents / n
	remainder := totalCents % n
	for i := range shares {
		shares[i] = base
		if i < remainder {
			shares[i]++
		}
	}
	return shares
}

func invalid(code, reason string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodePromotionInvalid, reason).WithDetails(map[string]any{
		"code": code,
	})
}
