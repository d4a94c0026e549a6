package promotion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	"github.com/ITDevS919/marketplace-backend/pkg/enums"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
)

func activeCode(kind enums.DiscountKind) *models.DiscountCode {
	now := time.Now()
	return &models.DiscountCode{
		Code:      "SAVE5",
		Kind:      kind,
		Active:    true,
		StartsAt:  now.Add(-time.Hour),
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestResolveFixed(t *testing.T) {
	t.Parallel()

	code := activeCode(enums.DiscountKindFixed)
	code.AmountCents = 500

	discount, err := Resolve(code, 2000, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 500, discount)

	// Fixed amount never exceeds the subtotal.
	discount, err = Resolve(code, 300, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 300, discount)
}

func TestResolvePercentage(t *testing.T) {
	t.Parallel()

	code := activeCode(enums.DiscountKindPercentage)
	code.PercentBps = 1000 // 10%

	discount, err := Resolve(code, 2000, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 200, discount)

	cap := 150
	code.MaxDiscountCents = &cap
	discount, err = Resolve(code, 2000, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 150, discount)
}

func TestResolveRejections(t *testing.T) {
	t.Parallel()

	now := time.Now()

	tests := []struct {
		name   string
		mutate func(*models.DiscountCode)
	}{
		{"inactive", func(c *models.DiscountCode) { c.Active = false }},
		{"not started", func(c *models.DiscountCode) { c.StartsAt = now.Add(time.Hour) }},
		{"expired", func(c *models.DiscountCode) { c.ExpiresAt = now.Add(-time.Minute) }},
		{"usage exhausted", func(c *models.DiscountCode) {
			limit := 1
			c.UsageLimit = &limit
			c.UsedCount = 1
		}},
		{"minimum purchase", func(c *models.DiscountCode) { c.MinPurchaseCents = 5000 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code := activeCode(enums.DiscountKindFixed)
			code.AmountCents = 500
			tc.mutate(code)

			_, err := Resolve(code, 2000, now)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodePromotionInvalid, typed.Code())
		})
	}
}

func TestResolveNilCode(t *testing.T) {
	t.Parallel()

	_, err := Resolve(nil, 2000, time.Now())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodePromotionInvalid, pkgerrors.As(err).Code())
}

func TestCapPoints(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 300, CapPoints(500, 300))
	assert.Equal(t, 500, CapPoints(500, 900))
	assert.Equal(t, 0, CapPoints(500, -10))
	assert.Equal(t, 0, CapPoints(0, 100))
}

func TestSplitEvenly(t *testing.T) {
	t.Parallel()

	// A £5 code across two groups splits £2.50 each regardless of how the
	// group subtotals compare.
	assert.Equal(t, []int{250, 250}, SplitEvenly(500, 2))

	// Remainder cents land on the earliest groups and the sum stays exact.
	assert.Equal(t, []int{34, 33, 33}, SplitEvenly(100, 3))
	assert.Equal(t, []int{1, 1, 0}, SplitEvenly(2, 3))
	assert.Equal(t, []int{0, 0}, SplitEvenly(0, 2))
	assert.Nil(t, SplitEvenly(100, 0))

	total := 0
	for _, share := range SplitEvenly(997, 4) {
		total += share
	}
	assert.Equal(t, 997, total)
}
