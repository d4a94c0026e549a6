package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ITDevS919/marketplace-backend/pkg/enums"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
)

func TestToBaseIdentity(t *testing.T) {
	t.Parallel()

	table := DefaultTable()
	converted, err := table.ToBase(12345, enums.CurrencyGBP)
	require.NoError(t, err)
	assert.Equal(t, 12345, converted)
}

func TestToBaseAppliesRate(t *testing.T) {
	t.Parallel()

	table := DefaultTable()
	converted, err := table.ToBase(10000, enums.CurrencyUSD)
	require.NoError(t, err)
	assert.Equal(t, 7900, converted)
}

func TestToBaseRoundsToNearestCent(t *testing.T) {
	t.Parallel()

	table := DefaultTable()
	converted, err := table.ToBase(99, enums.CurrencyUSD)
	require.NoError(t, err)
	// 99 * 0.79 = 78.21, rounds down.
	assert.Equal(t, 78, converted)
}

func TestToBaseUnsupportedCurrency(t *testing.T) {
	t.Parallel()

	table := DefaultTable()
	_, err := table.ToBase(100, enums.Currency("JPY"))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
