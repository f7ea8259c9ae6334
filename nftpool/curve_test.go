package nftpool

import (
	"math"
	"testing"

	"github.com/solpool/nftpool/program"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote_LinearSell(t *testing.T) {
	gross, spot, err := Quote(CurveKindLinear, 100_000_000, 1_000_000_000, 2, FillSell)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_900_000_000), gross)
	assert.Equal(t, uint64(800_000_000), spot)
}

func TestQuote_LinearSellClamp(t *testing.T) {
	gross, spot, err := Quote(CurveKindLinear, 2_000_000_000, 1_000_000_000, 2, FillSell)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_001), gross)
	assert.Equal(t, uint64(1), spot)
}

func TestQuote_LinearBuy(t *testing.T) {
	gross, spot, err := Quote(CurveKindLinear, 100_000_000, 1_000_000_000, 2, FillBuy)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_100_000_000), gross)
	assert.Equal(t, uint64(1_200_000_000), spot)
}

func TestQuote_LinearBuyOverflow(t *testing.T) {
	_, _, err := Quote(CurveKindLinear, math.MaxUint64, math.MaxUint64, 1, FillBuy)
	assert.ErrorIs(t, err, program.ErrInvalidCurveState)
}

func TestQuote_ExpSell(t *testing.T) {
	gross, spot, err := Quote(CurveKindExp, 500, 1_500_000_000, 1, FillSell)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_575_000_000), gross)
	assert.Equal(t, uint64(1_575_000_000), spot)
}

func TestQuote_ExpSellCompounds(t *testing.T) {
	gross, spot, err := Quote(CurveKindExp, 500, 1_500_000_000, 2, FillSell)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_575_000_000+1_653_750_000), gross)
	assert.Equal(t, uint64(1_653_750_000), spot)
}

func TestQuote_ExpBuy(t *testing.T) {
	gross, spot, err := Quote(CurveKindExp, 500, 1_000_000_000, 1, FillBuy)
	require.NoError(t, err)
	assert.Equal(t, uint64(950_000_000), gross)
	assert.Equal(t, uint64(950_000_000), spot)
}

func TestQuote_ExpBuyToZero(t *testing.T) {
	_, _, err := Quote(CurveKindExp, 5000, 1, 1, FillBuy)
	assert.ErrorIs(t, err, program.ErrInvalidCurveState)
}

func TestQuote_Validation(t *testing.T) {
	_, _, err := Quote(2, 0, 1_000_000_000, 1, FillSell)
	assert.Error(t, err)
	_, _, err = Quote(CurveKindExp, 10000, 1_000_000_000, 1, FillSell)
	assert.Error(t, err)
	_, _, err = Quote(CurveKindLinear, 0, 0, 1, FillSell)
	assert.Error(t, err)
	_, _, err = Quote(CurveKindLinear, 0, 1_000_000_000, 0, FillSell)
	assert.Error(t, err)
}
