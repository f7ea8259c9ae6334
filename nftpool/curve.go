package nftpool

import (
	"fmt"
	"math/bits"

	"github.com/solpool/nftpool/program"
)

// Fill direction from the pool's perspective.
const (
	FillSell = iota // pool sells inventory to a buyer
	FillBuy         // pool buys inventory from a seller
)

const bpDenominator = 10000

// CheckCurve validates the curve configuration: only linear and
// exponential kinds exist, and an exponential delta is basis points.
func CheckCurve(curveType uint8, curveDelta uint64) error {
	if curveType > CurveKindExp {
		return fmt.Errorf("curve type %d: %w", curveType, program.ErrInvalidCurveType)
	}
	if curveType == CurveKindExp && curveDelta >= bpDenominator {
		return fmt.Errorf("curve delta %d: %w", curveDelta, program.ErrInvalidCurveDelta)
	}
	return nil
}

// Quote walks the curve one unit at a time and returns the summed
// execution price for n units plus the spot price left behind. Price
// impact compounds inside a single fill, so the walk is deliberate:
// no closed form.
//
// Direction convention: a sell-side fill steps the linear spot down by
// delta per unit (floored at 1) and charges the pre-step price, while
// the exponential spot steps up by delta bp per unit and charges the
// stepped price. A buy-side fill mirrors both.
func Quote(curveType uint8, curveDelta, spotPrice uint64, n uint64, fill int) (uint64, uint64, error) {
	if err := CheckCurve(curveType, curveDelta); err != nil {
		return 0, 0, err
	}
	if spotPrice == 0 {
		return 0, 0, fmt.Errorf("spot price is zero: %w", program.ErrInvalidCurveState)
	}
	if n == 0 {
		return 0, 0, fmt.Errorf("zero units: %w", program.ErrInvalidArgs)
	}
	total := uint64(0)
	spot := spotPrice
	for i := uint64(0); i < n; i++ {
		var unitPrice uint64
		var err error
		switch curveType {
		case CurveKindLinear:
			unitPrice = spot
			spot, err = linearStep(spot, curveDelta, fill)
		case CurveKindExp:
			spot, err = expStep(spot, curveDelta, fill)
			unitPrice = spot
		}
		if err != nil {
			return 0, 0, err
		}
		next, carry := bits.Add64(total, unitPrice, 0)
		if carry != 0 {
			return 0, 0, fmt.Errorf("total price: %w", program.ErrInvalidCurveState)
		}
		total = next
	}
	return total, spot, nil
}

func linearStep(spot, delta uint64, fill int) (uint64, error) {
	if fill == FillSell {
		if spot <= delta {
			// clamped, spot stays positive
			return 1, nil
		}
		return spot - delta, nil
	}
	next, carry := bits.Add64(spot, delta, 0)
	if carry != 0 {
		return 0, fmt.Errorf("linear step: %w", program.ErrInvalidCurveState)
	}
	return next, nil
}

func expStep(spot, delta uint64, fill int) (uint64, error) {
	factor := uint64(bpDenominator + delta)
	if fill == FillBuy {
		factor = bpDenominator - delta
	}
	hi, lo := bits.Mul64(spot, factor)
	if hi >= bpDenominator {
		return 0, fmt.Errorf("exponential step: %w", program.ErrInvalidCurveState)
	}
	next, _ := bits.Div64(hi, lo, bpDenominator)
	if next == 0 {
		return 0, fmt.Errorf("exponential step to zero: %w", program.ErrInvalidCurveState)
	}
	return next, nil
}
