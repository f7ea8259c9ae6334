package nftpool

import (
	"fmt"
	"math/bits"

	"github.com/solpool/nftpool/program"
)

// TradeSplit is the full disposition of one fulfillment's gross
// amount. Every lamport that moves is one of these components, so the
// settlement reconciles exactly by construction.
type TradeSplit struct {
	Gross       uint64
	LpFee       uint64
	MakerFee    uint64
	TakerFee    uint64
	ReferralFee uint64
	OwnerFeeNet uint64
	Royalty     uint64
}

type SplitArgs struct {
	Gross           uint64
	MakerFeeBP      uint16
	TakerFeeBP      uint16
	RoyaltyBP       uint16
	LpFeeBP         uint16
	HasReferral     bool
	ReferralShareBP uint16
}

// BPMul computes amount*bp/10000 with a wide intermediate, flooring.
func BPMul(amount uint64, bp uint16) (uint64, error) {
	hi, lo := bits.Mul64(amount, uint64(bp))
	if hi >= bpDenominator {
		return 0, fmt.Errorf("bp mul: %w", program.ErrNumericOverflow)
	}
	out, _ := bits.Div64(hi, lo, bpDenominator)
	return out, nil
}

func CheckBP(bp uint16) error {
	if bp > bpDenominator {
		return fmt.Errorf("bp %d: %w", bp, program.ErrInvalidBPValue)
	}
	return nil
}

// ComputeSplit derives every fee component of a trade. The maker and
// taker fees form one pot: the referral takes its share of the pot,
// floored, and the owner keeps the rest, so the division remainder
// always lands on the owner's net.
func ComputeSplit(args *SplitArgs) (*TradeSplit, error) {
	for _, bp := range []uint16{args.MakerFeeBP, args.TakerFeeBP, args.RoyaltyBP, args.LpFeeBP, args.ReferralShareBP} {
		if err := CheckBP(bp); err != nil {
			return nil, err
		}
	}
	split := &TradeSplit{Gross: args.Gross}
	var err error
	if split.MakerFee, err = BPMul(args.Gross, args.MakerFeeBP); err != nil {
		return nil, err
	}
	if split.TakerFee, err = BPMul(args.Gross, args.TakerFeeBP); err != nil {
		return nil, err
	}
	if split.Royalty, err = BPMul(args.Gross, args.RoyaltyBP); err != nil {
		return nil, err
	}
	if split.LpFee, err = BPMul(args.Gross, args.LpFeeBP); err != nil {
		return nil, err
	}
	pot, carry := bits.Add64(split.MakerFee, split.TakerFee, 0)
	if carry != 0 {
		return nil, fmt.Errorf("fee pot: %w", program.ErrNumericOverflow)
	}
	if args.HasReferral {
		share := args.ReferralShareBP
		if share == 0 {
			share = bpDenominator
		}
		if split.ReferralFee, err = BPMul(pot, share); err != nil {
			return nil, err
		}
	}
	split.OwnerFeeNet = pot - split.ReferralFee
	if split.ReferralFee+split.OwnerFeeNet != pot {
		return nil, fmt.Errorf("referral %d + owner %d != pot %d: %w",
			split.ReferralFee, split.OwnerFeeNet, pot, program.ErrFeeSplitMismatch)
	}
	return split, nil
}

// BuyerCost is what the counterparty pays on a sell-side fill: the
// gross execution amount plus everything charged on top of it.
func (s *TradeSplit) BuyerCost() uint64 {
	return s.Gross + s.TakerFee + s.Royalty + s.LpFee
}

// OwnerProceeds is the trade proceeds owed on a sell-side fill before
// fee redistribution: gross less the maker fee.
func (s *TradeSplit) OwnerProceeds() uint64 {
	return s.Gross - s.MakerFee
}

// SellerProceeds is what the counterparty receives on a buy-side fill.
func (s *TradeSplit) SellerProceeds() uint64 {
	return s.Gross - s.TakerFee - s.Royalty - s.LpFee
}

// EscrowOutlay is what the payment escrow pays out on a buy-side fill.
func (s *TradeSplit) EscrowOutlay() uint64 {
	return s.Gross + s.MakerFee
}

// ResolveRoyaltyBP picks the royalty rate for a trade: an explicit
// caller-supplied rate wins, then the pool's interpolation schedule,
// then the asset's own seller fee.
func ResolveRoyaltyBP(pool *PoolLayout, callerBP uint16, hasCallerBP bool, assetSellerFeeBP uint16) (uint16, error) {
	if hasCallerBP {
		return callerBP, CheckBP(callerBP)
	}
	if pool.RoyaltyCeilingPrice > pool.RoyaltyFloorPrice {
		return interpolateRoyaltyBP(pool), nil
	}
	return assetSellerFeeBP, CheckBP(assetSellerFeeBP)
}

// interpolateRoyaltyBP maps the pool's spot position inside
// [floor price, ceiling price] linearly onto [floor bp, ceiling bp].
func interpolateRoyaltyBP(pool *PoolLayout) uint16 {
	spot := pool.SpotPrice
	if spot <= pool.RoyaltyFloorPrice {
		return pool.RoyaltyFloorBP
	}
	if spot >= pool.RoyaltyCeilingPrice {
		return pool.RoyaltyCeilingBP
	}
	span := pool.RoyaltyCeilingPrice - pool.RoyaltyFloorPrice
	offset := spot - pool.RoyaltyFloorPrice
	floor := uint64(pool.RoyaltyFloorBP)
	ceiling := uint64(pool.RoyaltyCeilingBP)
	// spread*offset can pass 64 bits when the price span is wide
	if ceiling >= floor {
		hi, lo := bits.Mul64(ceiling-floor, offset)
		step, _ := bits.Div64(hi, lo, span)
		return uint16(floor + step)
	}
	hi, lo := bits.Mul64(floor-ceiling, offset)
	step, _ := bits.Div64(hi, lo, span)
	return uint16(floor - step)
}

// LpFeeBPFor suppresses the liquidity fee while the pool cannot quote
// both sides: no sell-side inventory, or a buy side that cannot cover
// one more unit at spot.
func LpFeeBPFor(pool *PoolLayout) uint16 {
	if pool.SellsideAssetCount < 1 {
		return 0
	}
	if pool.BuysideAmount < pool.SpotPrice {
		return 0
	}
	return pool.LpFeeBP
}
