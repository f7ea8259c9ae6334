package nftpool

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/solpool/nftpool/backend"
	"github.com/solpool/nftpool/program"
)

var lamportsPerSol = decimal.NewFromInt(1000000000)

// Lamports renders a raw lamport amount as a SOL decimal for display.
func Lamports(amount uint64) decimal.Decimal {
	return decimal.NewFromInt(int64(amount)).Div(lamportsPerSol)
}

// Quotation is a read-only preview of a fulfillment against the
// current pool state. Nothing is staged or written.
type Quotation struct {
	Units    uint64
	Gross    uint64
	LpFee    uint64
	Royalty  uint64
	TakerFee uint64
	Total    uint64
	NewSpot  uint64
}

// Model answers quote queries against live pool accounts. It reads
// through the backend the same accounts the handlers settle against.
type Model struct {
	backend *backend.Backend
}

func NewModel(b *backend.Backend) *Model {
	return &Model{backend: b}
}

func (m *Model) Pool(poolKey solana.PublicKey) (*PoolLayout, error) {
	account := m.backend.Account(poolKey)
	if account == nil {
		return nil, fmt.Errorf("pool %s: %w", poolKey, program.ErrAccountNotFound)
	}
	pool := &PoolLayout{}
	if err := ReadPool(account, pool); err != nil {
		return nil, err
	}
	return pool, nil
}

// SellQuote previews buying units out of the pool's sell side. Total
// is the payer's all-in cost at the given taker fee and royalty rate.
func (m *Model) SellQuote(poolKey solana.PublicKey, units uint64, takerFeeBP, royaltyBP uint16) (*Quotation, error) {
	pool, err := m.Pool(poolKey)
	if err != nil {
		return nil, err
	}
	if units > pool.SellsideAssetCount {
		return nil, fmt.Errorf("quote %d of %d units: %w", units, pool.SellsideAssetCount, program.ErrInsufficientBalance)
	}
	gross, newSpot, err := Quote(pool.CurveType, pool.CurveDelta, pool.SpotPrice, units, FillSell)
	if err != nil {
		return nil, err
	}
	split, err := ComputeSplit(&SplitArgs{
		Gross:      gross,
		TakerFeeBP: takerFeeBP,
		RoyaltyBP:  royaltyBP,
		LpFeeBP:    LpFeeBPFor(pool),
	})
	if err != nil {
		return nil, err
	}
	return &Quotation{
		Units:    units,
		Gross:    gross,
		LpFee:    split.LpFee,
		Royalty:  split.Royalty,
		TakerFee: split.TakerFee,
		Total:    split.BuyerCost(),
		NewSpot:  newSpot,
	}, nil
}

// BuyQuote previews selling units into the pool's buy side. Total is
// what the seller would receive after fees and royalty.
func (m *Model) BuyQuote(poolKey solana.PublicKey, units uint64, takerFeeBP, royaltyBP uint16) (*Quotation, error) {
	pool, err := m.Pool(poolKey)
	if err != nil {
		return nil, err
	}
	gross, newSpot, err := Quote(pool.CurveType, pool.CurveDelta, pool.SpotPrice, units, FillBuy)
	if err != nil {
		return nil, err
	}
	split, err := ComputeSplit(&SplitArgs{
		Gross:      gross,
		TakerFeeBP: takerFeeBP,
		RoyaltyBP:  royaltyBP,
		LpFeeBP:    LpFeeBPFor(pool),
	})
	if err != nil {
		return nil, err
	}
	if split.EscrowOutlay() > pool.BuysideAmount {
		return nil, fmt.Errorf("quote outlay %d of %d: %w", split.EscrowOutlay(), pool.BuysideAmount, program.ErrInsufficientBalance)
	}
	return &Quotation{
		Units:    units,
		Gross:    gross,
		LpFee:    split.LpFee,
		Royalty:  split.Royalty,
		TakerFee: split.TakerFee,
		Total:    split.SellerProceeds(),
		NewSpot:  newSpot,
	}, nil
}
