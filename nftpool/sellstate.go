package nftpool

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/backend"
	"github.com/solpool/nftpool/program"
)

// creditSellState adds units to the (pool, mint) sell state, creating
// the record on first deposit of that mint. rentPayer funds the new
// record's rent.
func creditSellState(ec *backend.ExecContext, poolKey solana.PublicKey, pool *PoolLayout,
	mint, sellStateKey, rentPayer solana.PublicKey, units uint64) error {
	derived, _, err := FindSellStateAddress(poolKey, mint)
	if err != nil {
		return err
	}
	if derived != sellStateKey {
		return fmt.Errorf("sell state %s: %w", sellStateKey, program.ErrWrongDerivation)
	}
	var account *backend.Account
	if !ec.Exists(sellStateKey) {
		account, err = ec.Create(sellStateKey, program.NftPool, SellStateLayoutSize, rentPayer)
		if err != nil {
			return err
		}
		if err := WriteSellState(account, &SellStateLayout{Pool: poolKey, Mint: mint}); err != nil {
			return err
		}
	} else {
		account, err = ec.Account(sellStateKey)
		if err != nil {
			return err
		}
	}
	state := SellStateLayout{}
	if err := ReadSellState(account, &state); err != nil {
		return err
	}
	if state.Pool != poolKey || state.Mint != mint {
		return fmt.Errorf("sell state %s binds %s/%s: %w", sellStateKey, state.Pool, state.Mint, program.ErrInvalidArgs)
	}
	state.Count += units
	pool.SellsideAssetCount += units
	return WriteSellState(account, &state)
}

// debitSellState removes units and closes the record once it empties,
// releasing its rent to the pool owner. A record holding more units
// than the pool's aggregate is a diverged invariant and fatal.
func debitSellState(ec *backend.ExecContext, poolKey solana.PublicKey, pool *PoolLayout,
	mint, sellStateKey solana.PublicKey, units uint64) error {
	derived, _, err := FindSellStateAddress(poolKey, mint)
	if err != nil {
		return err
	}
	if derived != sellStateKey {
		return fmt.Errorf("sell state %s: %w", sellStateKey, program.ErrWrongDerivation)
	}
	account, err := ec.Account(sellStateKey)
	if err != nil {
		return err
	}
	state := SellStateLayout{}
	if err := ReadSellState(account, &state); err != nil {
		return err
	}
	if state.Pool != poolKey || state.Mint != mint {
		return fmt.Errorf("sell state %s binds %s/%s: %w", sellStateKey, state.Pool, state.Mint, program.ErrInvalidArgs)
	}
	if state.Count > pool.SellsideAssetCount {
		return fmt.Errorf("sell state %s count %d exceeds pool count %d: %w",
			sellStateKey, state.Count, pool.SellsideAssetCount, program.ErrStateDiverged)
	}
	if units > state.Count {
		return fmt.Errorf("debit %d of %d: %w", units, state.Count, program.ErrInsufficientBalance)
	}
	state.Count -= units
	pool.SellsideAssetCount -= units
	if state.Count == 0 {
		return ec.Close(sellStateKey, pool.Owner)
	}
	return WriteSellState(account, &state)
}
