package nftpool

import (
	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/backend"
)

// tryClosePool tears the pool down once both inventories are empty:
// the payment escrow (if still open) and the pool account are closed
// and their rent returned to the owner. Safe to call after every
// operation that can zero a balance.
func tryClosePool(ec *backend.ExecContext, poolKey solana.PublicKey, pool *PoolLayout) error {
	if pool.SellsideAssetCount != 0 {
		return nil
	}
	if pool.BuysideAmount != 0 {
		return nil
	}
	escrowKey, _, err := FindBuysideEscrowAddress(poolKey)
	if err != nil {
		return err
	}
	if ec.Exists(escrowKey) {
		if err := ec.Close(escrowKey, pool.Owner); err != nil {
			return err
		}
	}
	return ec.Close(poolKey, pool.Owner)
}
