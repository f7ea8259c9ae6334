package nftpool

import (
	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/program"
)

// Derivation seeds. The pool's identity plus a fixed scheme yields
// every escrow address, there is no registry.
var (
	poolPrefix          = []byte("mmm_pool")
	buysideEscrowPrefix = []byte("mmm_buyside_sol_escrow")
	sellStatePrefix     = []byte("mmm_sell_state")
	assetEscrowPrefix   = []byte("mmm_sellside_escrow")
)

func FindPoolAddress(owner, uuid solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{poolPrefix, owner.Bytes(), uuid.Bytes()},
		program.NftPool,
	)
}

// FindBuysideEscrowAddress derives the pool's payment escrow, the
// system account whose lamports are the pool's buy-side balance.
func FindBuysideEscrowAddress(pool solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{buysideEscrowPrefix, pool.Bytes()},
		program.NftPool,
	)
}

// FindSellStateAddress derives the per-(pool, mint) sell state record.
func FindSellStateAddress(pool, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{sellStatePrefix, pool.Bytes(), mint.Bytes()},
		program.NftPool,
	)
}

// FindAssetEscrowAddress derives the token account escrowing one
// mint's sell-side units for the pool.
func FindAssetEscrowAddress(pool, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{assetEscrowPrefix, pool.Bytes(), mint.Bytes()},
		program.NftPool,
	)
}
