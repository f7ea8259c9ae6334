package program

import "github.com/gagliardetto/solana-go"

var (
	Token    = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	System   = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
	SysClock = solana.MustPublicKeyFromBase58("SysvarC1ock11111111111111111111111111111111")
	SysRent  = solana.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111")
	Metadata = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

	// programs hosted in-process by the backend
	NftPool = solana.PublicKeyFromBytes([]byte("nftpool.pool.program.v1"))
	Policy  = solana.PublicKeyFromBytes([]byte("nftpool.transfer.policy.v1"))
)

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// TradeResult is what a fulfillment handler reports back to the
// backend so executed settlements can be recorded.
type TradeResult struct {
	Pool        solana.PublicKey
	Mint        solana.PublicKey
	Side        string
	Units       uint64
	Gross       uint64
	LpFee       uint64
	MakerFee    uint64
	TakerFee    uint64
	ReferralFee uint64
	Royalty     uint64
	NewSpot     uint64
	Slot        uint64
}
