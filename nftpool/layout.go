package nftpool

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/backend"
	"github.com/solpool/nftpool/program"
)

var (
	PoolLayoutSize      = 396
	SellStateLayoutSize = 72
)

const (
	CurveKindLinear = uint8(0)
	CurveKindExp    = uint8(1)

	MaxAllowlists = 6
)

type AllowlistEntry struct {
	Kind  uint8
	Value solana.PublicKey
}

type PoolLayout struct {
	Owner               solana.PublicKey
	Cosigner            solana.PublicKey
	Uuid                solana.PublicKey
	Allowlists          [MaxAllowlists]AllowlistEntry
	CurveType           uint8
	CurveDelta          uint64
	SpotPrice           uint64
	ReinvestFulfillBuy  uint8
	ReinvestFulfillSell uint8
	Expiry              int64
	LpFeeBP             uint16
	RoyaltyFloorBP      uint16
	RoyaltyCeilingBP    uint16
	RoyaltyFloorPrice   uint64
	RoyaltyCeilingPrice uint64
	ReferralOption      uint8
	Referral            solana.PublicKey
	ReferralShareBP     uint16
	SellsideAssetCount  uint64
	BuysideAmount       uint64
	EscrowBump          uint8
	Bump                uint8
}

type SellStateLayout struct {
	Pool  solana.PublicKey
	Mint  solana.PublicKey
	Count uint64
}

type KeyedPool struct {
	Key    solana.PublicKey
	Height uint64
	PoolLayout
}

type KeyedSellState struct {
	Key    solana.PublicKey
	Height uint64
	SellStateLayout
}

func ReadPool(account *backend.Account, pool *PoolLayout) error {
	if account.Owner != program.NftPool {
		return fmt.Errorf("account %s is not a pool: %w", account.PubKey, program.ErrWrongOwner)
	}
	if len(account.Data) != PoolLayoutSize {
		return fmt.Errorf("pool %s data size %d: %w", account.PubKey, len(account.Data), program.ErrInvalidArgs)
	}
	return binary.Read(bytes.NewReader(account.Data), binary.LittleEndian, pool)
}

func WritePool(account *backend.Account, pool *PoolLayout) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, pool); err != nil {
		return err
	}
	copy(account.Data, buf.Bytes())
	return nil
}

func ReadSellState(account *backend.Account, state *SellStateLayout) error {
	if account.Owner != program.NftPool {
		return fmt.Errorf("account %s is not a sell state: %w", account.PubKey, program.ErrWrongOwner)
	}
	if len(account.Data) != SellStateLayoutSize {
		return fmt.Errorf("sell state %s data size %d: %w", account.PubKey, len(account.Data), program.ErrInvalidArgs)
	}
	return binary.Read(bytes.NewReader(account.Data), binary.LittleEndian, state)
}

func WriteSellState(account *backend.Account, state *SellStateLayout) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, state); err != nil {
		return err
	}
	copy(account.Data, buf.Bytes())
	return nil
}
