package nftpool

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/program"
)

const (
	CommandCreatePool             = byte(1)
	CommandUpdatePool             = byte(2)
	CommandSetAllowlists          = byte(3)
	CommandDepositSell            = byte(4)
	CommandWithdrawSell           = byte(5)
	CommandDepositBuy             = byte(6)
	CommandWithdrawBuy            = byte(7)
	CommandFulfillSell            = byte(8)
	CommandFulfillBuy             = byte(9)
	CommandRestrictedDepositSell  = byte(10)
	CommandRestrictedWithdrawSell = byte(11)
	CommandRestrictedFulfillSell  = byte(12)
	CommandRestrictedFulfillBuy   = byte(13)
)

type CreatePoolArgs struct {
	Uuid                solana.PublicKey
	CurveType           uint8
	CurveDelta          uint64
	SpotPrice           uint64
	LpFeeBP             uint16
	Expiry              int64
	ReinvestFulfillBuy  uint8
	ReinvestFulfillSell uint8
	ReferralOption      uint8
	Referral            solana.PublicKey
	ReferralShareBP     uint16
	RoyaltyFloorBP      uint16
	RoyaltyCeilingBP    uint16
	RoyaltyFloorPrice   uint64
	RoyaltyCeilingPrice uint64
	Allowlists          [MaxAllowlists]AllowlistEntry
}

type UpdatePoolArgs struct {
	SpotPrice           uint64
	CurveType           uint8
	CurveDelta          uint64
	ReinvestFulfillBuy  uint8
	ReinvestFulfillSell uint8
	Expiry              int64
	LpFeeBP             uint16
}

type SetAllowlistsArgs struct {
	Allowlists [MaxAllowlists]AllowlistEntry
}

type DepositSellArgs struct {
	Units uint64
}

type WithdrawSellArgs struct {
	Units uint64
}

type DepositBuyArgs struct {
	Amount uint64
}

type WithdrawBuyArgs struct {
	Amount uint64
}

type FulfillSellArgs struct {
	Units         uint64
	MaxPayment    uint64
	MakerFeeBP    uint16
	TakerFeeBP    uint16
	RoyaltyOption uint8
	RoyaltyBP     uint16
}

type FulfillBuyArgs struct {
	Units         uint64
	MinPayment    uint64
	MakerFeeBP    uint16
	TakerFeeBP    uint16
	RoyaltyOption uint8
	RoyaltyBP     uint16
}

func encodeArgs(command byte, args interface{}) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(command)
	binary.Write(buf, binary.LittleEndian, args)
	return buf.Bytes()
}

func decodeArgs(data []byte, args interface{}) error {
	err := binary.Read(bytes.NewReader(data), binary.LittleEndian, args)
	if err != nil {
		return fmt.Errorf("args: %w", program.ErrInvalidArgs)
	}
	return nil
}

func meta(key solana.PublicKey, signer, writable bool) *solana.AccountMeta {
	return &solana.AccountMeta{PublicKey: key, IsSigner: signer, IsWritable: writable}
}

func InstructionCreatePool(owner, cosigner, pool solana.PublicKey, args *CreatePoolArgs) *program.Instruction {
	return &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			meta(owner, true, true),
			meta(cosigner, true, false),
			meta(pool, false, true),
		},
		IsData:      encodeArgs(CommandCreatePool, args),
		IsProgramID: program.NftPool,
	}
}

func InstructionUpdatePool(owner, cosigner, pool solana.PublicKey, args *UpdatePoolArgs) *program.Instruction {
	return &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			meta(owner, true, false),
			meta(cosigner, true, false),
			meta(pool, false, true),
		},
		IsData:      encodeArgs(CommandUpdatePool, args),
		IsProgramID: program.NftPool,
	}
}

func InstructionSetAllowlists(owner, cosigner, pool solana.PublicKey, args *SetAllowlistsArgs) *program.Instruction {
	return &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			meta(owner, true, false),
			meta(cosigner, true, false),
			meta(pool, false, true),
		},
		IsData:      encodeArgs(CommandSetAllowlists, args),
		IsProgramID: program.NftPool,
	}
}

// SellSideAccounts is the account set shared by the sell-side deposit
// and withdraw instructions.
type SellSideAccounts struct {
	Owner         solana.PublicKey
	Cosigner      solana.PublicKey
	Pool          solana.PublicKey
	Mint          solana.PublicKey
	Metadata      solana.PublicKey
	MasterEdition solana.PublicKey
	OwnerToken    solana.PublicKey
	AssetEscrow   solana.PublicKey
	SellState     solana.PublicKey
}

func (a *SellSideAccounts) metas() []*solana.AccountMeta {
	return []*solana.AccountMeta{
		meta(a.Owner, true, true),
		meta(a.Cosigner, true, false),
		meta(a.Pool, false, true),
		meta(a.Mint, false, false),
		meta(a.Metadata, false, false),
		meta(a.MasterEdition, false, false),
		meta(a.OwnerToken, false, true),
		meta(a.AssetEscrow, false, true),
		meta(a.SellState, false, true),
	}
}

func InstructionDepositSell(accounts *SellSideAccounts, args *DepositSellArgs) *program.Instruction {
	return &program.Instruction{
		IsAccounts:  accounts.metas(),
		IsData:      encodeArgs(CommandDepositSell, args),
		IsProgramID: program.NftPool,
	}
}

func InstructionWithdrawSell(accounts *SellSideAccounts, args *WithdrawSellArgs) *program.Instruction {
	return &program.Instruction{
		IsAccounts:  accounts.metas(),
		IsData:      encodeArgs(CommandWithdrawSell, args),
		IsProgramID: program.NftPool,
	}
}

func InstructionDepositBuy(owner, cosigner, pool, escrow solana.PublicKey, args *DepositBuyArgs) *program.Instruction {
	return &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			meta(owner, true, true),
			meta(cosigner, true, false),
			meta(pool, false, true),
			meta(escrow, false, true),
		},
		IsData:      encodeArgs(CommandDepositBuy, args),
		IsProgramID: program.NftPool,
	}
}

func InstructionWithdrawBuy(owner, cosigner, pool, escrow solana.PublicKey, args *WithdrawBuyArgs) *program.Instruction {
	return &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			meta(owner, true, true),
			meta(cosigner, true, false),
			meta(pool, false, true),
			meta(escrow, false, true),
		},
		IsData:      encodeArgs(CommandWithdrawBuy, args),
		IsProgramID: program.NftPool,
	}
}

// FulfillSellAccounts: the buyer side of a pool sale.
type FulfillSellAccounts struct {
	Payer         solana.PublicKey
	Cosigner      solana.PublicKey
	Pool          solana.PublicKey
	Owner         solana.PublicKey
	Mint          solana.PublicKey
	Metadata      solana.PublicKey
	MasterEdition solana.PublicKey
	AssetEscrow   solana.PublicKey
	PayerToken    solana.PublicKey
	SellState     solana.PublicKey
	BuysideEscrow solana.PublicKey
	Creator       solana.PublicKey
	Referral      solana.PublicKey
}

func (a *FulfillSellAccounts) metas() []*solana.AccountMeta {
	return []*solana.AccountMeta{
		meta(a.Payer, true, true),
		meta(a.Cosigner, true, false),
		meta(a.Pool, false, true),
		meta(a.Owner, false, true),
		meta(a.Mint, false, false),
		meta(a.Metadata, false, false),
		meta(a.MasterEdition, false, false),
		meta(a.AssetEscrow, false, true),
		meta(a.PayerToken, false, true),
		meta(a.SellState, false, true),
		meta(a.BuysideEscrow, false, true),
		meta(a.Creator, false, true),
		meta(a.Referral, false, true),
	}
}

func InstructionFulfillSell(accounts *FulfillSellAccounts, args *FulfillSellArgs) *program.Instruction {
	return &program.Instruction{
		IsAccounts:  accounts.metas(),
		IsData:      encodeArgs(CommandFulfillSell, args),
		IsProgramID: program.NftPool,
	}
}

// FulfillBuyAccounts: the seller side of a pool purchase.
type FulfillBuyAccounts struct {
	Payer         solana.PublicKey
	Cosigner      solana.PublicKey
	Pool          solana.PublicKey
	Owner         solana.PublicKey
	Mint          solana.PublicKey
	Metadata      solana.PublicKey
	MasterEdition solana.PublicKey
	PayerToken    solana.PublicKey
	AssetEscrow   solana.PublicKey
	OwnerToken    solana.PublicKey
	SellState     solana.PublicKey
	BuysideEscrow solana.PublicKey
	Creator       solana.PublicKey
	Referral      solana.PublicKey
}

func (a *FulfillBuyAccounts) metas() []*solana.AccountMeta {
	return []*solana.AccountMeta{
		meta(a.Payer, true, true),
		meta(a.Cosigner, true, false),
		meta(a.Pool, false, true),
		meta(a.Owner, false, true),
		meta(a.Mint, false, false),
		meta(a.Metadata, false, false),
		meta(a.MasterEdition, false, false),
		meta(a.PayerToken, false, true),
		meta(a.AssetEscrow, false, true),
		meta(a.OwnerToken, false, true),
		meta(a.SellState, false, true),
		meta(a.BuysideEscrow, false, true),
		meta(a.Creator, false, true),
		meta(a.Referral, false, true),
	}
}

func InstructionFulfillBuy(accounts *FulfillBuyAccounts, args *FulfillBuyArgs) *program.Instruction {
	return &program.Instruction{
		IsAccounts:  accounts.metas(),
		IsData:      encodeArgs(CommandFulfillBuy, args),
		IsProgramID: program.NftPool,
	}
}

// Restricted variants carry the policy state and policy definition as
// two trailing accounts and are otherwise identical.
func restricted(in *program.Instruction, command byte, policyState, policyDef solana.PublicKey) *program.Instruction {
	in.IsData[0] = command
	in.IsAccounts = append(in.IsAccounts,
		meta(policyState, false, true),
		meta(policyDef, false, false),
	)
	return in
}

func InstructionRestrictedDepositSell(accounts *SellSideAccounts, args *DepositSellArgs, policyState, policyDef solana.PublicKey) *program.Instruction {
	return restricted(InstructionDepositSell(accounts, args), CommandRestrictedDepositSell, policyState, policyDef)
}

func InstructionRestrictedWithdrawSell(accounts *SellSideAccounts, args *WithdrawSellArgs, policyState, policyDef solana.PublicKey) *program.Instruction {
	return restricted(InstructionWithdrawSell(accounts, args), CommandRestrictedWithdrawSell, policyState, policyDef)
}

func InstructionRestrictedFulfillSell(accounts *FulfillSellAccounts, args *FulfillSellArgs, policyState, policyDef solana.PublicKey) *program.Instruction {
	return restricted(InstructionFulfillSell(accounts, args), CommandRestrictedFulfillSell, policyState, policyDef)
}

func InstructionRestrictedFulfillBuy(accounts *FulfillBuyAccounts, args *FulfillBuyArgs, policyState, policyDef solana.PublicKey) *program.Instruction {
	return restricted(InstructionFulfillBuy(accounts, args), CommandRestrictedFulfillBuy, policyState, policyDef)
}
