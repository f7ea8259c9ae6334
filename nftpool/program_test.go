package nftpool

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/backend"
	"github.com/solpool/nftpool/metadata"
	"github.com/solpool/nftpool/policy"
	"github.com/solpool/nftpool/program"
	"github.com/solpool/nftpool/spltoken"
	"github.com/solpool/nftpool/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t       *testing.T
	backend *backend.Backend
	owner   solana.PublicKey
	payer   solana.PublicKey
	creator solana.PublicKey
	mint    solana.PublicKey
	uuid    solana.PublicKey
	pool    solana.PublicKey
	trxId   uint64
}

func newHarness(t *testing.T, seed string) *harness {
	t.Helper()
	b := backend.NewBackend(context.Background())
	b.Register(system.NewProgram())
	b.Register(spltoken.NewProgram())
	b.Register(policy.NewProgram())
	b.Register(NewProgram())
	h := &harness{
		t:       t,
		backend: b,
		owner:   testKey(seed + ".owner"),
		payer:   testKey(seed + ".payer"),
		creator: testKey(seed + ".creator"),
		mint:    testKey(seed + ".mint"),
		uuid:    testKey(seed + ".uuid"),
	}
	pool, _, err := FindPoolAddress(h.owner, h.uuid)
	require.NoError(t, err)
	h.pool = pool
	b.Airdrop(h.owner, 10_000_000_000)
	b.Airdrop(h.payer, 10_000_000_000)
	h.seedMint(false)
	h.seedToken(h.owner, 1)
	h.seedToken(h.payer, 0)
	return h
}

func (h *harness) seedMint(restricted bool) {
	freeze := solana.PublicKey{}
	if restricted {
		freeze = program.Policy
	}
	mintData := spltoken.BuildMintData(0, 1, freeze)
	h.backend.SetAccount(&backend.Account{
		PubKey:   h.mint,
		Lamports: backend.RentExemptMinimum(len(mintData)),
		Owner:    program.Token,
		Data:     mintData,
	})
	meta := &metadata.MetadataLayout{Key: 4, Mint: h.mint, SellerFeeBP: 200, CreatorCount: 1}
	meta.Creators[0] = metadata.Creator{Address: h.creator, Verified: 1, Share: 100}
	metaKey, _, err := metadata.FindMetadataAddress(h.mint)
	require.NoError(h.t, err)
	metaData := metadata.BuildMetadataData(meta)
	h.backend.SetAccount(&backend.Account{
		PubKey:   metaKey,
		Lamports: backend.RentExemptMinimum(len(metaData)),
		Owner:    program.Metadata,
		Data:     metaData,
	})
}

func (h *harness) tokenKey(wallet solana.PublicKey) solana.PublicKey {
	key, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("token_account"), wallet.Bytes(), h.mint.Bytes()}, program.Token)
	require.NoError(h.t, err)
	return key
}

func (h *harness) seedToken(wallet solana.PublicKey, amount uint64) {
	data := spltoken.BuildUserData(h.mint, wallet, amount)
	h.backend.SetAccount(&backend.Account{
		PubKey:   h.tokenKey(wallet),
		Lamports: backend.RentExemptMinimum(len(data)),
		Owner:    program.Token,
		Data:     data,
	})
}

func (h *harness) exec(signers []solana.PublicKey, instructions ...*program.Instruction) error {
	h.trxId++
	return h.backend.Execute(&backend.Transaction{
		Id:           h.trxId,
		Instructions: instructions,
		Signers:      signers,
	})
}

func (h *harness) createPool(args *CreatePoolArgs) {
	args.Uuid = h.uuid
	if args.Allowlists == ([MaxAllowlists]AllowlistEntry{}) {
		args.Allowlists = rules(AllowlistEntry{Kind: KindMint, Value: h.mint})
	}
	in := InstructionCreatePool(h.owner, h.owner, h.pool, args)
	require.NoError(h.t, h.exec([]solana.PublicKey{h.owner}, in))
}

func (h *harness) readPool() *PoolLayout {
	account := h.backend.Account(h.pool)
	require.NotNil(h.t, account)
	pool := &PoolLayout{}
	require.NoError(h.t, ReadPool(account, pool))
	return pool
}

func (h *harness) sellSide() *SellSideAccounts {
	metaKey, _, err := metadata.FindMetadataAddress(h.mint)
	require.NoError(h.t, err)
	editionKey, _, err := metadata.FindMasterEditionAddress(h.mint)
	require.NoError(h.t, err)
	escrowKey, _, err := FindAssetEscrowAddress(h.pool, h.mint)
	require.NoError(h.t, err)
	sellStateKey, _, err := FindSellStateAddress(h.pool, h.mint)
	require.NoError(h.t, err)
	return &SellSideAccounts{
		Owner:         h.owner,
		Cosigner:      h.owner,
		Pool:          h.pool,
		Mint:          h.mint,
		Metadata:      metaKey,
		MasterEdition: editionKey,
		OwnerToken:    h.tokenKey(h.owner),
		AssetEscrow:   escrowKey,
		SellState:     sellStateKey,
	}
}

func (h *harness) fulfillSellAccounts() *FulfillSellAccounts {
	side := h.sellSide()
	buysideEscrow, _, err := FindBuysideEscrowAddress(h.pool)
	require.NoError(h.t, err)
	return &FulfillSellAccounts{
		Payer:         h.payer,
		Cosigner:      h.payer,
		Pool:          h.pool,
		Owner:         h.owner,
		Mint:          h.mint,
		Metadata:      side.Metadata,
		MasterEdition: side.MasterEdition,
		AssetEscrow:   side.AssetEscrow,
		PayerToken:    h.tokenKey(h.payer),
		SellState:     side.SellState,
		BuysideEscrow: buysideEscrow,
		Creator:       h.creator,
		Referral:      solana.PublicKey{},
	}
}

func (h *harness) fulfillBuyAccounts() *FulfillBuyAccounts {
	side := h.sellSide()
	buysideEscrow, _, err := FindBuysideEscrowAddress(h.pool)
	require.NoError(h.t, err)
	return &FulfillBuyAccounts{
		Payer:         h.payer,
		Cosigner:      h.payer,
		Pool:          h.pool,
		Owner:         h.owner,
		Mint:          h.mint,
		Metadata:      side.Metadata,
		MasterEdition: side.MasterEdition,
		PayerToken:    h.tokenKey(h.payer),
		AssetEscrow:   side.AssetEscrow,
		OwnerToken:    h.tokenKey(h.owner),
		SellState:     side.SellState,
		BuysideEscrow: buysideEscrow,
		Creator:       h.creator,
		Referral:      solana.PublicKey{},
	}
}

func (h *harness) tokenAmount(key solana.PublicKey) uint64 {
	account := h.backend.Account(key)
	require.NotNil(h.t, account)
	user := spltoken.UserLayout{}
	require.NoError(h.t, spltoken.ReadUser(account, &user))
	return user.Amount
}

func (h *harness) buysideEscrow() solana.PublicKey {
	key, _, err := FindBuysideEscrowAddress(h.pool)
	require.NoError(h.t, err)
	return key
}

func TestProgram_CreatePool(t *testing.T) {
	h := newHarness(t, "create")
	h.createPool(&CreatePoolArgs{
		CurveType:  CurveKindLinear,
		CurveDelta: 100_000_000,
		SpotPrice:  1_000_000_000,
		LpFeeBP:    200,
	})
	pool := h.readPool()
	assert.Equal(t, h.owner, pool.Owner)
	assert.True(t, pool.Cosigner.IsZero())
	assert.Equal(t, h.uuid, pool.Uuid)
	assert.Equal(t, uint64(1_000_000_000), pool.SpotPrice)
	assert.Equal(t, uint64(0), pool.SellsideAssetCount)
	assert.Equal(t, uint64(0), pool.BuysideAmount)
}

func TestProgram_CreatePool_WrongDerivation(t *testing.T) {
	h := newHarness(t, "derive")
	args := &CreatePoolArgs{Uuid: h.uuid, CurveType: CurveKindLinear, SpotPrice: 1, Allowlists: rules(AllowlistEntry{Kind: KindAny})}
	in := InstructionCreatePool(h.owner, h.owner, testKey("derive.not.the.pool"), args)
	err := h.exec([]solana.PublicKey{h.owner}, in)
	assert.ErrorIs(t, err, program.ErrWrongDerivation)
}

func TestProgram_UpdatePoolAndAllowlists(t *testing.T) {
	h := newHarness(t, "update")
	h.createPool(&CreatePoolArgs{CurveType: CurveKindLinear, CurveDelta: 100_000_000, SpotPrice: 1_000_000_000})

	in := InstructionUpdatePool(h.owner, h.owner, h.pool, &UpdatePoolArgs{
		SpotPrice:           2_000_000_000,
		CurveType:           CurveKindExp,
		CurveDelta:          250,
		ReinvestFulfillSell: 1,
		LpFeeBP:             150,
	})
	require.NoError(t, h.exec([]solana.PublicKey{h.owner}, in))
	pool := h.readPool()
	assert.Equal(t, uint64(2_000_000_000), pool.SpotPrice)
	assert.Equal(t, CurveKindExp, pool.CurveType)
	assert.Equal(t, uint64(250), pool.CurveDelta)
	assert.Equal(t, uint8(1), pool.ReinvestFulfillSell)
	assert.Equal(t, uint16(150), pool.LpFeeBP)

	in = InstructionUpdatePool(h.owner, h.owner, h.pool, &UpdatePoolArgs{
		SpotPrice: 1,
		CurveType: CurveKindExp,
		LpFeeBP:   10_001,
	})
	err := h.exec([]solana.PublicKey{h.owner}, in)
	assert.ErrorIs(t, err, program.ErrInvalidBPValue)

	in = InstructionSetAllowlists(h.owner, h.owner, h.pool, &SetAllowlistsArgs{
		Allowlists: rules(AllowlistEntry{Kind: KindFVCA, Value: h.creator}),
	})
	require.NoError(t, h.exec([]solana.PublicKey{h.owner}, in))
	assert.Equal(t, KindFVCA, h.readPool().Allowlists[0].Kind)

	// a stranger cannot reconfigure the pool
	in = InstructionUpdatePool(h.payer, h.payer, h.pool, &UpdatePoolArgs{SpotPrice: 1, CurveType: CurveKindLinear})
	err = h.exec([]solana.PublicKey{h.payer}, in)
	assert.ErrorIs(t, err, program.ErrWrongSigner)
}

func TestProgram_DepositWithdrawSell(t *testing.T) {
	h := newHarness(t, "sellside")
	h.createPool(&CreatePoolArgs{CurveType: CurveKindLinear, CurveDelta: 100_000_000, SpotPrice: 1_000_000_000})
	side := h.sellSide()

	in := InstructionDepositSell(side, &DepositSellArgs{Units: 1})
	require.NoError(t, h.exec([]solana.PublicKey{h.owner}, in))
	assert.Equal(t, uint64(0), h.tokenAmount(side.OwnerToken))
	assert.Equal(t, uint64(1), h.tokenAmount(side.AssetEscrow))
	assert.Equal(t, uint64(1), h.readPool().SellsideAssetCount)

	in = InstructionWithdrawSell(side, &WithdrawSellArgs{Units: 1})
	require.NoError(t, h.exec([]solana.PublicKey{h.owner}, in))
	assert.Equal(t, uint64(1), h.tokenAmount(side.OwnerToken))
	// empty escrow and sell state records are reclaimed, and an empty
	// pool closes itself
	assert.Nil(t, h.backend.Account(side.AssetEscrow))
	assert.Nil(t, h.backend.Account(side.SellState))
	assert.Nil(t, h.backend.Account(h.pool))
}

func TestProgram_DepositSell_NotAllowed(t *testing.T) {
	h := newHarness(t, "rejected")
	h.createPool(&CreatePoolArgs{
		CurveType:  CurveKindLinear,
		SpotPrice:  1_000_000_000,
		Allowlists: rules(AllowlistEntry{Kind: KindMint, Value: testKey("rejected.other.mint")}),
	})
	in := InstructionDepositSell(h.sellSide(), &DepositSellArgs{Units: 1})
	err := h.exec([]solana.PublicKey{h.owner}, in)
	assert.ErrorIs(t, err, program.ErrAssetNotAllowed)
	// nothing moved
	assert.Equal(t, uint64(1), h.tokenAmount(h.tokenKey(h.owner)))
}

func TestProgram_DepositWithdrawBuy(t *testing.T) {
	h := newHarness(t, "buyside")
	h.createPool(&CreatePoolArgs{CurveType: CurveKindLinear, CurveDelta: 100_000_000, SpotPrice: 1_000_000_000})
	escrow := h.buysideEscrow()

	in := InstructionDepositBuy(h.owner, h.owner, h.pool, escrow, &DepositBuyArgs{Amount: 2_000_000_000})
	require.NoError(t, h.exec([]solana.PublicKey{h.owner}, in))
	assert.Equal(t, uint64(2_000_000_000), h.readPool().BuysideAmount)
	// escrow holds its rent floor plus the pool's quoted liquidity
	assert.Equal(t, backend.RentExemptMinimum(0)+2_000_000_000, h.backend.Balance(escrow))

	in = InstructionWithdrawBuy(h.owner, h.owner, h.pool, escrow, &WithdrawBuyArgs{Amount: 500_000_000})
	require.NoError(t, h.exec([]solana.PublicKey{h.owner}, in))
	assert.Equal(t, uint64(1_500_000_000), h.readPool().BuysideAmount)
	assert.Equal(t, backend.RentExemptMinimum(0)+1_500_000_000, h.backend.Balance(escrow))

	in = InstructionWithdrawBuy(h.owner, h.owner, h.pool, escrow, &WithdrawBuyArgs{Amount: 2_000_000_000})
	err := h.exec([]solana.PublicKey{h.owner}, in)
	assert.ErrorIs(t, err, program.ErrInsufficientBalance)
	assert.Equal(t, uint64(1_500_000_000), h.readPool().BuysideAmount)

	in = InstructionWithdrawBuy(h.owner, h.owner, h.pool, escrow, &WithdrawBuyArgs{Amount: 1_500_000_000})
	require.NoError(t, h.exec([]solana.PublicKey{h.owner}, in))
	assert.Nil(t, h.backend.Account(escrow))
	assert.Nil(t, h.backend.Account(h.pool))
}

func TestProgram_FulfillSell(t *testing.T) {
	h := newHarness(t, "fillsell")
	h.createPool(&CreatePoolArgs{CurveType: CurveKindLinear, CurveDelta: 100_000_000, SpotPrice: 1_000_000_000, LpFeeBP: 200})
	side := h.sellSide()
	in := InstructionDepositSell(side, &DepositSellArgs{Units: 1})
	require.NoError(t, h.exec([]solana.PublicKey{h.owner}, in))

	ownerBefore := h.backend.Balance(h.owner)
	payerBefore := h.backend.Balance(h.payer)

	accounts := h.fulfillSellAccounts()
	in = InstructionFulfillSell(accounts, &FulfillSellArgs{
		Units:      1,
		MakerFeeBP: 100,
		TakerFeeBP: 150,
	})
	require.NoError(t, h.exec([]solana.PublicKey{h.payer}, in))

	// gross 1 sol, maker 10m, taker 15m, royalty 200bp of gross, lp
	// suppressed with no buy side
	assert.Equal(t, uint64(1), h.tokenAmount(accounts.PayerToken))
	assert.Equal(t, payerBefore-1_035_000_000, h.backend.Balance(h.payer))
	assert.Equal(t, uint64(20_000_000), h.backend.Balance(h.creator))
	// proceeds and the fee pot, plus the rent of the three reclaimed
	// records, land with the owner
	reclaimed := backend.RentExemptMinimum(spltoken.TokenLayoutSize) +
		backend.RentExemptMinimum(SellStateLayoutSize) +
		backend.RentExemptMinimum(PoolLayoutSize)
	assert.Equal(t, ownerBefore+1_015_000_000+reclaimed, h.backend.Balance(h.owner))
	assert.Nil(t, h.backend.Account(h.pool))
}

func TestProgram_FulfillSell_Slippage(t *testing.T) {
	h := newHarness(t, "slippage")
	h.createPool(&CreatePoolArgs{CurveType: CurveKindLinear, CurveDelta: 100_000_000, SpotPrice: 1_000_000_000})
	in := InstructionDepositSell(h.sellSide(), &DepositSellArgs{Units: 1})
	require.NoError(t, h.exec([]solana.PublicKey{h.owner}, in))
	payerBefore := h.backend.Balance(h.payer)

	in = InstructionFulfillSell(h.fulfillSellAccounts(), &FulfillSellArgs{
		Units:      1,
		MaxPayment: 1,
		TakerFeeBP: 150,
	})
	err := h.exec([]solana.PublicKey{h.payer}, in)
	assert.ErrorIs(t, err, program.ErrSlippageExceeded)
	// failed transaction leaves everything in place
	assert.Equal(t, payerBefore, h.backend.Balance(h.payer))
	assert.Equal(t, uint64(1), h.readPool().SellsideAssetCount)
	assert.Equal(t, uint64(1), h.tokenAmount(h.sellSide().AssetEscrow))
}

func TestProgram_FulfillBuy(t *testing.T) {
	h := newHarness(t, "fillbuy")
	h.seedToken(h.payer, 1)
	h.seedToken(h.owner, 0)
	h.createPool(&CreatePoolArgs{CurveType: CurveKindLinear, CurveDelta: 100_000_000, SpotPrice: 1_000_000_000})
	escrow := h.buysideEscrow()
	in := InstructionDepositBuy(h.owner, h.owner, h.pool, escrow, &DepositBuyArgs{Amount: 2_000_000_000})
	require.NoError(t, h.exec([]solana.PublicKey{h.owner}, in))

	ownerBefore := h.backend.Balance(h.owner)
	payerBefore := h.backend.Balance(h.payer)

	accounts := h.fulfillBuyAccounts()
	in = InstructionFulfillBuy(accounts, &FulfillBuyArgs{
		Units:      1,
		MakerFeeBP: 100,
		TakerFeeBP: 150,
	})
	require.NoError(t, h.exec([]solana.PublicKey{h.payer}, in))

	// gross 1 sol at spot, escrow pays out gross plus maker fee
	pool := h.readPool()
	assert.Equal(t, uint64(2_000_000_000-1_010_000_000), pool.BuysideAmount)
	assert.Equal(t, uint64(1_100_000_000), pool.SpotPrice)
	// seller nets gross less taker fee and royalty
	assert.Equal(t, payerBefore+965_000_000, h.backend.Balance(h.payer))
	assert.Equal(t, uint64(20_000_000), h.backend.Balance(h.creator))
	assert.Equal(t, ownerBefore+25_000_000, h.backend.Balance(h.owner))
	// the asset went straight to the owner, reinvest is off
	assert.Equal(t, uint64(1), h.tokenAmount(accounts.OwnerToken))
	assert.Equal(t, uint64(0), h.tokenAmount(accounts.PayerToken))
	assert.Equal(t, backend.RentExemptMinimum(0)+pool.BuysideAmount, h.backend.Balance(escrow))
}

func TestProgram_FulfillBuy_Slippage(t *testing.T) {
	h := newHarness(t, "buyslip")
	h.seedToken(h.payer, 1)
	h.seedToken(h.owner, 0)
	h.createPool(&CreatePoolArgs{CurveType: CurveKindLinear, CurveDelta: 100_000_000, SpotPrice: 1_000_000_000})
	escrow := h.buysideEscrow()
	in := InstructionDepositBuy(h.owner, h.owner, h.pool, escrow, &DepositBuyArgs{Amount: 2_000_000_000})
	require.NoError(t, h.exec([]solana.PublicKey{h.owner}, in))
	payerBefore := h.backend.Balance(h.payer)

	// proceeds would be 0.965 sol after taker fee and royalty
	accounts := h.fulfillBuyAccounts()
	in = InstructionFulfillBuy(accounts, &FulfillBuyArgs{
		Units:      1,
		MinPayment: 1_000_000_000,
		MakerFeeBP: 100,
		TakerFeeBP: 150,
	})
	err := h.exec([]solana.PublicKey{h.payer}, in)
	assert.ErrorIs(t, err, program.ErrSlippageExceeded)
	// failed transaction leaves everything in place
	assert.Equal(t, payerBefore, h.backend.Balance(h.payer))
	assert.Equal(t, uint64(1), h.tokenAmount(accounts.PayerToken))
	pool := h.readPool()
	assert.Equal(t, uint64(2_000_000_000), pool.BuysideAmount)
	assert.Equal(t, uint64(1_000_000_000), pool.SpotPrice)
}

func TestProgram_FulfillSell_ReferralTakesPot(t *testing.T) {
	h := newHarness(t, "referral")
	referral := testKey("referral.beneficiary")
	h.createPool(&CreatePoolArgs{
		CurveType:      CurveKindLinear,
		CurveDelta:     100_000_000,
		SpotPrice:      1_000_000_000,
		ReferralOption: 1,
		Referral:       referral,
	})
	in := InstructionDepositSell(h.sellSide(), &DepositSellArgs{Units: 1})
	require.NoError(t, h.exec([]solana.PublicKey{h.owner}, in))
	ownerBefore := h.backend.Balance(h.owner)
	payerBefore := h.backend.Balance(h.payer)

	accounts := h.fulfillSellAccounts()
	accounts.Referral = referral
	in = InstructionFulfillSell(accounts, &FulfillSellArgs{
		Units:      1,
		MakerFeeBP: 100,
		TakerFeeBP: 150,
	})
	require.NoError(t, h.exec([]solana.PublicKey{h.payer}, in))

	// an unset share defaults to the whole pot: the referral collects
	// maker plus taker fee and the owner keeps only the proceeds
	assert.Equal(t, uint64(25_000_000), h.backend.Balance(referral))
	assert.Equal(t, payerBefore-1_035_000_000, h.backend.Balance(h.payer))
	assert.Equal(t, uint64(20_000_000), h.backend.Balance(h.creator))
	reclaimed := backend.RentExemptMinimum(spltoken.TokenLayoutSize) +
		backend.RentExemptMinimum(SellStateLayoutSize) +
		backend.RentExemptMinimum(PoolLayoutSize)
	assert.Equal(t, ownerBefore+990_000_000+reclaimed, h.backend.Balance(h.owner))
}

func TestProgram_FulfillSell_NoClock(t *testing.T) {
	h := newHarness(t, "noclock")
	h.createPool(&CreatePoolArgs{
		CurveType: CurveKindLinear,
		SpotPrice: 1_000_000_000,
		Expiry:    time.Now().Unix() + 3600,
	})
	// owner operations do not consult the clock
	in := InstructionDepositSell(h.sellSide(), &DepositSellArgs{Units: 1})
	require.NoError(t, h.exec([]solana.PublicKey{h.owner}, in))

	// a pool with an expiry cannot settle without a readable clock
	in = InstructionFulfillSell(h.fulfillSellAccounts(), &FulfillSellArgs{Units: 1})
	err := h.exec([]solana.PublicKey{h.payer}, in)
	assert.ErrorIs(t, err, program.ErrAccountNotFound)
}

func TestProgram_FulfillBuy_Reinvest(t *testing.T) {
	h := newHarness(t, "reinvest")
	h.seedToken(h.payer, 1)
	h.seedToken(h.owner, 0)
	h.createPool(&CreatePoolArgs{
		CurveType:          CurveKindLinear,
		CurveDelta:         100_000_000,
		SpotPrice:          1_000_000_000,
		ReinvestFulfillBuy: 1,
	})
	escrow := h.buysideEscrow()
	in := InstructionDepositBuy(h.owner, h.owner, h.pool, escrow, &DepositBuyArgs{Amount: 2_000_000_000})
	require.NoError(t, h.exec([]solana.PublicKey{h.owner}, in))

	accounts := h.fulfillBuyAccounts()
	in = InstructionFulfillBuy(accounts, &FulfillBuyArgs{Units: 1})
	require.NoError(t, h.exec([]solana.PublicKey{h.payer}, in))

	pool := h.readPool()
	assert.Equal(t, uint64(1), pool.SellsideAssetCount)
	assert.Equal(t, uint64(1), h.tokenAmount(accounts.AssetEscrow))
	assert.Equal(t, uint64(0), h.tokenAmount(accounts.OwnerToken))
}

func TestProgram_FulfillSell_Expired(t *testing.T) {
	h := newHarness(t, "expired")
	now := time.Now().Unix()
	h.backend.SetClock(now)
	h.createPool(&CreatePoolArgs{
		CurveType: CurveKindLinear,
		SpotPrice: 1_000_000_000,
		Expiry:    now - 60,
	})
	in := InstructionDepositSell(h.sellSide(), &DepositSellArgs{Units: 1})
	// owner operations ignore expiry
	require.NoError(t, h.exec([]solana.PublicKey{h.owner}, in))

	in = InstructionFulfillSell(h.fulfillSellAccounts(), &FulfillSellArgs{Units: 1})
	err := h.exec([]solana.PublicKey{h.payer}, in)
	assert.ErrorIs(t, err, program.ErrExpired)
}

func TestProgram_WrongOwnerRejected(t *testing.T) {
	h := newHarness(t, "wrongowner")
	h.createPool(&CreatePoolArgs{CurveType: CurveKindLinear, SpotPrice: 1_000_000_000})
	side := h.sellSide()
	side.Owner = h.payer
	side.Cosigner = h.payer
	in := InstructionDepositSell(side, &DepositSellArgs{Units: 1})
	err := h.exec([]solana.PublicKey{h.payer}, in)
	assert.ErrorIs(t, err, program.ErrWrongSigner)
}

func TestProgram_RestrictedMint(t *testing.T) {
	h := newHarness(t, "restricted")
	h.seedMint(true)
	policyDef := testKey("restricted.policy.def")
	defData := policy.BuildDefinitionData(&policy.DefinitionLayout{Authority: policyDef, AllowIn: 1, AllowOut: 1})
	h.backend.SetAccount(&backend.Account{
		PubKey:   policyDef,
		Lamports: backend.RentExemptMinimum(len(defData)),
		Owner:    program.Policy,
		Data:     defData,
	})
	stateKey, _, err := policy.FindStateAddress(policyDef, h.mint)
	require.NoError(t, err)
	stateData := policy.BuildStateData(&policy.StateLayout{Policy: policyDef, Mint: h.mint})
	h.backend.SetAccount(&backend.Account{
		PubKey:   stateKey,
		Lamports: backend.RentExemptMinimum(len(stateData)),
		Owner:    program.Policy,
		Data:     stateData,
	})
	h.createPool(&CreatePoolArgs{CurveType: CurveKindLinear, CurveDelta: 100_000_000, SpotPrice: 1_000_000_000})

	// the plain instruction refuses a restricted asset
	in := InstructionDepositSell(h.sellSide(), &DepositSellArgs{Units: 1})
	err = h.exec([]solana.PublicKey{h.owner}, in)
	assert.ErrorIs(t, err, program.ErrPolicyRejected)

	in = InstructionRestrictedDepositSell(h.sellSide(), &DepositSellArgs{Units: 1}, stateKey, policyDef)
	require.NoError(t, h.exec([]solana.PublicKey{h.owner}, in))
	assert.Equal(t, uint64(1), h.readPool().SellsideAssetCount)

	// the policy engine counted the approval
	state := policy.StateLayout{}
	require.NoError(t, policy.ReadState(h.backend.Account(stateKey), &state))
	assert.Equal(t, uint64(1), state.Approvals)
}

func TestProgram_RestrictedCommandOnPlainMint(t *testing.T) {
	h := newHarness(t, "plainmint")
	h.createPool(&CreatePoolArgs{CurveType: CurveKindLinear, SpotPrice: 1_000_000_000})
	policyDef := testKey("plainmint.policy.def")
	stateKey, _, err := policy.FindStateAddress(policyDef, h.mint)
	require.NoError(t, err)
	in := InstructionRestrictedDepositSell(h.sellSide(), &DepositSellArgs{Units: 1}, stateKey, policyDef)
	err = h.exec([]solana.PublicKey{h.owner}, in)
	assert.ErrorIs(t, err, program.ErrInvalidArgs)
}

func TestProgram_ExpCurveFulfillMovesSpot(t *testing.T) {
	h := newHarness(t, "expcurve")
	h.seedToken(h.payer, 1)
	h.seedToken(h.owner, 0)
	h.createPool(&CreatePoolArgs{CurveType: CurveKindExp, CurveDelta: 500, SpotPrice: 1_000_000_000})
	escrow := h.buysideEscrow()
	in := InstructionDepositBuy(h.owner, h.owner, h.pool, escrow, &DepositBuyArgs{Amount: 2_000_000_000})
	require.NoError(t, h.exec([]solana.PublicKey{h.owner}, in))

	in = InstructionFulfillBuy(h.fulfillBuyAccounts(), &FulfillBuyArgs{Units: 1})
	require.NoError(t, h.exec([]solana.PublicKey{h.payer}, in))
	// one unit at 0.95 sol stepped the spot down with it
	pool := h.readPool()
	assert.Equal(t, uint64(950_000_000), pool.SpotPrice)
	assert.Equal(t, uint64(2_000_000_000-950_000_000), pool.BuysideAmount)
}
