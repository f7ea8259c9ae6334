package app

import (
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/solpool/nftpool/env"
	"github.com/solpool/nftpool/metadata"
	"github.com/solpool/nftpool/nftpool"
	"github.com/solpool/nftpool/program"
)

type PoolView struct {
	Key           string `json:"key"`
	Owner         string `json:"owner"`
	Uuid          string `json:"uuid"`
	CurveType     uint8  `json:"curve_type"`
	CurveDelta    uint64 `json:"curve_delta"`
	SpotPrice     string `json:"spot_price"`
	LpFeeBP       uint16 `json:"lp_fee_bp"`
	Expiry        int64  `json:"expiry"`
	SellsideCount uint64 `json:"sellside_count"`
	BuysideAmount string `json:"buyside_amount"`
	Referral      string `json:"referral"`
}

type QuoteView struct {
	Units    uint64 `json:"units"`
	Gross    string `json:"gross"`
	LpFee    string `json:"lp_fee"`
	Royalty  string `json:"royalty"`
	TakerFee string `json:"taker_fee"`
	Total    string `json:"total"`
	NewSpot  string `json:"new_spot"`
}

func quoteView(q *nftpool.Quotation) *QuoteView {
	return &QuoteView{
		Units:    q.Units,
		Gross:    nftpool.Lamports(q.Gross).String(),
		LpFee:    nftpool.Lamports(q.LpFee).String(),
		Royalty:  nftpool.Lamports(q.Royalty).String(),
		TakerFee: nftpool.Lamports(q.TakerFee).String(),
		Total:    nftpool.Lamports(q.Total).String(),
		NewSpot:  nftpool.Lamports(q.NewSpot).String(),
	}
}

func abort(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (s *Server) getPool(c *gin.Context) {
	poolKey, err := solana.PublicKeyFromBase58(c.Param("key"))
	if err != nil {
		abort(c, err)
		return
	}
	pool, err := s.model.Pool(poolKey)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, &PoolView{
		Key:           poolKey.String(),
		Owner:         pool.Owner.String(),
		Uuid:          pool.Uuid.String(),
		CurveType:     pool.CurveType,
		CurveDelta:    pool.CurveDelta,
		SpotPrice:     nftpool.Lamports(pool.SpotPrice).String(),
		LpFeeBP:       pool.LpFeeBP,
		Expiry:        pool.Expiry,
		SellsideCount: pool.SellsideAssetCount,
		BuysideAmount: nftpool.Lamports(pool.BuysideAmount).String(),
		Referral:      pool.Referral.String(),
	})
}

func (s *Server) getQuote(c *gin.Context) {
	poolKey, err := solana.PublicKeyFromBase58(c.Query("pool"))
	if err != nil {
		abort(c, err)
		return
	}
	units, err := strconv.ParseUint(c.Query("units"), 10, 64)
	if err != nil {
		abort(c, err)
		return
	}
	takerBP, _ := strconv.ParseUint(c.DefaultQuery("taker_bp", "0"), 10, 16)
	royaltyBP, _ := strconv.ParseUint(c.DefaultQuery("royalty_bp", "0"), 10, 16)
	var quotation *nftpool.Quotation
	switch c.Query("side") {
	case program.SideSell:
		quotation, err = s.model.SellQuote(poolKey, units, uint16(takerBP), uint16(royaltyBP))
	case program.SideBuy:
		quotation, err = s.model.BuyQuote(poolKey, units, uint16(takerBP), uint16(royaltyBP))
	default:
		abort(c, program.ErrInvalidArgs)
		return
	}
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, quoteView(quotation))
}

func (s *Server) getSettlements(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	settlements, err := s.store.Settlements(c.Param("pool"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, settlements)
}

func (s *Server) getEvents(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	events, err := s.store.Events(c.Param("pool"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

type CreatePoolRequest struct {
	env.PoolFixture
}

func (s *Server) postCreatePool(c *gin.Context) {
	req := CreatePoolRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, err)
		return
	}
	if err := s.createPool(&req.PoolFixture); err != nil {
		abort(c, err)
		return
	}
	poolKey, _, err := nftpool.FindPoolAddress(req.Owner, req.Uuid)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pool": poolKey.String()})
}

type UpdatePoolRequest struct {
	Owner               solana.PublicKey `json:"owner"`
	Cosigner            solana.PublicKey `json:"cosigner"`
	Pool                solana.PublicKey `json:"pool"`
	SpotPrice           uint64           `json:"spot_price"`
	CurveType           uint8            `json:"curve_type"`
	CurveDelta          uint64           `json:"curve_delta"`
	ReinvestFulfillBuy  bool             `json:"reinvest_fulfill_buy"`
	ReinvestFulfillSell bool             `json:"reinvest_fulfill_sell"`
	Expiry              int64            `json:"expiry"`
	LpFeeBP             uint16           `json:"lp_fee_bp"`
}

func (s *Server) postUpdatePool(c *gin.Context) {
	req := UpdatePoolRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, err)
		return
	}
	args := &nftpool.UpdatePoolArgs{
		SpotPrice:  req.SpotPrice,
		CurveType:  req.CurveType,
		CurveDelta: req.CurveDelta,
		Expiry:     req.Expiry,
		LpFeeBP:    req.LpFeeBP,
	}
	if req.ReinvestFulfillBuy {
		args.ReinvestFulfillBuy = 1
	}
	if req.ReinvestFulfillSell {
		args.ReinvestFulfillSell = 1
	}
	cosigner := req.Cosigner
	if cosigner.IsZero() {
		cosigner = req.Owner
	}
	in := nftpool.InstructionUpdatePool(req.Owner, cosigner, req.Pool, args)
	id, err := s.execute([]*program.Instruction{in}, signerSet(req.Owner, req.Cosigner))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trx": id})
}

func signerSet(keys ...solana.PublicKey) []solana.PublicKey {
	signers := make([]solana.PublicKey, 0, len(keys))
	for _, key := range keys {
		if !key.IsZero() {
			signers = append(signers, key)
		}
	}
	return signers
}

type SellSideRequest struct {
	Owner    solana.PublicKey `json:"owner"`
	Cosigner solana.PublicKey `json:"cosigner"`
	Pool     solana.PublicKey `json:"pool"`
	Mint     solana.PublicKey `json:"mint"`
	Units    uint64           `json:"units"`
}

func (s *Server) sellSideInstruction(req *SellSideRequest, deposit bool) (*program.Instruction, error) {
	ownerToken, err := env.TokenAccount(req.Owner, req.Mint)
	if err != nil {
		return nil, err
	}
	cosigner := req.Cosigner
	if cosigner.IsZero() {
		cosigner = req.Owner
	}
	accounts, err := sellSideAccounts(req.Owner, cosigner, req.Pool, req.Mint, ownerToken)
	if err != nil {
		return nil, err
	}
	policyState, policyDef, isRestricted, err := s.policyAccounts(req.Mint)
	if err != nil {
		return nil, err
	}
	if deposit {
		args := &nftpool.DepositSellArgs{Units: req.Units}
		if isRestricted {
			return nftpool.InstructionRestrictedDepositSell(accounts, args, policyState, policyDef), nil
		}
		return nftpool.InstructionDepositSell(accounts, args), nil
	}
	args := &nftpool.WithdrawSellArgs{Units: req.Units}
	if isRestricted {
		return nftpool.InstructionRestrictedWithdrawSell(accounts, args, policyState, policyDef), nil
	}
	return nftpool.InstructionWithdrawSell(accounts, args), nil
}

func (s *Server) postSellSide(c *gin.Context, deposit bool, kind string) {
	req := SellSideRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, err)
		return
	}
	in, err := s.sellSideInstruction(&req, deposit)
	if err != nil {
		abort(c, err)
		return
	}
	id, err := s.execute([]*program.Instruction{in}, signerSet(req.Owner, req.Cosigner))
	if err != nil {
		abort(c, err)
		return
	}
	s.recordEvent(req.Pool.String(), kind, req.Mint.String(), req.Units)
	c.JSON(http.StatusOK, gin.H{"trx": id})
}

func (s *Server) postDepositSell(c *gin.Context) {
	s.postSellSide(c, true, "deposit_sell")
}

func (s *Server) postWithdrawSell(c *gin.Context) {
	s.postSellSide(c, false, "withdraw_sell")
}

type BuySideRequest struct {
	Owner    solana.PublicKey `json:"owner"`
	Cosigner solana.PublicKey `json:"cosigner"`
	Pool     solana.PublicKey `json:"pool"`
	Amount   uint64           `json:"amount"`
}

func (s *Server) postBuySide(c *gin.Context, deposit bool, kind string) {
	req := BuySideRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, err)
		return
	}
	escrowKey, _, err := nftpool.FindBuysideEscrowAddress(req.Pool)
	if err != nil {
		abort(c, err)
		return
	}
	cosigner := req.Cosigner
	if cosigner.IsZero() {
		cosigner = req.Owner
	}
	var in *program.Instruction
	if deposit {
		in = nftpool.InstructionDepositBuy(req.Owner, cosigner, req.Pool, escrowKey, &nftpool.DepositBuyArgs{Amount: req.Amount})
	} else {
		in = nftpool.InstructionWithdrawBuy(req.Owner, cosigner, req.Pool, escrowKey, &nftpool.WithdrawBuyArgs{Amount: req.Amount})
	}
	id, err := s.execute([]*program.Instruction{in}, signerSet(req.Owner, req.Cosigner))
	if err != nil {
		abort(c, err)
		return
	}
	s.recordEvent(req.Pool.String(), kind, "", req.Amount)
	c.JSON(http.StatusOK, gin.H{"trx": id})
}

func (s *Server) postDepositBuy(c *gin.Context) {
	s.postBuySide(c, true, "deposit_buy")
}

func (s *Server) postWithdrawBuy(c *gin.Context) {
	s.postBuySide(c, false, "withdraw_buy")
}

type FulfillRequest struct {
	Payer         solana.PublicKey `json:"payer"`
	Cosigner      solana.PublicKey `json:"cosigner"`
	Pool          solana.PublicKey `json:"pool"`
	Mint          solana.PublicKey `json:"mint"`
	Units         uint64           `json:"units"`
	MaxPayment    uint64           `json:"max_payment"`
	MinPayment    uint64           `json:"min_payment"`
	MakerFeeBP    uint16           `json:"maker_fee_bp"`
	TakerFeeBP    uint16           `json:"taker_fee_bp"`
	RoyaltyBP     uint16           `json:"royalty_bp"`
	RoyaltyOption bool             `json:"royalty_option"`
}

// fulfillKeys derives the common fulfillment account set and resolves
// the royalty and referral beneficiaries from live state.
func (s *Server) fulfillKeys(req *FulfillRequest) (*nftpool.PoolLayout, solana.PublicKey, solana.PublicKey, solana.PublicKey, solana.PublicKey, error) {
	zero := solana.PublicKey{}
	pool, err := s.model.Pool(req.Pool)
	if err != nil {
		return nil, zero, zero, zero, zero, err
	}
	metaKey, _, err := metadata.FindMetadataAddress(req.Mint)
	if err != nil {
		return nil, zero, zero, zero, zero, err
	}
	editionKey, _, err := metadata.FindMasterEditionAddress(req.Mint)
	if err != nil {
		return nil, zero, zero, zero, zero, err
	}
	creatorKey := zero
	if account := s.backend.Account(metaKey); account != nil {
		meta := metadata.MetadataLayout{}
		if err := metadata.ReadMetadata(account, &meta); err == nil {
			if creator, ok := meta.FirstVerifiedCreator(); ok {
				creatorKey = creator
			}
		}
	}
	referralKey := zero
	if pool.ReferralOption != 0 {
		referralKey = pool.Referral
	}
	return pool, metaKey, editionKey, creatorKey, referralKey, nil
}

func (s *Server) postFulfillSell(c *gin.Context) {
	req := FulfillRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, err)
		return
	}
	pool, metaKey, editionKey, creatorKey, referralKey, err := s.fulfillKeys(&req)
	if err != nil {
		abort(c, err)
		return
	}
	payerToken, err := env.TokenAccount(req.Payer, req.Mint)
	if err != nil {
		abort(c, err)
		return
	}
	assetEscrow, _, err := nftpool.FindAssetEscrowAddress(req.Pool, req.Mint)
	if err != nil {
		abort(c, err)
		return
	}
	sellStateKey, _, err := nftpool.FindSellStateAddress(req.Pool, req.Mint)
	if err != nil {
		abort(c, err)
		return
	}
	buysideEscrow, _, err := nftpool.FindBuysideEscrowAddress(req.Pool)
	if err != nil {
		abort(c, err)
		return
	}
	cosigner := req.Cosigner
	if cosigner.IsZero() {
		cosigner = req.Payer
	}
	accounts := &nftpool.FulfillSellAccounts{
		Payer:         req.Payer,
		Cosigner:      cosigner,
		Pool:          req.Pool,
		Owner:         pool.Owner,
		Mint:          req.Mint,
		Metadata:      metaKey,
		MasterEdition: editionKey,
		AssetEscrow:   assetEscrow,
		PayerToken:    payerToken,
		SellState:     sellStateKey,
		BuysideEscrow: buysideEscrow,
		Creator:       creatorKey,
		Referral:      referralKey,
	}
	args := &nftpool.FulfillSellArgs{
		Units:      req.Units,
		MaxPayment: req.MaxPayment,
		MakerFeeBP: req.MakerFeeBP,
		TakerFeeBP: req.TakerFeeBP,
		RoyaltyBP:  req.RoyaltyBP,
	}
	if req.RoyaltyOption {
		args.RoyaltyOption = 1
	}
	policyState, policyDef, isRestricted, err := s.policyAccounts(req.Mint)
	if err != nil {
		abort(c, err)
		return
	}
	var in *program.Instruction
	if isRestricted {
		in = nftpool.InstructionRestrictedFulfillSell(accounts, args, policyState, policyDef)
	} else {
		in = nftpool.InstructionFulfillSell(accounts, args)
	}
	id, err := s.execute([]*program.Instruction{in}, signerSet(req.Payer, req.Cosigner))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trx": id})
}

func (s *Server) postFulfillBuy(c *gin.Context) {
	req := FulfillRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, err)
		return
	}
	pool, metaKey, editionKey, creatorKey, referralKey, err := s.fulfillKeys(&req)
	if err != nil {
		abort(c, err)
		return
	}
	payerToken, err := env.TokenAccount(req.Payer, req.Mint)
	if err != nil {
		abort(c, err)
		return
	}
	ownerToken, err := env.TokenAccount(pool.Owner, req.Mint)
	if err != nil {
		abort(c, err)
		return
	}
	assetEscrow, _, err := nftpool.FindAssetEscrowAddress(req.Pool, req.Mint)
	if err != nil {
		abort(c, err)
		return
	}
	sellStateKey, _, err := nftpool.FindSellStateAddress(req.Pool, req.Mint)
	if err != nil {
		abort(c, err)
		return
	}
	buysideEscrow, _, err := nftpool.FindBuysideEscrowAddress(req.Pool)
	if err != nil {
		abort(c, err)
		return
	}
	cosigner := req.Cosigner
	if cosigner.IsZero() {
		cosigner = req.Payer
	}
	accounts := &nftpool.FulfillBuyAccounts{
		Payer:         req.Payer,
		Cosigner:      cosigner,
		Pool:          req.Pool,
		Owner:         pool.Owner,
		Mint:          req.Mint,
		Metadata:      metaKey,
		MasterEdition: editionKey,
		PayerToken:    payerToken,
		AssetEscrow:   assetEscrow,
		OwnerToken:    ownerToken,
		SellState:     sellStateKey,
		BuysideEscrow: buysideEscrow,
		Creator:       creatorKey,
		Referral:      referralKey,
	}
	args := &nftpool.FulfillBuyArgs{
		Units:      req.Units,
		MinPayment: req.MinPayment,
		MakerFeeBP: req.MakerFeeBP,
		TakerFeeBP: req.TakerFeeBP,
		RoyaltyBP:  req.RoyaltyBP,
	}
	if req.RoyaltyOption {
		args.RoyaltyOption = 1
	}
	policyState, policyDef, isRestricted, err := s.policyAccounts(req.Mint)
	if err != nil {
		abort(c, err)
		return
	}
	var in *program.Instruction
	if isRestricted {
		in = nftpool.InstructionRestrictedFulfillBuy(accounts, args, policyState, policyDef)
	} else {
		in = nftpool.InstructionFulfillBuy(accounts, args)
	}
	id, err := s.execute([]*program.Instruction{in}, signerSet(req.Payer, req.Cosigner))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trx": id})
}
