package nftpool

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/backend"
	"github.com/solpool/nftpool/metadata"
	"github.com/solpool/nftpool/policy"
	"github.com/solpool/nftpool/program"
	"github.com/solpool/nftpool/spltoken"
	"github.com/solpool/nftpool/system"
)

func systemTransfer(from, to solana.PublicKey, lamports uint64) *program.Instruction {
	return system.InstructionTransfer(from, to, lamports)
}

// fulfillView is the account set shared by the two fulfillment paths,
// loaded and derivation checked.
type fulfillView struct {
	payerKey      solana.PublicKey
	poolKey       solana.PublicKey
	poolAccount   *backend.Account
	pool          *PoolLayout
	mintKey       solana.PublicKey
	assetEscrow   solana.PublicKey
	payerToken    solana.PublicKey
	sellState     solana.PublicKey
	buysideEscrow solana.PublicKey
	creatorKey    solana.PublicKey
	referralKey   solana.PublicKey
	meta          *metadata.MetadataLayout
}

func (p *Program) fulfillView(ec *backend.ExecContext, in *program.Instruction,
	metaKeys [2]solana.PublicKey) (*fulfillView, error) {
	accounts := in.Accounts()
	view := &fulfillView{
		payerKey: accounts[0].PublicKey,
		poolKey:  accounts[2].PublicKey,
		mintKey:  accounts[4].PublicKey,
	}
	poolAccount, pool, err := p.loadPool(ec, view.poolKey)
	if err != nil {
		return nil, err
	}
	if pool.Owner != accounts[3].PublicKey {
		return nil, fmt.Errorf("pool owner %s: %w", accounts[3].PublicKey, program.ErrWrongOwner)
	}
	if err := checkCosigner(pool, accounts[1].PublicKey); err != nil {
		return nil, err
	}
	if err := checkNotExpired(ec, pool); err != nil {
		return nil, err
	}
	view.poolAccount = poolAccount
	view.pool = pool
	proof, err := buildProof(ec, view.mintKey, metaKeys[0], metaKeys[1])
	if err != nil {
		return nil, err
	}
	view.meta, err = CheckAllowlistsForMint(&pool.Allowlists, proof)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func checkEscrowDerivations(view *fulfillView) error {
	derived, _, err := FindAssetEscrowAddress(view.poolKey, view.mintKey)
	if err != nil {
		return err
	}
	if derived != view.assetEscrow {
		return fmt.Errorf("asset escrow %s: %w", view.assetEscrow, program.ErrWrongDerivation)
	}
	derived, _, err = FindBuysideEscrowAddress(view.poolKey)
	if err != nil {
		return err
	}
	if derived != view.buysideEscrow {
		return fmt.Errorf("payment escrow %s: %w", view.buysideEscrow, program.ErrWrongDerivation)
	}
	return nil
}

// resolveSplit turns the caller's fee terms plus the pool and asset
// state into the concrete lamport disposition of a trade.
func resolveSplit(pool *PoolLayout, meta *metadata.MetadataLayout, gross uint64,
	makerFeeBP, takerFeeBP uint16, royaltyOption uint8, royaltyBP uint16) (*TradeSplit, error) {
	resolved, err := ResolveRoyaltyBP(pool, royaltyBP, royaltyOption != 0, meta.SellerFeeBP)
	if err != nil {
		return nil, err
	}
	if meta.CreatorCount == 0 {
		resolved = 0
	}
	return ComputeSplit(&SplitArgs{
		Gross:           gross,
		MakerFeeBP:      makerFeeBP,
		TakerFeeBP:      takerFeeBP,
		RoyaltyBP:       resolved,
		LpFeeBP:         LpFeeBPFor(pool),
		HasReferral:     pool.ReferralOption != 0,
		ReferralShareBP: pool.ReferralShareBP,
	})
}

// checkBeneficiaries binds the creator and referral accounts in the
// instruction to the ones the split actually pays. Unpaid
// beneficiaries may be passed as the zero key.
func checkBeneficiaries(view *fulfillView, split *TradeSplit) error {
	if split.Royalty > 0 {
		creator, ok := view.meta.FirstVerifiedCreator()
		if !ok {
			return fmt.Errorf("no verified creator for %s: %w", view.mintKey, program.ErrInvalidArgs)
		}
		if view.creatorKey != creator {
			return fmt.Errorf("creator %s: %w", view.creatorKey, program.ErrInvalidArgs)
		}
	}
	if split.ReferralFee > 0 && view.referralKey != view.pool.Referral {
		return fmt.Errorf("referral %s: %w", view.referralKey, program.ErrInvalidArgs)
	}
	return nil
}

func payOut(ec *backend.ExecContext, from, to solana.PublicKey, lamports uint64, pdaSigners ...solana.PublicKey) error {
	if lamports == 0 {
		return nil
	}
	return ec.Invoke(systemTransfer(from, to, lamports), pdaSigners...)
}

// fulfillSell fills against the pool's sell side: the payer buys units
// out of the asset escrow and the curve steps once per unit.
func (p *Program) fulfillSell(ec *backend.ExecContext, in *program.Instruction, data []byte, isRestricted bool) error {
	args := FulfillSellArgs{}
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	if args.Units == 0 {
		return fmt.Errorf("zero units: %w", program.ErrInvalidArgs)
	}
	accounts := in.Accounts()
	if len(accounts) < 13 {
		return fmt.Errorf("fulfill sell accounts: %w", program.ErrInvalidArgs)
	}
	view, err := p.fulfillView(ec, in, [2]solana.PublicKey{accounts[5].PublicKey, accounts[6].PublicKey})
	if err != nil {
		return err
	}
	view.assetEscrow = accounts[7].PublicKey
	view.payerToken = accounts[8].PublicKey
	view.sellState = accounts[9].PublicKey
	view.buysideEscrow = accounts[10].PublicKey
	view.creatorKey = accounts[11].PublicKey
	view.referralKey = accounts[12].PublicKey
	if err := checkEscrowDerivations(view); err != nil {
		return err
	}
	if err := p.gatePolicy(ec, in, view.mintKey, isRestricted, 13, policy.DirectionOut); err != nil {
		return err
	}
	pool := view.pool
	gross, newSpot, err := Quote(pool.CurveType, pool.CurveDelta, pool.SpotPrice, args.Units, FillSell)
	if err != nil {
		return err
	}
	split, err := resolveSplit(pool, view.meta, gross, args.MakerFeeBP, args.TakerFeeBP, args.RoyaltyOption, args.RoyaltyBP)
	if err != nil {
		return err
	}
	if args.MaxPayment != 0 && split.BuyerCost() > args.MaxPayment {
		return fmt.Errorf("cost %d over limit %d: %w", split.BuyerCost(), args.MaxPayment, program.ErrSlippageExceeded)
	}
	if err := checkBeneficiaries(view, split); err != nil {
		return err
	}

	// Assets out of escrow, signed by the pool PDA.
	transfer := spltoken.InstructionTransfer(view.assetEscrow, view.payerToken, view.poolKey, args.Units)
	if err := ec.Invoke(transfer, view.poolKey); err != nil {
		return err
	}
	if err := debitSellState(ec, view.poolKey, pool, view.mintKey, view.sellState, args.Units); err != nil {
		return err
	}
	if err := closeAssetEscrowIfEmpty(ec, view.assetEscrow, view.poolKey, pool.Owner); err != nil {
		return err
	}

	// Proceeds either reinvest into the payment escrow or pay the
	// owner directly. Fees, royalty and referral always pay direct.
	proceeds := split.OwnerProceeds()
	if pool.ReinvestFulfillSell != 0 {
		if !ec.Exists(view.buysideEscrow) {
			if _, err := ec.Create(view.buysideEscrow, program.System, 0, view.payerKey); err != nil {
				return err
			}
		}
		if err := payOut(ec, view.payerKey, view.buysideEscrow, proceeds); err != nil {
			return err
		}
		pool.BuysideAmount += proceeds
	} else {
		if err := payOut(ec, view.payerKey, pool.Owner, proceeds); err != nil {
			return err
		}
	}
	if err := payOut(ec, view.payerKey, pool.Owner, split.OwnerFeeNet+split.LpFee); err != nil {
		return err
	}
	if err := payOut(ec, view.payerKey, view.creatorKey, split.Royalty); err != nil {
		return err
	}
	if err := payOut(ec, view.payerKey, view.referralKey, split.ReferralFee); err != nil {
		return err
	}

	pool.SpotPrice = newSpot
	if err := WritePool(view.poolAccount, pool); err != nil {
		return err
	}
	ec.RecordTrade(&program.TradeResult{
		Pool:        view.poolKey,
		Mint:        view.mintKey,
		Side:        program.SideSell,
		Units:       args.Units,
		Gross:       split.Gross,
		LpFee:       split.LpFee,
		MakerFee:    split.MakerFee,
		TakerFee:    split.TakerFee,
		ReferralFee: split.ReferralFee,
		Royalty:     split.Royalty,
		NewSpot:     newSpot,
		Slot:        ec.Slot(),
	})
	p.log.Printf("fulfill sell %s mint %s x%d gross %d spot %d", view.poolKey, view.mintKey, args.Units, gross, newSpot)
	return tryClosePool(ec, view.poolKey, pool)
}

// fulfillBuy fills against the pool's buy side: the payer sells units
// to the pool, paid from the payment escrow.
func (p *Program) fulfillBuy(ec *backend.ExecContext, in *program.Instruction, data []byte, isRestricted bool) error {
	args := FulfillBuyArgs{}
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	if args.Units == 0 {
		return fmt.Errorf("zero units: %w", program.ErrInvalidArgs)
	}
	accounts := in.Accounts()
	if len(accounts) < 14 {
		return fmt.Errorf("fulfill buy accounts: %w", program.ErrInvalidArgs)
	}
	view, err := p.fulfillView(ec, in, [2]solana.PublicKey{accounts[5].PublicKey, accounts[6].PublicKey})
	if err != nil {
		return err
	}
	view.payerToken = accounts[7].PublicKey
	view.assetEscrow = accounts[8].PublicKey
	ownerToken := accounts[9].PublicKey
	view.sellState = accounts[10].PublicKey
	view.buysideEscrow = accounts[11].PublicKey
	view.creatorKey = accounts[12].PublicKey
	view.referralKey = accounts[13].PublicKey
	if err := checkEscrowDerivations(view); err != nil {
		return err
	}
	if err := p.gatePolicy(ec, in, view.mintKey, isRestricted, 14, policy.DirectionIn); err != nil {
		return err
	}
	pool := view.pool
	gross, newSpot, err := Quote(pool.CurveType, pool.CurveDelta, pool.SpotPrice, args.Units, FillBuy)
	if err != nil {
		return err
	}
	split, err := resolveSplit(pool, view.meta, gross, args.MakerFeeBP, args.TakerFeeBP, args.RoyaltyOption, args.RoyaltyBP)
	if err != nil {
		return err
	}
	outlay := split.EscrowOutlay()
	if outlay > pool.BuysideAmount {
		return fmt.Errorf("outlay %d of %d: %w", outlay, pool.BuysideAmount, program.ErrInsufficientBalance)
	}
	if args.MinPayment != 0 && split.SellerProceeds() < args.MinPayment {
		return fmt.Errorf("proceeds %d under limit %d: %w", split.SellerProceeds(), args.MinPayment, program.ErrSlippageExceeded)
	}
	if err := checkBeneficiaries(view, split); err != nil {
		return err
	}

	// Assets either reinvest into the pool's sell side or deliver to
	// the owner's token account.
	if pool.ReinvestFulfillBuy != 0 {
		if err := ensureAssetEscrow(ec, view.assetEscrow, view.mintKey, view.poolKey, view.payerKey); err != nil {
			return err
		}
		transfer := spltoken.InstructionTransfer(view.payerToken, view.assetEscrow, view.payerKey, args.Units)
		if err := ec.Invoke(transfer); err != nil {
			return err
		}
		if err := creditSellState(ec, view.poolKey, pool, view.mintKey, view.sellState, view.payerKey, args.Units); err != nil {
			return err
		}
	} else {
		transfer := spltoken.InstructionTransfer(view.payerToken, ownerToken, view.payerKey, args.Units)
		if err := ec.Invoke(transfer); err != nil {
			return err
		}
	}

	// Payment out of escrow, signed by the escrow PDA.
	if err := payOut(ec, view.buysideEscrow, view.payerKey, split.SellerProceeds(), view.buysideEscrow); err != nil {
		return err
	}
	if err := payOut(ec, view.buysideEscrow, pool.Owner, split.OwnerFeeNet+split.LpFee, view.buysideEscrow); err != nil {
		return err
	}
	if err := payOut(ec, view.buysideEscrow, view.creatorKey, split.Royalty, view.buysideEscrow); err != nil {
		return err
	}
	if err := payOut(ec, view.buysideEscrow, view.referralKey, split.ReferralFee, view.buysideEscrow); err != nil {
		return err
	}
	pool.BuysideAmount -= outlay
	if pool.BuysideAmount == 0 {
		if err := ec.Close(view.buysideEscrow, pool.Owner); err != nil {
			return err
		}
	}

	pool.SpotPrice = newSpot
	if err := WritePool(view.poolAccount, pool); err != nil {
		return err
	}
	ec.RecordTrade(&program.TradeResult{
		Pool:        view.poolKey,
		Mint:        view.mintKey,
		Side:        program.SideBuy,
		Units:       args.Units,
		Gross:       split.Gross,
		LpFee:       split.LpFee,
		MakerFee:    split.MakerFee,
		TakerFee:    split.TakerFee,
		ReferralFee: split.ReferralFee,
		Royalty:     split.Royalty,
		NewSpot:     newSpot,
		Slot:        ec.Slot(),
	})
	p.log.Printf("fulfill buy %s mint %s x%d gross %d spot %d", view.poolKey, view.mintKey, args.Units, gross, newSpot)
	return tryClosePool(ec, view.poolKey, pool)
}
