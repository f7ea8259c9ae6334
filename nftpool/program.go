package nftpool

import (
	"encoding/binary"
	"fmt"
	"log"

	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/backend"
	"github.com/solpool/nftpool/config"
	"github.com/solpool/nftpool/policy"
	"github.com/solpool/nftpool/program"
	"github.com/solpool/nftpool/spltoken"
	"github.com/solpool/nftpool/utils"
)

type Program struct {
	id  solana.PublicKey
	log *log.Logger
}

func NewProgram() *Program {
	return &Program{
		id:  program.NftPool,
		log: utils.NewLog(config.LogPath, config.PoolLog),
	}
}

func (p *Program) Name() string {
	return "nft pool"
}

func (p *Program) Id() solana.PublicKey {
	return p.id
}

func (p *Program) Execute(ec *backend.ExecContext, in *program.Instruction) error {
	data, _ := in.Data()
	if len(data) < 1 {
		return fmt.Errorf("pool instruction empty: %w", program.ErrInvalidArgs)
	}
	switch data[0] {
	case CommandCreatePool:
		return p.createPool(ec, in, data[1:])
	case CommandUpdatePool:
		return p.updatePool(ec, in, data[1:])
	case CommandSetAllowlists:
		return p.setAllowlists(ec, in, data[1:])
	case CommandDepositSell, CommandRestrictedDepositSell:
		return p.depositSell(ec, in, data[1:], data[0] == CommandRestrictedDepositSell)
	case CommandWithdrawSell, CommandRestrictedWithdrawSell:
		return p.withdrawSell(ec, in, data[1:], data[0] == CommandRestrictedWithdrawSell)
	case CommandDepositBuy:
		return p.depositBuy(ec, in, data[1:])
	case CommandWithdrawBuy:
		return p.withdrawBuy(ec, in, data[1:])
	case CommandFulfillSell, CommandRestrictedFulfillSell:
		return p.fulfillSell(ec, in, data[1:], data[0] == CommandRestrictedFulfillSell)
	case CommandFulfillBuy, CommandRestrictedFulfillBuy:
		return p.fulfillBuy(ec, in, data[1:], data[0] == CommandRestrictedFulfillBuy)
	default:
		return fmt.Errorf("pool command %d: %w", data[0], program.ErrInvalidArgs)
	}
}

func (p *Program) loadPool(ec *backend.ExecContext, poolKey solana.PublicKey) (*backend.Account, *PoolLayout, error) {
	account, err := ec.Account(poolKey)
	if err != nil {
		return nil, nil, err
	}
	pool := &PoolLayout{}
	if err := ReadPool(account, pool); err != nil {
		return nil, nil, err
	}
	return account, pool, nil
}

// authorize checks the owner/cosigner identity pair against the pool.
// Signature presence is already enforced by the backend, this binds
// the signers to the pool's configured identities.
func authorize(pool *PoolLayout, owner, cosigner solana.PublicKey) error {
	if pool.Owner != owner {
		return fmt.Errorf("owner %s: %w", owner, program.ErrWrongSigner)
	}
	return checkCosigner(pool, cosigner)
}

func checkCosigner(pool *PoolLayout, cosigner solana.PublicKey) error {
	if !pool.Cosigner.IsZero() && pool.Cosigner != cosigner {
		return fmt.Errorf("cosigner %s: %w", cosigner, program.ErrWrongSigner)
	}
	return nil
}

func clockNow(ec *backend.ExecContext) (int64, error) {
	account, err := ec.Account(program.SysClock)
	if err != nil {
		return 0, err
	}
	if len(account.Data) != 8 {
		return 0, fmt.Errorf("clock sysvar: %w", program.ErrInvalidArgs)
	}
	return int64(binary.LittleEndian.Uint64(account.Data)), nil
}

// checkNotExpired refuses fulfillments past the pool's expiry. A pool
// with an expiry needs a readable clock, an unset clock does not pass.
func checkNotExpired(ec *backend.ExecContext, pool *PoolLayout) error {
	if pool.Expiry == 0 {
		return nil
	}
	now, err := clockNow(ec)
	if err != nil {
		return err
	}
	if now > pool.Expiry {
		return fmt.Errorf("expiry %d: %w", pool.Expiry, program.ErrExpired)
	}
	return nil
}

// mintRestricted reports whether the mint sits under the transfer
// policy engine: its freeze authority is the policy program.
func mintRestricted(ec *backend.ExecContext, mintKey solana.PublicKey) (bool, error) {
	account, err := ec.Account(mintKey)
	if err != nil {
		return false, err
	}
	token := spltoken.TokenLayout{}
	if err := spltoken.ReadToken(account, &token); err != nil {
		return false, err
	}
	if token.FreezeAuthorityOption == [4]byte{} {
		return false, nil
	}
	return token.FreezeAuthority == program.Policy, nil
}

// gatePolicy enforces the restricted-transfer routing: a restricted
// asset only moves through the restricted instructions, which consult
// the policy engine inside the same transaction.
func (p *Program) gatePolicy(ec *backend.ExecContext, in *program.Instruction, mintKey solana.PublicKey,
	restricted bool, policyOffset int, direction byte) error {
	isRestricted, err := mintRestricted(ec, mintKey)
	if err != nil {
		return err
	}
	if !restricted {
		if isRestricted {
			return fmt.Errorf("mint %s requires the policy engine: %w", mintKey, program.ErrPolicyRejected)
		}
		return nil
	}
	if !isRestricted {
		return fmt.Errorf("mint %s is not policy restricted: %w", mintKey, program.ErrInvalidArgs)
	}
	accounts := in.Accounts()
	if len(accounts) < policyOffset+2 {
		return fmt.Errorf("policy accounts missing: %w", program.ErrInvalidArgs)
	}
	policyState := accounts[policyOffset].PublicKey
	policyDef := accounts[policyOffset+1].PublicKey
	derived, _, err := policy.FindStateAddress(policyDef, mintKey)
	if err != nil {
		return err
	}
	if derived != policyState {
		return fmt.Errorf("policy state %s: %w", policyState, program.ErrWrongDerivation)
	}
	return ec.Invoke(policy.InstructionApprove(policyState, policyDef, mintKey, direction))
}

func (p *Program) createPool(ec *backend.ExecContext, in *program.Instruction, data []byte) error {
	args := CreatePoolArgs{}
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	accounts := in.Accounts()
	if len(accounts) != 3 {
		return fmt.Errorf("create pool accounts: %w", program.ErrInvalidArgs)
	}
	ownerKey := accounts[0].PublicKey
	cosignerKey := accounts[1].PublicKey
	poolKey := accounts[2].PublicKey
	derived, bump, err := FindPoolAddress(ownerKey, args.Uuid)
	if err != nil {
		return err
	}
	if derived != poolKey {
		return fmt.Errorf("pool %s: %w", poolKey, program.ErrWrongDerivation)
	}
	if err := CheckCurve(args.CurveType, args.CurveDelta); err != nil {
		return err
	}
	if args.SpotPrice == 0 {
		return fmt.Errorf("zero spot price: %w", program.ErrInvalidCurveState)
	}
	for _, bp := range []uint16{args.LpFeeBP, args.ReferralShareBP, args.RoyaltyFloorBP, args.RoyaltyCeilingBP} {
		if err := CheckBP(bp); err != nil {
			return err
		}
	}
	if args.ReferralOption != 0 && args.Referral.IsZero() {
		return fmt.Errorf("referral missing: %w", program.ErrInvalidArgs)
	}
	if err := CheckAllowlists(&args.Allowlists); err != nil {
		return err
	}
	_, escrowBump, err := FindBuysideEscrowAddress(poolKey)
	if err != nil {
		return err
	}
	account, err := ec.Create(poolKey, p.id, PoolLayoutSize, ownerKey)
	if err != nil {
		return err
	}
	cosigner := cosignerKey
	if cosigner == ownerKey {
		cosigner = solana.PublicKey{}
	}
	pool := &PoolLayout{
		Owner:               ownerKey,
		Cosigner:            cosigner,
		Uuid:                args.Uuid,
		Allowlists:          args.Allowlists,
		CurveType:           args.CurveType,
		CurveDelta:          args.CurveDelta,
		SpotPrice:           args.SpotPrice,
		ReinvestFulfillBuy:  args.ReinvestFulfillBuy,
		ReinvestFulfillSell: args.ReinvestFulfillSell,
		Expiry:              args.Expiry,
		LpFeeBP:             args.LpFeeBP,
		RoyaltyFloorBP:      args.RoyaltyFloorBP,
		RoyaltyCeilingBP:    args.RoyaltyCeilingBP,
		RoyaltyFloorPrice:   args.RoyaltyFloorPrice,
		RoyaltyCeilingPrice: args.RoyaltyCeilingPrice,
		ReferralOption:      args.ReferralOption,
		Referral:            args.Referral,
		ReferralShareBP:     args.ReferralShareBP,
		EscrowBump:          escrowBump,
		Bump:                bump,
	}
	p.log.Printf("create pool %s owner %s spot %d", poolKey, ownerKey, args.SpotPrice)
	return WritePool(account, pool)
}

func (p *Program) updatePool(ec *backend.ExecContext, in *program.Instruction, data []byte) error {
	args := UpdatePoolArgs{}
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	accounts := in.Accounts()
	if len(accounts) != 3 {
		return fmt.Errorf("update pool accounts: %w", program.ErrInvalidArgs)
	}
	account, pool, err := p.loadPool(ec, accounts[2].PublicKey)
	if err != nil {
		return err
	}
	if err := authorize(pool, accounts[0].PublicKey, accounts[1].PublicKey); err != nil {
		return err
	}
	if err := CheckCurve(args.CurveType, args.CurveDelta); err != nil {
		return err
	}
	if args.SpotPrice == 0 {
		return fmt.Errorf("zero spot price: %w", program.ErrInvalidCurveState)
	}
	if err := CheckBP(args.LpFeeBP); err != nil {
		return err
	}
	pool.SpotPrice = args.SpotPrice
	pool.CurveType = args.CurveType
	pool.CurveDelta = args.CurveDelta
	pool.ReinvestFulfillBuy = args.ReinvestFulfillBuy
	pool.ReinvestFulfillSell = args.ReinvestFulfillSell
	pool.Expiry = args.Expiry
	pool.LpFeeBP = args.LpFeeBP
	return WritePool(account, pool)
}

func (p *Program) setAllowlists(ec *backend.ExecContext, in *program.Instruction, data []byte) error {
	args := SetAllowlistsArgs{}
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	accounts := in.Accounts()
	if len(accounts) != 3 {
		return fmt.Errorf("set allowlists accounts: %w", program.ErrInvalidArgs)
	}
	account, pool, err := p.loadPool(ec, accounts[2].PublicKey)
	if err != nil {
		return err
	}
	if err := authorize(pool, accounts[0].PublicKey, accounts[1].PublicKey); err != nil {
		return err
	}
	if err := CheckAllowlists(&args.Allowlists); err != nil {
		return err
	}
	pool.Allowlists = args.Allowlists
	return WritePool(account, pool)
}

// sellSide collects the account set shared by deposit-sell and
// withdraw-sell, already identity checked against the pool.
type sellSideView struct {
	ownerKey    solana.PublicKey
	poolKey     solana.PublicKey
	poolAccount *backend.Account
	pool        *PoolLayout
	mintKey     solana.PublicKey
	ownerToken  solana.PublicKey
	assetEscrow solana.PublicKey
	sellState   solana.PublicKey
	proof       *EligibilityProof
}

func (p *Program) sellSideView(ec *backend.ExecContext, in *program.Instruction) (*sellSideView, error) {
	accounts := in.Accounts()
	if len(accounts) < 9 {
		return nil, fmt.Errorf("sell side accounts: %w", program.ErrInvalidArgs)
	}
	view := &sellSideView{
		ownerKey:    accounts[0].PublicKey,
		poolKey:     accounts[2].PublicKey,
		mintKey:     accounts[3].PublicKey,
		ownerToken:  accounts[6].PublicKey,
		assetEscrow: accounts[7].PublicKey,
		sellState:   accounts[8].PublicKey,
	}
	poolAccount, pool, err := p.loadPool(ec, view.poolKey)
	if err != nil {
		return nil, err
	}
	if err := authorize(pool, view.ownerKey, accounts[1].PublicKey); err != nil {
		return nil, err
	}
	derived, _, err := FindAssetEscrowAddress(view.poolKey, view.mintKey)
	if err != nil {
		return nil, err
	}
	if derived != view.assetEscrow {
		return nil, fmt.Errorf("asset escrow %s: %w", view.assetEscrow, program.ErrWrongDerivation)
	}
	view.poolAccount = poolAccount
	view.pool = pool
	view.proof, err = buildProof(ec, view.mintKey, accounts[4].PublicKey, accounts[5].PublicKey)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func buildProof(ec *backend.ExecContext, mintKey, metadataKey, editionKey solana.PublicKey) (*EligibilityProof, error) {
	proof := &EligibilityProof{Mint: mintKey}
	metadataAccount, err := ec.Account(metadataKey)
	if err != nil {
		return nil, fmt.Errorf("metadata for %s: %w", mintKey, program.ErrAssetNotAllowed)
	}
	proof.Metadata = metadataAccount
	if ec.Exists(editionKey) {
		editionAccount, err := ec.Account(editionKey)
		if err != nil {
			return nil, err
		}
		proof.MasterEdition = editionAccount
	}
	return proof, nil
}

// ensureAssetEscrow creates and initializes the pool's token escrow
// for a mint the first time units of that mint arrive.
func ensureAssetEscrow(ec *backend.ExecContext, escrowKey, mintKey, poolKey, rentPayer solana.PublicKey) error {
	if ec.Exists(escrowKey) {
		return nil
	}
	if _, err := ec.Create(escrowKey, program.Token, spltoken.TokenLayoutSize, rentPayer); err != nil {
		return err
	}
	return ec.Invoke(spltoken.InstructionInitAccount(escrowKey, mintKey, poolKey))
}

// closeAssetEscrowIfEmpty reclaims the token escrow's rent once it no
// longer holds units.
func closeAssetEscrowIfEmpty(ec *backend.ExecContext, escrowKey, poolKey, receiver solana.PublicKey) error {
	account, err := ec.Account(escrowKey)
	if err != nil {
		return err
	}
	user := spltoken.UserLayout{}
	if err := spltoken.ReadUser(account, &user); err != nil {
		return err
	}
	if user.Amount != 0 {
		return nil
	}
	return ec.Invoke(spltoken.InstructionClose(escrowKey, receiver, poolKey), poolKey)
}

func (p *Program) depositSell(ec *backend.ExecContext, in *program.Instruction, data []byte, isRestricted bool) error {
	args := DepositSellArgs{}
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	if args.Units == 0 {
		return fmt.Errorf("zero units: %w", program.ErrInvalidArgs)
	}
	view, err := p.sellSideView(ec, in)
	if err != nil {
		return err
	}
	if _, err := CheckAllowlistsForMint(&view.pool.Allowlists, view.proof); err != nil {
		return err
	}
	if err := p.gatePolicy(ec, in, view.mintKey, isRestricted, 9, policy.DirectionIn); err != nil {
		return err
	}
	if err := ensureAssetEscrow(ec, view.assetEscrow, view.mintKey, view.poolKey, view.ownerKey); err != nil {
		return err
	}
	transfer := spltoken.InstructionTransfer(view.ownerToken, view.assetEscrow, view.ownerKey, args.Units)
	if err := ec.Invoke(transfer); err != nil {
		return err
	}
	if err := creditSellState(ec, view.poolKey, view.pool, view.mintKey, view.sellState, view.ownerKey, args.Units); err != nil {
		return err
	}
	p.log.Printf("deposit sell %s mint %s x%d", view.poolKey, view.mintKey, args.Units)
	return WritePool(view.poolAccount, view.pool)
}

func (p *Program) withdrawSell(ec *backend.ExecContext, in *program.Instruction, data []byte, isRestricted bool) error {
	args := WithdrawSellArgs{}
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	if args.Units == 0 {
		return fmt.Errorf("zero units: %w", program.ErrInvalidArgs)
	}
	view, err := p.sellSideView(ec, in)
	if err != nil {
		return err
	}
	if err := p.gatePolicy(ec, in, view.mintKey, isRestricted, 9, policy.DirectionOut); err != nil {
		return err
	}
	transfer := spltoken.InstructionTransfer(view.assetEscrow, view.ownerToken, view.poolKey, args.Units)
	if err := ec.Invoke(transfer, view.poolKey); err != nil {
		return err
	}
	if err := debitSellState(ec, view.poolKey, view.pool, view.mintKey, view.sellState, args.Units); err != nil {
		return err
	}
	if err := closeAssetEscrowIfEmpty(ec, view.assetEscrow, view.poolKey, view.pool.Owner); err != nil {
		return err
	}
	if err := WritePool(view.poolAccount, view.pool); err != nil {
		return err
	}
	p.log.Printf("withdraw sell %s mint %s x%d", view.poolKey, view.mintKey, args.Units)
	return tryClosePool(ec, view.poolKey, view.pool)
}

func (p *Program) depositBuy(ec *backend.ExecContext, in *program.Instruction, data []byte) error {
	args := DepositBuyArgs{}
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	if args.Amount == 0 {
		return fmt.Errorf("zero amount: %w", program.ErrInvalidArgs)
	}
	accounts := in.Accounts()
	if len(accounts) != 4 {
		return fmt.Errorf("deposit buy accounts: %w", program.ErrInvalidArgs)
	}
	ownerKey := accounts[0].PublicKey
	poolKey := accounts[2].PublicKey
	escrowKey := accounts[3].PublicKey
	poolAccount, pool, err := p.loadPool(ec, poolKey)
	if err != nil {
		return err
	}
	if err := authorize(pool, ownerKey, accounts[1].PublicKey); err != nil {
		return err
	}
	derived, _, err := FindBuysideEscrowAddress(poolKey)
	if err != nil {
		return err
	}
	if derived != escrowKey {
		return fmt.Errorf("payment escrow %s: %w", escrowKey, program.ErrWrongDerivation)
	}
	if !ec.Exists(escrowKey) {
		if _, err := ec.Create(escrowKey, program.System, 0, ownerKey); err != nil {
			return err
		}
	}
	if err := ec.Invoke(systemTransfer(ownerKey, escrowKey, args.Amount)); err != nil {
		return err
	}
	pool.BuysideAmount += args.Amount
	p.log.Printf("deposit buy %s amount %d", poolKey, args.Amount)
	return WritePool(poolAccount, pool)
}

func (p *Program) withdrawBuy(ec *backend.ExecContext, in *program.Instruction, data []byte) error {
	args := WithdrawBuyArgs{}
	if err := decodeArgs(data, &args); err != nil {
		return err
	}
	if args.Amount == 0 {
		return fmt.Errorf("zero amount: %w", program.ErrInvalidArgs)
	}
	accounts := in.Accounts()
	if len(accounts) != 4 {
		return fmt.Errorf("withdraw buy accounts: %w", program.ErrInvalidArgs)
	}
	ownerKey := accounts[0].PublicKey
	poolKey := accounts[2].PublicKey
	escrowKey := accounts[3].PublicKey
	poolAccount, pool, err := p.loadPool(ec, poolKey)
	if err != nil {
		return err
	}
	if err := authorize(pool, ownerKey, accounts[1].PublicKey); err != nil {
		return err
	}
	derived, _, err := FindBuysideEscrowAddress(poolKey)
	if err != nil {
		return err
	}
	if derived != escrowKey {
		return fmt.Errorf("payment escrow %s: %w", escrowKey, program.ErrWrongDerivation)
	}
	if args.Amount > pool.BuysideAmount {
		return fmt.Errorf("withdraw %d of %d: %w", args.Amount, pool.BuysideAmount, program.ErrInsufficientBalance)
	}
	if err := ec.Invoke(systemTransfer(escrowKey, ownerKey, args.Amount), escrowKey); err != nil {
		return err
	}
	pool.BuysideAmount -= args.Amount
	if pool.BuysideAmount == 0 {
		if err := ec.Close(escrowKey, pool.Owner); err != nil {
			return err
		}
	}
	if err := WritePool(poolAccount, pool); err != nil {
		return err
	}
	p.log.Printf("withdraw buy %s amount %d", poolKey, args.Amount)
	return tryClosePool(ec, poolKey, pool)
}
