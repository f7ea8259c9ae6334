package backend

import (
	"fmt"

	"github.com/badgerodon/collections/stack"
	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/program"
	"github.com/solpool/nftpool/store"
)

const maxInvokeDepth = 4

// Transaction is one atomic unit of work: a list of instructions and
// the set of keys that signed it. Signature verification itself is
// outside the engine, the backend trusts the signer set it is handed.
type Transaction struct {
	Id           uint64
	Instructions []*program.Instruction
	Signers      []solana.PublicKey
}

// ExecContext is the staged account view one transaction executes
// against. Nothing it stages is visible to the committed table until
// every instruction in the transaction has succeeded.
type ExecContext struct {
	backend    *Backend
	staged     map[solana.PublicKey]*Account
	journal    *stack.Stack
	signers    map[solana.PublicKey]bool
	pdaSigners map[solana.PublicKey]bool
	slot       uint64
	trades     []*program.TradeResult
	depth      int
}

func (backend *Backend) Execute(trx *Transaction) error {
	backend.lock.Lock()
	defer backend.lock.Unlock()
	if backend.halted {
		return fmt.Errorf("backend halted: %w", program.ErrStateDiverged)
	}
	backend.slot++
	ec := &ExecContext{
		backend:    backend,
		staged:     make(map[solana.PublicKey]*Account),
		journal:    stack.New(),
		signers:    make(map[solana.PublicKey]bool),
		pdaSigners: make(map[solana.PublicKey]bool),
		slot:       backend.slot,
	}
	for _, signer := range trx.Signers {
		ec.signers[signer] = true
	}
	for i, in := range trx.Instructions {
		if err := ec.dispatch(in); err != nil {
			if program.IsConsistency(err) {
				backend.halted = true
				backend.logger.Printf("trx %d halted the backend: %s", trx.Id, err)
			}
			backend.logger.Printf("trx %d instruction %d failed: %s", trx.Id, i, err)
			return err
		}
	}
	ec.commit()
	backend.record(trx, ec)
	return nil
}

func (ec *ExecContext) dispatch(in *program.Instruction) error {
	handler, ok := ec.backend.handlers[in.ProgramID()]
	if !ok {
		return fmt.Errorf("program %s: %w", in.ProgramID(), program.ErrAccountNotFound)
	}
	for _, meta := range in.Accounts() {
		if meta.IsSigner && !ec.IsSigner(meta.PublicKey) {
			return fmt.Errorf("%s: %w", meta.PublicKey, program.ErrWrongSigner)
		}
	}
	return handler.Execute(ec, in)
}

// Invoke runs a nested instruction inside the same staged view. The
// extra keys act as signers for its duration, the way a program signs
// with its derived addresses.
func (ec *ExecContext) Invoke(in *program.Instruction, signedPDAs ...solana.PublicKey) error {
	if ec.depth >= maxInvokeDepth {
		return fmt.Errorf("invoke depth: %w", program.ErrInvalidArgs)
	}
	added := make([]solana.PublicKey, 0, len(signedPDAs))
	for _, key := range signedPDAs {
		if !ec.pdaSigners[key] {
			ec.pdaSigners[key] = true
			added = append(added, key)
		}
	}
	ec.depth++
	err := ec.dispatch(in)
	ec.depth--
	for _, key := range added {
		delete(ec.pdaSigners, key)
	}
	return err
}

func (ec *ExecContext) Slot() uint64 {
	return ec.slot
}

func (ec *ExecContext) IsSigner(key solana.PublicKey) bool {
	return ec.signers[key] || ec.pdaSigners[key]
}

// Account stages the account for writing and returns it. The same
// transaction always sees the same staged copy.
func (ec *ExecContext) Account(key solana.PublicKey) (*Account, error) {
	if account, ok := ec.staged[key]; ok {
		if account.Lamports == 0 {
			return nil, fmt.Errorf("%s: %w", key, program.ErrAccountNotFound)
		}
		return account, nil
	}
	committed, ok := ec.backend.accounts[key]
	if !ok || committed.Lamports == 0 {
		return nil, fmt.Errorf("%s: %w", key, program.ErrAccountNotFound)
	}
	account := committed.clone()
	ec.staged[key] = account
	ec.journal.Push(key)
	return account, nil
}

// Ensure stages the account, creating an empty system-owned one when
// nothing exists under the key. Lamport funding is the caller's concern.
func (ec *ExecContext) Ensure(key solana.PublicKey) *Account {
	if account, ok := ec.staged[key]; ok {
		return account
	}
	if committed, ok := ec.backend.accounts[key]; ok {
		account := committed.clone()
		ec.staged[key] = account
		ec.journal.Push(key)
		return account
	}
	account := &Account{PubKey: key, Owner: program.System, Height: ec.slot}
	ec.staged[key] = account
	ec.journal.Push(key)
	return account
}

func (ec *ExecContext) Exists(key solana.PublicKey) bool {
	if account, ok := ec.staged[key]; ok {
		return account.Lamports > 0
	}
	committed, ok := ec.backend.accounts[key]
	return ok && committed.Lamports > 0
}

// Create allocates a fresh rent-exempt account, funding it from payer.
func (ec *ExecContext) Create(key solana.PublicKey, owner solana.PublicKey, space int, payer solana.PublicKey) (*Account, error) {
	if ec.Exists(key) {
		return nil, fmt.Errorf("create %s: %w", key, program.ErrInvalidArgs)
	}
	rent := RentExemptMinimum(space)
	payerAccount, err := ec.Account(payer)
	if err != nil {
		return nil, err
	}
	if payerAccount.Lamports < rent {
		return nil, fmt.Errorf("create %s needs %d lamports: %w", key, rent, program.ErrInsufficientBalance)
	}
	payerAccount.Lamports -= rent
	account := &Account{
		PubKey:   key,
		Lamports: rent,
		Owner:    owner,
		Data:     make([]byte, space),
		Height:   ec.slot,
	}
	ec.staged[key] = account
	ec.journal.Push(key)
	return account, nil
}

// Close sweeps every lamport of the account to receiver and zeroes it.
// Closing an account the transaction never staged is an error, closing
// twice is not.
func (ec *ExecContext) Close(key solana.PublicKey, receiver solana.PublicKey) error {
	account, err := ec.Account(key)
	if err != nil {
		return err
	}
	receiverAccount, ok := ec.staged[receiver]
	if !ok {
		receiverAccount, err = ec.Account(receiver)
		if err != nil {
			return err
		}
	}
	receiverAccount.Lamports += account.Lamports
	account.Lamports = 0
	account.Data = nil
	account.Owner = program.System
	return nil
}

func (ec *ExecContext) RecordTrade(trade *program.TradeResult) {
	trade.Slot = ec.slot
	ec.trades = append(ec.trades, trade)
}

func (ec *ExecContext) commit() {
	for ec.journal.Len() > 0 {
		key := ec.journal.Pop().(solana.PublicKey)
		account, ok := ec.staged[key]
		if !ok {
			continue
		}
		delete(ec.staged, key)
		account.Height = ec.slot
		if account.Lamports == 0 {
			delete(ec.backend.accounts, key)
			continue
		}
		ec.backend.accounts[key] = account
	}
}

func (backend *Backend) record(trx *Transaction, ec *ExecContext) {
	for _, trade := range ec.trades {
		backend.logger.Printf("trx %d settled %s %s x%d gross %d at slot %d",
			trx.Id, trade.Side, trade.Mint, trade.Units, trade.Gross, trade.Slot)
		if backend.callback != nil {
			backend.callback(trade)
		}
		if backend.store == nil {
			continue
		}
		backend.store.StoreSettlement(&store.Settlement{
			TrxId:       trx.Id,
			Pool:        trade.Pool.String(),
			Mint:        trade.Mint.String(),
			Side:        trade.Side,
			Units:       trade.Units,
			Gross:       trade.Gross,
			LpFee:       trade.LpFee,
			MakerFee:    trade.MakerFee,
			TakerFee:    trade.TakerFee,
			ReferralFee: trade.ReferralFee,
			Royalty:     trade.Royalty,
			NewSpot:     trade.NewSpot,
			Slot:        trade.Slot,
		})
	}
}
