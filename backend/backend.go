package backend

import (
	"context"
	"encoding/binary"
	"log"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/config"
	"github.com/solpool/nftpool/program"
	"github.com/solpool/nftpool/store"
	"github.com/solpool/nftpool/utils"
)

// Handler is a program hosted by the backend. Execute runs one
// instruction against the transaction's staged account view.
type Handler interface {
	Name() string
	Id() solana.PublicKey
	Execute(ec *ExecContext, in *program.Instruction) error
}

// Backend holds the account table and executes transactions against
// it one at a time. Each transaction either commits every account it
// wrote or leaves the table untouched.
type Backend struct {
	logger   *log.Logger
	ctx      context.Context
	lock     sync.Mutex
	accounts map[solana.PublicKey]*Account
	handlers map[solana.PublicKey]Handler
	slot     uint64
	store    *store.Store
	callback func(*program.TradeResult)
	halted   bool
}

func NewBackend(ctx context.Context) *Backend {
	backend := &Backend{
		ctx:      ctx,
		logger:   utils.NewLog(config.LogPath, config.BackendLog),
		accounts: make(map[solana.PublicKey]*Account),
		handlers: make(map[solana.PublicKey]Handler),
		slot:     1,
	}
	return backend
}

func (backend *Backend) Register(handler Handler) {
	backend.handlers[handler.Id()] = handler
	backend.logger.Printf("register program %s (%s)", handler.Name(), handler.Id())
}

func (backend *Backend) SetStore(s *store.Store) {
	backend.store = s
}

// SetTradeCallback installs a hook called with every settled trade
// after its transaction commits.
func (backend *Backend) SetTradeCallback(cb func(*program.TradeResult)) {
	backend.callback = cb
}

func (backend *Backend) Slot() uint64 {
	backend.lock.Lock()
	defer backend.lock.Unlock()
	return backend.slot
}

// Account returns a copy of the committed account, nil if the account
// does not exist or holds no lamports.
func (backend *Backend) Account(key solana.PublicKey) *Account {
	backend.lock.Lock()
	defer backend.lock.Unlock()
	account, ok := backend.accounts[key]
	if !ok || account.Lamports == 0 {
		return nil
	}
	return account.clone()
}

func (backend *Backend) Accounts(keys []solana.PublicKey) []*Account {
	accounts := make([]*Account, 0, len(keys))
	for _, key := range keys {
		accounts = append(accounts, backend.Account(key))
	}
	return accounts
}

func (backend *Backend) Balance(key solana.PublicKey) uint64 {
	account := backend.Account(key)
	if account == nil {
		return 0
	}
	return account.Lamports
}

// SetClock publishes the wall clock into the clock sysvar account so
// programs can evaluate expiries.
func (backend *Backend) SetClock(unix int64) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(unix))
	backend.SetAccount(&Account{
		PubKey:   program.SysClock,
		Lamports: 1,
		Owner:    program.System,
		Data:     data,
	})
}

// SetAccount installs a genesis account directly, bypassing execution.
// Used by env fixtures and tests only.
func (backend *Backend) SetAccount(account *Account) {
	backend.lock.Lock()
	defer backend.lock.Unlock()
	account.Height = backend.slot
	backend.accounts[account.PubKey] = account
}

// Airdrop credits lamports to a system account, creating it if needed.
func (backend *Backend) Airdrop(key solana.PublicKey, lamports uint64) {
	backend.lock.Lock()
	defer backend.lock.Unlock()
	account, ok := backend.accounts[key]
	if !ok {
		account = &Account{PubKey: key, Owner: program.System}
		backend.accounts[key] = account
	}
	account.Lamports += lamports
	account.Height = backend.slot
}
