package env

import (
	"log"

	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/backend"
	"golang.org/x/net/context"
)

type Env struct {
	logger  *log.Logger
	ctx     context.Context
	wallets map[solana.PublicKey]*Wallet
	mints   map[solana.PublicKey]*Mint
	pools   []*PoolFixture
}

func NewEnv(ctx context.Context) *Env {
	env := &Env{
		ctx:     ctx,
		logger:  log.Default(),
		wallets: make(map[solana.PublicKey]*Wallet),
		mints:   make(map[solana.PublicKey]*Mint),
		pools:   make([]*PoolFixture, 0),
	}
	return env
}

func (e *Env) Start() {
	e.logger.Printf("start env......")
	e.loadWallets()
	e.loadMints()
	e.loadPools()
}

func (e *Env) Stop() {
	e.logger.Printf("stop env......")
}

// Seed writes the loaded fixtures into the backend as genesis state:
// funded wallets, mints with their metadata, token accounts, and the
// policy definitions for restricted mints.
func (e *Env) Seed(b *backend.Backend) error {
	for key, wallet := range e.wallets {
		b.Airdrop(key, wallet.Lamports)
	}
	for key, mint := range e.mints {
		if err := e.seedMint(b, key, mint); err != nil {
			return err
		}
	}
	for key, wallet := range e.wallets {
		if err := e.seedTokens(b, key, wallet); err != nil {
			return err
		}
	}
	return nil
}
