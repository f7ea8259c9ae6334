package env

import (
	"encoding/json"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/backend"
	"github.com/solpool/nftpool/config"
	"github.com/solpool/nftpool/program"
	"github.com/solpool/nftpool/spltoken"
)

type Wallet struct {
	Name     string                      `json:"name"`
	Lamports uint64                      `json:"lamports"`
	Tokens   map[solana.PublicKey]uint64 `json:"tokens"`
}

func (e *Env) loadWallets() {
	infoJson, err := os.ReadFile(config.WalletsFile)
	if err != nil {
		panic(err)
	}
	err = json.Unmarshal(infoJson, &e.wallets)
	if err != nil {
		panic(err)
	}
}

func (e *Env) Wallet(key solana.PublicKey) *Wallet {
	if item, ok := e.wallets[key]; ok {
		return item
	}
	return nil
}

// TokenAccount returns the deterministic token account address for a
// wallet and mint pair used throughout the fixtures.
func TokenAccount(wallet, mint solana.PublicKey) (solana.PublicKey, error) {
	address, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("token_account"), wallet.Bytes(), mint.Bytes()}, program.Token)
	return address, err
}

func (e *Env) seedTokens(b *backend.Backend, key solana.PublicKey, wallet *Wallet) error {
	for mint, amount := range wallet.Tokens {
		tokenKey, err := TokenAccount(key, mint)
		if err != nil {
			return err
		}
		data := spltoken.BuildUserData(mint, key, amount)
		b.SetAccount(&backend.Account{
			PubKey:   tokenKey,
			Lamports: backend.RentExemptMinimum(len(data)),
			Owner:    program.Token,
			Data:     data,
		})
	}
	return nil
}
