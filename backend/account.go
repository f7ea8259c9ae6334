package backend

import (
	"github.com/gagliardetto/solana-go"
)

const (
	// rent model, lamports per byte for two byte-years plus the fixed
	// per-account overhead
	rentPerByte     = 6960
	accountOverhead = 128
)

type Account struct {
	PubKey   solana.PublicKey
	Lamports uint64
	Owner    solana.PublicKey
	Data     []byte
	Height   uint64
}

func (a *Account) clone() *Account {
	data := make([]byte, len(a.Data))
	copy(data, a.Data)
	return &Account{
		PubKey:   a.PubKey,
		Lamports: a.Lamports,
		Owner:    a.Owner,
		Data:     data,
		Height:   a.Height,
	}
}

// RentExemptMinimum is the lamports balance an account of the given
// data size has to keep reserved to stay alive.
func RentExemptMinimum(dataLen int) uint64 {
	return uint64(accountOverhead+dataLen) * rentPerByte
}
