package backend_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/backend"
	"github.com/solpool/nftpool/program"
	"github.com/solpool/nftpool/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(seed string) solana.PublicKey {
	return solana.PublicKeyFromBytes([]byte(seed))
}

func testBackend() *backend.Backend {
	b := backend.NewBackend(context.Background())
	b.Register(system.NewProgram())
	return b
}

func transfer(from, to solana.PublicKey, lamports uint64) *program.Instruction {
	return system.InstructionTransfer(from, to, lamports)
}

func TestExecute_Transfer(t *testing.T) {
	b := testBackend()
	alice := testKey("exec.alice")
	bob := testKey("exec.bob")
	b.Airdrop(alice, 1_000)

	err := b.Execute(&backend.Transaction{
		Id:           1,
		Instructions: []*program.Instruction{transfer(alice, bob, 400)},
		Signers:      []solana.PublicKey{alice},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(600), b.Balance(alice))
	assert.Equal(t, uint64(400), b.Balance(bob))
}

func TestExecute_AtomicRollback(t *testing.T) {
	b := testBackend()
	alice := testKey("atomic.alice")
	bob := testKey("atomic.bob")
	b.Airdrop(alice, 1_000)

	// the first instruction succeeds in the staged view, the second
	// overdraws, and neither reaches the committed table
	err := b.Execute(&backend.Transaction{
		Id: 1,
		Instructions: []*program.Instruction{
			transfer(alice, bob, 400),
			transfer(alice, bob, 700),
		},
		Signers: []solana.PublicKey{alice},
	})
	assert.ErrorIs(t, err, program.ErrInsufficientBalance)
	assert.Equal(t, uint64(1_000), b.Balance(alice))
	assert.Equal(t, uint64(0), b.Balance(bob))
}

func TestExecute_UnsignedSourceRejected(t *testing.T) {
	b := testBackend()
	alice := testKey("unsigned.alice")
	bob := testKey("unsigned.bob")
	b.Airdrop(alice, 1_000)

	err := b.Execute(&backend.Transaction{
		Id:           1,
		Instructions: []*program.Instruction{transfer(alice, bob, 100)},
	})
	assert.ErrorIs(t, err, program.ErrWrongSigner)
	assert.Equal(t, uint64(1_000), b.Balance(alice))
}

func TestExecute_UnknownProgram(t *testing.T) {
	b := testBackend()
	in := &program.Instruction{IsProgramID: testKey("no.such.program"), IsData: []byte{0}}
	err := b.Execute(&backend.Transaction{Id: 1, Instructions: []*program.Instruction{in}})
	assert.ErrorIs(t, err, program.ErrAccountNotFound)
}

func TestExecute_SlotAdvances(t *testing.T) {
	b := testBackend()
	alice := testKey("slot.alice")
	b.Airdrop(alice, 1_000)
	start := b.Slot()

	err := b.Execute(&backend.Transaction{
		Id:           1,
		Instructions: []*program.Instruction{transfer(alice, alice, 0)},
		Signers:      []solana.PublicKey{alice},
	})
	require.NoError(t, err)
	assert.Equal(t, start+1, b.Slot())
}

func TestSetClock(t *testing.T) {
	b := testBackend()
	b.SetClock(1_700_000_000)
	account := b.Account(program.SysClock)
	require.NotNil(t, account)
	assert.Equal(t, uint64(1_700_000_000), binary.LittleEndian.Uint64(account.Data))
}

func TestRentExemptMinimum(t *testing.T) {
	assert.Equal(t, uint64(890_880), backend.RentExemptMinimum(0))
	assert.Equal(t, uint64(2_039_280), backend.RentExemptMinimum(165))
}
