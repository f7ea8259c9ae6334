package spltoken

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/backend"
	"github.com/solpool/nftpool/program"
)

const (
	CommandInitAccount = byte(1)
	CommandTransfer    = byte(3)
	CommandClose       = byte(9)
)

type Program struct {
	id solana.PublicKey
}

func NewProgram() *Program {
	return &Program{id: program.Token}
}

func (p *Program) Name() string {
	return "spl token"
}

func (p *Program) Id() solana.PublicKey {
	return p.id
}

func (p *Program) Execute(ec *backend.ExecContext, in *program.Instruction) error {
	data, _ := in.Data()
	if len(data) < 1 {
		return fmt.Errorf("token instruction empty: %w", program.ErrInvalidArgs)
	}
	switch data[0] {
	case CommandInitAccount:
		return p.initAccount(ec, in)
	case CommandTransfer:
		return p.transfer(ec, in, data)
	case CommandClose:
		return p.closeAccount(ec, in)
	default:
		return fmt.Errorf("token command %d: %w", data[0], program.ErrInvalidArgs)
	}
}

func (p *Program) initAccount(ec *backend.ExecContext, in *program.Instruction) error {
	if len(in.Accounts()) < 3 {
		return fmt.Errorf("token init shape: %w", program.ErrInvalidArgs)
	}
	account, err := ec.Account(in.Accounts()[0].PublicKey)
	if err != nil {
		return err
	}
	if account.Owner != p.id || len(account.Data) != TokenLayoutSize {
		return fmt.Errorf("token init target %s: %w", account.PubKey, program.ErrWrongOwner)
	}
	user := UserLayout{}
	if err := ReadUser(account, &user); err != nil {
		return err
	}
	if user.State != 0 {
		return fmt.Errorf("token account %s already initialized: %w", account.PubKey, program.ErrInvalidArgs)
	}
	user.Mint = in.Accounts()[1].PublicKey
	user.Owner = in.Accounts()[2].PublicKey
	user.State = 1
	return WriteUser(account, &user)
}

func (p *Program) transfer(ec *backend.ExecContext, in *program.Instruction, data []byte) error {
	if len(data) != 9 || len(in.Accounts()) < 3 {
		return fmt.Errorf("token transfer shape: %w", program.ErrInvalidArgs)
	}
	amount := binary.LittleEndian.Uint64(data[1:])
	source, err := ec.Account(in.Accounts()[0].PublicKey)
	if err != nil {
		return err
	}
	dest, err := ec.Account(in.Accounts()[1].PublicKey)
	if err != nil {
		return err
	}
	authority := in.Accounts()[2].PublicKey
	srcUser, dstUser := UserLayout{}, UserLayout{}
	if err := ReadUser(source, &srcUser); err != nil {
		return err
	}
	if err := ReadUser(dest, &dstUser); err != nil {
		return err
	}
	if srcUser.Owner != authority {
		return fmt.Errorf("token transfer authority %s: %w", authority, program.ErrWrongSigner)
	}
	if srcUser.Mint != dstUser.Mint {
		return fmt.Errorf("token transfer %s -> %s: %w", source.PubKey, dest.PubKey, program.ErrWrongMint)
	}
	if srcUser.Amount < amount {
		return fmt.Errorf("token transfer %d from %s: %w", amount, source.PubKey, program.ErrInsufficientBalance)
	}
	srcUser.Amount -= amount
	dstUser.Amount += amount
	if err := WriteUser(source, &srcUser); err != nil {
		return err
	}
	return WriteUser(dest, &dstUser)
}

func (p *Program) closeAccount(ec *backend.ExecContext, in *program.Instruction) error {
	if len(in.Accounts()) < 3 {
		return fmt.Errorf("token close shape: %w", program.ErrInvalidArgs)
	}
	account, err := ec.Account(in.Accounts()[0].PublicKey)
	if err != nil {
		return err
	}
	user := UserLayout{}
	if err := ReadUser(account, &user); err != nil {
		return err
	}
	if user.Owner != in.Accounts()[2].PublicKey {
		return fmt.Errorf("token close authority: %w", program.ErrWrongSigner)
	}
	if user.Amount != 0 {
		return fmt.Errorf("token close %s still holds %d: %w", account.PubKey, user.Amount, program.ErrInvalidArgs)
	}
	return ec.Close(account.PubKey, in.Accounts()[1].PublicKey)
}

func ReadUser(account *backend.Account, user *UserLayout) error {
	if account.Owner != program.Token {
		return fmt.Errorf("account %s is not a token account: %w", account.PubKey, program.ErrWrongOwner)
	}
	if len(account.Data) != TokenLayoutSize {
		return fmt.Errorf("token account %s data size %d: %w", account.PubKey, len(account.Data), program.ErrInvalidArgs)
	}
	return binary.Read(bytes.NewReader(account.Data), binary.LittleEndian, user)
}

func WriteUser(account *backend.Account, user *UserLayout) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, user); err != nil {
		return err
	}
	copy(account.Data, buf.Bytes())
	return nil
}

func ReadToken(account *backend.Account, token *TokenLayout) error {
	if account.Owner != program.Token {
		return fmt.Errorf("account %s is not a mint: %w", account.PubKey, program.ErrWrongOwner)
	}
	if len(account.Data) != MintLayoutSize {
		return fmt.Errorf("mint %s data size %d: %w", account.PubKey, len(account.Data), program.ErrInvalidArgs)
	}
	return binary.Read(bytes.NewReader(account.Data), binary.LittleEndian, token)
}

func BuildMintData(decimals byte, supply uint64, freeze solana.PublicKey) []byte {
	token := TokenLayout{
		Supply:        supply,
		Decimals:      decimals,
		IsInitialized: 1,
	}
	if !freeze.IsZero() {
		token.FreezeAuthorityOption = [4]byte{1, 0, 0, 0}
		token.FreezeAuthority = freeze
	}
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, &token)
	return buf.Bytes()
}

func BuildUserData(mint, owner solana.PublicKey, amount uint64) []byte {
	user := UserLayout{
		Mint:   mint,
		Owner:  owner,
		Amount: amount,
		State:  1,
	}
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, &user)
	return buf.Bytes()
}

func InstructionInitAccount(account, mint, owner solana.PublicKey) *program.Instruction {
	return &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			{PublicKey: account, IsSigner: false, IsWritable: true},
			{PublicKey: mint, IsSigner: false, IsWritable: false},
			{PublicKey: owner, IsSigner: false, IsWritable: false},
			{PublicKey: program.SysRent, IsSigner: false, IsWritable: false},
		},
		IsData:      []byte{CommandInitAccount},
		IsProgramID: program.Token,
	}
}

func InstructionTransfer(source, dest, authority solana.PublicKey, amount uint64) *program.Instruction {
	data := make([]byte, 9)
	data[0] = CommandTransfer
	binary.LittleEndian.PutUint64(data[1:], amount)
	return &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			{PublicKey: source, IsSigner: false, IsWritable: true},
			{PublicKey: dest, IsSigner: false, IsWritable: true},
			{PublicKey: authority, IsSigner: true, IsWritable: false},
		},
		IsData:      data,
		IsProgramID: program.Token,
	}
}

func InstructionClose(account, dest, authority solana.PublicKey) *program.Instruction {
	return &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			{PublicKey: account, IsSigner: false, IsWritable: true},
			{PublicKey: dest, IsSigner: false, IsWritable: true},
			{PublicKey: authority, IsSigner: true, IsWritable: false},
		},
		IsData:      []byte{CommandClose},
		IsProgramID: program.Token,
	}
}
