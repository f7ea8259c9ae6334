package system

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/backend"
	"github.com/solpool/nftpool/program"
)

const (
	CommandCreateAccount = uint32(0)
	CommandTransfer      = uint32(2)
)

type Program struct {
	id solana.PublicKey
}

func NewProgram() *Program {
	return &Program{id: program.System}
}

func (p *Program) Name() string {
	return "system"
}

func (p *Program) Id() solana.PublicKey {
	return p.id
}

func (p *Program) Execute(ec *backend.ExecContext, in *program.Instruction) error {
	data, _ := in.Data()
	if len(data) < 4 {
		return fmt.Errorf("system instruction too short: %w", program.ErrInvalidArgs)
	}
	command := binary.LittleEndian.Uint32(data)
	switch command {
	case CommandTransfer:
		return p.transfer(ec, in, data)
	default:
		return fmt.Errorf("system command %d: %w", command, program.ErrInvalidArgs)
	}
}

func (p *Program) transfer(ec *backend.ExecContext, in *program.Instruction, data []byte) error {
	if len(data) != 12 || len(in.Accounts()) != 2 {
		return fmt.Errorf("system transfer shape: %w", program.ErrInvalidArgs)
	}
	lamports := binary.LittleEndian.Uint64(data[4:])
	fromKey := in.Accounts()[0].PublicKey
	toKey := in.Accounts()[1].PublicKey
	from, err := ec.Account(fromKey)
	if err != nil {
		return err
	}
	if from.Lamports < lamports {
		return fmt.Errorf("transfer %d from %s: %w", lamports, fromKey, program.ErrInsufficientBalance)
	}
	// transfers may target fresh system accounts
	to := ec.Ensure(toKey)
	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}

func InstructionTransfer(from, to solana.PublicKey, lamports uint64) *program.Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data, CommandTransfer)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	return &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			{PublicKey: from, IsSigner: true, IsWritable: true},
			{PublicKey: to, IsSigner: false, IsWritable: true},
		},
		IsData:      data,
		IsProgramID: program.System,
	}
}
