package policy

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/backend"
	"github.com/solpool/nftpool/program"
)

// Transfer directions a policy can gate.
const (
	DirectionIn  = byte(0) // into pool custody
	DirectionOut = byte(1) // out of pool custody
)

const CommandApprove = byte(1)

var (
	DefinitionLayoutSize = 35
	StateLayoutSize      = 72
)

// DefinitionLayout configures one transfer policy.
type DefinitionLayout struct {
	Authority solana.PublicKey
	AllowIn   uint8
	AllowOut  uint8
	Frozen    uint8
}

// StateLayout tracks approvals granted under one policy for one mint.
type StateLayout struct {
	Policy    solana.PublicKey
	Mint      solana.PublicKey
	Approvals uint64
}

type Program struct {
	id solana.PublicKey
}

func NewProgram() *Program {
	return &Program{id: program.Policy}
}

func (p *Program) Name() string {
	return "transfer policy"
}

func (p *Program) Id() solana.PublicKey {
	return p.id
}

func (p *Program) Execute(ec *backend.ExecContext, in *program.Instruction) error {
	data, _ := in.Data()
	if len(data) != 2 {
		return fmt.Errorf("policy instruction shape: %w", program.ErrInvalidArgs)
	}
	if data[0] != CommandApprove {
		return fmt.Errorf("policy command %d: %w", data[0], program.ErrInvalidArgs)
	}
	if len(in.Accounts()) < 3 {
		return fmt.Errorf("policy accounts: %w", program.ErrInvalidArgs)
	}
	direction := data[1]
	stateAccount, err := ec.Account(in.Accounts()[0].PublicKey)
	if err != nil {
		return fmt.Errorf("policy state: %w", program.ErrPolicyRejected)
	}
	defAccount, err := ec.Account(in.Accounts()[1].PublicKey)
	if err != nil {
		return fmt.Errorf("policy definition: %w", program.ErrPolicyRejected)
	}
	mint := in.Accounts()[2].PublicKey

	def := DefinitionLayout{}
	if err := readDefinition(defAccount, &def); err != nil {
		return err
	}
	state := StateLayout{}
	if err := ReadState(stateAccount, &state); err != nil {
		return err
	}
	if state.Policy != defAccount.PubKey || state.Mint != mint {
		return fmt.Errorf("policy state for %s under %s: %w", state.Mint, state.Policy, program.ErrPolicyRejected)
	}
	if def.Frozen != 0 {
		return fmt.Errorf("policy frozen: %w", program.ErrPolicyRejected)
	}
	switch direction {
	case DirectionIn:
		if def.AllowIn == 0 {
			return fmt.Errorf("transfers in disabled: %w", program.ErrPolicyRejected)
		}
	case DirectionOut:
		if def.AllowOut == 0 {
			return fmt.Errorf("transfers out disabled: %w", program.ErrPolicyRejected)
		}
	default:
		return fmt.Errorf("direction %d: %w", direction, program.ErrInvalidArgs)
	}
	state.Approvals++
	return writeState(stateAccount, &state)
}

func readDefinition(account *backend.Account, def *DefinitionLayout) error {
	if account.Owner != program.Policy || len(account.Data) != DefinitionLayoutSize {
		return fmt.Errorf("definition %s: %w", account.PubKey, program.ErrPolicyRejected)
	}
	return binary.Read(bytes.NewReader(account.Data), binary.LittleEndian, def)
}

func ReadState(account *backend.Account, state *StateLayout) error {
	if account.Owner != program.Policy || len(account.Data) != StateLayoutSize {
		return fmt.Errorf("state %s: %w", account.PubKey, program.ErrPolicyRejected)
	}
	return binary.Read(bytes.NewReader(account.Data), binary.LittleEndian, state)
}

func writeState(account *backend.Account, state *StateLayout) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, state); err != nil {
		return err
	}
	copy(account.Data, buf.Bytes())
	return nil
}

// FindStateAddress derives the policy state for one (policy, mint).
func FindStateAddress(policyDef, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte("policy_state"), policyDef.Bytes(), mint.Bytes()},
		program.Policy,
	)
}

// InstructionApprove asks the policy engine to authorize one transfer
// of mint in the given direction.
func InstructionApprove(policyState, policyDef, mint solana.PublicKey, direction byte) *program.Instruction {
	return &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			{PublicKey: policyState, IsSigner: false, IsWritable: true},
			{PublicKey: policyDef, IsSigner: false, IsWritable: false},
			{PublicKey: mint, IsSigner: false, IsWritable: false},
		},
		IsData:      []byte{CommandApprove, direction},
		IsProgramID: program.Policy,
	}
}

func BuildDefinitionData(def *DefinitionLayout) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, def)
	return buf.Bytes()
}

func BuildStateData(state *StateLayout) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, state)
	return buf.Bytes()
}
