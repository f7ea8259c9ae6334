package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/backend"
	"github.com/solpool/nftpool/program"
)

// master edition data starts with its version byte
var masterEditionVersions = map[byte]bool{2: true, 6: true}

// FindMetadataAddress derives the metadata account for a mint.
func FindMetadataAddress(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte("metadata"), program.Metadata.Bytes(), mint.Bytes()},
		program.Metadata,
	)
}

// FindMasterEditionAddress derives the master edition account for a mint.
func FindMasterEditionAddress(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte("metadata"), program.Metadata.Bytes(), mint.Bytes(), []byte("edition")},
		program.Metadata,
	)
}

func ReadMetadata(account *backend.Account, meta *MetadataLayout) error {
	if account.Owner != program.Metadata {
		return fmt.Errorf("account %s is not a metadata account: %w", account.PubKey, program.ErrWrongOwner)
	}
	if len(account.Data) != MetadataLayoutSize {
		return fmt.Errorf("metadata %s data size %d: %w", account.PubKey, len(account.Data), program.ErrInvalidArgs)
	}
	return binary.Read(bytes.NewReader(account.Data), binary.LittleEndian, meta)
}

// CheckMasterEdition rejects master edition accounts of unknown version.
// A missing account is fine, a present one has to parse.
func CheckMasterEdition(account *backend.Account) error {
	if account == nil || len(account.Data) == 0 {
		return nil
	}
	if account.Owner != program.Metadata {
		return fmt.Errorf("master edition %s: %w", account.PubKey, program.ErrWrongOwner)
	}
	if !masterEditionVersions[account.Data[0]] {
		return fmt.Errorf("master edition %s version %d: %w", account.PubKey, account.Data[0], program.ErrInvalidArgs)
	}
	return nil
}

func BuildMetadataData(meta *MetadataLayout) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, meta)
	return buf.Bytes()
}
