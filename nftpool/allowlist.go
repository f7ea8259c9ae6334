package nftpool

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/backend"
	"github.com/solpool/nftpool/metadata"
	"github.com/solpool/nftpool/program"
)

// Allowlist rule kinds. A pool's rule set is a union: the first rule
// matching the asset admits it.
const (
	KindEmpty = uint8(0) // unused slot, skipped
	KindFVCA  = uint8(1) // first verified creator address
	KindMint  = uint8(2) // exact mint
	KindMCC   = uint8(3) // verified collection
	KindUA    = uint8(4) // metadata update authority
	KindAny   = uint8(5) // wildcard
)

// EligibilityProof is the ancillary account data a caller supplies so
// creator and collection rules can be proven, not asserted.
type EligibilityProof struct {
	Mint          solana.PublicKey
	Metadata      *backend.Account
	MasterEdition *backend.Account
}

func (e *AllowlistEntry) Valid() bool {
	switch e.Kind {
	case KindEmpty, KindAny:
		return true
	case KindFVCA, KindMint, KindMCC, KindUA:
		return !e.Value.IsZero()
	default:
		return false
	}
}

func CheckAllowlists(allowlists *[MaxAllowlists]AllowlistEntry) error {
	for _, entry := range allowlists {
		if !entry.Valid() {
			return fmt.Errorf("kind %d: %w", entry.Kind, program.ErrInvalidAllowlist)
		}
	}
	return nil
}

// CheckAllowlistsForMint evaluates the pool's rule set against the
// asset plus its metadata proof. The metadata and master edition
// accounts have to be the ones derived from the mint, anything else is
// a hard rejection. Returns the parsed metadata so callers can reuse
// the royalty rate.
func CheckAllowlistsForMint(allowlists *[MaxAllowlists]AllowlistEntry, proof *EligibilityProof) (*metadata.MetadataLayout, error) {
	if proof.Metadata == nil {
		return nil, fmt.Errorf("metadata missing for %s: %w", proof.Mint, program.ErrAssetNotAllowed)
	}
	metadataKey, _, err := metadata.FindMetadataAddress(proof.Mint)
	if err != nil {
		return nil, err
	}
	if metadataKey != proof.Metadata.PubKey {
		return nil, fmt.Errorf("metadata %s: %w", proof.Metadata.PubKey, program.ErrWrongDerivation)
	}
	if proof.MasterEdition != nil {
		editionKey, _, err := metadata.FindMasterEditionAddress(proof.Mint)
		if err != nil {
			return nil, err
		}
		if editionKey != proof.MasterEdition.PubKey {
			return nil, fmt.Errorf("master edition %s: %w", proof.MasterEdition.PubKey, program.ErrWrongDerivation)
		}
		if err := metadata.CheckMasterEdition(proof.MasterEdition); err != nil {
			return nil, err
		}
	}
	parsed := &metadata.MetadataLayout{}
	if err := metadata.ReadMetadata(proof.Metadata, parsed); err != nil {
		return nil, err
	}
	if parsed.Mint != proof.Mint {
		return nil, fmt.Errorf("metadata mint %s: %w", parsed.Mint, program.ErrWrongMint)
	}
	for _, entry := range allowlists {
		switch entry.Kind {
		case KindEmpty:
		case KindAny:
			return parsed, nil
		case KindMint:
			if entry.Value == proof.Mint {
				return parsed, nil
			}
		case KindFVCA:
			if creator, ok := parsed.FirstVerifiedCreator(); ok && creator == entry.Value {
				return parsed, nil
			}
		case KindMCC:
			if collection, ok := parsed.VerifiedCollection(); ok && collection == entry.Value {
				return parsed, nil
			}
		case KindUA:
			if parsed.UpdateAuthority == entry.Value {
				return parsed, nil
			}
		default:
			return nil, fmt.Errorf("kind %d: %w", entry.Kind, program.ErrInvalidAllowlist)
		}
	}
	return nil, fmt.Errorf("mint %s matched no rule: %w", proof.Mint, program.ErrAssetNotAllowed)
}
