package metadata

import (
	"github.com/gagliardetto/solana-go"
)

var (
	MetadataLayoutSize = 272
	MaxCreators        = 5
)

type Creator struct {
	Address  solana.PublicKey
	Verified uint8
	Share    uint8
}

type MetadataLayout struct {
	Key                uint8
	UpdateAuthority    solana.PublicKey
	Mint               solana.PublicKey
	SellerFeeBP        uint16
	CreatorCount       uint8
	Creators           [5]Creator
	CollectionOption   uint8
	CollectionVerified uint8
	CollectionKey      solana.PublicKey
}

type KeyedMetadata struct {
	Key    solana.PublicKey
	Height uint64
	MetadataLayout
}

// FirstVerifiedCreator returns the first creator entry when it exists
// and carries a verified signature.
func (m *MetadataLayout) FirstVerifiedCreator() (solana.PublicKey, bool) {
	if m.CreatorCount == 0 {
		return solana.PublicKey{}, false
	}
	first := m.Creators[0]
	if first.Verified == 0 {
		return solana.PublicKey{}, false
	}
	return first.Address, true
}

// VerifiedCollection returns the collection key when the asset carries
// a verified collection link.
func (m *MetadataLayout) VerifiedCollection() (solana.PublicKey, bool) {
	if m.CollectionOption == 0 || m.CollectionVerified == 0 {
		return solana.PublicKey{}, false
	}
	return m.CollectionKey, true
}
