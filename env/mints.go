package env

import (
	"encoding/json"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/backend"
	"github.com/solpool/nftpool/config"
	"github.com/solpool/nftpool/metadata"
	"github.com/solpool/nftpool/policy"
	"github.com/solpool/nftpool/program"
	"github.com/solpool/nftpool/spltoken"
)

type Mint struct {
	Symbol        string           `json:"symbol"`
	Decimals      byte             `json:"decimals"`
	Supply        uint64           `json:"supply"`
	SellerFeeBP   uint16           `json:"seller_fee_bp"`
	Creator       solana.PublicKey `json:"creator"`
	Collection    solana.PublicKey `json:"collection"`
	MasterEdition bool             `json:"master_edition"`
	Restricted    bool             `json:"restricted"`
	PolicyDef     solana.PublicKey `json:"policy_def"`
}

func (e *Env) loadMints() {
	infoJson, err := os.ReadFile(config.MintsFile)
	if err != nil {
		panic(err)
	}
	err = json.Unmarshal(infoJson, &e.mints)
	if err != nil {
		panic(err)
	}
}

func (e *Env) Mint(key solana.PublicKey) *Mint {
	if item, ok := e.mints[key]; ok {
		return item
	}
	return nil
}

func (e *Env) seedMint(b *backend.Backend, key solana.PublicKey, mint *Mint) error {
	freeze := solana.PublicKey{}
	if mint.Restricted {
		freeze = program.Policy
	}
	mintData := spltoken.BuildMintData(mint.Decimals, mint.Supply, freeze)
	b.SetAccount(&backend.Account{
		PubKey:   key,
		Lamports: backend.RentExemptMinimum(len(mintData)),
		Owner:    program.Token,
		Data:     mintData,
	})

	meta := &metadata.MetadataLayout{
		Key:         4,
		Mint:        key,
		SellerFeeBP: mint.SellerFeeBP,
	}
	if !mint.Creator.IsZero() {
		meta.CreatorCount = 1
		meta.Creators[0] = metadata.Creator{Address: mint.Creator, Verified: 1, Share: 100}
	}
	if !mint.Collection.IsZero() {
		meta.CollectionOption = 1
		meta.CollectionVerified = 1
		meta.CollectionKey = mint.Collection
	}
	metaKey, _, err := metadata.FindMetadataAddress(key)
	if err != nil {
		return err
	}
	metaData := metadata.BuildMetadataData(meta)
	b.SetAccount(&backend.Account{
		PubKey:   metaKey,
		Lamports: backend.RentExemptMinimum(len(metaData)),
		Owner:    program.Metadata,
		Data:     metaData,
	})

	if mint.MasterEdition {
		editionKey, _, err := metadata.FindMasterEditionAddress(key)
		if err != nil {
			return err
		}
		b.SetAccount(&backend.Account{
			PubKey:   editionKey,
			Lamports: backend.RentExemptMinimum(1),
			Owner:    program.Metadata,
			Data:     []byte{6},
		})
	}

	if mint.Restricted {
		return e.seedPolicy(b, key, mint)
	}
	return nil
}

func (e *Env) seedPolicy(b *backend.Backend, key solana.PublicKey, mint *Mint) error {
	if mint.PolicyDef.IsZero() {
		e.logger.Printf("restricted mint %s without policy definition", key)
		return program.ErrInvalidArgs
	}
	if b.Account(mint.PolicyDef) == nil {
		defData := policy.BuildDefinitionData(&policy.DefinitionLayout{
			Authority: mint.PolicyDef,
			AllowIn:   1,
			AllowOut:  1,
		})
		b.SetAccount(&backend.Account{
			PubKey:   mint.PolicyDef,
			Lamports: backend.RentExemptMinimum(len(defData)),
			Owner:    program.Policy,
			Data:     defData,
		})
	}
	stateKey, _, err := policy.FindStateAddress(mint.PolicyDef, key)
	if err != nil {
		return err
	}
	stateData := policy.BuildStateData(&policy.StateLayout{
		Policy: mint.PolicyDef,
		Mint:   key,
	})
	b.SetAccount(&backend.Account{
		PubKey:   stateKey,
		Lamports: backend.RentExemptMinimum(len(stateData)),
		Owner:    program.Policy,
		Data:     stateData,
	})
	return nil
}
