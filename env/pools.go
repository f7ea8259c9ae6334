package env

import (
	"encoding/json"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/solpool/nftpool/config"
)

// PoolFixture describes a pool the server creates at boot on behalf
// of its configured owner.
type PoolFixture struct {
	Owner               solana.PublicKey   `json:"owner"`
	Uuid                solana.PublicKey   `json:"uuid"`
	CurveType           uint8              `json:"curve_type"`
	CurveDelta          uint64             `json:"curve_delta"`
	SpotPrice           uint64             `json:"spot_price"`
	LpFeeBP             uint16             `json:"lp_fee_bp"`
	Expiry              int64              `json:"expiry"`
	ReinvestFulfillBuy  bool               `json:"reinvest_fulfill_buy"`
	ReinvestFulfillSell bool               `json:"reinvest_fulfill_sell"`
	Referral            solana.PublicKey   `json:"referral"`
	ReferralShareBP     uint16             `json:"referral_share_bp"`
	AllowMints          []solana.PublicKey `json:"allow_mints"`
	AllowCollection     solana.PublicKey   `json:"allow_collection"`
	AllowCreator        solana.PublicKey   `json:"allow_creator"`
	AllowAny            bool               `json:"allow_any"`
}

func (e *Env) loadPools() {
	infoJson, err := os.ReadFile(config.PoolsFile)
	if err != nil {
		panic(err)
	}
	err = json.Unmarshal(infoJson, &e.pools)
	if err != nil {
		panic(err)
	}
}

func (e *Env) Pools() []*PoolFixture {
	return e.pools
}
