package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/solpool/nftpool/backend"
	"github.com/solpool/nftpool/config"
	"github.com/solpool/nftpool/dingsdk"
	"github.com/solpool/nftpool/env"
	"github.com/solpool/nftpool/metadata"
	"github.com/solpool/nftpool/nftpool"
	"github.com/solpool/nftpool/policy"
	"github.com/solpool/nftpool/program"
	"github.com/solpool/nftpool/spltoken"
	"github.com/solpool/nftpool/store"
	"github.com/solpool/nftpool/system"
)

var (
	Init    = int32(0)
	Started = int32(1)
	Stopped = int32(3)
)

type Server struct {
	ctx        context.Context
	log        *log.Logger
	config     *config.Config
	wg         sync.WaitGroup
	status     int32
	backend    *backend.Backend
	env        *env.Env
	store      *store.Store
	model      *nftpool.Model
	notify     *Notify
	httpServer *http.Server
	trxId      uint64
}

func NewServer(ctx context.Context, cfg *config.Config) *Server {
	s := &Server{
		ctx:    ctx,
		config: cfg,
	}
	logger := log.Default()
	fileName := fmt.Sprintf("%s%s.log", config.LogPath, config.ServerLog)
	file, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err == nil {
		logger.SetFlags(log.LstdFlags | log.Lmicroseconds)
		logger.SetOutput(file)
	}
	s.log = logger
	//
	if cfg.Db != nil {
		s.store = store.NewStore(ctx, cfg.Db.Url, cfg.Db.Scheme, cfg.Db.User, cfg.Db.Passwd)
	}
	b := backend.NewBackend(ctx)
	b.SetStore(s.store)
	b.Register(system.NewProgram())
	b.Register(spltoken.NewProgram())
	b.Register(policy.NewProgram())
	b.Register(nftpool.NewProgram())
	s.backend = b
	s.env = env.NewEnv(ctx)
	s.model = nftpool.NewModel(b)
	//
	if cfg.NotifyUrl != "" {
		s.notify = NewNotify(ctx, dingsdk.NewDingSdk(cfg.NotifyUrl))
		b.SetTradeCallback(s.notify.Commit)
	}
	s.status = Init
	return s
}

func (s *Server) Service() {
	s.Start()
	s.StartRPC()
	<-s.ctx.Done()
	s.StopRPC()
	s.Stop()
}

func (s *Server) Start() {
	if s.store != nil {
		s.store.Start()
	}
	s.env.Start()
	if err := s.env.Seed(s.backend); err != nil {
		panic(err)
	}
	s.backend.SetClock(time.Now().Unix())
	if s.notify != nil {
		s.notify.Start()
	}
	s.createPools()
	s.status = Started
	s.log.Printf("pool server has started......")
}

func (s *Server) Stop() {
	if s.notify != nil {
		s.notify.Stop()
	}
	s.env.Stop()
	if s.store != nil {
		s.store.Stop()
	}
	s.wg.Wait()
	s.status = Stopped
	s.log.Printf("pool server has stopped......")
}

func (s *Server) StartRPC() {
	router := gin.New()
	g := router.Group("/api")
	g.GET("/pool/:key", s.getPool)
	g.GET("/quote", s.getQuote)
	g.GET("/settlements/:pool", s.getSettlements)
	g.GET("/events/:pool", s.getEvents)
	g.POST("/pool", s.postCreatePool)
	g.POST("/pool/update", s.postUpdatePool)
	g.POST("/deposit/sell", s.postDepositSell)
	g.POST("/withdraw/sell", s.postWithdrawSell)
	g.POST("/deposit/buy", s.postDepositBuy)
	g.POST("/withdraw/buy", s.postWithdrawBuy)
	g.POST("/fulfill/sell", s.postFulfillSell)
	g.POST("/fulfill/buy", s.postFulfillBuy)
	s.httpServer = &http.Server{
		Addr:    s.config.ListenAddr,
		Handler: router,
	}
	s.log.Printf("start rpc server......")
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil {
			s.log.Printf("ListenAndServe: %s", err.Error())
		}
	}()
}

func (s *Server) StopRPC() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		panic(err)
	}
	s.log.Printf("rpc server has stopped......")
}

func (s *Server) execute(instructions []*program.Instruction, signers []solana.PublicKey) (uint64, error) {
	id := atomic.AddUint64(&s.trxId, 1)
	trx := &backend.Transaction{
		Id:           id,
		Instructions: instructions,
		Signers:      signers,
	}
	return id, s.backend.Execute(trx)
}

// createPools submits the configured boot pools on behalf of their
// owners.
func (s *Server) createPools() {
	for _, fixture := range s.env.Pools() {
		if err := s.createPool(fixture); err != nil {
			s.log.Printf("boot pool %s err: %v", fixture.Uuid, err)
		}
	}
}

func (s *Server) createPool(fixture *env.PoolFixture) error {
	poolKey, _, err := nftpool.FindPoolAddress(fixture.Owner, fixture.Uuid)
	if err != nil {
		return err
	}
	args := &nftpool.CreatePoolArgs{
		Uuid:            fixture.Uuid,
		CurveType:       fixture.CurveType,
		CurveDelta:      fixture.CurveDelta,
		SpotPrice:       fixture.SpotPrice,
		LpFeeBP:         fixture.LpFeeBP,
		Expiry:          fixture.Expiry,
		Referral:        fixture.Referral,
		ReferralShareBP: fixture.ReferralShareBP,
		Allowlists:      fixtureAllowlists(fixture),
	}
	if fixture.ReinvestFulfillBuy {
		args.ReinvestFulfillBuy = 1
	}
	if fixture.ReinvestFulfillSell {
		args.ReinvestFulfillSell = 1
	}
	if !fixture.Referral.IsZero() {
		args.ReferralOption = 1
	}
	in := nftpool.InstructionCreatePool(fixture.Owner, fixture.Owner, poolKey, args)
	_, err = s.execute([]*program.Instruction{in}, []solana.PublicKey{fixture.Owner})
	return err
}

func fixtureAllowlists(fixture *env.PoolFixture) [nftpool.MaxAllowlists]nftpool.AllowlistEntry {
	allowlists := [nftpool.MaxAllowlists]nftpool.AllowlistEntry{}
	i := 0
	push := func(kind uint8, value solana.PublicKey) {
		if i < nftpool.MaxAllowlists {
			allowlists[i] = nftpool.AllowlistEntry{Kind: kind, Value: value}
			i++
		}
	}
	if fixture.AllowAny {
		push(nftpool.KindAny, solana.PublicKey{})
		return allowlists
	}
	for _, mint := range fixture.AllowMints {
		push(nftpool.KindMint, mint)
	}
	if !fixture.AllowCollection.IsZero() {
		push(nftpool.KindMCC, fixture.AllowCollection)
	}
	if !fixture.AllowCreator.IsZero() {
		push(nftpool.KindFVCA, fixture.AllowCreator)
	}
	return allowlists
}

// sellSideAccounts derives the full account set for sell-side
// instructions from the owner, pool and mint keys.
func sellSideAccounts(owner, cosigner, poolKey, mint, ownerToken solana.PublicKey) (*nftpool.SellSideAccounts, error) {
	metaKey, _, err := metadata.FindMetadataAddress(mint)
	if err != nil {
		return nil, err
	}
	editionKey, _, err := metadata.FindMasterEditionAddress(mint)
	if err != nil {
		return nil, err
	}
	escrowKey, _, err := nftpool.FindAssetEscrowAddress(poolKey, mint)
	if err != nil {
		return nil, err
	}
	sellStateKey, _, err := nftpool.FindSellStateAddress(poolKey, mint)
	if err != nil {
		return nil, err
	}
	return &nftpool.SellSideAccounts{
		Owner:         owner,
		Cosigner:      cosigner,
		Pool:          poolKey,
		Mint:          mint,
		Metadata:      metaKey,
		MasterEdition: editionKey,
		OwnerToken:    ownerToken,
		AssetEscrow:   escrowKey,
		SellState:     sellStateKey,
	}, nil
}

// policyAccounts resolves the policy state and definition pair for a
// restricted mint, nil fixture means the mint is unrestricted.
func (s *Server) policyAccounts(mint solana.PublicKey) (solana.PublicKey, solana.PublicKey, bool, error) {
	fixture := s.env.Mint(mint)
	if fixture == nil || !fixture.Restricted {
		return solana.PublicKey{}, solana.PublicKey{}, false, nil
	}
	stateKey, _, err := policy.FindStateAddress(fixture.PolicyDef, mint)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, false, err
	}
	return stateKey, fixture.PolicyDef, true, nil
}

func (s *Server) recordEvent(pool, kind string, mint string, amount uint64) {
	if s.store == nil {
		return
	}
	s.store.StorePoolEvent(&store.PoolEvent{
		Pool:   pool,
		Kind:   kind,
		Mint:   mint,
		Amount: amount,
		Slot:   s.backend.Slot(),
	})
}
