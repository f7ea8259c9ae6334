package app

import (
	"context"
	"sync"

	"github.com/solpool/nftpool/dingsdk"
	"github.com/solpool/nftpool/program"
)

// Notify pushes settled trades to the configured webhook off the
// execution path.
type Notify struct {
	ctx  context.Context
	wg   sync.WaitGroup
	data chan *program.TradeResult
	dsdk *dingsdk.DingSdk
}

func NewNotify(ctx context.Context, dsdk *dingsdk.DingSdk) *Notify {
	notify := &Notify{
		ctx:  ctx,
		dsdk: dsdk,
		data: make(chan *program.TradeResult, 32),
	}
	return notify
}

func (notify *Notify) Start() {
	notify.wg.Add(1)
	go notify.listen()
}

func (notify *Notify) Stop() {
	notify.wg.Wait()
}

func (notify *Notify) Commit(trade *program.TradeResult) {
	select {
	case notify.data <- trade:
	default:
	}
}

func (notify *Notify) listen() {
	defer notify.wg.Done()
	for {
		select {
		case trade := <-notify.data:
			notify.dsdk.NotifyTrade(trade)
		case <-notify.ctx.Done():
			return
		}
	}
}
