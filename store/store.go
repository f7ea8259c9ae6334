package store

import (
	"golang.org/x/net/context"
)

type Store struct {
	ctx            context.Context
	settlementChan chan *Settlement
	eventChan      chan *PoolEvent
	dao            *Dao
}

func NewStore(ctx context.Context, url, scheme, user, passwd string) *Store {
	s := &Store{
		ctx:            ctx,
		settlementChan: make(chan *Settlement, 32),
		eventChan:      make(chan *PoolEvent, 32),
	}
	s.dao = NewDao(url, scheme, user, passwd)
	return s
}

func (s *Store) Start() {
	go s.store()
}

func (s *Store) Stop() {
}

func (s *Store) store() {
	for {
		select {
		case settlement := <-s.settlementChan:
			s.dao.SaveSettlement(settlement)
		case event := <-s.eventChan:
			s.dao.SavePoolEvent(event)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Store) StoreSettlement(settlement *Settlement) {
	s.settlementChan <- settlement
}

func (s *Store) StorePoolEvent(event *PoolEvent) {
	s.eventChan <- event
}

func (s *Store) Settlements(pool string) ([]*Settlement, error) {
	return s.dao.SelectSettlements(pool)
}

func (s *Store) Events(pool string) ([]*PoolEvent, error) {
	return s.dao.SelectPoolEvents(pool)
}
