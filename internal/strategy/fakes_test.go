package strategy_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"position-monitor/internal/dto"
	"position-monitor/internal/model"
)

type fakeStore struct {
	mu          sync.Mutex
	positions   []*model.Position
	listErr     error
	closeErr    map[uint]error
	closeCalls  int
	updateCalls int
}

func newFakeStore(positions ...model.Position) *fakeStore {
	s := &fakeStore{closeErr: map[uint]error{}}
	for i := range positions {
		p := positions[i]
		s.positions = append(s.positions, &p)
	}
	return s
}

func (s *fakeStore) find(id uint) *model.Position {
	for _, p := range s.positions {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *fakeStore) ListPositions(_ context.Context, activeOnly bool) ([]model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []model.Position
	for _, p := range s.positions {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *fakeStore) GetPosition(_ context.Context, id uint) (*model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.find(id)
	if p == nil {
		return nil, dto.ErrPositionNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) CreatePosition(_ context.Context, position *model.Position) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	position.ID = uint(len(s.positions) + 1)
	cp := *position
	s.positions = append(s.positions, &cp)
	return position.ID, nil
}

func (s *fakeStore) apply(p *model.Position, c dto.PositionClose) {
	reason := string(c.Reason)
	closedAt := c.ClosedAt
	pnl := c.FinalPnL
	p.IsActive = false
	p.CloseReason = &reason
	p.ClosedAt = &closedAt
	p.FinalPnL = &pnl
}

func (s *fakeStore) UpdatePosition(_ context.Context, id uint, update dto.PositionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	if err := s.closeErr[id]; err != nil {
		return err
	}
	p := s.find(id)
	if p == nil {
		return dto.ErrPositionNotFound
	}
	s.apply(p, dto.PositionClose{Reason: *update.CloseReason, ClosedAt: *update.ClosedAt, FinalPnL: *update.FinalPnL})
	return nil
}

func (s *fakeStore) ClosePosition(_ context.Context, id uint, c dto.PositionClose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if err := s.closeErr[id]; err != nil {
		return err
	}
	p := s.find(id)
	if p == nil {
		return dto.ErrPositionNotFound
	}
	if !p.IsActive {
		return dto.ErrPositionAlreadyClosed
	}
	s.apply(p, c)
	return nil
}

func (s *fakeStore) FindPositionsByName(context.Context, string) ([]model.Position, error) {
	return nil, nil
}

func (s *fakeStore) DeletePosition(context.Context, uint) error {
	return nil
}

func (s *fakeStore) ListPositionLogs(context.Context, uint) ([]model.PositionLog, error) {
	return nil, nil
}

type fakeQuotes struct {
	mu       sync.Mutex
	prices   map[string]float64
	errs     map[string]error
	calls    map[string]int
	delay    time.Duration
	inFlight int
	maxSeen  int
}

func newFakeQuotes(prices map[string]float64) *fakeQuotes {
	return &fakeQuotes{prices: prices, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeQuotes) Fetch(_ context.Context, symbol string) (dto.QuoteResult, error) {
	f.mu.Lock()
	f.calls[symbol]++
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if err := f.errs[symbol]; err != nil {
		return dto.QuoteResult{}, err
	}
	price, ok := f.prices[symbol]
	if !ok {
		return dto.QuoteResult{Symbol: symbol}, nil
	}
	return dto.QuoteResult{Symbol: symbol, Price: price, Found: true}, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []dto.CloseEvent
}

func (n *fakeNotifier) Notify(_ context.Context, event dto.CloseEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

var errBoom = errors.New("boom")
