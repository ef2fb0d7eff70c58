package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/bookingsync-system/internal/gateway"
	"github.com/mmeshcher/bookingsync-system/internal/identity"
)

type stubGateway struct {
	mu sync.Mutex

	queryRows map[string][]gateway.Row
	queryErr  error
	insertRow gateway.Row
	insertErr error
	updateErr error
	emails    map[string]string

	queryCalls  []string
	insertCalls int
	updateCalls int
	lastInsert  gateway.Row
	lastPatch   gateway.Row
	lastFilter  gateway.Filter
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		queryRows: map[string][]gateway.Row{},
		emails:    map[string]string{},
	}
}

func (g *stubGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queryCalls) + g.insertCalls + g.updateCalls
}

func (g *stubGateway) queries() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.queryCalls...)
}

func (g *stubGateway) Query(_ context.Context, relation string, _ gateway.Filter, _ *gateway.QueryOptions) ([]gateway.Row, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queryCalls = append(g.queryCalls, relation)
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	return g.queryRows[relation], nil
}

func (g *stubGateway) Insert(_ context.Context, _ string, row gateway.Row) (gateway.Row, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.insertCalls++
	g.lastInsert = row
	if g.insertErr != nil {
		return nil, g.insertErr
	}
	if g.insertRow != nil {
		return g.insertRow, nil
	}
	return row, nil
}

func (g *stubGateway) Update(_ context.Context, _ string, patch gateway.Row, filter gateway.Filter) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updateCalls++
	g.lastPatch = patch
	g.lastFilter = filter
	return g.updateErr
}

func (g *stubGateway) Subscribe(_ context.Context, _ string, _ string, _ gateway.Filter) (gateway.Subscription, error) {
	return newStubSubscription(), nil
}

func (g *stubGateway) LookupIdentityRecord(_ context.Context, userRef string) (*gateway.IdentityRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	email, ok := g.emails[userRef]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	return &gateway.IdentityRecord{UserRef: userRef, Email: email}, nil
}

type stubSubscription struct {
	events chan gateway.Event
	once   sync.Once
}

func newStubSubscription() *stubSubscription {
	return &stubSubscription{events: make(chan gateway.Event, 1)}
}

func (s *stubSubscription) Events() <-chan gateway.Event {
	return s.events
}

func (s *stubSubscription) Close() {
	s.once.Do(func() { close(s.events) })
}

type stubIdentity struct {
	mu      sync.Mutex
	current string
	changes chan identity.Change
}

func newStubIdentity(current string) *stubIdentity {
	return &stubIdentity{current: current, changes: make(chan identity.Change, 1)}
}

func (s *stubIdentity) Current() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, false
}

func (s *stubIdentity) Watch() <-chan identity.Change {
	return s.changes
}

func (s *stubIdentity) set(id string) {
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
	s.changes <- identity.Change{Identity: id}
}

type stubNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *stubNotifier) Notify(title, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
}

func (n *stubNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.titles)
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
