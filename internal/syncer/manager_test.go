package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mmeshcher/bookingsync-system/internal/gateway"
	"github.com/mmeshcher/bookingsync-system/internal/identity"
	"github.com/mmeshcher/bookingsync-system/internal/model"
)

func TestManagerCreateBookingWithoutIdentity(t *testing.T) {
	gw := newStubGateway()
	notifier := &stubNotifier{}
	m := NewManager(gw, newStubIdentity(""), notifier, testLogger())

	draft := model.BookingDraft{
		ServiceID:   "s1",
		ProviderID:  "prov-1",
		BookingDate: date(2026, 9, 1),
		BookingTime: "10:00",
		Amount:      100,
	}
	_, err := m.CreateBooking(context.Background(), draft)
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("CreateBooking() error = %v, want ErrNotAuthenticated", err)
	}
	if got := gw.calls(); got != 0 {
		t.Errorf("gateway calls = %d, want 0", got)
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}
}

func TestManagerCreateBooking(t *testing.T) {
	gw := newStubGateway()
	m := NewManager(gw, newStubIdentity("cust-1"), &stubNotifier{}, testLogger())

	draft := model.BookingDraft{
		ServiceID:   "s1",
		ProviderID:  "prov-1",
		BookingDate: date(2026, 9, 1),
		BookingTime: "10:00",
		Amount:      150.50,
		Notes:       "front door code 1234",
	}
	booking, err := m.CreateBooking(context.Background(), draft)
	if err != nil {
		t.Fatalf("CreateBooking() error = %v", err)
	}

	row := gw.lastInsert
	if row["customer_id"] != "cust-1" {
		t.Errorf("customer_id = %v, want cust-1", row["customer_id"])
	}
	if row["status"] != "pending" || row["payment_status"] != "unpaid" {
		t.Errorf("new booking must start pending/unpaid, got %v/%v", row["status"], row["payment_status"])
	}
	if row["amount"] != int64(15050) {
		t.Errorf("amount = %v, want 15050 cents", row["amount"])
	}
	if id, _ := row["id"].(string); id == "" {
		t.Error("booking id must be generated client-side")
	}
	if booking.Status != model.BookingStatusPending {
		t.Errorf("booking status = %v, want pending", booking.Status)
	}

	var refetched bool
	for _, rel := range gw.queryCalls {
		if rel == relationBookings {
			refetched = true
		}
	}
	if !refetched {
		t.Error("customer bookings must be refetched after create")
	}
}

func TestManagerCreateBookingInvalidDraft(t *testing.T) {
	gw := newStubGateway()
	m := NewManager(gw, newStubIdentity("cust-1"), &stubNotifier{}, testLogger())

	_, err := m.CreateBooking(context.Background(), model.BookingDraft{})
	if err == nil {
		t.Fatal("CreateBooking() error = nil, want validation error")
	}
	if gw.insertCalls != 0 {
		t.Errorf("insert calls = %d, want 0", gw.insertCalls)
	}
}

func TestManagerUpdateBookingStatus(t *testing.T) {
	gw := newStubGateway()
	m := NewManager(gw, newStubIdentity("prov-1"), &stubNotifier{}, testLogger())

	status := model.BookingStatusConfirmed
	notes := "bring documents"
	err := m.UpdateBookingStatus(context.Background(), "b1", model.BookingPatch{
		Status:        &status,
		ProviderNotes: &notes,
	})
	if err != nil {
		t.Fatalf("UpdateBookingStatus() error = %v", err)
	}

	if gw.lastPatch["status"] != "confirmed" || gw.lastPatch["provider_notes"] != "bring documents" {
		t.Errorf("unexpected patch: %+v", gw.lastPatch)
	}
	if gw.lastFilter["id"] != "b1" || gw.lastFilter["provider_id"] != "prov-1" {
		t.Errorf("update must be scoped to the provider, got %+v", gw.lastFilter)
	}

	var bookings, stats int
	for _, rel := range gw.queryCalls {
		switch rel {
		case relationBookings:
			bookings++
		case relationStats:
			stats++
		}
	}
	if bookings < 2 || stats != 1 {
		t.Errorf("refetch calls bookings=%d stats=%d, want provider view and stats refetched", bookings, stats)
	}
}

func TestManagerUpdateBookingStatusRejected(t *testing.T) {
	gw := newStubGateway()
	gw.updateErr = gateway.ErrWriteRejected
	m := NewManager(gw, newStubIdentity("prov-1"), &stubNotifier{}, testLogger())

	status := model.BookingStatusCancelled
	err := m.UpdateBookingStatus(context.Background(), "b1", model.BookingPatch{Status: &status})
	if !errors.Is(err, gateway.ErrWriteRejected) {
		t.Fatalf("UpdateBookingStatus() error = %v, want ErrWriteRejected", err)
	}
	if len(gw.queryCalls) != 0 {
		t.Errorf("rejected write must not trigger refetch, got %d query calls", len(gw.queryCalls))
	}
}

func TestManagerUpdateBookingStatusEmptyPatch(t *testing.T) {
	gw := newStubGateway()
	m := NewManager(gw, newStubIdentity("prov-1"), &stubNotifier{}, testLogger())

	err := m.UpdateBookingStatus(context.Background(), "b1", model.BookingPatch{})
	if err == nil {
		t.Fatal("UpdateBookingStatus() error = nil, want validation error")
	}
	if gw.updateCalls != 0 {
		t.Errorf("update calls = %d, want 0", gw.updateCalls)
	}
}

func TestManagerRefresh(t *testing.T) {
	gw := newStubGateway()
	m := NewManager(gw, newStubIdentity("prov-1"), &stubNotifier{}, testLogger())

	if err := m.Refresh(context.Background(), DomainProviderBookings); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(gw.queryCalls) != 1 {
		t.Errorf("query calls = %d, want 1", len(gw.queryCalls))
	}

	if err := m.Refresh(context.Background(), "unknown"); !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("Refresh(unknown) error = %v, want ErrUnknownDomain", err)
	}
}

func TestManagerRefreshWithoutIdentity(t *testing.T) {
	gw := newStubGateway()
	m := NewManager(gw, newStubIdentity(""), &stubNotifier{}, testLogger())

	if err := m.Refresh(context.Background(), DomainProviderStats); err != nil {
		t.Fatalf("Refresh() error = %v, want silent no-op", err)
	}
	if got := gw.calls(); got != 0 {
		t.Errorf("gateway calls = %d, want 0", got)
	}
}

// lateIdentity разрешает личность сразу после первого чтения Current,
// рассылая изменение только уже зарегистрированным наблюдателям.
type lateIdentity struct {
	mu       sync.Mutex
	current  string
	watchers []chan identity.Change
}

func (s *lateIdentity) Current() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == "" {
		s.current = "prov-1"
		for _, ch := range s.watchers {
			select {
			case ch <- identity.Change{Identity: s.current}:
			default:
			}
		}
		return "", true
	}
	return s.current, false
}

func (s *lateIdentity) Watch() <-chan identity.Change {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan identity.Change, 1)
	s.watchers = append(s.watchers, ch)
	return ch
}

func TestManagerIdentityResolvedDuringStartup(t *testing.T) {
	gw := newStubGateway()
	m := NewManager(gw, &lateIdentity{}, &stubNotifier{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	waitFor(t, func() bool { return len(gw.queries()) >= 3 },
		"identity resolved during startup must still subscribe and fetch")
}

func TestManagerIdentityLifecycle(t *testing.T) {
	gw := newStubGateway()
	ids := newStubIdentity("")
	m := NewManager(gw, ids, &stubNotifier{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	ids.set("prov-1")
	waitFor(t, func() bool { return len(gw.queries()) >= 3 }, "resubscribe did not fetch all domains")
	waitFor(t, func() bool {
		return !m.ProviderBookings().Loading && !m.CustomerBookings().Loading && !m.ProviderStats().Loading
	}, "initial fetches did not settle")

	ids.set("")
	waitFor(t, func() bool {
		snap := m.ProviderBookings()
		return snap.Loading && snap.Data == nil
	}, "identity loss must reset caches")
}
