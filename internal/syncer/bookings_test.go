package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/mmeshcher/bookingsync-system/internal/gateway"
)

func TestBookingsViewFetchEmptyIdentity(t *testing.T) {
	gw := newStubGateway()
	view := NewBookingsView(gw, RoleProvider, testLogger())

	if err := view.Fetch(context.Background(), ""); err != nil {
		t.Fatalf("Fetch() error = %v, want nil", err)
	}
	if got := gw.calls(); got != 0 {
		t.Errorf("gateway calls = %d, want 0", got)
	}
	snap := view.Snapshot()
	if !snap.Loading {
		t.Error("snapshot must stay in loading state")
	}
}

func TestBookingsViewFetchProvider(t *testing.T) {
	gw := newStubGateway()
	gw.queryRows[relationBookings] = []gateway.Row{
		{
			"id":                        "b1",
			"booking_date":              date(2026, 8, 10),
			"booking_time":              "09:00",
			"amount":                    int64(15000),
			"status":                    "pending",
			"payment_status":            "unpaid",
			"created_at":                date(2026, 8, 1),
			"services.name":             "Haircut",
			"services.duration_minutes": int32(45),
			"profiles.full_name":        "Ivan Petrov",
			"profiles.phone":            "+79000000001",
			"profiles.user_ref":         "u-1",
		},
		{
			"id":                "b2",
			"booking_date":      date(2026, 8, 20),
			"amount":            int64(30000),
			"status":            "confirmed",
			"profiles.user_ref": "u-2",
		},
	}
	gw.emails["u-1"] = "ivan@example.com"

	view := NewBookingsView(gw, RoleProvider, testLogger())
	if err := view.Fetch(context.Background(), "prov-1"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	snap := view.Snapshot()
	if snap.Loading {
		t.Error("snapshot still loading after commit")
	}
	if snap.Err != "" {
		t.Errorf("snapshot error = %q, want empty", snap.Err)
	}
	if len(snap.Data) != 2 {
		t.Fatalf("bookings = %d, want 2", len(snap.Data))
	}

	first := snap.Data[0]
	if first.ID != "b1" || first.Amount != 150 || first.Service.Name != "Haircut" {
		t.Errorf("unexpected first booking: %+v", first)
	}
	if first.Service.DurationMinutes != 45 {
		t.Errorf("duration = %d, want 45", first.Service.DurationMinutes)
	}
	if first.Counterparty.Name != "Ivan Petrov" || first.Counterparty.Email != "ivan@example.com" {
		t.Errorf("unexpected counterparty: %+v", first.Counterparty)
	}
	if !snap.Data[0].BookingDate.Before(snap.Data[1].BookingDate) {
		t.Error("provider bookings must be ordered by booking date ascending")
	}
	if snap.Data[1].Counterparty.Email != "" {
		t.Errorf("missing identity record must leave email empty, got %q", snap.Data[1].Counterparty.Email)
	}
}

func TestBookingsViewFetchErrorKeepsData(t *testing.T) {
	gw := newStubGateway()
	gw.queryRows[relationBookings] = []gateway.Row{{"id": "b1", "amount": int64(1000)}}

	view := NewBookingsView(gw, RoleCustomer, testLogger())
	if err := view.Fetch(context.Background(), "cust-1"); err != nil {
		t.Fatalf("first Fetch() error = %v", err)
	}

	gw.queryErr = errors.New("relation unavailable")
	if err := view.Fetch(context.Background(), "cust-1"); err == nil {
		t.Fatal("second Fetch() error = nil, want error")
	}

	snap := view.Snapshot()
	if snap.Err == "" {
		t.Error("snapshot error must be set after failed fetch")
	}
	if len(snap.Data) != 1 || snap.Data[0].ID != "b1" {
		t.Errorf("failed fetch must keep prior data, got %+v", snap.Data)
	}
}
