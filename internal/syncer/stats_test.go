package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/mmeshcher/bookingsync-system/internal/gateway"
)

func TestStatsViewFetch(t *testing.T) {
	gw := newStubGateway()
	gw.queryRows[relationStats] = []gateway.Row{{
		"total_services":     int32(3),
		"total_bookings":     int32(40),
		"completed_bookings": int32(25),
		"total_reviews":      int32(12),
		"total_earnings":     int64(250000),
		"average_rating":     4.5,
		"monthly_earnings":   int64(999999),
		"monthly_bookings":   int32(99),
	}}
	gw.queryRows[relationBookings] = []gateway.Row{
		{"booking_date": date(2026, 8, 5), "status": "completed", "amount": int64(10000)},
		{"booking_date": date(2026, 8, 12), "status": "pending", "amount": int64(50000)},
		{"booking_date": date(2026, 8, 20), "status": "completed", "amount": int64(20000)},
		{"booking_date": date(2026, 7, 30), "status": "completed", "amount": int64(70000)},
	}

	view := NewStatsView(gw, testLogger())
	view.now = func() time.Time { return date(2026, 8, 15) }

	if err := view.Fetch(context.Background(), "prov-1"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	snap := view.Snapshot()
	if snap.Loading || snap.Err != "" {
		t.Fatalf("unexpected snapshot state: loading=%v err=%q", snap.Loading, snap.Err)
	}

	stats := snap.Data
	if stats.TotalBookings != 40 || stats.CompletedBookings != 25 {
		t.Errorf("unexpected totals: %+v", stats)
	}
	if stats.TotalEarnings != 2500 {
		t.Errorf("TotalEarnings = %v, want 2500", stats.TotalEarnings)
	}
	if stats.MonthlyBookings != 3 {
		t.Errorf("MonthlyBookings = %d, want 3", stats.MonthlyBookings)
	}
	if stats.MonthlyEarnings != 300 {
		t.Errorf("MonthlyEarnings = %v, want 300 (completed in-month only)", stats.MonthlyEarnings)
	}
}

func TestStatsViewFetchNoStatsRow(t *testing.T) {
	gw := newStubGateway()
	gw.queryRows[relationBookings] = []gateway.Row{
		{"booking_date": date(2026, 8, 5), "status": "completed", "amount": int64(5000)},
	}

	view := NewStatsView(gw, testLogger())
	view.now = func() time.Time { return date(2026, 8, 15) }

	if err := view.Fetch(context.Background(), "prov-2"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	stats := view.Snapshot().Data
	if stats.TotalBookings != 0 {
		t.Errorf("TotalBookings = %d, want 0", stats.TotalBookings)
	}
	if stats.MonthlyBookings != 1 || stats.MonthlyEarnings != 50 {
		t.Errorf("monthly = %d/%v, want 1/50", stats.MonthlyBookings, stats.MonthlyEarnings)
	}
}

func TestStatsViewFetchEmptyIdentity(t *testing.T) {
	gw := newStubGateway()
	view := NewStatsView(gw, testLogger())

	if err := view.Fetch(context.Background(), ""); err != nil {
		t.Fatalf("Fetch() error = %v, want nil", err)
	}
	if got := gw.calls(); got != 0 {
		t.Errorf("gateway calls = %d, want 0", got)
	}
}

func TestMonthBounds(t *testing.T) {
	start, next := monthBounds(date(2026, 12, 31))
	if !start.Equal(date(2026, 12, 1)) {
		t.Errorf("start = %v, want 2026-12-01", start)
	}
	if !next.Equal(date(2027, 1, 1)) {
		t.Errorf("next = %v, want 2027-01-01", next)
	}
}
