package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/bookingsync-system/internal/gateway"
	"github.com/mmeshcher/bookingsync-system/internal/model"
	"github.com/mmeshcher/bookingsync-system/internal/store"
)

// StatsView — синхронизируемая статистика поставщика. Базовая строка
// читается из агрегатного отношения, месячные показатели пересчитываются
// локально по бронированиям текущего календарного месяца.
type StatsView struct {
	gw     gateway.Gateway
	cache  *store.Store[model.ProviderStats]
	logger *zap.Logger
	now    func() time.Time

	fetchMu sync.Mutex
}

// NewStatsView создаёт представление статистики поставщика.
func NewStatsView(gw gateway.Gateway, logger *zap.Logger) *StatsView {
	return &StatsView{
		gw:     gw,
		cache:  store.New(cloneStats),
		logger: logger,
		now:    time.Now,
	}
}

func cloneStats(src model.ProviderStats) model.ProviderStats {
	return src
}

// Snapshot возвращает текущее состояние кэша статистики.
func (v *StatsView) Snapshot() store.Snapshot[model.ProviderStats] {
	return v.cache.Snapshot()
}

// Reset сбрасывает кэш к начальному состоянию загрузки.
func (v *StatsView) Reset() {
	v.cache.Reset()
}

// Fetch перечитывает статистику поставщика identity. Месячная выручка
// учитывает только завершённые бронирования текущего месяца; месячное
// число бронирований — все бронирования месяца независимо от статуса.
func (v *StatsView) Fetch(ctx context.Context, identity string) error {
	if identity == "" {
		return nil
	}

	v.fetchMu.Lock()
	defer v.fetchMu.Unlock()

	v.cache.Begin()

	rows, err := v.gw.Query(ctx, relationStats, gateway.Filter{"provider_id": identity}, nil)
	if err != nil {
		v.logger.Warn("stats fetch failed", zap.Error(err))
		v.cache.Fail(err)
		return err
	}

	var stats model.ProviderStats
	if len(rows) > 0 {
		stats = statsFromRow(rows[0])
	}

	monthStart, nextMonth := monthBounds(v.now())
	monthly, err := v.gw.Query(ctx, relationBookings, gateway.Filter{
		"provider_id": identity,
		"booking_date": []gateway.Condition{
			{Op: ">=", Value: monthStart},
			{Op: "<", Value: nextMonth},
		},
	}, nil)
	if err != nil {
		v.logger.Warn("monthly bookings fetch failed", zap.Error(err))
		v.cache.Fail(err)
		return err
	}

	stats.MonthlyBookings, stats.MonthlyEarnings = reduceMonthly(monthly, monthStart, nextMonth)

	v.cache.Commit(stats)
	return nil
}

func statsFromRow(row gateway.Row) model.ProviderStats {
	return model.ProviderStats{
		TotalServices:     rowInt(row, "total_services"),
		TotalBookings:     rowInt(row, "total_bookings"),
		CompletedBookings: rowInt(row, "completed_bookings"),
		TotalReviews:      rowInt(row, "total_reviews"),
		TotalEarnings:     centsToAmount(rowInt64(row, "total_earnings")),
		AverageRating:     rowFloat(row, "average_rating"),
	}
}

func monthBounds(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, 0)
}

func reduceMonthly(rows []gateway.Row, monthStart, nextMonth time.Time) (count int, earnings float64) {
	for _, row := range rows {
		date := rowTime(row, "booking_date")
		if date.Before(monthStart) || !date.Before(nextMonth) {
			continue
		}
		count++
		if model.BookingStatus(rowString(row, "status")) == model.BookingStatusCompleted {
			earnings += centsToAmount(rowInt64(row, "amount"))
		}
	}
	return count, earnings
}
