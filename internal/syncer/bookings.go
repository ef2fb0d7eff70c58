package syncer

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/bookingsync-system/internal/gateway"
	"github.com/mmeshcher/bookingsync-system/internal/model"
	"github.com/mmeshcher/bookingsync-system/internal/store"
)

// BookingsRole определяет, с какой стороны бронирования смотрит
// представление: поставщик видит заявки на свои услуги, клиент —
// собственные заказы.
type BookingsRole int

const (
	// RoleProvider — бронирования, адресованные текущей личности
	// как поставщику, по возрастанию даты визита.
	RoleProvider BookingsRole = iota
	// RoleCustomer — бронирования, созданные текущей личностью,
	// сначала новые.
	RoleCustomer
)

// BookingsView — синхронизируемый список бронирований одной роли.
// Методы безопасны для конкурентного вызова; перечитывания одного
// представления сериализуются.
type BookingsView struct {
	gw     gateway.Gateway
	cache  *store.Store[[]model.Booking]
	role   BookingsRole
	logger *zap.Logger

	fetchMu sync.Mutex
}

// NewBookingsView создаёт представление бронирований заданной роли.
func NewBookingsView(gw gateway.Gateway, role BookingsRole, logger *zap.Logger) *BookingsView {
	return &BookingsView{
		gw:     gw,
		cache:  store.New(cloneBookings),
		role:   role,
		logger: logger,
	}
}

func cloneBookings(src []model.Booking) []model.Booking {
	if src == nil {
		return nil
	}
	out := make([]model.Booking, len(src))
	copy(out, src)
	return out
}

// Snapshot возвращает текущее состояние кэша представления.
func (v *BookingsView) Snapshot() store.Snapshot[[]model.Booking] {
	return v.cache.Snapshot()
}

// Reset сбрасывает кэш к начальному состоянию загрузки.
func (v *BookingsView) Reset() {
	v.cache.Reset()
}

func (v *BookingsView) scopeColumn() string {
	if v.role == RoleProvider {
		return "provider_id"
	}
	return "customer_id"
}

func (v *BookingsView) counterpartyColumn() string {
	if v.role == RoleProvider {
		return "customer_id"
	}
	return "provider_id"
}

func (v *BookingsView) order() *gateway.Order {
	if v.role == RoleProvider {
		return &gateway.Order{Column: "booking_date"}
	}
	return &gateway.Order{Column: "created_at", Desc: true}
}

// Fetch перечитывает бронирования личности identity из хранилища и
// целиком замещает содержимое кэша. Пустая личность — запрос не
// выполняется и кэш не трогается.
func (v *BookingsView) Fetch(ctx context.Context, identity string) error {
	if identity == "" {
		return nil
	}

	v.fetchMu.Lock()
	defer v.fetchMu.Unlock()

	v.cache.Begin()

	rows, err := v.gw.Query(ctx, relationBookings, gateway.Filter{v.scopeColumn(): identity}, &gateway.QueryOptions{
		Joins: []gateway.Join{
			{Relation: "services", LocalKey: "service_id", ForeignKey: "id", Columns: []string{"name", "duration_minutes"}},
			{Relation: "profiles", LocalKey: v.counterpartyColumn(), ForeignKey: "id", Columns: []string{"full_name", "phone", "user_ref"}},
		},
		Order: v.order(),
	})
	if err != nil {
		v.logger.Warn("bookings fetch failed", zap.Error(err))
		v.cache.Fail(err)
		return err
	}

	bookings := make([]model.Booking, len(rows))
	for i, row := range rows {
		bookings[i] = bookingFromRow(row)
	}

	v.attachEmails(ctx, rows, bookings)

	v.cache.Commit(bookings)
	return nil
}

// attachEmails дополняет контрагентов адресами электронной почты из
// службы личностей. Отказ одного поиска не срывает перечитывание:
// адрес остаётся пустым.
func (v *BookingsView) attachEmails(ctx context.Context, rows []gateway.Row, bookings []model.Booking) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, row := range rows {
		userRef := rowString(row, "profiles.user_ref")
		if userRef == "" {
			continue
		}
		g.Go(func() error {
			rec, err := v.gw.LookupIdentityRecord(gctx, userRef)
			if err != nil {
				v.logger.Debug("identity record lookup failed",
					zap.String("user_ref", userRef), zap.Error(err))
				return nil
			}
			bookings[i].Counterparty.Email = rec.Email
			return nil
		})
	}

	_ = g.Wait()
}
