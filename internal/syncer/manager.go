package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/bookingsync-system/internal/gateway"
	"github.com/mmeshcher/bookingsync-system/internal/identity"
	"github.com/mmeshcher/bookingsync-system/internal/model"
	"github.com/mmeshcher/bookingsync-system/internal/store"
	"github.com/mmeshcher/bookingsync-system/internal/validation"
)

// IdentitySource поставляет текущую личность и канал её смен.
type IdentitySource interface {
	Current() (string, bool)
	Watch() <-chan identity.Change
}

// Manager владеет представлениями всех доменов синхронизации и их
// слушателями. Смена личности перестраивает подписки и сбрасывает
// кэши; мутации проходят через шлюз и завершаются перечитыванием
// затронутых представлений.
type Manager struct {
	gw       gateway.Gateway
	ids      IdentitySource
	notifier Notifier
	logger   *zap.Logger

	providerBookings *BookingsView
	customerBookings *BookingsView
	providerStats    *StatsView

	listeners []*Listener
	current   string
}

// NewManager создаёт менеджер синхронизации с пустыми представлениями.
func NewManager(gw gateway.Gateway, ids IdentitySource, notifier Notifier, logger *zap.Logger) *Manager {
	return &Manager{
		gw:               gw,
		ids:              ids,
		notifier:         notifier,
		logger:           logger,
		providerBookings: NewBookingsView(gw, RoleProvider, logger),
		customerBookings: NewBookingsView(gw, RoleCustomer, logger),
		providerStats:    NewStatsView(gw, logger),
	}
}

// Run обслуживает жизненный цикл личности до отмены контекста:
// применяет текущую личность и реагирует на её смены.
func (m *Manager) Run(ctx context.Context) {
	// Наблюдатель регистрируется до чтения текущего значения:
	// личность, разрешившаяся между этими вызовами, придёт в канал.
	changes := m.ids.Watch()

	if id, _ := m.ids.Current(); id != "" {
		m.apply(ctx, id)
	}

	for {
		select {
		case <-ctx.Done():
			m.teardown()
			return
		case ch := <-changes:
			m.apply(ctx, ch.Identity)
		}
	}
}

// apply перестраивает слушателей под новую личность. Старые подписки
// закрываются до создания новых, кэши сбрасываются в состояние загрузки.
func (m *Manager) apply(ctx context.Context, id string) {
	if id == m.current {
		return
	}
	m.teardown()
	m.current = id

	m.providerBookings.Reset()
	m.customerBookings.Reset()
	m.providerStats.Reset()

	if id == "" {
		m.logger.Info("identity cleared, sync stopped")
		return
	}

	m.logger.Info("identity changed, resubscribing", zap.String("identity", id))

	m.subscribe(ctx, DomainProviderBookings, relationBookings,
		gateway.Filter{"provider_id": id},
		func(ctx context.Context) error { return m.providerBookings.Fetch(ctx, id) })
	m.subscribe(ctx, DomainCustomerBookings, relationBookings,
		gateway.Filter{"customer_id": id},
		func(ctx context.Context) error { return m.customerBookings.Fetch(ctx, id) })
	m.subscribe(ctx, DomainProviderStats, relationBookings,
		gateway.Filter{"provider_id": id},
		func(ctx context.Context) error { return m.providerStats.Fetch(ctx, id) })
}

func (m *Manager) subscribe(ctx context.Context, domain, relation string, filter gateway.Filter, fetch func(ctx context.Context) error) {
	sub, err := m.gw.Subscribe(ctx, domain+":"+m.current, relation, filter)
	if err != nil {
		m.logger.Warn("subscribe failed", zap.String("domain", domain), zap.Error(err))
		return
	}
	l := NewListener(domain, sub, fetch, m.logger)
	m.listeners = append(m.listeners, l)
	go l.Run(ctx)
}

func (m *Manager) teardown() {
	for _, l := range m.listeners {
		l.Close()
	}
	m.listeners = nil
}

// ProviderBookings возвращает снимок бронирований поставщика.
func (m *Manager) ProviderBookings() store.Snapshot[[]model.Booking] {
	return m.providerBookings.Snapshot()
}

// CustomerBookings возвращает снимок бронирований клиента.
func (m *Manager) CustomerBookings() store.Snapshot[[]model.Booking] {
	return m.customerBookings.Snapshot()
}

// ProviderStats возвращает снимок статистики поставщика.
func (m *Manager) ProviderStats() store.Snapshot[model.ProviderStats] {
	return m.providerStats.Snapshot()
}

// Refresh выполняет ручное перечитывание одного домена. Без личности
// перечитывание молча пропускается.
func (m *Manager) Refresh(ctx context.Context, domain string) error {
	id, _ := m.ids.Current()
	switch domain {
	case DomainProviderBookings:
		return m.providerBookings.Fetch(ctx, id)
	case DomainCustomerBookings:
		return m.customerBookings.Fetch(ctx, id)
	case DomainProviderStats:
		return m.providerStats.Fetch(ctx, id)
	default:
		return ErrUnknownDomain
	}
}

// CreateBooking создаёт бронирование от имени текущей личности и
// перечитывает клиентское представление. Без личности шлюз не
// вызывается, пользователь получает уведомление.
func (m *Manager) CreateBooking(ctx context.Context, draft model.BookingDraft) (*model.Booking, error) {
	id, _ := m.ids.Current()
	if id == "" {
		m.notifier.Notify("Authentication required", "Please log in to book services")
		return nil, ErrNotAuthenticated
	}
	if err := validation.ValidateBookingDraft(draft); err != nil {
		return nil, err
	}

	row := gateway.Row{
		"id":             uuid.NewString(),
		"customer_id":    id,
		"provider_id":    draft.ProviderID,
		"service_id":     draft.ServiceID,
		"booking_date":   draft.BookingDate.Format(time.DateOnly),
		"booking_time":   draft.BookingTime,
		"amount":         amountToCents(draft.Amount),
		"status":         string(model.BookingStatusPending),
		"payment_status": "unpaid",
		"notes":          draft.Notes,
		"address":        draft.Address,
	}

	created, err := m.gw.Insert(ctx, relationBookings, row)
	if err != nil {
		m.logger.Warn("booking insert failed", zap.Error(err))
		return nil, err
	}

	if err := m.customerBookings.Fetch(ctx, id); err != nil {
		m.logger.Warn("post-create refetch failed", zap.Error(err))
	}

	booking := bookingFromRow(created)
	return &booking, nil
}

// UpdateBookingStatus применяет патч к бронированию текущей личности
// как поставщика и перечитывает затронутые представления.
func (m *Manager) UpdateBookingStatus(ctx context.Context, bookingID string, patch model.BookingPatch) error {
	id, _ := m.ids.Current()
	if id == "" {
		m.notifier.Notify("Authentication required", "Please log in to manage bookings")
		return ErrNotAuthenticated
	}
	if err := validation.ValidateBookingPatch(patch); err != nil {
		return err
	}

	row := gateway.Row{}
	if patch.Status != nil {
		row["status"] = string(*patch.Status)
	}
	if patch.ProviderNotes != nil {
		row["provider_notes"] = *patch.ProviderNotes
	}

	err := m.gw.Update(ctx, relationBookings, row, gateway.Filter{
		"id":          bookingID,
		"provider_id": id,
	})
	if err != nil {
		m.logger.Warn("booking update failed", zap.String("booking", bookingID), zap.Error(err))
		return err
	}

	if err := m.providerBookings.Fetch(ctx, id); err != nil {
		m.logger.Warn("post-update refetch failed", zap.Error(err))
	}
	if err := m.providerStats.Fetch(ctx, id); err != nil {
		m.logger.Warn("post-update stats refetch failed", zap.Error(err))
	}
	return nil
}
