// Package syncer реализует цикл синхронизации локальных представлений
// с удалённым хранилищем: чтение с преобразованием строк в доменные
// сущности, мутации с последующим полным перечитыванием и подписки
// на уведомления об изменениях, управляемые жизненным циклом личности.
package syncer

import (
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/bookingsync-system/internal/gateway"
	"github.com/mmeshcher/bookingsync-system/internal/model"
)

// ErrNotAuthenticated возвращается при попытке мутации без личности,
// до какого-либо обращения к шлюзу.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrUnknownDomain возвращается при запросе ручного обновления
// несуществующего домена.
var ErrUnknownDomain = errors.New("unknown domain")

// Имена доменов синхронизации.
const (
	DomainProviderBookings = "provider-bookings"
	DomainCustomerBookings = "customer-bookings"
	DomainProviderStats    = "provider-stats"
)

// Notifier доставляет пользователю дискретные уведомления.
// Ядро порождает их только для ошибок авторизации; отображение —
// забота внешнего сотрудника.
type Notifier interface {
	Notify(title, description string)
}

const (
	relationBookings = "bookings"
	relationStats    = "provider_stats"
)

func rowString(row gateway.Row, key string) string {
	switch v := row[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func rowInt(row gateway.Row, key string) int {
	switch v := row[key].(type) {
	case int64:
		return int(v)
	case int32:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func rowInt64(row gateway.Row, key string) int64 {
	switch v := row[key].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func rowFloat(row gateway.Row, key string) float64 {
	switch v := row[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	default:
		return 0
	}
}

func rowTime(row gateway.Row, key string) time.Time {
	if v, ok := row[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}

// centsToAmount переводит денежную сумму из копеек в рубли.
func centsToAmount(c int64) float64 {
	return float64(c) / 100
}

// amountToCents переводит денежную сумму из рублей в копейки.
func amountToCents(a float64) int64 {
	return int64(a * 100)
}

// bookingFromRow преобразует строку шлюза (с колонками соединённых
// отношений) в доменную сущность. E-mail контрагента заполняется
// отдельным побочным поиском.
func bookingFromRow(row gateway.Row) model.Booking {
	return model.Booking{
		ID:            rowString(row, "id"),
		BookingDate:   rowTime(row, "booking_date"),
		BookingTime:   rowString(row, "booking_time"),
		Amount:        centsToAmount(rowInt64(row, "amount")),
		Status:        model.BookingStatus(rowString(row, "status")),
		PaymentStatus: rowString(row, "payment_status"),
		Notes:         rowString(row, "notes"),
		ProviderNotes: rowString(row, "provider_notes"),
		Address:       rowString(row, "address"),
		CreatedAt:     rowTime(row, "created_at"),
		Service: model.ServiceInfo{
			Name:            rowString(row, "services.name"),
			DurationMinutes: rowInt(row, "services.duration_minutes"),
		},
		Counterparty: model.ProfileInfo{
			Name:  rowString(row, "profiles.full_name"),
			Phone: rowString(row, "profiles.phone"),
		},
	}
}
