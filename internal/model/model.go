// Package model содержит доменные сущности сервиса синхронизации бронирований.
package model

import "time"

// BookingStatus описывает статус бронирования.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// ServiceInfo содержит денормализованные данные услуги, связанной с бронированием.
type ServiceInfo struct {
	Name            string
	DurationMinutes int
}

// ProfileInfo содержит денормализованные данные контрагента бронирования:
// для исполнителя это клиент, для клиента — исполнитель.
type ProfileInfo struct {
	Name  string
	Phone string
	Email string
}

// Booking описывает запись о бронировании услуги.
type Booking struct {
	ID            string
	BookingDate   time.Time
	BookingTime   string
	Amount        float64
	Status        BookingStatus
	PaymentStatus string
	Notes         string
	ProviderNotes string
	Address       string
	CreatedAt     time.Time
	Service       ServiceInfo
	Counterparty  ProfileInfo
}

// BookingDraft содержит данные для создания нового бронирования.
type BookingDraft struct {
	ServiceID   string
	ProviderID  string
	BookingDate time.Time
	BookingTime string
	Amount      float64
	Notes       string
	Address     string
}

// BookingPatch описывает частичное обновление бронирования.
// Набор обновляемых полей закрыт: статус и заметки исполнителя.
type BookingPatch struct {
	Status        *BookingStatus
	ProviderNotes *string
}

// IsEmpty сообщает, что патч не содержит ни одного поля для обновления.
func (p BookingPatch) IsEmpty() bool {
	return p.Status == nil && p.ProviderNotes == nil
}

// ProviderStats содержит агрегированную статистику исполнителя.
// Поля за текущий месяц пересчитываются на клиенте из бронирований
// текущего календарного месяца, остальные берутся из предрасчитанной строки.
type ProviderStats struct {
	TotalServices     int
	TotalBookings     int
	CompletedBookings int
	TotalReviews      int
	TotalEarnings     float64
	AverageRating     float64
	MonthlyEarnings   float64
	MonthlyBookings   int
}

// CartItem описывает позицию локальной корзины.
type CartItem struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	Image      string  `json:"image,omitempty"`
	Category   string  `json:"category,omitempty"`
	ProviderID string  `json:"provider_id,omitempty"`
}

// CartState описывает состояние корзины. Total и ItemCount — производные
// значения, пересчитываемые из списка позиций при каждой операции.
type CartState struct {
	Items     []CartItem `json:"items"`
	Total     float64    `json:"total"`
	ItemCount int        `json:"item_count"`
}
