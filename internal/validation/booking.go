// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/bookingsync-system/internal/model"
)

// ErrInvalidPatch возвращается, если частичное обновление бронирования
// не проходит проверку на границе системы.
var ErrInvalidPatch = errors.New("invalid booking patch")

// ErrInvalidDraft возвращается, если данные нового бронирования
// не проходят проверку на границе системы.
var ErrInvalidDraft = errors.New("invalid booking draft")

var validStatuses = map[model.BookingStatus]struct{}{
	model.BookingStatusPending:   {},
	model.BookingStatusConfirmed: {},
	model.BookingStatusCompleted: {},
	model.BookingStatusCancelled: {},
}

// IsValidStatus проверяет, что статус принадлежит допустимому набору.
func IsValidStatus(s model.BookingStatus) bool {
	_, ok := validStatuses[s]
	return ok
}

// IsValidBookingTime проверяет формат времени бронирования "HH:MM".
func IsValidBookingTime(t string) bool {
	if len(t) != 5 {
		return false
	}
	_, err := time.Parse("15:04", t)
	return err == nil
}

// ValidateBookingPatch проверяет частичное обновление бронирования:
// патч должен содержать хотя бы одно поле, а статус — входить в
// допустимый набор. Набор обновляемых полей закрыт самим типом патча.
func ValidateBookingPatch(p model.BookingPatch) error {
	if p.IsEmpty() {
		return fmt.Errorf("%w: no fields to update", ErrInvalidPatch)
	}
	if p.Status != nil && !IsValidStatus(*p.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidPatch, *p.Status)
	}
	return nil
}

// ValidateBookingDraft проверяет данные нового бронирования.
func ValidateBookingDraft(d model.BookingDraft) error {
	if d.ServiceID == "" {
		return fmt.Errorf("%w: service is required", ErrInvalidDraft)
	}
	if d.ProviderID == "" {
		return fmt.Errorf("%w: provider is required", ErrInvalidDraft)
	}
	if d.BookingDate.IsZero() {
		return fmt.Errorf("%w: booking date is required", ErrInvalidDraft)
	}
	if !IsValidBookingTime(d.BookingTime) {
		return fmt.Errorf("%w: invalid booking time %q", ErrInvalidDraft, d.BookingTime)
	}
	if d.Amount < 0 {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidDraft)
	}
	return nil
}
