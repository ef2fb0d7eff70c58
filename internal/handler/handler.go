// Package handler содержит HTTP-обработчики локального API сервиса
// синхронизации бронирований.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/bookingsync-system/internal/gateway"
	"github.com/mmeshcher/bookingsync-system/internal/model"
	"github.com/mmeshcher/bookingsync-system/internal/store"
	"github.com/mmeshcher/bookingsync-system/internal/syncer"
	"github.com/mmeshcher/bookingsync-system/internal/validation"
)

// Syncer определяет контракт ядра синхронизации, используемый HTTP-обработчиками.
type Syncer interface {
	ProviderBookings() store.Snapshot[[]model.Booking]
	CustomerBookings() store.Snapshot[[]model.Booking]
	ProviderStats() store.Snapshot[model.ProviderStats]
	Refresh(ctx context.Context, domain string) error
	CreateBooking(ctx context.Context, draft model.BookingDraft) (*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID string, patch model.BookingPatch) error
}

// CartService определяет контракт локальной корзины.
type CartService interface {
	State() model.CartState
	Add(item model.CartItem) model.CartState
	Remove(id string) model.CartState
	SetQuantity(id string, quantity int) model.CartState
	Clear() model.CartState
}

// Handler реализует HTTP-обработчики локального API.
type Handler struct {
	syncer Syncer
	cart   CartService
	logger *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Syncer, cart CartService, logger *zap.Logger) *Handler {
	return &Handler{
		syncer: s,
		cart:   cart,
		logger: logger,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type bookingResponse struct {
	ID            string  `json:"id"`
	BookingDate   string  `json:"booking_date"`
	BookingTime   string  `json:"booking_time"`
	Amount        float64 `json:"amount"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
	Notes         string  `json:"notes,omitempty"`
	ProviderNotes string  `json:"provider_notes,omitempty"`
	Address       string  `json:"address,omitempty"`
	CreatedAt     string  `json:"created_at"`
	Service       struct {
		Name            string `json:"name"`
		DurationMinutes int    `json:"duration_minutes"`
	} `json:"service"`
	Counterparty struct {
		Name  string `json:"name"`
		Phone string `json:"phone,omitempty"`
		Email string `json:"email,omitempty"`
	} `json:"counterparty"`
}

func toBookingResponse(b model.Booking) bookingResponse {
	resp := bookingResponse{
		ID:            b.ID,
		BookingDate:   b.BookingDate.Format(time.DateOnly),
		BookingTime:   b.BookingTime,
		Amount:        b.Amount,
		Status:        string(b.Status),
		PaymentStatus: b.PaymentStatus,
		Notes:         b.Notes,
		ProviderNotes: b.ProviderNotes,
		Address:       b.Address,
		CreatedAt:     b.CreatedAt.Format(time.RFC3339),
	}
	resp.Service.Name = b.Service.Name
	resp.Service.DurationMinutes = b.Service.DurationMinutes
	resp.Counterparty.Name = b.Counterparty.Name
	resp.Counterparty.Phone = b.Counterparty.Phone
	resp.Counterparty.Email = b.Counterparty.Email
	return resp
}

type bookingsSnapshotResponse struct {
	Data    []bookingResponse `json:"data"`
	Loading bool              `json:"loading"`
	Error   string            `json:"error,omitempty"`
}

// GetProviderBookings возвращает снимок бронирований поставщика.
func (h *Handler) GetProviderBookings(w http.ResponseWriter, r *http.Request) {
	h.writeBookingsSnapshot(w, h.syncer.ProviderBookings())
}

// GetCustomerBookings возвращает снимок бронирований клиента.
func (h *Handler) GetCustomerBookings(w http.ResponseWriter, r *http.Request) {
	h.writeBookingsSnapshot(w, h.syncer.CustomerBookings())
}

func (h *Handler) writeBookingsSnapshot(w http.ResponseWriter, snap store.Snapshot[[]model.Booking]) {
	resp := bookingsSnapshotResponse{
		Data:    make([]bookingResponse, 0, len(snap.Data)),
		Loading: snap.Loading,
		Error:   snap.Err,
	}
	for _, b := range snap.Data {
		resp.Data = append(resp.Data, toBookingResponse(b))
	}
	h.writeJSON(w, resp)
}

type statsResponse struct {
	TotalServices     int     `json:"total_services"`
	TotalBookings     int     `json:"total_bookings"`
	CompletedBookings int     `json:"completed_bookings"`
	TotalReviews      int     `json:"total_reviews"`
	TotalEarnings     float64 `json:"total_earnings"`
	AverageRating     float64 `json:"average_rating"`
	MonthlyEarnings   float64 `json:"monthly_earnings"`
	MonthlyBookings   int     `json:"monthly_bookings"`
}

type statsSnapshotResponse struct {
	Data    statsResponse `json:"data"`
	Loading bool          `json:"loading"`
	Error   string        `json:"error,omitempty"`
}

// GetProviderStats возвращает снимок статистики поставщика.
func (h *Handler) GetProviderStats(w http.ResponseWriter, r *http.Request) {
	snap := h.syncer.ProviderStats()
	h.writeJSON(w, statsSnapshotResponse{
		Data: statsResponse{
			TotalServices:     snap.Data.TotalServices,
			TotalBookings:     snap.Data.TotalBookings,
			CompletedBookings: snap.Data.CompletedBookings,
			TotalReviews:      snap.Data.TotalReviews,
			TotalEarnings:     snap.Data.TotalEarnings,
			AverageRating:     snap.Data.AverageRating,
			MonthlyEarnings:   snap.Data.MonthlyEarnings,
			MonthlyBookings:   snap.Data.MonthlyBookings,
		},
		Loading: snap.Loading,
		Error:   snap.Err,
	})
}

type createBookingRequest struct {
	ServiceID   string  `json:"service_id"`
	ProviderID  string  `json:"provider_id"`
	BookingDate string  `json:"booking_date"`
	BookingTime string  `json:"booking_time"`
	Amount      float64 `json:"amount"`
	Notes       string  `json:"notes"`
	Address     string  `json:"address"`
}

// CreateBooking создаёт новое бронирование от имени текущей личности.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	bookingDate, err := time.Parse(time.DateOnly, req.BookingDate)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	booking, err := h.syncer.CreateBooking(r.Context(), model.BookingDraft{
		ServiceID:   req.ServiceID,
		ProviderID:  req.ProviderID,
		BookingDate: bookingDate,
		BookingTime: req.BookingTime,
		Amount:      req.Amount,
		Notes:       req.Notes,
		Address:     req.Address,
	})
	if err != nil {
		switch {
		case errors.Is(err, syncer.ErrNotAuthenticated):
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		case errors.Is(err, validation.ErrInvalidDraft):
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		case errors.Is(err, gateway.ErrWriteRejected):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("create booking error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(toBookingResponse(*booking)); err != nil {
		h.logger.Error("encode booking response error", zap.Error(err))
	}
}

type updateBookingRequest struct {
	Status        *string `json:"status"`
	ProviderNotes *string `json:"provider_notes"`
}

// UpdateBooking применяет частичное обновление к бронированию.
func (h *Handler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "id")
	if bookingID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	// Набор обновляемых полей закрыт: неизвестные поля отклоняются.
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req updateBookingRequest
	if err := dec.Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	patch := model.BookingPatch{ProviderNotes: req.ProviderNotes}
	if req.Status != nil {
		status := model.BookingStatus(*req.Status)
		patch.Status = &status
	}

	err := h.syncer.UpdateBookingStatus(r.Context(), bookingID, patch)
	if err != nil {
		switch {
		case errors.Is(err, syncer.ErrNotAuthenticated):
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		case errors.Is(err, validation.ErrInvalidPatch):
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		case errors.Is(err, gateway.ErrWriteRejected):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("update booking error", zap.Error(err), zap.String("booking", bookingID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Refresh выполняет ручное перечитывание одного домена синхронизации.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")

	if err := h.syncer.Refresh(r.Context(), domain); err != nil {
		if errors.Is(err, syncer.ErrUnknownDomain) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("refresh error", zap.Error(err), zap.String("domain", domain))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

type cartItemRequest struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Image      string  `json:"image"`
	Category   string  `json:"category"`
	ProviderID string  `json:"provider_id"`
}

// GetCart возвращает текущее состояние корзины.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.cart.State())
}

// AddCartItem добавляет позицию в корзину.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	state := h.cart.Add(model.CartItem{
		ID:         req.ID,
		Name:       req.Name,
		Price:      req.Price,
		Image:      req.Image,
		Category:   req.Category,
		ProviderID: req.ProviderID,
	})
	h.writeJSON(w, state)
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// SetCartItemQuantity задаёт количество позиции корзины.
// Нулевое и отрицательное количество удаляет позицию.
func (h *Handler) SetCartItemQuantity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req cartQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, h.cart.SetQuantity(id, req.Quantity))
}

// RemoveCartItem удаляет позицию из корзины.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.cart.Remove(chi.URLParam(r, "id")))
}

// ClearCart очищает корзину.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.cart.Clear())
}
