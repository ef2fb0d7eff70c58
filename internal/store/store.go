// Package store реализует кэш-хранилище материализованного представления
// одного домена данных с флагами загрузки и последней ошибкой чтения.
package store

import "sync"

// Snapshot представляет согласованное состояние домена для потребителей.
type Snapshot[T any] struct {
	Data    T
	Loading bool
	Err     string
}

// Store хранит текущее представление одного домена данных. Запись выполняет
// только координатор домена, чтение — произвольное число потребителей.
// Каждое успешное чтение заменяет данные целиком: частичных слияний нет.
type Store[T any] struct {
	mu      sync.RWMutex
	data    T
	loading bool
	err     string
	clone   func(T) T
}

// New создаёт хранилище в исходном состоянии: данных нет, загрузка идёт.
// Функция clone используется для защитного копирования данных в снимках;
// при nil данные возвращаются как есть.
func New[T any](clone func(T) T) *Store[T] {
	return &Store[T]{
		loading: true,
		clone:   clone,
	}
}

// Begin отмечает начало попытки чтения: флаг загрузки взводится,
// ошибка предыдущей попытки сбрасывается. Данные не трогаются.
func (s *Store[T]) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading = true
	s.err = ""
}

// Commit атомарно заменяет данные результатом успешного чтения.
func (s *Store[T]) Commit(data T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.clone != nil {
		data = s.clone(data)
	}
	s.data = data
	s.loading = false
	s.err = ""
}

// Fail фиксирует неудачу чтения: прежние данные сохраняются,
// ошибка записывается для потребителей.
func (s *Store[T]) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading = false
	if err != nil {
		s.err = err.Error()
	}
}

// Reset возвращает хранилище в исходное состояние. Вызывается при смене
// личности или остановке домена: кэшированное представление отбрасывается.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	s.data = zero
	s.loading = true
	s.err = ""
}

// Snapshot возвращает копию текущего состояния домена.
func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := s.data
	if s.clone != nil {
		data = s.clone(data)
	}

	return Snapshot[T]{
		Data:    data,
		Loading: s.loading,
		Err:     s.err,
	}
}
