// Package gateway определяет контракт удалённого шлюза данных —
// чтение, запись и подписка на уведомления об изменениях именованных
// отношений — и его реализацию поверх PostgreSQL.
package gateway

import (
	"context"
	"errors"
)

// ErrWriteRejected возвращается, когда шлюз отклонил запись:
// нарушение ограничения, отсутствие строки или нехватка прав.
var (
	ErrWriteRejected = errors.New("write rejected by gateway")
	// ErrNotFound возвращается, если запрошенная запись отсутствует.
	ErrNotFound = errors.New("record not found")
)

// Row представляет одну строку отношения в виде пар колонка-значение.
// Колонки присоединённых отношений имеют ключи вида "relation.column".
type Row map[string]any

// Filter задаёт условия отбора строк. Значением может быть скаляр
// (сравнение на равенство), Condition для других операторов либо
// срез []Condition, когда к одной колонке применяется несколько условий.
type Filter map[string]any

// Condition задаёт нескалярное условие отбора для колонки.
type Condition struct {
	Op    string // ">=", ">", "<=", "<", "<>"
	Value any
}

// Join описывает соединение с связанным отношением при чтении.
type Join struct {
	Relation   string
	LocalKey   string
	ForeignKey string
	Columns    []string
}

// Order задаёт порядок сортировки результата чтения.
type Order struct {
	Column string
	Desc   bool
}

// QueryOptions содержит необязательные параметры чтения.
type QueryOptions struct {
	Joins []Join
	Order *Order
}

// Event описывает уведомление об изменении строк отношения.
// Детали изменённых строк не передаются: любое событие означает,
// что локальное представление нужно перечитать целиком.
type Event struct {
	Relation string
	Op       string
}

// Subscription представляет канал push-уведомлений одного подписчика.
type Subscription interface {
	// Events возвращает канал событий. Канал закрывается при Close.
	Events() <-chan Event
	// Close разрывает подписку и освобождает канал.
	Close()
}

// IdentityRecord содержит запись поставщика учётных записей,
// разрешаемую по внутренней ссылке пользователя.
type IdentityRecord struct {
	UserRef string
	Email   string
}

// Gateway описывает контракт удалённого хранилища данных.
type Gateway interface {
	Query(ctx context.Context, relation string, filter Filter, opts *QueryOptions) ([]Row, error)
	Insert(ctx context.Context, relation string, row Row) (Row, error)
	Update(ctx context.Context, relation string, patch Row, filter Filter) error
	Subscribe(ctx context.Context, key string, relation string, eventFilter Filter) (Subscription, error)
	LookupIdentityRecord(ctx context.Context, userRef string) (*IdentityRecord, error)
}
