package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// notifyChannel — имя канала NOTIFY, в который триггеры БД публикуют
// уведомления обо всех отслеживаемых отношениях.
const notifyChannel = "bookingsync_changes"

// notifyPayload — полезная нагрузка уведомления: отношение, операция
// и значения масштабирующих колонок изменённой строки.
type notifyPayload map[string]any

type subscriber struct {
	id       int64
	key      string
	relation string
	filter   Filter
	events   chan Event
}

// subscriberRegistry хранит активные подписки и рассылает им события.
type subscriberRegistry struct {
	mu     sync.Mutex
	nextID int64
	subs   map[int64]*subscriber
}

func newSubscriberRegistry() *subscriberRegistry {
	return &subscriberRegistry{subs: make(map[int64]*subscriber)}
}

func (r *subscriberRegistry) add(key, relation string, filter Filter) *subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	s := &subscriber{
		id:       r.nextID,
		key:      key,
		relation: relation,
		filter:   filter,
		events:   make(chan Event, 1),
	}
	r.subs[s.id] = s
	return s
}

func (r *subscriberRegistry) remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.subs[id]
	if !ok {
		return
	}
	delete(r.subs, id)
	close(s.events)
}

// dispatch доставляет событие всем подходящим подписчикам. Отправка
// неблокирующая: буфера в одно событие достаточно, так как любое
// уведомление означает одно и то же полное перечитывание.
func (r *subscriberRegistry) dispatch(p notifyPayload) {
	relation, _ := p["relation"].(string)
	op, _ := p["op"].(string)
	if relation == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.subs {
		if s.relation != relation {
			continue
		}
		if !matchesFilter(p, s.filter) {
			continue
		}
		select {
		case s.events <- Event{Relation: relation, Op: op}:
		default:
		}
	}
}

// matchesFilter сравнивает значения масштабирующих колонок уведомления
// с фильтром подписки. Сравнение строковое: payload приходит из JSON.
func matchesFilter(p notifyPayload, filter Filter) bool {
	for col, want := range filter {
		got, ok := p[col]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

type pgSubscription struct {
	sub      *subscriber
	registry *subscriberRegistry
	once     sync.Once
}

// Events возвращает канал событий подписки.
func (s *pgSubscription) Events() <-chan Event {
	return s.sub.events
}

// Close разрывает подписку; канал событий закрывается.
func (s *pgSubscription) Close() {
	s.once.Do(func() {
		s.registry.remove(s.sub.id)
	})
}

// Subscribe создаёт подписку на уведомления об изменениях отношения,
// отфильтрованные по значениям масштабирующих колонок.
func (g *PostgresGateway) Subscribe(ctx context.Context, key string, relation string, eventFilter Filter) (Subscription, error) {
	if err := validIdent(relation); err != nil {
		return nil, err
	}

	s := g.subs.add(key, relation, eventFilter)
	g.logger.Debug("subscription established",
		zap.String("key", key),
		zap.String("relation", relation),
	)

	return &pgSubscription{sub: s, registry: g.subs}, nil
}

// healthySession — минимальная длительность сессии прослушивания,
// после которой накопленная задержка переподключения обнуляется.
const healthySession = 30 * time.Second

// Run слушает канал NOTIFY и рассылает уведомления подписчикам.
// При потере соединения переподключается с экспоненциальной задержкой;
// обрыв после долгой живой сессии начинает серию повторов заново
// с минимальной задержки. Возвращается после отмены контекста.
func (g *PostgresGateway) Run(ctx context.Context) error {
	for {
		backoff := retry.WithCappedDuration(10*time.Second, retry.NewExponential(500*time.Millisecond))

		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			start := time.Now()
			lerr := g.listenOnce(ctx)
			if ctx.Err() != nil {
				return nil
			}
			g.logger.Warn("notification listener disconnected, reconnecting", zap.Error(lerr))
			return classifySessionFailure(start, time.Now(), lerr)
		})

		if ctx.Err() != nil || err == nil {
			return nil
		}
	}
}

// classifySessionFailure решает судьбу текущей серии повторов: обрыв
// после долгой живой сессии возвращает ошибку без пометки retryable,
// завершая серию, чтобы внешний цикл начал новую с нулевой задержкой.
func classifySessionFailure(start, now time.Time, err error) error {
	if now.Sub(start) >= healthySession {
		return err
	}
	return retry.RetryableError(err)
}

func (g *PostgresGateway) listenOnce(ctx context.Context) error {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		var payload notifyPayload
		if err := json.Unmarshal([]byte(n.Payload), &payload); err != nil {
			g.logger.Warn("malformed notification payload", zap.Error(err))
			continue
		}

		g.subs.dispatch(payload)
	}
}
