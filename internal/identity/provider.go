package identity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionSource описывает источник сведений о текущем сеансе.
type SessionSource interface {
	CurrentSession(ctx context.Context) (*Session, error)
}

// Change сообщает подписчику новое значение личности.
// Пустая строка означает отсутствие личности (сеанс завершён).
type Change struct {
	Identity string
}

// Provider периодически опрашивает поставщика учётных записей и
// превращает его ответы в реактивное значение текущей личности.
// Пока первый опрос не завершён, личность считается разрешаемой.
type Provider struct {
	source   SessionSource
	interval time.Duration
	logger   *zap.Logger

	mu        sync.RWMutex
	current   string
	resolving bool
	watchers  []chan Change
}

// NewProvider создаёт поставщика личности с указанным интервалом опроса.
func NewProvider(source SessionSource, interval time.Duration, logger *zap.Logger) *Provider {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Provider{
		source:    source,
		interval:  interval,
		logger:    logger,
		resolving: true,
	}
}

// Current возвращает текущую личность (пустая строка — личности нет)
// и признак того, что первичное разрешение ещё не завершено.
func (p *Provider) Current() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, p.resolving
}

// Watch возвращает канал изменений личности. Канал буферизован на одно
// значение и хранит последнее изменение: промежуточные состояния,
// которые подписчик не успел прочитать, заменяются новыми.
func (p *Provider) Watch() <-chan Change {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan Change, 1)
	p.watchers = append(p.watchers, ch)
	return ch
}

// Run запускает цикл опроса. Возвращается после отмены контекста.
func (p *Provider) Run(ctx context.Context) {
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Provider) poll(ctx context.Context) {
	session, err := p.source.CurrentSession(ctx)
	if err != nil {
		// Временная недоступность поставщика не должна ронять личность:
		// действующие подписки остаются в силе до явного ответа.
		p.logger.Debug("session poll failed", zap.Error(err))
		p.settle()
		return
	}

	identity := ""
	if session != nil {
		identity = session.ProfileID
	}

	p.mu.Lock()
	changed := identity != p.current || p.resolving
	p.current = identity
	p.resolving = false
	watchers := p.watchers
	p.mu.Unlock()

	if !changed {
		return
	}

	p.logger.Info("identity changed", zap.String("identity", identity))

	for _, ch := range watchers {
		// Вытесняем непрочитанное значение, чтобы канал всегда
		// содержал последнее известное состояние.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- Change{Identity: identity}:
		default:
		}
	}
}

// settle снимает флаг первичного разрешения после первой попытки опроса,
// даже если она закончилась ошибкой.
func (p *Provider) settle() {
	p.mu.Lock()
	p.resolving = false
	p.mu.Unlock()
}
