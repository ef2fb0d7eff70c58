package syncer

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mmeshcher/bookingsync-system/internal/gateway"
)

// Listener связывает подписку шлюза с функцией перечитывания одного
// представления. Первое перечитывание выполняется сразу после запуска,
// последующие — по каждому событию подписки. Событие, пришедшее во
// время перечитывания, остаётся в буфере подписки и порождает ещё
// одно перечитывание после текущего.
type Listener struct {
	domain string
	fetch  func(ctx context.Context) error
	sub    gateway.Subscription
	logger *zap.Logger

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewListener создаёт слушателя домена поверх готовой подписки.
func NewListener(domain string, sub gateway.Subscription, fetch func(ctx context.Context) error, logger *zap.Logger) *Listener {
	return &Listener{
		domain: domain,
		fetch:  fetch,
		sub:    sub,
		logger: logger,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run выполняет начальное перечитывание и обслуживает события подписки
// до закрытия слушателя или отмены контекста.
func (l *Listener) Run(ctx context.Context) {
	defer close(l.done)

	l.refetch(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.quit:
			return
		case _, ok := <-l.sub.Events():
			if !ok {
				return
			}
			// Событие могло быть буферизовано до закрытия слушателя:
			// перечитывание для устаревшей личности недопустимо.
			select {
			case <-l.quit:
				return
			default:
			}
			l.refetch(ctx)
		}
	}
}

func (l *Listener) refetch(ctx context.Context) {
	if err := l.fetch(ctx); err != nil {
		l.logger.Warn("refetch failed", zap.String("domain", l.domain), zap.Error(err))
	}
}

// Close разрывает подписку и останавливает цикл, не дожидаясь
// завершения текущего перечитывания.
func (l *Listener) Close() {
	l.closeOnce.Do(func() {
		l.sub.Close()
		close(l.quit)
	})
}

// Done возвращает канал, закрываемый после завершения Run.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}
