// Package main запускает сервис синхронизации бронирований:
// фоновые координаторы доменов и локальный HTTP-сервер.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/bookingsync-system/internal/cart"
	"github.com/mmeshcher/bookingsync-system/internal/config"
	"github.com/mmeshcher/bookingsync-system/internal/gateway"
	"github.com/mmeshcher/bookingsync-system/internal/handler"
	"github.com/mmeshcher/bookingsync-system/internal/identity"
	"github.com/mmeshcher/bookingsync-system/internal/syncer"
)

// logNotifier выводит пользовательские уведомления в журнал.
// Графического слоя у сервиса нет: уведомления читает оператор.
type logNotifier struct {
	logger *zap.Logger
}

func (n logNotifier) Notify(title, description string) {
	n.logger.Warn("user notification",
		zap.String("title", title),
		zap.String("description", description),
	)
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	idClient := identity.NewClient(cfg.IdentityProviderAddress, cfg.SessionToken)

	gw, err := gateway.NewPostgresGateway(cfg.DatabaseURI, idClient, logger)
	if err != nil {
		sugar.Fatalw("gateway initialization error", "error", err.Error())
	}
	defer gw.Close()

	provider := identity.NewProvider(idClient, cfg.IdentityPollInterval, logger)
	manager := syncer.NewManager(gw, provider, logNotifier{logger: logger}, logger)

	h := handler.NewHandler(manager, cart.New(), logger)
	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Цикл прослушивания уведомлений базы данных
	g.Go(func() error {
		return gw.Run(ctx)
	})

	// Опрос поставщика учётных записей
	g.Go(func() error {
		provider.Run(ctx)
		return nil
	})

	// Жизненный цикл личности и слушатели доменов
	g.Go(func() error {
		manager.Run(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting bookingsync server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
