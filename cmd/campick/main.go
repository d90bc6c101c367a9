// Package main запускает HTTP-сервер сервиса кампусных заказов.
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

	"github.com/mmeshcher/campick-system/internal/config"
	"github.com/mmeshcher/campick-system/internal/extraction"
	"github.com/mmeshcher/campick-system/internal/handler"
	"github.com/mmeshcher/campick-system/internal/mailer"
	"github.com/mmeshcher/campick-system/internal/middleware"
	"github.com/mmeshcher/campick-system/internal/notify"
	"github.com/mmeshcher/campick-system/internal/repository"
	"github.com/mmeshcher/campick-system/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var extractor extraction.Extractor
	switch cfg.ExtractionStrategy {
	case config.StrategyVision:
		extractor = extraction.NewVisionClient(cfg.ExtractionAddress)
	default:
		extractor = extraction.NewOCRClient(cfg.ExtractionAddress)
	}

	hub := notify.NewHub(logger)

	publishers := []notify.Publisher{hub}
	if cfg.AMQPURL != "" {
		amqpPub, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue, logger)
		if err != nil {
			sugar.Fatalw("amqp initialization error", "error", err.Error())
		}
		defer amqpPub.Close()
		publishers = append(publishers, amqpPub)
	}

	var m mailer.Mailer = mailer.Noop{}
	if cfg.SMTPHost != "" {
		m = mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	}

	svc := service.NewService(repo, extractor, notify.Multi(publishers), m, logger, service.Options{
		OnMismatch:        cfg.OnMismatch,
		AutoConfirm:       cfg.AutoConfirm,
		StrictTransitions: cfg.StrictTransitions,
	})
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, hub)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Рассылка событий подключённым websocket-клиентам
	g.Go(func() error {
		hub.Run(ctx.Done())
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting campick server", "addr", cfg.RunAddress)
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
