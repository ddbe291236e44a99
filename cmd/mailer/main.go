package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/quicksand/config"
	"github.com/ErlanBelekov/quicksand/internal/email"
	"github.com/ErlanBelekov/quicksand/internal/health"
	"github.com/ErlanBelekov/quicksand/internal/infrastructure/storage"
	ctxlog "github.com/ErlanBelekov/quicksand/internal/log"
	"github.com/ErlanBelekov/quicksand/internal/mailer"
	"github.com/ErlanBelekov/quicksand/internal/metrics"
	"github.com/ErlanBelekov/quicksand/internal/token"
	"github.com/ErlanBelekov/quicksand/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := ctxlog.New(os.Stdout, cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer store.Close()

	logger.Info("db connected", "driver", cfg.StorageDriver)

	codec, err := token.NewCodec(cfg.TokenConfig())
	if err != nil {
		stop()
		log.Fatalf("token codec: %v", err)
	}
	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	invites := usecase.NewInviteUsecase(store, codec, sender, cfg.EmailHost, logger)

	m, err := mailer.New(invites, logger, cfg.InviteMailCron, cfg.InviteMailBatch)
	if err != nil {
		stop()
		log.Fatalf("mailer: %v", err)
	}

	metrics.Register(prometheus.DefaultRegisterer)
	checker := health.NewChecker(map[string]health.Pinger{"database": store}, logger, prometheus.DefaultRegisterer)

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	// Blocks until the signal context is cancelled.
	m.Start(ctx)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("mailer shut down")
}
