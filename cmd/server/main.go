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
	"github.com/ErlanBelekov/quicksand/internal/metrics"
	"github.com/ErlanBelekov/quicksand/internal/password"
	"github.com/ErlanBelekov/quicksand/internal/token"
	httptransport "github.com/ErlanBelekov/quicksand/internal/transport/http"
	"github.com/ErlanBelekov/quicksand/internal/transport/http/handler"
	"github.com/ErlanBelekov/quicksand/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := ctxlog.New(os.Stdout, cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

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
	hasher := password.NewHasher(password.DefaultParams())
	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)

	// Usecases
	invites := usecase.NewInviteUsecase(store, codec, sender, cfg.EmailHost, logger)
	registration := usecase.NewRegistrationUsecase(store, invites, hasher, logger)
	auth := usecase.NewAuthUsecase(store, codec, hasher, sender, cfg.EmailHost, logger)
	account := usecase.NewAccountUsecase(store, codec, hasher, sender, cfg.EmailHost, logger)

	metrics.Register(prometheus.DefaultRegisterer)
	checker := health.NewChecker(map[string]health.Pinger{"database": store}, logger, prometheus.DefaultRegisterer)

	router := httptransport.NewRouter(logger, httptransport.Handlers{
		Auth:     handler.NewAuthHandler(auth, logger),
		Register: handler.NewRegisterHandler(registration, handler.NewAvatarStore(cfg.MediaRoot, cfg.ProfileAvatarMaxSize), logger),
		Account:  handler.NewAccountHandler(account, logger),
		Invite:   handler.NewInviteHandler(invites, logger),
		Health:   handler.NewHealthHandler(checker),
	}, auth, httptransport.Options{
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		MaxMultipartMemory: cfg.ProfileAvatarMaxSize + 1<<20,
	})

	srv := http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}
