package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"accounts/internal/accounts/service"
	"accounts/internal/accounts/store"
	"accounts/internal/accounts/store/memory"
	"accounts/internal/accounts/store/postgres"
	"accounts/internal/accounts/store/sessioncache"
	"accounts/internal/audit"
	"accounts/internal/oauth"
	"accounts/internal/password"
	"accounts/internal/platform/config"
	"accounts/internal/platform/httpserver"
	"accounts/internal/platform/logger"
	"accounts/internal/platform/metrics"
	"accounts/internal/platform/redis"
	httptransport "accounts/internal/transport/http"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, cleanupStore, err := buildStore(ctx, cfg, log)
	if err != nil {
		log.Error("storage init failed", "error", err.Error())
		os.Exit(1)
	}
	defer cleanupStore()

	auditSink, cleanupAudit, err := buildAuditSink(cfg)
	if err != nil {
		log.Error("audit init failed", "error", err.Error())
		os.Exit(1)
	}
	defer cleanupAudit()
	auditInbox := make(chan audit.Event, 256)

	pw, err := password.New(password.Options{BcryptCost: cfg.BcryptCost}, password.WithLogger(log))
	if err != nil {
		log.Error("password service init failed", "error", err.Error())
		os.Exit(1)
	}

	server, err := service.New(service.Options{
		TokenSecret:            cfg.TokenSecret,
		Issuer:                 cfg.Issuer,
		AccessTokenExpiration:  cfg.AccessTokenTTL,
		RefreshTokenExpiration: cfg.RefreshTokenTTL,
	}, st,
		map[string]service.IdentityService{
			password.ServiceName: pw,
			// Providers are registered by the embedding application;
			// an empty registry rejects every callback.
			oauth.ServiceName: oauth.New(nil, oauth.WithLogger(log)),
		},
		service.WithLogger(log),
		service.WithMetrics(metrics.New()),
		service.WithAudit(audit.NewPublisher(audit.NewChannelStore(auditInbox), log)),
	)
	if err != nil {
		log.Error("accounts server init failed", "error", err.Error())
		os.Exit(1)
	}

	handler := httptransport.NewHandler(server, pw, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := audit.NewWorker(auditSink, auditInbox).Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		log.Info("starting accounts server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
	log.Info("server stopped")
}

// buildStore picks the adapter: postgres when DATABASE_URL is set, the
// in-memory adapter otherwise, with an optional redis session cache on top.
func buildStore(ctx context.Context, cfg config.Server, log *slog.Logger) (store.Store, func(), error) {
	var (
		st      store.Store
		cleanup = func() {}
	)
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, cleanup, err
		}
		st = pg
		cleanup = pg.Close
		log.Info("using postgres storage")
	} else {
		st = memory.New()
		log.Info("using in-memory storage")
	}

	cache, err := redis.New(cfg.Redis)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	if cache != nil {
		st = sessioncache.New(st, cache.Client, sessioncache.WithLogger(log))
		inner := cleanup
		cleanup = func() {
			_ = cache.Close()
			inner()
		}
		log.Info("session cache enabled")
	}
	return st, cleanup, nil
}

// buildAuditSink picks the audit destination: kafka when brokers are
// configured, an in-memory ring otherwise.
func buildAuditSink(cfg config.Server) (audit.Store, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		return audit.NewMemoryStore(), func() {}, nil
	}
	kafka, err := audit.NewKafkaStore(cfg.KafkaBrokers)
	if err != nil {
		return nil, func() {}, err
	}
	return kafka, kafka.Close, nil
}
