package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	health "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/pribylovaa/go-fitness-tracker/internal/cache"
	"github.com/pribylovaa/go-fitness-tracker/internal/config"
	"github.com/pribylovaa/go-fitness-tracker/internal/interceptors"
	"github.com/pribylovaa/go-fitness-tracker/internal/service"
	"github.com/pribylovaa/go-fitness-tracker/internal/storage"
	"github.com/pribylovaa/go-fitness-tracker/internal/storage/memory"
	"github.com/pribylovaa/go-fitness-tracker/internal/storage/postgres"
	"github.com/pribylovaa/go-fitness-tracker/internal/tokens"
	authhttp "github.com/pribylovaa/go-fitness-tracker/internal/transport/http"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting application", "env", cfg.Env)

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	store, err := openStore(rootCtx, cfg, log)
	if err != nil {
		log.Error("storage_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	signer, err := tokens.NewSigner(tokens.SignerConfig{
		Key:      cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TTL:      cfg.Auth.AccessTokenTTL(),
	})
	if err != nil {
		log.Error("signer_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	srvc := service.New(store, signer)

	if err := srvc.EnsureDefaultRole(rootCtx); err != nil {
		log.Error("default_role_bootstrap_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	// Redis-кэш опционален: без URL сервис работает только через хранилище.
	if cfg.Redis.RedisURL != "" {
		rcCtx, rcCancel := context.WithTimeout(rootCtx, 5*time.Second)
		rc, err := cache.NewRedisCache(rcCtx, cfg.Redis.RedisURL, cfg.Redis.Prefix)
		rcCancel()
		if err != nil {
			log.Error("redis_connect_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		defer func() {
			if cerr := rc.Close(); cerr != nil {
				log.Warn("redis_close_failed", slog.String("err", cerr.Error()))
			}
		}()

		srvc.SetRefreshCache(rc)
		log.Info("redis_connected")
	}

	log.Info("service_initialized")

	var ready int32 // 0 — not ready; 1 — ready

	apiHandler := authhttp.NewRouter(srvc, authhttp.Options{
		Logger:     log,
		Timeout:    cfg.Timeouts.Service,
		BasePath:   cfg.HTTP.BasePath,
		CookieName: cfg.Auth.CookieName,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if atomic.LoadInt32(&ready) == 1 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", apiHandler)

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	httpLn, err := net.Listen("tcp", httpAddr)
	if err != nil {
		log.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		os.Exit(1)
	}
	log.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 2)
	go func() {
		if err := httpSrv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
	}()

	grpc_prometheus.EnableHandlingTimeHistogram()

	// gRPC-сервер отдаёт health-check для оркестратора.
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.Recover(log),
			interceptors.UnaryLoggingInterceptor(log),
			interceptors.WithTimeout(cfg.Timeouts.Service),
			grpc_prometheus.UnaryServerInterceptor,
		),
		grpc.ChainStreamInterceptor(
			interceptors.StreamRecover(log),
			grpc_prometheus.StreamServerInterceptor,
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	// Рефлексия — только в local/dev.
	if cfg.Env == envLocal || cfg.Env == envDev {
		reflection.Register(grpcServer)
	}

	grpcAddr := cfg.GRPC.Addr()
	grpcLn, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Error("grpc_listen_failed",
			slog.String("addr", grpcAddr),
			slog.String("err", err.Error()),
		)
		_ = httpSrv.Close()
		os.Exit(1)
	}
	log.Info("grpc_listen_start", slog.String("addr", grpcAddr))

	grpc_prometheus.Register(grpcServer)

	go func() {
		if err := grpcServer.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErrCh <- err
		}
	}()

	// Фоновая очистка просроченных refresh-токенов.
	startRefreshJanitor(rootCtx, srvc, log, cfg.Janitor.Period)

	// Сервис готов: health -> SERVING и readiness=1.
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	atomic.StoreInt32(&ready, 1)

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		log.Error("serve_failed", slog.String("err", err.Error()))
	}

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	atomic.StoreInt32(&ready, 0)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		log.Info("http_stopped")
	}

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc_stopped")
	case <-shutdownCtx.Done():
		log.Warn("grpc_force_stop")
		grpcServer.Stop()
	}

	log.Info("service_stopped")
}

// openStore открывает хранилище учётных данных по cfg.DB.Driver.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.CredentialStore, error) {
	policy := storage.PasswordPolicy{
		MinLength:              cfg.Auth.Password.MinLength,
		RequireDigit:           cfg.Auth.Password.RequireDigit,
		RequireUpper:           cfg.Auth.Password.RequireUpper,
		RequireNonAlphanumeric: cfg.Auth.Password.RequireNonAlphanumeric,
	}

	if cfg.DB.Driver == config.DriverMemory {
		log.Warn("memory_storage_in_use")
		return memory.New(policy), nil
	}

	// Подключение к БД c таймаутом.
	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	defer dbCancel()

	st, err := postgres.New(dbCtx, cfg.DB.DatabaseURL, policy)
	if err != nil {
		return nil, err
	}
	log.Info("postgres_connected")

	if !cfg.DB.SkipMigrate {
		if err := st.Migrate(dbCtx); err != nil {
			st.Close()
			return nil, err
		}
		log.Info("migrations_applied")
	}

	return st, nil
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

// sessionPurger — то, что умеет чистить просроченные сессии.
type sessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// startRefreshJanitor периодически очищает просроченные refresh-токены.
func startRefreshJanitor(ctx context.Context, p sessionPurger, log *slog.Logger, period time.Duration) {
	if period <= 0 {
		return
	}

	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := p.PurgeExpiredSessions(ctx)
				if err != nil {
					log.Error("refresh_janitor_failed", slog.String("err", err.Error()))
					continue
				}
				if n > 0 {
					log.Info("refresh_janitor_purged", slog.Int64("count", n))
				}
			}
		}
	}()
}
