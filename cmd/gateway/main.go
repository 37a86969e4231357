package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/blueboat-cloud/lighthouse/internal/app"
	"github.com/blueboat-cloud/lighthouse/internal/app/httpapi"
	"github.com/blueboat-cloud/lighthouse/internal/app/services/orchestrator"
	"github.com/blueboat-cloud/lighthouse/internal/app/services/routing"
	"github.com/blueboat-cloud/lighthouse/internal/app/storage/postgres"
	"github.com/blueboat-cloud/lighthouse/internal/config"
	"github.com/blueboat-cloud/lighthouse/internal/middleware"
	"github.com/blueboat-cloud/lighthouse/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("gateway").WithError(err).Error("load config")
		os.Exit(1)
	}

	log := logger.New("gateway", cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("gateway exited")
		os.Exit(1)
	}
}

func run(cfg config.Config, log *logger.Logger) error {
	stores, closeDB, err := buildStores(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	opts := app.Options{
		DomainSuffix:      cfg.Platform.DomainSuffix,
		LogPageCap:        cfg.Platform.LogPageCap,
		LogRetention:      cfg.Platform.LogRetention,
		RetentionSchedule: cfg.Platform.RetentionSchedule,
		ActivationWait:    cfg.Platform.ActivationWait,
	}

	if cfg.Gateway.PackageStoreURL != "" {
		opts.PackageGateway = orchestrator.NewHTTPPackageGateway(cfg.Gateway.PackageStoreURL, cfg.Gateway.PackageStoreToken, cfg.Gateway.Timeout)
	} else {
		log.Warn("no package store configured, using in-process gateway")
	}
	if cfg.Gateway.RuntimeURL != "" {
		opts.Runtime = orchestrator.NewHTTPRuntime(cfg.Gateway.RuntimeURL, cfg.Gateway.RuntimeToken, cfg.Gateway.Timeout)
	} else {
		log.Warn("no runtime configured, deployments will not be started")
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		opts.RoutingCache = routing.NewRedisCache(client, cfg.Redis.RouteTTL)
		log.WithField("addr", cfg.Redis.Addr).Info("routing cache enabled")
	}

	application, err := app.New(stores, opts, log)
	if err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, log)
	defer limiter.Stop()

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)
	r.Use(limiter.Middleware)
	r.Use(application.Metrics.Instrument)

	r.Mount("/", httpapi.NewHandler(application, log.WithField("component", "httpapi")))
	r.Handle("/metrics", application.Metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := httpapi.NewServer(cfg.Server.Addr, r, log.WithField("component", "http-server"))
	if err := application.Attach(server); err != nil {
		return err
	}

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-server.Err():
		log.WithError(err).Error("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return application.Stop(shutdownCtx)
}

func buildStores(cfg config.Config, log *logger.Logger) (app.Stores, func(), error) {
	if cfg.Database.DSN == "" {
		log.Warn("no database configured, using in-memory store")
		return app.Stores{}, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return app.Stores{}, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return app.Stores{}, nil, err
	}
	if err := postgres.Migrate(db); err != nil {
		db.Close()
		return app.Stores{}, nil, err
	}
	log.Info("database connected, migrations applied")

	store := postgres.New(db)
	return app.Stores{Apps: store, Deployments: store, Logs: store}, func() { db.Close() }, nil
}
