package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/baharkarakas/wallet-engine/internal/api"
	"github.com/baharkarakas/wallet-engine/internal/auth"
	"github.com/baharkarakas/wallet-engine/internal/config"
	"github.com/baharkarakas/wallet-engine/internal/db"
	"github.com/baharkarakas/wallet-engine/internal/events"
	"github.com/baharkarakas/wallet-engine/internal/fee"
	"github.com/baharkarakas/wallet-engine/internal/idempotency"
	"github.com/baharkarakas/wallet-engine/internal/lock"
	"github.com/baharkarakas/wallet-engine/internal/logger"
	"github.com/baharkarakas/wallet-engine/internal/metrics"
	"github.com/baharkarakas/wallet-engine/internal/notify"
	repo "github.com/baharkarakas/wallet-engine/internal/repository"
	"github.com/baharkarakas/wallet-engine/internal/repository/memory"
	"github.com/baharkarakas/wallet-engine/internal/repository/postgres"
	"github.com/baharkarakas/wallet-engine/internal/services"
	"github.com/baharkarakas/wallet-engine/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var (
		locks lock.Locker
		idem  idempotency.Store
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		locks = lock.NewRedis(rdb, cfg.LockTimeout, cfg.LockLease)
		idem = idempotency.NewRedis(rdb, cfg.IdempotencyTTL)
		log.Info("using redis for locks and idempotency")
	} else {
		locks = lock.NewLocal(cfg.LockTimeout)
		idem = idempotency.NewMemory(cfg.IdempotencyTTL)
	}

	hub := notify.NewHub(cfg.AllowedOrigins)
	fanout := events.NewFanout().
		Add("log", events.Log{Logger: log}).
		Add("ws", hub)
	if len(cfg.KafkaBrokers) > 0 {
		k := events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := k.Close(); err != nil {
				log.Warn("kafka close", "err", err)
			}
		}()
		fanout.Add("kafka", k)
	}

	wp := worker.NewPool(cfg.Workers, cfg.WorkerQueue)
	// stops before the kafka writer closes: deferred calls run in reverse
	defer wp.Stop()
	notifier := services.NewNotifier(wp, fanout)

	fees, err := fee.NewPolicy(cfg.FeeRate)
	if err != nil {
		return fmt.Errorf("fee policy: %w", err)
	}
	txnSvc := services.NewTransactionService(store, locks, fees, idem, notifier)
	walletSvc := services.NewWalletService(store, locks, idem, notifier, cfg.WelcomeBalance)
	adminSvc := services.NewAdminService(store, locks, notifier, txnSvc)

	tm := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTIssuer, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	r := api.NewRouter(api.RouterDeps{
		Cfg:     cfg,
		TM:      tm,
		Wallets: walletSvc,
		Txns:    txnSvc,
		Admin:   adminSvc,
		Hub:     hub,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "store", cfg.Store, "fee_rate", fees.Rate().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	}
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config) (repo.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		slog.Warn("using in-memory store; balances are lost on restart")
		return memory.New(), func() {}, nil
	}
	if cfg.Migrate {
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	return postgres.NewStore(pool, cfg.LockTimeout), pool.Close, nil
}
