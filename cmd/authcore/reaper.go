package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/internal/pgdb"
	"github.com/MrEthical07/authcore/reaper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newReaperCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reaper",
		Short: "Delete expired credentials",
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Sweep on an interval and serve /metrics and /healthz until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(); err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runReaper(ctx, a.cfg, a.log)
		},
	}

	once := &cobra.Command{
		Use:   "once",
		Short: "Run a single sweep and print the number of purged rows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(); err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()

			store, closeStore, err := openCredentialStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			r := reaper.New(store, reaperConfig(a.cfg), a.log, nil)
			n, err := r.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d credential(s)\n", n)
			return nil
		},
	}

	cmd.AddCommand(run, once)
	return cmd
}

func runReaper(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	store, closeStore, err := openCredentialStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	r := reaper.New(store, reaperConfig(cfg), log, m)
	r.Start(ctx)
	defer r.Stop()

	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           newOpsRouter(reg, r),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("ops server listening", zap.String("addr", cfg.Metrics.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func reaperConfig(cfg *config.Config) reaper.Config {
	return reaper.Config{Interval: cfg.Reaper.Interval, Timeout: cfg.Reaper.Timeout}
}

// openCredentialStore returns the configured store and a func releasing its
// connections.
func openCredentialStore(ctx context.Context, cfg *config.Config) (credential.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := pgdb.Open(ctx, cfg.Postgres.DSN, pgdb.Options{
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, err
		}
		return credential.NewPostgresStore(db), closer(db), nil
	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		prefix := cfg.Store.RedisPrefix
		if prefix == "" {
			prefix = authcore.DefaultConfig().Store.RedisPrefix
		}
		return credential.NewRedisStore(rdb, prefix), func() { _ = rdb.Close() }, nil
	}
}

func closer(db *sql.DB) func() {
	return func() { _ = db.Close() }
}
