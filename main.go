// main.go runs the review service: it loads configuration, opens the
// configured store, and serves PATCH /rest/products/reviews until SIGINT or
// SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/Skryldev/reviewkit/auth"
	"github.com/Skryldev/reviewkit/config"
	"github.com/Skryldev/reviewkit/db"
	"github.com/Skryldev/reviewkit/httpapi"
	"github.com/Skryldev/reviewkit/logger"
	"github.com/Skryldev/reviewkit/migrations"
	"github.com/Skryldev/reviewkit/repo"
	"github.com/Skryldev/reviewkit/review"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "reviewkit: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	flags := pflag.NewFlagSet("reviewkit", pflag.ContinueOnError)
	flags.StringVarP(&cfg.Addr, "addr", "a", cfg.Addr, "address to listen on")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.BoolVar(&cfg.MigrateOnStart, "migrate", cfg.MigrateOnStart, "apply embedded migrations before serving")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return err
	}
	defer func() { _ = logger.Log.Sync() }()
	log := logger.Log

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	counts := &review.CountingObserver{}
	svc := review.NewService(store,
		review.WithLogger(log.Named("review")),
		review.WithObserver(review.Observers(review.LogObserver{Log: log.Named("review")}, counts)),
	)

	issuer := auth.NewIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL)
	handler := httpapi.NewHandler(svc, log.Named("http"), cfg.MaxBodySize)
	router := httpapi.NewRouter(handler, auth.JWTResolver{Issuer: issuer, Log: log.Named("auth")})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           logger.RequestLogger(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Running server", zap.String("address", cfg.Addr), zap.String("driver", cfg.DBDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("signal caught, shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	updates, multi, mismatch := counts.Counts()
	log.Info("server stopped",
		zap.Int64("updates", updates),
		zap.Int64("multi_match", multi),
		zap.Int64("ownership_mismatch", mismatch),
	)
	return nil
}

// openStore returns the repository for cfg.DBDriver and its close function.
func openStore(cfg config.Config, log *zap.Logger) (repo.ReviewRepository, func(), error) {
	if cfg.DBDriver == config.BadgerDriver {
		bdb, err := badger.Open(badger.DefaultOptions(cfg.BadgerPath).WithLogger(nil))
		if err != nil {
			return nil, nil, fmt.Errorf("open badger: %w", err)
		}
		return repo.NewBadgerReviewRepo(bdb), func() {
			log.Info("closing badger")
			_ = bdb.Close()
		}, nil
	}

	if cfg.MigrateOnStart {
		if err := migrations.Up(migrateURL(cfg)); err != nil {
			return nil, nil, err
		}
	}

	database, err := db.Open(db.Config{
		DSN:             cfg.DatabaseURL,
		DriverName:      cfg.DBDriver,
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		DefaultTimeout:  cfg.DBDefaultTimeout,
		Hooks: []db.Hook{
			db.NewLogHook(db.LogHookConfig{
				Logger:             log.Named("db"),
				SlowQueryThreshold: cfg.SlowQueryThreshold,
			}),
			db.NewTracingHook(db.NewOTelTracer(otel.Tracer("github.com/Skryldev/reviewkit/db"), cfg.DBDriver)),
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return repo.NewReviewRepo(database), func() {
		stats := database.Stats()
		log.Info("closing database",
			zap.Int("open_connections", stats.OpenConnections),
			zap.Int64("wait_count", stats.WaitCount),
			zap.Duration("wait_duration", stats.WaitDuration),
			zap.Int64("max_idle_closed", stats.MaxIdleClosed),
		)
		_ = database.Close()
	}, nil
}

// migrateURL derives the golang-migrate URL from the SQL DSN unless one was
// configured explicitly.
func migrateURL(cfg config.Config) string {
	if cfg.MigrateURL != "" {
		return cfg.MigrateURL
	}
	switch cfg.DBDriver {
	case "sqlite3":
		return "sqlite3://" + cfg.DatabaseURL
	case "mysql":
		return "mysql://" + cfg.DatabaseURL
	default:
		return cfg.DatabaseURL
	}
}
