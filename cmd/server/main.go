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

	"github.com/oiblz/tally/internal/ledger"
	"github.com/oiblz/tally/internal/pairing"
	"github.com/oiblz/tally/internal/platform/config"
	"github.com/oiblz/tally/internal/platform/database"
	"github.com/oiblz/tally/internal/platform/health"
	"github.com/oiblz/tally/internal/platform/logger"
	"github.com/oiblz/tally/internal/platform/metrics"
	"github.com/oiblz/tally/internal/platform/tracer"
	"github.com/oiblz/tally/internal/report"
	"github.com/oiblz/tally/internal/token"
	httptransport "github.com/oiblz/tally/internal/transport/http"
	"github.com/oiblz/tally/migrations"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	log := logger.New()

	if err := run(log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	log.Info("initializing tally", "addr", cfg.Addr)

	pool, err := database.New(database.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		return err
	}
	defer func() { _ = pool.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pool.Migrate(ctx, migrations.FS); err != nil {
		return err
	}

	codec, err := token.New(cfg.Secret)
	if err != nil {
		return err
	}

	m := metrics.New()
	tr := tracer.NewOTel("tally")

	pairingService, err := pairing.New(pairing.NewPostgres(pool.DB()), codec, m, tr)
	if err != nil {
		return err
	}

	ledgerStore := ledger.NewPostgres(pool.DB())
	ledgerService, err := ledger.New(ledgerStore, m, tr)
	if err != nil {
		return err
	}

	aggregator, err := report.New(ledgerStore, tr)
	if err != nil {
		return err
	}

	healthHandler := health.New()
	healthHandler.RegisterCheck("database", func() error {
		checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Health(checkCtx)
	})

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:      log,
		Metrics:     m,
		Codec:       codec,
		Pairing:     pairingService,
		Ledger:      ledgerService,
		Report:      aggregator,
		Health:      healthHandler,
		AllowOrigin: cfg.AllowOrigin,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down server gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		return err
	}

	log.Info("server stopped")
	return nil
}
