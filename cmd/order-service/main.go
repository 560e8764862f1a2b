package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/dmehra2102/order-admission/internal/config"
	"github.com/dmehra2102/order-admission/internal/order/application"
	ordergrpc "github.com/dmehra2102/order-admission/internal/order/infrastructure/grpc"
	orderhttp "github.com/dmehra2102/order-admission/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/order-admission/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/order-admission/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/order-admission/pkg/logging"
	"github.com/dmehra2102/order-admission/pkg/outbox"
	"github.com/dmehra2102/order-admission/pkg/shutdown"
	"github.com/dmehra2102/order-admission/pkg/tracing"
)

func main() {
	cfg, err := config.LoadOrderService()
	log := logging.New(cfg.LogLevel)
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, "order-service", cfg.OTLPEndpoint)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = shutdown.Drain(5*time.Second, shutdownTracing) }()

	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := orderpg.NewRepository(log, pool)
	if err := repo.Migrate(ctx); err != nil {
		log.Error("migration failed", "err", err)
		os.Exit(1)
	}

	writer := orderkafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()

	store := orderpg.NewOutboxStore(log, pool, cfg.OutboxRetries)
	dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
	relay := outbox.NewRelay(log, store, dispatch, "order-service-relay")

	inv, err := ordergrpc.NewInventoryClient(log, cfg.InventoryAddr)
	if err != nil {
		log.Error("inventory client failed", "err", err)
		os.Exit(1)
	}
	defer inv.Close()

	coord := application.NewCoordinator(log, repo, inv,
		application.WithCheckTimeout(cfg.CheckTimeout),
		application.WithCommitTimeout(cfg.CommitTimeout),
	)
	handler := orderhttp.NewHandler(log, coord)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown.Drain(10*time.Second, srv.Shutdown)
	})

	if err := g.Wait(); err != nil {
		log.Error("order-service stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("order-service shutdown complete")
}
