package main

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmehra2102/order-admission/internal/config"
	"github.com/dmehra2102/order-admission/internal/inventory/application"
	invgrpc "github.com/dmehra2102/order-admission/internal/inventory/infrastructure/grpc"
	inventoryKafka "github.com/dmehra2102/order-admission/internal/inventory/infrastructure/kafka"
	inventoryDB "github.com/dmehra2102/order-admission/internal/inventory/infrastructure/postgres"
	"github.com/dmehra2102/order-admission/pkg/idempotency"
	"github.com/dmehra2102/order-admission/pkg/logging"
	"github.com/dmehra2102/order-admission/pkg/shutdown"
	"github.com/dmehra2102/order-admission/pkg/tracing"
)

func main() {
	cfg, err := config.LoadInventoryService()
	log := logging.New(cfg.LogLevel)
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, "inventory-service", cfg.OTLPEndpoint)
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

	repo := inventoryDB.NewRepository(log, pool)
	if err := repo.Migrate(ctx); err != nil {
		log.Error("migration failed", "err", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, cfg.IdempotencyTTL)

	svc := application.NewService(log, repo, cfg.LedgerTimeout)
	consumer := inventoryKafka.NewConsumer(log, cfg.KafkaBrokers, cfg.AdjustmentTopic, cfg.ConsumerGroup, svc, idem)

	gs, lis, err := invgrpc.Run(log, cfg.GRPCAddr, invgrpc.NewServer(log, svc))
	if err != nil {
		log.Error("grpc listen failed", "err", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("grpc listening", "addr", cfg.GRPCAddr)
		return gs.Serve(lis)
	})
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		gs.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("inventory-service stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("inventory-service shutdown complete")
}
