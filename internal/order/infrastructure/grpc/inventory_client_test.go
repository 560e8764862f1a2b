package grpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	invapp "github.com/dmehra2102/order-admission/internal/inventory/application"
	invdom "github.com/dmehra2102/order-admission/internal/inventory/domain"
	invgrpc "github.com/dmehra2102/order-admission/internal/inventory/infrastructure/grpc"
	"github.com/dmehra2102/order-admission/internal/inventory/infrastructure/grpc/pb"
	"github.com/dmehra2102/order-admission/internal/inventory/infrastructure/memory"
	"github.com/dmehra2102/order-admission/internal/order/application"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startInventory(t *testing.T, srv pb.InventoryServiceServer) *InventoryClient {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	pb.RegisterInventoryServiceServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()

	c, err := NewInventoryClient(log, "passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close()
		gs.Stop()
	})
	return c
}

func TestCheckAvailabilityBatch(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := memory.NewLedger(invdom.StockEntry{SKU: "X", Quantity: 5})
	svc := invapp.NewService(log, ledger, time.Second)
	c := startInventory(t, invgrpc.NewServer(log, svc))

	got, err := c.CheckAvailabilityBatch(context.Background(), []string{"X", "Y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"X": true, "Y": false}, got)
}

func TestCheckAvailabilityBatchUnavailable(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := memory.NewLedger()
	ledger.SetFault(errors.New("connection refused"))
	c := startInventory(t, invgrpc.NewServer(log, invapp.NewService(log, ledger, time.Second)))

	_, err := c.CheckAvailabilityBatch(context.Background(), []string{"X"})
	assert.ErrorIs(t, err, application.ErrTransientUnavailable)
}

type partialServer struct {
	pb.UnimplementedInventoryServiceServer
}

func (partialServer) CheckAvailabilityBatch(_ context.Context, req *pb.CheckAvailabilityBatchRequest) (*pb.CheckAvailabilityBatchResponse, error) {
	return &pb.CheckAvailabilityBatchResponse{Results: []pb.SKUAvailability{{SKU: req.SKUs[0], Available: true}}}, nil
}

func TestCheckAvailabilityBatchIncomplete(t *testing.T) {
	c := startInventory(t, partialServer{})

	_, err := c.CheckAvailabilityBatch(context.Background(), []string{"X", "Y"})
	assert.ErrorIs(t, err, application.ErrTransientUnavailable)
}

func TestCheckAvailabilityBatchDeadline(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := memory.NewLedger(invdom.StockEntry{SKU: "X", Quantity: 5})
	ledger.SetDelay(time.Second)
	c := startInventory(t, invgrpc.NewServer(log, invapp.NewService(log, ledger, 5*time.Second)))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.CheckAvailabilityBatch(ctx, []string{"X"})
	assert.ErrorIs(t, err, application.ErrTransientUnavailable)
}
