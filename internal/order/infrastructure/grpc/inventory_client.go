package grpc

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/order-admission/internal/inventory/infrastructure/grpc/pb"
	"github.com/dmehra2102/order-admission/internal/order/application"
)

type InventoryClient struct {
	log  *slog.Logger
	conn *grpc.ClientConn
	cc   pb.InventoryServiceClient
}

func NewInventoryClient(log *slog.Logger, addr string, opts ...grpc.DialOption) (*InventoryClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &InventoryClient{
		log:  log,
		conn: conn,
		cc:   pb.NewInventoryServiceClient(conn),
	}, nil
}

// CheckAvailabilityBatch asks for every SKU in one call. Any failure,
// including a response that does not cover every SKU, is reported as
// application.ErrTransientUnavailable.
func (c *InventoryClient) CheckAvailabilityBatch(ctx context.Context, skus []string) (map[string]bool, error) {
	resp, err := c.cc.CheckAvailabilityBatch(ctx, &pb.CheckAvailabilityBatchRequest{SKUs: skus})
	if err != nil {
		c.log.Warn("inventory batch check failed", "skus", len(skus), "code", status.Code(err).String(), "err", err)
		return nil, fmt.Errorf("%w: %w", application.ErrTransientUnavailable, err)
	}

	out := make(map[string]bool, len(resp.GetResults()))
	for _, r := range resp.GetResults() {
		out[r.SKU] = r.Available
	}
	for _, sku := range skus {
		if _, ok := out[sku]; !ok {
			return nil, fmt.Errorf("%w: no result for sku %q", application.ErrTransientUnavailable, sku)
		}
	}
	return out, nil
}

func (c *InventoryClient) Close() error {
	return c.conn.Close()
}
