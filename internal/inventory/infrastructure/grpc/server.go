package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/order-admission/internal/inventory/application"
	"github.com/dmehra2102/order-admission/internal/inventory/domain"
	"github.com/dmehra2102/order-admission/internal/inventory/infrastructure/grpc/pb"
)

// Checker is the slice of the inventory service exposed over gRPC.
type Checker interface {
	CheckAvailability(ctx context.Context, sku string) (domain.Availability, error)
	CheckAvailabilityBatch(ctx context.Context, skus []string) (map[string]domain.Availability, error)
}

type Server struct {
	pb.UnimplementedInventoryServiceServer
	log *slog.Logger
	svc Checker
}

func NewServer(log *slog.Logger, svc Checker) *Server {
	return &Server{log: log, svc: svc}
}

func (s *Server) CheckAvailability(ctx context.Context, req *pb.CheckAvailabilityRequest) (*pb.CheckAvailabilityResponse, error) {
	if req.GetSKU() == "" {
		return nil, status.Error(codes.InvalidArgument, "sku is required")
	}
	a, err := s.svc.CheckAvailability(ctx, req.SKU)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &pb.CheckAvailabilityResponse{SKU: req.SKU, Available: a == domain.Available}, nil
}

func (s *Server) CheckAvailabilityBatch(ctx context.Context, req *pb.CheckAvailabilityBatchRequest) (*pb.CheckAvailabilityBatchResponse, error) {
	for _, sku := range req.GetSKUs() {
		if sku == "" {
			return nil, status.Error(codes.InvalidArgument, "sku must not be empty")
		}
	}
	skus := application.Distinct(req.GetSKUs())
	if len(skus) == 0 {
		return nil, status.Error(codes.InvalidArgument, "at least one sku is required")
	}
	res, err := s.svc.CheckAvailabilityBatch(ctx, skus)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	out := &pb.CheckAvailabilityBatchResponse{Results: make([]pb.SKUAvailability, 0, len(skus))}
	for _, sku := range skus {
		out.Results = append(out.Results, pb.SKUAvailability{SKU: sku, Available: res[sku] == domain.Available})
	}
	return out, nil
}

func (s *Server) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, application.ErrEmptyBatch), errors.Is(err, application.ErrEmptySKU):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, application.ErrTransientUnavailable):
		s.log.Warn("availability check failed", "err", err)
		return status.Error(codes.Unavailable, err.Error())
	default:
		s.log.Error("availability check failed", "err", err)
		return status.Error(codes.Internal, "internal error")
	}
}

// NewGRPCServer builds a gRPC server with the inventory and health services
// registered.
func NewGRPCServer(log *slog.Logger, srv *Server, opts ...grpc.ServerOption) *grpc.Server {
	gs := grpc.NewServer(append(opts, grpc.ChainUnaryInterceptor(logInterceptor(log)))...)
	pb.RegisterInventoryServiceServer(gs, srv)

	hs := health.NewServer()
	hs.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

func Run(log *slog.Logger, addr string, srv *Server) (*grpc.Server, net.Listener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	return NewGRPCServer(log, srv), lis, nil
}

func logInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug("grpc call", "method", info.FullMethod, "code", status.Code(err).String(), "dur", time.Since(start))
		return resp, err
	}
}
