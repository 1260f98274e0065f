package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

const OrderServiceName = "storefront.v1.OrderService"

type GRPCPlaceOrderRequest struct {
	IdempotencyKey string `json:"idempotencyKey"`
	PlaceOrderRequest
}

type GRPCGetOrderRequest struct {
	ID string `json:"id" binding:"required"`
}

type OrderServiceServer interface {
	PlaceOrder(ctx context.Context, req *GRPCPlaceOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, req *GRPCGetOrderRequest) (*domain.Order, error)
}

// OrderServiceDesc is registered by hand; messages travel as JSON.
var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: OrderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlaceOrder", Handler: placeOrderHandler},
		{MethodName: "GetOrder", Handler: getOrderHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func placeOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GRPCPlaceOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).PlaceOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + OrderServiceName + "/PlaceOrder"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServiceServer).PlaceOrder(ctx, req.(*GRPCPlaceOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GRPCGetOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).GetOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + OrderServiceName + "/GetOrder"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServiceServer).GetOrder(ctx, req.(*GRPCGetOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

type GRPCHandler struct {
	orders OrderUseCase
	logger *zap.Logger
}

var _ OrderServiceServer = (*GRPCHandler)(nil)

func NewGRPCHandler(orders OrderUseCase, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{orders: orders, logger: logger}
}

func (h *GRPCHandler) PlaceOrder(ctx context.Context, req *GRPCPlaceOrderRequest) (*domain.Order, error) {
	if err := binding.Validator.ValidateStruct(&req.PlaceOrderRequest); err != nil {
		return nil, status.Error(codes.InvalidArgument, bindErrorMessage(err))
	}

	principal, ok := grpcPrincipal(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing principal")
	}

	order, err := h.orders.PlaceOrder(ctx, req.toInput(principal.UserID, strings.TrimSpace(req.IdempotencyKey)))
	if err != nil {
		return nil, h.toStatus(err)
	}
	return order, nil
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *GRPCGetOrderRequest) (*domain.Order, error) {
	if err := binding.Validator.ValidateStruct(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, bindErrorMessage(err))
	}

	principal, ok := grpcPrincipal(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing principal")
	}

	order, err := h.orders.GetOrder(ctx, principal, req.ID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return order, nil
}

func (h *GRPCHandler) toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrProductNotFound), errors.Is(err, service.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrInsufficientInventory):
		return status.Error(codes.FailedPrecondition, err.Error())
	case domain.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrDuplicateRequest), errors.Is(err, domain.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "invalid credentials")
	default:
		h.logger.Error("grpc request error", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

type principalContextKey struct{}

func grpcPrincipal(ctx context.Context) (domain.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(domain.Principal)
	return principal, ok
}

// AuthInterceptor authenticates calls to the order service from the
// "authorization: Bearer <token>" metadata. Other services, such as health,
// pass through.
func AuthInterceptor(auth AuthUseCase, logger *zap.Logger) grpc.UnaryServerInterceptor {
	prefix := "/" + OrderServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization metadata")
		}
		token, ok := bearerToken(values[0])
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "malformed authorization metadata")
		}

		principal, err := auth.Authenticate(ctx, token)
		if errors.Is(err, service.ErrInvalidCredentials) {
			return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
		}
		if err != nil {
			logger.Error("failed to authenticate grpc call",
				zap.String("method", info.FullMethod), zap.Error(err))
			return nil, status.Error(codes.Internal, "authentication unavailable")
		}
		return handler(context.WithValue(ctx, principalContextKey{}, *principal), req)
	}
}

func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}

// NewGRPCServer builds a server with the order service and the standard
// health service registered.
func NewGRPCServer(h *GRPCHandler, auth AuthUseCase, logger *zap.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		LoggingInterceptor(logger),
		AuthInterceptor(auth, logger),
	))
	server := grpc.NewServer(opts...)
	server.RegisterService(&OrderServiceDesc, h)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(OrderServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	return server, healthServer
}

// OrderServiceClient calls the order service over a JSON-coded connection.
type OrderServiceClient struct {
	conn grpc.ClientConnInterface
}

func NewOrderServiceClient(conn grpc.ClientConnInterface) *OrderServiceClient {
	return &OrderServiceClient{conn: conn}
}

func (c *OrderServiceClient) PlaceOrder(ctx context.Context, req *GRPCPlaceOrderRequest, opts ...grpc.CallOption) (*domain.Order, error) {
	out := new(domain.Order)
	opts = append(opts, grpc.CallContentSubtype(JSONCodecName))
	if err := c.conn.Invoke(ctx, "/"+OrderServiceName+"/PlaceOrder", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderServiceClient) GetOrder(ctx context.Context, req *GRPCGetOrderRequest, opts ...grpc.CallOption) (*domain.Order, error) {
	out := new(domain.Order)
	opts = append(opts, grpc.CallContentSubtype(JSONCodecName))
	if err := c.conn.Invoke(ctx, "/"+OrderServiceName+"/GetOrder", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
