package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const tracerName = "github.com/rl1809/storefront/internal/core/service"

// Placement outcomes reported to the PlacementObserver.
const (
	PlacementPlaced       = "placed"
	PlacementNotFound     = "product_not_found"
	PlacementInsufficient = "insufficient_inventory"
	PlacementDuplicate    = "duplicate"
	PlacementInvalid      = "invalid"
	PlacementError        = "error"
)

type PlacementObserver interface {
	ObservePlacement(result string, duration time.Duration)
}

type PlaceOrderInput struct {
	UserID          string
	Items           []domain.LineItem
	ShippingAddress domain.ShippingAddress
	PaymentMethod   domain.PaymentMethod
	// PaymentDetails is accepted for the payment provider and never stored.
	PaymentDetails map[string]any
	Notes          string
	IdempotencyKey string
}

type OrderService struct {
	store    port.OrderPlacementStore
	orders   port.OrderRepository
	cache    port.CacheRepository
	logger   *zap.Logger
	tracer   trace.Tracer
	observer PlacementObserver

	mu         sync.RWMutex
	closed     bool
	eventQueue chan domain.OrderEvent
}

type OrderServiceOption func(*OrderService)

func WithTracer(tracer trace.Tracer) OrderServiceOption {
	return func(s *OrderService) { s.tracer = tracer }
}

func WithPlacementObserver(observer PlacementObserver) OrderServiceOption {
	return func(s *OrderService) { s.observer = observer }
}

func NewOrderService(
	store port.OrderPlacementStore,
	orders port.OrderRepository,
	cache port.CacheRepository,
	logger *zap.Logger,
	queueSize int,
	opts ...OrderServiceOption,
) *OrderService {
	s := &OrderService{
		store:      store,
		orders:     orders,
		cache:      cache,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		eventQueue: make(chan domain.OrderEvent, queueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder reserves inventory for every line item in input order, prices
// the cart and persists a pending order. Reservations and the order insert
// share one transaction, so a failing line leaves no inventory decremented.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*domain.Order, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "order.place")
	defer span.End()

	span.SetAttributes(
		attribute.String("user.id", in.UserID),
		attribute.Int("order.item_count", len(in.Items)),
	)

	order, err := s.placeOrder(ctx, in)
	result := placementResult(err)
	if s.observer != nil {
		s.observer.ObservePlacement(result, time.Since(start))
	}
	span.SetAttributes(attribute.String("order.result", result))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", order.ID))
	span.SetStatus(codes.Ok, "order placed")

	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.Total.String()),
	)

	s.enqueue(domain.OrderEvent{
		ID:         uuid.NewString(),
		Type:       domain.OrderEventPlaced,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		Total:      order.Total.String(),
		ItemCount:  len(order.Items),
		OccurredAt: order.CreatedAt,
	})

	return order, nil
}

func (s *OrderService) placeOrder(ctx context.Context, in PlaceOrderInput) (*domain.Order, error) {
	if err := validateLineItems(in.Items); err != nil {
		return nil, err
	}

	var idempotencyKey string
	if in.IdempotencyKey != "" {
		idempotencyKey = fmt.Sprintf("order:%s:%s", in.UserID, in.IdempotencyKey)

		ok, err := s.cache.SetIdempotency(ctx, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, ErrDuplicateRequest
		}
	}

	var order *domain.Order
	err := s.store.RunInTx(ctx, func(tx port.PlacementTx) error {
		items, subtotal, err := reserveLineItems(ctx, tx, in.Items)
		if err != nil {
			return err
		}

		totals := domain.PriceOrder(subtotal)
		order = &domain.Order{
			UserID:          in.UserID,
			Items:           items,
			ShippingAddress: in.ShippingAddress,
			PaymentMethod:   in.PaymentMethod,
			Subtotal:        totals.Subtotal,
			Tax:             totals.Tax,
			Shipping:        totals.Shipping,
			Total:           totals.Total,
			Notes:           in.Notes,
			Status:          domain.OrderStatusPending,
		}

		if err := tx.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
	if err != nil {
		if idempotencyKey != "" {
			if releaseErr := s.cache.DeleteIdempotency(context.WithoutCancel(ctx), idempotencyKey); releaseErr != nil {
				s.logger.Warn("failed to release idempotency key",
					zap.String("key", idempotencyKey), zap.Error(releaseErr))
			}
		}
		return nil, err
	}

	return order, nil
}

// reserveLineItems walks the cart in order. A product listed twice is checked
// the second time against the inventory left by the first line.
func reserveLineItems(ctx context.Context, tx port.PlacementTx, lines []domain.LineItem) ([]domain.OrderItem, decimal.Decimal, error) {
	items := make([]domain.OrderItem, 0, len(lines))
	subtotal := decimal.Zero

	for _, line := range lines {
		product, err := tx.LockProduct(ctx, line.ProductID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("load product %s: %w", line.ProductID, err)
		}
		if product == nil {
			return nil, decimal.Zero, &ProductNotFoundError{ProductID: line.ProductID}
		}

		insufficient := &InsufficientInventoryError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   line.Quantity,
			Available:   product.Inventory,
		}
		if line.Quantity > product.Inventory {
			return nil, decimal.Zero, insufficient
		}

		ok, err := tx.DecrementInventory(ctx, product.ID, line.Quantity)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("decrement inventory for %s: %w", product.ID, err)
		}
		if !ok {
			return nil, decimal.Zero, insufficient
		}

		items = append(items, domain.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  line.Quantity,
		})
		subtotal = subtotal.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	return items, subtotal, nil
}

func validateLineItems(lines []domain.LineItem) error {
	if len(lines) == 0 {
		return &InvalidInputError{Field: "items", Reason: "at least one item is required"}
	}
	for i, line := range lines {
		if line.ProductID == "" {
			return &InvalidInputError{Field: fmt.Sprintf("items[%d].productId", i), Reason: "is required"}
		}
		if line.Quantity <= 0 {
			return &InvalidInputError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must be positive"}
		}
	}
	return nil
}

func placementResult(err error) string {
	switch {
	case err == nil:
		return PlacementPlaced
	case errors.Is(err, ErrProductNotFound):
		return PlacementNotFound
	case errors.Is(err, ErrInsufficientInventory):
		return PlacementInsufficient
	case errors.Is(err, ErrDuplicateRequest):
		return PlacementDuplicate
	case errors.Is(err, ErrInvalidInput):
		return PlacementInvalid
	default:
		return PlacementError
	}
}

// GetOrder returns the order when the principal is an admin or its owner.
// Orders owned by someone else are reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, principal domain.Principal, id string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.CanAccess(order.UserID) {
		return nil, &domain.NotFoundError{Resource: "order", Key: "id", Value: id}
	}
	return order, nil
}

// ListOrders lists every order for admins and only the caller's own for
// everyone else.
func (s *OrderService) ListOrders(ctx context.Context, principal domain.Principal, status domain.OrderStatus, page domain.Page) (domain.PageResult[domain.Order], error) {
	filter := domain.OrderFilter{Status: status, Page: page}
	if !principal.IsAdmin() {
		filter.UserID = principal.UserID
	}

	orders, total, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return domain.PageResult[domain.Order]{}, fmt.Errorf("list orders: %w", err)
	}
	return domain.NewPageResult(orders, page, total), nil
}

func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, &InvalidInputError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}

	current, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(status) {
		return nil, &InvalidInputError{
			Field:  "status",
			Reason: fmt.Sprintf("cannot move order from %s to %s", current.Status, status),
		}
	}

	order, err := s.orders.UpdateOrderStatus(ctx, id, current.Status, status)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status changed",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
	)

	s.enqueue(domain.OrderEvent{
		ID:         uuid.NewString(),
		Type:       domain.OrderEventStatusChanged,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		OccurredAt: order.UpdatedAt,
	})

	return order, nil
}

// enqueue never blocks: events that do not fit in the queue are dropped.
func (s *OrderService) enqueue(event domain.OrderEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}

	select {
	case s.eventQueue <- event:
	default:
		s.logger.Warn("event queue full, dropping order event",
			zap.String("event_type", string(event.Type)),
			zap.String("order_id", event.OrderID),
		)
	}
}

func (s *OrderService) GetEventQueue() <-chan domain.OrderEvent {
	return s.eventQueue
}

func (s *OrderService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.eventQueue)
}
