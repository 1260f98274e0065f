package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

type OrderUseCase interface {
	PlaceOrder(ctx context.Context, in service.PlaceOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, principal domain.Principal, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, principal domain.Principal, status domain.OrderStatus, page domain.Page) (domain.PageResult[domain.Order], error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
}

type CatalogUseCase interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, filter domain.ProductFilter) (domain.PageResult[domain.Product], error)
	CreateProduct(ctx context.Context, product *domain.Product) error
	UpdateProduct(ctx context.Context, product *domain.Product) error
	DeleteProduct(ctx context.Context, id string) error

	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	ListCategories(ctx context.Context, page domain.Page) (domain.PageResult[domain.Category], error)
	CreateCategory(ctx context.Context, category *domain.Category) error
	UpdateCategory(ctx context.Context, category *domain.Category) error
	DeleteCategory(ctx context.Context, id string) error
}

type AuthUseCase interface {
	Register(ctx context.Context, in service.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*service.Session, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*domain.Principal, error)
	GetUser(ctx context.Context, principal domain.Principal, id string) (*domain.User, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type HTTPHandler struct {
	orders  OrderUseCase
	catalog CatalogUseCase
	auth    AuthUseCase
	logger  *zap.Logger
	checks  map[string]HealthCheck
}

func NewHTTPHandler(orders OrderUseCase, catalog CatalogUseCase, auth AuthUseCase, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		orders:  orders,
		catalog: catalog,
		auth:    auth,
		logger:  logger,
		checks:  make(map[string]HealthCheck),
	}
}

func (h *HTTPHandler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			deps[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	body := gin.H{"status": "ok"}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	c.JSON(status, body)
}
