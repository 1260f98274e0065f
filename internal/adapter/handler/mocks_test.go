package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/stretchr/testify/mock"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

type mockOrders struct {
	mock.Mock
}

func (m *mockOrders) PlaceOrder(ctx context.Context, in service.PlaceOrderInput) (*domain.Order, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrders) GetOrder(ctx context.Context, principal domain.Principal, id string) (*domain.Order, error) {
	args := m.Called(ctx, principal, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrders) ListOrders(ctx context.Context, principal domain.Principal, status domain.OrderStatus, page domain.Page) (domain.PageResult[domain.Order], error) {
	args := m.Called(ctx, principal, status, page)
	return args.Get(0).(domain.PageResult[domain.Order]), args.Error(1)
}

func (m *mockOrders) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockCatalog) ListProducts(ctx context.Context, filter domain.ProductFilter) (domain.PageResult[domain.Product], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(domain.PageResult[domain.Product]), args.Error(1)
}

func (m *mockCatalog) CreateProduct(ctx context.Context, product *domain.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockCatalog) UpdateProduct(ctx context.Context, product *domain.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockCatalog) DeleteProduct(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCatalog) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCatalog) ListCategories(ctx context.Context, page domain.Page) (domain.PageResult[domain.Category], error) {
	args := m.Called(ctx, page)
	return args.Get(0).(domain.PageResult[domain.Category]), args.Error(1)
}

func (m *mockCatalog) CreateCategory(ctx context.Context, category *domain.Category) error {
	return m.Called(ctx, category).Error(0)
}

func (m *mockCatalog) UpdateCategory(ctx context.Context, category *domain.Category) error {
	return m.Called(ctx, category).Error(0)
}

func (m *mockCatalog) DeleteCategory(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// stubAuth accepts "user-token" and "admin-token". "outage-token" fails the way
// an unreachable revocation store does.
type stubAuth struct {
	mock.Mock
}

var (
	userPrincipal  = domain.Principal{UserID: "user-1", Role: domain.RoleUser, TokenID: "jti-user"}
	adminPrincipal = domain.Principal{UserID: "admin-1", Role: domain.RoleAdmin, TokenID: "jti-admin"}
)

func (s *stubAuth) Authenticate(_ context.Context, token string) (*domain.Principal, error) {
	switch token {
	case "user-token":
		p := userPrincipal
		return &p, nil
	case "admin-token":
		p := adminPrincipal
		return &p, nil
	case "outage-token":
		return nil, fmt.Errorf("check revocation: %w", errors.New("dial tcp: connection refused"))
	}
	return nil, service.ErrInvalidCredentials
}

func (s *stubAuth) Register(ctx context.Context, in service.RegisterInput) (*domain.User, error) {
	args := s.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (s *stubAuth) Login(ctx context.Context, email, password string) (*service.Session, error) {
	args := s.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Session), args.Error(1)
}

func (s *stubAuth) Logout(ctx context.Context, token string) error {
	return s.Called(ctx, token).Error(0)
}

func (s *stubAuth) GetUser(ctx context.Context, principal domain.Principal, id string) (*domain.User, error) {
	args := s.Called(ctx, principal, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}
