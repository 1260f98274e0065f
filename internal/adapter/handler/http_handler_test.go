package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

type testServer struct {
	router  *gin.Engine
	handler *HTTPHandler
	orders  *mockOrders
	catalog *mockCatalog
	auth    *stubAuth
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &testServer{orders: &mockOrders{}, catalog: &mockCatalog{}, auth: &stubAuth{}}
	s.handler = NewHTTPHandler(s.orders, s.catalog, s.auth, zap.NewNop())
	s.router = NewRouter(s.handler, nil)

	t.Cleanup(func() {
		s.orders.AssertExpectations(t)
		s.catalog.AssertExpectations(t)
		s.auth.AssertExpectations(t)
	})
	return s
}

func (s *testServer) do(method, path string, body any, token string, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func validOrderBody() map[string]any {
	return map[string]any{
		"items": []map[string]any{{"productId": "p-1", "quantity": 3}},
		"shippingAddress": map[string]any{
			"name": "Ada Lovelace", "street": "12 St James's Square", "city": "London",
			"postalCode": "SW1Y 4JH", "country": "UK",
		},
		"paymentMethod":  "credit_card",
		"paymentDetails": map[string]any{"last4": "4242"},
		"notes":          "leave at the door",
	}
}

func placedOrder() *domain.Order {
	return &domain.Order{
		ID:     "order-1",
		UserID: "user-1",
		Items: []domain.OrderItem{
			{ProductID: "p-1", Name: "Mug", Price: decimal.RequireFromString("10.00"), Quantity: 3},
		},
		PaymentMethod: domain.PaymentMethodCreditCard,
		Subtotal:      decimal.RequireFromString("30.00"),
		Tax:           decimal.RequireFromString("3.00"),
		Shipping:      decimal.RequireFromString("10.00"),
		Total:         decimal.RequireFromString("43.00"),
		Status:        domain.OrderStatusPending,
		CreatedAt:     time.Now(),
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	s.handler.AddHealthCheck("mysql", func(context.Context) error { return errors.New("down") })
	rec = s.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","dependencies":{"mysql":"unavailable"}}`, rec.Body.String())
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health", nil, "", RequestIDHeader, "req-42")
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))

	rec = s.do(http.MethodGet, "/health", nil, "")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestPlaceOrder_Created(t *testing.T) {
	s := newTestServer(t)

	s.orders.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(in service.PlaceOrderInput) bool {
		return in.UserID == "user-1" &&
			in.IdempotencyKey == "key-1" &&
			len(in.Items) == 1 && in.Items[0] == domain.LineItem{ProductID: "p-1", Quantity: 3} &&
			in.ShippingAddress.City == "London" &&
			in.PaymentMethod == domain.PaymentMethodCreditCard &&
			in.PaymentDetails["last4"] == "4242" &&
			in.Notes == "leave at the door"
	})).Return(placedOrder(), nil).Once()

	rec := s.do(http.MethodPost, "/api/orders", validOrderBody(), "user-token", IdempotencyKeyHeader, " key-1 ")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got domain.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "order-1", got.ID)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("43.00")))
	assert.Equal(t, "Mug", got.Items[0].Name)
}

func TestPlaceOrder_RequiresAuthentication(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/orders", validOrderBody(), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/orders", validOrderBody(), "forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Error)
}

func TestAuthenticate_StoreFailureIsInternalError(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/orders", nil, "outage-token")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decodeError(t, rec).Error)

	rec = s.do(http.MethodGet, "/api/orders", nil, "forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Error)
}

func TestPlaceOrder_ValidationRejectedBeforeService(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(body map[string]any)
		field  string
	}{
		{name: "no items", mutate: func(b map[string]any) { b["items"] = []any{} }, field: "items"},
		{name: "zero quantity", mutate: func(b map[string]any) {
			b["items"] = []map[string]any{{"productId": "p-1", "quantity": 0}}
		}, field: "items[0].quantity"},
		{name: "negative quantity", mutate: func(b map[string]any) {
			b["items"] = []map[string]any{{"productId": "p-1", "quantity": -1}}
		}, field: "items[0].quantity"},
		{name: "missing product id", mutate: func(b map[string]any) {
			b["items"] = []map[string]any{{"quantity": 1}}
		}, field: "items[0].productId"},
		{name: "unknown payment method", mutate: func(b map[string]any) { b["paymentMethod"] = "cash" }, field: "paymentMethod"},
		{name: "missing city", mutate: func(b map[string]any) {
			b["shippingAddress"].(map[string]any)["city"] = ""
		}, field: "shippingAddress.city"},
		{name: "missing postal code", mutate: func(b map[string]any) {
			delete(b["shippingAddress"].(map[string]any), "postalCode")
		}, field: "shippingAddress.postalCode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			body := validOrderBody()
			tt.mutate(body)

			rec := s.do(http.MethodPost, "/api/orders", body, "user-token")

			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, "invalid_request", resp.Error)
			assert.Contains(t, resp.Message, tt.field)
			s.orders.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
		})
	}
}

func TestPlaceOrder_MalformedJSON(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/orders", "{not json", "user-token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request format", decodeError(t, rec).Message)
}

func TestPlaceOrder_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{
			name:    "product not found",
			err:     &service.ProductNotFoundError{ProductID: "p-404"},
			status:  http.StatusBadRequest,
			code:    "product_not_found",
			message: "product p-404 not found",
		},
		{
			name:    "insufficient inventory",
			err:     &service.InsufficientInventoryError{ProductID: "p-1", ProductName: "Mug", Requested: 3, Available: 2},
			status:  http.StatusBadRequest,
			code:    "insufficient_inventory",
			message: "insufficient inventory for Mug: requested 3, available 2",
		},
		{
			name:    "invalid input",
			err:     &service.InvalidInputError{Field: "items", Reason: "at least one item is required"},
			status:  http.StatusBadRequest,
			code:    "invalid_request",
			message: "items: at least one item is required",
		},
		{
			name:    "duplicate request",
			err:     service.ErrDuplicateRequest,
			status:  http.StatusConflict,
			code:    "duplicate_request",
			message: "duplicate request",
		},
		{
			name:    "persistence failure",
			err:     errors.New("insert order: connection reset"),
			status:  http.StatusInternalServerError,
			code:    "internal_error",
			message: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.orders.On("PlaceOrder", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			rec := s.do(http.MethodPost, "/api/orders", validOrderBody(), "user-token")

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Error)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}

func TestGetOrder(t *testing.T) {
	s := newTestServer(t)

	s.orders.On("GetOrder", mock.Anything, userPrincipal, "order-1").Return(placedOrder(), nil).Once()
	s.orders.On("GetOrder", mock.Anything, userPrincipal, "order-2").
		Return(nil, &domain.NotFoundError{Resource: "order", Key: "id", Value: "order-2"}).Once()

	rec := s.do(http.MethodGet, "/api/orders/order-1", nil, "user-token")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/orders/order-2", nil, "user-token")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "order with id order-2 not found", decodeError(t, rec).Message)
}

func TestListOrders_PassesFilters(t *testing.T) {
	s := newTestServer(t)

	page := domain.NewPage(2, 5)
	result := domain.NewPageResult([]domain.Order{*placedOrder()}, page, 6)
	s.orders.On("ListOrders", mock.Anything, adminPrincipal, domain.OrderStatusShipped, page).Return(result, nil).Once()

	rec := s.do(http.MethodGet, "/api/orders?status=shipped&page=2&limit=5", nil, "admin-token")
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.PageResult[domain.Order]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 6, got.Total)
	assert.Equal(t, 2, got.Pages)

	rec = s.do(http.MethodGet, "/api/orders?status=lost", nil, "admin-token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/orders?limit=500", nil, "admin-token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/orders?page=99999999999&limit=100", nil, "admin-token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Error)
}

func TestUpdateOrderStatus_AdminOnly(t *testing.T) {
	s := newTestServer(t)

	body := map[string]string{"status": "shipped"}
	rec := s.do(http.MethodPatch, "/api/orders/order-1/status", body, "user-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	shipped := placedOrder()
	shipped.Status = domain.OrderStatusShipped
	s.orders.On("UpdateOrderStatus", mock.Anything, "order-1", domain.OrderStatusShipped).Return(shipped, nil).Once()

	rec = s.do(http.MethodPatch, "/api/orders/order-1/status", body, "admin-token")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPatch, "/api/orders/order-1/status", map[string]string{"status": "lost"}, "admin-token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListProducts_QueryMapping(t *testing.T) {
	s := newTestServer(t)

	s.catalog.On("ListProducts", mock.Anything, mock.MatchedBy(func(f domain.ProductFilter) bool {
		return f.CategoryID == "cat-1" &&
			f.Query == "mug" &&
			f.MinPrice != nil && f.MinPrice.Equal(decimal.NewFromInt(5)) &&
			f.MaxPrice != nil && f.MaxPrice.Equal(decimal.RequireFromString("20.5")) &&
			f.InStockOnly &&
			f.Sort == domain.ProductSortPrice && !f.Descending &&
			f.Page == domain.Page{Number: 1, Limit: 20}
	})).Return(domain.NewPageResult([]domain.Product{}, domain.NewPage(1, 20), 0), nil).Once()

	rec := s.do(http.MethodGet, "/api/products?category=cat-1&q=mug&minPrice=5&maxPrice=20.5&inStock=true&sort=price&order=asc&limit=20", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"items":[],"page":1,"limit":20,"total":0,"pages":0}`, rec.Body.String())
}

func TestListProducts_DefaultsToNewestFirst(t *testing.T) {
	s := newTestServer(t)

	s.catalog.On("ListProducts", mock.Anything, mock.MatchedBy(func(f domain.ProductFilter) bool {
		return f.Sort == domain.ProductSortCreatedAt && f.Descending && f.Page == domain.NewPage(1, 10)
	})).Return(domain.NewPageResult([]domain.Product{}, domain.NewPage(1, 10), 0), nil).Once()

	rec := s.do(http.MethodGet, "/api/products", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/products?sort=popularity", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/products?minPrice=cheap", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateProduct(t *testing.T) {
	s := newTestServer(t)

	body := map[string]any{"name": "Mug", "price": "12.50", "inventory": 4, "categoryId": "cat-1"}

	rec := s.do(http.MethodPost, "/api/products", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/products", body, "user-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	s.catalog.On("CreateProduct", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool {
		return p.Name == "Mug" && p.Price.Equal(decimal.RequireFromString("12.5")) && p.Inventory == 4 && p.CategoryID == "cat-1"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Product).ID = "p-new"
	}).Return(nil).Once()

	rec = s.do(http.MethodPost, "/api/products", body, "admin-token")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got domain.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "p-new", got.ID)

	rec = s.do(http.MethodPost, "/api/products", map[string]any{"name": "Mug", "inventory": -1}, "admin-token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateProduct_UnknownCategory(t *testing.T) {
	s := newTestServer(t)

	s.catalog.On("UpdateProduct", mock.Anything, mock.MatchedBy(func(p *domain.Product) bool { return p.ID == "p-1" })).
		Return(&service.InvalidInputError{Field: "categoryId", Reason: "unknown category"}).Once()

	rec := s.do(http.MethodPut, "/api/products/p-1", map[string]any{"name": "Mug", "price": 1, "categoryId": "nope"}, "admin-token")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "categoryId: unknown category", decodeError(t, rec).Message)
}

func TestCategoryEndpoints(t *testing.T) {
	s := newTestServer(t)

	s.catalog.On("GetCategory", mock.Anything, "missing").
		Return(nil, &domain.NotFoundError{Resource: "category", Key: "id", Value: "missing"}).Once()
	s.catalog.On("CreateCategory", mock.Anything, mock.Anything).
		Return(&domain.ConflictError{Resource: "category", Reason: "name already exists"}).Once()
	s.catalog.On("DeleteCategory", mock.Anything, "cat-1").
		Return(&domain.ConflictError{Resource: "category", Reason: "category still has products"}).Once()
	s.catalog.On("DeleteCategory", mock.Anything, "cat-2").Return(nil).Once()

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/categories/missing", nil, "").Code)
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/categories", map[string]string{"name": "Kitchen"}, "admin-token").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/categories", map[string]string{}, "admin-token").Code)
	assert.Equal(t, http.StatusConflict, s.do(http.MethodDelete, "/api/categories/cat-1", nil, "admin-token").Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/categories/cat-2", nil, "admin-token").Code)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	user := &domain.User{ID: "user-1", Name: "Ada", Email: "ada@example.com", PasswordHash: "secret-hash", Role: domain.RoleUser}
	s.auth.On("Register", mock.Anything, service.RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "password123"}).
		Return(user, nil).Once()

	rec := s.do(http.MethodPost, "/api/auth/register",
		map[string]string{"name": "Ada", "email": "ada@example.com", "password": "password123"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret-hash")

	rec = s.do(http.MethodPost, "/api/auth/register",
		map[string]string{"name": "Ada", "email": "ada@example.com", "password": "short"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	expiresAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	s.auth.On("Login", mock.Anything, "ada@example.com", "password123").
		Return(&service.Session{User: user, Token: "user-token", ExpiresAt: expiresAt}, nil).Once()

	rec = s.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "password123"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var login LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.Equal(t, "user-token", login.Token)
	assert.Equal(t, "Bearer", login.TokenType)
	assert.True(t, expiresAt.Equal(login.ExpiresAt))
}

func TestLogin_Failures(t *testing.T) {
	s := newTestServer(t)

	s.auth.On("Login", mock.Anything, "ada@example.com", "wrong").Return(nil, service.ErrInvalidCredentials).Once()
	s.auth.On("Login", mock.Anything, "ada@example.com", "again").Return(nil, service.ErrTooManyAttempts).Once()

	rec := s.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid email or password", decodeError(t, rec).Message)

	rec = s.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "again"}, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestLogoutAndMe(t *testing.T) {
	s := newTestServer(t)

	s.auth.On("Logout", mock.Anything, "user-token").Return(nil).Once()
	s.auth.On("GetUser", mock.Anything, userPrincipal, "user-1").Return(&domain.User{ID: "user-1"}, nil).Once()
	s.auth.On("GetUser", mock.Anything, userPrincipal, "user-2").
		Return(nil, &domain.NotFoundError{Resource: "user", Key: "id", Value: "user-2"}).Once()

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/auth/me", nil, "user-token").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/users/user-2", nil, "user-token").Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/api/auth/logout", nil, "user-token").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/auth/logout", nil, "").Code)
}
