package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// fakeStore keeps products and orders in memory. RunInTx works on a copy of
// the state and swaps it in only when fn succeeds; one tx runs at a time.
type fakeStore struct {
	mu       sync.Mutex
	products map[string]domain.Product
	orders   []domain.Order

	insertErr    error
	decrementErr error
}

func newFakeStore(products ...domain.Product) *fakeStore {
	s := &fakeStore{products: make(map[string]domain.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *fakeStore) RunInTx(ctx context.Context, fn func(tx port.PlacementTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &fakeTx{store: s, products: make(map[string]domain.Product, len(s.products))}
	for id, p := range s.products {
		tx.products[id] = p
	}

	if err := fn(tx); err != nil {
		return err
	}

	s.products = tx.products
	s.orders = append(s.orders, tx.orders...)
	return nil
}

func (s *fakeStore) inventory(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Inventory
}

func (s *fakeStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

type fakeTx struct {
	store    *fakeStore
	products map[string]domain.Product
	orders   []domain.Order
}

func (t *fakeTx) LockProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, ok := t.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *fakeTx) DecrementInventory(ctx context.Context, productID string, quantity int) (bool, error) {
	if t.store.decrementErr != nil {
		return false, t.store.decrementErr
	}
	p, ok := t.products[productID]
	if !ok || p.Inventory < quantity {
		return false, nil
	}
	p.Inventory -= quantity
	t.products[productID] = p
	return true, nil
}

func (t *fakeTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	if t.store.insertErr != nil {
		return t.store.insertErr
	}
	now := time.Now().UTC()
	order.ID = uuid.NewString()
	order.CreatedAt = now
	order.UpdatedAt = now
	t.orders = append(t.orders, *order)
	return nil
}

// updateProduct edits a catalog row outside any placement.
func (s *fakeStore) updateProduct(id, name, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	p.Name = name
	p.Price = decimal.RequireFromString(price)
	s.products[id] = p
}

// GetOrder, ListOrders and UpdateOrderStatus make fakeStore an OrderRepository too.
func (s *fakeStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "order", Key: "id", Value: id}
}

func (s *fakeStore) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (s *fakeStore) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID == id {
			if s.orders[i].Status != from {
				return nil, &domain.ConflictError{Resource: "order", Reason: "status changed"}
			}
			s.orders[i].Status = to
			s.orders[i].UpdatedAt = time.Now().UTC()
			o := s.orders[i]
			return &o, nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "order", Key: "id", Value: id}
}

type fakeCache struct {
	mu          sync.Mutex
	idempotency map[string]bool
	revoked     map[string]time.Duration
	attempts    map[string]int
	err         error
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		idempotency: make(map[string]bool),
		revoked:     make(map[string]time.Duration),
		attempts:    make(map[string]int),
	}
}

func (c *fakeCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if c.idempotency[key] {
		return false, nil
	}
	c.idempotency[key] = true
	return true, nil
}

func (c *fakeCache) DeleteIdempotency(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.idempotency, key)
	return nil
}

func (c *fakeCache) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[tokenID] = ttl
	return nil
}

func (c *fakeCache) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.revoked[tokenID]
	return ok, nil
}

func (c *fakeCache) RegisterFailedLogin(ctx context.Context, subject string, limit int, window time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[subject]++
	return c.attempts[subject] < limit, nil
}

func (c *fakeCache) LoginBlocked(ctx context.Context, subject string, limit int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts[subject] >= limit, nil
}

func (c *fakeCache) ResetLoginAttempts(ctx context.Context, subject string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.attempts, subject)
	return nil
}

type recordingObserver struct {
	mu      sync.Mutex
	results []string
}

func (o *recordingObserver) ObservePlacement(result string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, result)
}

func product(id, name, price string, inventory int) domain.Product {
	return domain.Product{
		ID:        id,
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Inventory: inventory,
	}
}

func address() domain.ShippingAddress {
	return domain.ShippingAddress{
		Name:       "Ada Lovelace",
		Street:     "12 Analytical Way",
		City:       "London",
		PostalCode: "N1 9GU",
		Country:    "UK",
	}
}

func errStore(msg string) error {
	return fmt.Errorf("mysql: %s", msg)
}
