package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type ProductRepository interface {
	// GetProduct returns a *domain.NotFoundError when no product has the id
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error)
	CreateProduct(ctx context.Context, product *domain.Product) error
	UpdateProduct(ctx context.Context, product *domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

type CategoryRepository interface {
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	ListCategories(ctx context.Context, page domain.Page) ([]domain.Category, int, error)
	CreateCategory(ctx context.Context, category *domain.Category) error
	UpdateCategory(ctx context.Context, category *domain.Category) error

	// DeleteCategory fails with domain.ErrConflict while products reference it
	DeleteCategory(ctx context.Context, id string) error
}

type UserRepository interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) error
}

type OrderRepository interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error)
	// UpdateOrderStatus applies only while the order is still in from and
	// returns a ConflictError otherwise.
	UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error)
}

// PlacementTx is the store as seen from inside a single order placement.
// Everything done through it commits or rolls back together.
type PlacementTx interface {
	// LockProduct reads a product and holds it until the transaction ends.
	// Returns nil, nil when the product does not exist.
	LockProduct(ctx context.Context, id string) (*domain.Product, error)

	// DecrementInventory subtracts quantity only if enough inventory is left,
	// returns false otherwise
	DecrementInventory(ctx context.Context, productID string, quantity int) (bool, error)

	// InsertOrder assigns the order ID and timestamps and persists it
	InsertOrder(ctx context.Context, order *domain.Order) error
}

type OrderPlacementStore interface {
	RunInTx(ctx context.Context, fn func(tx PlacementTx) error) error
}
