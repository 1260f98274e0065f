package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

type CatalogService struct {
	products   port.ProductRepository
	categories port.CategoryRepository
	logger     *zap.Logger
}

func NewCatalogService(products port.ProductRepository, categories port.CategoryRepository, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		products:   products,
		categories: categories,
		logger:     logger,
	}
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.products.GetProduct(ctx, id)
}

func (s *CatalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) (domain.PageResult[domain.Product], error) {
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return domain.PageResult[domain.Product]{}, &InvalidInputError{Field: "minPrice", Reason: "must not exceed maxPrice"}
	}

	products, total, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		return domain.PageResult[domain.Product]{}, fmt.Errorf("list products: %w", err)
	}
	return domain.NewPageResult(products, filter.Page, total), nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, product *domain.Product) error {
	if err := s.validateProduct(ctx, product); err != nil {
		return err
	}
	if err := s.products.CreateProduct(ctx, product); err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	s.logger.Info("product created", zap.String("product_id", product.ID), zap.String("name", product.Name))
	return nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, product *domain.Product) error {
	if err := s.validateProduct(ctx, product); err != nil {
		return err
	}
	return s.products.UpdateProduct(ctx, product)
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	return s.products.DeleteProduct(ctx, id)
}

func (s *CatalogService) validateProduct(ctx context.Context, product *domain.Product) error {
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" {
		return &InvalidInputError{Field: "name", Reason: "is required"}
	}
	if product.Price.IsNegative() {
		return &InvalidInputError{Field: "price", Reason: "must not be negative"}
	}
	if product.Inventory < 0 {
		return &InvalidInputError{Field: "inventory", Reason: "must not be negative"}
	}

	if product.CategoryID == "" {
		return nil
	}
	if _, err := s.categories.GetCategory(ctx, product.CategoryID); err != nil {
		if domain.IsNotFound(err) {
			return &InvalidInputError{Field: "categoryId", Reason: "unknown category"}
		}
		return fmt.Errorf("check category: %w", err)
	}
	return nil
}

func (s *CatalogService) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	return s.categories.GetCategory(ctx, id)
}

func (s *CatalogService) ListCategories(ctx context.Context, page domain.Page) (domain.PageResult[domain.Category], error) {
	categories, total, err := s.categories.ListCategories(ctx, page)
	if err != nil {
		return domain.PageResult[domain.Category]{}, fmt.Errorf("list categories: %w", err)
	}
	return domain.NewPageResult(categories, page, total), nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, category *domain.Category) error {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return &InvalidInputError{Field: "name", Reason: "is required"}
	}
	if err := s.categories.CreateCategory(ctx, category); err != nil {
		return fmt.Errorf("create category: %w", err)
	}

	s.logger.Info("category created", zap.String("category_id", category.ID), zap.String("name", category.Name))
	return nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, category *domain.Category) error {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return &InvalidInputError{Field: "name", Reason: "is required"}
	}
	return s.categories.UpdateCategory(ctx, category)
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	err := s.categories.DeleteCategory(ctx, id)
	if errors.Is(err, domain.ErrConflict) {
		s.logger.Warn("refused to delete category in use", zap.String("category_id", id))
	}
	return err
}
