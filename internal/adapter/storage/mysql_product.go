package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/storefront/internal/core/domain"
)

const (
	productResource = "product"
	productColumns  = "id, name, description, price, inventory, category_id, image_url, created_at, updated_at"
)

var productSortColumns = map[domain.ProductSort]string{
	domain.ProductSortCreatedAt: "created_at",
	domain.ProductSortPrice:     "price",
	domain.ProductSortName:      "name",
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		p          domain.Product
		categoryID sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Inventory,
		&categoryID, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.CategoryID = categoryID.String
	return &p, nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := scanProduct(m.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(productResource, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query product %s: %w", id, err)
	}
	return product, nil
}

func (m *MySQLAdapter) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error) {
	var (
		conds []string
		args  []any
	)
	if filter.CategoryID != "" {
		conds = append(conds, "category_id = ?")
		args = append(args, filter.CategoryID)
	}
	if filter.Query != "" {
		conds = append(conds, "name LIKE ?")
		args = append(args, "%"+escapeLike(filter.Query)+"%")
	}
	if filter.MinPrice != nil {
		conds = append(conds, "price >= ?")
		args = append(args, *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		conds = append(conds, "price <= ?")
		args = append(args, *filter.MaxPrice)
	}
	if filter.InStockOnly {
		conds = append(conds, "inventory > 0")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	column, ok := productSortColumns[filter.Sort]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if filter.Descending {
		direction = "DESC"
	}

	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY %s %s, id LIMIT ? OFFSET ?`,
		productColumns, where, column, direction)
	rows, err := m.db.QueryContext(ctx, query, append(args, filter.Page.Limit, filter.Page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, total, rows.Err()
}

func (m *MySQLAdapter) CreateProduct(ctx context.Context, product *domain.Product) error {
	now := time.Now().UTC()
	product.ID = uuid.NewString()
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID, product.Name, product.Description, product.Price, product.Inventory,
		nullString(product.CategoryID), product.ImageURL, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return productWriteError(err)
	}
	return nil
}

func (m *MySQLAdapter) UpdateProduct(ctx context.Context, product *domain.Product) error {
	product.UpdatedAt = time.Now().UTC()

	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, description = ?, price = ?, inventory = ?, category_id = ?, image_url = ?, updated_at = ?
		WHERE id = ?`,
		product.Name, product.Description, product.Price, product.Inventory,
		nullString(product.CategoryID), product.ImageURL, product.UpdatedAt, product.ID,
	)
	if err != nil {
		return productWriteError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product %s: rows affected: %w", product.ID, err)
	}
	if rows == 0 {
		return notFound(productResource, product.ID)
	}

	stored, err := m.GetProduct(ctx, product.ID)
	if err != nil {
		return err
	}
	*product = *stored
	return nil
}

func (m *MySQLAdapter) DeleteProduct(ctx context.Context, id string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product %s: rows affected: %w", id, err)
	}
	if rows == 0 {
		return notFound(productResource, id)
	}
	return nil
}

func productWriteError(err error) error {
	if mysqlErrorNumber(err) == mysqlErrNoReferencedRow {
		return &domain.ConflictError{Resource: productResource, Reason: "category does not exist"}
	}
	return fmt.Errorf("write product: %w", err)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
