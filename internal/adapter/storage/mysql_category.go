package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/storefront/internal/core/domain"
)

const categoryResource = "category"

func (m *MySQLAdapter) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	var c domain.Category
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(categoryResource, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query category %s: %w", id, err)
	}
	return &c, nil
}

func (m *MySQLAdapter) ListCategories(ctx context.Context, page domain.Page) ([]domain.Category, int, error) {
	var total int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count categories: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM categories ORDER BY name LIMIT ? OFFSET ?`,
		page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, total, rows.Err()
}

func (m *MySQLAdapter) CreateCategory(ctx context.Context, category *domain.Category) error {
	now := time.Now().UTC()
	category.ID = uuid.NewString()
	category.CreatedAt = now
	category.UpdatedAt = now

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		category.ID, category.Name, category.Description, category.CreatedAt, category.UpdatedAt,
	)
	if err != nil {
		return categoryWriteError(err)
	}
	return nil
}

func (m *MySQLAdapter) UpdateCategory(ctx context.Context, category *domain.Category) error {
	category.UpdatedAt = time.Now().UTC()

	result, err := m.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		category.Name, category.Description, category.UpdatedAt, category.ID,
	)
	if err != nil {
		return categoryWriteError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update category %s: rows affected: %w", category.ID, err)
	}
	if rows == 0 {
		return notFound(categoryResource, category.ID)
	}

	stored, err := m.GetCategory(ctx, category.ID)
	if err != nil {
		return err
	}
	*category = *stored
	return nil
}

func (m *MySQLAdapter) DeleteCategory(ctx context.Context, id string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		if mysqlErrorNumber(err) == mysqlErrRowIsReferenced {
			return &domain.ConflictError{Resource: categoryResource, Reason: "category still has products"}
		}
		return fmt.Errorf("delete category %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category %s: rows affected: %w", id, err)
	}
	if rows == 0 {
		return notFound(categoryResource, id)
	}
	return nil
}

func categoryWriteError(err error) error {
	if mysqlErrorNumber(err) == mysqlErrDuplicateEntry {
		return &domain.ConflictError{Resource: categoryResource, Reason: "name already exists"}
	}
	return fmt.Errorf("write category: %w", err)
}
