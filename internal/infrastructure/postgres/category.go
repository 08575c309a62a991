package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/domain/catalog"
)

type CategoryRepository struct {
	db DBTX
}

func NewCategoryRepository(db DBTX) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) GetCategory(ctx context.Context, id string) (*catalog.Category, error) {
	var c catalog.Category
	err := r.db.QueryRow(ctx, `SELECT id, name, slug, description, created_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("category", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}

func (r *CategoryRepository) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, slug, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []catalog.Category{}
	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func (r *CategoryRepository) CreateCategory(ctx context.Context, c *catalog.Category) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO categories (id, name, slug, description, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, c.Slug, c.Description, c.CreatedAt)
	if isUniqueViolation(err) {
		return apperror.Conflict("category name already exists: " + c.Name)
	}
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (r *CategoryRepository) UpdateCategory(ctx context.Context, c *catalog.Category) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE categories SET name = $2, slug = $3, description = $4 WHERE id = $1`,
		c.ID, c.Name, c.Slug, c.Description)
	if isUniqueViolation(err) {
		return apperror.Conflict("category name already exists: " + c.Name)
	}
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("category", c.ID)
	}
	return nil
}

func (r *CategoryRepository) DeleteCategory(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("category", id)
	}
	return nil
}

var _ catalog.CategoryStore = (*CategoryRepository)(nil)
