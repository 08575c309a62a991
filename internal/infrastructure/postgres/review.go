package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/domain/review"
)

const reviewColumns = `id, user_id, user_name, product_id, rating, title, comment, is_approved, created_at, updated_at`

type ReviewRepository struct {
	db DBTX
}

func NewReviewRepository(db DBTX) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func scanReview(row rowScanner) (review.Review, error) {
	var rv review.Review
	err := row.Scan(&rv.ID, &rv.UserID, &rv.UserName, &rv.ProductID, &rv.Rating,
		&rv.Title, &rv.Comment, &rv.IsApproved, &rv.CreatedAt, &rv.UpdatedAt)
	return rv, err
}

func (r *ReviewRepository) GetReview(ctx context.Context, id string) (*review.Review, error) {
	rv, err := scanReview(r.db.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("review", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return &rv, nil
}

func (r *ReviewRepository) list(ctx context.Context, query string, args ...any) ([]review.Review, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []review.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return reviews, nil
}

func (r *ReviewRepository) ListReviews(ctx context.Context) ([]review.Review, error) {
	return r.list(ctx, `SELECT `+reviewColumns+` FROM reviews ORDER BY created_at DESC`)
}

func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string, approvedOnly bool) ([]review.Review, error) {
	return r.list(ctx, `
		SELECT `+reviewColumns+` FROM reviews
		WHERE product_id = $1 AND (is_approved OR NOT $2)
		ORDER BY created_at DESC`, productID, approvedOnly)
}

func (r *ReviewRepository) CreateReview(ctx context.Context, rv *review.Review) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO reviews (`+reviewColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rv.ID, rv.UserID, rv.UserName, rv.ProductID, rv.Rating,
		rv.Title, rv.Comment, rv.IsApproved, rv.CreatedAt, rv.UpdatedAt)
	if isUniqueViolation(err) {
		return apperror.Conflict("product already reviewed by this user")
	}
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (r *ReviewRepository) UpdateReview(ctx context.Context, rv *review.Review) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE reviews SET rating = $2, title = $3, comment = $4, is_approved = $5, updated_at = $6
		WHERE id = $1`,
		rv.ID, rv.Rating, rv.Title, rv.Comment, rv.IsApproved, rv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("review", rv.ID)
	}
	return nil
}

func (r *ReviewRepository) DeleteReview(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("review", id)
	}
	return nil
}

func (r *ReviewRepository) Ratings(ctx context.Context, productID string) ([]int, error) {
	rows, err := r.db.Query(ctx, `SELECT rating FROM reviews WHERE product_id = $1`, productID)
	if err != nil {
		return nil, fmt.Errorf("load ratings: %w", err)
	}
	defer rows.Close()

	ratings := []int{}
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}
	return ratings, nil
}

var _ review.Store = (*ReviewRepository)(nil)
