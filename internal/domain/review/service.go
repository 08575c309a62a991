package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/domain/catalog"
	"github.com/example/ec-shop/internal/validator"
)

// Catalog is what reviews need from the catalog: existence checks and the
// rating recomputation.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
	RecalculateRating(ctx context.Context, productID string, ratings []int) error
}

type CreateInput struct {
	ProductID string `json:"productId" validate:"required"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Title     string `json:"title" validate:"required,max=100"`
	Comment   string `json:"comment" validate:"required,max=1000"`
}

type UpdateInput struct {
	Rating     *int    `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Title      *string `json:"title,omitempty" validate:"omitempty,max=100"`
	Comment    *string `json:"comment,omitempty" validate:"omitempty,max=1000"`
	IsApproved *bool   `json:"isApproved,omitempty"`
}

type Service struct {
	store   Store
	catalog Catalog
	logger  *slog.Logger
}

func NewService(store Store, catalog Catalog, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		logger:  logger.With(slog.String("component", "review")),
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Review, error) {
	return s.store.GetReview(ctx, id)
}

// ListForProduct returns the approved reviews of a product.
func (s *Service) ListForProduct(ctx context.Context, productID string) ([]Review, error) {
	return s.store.ListByProduct(ctx, productID, true)
}

func (s *Service) List(ctx context.Context) ([]Review, error) {
	return s.store.ListReviews(ctx)
}

func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*Review, error) {
	if err := validator.Validate(in); err != nil {
		return nil, err
	}
	if _, err := s.catalog.GetProduct(ctx, in.ProductID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	r := &Review{
		ID:         uuid.NewString(),
		UserID:     actor.UserID,
		UserName:   actor.Name,
		ProductID:  in.ProductID,
		Rating:     in.Rating,
		Title:      in.Title,
		Comment:    in.Comment,
		IsApproved: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateReview(ctx, r); err != nil {
		return nil, err
	}
	if err := s.recalculate(ctx, r.ProductID); err != nil {
		return nil, err
	}
	return r, nil
}

// Update lets the author or an admin edit a review. Only admins may change
// the approval flag.
func (s *Service) Update(ctx context.Context, actor Actor, id string, in UpdateInput) (*Review, error) {
	if err := validator.Validate(in); err != nil {
		return nil, err
	}
	r, err := s.store.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.owns(r) {
		return nil, apperror.Forbidden("not allowed to modify this review")
	}
	if in.IsApproved != nil && !actor.Admin {
		return nil, apperror.Forbidden("only admins can change review approval")
	}

	ratingChanged := false
	if in.Rating != nil && *in.Rating != r.Rating {
		r.Rating = *in.Rating
		ratingChanged = true
	}
	if in.Title != nil {
		r.Title = *in.Title
	}
	if in.Comment != nil {
		r.Comment = *in.Comment
	}
	if in.IsApproved != nil {
		r.IsApproved = *in.IsApproved
	}
	r.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateReview(ctx, r); err != nil {
		return nil, err
	}
	if ratingChanged {
		if err := s.recalculate(ctx, r.ProductID); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (s *Service) Delete(ctx context.Context, actor Actor, id string) error {
	r, err := s.store.GetReview(ctx, id)
	if err != nil {
		return err
	}
	if !actor.owns(r) {
		return apperror.Forbidden("not allowed to delete this review")
	}
	if err := s.store.DeleteReview(ctx, id); err != nil {
		return err
	}
	return s.recalculate(ctx, r.ProductID)
}

func (s *Service) recalculate(ctx context.Context, productID string) error {
	ratings, err := s.store.Ratings(ctx, productID)
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}
	err = s.catalog.RecalculateRating(ctx, productID, ratings)
	if errors.Is(err, apperror.ErrNotFound) {
		s.logger.WarnContext(ctx, "rating not updated, product is gone", slog.String("product_id", productID))
		return nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "rating recalculation failed", slog.String("product_id", productID), slog.Any("error", err))
		return fmt.Errorf("recalculate rating: %w", err)
	}
	return nil
}
