// Package review manages product reviews and keeps each product's rating
// summary in step with them.
package review

import (
	"context"
	"time"
)

type Review struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName,omitempty"`
	ProductID  string    `json:"productId"`
	Rating     int       `json:"rating"`
	Title      string    `json:"title"`
	Comment    string    `json:"comment"`
	IsApproved bool      `json:"isApproved"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Store persists reviews. Create returns an apperror Conflict when the user
// already reviewed the product; lookups of unknown ids return NotFound.
type Store interface {
	GetReview(ctx context.Context, id string) (*Review, error)
	ListReviews(ctx context.Context) ([]Review, error)
	ListByProduct(ctx context.Context, productID string, approvedOnly bool) ([]Review, error)
	CreateReview(ctx context.Context, r *Review) error
	UpdateReview(ctx context.Context, r *Review) error
	DeleteReview(ctx context.Context, id string) error
	// Ratings returns the rating of every review of the product.
	Ratings(ctx context.Context, productID string) ([]int, error)
}

// Actor is the identity performing a write.
type Actor struct {
	UserID string
	Name   string
	Admin  bool
}

func (a Actor) owns(r *Review) bool {
	return a.Admin || a.UserID == r.UserID
}
