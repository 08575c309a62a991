package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/domain/review"
)

type ReviewStore struct {
	mu      sync.RWMutex
	reviews map[string]review.Review
}

func NewReviewStore() *ReviewStore {
	return &ReviewStore{reviews: make(map[string]review.Review)}
}

func (s *ReviewStore) GetReview(_ context.Context, id string) (*review.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok {
		return nil, apperror.NotFound("review", id)
	}
	return &r, nil
}

func (s *ReviewStore) filter(keep func(review.Review) bool) []review.Review {
	out := []review.Review{}
	for _, r := range s.reviews {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *ReviewStore) ListReviews(_ context.Context) ([]review.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(review.Review) bool { return true }), nil
}

func (s *ReviewStore) ListByProduct(_ context.Context, productID string, approvedOnly bool) ([]review.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(r review.Review) bool {
		return r.ProductID == productID && (r.IsApproved || !approvedOnly)
	}), nil
}

func (s *ReviewStore) CreateReview(_ context.Context, r *review.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.reviews {
		if existing.UserID == r.UserID && existing.ProductID == r.ProductID {
			return apperror.Conflict("product already reviewed by this user")
		}
	}
	s.reviews[r.ID] = *r
	return nil
}

func (s *ReviewStore) UpdateReview(_ context.Context, r *review.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[r.ID]; !ok {
		return apperror.NotFound("review", r.ID)
	}
	s.reviews[r.ID] = *r
	return nil
}

func (s *ReviewStore) DeleteReview(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[id]; !ok {
		return apperror.NotFound("review", id)
	}
	delete(s.reviews, id)
	return nil
}

func (s *ReviewStore) Ratings(_ context.Context, productID string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ratings := []int{}
	for _, r := range s.reviews {
		if r.ProductID == productID {
			ratings = append(ratings, r.Rating)
		}
	}
	return ratings, nil
}

var _ review.Store = (*ReviewStore)(nil)
