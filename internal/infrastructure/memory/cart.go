package memory

import (
	"context"
	"sync"
	"time"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/domain/cart"
	"github.com/example/ec-shop/internal/domain/catalog"
)

type cartEntry struct {
	cart      cart.Cart
	expiresAt time.Time
}

// CartStore keeps carts in memory with the same TTL semantics as the Redis store.
type CartStore struct {
	mu    sync.Mutex
	carts map[string]cartEntry
	ttl   time.Duration
	now   func() time.Time
}

func NewCartStore(ttl time.Duration) *CartStore {
	return &CartStore{carts: make(map[string]cartEntry), ttl: ttl, now: time.Now}
}

func cloneCart(c cart.Cart) cart.Cart {
	items := make([]cart.Line, len(c.Items))
	for i, l := range c.Items {
		if l.Variant != nil {
			v := *l.Variant
			l.Variant = &v
		}
		items[i] = l
	}
	c.Items = items
	return c
}

func (s *CartStore) Get(_ context.Context, userID string) (*cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.carts[userID]
	if !ok || (s.ttl > 0 && s.now().After(e.expiresAt)) {
		delete(s.carts, userID)
		return nil, apperror.NotFound("cart", userID)
	}
	c := cloneCart(e.cart)
	return &c, nil
}

func (s *CartStore) Save(_ context.Context, c *cart.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[c.UserID] = cartEntry{cart: cloneCart(*c), expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *CartStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}

var _ catalog.ProductStore = (*CatalogStore)(nil)
var _ catalog.CategoryStore = (*CatalogStore)(nil)
var _ cart.Store = (*CartStore)(nil)
