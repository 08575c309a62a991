package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ec-shop/internal/api/middleware"
	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/auth"
	"github.com/example/ec-shop/internal/domain/cart"
	"github.com/example/ec-shop/internal/domain/catalog"
	"github.com/example/ec-shop/internal/domain/checkout"
	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/domain/review"
	"github.com/example/ec-shop/internal/query"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	JWT          *auth.JWTService
	Cart         *cart.Engine
	Catalog      *catalog.Service
	Reviews      *review.Service
	Orders       *order.Service
	OrderQueries *query.Handler
	Checkout     *checkout.Orchestrator
	Confirmer    *checkout.Confirmer
	Webhook      *checkout.WebhookHandler
	HealthChecks []HealthCheck

	ServiceName    string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
}

func NewRouter(deps Deps, logger *slog.Logger) http.Handler {
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(chimw.RealIP)
	r.Use(middleware.Tracing(deps.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Metrics)
	if deps.RateLimitRPS > 0 {
		r.Use(middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst, logger))
	}
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(deps.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, logger, apperror.NotFound("route", req.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Success: false, Error: "method not allowed"})
	})

	health := NewHealthHandlers(deps.HealthChecks...)
	r.Get("/health/live", health.Live)
	r.Get("/health/ready", health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	authenticate := middleware.Authenticate(deps.JWT)
	adminOnly := middleware.RequireRole(auth.RoleAdmin)

	products := NewProductHandlers(deps.Catalog, logger)
	r.Route("/products", func(r chi.Router) {
		r.Get("/", products.ListProducts)
		r.Get("/{id}", products.GetProduct)
		r.Group(func(r chi.Router) {
			r.Use(authenticate, adminOnly)
			r.Post("/", products.CreateProduct)
			r.Put("/{id}", products.UpdateProduct)
			r.Delete("/{id}", products.DeleteProduct)
		})
	})

	categories := NewCategoryHandlers(deps.Catalog, logger)
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", categories.ListCategories)
		r.Get("/{id}", categories.GetCategory)
		r.Group(func(r chi.Router) {
			r.Use(authenticate, adminOnly)
			r.Post("/", categories.CreateCategory)
			r.Put("/{id}", categories.UpdateCategory)
			r.Delete("/{id}", categories.DeleteCategory)
		})
	})

	reviews := NewReviewHandlers(deps.Reviews, logger)
	r.Route("/reviews", func(r chi.Router) {
		r.Get("/product/{productId}", reviews.ListForProduct)
		r.Get("/{id}", reviews.GetReview)
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", reviews.CreateReview)
			r.Put("/{id}", reviews.UpdateReview)
			r.Delete("/{id}", reviews.DeleteReview)
			r.With(adminOnly).Get("/", reviews.ListReviews)
		})
	})

	carts := NewCartHandlers(deps.Cart, logger)
	r.Route("/cart", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/", carts.GetCart)
		r.Post("/", carts.AddItem)
		r.Delete("/", carts.ClearCart)
		r.Put("/{lineId}", carts.UpdateItem)
		r.Delete("/{lineId}", carts.RemoveItem)
	})

	checkouts := NewCheckoutHandlers(deps.Checkout, deps.Confirmer, deps.Webhook, logger)
	r.Route("/checkout", func(r chi.Router) {
		// Provider callback; authenticated by signature, not by token.
		r.Post("/webhook", checkouts.Webhook)
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", checkouts.StartCheckout)
			r.Get("/session/{id}", checkouts.ConfirmSession)
		})
	})

	orders := NewOrderHandlers(deps.Orders, deps.OrderQueries, logger)
	r.Route("/orders", func(r chi.Router) {
		r.Use(authenticate)
		r.Post("/", orders.PlaceOrder)
		r.Get("/myorders", orders.MyOrders)
		r.Get("/{id}", orders.GetOrder)
		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Get("/", orders.ListOrders)
			r.Put("/{id}", orders.UpdateStatus)
			r.Delete("/{id}", orders.DeleteOrder)
		})
	})

	return r
}
