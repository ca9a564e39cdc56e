// Package handler exposes the storefront domain over a JSON HTTP API built
// on gin. All routes live under /api.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/partstore/storefront/internal/domain/category"
	"github.com/partstore/storefront/internal/domain/checkout"
	"github.com/partstore/storefront/internal/domain/coupon"
	"github.com/partstore/storefront/internal/domain/order"
	"github.com/partstore/storefront/internal/domain/product"
	"github.com/partstore/storefront/pkg/httpmiddleware"
)

// CategoryService is the category administration used by the handler.
type CategoryService interface {
	List(ctx context.Context) ([]category.Category, error)
	GetBySlug(ctx context.Context, slug string) (*category.Category, error)
	Create(ctx context.Context, req category.CreateRequest) (*category.Category, error)
	Update(ctx context.Context, id string, req category.UpdateRequest) (*category.Category, error)
	Delete(ctx context.Context, id string) error
	AddSubcategory(ctx context.Context, catID string, req category.SubcategoryRequest) (*category.Subcategory, error)
	UpdateSubcategory(ctx context.Context, catID, subID string, req category.SubcategoryUpdate) (*category.Subcategory, error)
	DeleteSubcategory(ctx context.Context, catID, subID string) error
}

// ProductService is the product catalog used by the handler.
type ProductService interface {
	List(ctx context.Context) ([]product.Product, error)
	Get(ctx context.Context, id string) (*product.Product, error)
	ListFeatured(ctx context.Context) ([]product.Product, error)
	Recommended(ctx context.Context) ([]product.Product, error)
	ListByCategory(ctx context.Context, slug string) ([]product.Product, error)
	ListBySubcategory(ctx context.Context, categorySlug, subcategorySlug string) ([]product.Product, error)
	Create(ctx context.Context, req product.CreateRequest) (*product.Product, error)
	Delete(ctx context.Context, id string) error
	ToggleFeatured(ctx context.Context, id string) (*product.Product, error)
}

// OrderService places orders and drives their lifecycle.
type OrderService interface {
	Create(ctx context.Context, req order.CreateRequest) (*order.Order, error)
	ListMine(ctx context.Context, userID string) ([]order.Order, error)
	ListAll(ctx context.Context) ([]order.Order, error)
	Get(ctx context.Context, id string, who order.Requester) (*order.Order, error)
	MarkPaid(ctx context.Context, id string, who order.Requester, result order.PaymentResult) (*order.Order, error)
	MarkDelivered(ctx context.Context, id string) (*order.Order, error)
}

// CheckoutService creates and completes gateway checkout sessions.
type CheckoutService interface {
	CreateSession(ctx context.Context, req checkout.Request) (*checkout.Result, error)
	Complete(ctx context.Context, sessionID string, who order.Requester) (*order.Order, error)
}

// CouponService looks up user coupons.
type CouponService interface {
	Active(ctx context.Context, userID string) (*coupon.Coupon, error)
	Redeem(ctx context.Context, code, userID string) (*coupon.Coupon, error)
}

// Handler serves the storefront API, delegating business logic to the
// domain services.
type Handler struct {
	categories CategoryService
	products   ProductService
	orders     OrderService
	checkout   CheckoutService
	coupons    CouponService
	auth       *Authenticator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	categories CategoryService,
	products ProductService,
	orders OrderService,
	checkout CheckoutService,
	coupons CouponService,
	auth *Authenticator,
) *Handler {
	return &Handler{
		categories: categories,
		products:   products,
		orders:     orders,
		checkout:   checkout,
		coupons:    coupons,
		auth:       auth,
	}
}

// EngineConfig holds the router-level settings.
type EngineConfig struct {
	Logger           *zap.Logger
	CORSOrigins      []string
	AllowCredentials bool
	// Limiter throttles checkout and coupon validation. Nil disables it.
	Limiter *httpmiddleware.Limiter
}

// Engine builds the gin engine with the shared middleware chain and all
// routes mounted under /api.
func (h *Handler) Engine(cfg EngineConfig) *gin.Engine {
	lg := cfg.Logger
	if lg == nil {
		lg = zap.NewNop()
	}

	e := gin.New()
	e.HandleMethodNotAllowed = true
	e.Use(
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Recovery(),
		httpmiddleware.LogRequests(),
		cors.New(corsConfig(cfg)),
	)
	e.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Code: http.StatusNotFound, Message: "route not found"})
	})

	throttle := func(c *gin.Context) { c.Next() }
	if cfg.Limiter != nil {
		throttle = httpmiddleware.RateLimitWith(cfg.Limiter, rateLimitKey)
	}
	h.register(e.Group("/api"), throttle)
	return e
}

func corsConfig(cfg EngineConfig) cors.Config {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", httpmiddleware.RequestIDHeader},
		ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           24 * time.Hour,
	}
	if len(cfg.CORSOrigins) == 0 || (len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*") {
		if cfg.AllowCredentials {
			cc.AllowOriginFunc = func(string) bool { return true }
		} else {
			cc.AllowAllOrigins = true
		}
		return cc
	}
	cc.AllowOrigins = cfg.CORSOrigins
	return cc
}

func (h *Handler) register(api *gin.RouterGroup, throttle gin.HandlerFunc) {
	user := h.auth.RequireUser()
	admin := h.auth.RequireAdmin()

	// Category reads take a slug in the :id segment, writes take an id.
	cats := api.Group("/categories")
	cats.GET("", h.listCategories)
	cats.GET("/:id", h.getCategory)
	cats.POST("", user, admin, h.createCategory)
	cats.PUT("/:id", user, admin, h.updateCategory)
	cats.DELETE("/:id", user, admin, h.deleteCategory)
	cats.POST("/:id/subcategories", user, admin, h.addSubcategory)
	cats.PUT("/:id/subcategories/:subId", user, admin, h.updateSubcategory)
	cats.DELETE("/:id/subcategories/:subId", user, admin, h.deleteSubcategory)

	products := api.Group("/products")
	products.GET("", user, admin, h.listProducts)
	products.GET("/featured", h.featuredProducts)
	products.GET("/recommendations", h.recommendedProducts)
	products.GET("/category/:slug", h.productsByCategory)
	products.GET("/category/:slug/:subSlug", h.productsBySubcategory)
	products.GET("/:id", h.getProduct)
	products.POST("", user, admin, h.createProduct)
	products.DELETE("/:id", user, admin, h.deleteProduct)
	products.PATCH("/:id", user, admin, h.toggleFeatured)

	orders := api.Group("/orders", user)
	orders.POST("", h.createOrder)
	orders.GET("", admin, h.listOrders)
	orders.GET("/myorders", h.myOrders)
	orders.GET("/:id", h.getOrder)
	orders.PUT("/:id/pay", h.payOrder)
	orders.PUT("/:id/deliver", admin, h.deliverOrder)

	payments := api.Group("/payments", user)
	payments.POST("/create-checkout-session", throttle, h.createCheckoutSession)
	payments.POST("/checkout-success", h.checkoutSuccess)

	coupons := api.Group("/coupons", user)
	coupons.GET("", h.activeCoupon)
	coupons.POST("/validate", throttle, h.validateCoupon)
}
