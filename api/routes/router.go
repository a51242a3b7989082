package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pyshop/pyshop-backend/api/controllers"
	"github.com/pyshop/pyshop-backend/api/middleware"
	"github.com/pyshop/pyshop-backend/internal/auth"
	cartsvc "github.com/pyshop/pyshop-backend/internal/cart"
	products "github.com/pyshop/pyshop-backend/internal/products"
	"github.com/pyshop/pyshop-backend/pkg/auth/session"
	"github.com/pyshop/pyshop-backend/pkg/config"
	"github.com/pyshop/pyshop-backend/pkg/db"
	"github.com/pyshop/pyshop-backend/pkg/logger"
	"github.com/pyshop/pyshop-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions sessionManager,
	authService auth.Service,
	registerService auth.RegisterService,
	productService products.Service,
	cartService cartsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins...),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(registerService, logg))
		r.Post("/refresh", controllers.AuthRefresh(authService, logg))

		r.With(middleware.Auth(cfg.JWT, sessions, logg)).Post("/logout", controllers.AuthLogout(authService, logg))
	})

	r.With(middleware.Auth(cfg.JWT, sessions, logg)).Get("/api/v1/users/me", controllers.AuthMe(authService, logg))

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductList(productService, logg))
		r.Get("/{productID}", controllers.ProductGet(productService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessions, logg))
			r.Post("/", controllers.ProductCreate(productService, logg))
			r.Put("/{productID}", controllers.ProductUpdate(productService, logg))
			r.Delete("/{productID}", controllers.ProductDelete(productService, logg))
		})
	})

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.CartSession(cfg.Cart, cfg.App.Env, logg))
		r.Use(middleware.OptionalAuth(cfg.JWT, sessions, logg))

		r.Get("/", controllers.CartGet(cartService, logg))
		r.Delete("/", controllers.CartClear(cartService, logg))
		r.Post("/validate", controllers.CartValidate(cartService, logg))
		r.Post("/items", controllers.CartAddItem(cartService, logg))
		r.Put("/items/{itemID}", controllers.CartUpdateItem(cartService, logg))
		r.Delete("/items/{itemID}", controllers.CartRemoveItem(cartService, logg))

		r.With(middleware.Auth(cfg.JWT, sessions, logg)).Post("/merge", controllers.CartMerge(cartService, logg))
	})

	return r
}
