package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/carmarket/backend/internal/auth"
	"github.com/carmarket/backend/internal/logging"
	"github.com/carmarket/backend/internal/metrics"
	"github.com/carmarket/backend/internal/middleware"
	"github.com/carmarket/backend/internal/ratelimit"
	"github.com/carmarket/backend/internal/services"
)

// RouterConfig carries everything the HTTP surface is built from.
type RouterConfig struct {
	Cars     *services.CarService
	Users    *services.UserService
	Wishlist *services.WishlistService
	Tokens   *auth.TokenService
	Store    Pinger
	// AuthLimiter throttles login and registration. Nil disables it.
	AuthLimiter ratelimit.Limiter
	// UploadDir, when set, is served under /uploads/.
	UploadDir string
	Options
}

func NewRouter(cfg RouterConfig) chi.Router {
	carHandler := NewCarHandler(cfg.Cars, cfg.Options)
	userHandler := NewUserHandler(cfg.Users, cfg.Options)
	authHandler := NewAuthHandler(cfg.Users, cfg.Options)
	wishlistHandler := NewWishlistHandler(cfg.Wishlist, cfg.Options)
	healthHandler := NewHealthHandler(cfg.Store)

	limited := func(h http.HandlerFunc) http.HandlerFunc {
		if cfg.AuthLimiter == nil {
			return h
		}
		return middleware.RateLimit(cfg.AuthLimiter)(h).ServeHTTP
	}
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.RequireAuth(h).ServeHTTP
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(logging.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	r.Use(middleware.Identify(cfg.Tokens))

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Handle("/", Methods{http.MethodGet: healthHandler.Index})

		r.Handle("/cars", Methods{
			http.MethodGet:  carHandler.ListCars,
			http.MethodPost: carHandler.CreateCar,
		})
		r.Handle("/cars/upload", Methods{
			http.MethodPost: authed(carHandler.UploadImages),
		})
		r.Handle("/cars/{id}", Methods{
			http.MethodGet:    carHandler.GetCar,
			http.MethodPut:    carHandler.UpdateCar,
			http.MethodDelete: carHandler.DeleteCar,
		})

		r.Handle("/users", Methods{
			http.MethodGet:  authed(userHandler.ListUsers),
			http.MethodPost: limited(userHandler.Register),
		})
		r.Handle("/users/{id}", Methods{
			http.MethodGet:    userHandler.GetUser,
			http.MethodPut:    userHandler.UpdateUser,
			http.MethodDelete: userHandler.DeleteUser,
		})

		r.Handle("/wishlist", Methods{
			http.MethodGet:    authed(wishlistHandler.ListWishlist),
			http.MethodPost:   authed(wishlistHandler.AddToWishlist),
			http.MethodDelete: authed(wishlistHandler.RemoveFromWishlist),
		})

		r.Handle("/auth", Methods{
			http.MethodPost: limited(authHandler.Login),
		})
	})

	if cfg.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))
	}

	return r
}
