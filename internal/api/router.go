package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/traceid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "pawn-ledger/docs"
	"pawn-ledger/internal/api/handler"
	mw "pawn-ledger/internal/api/middleware"
	"pawn-ledger/internal/config"
	"pawn-ledger/internal/domain/customer"
	"pawn-ledger/internal/domain/ledger"
	"pawn-ledger/internal/domain/loan"
	"pawn-ledger/internal/domain/user"
)

// Dependencies collects the services the router wires into handlers.
// Redis is optional; without it rate limiting falls back to per-process
// counting.
type Dependencies struct {
	Loans     loan.LoanService
	Customers customer.CustomerService
	Ledger    ledger.LedgerService
	Auth      user.AuthService
	Redis     *redis.Client
}

func SetupRouter(deps Dependencies, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(router, deps.Redis, cfg, logger)
	setupMetricsEndpoint(router, cfg, logger)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	router.Route("/api/v1", func(r chi.Router) {
		setupAuthRoutes(r, deps.Auth, logger)
		setupCustomerRoutes(r, cfg, deps.Customers, logger)
		setupLoanRoutes(r, deps.Loans, deps.Ledger, cfg, logger)
		setupPaymentRoutes(r, deps.Ledger, cfg, logger)
		setupDashboardRoutes(r, deps.Ledger, cfg, logger)
	})

	setupSwaggerEndpoint(router, logger)

	return router
}

func setupMiddleware(router *chi.Mux, redisClient *redis.Client, cfg *config.Config, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceid.Middleware)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(mw.NewRateLimiter(cfg.Server.RateLimit, redisClient, logger).Middleware)
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupSwaggerEndpoint(router *chi.Mux, logger *slog.Logger) {
	logger.Info("Setting up Swagger UI endpoint", "path", "/swagger/")
	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
}

// setupAuthRoutes registers the only unauthenticated API endpoints; a token
// from /auth/login is what opens the rest of the surface.
func setupAuthRoutes(r chi.Router, authService user.AuthService, logger *slog.Logger) {
	h := handler.NewAuthHandler(authService, logger)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})
}

func setupCustomerRoutes(r chi.Router, cfg *config.Config, svc customer.CustomerService, logger *slog.Logger) {
	h := handler.NewCustomerHandler(svc, logger)

	r.Route("/customers", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/", h.CreateCustomer)
		r.Get("/", h.ListCustomers)
		r.Route("/{customerID}", func(r chi.Router) {
			r.Get("/", h.GetCustomer)
			r.Put("/", h.UpdateCustomer)
			r.Delete("/", h.DeleteCustomer)
		})
	})
}

func setupLoanRoutes(r chi.Router, loanService loan.LoanService, ledgerService ledger.LedgerService, cfg *config.Config, logger *slog.Logger) {
	h := handler.NewLoanHandler(loanService, ledgerService, logger)

	r.Route("/loans", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/", h.CreateLoan)
		r.Get("/", h.ListLoans)
		r.Route("/{serialNo}", func(r chi.Router) {
			r.Get("/", h.GetLoan)
			r.Delete("/", h.PurgeLoan)
			r.Get("/interest", h.GetInterest)
			r.Get("/outstanding", h.GetOutstanding)
		})
	})
}

func setupPaymentRoutes(r chi.Router, ledgerService ledger.LedgerService, cfg *config.Config, logger *slog.Logger) {
	h := handler.NewPaymentHandler(ledgerService, logger)

	r.Route("/payments", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/", h.RecordPayment)
		r.Get("/", h.ListPayments)
	})
}

func setupDashboardRoutes(r chi.Router, ledgerService ledger.LedgerService, cfg *config.Config, logger *slog.Logger) {
	h := handler.NewDashboardHandler(ledgerService, logger)

	r.Route("/dashboard", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Get("/", h.GetDashboard)
	})
}
