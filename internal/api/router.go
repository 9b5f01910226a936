package api

import (
	"github.com/atlasbank/ledger/internal/api/handler"
	"github.com/atlasbank/ledger/internal/api/middleware"
	"github.com/atlasbank/ledger/internal/api/spec"
	"github.com/atlasbank/ledger/internal/config"
	"github.com/atlasbank/ledger/internal/idempotency"
	"github.com/atlasbank/ledger/internal/repository"
	"github.com/atlasbank/ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *pgxpool.Pool
	store     *repository.Store
	idemStore *idempotency.Store
	redis     redis.Cmdable
}

func NewRouter(cfg *config.Config, logger *zap.Logger, db *pgxpool.Pool, store *repository.Store, idemStore *idempotency.Store, redisClient redis.Cmdable) *Router {
	return &Router{cfg: cfg, logger: logger, db: db, store: store, idemStore: idemStore, redis: redisClient}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	// Services
	accountSvc := service.NewAccountService(api.store)
	transferSvc := service.NewTransferService(api.store)
	loanSvc := service.NewLoanService(api.store)
	productSvc := service.NewProductService(api.store)
	complianceSvc := service.NewComplianceService(api.store)
	auditSvc := service.NewAuditService(api.store)

	// Handlers
	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	accountHandler := handler.NewAccountHandler(accountSvc)
	transferHandler := handler.NewTransferHandler(transferSvc)
	loanHandler := handler.NewLoanHandler(loanSvc)
	productHandler := handler.NewProductHandler(productSvc)
	complianceHandler := handler.NewComplianceHandler(complianceSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)

	idempotent := middleware.IdempotencyMiddleware(api.idemStore, api.logger)

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Get("/healthz", healthHandler.Live)
		r.Get("/readyz", healthHandler.Ready)
		r.Handle("/metrics", promhttp.Handler())
		r.Get("/openapi.yaml", spec.OpenAPIHandler())
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		// Accounts
		r.With(idempotent).Post("/v1/accounts", accountHandler.OpenAccount)
		r.Get("/v1/accounts", accountHandler.ListAccounts)
		r.Get("/v1/accounts/{id}", accountHandler.GetAccount)
		r.Post("/v1/accounts/{id}/activate", accountHandler.Activate)
		r.With(idempotent).Post("/v1/accounts/{id}/deposit", accountHandler.Deposit)
		r.With(idempotent).Post("/v1/accounts/{id}/withdraw", accountHandler.Withdraw)
		r.Post("/v1/accounts/{id}/freeze", accountHandler.Freeze)
		r.Get("/v1/accounts/{id}/statement", accountHandler.GetStatement)
		r.Get("/v1/accounts/{id}/loans", loanHandler.ListLoansForAccount)

		// Transfers
		r.With(idempotent).Post("/v1/transfers", transferHandler.InitiateTransfer)
		r.Get("/v1/transfers/{id}", transferHandler.GetTransfer)
		r.Get("/v1/transfers/reference/{reference}", transferHandler.GetTransferByReference)

		// Loans
		r.With(idempotent).Post("/v1/loans", loanHandler.OriginateLoan)
		r.Get("/v1/loans/{id}", loanHandler.GetLoan)
		r.Post("/v1/loans/{id}/approve", loanHandler.ApproveLoan)
		r.With(idempotent).Post("/v1/loans/{id}/disburse", loanHandler.DisburseLoan)
		r.With(idempotent).Post("/v1/loans/{id}/payments", loanHandler.MakePayment)
		r.With(middleware.RequireRole("admin")).Post("/v1/loans/{id}/default", loanHandler.MarkDefaulted)
		r.With(middleware.RequireRole("admin")).Post("/v1/loans/{id}/write-off", loanHandler.WriteOff)

		// Products
		r.With(middleware.RequireRole("admin")).Post("/v1/products", productHandler.CreateProduct)
		r.Get("/v1/products", productHandler.ListProducts)
		r.Get("/v1/products/{id}", productHandler.GetProduct)
		r.Get("/v1/products/{id}/eligibility", productHandler.CheckEligibility)
		r.With(middleware.RequireRole("admin")).Put("/v1/products/{id}/interest-rate", productHandler.UpdateInterestRate)
		r.With(middleware.RequireRole("admin")).Put("/v1/products/{id}/fees", productHandler.UpdateFees)
		r.With(middleware.RequireRole("admin")).Post("/v1/products/{id}/activate", productHandler.Activate)
		r.With(middleware.RequireRole("admin")).Post("/v1/products/{id}/deactivate", productHandler.Deactivate)
		r.With(middleware.RequireRole("admin")).Put("/v1/products/{id}/features", productHandler.AddFeature)

		// Compliance (admin only)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("admin"))
			r.Post("/v1/compliance/checks", complianceHandler.RaiseCheck)
			r.Get("/v1/compliance/checks/{id}", complianceHandler.GetCheck)
			r.Post("/v1/compliance/checks/{id}/approve", complianceHandler.ApproveCheck)
			r.Post("/v1/compliance/checks/{id}/reject", complianceHandler.RejectCheck)
			r.Put("/v1/compliance/checks/{id}/risk-score", complianceHandler.UpdateRiskScore)
			r.Get("/v1/compliance/entities/{entityID}/checks", complianceHandler.ListChecksForEntity)
		})

		// Audit trail (admin only)
		r.With(middleware.RequireRole("admin")).Get("/v1/audit/{entityType}/{entityID}", auditHandler.Trail)
	})

	return r
}
