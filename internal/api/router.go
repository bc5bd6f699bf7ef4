package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kayode-ade/central-ledger/internal/api/handler"
	"github.com/kayode-ade/central-ledger/internal/api/middleware"
	"github.com/kayode-ade/central-ledger/internal/config"
	"github.com/kayode-ade/central-ledger/internal/service"
)

// Router wires services to HTTP routes. Scheme-facing transfer operations
// and admin operations share the JWT middleware; admin routes additionally
// require the admin role.
type Router struct {
	cfg          *config.Config
	logger       *zap.Logger
	db           *pgxpool.Pool
	redis        redis.Cmdable
	participants *service.ParticipantService
	transfers    *service.TransferService
	fxTransfers  *service.FxTransferService
	settlements  *service.SettlementService
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *pgxpool.Pool,
	redisClient redis.Cmdable,
	participants *service.ParticipantService,
	transfers *service.TransferService,
	fxTransfers *service.FxTransferService,
	settlements *service.SettlementService,
) *Router {
	return &Router{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		redis:        redisClient,
		participants: participants,
		transfers:    transfers,
		fxTransfers:  fxTransfers,
		settlements:  settlements,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))

	participantHandler := handler.NewParticipantHandler(api.participants)
	transferHandler := handler.NewTransferHandler(api.transfers)
	fxTransferHandler := handler.NewFxTransferHandler(api.fxTransfers)
	settlementHandler := handler.NewSettlementHandler(api.settlements)
	healthHandler := handler.NewHealthHandler(api.db, api.redis)

	// Operational endpoints, unauthenticated.
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Get("/healthz", healthHandler.Live)
		r.Get("/readyz", healthHandler.Ready)
		r.Handle("/metrics", promhttp.Handler())
	})

	// Scheme-facing transfer protocol.
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.PublicRateLimitRPS))

		r.Post("/v1/transfers", transferHandler.Prepare)
		r.Get("/v1/transfers/{id}", transferHandler.Get)
		r.Put("/v1/transfers/{id}/fulfil", transferHandler.Fulfil)
		r.Put("/v1/transfers/{id}/reject", transferHandler.Reject)
		r.Put("/v1/transfers/{id}/error", transferHandler.AbortWithError)

		r.Post("/v1/fx-transfers", fxTransferHandler.Prepare)
		r.Get("/v1/fx-transfers/{id}", fxTransferHandler.Get)
		r.Put("/v1/fx-transfers/{id}/fulfil", fxTransferHandler.Fulfil)

		r.Get("/v1/participants", participantHandler.List)
		r.Get("/v1/participants/{name}", participantHandler.Get)
		r.Get("/v1/participants/{name}/accounts", participantHandler.ListAccounts)
		r.Get("/v1/participants/{name}/positions", participantHandler.GetPositions)
	})

	// Admin plane: registry and settlement operations.
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.RequireRole(middleware.RoleAdmin))
		r.Use(middleware.AuthRateLimiter(api.cfg.AdminRateLimitRPS))

		r.Post("/v1/participants", participantHandler.Create)
		r.Put("/v1/participants/{name}/active", participantHandler.SetActive)
		r.Put("/v1/participants/{name}/accounts/{accountID}/active", participantHandler.SetAccountActive)
		r.Post("/v1/participants/{name}/currencies", participantHandler.RegisterCurrency)
		r.Put("/v1/participants/{name}/limits", participantHandler.SetLimit)

		r.Post("/v1/settlement-models", settlementHandler.CreateModel)
		r.Get("/v1/settlement-models", settlementHandler.ListModels)
		r.Put("/v1/settlement-models/{id}/flags", settlementHandler.SetModelFlags)

		r.Post("/v1/settlement-windows/close", settlementHandler.CloseWindow)
		r.Get("/v1/settlement-windows/{id}", settlementHandler.GetWindowState)
		r.Post("/v1/settlement-windows/{id}/settle", settlementHandler.SettleWindow)
	})

	return r
}
