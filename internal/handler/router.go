package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"bbdist/internal/logger"
	"bbdist/internal/model"
	"bbdist/internal/mw"
)

type Deps struct {
	Log            *slog.Logger
	Auth           AuthService
	Tokens         TokenIssuer
	Parser         mw.TokenParser
	Orders         OrderService
	Shipments      ShipmentService
	Movements      MovementService
	Subscriptions  http.Handler
	AllowedOrigins []string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if d.Log != nil {
		r.Use(logger.LoggingMiddleware(d.Log))
	}

	// The subscription socket is long lived; it stays outside CORS and
	// the REST auth middleware and authenticates itself.
	if d.Subscriptions != nil {
		r.Handle("/graphql", d.Subscriptions)
	}

	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Authorization"},
			AllowCredentials: true,
			MaxAge:           300,
		}))

		r.Route("/v1", func(r chi.Router) {
			r.Get("/healthcheck", HealthcheckHandler())
			r.Post("/auth/register", RegisterHandler(d.Auth, d.Tokens))
			r.Post("/auth/login", LoginHandler(d.Auth, d.Tokens))

			r.Group(func(r chi.Router) {
				r.Use(mw.AuthMiddleware(d.Parser))

				r.With(mw.RequireRole(model.RoleSupervisor)).Post("/users", CreateUserHandler(d.Auth))

				r.Route("/orders", func(r chi.Router) {
					r.Get("/", ListOrdersHandler(d.Orders))
					r.Post("/", CreateOrderHandler(d.Orders))
					r.Get("/{id}", GetOrderHandler(d.Orders))
					r.Patch("/{id}/status", UpdateOrderStatusHandler(d.Orders))
					r.Post("/{id}/shipments", CreateShipmentHandler(d.Shipments))
					r.Get("/{id}/shipments", ListShipmentsHandler(d.Shipments))
				})

				r.Route("/shipments/{id}", func(r chi.Router) {
					r.Get("/", GetShipmentHandler(d.Shipments))
					r.Patch("/status", UpdateShipmentStatusHandler(d.Shipments))
					r.Get("/label", ShipmentLabelHandler(d.Shipments, d.Orders))
				})

				for path, kind := range map[string]model.MovementKind{
					"/returns":   model.MovementReturn,
					"/imports":   model.MovementImport,
					"/transfers": model.MovementTransfer,
				} {
					r.Get(path, ListMovementsHandler(kind, d.Movements))
					r.Post(path, RecordMovementHandler(kind, d.Movements))
				}
			})
		})
	})

	return r
}
