package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"bbdist/internal/config"
	"bbdist/internal/database"
	"bbdist/internal/events"
	"bbdist/internal/gqlws"
	"bbdist/internal/handler"
	"bbdist/internal/logger"
	"bbdist/internal/model"
	"bbdist/internal/service"
	"bbdist/internal/token"
	"bbdist/internal/worker"
)

func main() {
	log := logger.NewLogger("distd")
	slog.SetDefault(log)

	cfg, err := config.New()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	if err := run(cfg, log); err != nil {
		log.Error("distd failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.JWTSecret == config.DefaultSecret {
		log.Warn("using the built-in development jwt secret", "env", config.EnvJWTSecret)
	}
	issuer, err := token.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	db, err := database.NewDB(ctx, cfg.DatabaseURI)
	if err != nil {
		return err
	}
	defer database.CloseDB(db)

	if err := database.InitSchema(ctx, db); err != nil {
		return err
	}

	hub := events.NewHub()

	// Services
	authSvc := service.NewAuthService(db)
	orderSvc := service.NewOrderService(db, hub)
	shipmentSvc := service.NewShipmentService(db, orderSvc, hub)
	movementSvc := service.NewMovementService(db, hub)

	if cfg.SupervisorLogin != "" && cfg.SupervisorPassword != "" {
		_, err := authSvc.Register(ctx, cfg.SupervisorLogin, cfg.SupervisorPassword, []string{model.RoleSupervisor})
		switch {
		case err == nil:
			log.Info("seeded supervisor account", "login", cfg.SupervisorLogin)
		case errors.Is(err, service.ErrLoginTaken):
		default:
			return err
		}
	}

	// Worker
	fulfillment := worker.NewFulfillmentWorker(orderSvc, shipmentSvc, cfg.PollInterval)

	router := handler.NewRouter(handler.Deps{
		Log:            log,
		Auth:           authSvc,
		Tokens:         issuer,
		Parser:         issuer,
		Orders:         orderSvc,
		Shipments:      shipmentSvc,
		Movements:      movementSvc,
		Subscriptions:  gqlws.NewHandler(issuer, hub, events.Topics),
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:        cfg.RunAddress,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fulfillment.Start(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("starting server", "addr", cfg.RunAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")

		ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShut()
		return srv.Shutdown(ctxShut)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
