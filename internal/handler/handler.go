package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"bbdist/internal/httpio"
	"bbdist/internal/model"
	"bbdist/internal/service"
)

type AuthService interface {
	Register(ctx context.Context, login, password string, roles []string) (*model.User, error)
	Authenticate(ctx context.Context, login, password string) (*model.User, error)
}

type TokenIssuer interface {
	Issue(subject string, roles []string) (string, error)
}

type OrderService interface {
	Create(ctx context.Context, order model.Order) (*model.Order, error)
	Get(ctx context.Context, id string) (*model.Order, error)
	List(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error)
	UpdateStatus(ctx context.Context, id string, to model.OrderStatus) (*model.Order, error)
}

type ShipmentService interface {
	CreateForOrder(ctx context.Context, orderID string) (*model.Shipment, error)
	Get(ctx context.Context, id string) (*model.Shipment, error)
	ListByOrder(ctx context.Context, orderID string) ([]model.Shipment, error)
	UpdateStatus(ctx context.Context, id string, to model.ShipmentStatus) (*model.Shipment, error)
}

type MovementService interface {
	Record(ctx context.Context, m model.Movement) (*model.Movement, error)
	List(ctx context.Context, kind model.MovementKind, limit int) ([]model.Movement, error)
}

type statusRequest struct {
	Status string `json:"status"`
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		_ = httpio.NotFoundResponse(w)
	case errors.Is(err, service.ErrInvalidTransition):
		_ = httpio.ErrorResponse(w, http.StatusConflict, err.Error())
	default:
		slog.Error(op+" failed", "error", err)
		_ = httpio.InternalServerErrorResponse(w)
	}
}

// writeList answers 204 for an empty collection.
func writeList[T any](w http.ResponseWriter, items []T) {
	if len(items) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := httpio.WriteJSON(w, http.StatusOK, items); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 || n > 500 {
		return 100
	}
	return n
}

func HealthcheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = httpio.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
