package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bbdist/internal/httpio"
	"bbdist/internal/model"
	"bbdist/internal/mw"
)

type createOrderRequest struct {
	Facility string            `json:"facility"`
	Priority model.Priority    `json:"priority"`
	Items    []model.OrderItem `json:"items"`
}

func CreateOrderHandler(orders OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := httpio.Decode(r.Body, &req); err != nil {
			_ = httpio.BadRequestResponse(w, "invalid json")
			return
		}
		if req.Priority == "" {
			req.Priority = model.PriorityRoutine
		}

		order := model.Order{Facility: req.Facility, Priority: req.Priority, Items: req.Items}
		if claims, ok := mw.ClaimsFrom(r.Context()); ok {
			order.CreatedBy = claims.Subject
		}
		if err := order.Validate(); err != nil {
			_ = httpio.FailedValidationResponse(w, err)
			return
		}

		created, err := orders.Create(r.Context(), order)
		if err != nil {
			writeServiceError(w, "order create", err)
			return
		}
		slog.Info("order created", "number", created.Number, "facility", created.Facility, "priority", created.Priority)
		_ = httpio.WriteJSON(w, http.StatusCreated, created)
	}
}

func ListOrdersHandler(orders OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := model.OrderStatus(r.URL.Query().Get("status"))
		if status != "" && !status.Valid() {
			_ = httpio.BadRequestResponse(w, "unknown status "+string(status))
			return
		}

		list, err := orders.List(r.Context(), status, limitParam(r))
		if err != nil {
			writeServiceError(w, "order list", err)
			return
		}
		writeList(w, list)
	}
}

func GetOrderHandler(orders OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := orders.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, "order get", err)
			return
		}
		_ = httpio.WriteJSON(w, http.StatusOK, order)
	}
}

// UpdateOrderStatusHandler only lets supervisors cancel orders.
func UpdateOrderStatusHandler(orders OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req statusRequest
		if err := httpio.Decode(r.Body, &req); err != nil {
			_ = httpio.BadRequestResponse(w, "invalid json")
			return
		}
		to := model.OrderStatus(req.Status)
		if !to.Valid() {
			_ = httpio.FailedValidationResponse(w, errUnknownStatus(req.Status))
			return
		}
		if to == model.OrderCancelled {
			claims, ok := mw.ClaimsFrom(r.Context())
			if !ok || !claims.HasRole(model.RoleSupervisor) {
				_ = httpio.ErrorResponse(w, http.StatusForbidden, "cancelling an order requires "+model.RoleSupervisor)
				return
			}
		}

		order, err := orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), to)
		if err != nil {
			writeServiceError(w, "order status", err)
			return
		}
		_ = httpio.WriteJSON(w, http.StatusOK, order)
	}
}
