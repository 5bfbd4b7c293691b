package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bbdist/internal/httpio"
	"bbdist/internal/label"
	"bbdist/internal/model"
)

func errUnknownStatus(s string) error {
	return fmt.Errorf("status: unknown value %q", s)
}

func CreateShipmentHandler(shipments ShipmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sh, err := shipments.CreateForOrder(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, "shipment create", err)
			return
		}
		_ = httpio.WriteJSON(w, http.StatusCreated, sh)
	}
}

func ListShipmentsHandler(shipments ShipmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := shipments.ListByOrder(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, "shipment list", err)
			return
		}
		writeList(w, list)
	}
}

func GetShipmentHandler(shipments ShipmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sh, err := shipments.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, "shipment get", err)
			return
		}
		_ = httpio.WriteJSON(w, http.StatusOK, sh)
	}
}

func UpdateShipmentStatusHandler(shipments ShipmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req statusRequest
		if err := httpio.Decode(r.Body, &req); err != nil {
			_ = httpio.BadRequestResponse(w, "invalid json")
			return
		}
		to := model.ShipmentStatus(req.Status)
		if !to.Valid() {
			_ = httpio.FailedValidationResponse(w, errUnknownStatus(req.Status))
			return
		}

		sh, err := shipments.UpdateStatus(r.Context(), chi.URLParam(r, "id"), to)
		if err != nil {
			writeServiceError(w, "shipment status", err)
			return
		}
		_ = httpio.WriteJSON(w, http.StatusOK, sh)
	}
}

func ShipmentLabelHandler(shipments ShipmentService, orders OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sh, err := shipments.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, "shipment label", err)
			return
		}
		order, err := orders.Get(r.Context(), sh.OrderID)
		if err != nil {
			writeServiceError(w, "shipment label order", err)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_ = label.Render(w, *sh, *order)
	}
}
