package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bbdist/internal/model"
)

func TestCreateOrderSendsBearerAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			http.Error(w, "wrong route", http.StatusTeapot)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "no auth", http.StatusUnauthorized)
			return
		}
		var in model.Order
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		in.ID = "o-1"
		in.Status = model.OrderOpen
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(in)
	}))
	defer srv.Close()

	c := NewHTTP(srv.URL+"/", "tok")
	got, err := c.CreateOrder(context.Background(), "St. Mary", model.PriorityASAP,
		[]model.OrderItem{{ProductFamily: "PLASMA", BloodType: "A+", Quantity: 1}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.ID != "o-1" || got.Facility != "St. Mary" || got.Priority != model.PriorityASAP {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestErrorsAreTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/orders/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"invalid status transition"}`))
		}
	}))
	defer srv.Close()

	c := NewHTTP(srv.URL, "")
	if _, err := c.GetOrder(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err := c.SetOrderStatus(context.Background(), "o-1", model.OrderCompleted)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict || apiErr.Message != "invalid status transition" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestListNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transfers" {
			http.Error(w, "wrong route", http.StatusTeapot)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	got, err := NewHTTP(srv.URL, "").ListMovements(context.Background(), model.MovementTransfer)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty list, got %v %v", got, err)
	}
	if _, err := NewHTTP(srv.URL, "").ListMovements(context.Background(), "LOAN"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestShipmentLabelReturnsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("SHIP TO: St. Mary\n"))
	}))
	defer srv.Close()

	got, err := NewHTTP(srv.URL, "").ShipmentLabel(context.Background(), "s-1")
	if err != nil || got != "SHIP TO: St. Mary\n" {
		t.Fatalf("unexpected label %q err %v", got, err)
	}
}
