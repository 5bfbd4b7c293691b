package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"bbdist/internal/model"
)

type stubOrders struct {
	inProgress []model.Order
	updated    map[string]model.OrderStatus
	listErr    error
}

// ListInProgress pages by id like the Postgres implementation.
func (s *stubOrders) ListInProgress(ctx context.Context, afterID string, limit int) ([]model.Order, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var page []model.Order
	for _, o := range s.inProgress {
		if o.ID > afterID && len(page) < limit {
			page = append(page, o)
		}
	}
	return page, nil
}

func (s *stubOrders) UpdateStatus(ctx context.Context, id string, to model.OrderStatus) (*model.Order, error) {
	if s.updated == nil {
		s.updated = map[string]model.OrderStatus{}
	}
	s.updated[id] = to
	return &model.Order{ID: id, Status: to}, nil
}

type stubShipments map[string]bool

func (s stubShipments) AllShipped(ctx context.Context, orderID string) (bool, error) {
	done, ok := s[orderID]
	if !ok {
		return false, errors.New("boom")
	}
	return done, nil
}

func TestProcessBatchCompletesShippedOrders(t *testing.T) {
	orders := &stubOrders{inProgress: []model.Order{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	w := NewFulfillmentWorker(orders, stubShipments{"a": true, "b": false}, time.Second)

	n, err := w.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 completed order, got %d", n)
	}
	if orders.updated["a"] != model.OrderCompleted || len(orders.updated) != 1 {
		t.Fatalf("unexpected updates: %v", orders.updated)
	}
}

func TestProcessBatchReachesOrdersPastFirstPage(t *testing.T) {
	shipments := stubShipments{}
	orders := &stubOrders{}
	for i := 0; i < 120; i++ {
		id := fmt.Sprintf("o-%03d", i)
		orders.inProgress = append(orders.inProgress, model.Order{ID: id})
		shipments[id] = false
	}
	shipments["o-119"] = true

	w := NewFulfillmentWorker(orders, shipments, time.Second)
	n, err := w.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if n != 1 || orders.updated["o-119"] != model.OrderCompleted {
		t.Fatalf("order beyond the first page not completed: n=%d updates=%v", n, orders.updated)
	}
}

func TestProcessBatchListError(t *testing.T) {
	w := NewFulfillmentWorker(&stubOrders{listErr: errors.New("db down")}, stubShipments{}, 0)
	if _, err := w.ProcessBatch(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	w := NewFulfillmentWorker(&stubOrders{}, stubShipments{}, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop")
	}
}
