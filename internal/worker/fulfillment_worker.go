package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bbdist/internal/model"
)

type OrderSource interface {
	ListInProgress(ctx context.Context, afterID string, limit int) ([]model.Order, error)
	UpdateStatus(ctx context.Context, id string, to model.OrderStatus) (*model.Order, error)
}

type ShipmentChecker interface {
	AllShipped(ctx context.Context, orderID string) (bool, error)
}

// FulfillmentWorker completes in-progress orders once every shipment for
// them has shipped.
type FulfillmentWorker struct {
	orders    OrderSource
	shipments ShipmentChecker
	interval  time.Duration
	batchSize int
}

func NewFulfillmentWorker(orders OrderSource, shipments ShipmentChecker, interval time.Duration) *FulfillmentWorker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &FulfillmentWorker{
		orders:    orders,
		shipments: shipments,
		interval:  interval,
		batchSize: 50,
	}
}

func (w *FulfillmentWorker) Start(ctx context.Context) {
	slog.Info("starting fulfillment worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("fulfillment worker stopped")
			return
		case <-ticker.C:
			if _, err := w.ProcessBatch(ctx); err != nil {
				slog.Error("batch processing failed", "error", err)
			}
		}
	}
}

// ProcessBatch sweeps every in-progress order page by page and returns how
// many it completed.
func (w *FulfillmentWorker) ProcessBatch(ctx context.Context) (int, error) {
	completed := 0
	after := ""
	for {
		orders, err := w.orders.ListInProgress(ctx, after, w.batchSize)
		if err != nil {
			return completed, fmt.Errorf("get in-progress orders: %w", err)
		}

		for _, order := range orders {
			if w.complete(ctx, order) {
				completed++
			}
		}

		if len(orders) < w.batchSize || ctx.Err() != nil {
			return completed, nil
		}
		after = orders[len(orders)-1].ID
	}
}

func (w *FulfillmentWorker) complete(ctx context.Context, order model.Order) bool {
	done, err := w.shipments.AllShipped(ctx, order.ID)
	if err != nil {
		slog.Error("failed to check shipments", "order", order.Number, "error", err)
		return false
	}
	if !done {
		return false
	}

	if _, err := w.orders.UpdateStatus(ctx, order.ID, model.OrderCompleted); err != nil {
		slog.Error("failed to complete order", "order", order.Number, "error", err)
		return false
	}
	slog.Info("order completed", "number", order.Number)
	return true
}
