package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bbdist/internal/events"
	"bbdist/internal/model"
)

type ShipmentService struct {
	db     *sql.DB
	orders *OrderService
	events events.Publisher
}

func NewShipmentService(db *sql.DB, orders *OrderService, pub events.Publisher) *ShipmentService {
	return &ShipmentService{db: db, orders: orders, events: pub}
}

// CreateForOrder builds a pick list from the order lines and moves an open
// order into IN_PROGRESS.
func (s *ShipmentService) CreateForOrder(ctx context.Context, orderID string) (*model.Shipment, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	status, err := lockOrderStatus(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if status != model.OrderOpen && status != model.OrderInProgress {
		return nil, fmt.Errorf("%w: cannot ship %s order", ErrInvalidTransition, status)
	}

	now := time.Now().UTC()
	sh := model.Shipment{
		OrderID: orderID,
		Status:  model.ShipmentPicking,
		Items:   model.BuildPickList(order.Items),
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO shipments (order_id, status, created_at, updated_at) VALUES ($1, $2, $3, $3) RETURNING id, created_at, updated_at`,
		orderID, sh.Status, now,
	).Scan(&sh.ID, &sh.CreatedAt, &sh.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert shipment: %w", err)
	}
	for i, it := range sh.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO shipment_items (shipment_id, line, product_family, blood_type, quantity) VALUES ($1, $2, $3, $4, $5)`,
			sh.ID, i+1, it.ProductFamily, it.BloodType, it.Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("insert shipment item: %w", err)
		}
	}

	started := status == model.OrderOpen
	if started {
		if err := setOrderStatus(ctx, tx, orderID, model.OrderInProgress); err != nil {
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.events.Publish(events.New(events.ShipmentCreated, sh))
	if started {
		order.Status = model.OrderInProgress
		order.UpdatedAt = now
		s.events.Publish(events.New(events.OrderStatusChanged, order))
	}
	return &sh, nil
}

func (s *ShipmentService) Get(ctx context.Context, id string) (*model.Shipment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var sh model.Shipment
	err := s.db.QueryRowContext(ctx,
		`SELECT id, order_id, status, created_at, updated_at FROM shipments WHERE id = $1`, id,
	).Scan(&sh.ID, &sh.OrderID, &sh.Status, &sh.CreatedAt, &sh.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get shipment: %w", err)
	}
	if sh.Items, err = s.loadItems(ctx, sh.ID); err != nil {
		return nil, err
	}
	return &sh, nil
}

func (s *ShipmentService) ListByOrder(ctx context.Context, orderID string) ([]model.Shipment, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, status, created_at, updated_at FROM shipments WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query shipments: %w", err)
	}
	defer rows.Close()

	var shipments []model.Shipment
	for rows.Next() {
		var sh model.Shipment
		if err := rows.Scan(&sh.ID, &sh.OrderID, &sh.Status, &sh.CreatedAt, &sh.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan shipment: %w", err)
		}
		shipments = append(shipments, sh)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	rows.Close()

	for i := range shipments {
		if shipments[i].Items, err = s.loadItems(ctx, shipments[i].ID); err != nil {
			return nil, err
		}
	}
	return shipments, nil
}

func (s *ShipmentService) UpdateStatus(ctx context.Context, id string, to model.ShipmentStatus) (*model.Shipment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var from model.ShipmentStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM shipments WHERE id = $1 FOR UPDATE`, id).Scan(&from)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock shipment: %w", err)
	}
	if !model.CanAdvance(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	_, err = tx.ExecContext(ctx, `UPDATE shipments SET status = $1, updated_at = $2 WHERE id = $3`, to, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("update shipment: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	sh, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.events.Publish(events.New(events.ShipmentStatusChanged, sh))
	return sh, nil
}

// AllShipped reports whether the order has shipments and every one of them
// has shipped.
func (s *ShipmentService) AllShipped(ctx context.Context, orderID string) (bool, error) {
	var total, shipped int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = $2)
		FROM shipments WHERE order_id = $1`, orderID, model.ShipmentShipped,
	).Scan(&total, &shipped)
	if err != nil {
		return false, fmt.Errorf("count shipments: %w", err)
	}
	return total > 0 && total == shipped, nil
}

func (s *ShipmentService) loadItems(ctx context.Context, shipmentID string) ([]model.PickItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_family, blood_type, quantity FROM shipment_items WHERE shipment_id = $1 ORDER BY line`, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("query shipment items: %w", err)
	}
	defer rows.Close()

	items := []model.PickItem{}
	for rows.Next() {
		var it model.PickItem
		if err := rows.Scan(&it.ProductFamily, &it.BloodType, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan shipment item: %w", err)
		}
		items = append(items, it)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return items, nil
}
