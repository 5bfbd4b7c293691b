package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bbdist/internal/events"
	"bbdist/internal/model"
)

type OrderService struct {
	db     *sql.DB
	events events.Publisher
}

func NewOrderService(db *sql.DB, pub events.Publisher) *OrderService {
	return &OrderService{db: db, events: pub}
}

// NewOrderNumber formats a human readable order number, e.g. ORD-20260102-1A2B3C.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}

func (s *OrderService) Create(ctx context.Context, order model.Order) (*model.Order, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	order.Number = NewOrderNumber(now)
	order.Status = model.OrderOpen

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (number, facility, priority, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id, created_at, updated_at`,
		order.Number, order.Facility, order.Priority, order.Status, order.CreatedBy, now,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for i, it := range order.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, line, product_family, blood_type, quantity) VALUES ($1, $2, $3, $4, $5)`,
			order.ID, i+1, it.ProductFamily, it.BloodType, it.Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.events.Publish(events.New(events.OrderCreated, order))
	return &order, nil
}

func (s *OrderService) Get(ctx context.Context, id string) (*model.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var o model.Order
	err := s.db.QueryRowContext(ctx, `
		SELECT id, number, facility, priority, status, created_by, created_at, updated_at
		FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.Number, &o.Facility, &o.Priority, &o.Status, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if o.Items, err = s.loadItems(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns orders newest first; an empty status lists all of them.
func (s *OrderService) List(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, number, facility, priority, status, created_by, created_at, updated_at
		FROM orders
		WHERE $1 = '' OR status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].Items, err = s.loadItems(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// ListInProgress pages through orders still being fulfilled in id order.
// Pass the last id of the previous page as afterID, or "" to start.
func (s *OrderService) ListInProgress(ctx context.Context, afterID string, limit int) ([]model.Order, error) {
	if afterID == "" {
		afterID = uuid.Nil.String()
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, number, facility, priority, status, created_by, created_at, updated_at
		FROM orders
		WHERE status = $1 AND id > $2::uuid
		ORDER BY id
		LIMIT $3
	`, model.OrderInProgress, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("query in-progress orders: %w", err)
	}
	return scanOrders(rows)
}

func (s *OrderService) UpdateStatus(ctx context.Context, id string, to model.OrderStatus) (*model.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	from, err := lockOrderStatus(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if err := setOrderStatus(ctx, tx, id, to); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.events.Publish(events.New(events.OrderStatusChanged, order))
	return order, nil
}

func lockOrderStatus(ctx context.Context, tx *sql.Tx, id string) (model.OrderStatus, error) {
	var status model.OrderStatus
	err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("lock order: %w", err)
	}
	return status, nil
}

func setOrderStatus(ctx context.Context, tx *sql.Tx, id string, status model.OrderStatus) error {
	_, err := tx.ExecContext(ctx, `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

func (s *OrderService) loadItems(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_family, blood_type, quantity FROM order_items WHERE order_id = $1 ORDER BY line`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := []model.OrderItem{}
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ProductFamily, &it.BloodType, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return items, nil
}

func scanOrders(rows *sql.Rows) ([]model.Order, error) {
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.Number, &o.Facility, &o.Priority, &o.Status, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return orders, nil
}
