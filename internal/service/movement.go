package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bbdist/internal/events"
	"bbdist/internal/model"
)

// MovementService records returns, imports and transfers of blood units.
type MovementService struct {
	db     *sql.DB
	events events.Publisher
}

func NewMovementService(db *sql.DB, pub events.Publisher) *MovementService {
	return &MovementService{db: db, events: pub}
}

func (s *MovementService) Record(ctx context.Context, m model.Movement) (*model.Movement, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO movements (kind, unit_number, product_code, from_location, to_location, reason, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		m.Kind, m.UnitNumber, m.ProductCode, m.From, m.To, m.Reason, m.CreatedBy, time.Now().UTC(),
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert movement: %w", err)
	}

	s.events.Publish(events.New(events.MovementRecorded, m))
	return &m, nil
}

func (s *MovementService) List(ctx context.Context, kind model.MovementKind, limit int) ([]model.Movement, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, unit_number, product_code, from_location, to_location, reason, created_by, created_at
		FROM movements
		WHERE kind = $1
		ORDER BY created_at DESC
		LIMIT $2`, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	var out []model.Movement
	for rows.Next() {
		var m model.Movement
		if err := rows.Scan(&m.ID, &m.Kind, &m.UnitNumber, &m.ProductCode, &m.From, &m.To, &m.Reason, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		out = append(out, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return out, nil
}
