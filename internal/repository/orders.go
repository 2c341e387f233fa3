package repository

import (
	"context"
	"fmt"
	"strings"

	"loadlab/internal/domain"
	"loadlab/internal/querytrace"
)

type OrderRepository struct {
	q querytrace.Querier
}

func NewOrderRepository(q querytrace.Querier) *OrderRepository {
	return &OrderRepository{q: q}
}

// InsertBatch persists the generated orders in one statement and returns
// them with their assigned ids. No dedup: repeated calls insert new rows.
func (r *OrderRepository) InsertBatch(ctx context.Context, orders []domain.Order) ([]domain.Order, error) {
	if len(orders) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO orders (user_id, product, price) VALUES ")
	args := make([]any, 0, len(orders)*3)
	for i, o := range orders {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3)
		args = append(args, o.UserID, o.Product, o.Price)
	}
	sb.WriteString(" RETURNING id, user_id, product, price")

	rows, err := r.q.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert orders: %w", err)
	}
	defer rows.Close()

	inserted := make([]domain.Order, 0, len(orders))
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Product, &o.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		inserted = append(inserted, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inserted orders: %w", err)
	}
	return inserted, nil
}
