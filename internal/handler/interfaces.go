package handler

import (
	"context"

	"loadlab/internal/domain"
)

type UserStore interface {
	List(ctx context.Context) ([]domain.User, error)
	FilterByAge(ctx context.Context, age int) ([]domain.User, error)
}

type OrderStore interface {
	InsertBatch(ctx context.Context, orders []domain.Order) ([]domain.Order, error)
}
