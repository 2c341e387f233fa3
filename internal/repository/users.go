package repository

import (
	"context"
	"fmt"

	"loadlab/internal/domain"
	"loadlab/internal/querytrace"
)

type UserRepository struct {
	q querytrace.Querier
}

func NewUserRepository(q querytrace.Querier) *UserRepository {
	return &UserRepository{q: q}
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.q.Query(ctx, "SELECT id, name, email, age FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Age); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) FilterByAge(ctx context.Context, age int) ([]domain.User, error) {
	rows, err := r.q.Query(ctx, "SELECT id, name, email, age FROM users WHERE age > $1 ORDER BY id", age)
	if err != nil {
		return nil, fmt.Errorf("failed to filter users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Age); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}
	return users, nil
}
