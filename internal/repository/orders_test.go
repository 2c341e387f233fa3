package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loadlab/internal/domain"
	"loadlab/internal/repository"
)

// fakeOrderRows replays order tuples through the pgx.Rows interface.
type fakeOrderRows struct {
	orders []domain.Order
	idx    int
}

func (r *fakeOrderRows) Close()                                       {}
func (r *fakeOrderRows) Err() error                                   { return nil }
func (r *fakeOrderRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeOrderRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeOrderRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeOrderRows) RawValues() [][]byte                          { return nil }
func (r *fakeOrderRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeOrderRows) Next() bool {
	if r.idx >= len(r.orders) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeOrderRows) Scan(dest ...any) error {
	if len(dest) != 4 {
		return errors.New("expected 4 columns")
	}
	o := r.orders[r.idx-1]
	*dest[0].(*int) = o.ID
	*dest[1].(*int) = o.UserID
	*dest[2].(*string) = o.Product
	*dest[3].(*float64) = o.Price
	return nil
}

type capturingQuerier struct {
	sql  string
	args []any
	rows pgx.Rows
	err  error
}

func (q *capturingQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.sql = sql
	q.args = args
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func TestInsertBatch_BuildsOneStatement(t *testing.T) {
	returned := []domain.Order{
		{ID: 1, UserID: 3, Product: "Laptop", Price: 499.99},
		{ID: 2, UserID: 7, Product: "Mouse", Price: 19.90},
	}
	q := &capturingQuerier{rows: &fakeOrderRows{orders: returned}}
	repo := repository.NewOrderRepository(q)

	inserted, err := repo.InsertBatch(context.Background(), []domain.Order{
		{UserID: 3, Product: "Laptop", Price: 499.99},
		{UserID: 7, Product: "Mouse", Price: 19.90},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO orders (user_id, product, price) VALUES "+
			"($1, $2, $3), ($4, $5, $6) RETURNING id, user_id, product, price",
		q.sql)
	assert.Equal(t, []any{3, "Laptop", 499.99, 7, "Mouse", 19.90}, q.args)
	assert.Equal(t, returned, inserted)
}

func TestInsertBatch_EmptyInput(t *testing.T) {
	q := &capturingQuerier{}
	repo := repository.NewOrderRepository(q)

	inserted, err := repo.InsertBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, inserted)
	assert.Empty(t, q.sql, "no statement issued for an empty batch")
}

func TestInsertBatch_QueryErrorWrapped(t *testing.T) {
	q := &capturingQuerier{err: errors.New("connection refused")}
	repo := repository.NewOrderRepository(q)

	_, err := repo.InsertBatch(context.Background(), []domain.Order{{UserID: 1, Product: "Dock", Price: 50}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert orders")
}
