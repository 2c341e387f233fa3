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

// fakeUserRows replays user tuples through the pgx.Rows interface.
type fakeUserRows struct {
	users []domain.User
	idx   int
	err   error
}

func (r *fakeUserRows) Close()                                       {}
func (r *fakeUserRows) Err() error                                   { return r.err }
func (r *fakeUserRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeUserRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeUserRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeUserRows) RawValues() [][]byte                          { return nil }
func (r *fakeUserRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeUserRows) Next() bool {
	if r.idx >= len(r.users) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeUserRows) Scan(dest ...any) error {
	if len(dest) != 4 {
		return errors.New("expected 4 columns")
	}
	u := r.users[r.idx-1]
	*dest[0].(*int) = u.ID
	*dest[1].(*string) = u.Name
	*dest[2].(*string) = u.Email
	*dest[3].(*int) = u.Age
	return nil
}

func TestList_StatementAndMapping(t *testing.T) {
	returned := []domain.User{
		{ID: 1, Name: "Alice", Email: "Alice1@example.com", Age: 20},
		{ID: 2, Name: "Bob", Email: "Bob2@example.com", Age: 25},
	}
	q := &capturingQuerier{rows: &fakeUserRows{users: returned}}
	repo := repository.NewUserRepository(q)

	users, err := repo.List(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, name, email, age FROM users ORDER BY id", q.sql)
	assert.Empty(t, q.args)
	assert.Equal(t, returned, users)
}

func TestList_QueryErrorWrapped(t *testing.T) {
	q := &capturingQuerier{err: errors.New("connection refused")}
	repo := repository.NewUserRepository(q)

	_, err := repo.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list users")
}

func TestList_RowsErrSurfaced(t *testing.T) {
	q := &capturingQuerier{rows: &fakeUserRows{err: errors.New("read timeout")}}
	repo := repository.NewUserRepository(q)

	_, err := repo.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read timeout")
}

func TestFilterByAge_StatementAndThreshold(t *testing.T) {
	returned := []domain.User{
		{ID: 2, Name: "Bob", Email: "Bob2@example.com", Age: 45},
	}
	q := &capturingQuerier{rows: &fakeUserRows{users: returned}}
	repo := repository.NewUserRepository(q)

	users, err := repo.FilterByAge(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, name, email, age FROM users WHERE age > $1 ORDER BY id", q.sql)
	assert.Equal(t, []any{30}, q.args)
	assert.Equal(t, returned, users)
}

func TestFilterByAge_NoMatches(t *testing.T) {
	q := &capturingQuerier{rows: &fakeUserRows{}}
	repo := repository.NewUserRepository(q)

	users, err := repo.FilterByAge(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, users)
}
