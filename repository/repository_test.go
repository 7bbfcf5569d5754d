package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"bookledger/models"
	"bookledger/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var transactionCols = []string{"id", "user_id", "book_title", "amount", "notes", "created_at"}

func newMockRepo(t *testing.T) (repository.PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return repository.NewPostgresRepository(db), mock
}

func strPtr(s string) *string { return &s }

func TestPostgresRepository_GetUserByEmail(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		prepare func(sqlmock.Sqlmock)
		want    models.User
		wantErr error
	}{
		{
			name: "found",
			prepare: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=$1")).
					WithArgs("a@example.com").
					WillReturnRows(sqlmock.NewRows([]string{"id", "email", "hashed_password", "full_name", "created_at"}).
						AddRow(7, "a@example.com", "hash", "Alice", created))
			},
			want: models.User{ID: 7, Email: "a@example.com", PasswordHash: "hash", FullName: strPtr("Alice"), CreatedAt: created},
		},
		{
			name: "missing",
			prepare: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=$1")).
					WithArgs("ghost@example.com").
					WillReturnError(sql.ErrNoRows)
			},
			wantErr: models.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			tt.prepare(mock)

			email := tt.want.Email
			if email == "" {
				email = "ghost@example.com"
			}
			u, err := repo.GetUserByEmail(context.Background(), email)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, u)
		})
	}
}

func TestPostgresRepository_CreateUser(t *testing.T) {
	t.Run("inserted", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
			WithArgs("a@example.com", "hash", nil, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

		u, err := repo.CreateUser(context.Background(), "a@example.com", "hash", nil)
		require.NoError(t, err)
		require.Equal(t, 3, u.ID)
		require.Equal(t, "a@example.com", u.Email)
		require.Nil(t, u.FullName)
		require.False(t, u.CreatedAt.IsZero())
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
			WithArgs("a@example.com", "hash", "Alice", sqlmock.AnyArg()).
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

		_, err := repo.CreateUser(context.Background(), "a@example.com", "hash", strPtr("Alice"))
		require.ErrorIs(t, err, models.ErrDuplicateEmail)
	})

	t.Run("other failure passes through", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		boom := errors.New("connection reset")
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnError(boom)

		_, err := repo.CreateUser(context.Background(), "a@example.com", "hash", nil)
		require.ErrorIs(t, err, boom)
		require.NotErrorIs(t, err, models.ErrDuplicateEmail)
	})
}

func TestPostgresRepository_ListTransactions(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3")).
		WithArgs(1, 2, 0).
		WillReturnRows(sqlmock.NewRows(transactionCols).
			AddRow(5, 1, "Dune", "12.50", nil, now).
			AddRow(4, 1, "Emma", "-3.00", "refund", now.Add(-time.Minute)))

	items, err := repo.ListTransactions(context.Background(), 1, 0, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, 5, items[0].ID)
	require.True(t, decimal.RequireFromString("12.50").Equal(items[0].Amount))
	require.Nil(t, items[0].Notes)
	require.Equal(t, "refund", *items[1].Notes)
}

func TestPostgresRepository_CountTransactions(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM transactions WHERE user_id=$1")).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	n, err := repo.CountTransactions(context.Background(), 9)
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestPostgresRepository_SummarizeTransactions(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		total     interface{}
		wantTotal string
	}{
		{name: "with rows", count: 3, total: []byte("8.75"), wantTotal: "8.75"},
		{name: "empty ledger", count: 0, total: "0", wantTotal: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM transactions WHERE user_id=$1")).
				WithArgs(1).
				WillReturnRows(sqlmock.NewRows([]string{"count", "sum"}).AddRow(tt.count, tt.total))

			count, total, err := repo.SummarizeTransactions(context.Background(), 1)
			require.NoError(t, err)
			require.Equal(t, tt.count, count)
			require.True(t, decimal.RequireFromString(tt.wantTotal).Equal(total), total.String())
		})
	}
}

func TestPostgresRepository_CreateTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)
	amount := decimal.RequireFromString("10.00")
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs(1, "Dune", amount, "gift", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	tr, err := repo.CreateTransaction(context.Background(), models.Transaction{
		UserID:    1,
		BookTitle: "Dune",
		Amount:    amount,
		Notes:     strPtr("gift"),
	})
	require.NoError(t, err)
	require.Equal(t, 11, tr.ID)
	require.False(t, tr.CreatedAt.IsZero())
}

func TestPostgresRepository_GetTransaction_ScopedByOwner(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM transactions WHERE id=$1 AND user_id=$2")).
		WithArgs(11, 2).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetTransaction(context.Background(), 2, 11)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestPostgresRepository_UpdateTransaction(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("notes only", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE transactions SET")).
			WithArgs(11, 1, nil, nil, "x").
			WillReturnRows(sqlmock.NewRows(transactionCols).AddRow(11, 1, "Dune", "10.00", "x", now))

		tr, err := repo.UpdateTransaction(context.Background(), 1, 11, models.TransactionUpdate{Notes: strPtr("x")})
		require.NoError(t, err)
		require.Equal(t, "Dune", tr.BookTitle)
		require.Equal(t, "x", *tr.Notes)
	})

	t.Run("amount", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		amount := decimal.RequireFromString("-4.25")
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE transactions SET")).
			WithArgs(11, 1, nil, "-4.25", nil).
			WillReturnRows(sqlmock.NewRows(transactionCols).AddRow(11, 1, "Dune", "-4.25", nil, now))

		tr, err := repo.UpdateTransaction(context.Background(), 1, 11, models.TransactionUpdate{Amount: &amount})
		require.NoError(t, err)
		require.True(t, amount.Equal(tr.Amount))
	})

	t.Run("foreign id", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE id=$1 AND user_id=$2")).
			WithArgs(11, 2, "stolen", nil, nil).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.UpdateTransaction(context.Background(), 2, 11, models.TransactionUpdate{BookTitle: strPtr("stolen")})
		require.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestPostgresRepository_DeleteTransaction(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "deleted", affected: 1},
		{name: "missing or foreign", affected: 0, wantErr: models.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			mock.ExpectExec(regexp.QuoteMeta("DELETE FROM transactions WHERE id=$1 AND user_id=$2")).
				WithArgs(11, 1).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.DeleteTransaction(context.Background(), 1, 11)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
