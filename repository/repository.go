package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookledger/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const uniqueViolation pq.ErrorCode = "23505"

const transactionColumns = "id, user_id, book_title, amount, notes, created_at"

// PostgresRepository scopes every transaction query by user_id so that a
// foreign id behaves exactly like a missing one.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) PostgresRepository {
	return PostgresRepository{db: db}
}

func (r PostgresRepository) GetUserByEmail(
	ctx context.Context,
	email string,
) (models.User, error) {
	row := r.db.QueryRowContext(
		ctx,
		"SELECT id, email, hashed_password, full_name, created_at FROM users WHERE email=$1",
		email,
	)
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, models.ErrNotFound
		}
		return models.User{}, err
	}
	return u, nil
}

func (r PostgresRepository) CreateUser(
	ctx context.Context,
	email, passwordHash string,
	fullName *string,
) (models.User, error) {
	u := models.User{
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     fullName,
		CreatedAt:    time.Now().UTC(),
	}
	err := r.db.QueryRowContext(
		ctx,
		"INSERT INTO users (email, hashed_password, full_name, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id",
		u.Email, u.PasswordHash, u.FullName, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.User{}, models.ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

func (r PostgresRepository) CountTransactions(
	ctx context.Context,
	userID int,
) (int, error) {
	var count int
	err := r.db.QueryRowContext(
		ctx,
		"SELECT COUNT(*) FROM transactions WHERE user_id=$1",
		userID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r PostgresRepository) ListTransactions(
	ctx context.Context,
	userID, skip, limit int,
) ([]models.Transaction, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE user_id=$1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, skip,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r PostgresRepository) SummarizeTransactions(
	ctx context.Context,
	userID int,
) (int, decimal.Decimal, error) {
	var (
		count int
		total decimal.Decimal
	)
	err := r.db.QueryRowContext(
		ctx,
		"SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM transactions WHERE user_id=$1",
		userID,
	).Scan(&count, &total)
	if err != nil {
		return 0, decimal.Zero, err
	}
	return count, total, nil
}

func (r PostgresRepository) CreateTransaction(
	ctx context.Context,
	t models.Transaction,
) (models.Transaction, error) {
	t.CreatedAt = time.Now().UTC()
	err := r.db.QueryRowContext(
		ctx,
		"INSERT INTO transactions (user_id, book_title, amount, notes, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id",
		t.UserID, t.BookTitle, t.Amount, t.Notes, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return models.Transaction{}, err
	}
	return t, nil
}

func (r PostgresRepository) GetTransaction(
	ctx context.Context,
	userID, id int,
) (models.Transaction, error) {
	row := r.db.QueryRowContext(
		ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id=$1 AND user_id=$2",
		id, userID,
	)
	return notFound(scanTransaction(row))
}

// UpdateTransaction applies only the non-nil fields of upd in a single
// statement.
func (r PostgresRepository) UpdateTransaction(
	ctx context.Context,
	userID, id int,
	upd models.TransactionUpdate,
) (models.Transaction, error) {
	row := r.db.QueryRowContext(
		ctx,
		`UPDATE transactions SET
		   book_title = COALESCE($3::text, book_title),
		   amount     = COALESCE($4::numeric, amount),
		   notes      = COALESCE($5::text, notes)
		 WHERE id=$1 AND user_id=$2
		 RETURNING `+transactionColumns,
		id, userID, upd.BookTitle, decimalOrNull(upd.Amount), upd.Notes,
	)
	return notFound(scanTransaction(row))
}

func (r PostgresRepository) DeleteTransaction(
	ctx context.Context,
	userID, id int,
) error {
	res, err := r.db.ExecContext(
		ctx,
		"DELETE FROM transactions WHERE id=$1 AND user_id=$2",
		id, userID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (models.Transaction, error) {
	var t models.Transaction
	err := s.Scan(
		&t.ID,
		&t.UserID,
		&t.BookTitle,
		&t.Amount,
		&t.Notes,
		&t.CreatedAt,
	)
	if err != nil {
		return models.Transaction{}, err
	}
	return t, nil
}

func notFound(t models.Transaction, err error) (models.Transaction, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, models.ErrNotFound
	}
	return t, err
}

func decimalOrNull(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
