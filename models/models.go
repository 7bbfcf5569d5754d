package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           int
	Email        string
	PasswordHash string
	FullName     *string
	CreatedAt    time.Time
}

// Transaction is a ledger entry owned by exactly one user. A positive Amount
// is a purchase, a negative one a refund.
type Transaction struct {
	ID        int
	UserID    int
	BookTitle string
	Amount    decimal.Decimal
	Notes     *string
	CreatedAt time.Time
}

// TransactionUpdate carries the fields of a partial update. Nil means the
// column keeps its current value.
type TransactionUpdate struct {
	BookTitle *string
	Amount    *decimal.Decimal
	Notes     *string
}
