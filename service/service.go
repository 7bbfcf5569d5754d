package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bookledger/auth"
	"bookledger/models"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=./mocks/mock_repository.go -package=mocks bookledger/service Repository

type Repository interface {
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	CreateUser(ctx context.Context, email, passwordHash string, fullName *string) (models.User, error)
	CountTransactions(ctx context.Context, userID int) (int, error)
	ListTransactions(ctx context.Context, userID, skip, limit int) ([]models.Transaction, error)
	SummarizeTransactions(ctx context.Context, userID int) (int, decimal.Decimal, error)
	CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error)
	GetTransaction(ctx context.Context, userID, id int) (models.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, id int, upd models.TransactionUpdate) (models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id int) error
}

var (
	ErrBadCredentials    = errors.New("incorrect email or password")
	ErrUnauthorized      = errors.New("could not validate credentials")
	ErrInvalidPagination = errors.New("invalid pagination")
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

type Service struct {
	repo   Repository
	hasher auth.PasswordHasher
	tokens *auth.TokenService
}

func NewService(repo Repository, hasher auth.PasswordHasher, tokens *auth.TokenService) Service {
	return Service{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
	}
}

type TransactionPage struct {
	Items []models.Transaction
	Total int
}

type TransactionSummary struct {
	Count       int
	TotalAmount decimal.Decimal
}

func (s Service) Register(
	ctx context.Context,
	email, password string,
	fullName *string,
) (models.User, error) {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.repo.CreateUser(ctx, email, hashed, fullName)
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Login does not reveal whether the email or the password was wrong.
func (s Service) Login(
	ctx context.Context,
	email, password string,
) (string, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", ErrBadCredentials
		}
		return "", err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return "", ErrBadCredentials
	}
	token, err := s.tokens.Issue(user.Email, 0)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// ResolveUser maps a bearer token to its user. Both an invalid token and a
// user deleted after issuance yield ErrUnauthorized.
func (s Service) ResolveUser(
	ctx context.Context,
	token string,
) (models.User, error) {
	email, err := s.tokens.Validate(token)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.User{}, ErrUnauthorized
		}
		return models.User{}, err
	}
	return user, nil
}

func (s Service) ListTransactions(
	ctx context.Context,
	owner models.User,
	skip, limit int,
) (TransactionPage, error) {
	if skip < 0 {
		return TransactionPage{}, fmt.Errorf("%w: skip must be >= 0", ErrInvalidPagination)
	}
	if limit < 1 || limit > MaxLimit {
		return TransactionPage{}, fmt.Errorf("%w: limit must be within [1, %d]", ErrInvalidPagination, MaxLimit)
	}
	total, err := s.repo.CountTransactions(ctx, owner.ID)
	if err != nil {
		return TransactionPage{}, err
	}
	items, err := s.repo.ListTransactions(ctx, owner.ID, skip, limit)
	if err != nil {
		return TransactionPage{}, err
	}
	return TransactionPage{Items: items, Total: total}, nil
}

func (s Service) SummarizeTransactions(
	ctx context.Context,
	owner models.User,
) (TransactionSummary, error) {
	count, total, err := s.repo.SummarizeTransactions(ctx, owner.ID)
	if err != nil {
		return TransactionSummary{}, err
	}
	return TransactionSummary{Count: count, TotalAmount: total}, nil
}

func (s Service) CreateTransaction(
	ctx context.Context,
	owner models.User,
	bookTitle string,
	amount decimal.Decimal,
	notes *string,
) (models.Transaction, error) {
	return s.repo.CreateTransaction(ctx, models.Transaction{
		UserID:    owner.ID,
		BookTitle: bookTitle,
		Amount:    amount,
		Notes:     notes,
	})
}

func (s Service) GetTransaction(
	ctx context.Context,
	owner models.User,
	id int,
) (models.Transaction, error) {
	return s.repo.GetTransaction(ctx, owner.ID, id)
}

// UpdateTransaction applies the provided fields only. A blank book title or
// an empty notes string counts as not provided.
func (s Service) UpdateTransaction(
	ctx context.Context,
	owner models.User,
	id int,
	upd models.TransactionUpdate,
) (models.Transaction, error) {
	if upd.BookTitle != nil && strings.TrimSpace(*upd.BookTitle) == "" {
		upd.BookTitle = nil
	}
	if upd.Notes != nil && *upd.Notes == "" {
		upd.Notes = nil
	}
	return s.repo.UpdateTransaction(ctx, owner.ID, id, upd)
}

func (s Service) DeleteTransaction(
	ctx context.Context,
	owner models.User,
	id int,
) error {
	return s.repo.DeleteTransaction(ctx, owner.ID, id)
}
