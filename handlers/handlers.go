package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"bookledger/models"
	"bookledger/service"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"
	"github.com/shopspring/decimal"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

type Handler struct {
	svc      service.Service
	validate *validator.Validate
}

func NewHandler(svc service.Service) Handler {
	return Handler{
		svc:      svc,
		validate: newValidator(),
	}
}

type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email,max=255"`
	Password string  `json:"password" validate:"required,min=6,max=72,bcryptmax"`
	FullName *string `json:"full_name" validate:"omitempty,max=255"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateTransactionRequest struct {
	BookTitle string           `json:"book_title" validate:"required,notblank,max=255"`
	Amount    *decimal.Decimal `json:"amount" validate:"required,money"`
	Notes     *string          `json:"notes"`
}

// UpdateTransactionRequest treats absent and null fields alike: both leave
// the stored value unchanged.
type UpdateTransactionRequest struct {
	BookTitle *string          `json:"book_title" validate:"omitempty,max=255"`
	Amount    *decimal.Decimal `json:"amount" validate:"omitempty,money"`
	Notes     *string          `json:"notes"`
}

type UserResponse struct {
	ID       int     `json:"id"`
	Email    string  `json:"email"`
	FullName *string `json:"full_name"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type TransactionResponse struct {
	ID        int       `json:"id"`
	BookTitle string    `json:"book_title"`
	Amount    string    `json:"amount"`
	Notes     *string   `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

type TransactionListResponse struct {
	Items []TransactionResponse `json:"items"`
	Total int                   `json:"total"`
}

type SummaryResponse struct {
	Count       int    `json:"count"`
	TotalAmount string `json:"total_amount"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

func (h Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Healthy"})
}

func (h Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.svc.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h Handler) MeHandler(w http.ResponseWriter, r *http.Request, user models.User) {
	respondWithJSON(w, http.StatusOK, toUserResponse(user))
}

func (h Handler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request, user models.User) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, "skip: must be an integer")
		return
	}
	limit, err := queryInt(r, "limit", service.DefaultLimit)
	if err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, "limit: must be an integer")
		return
	}
	page, err := h.svc.ListTransactions(r.Context(), user, skip, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items := make([]TransactionResponse, 0, len(page.Items))
	for _, t := range page.Items {
		items = append(items, toTransactionResponse(t))
	}
	respondWithJSON(w, http.StatusOK, TransactionListResponse{Items: items, Total: page.Total})
}

func (h Handler) SummaryHandler(w http.ResponseWriter, r *http.Request, user models.User) {
	summary, err := h.svc.SummarizeTransactions(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, SummaryResponse{
		Count:       summary.Count,
		TotalAmount: summary.TotalAmount.StringFixed(2),
	})
}

func (h Handler) CreateTransactionHandler(w http.ResponseWriter, r *http.Request, user models.User) {
	var req CreateTransactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	t, err := h.svc.CreateTransaction(r.Context(), user, req.BookTitle, *req.Amount, req.Notes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, toTransactionResponse(t))
}

func (h Handler) GetTransactionHandler(w http.ResponseWriter, r *http.Request, user models.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := h.svc.GetTransaction(r.Context(), user, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toTransactionResponse(t))
}

func (h Handler) UpdateTransactionHandler(w http.ResponseWriter, r *http.Request, user models.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateTransactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	t, err := h.svc.UpdateTransaction(r.Context(), user, id, models.TransactionUpdate{
		BookTitle: req.BookTitle,
		Amount:    req.Amount,
		Notes:     req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toTransactionResponse(t))
}

func (h Handler) DeleteTransactionHandler(w http.ResponseWriter, r *http.Request, user models.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteTransaction(r.Context(), user, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode parses and validates a JSON body, answering 422 itself on failure.
func (h Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		respondWithError(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrDuplicateEmail):
		respondWithError(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, service.ErrBadCredentials):
		respondWithError(w, http.StatusBadRequest, "Incorrect email or password")
	case errors.Is(err, service.ErrUnauthorized):
		respondUnauthorized(w)
	case errors.Is(err, models.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, service.ErrInvalidPagination):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func respondUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	respondWithError(w, http.StatusUnauthorized, "Could not validate credentials")
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Detail: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, "id: must be an integer")
		return 0, false
	}
	return id, true
}

func toUserResponse(u models.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, FullName: u.FullName}
}

func toTransactionResponse(t models.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:        t.ID,
		BookTitle: t.BookTitle,
		Amount:    t.Amount.StringFixed(2),
		Notes:     t.Notes,
		CreatedAt: t.CreatedAt,
	}
}
