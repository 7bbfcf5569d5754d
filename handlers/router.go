package handlers

import (
	"net/http"
	"strings"
	"time"

	"bookledger/models"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// AuthedHandlerFunc receives the caller resolved from the bearer token.
type AuthedHandlerFunc func(w http.ResponseWriter, r *http.Request, user models.User)

// Authenticated resolves the bearer token once and hands the user to next
// as an explicit argument.
func (h Handler) Authenticated(next AuthedHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondUnauthorized(w)
			return
		}
		user, err := h.svc.ResolveUser(r.Context(), token)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		next(w, r, user)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func NewRouter(h Handler, logger zerolog.Logger, allowOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", h.HealthHandler).Methods(http.MethodGet)

	r.HandleFunc("/auth/register", h.RegisterHandler).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.LoginHandler).Methods(http.MethodPost)
	r.HandleFunc("/auth/me", h.Authenticated(h.MeHandler)).Methods(http.MethodGet)

	r.HandleFunc("/transactions", h.Authenticated(h.ListTransactionsHandler)).Methods(http.MethodGet)
	r.HandleFunc("/transactions", h.Authenticated(h.CreateTransactionHandler)).Methods(http.MethodPost)
	r.HandleFunc("/transactions/summary", h.Authenticated(h.SummaryHandler)).Methods(http.MethodGet)
	r.HandleFunc("/transactions/{id:[0-9]+}", h.Authenticated(h.GetTransactionHandler)).Methods(http.MethodGet)
	r.HandleFunc("/transactions/{id:[0-9]+}", h.Authenticated(h.UpdateTransactionHandler)).Methods(http.MethodPut)
	r.HandleFunc("/transactions/{id:[0-9]+}", h.Authenticated(h.DeleteTransactionHandler)).Methods(http.MethodDelete)

	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(allowOrigins),
		gorillahandlers.AllowedMethods([]string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		}),
		gorillahandlers.AllowedHeaders([]string{"Authorization", "Content-Type", "Accept", "Origin"}),
	)

	var handler http.Handler = r
	handler = cors(handler)
	handler = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(handler)
	handler = hlog.RequestIDHandler("request_id", "X-Request-Id")(handler)
	handler = hlog.NewHandler(logger)(handler)
	return handler
}
