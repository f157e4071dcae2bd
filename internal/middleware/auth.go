package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hongminglow/iptrack-be/internal/http/respond"
	"github.com/hongminglow/iptrack-be/internal/models"
	"github.com/hongminglow/iptrack-be/internal/service"
)

const (
	MsgTokenMissing = "Token is missing"
	MsgTokenInvalid = "Token is invalid"
)

// UserResolver turns a bearer token into the user it was issued for.
type UserResolver interface {
	CurrentUser(ctx context.Context, token string) (models.User, error)
}

// UserFromContext returns the user stored by RequireBearer.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey).(models.User)
	return user, ok
}

// RequireBearer rejects requests without a valid "Authorization: Bearer <token>" header.
func RequireBearer(resolver UserResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("module", "http.auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				respond.Error(w, http.StatusUnauthorized, MsgTokenMissing)
				return
			}
			user, err := resolver.CurrentUser(r.Context(), token)
			if err != nil {
				if errors.Is(err, service.ErrUnauthorized) {
					respond.Error(w, http.StatusUnauthorized, MsgTokenInvalid)
					return
				}
				logger.ErrorContext(r.Context(), "resolve bearer user failed",
					"request_id", RequestIDFromContext(r.Context()),
					"error", err.Error(),
				)
				respond.Error(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
		})
	}
}

// bearerToken extracts the token. A missing header or empty token reports false;
// a value with another scheme is passed through so it fails verification.
func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found {
		return header, !strings.EqualFold(header, "Bearer")
	}
	token = strings.TrimSpace(token)
	if strings.EqualFold(scheme, "Bearer") && token == "" {
		return "", false
	}
	if !strings.EqualFold(scheme, "Bearer") {
		return header, true
	}
	return token, true
}
