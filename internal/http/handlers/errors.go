package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hongminglow/iptrack-be/internal/http/respond"
	"github.com/hongminglow/iptrack-be/internal/service"
)

// writeServiceError maps service sentinels to status codes. Storage detail stays in the log.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		respond.Error(w, http.StatusBadRequest, publicMessage(err, service.ErrValidation))
	case errors.Is(err, service.ErrConflict):
		respond.Error(w, http.StatusBadRequest, "User already exists")
	case errors.Is(err, service.ErrUnauthorized):
		respond.Error(w, http.StatusUnauthorized, "Invalid credentials")
	default:
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error(),
		)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}

// publicMessage strips the sentinel prefix so clients see only the reason.
func publicMessage(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}
