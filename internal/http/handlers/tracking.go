package handlers

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hongminglow/iptrack-be/internal/http/respond"
	"github.com/hongminglow/iptrack-be/internal/models"
	"github.com/hongminglow/iptrack-be/internal/service"
)

// TrackingHandler serves the tracking and log endpoints.
type TrackingHandler struct {
	tracking *service.TrackingService
	logger   *slog.Logger
}

func NewTrackingHandler(tracking *service.TrackingService, logger *slog.Logger) *TrackingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrackingHandler{tracking: tracking, logger: logger.With("module", "http.tracking")}
}

func (h *TrackingHandler) Register(r chi.Router) {
	r.Get("/track", h.handleTrack)
	r.Get("/track/{ip}", h.handleTrack)
	r.Get("/logs", h.handleLogs)
}

func (h *TrackingHandler) handleTrack(w http.ResponseWriter, r *http.Request) {
	rec, err := h.tracking.Track(r.Context(), service.TrackRequest{
		IP:         chi.URLParam(r, "ip"),
		ObservedIP: remoteHost(r.RemoteAddr),
		UserAgent:  userAgent(r),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, rec)
}

func (h *TrackingHandler) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respond.Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	recs, err := h.tracking.Logs(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, recs)
}

// remoteHost drops the port and IPv6 brackets from a RemoteAddr value.
func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
}

func userAgent(r *http.Request) string {
	if _, ok := r.Header["User-Agent"]; !ok {
		return models.Unknown
	}
	return r.Header.Get("User-Agent")
}
