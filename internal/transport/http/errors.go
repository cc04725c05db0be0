package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/TheusN/torrentflix-sub000/internal/domain/library"
	"github.com/TheusN/torrentflix-sub000/internal/domain/torrent"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

func writeNotReady(w http.ResponseWriter, retryAfterSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	writeError(w, http.StatusServiceUnavailable, "not_ready", "requested bytes are not downloaded yet")
}

// writeServiceError maps the gateway and adapter error taxonomy onto HTTP.
// Raw upstream status codes never reach the client.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)
	switch {
	case status == http.StatusServiceUnavailable && code == "not_ready":
		writeNotReady(w, h.retryAfterSeconds)
		return
	case status >= 500:
		h.logger.Warn("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("code", code),
			slog.Any("error", err),
		)
	}
	writeError(w, status, code, err.Error())
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, torrent.ErrInvalidInput), errors.Is(err, library.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, torrent.ErrGone):
		return http.StatusNotFound, "gone"
	case errors.Is(err, library.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, torrent.ErrNotReady):
		return http.StatusServiceUnavailable, "not_ready"
	case errors.Is(err, torrent.ErrRangeNotSatisfiable):
		return http.StatusRequestedRangeNotSatisfiable, "range_not_satisfiable"
	case errors.Is(err, torrent.ErrConnection):
		return http.StatusServiceUnavailable, "torrent_client_unreachable"
	case errors.Is(err, torrent.ErrUpstreamAuth), errors.Is(err, library.ErrUnauthorized):
		return http.StatusBadGateway, "upstream_auth_failed"
	case errors.Is(err, library.ErrNotConfigured):
		return http.StatusServiceUnavailable, "not_configured"
	case errors.Is(err, library.ErrUnavailable):
		return http.StatusBadGateway, "service_unavailable"
	default:
		return http.StatusBadGateway, "upstream_error"
	}
}
