package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/TheusN/torrentflix-sub000/internal/application/auth"
)

const sessionCookieName = "gateway_session"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil || !h.auth.Enabled() {
		writeError(w, http.StatusBadRequest, "auth_disabled", "authentication is not enabled")
		return
	}
	var req loginRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	user, token, err := h.auth.Login(remoteHost(r), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrTooManyAttempts):
		w.Header().Set("Retry-After", "6")
		writeError(w, http.StatusTooManyRequests, "too_many_attempts", err.Error())
		return
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", "login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(h.auth.SessionTTL()),
	})
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "token": token})
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.auth != nil {
		h.auth.Logout(sessionToken(r))
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil || !h.auth.Enabled() {
		writeJSON(w, http.StatusOK, map[string]any{"authEnabled": false})
		return
	}
	user, err := h.auth.Authenticate(sessionToken(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not logged in")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authEnabled": true, "user": user})
}

// requireAuth rejects requests without a valid session when auth is enabled.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.auth == nil || !h.auth.Enabled() || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := h.auth.Authenticate(sessionToken(r)); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionToken(r *http.Request) string {
	if token := bearerToken(r); token != "" {
		return token
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
