package qbittorrent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/TheusN/torrentflix-sub000/internal/domain/torrent"
	"github.com/TheusN/torrentflix-sub000/internal/metrics"
)

const (
	sessionCookieName = "SID"
	loginKey          = "login"
)

// Session is an authenticated WebUI session. The zero value is unauthenticated.
type Session struct {
	cookie    string
	expiresAt time.Time
}

func (s Session) validAt(now time.Time) bool {
	return !s.expiresAt.IsZero() && now.Before(s.expiresAt)
}

// SessionManager owns the single WebUI session shared by every gateway call.
type SessionManager struct {
	baseURL  string
	username string
	password string
	ttl      time.Duration
	timeout  time.Duration
	http     *http.Client
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	session Session
	group   singleflight.Group
}

// SessionConfig configures a SessionManager.
type SessionConfig struct {
	BaseURL  string
	Username string
	Password string
	// TTL is how long a fresh cookie is trusted. qBittorrent expires idle
	// sessions after an hour, so this should stay below that.
	TTL     time.Duration
	Timeout time.Duration
	HTTP    *http.Client
	Logger  *slog.Logger
}

// NewSessionManager creates an unauthenticated session manager.
func NewSessionManager(cfg SessionConfig) *SessionManager {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 50 * time.Minute
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := cfg.HTTP
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		username: cfg.Username,
		password: cfg.Password,
		ttl:      ttl,
		timeout:  timeout,
		http:     client,
		logger:   logger,
		now:      time.Now,
	}
}

// Ensure returns a session that has not expired, logging in first when needed.
// Concurrent callers that find no valid session share a single login request.
func (m *SessionManager) Ensure(ctx context.Context) (Session, error) {
	if s, ok := m.current(); ok {
		return s, nil
	}

	ch := m.group.DoChan(loginKey, func() (interface{}, error) {
		if s, ok := m.current(); ok {
			return s, nil
		}
		// The login outlives any single waiter so one cancelled request
		// does not fail the others sharing it.
		loginCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		return m.login(loginCtx)
	})

	select {
	case <-ctx.Done():
		return Session{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Session{}, res.Err
		}
		return res.Val.(Session), nil
	}
}

// Invalidate drops the current session so the next Ensure logs in again.
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = Session{}
}

// invalidateSession drops stale only if it is still the current session, so a
// late 403 on an old cookie does not discard a fresh login.
func (m *SessionManager) invalidateSession(stale Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.cookie == stale.cookie && m.session.expiresAt.Equal(stale.expiresAt) {
		m.session = Session{}
	}
}

// Authenticated reports whether a non-expired session is held.
func (m *SessionManager) Authenticated() bool {
	_, ok := m.current()
	return ok
}

func (m *SessionManager) current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.validAt(m.now()) {
		return m.session, true
	}
	return Session{}, false
}

func (m *SessionManager) login(ctx context.Context) (Session, error) {
	form := url.Values{}
	form.Set("username", m.username)
	form.Set("password", m.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/api/v2/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return Session{}, fmt.Errorf("qbittorrent login: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", m.baseURL)

	resp, err := m.http.Do(req)
	if err != nil {
		metrics.UpstreamLoginsTotal.WithLabelValues("unreachable").Inc()
		return Session{}, fmt.Errorf("%w: login: %v", torrent.ErrConnection, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	text := strings.TrimSpace(string(body))

	switch {
	case resp.StatusCode == http.StatusForbidden:
		metrics.UpstreamLoginsTotal.WithLabelValues("rejected").Inc()
		return Session{}, fmt.Errorf("%w: login forbidden (client IP banned after failed attempts)", torrent.ErrUpstreamAuth)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		metrics.UpstreamLoginsTotal.WithLabelValues("failed").Inc()
		return Session{}, fmt.Errorf("%w: login returned status %d", torrent.ErrConnection, resp.StatusCode)
	case text != "Ok.":
		metrics.UpstreamLoginsTotal.WithLabelValues("rejected").Inc()
		return Session{}, fmt.Errorf("%w: login rejected", torrent.ErrUpstreamAuth)
	}

	cookie := ""
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName {
			cookie = c.Value
			break
		}
	}
	if cookie == "" {
		// Authentication bypass for trusted subnets answers Ok. without a cookie.
		m.logger.Debug("qbittorrent login returned no session cookie")
	}

	s := Session{cookie: cookie, expiresAt: m.now().Add(m.ttl)}
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	metrics.UpstreamLoginsTotal.WithLabelValues("ok").Inc()
	m.logger.Info("qbittorrent session established", slog.Time("expiresAt", s.expiresAt))
	return s, nil
}
