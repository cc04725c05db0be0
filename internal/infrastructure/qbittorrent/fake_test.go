package qbittorrent

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeWebUI is a minimal qBittorrent WebUI that issues numbered SID cookies.
type fakeWebUI struct {
	t      *testing.T
	server *httptest.Server

	logins     atomic.Int32
	loginDelay time.Duration
	password   string

	mu       sync.Mutex
	valid    map[string]bool
	handlers map[string]http.HandlerFunc
	forms    map[string][]map[string]string
}

func newFakeWebUI(t *testing.T) *fakeWebUI {
	t.Helper()
	f := &fakeWebUI{
		t:        t,
		password: "secret",
		valid:    map[string]bool{},
		handlers: map[string]http.HandlerFunc{},
		forms:    map[string][]map[string]string{},
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeWebUI) handle(path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[path] = h
}

// revokeAll simulates a server-side session wipe (client restart).
func (f *fakeWebUI) revokeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.valid = map[string]bool{}
}

func (f *fakeWebUI) formsFor(path string) []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.forms[path]...)
}

func (f *fakeWebUI) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v2/auth/login" {
		f.login(w, r)
		return
	}

	cookie, err := r.Cookie(sessionCookieName)
	f.mu.Lock()
	ok := err == nil && f.valid[cookie.Value]
	h := f.handlers[r.URL.Path]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, "Forbidden")
		return
	}
	if h == nil {
		http.NotFound(w, r)
		return
	}

	if r.Method == http.MethodPost {
		_ = r.ParseForm()
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		f.mu.Lock()
		f.forms[r.URL.Path] = append(f.forms[r.URL.Path], form)
		f.mu.Unlock()
	}
	h(w, r)
}

func (f *fakeWebUI) login(w http.ResponseWriter, r *http.Request) {
	n := f.logins.Add(1)
	if f.loginDelay > 0 {
		time.Sleep(f.loginDelay)
	}
	_ = r.ParseForm()
	if r.PostForm.Get("password") != f.password {
		_, _ = io.WriteString(w, "Fails.")
		return
	}
	sid := fmt.Sprintf("sid-%d", n)
	f.mu.Lock()
	f.valid[sid] = true
	f.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: sid, Path: "/"})
	_, _ = io.WriteString(w, "Ok.")
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestClient(t *testing.T, f *fakeWebUI, password string) (*Client, *SessionManager, *fakeClock) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	sessions := NewSessionManager(SessionConfig{
		BaseURL:  f.server.URL,
		Username: "admin",
		Password: password,
		TTL:      50 * time.Minute,
		Timeout:  2 * time.Second,
		Logger:   logger,
	})
	sessions.now = clock.Now
	return NewClient(f.server.URL, 2*time.Second, sessions, logger), sessions, clock
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}
