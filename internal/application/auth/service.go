package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	passwordSaltBytes = 16
	passwordRounds    = 100000
	sessionIDBytes    = 32

	loginBurst    = 5
	loginInterval = 6 * time.Second
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTooManyAttempts    = errors.New("too many login attempts")
)

// User is the public account model returned to the client.
type User struct {
	Username string `json:"username"`
}

type session struct {
	User      User
	ExpiresAt time.Time
}

// Service guards the dashboard with a single operator account and in-memory sessions.
type Service struct {
	mu sync.Mutex

	username     string
	passwordHash string
	sessions     map[string]session
	sessionTTL   time.Duration
	attempts     map[string]*rate.Limiter
	now          func() time.Time
}

// NewService creates an auth service for the configured operator. An empty
// password disables authentication entirely.
func NewService(username, password string, sessionTTL time.Duration) (*Service, error) {
	if sessionTTL <= 0 {
		sessionTTL = 72 * time.Hour
	}

	svc := &Service{
		username:   strings.TrimSpace(username),
		sessions:   map[string]session{},
		sessionTTL: sessionTTL,
		attempts:   map[string]*rate.Limiter{},
		now:        time.Now,
	}
	if password != "" {
		hash, err := hashPassword(password)
		if err != nil {
			return nil, err
		}
		svc.passwordHash = hash
	}
	return svc, nil
}

// Enabled reports whether requests must carry a session.
func (s *Service) Enabled() bool {
	return s.passwordHash != ""
}

// SessionTTL returns the configured session lifetime.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

// Login authenticates operator credentials and returns a fresh session token.
// Only failed attempts count against the calling client, so one client
// guessing passwords cannot lock out another.
func (s *Service) Login(client, username, password string) (User, string, error) {
	if !s.Enabled() {
		return User{}, "", ErrUnauthorized
	}
	limiter := s.limiter(client)
	if limiter.TokensAt(s.now()) < 1 {
		return User{}, "", ErrTooManyAttempts
	}

	normalized := strings.TrimSpace(username)
	nameOK := subtle.ConstantTimeCompare([]byte(strings.ToLower(normalized)), []byte(strings.ToLower(s.username))) == 1
	if normalized == "" || password == "" || !verifyPassword(password, s.passwordHash) || !nameOK {
		limiter.AllowN(s.now(), 1)
		return User{}, "", ErrInvalidCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupExpiredSessionsLocked(s.now())

	user := User{Username: s.username}
	token, err := s.createSessionLocked(user)
	if err != nil {
		return User{}, "", err
	}
	return user, token, nil
}

// Authenticate resolves a session token into a user.
func (s *Service) Authenticate(token string) (User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return User{}, ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	record, exists := s.sessions[token]
	if !exists || now.After(record.ExpiresAt) {
		delete(s.sessions, token)
		return User{}, ErrUnauthorized
	}
	return record.User, nil
}

// Logout removes an active session token.
func (s *Service) Logout(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

func (s *Service) limiter(client string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if lim, ok := s.attempts[client]; ok {
		return lim
	}
	if len(s.attempts) >= 1024 {
		for key, lim := range s.attempts {
			if lim.TokensAt(now) >= loginBurst {
				delete(s.attempts, key)
			}
		}
	}
	lim := rate.NewLimiter(rate.Every(loginInterval), loginBurst)
	s.attempts[client] = lim
	return lim
}

func (s *Service) createSessionLocked(user User) (string, error) {
	token, err := randomToken(sessionIDBytes)
	if err != nil {
		return "", err
	}

	s.sessions[token] = session{
		User:      user,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}

	return token, nil
}

func (s *Service) cleanupExpiredSessionsLocked(now time.Time) {
	for token, entry := range s.sessions {
		if now.After(entry.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
}

func randomToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, passwordSaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(stretch(salt, password)), nil
}

func verifyPassword(password, encoded string) bool {
	parts := strings.Split(encoded, ":")
	if len(parts) != 2 {
		return false
	}

	salt, err := hex.DecodeString(parts[0])
	if err != nil || len(salt) == 0 {
		return false
	}
	expected, err := hex.DecodeString(parts[1])
	if err != nil || len(expected) == 0 {
		return false
	}

	return subtle.ConstantTimeCompare(stretch(salt, password), expected) == 1
}

func stretch(salt []byte, password string) []byte {
	sum := sha256.Sum256(append(append([]byte(nil), salt...), []byte(password)...))
	current := sum[:]
	for i := 0; i < passwordRounds; i++ {
		next := sha256.Sum256(append(current, salt...))
		current = next[:]
	}
	return current
}
