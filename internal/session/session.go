// Package session holds the authenticated context passed to every call
// that needs a bearer token. A session is created on login and dropped on
// logout or once its token expires.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ReviewScanner/internal/domain"
)

// Session is an access token plus what we could read from it.
type Session struct {
	Token     string
	Subject   string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// New wraps an access token. JWT claims are read without verification:
// the backend verifies, we only need the expiry. Opaque tokens never expire.
func New(token string, now time.Time) *Session {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	s := &Session{Token: token, CreatedAt: now}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return s
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
	}
	if sub, err := claims.GetSubject(); err == nil {
		s.Subject = sub
	}
	return s
}

// Valid reports whether the session can authenticate a call at now.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.Token == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// Authorization is the header value for authenticated calls.
func (s *Session) Authorization() string {
	if s == nil || s.Token == "" {
		return ""
	}
	return "Bearer " + s.Token
}

// Manager owns the process' current session.
type Manager struct {
	mu      sync.Mutex
	current *Session
	now     func() time.Time
}

// NewManager builds an empty manager; now defaults to time.Now.
func NewManager(now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{now: now}
}

// Begin replaces the current session.
func (m *Manager) Begin(s *Session) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
}

// End drops the current session.
func (m *Manager) End() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

// Current returns the live session or AuthRequired. Expired sessions are
// destroyed on access.
func (m *Manager) Current() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, domain.NewError(domain.KindAuthRequired, "not logged in", nil)
	}
	if !m.current.Valid(m.now()) {
		m.current = nil
		return nil, domain.NewError(domain.KindAuthRequired, "session expired", nil)
	}
	return m.current, nil
}

// Optional returns the live session or nil.
func (m *Manager) Optional() *Session {
	s, err := m.Current()
	if err != nil {
		return nil
	}
	return s
}
