// Package auth provides password verification, cookie sessions, role
// permissions and login rate limiting.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Permission names a capability a role may hold.
type Permission string

const (
	PermView     Permission = "view"
	PermDownload Permission = "download"
	PermUpload   Permission = "upload"
	PermEdit     Permission = "edit"
	PermRename   Permission = "rename"
	PermDelete   Permission = "delete"
	PermShare    Permission = "share"
	PermAdmin    Permission = "admin"
)

// Roles.
const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

var rolePermissions = map[string]map[Permission]bool{
	RoleViewer: {
		PermView:     true,
		PermDownload: true,
	},
	RoleEditor: {
		PermView:     true,
		PermDownload: true,
		PermUpload:   true,
		PermEdit:     true,
		PermRename:   true,
		PermDelete:   true,
	},
	RoleAdmin: {
		PermView:     true,
		PermDownload: true,
		PermUpload:   true,
		PermEdit:     true,
		PermRename:   true,
		PermDelete:   true,
		PermShare:    true,
		PermAdmin:    true,
	},
}

// RoleAllowed reports whether role grants perm. Unknown roles get
// nothing.
func RoleAllowed(role string, perm Permission) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	return perms[perm]
}

// HashPassword hashes a password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks password against a bcrypt hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Session is an authenticated browser session.
type Session struct {
	Username string
	Role     string
	Expires  time.Time
}

// SessionManager tracks sessions in memory, keyed by random token.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewSessionManager creates a manager whose sessions live for ttl.
func NewSessionManager(ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create opens a session and returns its token.
func (m *SessionManager) Create(username, role string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = &Session{
		Username: username,
		Role:     role,
		Expires:  time.Now().Add(m.ttl),
	}
	return token, nil
}

// Lookup returns the session for token, expiring it lazily.
func (m *SessionManager) Lookup(token string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(s.Expires) {
		m.Revoke(token)
		return nil, false
	}
	return s, true
}

// Revoke drops a session.
func (m *SessionManager) Revoke(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

// generateToken returns a 32-byte random hex token.
func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// RateLimiter caps login attempts per client address inside a sliding
// window.
type RateLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	max      int
	window   time.Duration
	now      func() time.Time
}

// NewRateLimiter allows max attempts per window for each key.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &RateLimiter{
		attempts: make(map[string][]time.Time),
		max:      max,
		window:   window,
		now:      time.Now,
	}
}

// Allow records an attempt for key and reports whether it is within
// the limit.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-r.window)

	kept := r.attempts[key][:0]
	for _, t := range r.attempts[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= r.max {
		r.attempts[key] = kept
		return false
	}
	r.attempts[key] = append(kept, now)
	return true
}

// Reset clears attempts for key (e.g. after a successful login).
func (r *RateLimiter) Reset(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attempts, key)
}
