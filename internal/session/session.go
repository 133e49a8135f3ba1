// Package session holds the signed-in credential and identity. A Session is
// passed explicitly to whatever needs it; the Store is the only place it
// touches disk.
package session

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoSession    = errors.New("no session")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the minimal record of who is signed in
type Identity struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name,omitempty" json:"name,omitempty"`
	Email string `yaml:"email,omitempty" json:"email,omitempty"`
	Role  string `yaml:"role,omitempty" json:"role,omitempty"`
}

// Session is a bearer credential plus the identity it belongs to
type Session struct {
	Token     string    `yaml:"token" json:"-"`
	Identity  Identity  `yaml:"identity" json:"identity"`
	ExpiresAt time.Time `yaml:"expires_at,omitempty" json:"expires_at,omitempty"`
}

// Expired reports whether the token's expiry has passed
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// New builds a session from a login token. Identity fields missing from
// the login response are filled from the token's claims. The signature is
// not checked here; the backend verifies every request.
func New(token string, id Identity) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	s := &Session{Token: token, Identity: id}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		fill(&s.Identity.ID, claims, "user_id", "id", "sub")
		fill(&s.Identity.Name, claims, "name", "username")
		fill(&s.Identity.Email, claims, "email")
		fill(&s.Identity.Role, claims, "role")
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			s.ExpiresAt = exp.Time
		}
	}

	if s.Identity.ID == "" {
		return nil, fmt.Errorf("%w: no identity in login response or token", ErrInvalidToken)
	}
	return s, nil
}

func fill(dst *string, claims jwt.MapClaims, keys ...string) {
	if *dst != "" {
		return
	}
	for _, k := range keys {
		if v, ok := claims[k].(string); ok && v != "" {
			*dst = v
			return
		}
	}
}

// Store persists the session to a single file
type Store struct {
	path string
	now  func() time.Time
}

// NewStore creates a store backed by path
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Load returns the persisted session. A missing, unreadable, incomplete or
// expired session is ErrNoSession.
func (s *Store) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	var sess Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return nil, ErrNoSession
	}
	if sess.Token == "" || sess.Identity.ID == "" || sess.Expired(s.now()) {
		return nil, ErrNoSession
	}
	return &sess, nil
}

// Save writes the session, readable by the owner only
func (s *Store) Save(sess *Session) error {
	data, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Clear removes credential and identity together
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
