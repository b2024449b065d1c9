// Package session owns the client's auth state: the bearer token issued by
// the backend and the permission level decoded from it. State is persisted
// to a small JSON file so the CLI stays logged in between runs, mirroring
// the browser's local storage keys ("token", "permissions").
//
// All JWT decoding happens here, once per token change. Other packages ask
// CurrentRole or IsAuthenticated instead of re-decoding the token ad hoc.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dgoodall/trainboard/internal/domain"
)

// claims is the JWT payload the backend issues: standard registered claims
// plus a "permissions" level.
type claims struct {
	Permissions string `json:"permissions"`
	jwt.RegisteredClaims
}

// fileState is the on-disk shape. Permissions is cached alongside the token
// so it does not have to be re-decoded on every load.
type fileState struct {
	Token       string `json:"token"`
	Permissions string `json:"permissions"`
}

// Store holds the current session. Construct one at startup with NewStore
// and share it between the API client and the CLI; it is safe for
// concurrent use.
type Store struct {
	mu   sync.Mutex
	path string

	token string
	role  domain.Role
	exp   time.Time // zero when the token carries no expiry
}

// NewStore loads any persisted session from path. A missing or unreadable
// file simply yields a logged-out store; a corrupt one is discarded.
func NewStore(path string) *Store {
	s := &Store{path: path}

	raw, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var fs fileState
	if err := json.Unmarshal(raw, &fs); err != nil || fs.Token == "" {
		return s
	}
	// Re-decode rather than trusting the cached permissions blindly; the
	// token is the source of truth and this also recovers the expiry.
	if err := s.adopt(fs.Token); err != nil {
		_ = os.Remove(path)
	}
	return s
}

// SetToken decodes the token's claims, records the derived permission, and
// persists both. The signature is NOT verified: the client only reads
// claims, the server is the party that must reject forged tokens.
func (s *Store) SetToken(raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.adopt(raw); err != nil {
		return err
	}
	return s.persist()
}

// adopt parses raw and installs it in memory. Caller holds the lock (or is
// the constructor, where no lock is needed yet).
func (s *Store) adopt(raw string) error {
	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &c); err != nil {
		return fmt.Errorf("session.Store.SetToken: decode token: %w", err)
	}
	role, ok := domain.ParseRole(c.Permissions)
	if !ok {
		return fmt.Errorf("session.Store.SetToken: %w: unknown permission level %q", domain.ErrValidation, c.Permissions)
	}

	s.token = raw
	s.role = role
	s.exp = time.Time{}
	if c.ExpiresAt != nil {
		s.exp = c.ExpiresAt.Time
	}
	return nil
}

// Token returns the raw bearer token, or "" when logged out. An expired
// token counts as logged out and is cleared from disk as a side effect, so
// no request ever goes out with a token the server would reject for expiry.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expiredLocked() {
		s.clearLocked()
	}
	return s.token
}

// CurrentRole returns the permission level decoded from the current token.
// The second return is false when logged out or expired.
func (s *Store) CurrentRole() (domain.Role, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expiredLocked() {
		s.clearLocked()
	}
	if s.token == "" {
		return "", false
	}
	return s.role, true
}

// IsAuthenticated reports whether a usable session exists. Expiry is
// checked locally against the exp claim; no network call is involved.
func (s *Store) IsAuthenticated() bool {
	_, ok := s.CurrentRole()
	return ok
}

// Clear logs out: drops the in-memory state and removes the session file.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *Store) expiredLocked() bool {
	return s.token != "" && !s.exp.IsZero() && s.exp.Before(time.Now())
}

func (s *Store) clearLocked() {
	s.token = ""
	s.role = ""
	s.exp = time.Time{}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		// Nothing actionable for the caller; the in-memory state is gone
		// either way.
		return
	}
}

func (s *Store) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("session.Store: create config dir: %w", err)
	}
	raw, err := json.Marshal(fileState{Token: s.token, Permissions: string(s.role)})
	if err != nil {
		return fmt.Errorf("session.Store: encode session: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("session.Store: write session file: %w", err)
	}
	return nil
}
