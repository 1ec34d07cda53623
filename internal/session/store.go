// Package session owns the access/refresh token pair for the current user.
// The store is the only component that touches durable credential storage;
// the REST client and the push channel both re-read it per use so that a
// refresh performed by one caller is immediately visible to the next.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"arbdash/internal/domain"
)

// Store holds the current credential in memory and mirrors it to a JSON file
// so a restart does not force re-authentication. Reads and writes are
// last-writer-wins; Get never fails.
type Store struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	cred domain.Credential
	held bool
}

// NewStore creates a Store backed by the file at path and loads any
// previously persisted credential. A missing or unreadable file is treated
// as logged out, never as an error.
func NewStore(path string, logger *slog.Logger) *Store {
	s := &Store{
		path:   path,
		logger: logger.With(slog.String("component", "session")),
	}
	s.load()
	return s
}

// Get returns the current credential snapshot. The second return is false
// when no credential is held.
func (s *Store) Get() (domain.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, s.held
}

// Set replaces the credential and persists it.
func (s *Store) Set(cred domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred = cred
	s.held = !cred.Empty()
	return s.persist()
}

// SetAccessToken swaps in a freshly refreshed access token, keeping the
// refresh token, and persists the result.
func (s *Store) SetAccessToken(accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred.AccessToken = accessToken
	s.held = !s.cred.Empty()
	return s.persist()
}

// Clear drops the credential and removes the persisted file. Called on
// logout and on irrecoverable refresh failure.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred = domain.Credential{}
	s.held = false

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: clear credential file: %w", err)
	}
	return nil
}

// AccessTokenExpiry decodes the exp claim of the held access token without
// verifying its signature (the backend is the verifier; the client only uses
// this for logging and to pre-empt refreshes). Returns false when no token
// is held or the token has no parseable expiry.
func (s *Store) AccessTokenExpiry() (time.Time, bool) {
	cred, ok := s.Get()
	if !ok || cred.AccessToken == "" {
		return time.Time{}, false
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(cred.AccessToken, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("credential file unreadable, starting logged out",
				slog.String("path", s.path),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	var cred domain.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		s.logger.Warn("credential file corrupt, starting logged out",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return
	}

	s.cred = cred
	s.held = !cred.Empty()
}

// persist writes the credential file with owner-only permissions. Caller
// must hold s.mu.
func (s *Store) persist() error {
	if !s.held {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("session: remove credential file: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(s.cred)
	if err != nil {
		return fmt.Errorf("session: marshal credential: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("session: create credential dir: %w", err)
		}
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("session: write credential file: %w", err)
	}
	return nil
}
