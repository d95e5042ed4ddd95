package client

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// storeFileMode keeps the persisted tokens readable by the owner only.
const storeFileMode = 0o600

type storedState struct {
	Identity Identity `json:"identity"`
	Session  Session  `json:"session"`
}

// Store holds the current identity and token pair, persisted to a single
// JSON file so the session survives process restarts. It is rehydrated
// exactly once at startup and never touches the network itself.
//
// The generation counter orders mutations: a refresh that settles after the
// store was cleared loses, so callers observe "logged out" rather than a
// stale refreshed token.
type Store struct {
	mu         sync.Mutex
	path       string
	state      *storedState
	generation uint64
	rehydrated bool
}

// NewStore creates a store persisting to the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Rehydrate loads persisted state from disk. It runs once; later calls are
// no-ops. A missing or corrupt file leaves the store logged out.
func (s *Store) Rehydrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rehydrated {
		return nil
	}
	s.rehydrated = true

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	var state storedState
	if err := json.Unmarshal(data, &state); err != nil {
		// corrupt state file; start logged out rather than half-broken
		return nil
	}
	if state.Session.AccessToken == "" || state.Session.RefreshToken == "" {
		return nil
	}
	s.state = &state
	return nil
}

// Set replaces the stored identity and session, as after a fresh login.
func (s *Store) Set(identity Identity, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.state = &storedState{Identity: identity, Session: session}
	return s.persistLocked()
}

// ReplaceSession swaps in a refreshed token pair, keeping the identity. It
// refuses the swap when the store has been mutated since expectedGeneration
// was read: a logout that raced the refresh wins.
func (s *Store) ReplaceSession(session Session, expectedGeneration uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != expectedGeneration || s.state == nil {
		return ErrLoggedOut
	}
	s.state.Session = session
	return s.persistLocked()
}

// Clear wipes the session, in memory and on disk. Always succeeds from the
// caller's point of view; a file removal error cannot keep them logged in.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.state = nil
	_ = os.Remove(s.path)
}

// Snapshot returns the current identity and session, if logged in.
func (s *Store) Snapshot() (Identity, Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return Identity{}, Session{}, false
	}
	return s.state.Identity, s.state.Session, true
}

// AccessToken returns the current access token, if logged in.
func (s *Store) AccessToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return "", false
	}
	return s.state.Session.AccessToken, true
}

// RefreshToken returns the current refresh token plus the generation to
// hand to ReplaceSession, if logged in.
func (s *Store) RefreshToken() (string, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return "", s.generation, false
	}
	return s.state.Session.RefreshToken, s.generation, true
}

func (s *Store) persistLocked() error {
	data, err := json.Marshal(s.state)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, data, storeFileMode)
}
