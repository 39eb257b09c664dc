package credential

import "sync"

// Store persists the two session slots that outlive a process restart:
// the bearer token and the last-authenticated email address. Absence is
// represented by the empty string. Implementations swallow backend
// errors (logging them) so callers can treat the slots as plain values,
// mirroring how the session layer treats missing credentials.
type Store interface {
	// Token returns the persisted bearer token, or "" when absent.
	Token() string

	// SetToken writes the bearer token slot; "" clears it.
	SetToken(token string)

	// ClearTokenIf clears the token slot only when it still holds
	// previous, and reports whether it cleared. This lets a stale
	// 401-triggered clear lose against a login that completed in the
	// meantime.
	ClearTokenIf(previous string) bool

	// Email returns the cached email address, or "" when absent.
	Email() string

	// SetEmail writes the cached email slot; "" clears it.
	SetEmail(email string)
}

// MemoryStore is an in-memory Store used in tests and as a fallback
// when no system keyring is available. It allows multiple isolated
// sessions to coexist in one process.
type MemoryStore struct {
	mu    sync.Mutex
	token string
	email string
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *MemoryStore) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *MemoryStore) ClearTokenIf(previous string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != previous || s.token == "" {
		return false
	}
	s.token = ""
	return true
}

func (s *MemoryStore) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

func (s *MemoryStore) SetEmail(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = email
}
