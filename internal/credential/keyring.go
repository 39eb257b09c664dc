package credential

import (
	"fmt"
	"sync"

	"github.com/99designs/keyring"
	"github.com/rs/zerolog/log"
)

const serviceName = "mailhub"

// Keyring item keys for the two persisted slots.
const (
	keyToken = "token"
	keyEmail = "email"
)

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailhub/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailhub-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// KeyringStore persists the session slots in the system keyring. A
// mutex serializes the read-modify-write in ClearTokenIf against
// concurrent token writes.
type KeyringStore struct {
	mu sync.Mutex
}

// NewKeyringStore creates a Store backed by the system keyring. It
// opens the keyring once up front to verify a backend is available.
func NewKeyringStore() (*KeyringStore, error) {
	if _, err := openKeyring(); err != nil {
		return nil, err
	}
	return &KeyringStore{}, nil
}

func (s *KeyringStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(keyToken)
}

func (s *KeyringStore) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(keyToken, token)
}

func (s *KeyringStore) ClearTokenIf(previous string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.get(keyToken)
	if current != previous || current == "" {
		return false
	}
	s.set(keyToken, "")
	return true
}

func (s *KeyringStore) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(keyEmail)
}

func (s *KeyringStore) SetEmail(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(keyEmail, email)
}

// get reads a slot, treating any keyring failure as absence.
func (s *KeyringStore) get(key string) string {
	ring, err := openKeyring()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("keyring unavailable")
		return ""
	}

	item, err := ring.Get(key)
	if err != nil {
		return ""
	}
	return string(item.Data)
}

// set writes a slot; an empty value removes the item.
func (s *KeyringStore) set(key, value string) {
	ring, err := openKeyring()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("keyring unavailable")
		return
	}

	if value == "" {
		if err := ring.Remove(key); err != nil && err != keyring.ErrKeyNotFound {
			log.Warn().Err(err).Str("key", key).Msg("clearing credential failed")
		}
		return
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("storing credential failed")
	}
}
