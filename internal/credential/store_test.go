package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStore_TokenRoundTrip(t *testing.T) {
	s := NewMemoryStore()

	assert.Empty(t, s.Token())
	s.SetToken("tok123")
	assert.Equal(t, "tok123", s.Token())
	s.SetToken("")
	assert.Empty(t, s.Token())
}

func TestMemoryStore_ClearTokenIf(t *testing.T) {
	s := NewMemoryStore()
	s.SetToken("tok123")

	// A mismatched previous value leaves the slot alone.
	assert.False(t, s.ClearTokenIf("other"))
	assert.Equal(t, "tok123", s.Token())

	assert.True(t, s.ClearTokenIf("tok123"))
	assert.Empty(t, s.Token())

	// Clearing an already empty slot reports false.
	assert.False(t, s.ClearTokenIf("tok123"))
	assert.False(t, s.ClearTokenIf(""))
}

func TestMemoryStore_EmailRoundTrip(t *testing.T) {
	s := NewMemoryStore()

	assert.Empty(t, s.Email())
	s.SetEmail("alice@example.com")
	assert.Equal(t, "alice@example.com", s.Email())
	s.SetEmail("")
	assert.Empty(t, s.Email())
}
