package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeStats(t *testing.T) {
	msgs := []Message{
		{ID: "m1", IsRead: false, IsStarred: true},
		{ID: "m2", IsRead: true, IsStarred: false},
		{ID: "m3", IsRead: false, IsStarred: false},
	}

	stats := ComputeStats(msgs)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Unread)
	assert.Equal(t, 1, stats.Starred)
}

func TestComputeStats_Empty(t *testing.T) {
	assert.Equal(t, MailboxStats{}, ComputeStats(nil))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "alice", DisplayName("alice@example.com"))
	assert.Equal(t, "bob.smith", DisplayName("bob.smith@mail.example.com"))
	assert.Equal(t, "noatsign", DisplayName("noatsign"))
	assert.Equal(t, "", DisplayName(""))
}
