package mailbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mailhub/mailhub/internal/api"
	"github.com/mailhub/mailhub/internal/model"
)

func TestTransform_FullMessage(t *testing.T) {
	fetchedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	raw := api.RawMessage{
		ID:             "m1",
		From:           &api.RawSender{Name: "Alice", Address: "alice@example.com"},
		Subject:        "Your code is 482913",
		Intro:          "Your code is",
		CreatedAt:      "2026-07-31T09:30:00Z",
		Seen:           true,
		HasAttachments: true,
		Text:           "Your code is 482913",
		HTML:           "<b>482913</b>",
		Attachments:    []api.RawAttachment{{ID: "a1", Filename: "doc.pdf", ContentType: "application/pdf", Size: 1024}},
		Size:           2048,
	}

	msg := transform(raw, fetchedAt)

	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "Alice", msg.Sender.Name)
	assert.Equal(t, "alice@example.com", msg.Sender.Email)
	assert.Contains(t, msg.Sender.Avatar, "seed=alice%40example.com")
	assert.Equal(t, time.Date(2026, 7, 31, 9, 30, 0, 0, time.UTC), msg.Timestamp)
	assert.True(t, msg.IsRead)
	assert.False(t, msg.IsStarred)
	assert.True(t, msg.HasAttachments)
	assert.Len(t, msg.Attachments, 1)
	assert.Equal(t, []string{model.LabelInbox}, msg.Labels)
	assert.Equal(t, []string{"482913"}, msg.OTPCodes)
}

func TestTransform_MissingFieldsGetDefaults(t *testing.T) {
	fetchedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	msg := transform(api.RawMessage{ID: "m2"}, fetchedAt)

	assert.Equal(t, "No Subject", msg.Subject)
	assert.Equal(t, "Unknown", msg.Sender.Name)
	assert.Equal(t, "unknown@example.com", msg.Sender.Email)
	assert.Contains(t, msg.Sender.Avatar, "seed=unknown")
	assert.Equal(t, fetchedAt, msg.Timestamp)
	assert.False(t, msg.IsStarred)
	assert.Empty(t, msg.OTPCodes)
}

func TestTransform_NameFallsBackToLocalPart(t *testing.T) {
	raw := api.RawMessage{
		ID:   "m3",
		From: &api.RawSender{Address: "bob.smith@example.com"},
	}

	msg := transform(raw, time.Now())

	assert.Equal(t, "bob.smith", msg.Sender.Name)
	assert.Equal(t, "bob.smith@example.com", msg.Sender.Email)
}

func TestTransform_BodyFallsBackToIntro(t *testing.T) {
	raw := api.RawMessage{ID: "m4", Intro: "hello there"}

	msg := transform(raw, time.Now())

	assert.Equal(t, "hello there", msg.Content.Text)
	assert.Equal(t, "<p>hello there</p>", msg.Content.HTML)
	assert.Equal(t, "hello there", msg.Preview)
}

func TestTransform_UnparseableTimestampUsesFetchTime(t *testing.T) {
	fetchedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	raw := api.RawMessage{ID: "m5", CreatedAt: "yesterday"}

	msg := transform(raw, fetchedAt)

	assert.Equal(t, fetchedAt, msg.Timestamp)
}
