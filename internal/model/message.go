package model

import "time"

// Label constants applied to messages. The backend exposes a single
// inbox folder, so every message carries at least LabelInbox.
const (
	LabelInbox = "inbox"
)

// Sender identifies the originator of a message.
type Sender struct {
	// Name is the display name, falling back to the local part of the
	// address when the server omits it.
	Name string `json:"name"`

	// Email is the sender's address.
	Email string `json:"email"`

	// Avatar is a deterministic avatar URL derived from the address.
	Avatar string `json:"avatar,omitempty"`
}

// Attachment describes a single file attached to a message.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Content holds the message body in both plain-text and HTML form.
// HTML defaults to a paragraph-wrapped copy of the plain text when the
// server does not provide it.
type Content struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

// Message is the normalized representation of a server-side email.
type Message struct {
	// ID is the server-assigned identifier, stable across fetches.
	ID string `json:"id"`

	// Sender identifies who sent the message.
	Sender Sender `json:"sender"`

	// Subject is the subject line ("No Subject" when absent).
	Subject string `json:"subject"`

	// Preview is the short intro snippet shown in list views.
	Preview string `json:"preview"`

	// Content holds the full body.
	Content Content `json:"content"`

	// Timestamp is the server creation time, or the fetch time when
	// the server omits it.
	Timestamp time.Time `json:"timestamp"`

	// IsRead mirrors the server's "seen" flag at fetch time and is
	// mutated locally by MarkAsRead.
	IsRead bool `json:"isRead"`

	// IsStarred is client-only state; the server has no starred
	// concept, so it always initializes false on fetch.
	IsStarred bool `json:"isStarred"`

	// HasAttachments reports whether the message carries attachments.
	HasAttachments bool `json:"hasAttachments"`

	// Attachments lists the attached files.
	Attachments []Attachment `json:"attachments,omitempty"`

	// Labels always contains at least LabelInbox.
	Labels []string `json:"labels,omitempty"`

	// OTPCodes holds the 6-digit codes detected in the subject line.
	OTPCodes []string `json:"otpCodes,omitempty"`

	// Size is the raw message size in bytes.
	Size int64 `json:"size"`
}

// MailboxStats are derived counters recomputed from the message
// collection after every fetch and every local mutation.
type MailboxStats struct {
	Total   int `json:"total"`
	Unread  int `json:"unread"`
	Starred int `json:"starred"`
}

// ComputeStats recounts the stats over msgs. Callers rerun it after
// every change instead of adjusting the counters incrementally.
func ComputeStats(msgs []Message) MailboxStats {
	stats := MailboxStats{Total: len(msgs)}
	for _, m := range msgs {
		if !m.IsRead {
			stats.Unread++
		}
		if m.IsStarred {
			stats.Starred++
		}
	}
	return stats
}
