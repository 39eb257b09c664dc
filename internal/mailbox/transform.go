package mailbox

import (
	"net/url"
	"time"

	"github.com/mailhub/mailhub/internal/api"
	"github.com/mailhub/mailhub/internal/model"
)

// avatarBaseURL is the hash-seeded avatar service; the seed makes the
// URL deterministic per sender address.
const avatarBaseURL = "https://api.dicebear.com/7.x/initials/svg?seed="

// Defaults applied during transformation when the server omits fields.
const (
	defaultSubject = "No Subject"
	unknownName    = "Unknown"
	unknownAddress = "unknown@example.com"
)

// transform normalizes a raw server message into a model.Message.
// fetchedAt substitutes for a missing or unparseable creation time.
// The starred flag always initializes false: the server has no starred
// concept.
func transform(raw api.RawMessage, fetchedAt time.Time) model.Message {
	address := unknownAddress
	seed := "unknown"
	name := ""
	if raw.From != nil {
		if raw.From.Address != "" {
			address = raw.From.Address
			seed = raw.From.Address
		}
		name = raw.From.Name
	}
	if name == "" {
		name = model.DisplayName(address)
		if address == unknownAddress {
			name = unknownName
		}
	}

	subject := raw.Subject
	if subject == "" {
		subject = defaultSubject
	}

	timestamp := fetchedAt
	if raw.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, raw.CreatedAt); err == nil {
			timestamp = t
		}
	}

	text := raw.Text
	if text == "" {
		text = raw.Intro
	}
	html := raw.HTML
	if html == "" {
		html = "<p>" + raw.Intro + "</p>"
	}

	attachments := make([]model.Attachment, 0, len(raw.Attachments))
	for _, a := range raw.Attachments {
		attachments = append(attachments, model.Attachment{
			ID:          a.ID,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}

	return model.Message{
		ID: raw.ID,
		Sender: model.Sender{
			Name:   name,
			Email:  address,
			Avatar: avatarBaseURL + url.QueryEscape(seed),
		},
		Subject:        subject,
		Preview:        raw.Intro,
		Content:        model.Content{Text: text, HTML: html},
		Timestamp:      timestamp,
		IsRead:         raw.Seen,
		IsStarred:      false,
		HasAttachments: raw.HasAttachments,
		Attachments:    attachments,
		Labels:         []string{model.LabelInbox},
		OTPCodes:       ExtractCodes(raw.Subject),
		Size:           raw.Size,
	}
}
