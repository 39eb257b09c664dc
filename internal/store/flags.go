package store

import "context"

// FlagOverride is the locally persisted read/star state for a single
// message. It survives refetches and process restarts, unlike the
// purely optimistic in-memory flags.
type FlagOverride struct {
	MessageID string `db:"message_id"`
	Read      bool   `db:"read"`
	Starred   bool   `db:"starred"`
}

// FlagCache is the durable cache of client-authoritative message flags.
// The backend has no endpoint to persist read/star state, so when the
// cache is enabled the synchronizer merges these overrides into (never
// over) each fresh fetch.
type FlagCache interface {
	// Overrides returns all stored flag overrides keyed by message id.
	Overrides(ctx context.Context) (map[string]FlagOverride, error)

	// SetRead records the read flag for a message.
	SetRead(ctx context.Context, messageID string, read bool) error

	// SetStarred records the starred flag for a message.
	SetStarred(ctx context.Context, messageID string, starred bool) error

	// Prune drops overrides for messages no longer present on the
	// server. keep holds the ids the latest fetch returned.
	Prune(ctx context.Context, keep []string) error
}
