package mailbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mailhub/mailhub/internal/api"
	"github.com/mailhub/mailhub/internal/model"
	"github.com/mailhub/mailhub/internal/session"
	"github.com/mailhub/mailhub/internal/store"
)

// fetchTimeout is the maximum time allowed for a single fetch cycle.
const fetchTimeout = 30 * time.Second

// OTPResult is the outcome of a server-delegated OTP extraction. A
// failed call is reported as not-found so callers can treat results
// uniformly.
type OTPResult struct {
	Found bool
	Code  string
	Codes []string
}

// Synchronizer maintains a point-in-time local mirror of the
// authenticated user's inbox. Each fetch replaces the whole collection
// with the freshly transformed server response; read/star mutations
// are optimistic and local-only between fetches (durable only when a
// flag cache is attached). Fetches are serialized: a refresh requested
// while one is in flight coalesces into at most one follow-up fetch.
type Synchronizer struct {
	client  *api.Client
	session *session.Controller
	flags   store.FlagCache // nil when persistence is disabled

	pollInterval time.Duration

	mu          sync.Mutex
	messages    []model.Message
	stats       model.MailboxStats
	loading     bool
	errMsg      string
	lastRefresh time.Time

	refreshCh chan struct{}
	updates   chan struct{}
}

// NewSynchronizer creates a synchronizer. flags may be nil, in which
// case read/star state lives only in memory and is lost on refetch.
func NewSynchronizer(
	client *api.Client,
	sess *session.Controller,
	flags store.FlagCache,
	pollInterval time.Duration,
) *Synchronizer {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &Synchronizer{
		client:       client,
		session:      sess,
		flags:        flags,
		pollInterval: pollInterval,
		refreshCh:    make(chan struct{}, 1),
		updates:      make(chan struct{}, 1),
	}
}

// Updates returns a channel that receives a signal whenever the
// message collection, stats, loading flag, or error state change.
// Consumers read a fresh snapshot via Messages and Stats.
func (s *Synchronizer) Updates() <-chan struct{} {
	return s.updates
}

// Messages returns a copy of the current message collection.
func (s *Synchronizer) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Stats returns the current derived counters.
func (s *Synchronizer) Stats() model.MailboxStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Loading reports whether a fetch is in flight.
func (s *Synchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Error returns the current fetch error string, empty when healthy.
func (s *Synchronizer) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// LastRefresh returns when the last successful fetch completed.
func (s *Synchronizer) LastRefresh() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRefresh
}

// Refresh requests an immediate fetch. The request is dropped when a
// refresh is already queued; the poll loop serializes actual fetches.
func (s *Synchronizer) Refresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

// Run drives the fetch lifecycle until ctx is done. Polling is scoped
// to the authenticated-session lifetime: it starts when the session
// authenticates (with an immediate first fetch) and the timer is torn
// down the moment the session becomes unauthenticated, which also
// resets the local mirror.
func (s *Synchronizer) Run(ctx context.Context) {
	changes := s.session.Subscribe()

	var pollStop chan struct{}

	stopPolling := func() {
		if pollStop != nil {
			close(pollStop)
			pollStop = nil
		}
	}
	startPolling := func() {
		if pollStop == nil {
			pollStop = make(chan struct{})
			go s.poll(ctx, pollStop)
		}
	}
	defer stopPolling()

	if s.session.IsAuthenticated() {
		startPolling()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-changes:
			if !ok {
				return
			}
			switch state {
			case session.StateAuthenticated:
				startPolling()
			case session.StateUnauthenticated:
				stopPolling()
				s.reset()
			}
		}
	}
}

// poll is the per-session fetch loop: one immediate fetch, then the
// recurring timer, plus manual refresh triggers. It runs in its own
// goroutine and exits when stop closes, so fetches never overlap.
func (s *Synchronizer) poll(ctx context.Context, stop chan struct{}) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.fetch(ctx)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fetch(ctx)
		case <-s.refreshCh:
			s.fetch(ctx)
		}
	}
}

// fetch performs one synchronization cycle. Failures surface as an
// error string and leave the previous collection untouched; only an
// unauthenticated reset clears it deliberately.
func (s *Synchronizer) fetch(ctx context.Context) {
	if !s.session.IsAuthenticated() {
		return
	}

	s.setLoading(true)
	defer s.setLoading(false)

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	resp, err := s.client.ListMessages(fetchCtx)
	if err != nil {
		log.Warn().Err(err).Msg("inbox fetch failed")
		s.setError(fetchFailureReason(err))
		return
	}

	if !resp.Success || resp.Messages == nil {
		log.Warn().Msg("inbox fetch returned no messages field")
		s.setError("No messages data received from server")
		return
	}

	now := time.Now()
	msgs := make([]model.Message, 0, len(resp.Messages))
	ids := make([]string, 0, len(resp.Messages))
	for _, raw := range resp.Messages {
		msgs = append(msgs, transform(raw, now))
		ids = append(ids, raw.ID)
	}

	s.mergeOverrides(fetchCtx, msgs, ids)

	s.mu.Lock()
	s.messages = msgs
	s.stats = model.ComputeStats(msgs)
	s.lastRefresh = now
	s.errMsg = ""
	s.mu.Unlock()

	log.Debug().Int("count", len(msgs)).Msg("inbox synchronized")
	s.notify()
}

// mergeOverrides applies durable flag overrides on top of the fresh
// transformation and prunes rows for vanished messages. Overrides
// merge into the server state: a server-seen message stays read even
// with a stale false override.
func (s *Synchronizer) mergeOverrides(ctx context.Context, msgs []model.Message, ids []string) {
	if s.flags == nil {
		return
	}

	overrides, err := s.flags.Overrides(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("loading flag overrides failed")
		return
	}

	for i := range msgs {
		o, ok := overrides[msgs[i].ID]
		if !ok {
			continue
		}
		if o.Read {
			msgs[i].IsRead = true
		}
		msgs[i].IsStarred = o.Starred
	}

	if err := s.flags.Prune(ctx, ids); err != nil {
		log.Warn().Err(err).Msg("pruning flag overrides failed")
	}
}

// MarkAsRead optimistically marks a message read. It is synchronous
// and local-only (the backend has no endpoint for it); the unread
// counter moves only when the flag actually flips, so repeated calls
// on the same id cannot drive it negative.
func (s *Synchronizer) MarkAsRead(id string) {
	s.mu.Lock()
	flipped := false
	for i := range s.messages {
		if s.messages[i].ID == id {
			if !s.messages[i].IsRead {
				s.messages[i].IsRead = true
				flipped = true
			}
			break
		}
	}
	if flipped {
		s.stats = model.ComputeStats(s.messages)
	}
	s.mu.Unlock()

	if !flipped {
		return
	}

	s.persistRead(id)
	s.notify()
}

// ToggleStar optimistically flips a message's starred flag. Calling it
// twice restores both the flag and the counter.
func (s *Synchronizer) ToggleStar(id string) {
	s.mu.Lock()
	found := false
	starred := false
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].IsStarred = !s.messages[i].IsStarred
			starred = s.messages[i].IsStarred
			found = true
			break
		}
	}
	if found {
		s.stats = model.ComputeStats(s.messages)
	}
	s.mu.Unlock()

	if !found {
		return
	}

	s.persistStarred(id, starred)
	s.notify()
}

// ExtractOTP delegates to the server-side extractor, which scans the
// full message content rather than just the subject. Errors collapse
// into a not-found result.
func (s *Synchronizer) ExtractOTP(ctx context.Context, messageID string) OTPResult {
	resp, err := s.client.ExtractOTP(ctx, messageID)
	if err != nil {
		log.Warn().Err(err).Str("message_id", messageID).Msg("otp extraction failed")
		return OTPResult{}
	}

	result := OTPResult{Found: resp.OTP.Found}
	if resp.OTP.BestCode != nil {
		result.Code = resp.OTP.BestCode.Value
	}
	for _, c := range resp.OTP.Codes {
		result.Codes = append(result.Codes, c.Value)
	}
	return result
}

// reset clears the mirror after the session ends. Stale data must not
// survive into a logged-out state.
func (s *Synchronizer) reset() {
	s.mu.Lock()
	s.messages = nil
	s.stats = model.MailboxStats{}
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()
}

func (s *Synchronizer) persistRead(id string) {
	if s.flags == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.flags.SetRead(ctx, id, true); err != nil {
		log.Warn().Err(err).Str("message_id", id).Msg("persisting read flag failed")
	}
}

func (s *Synchronizer) persistStarred(id string, starred bool) {
	if s.flags == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.flags.SetStarred(ctx, id, starred); err != nil {
		log.Warn().Err(err).Str("message_id", id).Msg("persisting starred flag failed")
	}
}

// fetchFailureReason prefers the server-supplied message on an API
// error over the raw transport error text.
func fetchFailureReason(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Failed to fetch emails"
}

func (s *Synchronizer) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
	s.notify()
}

func (s *Synchronizer) setError(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
	s.notify()
}

// notify signals consumers without blocking; updates coalesce.
func (s *Synchronizer) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
