package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailhub/mailhub/internal/api"
	"github.com/mailhub/mailhub/internal/credential"
	"github.com/mailhub/mailhub/internal/session"
	"github.com/mailhub/mailhub/internal/store"
	"github.com/mailhub/mailhub/tests/testutil"
)

const (
	testAddress  = "alice@example.com"
	testPassword = "secret"
	testToken    = "tok-abc123"
)

func newTestSynchronizer(t *testing.T, flags store.FlagCache) (*Synchronizer, *testutil.MailServer) {
	t.Helper()

	srv := testutil.NewMailServer(t, testAddress, testPassword, testToken)
	creds := credential.NewMemoryStore()
	client := api.NewClient(srv.URL(), creds, 5*time.Second)
	sess := session.NewController(client, creds)
	require.True(t, sess.Login(context.Background(), testAddress, testPassword))

	return NewSynchronizer(client, sess, flags, time.Minute), srv
}

func rawMessage(id, subject string, seen bool) api.RawMessage {
	return api.RawMessage{
		ID:      id,
		From:    &api.RawSender{Name: "Alice", Address: testAddress},
		Subject: subject,
		Intro:   subject,
		Seen:    seen,
	}
}

func TestFetch_ReplacesCollectionAndRecountsStats(t *testing.T) {
	s, srv := newTestSynchronizer(t, nil)
	srv.SetMessages([]api.RawMessage{
		rawMessage("m1", "hello", false),
		rawMessage("m2", "world", true),
		rawMessage("m3", "again", false),
	})

	s.fetch(context.Background())

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	stats := s.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Unread)
	assert.Equal(t, 0, stats.Starred)
	assert.Empty(t, s.Error())
	assert.False(t, s.LastRefresh().IsZero())

	// A second fetch replaces the collection wholesale.
	srv.SetMessages([]api.RawMessage{rawMessage("m9", "new", true)})
	s.fetch(context.Background())

	msgs = s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m9", msgs[0].ID)
	assert.Equal(t, 0, s.Stats().Unread)
}

func TestFetch_FailureKeepsPriorCollection(t *testing.T) {
	s, srv := newTestSynchronizer(t, nil)
	srv.SetMessages([]api.RawMessage{rawMessage("m1", "hello", false)})
	s.fetch(context.Background())
	require.Len(t, s.Messages(), 1)

	srv.FailListWith(500, "Mail service unavailable")
	s.fetch(context.Background())

	assert.Len(t, s.Messages(), 1)
	assert.Equal(t, "Mail service unavailable", s.Error())

	// Recovery clears the error.
	srv.FailListWith(0, "")
	s.fetch(context.Background())
	assert.Empty(t, s.Error())
}

func TestFetch_BrokenShapeIsAnError(t *testing.T) {
	s, srv := newTestSynchronizer(t, nil)
	srv.SetMessages([]api.RawMessage{rawMessage("m1", "hello", false)})
	s.fetch(context.Background())
	require.Len(t, s.Messages(), 1)

	srv.BreakShape(true)
	s.fetch(context.Background())

	assert.Equal(t, "No messages data received from server", s.Error())
	assert.Len(t, s.Messages(), 1)
}

func TestFetch_SkippedWhenUnauthenticated(t *testing.T) {
	s, srv := newTestSynchronizer(t, nil)
	srv.SetMessages([]api.RawMessage{rawMessage("m1", "hello", false)})
	s.session.Logout(context.Background())
	before := srv.ListCalls()

	s.fetch(context.Background())

	assert.Equal(t, before, srv.ListCalls())
	assert.Empty(t, s.Messages())
}

func TestMarkAsRead_IsIdempotent(t *testing.T) {
	s, srv := newTestSynchronizer(t, nil)
	srv.SetMessages([]api.RawMessage{
		rawMessage("m1", "hello", false),
		rawMessage("m2", "world", false),
	})
	s.fetch(context.Background())
	require.Equal(t, 2, s.Stats().Unread)

	s.MarkAsRead("m1")
	assert.Equal(t, 1, s.Stats().Unread)

	// Repeats and unknown ids leave the counter alone.
	s.MarkAsRead("m1")
	s.MarkAsRead("m1")
	s.MarkAsRead("nope")
	assert.Equal(t, 1, s.Stats().Unread)
}

func TestToggleStar_IsSelfInverse(t *testing.T) {
	s, srv := newTestSynchronizer(t, nil)
	srv.SetMessages([]api.RawMessage{rawMessage("m1", "hello", true)})
	s.fetch(context.Background())
	require.Equal(t, 0, s.Stats().Starred)

	s.ToggleStar("m1")
	assert.Equal(t, 1, s.Stats().Starred)
	assert.True(t, s.Messages()[0].IsStarred)

	s.ToggleStar("m1")
	assert.Equal(t, 0, s.Stats().Starred)
	assert.False(t, s.Messages()[0].IsStarred)
}

func TestFetch_RefetchDiscardsOptimisticFlagsWithoutCache(t *testing.T) {
	s, srv := newTestSynchronizer(t, nil)
	srv.SetMessages([]api.RawMessage{rawMessage("m1", "hello", false)})
	s.fetch(context.Background())

	s.MarkAsRead("m1")
	s.ToggleStar("m1")
	require.True(t, s.Messages()[0].IsRead)
	require.True(t, s.Messages()[0].IsStarred)

	s.fetch(context.Background())

	assert.False(t, s.Messages()[0].IsRead)
	assert.False(t, s.Messages()[0].IsStarred)
}

func TestFetch_FlagCacheSurvivesRefetch(t *testing.T) {
	cache := testutil.NewTestStore(t)
	s, srv := newTestSynchronizer(t, cache)
	srv.SetMessages([]api.RawMessage{
		rawMessage("m1", "hello", false),
		rawMessage("m2", "world", false),
	})
	s.fetch(context.Background())

	s.MarkAsRead("m1")
	s.ToggleStar("m2")

	s.fetch(context.Background())

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsRead)
	assert.False(t, msgs[0].IsStarred)
	assert.False(t, msgs[1].IsRead)
	assert.True(t, msgs[1].IsStarred)

	// A message dropped by the server takes its override with it.
	srv.SetMessages([]api.RawMessage{rawMessage("m2", "world", false)})
	s.fetch(context.Background())

	overrides, err := cache.Overrides(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, overrides, "m1")
	assert.Contains(t, overrides, "m2")
}

func TestFetch_OverridesMergeNeverUnread(t *testing.T) {
	cache := testutil.NewTestStore(t)
	s, srv := newTestSynchronizer(t, cache)

	// Stale override says unread, server says seen: server wins.
	require.NoError(t, cache.SetRead(context.Background(), "m1", false))
	srv.SetMessages([]api.RawMessage{rawMessage("m1", "hello", true)})

	s.fetch(context.Background())

	assert.True(t, s.Messages()[0].IsRead)
}

func TestExtractOTP_CollapsesErrorsToNotFound(t *testing.T) {
	s, srv := newTestSynchronizer(t, nil)

	// No payload registered: server answers not-found.
	result := s.ExtractOTP(context.Background(), "m1")
	assert.False(t, result.Found)
	assert.Empty(t, result.Code)

	srv.SetOTP("m1", api.OTPPayload{
		Found:    true,
		BestCode: &api.OTPCode{Value: "482913", Confidence: 0.9},
		Codes:    []api.OTPCode{{Value: "482913"}, {Value: "111222"}},
	})

	result = s.ExtractOTP(context.Background(), "m1")
	assert.True(t, result.Found)
	assert.Equal(t, "482913", result.Code)
	assert.Equal(t, []string{"482913", "111222"}, result.Codes)
}

func TestReset_ClearsMirrorOnLogout(t *testing.T) {
	s, srv := newTestSynchronizer(t, nil)
	srv.SetMessages([]api.RawMessage{rawMessage("m1", "hello", false)})
	s.fetch(context.Background())
	require.Len(t, s.Messages(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// Let the poll loop's immediate fetch complete before logging out,
	// so a late write cannot repopulate the mirror after the reset.
	require.Eventually(t, func() bool {
		return srv.ListCalls() >= 2 && !s.Loading()
	}, 2*time.Second, 10*time.Millisecond)

	s.session.Logout(context.Background())

	assert.Eventually(t, func() bool {
		return len(s.Messages()) == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, s.Stats().Total)
	assert.Empty(t, s.Error())

	cancel()
	<-done
}

func TestRun_PollsAfterAuthentication(t *testing.T) {
	srv := testutil.NewMailServer(t, testAddress, testPassword, testToken)
	srv.SetMessages([]api.RawMessage{rawMessage("m1", "hello", false)})

	creds := credential.NewMemoryStore()
	client := api.NewClient(srv.URL(), creds, 5*time.Second)
	sess := session.NewController(client, creds)
	s := NewSynchronizer(client, sess, nil, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// Not authenticated yet: nothing fetched.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, srv.ListCalls())

	require.True(t, sess.Login(context.Background(), testAddress, testPassword))

	assert.Eventually(t, func() bool {
		return srv.ListCalls() >= 2 && len(s.Messages()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRefresh_CoalescesQueuedRequests(t *testing.T) {
	s, _ := newTestSynchronizer(t, nil)

	s.Refresh()
	s.Refresh()
	s.Refresh()

	// Only one trigger may be queued at a time.
	<-s.refreshCh
	select {
	case <-s.refreshCh:
		t.Fatal("expected a single coalesced refresh trigger")
	default:
	}
}
