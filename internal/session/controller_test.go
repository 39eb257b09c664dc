package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailhub/mailhub/internal/api"
	"github.com/mailhub/mailhub/internal/credential"
	"github.com/mailhub/mailhub/tests/testutil"
)

const (
	testAddress  = "alice@example.com"
	testPassword = "secret"
	testToken    = "tok-abc123"
)

func newTestController(t *testing.T) (*Controller, *credential.MemoryStore, *testutil.MailServer) {
	t.Helper()
	srv := testutil.NewMailServer(t, testAddress, testPassword, testToken)
	creds := credential.NewMemoryStore()
	client := api.NewClient(srv.URL(), creds, 5*time.Second)
	return NewController(client, creds), creds, srv
}

func TestInitialize_NoTokenLandsUnauthenticated(t *testing.T) {
	c, _, srv := newTestController(t)

	c.Initialize(context.Background())

	assert.Equal(t, StateUnauthenticated, c.State())
	assert.False(t, c.IsAuthenticated())
	assert.Equal(t, 0, srv.ListCalls())
}

func TestInitialize_ValidTokenRestoresSession(t *testing.T) {
	c, creds, srv := newTestController(t)
	creds.SetToken(testToken)
	creds.SetEmail(testAddress)

	c.Initialize(context.Background())

	assert.Equal(t, StateAuthenticated, c.State())
	require.True(t, c.IsAuthenticated())
	user := c.User()
	require.NotNil(t, user)
	assert.Equal(t, testAddress, user.Address)
	assert.Equal(t, "alice", user.Name)
	assert.Equal(t, 1, srv.ListCalls())
}

func TestInitialize_ValidTokenWithoutCachedEmailUsesFallback(t *testing.T) {
	c, creds, _ := newTestController(t)
	creds.SetToken(testToken)

	c.Initialize(context.Background())

	require.True(t, c.IsAuthenticated())
	assert.Equal(t, "user@example.com", c.User().Address)
}

func TestInitialize_RejectedTokenClearsBothSlots(t *testing.T) {
	c, creds, _ := newTestController(t)
	creds.SetToken("stale-token")
	creds.SetEmail(testAddress)

	c.Initialize(context.Background())

	assert.Equal(t, StateUnauthenticated, c.State())
	assert.Empty(t, creds.Token())
	assert.Empty(t, creds.Email())
	assert.Nil(t, c.User())
}

func TestInitialize_BrokenProbeShapeClearsToken(t *testing.T) {
	c, creds, srv := newTestController(t)
	creds.SetToken(testToken)
	srv.BreakShape(true)

	c.Initialize(context.Background())

	assert.Equal(t, StateUnauthenticated, c.State())
	assert.Empty(t, creds.Token())
}

func TestLogin_SuccessCachesEmailAndAuthenticates(t *testing.T) {
	c, creds, _ := newTestController(t)

	ok := c.Login(context.Background(), testAddress, testPassword)

	require.True(t, ok)
	assert.Equal(t, StateAuthenticated, c.State())
	assert.Equal(t, testToken, creds.Token())
	assert.Equal(t, testAddress, creds.Email())
	assert.Empty(t, c.LastError())
}

func TestLogin_NormalizesAddressAndPassword(t *testing.T) {
	c, _, _ := newTestController(t)

	ok := c.Login(context.Background(), "  ALICE@Example.COM  ", " secret ")

	require.True(t, ok)
	assert.Equal(t, testAddress, c.User().Address)
}

func TestLogin_FailureLeavesStateAndTokenUntouched(t *testing.T) {
	c, creds, _ := newTestController(t)
	c.Initialize(context.Background())
	require.Equal(t, StateUnauthenticated, c.State())

	ok := c.Login(context.Background(), testAddress, "wrong")

	assert.False(t, ok)
	assert.Equal(t, StateUnauthenticated, c.State())
	assert.Empty(t, creds.Token())
	assert.Equal(t, "Invalid credentials", c.LastError())
	assert.Nil(t, c.User())
}

func TestLogin_NetworkErrorReportsGenericReason(t *testing.T) {
	creds := credential.NewMemoryStore()
	client := api.NewClient("http://127.0.0.1:1", creds, 500*time.Millisecond)
	c := NewController(client, creds)

	ok := c.Login(context.Background(), testAddress, testPassword)

	assert.False(t, ok)
	assert.Equal(t, "Network error", c.LastError())
}

func TestLogout_ClearsSessionEvenWhenServerFails(t *testing.T) {
	c, creds, srv := newTestController(t)
	require.True(t, c.Login(context.Background(), testAddress, testPassword))
	srv.Server.Close()

	c.Logout(context.Background())

	assert.Equal(t, StateUnauthenticated, c.State())
	assert.False(t, c.IsAuthenticated())
	assert.Empty(t, creds.Token())
	assert.Empty(t, creds.Email())
}

func TestLogout_IsIdempotent(t *testing.T) {
	c, _, srv := newTestController(t)
	require.True(t, c.Login(context.Background(), testAddress, testPassword))

	c.Logout(context.Background())
	c.Logout(context.Background())

	assert.Equal(t, StateUnauthenticated, c.State())
	assert.Equal(t, 2, srv.LogoutCalls())
}

func TestUnauthorizedResponse_ForcesDeauthentication(t *testing.T) {
	c, creds, _ := newTestController(t)
	require.True(t, c.Login(context.Background(), testAddress, testPassword))

	changes := c.Subscribe()

	// Invalidate the token server-side, then hit a protected endpoint
	// through the gateway client shared with the controller.
	creds.SetToken("now-stale")
	_, listErr := c.client.ListMessages(context.Background())

	require.Error(t, listErr)
	assert.True(t, api.IsUnauthorized(listErr))
	assert.Equal(t, StateUnauthenticated, c.State())
	assert.Empty(t, creds.Token())
	assert.Equal(t, "Session expired", c.LastError())
	assert.Nil(t, c.User())

	select {
	case state := <-changes:
		assert.Equal(t, StateUnauthenticated, state)
	case <-time.After(time.Second):
		t.Fatal("expected a state transition broadcast")
	}
}

func TestSubscribe_BroadcastsOnlyOnChange(t *testing.T) {
	c, _, _ := newTestController(t)
	changes := c.Subscribe()

	require.True(t, c.Login(context.Background(), testAddress, testPassword))
	// Logging in while already authenticated repeats the same state.
	require.True(t, c.Login(context.Background(), testAddress, testPassword))

	assert.Equal(t, StateAuthenticated, <-changes)
	select {
	case s := <-changes:
		t.Fatalf("unexpected extra transition: %v", s)
	default:
	}
}
