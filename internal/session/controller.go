package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mailhub/mailhub/internal/api"
	"github.com/mailhub/mailhub/internal/credential"
	"github.com/mailhub/mailhub/internal/model"
)

// State is the authentication lifecycle state of the controller.
type State int

const (
	StateUninitialized State = iota
	StateValidating
	StateAuthenticated
	StateUnauthenticated
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateValidating:
		return "validating"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Fallback identity used when a persisted token validates but the
// cached email slot is empty (the backend has no "who am I" endpoint).
const (
	fallbackAddress = "user@example.com"
	placeholderID   = "user_id"
)

// Controller owns the authentication lifecycle: startup validation of
// a persisted token, login, logout, and advisory online tracking. It
// is the sole owner of the in-memory user record; the token itself
// lives in the credential store, shared with the gateway client.
type Controller struct {
	client  *api.Client
	creds   credential.Store
	monitor *Monitor

	mu          sync.Mutex
	state       State
	user        *model.User
	loading     bool
	lastError   string
	subscribers []chan State
}

// NewController creates a session controller bound to the given
// gateway client and credential store. The controller registers itself
// as the client's unauthorized hook: any 401 anywhere forces the
// session back to unauthenticated.
func NewController(client *api.Client, creds credential.Store) *Controller {
	c := &Controller{
		client: client,
		creds:  creds,
		state:  StateUninitialized,
	}
	client.OnUnauthorized = c.handleUnauthorized
	c.monitor = NewMonitor(client.BaseURL())
	return c
}

// Subscribe returns a channel receiving every state transition. Each
// subscriber gets its own buffered channel; transitions are dropped
// rather than blocking the controller when a consumer falls behind.
func (c *Controller) Subscribe() <-chan State {
	ch := make(chan State, 16)
	c.mu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.mu.Unlock()
	return ch
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// User returns a copy of the authenticated user, or nil.
func (c *Controller) User() *model.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// IsAuthenticated reports whether both a user record and a token are
// present. A token without a resolved user (or the reverse) counts as
// unauthenticated.
func (c *Controller) IsAuthenticated() bool {
	c.mu.Lock()
	user := c.user
	c.mu.Unlock()
	return user != nil && c.creds.Token() != ""
}

// Loading reports whether a login or startup validation is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// LastError returns the most recent user-facing failure reason.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// IsOnline reports the advisory connectivity flag. It is never
// consulted as a gate for issuing requests.
func (c *Controller) IsOnline() bool {
	return c.monitor.IsOnline()
}

// StartMonitor begins background connectivity probing for the lifetime
// of the controller.
func (c *Controller) StartMonitor() {
	c.monitor.Start()
}

// Close stops the connectivity monitor.
func (c *Controller) Close() {
	c.monitor.Stop()
}

// Initialize performs startup validation. A persisted token is not
// trusted outright: the message-list endpoint serves as a liveness
// probe (the backend has no identity endpoint). Any probe failure
// clears both persisted slots and lands in StateUnauthenticated.
func (c *Controller) Initialize(ctx context.Context) {
	c.setLoading(true)
	c.setState(StateValidating)
	defer c.setLoading(false)

	token := c.creds.Token()
	if token == "" {
		c.setState(StateUnauthenticated)
		return
	}

	resp, err := c.client.ListMessages(ctx)
	if err != nil || !resp.Success || resp.Messages == nil {
		if err != nil {
			log.Info().Err(err).Msg("token validation failed, clearing")
		} else {
			log.Info().Msg("token validation returned unexpected shape, clearing")
		}
		c.creds.SetToken("")
		c.creds.SetEmail("")
		c.clearUser()
		c.setState(StateUnauthenticated)
		return
	}

	address := c.creds.Email()
	if address == "" {
		address = fallbackAddress
	}
	c.setUser(&model.User{
		ID:      placeholderID,
		Address: address,
		Name:    model.DisplayName(address),
	})
	c.setState(StateAuthenticated)
	log.Info().Str("address", address).Msg("session restored from persisted token")
}

// Login authenticates with the given address and password. It never
// propagates an error past its own boundary: all failures become a
// false return plus a reason available via LastError. A failed attempt
// leaves the session state and the token slot untouched.
func (c *Controller) Login(ctx context.Context, address, password string) bool {
	c.setLoading(true)
	defer c.setLoading(false)

	addr := strings.ToLower(strings.TrimSpace(address))
	pwd := strings.TrimSpace(password)

	resp, err := c.client.Login(ctx, addr, pwd)
	if err != nil {
		c.setError(loginFailureReason(err))
		log.Warn().Err(err).Str("address", addr).Msg("login failed")
		return false
	}

	if !resp.Success || resp.User == nil {
		reason := resp.Message
		if reason == "" {
			reason = "Invalid credentials"
		}
		c.setError(reason)
		return false
	}

	// The gateway already persisted the token; cache the address so a
	// later restart can reconstruct the display identity.
	c.creds.SetEmail(resp.User.Address)

	c.setUser(&model.User{
		ID:      resp.User.ID,
		Address: resp.User.Address,
		Name:    model.DisplayName(resp.User.Address),
	})
	c.setError("")
	c.setState(StateAuthenticated)
	log.Info().Str("address", resp.User.Address).Msg("login successful")
	return true
}

// Logout ends the session. The remote call is best-effort; local state
// is cleared unconditionally so the client never looks authenticated
// after a logout, even with the network unreachable. Calling it while
// already unauthenticated is a no-op that stays unauthenticated.
func (c *Controller) Logout(ctx context.Context) {
	c.client.Logout(ctx)

	c.creds.SetEmail("")
	c.clearUser()
	c.setError("")
	c.setState(StateUnauthenticated)
	log.Info().Msg("logged out")
}

// handleUnauthorized runs after the gateway cleared the token on a
// 401. The forced return to the login surface is realized by the state
// transition, which consumers observe via Changes.
func (c *Controller) handleUnauthorized() {
	c.clearUser()
	c.setError("Session expired")
	c.setState(StateUnauthenticated)
}

// loginFailureReason maps a gateway error to user-facing guidance.
// Known phrases get canonical wording; anything else shows verbatim.
func loginFailureReason(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		switch {
		case msg == "":
			return "Invalid credentials"
		case strings.Contains(strings.ToLower(msg), "invalid credentials"):
			return "Invalid credentials"
		case strings.Contains(strings.ToLower(msg), "unavailable"):
			return "Service unavailable"
		default:
			return msg
		}
	}
	return "Network error"
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	subs := make([]chan State, len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.Unlock()

	if !changed {
		return
	}
	for _, ch := range subs {
		select {
		case ch <- s:
		default:
			// Drop if the consumer is behind; state is poll-able anyway.
		}
	}
}

func (c *Controller) setUser(u *model.User) {
	c.mu.Lock()
	c.user = u
	c.mu.Unlock()
}

func (c *Controller) clearUser() {
	c.setUser(nil)
}

func (c *Controller) setLoading(v bool) {
	c.mu.Lock()
	c.loading = v
	c.mu.Unlock()
}

func (c *Controller) setError(msg string) {
	c.mu.Lock()
	c.lastError = msg
	c.mu.Unlock()
}
