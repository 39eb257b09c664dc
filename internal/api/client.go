package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mailhub/mailhub/internal/credential"
)

// APIError is returned for any non-2xx response. Message prefers the
// server-supplied reason over the generic status line.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsUnauthorized reports whether err (or any error in its chain) is an
// APIError carrying HTTP 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Client is the single chokepoint for all HTTP calls to the mail
// backend. It attaches the bearer token from the credential store,
// handles JSON (de)serialization, and enforces the unauthorized
// protocol: a 401 on any endpoint clears the token slot and fires the
// OnUnauthorized hook before the error is returned.
type Client struct {
	baseURL    string
	creds      credential.Store
	httpClient *http.Client

	// OnUnauthorized is invoked after a 401 has cleared the token
	// slot, so the consumer can route back to its login surface. May
	// be nil.
	OnUnauthorized func()
}

// NewClient creates a mail API client. The baseURL is the API root
// (e.g. https://api.example.com/api); creds holds the bearer token.
func NewClient(baseURL string, creds credential.Store, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IsAuthenticated reports whether a bearer token is present. This is a
// weaker predicate than the session's (which also requires a resolved
// user); it only says a request would carry an Authorization header.
func (c *Client) IsAuthenticated() bool {
	return c.creds.Token() != ""
}

// do is the core HTTP method: builds the request, attaches auth and
// content-type headers, classifies the response, and unmarshals the
// JSON body into result. A body that fails to parse on a 2xx response
// is tolerated as if the server had returned an empty object.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	reqURL := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	// The token is the only credential; no cookies are sent. The value
	// is captured here so a 401 can compare-and-clear exactly the
	// token this request carried.
	token := c.creds.Token()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading response body: %w", readErr)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Clear only if this request's token is still current, so a
		// login that completed while this call was in flight wins
		// over the stale clear.
		if c.creds.ClearTokenIf(token) {
			log.Info().Str("path", path).Msg("401 received, token cleared")
			if c.OnUnauthorized != nil {
				c.OnUnauthorized()
			}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Status:  resp.StatusCode,
			Message: errorMessage(respBody, resp),
		}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		log.Debug().
			Err(err).
			Str("path", path).
			Msg("unparseable response body, treating as empty")
	}

	return nil
}

// errorMessage extracts the human-readable failure reason from a
// non-2xx body, falling back to the HTTP status line.
func errorMessage(body []byte, resp *http.Response) string {
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		if eb.Message != "" {
			return eb.Message
		}
		if eb.Error != "" {
			return eb.Error
		}
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

// Login authenticates with the backend. On a success-flagged response
// the bearer token (top-level or nested under user) is persisted to
// the credential store as a side effect.
func (c *Client) Login(ctx context.Context, address, password string) (*LoginResponse, error) {
	var result LoginResponse
	err := c.do(ctx, http.MethodPost, "/login", loginRequest{
		Address:  address,
		Password: password,
	}, &result)
	if err != nil {
		return nil, err
	}

	token := result.Token
	if token == "" && result.User != nil {
		token = result.User.Token
	}
	if token != "" && result.Success {
		c.creds.SetToken(token)
	}

	return &result, nil
}

// Logout ends the server-side session on a best-effort basis: a failed
// request is logged, never surfaced, and the local token slot is
// cleared unconditionally.
func (c *Client) Logout(ctx context.Context) {
	if err := c.do(ctx, http.MethodPost, "/logout", nil, nil); err != nil {
		log.Warn().Err(err).Msg("logout request failed")
	}
	c.creds.SetToken("")
}

// ListMessages fetches the full inbox. No pagination or filtering is
// offered by the backend.
func (c *Client) ListMessages(ctx context.Context) (*MessagesResponse, error) {
	var result MessagesResponse
	if err := c.do(ctx, http.MethodGet, "/messages-working", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetMessage fetches a single raw message by id.
func (c *Client) GetMessage(ctx context.Context, id string) (*RawMessage, error) {
	var result RawMessage
	path := "/messages/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExtractOTP asks the server to scan the full content of the given
// message for one-time codes.
func (c *Client) ExtractOTP(ctx context.Context, messageID string) (*OTPResponse, error) {
	var result OTPResponse
	path := "/otp?messageId=" + url.QueryEscape(messageID)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
