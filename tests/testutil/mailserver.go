package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mailhub/mailhub/internal/api"
)

// MailServer is a fake mail backend for tests. It implements the five
// endpoints the gateway client consumes, with a single account and a
// single valid bearer token.
type MailServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	address  string
	password string
	token    string
	messages []api.RawMessage
	otp      map[string]api.OTPPayload

	brokenShape bool
	listStatus  int
	listMessage string

	loginCalls  int
	logoutCalls int
	listCalls   int
}

// NewMailServer starts a fake backend accepting the given credentials
// and issuing the given token on login. It shuts down with the test.
func NewMailServer(t *testing.T, address, password, token string) *MailServer {
	t.Helper()

	ms := &MailServer{
		address:  address,
		password: password,
		token:    token,
		otp:      make(map[string]api.OTPPayload),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", ms.handleLogin)
	mux.HandleFunc("/logout", ms.handleLogout)
	mux.HandleFunc("/messages-working", ms.handleList)
	mux.HandleFunc("/messages/", ms.handleGet)
	mux.HandleFunc("/otp", ms.handleOTP)

	ms.Server = httptest.NewServer(mux)
	t.Cleanup(ms.Server.Close)
	return ms
}

// URL returns the base URL of the fake backend.
func (ms *MailServer) URL() string {
	return ms.Server.URL
}

// SetMessages replaces the inbox contents.
func (ms *MailServer) SetMessages(msgs []api.RawMessage) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.messages = msgs
}

// SetOTP sets the server-side extraction result for a message id.
func (ms *MailServer) SetOTP(messageID string, payload api.OTPPayload) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.otp[messageID] = payload
}

// BreakShape makes the list endpoint return success without a messages
// field, simulating a malformed response.
func (ms *MailServer) BreakShape(broken bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.brokenShape = broken
}

// FailListWith makes the list endpoint return the given status and
// error message. A zero status restores normal behavior.
func (ms *MailServer) FailListWith(status int, message string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.listStatus = status
	ms.listMessage = message
}

// ListCalls returns how many times the list endpoint was hit.
func (ms *MailServer) ListCalls() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.listCalls
}

// LogoutCalls returns how many times the logout endpoint was hit.
func (ms *MailServer) LogoutCalls() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.logoutCalls
}

// authorized reports whether the request carries the valid token.
func (ms *MailServer) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+ms.token
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (ms *MailServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	ms.mu.Lock()
	ms.loginCalls++
	address, password, token := ms.address, ms.password, ms.token
	ms.mu.Unlock()

	var req struct {
		Address  string `json:"address"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.Address != address || req.Password != password {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"message": "Invalid credentials",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   token,
		"user": map[string]string{
			"id":      "u1",
			"address": address,
		},
	})
}

func (ms *MailServer) handleLogout(w http.ResponseWriter, _ *http.Request) {
	ms.mu.Lock()
	ms.logoutCalls++
	ms.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (ms *MailServer) handleList(w http.ResponseWriter, r *http.Request) {
	ms.mu.Lock()
	ms.listCalls++
	status, message := ms.listStatus, ms.listMessage
	broken := ms.brokenShape
	msgs := ms.messages
	ms.mu.Unlock()

	if !ms.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"message": "Session expired",
		})
		return
	}

	if status != 0 {
		writeJSON(w, status, map[string]string{"message": message})
		return
	}

	if broken {
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	if msgs == nil {
		msgs = []api.RawMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"messages": msgs,
	})
}

func (ms *MailServer) handleGet(w http.ResponseWriter, r *http.Request) {
	if !ms.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"message": "Session expired",
		})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/messages/")

	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, m := range ms.messages {
		if m.ID == id {
			writeJSON(w, http.StatusOK, m)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Message not found"})
}

func (ms *MailServer) handleOTP(w http.ResponseWriter, r *http.Request) {
	if !ms.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"message": "Session expired",
		})
		return
	}

	id := r.URL.Query().Get("messageId")

	ms.mu.Lock()
	payload, ok := ms.otp[id]
	ms.mu.Unlock()

	if !ok {
		payload = api.OTPPayload{Found: false}
	}
	writeJSON(w, http.StatusOK, api.OTPResponse{OTP: payload})
}
