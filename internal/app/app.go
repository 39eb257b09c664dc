package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mailhub/mailhub/internal/keys"
	"github.com/mailhub/mailhub/internal/mailbox"
	"github.com/mailhub/mailhub/internal/session"
	"github.com/mailhub/mailhub/internal/theme"
	"github.com/mailhub/mailhub/internal/ui"
	"github.com/mailhub/mailhub/internal/ui/detail"
	"github.com/mailhub/mailhub/internal/ui/inbox"
	"github.com/mailhub/mailhub/internal/ui/login"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewValidating ViewState = iota
	ViewLogin
	ViewInbox
	ViewDetail
)

// sessionInitializedMsg is sent when startup validation finishes.
type sessionInitializedMsg struct{}

// sessionStateMsg carries a session state transition to the UI.
type sessionStateMsg struct {
	state session.State
}

// mailboxUpdatedMsg signals that the local mailbox mirror changed.
type mailboxUpdatedMsg struct{}

// loginResultMsg carries the outcome of a login attempt.
type loginResultMsg struct {
	ok     bool
	reason string
}

// flashMsg sets a transient status-bar message.
type flashMsg struct {
	text string
}

// Model is the root Bubble Tea model that manages view routing, the
// session lifecycle, and the mailbox mirror consumed by the views.
type Model struct {
	currentView ViewState
	layout      ui.Layout
	keys        *keys.KeyMap

	session *session.Controller
	mailbox *mailbox.Synchronizer
	states  <-chan session.State

	loginView  login.Model
	inboxView  inbox.Model
	detailView detail.Model

	ready    bool
	showHelp bool
	flash    string
}

// New creates the root application model wired to the session
// controller and mailbox synchronizer.
func New(sess *session.Controller, mb *mailbox.Synchronizer) Model {
	k := keys.DefaultKeyMap()

	return Model{
		currentView: ViewValidating,
		keys:        k,
		session:     sess,
		mailbox:     mb,
		states:      sess.Subscribe(),
		loginView:   login.New(80, 24),
		inboxView:   inbox.New(k, 80, 24),
		detailView:  detail.New(k, 80, 24),
	}
}

// Init starts startup validation and the two subscription loops.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.initSession(),
		m.waitForSessionState(),
		m.waitForMailbox(),
	)
}

// initSession runs the startup token validation off the UI loop.
func (m Model) initSession() tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		sess.Initialize(context.Background())
		return sessionInitializedMsg{}
	}
}

// waitForSessionState blocks on the next session transition. It is
// re-armed after every received message.
func (m Model) waitForSessionState() tea.Cmd {
	ch := m.states
	return func() tea.Msg {
		state, ok := <-ch
		if !ok {
			return nil
		}
		return sessionStateMsg{state: state}
	}
}

// waitForMailbox blocks on the next mailbox change signal.
func (m Model) waitForMailbox() tea.Cmd {
	mb := m.mailbox
	return func() tea.Msg {
		<-mb.Updates()
		return mailboxUpdatedMsg{}
	}
}

// Update handles messages for the root model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		contentHeight := m.layout.ContentHeight()
		m.loginView.SetSize(msg.Width, contentHeight)
		m.inboxView.SetSize(msg.Width, contentHeight)
		m.detailView.SetSize(msg.Width, contentHeight)
		m.ready = true
		return m, nil

	case sessionInitializedMsg:
		if m.session.IsAuthenticated() {
			m.currentView = ViewInbox
			return m, nil
		}
		m.currentView = ViewLogin
		return m, m.loginView.Init()

	case sessionStateMsg:
		cmds := []tea.Cmd{m.waitForSessionState()}
		switch msg.state {
		case session.StateUnauthenticated:
			// Covers logout and any 401-forced deauthentication: the
			// client always lands back on the login surface.
			if m.currentView == ViewInbox || m.currentView == ViewDetail {
				m.currentView = ViewLogin
				if reason := m.session.LastError(); reason != "" {
					m.loginView.SetError(reason)
				}
				cmds = append(cmds, m.loginView.Init())
			}
		case session.StateAuthenticated:
			if m.currentView != ViewInbox && m.currentView != ViewDetail {
				m.currentView = ViewInbox
			}
		}
		return m, tea.Batch(cmds...)

	case mailboxUpdatedMsg:
		cmd := m.inboxView.SetMessages(m.mailbox.Messages())
		return m, tea.Batch(cmd, m.waitForMailbox())

	case login.SubmitMsg:
		return m, m.doLogin(msg.Address, msg.Password)

	case loginResultMsg:
		if msg.ok {
			m.currentView = ViewInbox
			if u := m.session.User(); u != nil {
				m.flash = "Welcome " + u.Address
			}
			return m, nil
		}
		m.loginView.SetError(msg.reason)
		return m, m.loginView.Init()

	case inbox.OpenMessageMsg:
		m.mailbox.MarkAsRead(msg.Message.ID)
		opened := msg.Message
		opened.IsRead = true
		m.detailView.SetMessage(opened)
		m.currentView = ViewDetail
		return m, nil

	case inbox.StarMsg:
		m.mailbox.ToggleStar(msg.ID)
		return m, nil

	case detail.BackMsg:
		m.currentView = ViewInbox
		return m, nil

	case detail.ExtractOTPMsg:
		return m, m.doExtractOTP(msg.MessageID)

	case flashMsg:
		m.flash = msg.text
		return m, nil

	case tea.KeyMsg:
		if handled, next, cmd := m.handleGlobalKeys(msg); handled {
			return next, cmd
		}
	}

	return m.updateCurrentView(msg)
}

// handleGlobalKeys processes keys that apply outside text entry. The
// login form owns the keyboard while it is visible, except for ctrl+c.
func (m Model) handleGlobalKeys(msg tea.KeyMsg) (bool, tea.Model, tea.Cmd) {
	if m.currentView == ViewLogin || m.currentView == ViewValidating {
		if msg.String() == "ctrl+c" {
			return true, m, tea.Quit
		}
		return false, m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return true, m, tea.Quit

	case key.Matches(msg, m.keys.Refresh):
		m.mailbox.Refresh()
		return true, m, nil

	case key.Matches(msg, m.keys.Logout):
		return true, m, m.doLogout()

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return true, m, nil
	}

	return false, m, nil
}

// updateCurrentView routes a message to the active view component.
func (m Model) updateCurrentView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewInbox:
		m.inboxView, cmd = m.inboxView.Update(msg)
	case ViewDetail:
		m.detailView, cmd = m.detailView.Update(msg)
	}
	return m, cmd
}

// doLogin runs the login off the UI loop and reports the outcome.
func (m Model) doLogin(address, password string) tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		ok := sess.Login(context.Background(), address, password)
		return loginResultMsg{ok: ok, reason: sess.LastError()}
	}
}

// doLogout runs the best-effort logout off the UI loop. The view
// switch happens via the resulting session transition.
func (m Model) doLogout() tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		sess.Logout(context.Background())
		return flashMsg{text: "Signed out"}
	}
}

// doExtractOTP runs server-side extraction for the given message.
func (m Model) doExtractOTP(messageID string) tea.Cmd {
	mb := m.mailbox
	return func() tea.Msg {
		result := mb.ExtractOTP(context.Background(), messageID)
		return detail.OTPResultMsg{MessageID: messageID, Result: result}
	}
}

// View renders the full application frame.
func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	header := m.layout.RenderHeader("MailHub", m.sessionStatus())

	var content string
	switch m.currentView {
	case ViewValidating:
		content = theme.HelpStyle.
			Width(m.layout.ContentWidth()).
			Height(m.layout.ContentHeight()).
			Align(lipgloss.Center, lipgloss.Center).
			Render("Validating session…")
	case ViewLogin:
		content = m.loginView.View()
	case ViewInbox:
		banner := m.layout.RenderErrorBanner(m.mailbox.Error())
		if banner != "" {
			content = banner + "\n" + m.inboxView.View()
		} else {
			content = m.inboxView.View()
		}
	case ViewDetail:
		content = m.detailView.View()
	}

	statusBar := m.layout.RenderStatusBar(m.statusLine())
	return m.layout.RenderWithFrame(header, content, statusBar)
}

// sessionStatus composes the right side of the header: user identity,
// connectivity, and sync activity.
func (m Model) sessionStatus() string {
	online := "○ offline"
	if m.session.IsOnline() {
		online = "● online"
	}

	parts := online
	if u := m.session.User(); u != nil {
		parts = u.Address + "  " + parts
	}
	if m.mailbox.Loading() {
		parts = "syncing…  " + parts
	}
	return parts
}

// statusLine composes the bottom status bar: stats, flash text, and
// key hints.
func (m Model) statusLine() string {
	if m.currentView == ViewLogin || m.currentView == ViewValidating {
		return "ctrl+c quit"
	}

	stats := m.mailbox.Stats()
	line := fmt.Sprintf(
		"%d messages · %d unread · %d starred",
		stats.Total, stats.Unread, stats.Starred,
	)

	if m.flash != "" {
		line += "  |  " + m.flash
	}

	if m.showHelp {
		line += "  |  r refresh · s star · o OTP · u unread · * starred · L log out · q quit"
	} else {
		line += "  |  ? help"
	}
	return line
}
