package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mailhub/mailhub/internal/keys"
	"github.com/mailhub/mailhub/internal/mailbox"
	"github.com/mailhub/mailhub/internal/model"
	"github.com/mailhub/mailhub/internal/theme"
)

// BackMsg signals the parent to navigate back to the inbox list.
type BackMsg struct{}

// ExtractOTPMsg asks the parent to run server-side OTP extraction for
// the current message.
type ExtractOTPMsg struct {
	MessageID string
}

// OTPResultMsg carries the server-side extraction outcome back into
// the view.
type OTPResultMsg struct {
	MessageID string
	Result    mailbox.OTPResult
}

// Model is the message detail view component.
type Model struct {
	message    *model.Message
	otpResult  *mailbox.OTPResult
	extracting bool
	viewport   viewport.Model
	keys       *keys.KeyMap
	width      int
	height     int
}

// New creates a new detail view model.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetMessage loads a message into the view and resets any previous
// OTP extraction result.
func (m *Model) SetMessage(msg model.Message) {
	m.message = &msg
	m.otpResult = nil
	m.extracting = false
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case OTPResultMsg:
		if m.message != nil && msg.MessageID == m.message.ID {
			result := msg.Result
			m.otpResult = &result
			m.extracting = false
			m.viewport.SetContent(m.renderContent())
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg {
				return BackMsg{}
			}

		case key.Matches(msg, m.keys.ExtractOTP):
			if m.message != nil && !m.extracting {
				m.extracting = true
				m.viewport.SetContent(m.renderContent())
				id := m.message.ID
				return m, func() tea.Msg {
					return ExtractOTPMsg{MessageID: id}
				}
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.message != nil {
		m.viewport.SetContent(m.renderContent())
	}
}

// View renders the detail view.
func (m Model) View() string {
	if m.message == nil {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("No message selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.message == nil {
		return ""
	}

	msg := m.message
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(msg.Subject))
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	sections = append(sections, fmt.Sprintf(
		"%s  %s <%s>",
		metaStyle.Render("From:"),
		valStyle.Render(msg.Sender.Name),
		msg.Sender.Email,
	))
	sections = append(sections, fmt.Sprintf(
		"%s  %s",
		metaStyle.Render("Date:"),
		valStyle.Render(msg.Timestamp.Format("2006-01-02 15:04")),
	))

	if len(msg.OTPCodes) > 0 {
		sections = append(sections, fmt.Sprintf(
			"%s   %s",
			metaStyle.Render("OTP:"),
			theme.OTPStyle.Render(strings.Join(msg.OTPCodes, " ")),
		))
	}

	sections = append(sections, m.renderOTPSection()...)

	if len(msg.Attachments) > 0 {
		sections = append(sections, "")
		sections = append(sections, metaStyle.Render("Attachments:"))
		for _, a := range msg.Attachments {
			sections = append(sections, fmt.Sprintf(
				"  ⊕ %s (%s, %d bytes)", a.Filename, a.ContentType, a.Size,
			))
		}
	}

	sections = append(sections, "")
	body := msg.Content.Text
	if body == "" {
		body = msg.Preview
	}
	sections = append(sections, body)

	return theme.DetailPanelStyle.Width(m.width - 2).Render(
		strings.Join(sections, "\n"),
	)
}

// renderOTPSection shows the server-side extraction state: in
// progress, found with the best candidate, or not found. The
// body-aware server result is preferred over the subject hint above.
func (m Model) renderOTPSection() []string {
	if m.extracting {
		return []string{theme.HelpStyle.Render("Extracting OTP…")}
	}
	if m.otpResult == nil {
		return nil
	}

	if !m.otpResult.Found {
		return []string{theme.HelpStyle.Render("No OTP found in message body")}
	}

	line := "Code: " + theme.OTPStyle.Render(m.otpResult.Code)
	if len(m.otpResult.Codes) > 1 {
		line += theme.HelpStyle.Render(
			"  (also: " + strings.Join(m.otpResult.Codes[1:], " ") + ")",
		)
	}
	return []string{line}
}
