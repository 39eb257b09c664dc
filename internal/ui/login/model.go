package login

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/mailhub/mailhub/internal/theme"
)

// SubmitMsg carries the entered credentials to the parent, which runs
// the actual login against the session controller.
type SubmitMsg struct {
	Address  string
	Password string
}

// Model is the login form view.
type Model struct {
	form       *huh.Form
	address    string
	password   string
	errMsg     string
	submitting bool
	spinner    spinner.Model
	width      int
	height     int
}

// New creates a new login form model.
func New(width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	m := Model{
		spinner: sp,
		width:   width,
		height:  height,
	}
	m.form = m.buildForm()
	return m
}

// buildForm constructs the credentials form.
func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email address").
				Placeholder("you@example.com").
				Value(&m.address).
				Validate(validateAddress),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.password).
				Validate(validateRequired("Password")),
		),
	).WithWidth(minInt(m.width-4, 60))
}

// validateAddress checks for a plausible email address.
func validateAddress(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return fmt.Errorf("email address is required")
	}
	if !strings.Contains(v, "@") {
		return fmt.Errorf("enter a valid email address")
	}
	return nil
}

// validateRequired returns a validator rejecting empty input.
func validateRequired(name string) func(string) error {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

// Init returns the initial commands for the login view.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.form.Init(), m.spinner.Tick)
}

// SetError displays a failure reason and re-arms the form for another
// attempt, keeping the entered address.
func (m *Model) SetError(reason string) {
	m.errMsg = reason
	m.password = ""
	m.submitting = false
	m.form = m.buildForm()
}

// Update handles messages for the login view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if sp, ok := msg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(sp)
		return m, cmd
	}

	if m.submitting {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.submitting = true
		m.errMsg = ""
		address := m.address
		password := m.password
		return m, func() tea.Msg {
			return SubmitMsg{Address: address, Password: password}
		}
	}

	return m, cmd
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// View renders the login form with any failure reason below it.
func (m Model) View() string {
	var b strings.Builder

	title := theme.HeaderStyle.Render("Sign in to MailHub")
	b.WriteString(title)
	b.WriteString("\n\n")

	if m.submitting {
		b.WriteString(m.spinner.View())
		b.WriteString(" Signing in…\n")
	} else {
		b.WriteString(m.form.View())
	}

	if m.errMsg != "" {
		b.WriteString("\n")
		b.WriteString(theme.ErrorStyle.Render(m.errMsg))
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(b.String())
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
