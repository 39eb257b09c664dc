package inbox

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mailhub/mailhub/internal/keys"
	"github.com/mailhub/mailhub/internal/model"
	"github.com/mailhub/mailhub/internal/theme"
)

// OpenMessageMsg is sent when the user opens a message; the parent
// marks it read and switches to the detail view.
type OpenMessageMsg struct {
	Message model.Message
}

// StarMsg is sent when the user toggles a message's star.
type StarMsg struct {
	ID string
}

// filterMode selects which slice of the mailbox the list shows.
type filterMode int

const (
	filterAll filterMode = iota
	filterUnread
	filterStarred
)

// Model is the inbox list view component.
type Model struct {
	list     list.Model
	keys     *keys.KeyMap
	messages []model.Message
	filter   filterMode
	width    int
	height   int
}

// New creates a new inbox list model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Inbox"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Init returns the initial command for the inbox view.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetMessages replaces the backing collection and re-applies the
// current filter. The selection index is preserved where possible.
func (m *Model) SetMessages(msgs []model.Message) tea.Cmd {
	m.messages = msgs
	return m.applyFilter()
}

// applyFilter rebuilds the visible items from the backing collection.
func (m *Model) applyFilter() tea.Cmd {
	items := make([]list.Item, 0, len(m.messages))
	for _, msg := range m.messages {
		switch m.filter {
		case filterUnread:
			if msg.IsRead {
				continue
			}
		case filterStarred:
			if !msg.IsStarred {
				continue
			}
		}
		items = append(items, MessageItem{Message: msg})
	}
	return m.list.SetItems(items)
}

// Selected returns the currently highlighted message, or nil.
func (m Model) Selected() *model.Message {
	item, ok := m.list.SelectedItem().(MessageItem)
	if !ok {
		return nil
	}
	msg := item.Message
	return &msg
}

// Update handles messages for the inbox view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Open):
			if sel := m.Selected(); sel != nil {
				selected := *sel
				return m, func() tea.Msg {
					return OpenMessageMsg{Message: selected}
				}
			}
			return m, nil

		case key.Matches(msg, m.keys.Star):
			if sel := m.Selected(); sel != nil {
				id := sel.ID
				return m, func() tea.Msg {
					return StarMsg{ID: id}
				}
			}
			return m, nil

		case key.Matches(msg, m.keys.UnreadOnly):
			m.filter = toggleFilter(m.filter, filterUnread)
			return m, m.applyFilter()

		case key.Matches(msg, m.keys.StarredOnly):
			m.filter = toggleFilter(m.filter, filterStarred)
			return m, m.applyFilter()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// toggleFilter switches to target, or back to all when already active.
func toggleFilter(current, target filterMode) filterMode {
	if current == target {
		return filterAll
	}
	return target
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}

// View renders the inbox list.
func (m Model) View() string {
	return m.list.View()
}
