package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gerrit-tools/serviceuser-cli/internal/gerrit"
	"github.com/gerrit-tools/serviceuser-cli/internal/serviceuser"
)

// listUsersFetchedMsg is sent when the async fetch of service users completes.
type listUsersFetchedMsg struct {
	users   map[string]serviceuser.ServiceUserInfo
	err     error
	fetchID int64 // matches listModel.fetchID; stale responses are discarded
}

// listCapsFetchedMsg is sent when the async fetch of the caller's
// capabilities completes.
type listCapsFetchedMsg struct {
	caps    serviceuser.CapabilityInfo
	err     error
	fetchID int64
}

type listModel struct {
	client *gerrit.Client
	site   string

	users map[string]serviceuser.ServiceUserInfo
	perms serviceuser.Permissions

	pending int // outstanding fetches; loading while > 0
	err     error

	table    table.Model
	rowOrder []string // usernames aligned with table rows after filtering
	spinner  spinner.Model
	filter   tableFilter
	fetchID  int64

	lastRefreshed time.Time

	width  int
	height int
}

func newListModel(c *gerrit.Client, site string, w, h int) listModel {
	s := spinner.New()
	s.Spinner = CLISpinner
	s.Style = StyleSpinner

	return listModel{
		client:  c,
		site:    site,
		pending: 2,
		fetchID: time.Now().UnixNano(),
		spinner: s,
		width:   w,
		height:  h,
	}
}

func (m listModel) loading() bool {
	return m.pending > 0
}

// fixedListColWidth: FULL NAME(20)+EMAIL(25)+OWNER(16)+CREATED BY(12)+CREATED AT(20)+STATE(9) = 102 + separators ~12
const fixedListColWidth = 102 + 12

func (m listModel) usernameColWidth() int {
	w := m.width - fixedListColWidth - 4
	if w < 14 {
		w = 14
	}
	return w
}

func (m listModel) withRebuiltTable() listModel {
	cols := []table.Column{
		{Title: "USERNAME", Width: m.usernameColWidth()},
		{Title: "FULL NAME", Width: 20},
		{Title: "EMAIL", Width: 25},
		{Title: "OWNER", Width: 16},
		{Title: "CREATED BY", Width: 12},
		{Title: "CREATED AT", Width: 20},
		{Title: "STATE", Width: 9},
	}

	usernames := make([]string, 0, len(m.users))
	for name := range m.users {
		usernames = append(usernames, name)
	}
	sort.Strings(usernames)

	var rows []table.Row
	m.rowOrder = m.rowOrder[:0]
	for _, name := range usernames {
		u := m.users[name]
		owner := serviceuser.OwnerLabel(&u)
		creator := serviceuser.CreatorLabel(&u)
		state := serviceuser.StateLabel(&u)
		if !m.filter.matches(name, u.Name, u.Email, owner, creator) {
			continue
		}
		rows = append(rows, table.Row{name, u.Name, u.Email, owner, creator, u.CreatedAt, state})
		m.rowOrder = append(m.rowOrder, name)
	}

	tableHeight := m.height - 10 // padding(2) + title(1) + blank(1) + filter(1) + status(1) + help(2) + table border(2)
	if tableHeight < 3 {
		tableHeight = 3
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(tableHeight),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("255")).
		Background(lipgloss.Color("236")).
		Bold(false)
	t.SetStyles(s)
	m.table = t
	return m
}

func (m listModel) init() tea.Cmd {
	return tea.Batch(
		fetchServiceUsers(m.client, m.fetchID),
		fetchCapabilities(m.client, m.fetchID),
		m.spinner.Tick,
	)
}

func (m listModel) update(msg tea.Msg) (listModel, tea.Cmd) {
	switch msg := msg.(type) {
	case listUsersFetchedMsg:
		if msg.fetchID != m.fetchID {
			return m, nil // stale response from a previous fetch; discard
		}
		m.pending--
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.users = msg.users
		if m.pending == 0 {
			m.lastRefreshed = time.Now()
			m = m.withRebuiltTable()
		}
		return m, nil

	case listCapsFetchedMsg:
		if msg.fetchID != m.fetchID {
			return m, nil
		}
		m.pending--
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.perms = permsOf(msg.caps)
		if m.pending == 0 {
			m.lastRefreshed = time.Now()
			m = m.withRebuiltTable()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.loading() {
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if m.filter.active {
			var rebuild bool
			m.filter, rebuild = m.filter.handleKey(msg)
			if rebuild {
				m = m.withRebuiltTable()
			}
			return m, nil
		}

		switch msg.String() {
		case "/":
			m.filter.active = true
			return m, nil
		case "esc":
			if m.filter.hasActiveFilter() {
				m.filter.clear()
				m = m.withRebuiltTable()
			}
			return m, nil
		case "enter":
			cursor := m.table.Cursor()
			if cursor >= 0 && cursor < len(m.rowOrder) {
				name := m.rowOrder[cursor]
				return m, func() tea.Msg {
					return serviceUserSelectedMsg{username: name}
				}
			}
		case "c":
			if m.perms.CanCreate {
				return m, func() tea.Msg { return createRequestedMsg{} }
			}
		case "ctrl+r":
			return m.reload()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m listModel) reload() (listModel, tea.Cmd) {
	m.err = nil
	m.pending = 2
	m.fetchID = time.Now().UnixNano()
	return m, tea.Batch(
		fetchServiceUsers(m.client, m.fetchID),
		fetchCapabilities(m.client, m.fetchID),
		m.spinner.Tick,
	)
}

func (m listModel) view() string {
	if m.width == 0 {
		return ""
	}

	title := StyleTitle.Render(fmt.Sprintf("Service Users — %s", m.site))

	if m.loading() {
		return lipgloss.NewStyle().Padding(1, 2).Render(
			title + "\n\n" + StyleWarning.Render(m.spinner.View()+" Loading..."),
		)
	}

	if m.err != nil {
		lines := []string{
			title,
			"",
			StyleError.Render("Error: " + m.err.Error()),
			"",
			renderHelp("[ctrl+r] retry"),
			renderHelp("[Esc] quit"),
		}
		return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
	}

	count := StyleDim.Render(fmt.Sprintf(" (%d)", len(m.rowOrder)))

	var lines []string
	lines = append(lines, headerLine(title+count, m.width, m.lastRefreshed))
	lines = append(lines, "")
	lines = append(lines, m.table.View())
	if fl := m.filter.renderLine(); fl != "" {
		lines = append(lines, fl)
	} else {
		lines = append(lines, "")
	}
	help := "[Enter] details  [/] filter  |  [ctrl+r] refresh"
	if m.perms.CanCreate {
		help = "[Enter] details  [c] create  [/] filter  |  [ctrl+r] refresh"
	}
	lines = append(lines, renderHelp(help))
	lines = append(lines, renderHelp("[Esc] quit   [Q] quit"))

	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
}

func fetchServiceUsers(c *gerrit.Client, fetchID int64) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		users, err := serviceuser.List(ctx, c)
		return listUsersFetchedMsg{users: users, err: err, fetchID: fetchID}
	}
}

func fetchCapabilities(c *gerrit.Client, fetchID int64) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		caps, err := serviceuser.Capabilities(ctx, c)
		return listCapsFetchedMsg{caps: caps, err: err, fetchID: fetchID}
	}
}
