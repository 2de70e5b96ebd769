package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gerrit-tools/serviceuser-cli/internal/gerrit"
	"github.com/gerrit-tools/serviceuser-cli/internal/serviceuser"
)

// pwGeneratedMsg is sent after a generate request settled. password holds the
// plaintext, which the server never returns again.
type pwGeneratedMsg struct {
	password string
	err      error
}

// pwDeletedMsg is sent after a delete request settled.
type pwDeletedMsg struct {
	err error
}

// passwordPanelModel is the HTTP password panel of the detail screen. The
// generated plaintext only lives in this model and is dropped when the panel
// closes.
type passwordPanelModel struct {
	client   *gerrit.Client
	username string
	open     bool

	busy     bool // generate or delete in flight
	busyMsg  string
	password string

	spinner   spinner.Model
	statusMsg string
	statusErr bool

	width  int
	height int
}

func newPasswordPanel(c *gerrit.Client, username string, w, h int) passwordPanelModel {
	s := spinner.New()
	s.Spinner = CLISpinner
	s.Style = StyleSpinner

	return passwordPanelModel{
		client:   c,
		username: username,
		open:     true,
		spinner:  s,
		width:    w,
		height:   h,
	}
}

func (m passwordPanelModel) update(msg tea.Msg) (passwordPanelModel, tea.Cmd) {
	switch msg := msg.(type) {
	case pwGeneratedMsg:
		m.busy = false
		if msg.err != nil {
			m.statusMsg = "Error: " + msg.err.Error()
			m.statusErr = true
			return m, nil
		}
		m.password = msg.password
		m.statusMsg = ""
		return m, nil

	case pwDeletedMsg:
		m.busy = false
		if msg.err != nil {
			m.statusMsg = "Error: " + msg.err.Error()
			m.statusErr = true
			return m, nil
		}
		m.password = ""
		m.statusMsg = "HTTP password deleted"
		m.statusErr = false
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.busy {
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		switch msg.String() {
		case "g":
			m.busy = true
			m.busyMsg = "Generating..."
			m.statusMsg = ""
			c := m.client
			id := m.username
			return m, tea.Batch(
				func() tea.Msg {
					pw, err := serviceuser.GenerateHTTPPassword(context.Background(), c, id)
					return pwGeneratedMsg{password: pw, err: err}
				},
				m.spinner.Tick,
			)
		case "d":
			m.busy = true
			m.busyMsg = "Deleting..."
			m.statusMsg = ""
			c := m.client
			id := m.username
			return m, tea.Batch(
				func() tea.Msg {
					return pwDeletedMsg{err: serviceuser.DeleteHTTPPassword(context.Background(), c, id)}
				},
				m.spinner.Tick,
			)
		case "y":
			if m.password == "" {
				return m, nil
			}
			if err := clipboard.WriteAll(m.password); err != nil {
				m.statusMsg = "Clipboard: " + err.Error()
				m.statusErr = true
			} else {
				m.statusMsg = "Password copied to clipboard"
				m.statusErr = false
			}
			return m, nil
		}
	}
	return m, nil
}

func (m passwordPanelModel) view() string {
	if m.width == 0 {
		return ""
	}

	title := StyleTitle.Render(fmt.Sprintf("HTTP Password — %s", m.username))

	var lines []string
	lines = append(lines, title)
	lines = append(lines, "")
	lines = append(lines, StyleSubtitle.Render("The server stores only a hash. A generated password is shown once;"))
	lines = append(lines, StyleSubtitle.Render("it is gone when this panel closes."))
	lines = append(lines, "")

	switch {
	case m.busy:
		lines = append(lines, StyleWarning.Render(m.spinner.View()+" "+m.busyMsg))
	case m.password != "":
		lines = append(lines, StyleSuccess.Render("New HTTP password:"))
		lines = append(lines, "")
		lines = append(lines, "  "+m.password)
	case m.statusMsg != "" && m.statusErr:
		lines = append(lines, StyleError.Render(m.statusMsg))
	case m.statusMsg != "":
		lines = append(lines, StyleSuccess.Render(m.statusMsg))
	default:
		lines = append(lines, StyleDim.Render("No password generated in this session."))
	}

	lines = append(lines, "")
	help := "[g] generate   [d] delete"
	if m.password != "" {
		help += "   [y] copy"
	}
	lines = append(lines, renderHelp(help))
	lines = append(lines, renderHelp("[Esc] close (discards the shown password)"))

	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
}
