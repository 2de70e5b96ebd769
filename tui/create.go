package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gerrit-tools/serviceuser-cli/internal/gerrit"
	"github.com/gerrit-tools/serviceuser-cli/internal/serviceuser"
)

type createMode int

const (
	createNormal createMode = iota
	createDone              // success dialog with the configured message
)

// Form field indices.
const (
	createFieldUsername = iota
	createFieldEmail
	createFieldKey
)

// createConfigMsg is sent when the plugin config fetch completes.
type createConfigMsg struct {
	cfg *serviceuser.ConfigInfo
	err error
}

// createResultMsg is sent when the creation request settles.
type createResultMsg struct {
	username string
	err      error
}

type createModel struct {
	client *gerrit.Client
	perms  serviceuser.Permissions

	cfg     *serviceuser.ConfigInfo
	flags   serviceuser.AllowFlags
	blocked *serviceuser.BlockedNameFilter

	loading bool
	err     error

	inputs [3]textinput.Model
	focus  int

	mode createMode
	busy bool // creation request in flight

	createdUsername string

	spinner   spinner.Model
	statusMsg string

	width  int
	height int
}

func newCreateModel(c *gerrit.Client, perms serviceuser.Permissions, w, h int) createModel {
	s := spinner.New()
	s.Spinner = CLISpinner
	s.Style = StyleSpinner

	placeholders := [3]string{
		"username (required)",
		"email@example.com",
		"ssh-ed25519 AAAA... comment (required)",
	}
	var inputs [3]textinput.Model
	for i := range inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 512
		inputs[i] = ti
	}
	inputs[createFieldUsername].Focus()

	return createModel{
		client:  c,
		perms:   perms,
		loading: true,
		inputs:  inputs,
		spinner: s,
		width:   w,
		height:  h,
	}
}

func (m createModel) init() tea.Cmd {
	c := m.client
	return tea.Batch(
		func() tea.Msg {
			cfg, err := serviceuser.PluginConfig(context.Background(), c)
			return createConfigMsg{cfg: cfg, err: err}
		},
		m.spinner.Tick,
		textinput.Blink,
	)
}

// fields returns the focusable field indices; email is skipped when the
// caller may not set one.
func (m createModel) fields() []int {
	if m.flags.Email {
		return []int{createFieldUsername, createFieldEmail, createFieldKey}
	}
	return []int{createFieldUsername, createFieldKey}
}

func (m createModel) formValid() bool {
	email := ""
	if m.flags.Email {
		email = m.inputs[createFieldEmail].Value()
	}
	return serviceuser.CreateFormValid(
		m.inputs[createFieldUsername].Value(),
		email,
		m.inputs[createFieldKey].Value(),
	)
}

func (m createModel) update(msg tea.Msg) (createModel, tea.Cmd) {
	switch msg := msg.(type) {
	case createConfigMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.cfg = msg.cfg
		m.flags = serviceuser.Merge(msg.cfg, m.perms)
		m.blocked = serviceuser.NewBlockedNameFilter(msg.cfg.BlockedNames)
		return m, nil

	case createResultMsg:
		m.busy = false
		if msg.err != nil {
			m.statusMsg = "Error: " + msg.err.Error()
			return m, nil
		}
		m.createdUsername = msg.username
		if m.cfg != nil && m.cfg.OnSuccess != "" {
			m.mode = createDone
			return m, nil
		}
		name := msg.username
		return m, func() tea.Msg { return userCreatedMsg{username: name} }

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.loading || m.busy {
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode == createDone {
			switch msg.String() {
			case "enter", "esc":
				name := m.createdUsername
				return m, func() tea.Msg { return userCreatedMsg{username: name} }
			}
			return m, nil
		}
		if m.loading || m.busy {
			return m, nil
		}
		if m.err != nil {
			if msg.String() == "ctrl+r" {
				m.err = nil
				m.loading = true
				return m, m.init()
			}
			return m, nil
		}

		switch msg.String() {
		case "enter", "tab", "down", "shift+tab", "up":
			fields := m.fields()
			pos := 0
			for i, f := range fields {
				if f == m.focus {
					pos = i
					break
				}
			}
			forward := msg.String() == "enter" || msg.String() == "tab" || msg.String() == "down"
			if msg.String() == "enter" && pos == len(fields)-1 {
				return m.submit()
			}
			m.inputs[m.focus].Blur()
			if forward {
				pos = (pos + 1) % len(fields)
			} else {
				pos = (pos - 1 + len(fields)) % len(fields)
			}
			m.focus = fields[pos]
			m.inputs[m.focus].Focus()
			return m, textinput.Blink
		default:
			var cmd tea.Cmd
			m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m createModel) submit() (createModel, tea.Cmd) {
	if !m.formValid() {
		m.statusMsg = "Username and SSH key are required; email must contain '@'"
		return m, nil
	}
	username := strings.TrimSpace(m.inputs[createFieldUsername].Value())
	if m.blocked != nil && m.blocked.Blocked(username) {
		m.statusMsg = fmt.Sprintf("Username %q is blocked on this server", username)
		return m, nil
	}
	email := ""
	if m.flags.Email {
		email = m.inputs[createFieldEmail].Value()
	}
	key := m.inputs[createFieldKey].Value()

	m.busy = true
	m.statusMsg = ""
	c := m.client
	return m, tea.Batch(
		func() tea.Msg {
			_, err := serviceuser.Create(context.Background(), c, username, key, email)
			return createResultMsg{username: username, err: err}
		},
		m.spinner.Tick,
	)
}

func (m createModel) view() string {
	if m.width == 0 {
		return ""
	}

	title := StyleTitle.Render("Create Service User")

	if m.loading {
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
			renderHelp("[Esc] back"),
		}
		return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
	}

	if m.mode == createDone {
		lines := []string{
			title,
			"",
			StyleSuccess.Render(fmt.Sprintf("Service user %q created", m.createdUsername)),
			"",
			m.cfg.OnSuccess,
			"",
			renderHelp("[Enter] continue"),
		}
		return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
	}

	lines := []string{title, ""}
	if m.cfg != nil && m.cfg.Info != "" {
		lines = append(lines, StyleSubtitle.Render(m.cfg.Info), "")
	}

	labels := [3]string{"Username:", "Email:", "SSH Key:"}
	for _, f := range m.fields() {
		label := fmt.Sprintf("  %-10s", labels[f])
		if f == m.focus {
			lines = append(lines, StyleWarning.Render(label)+m.inputs[f].View())
		} else {
			lines = append(lines, StyleDim.Render(label)+m.inputs[f].View())
		}
	}
	lines = append(lines, "")

	if m.busy {
		lines = append(lines, StyleWarning.Render(m.spinner.View()+" Creating..."))
	} else if m.statusMsg != "" {
		lines = append(lines, StyleError.Render(m.statusMsg))
	} else if m.formValid() {
		lines = append(lines, StyleSuccess.Render("Ready to create"))
	} else {
		lines = append(lines, StyleDim.Render("Username and SSH key are required"))
	}

	lines = append(lines, "")
	lines = append(lines, renderHelp("[Enter] next/create   [Tab] switch field   [Esc] cancel"))
	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
}
