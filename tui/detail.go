package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gerrit-tools/serviceuser-cli/internal/gerrit"
	"github.com/gerrit-tools/serviceuser-cli/internal/serviceuser"
)

type detailMode int

const (
	detailNormal   detailMode = iota
	detailKeys                // SSH key panel open
	detailPassword            // HTTP password panel open
)

// Editable field indices.
const (
	detailFieldName = iota
	detailFieldEmail
	detailFieldOwner
)

// detailUserMsg is sent when the account fetch completes.
type detailUserMsg struct {
	user    *serviceuser.ServiceUserInfo
	err     error
	fetchID int64
}

// detailConfigMsg is sent when the plugin config fetch completes.
type detailConfigMsg struct {
	cfg     *serviceuser.ConfigInfo
	err     error
	fetchID int64
}

// detailCapsMsg is sent when the capability fetch completes.
type detailCapsMsg struct {
	caps    serviceuser.CapabilityInfo
	err     error
	fetchID int64
}

// ownerSuggestMsg carries group suggestions for the owner type-ahead.
type ownerSuggestMsg struct {
	names     []string
	err       error
	suggestID int64
}

// saveSettledMsg is sent after all per-field writes of a save settled.
type saveSettledMsg struct {
	failed []string
}

// toggleActiveMsg is sent after an activate/deactivate request settled.
type toggleActiveMsg struct {
	err       error
	activated bool
}

type detailModel struct {
	client   *gerrit.Client
	username string

	user  *serviceuser.ServiceUserInfo
	cfg   *serviceuser.ConfigInfo
	flags serviceuser.AllowFlags

	pending int // outstanding loads; loading while > 0
	loadErr error
	fetchID int64

	mode detailMode

	inputs [3]textinput.Model
	focus  int

	// Owner type-ahead state. Suggestions are only trusted for the query
	// they were fetched for.
	suggestions []string
	suggestID   int64

	busy bool // save or toggle in flight

	keys sshPanelModel
	pw   passwordPanelModel

	spinner       spinner.Model
	statusMsg     string
	statusErr     bool
	lastRefreshed time.Time

	width  int
	height int
}

func newDetailModel(c *gerrit.Client, username string, w, h int) detailModel {
	s := spinner.New()
	s.Spinner = CLISpinner
	s.Style = StyleSpinner

	placeholders := [3]string{"Full name", "email@example.com", "Owner group"}
	var inputs [3]textinput.Model
	for i := range inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 256
		inputs[i] = ti
	}
	inputs[detailFieldName].Focus()

	return detailModel{
		client:   c,
		username: username,
		pending:  3,
		fetchID:  time.Now().UnixNano(),
		inputs:   inputs,
		spinner:  s,
		width:    w,
		height:   h,
	}
}

func (m detailModel) init() tea.Cmd {
	return tea.Batch(m.loadCmds(), m.spinner.Tick, textinput.Blink)
}

func (m detailModel) loadCmds() tea.Cmd {
	c := m.client
	id := m.username
	fetchID := m.fetchID
	return tea.Batch(
		func() tea.Msg {
			user, err := serviceuser.Get(context.Background(), c, id)
			return detailUserMsg{user: user, err: err, fetchID: fetchID}
		},
		func() tea.Msg {
			cfg, err := serviceuser.PluginConfig(context.Background(), c)
			return detailConfigMsg{cfg: cfg, err: err, fetchID: fetchID}
		},
		func() tea.Msg {
			caps, err := serviceuser.Capabilities(context.Background(), c)
			return detailCapsMsg{caps: caps, err: err, fetchID: fetchID}
		},
	)
}

func (m detailModel) loading() bool {
	return m.pending > 0
}

// editing reports whether keystrokes currently go into a text input.
func (m detailModel) editing() bool {
	return m.mode == detailNormal && !m.loading() && m.loadErr == nil
}

// editableFields returns the focusable field indices given the allow flags.
func (m detailModel) editableFields() []int {
	fields := []int{detailFieldName}
	if m.flags.Email {
		fields = append(fields, detailFieldEmail)
	}
	if m.flags.Owner {
		fields = append(fields, detailFieldOwner)
	}
	return fields
}

// resetInputs loads the stored account values into the edit fields.
func (m *detailModel) resetInputs() {
	m.inputs[detailFieldName].SetValue(m.user.Name)
	m.inputs[detailFieldEmail].SetValue(m.user.Email)
	owner := ""
	if m.user.Owner != nil {
		owner = serviceuser.OwnerLabel(m.user)
	}
	m.inputs[detailFieldOwner].SetValue(owner)
	m.suggestions = nil
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	m.focus = detailFieldName
	m.inputs[m.focus].Focus()
}

func (m detailModel) canSave() bool {
	return serviceuser.PrefsChanged(
		m.user,
		m.inputs[detailFieldName].Value(),
		m.inputs[detailFieldEmail].Value(),
		m.inputs[detailFieldOwner].Value(),
		m.suggestions,
	)
}

func (m detailModel) ownerPendingChange() bool {
	edited := m.inputs[detailFieldOwner].Value()
	return edited != "" &&
		serviceuser.OwnerChanged(serviceuser.OwnerLabel(m.user), edited, m.suggestions)
}

func (m detailModel) reload() (detailModel, tea.Cmd) {
	m.loadErr = nil
	m.pending = 3
	m.fetchID = time.Now().UnixNano()
	return m, tea.Batch(m.loadCmds(), m.spinner.Tick)
}

func (m detailModel) update(msg tea.Msg) (detailModel, tea.Cmd) {
	// Panel-owned messages route to the panel regardless of key focus.
	switch msg.(type) {
	case sshKeysLoadedMsg, sshKeyAddedMsg, sshKeysDeletedMsg:
		var cmd tea.Cmd
		m.keys, cmd = m.keys.update(msg)
		return m, cmd
	case pwGeneratedMsg, pwDeletedMsg:
		var cmd tea.Cmd
		m.pw, cmd = m.pw.update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case detailUserMsg:
		if msg.fetchID != m.fetchID {
			return m, nil
		}
		m.pending--
		if msg.err != nil {
			m.loadErr = msg.err
			return m, nil
		}
		m.user = msg.user
		if m.pending == 0 {
			m.finishLoad()
		}
		return m, nil

	case detailConfigMsg:
		if msg.fetchID != m.fetchID {
			return m, nil
		}
		m.pending--
		if msg.err != nil {
			m.loadErr = msg.err
			return m, nil
		}
		m.cfg = msg.cfg
		if m.pending == 0 {
			m.finishLoad()
		}
		return m, nil

	case detailCapsMsg:
		if msg.fetchID != m.fetchID {
			return m, nil
		}
		m.pending--
		if msg.err != nil {
			m.loadErr = msg.err
			return m, nil
		}
		m.flags = serviceuser.Merge(m.cfg, permsOf(msg.caps))
		if m.pending == 0 {
			m.finishLoad()
		}
		return m, nil

	case ownerSuggestMsg:
		if msg.suggestID != m.suggestID {
			return m, nil // stale type-ahead response; discard
		}
		if msg.err == nil {
			m.suggestions = msg.names
		}
		return m, nil

	case saveSettledMsg:
		m.busy = false
		if len(msg.failed) > 0 {
			m.statusMsg = "Save failed: " + strings.Join(msg.failed, "; ")
			m.statusErr = true
		} else {
			m.statusMsg = "Saved"
			m.statusErr = false
		}
		// Reload everything so the screen reflects the server's state,
		// including partially applied saves.
		return m.reload()

	case toggleActiveMsg:
		m.busy = false
		if msg.err != nil {
			m.statusMsg = "Error: " + msg.err.Error()
			m.statusErr = true
			return m, nil
		}
		if msg.activated {
			m.statusMsg = "Account activated"
		} else {
			m.statusMsg = "Account deactivated"
		}
		m.statusErr = false
		return m.reload()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.loading() || m.busy || m.keys.busy || m.keys.loading || m.pw.busy {
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case detailKeys:
			return m.updateKeysPanel(msg)
		case detailPassword:
			return m.updatePasswordPanel(msg)
		}

		if m.loading() {
			return m, nil
		}
		if m.loadErr != nil {
			if msg.String() == "ctrl+r" {
				return m.reload()
			}
			return m, nil
		}

		switch msg.String() {
		case "ctrl+r":
			return m.reload()

		case "ctrl+s":
			if m.busy || !m.canSave() {
				return m, nil
			}
			m.busy = true
			m.statusMsg = ""
			return m, tea.Batch(m.saveCmd(), m.spinner.Tick)

		case "ctrl+t":
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.statusMsg = ""
			return m, tea.Batch(m.toggleActiveCmd(), m.spinner.Tick)

		case "ctrl+k":
			m.mode = detailKeys
			m.keys = newSSHPanel(m.client, m.username, m.width, m.height)
			return m, m.keys.init()

		case "ctrl+p":
			if !m.flags.HTTPPassword {
				m.statusMsg = "HTTP password management is not enabled for you"
				m.statusErr = true
				return m, nil
			}
			m.mode = detailPassword
			m.pw = newPasswordPanel(m.client, m.username, m.width, m.height)
			return m, nil

		case "tab", "down", "shift+tab", "up", "enter":
			fields := m.editableFields()
			pos := 0
			for i, f := range fields {
				if f == m.focus {
					pos = i
					break
				}
			}
			m.inputs[m.focus].Blur()
			if msg.String() == "shift+tab" || msg.String() == "up" {
				pos = (pos - 1 + len(fields)) % len(fields)
			} else {
				pos = (pos + 1) % len(fields)
			}
			m.focus = fields[pos]
			m.inputs[m.focus].Focus()
			return m, textinput.Blink

		default:
			var cmd tea.Cmd
			before := m.inputs[m.focus].Value()
			m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
			after := m.inputs[m.focus].Value()
			if m.focus == detailFieldOwner && after != before && strings.TrimSpace(after) != "" {
				m.suggestID = time.Now().UnixNano()
				return m, tea.Batch(cmd, fetchOwnerSuggestions(m.client, after, m.suggestID))
			}
			return m, cmd
		}
	}
	return m, nil
}

// updateKeysPanel routes keystrokes to the SSH key panel and handles closing it.
func (m detailModel) updateKeysPanel(msg tea.KeyMsg) (detailModel, tea.Cmd) {
	if msg.String() == "esc" && m.keys.mode == sshNormal {
		if len(m.keys.staged) > 0 && !m.keys.closeWarned {
			m.keys.closeWarned = true
			m.keys.statusMsg = "Staged deletions not applied — [s] apply, [Esc] discard and close"
			m.keys.statusErr = true
			return m, nil
		}
		m.mode = detailNormal
		m.keys = sshPanelModel{}
		return m, nil
	}
	var cmd tea.Cmd
	m.keys, cmd = m.keys.update(msg)
	return m, cmd
}

// updatePasswordPanel routes keystrokes to the password panel and handles
// closing it. The one-time password is dropped on close.
func (m detailModel) updatePasswordPanel(msg tea.KeyMsg) (detailModel, tea.Cmd) {
	if msg.String() == "esc" && !m.pw.busy {
		m.mode = detailNormal
		m.pw = passwordPanelModel{}
		return m, nil
	}
	var cmd tea.Cmd
	m.pw, cmd = m.pw.update(msg)
	return m, cmd
}

// finishLoad runs once all three loads settled successfully.
func (m *detailModel) finishLoad() {
	m.lastRefreshed = time.Now()
	m.resetInputs()
}

func (m detailModel) saveCmd() tea.Cmd {
	c := m.client
	id := m.username
	u := *m.user
	name := m.inputs[detailFieldName].Value()
	email := m.inputs[detailFieldEmail].Value()
	owner := m.inputs[detailFieldOwner].Value()
	suggestions := m.suggestions

	return func() tea.Msg {
		type result struct {
			field string
			err   error
		}
		ctx := context.Background()
		results := make(chan result, 3)
		var wg sync.WaitGroup

		if serviceuser.NameChanged(u.Name, name) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- result{"full name", serviceuser.SetName(ctx, c, id, name)}
			}()
		}
		if serviceuser.EmailChanged(u.Email, email) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- result{"email", serviceuser.SetEmail(ctx, c, id, email)}
			}()
		}
		if serviceuser.OwnerChanged(serviceuser.OwnerLabel(&u), owner, suggestions) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- result{"owner", serviceuser.SetOwner(ctx, c, id, owner)}
			}()
		}

		wg.Wait()
		close(results)

		var failed []string
		for r := range results {
			if r.err != nil {
				failed = append(failed, r.field+": "+r.err.Error())
			}
		}
		return saveSettledMsg{failed: failed}
	}
}

func (m detailModel) toggleActiveCmd() tea.Cmd {
	c := m.client
	id := m.username
	activate := m.user.Inactive
	return func() tea.Msg {
		ctx := context.Background()
		var err error
		if activate {
			err = serviceuser.Activate(ctx, c, id)
		} else {
			err = serviceuser.Deactivate(ctx, c, id)
		}
		return toggleActiveMsg{err: err, activated: activate}
	}
}

func fetchOwnerSuggestions(c *gerrit.Client, query string, suggestID int64) tea.Cmd {
	return func() tea.Msg {
		names, _, err := serviceuser.SuggestGroups(context.Background(), c, query)
		return ownerSuggestMsg{names: names, err: err, suggestID: suggestID}
	}
}

func (m detailModel) view() string {
	if m.width == 0 {
		return ""
	}

	switch m.mode {
	case detailKeys:
		return m.keys.view()
	case detailPassword:
		return m.pw.view()
	}

	title := StyleTitle.Render(fmt.Sprintf("Service User — %s", m.username))

	if m.loading() {
		return lipgloss.NewStyle().Padding(1, 2).Render(
			title + "\n\n" + StyleWarning.Render(m.spinner.View()+" Loading..."),
		)
	}

	if m.loadErr != nil {
		lines := []string{
			title,
			"",
			StyleError.Render("Error: " + m.loadErr.Error()),
			"",
			renderHelp("[ctrl+r] retry"),
			renderHelp("[Esc] back   [Q] quit"),
		}
		return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
	}

	state := serviceuser.StateLabel(m.user)
	stateStyled := StyleInactive.Render(state)
	if state == "Active" {
		stateStyled = StyleActive.Render(state)
	}

	var lines []string
	lines = append(lines, headerLine(title, m.width, m.lastRefreshed))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("  %-12s%d", "Account ID:", m.user.AccountID))
	lines = append(lines, fmt.Sprintf("  %-12s%s", "Created By:", serviceuser.CreatorLabel(m.user)))
	lines = append(lines, fmt.Sprintf("  %-12s%s", "Created At:", m.user.CreatedAt))
	lines = append(lines, fmt.Sprintf("  %-12s%s", "State:", stateStyled))
	lines = append(lines, "")

	labels := [3]string{"Full Name:", "Email:", "Owner:"}
	fields := m.editableFields()
	editable := map[int]bool{}
	for _, f := range fields {
		editable[f] = true
	}
	for f := 0; f < 3; f++ {
		label := fmt.Sprintf("  %-12s", labels[f])
		switch {
		case !editable[f]:
			stored := [3]string{m.user.Name, m.user.Email, serviceuser.OwnerLabel(m.user)}[f]
			lines = append(lines, StyleDim.Render(label+stored))
		case f == m.focus:
			lines = append(lines, StyleWarning.Render(label)+m.inputs[f].View())
		default:
			lines = append(lines, StyleDim.Render(label)+m.inputs[f].View())
		}
	}

	// Owner type-ahead suggestions.
	if editable[detailFieldOwner] && m.focus == detailFieldOwner && len(m.suggestions) > 0 {
		lines = append(lines, StyleDim.Render("              Groups: "+strings.Join(m.suggestions, ", ")))
	}
	if m.ownerPendingChange() {
		lines = append(lines, StyleWarning.Render("  Note: only members of the new owner group (and admins) can manage this account afterwards."))
	}
	lines = append(lines, "")

	switch {
	case m.busy:
		lines = append(lines, StyleWarning.Render(m.spinner.View()+" Working..."))
	case m.statusMsg != "" && m.statusErr:
		lines = append(lines, StyleError.Render(m.statusMsg))
	case m.statusMsg != "":
		lines = append(lines, StyleSuccess.Render(m.statusMsg))
	case m.canSave():
		lines = append(lines, StyleSuccess.Render("Unsaved changes — [ctrl+s] to save"))
	default:
		lines = append(lines, "")
	}

	lines = append(lines, "")
	toggle := "[ctrl+t] deactivate"
	if m.user.Inactive {
		toggle = "[ctrl+t] activate"
	}
	help := "[ctrl+s] save  " + toggle + "  [ctrl+k] SSH keys"
	if m.flags.HTTPPassword {
		help += "  [ctrl+p] HTTP password"
	}
	lines = append(lines, renderHelp(help+"  |  [ctrl+r] refresh"))
	lines = append(lines, renderHelp("[Tab] switch field   [Esc] back"))

	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
}
