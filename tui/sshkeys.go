package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gerrit-tools/serviceuser-cli/internal/gerrit"
	"github.com/gerrit-tools/serviceuser-cli/internal/serviceuser"
)

type sshPanelMode int

const (
	sshNormal  sshPanelMode = iota
	sshAdding               // add-key input open
	sshViewing              // full key material modal
)

// sshKeysLoadedMsg is sent when the async key fetch completes.
type sshKeysLoadedMsg struct {
	keys    []serviceuser.SSHKeyInfo
	err     error
	fetchID int64
}

// sshKeyAddedMsg is sent after an add-key request settled.
type sshKeyAddedMsg struct {
	key *serviceuser.SSHKeyInfo
	err error
}

// sshKeysDeletedMsg is sent after all staged deletions settled.
type sshKeysDeletedMsg struct {
	deleted int
	failed  []int // seq numbers whose DELETE failed; they stay staged
}

// sshPanelModel is the SSH key panel of the detail screen. Deletions are
// staged locally and applied in one batch; additions go out immediately.
type sshPanelModel struct {
	client   *gerrit.Client
	username string
	open     bool

	keys   []serviceuser.SSHKeyInfo
	staged map[int]bool // seq numbers staged for deletion

	loading bool
	err     error
	fetchID int64

	table   table.Model
	rowSeqs []int // seq numbers aligned with table rows
	mode    sshPanelMode
	busy    bool // add or batch delete in flight

	input textinput.Model // add-key form

	viewSeq     int // seq shown in the view modal
	closeWarned bool

	spinner   spinner.Model
	statusMsg string
	statusErr bool

	width  int
	height int
}

func newSSHPanel(c *gerrit.Client, username string, w, h int) sshPanelModel {
	s := spinner.New()
	s.Spinner = CLISpinner
	s.Style = StyleSpinner

	ti := textinput.New()
	ti.Placeholder = "ssh-ed25519 AAAA... comment"
	ti.CharLimit = 1024

	return sshPanelModel{
		client:   c,
		username: username,
		open:     true,
		staged:   map[int]bool{},
		loading:  true,
		fetchID:  time.Now().UnixNano(),
		input:    ti,
		spinner:  s,
		width:    w,
		height:   h,
	}
}

func (m sshPanelModel) init() tea.Cmd {
	return tea.Batch(fetchSSHKeys(m.client, m.username, m.fetchID), m.spinner.Tick)
}

func fetchSSHKeys(c *gerrit.Client, username string, fetchID int64) tea.Cmd {
	return func() tea.Msg {
		keys, err := serviceuser.SSHKeys(context.Background(), c, username)
		return sshKeysLoadedMsg{keys: keys, err: err, fetchID: fetchID}
	}
}

func (m sshPanelModel) withRebuiltTable() sshPanelModel {
	commentWidth := m.width - 6 - 12 - 7 - 16 - 14
	if commentWidth < 15 {
		commentWidth = 15
	}
	cols := []table.Column{
		{Title: "SEQ", Width: 6},
		{Title: "ALGORITHM", Width: 12},
		{Title: "VALID", Width: 7},
		{Title: "COMMENT", Width: commentWidth},
		{Title: "PENDING", Width: 16},
	}

	rows := make([]table.Row, len(m.keys))
	m.rowSeqs = make([]int, len(m.keys))
	for i, k := range m.keys {
		pending := ""
		if m.staged[k.Seq] {
			pending = "delete"
		}
		rows[i] = table.Row{
			fmt.Sprintf("%d", k.Seq),
			k.Algorithm,
			yesNoLabel(k.Valid),
			k.Comment,
			pending,
		}
		m.rowSeqs[i] = k.Seq
	}

	tableHeight := m.height - 9
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

func (m sshPanelModel) selectedSeq() (int, bool) {
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.rowSeqs) {
		return 0, false
	}
	return m.rowSeqs[cursor], true
}

func (m sshPanelModel) keyBySeq(seq int) (serviceuser.SSHKeyInfo, bool) {
	for _, k := range m.keys {
		if k.Seq == seq {
			return k, true
		}
	}
	return serviceuser.SSHKeyInfo{}, false
}

func (m sshPanelModel) update(msg tea.Msg) (sshPanelModel, tea.Cmd) {
	switch msg := msg.(type) {
	case sshKeysLoadedMsg:
		if msg.fetchID != m.fetchID {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.keys = msg.keys
		m = m.withRebuiltTable()
		return m, nil

	case sshKeyAddedMsg:
		m.busy = false
		if msg.err != nil {
			m.statusMsg = "Error: " + msg.err.Error()
			m.statusErr = true
			return m, nil
		}
		m.statusMsg = fmt.Sprintf("Key %d added", msg.key.Seq)
		m.statusErr = false
		m.keys = append(m.keys, *msg.key)
		m = m.withRebuiltTable()
		return m, nil

	case sshKeysDeletedMsg:
		m.busy = false
		m.staged = map[int]bool{}
		for _, seq := range msg.failed {
			m.staged[seq] = true
		}
		if len(msg.failed) > 0 {
			seqs := make([]string, len(msg.failed))
			for i, s := range msg.failed {
				seqs[i] = fmt.Sprintf("%d", s)
			}
			m.statusMsg = "Failed to delete key(s) " + strings.Join(seqs, ", ")
			m.statusErr = true
		} else {
			m.statusMsg = fmt.Sprintf("%d key(s) deleted", msg.deleted)
			m.statusErr = false
			m.closeWarned = false
		}
		m.loading = true
		m.fetchID = time.Now().UnixNano()
		return m, tea.Batch(fetchSSHKeys(m.client, m.username, m.fetchID), m.spinner.Tick)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.loading || m.busy {
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode == sshAdding {
			switch msg.String() {
			case "esc":
				m.mode = sshNormal
				m.input.Reset()
				m.input.Blur()
				return m, nil
			case "enter":
				material := m.input.Value()
				if !serviceuser.ValidKey(material) {
					m.statusMsg = "SSH key must not be empty"
					m.statusErr = true
					return m, nil
				}
				if _, err := serviceuser.ParseKey(material); err != nil {
					m.statusMsg = "Error: " + err.Error()
					m.statusErr = true
					return m, nil
				}
				m.mode = sshNormal
				m.input.Reset()
				m.input.Blur()
				m.busy = true
				m.statusMsg = ""
				return m, tea.Batch(m.addKeyCmd(material), m.spinner.Tick)
			default:
				var cmd tea.Cmd
				m.input, cmd = m.input.Update(msg)
				return m, cmd
			}
		}

		if m.mode == sshViewing {
			switch msg.String() {
			case "esc", "enter":
				m.mode = sshNormal
				return m, nil
			case "y":
				if k, ok := m.keyBySeq(m.viewSeq); ok {
					if err := clipboard.WriteAll(k.SSHPublicKey); err != nil {
						m.statusMsg = "Clipboard: " + err.Error()
						m.statusErr = true
					} else {
						m.statusMsg = "Key copied to clipboard"
						m.statusErr = false
					}
				}
				m.mode = sshNormal
				return m, nil
			}
			return m, nil
		}

		if m.busy {
			return m, nil
		}

		switch msg.String() {
		case "a":
			m.mode = sshAdding
			m.input.Focus()
			return m, textinput.Blink
		case "d":
			if seq, ok := m.selectedSeq(); ok {
				if m.staged[seq] {
					delete(m.staged, seq)
				} else {
					m.staged[seq] = true
				}
				m.closeWarned = false
				m = m.withRebuiltTable()
			}
			return m, nil
		case "s":
			if len(m.staged) == 0 {
				return m, nil
			}
			m.busy = true
			m.statusMsg = ""
			return m, tea.Batch(m.deleteStagedCmd(), m.spinner.Tick)
		case "v", "enter":
			if seq, ok := m.selectedSeq(); ok {
				m.viewSeq = seq
				m.mode = sshViewing
			}
			return m, nil
		case "ctrl+r":
			m.loading = true
			m.err = nil
			m.fetchID = time.Now().UnixNano()
			return m, tea.Batch(fetchSSHKeys(m.client, m.username, m.fetchID), m.spinner.Tick)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m sshPanelModel) addKeyCmd(material string) tea.Cmd {
	c := m.client
	username := m.username
	return func() tea.Msg {
		key, err := serviceuser.AddSSHKey(context.Background(), c, username, material)
		return sshKeyAddedMsg{key: key, err: err}
	}
}

// deleteStagedCmd fires one DELETE per staged key concurrently and reports
// which ones failed once all of them settled.
func (m sshPanelModel) deleteStagedCmd() tea.Cmd {
	c := m.client
	username := m.username
	seqs := make([]int, 0, len(m.staged))
	for seq := range m.staged {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)

	return func() tea.Msg {
		ctx := context.Background()
		var (
			mu     sync.Mutex
			failed []int
			wg     sync.WaitGroup
		)
		for _, seq := range seqs {
			wg.Add(1)
			go func(seq int) {
				defer wg.Done()
				if err := serviceuser.DeleteSSHKey(ctx, c, username, seq); err != nil {
					mu.Lock()
					failed = append(failed, seq)
					mu.Unlock()
				}
			}(seq)
		}
		wg.Wait()
		sort.Ints(failed)
		return sshKeysDeletedMsg{deleted: len(seqs) - len(failed), failed: failed}
	}
}

func (m sshPanelModel) view() string {
	if m.width == 0 {
		return ""
	}

	title := StyleTitle.Render(fmt.Sprintf("SSH Keys — %s", m.username))

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

	if m.mode == sshViewing {
		k, _ := m.keyBySeq(m.viewSeq)
		lines := []string{
			title,
			"",
			StyleTitle.Render(fmt.Sprintf("Key %d", k.Seq)),
			"",
			k.SSHPublicKey,
			"",
			renderHelp("[y] copy   [Enter] / [Esc] close"),
		}
		return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
	}

	count := StyleDim.Render(fmt.Sprintf(" (%d)", len(m.keys)))

	if m.mode == sshAdding {
		lines := []string{
			title + count,
			"",
			StyleTitle.Render("Add SSH Key"),
			"",
			"  " + m.input.View(),
			"",
			renderHelp("[Enter] add   [Esc] cancel"),
		}
		return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
	}

	var lines []string
	lines = append(lines, title+count)
	lines = append(lines, "")
	lines = append(lines, m.table.View())

	switch {
	case m.busy:
		lines = append(lines, StyleWarning.Render(m.spinner.View()+" Working..."))
	case m.statusMsg != "" && m.statusErr:
		lines = append(lines, StyleError.Render(m.statusMsg))
	case m.statusMsg != "":
		lines = append(lines, StyleSuccess.Render(m.statusMsg))
	case len(m.staged) > 0:
		lines = append(lines, StyleWarning.Render(fmt.Sprintf("%d deletion(s) staged — [s] apply", len(m.staged))))
	default:
		lines = append(lines, "")
	}

	lines = append(lines, renderHelp("[a] add   [d] stage/unstage delete   [s] apply deletions   [v] view   |   [ctrl+r] refresh"))
	lines = append(lines, renderHelp("[Esc] back"))

	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
}

func yesNoLabel(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
