// Package tui implements the interactive terminal user interface for gsu.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gerrit-tools/serviceuser-cli/internal/config"
	"github.com/gerrit-tools/serviceuser-cli/internal/gerrit"
	"github.com/gerrit-tools/serviceuser-cli/internal/serviceuser"
)

type screen int

const (
	screenList   screen = iota
	screenCreate        // create-service-user form
	screenDetail        // account detail + SSH key / password panels
)

// serviceUserSelectedMsg is sent by the list when the user opens an account.
type serviceUserSelectedMsg struct {
	username string
}

// createRequestedMsg is sent by the list when the user opens the create form.
type createRequestedMsg struct{}

// userCreatedMsg is sent by the create screen once creation succeeded and any
// success dialog was dismissed. The router forwards to the detail screen.
type userCreatedMsg struct {
	username string
}

// appModel is the top-level Bubble Tea model acting as a screen router.
type appModel struct {
	screen screen
	width  int
	height int

	client *gerrit.Client
	site   string

	list   listModel
	create createModel
	detail detailModel
}

func newAppModel(c *gerrit.Client, site string) appModel {
	return appModel{
		screen: screenList,
		client: c,
		site:   site,
		list:   newListModel(c, site, 0, 0),
	}
}

func (a appModel) Init() tea.Cmd {
	return a.list.init()
}

func (a appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle router-level messages first.
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.list.width = msg.Width
		a.list.height = msg.Height
		a.create.width = msg.Width
		a.create.height = msg.Height
		a.detail.width = msg.Width
		a.detail.height = msg.Height
		if !a.list.loading() && len(a.list.users) > 0 {
			a.list = a.list.withRebuiltTable()
		}
		if a.detail.keys.open && !a.detail.keys.loading {
			a.detail.keys = a.detail.keys.withRebuiltTable()
		}
		return a, nil

	case serviceUserSelectedMsg:
		a.screen = screenDetail
		a.detail = newDetailModel(a.client, msg.username, a.width, a.height)
		return a, a.detail.init()

	case createRequestedMsg:
		a.screen = screenCreate
		a.create = newCreateModel(a.client, a.list.perms, a.width, a.height)
		return a, a.create.init()

	case userCreatedMsg:
		a.screen = screenDetail
		a.detail = newDetailModel(a.client, msg.username, a.width, a.height)
		return a, a.detail.init()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit

		case "Q":
			// Let 'Q' pass through to sub-models with open forms or filters.
			if a.screen == screenList && !a.list.filter.active {
				return a, tea.Quit
			}
			if a.screen == screenDetail && a.detail.mode == detailNormal && !a.detail.editing() {
				return a, tea.Quit
			}

		case "esc":
			switch a.screen {
			case screenCreate:
				if a.create.mode != createNormal {
					break // let the success dialog handle dismissal
				}
				a.screen = screenList
				return a, nil
			case screenDetail:
				if a.detail.mode != detailNormal {
					break // let detail close its panel
				}
				// Reload the list so edits made in the detail screen show up.
				a.screen = screenList
				a.list = newListModel(a.client, a.site, a.width, a.height)
				return a, a.list.init()
			case screenList:
				if a.list.filter.active || a.list.filter.hasActiveFilter() {
					break // let the list dismiss its filter first
				}
				return a, tea.Quit
			}
		}
	}

	// Delegate all other messages to the active sub-model.
	var cmd tea.Cmd
	switch a.screen {
	case screenList:
		a.list, cmd = a.list.update(msg)
	case screenCreate:
		a.create, cmd = a.create.update(msg)
	case screenDetail:
		a.detail, cmd = a.detail.update(msg)
	}
	return a, cmd
}

func (a appModel) View() string {
	switch a.screen {
	case screenList:
		return a.list.view()
	case screenCreate:
		return a.create.view()
	case screenDetail:
		return a.detail.view()
	}
	return ""
}

// LaunchTUI resolves the current site, connects, and runs the Bubble Tea
// program until the user quits.
func LaunchTUI(cfg *config.Config) error {
	site, name, err := cfg.Resolve("")
	if err != nil {
		return err
	}
	c, err := gerrit.New(site)
	if err != nil {
		return err
	}
	m := newAppModel(c, name)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// permsOf is a convenience for screens receiving capabilities asynchronously.
func permsOf(caps serviceuser.CapabilityInfo) serviceuser.Permissions {
	if caps == nil {
		return serviceuser.Permissions{}
	}
	return caps.Permissions()
}
