package tui

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gerrit-tools/serviceuser-cli/internal/config"
	"github.com/gerrit-tools/serviceuser-cli/internal/gerrit"
	"github.com/gerrit-tools/serviceuser-cli/internal/serviceuser"
)

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testUsers() map[string]serviceuser.ServiceUserInfo {
	return map[string]serviceuser.ServiceUserInfo{
		"jenkins": {
			AccountInfo: serviceuser.AccountInfo{AccountID: 1000042, Name: "CI", Inactive: true},
			CreatedBy:   &serviceuser.AccountInfo{AccountID: -1},
			CreatedAt:   "2019-04-01 12:00:00",
		},
		"voter": {
			AccountInfo: serviceuser.AccountInfo{AccountID: 1000043, Email: "voter@example.com"},
			CreatedBy:   &serviceuser.AccountInfo{Username: "admin"},
			Owner:       &serviceuser.GroupInfo{Name: "Administrators"},
		},
	}
}

func loadedList(t *testing.T, caps serviceuser.CapabilityInfo) listModel {
	t.Helper()
	m := newListModel(nil, "review", 160, 40)
	m, _ = m.update(listUsersFetchedMsg{users: testUsers(), fetchID: m.fetchID})
	m, _ = m.update(listCapsFetchedMsg{caps: caps, fetchID: m.fetchID})
	if m.loading() {
		t.Fatalf("list still loading after both fetches settled")
	}
	return m
}

func TestListRowsCarryDerivedLabels(t *testing.T) {
	m := loadedList(t, serviceuser.CapabilityInfo{})

	rows := m.table.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// Rows are sorted by username: jenkins first.
	jenkins := rows[0]
	if jenkins[0] != "jenkins" || jenkins[3] != serviceuser.NotFound ||
		jenkins[4] != serviceuser.NotFound || jenkins[6] != "Inactive" {
		t.Fatalf("unexpected jenkins row: %v", jenkins)
	}
	voter := rows[1]
	if voter[3] != "Administrators" || voter[4] != "admin" || voter[6] != "Active" {
		t.Fatalf("unexpected voter row: %v", voter)
	}
}

func TestListDiscardsStaleFetches(t *testing.T) {
	m := newListModel(nil, "review", 160, 40)
	m, _ = m.update(listUsersFetchedMsg{users: testUsers(), fetchID: m.fetchID - 1})
	if len(m.users) != 0 {
		t.Fatalf("stale fetch must be discarded")
	}
	if !m.loading() {
		t.Fatalf("stale fetch must not settle the load")
	}
}

func TestListEnterSelectsUser(t *testing.T) {
	m := loadedList(t, serviceuser.CapabilityInfo{})

	_, cmd := m.update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("enter on a row must emit a selection")
	}
	sel, ok := cmd().(serviceUserSelectedMsg)
	if !ok {
		t.Fatalf("expected serviceUserSelectedMsg, got %T", cmd())
	}
	if sel.username != "jenkins" {
		t.Fatalf("expected first row selected, got %q", sel.username)
	}
}

func TestListCreateGatedByCapability(t *testing.T) {
	m := loadedList(t, serviceuser.CapabilityInfo{})
	if _, cmd := m.update(keyRunes("c")); cmd != nil {
		t.Fatalf("create must be disabled without the capability")
	}

	m = loadedList(t, serviceuser.CapabilityInfo{serviceuser.CapCreateServiceUser: nil})
	_, cmd := m.update(keyRunes("c"))
	if cmd == nil {
		t.Fatalf("create must be enabled with the capability")
	}
	if _, ok := cmd().(createRequestedMsg); !ok {
		t.Fatalf("expected createRequestedMsg, got %T", cmd())
	}
}

func TestListFilterNarrowsRows(t *testing.T) {
	m := loadedList(t, serviceuser.CapabilityInfo{})
	m, _ = m.update(keyRunes("/"))
	if !m.filter.active {
		t.Fatalf("/ must activate the filter")
	}
	m, _ = m.update(keyRunes("voter"))
	if len(m.table.Rows()) != 1 || m.rowOrder[0] != "voter" {
		t.Fatalf("filter should leave only voter, got %v", m.rowOrder)
	}
}

func TestListEscClearsAppliedFilter(t *testing.T) {
	m := loadedList(t, serviceuser.CapabilityInfo{})
	m, _ = m.update(keyRunes("/"))
	m, _ = m.update(keyRunes("voter"))
	m, _ = m.update(tea.KeyMsg{Type: tea.KeyEnter}) // deactivate, filter stays applied
	if m.filter.active || !m.filter.hasActiveFilter() {
		t.Fatalf("filter should be applied but not active: %+v", m.filter)
	}

	m, _ = m.update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.filter.hasActiveFilter() {
		t.Fatalf("esc must clear the applied filter")
	}
	if len(m.table.Rows()) != 2 {
		t.Fatalf("clearing the filter must restore all rows, got %d", len(m.table.Rows()))
	}
}

func TestRouterEscDismissesFilterBeforeQuitting(t *testing.T) {
	a := appModel{screen: screenList, width: 160, height: 40, list: loadedList(t, serviceuser.CapabilityInfo{})}
	a.list.filter.text = "voter"

	model, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd != nil {
		if _, quit := cmd().(tea.QuitMsg); quit {
			t.Fatalf("esc with an applied filter must not quit")
		}
	}
	a = model.(appModel)
	if a.list.filter.hasActiveFilter() {
		t.Fatalf("esc must have been delegated to the list to clear the filter")
	}

	_, cmd = a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatalf("esc without a filter must quit")
	}
	if _, quit := cmd().(tea.QuitMsg); !quit {
		t.Fatalf("expected quit, got %#v", cmd())
	}
}

func loadedCreate(cfg *serviceuser.ConfigInfo) createModel {
	m := newCreateModel(nil, serviceuser.Permissions{IsAdmin: true}, 160, 40)
	m, _ = m.update(createConfigMsg{cfg: cfg})
	return m
}

func TestCreateFormValidation(t *testing.T) {
	m := loadedCreate(&serviceuser.ConfigInfo{})
	if m.formValid() {
		t.Fatalf("empty form must be invalid")
	}
	m.inputs[createFieldUsername].SetValue("jenkins")
	m.inputs[createFieldKey].SetValue("ssh-ed25519 AAAA ci")
	if !m.formValid() {
		t.Fatalf("username+key must be valid")
	}
	m.inputs[createFieldEmail].SetValue("not-an-email")
	if m.formValid() {
		t.Fatalf("email without @ must be invalid")
	}
}

func TestCreateRejectsBlockedUsername(t *testing.T) {
	m := loadedCreate(&serviceuser.ConfigInfo{BlockedNames: []string{"jenkins"}})
	m.inputs[createFieldUsername].SetValue("Jenkins")
	m.inputs[createFieldKey].SetValue("ssh-ed25519 AAAA ci")

	m, cmd := m.submit()
	if cmd != nil {
		t.Fatalf("blocked username must not issue a request")
	}
	if m.statusMsg == "" {
		t.Fatalf("blocked username must surface a message")
	}
}

func TestCreateForwardsToDetailWithoutSuccessMessage(t *testing.T) {
	m := loadedCreate(&serviceuser.ConfigInfo{})
	m, cmd := m.update(createResultMsg{username: "jenkins"})
	if m.mode == createDone {
		t.Fatalf("no success message configured, dialog must be skipped")
	}
	if cmd == nil {
		t.Fatalf("expected forward to detail")
	}
	created, ok := cmd().(userCreatedMsg)
	if !ok || created.username != "jenkins" {
		t.Fatalf("expected userCreatedMsg for jenkins, got %#v", cmd())
	}
}

func TestCreateShowsSuccessDialogWhenConfigured(t *testing.T) {
	m := loadedCreate(&serviceuser.ConfigInfo{OnSuccess: "Welcome aboard"})
	m, cmd := m.update(createResultMsg{username: "jenkins"})
	if m.mode != createDone {
		t.Fatalf("configured success message must open the dialog")
	}
	if cmd != nil {
		t.Fatalf("dialog must wait for dismissal")
	}
	m, cmd = m.update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("dismissal must forward to detail")
	}
	if created, ok := cmd().(userCreatedMsg); !ok || created.username != "jenkins" {
		t.Fatalf("expected userCreatedMsg, got %#v", cmd())
	}
}

func loadedDetail(t *testing.T) detailModel {
	t.Helper()
	m := newDetailModel(nil, "jenkins", 160, 40)
	user := &serviceuser.ServiceUserInfo{
		AccountInfo: serviceuser.AccountInfo{AccountID: 1000042, Name: "CI", Email: "ci@example.com", Username: "jenkins"},
		Owner:       &serviceuser.GroupInfo{Name: "Administrators"},
	}
	m, _ = m.update(detailUserMsg{user: user, fetchID: m.fetchID})
	m, _ = m.update(detailConfigMsg{cfg: &serviceuser.ConfigInfo{AllowEmail: true, AllowOwner: true}, fetchID: m.fetchID})
	m, _ = m.update(detailCapsMsg{caps: serviceuser.CapabilityInfo{}, fetchID: m.fetchID})
	if m.loading() {
		t.Fatalf("detail still loading after all fetches settled")
	}
	return m
}

func TestDetailSeedsInputsFromAccount(t *testing.T) {
	m := loadedDetail(t)
	if got := m.inputs[detailFieldName].Value(); got != "CI" {
		t.Fatalf("name input: got %q", got)
	}
	if got := m.inputs[detailFieldEmail].Value(); got != "ci@example.com" {
		t.Fatalf("email input: got %q", got)
	}
	if got := m.inputs[detailFieldOwner].Value(); got != "Administrators" {
		t.Fatalf("owner input: got %q", got)
	}
	if m.canSave() {
		t.Fatalf("unedited form must not be saveable")
	}
}

func TestDetailSaveGating(t *testing.T) {
	m := loadedDetail(t)

	m.inputs[detailFieldName].SetValue("CI Builder")
	if !m.canSave() {
		t.Fatalf("name change must enable save")
	}

	m = loadedDetail(t)
	m.inputs[detailFieldOwner].SetValue("Service Users")
	if m.canSave() {
		t.Fatalf("owner not in suggestions must not enable save")
	}
	m.suggestions = []string{"Service Users"}
	if !m.canSave() {
		t.Fatalf("suggested owner must enable save")
	}
}

func TestDetailStaleSuggestionsDiscarded(t *testing.T) {
	m := loadedDetail(t)
	m.suggestID = 7
	m, _ = m.update(ownerSuggestMsg{names: []string{"Old"}, suggestID: 6})
	if len(m.suggestions) != 0 {
		t.Fatalf("stale suggestions must be discarded")
	}
	m, _ = m.update(ownerSuggestMsg{names: []string{"Fresh"}, suggestID: 7})
	if len(m.suggestions) != 1 || m.suggestions[0] != "Fresh" {
		t.Fatalf("current suggestions must apply, got %v", m.suggestions)
	}
}

func TestDetailSaveSettledTriggersFullReload(t *testing.T) {
	m := loadedDetail(t)
	m.busy = true
	m, cmd := m.update(saveSettledMsg{})
	if m.busy {
		t.Fatalf("settled save must clear the busy flag")
	}
	if !m.loading() || cmd == nil {
		t.Fatalf("save must be followed by a full reload")
	}
	if m.statusMsg != "Saved" || m.statusErr {
		t.Fatalf("unexpected status: %q err=%v", m.statusMsg, m.statusErr)
	}
}

func TestDetailSaveFailureKeepsErrors(t *testing.T) {
	m := loadedDetail(t)
	m.busy = true
	m, _ = m.update(saveSettledMsg{failed: []string{"email: server returned 409"}})
	if !m.statusErr {
		t.Fatalf("failed save must flag the status as error")
	}
	if !m.loading() {
		t.Fatalf("even a failed save reloads so partial writes show up")
	}
}

func TestSSHPanelStagedDeletions(t *testing.T) {
	m := newSSHPanel(nil, "jenkins", 160, 40)
	keys := []serviceuser.SSHKeyInfo{
		{Seq: 1, Algorithm: "ssh-rsa", Valid: true},
		{Seq: 5, Algorithm: "ssh-ed25519", Valid: true},
	}
	m, _ = m.update(sshKeysLoadedMsg{keys: keys, fetchID: m.fetchID})

	m, _ = m.update(keyRunes("d"))
	if !m.staged[1] {
		t.Fatalf("d must stage the selected key")
	}
	m, _ = m.update(keyRunes("d"))
	if len(m.staged) != 0 {
		t.Fatalf("d again must unstage")
	}
}

func TestSSHPanelDeleteFailuresStayStaged(t *testing.T) {
	m := newSSHPanel(nil, "jenkins", 160, 40)
	m, _ = m.update(sshKeysLoadedMsg{keys: []serviceuser.SSHKeyInfo{{Seq: 1}, {Seq: 5}}, fetchID: m.fetchID})
	m.staged = map[int]bool{1: true, 5: true}
	m.busy = true

	m, cmd := m.update(sshKeysDeletedMsg{deleted: 1, failed: []int{5}})
	if !m.staged[5] || m.staged[1] {
		t.Fatalf("only failed deletions stay staged: %v", m.staged)
	}
	if !m.statusErr {
		t.Fatalf("partial failure must surface as error")
	}
	if !m.loading || cmd == nil {
		t.Fatalf("settled deletions must be followed by a reload")
	}
}

func TestSSHPanelApplyIssuesOneDeletePerStagedKey(t *testing.T) {
	var (
		mu      sync.Mutex
		deleted []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			http.Error(w, "unexpected", http.StatusBadRequest)
			return
		}
		mu.Lock()
		deleted = append(deleted, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := gerrit.New(&config.SiteConfig{URL: srv.URL, Username: "admin", HTTPPassword: "secret"})
	if err != nil {
		t.Fatalf("gerrit.New: %v", err)
	}

	m := newSSHPanel(c, "jenkins", 160, 40)
	keys := []serviceuser.SSHKeyInfo{{Seq: 1}, {Seq: 3}, {Seq: 5}}
	m, _ = m.update(sshKeysLoadedMsg{keys: keys, fetchID: m.fetchID})
	m.staged = map[int]bool{1: true, 3: true, 5: true}

	msg, ok := m.deleteStagedCmd()().(sshKeysDeletedMsg)
	if !ok {
		t.Fatalf("expected sshKeysDeletedMsg")
	}
	if msg.deleted != 3 || len(msg.failed) != 0 {
		t.Fatalf("expected 3 deletions and no failures, got %+v", msg)
	}

	sort.Strings(deleted)
	want := []string{
		"/a/config/server/serviceuser~serviceusers/jenkins/sshkeys/1",
		"/a/config/server/serviceuser~serviceusers/jenkins/sshkeys/3",
		"/a/config/server/serviceuser~serviceusers/jenkins/sshkeys/5",
	}
	if fmt.Sprint(deleted) != fmt.Sprint(want) {
		t.Fatalf("DELETE requests: got %v, want %v", deleted, want)
	}

	m.busy = true
	m, _ = m.update(msg)
	if len(m.staged) != 0 {
		t.Fatalf("all deletions succeeded, staged set must clear: %v", m.staged)
	}
	if m.statusErr {
		t.Fatalf("unexpected error status: %q", m.statusMsg)
	}
}

func TestSSHPanelAddAppendsKey(t *testing.T) {
	m := newSSHPanel(nil, "jenkins", 160, 40)
	m, _ = m.update(sshKeysLoadedMsg{keys: nil, fetchID: m.fetchID})
	m.busy = true

	m, _ = m.update(sshKeyAddedMsg{key: &serviceuser.SSHKeyInfo{Seq: 1, Valid: true}})
	if m.busy {
		t.Fatalf("settled add must clear busy")
	}
	if len(m.keys) != 1 || m.keys[0].Seq != 1 {
		t.Fatalf("added key must appear: %v", m.keys)
	}
}

func TestPasswordPanelOneTimeSecret(t *testing.T) {
	d := loadedDetail(t)
	d.mode = detailPassword
	d.pw = newPasswordPanel(nil, "jenkins", 160, 40)

	d.pw, _ = d.pw.update(pwGeneratedMsg{password: "s3cr3t"})
	if d.pw.password != "s3cr3t" {
		t.Fatalf("generated password must be held for display")
	}

	d, _ = d.updatePasswordPanel(tea.KeyMsg{Type: tea.KeyEsc})
	if d.mode != detailNormal {
		t.Fatalf("esc must close the panel")
	}
	if d.pw.password != "" {
		t.Fatalf("closing the panel must drop the plaintext")
	}
}
