package tui

import (
	"context"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bunchhieng/gdaes/internal/backup"
	"github.com/bunchhieng/gdaes/internal/lists"
	"github.com/bunchhieng/gdaes/internal/logger"
	"github.com/bunchhieng/gdaes/internal/model"
	"github.com/bunchhieng/gdaes/internal/storage"
)

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keySpace = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestStore(t *testing.T) *lists.Store {
	t.Helper()
	log := logger.NewNop()

	db := storage.NewSQLiteStorage(":memory:", log)
	require.NoError(t, db.Init(context.Background()))
	t.Cleanup(func() { db.Close() })

	mirror := storage.NewFileMirror(filepath.Join(t.TempDir(), "mirror.json"), log)
	s := lists.NewStore(storage.NewAdapter(db, mirror, log), backup.NewRotator(db, 5, log), log)
	s.Load(context.Background())
	return s
}

func newTestModel(t *testing.T, s *lists.Store) appModel {
	t.Helper()
	m := initialModel(context.Background(), s)
	m.openURL = func(string) error { return nil }
	return m
}

// press feeds keys to the model. Store calls started by a key are run
// synchronously and their result is fed back.
func press(t *testing.T, m appModel, keys ...tea.KeyMsg) appModel {
	t.Helper()
	for _, k := range keys {
		next, cmd := m.Update(k)
		m = next.(appModel)
		if m.busy && cmd != nil {
			msg := cmd()
			res, ok := msg.(resultMsg)
			require.True(t, ok, "expected resultMsg, got %T", msg)
			next, _ = m.Update(res)
			m = next.(appModel)
		}
	}
	return m
}

func seedLinks(t *testing.T, s *lists.Store, list string, urls ...string) {
	t.Helper()
	for _, u := range urls {
		_, err := s.AddLink(context.Background(), list, model.Link{URL: u, Title: u})
		require.NoError(t, err)
	}
}

func TestCreateList(t *testing.T) {
	s := newTestStore(t)
	m := newTestModel(t, s)

	m = press(t, m, runes("n"))
	require.Equal(t, inputCreate, m.mode)

	m = press(t, m, runes("Work"), keyEnter)
	assert.Equal(t, inputNone, m.mode)
	assert.False(t, m.busy)
	assert.Equal(t, []string{model.DefaultReadLater, model.DefaultProjects, "Work"}, m.data.Order)
	assert.Equal(t, []string{model.DefaultReadLater, model.DefaultProjects, "Work"}, s.Snapshot().Order)
	assert.Contains(t, m.statusMsg, "Created list")

	m = press(t, m, runes("n"), runes("Work"), keyEnter)
	assert.Contains(t, m.statusMsg, "Error")
	assert.Len(t, m.data.Order, 3)
}

func TestCancelInput(t *testing.T) {
	s := newTestStore(t)
	m := newTestModel(t, s)

	m = press(t, m, runes("n"), runes("Draft"), keyEsc)
	assert.Equal(t, inputNone, m.mode)
	assert.Len(t, s.Snapshot().Order, 2)
}

func TestRenameList(t *testing.T) {
	s := newTestStore(t)
	m := newTestModel(t, s)

	m = press(t, m, runes("j"), runes("r"))
	require.Equal(t, inputRename, m.mode)
	assert.Equal(t, model.DefaultProjects, m.input.Value())

	m = press(t, m, runes(" 2024"), keyEnter)
	assert.Equal(t, []string{model.DefaultReadLater, model.DefaultProjects + " 2024"}, s.Snapshot().Order)
	assert.Equal(t, model.DefaultProjects+" 2024", m.currentList())
}

func TestAddLink(t *testing.T) {
	s := newTestStore(t)
	m := newTestModel(t, s)

	m = press(t, m, runes("a"), runes("https://go.dev"), keyEnter)
	assert.Equal(t, model.List{{URL: "https://go.dev"}}, s.Snapshot().Lists[model.DefaultReadLater])

	m = press(t, m, runes("a"), runes("not a url"), keyEnter)
	assert.Contains(t, m.statusMsg, "Error")
	assert.Len(t, s.Snapshot().Lists[model.DefaultReadLater], 1)
}

func TestPickAndDropLinkIntoList(t *testing.T) {
	s := newTestStore(t)
	seedLinks(t, s, model.DefaultProjects, "https://a.example", "https://b.example")
	m := newTestModel(t, s)

	// Select Projetos, pick its second link, then drop it on the first list.
	m = press(t, m, runes("j"), keyTab, runes("j"), keySpace)
	require.IsType(t, model.URLPayload{}, m.held)

	m = press(t, m, keyTab, runes("k"), runes("p"))
	assert.Nil(t, m.held)

	snap := s.Snapshot()
	assert.Equal(t, []string{"https://a.example"}, urls(snap.Lists[model.DefaultProjects]))
	assert.Equal(t, []string{"https://b.example"}, urls(snap.Lists[model.DefaultReadLater]))
	assert.Contains(t, m.statusMsg, "Dropped into")
}

func TestDropBeforeCursor(t *testing.T) {
	s := newTestStore(t)
	seedLinks(t, s, model.DefaultReadLater, "https://a.example", "https://b.example", "https://c.example")
	m := newTestModel(t, s)

	// Pick c and drop it before a.
	m = press(t, m, keyTab, runes("j"), runes("j"), keySpace, runes("k"), runes("k"), runes("p"))
	assert.Equal(t, []string{"https://c.example", "https://a.example", "https://b.example"},
		urls(s.Snapshot().Lists[model.DefaultReadLater]))
}

func TestDropWithoutPayload(t *testing.T) {
	s := newTestStore(t)
	m := newTestModel(t, s)

	m = press(t, m, runes("p"))
	assert.Contains(t, m.statusMsg, "Nothing to drop")
	assert.False(t, m.busy)
}

func TestCancelHeldPayload(t *testing.T) {
	s := newTestStore(t)
	m := newTestModel(t, s)

	m = press(t, m, keySpace)
	require.IsType(t, model.ListPayload{}, m.held)
	m = press(t, m, keyEsc)
	assert.Nil(t, m.held)
}

func TestPickAndDropList(t *testing.T) {
	s := newTestStore(t)
	m := newTestModel(t, s)

	m = press(t, m, keySpace, runes("j"), runes("p"))
	assert.Equal(t, []string{model.DefaultProjects, model.DefaultReadLater}, s.Snapshot().Order)
}

func TestShiftLists(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateList(context.Background(), "Work")
	require.NoError(t, err)
	m := newTestModel(t, s)

	m = press(t, m, runes("J"))
	assert.Equal(t, []string{model.DefaultProjects, model.DefaultReadLater, "Work"}, s.Snapshot().Order)
	assert.Equal(t, 1, m.listIdx)

	m = press(t, m, runes("J"))
	assert.Equal(t, []string{model.DefaultProjects, "Work", model.DefaultReadLater}, s.Snapshot().Order)
	assert.Equal(t, 2, m.listIdx)

	// Already last.
	m = press(t, m, runes("J"))
	assert.Equal(t, 2, m.listIdx)

	m = press(t, m, runes("K"))
	assert.Equal(t, []string{model.DefaultProjects, model.DefaultReadLater, "Work"}, s.Snapshot().Order)
}

func TestShiftLinks(t *testing.T) {
	s := newTestStore(t)
	seedLinks(t, s, model.DefaultReadLater, "https://a.example", "https://b.example", "https://c.example")
	m := newTestModel(t, s)

	m = press(t, m, keyTab, runes("J"))
	assert.Equal(t, []string{"https://b.example", "https://a.example", "https://c.example"},
		urls(s.Snapshot().Lists[model.DefaultReadLater]))
	assert.Equal(t, 1, m.linkIdx)

	m = press(t, m, runes("J"))
	assert.Equal(t, []string{"https://b.example", "https://c.example", "https://a.example"},
		urls(s.Snapshot().Lists[model.DefaultReadLater]))

	m = press(t, m, runes("K"), runes("K"))
	assert.Equal(t, []string{"https://a.example", "https://b.example", "https://c.example"},
		urls(s.Snapshot().Lists[model.DefaultReadLater]))
	assert.Equal(t, 0, m.linkIdx)
}

func TestDeleteConfirmation(t *testing.T) {
	s := newTestStore(t)
	seedLinks(t, s, model.DefaultReadLater, "https://a.example", "https://b.example")
	m := newTestModel(t, s)

	m = press(t, m, keyTab, runes("d"))
	require.True(t, m.confirmDelete)
	m = press(t, m, runes("n"))
	assert.False(t, m.confirmDelete)
	assert.Len(t, s.Snapshot().Lists[model.DefaultReadLater], 2)

	m = press(t, m, runes("d"), runes("y"))
	assert.Equal(t, []string{"https://b.example"}, urls(s.Snapshot().Lists[model.DefaultReadLater]))

	m = press(t, m, keyTab, runes("d"), runes("y"))
	assert.Equal(t, []string{model.DefaultProjects}, s.Snapshot().Order)
	assert.Equal(t, model.DefaultProjects, m.currentList())
}

func TestBusyIgnoresMutations(t *testing.T) {
	s := newTestStore(t)
	m := newTestModel(t, s)

	next, cmd := m.Update(runes("J"))
	m = next.(appModel)
	require.True(t, m.busy)
	require.NotNil(t, cmd)

	next, second := m.Update(runes("K"))
	m = next.(appModel)
	assert.Nil(t, second)

	next, _ = m.Update(cmd())
	m = next.(appModel)
	assert.False(t, m.busy)
	assert.Equal(t, []string{model.DefaultProjects, model.DefaultReadLater}, m.data.Order)
}

func TestFilter(t *testing.T) {
	s := newTestStore(t)
	seedLinks(t, s, model.DefaultReadLater, "https://go.dev", "https://rust-lang.org", "https://pkg.go.dev")
	m := newTestModel(t, s)

	m = press(t, m, runes("/"), runes("go.dev"))
	assert.Equal(t, "go.dev", m.query)
	assert.Equal(t, []int{0, 2}, m.visibleLinks())

	m = press(t, m, keyEnter)
	assert.Equal(t, inputNone, m.mode)
	assert.Equal(t, "go.dev", m.query)

	// Reordering is refused while filtered.
	m = press(t, m, keyTab, runes("J"))
	assert.False(t, m.busy)
	assert.Contains(t, m.statusMsg, "Clear the filter")

	m = press(t, m, keyEsc)
	assert.Empty(t, m.query)
	assert.Len(t, m.visibleLinks(), 3)
}

func TestOpenAll(t *testing.T) {
	s := newTestStore(t)
	seedLinks(t, s, model.DefaultReadLater, "https://a.example", "bogus", "https://b.example")
	m := newTestModel(t, s)

	var opened []string
	m.openURL = func(u string) error {
		opened = append(opened, u)
		return nil
	}

	m = press(t, m, runes("O"))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, opened)
	assert.Equal(t, "Opened 2 link(s), skipped 1", m.statusMsg)
}

func TestStatusClearsOnlyLatest(t *testing.T) {
	s := newTestStore(t)
	m := newTestModel(t, s)

	m = press(t, m, runes("p"))
	stale := m.statusSeq
	m = press(t, m, runes("?"))

	next, _ := m.Update(clearStatusMsg{seq: stale})
	m = next.(appModel)
	assert.NotEmpty(t, m.statusMsg)

	next, _ = m.Update(clearStatusMsg{seq: m.statusSeq})
	m = next.(appModel)
	assert.Empty(t, m.statusMsg)
}

func TestView(t *testing.T) {
	s := newTestStore(t)
	seedLinks(t, s, model.DefaultReadLater, "https://go.dev")
	m := newTestModel(t, s)

	out := m.View()
	assert.Contains(t, out, model.DefaultReadLater)
	assert.Contains(t, out, model.DefaultProjects)
	assert.Contains(t, out, "go.dev")

	m = press(t, m, runes("d"))
	assert.Contains(t, m.View(), "Delete list")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
	assert.Equal(t, "ação...", truncate("açãoxyzw", 7))
}

func urls(l model.List) []string {
	out := make([]string, len(l))
	for i, link := range l {
		out[i] = link.URL
	}
	return out
}
