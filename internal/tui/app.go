package tui

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bunchhieng/gdaes/internal/lists"
	"github.com/bunchhieng/gdaes/internal/model"
	"github.com/bunchhieng/gdaes/internal/storage"
)

const statusTTL = 3 * time.Second

type pane int

const (
	paneLists pane = iota
	paneLinks
)

type inputMode int

const (
	inputNone inputMode = iota
	inputCreate
	inputRename
	inputAdd
	inputSearch
)

type keyMap struct {
	Up, Down       key.Binding
	MoveUp, MoveDn key.Binding
	Switch         key.Binding
	Pick, Drop     key.Binding
	Cancel         key.Binding
	Open, OpenAll  key.Binding
	Add, Create    key.Binding
	Rename, Delete key.Binding
	Search, Reload key.Binding
	Help, Quit     key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		MoveUp:  key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "move up")),
		MoveDn:  key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "move down")),
		Switch:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "pane")),
		Pick:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pick up")),
		Drop:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "drop")),
		Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Open:    key.NewBinding(key.WithKeys("o", "enter"), key.WithHelp("o", "open")),
		OpenAll: key.NewBinding(key.WithKeys("O"), key.WithHelp("O", "open all")),
		Add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add link")),
		Create:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new list")),
		Rename:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rename")),
		Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Search:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Reload:  key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "reload")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// appModel never touches the store from Update. Store calls run inside
// commands while busy is set, and the resulting snapshot is copied back.
type appModel struct {
	ctx   context.Context
	store *lists.Store
	keys  keyMap

	data   model.Collection
	source storage.Source

	focus    pane
	listIdx  int
	linkIdx  int
	held     model.DragPayload
	query    string
	mode     inputMode
	input    textinput.Model
	busy     bool
	openURL  func(string) error
	quitting bool

	confirmDelete bool
	deleteList    string
	deleteLink    int

	width     int
	height    int
	statusMsg string
	statusSeq int
}

// resultMsg carries the outcome of a store call back to the model.
type resultMsg struct {
	data    model.Collection
	source  storage.Source
	commit  storage.Commit
	message string
	err     error
}

type statusMsg struct {
	message string
}

type clearStatusMsg struct {
	seq int
}

func initialModel(ctx context.Context, s *lists.Store) appModel {
	ti := textinput.New()
	ti.CharLimit = 256

	return appModel{
		ctx:     ctx,
		store:   s,
		keys:    defaultKeys(),
		data:    s.Snapshot(),
		source:  s.Source(),
		input:   ti,
		openURL: openBrowser,
		width:   100,
		height:  24,
	}
}

func (m appModel) Init() tea.Cmd {
	return nil
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case resultMsg:
		return m.applyResult(msg)

	case statusMsg:
		return m, m.setStatus(msg.message)

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.statusMsg = ""
		}
		return m, nil

	case tea.KeyMsg:
		if m.confirmDelete {
			return m.handleDeleteConfirmation(msg)
		}
		if m.mode != inputNone {
			return m.handleInput(msg)
		}
		return m.handleKey(msg)
	}

	return m, nil
}

func (m appModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)

	case key.Matches(msg, m.keys.Switch):
		if m.focus == paneLists {
			m.focus = paneLinks
		} else {
			m.focus = paneLists
		}

	case key.Matches(msg, m.keys.Cancel):
		if m.held != nil {
			m.held = nil
			return m, m.setStatus("Drop cancelled")
		}
		if m.query != "" {
			m.query = ""
			m.linkIdx = 0
		}

	case key.Matches(msg, m.keys.MoveUp):
		return m, m.shift(-1)
	case key.Matches(msg, m.keys.MoveDn):
		return m, m.shift(1)

	case key.Matches(msg, m.keys.Pick):
		return m, m.pick()
	case key.Matches(msg, m.keys.Drop):
		return m, m.drop()

	case key.Matches(msg, m.keys.Open):
		if m.focus == paneLists {
			m.focus = paneLinks
			return m, nil
		}
		return m, m.openLink()
	case key.Matches(msg, m.keys.OpenAll):
		return m, m.openAll()

	case key.Matches(msg, m.keys.Add):
		if m.currentList() == "" {
			return m, m.setStatus("Create a list first")
		}
		return m, m.startInput(inputAdd, "URL: ", "")
	case key.Matches(msg, m.keys.Create):
		return m, m.startInput(inputCreate, "New list: ", "")
	case key.Matches(msg, m.keys.Rename):
		if name := m.currentList(); name != "" {
			return m, m.startInput(inputRename, "Rename to: ", name)
		}
	case key.Matches(msg, m.keys.Delete):
		m.promptDelete()
	case key.Matches(msg, m.keys.Search):
		return m, m.startInput(inputSearch, "/", m.query)

	case key.Matches(msg, m.keys.Reload):
		return m, m.run(func(ctx context.Context, s *lists.Store) (string, storage.Commit, error) {
			src := s.Load(ctx)
			return fmt.Sprintf("Reloaded from %s", src), storage.Commit{}, nil
		})

	case key.Matches(msg, m.keys.Help):
		return m, m.setStatus("tab=pane j/k=nav J/K=move space=pick p=drop n=new r=rename d=delete a=add o=open O=open all /=filter q=quit")
	}

	return m, nil
}

func (m *appModel) startInput(mode inputMode, prompt, value string) tea.Cmd {
	if m.busy && mode != inputSearch {
		return nil
	}
	m.mode = mode
	m.input.Prompt = prompt
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m appModel) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		if m.mode == inputSearch {
			m.query = ""
			m.linkIdx = 0
		}
		m.endInput()
		return m, nil

	case tea.KeyEnter:
		value := m.input.Value()
		mode := m.mode
		m.endInput()
		return m, m.submit(mode, value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == inputSearch {
		m.query = m.input.Value()
		m.linkIdx = 0
	}
	return m, cmd
}

func (m *appModel) endInput() {
	m.mode = inputNone
	m.input.Blur()
	m.input.SetValue("")
}

func (m *appModel) submit(mode inputMode, value string) tea.Cmd {
	switch mode {
	case inputCreate:
		return m.run(func(ctx context.Context, s *lists.Store) (string, storage.Commit, error) {
			c, err := s.CreateList(ctx, value)
			return fmt.Sprintf("Created list %q", value), c, err
		})

	case inputRename:
		oldName := m.currentList()
		return m.run(func(ctx context.Context, s *lists.Store) (string, storage.Commit, error) {
			c, err := s.RenameList(ctx, oldName, value)
			return fmt.Sprintf("Renamed %q to %q", oldName, value), c, err
		})

	case inputAdd:
		link := model.Link{URL: value}
		if err := link.Validate(); err != nil {
			return m.setStatus(fmt.Sprintf("Error: %v: %s", err, value))
		}
		name := m.currentList()
		return m.run(func(ctx context.Context, s *lists.Store) (string, storage.Commit, error) {
			c, err := s.AddLink(ctx, name, link)
			return fmt.Sprintf("Added to %s", name), c, err
		})

	case inputSearch:
		m.query = value
		m.linkIdx = 0
	}
	return nil
}

// run executes fn against the store off the update loop. Only one call
// may be in flight; keys that would start another are ignored.
func (m *appModel) run(fn func(ctx context.Context, s *lists.Store) (string, storage.Commit, error)) tea.Cmd {
	if m.busy {
		return nil
	}
	m.busy = true
	ctx, store := m.ctx, m.store
	return func() tea.Msg {
		message, commit, err := fn(ctx, store)
		return resultMsg{
			data:    store.Snapshot(),
			source:  store.Source(),
			commit:  commit,
			message: message,
			err:     err,
		}
	}
}

func (m appModel) applyResult(msg resultMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	m.data = msg.data
	m.source = msg.source
	m.clamp()

	switch {
	case msg.err != nil:
		return m, m.setStatus(fmt.Sprintf("Error: %v", msg.err))
	case msg.commit.Outcome == storage.Degraded:
		return m, m.setStatus(msg.message + " (saved to mirror only)")
	case msg.commit.Outcome == storage.Failed:
		return m, m.setStatus(msg.message + " (not saved!)")
	default:
		return m, m.setStatus(msg.message)
	}
}

func (m *appModel) setStatus(message string) tea.Cmd {
	m.statusSeq++
	m.statusMsg = message
	if message == "" {
		return nil
	}
	seq := m.statusSeq
	return tea.Tick(statusTTL, func(time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}

func (m *appModel) currentList() string {
	if m.listIdx < 0 || m.listIdx >= len(m.data.Order) {
		return ""
	}
	return m.data.Order[m.listIdx]
}

// visibleLinks returns the positions of the current list's links that
// pass the filter.
func (m *appModel) visibleLinks() []int {
	links := m.data.Lists[m.currentList()]
	out := make([]int, 0, len(links))
	for i, l := range links {
		if m.query == "" || l.Matches(m.query) {
			out = append(out, i)
		}
	}
	return out
}

func (m *appModel) selectedLink() (int, model.Link, bool) {
	visible := m.visibleLinks()
	if m.linkIdx < 0 || m.linkIdx >= len(visible) {
		return 0, model.Link{}, false
	}
	i := visible[m.linkIdx]
	return i, m.data.Lists[m.currentList()][i], true
}

func (m *appModel) moveCursor(delta int) {
	if m.focus == paneLists {
		m.listIdx += delta
		m.linkIdx = 0
	} else {
		m.linkIdx += delta
	}
	m.clamp()
}

func (m *appModel) clamp() {
	m.listIdx = max(0, min(m.listIdx, len(m.data.Order)-1))
	m.linkIdx = max(0, min(m.linkIdx, len(m.visibleLinks())-1))
}

// shift moves the selected list or link one position up or down.
func (m *appModel) shift(delta int) tea.Cmd {
	if m.busy {
		return nil
	}

	if m.focus == paneLists {
		to := m.listIdx + delta
		if to < 0 || to >= len(m.data.Order) {
			return nil
		}
		source, target := m.currentList(), m.data.Order[to]
		m.listIdx = to
		return m.run(func(ctx context.Context, s *lists.Store) (string, storage.Commit, error) {
			c := s.ReorderLists(ctx, source, target)
			return fmt.Sprintf("Moved %s", source), c, nil
		})
	}

	if m.query != "" {
		return m.setStatus("Clear the filter to reorder links")
	}
	i, link, ok := m.selectedLink()
	if !ok {
		return nil
	}
	name := m.currentList()
	n := len(m.data.Lists[name])
	if i+delta < 0 || i+delta >= n {
		return nil
	}
	p, err := model.NewURLPayload(link.URL, link.Title, name, i)
	if err != nil {
		return m.setStatus(fmt.Sprintf("Error: %v", err))
	}
	// Positions refer to the list before the move, so moving down one
	// slot means inserting before the entry two below.
	index := i - 1
	if delta > 0 {
		index = i + 2
	}
	m.linkIdx += delta
	return m.run(func(ctx context.Context, s *lists.Store) (string, storage.Commit, error) {
		res, err := s.MoveLink(ctx, p, name, index)
		return "Moved link", res.Commit, err
	})
}

func (m *appModel) pick() tea.Cmd {
	if m.focus == paneLists {
		name := m.currentList()
		if name == "" {
			return nil
		}
		p, err := model.NewListPayload(name)
		if err != nil {
			return m.setStatus(fmt.Sprintf("Error: %v", err))
		}
		m.held = p
		return m.setStatus(fmt.Sprintf("Holding list %s. Select a list and press p", name))
	}

	i, link, ok := m.selectedLink()
	if !ok {
		return nil
	}
	p, err := model.NewURLPayload(link.URL, link.Title, m.currentList(), i)
	if err != nil {
		return m.setStatus(fmt.Sprintf("Error: %v", err))
	}
	m.held = p
	return m.setStatus(fmt.Sprintf("Holding %s. Select a target and press p", link.DisplayTitle()))
}

// drop releases the held payload. In the lists pane links go to the end
// of the selected list; in the links pane they land before the cursor.
func (m *appModel) drop() tea.Cmd {
	if m.held == nil {
		return m.setStatus("Nothing to drop. Press space to pick something up")
	}
	if m.busy {
		return nil
	}
	target := m.currentList()
	if target == "" {
		return nil
	}

	index := lists.End
	if m.focus == paneLinks {
		if i, _, ok := m.selectedLink(); ok {
			index = i
		}
	}

	p := m.held
	m.held = nil
	return m.run(func(ctx context.Context, s *lists.Store) (string, storage.Commit, error) {
		res, err := s.Drop(ctx, p, target, index)
		if err != nil {
			return "", res.Commit, err
		}
		if !res.Applied {
			return "Nothing moved", res.Commit, nil
		}
		return fmt.Sprintf("Dropped into %s", target), res.Commit, nil
	})
}

func (m *appModel) promptDelete() {
	if m.busy {
		return
	}
	if m.focus == paneLists {
		if name := m.currentList(); name != "" {
			m.confirmDelete = true
			m.deleteList = name
			m.deleteLink = -1
		}
		return
	}
	if i, _, ok := m.selectedLink(); ok {
		m.confirmDelete = true
		m.deleteList = m.currentList()
		m.deleteLink = i
	}
}

func (m appModel) handleDeleteConfirmation(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		name, index := m.deleteList, m.deleteLink
		m.confirmDelete = false
		m.deleteList = ""
		m.deleteLink = -1
		return m, m.run(func(ctx context.Context, s *lists.Store) (string, storage.Commit, error) {
			if index < 0 {
				return fmt.Sprintf("Deleted list %s", name), s.DeleteList(ctx, name), nil
			}
			return "Deleted link", s.DeleteLink(ctx, name, index), nil
		})

	case "n", "N", "esc":
		m.confirmDelete = false
		m.deleteList = ""
		m.deleteLink = -1
		return m, nil

	default:
		return m, nil
	}
}

func (m *appModel) openLink() tea.Cmd {
	_, link, ok := m.selectedLink()
	if !ok {
		return nil
	}
	if err := link.Validate(); err != nil {
		return m.setStatus(fmt.Sprintf("Skipped invalid URL: %s", link.URL))
	}
	open := m.openURL
	return func() tea.Msg {
		if err := open(link.URL); err != nil {
			return statusMsg{fmt.Sprintf("Error: %v", err)}
		}
		return statusMsg{fmt.Sprintf("Opened: %s", link.URL)}
	}
}

func (m *appModel) openAll() tea.Cmd {
	name := m.currentList()
	if name == "" {
		return nil
	}
	open := m.openURL
	return m.run(func(ctx context.Context, s *lists.Store) (string, storage.Commit, error) {
		valid, skipped, err := s.OpenAllLinks(name)
		if err != nil {
			return "", storage.Commit{}, err
		}
		opened := 0
		for _, l := range valid {
			if open(l.URL) == nil {
				opened++
			}
		}
		return fmt.Sprintf("Opened %d link(s), skipped %d", opened, len(skipped)), storage.Commit{}, nil
	})
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
	return cmd.Start()
}

// Run starts the TUI application
func Run(ctx context.Context, s *lists.Store) error {
	p := tea.NewProgram(initialModel(ctx, s), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
