// Package tui is the terminal agenda: a day list with a mouse hover preview,
// a right-click context menu, search and a title-only editor, all driven by
// an agenda.Coordinator.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/v2/textinput"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"

	"tableflip.dev/agenda/pkg/agenda"
	"tableflip.dev/agenda/pkg/calendar"
	"tableflip.dev/agenda/pkg/fetch"
	"tableflip.dev/agenda/pkg/hover"
	"tableflip.dev/agenda/pkg/menu"
	"tableflip.dev/agenda/pkg/mutate"
	"tableflip.dev/agenda/pkg/printers"
	"tableflip.dev/agenda/pkg/tui/overlay"
	"tableflip.dev/agenda/pkg/tui/theme"
)

type mode int

const (
	modeNormal mode = iota
	modeSearch
	modeEdit
	modeConfirm
)

const (
	helpText = "h/l prev/next · t today · v view · / search · o overlays · I important only · n/N new · e edit · m menu · q quit"
	// resizeStep is how far +/- stretch an event.
	resizeStep = 30 * time.Minute
)

var views = []calendar.View{calendar.ViewMonth, calendar.ViewWeek, calendar.ViewDay, calendar.ViewList}

// Options configures the Model.
type Options struct {
	Agenda *agenda.Coordinator
	// Bridge must be the Modal and Confirmer the coordinator was built with.
	Bridge *Bridge
	Saver  Saver
	Logger *slog.Logger
}

// Model is the agenda screen.
type Model struct {
	ctx    context.Context
	agenda *agenda.Coordinator
	events <-chan agenda.Event
	bridge *Bridge
	saver  Saver
	logger *slog.Logger
	theme  theme.Theme

	mode   mode
	status string
	isErr  bool

	search  textinput.Model
	editor  editor
	confirm confirmRequest

	selected string
	offset   int
	day      time.Time

	menuIndex int
	overItem  string
	overPanel bool
	overMenu  bool

	width  int
	height int
}

// messages
type errMsg struct{ err error }
type agendaMsg struct{ ev agenda.Event }
type doneMsg struct {
	label string
	err   error
}

// New builds the screen over a started or unstarted coordinator.
func New(ctx context.Context, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	bridge := opts.Bridge
	if bridge == nil {
		bridge = NewBridge()
	}

	ti := textinput.New()
	ti.Placeholder = "search title, contact, invoice"
	ti.CharLimit = 128
	ti.Prompt = "/ "
	ti.Styles.Cursor.Color = lipgloss.Color("218")
	ti.Styles.Cursor.Shape = tea.CursorUnderline

	return Model{
		ctx:    ctx,
		agenda: opts.Agenda,
		events: opts.Agenda.Subscribe(),
		bridge: bridge,
		saver:  opts.Saver,
		logger: logger,
		theme:  theme.Default(),
		search: ti,
		day:    opts.Agenda.Anchor(),
		status: helpText,
	}
}

// Init performs the first load and starts listening for changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.run("", m.agenda.Start), m.waitForEvent(), m.bridge.wait())
}

func (m Model) waitForEvent() tea.Cmd {
	ch := m.events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return agendaMsg{ev}
	}
}

// run executes fn off the UI loop and reports the outcome as a doneMsg.
func (m Model) run(label string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return doneMsg{label: label, err: fn(ctx)}
	}
}

func (m Model) now() time.Time {
	return time.Now().In(m.agenda.Anchor().Location())
}

func (m Model) rows() []row {
	return buildRows(m.agenda.Items(), m.agenda.Range(), m.agenda.Preferences().View)
}

// selection resolves the selected item to a row index, falling back to the
// first item once the selected one is gone.
func (m Model) selection(rows []row) int {
	if idx := itemIndex(rows, m.selected); idx >= 0 {
		return idx
	}
	return firstItem(rows)
}

func (m Model) selectedItem() (*calendar.Item, bool) {
	rows := m.rows()
	idx := m.selection(rows)
	if idx < 0 {
		return nil, false
	}
	return rows[idx].item, true
}

// itemAt returns the item drawn on screen row y.
func (m Model) itemAt(y int) *calendar.Item {
	rows := m.rows()
	idx := m.visibleOffset(rows, m.selection(rows)) + y - headerRows
	if y < headerRows || y >= headerRows+m.bodyHeight() || idx < 0 || idx >= len(rows) {
		return nil
	}
	return rows[idx].item
}

func (m Model) dayAt(y int) (time.Time, bool) {
	rows := m.rows()
	idx := m.visibleOffset(rows, m.selection(rows)) + y - headerRows
	if y < headerRows || y >= headerRows+m.bodyHeight() || idx < 0 || idx >= len(rows) {
		return time.Time{}, false
	}
	return rows[idx].day, true
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.isErr = false
}

func (m *Model) setErr(err error) {
	m.status = "ERR: " + err.Error()
	m.isErr = true
}

func (m *Model) moveSelection(dir int) {
	rows := m.rows()
	cur := m.selection(rows)
	next := stepItem(rows, cur, dir)
	if next < 0 {
		return
	}
	m.selected = rows[next].item.ID
	m.day = rows[next].day
	m.offset = m.visibleOffset(rows, next)
}

// Update handles messages and keybindings
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.search.SetWidth(msg.Width - 4)
	case errMsg:
		m.setErr(msg.err)
	case doneMsg:
		m.handleDone(msg)
	case savedMsg:
		if msg.err != nil {
			m.mode = modeEdit
			m.editor.err = msg.err.Error()
			break
		}
		m.mode = modeNormal
		m.setStatus(fmt.Sprintf("Saved %q", msg.title))
	case agendaMsg:
		m.handleEvent(msg.ev)
		cmds = append(cmds, m.waitForEvent())
	case modalMsg:
		m.editor = newEditor(msg.req)
		m.mode = modeEdit
		cmds = append(cmds, m.bridge.wait())
	case confirmMsg:
		m.confirm = msg.req
		m.mode = modeConfirm
		cmds = append(cmds, m.bridge.wait())
	case tea.MouseMotionMsg:
		m.pointer(msg.Mouse())
	case tea.MouseClickMsg:
		cmds = append(cmds, m.click(msg.Mouse()))
	case tea.MouseWheelMsg:
		switch msg.Mouse().Button {
		case tea.MouseWheelUp:
			m.moveSelection(-1)
		case tea.MouseWheelDown:
			m.moveSelection(1)
		}
	case tea.KeyPressMsg:
		switch m.mode {
		case modeSearch:
			cmds = append(cmds, m.updateSearch(msg))
		case modeEdit:
			cmds = append(cmds, m.updateEditor(msg))
		case modeConfirm:
			m.updateConfirm(msg)
		default:
			cmds = append(cmds, m.updateNormal(msg))
		}
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) handleDone(msg doneMsg) {
	switch {
	case msg.err == nil:
		if msg.label != "" {
			m.setStatus(msg.label)
		}
	case errors.Is(msg.err, mutate.ErrDeclined):
		m.setStatus("Canceled")
	case errors.Is(msg.err, calendar.ErrReadOnly):
		m.setStatus("Invoice overlays are read-only")
	case errors.Is(msg.err, hover.ErrNothingHovered):
		m.setStatus("Nothing selected")
	case errors.Is(msg.err, fetch.ErrSuperseded), errors.Is(msg.err, context.Canceled):
	default:
		// mutation failures also arrive as EventMutationFailed
		var mutErr *mutate.MutationError
		if errors.As(msg.err, &mutErr) {
			return
		}
		m.logger.Debug("tui: operation failed", "label", msg.label, "err", msg.err)
		m.setErr(msg.err)
	}
}

func (m *Model) handleEvent(ev agenda.Event) {
	switch ev.Kind {
	case agenda.EventFetch:
		switch ev.Fetch.Kind {
		case fetch.ChangeFailed:
			m.setErr(fmt.Errorf("%w (R to retry)", ev.Err))
		case fetch.ChangeCommitted:
			if m.isErr {
				m.setStatus(helpText)
			}
			rows := m.rows()
			if idx := m.selection(rows); idx >= 0 {
				m.selected = rows[idx].item.ID
				m.offset = m.visibleOffset(rows, idx)
			} else {
				m.offset = 0
			}
		}
	case agenda.EventMutationFailed:
		m.setErr(ev.Err)
	case agenda.EventMenu:
		if ev.Menu == nil {
			m.menuIndex = 0
			m.overMenu = false
		}
	}
}

// pointer feeds a mouse position to the hover machine. The machine is told
// about the panel before the item is left so the grace period is skipped.
func (m *Model) pointer(mouse tea.Mouse) {
	pt := overlay.Point{X: mouse.X, Y: mouse.Y}
	if mn, ok := m.agenda.Menu().Current(); ok {
		inMenu := m.menuRect(mn).Contains(pt)
		if m.overMenu && !inMenu {
			m.agenda.Menu().PointerLeave()
		}
		m.overMenu = inMenu
		if inMenu {
			if idx := pt.Y - m.menuRect(mn).Y - 1; idx >= 0 && idx < len(mn.Actions) {
				m.menuIndex = idx
			}
			return
		}
	}

	h := m.agenda.Hover()
	inPanel := m.previewRect(h.State()).Contains(pt)
	var it *calendar.Item
	if !inPanel {
		it = m.itemAt(pt.Y)
	}
	id := ""
	if it != nil {
		id = it.ID
	}

	if inPanel && !m.overPanel {
		h.EnterPanel()
	}
	if m.overItem != "" && id != m.overItem {
		h.LeaveItem()
	}
	if it != nil {
		hp := hover.Point{X: pt.X, Y: pt.Y}
		if id != m.overItem {
			h.EnterItem(m.ctx, it, hp)
		} else {
			h.Move(hp)
		}
	}
	if !inPanel && m.overPanel {
		h.LeavePanel()
	}
	m.overItem = id
	m.overPanel = inPanel
}

func (m *Model) click(mouse tea.Mouse) tea.Cmd {
	pt := overlay.Point{X: mouse.X, Y: mouse.Y}
	if mn, ok := m.agenda.Menu().Current(); ok {
		if action, hit := m.menuActionAt(mn, pt); hit && mouse.Button == tea.MouseLeft {
			return m.dispatch(action)
		}
		if !m.menuRect(mn).Contains(pt) {
			m.agenda.Menu().Dismiss()
		}
		return nil
	}
	if m.mode != modeNormal {
		return nil
	}
	if m.previewRect(m.agenda.Hover().State()).Contains(pt) {
		return nil
	}

	it := m.itemAt(pt.Y)
	switch mouse.Button {
	case tea.MouseLeft:
		if it != nil {
			m.selected = it.ID
			m.day = it.Start
			return nil
		}
		if day, ok := m.dayAt(pt.Y); ok {
			m.day = day
			m.setStatus("Selected " + day.Format("Mon Jan 2") + " · n/N to add here")
		}
	case tea.MouseRight:
		if it == nil {
			return nil
		}
		m.selected = it.ID
		return m.openMenu(it, hover.Point{X: pt.X, Y: pt.Y})
	}
	return nil
}

func (m *Model) openMenu(it *calendar.Item, at hover.Point) tea.Cmd {
	m.agenda.Hover().Hide()
	m.overItem, m.overPanel = "", false
	m.menuIndex = 0
	m.overMenu = false
	if err := m.agenda.Menu().Open(it, at); err != nil {
		m.handleDone(doneMsg{err: err})
	}
	return nil
}

func (m *Model) dispatch(action menu.Action) tea.Cmd {
	coord := m.agenda
	label := ""
	switch action {
	case menu.ActionDuplicate:
		label = "Duplicated"
	case menu.ActionDelete:
		label = "Deleted"
	}
	return m.run(label, func(ctx context.Context) error {
		return coord.Menu().Dispatch(ctx, action)
	})
}

func (m *Model) updateNormal(msg tea.KeyPressMsg) tea.Cmd {
	coord := m.agenda
	if mn, ok := coord.Menu().Current(); ok {
		switch msg.String() {
		case "esc", "q":
			coord.Menu().Dismiss()
		case "up", "k":
			if m.menuIndex > 0 {
				m.menuIndex--
			}
		case "down", "j":
			if m.menuIndex < len(mn.Actions)-1 {
				m.menuIndex++
			}
		case "enter":
			return m.dispatch(mn.Actions[m.menuIndex])
		}
		return nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return tea.Quit
	case "esc":
		coord.Hover().Hide()
		m.overItem, m.overPanel = "", false
		m.setStatus(helpText)
	case "j", "down":
		m.moveSelection(1)
	case "k", "up":
		m.moveSelection(-1)
	case "h", "left", "[":
		return m.run("", func(ctx context.Context) error { return coord.Navigate(ctx, -1) })
	case "l", "right", "]":
		return m.run("", func(ctx context.Context) error { return coord.Navigate(ctx, 1) })
	case "t":
		m.day = m.now()
		return m.run("", coord.Today)
	case "v":
		next := nextView(coord.Preferences().View)
		return m.run("View: "+string(next), func(ctx context.Context) error { return coord.SetView(ctx, next) })
	case "o":
		if err := coord.ToggleOverlays(); err != nil {
			m.setErr(err)
		}
	case "I":
		if err := coord.ToggleOnlyImportant(); err != nil {
			m.setErr(err)
		}
	case "/":
		m.mode = modeSearch
		m.search.SetValue(coord.Query())
		m.search.CursorEnd()
		return m.search.Focus()
	case "r":
		return m.run("Refreshed", coord.Refresh)
	case "R":
		return m.run("", coord.Retry)
	case "p", "space":
		if it, ok := m.selectedItem(); ok {
			rows := m.rows()
			idx := itemIndex(rows, it.ID)
			y := headerRows + idx - m.visibleOffset(rows, idx)
			h := coord.Hover()
			h.EnterItem(m.ctx, it, hover.Point{X: 3, Y: y})
			h.EnterPanel()
			h.LeaveItem()
		}
	case "i":
		return m.toggleImportant()
	case "x":
		return m.toggleCompleted()
	case "s":
		return m.cycleStatus()
	case "<", ">":
		dir := 1
		if msg.String() == "<" {
			dir = -1
		}
		return m.shift(dir)
	case "+", "-":
		step := resizeStep
		if msg.String() == "-" {
			step = -step
		}
		return m.resize(step)
	case "n":
		return m.create(calendar.KindEvent)
	case "N":
		return m.create(calendar.KindNote)
	case "e":
		if it, ok := m.selectedItem(); ok {
			if err := coord.OpenEdit(it.ID); err != nil {
				m.handleDone(doneMsg{err: err})
			}
		}
	case "D":
		if it, ok := m.selectedItem(); ok {
			id := it.ID
			return m.run("Duplicated", func(ctx context.Context) error { return coord.Executor().Duplicate(ctx, id) })
		}
	case "d":
		if it, ok := m.selectedItem(); ok {
			id := it.ID
			return m.run("Deleted", func(ctx context.Context) error { return coord.Executor().Delete(ctx, id) })
		}
	case "m":
		if it, ok := m.selectedItem(); ok {
			rows := m.rows()
			idx := itemIndex(rows, it.ID)
			y := headerRows + idx - m.visibleOffset(rows, idx)
			return m.openMenu(it, hover.Point{X: 14, Y: y})
		}
	}
	return nil
}

func nextView(v calendar.View) calendar.View {
	for i, known := range views {
		if known == v {
			return views[(i+1)%len(views)]
		}
	}
	return calendar.ViewMonth
}

// previewing reports whether the preview panel shows the selected item, in
// which case toggles go through the preview controls.
func (m *Model) previewing() bool {
	st := m.agenda.Hover().State()
	return st.Phase != hover.Hidden && st.Payload != nil
}

func (m *Model) toggleImportant() tea.Cmd {
	coord := m.agenda
	if m.previewing() {
		return m.run("", coord.Hover().ToggleImportant)
	}
	it, ok := m.selectedItem()
	if !ok {
		return nil
	}
	id, next := it.ID, !it.Important()
	return m.run("", func(ctx context.Context) error { return coord.Executor().SetImportant(ctx, id, next) })
}

func (m *Model) toggleCompleted() tea.Cmd {
	coord := m.agenda
	if m.previewing() {
		return m.run("", coord.Hover().ToggleCompleted)
	}
	it, ok := m.selectedItem()
	if !ok || it.Note == nil {
		return nil
	}
	id, next := it.ID, !it.Note.Completed
	return m.run("", func(ctx context.Context) error { return coord.Executor().SetCompleted(ctx, id, next) })
}

func nextStatus(s calendar.Status) calendar.Status {
	for i, known := range calendar.Statuses {
		if known == s {
			return calendar.Statuses[(i+1)%len(calendar.Statuses)]
		}
	}
	return calendar.StatusScheduled
}

func (m *Model) cycleStatus() tea.Cmd {
	coord := m.agenda
	it, ok := m.selectedItem()
	if m.previewing() {
		st := coord.Hover().State()
		it, ok = st.Payload.Item, true
	}
	if !ok || it.Event == nil {
		return nil
	}
	next := nextStatus(it.Event.Status)
	if m.previewing() {
		return m.run("Status: "+string(next), func(ctx context.Context) error { return coord.Hover().SetStatus(ctx, next) })
	}
	id := it.ID
	return m.run("Status: "+string(next), func(ctx context.Context) error { return coord.Executor().SetStatus(ctx, id, next) })
}

// shift moves the selected item by whole days, the keyboard form of a drag.
func (m *Model) shift(days int) tea.Cmd {
	it, ok := m.selectedItem()
	if !ok {
		return nil
	}
	coord := m.agenda
	id := it.ID
	start := it.Start.AddDate(0, 0, days)
	var end *time.Time
	if it.End != nil {
		e := it.End.AddDate(0, 0, days)
		end = &e
	}
	allDay := it.AllDay
	label := "Moved to " + start.Format("Mon Jan 2")
	return m.run(label, func(ctx context.Context) error { return coord.Executor().Move(ctx, id, start, end, allDay) })
}

// resize stretches a timed event, the keyboard form of dragging its end.
func (m *Model) resize(step time.Duration) tea.Cmd {
	it, ok := m.selectedItem()
	if !ok || it.Kind != calendar.KindEvent || it.AllDay {
		return nil
	}
	coord := m.agenda
	id, start := it.ID, it.Start
	end := start.Add(time.Hour)
	if it.End != nil {
		end = *it.End
	}
	end = end.Add(step)
	if !end.After(start) {
		m.setStatus("An event must end after it starts")
		return nil
	}
	label := "Ends " + end.Format("15:04")
	return m.run(label, func(ctx context.Context) error { return coord.Executor().Move(ctx, id, start, &end, false) })
}

func (m *Model) create(kind calendar.Kind) tea.Cmd {
	day := m.day
	if day.IsZero() {
		day = m.agenda.Anchor()
	}
	if err := m.agenda.OpenCreate(kind, day); err != nil {
		m.handleDone(doneMsg{err: err})
	}
	return nil
}

func (m *Model) updateSearch(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		m.mode = modeNormal
		m.search.Blur()
		return nil
	case "esc":
		m.mode = modeNormal
		m.search.Blur()
		if m.search.Value() != "" {
			m.search.SetValue("")
			m.agenda.SetQuery("")
		}
		return nil
	}
	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if v := m.search.Value(); v != before {
		m.agenda.SetQuery(strings.TrimSpace(v))
	}
	return cmd
}

func (m *Model) updateEditor(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.mode = modeNormal
		m.setStatus("Canceled")
		return nil
	case "enter":
		return m.saveEditor()
	}
	var cmd tea.Cmd
	m.editor.input, cmd = m.editor.input.Update(msg)
	m.editor.err = ""
	return cmd
}

func (m *Model) updateConfirm(msg tea.KeyPressMsg) {
	answer, ok := false, false
	switch msg.String() {
	case "y", "Y", "enter":
		answer, ok = true, true
	case "n", "N", "esc", "q":
		answer, ok = false, true
	}
	if !ok {
		return
	}
	m.confirm.reply <- answer
	m.confirm = confirmRequest{}
	m.mode = modeNormal
}

func (m Model) header() string {
	th := m.theme.Header
	p := m.agenda.Preferences()
	badge := func(label string, on bool) string {
		if on {
			return th.Active.Render(label)
		}
		return th.Badge.Render(label)
	}
	parts := []string{
		th.Title.Render(printers.RangeTitle(m.agenda.Range())),
		th.Badge.Render(string(p.View)),
		badge("overlays", p.ShowOverlays),
		badge("important only", p.OnlyImportant),
	}
	if m.agenda.State() == fetch.Fetching || m.agenda.Fetcher().Pending() {
		parts = append(parts, th.Badge.Render("loading…"))
	}
	return strings.Join(parts, "  ")
}

func (m Model) searchLine() string {
	if m.mode == modeSearch {
		return m.search.View()
	}
	if q := m.agenda.Query(); q != "" {
		return m.theme.Header.Search.Render("/ " + q)
	}
	return m.theme.Header.Search.Render("/ to search")
}

func (m Model) footer() string {
	if m.isErr {
		return m.theme.Footer.Error.Render(m.status)
	}
	return m.theme.Footer.Status.Render(m.status)
}

// View renders the screen
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "loading…"
	}
	rows := m.rows()
	selected := m.selection(rows)
	offset := m.visibleOffset(rows, selected)

	screen := joinLines(
		[]string{m.header(), m.searchLine()},
		m.renderBody(rows, selected, offset),
		[]string{m.footer()},
	)

	if st := m.agenda.Hover().State(); st.Phase != hover.Hidden {
		screen = overlay.Compose(screen, m.width, m.height, m.renderPreview(st, m.agenda.Hover().Controls()), m.previewPlacement(st))
	}
	if mn, ok := m.agenda.Menu().Current(); ok {
		screen = overlay.Compose(screen, m.width, m.height, m.renderMenu(mn), m.menuPlacement(mn))
	}
	switch m.mode {
	case modeEdit:
		screen = overlay.Compose(screen, m.width, m.height, m.editor.view(m), overlay.Placement{})
	case modeConfirm:
		screen = overlay.Compose(screen, m.width, m.height, m.confirmView(), overlay.Placement{})
	}
	return screen
}

// Run starts the program and blocks until it exits.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(ctx, opts), tea.WithAltScreen(), tea.WithMouseAllMotion())
	_, err := p.Run()
	if opts.Bridge != nil {
		opts.Bridge.Close()
	}
	return err
}
