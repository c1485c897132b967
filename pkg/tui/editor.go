package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/v2/textinput"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"

	"tableflip.dev/agenda/pkg/agenda"
	"tableflip.dev/agenda/pkg/calendar"
	"tableflip.dev/agenda/pkg/mutate"
	"tableflip.dev/agenda/pkg/printers"
)

var errTitleRequired = errors.New("title is required")

// Saver persists what the editor produces. *api.Client satisfies it.
type Saver interface {
	Create(ctx context.Context, kind calendar.Kind, body map[string]any) ([]byte, error)
	Patch(ctx context.Context, kind calendar.Kind, id string, body map[string]any) ([]byte, error)
}

// editor is the title-only create/edit form.
type editor struct {
	req   agenda.ModalRequest
	input textinput.Model
	err   string
}

func newEditor(req agenda.ModalRequest) editor {
	ti := textinput.New()
	ti.Placeholder = "Title"
	ti.CharLimit = 256
	ti.Prompt = "› "
	ti.Styles.Cursor.Color = lipgloss.Color("218")
	if req.Item != nil {
		ti.SetValue(req.Item.Title)
		ti.CursorEnd()
	}
	ti.Focus()
	return editor{req: req, input: ti}
}

// seed is the item a create request describes.
func (e editor) seed() *calendar.Item {
	it := &calendar.Item{
		Kind:   e.req.Kind,
		Start:  e.req.SeedStart,
		End:    e.req.SeedEnd,
		AllDay: e.req.AllDay,
	}
	switch e.req.Kind {
	case calendar.KindNote:
		it.Note = &calendar.NoteData{DueDate: e.req.SeedStart}
	default:
		it.Event = &calendar.EventData{Status: calendar.StatusScheduled}
	}
	return it
}

func (e editor) title() string {
	return strings.TrimSpace(e.input.Value())
}

// body is the request body to send for the current input.
func (e editor) body() (map[string]any, error) {
	title := e.title()
	if title == "" {
		return nil, errTitleRequired
	}
	if e.req.Mode == agenda.ModeEdit {
		return map[string]any{"title": title}, nil
	}
	return mutate.EditableFields(e.seed(), title), nil
}

type savedMsg struct {
	mode  agenda.ModalMode
	title string
	err   error
}

func (m *Model) saveEditor() tea.Cmd {
	body, err := m.editor.body()
	if err != nil {
		m.editor.err = err.Error()
		return nil
	}
	if m.saver == nil {
		m.editor.err = "no backend configured"
		return nil
	}
	req := m.editor.req
	title := m.editor.title()
	saver := m.saver
	coord := m.agenda
	ctx := m.ctx
	return func() tea.Msg {
		var err error
		if req.Mode == agenda.ModeEdit {
			_, err = saver.Patch(ctx, req.Item.Kind, req.Item.ID, body)
		} else {
			_, err = saver.Create(ctx, req.Kind, body)
		}
		if err != nil {
			return savedMsg{mode: req.Mode, title: title, err: err}
		}
		return savedMsg{mode: req.Mode, title: title, err: coord.Saved(ctx)}
	}
}

func (e editor) view(m Model) string {
	th := m.theme.Modal
	heading := "New " + string(e.req.Kind)
	if e.req.Mode == agenda.ModeEdit {
		heading = "Edit " + string(e.req.Kind)
	}
	when := e.seed()
	lines := []string{
		th.Title.Render(heading),
		th.Body.Render(fmt.Sprintf("%s · %s", when.Start.Format("Mon Jan 2 2006"), printers.When(when))),
		"",
		e.input.View(),
	}
	if e.err != "" {
		lines = append(lines, "", th.Error.Render(e.err))
	}
	lines = append(lines, "", m.theme.Footer.Help.Render("enter save · esc cancel"))
	return th.Frame.Width(48).Render(strings.Join(lines, "\n"))
}

func (m Model) confirmView() string {
	th := m.theme.Modal
	lines := []string{
		th.Title.Render("Confirm"),
		"",
		th.Body.Render(m.confirm.prompt),
		"",
		m.theme.Footer.Help.Render("y confirm · n cancel"),
	}
	return th.Frame.Render(strings.Join(lines, "\n"))
}
