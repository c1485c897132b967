package tui

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"tableflip.dev/agenda/pkg/hover"
	"tableflip.dev/agenda/pkg/menu"
	"tableflip.dev/agenda/pkg/printers"
	"tableflip.dev/agenda/pkg/tui/overlay"
)

const (
	previewWidth = 40
	previewGap   = 2
	menuGap      = 1
)

// renderPreview draws the hover panel body for st.
func (m Model) renderPreview(st hover.State, controls []hover.Control) string {
	if st.Payload == nil || st.Payload.Item == nil {
		return ""
	}
	th := m.theme.Preview
	inner := previewWidth - 4
	p := st.Payload
	it := p.Item

	label := func(name, value string) string {
		return th.Label.Render(name+": ") + th.Body.Render(value)
	}

	lines := []string{
		th.Title.Render(wordwrap.String(it.Title, inner)),
		th.Label.Render(it.Start.Format("Mon Jan 2") + " · " + printers.When(it)),
	}
	switch {
	case it.Event != nil:
		lines = append(lines, label("Status", string(it.Event.Status)))
		if it.Event.ContactID != "" {
			lines = append(lines, label("Contact", p.ContactName))
		}
		if it.Event.InvoiceID != "" && p.Invoice != nil {
			lines = append(lines, label("Invoice", p.Invoice.String()))
		}
		if it.Event.Location != "" {
			lines = append(lines, label("Where", it.Event.Location))
		}
		if it.Event.Description != "" {
			lines = append(lines, "", wordwrap.String(it.Event.Description, inner))
		}
	case it.Note != nil:
		done := "no"
		if it.Note.Completed {
			done = "yes"
		}
		lines = append(lines, label("Completed", done))
		if it.Note.ContactID != "" {
			lines = append(lines, label("Contact", p.ContactName))
		}
		if it.Note.InvoiceID != "" && p.Invoice != nil {
			lines = append(lines, label("Invoice", p.Invoice.String()))
		}
		if it.Note.Body != "" {
			lines = append(lines, "", wordwrap.String(it.Note.Body, inner))
		}
	case it.Overlay != nil:
		o := it.Overlay
		lines = append(lines, label("Amount", fmt.Sprintf("%.2f %s", o.Amount, o.Currency)))
		if o.PaymentStatus != "" {
			lines = append(lines, label("Payment", o.PaymentStatus))
		}
		if o.ContactID != "" {
			lines = append(lines, label("Contact", p.ContactName))
		}
		lines = append(lines, th.Label.Render("read-only"))
	}
	if it.Important() {
		lines = append(lines, th.Control.Render("★ important"))
	}
	if len(controls) > 0 {
		lines = append(lines, "", th.Control.Render(controlHelp(controls)))
	}
	return th.Frame.Width(previewWidth).Render(strings.Join(lines, "\n"))
}

func controlHelp(controls []hover.Control) string {
	parts := make([]string, 0, len(controls))
	for _, c := range controls {
		switch c {
		case hover.ControlStatus:
			parts = append(parts, "s status")
		case hover.ControlCompleted:
			parts = append(parts, "x done")
		case hover.ControlImportant:
			parts = append(parts, "i important")
		}
	}
	return strings.Join(parts, " · ")
}

func (m Model) previewPlacement(st hover.State) overlay.Placement {
	var anchor overlay.Point
	if st.Anchor != nil {
		anchor = overlay.Point{X: st.Anchor.X, Y: st.Anchor.Y}
	}
	return overlay.Placement{Anchor: &anchor, Gap: previewGap}
}

// previewRect is where the hover panel is drawn, empty when hidden.
func (m Model) previewRect(st hover.State) overlay.Rect {
	if st.Phase == hover.Hidden {
		return overlay.Rect{}
	}
	return overlay.Bounds(m.width, m.height, m.renderPreview(st, m.agenda.Hover().Controls()), m.previewPlacement(st))
}

func (m Model) renderMenu(mn *menu.Menu) string {
	th := m.theme.Menu
	lines := make([]string, 0, len(mn.Actions))
	width := 0
	for _, a := range mn.Actions {
		if w := len(a.Label()); w > width {
			width = w
		}
	}
	for i, a := range mn.Actions {
		style := th.Item
		if i == m.menuIndex {
			style = th.Selected
		}
		lines = append(lines, style.Width(width+2).Render(a.Label()))
	}
	return th.Frame.Render(strings.Join(lines, "\n"))
}

func (m Model) menuPlacement(mn *menu.Menu) overlay.Placement {
	return overlay.Placement{Anchor: &overlay.Point{X: mn.At.X, Y: mn.At.Y}, Gap: menuGap}
}

func (m Model) menuRect(mn *menu.Menu) overlay.Rect {
	return overlay.Bounds(m.width, m.height, m.renderMenu(mn), m.menuPlacement(mn))
}

// menuActionAt maps a screen point to the action drawn there.
func (m Model) menuActionAt(mn *menu.Menu, p overlay.Point) (menu.Action, bool) {
	r := m.menuRect(mn)
	if !r.Contains(p) {
		return "", false
	}
	idx := p.Y - r.Y - 1
	if idx < 0 || idx >= len(mn.Actions) {
		return "", false
	}
	return mn.Actions[idx], true
}
