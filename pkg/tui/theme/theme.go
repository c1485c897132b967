package theme

import "github.com/charmbracelet/lipgloss/v2"

// Theme centralizes Lip Gloss styles for the agenda screen.
type Theme struct {
	Header  HeaderTheme
	Footer  FooterTheme
	Agenda  AgendaTheme
	Preview PanelTheme
	Menu    MenuTheme
	Modal   ModalTheme
}

// HeaderTheme styles the range title and filter badges.
type HeaderTheme struct {
	Title  lipgloss.Style
	Badge  lipgloss.Style
	Active lipgloss.Style
	Search lipgloss.Style
}

// FooterTheme groups styles used by the bottom status bar.
type FooterTheme struct {
	Help   lipgloss.Style
	Status lipgloss.Style
	Error  lipgloss.Style
}

// AgendaTheme styles the day list.
type AgendaTheme struct {
	Day      lipgloss.Style
	Today    lipgloss.Style
	Empty    lipgloss.Style
	Time     lipgloss.Style
	Selected lipgloss.Style
}

// PanelTheme styles framed panels and headings.
type PanelTheme struct {
	Frame   lipgloss.Style
	Title   lipgloss.Style
	Label   lipgloss.Style
	Body    lipgloss.Style
	Control lipgloss.Style
}

// MenuTheme styles the context menu.
type MenuTheme struct {
	Frame    lipgloss.Style
	Item     lipgloss.Style
	Selected lipgloss.Style
}

// ModalTheme styles centered modal overlays (editor, confirmation).
type ModalTheme struct {
	Frame lipgloss.Style
	Title lipgloss.Style
	Body  lipgloss.Style
	Error lipgloss.Style
}

// Default returns the built-in theme used across the UI.
func Default() Theme {
	accent := lipgloss.Color("212")
	muted := lipgloss.Color("244")

	item := lipgloss.NewStyle().Padding(0, 1)

	return Theme{
		Header: HeaderTheme{
			Title:  lipgloss.NewStyle().Bold(true).Underline(true),
			Badge:  lipgloss.NewStyle().Foreground(muted),
			Active: lipgloss.NewStyle().Foreground(accent).Bold(true),
			Search: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		},
		Footer: FooterTheme{
			Help:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
			Status: lipgloss.NewStyle().Foreground(muted),
			Error:  lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
		},
		Agenda: AgendaTheme{
			Day:      lipgloss.NewStyle().Bold(true),
			Today:    lipgloss.NewStyle().Bold(true).Foreground(accent),
			Empty:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true),
			Time:     lipgloss.NewStyle().Foreground(muted),
			Selected: lipgloss.NewStyle().Foreground(accent).Bold(true),
		},
		Preview: PanelTheme{
			Frame: lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(accent).
				Padding(0, 1),
			Title:   lipgloss.NewStyle().Bold(true),
			Label:   lipgloss.NewStyle().Foreground(muted),
			Body:    lipgloss.NewStyle(),
			Control: lipgloss.NewStyle().Foreground(accent),
		},
		Menu: MenuTheme{
			Frame:    lipgloss.NewStyle().Border(lipgloss.NormalBorder()),
			Item:     item,
			Selected: item.Reverse(true),
		},
		Modal: ModalTheme{
			Frame: lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				Padding(1, 2),
			Title: lipgloss.NewStyle().Bold(true),
			Body:  lipgloss.NewStyle(),
			Error: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		},
	}
}
