package tui

import (
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea/v2"

	"tableflip.dev/agenda/pkg/agenda"
)

// ErrClosed is returned by the bridge after the program exited.
var ErrClosed = errors.New("tui: closed")

// ErrEditorBusy is returned when a modal request arrives while one is pending.
var ErrEditorBusy = errors.New("tui: editor already open")

type confirmRequest struct {
	prompt string
	reply  chan bool
}

// Bridge carries modal and confirmation requests from the coordinator, which
// may run on any goroutine, into the Bubble Tea loop. It implements
// agenda.Modal and mutate.Confirmer.
type Bridge struct {
	modals   chan agenda.ModalRequest
	confirms chan confirmRequest
	done     chan struct{}
	once     sync.Once
}

func NewBridge() *Bridge {
	return &Bridge{
		modals:   make(chan agenda.ModalRequest, 1),
		confirms: make(chan confirmRequest),
		done:     make(chan struct{}),
	}
}

// Open queues req for the editor.
func (b *Bridge) Open(req agenda.ModalRequest) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}
	select {
	case b.modals <- req:
		return nil
	default:
		return ErrEditorBusy
	}
}

// Confirm blocks until the user answers prompt.
func (b *Bridge) Confirm(prompt string) (bool, error) {
	reply := make(chan bool, 1)
	select {
	case b.confirms <- confirmRequest{prompt: prompt, reply: reply}:
	case <-b.done:
		return false, ErrClosed
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-b.done:
		return false, ErrClosed
	}
}

// Close releases pending confirmations.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

type modalMsg struct{ req agenda.ModalRequest }
type confirmMsg struct{ req confirmRequest }

func (b *Bridge) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case req := <-b.modals:
			return modalMsg{req}
		case req := <-b.confirms:
			return confirmMsg{req}
		case <-b.done:
			return nil
		}
	}
}
