// Package menu is the right-click context menu of the timeline. At most one
// menu is open at a time.
package menu

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tableflip.dev/agenda/pkg/calendar"
	"tableflip.dev/agenda/pkg/hover"
)

// ErrClosed is returned by Dispatch when no menu is open.
var ErrClosed = errors.New("menu: no menu is open")

// Action is a menu entry.
type Action string

const (
	ActionEdit      Action = "edit"
	ActionDuplicate Action = "duplicate"
	ActionDelete    Action = "delete"
)

// Actions lists the entries in display order.
var Actions = []Action{ActionEdit, ActionDuplicate, ActionDelete}

// Label is the text shown for the action.
func (a Action) Label() string {
	switch a {
	case ActionEdit:
		return "Edit"
	case ActionDuplicate:
		return "Duplicate"
	case ActionDelete:
		return "Delete"
	}
	return string(a)
}

// Menu is an open context menu.
type Menu struct {
	Item    *calendar.Item
	At      hover.Point
	Actions []Action
}

// Handler runs a chosen action against its item.
type Handler func(ctx context.Context, action Action, item *calendar.Item) error

// Controller owns the single open menu.
type Controller struct {
	handler Handler

	mu        sync.Mutex
	current   *Menu
	observers []func(*Menu)
}

// New returns a Controller dispatching to handler.
func New(handler Handler) *Controller {
	return &Controller{handler: handler}
}

// SetHandler replaces the dispatch target.
func (c *Controller) SetHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// OnChange registers an observer called with the open menu, or nil when it
// closes.
func (c *Controller) OnChange(fn func(*Menu)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

func (c *Controller) setLocked(m *Menu) func() {
	c.current = m
	snap := m.clone()
	observers := make([]func(*Menu), len(c.observers))
	copy(observers, c.observers)
	return func() {
		for _, fn := range observers {
			fn(snap)
		}
	}
}

// Open shows the menu for item at p, replacing any open menu. Overlays are
// read-only and get no menu.
func (c *Controller) Open(item *calendar.Item, p hover.Point) error {
	if item == nil {
		return errors.New("menu: nil item")
	}
	if !item.Mutable() {
		return fmt.Errorf("menu: %s: %w", item.ID, calendar.ErrReadOnly)
	}
	c.mu.Lock()
	deliver := c.setLocked(&Menu{
		Item:    item.Clone(),
		At:      p,
		Actions: append([]Action(nil), Actions...),
	})
	c.mu.Unlock()
	deliver()
	return nil
}

// Current returns a copy of the open menu.
func (c *Controller) Current() (*Menu, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, false
	}
	return c.current.clone(), true
}

// Dismiss closes the menu.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return
	}
	deliver := c.setLocked(nil)
	c.mu.Unlock()
	deliver()
}

// PointerLeave closes the menu when the pointer leaves it.
func (c *Controller) PointerLeave() {
	c.Dismiss()
}

// Dispatch closes the menu and runs action against its item.
func (c *Controller) Dispatch(ctx context.Context, action Action) error {
	c.mu.Lock()
	m := c.current
	if m == nil {
		c.mu.Unlock()
		return ErrClosed
	}
	known := false
	for _, a := range m.Actions {
		if a == action {
			known = true
			break
		}
	}
	if !known {
		c.mu.Unlock()
		return fmt.Errorf("menu: unknown action %q", action)
	}
	handler := c.handler
	deliver := c.setLocked(nil)
	c.mu.Unlock()
	deliver()

	if handler == nil {
		return fmt.Errorf("menu: no handler for %q", action)
	}
	return handler(ctx, action, m.Item)
}

func (m *Menu) clone() *Menu {
	if m == nil {
		return nil
	}
	cp := *m
	cp.Item = m.Item.Clone()
	cp.Actions = append([]Action(nil), m.Actions...)
	return &cp
}
