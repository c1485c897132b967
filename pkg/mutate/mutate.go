// Package mutate applies user edits optimistically: the committed item is
// changed locally first, the change is persisted, and the range is reloaded.
// A failed persistence call rolls the local change back.
package mutate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"tableflip.dev/agenda/pkg/calendar"
)

// CopySuffix is appended to the title of duplicated items.
const CopySuffix = " (copy)"

// ErrDeclined is returned by Delete when the user does not confirm.
var ErrDeclined = errors.New("mutate: declined")

// Op names a mutation.
type Op string

const (
	OpMove       Op = "move"
	OpStatus     Op = "status"
	OpImportance Op = "importance"
	OpCompletion Op = "completion"
	OpDuplicate  Op = "duplicate"
	OpDelete     Op = "delete"
)

// MutationError reports a failed persistence call. Local changes have been
// reverted by the time it is returned.
type MutationError struct {
	Op  Op
	ID  string
	Err error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("mutate: %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// Store is the committed item list. *fetch.Coordinator satisfies it.
// Generation changes whenever a reload commits a new list.
type Store interface {
	Generation() uint64
	Item(id string) (*calendar.Item, bool)
	Patch(id string, fn func(*calendar.Item) error) (*calendar.Item, error)
	Replace(item *calendar.Item) error
	Refresh(ctx context.Context) error
}

// Persister writes changes to the server. *api.Client satisfies it.
type Persister interface {
	Create(ctx context.Context, kind calendar.Kind, body map[string]any) ([]byte, error)
	Patch(ctx context.Context, kind calendar.Kind, id string, body map[string]any) ([]byte, error)
	Delete(ctx context.Context, kind calendar.Kind, id string) error
}

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) (bool, error)

func (f ConfirmFunc) Confirm(prompt string) (bool, error) { return f(prompt) }

// Options configures an Executor.
type Options struct {
	Store     Store
	Persister Persister
	Confirmer Confirmer
	Logger    *slog.Logger
}

// Executor runs mutations against the committed list.
type Executor struct {
	store     Store
	persister Persister
	confirmer Confirmer
	logger    *slog.Logger

	mu        sync.RWMutex
	observers []func(*MutationError)
}

// New returns an Executor. Without a Confirmer every delete is declined.
func New(opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{
		store:     opts.Store,
		persister: opts.Persister,
		confirmer: opts.Confirmer,
		logger:    logger,
	}
}

// OnFailure registers an observer for persistence failures.
func (e *Executor) OnFailure(fn func(*MutationError)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

func (e *Executor) fail(op Op, id string, err error) error {
	merr := &MutationError{Op: op, ID: id, Err: err}
	e.logger.Warn("mutate: persistence failed", "op", op, "id", id, "err", err)
	e.mu.RLock()
	observers := make([]func(*MutationError), len(e.observers))
	copy(observers, e.observers)
	e.mu.RUnlock()
	for _, fn := range observers {
		fn(merr)
	}
	return merr
}

func (e *Executor) mutable(op Op, id string) (*calendar.Item, error) {
	it, ok := e.store.Item(id)
	if !ok {
		return nil, fmt.Errorf("mutate: %s %s: item not loaded", op, id)
	}
	if !it.Mutable() {
		return nil, fmt.Errorf("mutate: %s %s: %w", op, id, calendar.ErrReadOnly)
	}
	return it, nil
}

// apply runs the optimistic cycle: local patch, persist, rollback on
// failure, refresh on success.
func (e *Executor) apply(ctx context.Context, op Op, id string, local func(*calendar.Item) error, body func(*calendar.Item) map[string]any) error {
	it, err := e.mutable(op, id)
	if err != nil {
		return err
	}
	gen := e.store.Generation()
	prev, err := e.store.Patch(id, local)
	if err != nil {
		return fmt.Errorf("mutate: %s %s: %w", op, id, err)
	}
	patched, _ := e.store.Item(id)
	if patched == nil {
		patched = it
	}
	if _, err := e.persister.Patch(ctx, it.Kind, id, body(patched)); err != nil {
		// A reload committed meanwhile already holds the server copy.
		if e.store.Generation() != gen {
			e.logger.Debug("mutate: skipping rollback, list reloaded", "op", op, "id", id)
		} else if rerr := e.store.Replace(prev); rerr != nil {
			e.logger.Warn("mutate: rollback failed", "op", op, "id", id, "err", rerr)
		}
		return e.fail(op, id, err)
	}
	e.refresh(ctx, op, id)
	return nil
}

func (e *Executor) refresh(ctx context.Context, op Op, id string) {
	if err := e.store.Refresh(ctx); err != nil {
		e.logger.Debug("mutate: refresh after mutation failed", "op", op, "id", id, "err", err)
	}
}

// Move reschedules an item (drag or resize). A nil end clears it.
func (e *Executor) Move(ctx context.Context, id string, start time.Time, end *time.Time, allDay bool) error {
	if end != nil && end.Before(start) {
		return fmt.Errorf("mutate: move %s: end before start", id)
	}
	return e.apply(ctx, OpMove, id, func(it *calendar.Item) error {
		it.Start = start
		it.AllDay = allDay
		if end != nil {
			v := *end
			it.End = &v
		} else {
			it.End = nil
		}
		if it.Note != nil {
			it.Note.DueDate = start
		}
		return nil
	}, moveBody)
}

func moveBody(it *calendar.Item) map[string]any {
	if it.Kind == calendar.KindNote {
		return map[string]any{"due_date": formatTime(it.Start, it.AllDay)}
	}
	body := map[string]any{
		"start":   formatTime(it.Start, it.AllDay),
		"end":     nil,
		"all_day": it.AllDay,
	}
	if it.End != nil {
		body["end"] = formatTime(*it.End, it.AllDay)
	}
	return body
}

// SetStatus changes the status of an event.
func (e *Executor) SetStatus(ctx context.Context, id string, status calendar.Status) error {
	if !status.Valid() {
		return fmt.Errorf("mutate: status %s: unknown status %q", id, status)
	}
	return e.apply(ctx, OpStatus, id, func(it *calendar.Item) error {
		return it.SetStatus(status)
	}, func(*calendar.Item) map[string]any {
		return map[string]any{"status": string(status)}
	})
}

// SetImportant flags an event or note as important.
func (e *Executor) SetImportant(ctx context.Context, id string, important bool) error {
	return e.apply(ctx, OpImportance, id, func(it *calendar.Item) error {
		return it.SetImportant(important)
	}, func(*calendar.Item) map[string]any {
		return map[string]any{"is_important": important}
	})
}

// SetCompleted marks a note completed.
func (e *Executor) SetCompleted(ctx context.Context, id string, completed bool) error {
	return e.apply(ctx, OpCompletion, id, func(it *calendar.Item) error {
		return it.SetCompleted(completed)
	}, func(*calendar.Item) map[string]any {
		return map[string]any{"is_completed": completed}
	})
}

// Duplicate creates a copy of an item. The server assigns the new id.
func (e *Executor) Duplicate(ctx context.Context, id string) error {
	it, err := e.mutable(OpDuplicate, id)
	if err != nil {
		return err
	}
	if _, err := e.persister.Create(ctx, it.Kind, EditableFields(it, it.Title+CopySuffix)); err != nil {
		return e.fail(OpDuplicate, id, err)
	}
	e.refresh(ctx, OpDuplicate, id)
	return nil
}

// Delete removes an item after the Confirmer approves.
func (e *Executor) Delete(ctx context.Context, id string) error {
	it, err := e.mutable(OpDelete, id)
	if err != nil {
		return err
	}
	if e.confirmer == nil {
		return ErrDeclined
	}
	ok, err := e.confirmer.Confirm(fmt.Sprintf("Delete %s %q?", it.Kind, it.Title))
	if err != nil {
		return fmt.Errorf("mutate: delete %s: confirm: %w", id, err)
	}
	if !ok {
		return ErrDeclined
	}
	if err := e.persister.Delete(ctx, it.Kind, id); err != nil {
		return e.fail(OpDelete, id, err)
	}
	e.refresh(ctx, OpDelete, id)
	return nil
}

// EditableFields renders the create/update body of it with the given title.
func EditableFields(it *calendar.Item, title string) map[string]any {
	body := map[string]any{"title": title}
	if it.Color != "" {
		body["color"] = it.Color
	}
	switch it.Kind {
	case calendar.KindEvent:
		body["start"] = formatTime(it.Start, it.AllDay)
		if it.End != nil {
			body["end"] = formatTime(*it.End, it.AllDay)
		}
		body["all_day"] = it.AllDay
		if ev := it.Event; ev != nil {
			body["status"] = string(ev.Status)
			body["is_important"] = ev.Important
			putNonEmpty(body, "description", ev.Description)
			putNonEmpty(body, "location", ev.Location)
			putNonEmpty(body, "contact_id", ev.ContactID)
			putNonEmpty(body, "invoice_id", ev.InvoiceID)
		}
	case calendar.KindNote:
		body["due_date"] = formatTime(it.Start, it.AllDay)
		if n := it.Note; n != nil {
			body["is_important"] = n.Important
			body["is_completed"] = n.Completed
			putNonEmpty(body, "body", n.Body)
			putNonEmpty(body, "contact_id", n.ContactID)
			putNonEmpty(body, "invoice_id", n.InvoiceID)
		}
	}
	return body
}

func putNonEmpty(body map[string]any, key, v string) {
	if v != "" {
		body[key] = v
	}
}

func formatTime(t time.Time, allDay bool) string {
	if allDay {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}
