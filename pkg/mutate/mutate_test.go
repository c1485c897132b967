package mutate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tableflip.dev/agenda/pkg/calendar"
)

type memoryStore struct {
	mu        sync.Mutex
	items     map[string]*calendar.Item
	refreshes int
	gen       uint64
}

func newMemoryStore(items ...*calendar.Item) *memoryStore {
	s := &memoryStore{items: map[string]*calendar.Item{}}
	for _, it := range items {
		s.items[it.ID] = it.Clone()
	}
	return s
}

func (s *memoryStore) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// reload stands in for a reload committing the server copy of items.
func (s *memoryStore) reload(items ...*calendar.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.items[it.ID] = it.Clone()
	}
	s.gen++
}

func (s *memoryStore) Item(id string) (*calendar.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, false
	}
	return it.Clone(), true
}

func (s *memoryStore) Patch(id string, fn func(*calendar.Item) error) (*calendar.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, errors.New("not found")
	}
	prev := it.Clone()
	next := it.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.items[id] = next
	return prev, nil
}

func (s *memoryStore) Replace(item *calendar.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item.Clone()
	return nil
}

func (s *memoryStore) Refresh(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	return nil
}

type request struct {
	method string
	kind   calendar.Kind
	id     string
	body   map[string]any
	seen   *calendar.Item
}

type fakePersister struct {
	store    *memoryStore
	err      error
	during   func()
	requests []request
}

func (p *fakePersister) record(method string, kind calendar.Kind, id string, body map[string]any) error {
	r := request{method: method, kind: kind, id: id, body: body}
	if id != "" {
		r.seen, _ = p.store.Item(id)
	}
	p.requests = append(p.requests, r)
	if p.during != nil {
		p.during()
	}
	return p.err
}

func (p *fakePersister) Create(_ context.Context, kind calendar.Kind, body map[string]any) ([]byte, error) {
	return []byte(`{"id":99}`), p.record("POST", kind, "", body)
}

func (p *fakePersister) Patch(_ context.Context, kind calendar.Kind, id string, body map[string]any) ([]byte, error) {
	return []byte(`{}`), p.record("PATCH", kind, id, body)
}

func (p *fakePersister) Delete(_ context.Context, kind calendar.Kind, id string) error {
	return p.record("DELETE", kind, id, nil)
}

func at(day, hour int) time.Time {
	return time.Date(2025, 1, day, hour, 0, 0, 0, time.UTC)
}

func event(id string) *calendar.Item {
	end := at(10, 10)
	return &calendar.Item{
		ID: id, Kind: calendar.KindEvent, Title: "Kickoff", Start: at(10, 9), End: &end,
		Event: &calendar.EventData{Status: calendar.StatusScheduled, ContactID: "31"},
	}
}

func note(id string) *calendar.Item {
	return &calendar.Item{
		ID: id, Kind: calendar.KindNote, Title: "Call back", Start: at(15, 0), AllDay: true,
		Note: &calendar.NoteData{DueDate: at(15, 0)},
	}
}

func overlay() *calendar.Item {
	return &calendar.Item{
		ID: "overlay-12", Kind: calendar.KindOverlay, Title: "Invoice F-001 due", Start: at(31, 0), AllDay: true,
		Overlay: &calendar.OverlayData{InvoiceID: "12"},
	}
}

func newExecutor(items ...*calendar.Item) (*Executor, *memoryStore, *fakePersister) {
	store := newMemoryStore(items...)
	p := &fakePersister{store: store}
	return New(Options{Store: store, Persister: p}), store, p
}

func TestMoveCommitsLocallyBeforePersisting(t *testing.T) {
	exec, store, p := newExecutor(event("7"))
	start, end := at(12, 14), at(12, 15)

	if err := exec.Move(context.Background(), "7", start, &end, false); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if len(p.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(p.requests))
	}
	req := p.requests[0]
	if req.method != "PATCH" || req.id != "7" {
		t.Fatalf("unexpected request %+v", req)
	}
	if !req.seen.Start.Equal(start) {
		t.Fatalf("item was not moved before the persistence call: %s", req.seen.Start)
	}
	if len(req.body) != 3 {
		t.Fatalf("patch body should be partial, got %v", req.body)
	}
	if req.body["start"] != "2025-01-12T14:00:00Z" || req.body["end"] != "2025-01-12T15:00:00Z" || req.body["all_day"] != false {
		t.Fatalf("body = %v", req.body)
	}
	if store.refreshes != 1 {
		t.Fatalf("expected a refresh, got %d", store.refreshes)
	}
}

func TestMoveNoteSendsDueDate(t *testing.T) {
	exec, store, p := newExecutor(note("5"))
	if err := exec.Move(context.Background(), "5", at(20, 0), nil, true); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got := p.requests[0].body["due_date"]; got != "2025-01-20" {
		t.Fatalf("due_date = %v", got)
	}
	it, _ := store.Item("5")
	if it.Note.DueDate.Day() != 20 {
		t.Fatalf("note due date not moved")
	}
}

func TestSetImportantOnNote(t *testing.T) {
	exec, store, p := newExecutor(note("5"))
	if err := exec.SetImportant(context.Background(), "5", true); err != nil {
		t.Fatalf("SetImportant: %v", err)
	}
	req := p.requests[0]
	if !req.seen.Important() {
		t.Fatalf("importance not applied before persisting")
	}
	if len(req.body) != 1 || req.body["is_important"] != true {
		t.Fatalf("body = %v, want {is_important: true}", req.body)
	}
	if it, _ := store.Item("5"); !it.Important() {
		t.Fatalf("importance lost")
	}
}

func TestSetStatusAndCompletion(t *testing.T) {
	exec, _, p := newExecutor(event("7"), note("5"))
	ctx := context.Background()

	if err := exec.SetStatus(ctx, "7", calendar.StatusDone); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if p.requests[0].body["status"] != "done" {
		t.Fatalf("status body = %v", p.requests[0].body)
	}
	if err := exec.SetCompleted(ctx, "5", true); err != nil {
		t.Fatalf("SetCompleted: %v", err)
	}
	if p.requests[1].body["is_completed"] != true {
		t.Fatalf("completion body = %v", p.requests[1].body)
	}
	if err := exec.SetStatus(ctx, "5", calendar.StatusDone); !errors.Is(err, calendar.ErrUnsupported) {
		t.Fatalf("status on a note: err = %v", err)
	}
	if err := exec.SetStatus(ctx, "7", "archived"); err == nil {
		t.Fatalf("expected unknown status to fail")
	}
}

func TestFailureRollsBack(t *testing.T) {
	exec, store, p := newExecutor(event("7"))
	p.err = errors.New("500 internal")

	var observed []*MutationError
	exec.OnFailure(func(err *MutationError) { observed = append(observed, err) })

	end := at(12, 15)
	err := exec.Move(context.Background(), "7", at(12, 14), &end, false)
	var merr *MutationError
	if !errors.As(err, &merr) || merr.Op != OpMove || merr.ID != "7" {
		t.Fatalf("err = %v, want move MutationError", err)
	}
	it, _ := store.Item("7")
	if !it.Start.Equal(at(10, 9)) {
		t.Fatalf("optimistic change was not rolled back: %s", it.Start)
	}
	if store.refreshes != 0 {
		t.Fatalf("failed mutation should not refresh")
	}
	if len(observed) != 1 {
		t.Fatalf("failure observer not notified")
	}
}

func TestFailureKeepsNewerReload(t *testing.T) {
	exec, store, p := newExecutor(event("7"))
	p.err = errors.New("500 internal")
	server := event("7")
	server.Title = "Kickoff (renamed)"
	p.during = func() { store.reload(server) }

	if err := exec.Move(context.Background(), "7", at(12, 14), nil, false); err == nil {
		t.Fatal("expected a MutationError")
	}
	it, _ := store.Item("7")
	if it.Title != "Kickoff (renamed)" || !it.Start.Equal(at(10, 9)) {
		t.Fatalf("item = %q at %s, want the reloaded copy", it.Title, it.Start)
	}
}

func TestOverlaysAreReadOnly(t *testing.T) {
	exec, _, p := newExecutor(overlay())
	ctx := context.Background()
	checks := map[string]error{
		"move":      exec.Move(ctx, "overlay-12", at(1, 0), nil, true),
		"important": exec.SetImportant(ctx, "overlay-12", true),
		"duplicate": exec.Duplicate(ctx, "overlay-12"),
		"delete":    exec.Delete(ctx, "overlay-12"),
	}
	for name, err := range checks {
		if !errors.Is(err, calendar.ErrReadOnly) {
			t.Errorf("%s: err = %v, want ErrReadOnly", name, err)
		}
	}
	if len(p.requests) != 0 {
		t.Fatalf("overlay mutation reached the server")
	}
}

func TestDuplicateSuffixesTitle(t *testing.T) {
	exec, store, p := newExecutor(event("7"))
	if err := exec.Duplicate(context.Background(), "7"); err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	req := p.requests[0]
	if req.method != "POST" || req.kind != calendar.KindEvent {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.body["title"] != "Kickoff (copy)" || req.body["contact_id"] != "31" {
		t.Fatalf("body = %v", req.body)
	}
	if _, ok := req.body["id"]; ok {
		t.Fatalf("duplicate must not carry an id")
	}
	if store.refreshes != 1 {
		t.Fatalf("expected a refresh after duplicate")
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	store := newMemoryStore(event("7"))
	p := &fakePersister{store: store}
	var prompt string
	answer := false
	exec := New(Options{Store: store, Persister: p, Confirmer: ConfirmFunc(func(s string) (bool, error) {
		prompt = s
		return answer, nil
	})})
	ctx := context.Background()

	if err := exec.Delete(ctx, "7"); !errors.Is(err, ErrDeclined) {
		t.Fatalf("err = %v, want ErrDeclined", err)
	}
	if len(p.requests) != 0 {
		t.Fatalf("declined delete reached the server")
	}
	if !strings.Contains(prompt, "Kickoff") {
		t.Fatalf("prompt = %q", prompt)
	}

	answer = true
	if err := exec.Delete(ctx, "7"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(p.requests) != 1 || p.requests[0].method != "DELETE" {
		t.Fatalf("requests = %+v", p.requests)
	}
}
