package agenda

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tableflip.dev/agenda/pkg/api"
	"tableflip.dev/agenda/pkg/calendar"
	"tableflip.dev/agenda/pkg/clock"
	"tableflip.dev/agenda/pkg/enrich"
	"tableflip.dev/agenda/pkg/fetch"
	"tableflip.dev/agenda/pkg/hover"
	"tableflip.dev/agenda/pkg/menu"
	"tableflip.dev/agenda/pkg/mutate"
	"tableflip.dev/agenda/pkg/prefs"
)

type listCall struct {
	kind   calendar.Kind
	params api.ListParams
}

type writeCall struct {
	method string
	kind   calendar.Kind
	id     string
	body   map[string]any
}

type fakeClient struct {
	org    string
	mu     sync.Mutex
	bodies map[calendar.Kind]string
	lists  []listCall
	writes []writeCall
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		org: "acme",
		bodies: map[calendar.Kind]string{
			calendar.KindEvent: `{"results":[
				{"id":7,"title":"Kickoff","start":"2025-01-10T09:00:00Z","end":"2025-01-10T10:00:00Z"},
				{"id":8,"title":"Review","start":"2025-01-20T14:00:00Z"}
			]}`,
			calendar.KindNote:    `[{"id":5,"title":"Call back","due_date":"2025-01-15","is_important":false,"contact_id":31}]`,
			calendar.KindOverlay: `[{"id":12,"number":"F-001","due_date":"2025-01-31"}]`,
		},
	}
}

func (f *fakeClient) Org() string { return f.org }

func (f *fakeClient) list(kind calendar.Kind, p api.ListParams) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, listCall{kind: kind, params: p})
	return []byte(f.bodies[kind]), nil
}

func (f *fakeClient) ListEvents(_ context.Context, p api.ListParams) ([]byte, error) {
	return f.list(calendar.KindEvent, p)
}

func (f *fakeClient) ListNotes(_ context.Context, p api.ListParams) ([]byte, error) {
	return f.list(calendar.KindNote, p)
}

func (f *fakeClient) ListOverlays(_ context.Context, p api.ListParams) ([]byte, error) {
	return f.list(calendar.KindOverlay, p)
}

func (f *fakeClient) write(method string, kind calendar.Kind, id string, body map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, writeCall{method: method, kind: kind, id: id, body: body})
}

func (f *fakeClient) Create(_ context.Context, kind calendar.Kind, body map[string]any) ([]byte, error) {
	f.write("POST", kind, "", body)
	return []byte(`{"id":100}`), nil
}

func (f *fakeClient) Patch(_ context.Context, kind calendar.Kind, id string, body map[string]any) ([]byte, error) {
	f.write("PATCH", kind, id, body)
	return []byte(`{}`), nil
}

func (f *fakeClient) Delete(_ context.Context, kind calendar.Kind, id string) error {
	f.write("DELETE", kind, id, nil)
	return nil
}

func (f *fakeClient) Contact(_ context.Context, id string) (api.Contact, error) {
	return api.Contact{ID: api.Ident(id), Name: "ACME Corp"}, nil
}

func (f *fakeClient) Invoice(_ context.Context, id string) (api.Invoice, error) {
	return api.Invoice{ID: api.Ident(id), Number: "F-001"}, nil
}

func (f *fakeClient) count(kind calendar.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.lists {
		if c.kind == kind {
			n++
		}
	}
	return n
}

func (f *fakeClient) lastList(kind calendar.Kind) api.ListParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.lists) - 1; i >= 0; i-- {
		if f.lists[i].kind == kind {
			return f.lists[i].params
		}
	}
	return api.ListParams{}
}

type fixture struct {
	c      *Coordinator
	client *fakeClient
	clock  *clock.FakeClock
	store  *prefs.Memory
	modal  []ModalRequest
}

func newFixture(t *testing.T, p prefs.Preferences) *fixture {
	t.Helper()
	f := &fixture{
		client: newFakeClient(),
		clock:  clock.Fake(time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)),
		store:  prefs.NewMemory(p),
	}
	c, err := New(Options{
		Client:    f.client,
		Prefs:     f.store,
		Cache:     enrich.New(f.client, enrich.Options{}),
		Clock:     f.clock,
		Location:  time.UTC,
		WeekStart: time.Monday,
		Confirmer: mutate.ConfirmFunc(func(string) (bool, error) { return true, nil }),
		Modal: ModalFunc(func(req ModalRequest) error {
			f.modal = append(f.modal, req)
			return nil
		}),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.c = c
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return f
}

func monthPrefs(showOverlays bool) prefs.Preferences {
	return prefs.Preferences{View: calendar.ViewMonth, ShowOverlays: showOverlays}
}

func TestRequiresTenant(t *testing.T) {
	client := newFakeClient()
	client.org = ""
	if _, err := New(Options{Client: client}); !errors.Is(err, api.ErrNoTenant) {
		t.Fatalf("err = %v, want ErrNoTenant", err)
	}
}

func TestMonthViewWithoutOverlays(t *testing.T) {
	f := newFixture(t, monthPrefs(false))

	items := f.c.Items()
	var events, overlays int
	for _, it := range items {
		switch it.Kind {
		case calendar.KindEvent:
			events++
		case calendar.KindOverlay:
			overlays++
		}
	}
	if events != 2 || overlays != 0 {
		t.Fatalf("events=%d overlays=%d", events, overlays)
	}
	if f.client.count(calendar.KindOverlay) != 0 {
		t.Fatalf("overlay stream requested")
	}
	r := f.c.Range()
	if !r.Start.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) || !r.End.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("range = %s", r)
	}
}

type failingStore struct {
	p   prefs.Preferences
	err error
}

func (s *failingStore) Load() prefs.Preferences { return s.p }
func (s *failingStore) Save(prefs.Preferences) error { return s.err }

func TestFailedSaveKeepsPreferences(t *testing.T) {
	client := newFakeClient()
	c, err := New(Options{
		Client:   client,
		Prefs:    &failingStore{p: monthPrefs(false), err: errors.New("disk full")},
		Cache:    enrich.New(client, enrich.Options{}),
		Clock:    clock.Fake(time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)),
		Location: time.UTC,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := c.ToggleOverlays(); err == nil {
		t.Fatal("expected the save error")
	}
	if err := c.SetView(ctx, calendar.ViewWeek); err == nil {
		t.Fatal("expected the save error")
	}
	p := c.Preferences()
	if p.ShowOverlays || p.View != calendar.ViewMonth {
		t.Fatalf("preferences changed after failed saves: %+v", p)
	}
	if !c.Range().Equal(calendar.MonthRange(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))) {
		t.Fatalf("range = %s", c.Range())
	}
}

func TestToggleOverlaysPersistsAndReloads(t *testing.T) {
	f := newFixture(t, monthPrefs(true))
	if f.client.count(calendar.KindOverlay) != 1 {
		t.Fatalf("expected the overlay stream on start")
	}

	if err := f.c.ToggleOverlays(); err != nil {
		t.Fatalf("ToggleOverlays: %v", err)
	}
	if f.store.Load().ShowOverlays {
		t.Fatalf("preference not persisted")
	}
	f.clock.Advance(300 * time.Millisecond)

	if got := f.client.count(calendar.KindOverlay); got != 1 {
		t.Fatalf("overlay stream requested after disabling: %d", got)
	}
	if got := f.client.count(calendar.KindEvent); got != 2 {
		t.Fatalf("expected a reload, got %d event calls", got)
	}
	for _, it := range f.c.Items() {
		if it.Kind == calendar.KindOverlay {
			t.Fatalf("overlay still listed")
		}
	}
}

func TestSearchDebounce(t *testing.T) {
	f := newFixture(t, monthPrefs(false))
	f.c.SetQuery("ac")
	f.clock.Advance(80 * time.Millisecond)
	f.c.SetQuery("acme")
	f.clock.Advance(300 * time.Millisecond)

	if got := f.client.count(calendar.KindEvent); got != 2 {
		t.Fatalf("expected one debounced load after start, got %d calls", got-1)
	}
	if q := f.client.lastList(calendar.KindEvent).Query; q != "acme" {
		t.Fatalf("query = %q", q)
	}
}

func TestNavigateDuringSearchDebounce(t *testing.T) {
	f := newFixture(t, monthPrefs(false))
	ctx := context.Background()

	f.c.SetQuery("acme")
	if err := f.c.Navigate(ctx, 1); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	f.clock.Advance(fetch.DefaultDebounce)

	visible := f.c.Range()
	snap := f.c.fetcher.Snapshot()
	if !snap.Request.Range.Equal(visible) {
		t.Fatalf("committed %s, visible %s", snap.Request.Range, visible)
	}
	if snap.Request.Query != "acme" {
		t.Fatalf("committed query = %q", snap.Request.Query)
	}
	if p := f.client.lastList(calendar.KindEvent); !p.Range.Equal(visible) || p.Query != "acme" {
		t.Fatalf("last list = %s %q", p.Range, p.Query)
	}
}

func TestSetViewAndNavigate(t *testing.T) {
	f := newFixture(t, monthPrefs(false))
	ctx := context.Background()

	if err := f.c.SetView(ctx, calendar.ViewWeek); err != nil {
		t.Fatalf("SetView: %v", err)
	}
	if f.store.Load().View != calendar.ViewWeek {
		t.Fatalf("view not persisted")
	}
	week := f.client.lastList(calendar.KindEvent).Range
	if !week.Start.Equal(time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("week range = %s", week)
	}

	if err := f.c.Navigate(ctx, 1); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if got := f.c.Range().Start; !got.Equal(time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("next week starts %s", got)
	}
	if err := f.c.Today(ctx); err != nil {
		t.Fatalf("Today: %v", err)
	}
	if got := f.c.Range().Start; !got.Equal(week.Start) {
		t.Fatalf("today = %s", got)
	}
	if err := f.c.SetView(ctx, "timeline"); err == nil {
		t.Fatalf("expected unknown view to fail")
	}
}

func TestPreviewImportanceToggle(t *testing.T) {
	f := newFixture(t, monthPrefs(false))
	ctx := context.Background()
	note, ok := f.c.Item("5")
	if !ok {
		t.Fatalf("note 5 not loaded")
	}

	h := f.c.Hover()
	h.EnterItem(ctx, note, hover.Point{X: 2, Y: 3})
	h.Wait()
	if got := h.State().Payload.ContactName; got != "ACME Corp" {
		t.Fatalf("contact = %q", got)
	}
	if err := h.ToggleImportant(ctx); err != nil {
		t.Fatalf("ToggleImportant: %v", err)
	}
	if !h.State().Payload.Item.Important() {
		t.Fatalf("preview does not show the new importance")
	}

	f.client.mu.Lock()
	defer f.client.mu.Unlock()
	if len(f.client.writes) != 1 {
		t.Fatalf("writes = %+v", f.client.writes)
	}
	w := f.client.writes[0]
	if w.method != "PATCH" || w.kind != calendar.KindNote || w.id != "5" || w.body["is_important"] != true || len(w.body) != 1 {
		t.Fatalf("write = %+v", w)
	}
}

func TestOpenCreateSeedsModal(t *testing.T) {
	f := newFixture(t, monthPrefs(false))
	day := time.Date(2025, 1, 22, 17, 30, 0, 0, time.UTC)

	if err := f.c.OpenCreate(calendar.KindEvent, day); err != nil {
		t.Fatalf("OpenCreate: %v", err)
	}
	if err := f.c.OpenCreate(calendar.KindNote, day); err != nil {
		t.Fatalf("OpenCreate: %v", err)
	}
	ev, note := f.modal[0], f.modal[1]
	if ev.Mode != ModeCreate || !ev.SeedStart.Equal(time.Date(2025, 1, 22, 9, 0, 0, 0, time.UTC)) ||
		ev.SeedEnd == nil || !ev.SeedEnd.Equal(time.Date(2025, 1, 22, 10, 0, 0, 0, time.UTC)) || ev.AllDay {
		t.Fatalf("event seed = %+v", ev)
	}
	if !note.AllDay || note.SeedEnd != nil || note.SeedStart.Hour() != 0 {
		t.Fatalf("note seed = %+v", note)
	}
}

func TestMenuActions(t *testing.T) {
	f := newFixture(t, monthPrefs(true))
	ctx := context.Background()
	ev, _ := f.c.Item("7")

	if err := f.c.Menu().Open(ev, hover.Point{}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := f.c.Menu().Dispatch(ctx, menu.ActionEdit); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(f.modal) != 1 || f.modal[0].Mode != ModeEdit || f.modal[0].Item.ID != "7" {
		t.Fatalf("modal = %+v", f.modal)
	}

	_ = f.c.Menu().Open(ev, hover.Point{})
	if err := f.c.Menu().Dispatch(ctx, menu.ActionDuplicate); err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	_ = f.c.Menu().Open(ev, hover.Point{})
	if err := f.c.Menu().Dispatch(ctx, menu.ActionDelete); err != nil {
		t.Fatalf("delete: %v", err)
	}

	f.client.mu.Lock()
	writes := append([]writeCall(nil), f.client.writes...)
	f.client.mu.Unlock()
	if len(writes) != 2 || writes[0].method != "POST" || writes[0].body["title"] != "Kickoff (copy)" || writes[1].method != "DELETE" {
		t.Fatalf("writes = %+v", writes)
	}

	ov, ok := f.c.Item("overlay-12")
	if !ok {
		t.Fatalf("overlay not loaded")
	}
	if err := f.c.Menu().Open(ov, hover.Point{}); !errors.Is(err, calendar.ErrReadOnly) {
		t.Fatalf("menu on overlay: %v", err)
	}
	if err := f.c.OpenEdit("overlay-12"); !errors.Is(err, calendar.ErrReadOnly) {
		t.Fatalf("edit overlay: %v", err)
	}
}

func TestSubscribeReceivesCommits(t *testing.T) {
	f := newFixture(t, monthPrefs(false))
	events := f.c.Subscribe()
	if err := f.c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	var committed bool
	for len(events) > 0 {
		ev := <-events
		if ev.Kind == EventFetch && ev.Fetch.Kind == fetch.ChangeCommitted {
			committed = true
		}
	}
	if !committed {
		t.Fatalf("no commit event delivered")
	}
}

func TestApplyPreferencesFromElsewhere(t *testing.T) {
	f := newFixture(t, monthPrefs(false))
	saves := f.store.Saves()

	if err := f.c.ApplyPreferences(context.Background(), monthPrefs(false)); err != nil {
		t.Fatalf("ApplyPreferences: %v", err)
	}
	if got := f.client.count(calendar.KindEvent); got != 1 {
		t.Fatalf("unchanged preferences reloaded: %d event calls", got)
	}

	week := prefs.Preferences{View: calendar.ViewWeek}
	if err := f.c.ApplyPreferences(context.Background(), week); err != nil {
		t.Fatalf("ApplyPreferences: %v", err)
	}
	if f.c.Preferences() != week {
		t.Fatalf("preferences = %+v", f.c.Preferences())
	}
	if r := f.c.Range(); !r.Start.Equal(time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("range = %s", r)
	}
	if got := f.client.count(calendar.KindEvent); got != 2 {
		t.Fatalf("expected a reload, got %d event calls", got)
	}
	if f.store.Saves() != saves {
		t.Fatalf("applied preferences were written back")
	}
}

func TestInitialQuery(t *testing.T) {
	client := newFakeClient()
	c, err := New(Options{Client: client, Query: " acme ", Clock: clock.Fake(time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC))})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if q := client.lastList(calendar.KindEvent).Query; q != "acme" {
		t.Fatalf("query = %q", q)
	}
}
