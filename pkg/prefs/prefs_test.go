package prefs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tableflip.dev/agenda/pkg/calendar"
)

func TestDiskDefaults(t *testing.T) {
	s := Open(t.TempDir(), nil)
	if got := s.Load(); got != Defaults() {
		t.Fatalf("Load() = %+v, want defaults", got)
	}
	if d := Defaults(); d.View != calendar.ViewMonth || !d.ShowOverlays || d.OnlyImportant {
		t.Fatalf("unexpected defaults %+v", d)
	}
}

func TestDiskRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := Preferences{View: calendar.ViewWeek, ShowOverlays: false, OnlyImportant: true}
	if err := Open(dir, nil).Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	blob, err := os.ReadFile(filepath.Join(dir, Key))
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if got := string(blob); got != `{"view":"week","showOverlays":false,"onlyImportant":true}` {
		t.Fatalf("blob = %s", got)
	}

	if got := Open(dir, nil).Load(); got != want {
		t.Fatalf("Load() = %+v, want %+v", got, want)
	}
}

func TestDiskCorruptOrPartialBlob(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, Key), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := Open(dir, nil).Load(); got != Defaults() {
		t.Fatalf("corrupt blob: %+v", got)
	}

	dir = t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, Key), []byte(`{"view":"timeline","onlyImportant":true}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := Open(dir, nil).Load()
	if got.View != calendar.ViewMonth || !got.ShowOverlays || !got.OnlyImportant {
		t.Fatalf("partial blob: %+v", got)
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	if m.Load() != Defaults() {
		t.Fatalf("memory defaults")
	}
	p := Preferences{View: calendar.ViewDay}
	if err := m.Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if m.Load() != p || m.Saves() != 1 {
		t.Fatalf("memory round trip failed")
	}
}

func TestDiskWatchSeesOtherWriters(t *testing.T) {
	base := t.TempDir()
	watched := Open(base, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := watched.Watch(ctx)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	// Allow the watcher goroutine to subscribe before writing.
	time.Sleep(50 * time.Millisecond)

	other := Open(base, nil)
	want := Preferences{View: calendar.ViewDay, OnlyImportant: true}
	if err := other.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case got, ok := <-ch:
			if !ok {
				t.Fatal("watch channel closed")
			}
			if got == want {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for preferences change")
		}
	}
}
