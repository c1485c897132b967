// Package prefs persists the agenda view preferences as a single JSON blob.
package prefs

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/peterbourgon/diskv/v3"

	"tableflip.dev/agenda/pkg/calendar"
)

// Key is the fixed storage key of the preference blob.
const Key = "agenda-preferences"

// Preferences are the user-selected view settings.
type Preferences struct {
	View          calendar.View `json:"view"`
	ShowOverlays  bool          `json:"showOverlays"`
	OnlyImportant bool          `json:"onlyImportant"`
}

// Defaults are used when nothing was persisted yet.
func Defaults() Preferences {
	return Preferences{View: calendar.ViewMonth, ShowOverlays: true}
}

// Store reads and writes Preferences.
type Store interface {
	Load() Preferences
	Save(p Preferences) error
}

// decode overlays blob on the defaults so missing fields keep their default.
func decode(blob []byte) (Preferences, error) {
	p := Defaults()
	if err := json.Unmarshal(blob, &p); err != nil {
		return Defaults(), err
	}
	if v, ok := calendar.ParseView(string(p.View)); ok {
		p.View = v
	} else {
		p.View = calendar.ViewMonth
	}
	return p, nil
}

// Disk is a diskv-backed Store.
type Disk struct {
	d        *diskv.Diskv
	basePath string
	logger   *slog.Logger
}

// Open returns a Disk store rooted at basePath.
func Open(basePath string, logger *slog.Logger) *Disk {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Disk{
		d: diskv.New(diskv.Options{
			BasePath:     basePath,
			CacheSizeMax: 1024 * 1024, // 1MB
		}),
		basePath: basePath,
		logger:   logger,
	}
}

// Load returns the persisted preferences, or the defaults when none are
// stored or the blob is corrupt.
func (s *Disk) Load() Preferences {
	if !s.d.Has(Key) {
		return Defaults()
	}
	blob, err := s.d.Read(Key)
	if err != nil {
		s.logger.Warn("prefs: read failed, using defaults", "err", err)
		return Defaults()
	}
	p, err := decode(blob)
	if err != nil {
		s.logger.Warn("prefs: corrupt preferences, using defaults", "err", err)
	}
	return p
}

// reload reads the blob from disk, bypassing the diskv cache.
func (s *Disk) reload() Preferences {
	if !s.d.Has(Key) {
		return Defaults()
	}
	rc, err := s.d.ReadStream(Key, true)
	if err != nil {
		s.logger.Warn("prefs: read failed, using defaults", "err", err)
		return Defaults()
	}
	defer rc.Close()
	blob, err := io.ReadAll(rc)
	if err != nil {
		s.logger.Warn("prefs: read failed, using defaults", "err", err)
		return Defaults()
	}
	p, err := decode(blob)
	if err != nil {
		s.logger.Warn("prefs: corrupt preferences, using defaults", "err", err)
	}
	return p
}

// Save writes p synchronously.
func (s *Disk) Save(p Preferences) error {
	blob, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("prefs: encode: %w", err)
	}
	if err := s.d.Write(Key, blob); err != nil {
		return fmt.Errorf("prefs: write: %w", err)
	}
	return nil
}

// Memory is an in-process Store.
type Memory struct {
	mu    sync.Mutex
	blob  []byte
	saves int
}

// NewMemory returns a Memory store, seeded with p when given.
func NewMemory(p ...Preferences) *Memory {
	m := &Memory{}
	if len(p) > 0 {
		m.blob, _ = json.Marshal(p[0])
	}
	return m
}

func (m *Memory) Load() Preferences {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blob == nil {
		return Defaults()
	}
	p, _ := decode(m.blob)
	return p
}

func (m *Memory) Save(p Preferences) error {
	blob, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("prefs: encode: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = blob
	m.saves++
	return nil
}

// Saves counts Save calls.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
