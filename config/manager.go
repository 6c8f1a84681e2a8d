package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrNotFound is returned by a Store that has nothing persisted yet.
var ErrNotFound = errors.New("settings not found")

// Store persists Settings. Load decodes onto dst so that fields missing from
// the persisted document keep their current (default) values.
type Store interface {
	Load(ctx context.Context, dst *Settings) error
	Save(ctx context.Context, s Settings) error
}

// Watcher is implemented by stores that can report external modifications.
// The callback is invoked after each (debounced) change.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// Manager owns the live Settings. All reads go through Snapshot, all writes
// through Update, so handlers never observe a half-applied patch.
type Manager struct {
	mu       sync.RWMutex
	settings Settings
	defaults Settings
	store    Store
	log      *slog.Logger
}

// NewManager returns a manager seeded with defaults. store may be nil (in-memory only).
func NewManager(defaults Settings, store Store) *Manager {
	return &Manager{
		settings: defaults.Clone(),
		defaults: defaults.Clone(),
		store:    store,
		log:      slog.Default().With(slog.String("component", "settings")),
	}
}

// Snapshot returns a deep copy of the current settings.
func (m *Manager) Snapshot() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.Clone()
}

// Load merges persisted settings over the defaults. When nothing is persisted
// the defaults are written so the file exists for operators to edit.
func (m *Manager) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	m.mu.Lock()
	merged := m.defaults.Clone()
	err := m.store.Load(ctx, &merged)
	if err == nil {
		merged.LastUpdated = time.Now().UTC()
		m.settings = merged
	}
	m.mu.Unlock()

	switch {
	case err == nil:
		m.log.Info("configuration loaded from store")
		return nil
	case errors.Is(err, ErrNotFound):
		m.log.Info("no saved configuration found, using defaults")
		return m.Save(ctx)
	default:
		return fmt.Errorf("load settings: %w", err)
	}
}

// Save persists the current settings.
func (m *Manager) Save(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	snap := m.Snapshot()
	if err := m.store.Save(ctx, snap); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	m.log.Debug("configuration saved")
	return nil
}

// Update applies p, stamps LastUpdated and returns the resulting snapshot.
// Persisting is left to the caller so a failed save does not lose the in-memory change.
func (m *Manager) Update(p Patch) Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Apply(&m.settings) {
		m.settings.LastUpdated = time.Now().UTC()
	}
	return m.settings.Clone()
}

// Replace swaps in a complete settings value.
func (m *Manager) Replace(s Settings) {
	m.mu.Lock()
	m.settings = s.Clone()
	m.mu.Unlock()
}

// Watch reloads settings whenever the store reports an external change.
// Each reload starts from the defaults, so a key removed from the file reverts.
// It returns immediately (nil) when the store cannot watch.
func (m *Manager) Watch(ctx context.Context) error {
	w, ok := m.store.(Watcher)
	if !ok {
		return nil
	}
	return w.Watch(ctx, func() {
		if err := m.Reload(ctx); err != nil {
			m.log.Warn("settings reload failed", slog.Any("err", err))
			return
		}
		m.log.Info("configuration reloaded from store")
	})
}

// Reload replaces the live settings with the persisted document merged over
// the defaults. On error the current settings are kept.
func (m *Manager) Reload(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	next := m.defaults.Clone()
	if err := m.store.Load(ctx, &next); err != nil {
		return err
	}
	next.LastUpdated = time.Now().UTC()
	m.Replace(next)
	return nil
}
