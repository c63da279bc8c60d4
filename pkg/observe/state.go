package observe

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/xfhg/intercept/pkg/config"
)

// Key identifies a tracked violation: the rule and the location it was
// observed at.
type Key struct {
	RuleID   int
	Location string
}

// String returns "<rule>|<location>".
func (k Key) String() string {
	return fmt.Sprintf("%d|%s", k.RuleID, k.Location)
}

// Entry is the tracked state of one key.
type Entry struct {
	// Fingerprint hashes the content observed at the key.
	Fingerprint string

	FirstSeen time.Time
	LastSeen  time.Time
}

// State persists tracked violations between ticks.
type State interface {
	// Load returns the state saved by the last Save, or an empty map.
	Load(ctx context.Context) (map[Key]Entry, error)

	// Save replaces the stored state.
	Save(ctx context.Context, entries map[Key]Entry) error

	Close() error
	Name() string
}

// OpenState returns the state backend selected by cfg.
func OpenState(cfg config.StateConfig, logger *slog.Logger) (State, error) {
	switch cfg.Driver {
	case "", config.StateMemory:
		return NewMemoryState(), nil
	case config.StateSQLite, config.StateSQLite3:
		return NewSQLiteState(SQLiteConfig{
			Driver:      cfg.Driver,
			Path:        cfg.Path,
			BusyTimeout: cfg.BusyTimeout,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// MemoryState keeps state in process memory. It is lost on restart.
type MemoryState struct {
	mu      sync.RWMutex
	entries map[Key]Entry
}

// NewMemoryState creates an empty in-memory state.
func NewMemoryState() *MemoryState {
	return &MemoryState{entries: make(map[Key]Entry)}
}

// Load implements State.
func (m *MemoryState) Load(ctx context.Context) (map[Key]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.entries), nil
}

// Save implements State.
func (m *MemoryState) Save(ctx context.Context, entries map[Key]Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = maps.Clone(entries)
	if m.entries == nil {
		m.entries = make(map[Key]Entry)
	}
	return nil
}

// Close implements State.
func (m *MemoryState) Close() error { return nil }

// Name implements State.
func (m *MemoryState) Name() string { return config.StateMemory }
