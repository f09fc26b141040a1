package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hk_bids/cache"
	"hk_bids/models"
)

// Store persists session snapshots. storage.SQLiteStore satisfies it.
type Store interface {
	LoadSession(ctx context.Context, id string) (*models.SessionRecord, error)
	SaveSession(ctx context.Context, rec *models.SessionRecord) error
}

// MemoryStore keeps snapshots in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.SessionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]models.SessionRecord)}
}

func (m *MemoryStore) LoadSession(ctx context.Context, id string) (*models.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) SaveSession(ctx context.Context, rec *models.SessionRecord) error {
	m.mu.Lock()
	m.sessions[rec.ID] = *rec
	m.mu.Unlock()
	return nil
}

var errNoRecord = errors.New("no stored session")

// Manager hands out one live Session per id so concurrent requests on the
// same cookie share a lock. Live sessions are dropped after idle and
// reloaded from the store on next use.
type Manager struct {
	store Store
	opts  Options
	live  *cache.Memo[*Session]
}

func NewManager(store Store, opts Options, idle time.Duration) *Manager {
	if idle <= 0 {
		idle = time.Hour
	}
	return &Manager{store: store, opts: opts, live: cache.NewMemo[*Session](idle)}
}

// Get returns the session for id, restoring it from the store or starting a
// fresh one. A fresh session is not tracked until it is saved past
// AWAITING_ACCESS.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	s, err := m.live.Get(ctx, id, func(ctx context.Context) (*Session, error) {
		rec, err := m.store.LoadSession(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", id, err)
		}
		if rec == nil {
			return nil, errNoRecord
		}
		return FromRecord(rec, m.opts), nil
	})
	if errors.Is(err, errNoRecord) {
		return New(id, m.opts), nil
	}
	if err != nil {
		return nil, err
	}
	// refresh idle timer
	m.live.Set(id, s)
	return s, nil
}

// Save persists the session's current snapshot and starts tracking it.
// Sessions still awaiting access are neither stored nor tracked.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if s.State() == StateAwaitingAccess {
		return nil
	}
	if err := m.store.SaveSession(ctx, s.Snapshot()); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID(), err)
	}
	if _, ok := m.live.Lookup(s.ID(), time.Now()); !ok {
		m.live.Set(s.ID(), s)
	}
	return nil
}
