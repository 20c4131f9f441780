package history

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/promptshot/pkg/interfaces"
	"github.com/m-mizutani/promptshot/pkg/model"
	"github.com/m-mizutani/promptshot/pkg/utils/logging"
)

// Store owns the bounded, newest-first list of past generations and keeps it
// in sync with a KVS. The in-memory list is the source of truth for the
// running process; persistence failures are logged and never returned.
type Store struct {
	kvs   interfaces.KVS
	key   string
	limit int
	now   func() time.Time

	mu      sync.Mutex
	entries []model.HistoryEntry
	loaded  bool
}

// Option is a functional option for Store
type Option func(*Store)

// WithKey overrides the persistence key
func WithKey(key string) Option {
	return func(s *Store) {
		s.key = key
	}
}

// WithLimit overrides the maximum number of entries
func WithLimit(limit int) Option {
	return func(s *Store) {
		s.limit = limit
	}
}

// WithClock sets the clock used to fill missing timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a new history Store. Nothing is read until the first access.
func New(kvs interfaces.KVS, opts ...Option) *Store {
	s := &Store{
		kvs:   kvs,
		key:   model.HistoryKey,
		limit: model.MaxHistoryEntries,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.limit <= 0 {
		s.limit = model.MaxHistoryEntries
	}

	return s
}

// Load reads the persisted snapshot and replaces the in-memory list with it.
// A missing, unreadable or corrupt snapshot results in an empty list.
func (s *Store) Load(ctx context.Context) []model.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = s.read(ctx)
	s.loaded = true
	return s.snapshot()
}

// Entries returns a copy of the current list, loading it on first access
func (s *Store) Entries(ctx context.Context) []model.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureLoaded(ctx)
	return s.snapshot()
}

// Append puts entry at the head of the list, drops entries beyond the limit
// and persists the result. ID and Timestamp are assigned when empty.
func (s *Store) Append(ctx context.Context, entry model.HistoryEntry) []model.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureLoaded(ctx)

	if entry.ID == "" {
		entry.ID = model.NewHistoryEntryID()
	}
	if entry.Timestamp == "" {
		entry.Timestamp = model.NewTimestamp(s.now())
	}

	size := min(len(s.entries)+1, s.limit)
	updated := make([]model.HistoryEntry, 0, size)
	updated = append(updated, entry)
	updated = append(updated, s.entries[:size-1]...)
	s.entries = updated

	s.write(ctx)
	return s.snapshot()
}

// Clear empties the list and persists the empty list
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = []model.HistoryEntry{}
	s.loaded = true
	s.write(ctx)
}

func (s *Store) ensureLoaded(ctx context.Context) {
	if !s.loaded {
		s.entries = s.read(ctx)
		s.loaded = true
	}
}

func (s *Store) snapshot() []model.HistoryEntry {
	out := make([]model.HistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Store) read(ctx context.Context) []model.HistoryEntry {
	logger := logging.Component(ctx, "history")

	raw, found, err := s.kvs.Get(ctx, s.key)
	if err != nil {
		logger.Warn("failed to load history, starting with empty history",
			"error", goerr.Wrap(err, "failed to read history", goerr.V("key", s.key)))
		return []model.HistoryEntry{}
	}
	if !found || raw == "" {
		return []model.HistoryEntry{}
	}

	var entries []model.HistoryEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		logger.Warn("persisted history is corrupt, starting with empty history",
			"error", goerr.Wrap(err, "failed to parse history", goerr.V("key", s.key)))
		return []model.HistoryEntry{}
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}

	return entries
}

func (s *Store) write(ctx context.Context) {
	data, err := json.Marshal(s.entries)
	if err != nil {
		logging.Component(ctx, "history").Error("failed to encode history",
			"error", goerr.Wrap(err, "failed to marshal history"))
		return
	}

	if err := s.kvs.Set(ctx, s.key, string(data)); err != nil {
		logging.Component(ctx, "history").Error("failed to save history, kept in memory only",
			"error", goerr.Wrap(err, "failed to write history", goerr.V("key", s.key)),
			"entries", len(s.entries))
	}
}
