package preference

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	types "github.com/yungbote/artforge-backend/internal/domain"
	"github.com/yungbote/artforge-backend/internal/platform/dbctx"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

// PriorRating is the rating of a key that has never been used.
const PriorRating = 0.5

type Category = types.PreferenceCategory

// Entry is the outcome counters for one key. The rating is derived, never stored.
type Entry struct {
	Key          string `json:"key"`
	UsedCount    int    `json:"usedCount"`
	SuccessCount int    `json:"successCount"`
}

func (e Entry) Rating() float64 {
	if e.UsedCount <= 0 {
		return PriorRating
	}
	return float64(e.SuccessCount) / float64(e.UsedCount)
}

func (e Entry) MarshalJSON() ([]byte, error) {
	type alias Entry
	return json.Marshal(struct {
		alias
		Rating float64 `json:"rating"`
	}{alias: alias(e), Rating: e.Rating()})
}

// Defaults is the seed key set per category, in presentation order.
type Defaults map[Category][]string

// Store persists counters. The gorm PreferenceRepo satisfies it.
type Store interface {
	ListByCategory(dbc dbctx.Context, category types.PreferenceCategory) ([]*types.PreferenceEntry, error)
	SeedMissing(dbc dbctx.Context, rows []*types.PreferenceEntry) error
	SaveCounters(dbc dbctx.Context, row *types.PreferenceEntry) error
}

type category struct {
	order   []string
	entries map[string]*Entry
}

// Model holds the learned ratings for every category. It is safe for concurrent use;
// RecordOutcome applies increment-then-persist atomically per call.
type Model struct {
	mu    sync.Mutex
	log   *logger.Logger
	store Store
	cats  map[Category]*category
}

// NewModel builds an empty model. store may be nil for a purely in-memory model.
func NewModel(store Store, baseLog *logger.Logger) *Model {
	return &Model{
		log:   baseLog.With("component", "PreferenceModel"),
		store: store,
		cats:  map[Category]*category{},
	}
}

// Initialize seeds every category in defaults with prior entries for keys that do not
// exist yet, first loading whatever the store already holds. Existing entries, in memory
// or persisted, are never overwritten, so calling it again is a no-op. Persisted keys
// missing from defaults stay in the store but are not loaded, so a retired key is never
// selected and keeps its counters if it returns.
func (m *Model) Initialize(ctx context.Context, defaults Defaults) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dbc := dbctx.Of(ctx)
	for _, cat := range types.Categories {
		keys, ok := defaults[cat]
		if !ok {
			continue
		}
		state := m.cats[cat]
		if state == nil {
			state = &category{entries: map[string]*Entry{}}
			m.cats[cat] = state
		}

		if m.store != nil {
			rows, err := m.store.ListByCategory(dbc, cat)
			if err != nil {
				return fmt.Errorf("load %s preferences: %w", cat, err)
			}
			active := make(map[string]bool, len(keys))
			for _, key := range keys {
				active[key] = true
			}
			retired := 0
			for _, row := range rows {
				if !active[row.Key] {
					retired++
					continue
				}
				if _, exists := state.entries[row.Key]; exists {
					continue
				}
				state.add(&Entry{Key: row.Key, UsedCount: row.UsedCount, SuccessCount: row.SuccessCount})
			}
			if retired > 0 {
				m.log.Info("Skipping persisted preferences outside the catalog", "category", cat, "count", retired)
			}
		}

		var seeded []*types.PreferenceEntry
		for _, key := range keys {
			if key == "" {
				continue
			}
			if _, exists := state.entries[key]; exists {
				continue
			}
			state.add(&Entry{Key: key})
			seeded = append(seeded, &types.PreferenceEntry{
				Category: cat,
				Key:      key,
				Position: len(state.order) - 1,
				Rating:   PriorRating,
			})
		}

		if m.store != nil && len(seeded) > 0 {
			if err := m.store.SeedMissing(dbc, seeded); err != nil {
				return fmt.Errorf("seed %s preferences: %w", cat, err)
			}
		}
		m.log.Debug("Preferences initialized", "category", cat, "entries", len(state.order), "seeded", len(seeded))
	}
	return nil
}

// RecordOutcome counts one use of key and, when success is set, one success. Unknown
// keys are ignored with a warning: only the selector may produce keys, so an unknown
// key is a coordination bug rather than a caller error.
func (m *Model) RecordOutcome(ctx context.Context, cat Category, key string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.cats[cat]
	if state == nil || state.entries[key] == nil {
		m.log.Warn("Ignoring outcome for unknown preference key", "category", cat, "key", key, "success", success)
		return
	}
	e := state.entries[key]
	e.UsedCount++
	if success {
		e.SuccessCount++
	}

	if m.store == nil {
		return
	}
	row := &types.PreferenceEntry{
		Category:     cat,
		Key:          key,
		Position:     state.position(key),
		UsedCount:    e.UsedCount,
		SuccessCount: e.SuccessCount,
		Rating:       e.Rating(),
	}
	if err := m.store.SaveCounters(dbctx.Of(ctx), row); err != nil {
		// In-memory counters stay authoritative for this process.
		m.log.Error("Failed to persist preference outcome", "category", cat, "key", key, "error", err)
	}
}

// Snapshot returns a copy of a category's entries in seed order.
func (m *Model) Snapshot(cat Category) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.cats[cat]
	if state == nil {
		return nil
	}
	out := make([]Entry, 0, len(state.order))
	for _, key := range state.order {
		out = append(out, *state.entries[key])
	}
	return out
}

// Lookup returns one entry.
func (m *Model) Lookup(cat Category, key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.cats[cat]
	if state == nil || state.entries[key] == nil {
		return Entry{}, false
	}
	return *state.entries[key], true
}

func (c *category) add(e *Entry) {
	c.entries[e.Key] = e
	c.order = append(c.order, e.Key)
}

func (c *category) position(key string) int {
	for i, k := range c.order {
		if k == key {
			return i
		}
	}
	return len(c.order)
}

// Keys returns a category's keys in seed order.
func (m *Model) Keys(cat Category) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.cats[cat]
	if state == nil {
		return nil
	}
	return append([]string(nil), state.order...)
}
