package preference

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	repos "github.com/yungbote/artforge-backend/internal/data/repos/generation"
	"github.com/yungbote/artforge-backend/internal/data/repos/testutil"
	types "github.com/yungbote/artforge-backend/internal/domain"
	"github.com/yungbote/artforge-backend/internal/platform/dbctx"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

type memStore struct {
	mu      sync.Mutex
	rows    map[types.PreferenceCategory][]*types.PreferenceEntry
	saves   int
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{rows: map[types.PreferenceCategory][]*types.PreferenceEntry{}}
}

func (s *memStore) ListByCategory(_ dbctx.Context, cat types.PreferenceCategory) ([]*types.PreferenceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.PreferenceEntry, 0, len(s.rows[cat]))
	for _, r := range s.rows[cat] {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) SeedMissing(_ dbctx.Context, rows []*types.PreferenceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		if s.find(r.Category, r.Key) == nil {
			cp := *r
			s.rows[r.Category] = append(s.rows[r.Category], &cp)
		}
	}
	return nil
}

func (s *memStore) SaveCounters(_ dbctx.Context, row *types.PreferenceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	if existing := s.find(row.Category, row.Key); existing != nil {
		existing.UsedCount = row.UsedCount
		existing.SuccessCount = row.SuccessCount
		existing.Rating = row.Rating
		return nil
	}
	cp := *row
	s.rows[row.Category] = append(s.rows[row.Category], &cp)
	return nil
}

func (s *memStore) find(cat types.PreferenceCategory, key string) *types.PreferenceEntry {
	for _, r := range s.rows[cat] {
		if r.Key == key {
			return r
		}
	}
	return nil
}

var testDefaults = Defaults{
	types.CategoryStyle: {"cyberpunk", "vaporwave", "minimalist"},
	types.CategoryTheme: {"nature", "space"},
}

func TestInitializeSeedsPriorEntries(t *testing.T) {
	m := NewModel(nil, logger.Nop())
	require.NoError(t, m.Initialize(context.Background(), testDefaults))

	styles := m.Snapshot(types.CategoryStyle)
	require.Len(t, styles, 3)
	assert.Equal(t, []string{"cyberpunk", "vaporwave", "minimalist"}, keys(styles))
	for _, e := range styles {
		assert.Zero(t, e.UsedCount)
		assert.Equal(t, PriorRating, e.Rating())
	}
	assert.Len(t, m.Snapshot(types.CategoryTheme), 2)
}

func TestInitializeDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	m := NewModel(nil, logger.Nop())
	require.NoError(t, m.Initialize(ctx, testDefaults))

	m.RecordOutcome(ctx, types.CategoryStyle, "cyberpunk", true)
	m.RecordOutcome(ctx, types.CategoryStyle, "cyberpunk", false)
	require.NoError(t, m.Initialize(ctx, testDefaults))

	e, ok := m.Lookup(types.CategoryStyle, "cyberpunk")
	require.True(t, ok)
	assert.Equal(t, 2, e.UsedCount)
	assert.Equal(t, 1, e.SuccessCount)
	assert.Len(t, m.Snapshot(types.CategoryStyle), 3)
}

func TestRecordOutcomeUpdatesRating(t *testing.T) {
	ctx := context.Background()
	m := NewModel(nil, logger.Nop())
	require.NoError(t, m.Initialize(ctx, testDefaults))

	m.RecordOutcome(ctx, types.CategoryTheme, "space", true)
	e, _ := m.Lookup(types.CategoryTheme, "space")
	assert.Equal(t, 1.0, e.Rating())

	m.RecordOutcome(ctx, types.CategoryTheme, "space", false)
	e, _ = m.Lookup(types.CategoryTheme, "space")
	assert.Equal(t, 0.5, e.Rating())

	m.RecordOutcome(ctx, types.CategoryTheme, "space", false)
	m.RecordOutcome(ctx, types.CategoryTheme, "space", false)
	e, _ = m.Lookup(types.CategoryTheme, "space")
	assert.Equal(t, 0.25, e.Rating())
}

func TestRecordOutcomeUnknownKeyIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := NewModel(store, logger.Nop())
	require.NoError(t, m.Initialize(ctx, testDefaults))

	before := m.Snapshot(types.CategoryStyle)
	m.RecordOutcome(ctx, types.CategoryStyle, "baroque", true)
	m.RecordOutcome(ctx, types.PreferenceCategory("palette"), "red", true)

	assert.Equal(t, before, m.Snapshot(types.CategoryStyle))
	_, ok := m.Lookup(types.CategoryStyle, "baroque")
	assert.False(t, ok)
	assert.Zero(t, store.saves)
}

func TestRatingInvariantUnderConcurrentOutcomes(t *testing.T) {
	ctx := context.Background()
	m := NewModel(newMemStore(), logger.Nop())
	require.NoError(t, m.Initialize(ctx, testDefaults))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.RecordOutcome(ctx, types.CategoryStyle, "vaporwave", i%3 == 0)
		}(i)
	}
	wg.Wait()

	e, _ := m.Lookup(types.CategoryStyle, "vaporwave")
	assert.Equal(t, 50, e.UsedCount)
	assert.Equal(t, 17, e.SuccessCount)
	assert.LessOrEqual(t, e.SuccessCount, e.UsedCount)
	assert.InDelta(t, 17.0/50.0, e.Rating(), 1e-9)
	assert.GreaterOrEqual(t, e.Rating(), 0.0)
	assert.LessOrEqual(t, e.Rating(), 1.0)
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := NewModel(store, logger.Nop())
	require.NoError(t, m.Initialize(ctx, testDefaults))

	store.saveErr = errors.New("disk full")
	m.RecordOutcome(ctx, types.CategoryStyle, "minimalist", true)

	e, _ := m.Lookup(types.CategoryStyle, "minimalist")
	assert.Equal(t, 1, e.UsedCount)
	assert.Equal(t, 1, store.saves)
}

func TestInitializeRestoresPersistedCounters(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	first := NewModel(store, logger.Nop())
	require.NoError(t, first.Initialize(ctx, testDefaults))
	first.RecordOutcome(ctx, types.CategoryStyle, "vaporwave", true)
	first.RecordOutcome(ctx, types.CategoryStyle, "vaporwave", true)
	first.RecordOutcome(ctx, types.CategoryStyle, "vaporwave", false)

	second := NewModel(store, logger.Nop())
	require.NoError(t, second.Initialize(ctx, testDefaults))
	e, ok := second.Lookup(types.CategoryStyle, "vaporwave")
	require.True(t, ok)
	assert.Equal(t, 3, e.UsedCount)
	assert.Equal(t, 2, e.SuccessCount)
	assert.Equal(t, []string{"cyberpunk", "vaporwave", "minimalist"}, keys(second.Snapshot(types.CategoryStyle)))
}

func TestInitializeSkipsRetiredPersistedKeys(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.rows[types.CategoryStyle] = []*types.PreferenceEntry{
		{Category: types.CategoryStyle, Key: "retired", UsedCount: 5, SuccessCount: 5, Rating: 1},
	}

	m := NewModel(store, logger.Nop())
	require.NoError(t, m.Initialize(ctx, Defaults{types.CategoryStyle: {"cyberpunk"}}))
	assert.Equal(t, []string{"cyberpunk"}, m.Keys(types.CategoryStyle))
	_, ok := m.Lookup(types.CategoryStyle, "retired")
	assert.False(t, ok)

	m.RecordOutcome(ctx, types.CategoryStyle, "retired", true)
	require.NotNil(t, store.find(types.CategoryStyle, "retired"))
	assert.Equal(t, 5, store.find(types.CategoryStyle, "retired").UsedCount)

	back := NewModel(store, logger.Nop())
	require.NoError(t, back.Initialize(ctx, Defaults{types.CategoryStyle: {"cyberpunk", "retired"}}))
	e, ok := back.Lookup(types.CategoryStyle, "retired")
	require.True(t, ok)
	assert.Equal(t, 5, e.SuccessCount)
}

func TestModelWithGormRepo(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := repos.NewPreferenceRepo(db, testutil.Logger(t))

	m := NewModel(repo, testutil.Logger(t))
	require.NoError(t, m.Initialize(ctx, testDefaults))
	m.RecordOutcome(ctx, types.CategoryTheme, "nature", true)

	rows, err := repo.ListByCategory(dbctx.Of(ctx), types.CategoryTheme)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "nature", rows[0].Key)
	assert.Equal(t, 1, rows[0].UsedCount)
	assert.Equal(t, 1, rows[0].SuccessCount)
	assert.Equal(t, 1.0, rows[0].Rating)
}

func TestEntryJSONIncludesRating(t *testing.T) {
	b, err := json.Marshal(Entry{Key: "space", UsedCount: 4, SuccessCount: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"space","usedCount":4,"successCount":1,"rating":0.25}`, string(b))
}

func keys(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Key)
	}
	return out
}
