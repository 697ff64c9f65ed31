package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	repos "github.com/yungbote/artforge-backend/internal/data/repos/generation"
	types "github.com/yungbote/artforge-backend/internal/domain"
	"github.com/yungbote/artforge-backend/internal/platform/dbctx"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

var (
	ErrNotTerminal     = errors.New("task is not terminal")
	ErrAlreadyRecorded = errors.New("task already recorded")
)

const interruptedMsg = "interrupted by restart"

// CollectionStatus summarizes progress toward the collection target.
// Generated counts completed runs, i.e. minted artifacts.
type CollectionStatus struct {
	Target    int `json:"target"`
	Generated int `json:"generated"`
	Remaining int `json:"remaining"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Stopped   int `json:"stopped"`
	Total     int `json:"total"`
}

// Store is the append-only history of finished tasks plus the in-flight task.
//
// The in-flight task is persisted when work starts (Begin) so a crash leaves a
// row behind; Load marks such rows failed. Only terminal tasks are visible
// through List.
type Store struct {
	log    *logger.Logger
	repo   repos.TaskRepo
	target int

	mu      sync.RWMutex
	loaded  bool
	entries []*types.GenerationTask
	index   map[uuid.UUID]int
	current *types.GenerationTask
	begun   map[uuid.UUID]bool
	seq     int64
}

func NewStore(repo repos.TaskRepo, target int, baseLog *logger.Logger) *Store {
	if target < 0 {
		target = 0
	}
	return &Store{
		log:    baseLog.With("service", "HistoryStore"),
		repo:   repo,
		target: target,
		index:  map[uuid.UUID]int{},
		begun:  map[uuid.UUID]bool{},
	}
}

func (s *Store) Target() int { return s.target }

// Load fills the cache from the repository. Safe to call more than once.
func (s *Store) Load(ctx context.Context) error {
	dbc := dbctx.Of(ctx)
	rows, err := s.repo.List(dbc)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	maxSeq, err := s.repo.MaxSeq(dbc)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]*types.GenerationTask, 0, len(rows))
	index := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		if !row.Status.Terminal() {
			if s.begun[row.ID] {
				// still running in this process
				continue
			}
			if err := s.recoverLocked(dbc, row); err != nil {
				return err
			}
		}
		index[row.ID] = len(entries)
		entries = append(entries, row)
	}
	s.entries = entries
	s.index = index
	if maxSeq > s.seq {
		s.seq = maxSeq
	}
	s.loaded = true

	if counts, err := s.repo.CountByStatus(dbc); err == nil {
		s.log.Info("History loaded",
			"entries", len(entries),
			"completed", counts[types.TaskCompleted],
			"failed", counts[types.TaskFailed],
			"stopped", counts[types.TaskStopped],
		)
	}
	return nil
}

func (s *Store) recoverLocked(dbc dbctx.Context, row *types.GenerationTask) error {
	prev := row.Result.Data()
	res := types.TaskResult{Error: interruptedMsg, FailedStage: string(row.Status), Provider: prev.Provider}
	if err := s.repo.UpdateStatus(dbc, row.ID, types.TaskFailed, &res); err != nil {
		return fmt.Errorf("recover task %s: %w", row.ID, err)
	}
	now := time.Now().UTC()
	row.Status = types.TaskFailed
	row.Result = datatypes.NewJSONType(res)
	row.EndedAt = &now
	s.log.Warn("Recovered interrupted task", "task_id", row.ID, "stage", res.FailedStage)
	return nil
}

func (s *Store) ensureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.Load(ctx)
}

// NextSeq reserves the next position in the log.
func (s *Store) NextSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Begin persists a task that has started real work and makes it current.
func (s *Store) Begin(ctx context.Context, task *types.GenerationTask) error {
	if task == nil {
		return nil
	}
	cp := task.Clone()
	s.mu.Lock()
	s.current = cp
	s.mu.Unlock()

	if err := s.repo.Put(dbctx.Of(ctx), cp.Clone()); err != nil {
		return fmt.Errorf("begin task: %w", err)
	}
	s.mu.Lock()
	s.begun[cp.ID] = true
	s.mu.Unlock()
	return nil
}

// Advance records a non-terminal transition of the current task.
func (s *Store) Advance(ctx context.Context, task *types.GenerationTask) error {
	if task == nil {
		return nil
	}
	s.SetCurrent(task)
	s.mu.RLock()
	begun := s.begun[task.ID]
	s.mu.RUnlock()
	if !begun {
		return nil
	}
	if err := s.repo.UpdateStatus(dbctx.Of(ctx), task.ID, task.Status, nil); err != nil {
		return fmt.Errorf("advance task: %w", err)
	}
	return nil
}

// Append adds a terminal task to the log. The in-memory log is updated even
// when persistence fails so in-process readers never lose a run; the error is
// still returned.
func (s *Store) Append(ctx context.Context, task *types.GenerationTask) error {
	if task == nil {
		return nil
	}
	if !task.Status.Terminal() {
		return fmt.Errorf("append %s: %w", task.Status, ErrNotTerminal)
	}
	if err := s.ensureLoaded(ctx); err != nil {
		s.log.Warn("History not loaded before append", "error", err)
	}

	cp := task.Clone()
	s.mu.Lock()
	if _, dup := s.index[cp.ID]; dup {
		s.mu.Unlock()
		return fmt.Errorf("append %s: %w", cp.ID, ErrAlreadyRecorded)
	}
	s.index[cp.ID] = len(s.entries)
	s.entries = append(s.entries, cp)
	begun := s.begun[cp.ID]
	delete(s.begun, cp.ID)
	if s.current != nil && s.current.ID == cp.ID {
		s.current = cp.Clone()
	}
	s.mu.Unlock()

	dbc := dbctx.Of(ctx)
	var err error
	if begun {
		err = s.repo.Save(dbc, cp.Clone())
		if errors.Is(err, repos.ErrNotFound) {
			// history was cleared while the task ran
			err = s.repo.Put(dbc, cp.Clone())
		}
	} else {
		err = s.repo.Put(dbc, cp.Clone())
	}
	if err != nil {
		s.log.Error("Failed to persist history entry", "task_id", cp.ID, "error", err)
		return fmt.Errorf("append task: %w", err)
	}
	return nil
}

// List returns copies of every recorded task, oldest first.
func (s *Store) List(ctx context.Context) ([]*types.GenerationTask, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.GenerationTask, 0, len(s.entries))
	for _, t := range s.entries {
		out = append(out, t.Clone())
	}
	return out, nil
}

// Get finds a task in the log, the current task, or the repository.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*types.GenerationTask, error) {
	s.mu.RLock()
	if s.current != nil && s.current.ID == id {
		cp := s.current.Clone()
		s.mu.RUnlock()
		return cp, nil
	}
	if i, ok := s.index[id]; ok {
		cp := s.entries[i].Clone()
		s.mu.RUnlock()
		return cp, nil
	}
	s.mu.RUnlock()
	return s.repo.Get(dbctx.Of(ctx), id)
}

// Clear empties the log. Preferences are not touched. The in-flight task, if
// any, stays current.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.repo.DeleteAll(dbctx.Of(ctx)); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	s.mu.Lock()
	n := len(s.entries)
	s.entries = nil
	s.index = map[uuid.UUID]int{}
	s.loaded = true
	if s.current != nil && s.current.Status.Terminal() {
		s.current = nil
	}
	s.mu.Unlock()
	s.log.Info("History cleared", "removed", n)
	return nil
}

// CurrentStatus returns a copy of the in-flight task, or nil when idle.
func (s *Store) CurrentStatus() *types.GenerationTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.current.Status.Terminal() {
		return nil
	}
	return s.current.Clone()
}

// Last returns a copy of the most recent task handed to the store, running or
// terminal, or nil. Clear drops it once it is terminal.
func (s *Store) Last() *types.GenerationTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

func (s *Store) SetCurrent(task *types.GenerationTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = task.Clone()
}

func (s *Store) Counts(ctx context.Context) (CollectionStatus, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return CollectionStatus{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := CollectionStatus{Target: s.target, Total: len(s.entries)}
	for _, t := range s.entries {
		switch t.Status {
		case types.TaskCompleted:
			st.Completed++
		case types.TaskFailed:
			st.Failed++
		case types.TaskStopped:
			st.Stopped++
		}
	}
	st.Generated = st.Completed
	st.Remaining = s.target - st.Generated
	if st.Remaining < 0 {
		st.Remaining = 0
	}
	return st, nil
}
