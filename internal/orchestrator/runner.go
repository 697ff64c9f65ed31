package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/yungbote/artforge-backend/internal/catalog"
	types "github.com/yungbote/artforge-backend/internal/domain"
	"github.com/yungbote/artforge-backend/internal/gateway"
	"github.com/yungbote/artforge-backend/internal/history"
	"github.com/yungbote/artforge-backend/internal/observability"
	"github.com/yungbote/artforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
	"github.com/yungbote/artforge-backend/internal/platform/solana"
	"github.com/yungbote/artforge-backend/internal/preference"
	"github.com/yungbote/artforge-backend/internal/selector"
)

var (
	// ErrTaskInProgress rejects a start while another task is non-terminal.
	ErrTaskInProgress = errors.New("task in progress")
	// ErrTaskNotFound means the id does not name the active task.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskNotStoppable means the active task has already left the early stages.
	ErrTaskNotStoppable = errors.New("task can no longer be stopped")
)

const DefaultNameTemplate = "{{collection}} #{{seq}}: {{title}}"

type Config struct {
	CollectionName     string
	Symbol             string
	RoyaltyBasisPoints int
	ExternalURL        string
	// Name template with {{collection}}, {{seq}} and {{title}}.
	NameTemplate string
	Creators     []gateway.Creator
	// Zero disables the overall deadline.
	TaskTimeout time.Duration
	// Used to derive an explorer link when the minter returns none.
	Cluster string
}

// Deps are the collaborators of a Runner. All are required except Metrics.
type Deps struct {
	Preferences *preference.Model
	Selector    *selector.Selector
	Generator   gateway.ArtifactGenerator
	Storage     gateway.DurableStorage
	Minter      gateway.Minter
	History     *history.Store
	Metrics     *observability.Metrics
}

// Runner drives generation tasks end to end.
//
// Concurrency mode is single-flight: at most one task is non-terminal at a
// time and Start/RunOnce return ErrTaskInProgress while one is. The
// preference model is still safe for concurrent use, so several runners
// sharing it would not lose updates.
type Runner struct {
	log  *logger.Logger
	deps Deps
	cfg  Config

	mu     sync.Mutex
	active *run
	wg     sync.WaitGroup

	subs listeners
}

type run struct {
	task    *types.GenerationTask
	stop    atomic.Bool
	styleOK bool
	themeOK bool
	done    bool
}

// StatusView is the answer to "what is happening now".
type StatusView struct {
	Idle bool                  `json:"idle"`
	Task *types.GenerationTask `json:"task,omitempty"`
	Last *types.GenerationTask `json:"last,omitempty"`
}

func New(deps Deps, cfg Config, baseLog *logger.Logger) (*Runner, error) {
	switch {
	case deps.Preferences == nil:
		return nil, fmt.Errorf("orchestrator: preference model required")
	case deps.Selector == nil:
		return nil, fmt.Errorf("orchestrator: selector required")
	case deps.Generator == nil:
		return nil, fmt.Errorf("orchestrator: artifact generator required")
	case deps.Storage == nil:
		return nil, fmt.Errorf("orchestrator: storage required")
	case deps.Minter == nil:
		return nil, fmt.Errorf("orchestrator: minter required")
	case deps.History == nil:
		return nil, fmt.Errorf("orchestrator: history store required")
	}
	if strings.TrimSpace(cfg.NameTemplate) == "" {
		cfg.NameTemplate = DefaultNameTemplate
	}
	return &Runner{
		log:  baseLog.With("service", "Orchestrator"),
		deps: deps,
		cfg:  cfg,
	}, nil
}

// Subscribe registers fn for every transition event.
func (r *Runner) Subscribe(fn Listener) (unsubscribe func()) {
	return r.subs.add(fn)
}

// Start claims the single slot and runs the task in the background.
func (r *Runner) Start(ctx context.Context) (uuid.UUID, error) {
	rn, err := r.claim()
	if err != nil {
		return uuid.Nil, err
	}
	runCtx := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if _, err := r.execute(runCtx, rn); err != nil {
			r.log.Warn("Generation task failed", "task_id", rn.task.ID, "error", err)
		}
	}()
	return rn.task.ID, nil
}

// RunOnce runs a task to a terminal state on the calling goroutine. The
// returned error is the gateway error of a failed task.
func (r *Runner) RunOnce(ctx context.Context) (*types.GenerationTask, error) {
	rn, err := r.claim()
	if err != nil {
		return nil, err
	}
	return r.execute(ctx, rn)
}

// Wait blocks until background tasks started with Start have finished.
func (r *Runner) Wait() { r.wg.Wait() }

// Stop requests cooperative cancellation of the active task.
func (r *Runner) Stop(taskID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil || r.active.task.ID != taskID {
		return ErrTaskNotFound
	}
	switch r.active.task.Status {
	case types.TaskPending, types.TaskGeneratingArtifact:
		r.active.stop.Store(true)
		r.log.Info("Stop requested", "task_id", taskID, "stage", r.active.task.Status)
		return nil
	default:
		return ErrTaskNotStoppable
	}
}

func (r *Runner) Status() StatusView {
	r.mu.Lock()
	active := r.active
	var cur *types.GenerationTask
	if active != nil {
		cur = active.task.Clone()
	}
	r.mu.Unlock()
	if cur != nil {
		return StatusView{Task: cur}
	}
	return StatusView{Idle: true, Last: r.deps.History.Last()}
}

func (r *Runner) History(ctx context.Context) ([]*types.GenerationTask, error) {
	return r.deps.History.List(ctx)
}

// Task looks up a task by id, active or recorded.
func (r *Runner) Task(ctx context.Context, id uuid.UUID) (*types.GenerationTask, error) {
	r.mu.Lock()
	if r.active != nil && r.active.task.ID == id {
		cp := r.active.task.Clone()
		r.mu.Unlock()
		return cp, nil
	}
	r.mu.Unlock()
	return r.deps.History.Get(ctx, id)
}

// ClearHistory empties the log; learned preferences are kept.
func (r *Runner) ClearHistory(ctx context.Context) error {
	return r.deps.History.Clear(ctx)
}

func (r *Runner) Collection(ctx context.Context) (history.CollectionStatus, error) {
	return r.deps.History.Counts(ctx)
}

func (r *Runner) claim() (*run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return nil, ErrTaskInProgress
	}
	now := time.Now().UTC()
	rn := &run{task: &types.GenerationTask{
		ID:        uuid.New(),
		Seq:       r.deps.History.NextSeq(),
		Status:    types.TaskPending,
		StartedAt: now,
		CreatedAt: now,
	}}
	r.active = rn
	r.deps.Metrics.SetActiveTask(true)
	return rn, nil
}

func (r *Runner) release(rn *run) {
	r.mu.Lock()
	if r.active == rn {
		r.active = nil
	}
	r.mu.Unlock()
	r.deps.Metrics.SetActiveTask(false)
}

// set mutates the active task under the runner lock so Status never sees a torn write.
func (r *Runner) set(rn *run, fn func(t *types.GenerationTask)) *types.GenerationTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(rn.task)
	rn.task.UpdatedAt = time.Now().UTC()
	return rn.task.Clone()
}

func (r *Runner) execute(ctx context.Context, rn *run) (task *types.GenerationTask, err error) {
	log := r.log.With(append([]interface{}{"task_id", rn.task.ID}, ctxutil.LogFields(ctx)...)...)
	ctx, span := observability.StartSpan(ctx, "generation.run",
		attribute.String("task.id", rn.task.ID.String()),
		attribute.Int64("task.seq", rn.task.Seq),
	)
	defer span.End()
	defer r.release(rn)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Generation task panicked", "panic", rec, "stack", string(debug.Stack()))
			if rn.done {
				task, err = rn.task.Clone(), nil
				return
			}
			perr := fmt.Errorf("panic: %v", rec)
			task, err = r.fail(ctx, rn, string(rn.task.Status), perr), perr
		}
	}()

	if r.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.TaskTimeout)
		defer cancel()
	}

	snap := r.set(rn, func(*types.GenerationTask) {})
	r.deps.History.SetCurrent(snap)
	r.notify(snap, "Task created")
	if rn.stop.Load() {
		return r.stopped(ctx, rn), nil
	}

	style, err := r.deps.Selector.Pick(r.deps.Preferences, types.CategoryStyle)
	if err != nil {
		return r.fail(ctx, rn, string(types.TaskPending), err), err
	}
	theme, err := r.deps.Selector.Pick(r.deps.Preferences, types.CategoryTheme)
	if err != nil {
		return r.fail(ctx, rn, string(types.TaskPending), err), err
	}
	span.SetAttributes(attribute.String("task.style", style), attribute.String("task.theme", theme))

	snap = r.set(rn, func(t *types.GenerationTask) {
		t.SelectedStyle, t.SelectedTheme = style, theme
		t.Status = types.TaskGeneratingArtifact
	})
	rn.styleOK, rn.themeOK = true, true
	if err := r.deps.History.Begin(ctx, snap); err != nil {
		log.Warn("Failed to persist in-flight task", "error", err)
	}
	r.notify(snap, fmt.Sprintf("Generating %s / %s", style, theme))

	var art gateway.Artifact
	err = r.stage(ctx, types.TaskGeneratingArtifact, func(ctx context.Context) error {
		var gerr error
		art, gerr = r.deps.Generator.Generate(ctx, style, theme)
		if gerr != nil && !gateway.IsGenerationError(gerr) {
			gerr = gateway.NewGenerationError("", "artifact generation failed", gerr)
		}
		return gerr
	})
	if err != nil {
		return r.fail(ctx, rn, string(types.TaskGeneratingArtifact), err), err
	}
	// Stop is accepted until the task leaves generating_artifact, so the check
	// and the move to uploading happen under one lock.
	if !r.transition(ctx, rn, types.TaskUploading, "Uploading artifact", true, func(t *types.GenerationTask) {
		t.Prompt = art.Prompt
	}) {
		return r.stopped(ctx, rn), nil
	}

	var img, meta gateway.StoredObject
	var metadata gateway.Metadata
	err = r.stage(ctx, types.TaskUploading, func(ctx context.Context) error {
		var serr error
		img, serr = r.deps.Storage.StoreArtifact(ctx, art)
		if serr != nil {
			return asStorageError(serr, "artifact")
		}
		metadata = r.finalize(rn.task.Seq, art, img.URL)
		meta, serr = r.deps.Storage.StoreMetadata(ctx, metadata)
		if serr != nil {
			return asStorageError(serr, "metadata")
		}
		return nil
	})
	if err != nil {
		return r.fail(ctx, rn, string(types.TaskUploading), err), err
	}

	r.advance(ctx, rn, types.TaskMinting, "Minting", nil)

	var rec gateway.MintRecord
	err = r.stage(ctx, types.TaskMinting, func(ctx context.Context) error {
		var merr error
		rec, merr = r.deps.Minter.Mint(ctx, gateway.MintRequest{
			MetadataURL:        meta.URL,
			Name:               metadata.Name,
			Symbol:             metadata.Symbol,
			RoyaltyBasisPoints: r.cfg.RoyaltyBasisPoints,
		})
		if merr != nil && !gateway.IsMintError(merr) {
			merr = gateway.NewMintError("", "mint failed", merr)
		}
		return merr
	})
	if err != nil {
		return r.fail(ctx, rn, string(types.TaskMinting), err), err
	}

	explorer := rec.ExplorerURL
	if explorer == "" {
		explorer = solana.ExplorerURL(rec.RecordID, r.cfg.Cluster)
	}
	result := types.TaskResult{
		ArtifactURL: img.URL,
		MetadataURL: meta.URL,
		RecordID:    rec.RecordID,
		ExplorerURL: explorer,
	}
	return r.finish(ctx, rn, types.TaskCompleted, result, "Minted "+rec.RecordID), nil
}

func (r *Runner) advance(ctx context.Context, rn *run, status types.TaskStatus, msg string, fn func(t *types.GenerationTask)) {
	r.transition(ctx, rn, status, msg, false, fn)
}

// transition moves the task to status and reports whether it moved. With
// honorStop set, an accepted stop leaves the task where it was.
func (r *Runner) transition(ctx context.Context, rn *run, status types.TaskStatus, msg string, honorStop bool, fn func(t *types.GenerationTask)) bool {
	moved := true
	snap := r.set(rn, func(t *types.GenerationTask) {
		if honorStop && rn.stop.Load() {
			moved = false
			return
		}
		if fn != nil {
			fn(t)
		}
		t.Status = status
	})
	if !moved {
		return false
	}
	if err := r.deps.History.Advance(ctx, snap); err != nil {
		r.log.Warn("Failed to persist transition", "task_id", snap.ID, "status", status, "error", err)
	}
	r.notify(snap, msg)
	return true
}

// stage runs one gateway step inside its own span and records its duration.
func (r *Runner) stage(ctx context.Context, status types.TaskStatus, fn func(ctx context.Context) error) error {
	ctx, span := observability.StartSpan(ctx, "generation."+string(status))
	defer span.End()
	start := time.Now()
	err := fn(ctx)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if p := gateway.ProviderOf(err); p != "" {
			span.SetAttributes(attribute.String("gateway.provider", p))
		}
	}
	r.deps.Metrics.ObserveStage(string(status), outcome, time.Since(start))
	return err
}

// finalize turns the generator's draft into the document that gets minted.
// The edition is the task's seq, which clearing history never reuses.
func (r *Runner) finalize(seq int64, art gateway.Artifact, imageURL string) gateway.Metadata {
	md := art.DraftMetadata.WithImage(imageURL, art.MimeType)
	title := md.Name
	md.Name = strings.TrimSpace(catalog.Render(r.cfg.NameTemplate, map[string]string{
		"collection": r.cfg.CollectionName,
		"seq":        strconv.FormatInt(seq, 10),
		"title":      title,
	}))
	if md.Name == "" {
		md.Name = title
	}
	md.Symbol = r.cfg.Symbol
	md.SellerFeeBasisPoints = r.cfg.RoyaltyBasisPoints
	if r.cfg.ExternalURL != "" {
		md.ExternalURL = r.cfg.ExternalURL
	}
	if len(r.cfg.Creators) > 0 {
		md.Properties.Creators = append([]gateway.Creator(nil), r.cfg.Creators...)
	}
	return md
}

func (r *Runner) fail(ctx context.Context, rn *run, stage string, err error) *types.GenerationTask {
	res := types.TaskResult{
		Error:       err.Error(),
		FailedStage: stage,
		Provider:    gateway.ProviderOf(err),
	}
	trace.SpanFromContext(ctx).RecordError(err)
	trace.SpanFromContext(ctx).SetStatus(codes.Error, res.Error)
	return r.finish(ctx, rn, types.TaskFailed, res, res.Error)
}

func (r *Runner) stopped(ctx context.Context, rn *run) *types.GenerationTask {
	return r.finish(ctx, rn, types.TaskStopped, types.TaskResult{}, "Stopped")
}

// finish is the single exit of a task: feedback, then history, then the event.
func (r *Runner) finish(ctx context.Context, rn *run, status types.TaskStatus, res types.TaskResult, msg string) *types.GenerationTask {
	rn.done = true
	snap := r.set(rn, func(t *types.GenerationTask) {
		now := time.Now().UTC()
		t.Status = status
		t.Result = datatypes.NewJSONType(res)
		t.EndedAt = &now
	})

	// Background context so a cancelled caller cannot leave the stores half-updated.
	storeCtx := context.WithoutCancel(ctx)
	if status == types.TaskCompleted || status == types.TaskFailed {
		success := status == types.TaskCompleted
		if rn.styleOK {
			r.deps.Preferences.RecordOutcome(storeCtx, types.CategoryStyle, snap.SelectedStyle, success)
			r.deps.Metrics.IncPreferenceOutcome(string(types.CategoryStyle), snap.SelectedStyle, success)
		}
		if rn.themeOK {
			r.deps.Preferences.RecordOutcome(storeCtx, types.CategoryTheme, snap.SelectedTheme, success)
			r.deps.Metrics.IncPreferenceOutcome(string(types.CategoryTheme), snap.SelectedTheme, success)
		}
	}
	if err := r.deps.History.Append(storeCtx, snap); err != nil {
		r.log.Error("Failed to append history", "task_id", snap.ID, "error", err)
	}
	r.deps.Metrics.IncTask(string(status))
	if st, err := r.deps.History.Counts(storeCtx); err == nil {
		r.deps.Metrics.SetCollection(st.Target, st.Generated, st.Remaining)
	}

	r.log.Info("Generation task finished",
		"task_id", snap.ID,
		"status", status,
		"style", snap.SelectedStyle,
		"theme", snap.SelectedTheme,
		"record_id", res.RecordID,
		"error", res.Error,
	)
	r.notify(snap, msg)
	return snap
}

func (r *Runner) notify(task *types.GenerationTask, msg string) {
	r.subs.emit(Event{
		TaskID:   task.ID,
		Status:   task.Status,
		Stage:    string(task.Status),
		Progress: task.Status.Progress(),
		Message:  msg,
		Task:     task,
		At:       time.Now().UTC(),
	})
}

func asStorageError(err error, object string) error {
	if gateway.IsStorageError(err) {
		return err
	}
	return gateway.NewStorageError("", object, "upload failed", err)
}
