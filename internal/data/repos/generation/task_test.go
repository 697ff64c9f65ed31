package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/artforge-backend/internal/data/repos/testutil"
	types "github.com/yungbote/artforge-backend/internal/domain"
	"github.com/yungbote/artforge-backend/internal/platform/dbctx"
)

func newTask(seq int64, status types.TaskStatus) *types.GenerationTask {
	return &types.GenerationTask{
		ID:            uuid.New(),
		Seq:           seq,
		Status:        status,
		SelectedStyle: "cyberpunk",
		SelectedTheme: "quantum realms",
		StartedAt:     time.Now().UTC(),
	}
}

func TestTaskRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewTaskRepo(db, testutil.Logger(t))

	first := newTask(1, types.TaskCompleted)
	first.Result = datatypes.NewJSONType(types.TaskResult{ArtifactURL: "store://img1", RecordID: "mint-1"})
	second := newTask(2, types.TaskFailed)

	if err := repo.Put(dbc, second); err != nil {
		t.Fatalf("Put second: %v", err)
	}
	if err := repo.Put(dbc, first); err != nil {
		t.Fatalf("Put first: %v", err)
	}

	got, err := repo.Get(dbc, first.ID)
	if err != nil || got == nil {
		t.Fatalf("Get: got=%v err=%v", got, err)
	}
	if got.Result.Data().RecordID != "mint-1" {
		t.Fatalf("Get result: %+v", got.Result.Data())
	}
	if missing, err := repo.Get(dbc, uuid.New()); err != nil || missing != nil {
		t.Fatalf("Get missing: got=%v err=%v", missing, err)
	}

	list, err := repo.List(dbc)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != first.ID || list[1].ID != second.ID {
		t.Fatalf("List order: %+v", list)
	}

	if err := repo.Put(dbc, &types.GenerationTask{ID: first.ID, Seq: 3, Status: types.TaskCompleted, StartedAt: time.Now()}); !errors.Is(err, ErrConflict) {
		t.Fatalf("Put duplicate: want ErrConflict got=%v", err)
	}
}

func TestTaskRepoUpdateStatusAndCounts(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewTaskRepo(db, testutil.Logger(t))

	task := newTask(1, types.TaskPending)
	if err := repo.Put(dbc, task); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := repo.UpdateStatus(dbc, task.ID, types.TaskFailed, &types.TaskResult{Error: "artifact too small", FailedStage: "generating_artifact"}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, _ := repo.Get(dbc, task.ID)
	if got == nil || got.Status != types.TaskFailed || got.EndedAt == nil {
		t.Fatalf("UpdateStatus verify: %+v", got)
	}
	if got.Result.Data().FailedStage != "generating_artifact" {
		t.Fatalf("UpdateStatus result: %+v", got.Result.Data())
	}
	if err := repo.UpdateStatus(dbc, uuid.New(), types.TaskFailed, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateStatus missing: want ErrNotFound got=%v", err)
	}

	if err := repo.Put(dbc, newTask(2, types.TaskCompleted)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	counts, err := repo.CountByStatus(dbc)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[types.TaskFailed] != 1 || counts[types.TaskCompleted] != 1 {
		t.Fatalf("CountByStatus: %+v", counts)
	}

	max, err := repo.MaxSeq(dbc)
	if err != nil || max != 2 {
		t.Fatalf("MaxSeq: max=%d err=%v", max, err)
	}

	if err := repo.DeleteAll(dbc); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if list, err := repo.List(dbc); err != nil || len(list) != 0 {
		t.Fatalf("List after DeleteAll: len=%d err=%v", len(list), err)
	}
	if max, err := repo.MaxSeq(dbc); err != nil || max != 2 {
		t.Fatalf("MaxSeq after DeleteAll: max=%d err=%v, want 2", max, err)
	}
	if err := repo.DeleteAll(dbc); err != nil {
		t.Fatalf("DeleteAll empty: %v", err)
	}
	if max, err := repo.MaxSeq(dbc); err != nil || max != 2 {
		t.Fatalf("MaxSeq after second DeleteAll: max=%d err=%v, want 2", max, err)
	}
}

func TestTaskRepoSave(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewTaskRepo(db, testutil.Logger(t))

	task := newTask(1, types.TaskGeneratingArtifact)
	if err := repo.Put(dbc, task); err != nil {
		t.Fatalf("Put: %v", err)
	}
	end := time.Now().UTC()
	task.Status = types.TaskCompleted
	task.Prompt = "neon skyline"
	task.EndedAt = &end
	task.Result = datatypes.NewJSONType(types.TaskResult{RecordID: "mint-123"})
	if err := repo.Save(dbc, task); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ := repo.Get(dbc, task.ID)
	if got == nil || got.Status != types.TaskCompleted || got.Prompt != "neon skyline" || got.EndedAt == nil {
		t.Fatalf("Save verify: %+v", got)
	}
	if got.Result.Data().RecordID != "mint-123" {
		t.Fatalf("Save result: %+v", got.Result.Data())
	}
	if err := repo.Save(dbc, newTask(9, types.TaskFailed)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Save missing: want ErrNotFound got=%v", err)
	}
}
