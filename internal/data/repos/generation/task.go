package generation

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/artforge-backend/internal/domain"
	"github.com/yungbote/artforge-backend/internal/platform/dbctx"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

// TaskRepo is the persistence boundary for generation tasks.
type TaskRepo interface {
	Get(dbc dbctx.Context, id uuid.UUID) (*types.GenerationTask, error)
	// Put inserts a new task. Existing ids are rejected with ErrConflict.
	Put(dbc dbctx.Context, task *types.GenerationTask) error
	// List returns every task in append order.
	List(dbc dbctx.Context) ([]*types.GenerationTask, error)
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, status types.TaskStatus, result *types.TaskResult) error
	// Save overwrites every mutable column of an existing task.
	Save(dbc dbctx.Context, task *types.GenerationTask) error
	CountByStatus(dbc dbctx.Context) (map[types.TaskStatus]int64, error)
	// MaxSeq is the highest seq ever stored, including tasks since deleted.
	MaxSeq(dbc dbctx.Context) (int64, error)
	// DeleteAll removes every task and keeps their highest seq as a mark.
	DeleteAll(dbc dbctx.Context) error
}

type taskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo {
	return &taskRepo{
		db:  db,
		log: baseLog.With("repo", "TaskRepo"),
	}
}

func (r *taskRepo) Get(dbc dbctx.Context, id uuid.UUID) (*types.GenerationTask, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var task types.GenerationTask
	err := dbc.DB(r.db).
		Where("id = ?", id).
		Limit(1).
		Find(&task).Error
	if err != nil {
		return nil, mapError("get task", err)
	}
	if task.ID == uuid.Nil {
		return nil, nil
	}
	return &task, nil
}

func (r *taskRepo) Put(dbc dbctx.Context, task *types.GenerationTask) error {
	if task == nil {
		return nil
	}
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	if err := dbc.DB(r.db).Create(task).Error; err != nil {
		return mapError("put task", err)
	}
	return nil
}

func (r *taskRepo) List(dbc dbctx.Context) ([]*types.GenerationTask, error) {
	var out []*types.GenerationTask
	if err := dbc.DB(r.db).
		Order("seq ASC").
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, mapError("list tasks", err)
	}
	return out, nil
}

func (r *taskRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, status types.TaskStatus, result *types.TaskResult) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	if result != nil {
		updates["result"] = datatypes.NewJSONType(*result)
	}
	if status.Terminal() {
		updates["ended_at"] = now
	}
	res := dbc.DB(r.db).
		Model(&types.GenerationTask{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return mapError("update task status", res.Error)
	}
	if res.RowsAffected == 0 {
		return mapError("update task status", gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *taskRepo) Save(dbc dbctx.Context, task *types.GenerationTask) error {
	if task == nil || task.ID == uuid.Nil {
		return nil
	}
	task.UpdatedAt = time.Now().UTC()
	res := dbc.DB(r.db).
		Model(&types.GenerationTask{}).
		Where("id = ?", task.ID).
		Updates(map[string]interface{}{
			"status":         task.Status,
			"selected_style": task.SelectedStyle,
			"selected_theme": task.SelectedTheme,
			"prompt":         task.Prompt,
			"result":         task.Result,
			"ended_at":       task.EndedAt,
			"updated_at":     task.UpdatedAt,
		})
	if res.Error != nil {
		return mapError("save task", res.Error)
	}
	if res.RowsAffected == 0 {
		return mapError("save task", gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *taskRepo) CountByStatus(dbc dbctx.Context) (map[types.TaskStatus]int64, error) {
	var rows []struct {
		Status types.TaskStatus
		N      int64
	}
	if err := dbc.DB(r.db).
		Model(&types.GenerationTask{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, mapError("count tasks", err)
	}
	out := make(map[types.TaskStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

const taskSeqMark = "generation_task"

func (r *taskRepo) MaxSeq(dbc dbctx.Context) (int64, error) {
	max, err := maxSeq(dbc.DB(r.db))
	if err != nil {
		return 0, mapError("max seq", err)
	}
	return max, nil
}

func (r *taskRepo) DeleteAll(dbc dbctx.Context) error {
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		max, err := maxSeq(tx)
		if err != nil {
			return err
		}
		if max > 0 {
			mark := types.SequenceMark{Name: taskSeqMark, Value: max, UpdatedAt: time.Now().UTC()}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&mark).Error; err != nil {
				return err
			}
		}
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&types.GenerationTask{}).Error
	})
	if err != nil {
		return mapError("delete tasks", err)
	}
	return nil
}

// maxSeq is the larger of the live tasks' seq and the mark left by DeleteAll.
func maxSeq(db *gorm.DB) (int64, error) {
	var live int64
	if err := db.Model(&types.GenerationTask{}).
		Select("COALESCE(MAX(seq), 0)").
		Row().Scan(&live); err != nil {
		return 0, err
	}
	var marks []types.SequenceMark
	if err := db.Where("name = ?", taskSeqMark).Limit(1).Find(&marks).Error; err != nil {
		return 0, err
	}
	if len(marks) > 0 && marks[0].Value > live {
		return marks[0].Value, nil
	}
	return live, nil
}
