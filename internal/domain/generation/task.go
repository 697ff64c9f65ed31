package generation

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type TaskStatus string

const (
	TaskPending            TaskStatus = "pending"
	TaskGeneratingArtifact TaskStatus = "generating_artifact"
	TaskUploading          TaskStatus = "uploading"
	TaskMinting            TaskStatus = "minting"
	TaskCompleted          TaskStatus = "completed"
	TaskFailed             TaskStatus = "failed"
	TaskStopped            TaskStatus = "stopped"
)

// Terminal reports whether no further transition can happen from s.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskStopped:
		return true
	default:
		return false
	}
}

// Progress is the coarse percentage shown to clients for a status.
func (s TaskStatus) Progress() int {
	switch s {
	case TaskPending:
		return 0
	case TaskGeneratingArtifact:
		return 20
	case TaskUploading:
		return 60
	case TaskMinting:
		return 80
	default:
		return 100
	}
}

// TaskResult carries either the four success references or the failure description.
type TaskResult struct {
	ArtifactURL string `json:"artifactUrl,omitempty"`
	MetadataURL string `json:"metadataUrl,omitempty"`
	RecordID    string `json:"recordId,omitempty"`
	ExplorerURL string `json:"explorerUrl,omitempty"`

	Error       string `json:"error,omitempty"`
	FailedStage string `json:"failedStage,omitempty"`
	Provider    string `json:"provider,omitempty"`
}

// GenerationTask is one orchestration run. It is mutated in place while running
// and never touched again once Status is terminal.
type GenerationTask struct {
	ID            uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"taskId"`
	Seq           int64                          `gorm:"column:seq;not null;index" json:"seq"`
	Status        TaskStatus                     `gorm:"column:status;not null;index" json:"status"`
	SelectedStyle string                         `gorm:"column:selected_style;not null;index" json:"selectedStyle"`
	SelectedTheme string                         `gorm:"column:selected_theme;not null;index" json:"selectedTheme"`
	Prompt        string                         `gorm:"column:prompt;type:text" json:"prompt,omitempty"`
	Result        datatypes.JSONType[TaskResult] `gorm:"column:result" json:"result"`
	StartedAt     time.Time                      `gorm:"column:started_at;not null" json:"startedAt"`
	EndedAt       *time.Time                     `gorm:"column:ended_at;index" json:"endedAt,omitempty"`
	CreatedAt     time.Time                      `gorm:"not null;index" json:"createdAt"`
	UpdatedAt     time.Time                      `gorm:"not null" json:"updatedAt"`
}

func (GenerationTask) TableName() string { return "generation_task" }

// Clone returns a deep copy safe to hand to readers.
func (t *GenerationTask) Clone() *GenerationTask {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Result = datatypes.NewJSONType(t.Result.Data())
	if t.EndedAt != nil {
		end := *t.EndedAt
		cp.EndedAt = &end
	}
	return &cp
}
