package domain

import "github.com/yungbote/artforge-backend/internal/domain/generation"

type (
	GenerationTask     = generation.GenerationTask
	TaskStatus         = generation.TaskStatus
	TaskResult         = generation.TaskResult
	PreferenceEntry    = generation.PreferenceEntry
	PreferenceCategory = generation.PreferenceCategory
	SequenceMark       = generation.SequenceMark
)

var Categories = generation.Categories

const (
	TaskPending            = generation.TaskPending
	TaskGeneratingArtifact = generation.TaskGeneratingArtifact
	TaskUploading          = generation.TaskUploading
	TaskMinting            = generation.TaskMinting
	TaskCompleted          = generation.TaskCompleted
	TaskFailed             = generation.TaskFailed
	TaskStopped            = generation.TaskStopped

	CategoryStyle = generation.CategoryStyle
	CategoryTheme = generation.CategoryTheme
)
