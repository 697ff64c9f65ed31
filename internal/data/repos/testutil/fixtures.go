package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/artforge-backend/internal/domain"
)

// SeedTask inserts a task row directly, bypassing repo invariants.
func SeedTask(tb testing.TB, ctx context.Context, tx *gorm.DB, seq int64, status types.TaskStatus) *types.GenerationTask {
	tb.Helper()
	t := &types.GenerationTask{
		ID:            uuid.New(),
		Seq:           seq,
		Status:        status,
		SelectedStyle: "cyberpunk",
		SelectedTheme: "quantum realms",
		StartedAt:     time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed task: %v", err)
	}
	return t
}

func SeedPreference(tb testing.TB, ctx context.Context, tx *gorm.DB, cat types.PreferenceCategory, key string, used, success int) *types.PreferenceEntry {
	tb.Helper()
	rating := 0.5
	if used > 0 {
		rating = float64(success) / float64(used)
	}
	row := &types.PreferenceEntry{
		ID:           uuid.New(),
		Category:     cat,
		Key:          key,
		UsedCount:    used,
		SuccessCount: success,
		Rating:       rating,
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed preference: %v", err)
	}
	return row
}
