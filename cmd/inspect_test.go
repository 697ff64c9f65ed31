package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/yungbote/artforge-backend/internal/domain"
	"github.com/yungbote/artforge-backend/internal/preference"
)

func TestPrintHistoryShowsRecordOrError(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tasks := []*types.GenerationTask{
		{
			ID: uuid.New(), Seq: 1, Status: types.TaskCompleted,
			SelectedStyle: "cyberpunk", SelectedTheme: "ocean", StartedAt: start,
			Result: datatypes.NewJSONType(types.TaskResult{RecordID: "mint-123"}),
		},
		{
			ID: uuid.New(), Seq: 2, Status: types.TaskFailed,
			SelectedStyle: "vaporwave", SelectedTheme: "forest", StartedAt: start,
			Result: datatypes.NewJSONType(types.TaskResult{Error: "artifact too small"}),
		},
	}
	var buf bytes.Buffer
	if err := printHistory(&buf, tasks); err != nil {
		t.Fatalf("printHistory: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("want header + 2 rows, got %q", buf.String())
	}
	if !strings.Contains(lines[1], "mint-123") || !strings.Contains(lines[2], "artifact too small") {
		t.Fatalf("unexpected rows: %q", lines[1:])
	}
}

func TestPrintPreferencesNamesBest(t *testing.T) {
	snap := map[types.PreferenceCategory][]preference.Entry{
		types.CategoryStyle: {
			{Key: "cyberpunk", UsedCount: 2, SuccessCount: 1},
			{Key: "vaporwave", UsedCount: 2, SuccessCount: 2},
		},
		types.CategoryTheme: {{Key: "ocean"}},
	}
	var buf bytes.Buffer
	if err := printPreferences(&buf, snap); err != nil {
		t.Fatalf("printPreferences: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "style (best: vaporwave)") {
		t.Fatalf("missing style best: %q", out)
	}
	if !strings.Contains(out, "theme (best: ocean)") {
		t.Fatalf("missing theme best: %q", out)
	}
	if strings.LastIndex(out, "vaporwave") > strings.Index(out, "cyberpunk") {
		t.Fatalf("entries not sorted by rating: %q", out)
	}
}

func TestByRatingBreaksTiesByKey(t *testing.T) {
	got := byRating([]preference.Entry{
		{Key: "b", UsedCount: 1, SuccessCount: 1},
		{Key: "a", UsedCount: 1, SuccessCount: 1},
		{Key: "c", UsedCount: 4, SuccessCount: 1},
	})
	keys := []string{got[0].Key, got[1].Key, got[2].Key}
	if strings.Join(keys, ",") != "a,b,c" {
		t.Fatalf("order = %v", keys)
	}
}
