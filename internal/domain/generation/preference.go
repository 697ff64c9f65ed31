package generation

import (
	"time"

	"github.com/google/uuid"
)

type PreferenceCategory string

const (
	CategoryStyle PreferenceCategory = "style"
	CategoryTheme PreferenceCategory = "theme"
)

// Categories lists every category in a stable order.
var Categories = []PreferenceCategory{CategoryStyle, CategoryTheme}

// PreferenceEntry persists the outcome counters for one key. Rating is written
// alongside the counters for SQL ordering only; it is always recomputed from them.
type PreferenceEntry struct {
	ID           uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	Category     PreferenceCategory `gorm:"column:category;not null;index:idx_preference_key,unique,priority:1" json:"category"`
	Key          string             `gorm:"column:key;not null;index:idx_preference_key,unique,priority:2" json:"key"`
	Position     int                `gorm:"column:position;not null;default:0" json:"position"`
	UsedCount    int                `gorm:"column:used_count;not null;default:0" json:"usedCount"`
	SuccessCount int                `gorm:"column:success_count;not null;default:0" json:"successCount"`
	Rating       float64            `gorm:"column:rating;not null;default:0.5" json:"rating"`
	UpdatedAt    time.Time          `gorm:"not null" json:"updatedAt"`
}

func (PreferenceEntry) TableName() string { return "preference_entry" }
