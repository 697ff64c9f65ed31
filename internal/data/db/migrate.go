package db

import (
	"gorm.io/gorm"

	types "github.com/yungbote/artforge-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.GenerationTask{},
		&types.PreferenceEntry{},
		&types.SequenceMark{},
	)
}
