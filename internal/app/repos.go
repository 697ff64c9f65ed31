package app

import (
	"gorm.io/gorm"

	repos "github.com/yungbote/artforge-backend/internal/data/repos/generation"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

type Repos struct {
	Task       repos.TaskRepo
	Preference repos.PreferenceRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Task:       repos.NewTaskRepo(db, log),
		Preference: repos.NewPreferenceRepo(db, log),
	}
}
