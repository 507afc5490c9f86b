package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/itvault-backend/internal/data/repos"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

type Repos struct {
	Entity        repos.EntityRepo
	SystemSetting repos.SystemSettingRepo
	IndexJobRun   repos.IndexJobRunRepo
	IndexStore    repos.IndexStore
}

func wireRepos(db *gorm.DB, log *logger.Logger, store repos.IndexStore) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Entity:        repos.NewEntityRepo(db, log),
		SystemSetting: repos.NewSystemSettingRepo(db, log),
		IndexJobRun:   repos.NewIndexJobRunRepo(db, log),
		IndexStore:    store,
	}
}
