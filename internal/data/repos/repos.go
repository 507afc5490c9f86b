package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/itvault-backend/internal/data/repos/assets"
	"github.com/yungbote/itvault-backend/internal/data/repos/jobs"
	"github.com/yungbote/itvault-backend/internal/data/repos/searchindex"
	"github.com/yungbote/itvault-backend/internal/data/repos/settings"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

type EntityRepo = assets.EntityRepo
type SystemSettingRepo = settings.SystemSettingRepo
type IndexJobRunRepo = jobs.IndexJobRunRepo
type IndexStore = searchindex.IndexStore

func NewEntityRepo(db *gorm.DB, baseLog *logger.Logger) EntityRepo {
	return assets.NewEntityRepo(db, baseLog)
}

func NewSystemSettingRepo(db *gorm.DB, baseLog *logger.Logger) SystemSettingRepo {
	return settings.NewSystemSettingRepo(db, baseLog)
}

func NewIndexJobRunRepo(db *gorm.DB, baseLog *logger.Logger) IndexJobRunRepo {
	return jobs.NewIndexJobRunRepo(db, baseLog)
}
