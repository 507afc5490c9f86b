package settings

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/itvault-backend/internal/domain/settings"
	"github.com/yungbote/itvault-backend/internal/pkg/dbctx"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

type SystemSettingRepo interface {
	// Get returns (nil, nil) for a missing key.
	Get(dbc dbctx.Context, key string) (*types.SystemSetting, error)
	Put(dbc dbctx.Context, setting *types.SystemSetting) error
	Delete(dbc dbctx.Context, key string) error
}

type systemSettingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSystemSettingRepo(db *gorm.DB, baseLog *logger.Logger) SystemSettingRepo {
	return &systemSettingRepo{db: db, log: baseLog.With("repo", "SystemSettingRepo")}
}

func (r *systemSettingRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

func (r *systemSettingRepo) Get(dbc dbctx.Context, key string) (*types.SystemSetting, error) {
	var s types.SystemSetting
	err := r.tx(dbc).Where("setting_key = ?", key).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *systemSettingRepo) Put(dbc dbctx.Context, setting *types.SystemSetting) error {
	if setting == nil {
		return nil
	}
	setting.UpdatedAt = time.Now()
	return r.tx(dbc).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "sealed", "updated_at"}),
	}).Create(setting).Error
}

func (r *systemSettingRepo) Delete(dbc dbctx.Context, key string) error {
	return r.tx(dbc).Where("setting_key = ?", key).Delete(&types.SystemSetting{}).Error
}
