package settings

import "time"

const (
	KeyIndexingEnabled  = "search.indexing_enabled"
	KeyEmbeddingsModel  = "embeddings.model"
	KeyEmbeddingsAPIKey = "embeddings.api_key"
)

// SystemSetting is a persisted key/value configuration row.
type SystemSetting struct {
	Key       string    `gorm:"column:setting_key;primaryKey;size:128" json:"key"`
	Value     string    `gorm:"column:value;type:text;not null" json:"value"`
	Sealed    bool      `gorm:"column:sealed;not null;default:false" json:"sealed"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime" json:"updatedAt"`
}

func (SystemSetting) TableName() string { return "system_setting" }
