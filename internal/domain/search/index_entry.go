package search

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// IndexEntry is one row per searchable entity instance.
// (entity_type, entity_id) is unique; re-indexing updates in place.
type IndexEntry struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID       `gorm:"type:uuid;column:organization_id;not null;index" json:"organizationId"`
	EntityType     EntityType      `gorm:"column:entity_type;not null;uniqueIndex:idx_search_index_entry_key,priority:1" json:"entityType"`
	EntityID       uuid.UUID       `gorm:"type:uuid;column:entity_id;not null;uniqueIndex:idx_search_index_entry_key,priority:2" json:"entityId"`
	ContentHash    string          `gorm:"column:content_hash;size:32;not null" json:"contentHash"`
	Embedding      pgvector.Vector `gorm:"column:embedding;not null" json:"-"`
	SearchableText string          `gorm:"column:searchable_text;type:text;not null" json:"searchableText"`
	EmbeddingModel string          `gorm:"column:embedding_model;not null;default:''" json:"embeddingModel"`
	CreatedAt      time.Time       `gorm:"column:created_at;not null;autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;not null;autoUpdateTime" json:"updatedAt"`
}

func (IndexEntry) TableName() string { return "search_index_entry" }

func (e *IndexEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Key identifies an entry independent of its row id.
type Key struct {
	EntityType EntityType
	EntityID   uuid.UUID
}

func (e *IndexEntry) Key() Key {
	return Key{EntityType: e.EntityType, EntityID: e.EntityID}
}

// Hit is a nearest-neighbour match. Score is in [0,1], higher is closer.
type Hit struct {
	Entry IndexEntry
	Score float64
}
