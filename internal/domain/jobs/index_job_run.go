package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/itvault-backend/internal/domain/search"
)

// IndexJobRun is a queue-resident index or removal job for the Postgres queue
// backend. Rows are deleted on success; failed_permanent rows are kept for inspection.
type IndexJobRun struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Kind           search.JobKind    `gorm:"column:kind;not null;index" json:"kind"`
	EntityType     search.EntityType `gorm:"column:entity_type;not null;index" json:"entity_type"`
	EntityID       uuid.UUID         `gorm:"type:uuid;column:entity_id;not null;index" json:"entity_id"`
	OrganizationID *uuid.UUID        `gorm:"type:uuid;column:organization_id" json:"organization_id,omitempty"`
	Status         string            `gorm:"column:status;not null;index" json:"status"`
	Attempts       int               `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error          string            `gorm:"column:error" json:"error,omitempty"`
	LockedAt       *time.Time        `gorm:"column:locked_at" json:"locked_at,omitempty"`
	HeartbeatAt    *time.Time        `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt    *time.Time        `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	CreatedAt      time.Time         `gorm:"column:created_at;not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;not null;autoUpdateTime" json:"updated_at"`
}

func (IndexJobRun) TableName() string { return "search_index_job" }

func (j *IndexJobRun) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

func FromIndexJob(job search.IndexJob) *IndexJobRun {
	row := &IndexJobRun{
		Kind:       job.Kind,
		EntityType: job.EntityType,
		EntityID:   job.EntityID,
		Status:     search.JobStatusQueued,
	}
	if job.OrganizationID != uuid.Nil {
		org := job.OrganizationID
		row.OrganizationID = &org
	}
	return row
}

func (j *IndexJobRun) IndexJob() search.IndexJob {
	out := search.IndexJob{Kind: j.Kind, EntityType: j.EntityType, EntityID: j.EntityID}
	if j.OrganizationID != nil {
		out.OrganizationID = *j.OrganizationID
	}
	return out
}
