package search

import (
	"fmt"

	"github.com/google/uuid"
)

type JobKind string

const (
	JobIndex  JobKind = "index"
	JobRemove JobKind = "remove"
)

// Job statuses as seen by the queue state machine.
const (
	JobStatusQueued          = "queued"
	JobStatusRunning         = "running"
	JobStatusSucceeded       = "succeeded"
	JobStatusFailed          = "failed"
	JobStatusFailedPermanent = "failed_permanent"
)

// IndexJob carries ids only. Workers always re-read live entity state.
type IndexJob struct {
	Kind           JobKind    `json:"kind"`
	EntityType     EntityType `json:"entityType"`
	EntityID       uuid.UUID  `json:"entityId"`
	OrganizationID uuid.UUID  `json:"organizationId,omitempty"`
}

func NewIndexJob(t EntityType, id, orgID uuid.UUID) IndexJob {
	return IndexJob{Kind: JobIndex, EntityType: t, EntityID: id, OrganizationID: orgID}
}

func NewRemoveJob(t EntityType, id uuid.UUID) IndexJob {
	return IndexJob{Kind: JobRemove, EntityType: t, EntityID: id}
}

func (j IndexJob) Validate() error {
	if j.Kind != JobIndex && j.Kind != JobRemove {
		return fmt.Errorf("invalid job kind %q", j.Kind)
	}
	if !j.EntityType.Valid() {
		return fmt.Errorf("invalid entity type %q", j.EntityType)
	}
	if j.EntityID == uuid.Nil {
		return fmt.Errorf("missing entity id")
	}
	return nil
}

func (j IndexJob) String() string {
	return fmt.Sprintf("%s:%s/%s", j.Kind, j.EntityType, j.EntityID)
}
