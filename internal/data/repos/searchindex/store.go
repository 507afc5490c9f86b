package searchindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/itvault-backend/internal/domain/search"
)

var ErrDimensionMismatch = errors.New("search index: embedding dimension mismatch")

// NearestQuery scopes a nearest-neighbour lookup. With AllOrganizations unset,
// an empty OrganizationIDs list matches nothing. A non-empty ModelTag restricts
// matches to entries embedded in that space.
type NearestQuery struct {
	OrganizationIDs  []uuid.UUID
	AllOrganizations bool
	ModelTag         string
	Limit            int
}

// IndexStore persists one IndexEntry per (entity_type, entity_id).
type IndexStore interface {
	Upsert(ctx context.Context, entry *search.IndexEntry) error
	GetByKey(ctx context.Context, t search.EntityType, id uuid.UUID) (*search.IndexEntry, error)
	Delete(ctx context.Context, t search.EntityType, id uuid.UUID) error
	SearchNearest(ctx context.Context, query []float32, q NearestQuery) ([]search.Hit, error)
	BulkDelete(ctx context.Context, t search.EntityType, ids []uuid.UUID) (int64, error)
	ListKeys(ctx context.Context, t search.EntityType) ([]uuid.UUID, error)
	Count(ctx context.Context, q NearestQuery) (int64, error)
	// ClearHashes blanks content hashes so the next index pass re-embeds.
	ClearHashes(ctx context.Context, types []search.EntityType) (int64, error)
}

func checkDim(want int, vec []float32) error {
	if want > 0 && len(vec) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), want)
	}
	return nil
}

func distanceToScore(distance float64) float64 {
	s := 1 - distance
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func (q NearestQuery) visible(org uuid.UUID) bool {
	if q.AllOrganizations {
		return true
	}
	for _, id := range q.OrganizationIDs {
		if id == org {
			return true
		}
	}
	return false
}

func (q NearestQuery) admits(e *search.IndexEntry) bool {
	if q.ModelTag != "" && e.EmbeddingModel != q.ModelTag {
		return false
	}
	return q.visible(e.OrganizationID)
}

func (q NearestQuery) empty() bool {
	return !q.AllOrganizations && len(q.OrganizationIDs) == 0
}
