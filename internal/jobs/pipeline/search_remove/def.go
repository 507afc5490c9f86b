package search_remove

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/modules/indexing"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

type Remover interface {
	Remove(ctx context.Context, t search.EntityType, id uuid.UUID) (indexing.Outcome, error)
}

type Pipeline struct {
	log *logger.Logger
	rm  Remover
}

func New(baseLog *logger.Logger, rm Remover) *Pipeline {
	return &Pipeline{
		log: baseLog.With("job", "search_remove"),
		rm:  rm,
	}
}

func (p *Pipeline) Kind() search.JobKind { return search.JobRemove }
