package search_index

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/modules/indexing"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

type Indexer interface {
	Index(ctx context.Context, t search.EntityType, id uuid.UUID) (indexing.Outcome, error)
}

type Pipeline struct {
	log *logger.Logger
	ix  Indexer
}

func New(baseLog *logger.Logger, ix Indexer) *Pipeline {
	return &Pipeline{
		log: baseLog.With("job", "search_index"),
		ix:  ix,
	}
}

func (p *Pipeline) Kind() search.JobKind { return search.JobIndex }
