package search_index

import (
	jobrt "github.com/yungbote/itvault-backend/internal/jobs/runtime"
	"github.com/yungbote/itvault-backend/internal/modules/indexing"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil {
		return nil
	}
	if err := jc.Job.Validate(); err != nil {
		return indexing.Permanent(err)
	}
	out, err := p.ix.Index(jc.Ctx, jc.Job.EntityType, jc.Job.EntityID)
	if err != nil {
		return err
	}
	jc.SetOutcome(string(out))
	switch out {
	case indexing.OutcomeIndexed, indexing.OutcomeRemoved:
		jc.Log.Info("search index updated", "outcome", out)
	default:
		jc.Log.Debug("search index untouched", "outcome", out)
	}
	return nil
}
