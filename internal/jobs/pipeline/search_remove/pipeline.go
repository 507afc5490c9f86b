package search_remove

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
	out, err := p.rm.Remove(jc.Ctx, jc.Job.EntityType, jc.Job.EntityID)
	if err != nil {
		return err
	}
	jc.SetOutcome(string(out))
	jc.Log.Debug("search entry removed")
	return nil
}
