package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/platform/ctxutil"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

/*
Context is the execution handle for one delivery of one job.
Pipelines read the job ids from it and report through the returned error;
the worker owns acknowledgement, redelivery and dead-lettering.
*/
type Context struct {
	Ctx     context.Context
	Job     search.IndexJob
	Attempt int
	Log     *logger.Logger
	Started time.Time
	// Outcome is set by the handler for logging and metrics.
	Outcome string
}

func NewContext(ctx context.Context, log *logger.Logger, job search.IndexJob, attempt int) *Context {
	td := ctxutil.GetTraceData(ctx)
	if td == nil {
		td = &ctxutil.TraceData{}
	}
	if td.RequestID == "" {
		td = &ctxutil.TraceData{TraceID: td.TraceID, RequestID: "job-" + uuid.NewString()}
	}
	ctx = ctxutil.WithTraceData(ctx, td)
	return &Context{
		Ctx:     ctx,
		Job:     job,
		Attempt: attempt,
		Log: log.WithContext(ctx).With(
			"job_kind", job.Kind,
			"entity_type", job.EntityType,
			"entity_id", job.EntityID,
			"attempt", attempt,
		),
		Started: time.Now(),
	}
}

func (c *Context) SetOutcome(outcome string) { c.Outcome = outcome }

func (c *Context) Elapsed() time.Duration { return time.Since(c.Started) }
