package search_index

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/itvault-backend/internal/domain/search"
	jobrt "github.com/yungbote/itvault-backend/internal/jobs/runtime"
	"github.com/yungbote/itvault-backend/internal/modules/indexing"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

type stubIndexer struct {
	out   indexing.Outcome
	err   error
	calls int
}

func (s *stubIndexer) Index(ctx context.Context, t search.EntityType, id uuid.UUID) (indexing.Outcome, error) {
	s.calls++
	return s.out, s.err
}

func TestRunRecordsOutcome(t *testing.T) {
	ix := &stubIndexer{out: indexing.OutcomeIndexed}
	p := New(logger.Nop(), ix)
	jc := jobrt.NewContext(context.Background(), logger.Nop(), search.NewIndexJob(search.EntityDocument, uuid.New(), uuid.New()), 1)
	if err := p.Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if jc.Outcome != string(indexing.OutcomeIndexed) || ix.calls != 1 {
		t.Fatalf("outcome=%s calls=%d", jc.Outcome, ix.calls)
	}
}

func TestRunPropagatesErrors(t *testing.T) {
	boom := errors.New("store down")
	p := New(logger.Nop(), &stubIndexer{err: boom})
	jc := jobrt.NewContext(context.Background(), logger.Nop(), search.NewIndexJob(search.EntityDocument, uuid.New(), uuid.New()), 1)
	if err := p.Run(jc); !errors.Is(err, boom) {
		t.Fatalf("want store error, got %v", err)
	}
}

func TestRunRejectsInvalidJobPermanently(t *testing.T) {
	ix := &stubIndexer{}
	p := New(logger.Nop(), ix)
	jc := jobrt.NewContext(context.Background(), logger.Nop(), search.IndexJob{Kind: search.JobIndex, EntityType: search.EntityDocument}, 1)
	if err := p.Run(jc); !indexing.IsPermanent(err) {
		t.Fatalf("want permanent error, got %v", err)
	}
	if ix.calls != 0 {
		t.Fatalf("indexer called for invalid job")
	}
}
