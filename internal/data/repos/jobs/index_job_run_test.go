package jobs

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/yungbote/itvault-backend/internal/data/repos/testutil"
	types "github.com/yungbote/itvault-backend/internal/domain/jobs"
	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/pkg/dbctx"
)

func TestIndexJobRunClaimLifecycle(t *testing.T) {
	db := testutil.SQLite(t)
	repo := NewIndexJobRunRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	first := types.FromIndexJob(search.NewIndexJob(search.EntityDocument, uuid.New(), uuid.New()))
	if _, err := repo.Create(dbc, []*types.IndexJobRun{first}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second := types.FromIndexJob(search.NewRemoveJob(search.EntityPassword, uuid.New()))
	if _, err := repo.Create(dbc, []*types.IndexJobRun{second}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected oldest job first, got %+v", claimed)
	}
	if claimed.Status != search.JobStatusRunning || claimed.Attempts != 1 {
		t.Fatalf("claim state: status=%s attempts=%d", claimed.Status, claimed.Attempts)
	}
	if got := claimed.IndexJob(); got.Kind != search.JobIndex || got.OrganizationID == uuid.Nil {
		t.Fatalf("IndexJob round trip: %+v", got)
	}

	// Failed with a long retry delay: not runnable yet.
	if err := repo.MarkFailed(dbc, claimed.ID, "boom", false); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	next, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("expected second job, got %+v", next)
	}
	if err := repo.Complete(dbc, next.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	// Zero retry delay makes the failed job runnable again.
	again, err := repo.ClaimNextRunnable(dbc, 3, 0, time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable: %v", err)
	}
	if again == nil || again.ID != first.ID || again.Attempts != 2 {
		t.Fatalf("expected retry of first job, got %+v", again)
	}
	if err := repo.MarkFailed(dbc, again.ID, "boom", true); err != nil {
		t.Fatalf("MarkFailed permanent: %v", err)
	}
	none, err := repo.ClaimNextRunnable(dbc, 3, 0, time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable: %v", err)
	}
	if none != nil {
		t.Fatalf("permanent failures must not be claimed, got %+v", none)
	}

	counts, err := repo.CountByStatus(dbc)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[search.JobStatusFailedPermanent] != 1 || len(counts) != 1 {
		t.Fatalf("counts: %v", counts)
	}
	purged, err := repo.PurgePermanent(dbc, time.Now().Add(time.Minute))
	if err != nil || purged != 1 {
		t.Fatalf("PurgePermanent: n=%d err=%v", purged, err)
	}
}

func TestIndexJobRunStaleRunningIsReclaimed(t *testing.T) {
	db := testutil.SQLite(t)
	repo := NewIndexJobRunRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	row := types.FromIndexJob(search.NewIndexJob(search.EntityLocation, uuid.New(), uuid.New()))
	if _, err := repo.Create(dbc, []*types.IndexJobRun{row}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	claimed, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %v", claimed, err)
	}
	// Worker died: with a tiny stale window the running job comes back.
	time.Sleep(5 * time.Millisecond)
	again, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Millisecond)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if again == nil || again.ID != row.ID {
		t.Fatalf("expected stale job reclaimed, got %+v", again)
	}
}

func TestIndexJobRunStaleRunningPastMaxAttemptsIsDeadLettered(t *testing.T) {
	db := testutil.SQLite(t)
	repo := NewIndexJobRunRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	row := types.FromIndexJob(search.NewIndexJob(search.EntityDocument, uuid.New(), uuid.New()))
	if _, err := repo.Create(dbc, []*types.IndexJobRun{row}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Two claims whose workers never come back.
	for i := 1; i <= 2; i++ {
		claimed, err := repo.ClaimNextRunnable(dbc, 2, time.Hour, time.Millisecond)
		if err != nil || claimed == nil || claimed.Attempts != i {
			t.Fatalf("claim %d: job=%+v err=%v", i, claimed, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	none, err := repo.ClaimNextRunnable(dbc, 2, time.Hour, time.Millisecond)
	if err != nil {
		t.Fatalf("ClaimNextRunnable: %v", err)
	}
	if none != nil {
		t.Fatalf("job past max attempts reclaimed: %+v", none)
	}
	var got types.IndexJobRun
	if err := db.First(&got, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Status != search.JobStatusFailedPermanent {
		t.Fatalf("status: want=%s got=%s", search.JobStatusFailedPermanent, got.Status)
	}
}

func TestIndexJobRunMarkFailedKeepsValidUTF8(t *testing.T) {
	db := testutil.SQLite(t)
	repo := NewIndexJobRunRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	row := types.FromIndexJob(search.NewRemoveJob(search.EntityPassword, uuid.New()))
	if _, err := repo.Create(dbc, []*types.IndexJobRun{row}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// 1999 ASCII bytes then a 3-byte rune straddling the limit.
	msg := strings.Repeat("x", maxErrorBytes-1) + "€ tail"
	if err := repo.MarkFailed(dbc, row.ID, msg, true); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	var got types.IndexJobRun
	if err := db.First(&got, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if !utf8.ValidString(got.Error) || len(got.Error) != maxErrorBytes-1 {
		t.Fatalf("error text: valid=%v len=%d", utf8.ValidString(got.Error), len(got.Error))
	}
	if s := truncateUTF8("ok\xff", 10); !utf8.ValidString(s) {
		t.Fatalf("truncateUTF8 kept invalid bytes: %q", s)
	}
}
