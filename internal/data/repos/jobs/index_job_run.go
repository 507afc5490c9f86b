package jobs

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/itvault-backend/internal/domain/jobs"
	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/pkg/dbctx"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

type IndexJobRunRepo interface {
	Create(dbc dbctx.Context, jobs []*types.IndexJobRun) ([]*types.IndexJobRun, error)
	ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.IndexJobRun, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	Complete(dbc dbctx.Context, id uuid.UUID) error
	MarkFailed(dbc dbctx.Context, id uuid.UUID, msg string, permanent bool) error
	CountByStatus(dbc dbctx.Context) (map[string]int64, error)
	PurgePermanent(dbc dbctx.Context, olderThan time.Time) (int64, error)
}

type indexJobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIndexJobRunRepo(db *gorm.DB, baseLog *logger.Logger) IndexJobRunRepo {
	return &indexJobRunRepo{
		db:  db,
		log: baseLog.With("repo", "IndexJobRunRepo"),
	}
}

func (r *indexJobRunRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

func (r *indexJobRunRepo) Create(dbc dbctx.Context, jobs []*types.IndexJobRun) ([]*types.IndexJobRun, error) {
	if len(jobs) == 0 {
		return []*types.IndexJobRun{}, nil
	}
	if err := r.tx(dbc).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

const maxErrorBytes = 2000

// ClaimNextRunnable picks the oldest queued job, a failed job whose retry delay
// has elapsed, or a running job whose worker stopped heartbeating. Stale
// running jobs that already used maxAttempts are dead-lettered instead.
func (r *indexJobRunRepo) ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.IndexJobRun, error) {
	now := time.Now()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.IndexJobRun
	err := r.tx(dbc).Transaction(func(txx *gorm.DB) error {
		dead := txx.Model(&types.IndexJobRun{}).
			Where("status = ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ? AND attempts >= ?", search.JobStatusRunning, staleCutoff, maxAttempts).
			Updates(map[string]interface{}{
				"status":        search.JobStatusFailedPermanent,
				"error":         "worker stopped heartbeating on final attempt",
				"last_error_at": now,
				"heartbeat_at":  nil,
				"updated_at":    now,
			})
		if dead.Error != nil {
			return dead.Error
		}
		if dead.RowsAffected > 0 {
			r.log.Warn("dead-lettered abandoned index jobs", "count", dead.RowsAffected, "max_attempts", maxAttempts)
		}

		var job types.IndexJobRun
		q := txx
		if txx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		qErr := q.Where(`
        (
          status = ?
          OR (status = ? AND attempts < ? AND (last_error_at IS NULL OR last_error_at < ?))
          OR (status = ? AND attempts < ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?)
        )
      `, search.JobStatusQueued, search.JobStatusFailed, maxAttempts, retryCutoff, search.JobStatusRunning, maxAttempts, staleCutoff).
			Order("created_at ASC").
			First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.IndexJobRun{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":       search.JobStatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		job.Status = search.JobStatusRunning
		job.Attempts++
		job.LockedAt = &now
		job.HeartbeatAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *indexJobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return r.tx(dbc).
		Model(&types.IndexJobRun{}).
		Where("id = ? AND status = ?", id, search.JobStatusRunning).
		Updates(map[string]interface{}{"heartbeat_at": now, "updated_at": now}).Error
}

func (r *indexJobRunRepo) Complete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return r.tx(dbc).Where("id = ?", id).Delete(&types.IndexJobRun{}).Error
}

func (r *indexJobRunRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, msg string, permanent bool) error {
	if id == uuid.Nil {
		return nil
	}
	status := search.JobStatusFailed
	if permanent {
		status = search.JobStatusFailedPermanent
	}
	msg = truncateUTF8(msg, maxErrorBytes)
	now := time.Now()
	return r.tx(dbc).
		Model(&types.IndexJobRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"error":         msg,
			"last_error_at": now,
			"heartbeat_at":  nil,
			"updated_at":    now,
		}).Error
}

func (r *indexJobRunRepo) CountByStatus(dbc dbctx.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := r.tx(dbc).
		Model(&types.IndexJobRun{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := map[string]int64{}
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (r *indexJobRunRepo) PurgePermanent(dbc dbctx.Context, olderThan time.Time) (int64, error) {
	res := r.tx(dbc).
		Where("status = ? AND updated_at < ?", search.JobStatusFailedPermanent, olderThan).
		Delete(&types.IndexJobRun{})
	return res.RowsAffected, res.Error
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune. Invalid
// sequences are replaced so the text column accepts it.
func truncateUTF8(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
