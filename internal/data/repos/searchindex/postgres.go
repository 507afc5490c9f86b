package searchindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/pkg/dbctx"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

const bulkDeleteChunk = 500

type PostgresConfig struct {
	Dimension int
	// IVFFlatProbes sets ivfflat.probes for each search transaction. 0 keeps the server default.
	IVFFlatProbes int
}

// PostgresStore keeps entries in search_index_entry with a pgvector column and
// answers nearest-neighbour queries with the cosine distance operator.
type PostgresStore struct {
	db  *gorm.DB
	log *logger.Logger
	cfg PostgresConfig
}

func NewPostgresStore(db *gorm.DB, baseLog *logger.Logger, cfg PostgresConfig) *PostgresStore {
	return &PostgresStore{db: db, log: baseLog.With("repo", "PostgresIndexStore"), cfg: cfg}
}

func (s *PostgresStore) tx(ctx context.Context) *gorm.DB {
	if dbc, ok := dbctx.From(ctx); ok && dbc.Tx != nil {
		return dbc.Tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

func (s *PostgresStore) Upsert(ctx context.Context, entry *search.IndexEntry) error {
	if entry == nil {
		return nil
	}
	if err := checkDim(s.cfg.Dimension, entry.Embedding.Slice()); err != nil {
		return err
	}
	return s.tx(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entity_type"}, {Name: "entity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"organization_id",
			"content_hash",
			"embedding",
			"searchable_text",
			"embedding_model",
			"updated_at",
		}),
	}).Create(entry).Error
}

func (s *PostgresStore) GetByKey(ctx context.Context, t search.EntityType, id uuid.UUID) (*search.IndexEntry, error) {
	var out search.IndexEntry
	err := s.tx(ctx).
		Where("entity_type = ? AND entity_id = ?", t, id).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, t search.EntityType, id uuid.UUID) error {
	return s.tx(ctx).
		Where("entity_type = ? AND entity_id = ?", t, id).
		Delete(&search.IndexEntry{}).Error
}

func (s *PostgresStore) BulkDelete(ctx context.Context, t search.EntityType, ids []uuid.UUID) (int64, error) {
	var total int64
	for start := 0; start < len(ids); start += bulkDeleteChunk {
		end := min(start+bulkDeleteChunk, len(ids))
		res := s.tx(ctx).
			Where("entity_type = ? AND entity_id IN ?", t, ids[start:end]).
			Delete(&search.IndexEntry{})
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}

func (s *PostgresStore) ListKeys(ctx context.Context, t search.EntityType) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.tx(ctx).
		Model(&search.IndexEntry{}).
		Where("entity_type = ?", t).
		Order("entity_id").
		Pluck("entity_id", &ids).Error
	return ids, err
}

func (s *PostgresStore) Count(ctx context.Context, q NearestQuery) (int64, error) {
	if q.empty() {
		return 0, nil
	}
	var n int64
	query := s.tx(ctx).Model(&search.IndexEntry{})
	if !q.AllOrganizations {
		query = query.Where("organization_id IN ?", q.OrganizationIDs)
	}
	err := query.Count(&n).Error
	return n, err
}

func (s *PostgresStore) ClearHashes(ctx context.Context, types []search.EntityType) (int64, error) {
	query := s.tx(ctx).Model(&search.IndexEntry{}).Where("1 = 1")
	if len(types) > 0 {
		query = query.Where("entity_type IN ?", types)
	}
	res := query.Update("content_hash", "")
	return res.RowsAffected, res.Error
}

type scoredRow struct {
	search.IndexEntry
	Distance float64 `gorm:"column:distance"`
}

func (s *PostgresStore) SearchNearest(ctx context.Context, query []float32, q NearestQuery) ([]search.Hit, error) {
	if err := checkDim(s.cfg.Dimension, query); err != nil {
		return nil, err
	}
	if q.Limit <= 0 || q.empty() {
		return []search.Hit{}, nil
	}
	vec := pgvector.NewVector(query)

	var rows []scoredRow
	err := s.tx(ctx).Transaction(func(tx *gorm.DB) error {
		if s.cfg.IVFFlatProbes > 0 {
			if err := tx.Exec(fmt.Sprintf("SET LOCAL ivfflat.probes = %d", s.cfg.IVFFlatProbes)).Error; err != nil {
				return err
			}
		}
		stmt := tx.Model(&search.IndexEntry{}).
			Select("search_index_entry.*, embedding <=> ? AS distance", vec)
		if !q.AllOrganizations {
			stmt = stmt.Where("organization_id IN ?", q.OrganizationIDs)
		}
		if q.ModelTag != "" {
			stmt = stmt.Where("embedding_model = ?", q.ModelTag)
		}
		return stmt.
			Clauses(clause.OrderBy{Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []interface{}{vec}}}).
			Limit(q.Limit).
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	hits := make([]search.Hit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, search.Hit{Entry: r.IndexEntry, Score: distanceToScore(r.Distance)})
	}
	return hits, nil
}

var _ IndexStore = (*PostgresStore)(nil)
