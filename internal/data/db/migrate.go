package db

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/itvault-backend/internal/domain/assets"
	"github.com/yungbote/itvault-backend/internal/domain/jobs"
	"github.com/yungbote/itvault-backend/internal/domain/settings"
)

var ErrIndexDimensionChanged = errors.New("search_index_entry embedding dimension differs from configuration; run a reset reindex")

type MigrateOptions struct {
	// Dimension of the embedding column. Required for postgres.
	Dimension int
	// IVFFlatLists for the ANN index. <= 0 derives max(1, rows/1000).
	IVFFlatLists int
}

func AutoMigrateAll(db *gorm.DB, opts MigrateOptions) error {
	models := append(assets.Models(), &settings.SystemSetting{}, &jobs.IndexJobRun{})
	if err := db.AutoMigrate(models...); err != nil {
		return err
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := EnsureSearchIndexTable(db, opts.Dimension); err != nil {
		return err
	}
	return EnsureIVFFlatIndex(db, opts.IVFFlatLists)
}

// EnsureSearchIndexTable creates search_index_entry with a vector(dim) column and
// refuses to continue if an existing table was built for a different dimension.
func EnsureSearchIndexTable(db *gorm.DB, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS search_index_entry (
  id uuid PRIMARY KEY,
  organization_id uuid NOT NULL,
  entity_type text NOT NULL,
  entity_id uuid NOT NULL,
  content_hash varchar(32) NOT NULL,
  embedding vector(%d) NOT NULL,
  searchable_text text NOT NULL,
  embedding_model text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT now(),
  updated_at timestamptz NOT NULL DEFAULT now()
)`, dim),
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_search_index_entry_key ON search_index_entry (entity_type, entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_search_index_entry_org ON search_index_entry (organization_id)`,
	}
	for i, s := range stmts {
		if err := db.Exec(s).Error; err != nil {
			if i == 0 && isExtensionError(err) {
				return fmt.Errorf("%w: %w", ErrVectorExtensionUnavailable, err)
			}
			return err
		}
	}

	var typmod int
	if err := db.Raw(`SELECT atttypmod FROM pg_attribute
WHERE attrelid = 'search_index_entry'::regclass AND attname = 'embedding'`).Scan(&typmod).Error; err != nil {
		return err
	}
	if typmod > 0 && typmod != dim {
		return fmt.Errorf("%w (table=%d configured=%d)", ErrIndexDimensionChanged, typmod, dim)
	}
	return nil
}

func EnsureIVFFlatIndex(db *gorm.DB, lists int) error {
	if lists <= 0 {
		var rows int64
		if err := db.Table("search_index_entry").Count(&rows).Error; err != nil {
			return err
		}
		lists = int(rows / 1000)
		if lists < 1 {
			lists = 1
		}
	}
	return db.Exec(fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_search_index_entry_embedding ON search_index_entry USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)`,
		lists,
	)).Error
}

// ResetSearchIndex drops and recreates the index table for a new dimension.
// Every entry is lost; a full reindex must follow.
func ResetSearchIndex(db *gorm.DB, opts MigrateOptions) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := db.Exec(`DROP TABLE IF EXISTS search_index_entry`).Error; err != nil {
		return err
	}
	if err := EnsureSearchIndexTable(db, opts.Dimension); err != nil {
		return err
	}
	return EnsureIVFFlatIndex(db, opts.IVFFlatLists)
}
