package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/itvault-backend/internal/data/repos/searchindex"
	"github.com/yungbote/itvault-backend/internal/observability"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

var (
	newPostgresIndexStore = func(db *gorm.DB, log *logger.Logger, cfg searchindex.PostgresConfig) searchindex.IndexStore {
		return searchindex.NewPostgresStore(db, log, cfg)
	}
	newMemoryIndexStore = func(log *logger.Logger, cfg searchindex.MemoryConfig) searchindex.IndexStore {
		return searchindex.NewMemoryStore(log, cfg)
	}
)

// buildIndexStore resolves the store kind and wraps it with metrics.
// The memory store starts empty; a reindex fills it.
func buildIndexStore(log *logger.Logger, db *gorm.DB, cfg Config) (searchindex.IndexStore, IndexStoreMode, error) {
	mode, err := resolveIndexStoreMode(cfg.VectorStore, cfg.DB.Driver, cfg.EmbeddingDimension)
	if err != nil {
		return nil, IndexStoreMode{}, err
	}
	var inner searchindex.IndexStore
	switch mode.Kind {
	case IndexStorePostgres:
		inner = newPostgresIndexStore(db, log, searchindex.PostgresConfig{
			Dimension:     cfg.EmbeddingDimension,
			IVFFlatProbes: cfg.IVFFlatProbes,
		})
	case IndexStoreMemory:
		mcfg := searchindex.DefaultMemoryConfig(cfg.EmbeddingDimension)
		if cfg.HNSWM > 0 {
			mcfg.M = cfg.HNSWM
		}
		if cfg.HNSWEfSearch > 0 {
			mcfg.EfSearch = cfg.HNSWEfSearch
		}
		inner = newMemoryIndexStore(log, mcfg)
		log.Warn("search index is in memory; run a reindex after every restart")
	default:
		return nil, mode, fmt.Errorf("unhandled index store kind %q", mode.Kind)
	}
	log.Info("index store selected", "store", mode.Kind, "mode_source", mode.ModeSource, "dimension", cfg.EmbeddingDimension)
	return instrumentIndexStore(string(mode.Kind), inner, observability.Current()), mode, nil
}
