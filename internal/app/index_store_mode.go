package app

import (
	"fmt"
	"strings"
)

type IndexStoreKind string

const (
	IndexStorePostgres IndexStoreKind = "postgres"
	IndexStoreMemory   IndexStoreKind = "memory"
)

type IndexStoreConfigErrorCode string

const (
	IndexStoreConfigErrorUnknownKind      IndexStoreConfigErrorCode = "unknown_vector_store"
	IndexStoreConfigErrorNeedsPostgres    IndexStoreConfigErrorCode = "pgvector_requires_postgres"
	IndexStoreConfigErrorInvalidDimension IndexStoreConfigErrorCode = "invalid_embedding_dimension"
)

type IndexStoreConfigError struct {
	Code     IndexStoreConfigErrorCode
	Store    string
	DBDriver string
	Cause    error
}

func (e *IndexStoreConfigError) Error() string {
	if e == nil {
		return "invalid index store config"
	}
	return fmt.Sprintf("invalid index store config (code=%s store=%q db_driver=%q): %v", e.Code, e.Store, e.DBDriver, e.Cause)
}

func (e *IndexStoreConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IndexStoreMode is the resolved VECTOR_STORE choice and where it came from.
type IndexStoreMode struct {
	Kind       IndexStoreKind
	ModeSource string
}

// resolveIndexStoreMode maps VECTOR_STORE and DB_DRIVER onto a store kind.
// "auto" follows the driver: pgvector on postgres, the in-memory graph on sqlite.
func resolveIndexStoreMode(store, driver string, dim int) (IndexStoreMode, error) {
	store = strings.ToLower(strings.TrimSpace(store))
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = "postgres"
	}
	if dim <= 0 {
		return IndexStoreMode{}, &IndexStoreConfigError{
			Code: IndexStoreConfigErrorInvalidDimension, Store: store, DBDriver: driver,
			Cause: fmt.Errorf("dimension %d", dim),
		}
	}
	switch store {
	case "", "auto":
		if driver == "postgres" {
			return IndexStoreMode{Kind: IndexStorePostgres, ModeSource: "db_driver_default"}, nil
		}
		return IndexStoreMode{Kind: IndexStoreMemory, ModeSource: "db_driver_default"}, nil
	case string(IndexStorePostgres), "pgvector":
		if driver != "postgres" {
			return IndexStoreMode{}, &IndexStoreConfigError{
				Code: IndexStoreConfigErrorNeedsPostgres, Store: store, DBDriver: driver,
				Cause: fmt.Errorf("pgvector operators are unavailable on %s", driver),
			}
		}
		return IndexStoreMode{Kind: IndexStorePostgres, ModeSource: "explicit"}, nil
	case string(IndexStoreMemory), "hnsw":
		return IndexStoreMode{Kind: IndexStoreMemory, ModeSource: "explicit"}, nil
	default:
		return IndexStoreMode{}, &IndexStoreConfigError{
			Code: IndexStoreConfigErrorUnknownKind, Store: store, DBDriver: driver,
			Cause: fmt.Errorf("unsupported VECTOR_STORE %q", store),
		}
	}
}
