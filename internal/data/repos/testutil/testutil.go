package testutil

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/itvault-backend/internal/data/db"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

var errMissingDSN = errors.New("missing TEST_POSTGRES_DSN")

// TestDimension is the vector width used by the Postgres integration schema.
const TestDimension = 64

var (
	dbOnce sync.Once
	pg     *gorm.DB
	dbErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	return logger.Nop()
}

// DB returns a migrated Postgres handle (pgvector required) or skips the test.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dbOnce.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			dbErr = errMissingDSN
			return
		}
		var err error
		pg, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		})
		if err != nil {
			dbErr = err
			return
		}
		if err := db.ResetSearchIndex(pg, db.MigrateOptions{Dimension: TestDimension, IVFFlatLists: 1}); err != nil {
			dbErr = err
			return
		}
		dbErr = db.AutoMigrateAll(pg, db.MigrateOptions{Dimension: TestDimension, IVFFlatLists: 1})
	})

	if errors.Is(dbErr, errMissingDSN) {
		tb.Skip("set TEST_POSTGRES_DSN to run repo integration tests")
	}
	if dbErr != nil {
		tb.Fatalf("failed to init test db: %v", dbErr)
	}
	return pg
}

var sqliteSeq struct {
	mu sync.Mutex
	n  int
}

// SQLite returns a fresh, migrated in-memory sqlite database private to the test.
func SQLite(tb testing.TB) *gorm.DB {
	tb.Helper()
	sqliteSeq.mu.Lock()
	sqliteSeq.n++
	name := "itv_" + strconv.Itoa(sqliteSeq.n) + "_" + uuid.NewString()[:8]
	sqliteSeq.mu.Unlock()

	gdb, err := db.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), nil)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrateAll(gdb, db.MigrateOptions{}); err != nil {
		tb.Fatalf("migrate sqlite: %v", err)
	}
	tb.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func Tx(tb testing.TB, gdb *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := gdb.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
