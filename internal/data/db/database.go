package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/itvault-backend/internal/platform/envutil"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

type Config struct {
	// Driver is "postgres" (default) or "sqlite".
	Driver string
	// DSN overrides the POSTGRES_* parts when set. For sqlite it is the file path.
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	MaxConns int
}

func ConfigFromEnv() Config {
	return Config{
		Driver:   envutil.String("DB_DRIVER", "postgres"),
		DSN:      envutil.String("DATABASE_URL", ""),
		Host:     envutil.String("POSTGRES_HOST", "localhost"),
		Port:     envutil.String("POSTGRES_PORT", "5432"),
		User:     envutil.String("POSTGRES_USER", "postgres"),
		Password: envutil.String("POSTGRES_PASSWORD", ""),
		Name:     envutil.String("POSTGRES_NAME", "itvault"),
		MaxConns: envutil.Int("POSTGRES_MAX_CONNS", 20),
	}
}

func (c Config) postgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.User, c.Password, c.Host, c.Port, c.Name)
}

type Service struct {
	db     *gorm.DB
	log    *logger.Logger
	driver string
}

func NewService(logg *logger.Logger, cfg Config) (*Service, error) {
	serviceLog := logg.With("service", "DatabaseService")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	gcfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "sqlite":
		path := cfg.DSN
		if path == "" {
			path = "itvault.db"
		}
		db, err := OpenSQLite(path, gcfg)
		if err != nil {
			return nil, err
		}
		serviceLog.Warn("using sqlite; nearest-neighbour search runs on the in-memory store", "path", path)
		return &Service{db: db, log: serviceLog, driver: driver}, nil
	case "", "postgres":
		db, err := gorm.Open(postgres.Open(cfg.postgresDSN()), gcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil && cfg.MaxConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxConns)
			sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
		}
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector;`).Error; err != nil {
			return nil, fmt.Errorf("failed to enable pgvector extension: %w", err)
		}
		return &Service{db: db, log: serviceLog, driver: "postgres"}, nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.Driver)
	}
}

// OpenSQLite opens a single-connection sqlite database. ":memory:" is per-connection
// in sqlite, so the pool is pinned to one connection.
func OpenSQLite(path string, gcfg *gorm.Config) (*gorm.DB, error) {
	if gcfg == nil {
		gcfg = &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)}
	}
	db, err := gorm.Open(sqlite.Open(path), gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %q: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Driver() string { return s.driver }

func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
