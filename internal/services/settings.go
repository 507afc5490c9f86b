package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/yungbote/itvault-backend/internal/data/repos/settings"
	types "github.com/yungbote/itvault-backend/internal/domain/settings"
	"github.com/yungbote/itvault-backend/internal/pkg/dbctx"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

// EmbeddingsConfig is the effective provider configuration at one point in time.
type EmbeddingsConfig struct {
	APIKey        string
	Model         string
	BaseURL       string
	Dimension     int
	MaxInputChars int
	// Source is "settings" when any value came from the database, else "env".
	Source string
}

func (c EmbeddingsConfig) Configured() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.Model) != "" && c.Dimension > 0
}

// Fingerprint changes whenever any field that affects the provider changes.
func (c EmbeddingsConfig) Fingerprint() string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		c.APIKey, c.Model, c.BaseURL, strconv.Itoa(c.Dimension), strconv.Itoa(c.MaxInputChars),
	}, "\x00")))
	return hex.EncodeToString(sum[:8])
}

// EmbeddingsDefaults come from the environment and back any unset setting.
type EmbeddingsDefaults struct {
	APIKey        string
	Model         string
	BaseURL       string
	Dimension     int
	MaxInputChars int
}

type SettingsService interface {
	// IsIndexingEnabled reads through on every call. A missing row means enabled.
	IsIndexingEnabled(ctx context.Context) bool
	SetIndexingEnabled(ctx context.Context, enabled bool) error
	GetEmbeddingsConfig(ctx context.Context) (EmbeddingsConfig, error)
	SetEmbeddingsModel(ctx context.Context, model string) error
	// SetEmbeddingsAPIKey stores key sealed; an empty key removes the override.
	SetEmbeddingsAPIKey(ctx context.Context, key string) error
}

type settingsService struct {
	log      *logger.Logger
	repo     settings.SystemSettingRepo
	sealer   *Sealer
	defaults EmbeddingsDefaults
}

func NewSettingsService(log *logger.Logger, repo settings.SystemSettingRepo, sealer *Sealer, defaults EmbeddingsDefaults) SettingsService {
	return &settingsService{
		log:      log.With("service", "SettingsService"),
		repo:     repo,
		sealer:   sealer,
		defaults: defaults,
	}
}

func (s *settingsService) IsIndexingEnabled(ctx context.Context) bool {
	row, err := s.repo.Get(dbctx.Context{Ctx: ctx}, types.KeyIndexingEnabled)
	if err != nil {
		s.log.Warn("read indexing flag failed; assuming enabled", "error", err)
		return true
	}
	if row == nil {
		return true
	}
	enabled, err := strconv.ParseBool(strings.TrimSpace(row.Value))
	if err != nil {
		s.log.Warn("unparseable indexing flag; assuming enabled", "value", row.Value)
		return true
	}
	return enabled
}

func (s *settingsService) SetIndexingEnabled(ctx context.Context, enabled bool) error {
	return s.repo.Put(dbctx.Context{Ctx: ctx}, &types.SystemSetting{
		Key:   types.KeyIndexingEnabled,
		Value: strconv.FormatBool(enabled),
	})
}

func (s *settingsService) GetEmbeddingsConfig(ctx context.Context) (EmbeddingsConfig, error) {
	cfg := EmbeddingsConfig{
		APIKey:        s.defaults.APIKey,
		Model:         s.defaults.Model,
		BaseURL:       s.defaults.BaseURL,
		Dimension:     s.defaults.Dimension,
		MaxInputChars: s.defaults.MaxInputChars,
		Source:        "env",
	}
	dbc := dbctx.Context{Ctx: ctx}

	model, err := s.repo.Get(dbc, types.KeyEmbeddingsModel)
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", types.KeyEmbeddingsModel, err)
	}
	if model != nil && strings.TrimSpace(model.Value) != "" {
		cfg.Model = strings.TrimSpace(model.Value)
		cfg.Source = "settings"
	}

	key, err := s.repo.Get(dbc, types.KeyEmbeddingsAPIKey)
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", types.KeyEmbeddingsAPIKey, err)
	}
	if key != nil && key.Value != "" {
		plain := key.Value
		if key.Sealed {
			plain, err = s.sealer.Open(key.Value)
			if err != nil {
				// Unreadable stored key: the environment key stays in effect.
				s.log.Error("cannot open stored embeddings key; using environment", "error", err)
				return cfg, nil
			}
		}
		cfg.APIKey = strings.TrimSpace(plain)
		cfg.Source = "settings"
	}
	return cfg, nil
}

func (s *settingsService) SetEmbeddingsModel(ctx context.Context, model string) error {
	model = strings.TrimSpace(model)
	dbc := dbctx.Context{Ctx: ctx}
	if model == "" {
		return s.repo.Delete(dbc, types.KeyEmbeddingsModel)
	}
	return s.repo.Put(dbc, &types.SystemSetting{Key: types.KeyEmbeddingsModel, Value: model})
}

func (s *settingsService) SetEmbeddingsAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	dbc := dbctx.Context{Ctx: ctx}
	if key == "" {
		return s.repo.Delete(dbc, types.KeyEmbeddingsAPIKey)
	}
	sealed, err := s.sealer.Seal(key)
	if err != nil {
		return err
	}
	return s.repo.Put(dbc, &types.SystemSetting{Key: types.KeyEmbeddingsAPIKey, Value: sealed, Sealed: true})
}
