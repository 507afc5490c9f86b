package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	settingsrepo "github.com/yungbote/itvault-backend/internal/data/repos/settings"
	repotest "github.com/yungbote/itvault-backend/internal/data/repos/testutil"
	types "github.com/yungbote/itvault-backend/internal/domain/settings"
	"github.com/yungbote/itvault-backend/internal/pkg/dbctx"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
	"github.com/yungbote/itvault-backend/internal/services"
)

func TestSealerRoundTrip(t *testing.T) {
	s, err := services.NewSealer("0123456789abcdef-secret")
	require.NoError(t, err)
	sealed, err := s.Seal("sk-live-123")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "sk-live-123")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk-live-123", plain)

	other, _ := services.NewSealer("another-secret-of-length")
	_, err = other.Open(sealed)
	assert.Error(t, err)

	_, err = s.Open(sealed[:len(sealed)-4] + "AAAA")
	assert.Error(t, err)
}

func TestSealerConfig(t *testing.T) {
	none, err := services.NewSealer("")
	require.NoError(t, err)
	assert.Nil(t, none)
	_, err = none.Seal("x")
	assert.ErrorIs(t, err, services.ErrSealerUnavailable)

	_, err = services.NewSealer("short")
	assert.Error(t, err)
}

func newSettings(t *testing.T, sealer *services.Sealer, defaults services.EmbeddingsDefaults) (services.SettingsService, settingsrepo.SystemSettingRepo) {
	t.Helper()
	db := repotest.SQLite(t)
	repo := settingsrepo.NewSystemSettingRepo(db, logger.Nop())
	return services.NewSettingsService(logger.Nop(), repo, sealer, defaults), repo
}

func TestIndexingFlagDefaultsToEnabled(t *testing.T) {
	ctx := context.Background()
	svc, repo := newSettings(t, nil, services.EmbeddingsDefaults{})
	assert.True(t, svc.IsIndexingEnabled(ctx), "missing row means enabled")

	require.NoError(t, svc.SetIndexingEnabled(ctx, false))
	assert.False(t, svc.IsIndexingEnabled(ctx))
	require.NoError(t, svc.SetIndexingEnabled(ctx, true))
	assert.True(t, svc.IsIndexingEnabled(ctx))

	require.NoError(t, repo.Put(dbctx.Context{Ctx: ctx}, &types.SystemSetting{Key: types.KeyIndexingEnabled, Value: "maybe"}))
	assert.True(t, svc.IsIndexingEnabled(ctx), "unparseable value means enabled")
}

func TestEmbeddingsConfigFallsBackToEnvironment(t *testing.T) {
	ctx := context.Background()
	sealer, err := services.NewSealer("0123456789abcdef-secret")
	require.NoError(t, err)
	svc, repo := newSettings(t, sealer, services.EmbeddingsDefaults{APIKey: "sk-env", Model: "text-embedding-3-small", Dimension: 1536, MaxInputChars: 8000})

	cfg, err := svc.GetEmbeddingsConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.APIKey)
	assert.Equal(t, "text-embedding-3-small", cfg.Model)
	assert.Equal(t, "env", cfg.Source)
	assert.True(t, cfg.Configured())
	envPrint := cfg.Fingerprint()

	require.NoError(t, svc.SetEmbeddingsAPIKey(ctx, "sk-db"))
	require.NoError(t, svc.SetEmbeddingsModel(ctx, "text-embedding-3-large"))
	cfg, err = svc.GetEmbeddingsConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk-db", cfg.APIKey)
	assert.Equal(t, "text-embedding-3-large", cfg.Model)
	assert.Equal(t, "settings", cfg.Source)
	assert.NotEqual(t, envPrint, cfg.Fingerprint())

	row, err := repo.Get(dbctx.Context{Ctx: ctx}, types.KeyEmbeddingsAPIKey)
	require.NoError(t, err)
	assert.True(t, row.Sealed)
	assert.False(t, strings.Contains(row.Value, "sk-db"), "api key stored in clear")

	require.NoError(t, svc.SetEmbeddingsAPIKey(ctx, ""))
	cfg, err = svc.GetEmbeddingsConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.APIKey)
}

func TestEmbeddingsAPIKeyNeedsSealer(t *testing.T) {
	svc, _ := newSettings(t, nil, services.EmbeddingsDefaults{})
	err := svc.SetEmbeddingsAPIKey(context.Background(), "sk-db")
	assert.ErrorIs(t, err, services.ErrSealerUnavailable)

	cfg, err := svc.GetEmbeddingsConfig(context.Background())
	require.NoError(t, err)
	assert.False(t, cfg.Configured())
}
