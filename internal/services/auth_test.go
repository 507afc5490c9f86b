package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/itvault-backend/internal/platform/ctxutil"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
	"github.com/yungbote/itvault-backend/internal/services"
)

func TestTokenRoundTripToScope(t *testing.T) {
	auth, err := services.NewAuthService(logger.Nop(), "jwt-secret", "itvault")
	require.NoError(t, err)
	user, org := uuid.New(), uuid.New()

	tok, err := auth.IssueToken(user, []uuid.UUID{org}, false, time.Minute)
	require.NoError(t, err)
	ctx, err := auth.SetContextFromToken(context.Background(), tok)
	require.NoError(t, err)

	rd := ctxutil.GetRequestData(ctx)
	require.NotNil(t, rd)
	assert.Equal(t, user, rd.UserID)
	scope := services.ScopeFromContext(ctx)
	assert.Equal(t, []uuid.UUID{org}, scope.OrganizationIDs)
	assert.False(t, scope.PlatformWide)
}

func TestTokenRejections(t *testing.T) {
	auth, _ := services.NewAuthService(logger.Nop(), "jwt-secret", "itvault")
	other, _ := services.NewAuthService(logger.Nop(), "another-secret", "itvault")
	ctx := context.Background()

	foreign, err := other.IssueToken(uuid.New(), nil, true, time.Minute)
	require.NoError(t, err)
	_, err = auth.SetContextFromToken(ctx, foreign)
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	_, err = auth.SetContextFromToken(ctx, "")
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	assert.Equal(t, services.CallerScope{}, services.ScopeFromContext(ctx))
}
