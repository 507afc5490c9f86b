package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/itvault-backend/internal/platform/ctxutil"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// JWTClaims is the access token issued by the platform's identity service.
type JWTClaims struct {
	OrganizationIDs []string `json:"org_ids,omitempty"`
	PlatformAdmin   bool     `json:"platform_admin,omitempty"`
	jwt.RegisteredClaims
}

type AuthService interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	IssueToken(userID uuid.UUID, orgIDs []uuid.UUID, platformAdmin bool, ttl time.Duration) (string, error)
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey string
	issuer       string
}

func NewAuthService(log *logger.Logger, jwtSecretKey, issuer string) (AuthService, error) {
	if strings.TrimSpace(jwtSecretKey) == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY required")
	}
	return &authService{
		log:          log.With("service", "AuthService"),
		jwtSecretKey: jwtSecretKey,
		issuer:       strings.TrimSpace(issuer),
	}, nil
}

func (as *authService) IssueToken(userID uuid.UUID, orgIDs []uuid.UUID, platformAdmin bool, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	ids := make([]string, 0, len(orgIDs))
	for _, id := range orgIDs {
		ids = append(ids, id.String())
	}
	now := time.Now()
	claims := JWTClaims{
		OrganizationIDs: ids,
		PlatformAdmin:   platformAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    as.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, ErrInvalidToken
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if as.issuer != "" {
		opts = append(opts, jwt.WithIssuer(as.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	}, opts...)
	if err != nil {
		return ctx, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return ctx, ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, fmt.Errorf("%w: subject: %w", ErrInvalidToken, err)
	}
	orgIDs := make([]uuid.UUID, 0, len(claims.OrganizationIDs))
	for _, raw := range claims.OrganizationIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return ctx, fmt.Errorf("%w: org_ids: %w", ErrInvalidToken, err)
		}
		orgIDs = append(orgIDs, id)
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		TokenString:     tokenString,
		UserID:          userID,
		OrganizationIDs: orgIDs,
		PlatformAdmin:   claims.PlatformAdmin,
	}), nil
}

// ScopeFromContext turns the authenticated caller into a search scope.
// A context without request data gets the empty scope.
func ScopeFromContext(ctx context.Context) CallerScope {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return CallerScope{}
	}
	return CallerScope{OrganizationIDs: rd.OrganizationIDs, PlatformWide: rd.PlatformAdmin}
}
