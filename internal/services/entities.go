package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/itvault-backend/internal/data/repos/assets"
	types "github.com/yungbote/itvault-backend/internal/domain/assets"
	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/pkg/dbctx"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

// EntitySource loads live entity state for the indexer and the reindexer.
type EntitySource interface {
	LoadSnapshot(ctx context.Context, t search.EntityType, id uuid.UUID) (types.Entity, error)
	ListIDs(ctx context.Context, t search.EntityType, enabledOnly bool) ([]uuid.UUID, error)
}

// ResolvedEntity is the display metadata attached to a search hit.
type ResolvedEntity struct {
	OrganizationID   uuid.UUID
	OrganizationName string
	Name             string
	Enabled          bool
}

type EntityResolver interface {
	// ResolveDisplayName reports found=false when the entity is gone or
	// belongs to another organization.
	ResolveDisplayName(ctx context.Context, orgID uuid.UUID, t search.EntityType, id uuid.UUID) (string, bool, error)
	ResolveOrganizationName(ctx context.Context, orgID uuid.UUID) (string, error)
	IsEnabled(ctx context.Context, t search.EntityType, id uuid.UUID) (bool, error)
	// Resolve returns nil when the entity does not resolve within orgID.
	Resolve(ctx context.Context, orgID uuid.UUID, t search.EntityType, id uuid.UUID) (*ResolvedEntity, error)
}

type EntityService struct {
	log  *logger.Logger
	repo assets.EntityRepo
}

// NewEntityService backs both EntitySource and EntityResolver with the asset tables.
func NewEntityService(log *logger.Logger, repo assets.EntityRepo) *EntityService {
	return &EntityService{log: log.With("service", "EntityService"), repo: repo}
}

func (s *EntityService) LoadSnapshot(ctx context.Context, t search.EntityType, id uuid.UUID) (types.Entity, error) {
	return s.repo.Get(dbctx.Context{Ctx: ctx}, t, id)
}

func (s *EntityService) ListIDs(ctx context.Context, t search.EntityType, enabledOnly bool) ([]uuid.UUID, error) {
	return s.repo.ListIDs(dbctx.Context{Ctx: ctx}, t, enabledOnly)
}

func (s *EntityService) ResolveDisplayName(ctx context.Context, orgID uuid.UUID, t search.EntityType, id uuid.UUID) (string, bool, error) {
	e, err := s.repo.Get(dbctx.Context{Ctx: ctx}, t, id)
	if err != nil || e == nil || e.GetOrganizationID() != orgID {
		return "", false, err
	}
	return e.DisplayName(), true, nil
}

func (s *EntityService) ResolveOrganizationName(ctx context.Context, orgID uuid.UUID) (string, error) {
	org, err := s.repo.GetOrganization(dbctx.Context{Ctx: ctx}, orgID)
	if err != nil {
		return "", err
	}
	if org == nil {
		return "", fmt.Errorf("organization %s not found", orgID)
	}
	return org.Name, nil
}

func (s *EntityService) IsEnabled(ctx context.Context, t search.EntityType, id uuid.UUID) (bool, error) {
	e, err := s.repo.Get(dbctx.Context{Ctx: ctx}, t, id)
	if err != nil || e == nil {
		return false, err
	}
	return e.IsEnabled(), nil
}

func (s *EntityService) Resolve(ctx context.Context, orgID uuid.UUID, t search.EntityType, id uuid.UUID) (*ResolvedEntity, error) {
	dbc := dbctx.Context{Ctx: ctx}
	e, err := s.repo.Get(dbc, t, id)
	if err != nil {
		return nil, err
	}
	if e == nil || e.GetOrganizationID() != orgID {
		return nil, nil
	}
	org, err := s.repo.GetOrganization(dbc, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, nil
	}
	return &ResolvedEntity{
		OrganizationID:   orgID,
		OrganizationName: org.Name,
		Name:             e.DisplayName(),
		Enabled:          e.IsEnabled(),
	}, nil
}
