package assets

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/itvault-backend/internal/domain/assets"
	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/pkg/dbctx"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

// EntityRepo reads searchable assets across the five asset tables.
type EntityRepo interface {
	Get(dbc dbctx.Context, t search.EntityType, id uuid.UUID) (types.Entity, error)
	ListIDs(dbc dbctx.Context, t search.EntityType, enabledOnly bool) ([]uuid.UUID, error)
	GetOrganization(dbc dbctx.Context, id uuid.UUID) (*types.Organization, error)
	GetOrganizations(dbc dbctx.Context, ids []uuid.UUID) (map[uuid.UUID]*types.Organization, error)
	Save(dbc dbctx.Context, e types.Entity) error
	CreateOrganization(dbc dbctx.Context, org *types.Organization) error
}

type entityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEntityRepo(db *gorm.DB, baseLog *logger.Logger) EntityRepo {
	return &entityRepo{db: db, log: baseLog.With("repo", "EntityRepo")}
}

func (r *entityRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

// Get returns (nil, nil) when the entity does not exist or is soft-deleted.
func (r *entityRepo) Get(dbc dbctx.Context, t search.EntityType, id uuid.UUID) (types.Entity, error) {
	model := types.NewModel(t)
	if model == nil {
		return nil, fmt.Errorf("unknown entity type %q", t)
	}
	if id == uuid.Nil {
		return nil, nil
	}
	err := r.tx(dbc).Where("id = ?", id).Take(model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model, nil
}

func (r *entityRepo) ListIDs(dbc dbctx.Context, t search.EntityType, enabledOnly bool) ([]uuid.UUID, error) {
	model := types.NewModel(t)
	if model == nil {
		return nil, fmt.Errorf("unknown entity type %q", t)
	}
	var ids []uuid.UUID
	q := r.tx(dbc).Model(model)
	if enabledOnly {
		q = q.Where("is_enabled = ?", true)
	}
	err := q.Order("id").Pluck("id", &ids).Error
	return ids, err
}

func (r *entityRepo) GetOrganization(dbc dbctx.Context, id uuid.UUID) (*types.Organization, error) {
	var org types.Organization
	err := r.tx(dbc).Where("id = ?", id).Take(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *entityRepo) GetOrganizations(dbc dbctx.Context, ids []uuid.UUID) (map[uuid.UUID]*types.Organization, error) {
	out := map[uuid.UUID]*types.Organization{}
	if len(ids) == 0 {
		return out, nil
	}
	var orgs []*types.Organization
	if err := r.tx(dbc).Where("id IN ?", ids).Find(&orgs).Error; err != nil {
		return nil, err
	}
	for _, o := range orgs {
		out[o.ID] = o
	}
	return out, nil
}

func (r *entityRepo) Save(dbc dbctx.Context, e types.Entity) error {
	if e == nil {
		return nil
	}
	return r.tx(dbc).Save(e).Error
}

func (r *entityRepo) CreateOrganization(dbc dbctx.Context, org *types.Organization) error {
	return r.tx(dbc).Create(org).Error
}
