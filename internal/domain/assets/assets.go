package assets

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/itvault-backend/internal/domain/search"
)

// Entity is the read view the indexing pipeline needs from any searchable asset.
type Entity interface {
	GetID() uuid.UUID
	GetOrganizationID() uuid.UUID
	IsEnabled() bool
	DisplayName() string
	SearchEntityType() search.EntityType
}

// Base holds the columns every asset table shares.
type Base struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID      `gorm:"type:uuid;column:organization_id;not null;index" json:"organizationId"`
	Name           string         `gorm:"column:name;not null" json:"name"`
	Enabled        bool           `gorm:"column:is_enabled;not null;default:true;index" json:"isEnabled"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null;autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;not null;autoUpdateTime" json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (b *Base) GetID() uuid.UUID             { return b.ID }
func (b *Base) GetOrganizationID() uuid.UUID { return b.OrganizationID }
func (b *Base) IsEnabled() bool              { return b.Enabled }
func (b *Base) DisplayName() string          { return b.Name }

type Organization struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"column:name;not null" json:"name"`
	Enabled   bool           `gorm:"column:is_enabled;not null;default:true" json:"isEnabled"`
	CreatedAt time.Time      `gorm:"column:created_at;not null;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null;autoUpdateTime" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Organization) TableName() string { return "organization" }

func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

type Password struct {
	Base
	Username string `gorm:"column:username" json:"username"`
	URL      string `gorm:"column:url" json:"url"`
	Notes    string `gorm:"column:notes;type:text" json:"notes"`
	// Secret material is never part of the searchable projection.
	EncryptedPassword []byte `gorm:"column:encrypted_password" json:"-"`
}

func (Password) TableName() string                    { return "password" }
func (*Password) SearchEntityType() search.EntityType { return search.EntityPassword }

type Configuration struct {
	Base
	SerialNumber string `gorm:"column:serial_number" json:"serialNumber"`
	Manufacturer string `gorm:"column:manufacturer" json:"manufacturer"`
	Model        string `gorm:"column:model" json:"model"`
	Notes        string `gorm:"column:notes;type:text" json:"notes"`
}

func (Configuration) TableName() string                    { return "configuration" }
func (*Configuration) SearchEntityType() search.EntityType { return search.EntityConfiguration }

type Location struct {
	Base
	AddressLine1 string `gorm:"column:address_line1" json:"addressLine1"`
	AddressLine2 string `gorm:"column:address_line2" json:"addressLine2"`
	City         string `gorm:"column:city" json:"city"`
	Notes        string `gorm:"column:notes;type:text" json:"notes"`
}

func (Location) TableName() string                    { return "location" }
func (*Location) SearchEntityType() search.EntityType { return search.EntityLocation }

type Document struct {
	Base
	Content string `gorm:"column:content;type:text" json:"content"`
}

func (Document) TableName() string                    { return "document" }
func (*Document) SearchEntityType() search.EntityType { return search.EntityDocument }

// CustomAsset carries a dynamic field set as a JSON object.
type CustomAsset struct {
	Base
	AssetTypeID uuid.UUID      `gorm:"type:uuid;column:asset_type_id;index" json:"assetTypeId"`
	Fields      datatypes.JSON `gorm:"column:fields" json:"fields"`
}

func (CustomAsset) TableName() string                    { return "custom_asset" }
func (*CustomAsset) SearchEntityType() search.EntityType { return search.EntityCustomAsset }

// Models lists every asset model for migration.
func Models() []interface{} {
	return []interface{}{
		&Organization{},
		&Password{},
		&Configuration{},
		&Location{},
		&Document{},
		&CustomAsset{},
	}
}

// NewModel returns an empty model for t, or nil for an unknown type.
func NewModel(t search.EntityType) Entity {
	switch t {
	case search.EntityPassword:
		return &Password{}
	case search.EntityConfiguration:
		return &Configuration{}
	case search.EntityLocation:
		return &Location{}
	case search.EntityDocument:
		return &Document{}
	case search.EntityCustomAsset:
		return &CustomAsset{}
	default:
		return nil
	}
}
