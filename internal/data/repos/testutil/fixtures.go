package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/itvault-backend/internal/domain/assets"
)

func SeedOrganization(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *assets.Organization {
	tb.Helper()
	o := &assets.Organization{ID: uuid.New(), Name: name, Enabled: true}
	if err := tx.WithContext(ctx).Create(o).Error; err != nil {
		tb.Fatalf("seed organization: %v", err)
	}
	return o
}

func SeedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, orgID uuid.UUID, name, content string) *assets.Document {
	tb.Helper()
	d := &assets.Document{
		Base:    assets.Base{ID: uuid.New(), OrganizationID: orgID, Name: name, Enabled: true},
		Content: content,
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed document: %v", err)
	}
	return d
}

func SeedPassword(tb testing.TB, ctx context.Context, tx *gorm.DB, orgID uuid.UUID, name, username string) *assets.Password {
	tb.Helper()
	p := &assets.Password{
		Base:              assets.Base{ID: uuid.New(), OrganizationID: orgID, Name: name, Enabled: true},
		Username:          username,
		EncryptedPassword: []byte("sealed"),
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed password: %v", err)
	}
	return p
}

func SeedCustomAsset(tb testing.TB, ctx context.Context, tx *gorm.DB, orgID uuid.UUID, name string, fields string) *assets.CustomAsset {
	tb.Helper()
	if fields == "" {
		fields = "{}"
	}
	c := &assets.CustomAsset{
		Base:        assets.Base{ID: uuid.New(), OrganizationID: orgID, Name: name, Enabled: true},
		AssetTypeID: uuid.New(),
		Fields:      datatypes.JSON([]byte(fields)),
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed custom asset: %v", err)
	}
	return c
}

// Disable flips is_enabled off without touching other columns.
func Disable(tb testing.TB, ctx context.Context, tx *gorm.DB, e assets.Entity) {
	tb.Helper()
	if err := tx.WithContext(ctx).Model(e).Update("is_enabled", false).Error; err != nil {
		tb.Fatalf("disable %s: %v", e.SearchEntityType(), err)
	}
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }
