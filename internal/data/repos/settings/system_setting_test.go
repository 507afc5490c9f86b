package settings

import (
	"context"
	"testing"

	"github.com/yungbote/itvault-backend/internal/data/repos/testutil"
	types "github.com/yungbote/itvault-backend/internal/domain/settings"
	"github.com/yungbote/itvault-backend/internal/pkg/dbctx"
)

func TestSystemSettingPutGetDelete(t *testing.T) {
	db := testutil.SQLite(t)
	repo := NewSystemSettingRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	got, err := repo.Get(dbc, types.KeyIndexingEnabled)
	if err != nil || got != nil {
		t.Fatalf("Get missing: %v %v", got, err)
	}

	if err := repo.Put(dbc, &types.SystemSetting{Key: types.KeyIndexingEnabled, Value: "false"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := repo.Put(dbc, &types.SystemSetting{Key: types.KeyIndexingEnabled, Value: "true"}); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, err = repo.Get(dbc, types.KeyIndexingEnabled)
	if err != nil || got == nil || got.Value != "true" {
		t.Fatalf("Get after overwrite: %+v %v", got, err)
	}

	if err := repo.Delete(dbc, types.KeyIndexingEnabled); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, _ = repo.Get(dbc, types.KeyIndexingEnabled)
	if got != nil {
		t.Fatalf("expected nil after delete")
	}
}
