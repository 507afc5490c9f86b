package searchindex

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/yungbote/itvault-backend/internal/data/repos/testutil"
	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/pkg/dbctx"
)

func unitVec(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot%dim] = 1
	return v
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := dbctx.WithTx(context.Background(), tx)
	s := NewPostgresStore(db, testutil.Logger(t), PostgresConfig{Dimension: testutil.TestDimension, IVFFlatProbes: 10})

	orgA, orgB := uuid.New(), uuid.New()
	a := &search.IndexEntry{
		OrganizationID: orgA,
		EntityType:     search.EntityDocument,
		EntityID:       uuid.New(),
		ContentHash:    "aaaa",
		Embedding:      pgvector.NewVector(unitVec(testutil.TestDimension, 1)),
		SearchableText: "router in DC2",
		EmbeddingModel: "fake@64",
	}
	b := &search.IndexEntry{
		OrganizationID: orgB,
		EntityType:     search.EntityDocument,
		EntityID:       uuid.New(),
		ContentHash:    "bbbb",
		Embedding:      pgvector.NewVector(unitVec(testutil.TestDimension, 2)),
		SearchableText: "switch in DC1",
		EmbeddingModel: "fake@64",
	}
	for _, e := range []*search.IndexEntry{a, b} {
		if err := s.Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	// Same key again: updated in place.
	a2 := *a
	a2.ID = uuid.Nil
	a2.ContentHash = "cccc"
	if err := s.Upsert(ctx, &a2); err != nil {
		t.Fatalf("Upsert same key: %v", err)
	}
	got, err := s.GetByKey(ctx, search.EntityDocument, a.EntityID)
	if err != nil || got == nil {
		t.Fatalf("GetByKey: %v %v", got, err)
	}
	if got.ContentHash != "cccc" {
		t.Fatalf("hash: want=cccc got=%s", got.ContentHash)
	}
	n, err := s.Count(ctx, NearestQuery{OrganizationIDs: []uuid.UUID{orgA}})
	if err != nil || n != 1 {
		t.Fatalf("Count: n=%d err=%v", n, err)
	}

	// Org B holds the closer vector; an org A scope must never see it.
	hits, err := s.SearchNearest(ctx, unitVec(testutil.TestDimension, 2), NearestQuery{OrganizationIDs: []uuid.UUID{orgA}, Limit: 5})
	if err != nil {
		t.Fatalf("SearchNearest: %v", err)
	}
	if len(hits) != 1 || hits[0].Entry.EntityID != a.EntityID {
		t.Fatalf("tenant isolation violated: %+v", hits)
	}

	hits, err = s.SearchNearest(ctx, unitVec(testutil.TestDimension, 2), NearestQuery{AllOrganizations: true, Limit: 5})
	if err != nil {
		t.Fatalf("SearchNearest all: %v", err)
	}
	if len(hits) != 2 || hits[0].Entry.EntityID != b.EntityID || hits[0].Score < 0.99 {
		t.Fatalf("unexpected ranking: %+v", hits)
	}

	hits, err = s.SearchNearest(ctx, unitVec(testutil.TestDimension, 2), NearestQuery{AllOrganizations: true, ModelTag: "other@64", Limit: 5})
	if err != nil {
		t.Fatalf("SearchNearest other model: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("hits across embedding models: want=0 got=%d", len(hits))
	}

	deleted, err := s.BulkDelete(ctx, search.EntityDocument, []uuid.UUID{a.EntityID, b.EntityID, uuid.New()})
	if err != nil || deleted != 2 {
		t.Fatalf("BulkDelete: n=%d err=%v", deleted, err)
	}
	if err := s.Delete(ctx, search.EntityDocument, a.EntityID); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
}
