package services_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/itvault-backend/internal/data/repos/searchindex"
	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/modules/indexing"
	"github.com/yungbote/itvault-backend/internal/pkg/dbctx"
	"github.com/yungbote/itvault-backend/internal/services"
)

var documentsOnly = []search.EntityType{search.EntityDocument}

func TestInlineReindexIndexesAndPrunes(t *testing.T) {
	s := newStack(t, services.SearchConfig{})
	acme := s.org(t, "Acme")
	a := document(acme.ID, "Runbook", "restart the core switch")
	b := document(acme.ID, "Onboarding", "laptop imaging steps")
	dbc := dbctx.Context{Ctx: s.ctx}
	require.NoError(t, s.entities.Save(dbc, a))
	require.NoError(t, s.entities.Save(dbc, b))

	rep, err := s.reindex.Reindex(s.ctx, services.ReindexOptions{Types: documentsOnly, Inline: true})
	require.NoError(t, err)
	tr := rep.Types[search.EntityDocument]
	require.NotNil(t, tr)
	assert.Equal(t, 2, tr.Live)
	assert.Equal(t, 2, tr.Outcomes[string(indexing.OutcomeIndexed)])
	assert.Zero(t, tr.Pruned)

	// Disabled without a job: only a reindex can notice.
	b.Enabled = false
	require.NoError(t, s.entities.Save(dbc, b))
	rep, err = s.reindex.Reindex(s.ctx, services.ReindexOptions{Types: documentsOnly, Inline: true})
	require.NoError(t, err)
	tr = rep.Types[search.EntityDocument]
	assert.Equal(t, 1, tr.Live)
	assert.EqualValues(t, 1, tr.Pruned)
	assert.Equal(t, 1, tr.Outcomes[string(indexing.OutcomeUnchanged)])

	keys, err := s.store.ListKeys(s.ctx, search.EntityDocument)
	require.NoError(t, err)
	assert.ElementsMatch(t, keys, []uuid.UUID{a.ID})
}

func TestForcedReindexReembeds(t *testing.T) {
	s := newStack(t, services.SearchConfig{})
	acme := s.org(t, "Acme")
	doc := document(acme.ID, "Runbook", "restart the core switch")
	s.save(t, doc)
	s.drain(t)
	require.Equal(t, 1, s.provider.Calls())

	rep, err := s.reindex.Reindex(s.ctx, services.ReindexOptions{Types: documentsOnly, Inline: true})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Types[search.EntityDocument].Outcomes[string(indexing.OutcomeUnchanged)])
	assert.Equal(t, 1, s.provider.Calls())

	rep, err = s.reindex.Reindex(s.ctx, services.ReindexOptions{Types: documentsOnly, Inline: true, Force: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, rep.Cleared)
	assert.Equal(t, 1, rep.Types[search.EntityDocument].Outcomes[string(indexing.OutcomeIndexed)])
	assert.Equal(t, 2, s.provider.Calls())
}

func TestQueuedReindexEnqueuesEveryLiveEntity(t *testing.T) {
	s := newStack(t, services.SearchConfig{})
	acme := s.org(t, "Acme")
	dbc := dbctx.Context{Ctx: s.ctx}
	for _, name := range []string{"one", "two", "three"} {
		require.NoError(t, s.entities.Save(dbc, document(acme.ID, name, "content "+name)))
	}

	rep, err := s.reindex.Reindex(s.ctx, services.ReindexOptions{})
	require.NoError(t, err)
	assert.Len(t, rep.Types, len(search.AllEntityTypes))
	assert.Equal(t, 3, rep.Types[search.EntityDocument].Enqueued)
	assert.Zero(t, rep.Types[search.EntityPassword].Enqueued)

	assert.Equal(t, 3, s.drain(t))
	n, err := s.store.Count(s.ctx, searchindex.NearestQuery{AllOrganizations: true})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
