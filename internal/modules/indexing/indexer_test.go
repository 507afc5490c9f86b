package indexing_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/itvault-backend/internal/data/repos/searchindex"
	"github.com/yungbote/itvault-backend/internal/domain/assets"
	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/modules/indexing"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
	"github.com/yungbote/itvault-backend/internal/testutil"
)

type harness struct {
	store     *searchindex.MemoryStore
	entities  *testutil.FakeEntities
	provider  *testutil.FakeProvider
	providers *testutil.StaticProviders
	flag      *testutil.Flag
	ix        *indexing.Indexer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.Nop()
	h := &harness{
		store:    searchindex.NewMemoryStore(log, searchindex.DefaultMemoryConfig(testutil.FakeDimension)),
		entities: testutil.NewFakeEntities(),
		provider: testutil.NewFakeProvider(),
		flag:     &testutil.Flag{},
	}
	h.providers = &testutil.StaticProviders{P: h.provider}
	ix, err := indexing.NewIndexer(indexing.IndexerDeps{
		Log:       log,
		Flag:      h.flag,
		Entities:  h.entities,
		Providers: h.providers,
		Store:     h.store,
		Retry:     indexing.RetryPolicy{Attempts: 3, Base: time.Millisecond, Max: 5 * time.Millisecond, CallTimeout: time.Second},
	})
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}
	h.ix = ix
	return h
}

func (h *harness) index(t *testing.T, typ search.EntityType, id uuid.UUID) indexing.Outcome {
	t.Helper()
	out, err := h.ix.Index(context.Background(), typ, id)
	if err != nil {
		t.Fatalf("Index(%s, %s): %v", typ, id, err)
	}
	return out
}

func (h *harness) entry(t *testing.T, typ search.EntityType, id uuid.UUID) *search.IndexEntry {
	t.Helper()
	e, err := h.store.GetByKey(context.Background(), typ, id)
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	return e
}

func TestIndexIsIdempotent(t *testing.T) {
	h := newHarness(t)
	doc := testutil.NewDocument(uuid.New(), "VPN", "Connect with WireGuard")
	h.entities.Put(doc)

	if out := h.index(t, search.EntityDocument, doc.ID); out != indexing.OutcomeIndexed {
		t.Fatalf("first index: want=%s got=%s", indexing.OutcomeIndexed, out)
	}
	first := h.entry(t, search.EntityDocument, doc.ID)
	if out := h.index(t, search.EntityDocument, doc.ID); out != indexing.OutcomeUnchanged {
		t.Fatalf("second index: want=%s got=%s", indexing.OutcomeUnchanged, out)
	}
	if calls := h.provider.Calls(); calls != 1 {
		t.Fatalf("provider calls: want=1 got=%d", calls)
	}
	second := h.entry(t, search.EntityDocument, doc.ID)
	if first.ContentHash != second.ContentHash || first.ID != second.ID {
		t.Fatalf("entry changed on no-op reindex")
	}
	if second.ContentHash != indexing.ContentHash(second.SearchableText) {
		t.Fatalf("content hash does not match stored text")
	}
	if second.EmbeddingModel != indexing.ModelTag("fake-embed", testutil.FakeDimension) {
		t.Fatalf("model tag: got=%s", second.EmbeddingModel)
	}
}

func TestIndexDetectsChanges(t *testing.T) {
	h := newHarness(t)
	doc := testutil.NewDocument(uuid.New(), "VPN", "Connect with WireGuard")
	h.entities.Put(doc)
	h.index(t, search.EntityDocument, doc.ID)
	before := h.entry(t, search.EntityDocument, doc.ID)

	doc.Content = "Connect with OpenVPN"
	if out := h.index(t, search.EntityDocument, doc.ID); out != indexing.OutcomeIndexed {
		t.Fatalf("changed content: want=%s got=%s", indexing.OutcomeIndexed, out)
	}
	after := h.entry(t, search.EntityDocument, doc.ID)
	if after.ContentHash == before.ContentHash {
		t.Fatalf("content hash did not change")
	}
	if calls := h.provider.Calls(); calls != 2 {
		t.Fatalf("provider calls: want=2 got=%d", calls)
	}
	n, err := h.store.Count(context.Background(), searchindex.NearestQuery{AllOrganizations: true})
	if err != nil || n != 1 {
		t.Fatalf("entries per key: want=1 got=%d err=%v", n, err)
	}
}

// switchingEntities hands out one snapshot, then swaps in next so the
// post-write read sees a newer commit.
type switchingEntities struct {
	*testutil.FakeEntities
	next  *assets.Document
	loads int
}

func (s *switchingEntities) LoadSnapshot(ctx context.Context, t search.EntityType, id uuid.UUID) (assets.Entity, error) {
	e, err := s.FakeEntities.LoadSnapshot(ctx, t, id)
	s.loads++
	if s.loads == 1 && s.next != nil {
		s.FakeEntities.Put(s.next)
	}
	return e, err
}

func TestIndexRewritesWhenEntityChangesMidJob(t *testing.T) {
	h := newHarness(t)
	org := uuid.New()
	stale := testutil.NewDocument(org, "Failover", "promote the standby in DC1")
	fresh := testutil.NewDocument(org, "Failover", "promote the standby in DC2")
	fresh.ID = stale.ID
	src := &switchingEntities{FakeEntities: testutil.NewFakeEntities(), next: fresh}
	src.Put(stale)

	ix, err := indexing.NewIndexer(indexing.IndexerDeps{
		Log:       logger.Nop(),
		Flag:      h.flag,
		Entities:  src,
		Providers: h.providers,
		Store:     h.store,
	})
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}
	out, err := ix.Index(context.Background(), search.EntityDocument, stale.ID)
	if err != nil || out != indexing.OutcomeIndexed {
		t.Fatalf("Index: out=%s err=%v", out, err)
	}
	want, _ := indexing.ExtractSearchableText(fresh)
	if got := h.entry(t, search.EntityDocument, stale.ID); got.SearchableText != want {
		t.Fatalf("entry text: want=%q got=%q", want, got.SearchableText)
	}
	if calls := h.provider.Calls(); calls != 2 {
		t.Fatalf("provider calls: want=2 got=%d", calls)
	}
}

func TestIndexConvergesUnderParallelJobs(t *testing.T) {
	h := newHarness(t)
	org := uuid.New()
	id := uuid.New()
	revision := func(n int) *assets.Document {
		d := testutil.NewDocument(org, "Core switch", fmt.Sprintf("revision %d vlan trunk uplink", n))
		d.ID = id
		return d
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				h.entities.Put(revision(g*5 + i))
				if _, err := h.ix.Index(context.Background(), search.EntityDocument, id); err != nil {
					errs <- err
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		// Churn may exhaust the rounds; the queue would redeliver these.
		if errors.Is(err, indexing.ErrPermanent) {
			t.Fatalf("permanent error under churn: %v", err)
		}
	}

	final := revision(100)
	h.entities.Put(final)
	var tail sync.WaitGroup
	for i := 0; i < 8; i++ {
		tail.Add(1)
		go func() {
			defer tail.Done()
			if _, err := h.ix.Index(context.Background(), search.EntityDocument, id); err != nil {
				t.Errorf("Index after final commit: %v", err)
			}
		}()
	}
	tail.Wait()

	n, err := h.store.Count(context.Background(), searchindex.NearestQuery{AllOrganizations: true})
	if err != nil || n != 1 {
		t.Fatalf("rows for key: want=1 got=%d err=%v", n, err)
	}
	want, _ := indexing.ExtractSearchableText(final)
	if got := h.entry(t, search.EntityDocument, id); got.SearchableText != want {
		t.Fatalf("entry text: want=%q got=%q", want, got.SearchableText)
	}
}

func TestIndexIgnoresUnprojectedFields(t *testing.T) {
	h := newHarness(t)
	pw := testutil.NewPassword(uuid.New(), "Core firewall", "admin", "https://fw.example", "")
	pw.EncryptedPassword = []byte("v1")
	h.entities.Put(pw)
	h.index(t, search.EntityPassword, pw.ID)

	pw.EncryptedPassword = []byte("v2")
	pw.UpdatedAt = time.Now()
	if out := h.index(t, search.EntityPassword, pw.ID); out != indexing.OutcomeUnchanged {
		t.Fatalf("secret rotation: want=%s got=%s", indexing.OutcomeUnchanged, out)
	}
	if calls := h.provider.Calls(); calls != 1 {
		t.Fatalf("provider calls: want=1 got=%d", calls)
	}
	for _, txt := range h.provider.Texts() {
		if strings.Contains(txt, "v1") || strings.Contains(txt, "v2") {
			t.Fatalf("secret leaked into embedded text: %q", txt)
		}
	}
}

func TestPasswordNotesUpdateChangesEmbedding(t *testing.T) {
	h := newHarness(t)
	pw := testutil.NewPassword(uuid.New(), "Core firewall", "admin", "", "old notes")
	h.entities.Put(pw)
	h.index(t, search.EntityPassword, pw.ID)
	before := h.entry(t, search.EntityPassword, pw.ID)

	pw.Notes = "VPN gateway credentials"
	h.index(t, search.EntityPassword, pw.ID)
	after := h.entry(t, search.EntityPassword, pw.ID)
	if !strings.Contains(after.SearchableText, "VPN gateway credentials") {
		t.Fatalf("stored text missing new notes: %q", after.SearchableText)
	}
	if fmt.Sprint(before.Embedding.Slice()) == fmt.Sprint(after.Embedding.Slice()) {
		t.Fatalf("embedding unchanged after notes update")
	}
}

func TestIndexRemovesDisabledAndDeleted(t *testing.T) {
	h := newHarness(t)
	doc := testutil.NewDocument(uuid.New(), "Runbook", "Restart the cluster")
	h.entities.Put(doc)
	h.index(t, search.EntityDocument, doc.ID)

	doc.Enabled = false
	if out := h.index(t, search.EntityDocument, doc.ID); out != indexing.OutcomeRemoved {
		t.Fatalf("disabled: want=%s got=%s", indexing.OutcomeRemoved, out)
	}
	if e := h.entry(t, search.EntityDocument, doc.ID); e != nil {
		t.Fatalf("disabled entity still indexed")
	}

	doc.Enabled = true
	h.index(t, search.EntityDocument, doc.ID)
	h.entities.Remove(search.EntityDocument, doc.ID)
	if out := h.index(t, search.EntityDocument, doc.ID); out != indexing.OutcomeRemoved {
		t.Fatalf("deleted: want=%s got=%s", indexing.OutcomeRemoved, out)
	}
	if e := h.entry(t, search.EntityDocument, doc.ID); e != nil {
		t.Fatalf("deleted entity still indexed")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	for i := 0; i < 2; i++ {
		out, err := h.ix.Remove(context.Background(), search.EntityLocation, id)
		if err != nil || out != indexing.OutcomeRemoved {
			t.Fatalf("Remove #%d: out=%s err=%v", i, out, err)
		}
	}
}

func TestIndexRetriesTransientErrors(t *testing.T) {
	h := newHarness(t)
	doc := testutil.NewDocument(uuid.New(), "VPN", "WireGuard")
	h.entities.Put(doc)
	h.provider.FailNext(fmt.Errorf("%w: 503", indexing.ErrProviderTransient))

	if out := h.index(t, search.EntityDocument, doc.ID); out != indexing.OutcomeIndexed {
		t.Fatalf("want=%s got=%s", indexing.OutcomeIndexed, out)
	}
	if calls := h.provider.Calls(); calls != 2 {
		t.Fatalf("provider calls: want=2 got=%d", calls)
	}
}

func TestIndexRetriesExhausted(t *testing.T) {
	h := newHarness(t)
	doc := testutil.NewDocument(uuid.New(), "VPN", "WireGuard")
	h.entities.Put(doc)
	transient := fmt.Errorf("%w: timeout", indexing.ErrProviderTransient)
	h.provider.FailNext(transient, transient, transient)

	_, err := h.ix.Index(context.Background(), search.EntityDocument, doc.ID)
	if !indexing.IsPermanent(err) || !errors.Is(err, indexing.ErrRetriesExhausted) {
		t.Fatalf("want permanent retries-exhausted error, got %v", err)
	}
	if calls := h.provider.Calls(); calls != 3 {
		t.Fatalf("provider calls: want=3 got=%d", calls)
	}
	if e := h.entry(t, search.EntityDocument, doc.ID); e != nil {
		t.Fatalf("partial write after failed embedding")
	}
}

func TestIndexAuthErrorIsPermanentWithoutRetry(t *testing.T) {
	h := newHarness(t)
	doc := testutil.NewDocument(uuid.New(), "VPN", "WireGuard")
	h.entities.Put(doc)
	h.provider.FailNext(fmt.Errorf("%w: 401", indexing.ErrProviderAuth))

	_, err := h.ix.Index(context.Background(), search.EntityDocument, doc.ID)
	if !indexing.IsPermanent(err) || !errors.Is(err, indexing.ErrProviderAuth) {
		t.Fatalf("want permanent auth error, got %v", err)
	}
	if calls := h.provider.Calls(); calls != 1 {
		t.Fatalf("provider calls: want=1 got=%d", calls)
	}
}

func TestIndexSkips(t *testing.T) {
	t.Run("too long", func(t *testing.T) {
		h := newHarness(t)
		doc := testutil.NewDocument(uuid.New(), "Big", "x")
		h.entities.Put(doc)
		h.provider.FailNext(indexing.ErrTextTooLong)
		if out := h.index(t, search.EntityDocument, doc.ID); out != indexing.OutcomeSkippedTooLong {
			t.Fatalf("want=%s got=%s", indexing.OutcomeSkippedTooLong, out)
		}
		if e := h.entry(t, search.EntityDocument, doc.ID); e != nil {
			t.Fatalf("too-long entity indexed")
		}
	})
	t.Run("not configured", func(t *testing.T) {
		h := newHarness(t)
		doc := testutil.NewDocument(uuid.New(), "VPN", "WireGuard")
		h.entities.Put(doc)
		h.providers.P = nil
		if out := h.index(t, search.EntityDocument, doc.ID); out != indexing.OutcomeSkippedConfig {
			t.Fatalf("want=%s got=%s", indexing.OutcomeSkippedConfig, out)
		}
	})
	t.Run("flag off", func(t *testing.T) {
		h := newHarness(t)
		doc := testutil.NewDocument(uuid.New(), "VPN", "WireGuard")
		h.entities.Put(doc)
		h.flag.Set(false)
		if out := h.index(t, search.EntityDocument, doc.ID); out != indexing.OutcomeSkippedDisabled {
			t.Fatalf("want=%s got=%s", indexing.OutcomeSkippedDisabled, out)
		}
		if calls := h.provider.Calls(); calls != 0 {
			t.Fatalf("provider called while indexing disabled")
		}
	})
	t.Run("empty text", func(t *testing.T) {
		h := newHarness(t)
		doc := testutil.NewDocument(uuid.New(), "  ", "")
		h.entities.Put(doc)
		if out := h.index(t, search.EntityDocument, doc.ID); out != indexing.OutcomeSkippedEmpty {
			t.Fatalf("want=%s got=%s", indexing.OutcomeSkippedEmpty, out)
		}
	})
}

func TestIndexReembedsOnModelChange(t *testing.T) {
	h := newHarness(t)
	doc := testutil.NewDocument(uuid.New(), "VPN", "WireGuard")
	h.entities.Put(doc)
	h.index(t, search.EntityDocument, doc.ID)

	h.provider.ModelName = "fake-embed-v2"
	if out := h.index(t, search.EntityDocument, doc.ID); out != indexing.OutcomeIndexed {
		t.Fatalf("model change: want=%s got=%s", indexing.OutcomeIndexed, out)
	}
	if tag := h.entry(t, search.EntityDocument, doc.ID).EmbeddingModel; tag != indexing.ModelTag("fake-embed-v2", testutil.FakeDimension) {
		t.Fatalf("model tag: got=%s", tag)
	}
}

func TestIndexFollowsOrganizationMoveWithoutEmbedding(t *testing.T) {
	h := newHarness(t)
	doc := testutil.NewDocument(uuid.New(), "VPN", "WireGuard")
	h.entities.Put(doc)
	h.index(t, search.EntityDocument, doc.ID)

	newOrg := uuid.New()
	doc.OrganizationID = newOrg
	if out := h.index(t, search.EntityDocument, doc.ID); out != indexing.OutcomeUnchanged {
		t.Fatalf("org move: want=%s got=%s", indexing.OutcomeUnchanged, out)
	}
	if got := h.entry(t, search.EntityDocument, doc.ID).OrganizationID; got != newOrg {
		t.Fatalf("organization: want=%s got=%s", newOrg, got)
	}
	if calls := h.provider.Calls(); calls != 1 {
		t.Fatalf("provider calls: want=1 got=%d", calls)
	}
}

func TestIndexRejectsUnknownType(t *testing.T) {
	h := newHarness(t)
	_, err := h.ix.Index(context.Background(), search.EntityType("ticket"), uuid.New())
	if !indexing.IsPermanent(err) {
		t.Fatalf("want permanent error, got %v", err)
	}
}

func TestIndexLoadErrorIsRetryable(t *testing.T) {
	h := newHarness(t)
	h.entities.Err = errors.New("connection reset")
	_, err := h.ix.Index(context.Background(), search.EntityDocument, uuid.New())
	if err == nil || indexing.IsPermanent(err) {
		t.Fatalf("want retryable error, got %v", err)
	}
}
