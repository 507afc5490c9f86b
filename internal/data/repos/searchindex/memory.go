package searchindex

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

type MemoryConfig struct {
	Dimension int
	M         int
	EfSearch  int
	// Below this many live entries, or when a tenant filter is in play and the
	// graph cannot satisfy it, searches scan exactly.
	ExactScanThreshold int
}

func DefaultMemoryConfig(dim int) MemoryConfig {
	return MemoryConfig{Dimension: dim, M: 16, EfSearch: 64, ExactScanThreshold: 2048}
}

// MemoryStore keeps the index in process memory on top of an HNSW graph.
// Replaced and deleted nodes are orphaned rather than removed from the graph;
// the graph is rebuilt once orphans outnumber live nodes.
type MemoryStore struct {
	log *logger.Logger
	cfg MemoryConfig

	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	nextKey uint64
	byKey   map[search.Key]uint64
	live    map[uint64]*memEntry
}

type memEntry struct {
	entry search.IndexEntry
	unit  []float32
}

func NewMemoryStore(log *logger.Logger, cfg MemoryConfig) *MemoryStore {
	if cfg.M <= 0 {
		cfg.M = 16
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = 64
	}
	if cfg.ExactScanThreshold <= 0 {
		cfg.ExactScanThreshold = 2048
	}
	s := &MemoryStore{
		log:   log.With("repo", "MemoryIndexStore"),
		cfg:   cfg,
		byKey: map[search.Key]uint64{},
		live:  map[uint64]*memEntry{},
	}
	s.graph = s.newGraph()
	return s
}

func (s *MemoryStore) newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = s.cfg.M
	g.EfSearch = s.cfg.EfSearch
	g.Ml = 0.25
	return g
}

func (s *MemoryStore) Upsert(ctx context.Context, entry *search.IndexEntry) error {
	if entry == nil {
		return nil
	}
	vec := entry.Embedding.Slice()
	if err := checkDim(s.cfg.Dimension, vec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored := *entry
	stored.Embedding = pgvector.NewVector(append([]float32(nil), vec...))
	stored.UpdatedAt = now
	if old, ok := s.byKey[entry.Key()]; ok {
		prev := s.live[old]
		stored.ID = prev.entry.ID
		stored.CreatedAt = prev.entry.CreatedAt
		delete(s.live, old)
	} else {
		if stored.ID == uuid.Nil {
			stored.ID = uuid.New()
		}
		stored.CreatedAt = now
	}
	entry.ID = stored.ID

	unit := normalized(vec)
	key := s.nextKey
	s.nextKey++
	s.graph.Add(hnsw.MakeNode(key, unit))
	s.byKey[stored.Key()] = key
	s.live[key] = &memEntry{entry: stored, unit: unit}
	s.maybeCompactLocked()
	return nil
}

func (s *MemoryStore) GetByKey(ctx context.Context, t search.EntityType, id uuid.UUID) (*search.IndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.byKey[search.Key{EntityType: t, EntityID: id}]
	if !ok {
		return nil, nil
	}
	out := s.live[key].entry
	return &out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, t search.EntityType, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(search.Key{EntityType: t, EntityID: id})
	return nil
}

func (s *MemoryStore) deleteLocked(k search.Key) bool {
	key, ok := s.byKey[k]
	if !ok {
		return false
	}
	delete(s.byKey, k)
	delete(s.live, key)
	return true
}

func (s *MemoryStore) BulkDelete(ctx context.Context, t search.EntityType, ids []uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if s.deleteLocked(search.Key{EntityType: t, EntityID: id}) {
			n++
		}
	}
	s.maybeCompactLocked()
	return n, nil
}

func (s *MemoryStore) ListKeys(ctx context.Context, t search.EntityType) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []uuid.UUID
	for k := range s.byKey {
		if k.EntityType == t {
			out = append(out, k.EntityID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context, q NearestQuery) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, e := range s.live {
		if q.visible(e.entry.OrganizationID) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ClearHashes(ctx context.Context, types []search.EntityType) (int64, error) {
	want := map[search.EntityType]bool{}
	for _, t := range types {
		want[t] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.live {
		if len(want) == 0 || want[e.entry.EntityType] {
			e.entry.ContentHash = ""
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) SearchNearest(ctx context.Context, query []float32, q NearestQuery) ([]search.Hit, error) {
	if err := checkDim(s.cfg.Dimension, query); err != nil {
		return nil, err
	}
	if q.Limit <= 0 || q.empty() {
		return []search.Hit{}, nil
	}
	unit := normalized(query)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.live) == 0 {
		return []search.Hit{}, nil
	}

	var hits []search.Hit
	if len(s.live) > s.cfg.ExactScanThreshold {
		hits = s.graphSearchLocked(unit, q)
	}
	if len(hits) < q.Limit && len(hits) < s.visibleCountLocked(q) {
		hits = s.exactSearchLocked(unit, q)
	}
	sortHits(hits)
	if len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

// graphSearchLocked widens k until enough in-scope live nodes come back or the
// graph is exhausted.
func (s *MemoryStore) graphSearchLocked(unit []float32, q NearestQuery) []search.Hit {
	total := s.graph.Len()
	k := q.Limit * 4
	for {
		if k > total {
			k = total
		}
		nodes := s.graph.Search(unit, k)
		hits := make([]search.Hit, 0, q.Limit)
		for _, n := range nodes {
			e, ok := s.live[n.Key]
			if !ok || !q.admits(&e.entry) {
				continue
			}
			hits = append(hits, search.Hit{Entry: e.entry, Score: distanceToScore(float64(hnsw.CosineDistance(unit, e.unit)))})
		}
		if len(hits) >= q.Limit || k >= total || k >= 8*q.Limit*4 {
			return hits
		}
		k *= 2
	}
}

func (s *MemoryStore) exactSearchLocked(unit []float32, q NearestQuery) []search.Hit {
	hits := make([]search.Hit, 0, q.Limit)
	for _, e := range s.live {
		if !q.admits(&e.entry) {
			continue
		}
		hits = append(hits, search.Hit{Entry: e.entry, Score: distanceToScore(cosineDistance(unit, e.unit))})
	}
	return hits
}

func (s *MemoryStore) visibleCountLocked(q NearestQuery) int {
	if q.AllOrganizations && q.ModelTag == "" {
		return len(s.live)
	}
	n := 0
	for _, e := range s.live {
		if q.admits(&e.entry) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) maybeCompactLocked() {
	orphans := s.graph.Len() - len(s.live)
	if orphans < 1024 || orphans <= len(s.live) {
		return
	}
	g := s.newGraph()
	for key, e := range s.live {
		g.Add(hnsw.MakeNode(key, e.unit))
	}
	s.graph = g
	s.log.Debug("compacted hnsw graph", "live", len(s.live), "dropped", orphans)
}

func sortHits(hits []search.Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Entry.EntityID.String() < hits[j].Entry.EntityID.String()
	})
}

func normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	var sum float64
	for _, x := range out {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range out {
		out[i] *= inv
	}
	return out
}

// cosineDistance on unit vectors. A zero vector is treated as orthogonal.
func cosineDistance(a, b []float32) float64 {
	var dot float64
	var na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/math.Sqrt(na*nb)
}

var _ IndexStore = (*MemoryStore)(nil)
