// Package testutil holds in-process fakes for the indexing collaborators.
package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/google/uuid"

	"github.com/yungbote/itvault-backend/internal/domain/assets"
	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/modules/indexing"
)

const FakeDimension = 64

// FakeProvider embeds text as a hashed bag of words. Texts sharing words land
// close together, which is enough to exercise ranking.
type FakeProvider struct {
	ModelName string
	Dim       int

	mu    sync.Mutex
	calls int
	texts []string
	// errs is consumed one per call before any vector is produced.
	errs []error
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{ModelName: "fake-embed", Dim: FakeDimension}
}

func (p *FakeProvider) Model() string  { return p.ModelName }
func (p *FakeProvider) Dimension() int { return p.Dim }

// FailNext queues errors returned by the next calls, in order.
func (p *FakeProvider) FailNext(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, errs...)
}

func (p *FakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *FakeProvider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts...)
}

func (p *FakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.calls++
	p.texts = append(p.texts, text)
	var err error
	if len(p.errs) > 0 {
		err, p.errs = p.errs[0], p.errs[1:]
	}
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return BagOfWords(text, p.Dim), nil
}

// BagOfWords hashes lowercase words into dim buckets and L2-normalizes.
func BagOfWords(text string, dim int) []float32 {
	vec := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[int(h.Sum32())%dim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}

// StaticProviders always hands out the same provider, or Err when set.
type StaticProviders struct {
	P   indexing.EmbeddingProvider
	Err error
}

func (s *StaticProviders) Provider(ctx context.Context) (indexing.EmbeddingProvider, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if s.P == nil {
		return nil, indexing.ErrEmbeddingsNotConfigured
	}
	return s.P, nil
}

// Flag is a toggleable indexing switch. The zero value reports enabled.
type Flag struct{ off atomic.Bool }

func (f *Flag) Set(enabled bool) { f.off.Store(!enabled) }

func (f *Flag) IsIndexingEnabled(ctx context.Context) bool { return !f.off.Load() }

// FakeEntities is an in-memory entity source keyed by (type, id).
type FakeEntities struct {
	mu   sync.RWMutex
	byID map[search.Key]assets.Entity
	Err  error
}

func NewFakeEntities() *FakeEntities {
	return &FakeEntities{byID: map[search.Key]assets.Entity{}}
}

func (f *FakeEntities) Put(e assets.Entity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[search.Key{EntityType: e.SearchEntityType(), EntityID: e.GetID()}] = e
}

func (f *FakeEntities) Remove(t search.EntityType, id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, search.Key{EntityType: t, EntityID: id})
}

func (f *FakeEntities) LoadSnapshot(ctx context.Context, t search.EntityType, id uuid.UUID) (assets.Entity, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.byID[search.Key{EntityType: t, EntityID: id}]
	if !ok {
		return nil, nil
	}
	return e, nil
}

// IDs lists stored ids for t, enabled only when enabledOnly is set.
func (f *FakeEntities) IDs(t search.EntityType, enabledOnly bool) []uuid.UUID {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []uuid.UUID
	for k, e := range f.byID {
		if k.EntityType != t || (enabledOnly && !e.IsEnabled()) {
			continue
		}
		out = append(out, k.EntityID)
	}
	return out
}

// NewDocument builds an enabled document with a fresh id.
func NewDocument(org uuid.UUID, name, content string) *assets.Document {
	d := &assets.Document{Content: content}
	d.ID = uuid.New()
	d.OrganizationID = org
	d.Name = name
	d.Enabled = true
	return d
}

func NewPassword(org uuid.UUID, name, username, url, notes string) *assets.Password {
	p := &assets.Password{Username: username, URL: url, Notes: notes}
	p.ID = uuid.New()
	p.OrganizationID = org
	p.Name = name
	p.Enabled = true
	return p
}

func NewConfiguration(org uuid.UUID, name, serial, manufacturer, model, notes string) *assets.Configuration {
	c := &assets.Configuration{SerialNumber: serial, Manufacturer: manufacturer, Model: model, Notes: notes}
	c.ID = uuid.New()
	c.OrganizationID = org
	c.Name = name
	c.Enabled = true
	return c
}
