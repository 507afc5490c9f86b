package indexing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/sethvargo/go-retry"

	"github.com/yungbote/itvault-backend/internal/domain/assets"
	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/observability"
	"github.com/yungbote/itvault-backend/internal/platform/logger"
)

// EmbeddingProvider turns one text into one vector. Implementations make a
// single attempt per call; retry policy lives in the Indexer.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimension() int
}

// ProviderSource hands out a provider built from current configuration.
// It returns ErrEmbeddingsNotConfigured when no usable credentials exist.
type ProviderSource interface {
	Provider(ctx context.Context) (EmbeddingProvider, error)
}

type IndexingFlag interface {
	IsIndexingEnabled(ctx context.Context) bool
}

// EntitySource loads live entity state. A missing entity is (nil, nil).
type EntitySource interface {
	LoadSnapshot(ctx context.Context, t search.EntityType, id uuid.UUID) (assets.Entity, error)
}

// Store is the slice of the index store the pipeline writes through.
type Store interface {
	Upsert(ctx context.Context, entry *search.IndexEntry) error
	GetByKey(ctx context.Context, t search.EntityType, id uuid.UUID) (*search.IndexEntry, error)
	Delete(ctx context.Context, t search.EntityType, id uuid.UUID) error
}

type Outcome string

const (
	OutcomeIndexed         Outcome = "indexed"
	OutcomeUnchanged       Outcome = "unchanged"
	OutcomeRemoved         Outcome = "removed"
	OutcomeSkippedDisabled Outcome = "skipped_disabled"
	OutcomeSkippedConfig   Outcome = "skipped_config"
	OutcomeSkippedTooLong  Outcome = "skipped_too_long"
	OutcomeSkippedEmpty    Outcome = "skipped_empty"
)

type RetryPolicy struct {
	Attempts    int
	Base        time.Duration
	Max         time.Duration
	CallTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 5, Base: 500 * time.Millisecond, Max: 30 * time.Second, CallTimeout: 30 * time.Second}
}

func (p RetryPolicy) backoff() retry.Backoff {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	base := p.Base
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	b := retry.NewExponential(base)
	b = retry.WithJitterPercent(10, b)
	if p.Max > 0 {
		b = retry.WithCappedDuration(p.Max, b)
	}
	return retry.WithMaxRetries(uint64(attempts-1), b)
}

// ModelTag identifies the embedding space a vector lives in.
func ModelTag(model string, dimension int) string {
	return fmt.Sprintf("%s@%d", strings.TrimSpace(model), dimension)
}

type IndexerDeps struct {
	Log       *logger.Logger
	Flag      IndexingFlag
	Entities  EntitySource
	Providers ProviderSource
	Store     Store
	Retry     RetryPolicy
}

// Indexer runs extract → hash → compare → embed → upsert for one entity key.
type Indexer struct {
	log       *logger.Logger
	flag      IndexingFlag
	entities  EntitySource
	providers ProviderSource
	store     Store
	retry     RetryPolicy
}

func NewIndexer(deps IndexerDeps) (*Indexer, error) {
	if deps.Log == nil || deps.Flag == nil || deps.Entities == nil || deps.Providers == nil || deps.Store == nil {
		return nil, fmt.Errorf("indexer: missing deps")
	}
	if err := ValidateRegistry(); err != nil {
		return nil, err
	}
	rp := deps.Retry
	if rp.Attempts <= 0 {
		rp = DefaultRetryPolicy()
	}
	return &Indexer{
		log:       deps.Log.With("component", "Indexer"),
		flag:      deps.Flag,
		entities:  deps.Entities,
		providers: deps.Providers,
		store:     deps.Store,
		retry:     rp,
	}, nil
}

// maxIndexRounds bounds how often one job re-runs while the entity keeps changing.
const maxIndexRounds = 3

// Index brings the stored entry for (t, id) in line with live entity state.
// Errors wrapped with ErrPermanent must not be redelivered.
func (ix *Indexer) Index(ctx context.Context, t search.EntityType, id uuid.UUID) (Outcome, error) {
	out, err := ix.converge(ctx, t, id)
	if err == nil {
		observability.Current().IncIndexOutcome(string(t), string(out))
	}
	return out, err
}

// converge re-reads the entity after every write. Concurrent jobs for one key
// may write in any order; the job whose write followed a newer commit sees
// the change here and writes again, so the row ends at the latest state.
func (ix *Indexer) converge(ctx context.Context, t search.EntityType, id uuid.UUID) (Outcome, error) {
	for round := 1; ; round++ {
		out, wrote, err := ix.index(ctx, t, id)
		if err != nil || wrote == "" {
			return out, err
		}
		ent, err := ix.entities.LoadSnapshot(ctx, t, id)
		if err != nil {
			return "", fmt.Errorf("recheck %s %s: %w", t, id, err)
		}
		now, err := snapshotState(ent)
		if err != nil {
			return "", Permanent(err)
		}
		if now == wrote {
			return out, nil
		}
		if round >= maxIndexRounds {
			return "", fmt.Errorf("%s %s kept changing during indexing", t, id)
		}
		ix.log.Debug("entity changed while indexing; re-running", "entity_type", t, "entity_id", id, "round", round)
	}
}

// snapshotState identifies what an entry derived from ent would hold.
func snapshotState(ent assets.Entity) (string, error) {
	if ent == nil || !ent.IsEnabled() {
		return "absent", nil
	}
	text, err := ExtractSearchableText(ent)
	if err != nil {
		return "", err
	}
	return ent.GetOrganizationID().String() + ":" + ContentHash(text), nil
}

// index runs one pass. wrote is the snapshot state behind any store write, or
// empty when the store was not touched.
func (ix *Indexer) index(ctx context.Context, t search.EntityType, id uuid.UUID) (out Outcome, wrote string, err error) {
	if !t.Valid() {
		return "", "", Permanent(fmt.Errorf("unknown entity type %q", t))
	}
	if !ix.flag.IsIndexingEnabled(ctx) {
		ix.log.Debug("indexing disabled; dropping job", "entity_type", t, "entity_id", id)
		return OutcomeSkippedDisabled, "", nil
	}

	ent, err := ix.entities.LoadSnapshot(ctx, t, id)
	if err != nil {
		return "", "", fmt.Errorf("load %s %s: %w", t, id, err)
	}
	if ent == nil || !ent.IsEnabled() {
		if err := ix.store.Delete(ctx, t, id); err != nil {
			return "", "", fmt.Errorf("delete %s %s: %w", t, id, err)
		}
		return OutcomeRemoved, "absent", nil
	}

	text, err := ExtractSearchableText(ent)
	if err != nil {
		return "", "", Permanent(err)
	}
	hash := ContentHash(text)
	state := ent.GetOrganizationID().String() + ":" + hash
	if strings.TrimSpace(text) == "" {
		if err := ix.store.Delete(ctx, t, id); err != nil {
			return "", "", fmt.Errorf("delete %s %s: %w", t, id, err)
		}
		return OutcomeSkippedEmpty, state, nil
	}

	provider, err := ix.providers.Provider(ctx)
	if errors.Is(err, ErrEmbeddingsNotConfigured) {
		ix.log.Info("embeddings not configured; skipping", "entity_type", t, "entity_id", id)
		return OutcomeSkippedConfig, "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("embedding provider: %w", err)
	}
	tag := ModelTag(provider.Model(), provider.Dimension())

	existing, err := ix.store.GetByKey(ctx, t, id)
	if err != nil {
		return "", "", fmt.Errorf("get %s %s: %w", t, id, err)
	}
	if existing != nil && existing.ContentHash == hash && existing.EmbeddingModel == tag {
		if existing.OrganizationID == ent.GetOrganizationID() {
			return OutcomeUnchanged, "", nil
		}
		// Moved between organizations; the vector is still valid.
		existing.OrganizationID = ent.GetOrganizationID()
		if err := ix.store.Upsert(ctx, existing); err != nil {
			return "", "", fmt.Errorf("upsert %s %s: %w", t, id, err)
		}
		return OutcomeUnchanged, state, nil
	}

	vec, err := ix.embed(ctx, provider, text)
	switch {
	case errors.Is(err, ErrTextTooLong):
		ix.log.Warn("searchable text too long for provider; skipping", "entity_type", t, "entity_id", id, "chars", len(text))
		return OutcomeSkippedTooLong, "", nil
	case errors.Is(err, ErrEmbeddingsNotConfigured):
		ix.log.Info("embeddings not configured; skipping", "entity_type", t, "entity_id", id)
		return OutcomeSkippedConfig, "", nil
	case err != nil:
		return "", "", err
	}
	if len(vec) != provider.Dimension() {
		return "", "", Permanent(fmt.Errorf("%w: provider returned %d, want %d", ErrDimensionMismatch, len(vec), provider.Dimension()))
	}

	entry := &search.IndexEntry{
		OrganizationID: ent.GetOrganizationID(),
		EntityType:     t,
		EntityID:       id,
		ContentHash:    hash,
		Embedding:      pgvector.NewVector(vec),
		SearchableText: text,
		EmbeddingModel: tag,
	}
	if err := ix.store.Upsert(ctx, entry); err != nil {
		return "", "", fmt.Errorf("upsert %s %s: %w", t, id, err)
	}
	return OutcomeIndexed, state, nil
}

// Remove deletes the entry for (t, id). Absent entries are not an error.
func (ix *Indexer) Remove(ctx context.Context, t search.EntityType, id uuid.UUID) (Outcome, error) {
	if err := ix.store.Delete(ctx, t, id); err != nil {
		return "", fmt.Errorf("delete %s %s: %w", t, id, err)
	}
	observability.Current().IncIndexOutcome(string(t), string(OutcomeRemoved))
	return OutcomeRemoved, nil
}

// embed retries transient provider failures with capped exponential backoff.
// Only a fully successful call yields a vector; nothing is written before that.
func (ix *Indexer) embed(ctx context.Context, p EmbeddingProvider, text string) ([]float32, error) {
	var (
		vec     []float32
		attempt int
	)
	err := retry.Do(ctx, ix.retry.backoff(), func(ctx context.Context) error {
		attempt++
		callCtx := ctx
		if ix.retry.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, ix.retry.CallTimeout)
			defer cancel()
		}
		v, err := p.Embed(callCtx, text)
		if err == nil {
			vec = v
			return nil
		}
		if errors.Is(err, ErrProviderTransient) {
			ix.log.Warn("embedding attempt failed; will retry", "attempt", attempt, "max_attempts", ix.retry.Attempts, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return vec, nil
	}
	if errors.Is(err, ErrProviderTransient) {
		return nil, Permanent(fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err))
	}
	if errors.Is(err, ErrProviderAuth) || errors.Is(err, ErrProviderInvalid) {
		return nil, Permanent(err)
	}
	return nil, err
}
