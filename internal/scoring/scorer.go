package scoring

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/retrolearn/internal/learning"
	"github.com/roach88/retrolearn/internal/observability"
)

// Relevance weights. They sum to 1.0.
const (
	WeightBaseRelevance = 0.30
	WeightSuccessRate   = 0.20
	WeightConfidence    = 0.20
	WeightDecay         = 0.15
	WeightSimilarity    = 0.15
)

const (
	// DefaultRelevanceFloor drops candidates scoring below it.
	DefaultRelevanceFloor = 0.2

	// DefaultCandidateLimit caps how many candidates are fetched per request.
	DefaultCandidateLimit = 50

	// DefaultLimit is the number of ranked learnings returned when the caller
	// does not ask for a specific count.
	DefaultLimit = 5

	// DefaultFetchTimeout bounds the candidate fetch.
	DefaultFetchTimeout = 250 * time.Millisecond

	// neutralBaseRelevance is used when there is nothing to derive relevance from.
	neutralBaseRelevance = 0.5
)

// ErrUnavailable reports that candidates could not be fetched. Callers treat
// it as fail-open: planning continues without learnings.
var ErrUnavailable = errors.New("learning store unavailable")

// CandidateSource fetches active candidate learnings.
type CandidateSource interface {
	ListCandidates(ctx context.Context, f learning.Filter) ([]learning.Learning, error)
}

// Scored is a learning together with its relevance for one planning context.
type Scored struct {
	Learning   learning.Learning `json:"learning"`
	Score      float64           `json:"score"`
	Similarity float64           `json:"similarity"`
}

// Scorer ranks candidate learnings for a planning context.
type Scorer struct {
	source         CandidateSource
	cache          *candidateCache
	floor          float64
	candidateLimit int
	defaultLimit   int
	fetchTimeout   time.Duration
	now            func() time.Time
	logger         *slog.Logger
	metrics        *observability.Metrics
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithRelevanceFloor overrides DefaultRelevanceFloor.
func WithRelevanceFloor(floor float64) Option {
	return func(s *Scorer) { s.floor = floor }
}

// WithCandidateLimit overrides DefaultCandidateLimit.
func WithCandidateLimit(n int) Option {
	return func(s *Scorer) { s.candidateLimit = n }
}

// WithDefaultLimit overrides DefaultLimit.
func WithDefaultLimit(n int) Option {
	return func(s *Scorer) { s.defaultLimit = n }
}

// WithFetchTimeout overrides DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Scorer) { s.fetchTimeout = d }
}

// WithCacheTTL enables candidate caching for the given duration.
// A zero or negative ttl disables the cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Scorer) {
		if ttl <= 0 {
			s.cache = nil
			return
		}
		s.cache = newCandidateCache(ttl)
	}
}

// WithClock sets the wall clock used for age computation and cache expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scorer) { s.logger = l }
}

// WithMetrics attaches metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scorer) { s.metrics = m }
}

// New creates a Scorer reading candidates from source.
func New(source CandidateSource, opts ...Option) *Scorer {
	s := &Scorer{
		source:         source,
		floor:          DefaultRelevanceFloor,
		candidateLimit: DefaultCandidateLimit,
		defaultLimit:   DefaultLimit,
		fetchTimeout:   DefaultFetchTimeout,
		now:            time.Now,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache != nil {
		s.cache.now = s.now
	}
	return s
}

// Relevant returns up to limit active learnings relevant to pc, best first.
//
// On a failed candidate fetch it returns an empty, non-nil slice together
// with an error wrapping ErrUnavailable. The empty result is always safe to
// use: planning proceeds without learnings.
func (s *Scorer) Relevant(ctx context.Context, pc learning.PlanningContext, limit int) ([]Scored, error) {
	ctx, span := observability.StartSpan(ctx, "scoring.Relevant",
		attribute.Int("limit", limit),
		attribute.Int("scale_level", int(pc.ScaleLevel)),
		attribute.String("project_type", pc.ProjectType),
	)
	start := time.Now()

	if limit <= 0 {
		limit = s.defaultLimit
	}

	candidates, err := s.fetch(ctx, pc)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		s.logger.Warn("candidate fetch failed, continuing without learnings",
			"error", err,
			"project_type", pc.ProjectType,
		)
		s.metrics.ObserveScoring("unavailable", time.Since(start))
		observability.EndSpanWithError(span, err)
		return []Scored{}, err
	}

	ranked := s.Rank(candidates, pc, limit)

	s.logger.Debug("learnings scored",
		"candidates", len(candidates),
		"returned", len(ranked),
		"floor", s.floor,
	)
	s.metrics.ObserveScoring("ok", time.Since(start))
	span.SetAttributes(attribute.Int("candidates", len(candidates)), attribute.Int("returned", len(ranked)))
	observability.EndSpanWithError(span, nil)
	return ranked, nil
}

// Rank scores candidates without any I/O. Inactive, superseded and
// category-incompatible candidates are skipped, scores below the floor are
// dropped, and the remainder is sorted by descending score (ties by id).
func (s *Scorer) Rank(candidates []learning.Learning, pc learning.PlanningContext, limit int) []Scored {
	now := s.now()
	ranked := make([]Scored, 0, len(candidates))
	for _, l := range candidates {
		if !l.Active || l.Superseded() || !compatible(l.Category, pc.Categories) {
			continue
		}
		score, sim := Relevance(l, pc, now)
		if score < s.floor {
			continue
		}
		ranked = append(ranked, Scored{Learning: l, Score: score, Similarity: sim})
	}

	slices.SortStableFunc(ranked, func(a, b Scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Learning.ID, b.Learning.ID)
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Invalidate drops cached candidates so the next request sees fresh statistics.
func (s *Scorer) Invalidate() {
	if s.cache != nil {
		s.cache.invalidate()
	}
}

// Floor returns the configured relevance floor.
func (s *Scorer) Floor() float64 {
	return s.floor
}

func (s *Scorer) fetch(ctx context.Context, pc learning.PlanningContext) ([]learning.Learning, error) {
	filter := learning.Filter{
		Categories: pc.Categories,
		Limit:      s.candidateLimit,
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	load := func(ctx context.Context) ([]learning.Learning, error) {
		return s.source.ListCandidates(ctx, filter)
	}

	if s.cache == nil {
		return load(fetchCtx)
	}
	candidates, hit, err := s.cache.get(fetchCtx, filterKey(filter), s.fetchTimeout, load)
	s.metrics.ObserveCandidateCache(hit)
	return candidates, err
}

// Relevance computes the additive relevance score and the context
// similarity for one learning.
//
// The stored decay_factor is used when set. Learnings from sources that
// never assigned one (zero factor) fall back to decay by age.
func Relevance(l learning.Learning, pc learning.PlanningContext, now time.Time) (score, similarity float64) {
	similarity = Similarity(l, pc)

	decay := l.DecayFactor
	if decay <= 0 {
		decay = learning.Decay(learning.AgeDays(l.IndexedAt, now))
	}

	score = WeightBaseRelevance*BaseRelevance(l, pc) +
		WeightSuccessRate*clamp01(l.SuccessRate) +
		WeightConfidence*clamp01(l.ConfidenceScore) +
		WeightDecay*clamp01(decay) +
		WeightSimilarity*similarity
	return clamp01(score), similarity
}

// BaseRelevance returns the learning's relevance hint when one was indexed,
// and otherwise derives it from how many of the context's tags the learning
// covers.
func BaseRelevance(l learning.Learning, pc learning.PlanningContext) float64 {
	if l.BaseRelevance > 0 {
		return clamp01(l.BaseRelevance)
	}

	want := learning.NormalizeTags(pc.Tags)
	if len(want) == 0 {
		return neutralBaseRelevance
	}
	have := learning.NormalizeTags(l.Tags)
	covered := 0
	for _, t := range want {
		if _, found := slices.BinarySearch(have, t); found {
			covered++
		}
	}
	return neutralBaseRelevance + (1-neutralBaseRelevance)*float64(covered)/float64(len(want))
}

func compatible(c learning.Category, allowed []learning.Category) bool {
	return len(allowed) == 0 || slices.Contains(allowed, c)
}
