// Package service is the caller-facing boundary of the learning subsystem.
//
// It wires the scorer, adjuster, recorder and maintenance scheduler over
// one store and applies the fail-open policy: planning never fails because
// learnings are unavailable.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/retrolearn/internal/adjust"
	"github.com/roach88/retrolearn/internal/config"
	"github.com/roach88/retrolearn/internal/ids"
	"github.com/roach88/retrolearn/internal/learning"
	"github.com/roach88/retrolearn/internal/maintenance"
	"github.com/roach88/retrolearn/internal/observability"
	"github.com/roach88/retrolearn/internal/recorder"
	"github.com/roach88/retrolearn/internal/scoring"
	"github.com/roach88/retrolearn/internal/store"
	"github.com/roach88/retrolearn/internal/workflow"
)

// ErrUnavailable classifies persistence failures on the read path.
var ErrUnavailable = scoring.ErrUnavailable

// ReasonLearningsUnavailable is the result reason when an adjustment ran
// without learnings because they could not be fetched.
const ReasonLearningsUnavailable = "learnings unavailable"

// Service implements get_relevant_learnings, adjust_workflow,
// record_outcome and run_maintenance.
type Service struct {
	store     *store.Store
	scorer    *scoring.Scorer
	adjuster  *adjust.Adjuster
	recorder  *recorder.Recorder
	scheduler *maintenance.Scheduler

	adjustCandidates int
	ids              ids.Generator
	now              func() time.Time
	logger           *slog.Logger
}

type options struct {
	now     func() time.Time
	ids     ids.Generator
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures a Service.
type Option func(*options)

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithIDGenerator(g ids.Generator) Option {
	return func(o *options) { o.ids = g }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New wires a Service over st using cfg.
func New(st *store.Store, cfg *config.Config, opts ...Option) *Service {
	o := options{
		now:    time.Now,
		ids:    ids.UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	scorer := scoring.New(st,
		scoring.WithRelevanceFloor(cfg.Scoring.RelevanceFloor),
		scoring.WithCandidateLimit(cfg.Scoring.CandidateLimit),
		scoring.WithDefaultLimit(cfg.Scoring.DefaultLimit),
		scoring.WithFetchTimeout(cfg.Scoring.FetchTimeout),
		scoring.WithCacheTTL(cfg.Scoring.CacheTTL),
		scoring.WithClock(o.now),
		scoring.WithLogger(o.logger.With("component", "scoring")),
		scoring.WithMetrics(o.metrics),
	)

	adjuster := adjust.New(st,
		adjust.WithMaxStepsPerRequest(cfg.Adjust.MaxStepsPerRequest),
		adjust.WithMaxAdjustmentsPerUnit(cfg.Adjust.MaxAdjustmentsPerUnit),
		adjust.WithMaxDepth(cfg.Adjust.MaxDepth),
		adjust.WithIDGenerator(o.ids),
		adjust.WithClock(o.now),
		adjust.WithLogger(o.logger.With("component", "adjust")),
		adjust.WithMetrics(o.metrics),
	)

	rec := recorder.New(st,
		recorder.WithIDGenerator(o.ids),
		recorder.WithClock(o.now),
		recorder.WithLogger(o.logger.With("component", "recorder")),
		recorder.WithMetrics(o.metrics),
		recorder.OnRecorded(func(learning.Learning) { scorer.Invalidate() }),
	)

	sched := maintenance.New(st,
		maintenance.WithPolicy(maintenance.PolicyFromConfig(cfg.Maintenance)),
		maintenance.WithInterval(cfg.Maintenance.Interval),
		maintenance.WithLease(st, cfg.Maintenance.LeaseTTL),
		maintenance.WithClock(o.now),
		maintenance.WithLogger(o.logger.With("component", "maintenance")),
		maintenance.WithMetrics(o.metrics),
		maintenance.AfterRun(func(maintenance.Report) { scorer.Invalidate() }),
	)

	return &Service{
		store:            st,
		scorer:           scorer,
		adjuster:         adjuster,
		recorder:         rec,
		scheduler:        sched,
		adjustCandidates: cfg.Scoring.DefaultLimit,
		ids:              o.ids,
		now:              o.now,
		logger:           o.logger,
	}
}

// Scheduler returns the maintenance scheduler for periodic runs.
func (s *Service) Scheduler() *maintenance.Scheduler {
	return s.scheduler
}

// Relevant is the result of GetRelevantLearnings.
type Relevant struct {
	Learnings []scoring.Scored `json:"learnings"`

	// Degraded is set when candidates could not be fetched and the empty
	// list is a fail-open fallback.
	Degraded bool   `json:"degraded,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// GetRelevantLearnings ranks learnings for a planning context. Store
// failures yield an empty, degraded result rather than an error; only
// invalid input is an error.
func (s *Service) GetRelevantLearnings(ctx context.Context, pc learning.PlanningContext, limit int) (Relevant, error) {
	if err := validateContext(pc); err != nil {
		return Relevant{}, err
	}
	if limit < 0 {
		return Relevant{}, fmt.Errorf("limit must be >= 0, got %d", limit)
	}

	ranked, err := s.scorer.Relevant(ctx, pc, limit)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return Relevant{Learnings: ranked, Degraded: true, Reason: err.Error()}, nil
		}
		return Relevant{}, err
	}
	return Relevant{Learnings: ranked}, nil
}

// AdjustWorkflow re-scores learnings for pc and adjusts base for unitID.
// Only an invalid base graph (adjust.PreconditionError) or a cancelled
// context returns an error; every other outcome is a Result.
func (s *Service) AdjustWorkflow(ctx context.Context, base *workflow.Graph, unitID string, pc learning.PlanningContext) (adjust.Result, error) {
	if strings.TrimSpace(unitID) == "" {
		return adjust.Result{}, fmt.Errorf("unit of work id is required")
	}
	if base == nil {
		return adjust.Result{}, fmt.Errorf("base workflow is required")
	}
	if err := validateContext(pc); err != nil {
		return adjust.Result{}, err
	}

	relevant, err := s.GetRelevantLearnings(ctx, pc, s.adjustCandidates)
	if err != nil {
		return adjust.Result{}, err
	}

	ranked := make([]learning.Learning, len(relevant.Learnings))
	for i, sc := range relevant.Learnings {
		ranked[i] = sc.Learning
	}

	res, err := s.adjuster.Adjust(ctx, base, ranked, unitID)
	if err == nil && relevant.Degraded && res.Reason == adjust.ReasonNoChanges {
		res.Reason = ReasonLearningsUnavailable
	}
	return res, err
}

// RecordOutcome records one application of a learning.
func (s *Service) RecordOutcome(ctx context.Context, learningID, unitID, outcome, note string) (learning.Learning, error) {
	o, err := learning.ParseOutcome(outcome)
	if err != nil {
		return learning.Learning{}, fmt.Errorf("%w: %w", recorder.ErrInvalidOutcome, err)
	}
	return s.recorder.Record(ctx, learningID, unitID, o, note)
}

// RunMaintenance performs one maintenance pass.
func (s *Service) RunMaintenance(ctx context.Context) (maintenance.Report, error) {
	return s.scheduler.RunOnce(ctx)
}

// AddLearning indexes a new learning. Zero statistics are initialized the
// way a freshly indexed learning starts, and the decay factor reflects the
// learning's age at indexing time.
func (s *Service) AddLearning(ctx context.Context, l learning.Learning) (learning.Learning, error) {
	l = s.prepare(l)
	if err := s.store.InsertLearning(ctx, l); err != nil {
		return learning.Learning{}, err
	}
	s.scorer.Invalidate()
	s.logger.Info("learning indexed", "learning_id", l.ID, "category", l.Category)
	return l, nil
}

// ImportLearnings indexes a batch, skipping ids that already exist.
func (s *Service) ImportLearnings(ctx context.Context, ls []learning.Learning) (int, error) {
	prepared := make([]learning.Learning, len(ls))
	for i, l := range ls {
		prepared[i] = s.prepare(l)
	}
	n, err := s.store.ImportLearnings(ctx, prepared)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.scorer.Invalidate()
	}
	s.logger.Info("learnings imported", "inserted", n, "skipped", len(ls)-n)
	return n, nil
}

func (s *Service) prepare(l learning.Learning) learning.Learning {
	if l.ID == "" {
		l.ID = s.ids.Generate()
	}
	if l.IndexedAt.IsZero() {
		l.IndexedAt = s.now()
	}
	l.IndexedAt = l.IndexedAt.UTC()
	if l.ApplicationCount == 0 && l.ConfidenceScore == 0 {
		l.ConfidenceScore = learning.InitialConfidence
	}
	if l.Successes == 0 {
		l.Successes = l.Stats().DerivedSuccesses()
	}
	if l.DecayFactor == 0 {
		l.DecayFactor = learning.Decay(learning.AgeDays(l.IndexedAt, s.now()))
	}
	l.Tags = learning.NormalizeTags(l.Tags)
	l.Active = true
	return l
}

// GetLearning returns one learning by id.
func (s *Service) GetLearning(ctx context.Context, id string) (learning.Learning, error) {
	return s.store.GetLearning(ctx, id)
}

// ListLearnings lists stored learnings.
func (s *Service) ListLearnings(ctx context.Context, opts store.ListOptions) ([]learning.Learning, error) {
	return s.store.ListLearnings(ctx, opts)
}

// Applications lists the recorded outcomes of one learning, oldest first.
func (s *Service) Applications(ctx context.Context, learningID string) ([]learning.Application, error) {
	return s.store.ListApplications(ctx, learningID)
}

// AdjustmentHistory returns the committed adjustment records of a unit.
func (s *Service) AdjustmentHistory(ctx context.Context, unitID string) ([]adjust.Record, error) {
	return s.store.ListAdjustments(ctx, unitID)
}

func validateContext(pc learning.PlanningContext) error {
	if !pc.ScaleLevel.Valid() {
		return fmt.Errorf("scale level %d out of range", pc.ScaleLevel)
	}
	for _, c := range pc.Categories {
		if !c.Valid() {
			return fmt.Errorf("invalid category %d", int(c))
		}
	}
	return nil
}
