package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/retrolearn/internal/ids"
	"github.com/roach88/retrolearn/internal/learning"
	"github.com/roach88/retrolearn/internal/observability"
	"github.com/roach88/retrolearn/internal/store"
)

// LeaseName is the lease row maintenance runs hold.
const LeaseName = "maintenance"

// ErrRunInProgress is returned by RunOnce when another run holds the job.
var ErrRunInProgress = errors.New("maintenance run already in progress")

// Report counts the changes made by one run.
type Report struct {
	Decayed     int `json:"decayed"`
	Deactivated int `json:"deactivated"`
	Superseded  int `json:"superseded"`
	Pruned      int `json:"pruned"`
}

func (r Report) changes() map[string]int {
	return map[string]int{
		"decayed":     r.Decayed,
		"deactivated": r.Deactivated,
		"superseded":  r.Superseded,
		"pruned":      r.Pruned,
	}
}

// Repository is the learning store as seen by maintenance.
type Repository interface {
	ActiveLearnings(ctx context.Context) ([]learning.Learning, error)
	UpdateDecayFactors(ctx context.Context, factors map[string]float64) (int, error)
	Deactivate(ctx context.Context, ids []string, guard store.DeactivationGuard) ([]string, error)
	Supersede(ctx context.Context, links []learning.Supersession, margin float64) ([]learning.Supersession, error)
	PruneApplications(ctx context.Context, before time.Time) (int, error)
}

// Lease is a cross-process exclusive lock with expiry.
type Lease interface {
	AcquireLease(ctx context.Context, name, holder string, ttl time.Duration) error
	ReleaseLease(ctx context.Context, name, holder string) error
}

// Scheduler runs maintenance on demand or on a fixed interval.
//
// Thread-safety: RunOnce may be called concurrently; at most one call
// does work, the others return ErrRunInProgress.
type Scheduler struct {
	repo     Repository
	lease    Lease
	policy   Policy
	interval time.Duration
	leaseTTL time.Duration
	holder   string

	mu        sync.Mutex
	now       func() time.Time
	logger    *slog.Logger
	metrics   *observability.Metrics
	afterRuns []func(Report)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithPolicy(p Policy) Option {
	return func(s *Scheduler) { s.policy = p }
}

// WithInterval sets the period used by Start.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithLease enables cross-process exclusion through l.
func WithLease(l Lease, ttl time.Duration) Option {
	return func(s *Scheduler) {
		s.lease = l
		s.leaseTTL = ttl
	}
}

// WithHolder sets the lease holder id. Defaults to a fresh UUIDv7.
func WithHolder(id string) Option {
	return func(s *Scheduler) { s.holder = id }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// AfterRun registers a hook called with the report of every run that made
// changes.
func AfterRun(fn func(Report)) Option {
	return func(s *Scheduler) { s.afterRuns = append(s.afterRuns, fn) }
}

// New creates a Scheduler over repo.
func New(repo Repository, opts ...Option) *Scheduler {
	s := &Scheduler{
		repo:     repo,
		policy:   DefaultPolicy(),
		interval: 24 * time.Hour,
		leaseTTL: time.Hour,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.holder == "" {
		s.holder = ids.UUIDv7Generator{}.Generate()
	}
	return s
}

// Start runs maintenance once immediately and then every interval until
// ctx is cancelled. Run failures are logged and do not stop the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("maintenance scheduler started", "interval", s.interval, "holder", s.holder)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.runLogged(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("maintenance scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runLogged(ctx context.Context) {
	_, err := s.RunOnce(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrRunInProgress), errors.Is(err, store.ErrLeaseHeld):
		s.logger.Debug("maintenance run skipped", "reason", err)
	case ctx.Err() != nil:
	default:
		s.logger.Error("maintenance run failed", "error", err)
	}
}

// RunOnce performs one maintenance pass. Steps run in order (decay,
// deactivate, supersede, prune); a failed step is logged and the rest still
// run. The returned report counts what was changed, and the error joins any
// step failures.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	if !s.mu.TryLock() {
		s.metrics.ObserveMaintenance("skipped", 0, nil)
		return Report{}, ErrRunInProgress
	}
	defer s.mu.Unlock()

	if s.lease != nil {
		if err := s.lease.AcquireLease(ctx, LeaseName, s.holder, s.leaseTTL); err != nil {
			s.metrics.ObserveMaintenance("skipped", 0, nil)
			return Report{}, fmt.Errorf("acquire maintenance lease: %w", err)
		}
		defer func() {
			// Release on a fresh context so a cancelled run still frees the lease.
			if err := s.lease.ReleaseLease(context.WithoutCancel(ctx), LeaseName, s.holder); err != nil {
				s.logger.Warn("release maintenance lease", "error", err)
			}
		}()
	}

	ctx, span := observability.StartSpan(ctx, "maintenance.RunOnce",
		attribute.String("holder", s.holder))
	start := time.Now()

	report, err := s.run(ctx)

	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.ObserveMaintenance(result, time.Since(start), report.changes())
	span.SetAttributes(
		attribute.Int("decayed", report.Decayed),
		attribute.Int("deactivated", report.Deactivated),
		attribute.Int("superseded", report.Superseded),
		attribute.Int("pruned", report.Pruned),
	)
	observability.EndSpanWithError(span, err)

	s.logger.Info("maintenance run complete",
		"decayed", report.Decayed,
		"deactivated", report.Deactivated,
		"superseded", report.Superseded,
		"pruned", report.Pruned,
		"duration", time.Since(start),
		"error", err,
	)
	if report != (Report{}) {
		for _, fn := range s.afterRuns {
			fn(report)
		}
	}
	return report, err
}

func (s *Scheduler) run(ctx context.Context) (Report, error) {
	var (
		report Report
		errs   []error
	)
	now := s.now().UTC()

	active, err := s.repo.ActiveLearnings(ctx)
	if err != nil {
		// Pruning does not depend on the learning list.
		errs = append(errs, fmt.Errorf("load active learnings: %w", err))
	} else {
		if n, err := s.decay(ctx, active, now); err != nil {
			errs = append(errs, s.stepFailed("decay", err))
		} else {
			report.Decayed = n
		}

		deactivated, err := s.deactivate(ctx, active)
		if err != nil {
			errs = append(errs, s.stepFailed("deactivate", err))
		}
		report.Deactivated = len(deactivated)

		if n, err := s.supersede(ctx, active, deactivated); err != nil {
			errs = append(errs, s.stepFailed("supersede", err))
		} else {
			report.Superseded = n
		}
	}

	if ctx.Err() == nil && s.policy.Retention > 0 {
		n, err := s.repo.PruneApplications(ctx, now.Add(-s.policy.Retention))
		if err != nil {
			errs = append(errs, s.stepFailed("prune", err))
		}
		report.Pruned = n
	}

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return report, errors.Join(errs...)
}

func (s *Scheduler) stepFailed(step string, err error) error {
	s.logger.Error("maintenance step failed", "step", step, "error", err)
	return fmt.Errorf("%s: %w", step, err)
}

func (s *Scheduler) decay(ctx context.Context, active []learning.Learning, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	factors := make(map[string]float64, len(active))
	for _, l := range active {
		factors[l.ID] = learning.Decay(learning.AgeDays(l.IndexedAt, now))
	}
	return s.repo.UpdateDecayFactors(ctx, factors)
}

func (s *Scheduler) deactivate(ctx context.Context, active []learning.Learning) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var candidates []string
	for _, l := range active {
		if s.policy.ShouldDeactivate(l) {
			candidates = append(candidates, l.ID)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	done, err := s.repo.Deactivate(ctx, candidates, store.DeactivationGuard{
		MaxConfidence:   s.policy.DeactivateConfidence,
		MaxSuccessRate:  s.policy.DeactivateSuccessRate,
		MinApplications: s.policy.MinApplications,
	})
	for _, id := range done {
		s.logger.Info("learning deactivated", "learning_id", id)
	}
	return done, err
}

func (s *Scheduler) supersede(ctx context.Context, active []learning.Learning, deactivated []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	gone := make(map[string]bool, len(deactivated))
	for _, id := range deactivated {
		gone[id] = true
	}
	remaining := make([]learning.Learning, 0, len(active))
	for _, l := range active {
		if !gone[l.ID] {
			remaining = append(remaining, l)
		}
	}

	plan := s.policy.PlanSupersessions(remaining)
	if len(plan) == 0 {
		return 0, nil
	}
	done, err := s.repo.Supersede(ctx, plan, s.policy.SupersedeMargin)
	for _, link := range done {
		s.logger.Info("learning superseded", "learning_id", link.OldID, "replaced_by", link.NewID)
	}
	return len(done), err
}
