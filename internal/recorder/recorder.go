// Package recorder records learning outcomes and updates learning statistics.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/retrolearn/internal/ids"
	"github.com/roach88/retrolearn/internal/learning"
	"github.com/roach88/retrolearn/internal/observability"
	"github.com/roach88/retrolearn/internal/syncutil"
)

// ErrInvalidOutcome is returned for an outcome other than success, failure
// or partial.
var ErrInvalidOutcome = errors.New("invalid outcome")

// Repository persists an application and the statistics derived from it in
// one atomic step. update receives the row as read inside the transaction.
type Repository interface {
	RecordApplication(ctx context.Context, app learning.Application, update func(current learning.Learning) learning.Stats) (learning.Learning, error)
}

// Recorder appends applications and recomputes success rate and confidence.
//
// Thread-safety: Record is safe for concurrent use. Calls for the same
// learning are serialized in process; the repository transaction covers
// writers in other processes.
type Recorder struct {
	repo       Repository
	locks      *syncutil.KeyedMutex
	ids        ids.Generator
	now        func() time.Time
	logger     *slog.Logger
	metrics    *observability.Metrics
	onRecorded []func(learning.Learning)
}

// Option configures a Recorder.
type Option func(*Recorder)

func WithIDGenerator(g ids.Generator) Option {
	return func(r *Recorder) { r.ids = g }
}

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// OnRecorded registers a hook called after each committed outcome, e.g. to
// drop cached candidates whose statistics are now stale.
func OnRecorded(fn func(learning.Learning)) Option {
	return func(r *Recorder) { r.onRecorded = append(r.onRecorded, fn) }
}

// New creates a Recorder writing to repo.
func New(repo Repository, opts ...Option) *Recorder {
	r := &Recorder{
		repo:   repo,
		locks:  syncutil.NewKeyedMutex(),
		ids:    ids.UUIDv7Generator{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends an application of learningID within unitID and returns the
// learning with its updated statistics.
func (r *Recorder) Record(ctx context.Context, learningID, unitID string, outcome learning.Outcome, note string) (learning.Learning, error) {
	if strings.TrimSpace(learningID) == "" {
		return learning.Learning{}, fmt.Errorf("record outcome: learning id is required")
	}
	if !outcome.Valid() {
		return learning.Learning{}, fmt.Errorf("record outcome %q: %w", outcome, ErrInvalidOutcome)
	}

	ctx, span := observability.StartSpan(ctx, "recorder.Record",
		attribute.String("learning_id", learningID),
		attribute.String("unit_id", unitID),
		attribute.String("outcome", string(outcome)),
	)
	updated, err := r.record(ctx, learningID, unitID, outcome, note)
	observability.EndSpanWithError(span, err)
	return updated, err
}

func (r *Recorder) record(ctx context.Context, learningID, unitID string, outcome learning.Outcome, note string) (learning.Learning, error) {
	unlock := r.locks.Lock(learningID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return learning.Learning{}, err
	}

	app := learning.Application{
		ID:         r.ids.Generate(),
		LearningID: learningID,
		UnitID:     unitID,
		Outcome:    outcome,
		Context:    note,
		AppliedAt:  r.now().UTC(),
	}

	var before learning.Stats
	updated, err := r.repo.RecordApplication(ctx, app, func(current learning.Learning) learning.Stats {
		before = current.Stats()
		return learning.ApplyOutcome(before, outcome)
	})
	if err != nil {
		return learning.Learning{}, fmt.Errorf("record outcome: %w", err)
	}

	r.metrics.ObserveOutcome(string(outcome))
	r.logger.Info("outcome recorded",
		"learning_id", learningID,
		"unit_id", unitID,
		"outcome", outcome,
		"application_count", updated.ApplicationCount,
		"success_rate", updated.SuccessRate,
		"confidence", updated.ConfidenceScore,
		"confidence_before", before.ConfidenceScore,
	)

	for _, fn := range r.onRecorded {
		fn(updated)
	}
	return updated, nil
}
