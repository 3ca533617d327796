package adjust

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/retrolearn/internal/ids"
	"github.com/roach88/retrolearn/internal/learning"
	"github.com/roach88/retrolearn/internal/observability"
	"github.com/roach88/retrolearn/internal/syncutil"
	"github.com/roach88/retrolearn/internal/workflow"
)

// Default safety bounds.
const (
	DefaultMaxStepsPerRequest    = 3
	DefaultMaxAdjustmentsPerUnit = 3
)

// Result is the outcome of one adjustment request.
//
// When Adjusted is false, Graph is the base graph passed to Adjust (the
// same pointer) and Reason says why.
type Result struct {
	Graph    *workflow.Graph `json:"graph"`
	Adjusted bool            `json:"adjusted"`
	Reason   string          `json:"reason,omitempty"`
	State    State           `json:"state"`
	Records  []Record        `json:"records,omitempty"`
}

// Adjuster applies category rules to workflow graphs within per-request
// and per-unit budgets.
//
// Thread-safety: Adjust is safe for concurrent use. Requests for the same
// unit of work are serialized; different units proceed in parallel.
type Adjuster struct {
	ledger         Ledger
	rules          Rules
	maxSteps       int
	maxAdjustments int
	maxDepth       int
	locks          *syncutil.KeyedMutex
	ids            ids.Generator
	now            func() time.Time
	logger         *slog.Logger
	metrics        *observability.Metrics
}

// Option configures an Adjuster.
type Option func(*Adjuster)

func WithRules(r Rules) Option {
	return func(a *Adjuster) { a.rules = r }
}

// WithMaxStepsPerRequest overrides DefaultMaxStepsPerRequest.
func WithMaxStepsPerRequest(n int) Option {
	return func(a *Adjuster) { a.maxSteps = n }
}

// WithMaxAdjustmentsPerUnit overrides DefaultMaxAdjustmentsPerUnit.
func WithMaxAdjustmentsPerUnit(n int) Option {
	return func(a *Adjuster) { a.maxAdjustments = n }
}

// WithMaxDepth overrides workflow.DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(a *Adjuster) { a.maxDepth = n }
}

func WithIDGenerator(g ids.Generator) Option {
	return func(a *Adjuster) { a.ids = g }
}

func WithClock(now func() time.Time) Option {
	return func(a *Adjuster) { a.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Adjuster) { a.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(a *Adjuster) { a.metrics = m }
}

// New creates an Adjuster recording commits in ledger.
func New(ledger Ledger, opts ...Option) *Adjuster {
	a := &Adjuster{
		ledger:         ledger,
		rules:          DefaultRules(),
		maxSteps:       DefaultMaxStepsPerRequest,
		maxAdjustments: DefaultMaxAdjustmentsPerUnit,
		maxDepth:       workflow.DefaultMaxDepth,
		locks:          syncutil.NewKeyedMutex(),
		ids:            ids.UUIDv7Generator{},
		now:            time.Now,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Adjust applies ranked learnings, best first, to base for unitID.
//
// The only error for a graph problem is a PreconditionError for an invalid
// base. A rejected candidate, an exhausted budget or an unreachable ledger
// all return the base graph with a reason and a nil error. Context
// cancellation before the commit returns the base graph and ctx.Err().
func (a *Adjuster) Adjust(ctx context.Context, base *workflow.Graph, ranked []learning.Learning, unitID string) (Result, error) {
	ctx, span := observability.StartSpan(ctx, "adjust.Adjust",
		attribute.String("unit_id", unitID),
		attribute.Int("learnings", len(ranked)),
	)
	res, err := a.adjust(ctx, base, ranked, unitID)

	added := 0
	if res.Adjusted {
		for _, r := range res.Records {
			if r.Kind == KindAdd {
				added++
			}
		}
	}
	a.metrics.ObserveAdjustment(res.State.String(), added)
	span.SetAttributes(
		attribute.String("state", res.State.String()),
		attribute.Bool("adjusted", res.Adjusted),
	)
	observability.EndSpanWithError(span, err)
	return res, err
}

func (a *Adjuster) adjust(ctx context.Context, base *workflow.Graph, ranked []learning.Learning, unitID string) (Result, error) {
	// ValidatingOriginal
	if errs := base.ValidateWithLimit(a.maxDepth); len(errs) > 0 {
		return Result{Graph: base, State: StateValidatingOriginal}, &PreconditionError{Errors: errs}
	}

	unlock := a.locks.Lock(unitID)
	defer unlock()

	count, err := a.ledger.CountAdjustments(ctx, unitID)
	if err != nil {
		a.logger.Warn("adjustment ledger unavailable, returning base workflow",
			"unit_id", unitID,
			"error", err,
		)
		return a.rollback(base, ReasonLedgerUnavailable), nil
	}
	if count >= a.maxAdjustments {
		a.logger.Info("adjustment budget exhausted",
			"unit_id", unitID,
			"committed", count,
			"limit", a.maxAdjustments,
		)
		return a.rollback(base, ReasonBudgetExhausted), nil
	}

	// Adjusting
	b := base.Edit()
	quota := NewStepQuota(a.maxSteps)
	var records []Record
	for _, l := range ranked {
		if err := ctx.Err(); err != nil {
			return a.rollback(base, ReasonCancelled), err
		}
		rule := a.rules.For(l.Category)
		if rule == nil {
			continue
		}
		changes := rule.Apply(b, l, quota)
		if len(changes) == 0 {
			a.logger.Debug("rule made no changes", "unit_id", unitID, "learning_id", l.ID, "category", l.Category)
		}
		records = append(records, changes...)
		if quota.Exhausted() {
			break
		}
	}
	if len(records) == 0 {
		return a.rollback(base, ReasonNoChanges), nil
	}

	// ValidatingAdjusted
	candidate, err := b.Build()
	if err == nil {
		if errs := candidate.ValidateWithLimit(a.maxDepth); len(errs) > 0 {
			err = errs
		}
	}
	if err != nil {
		reason := "adjusted workflow rejected: " + err.Error()
		a.logger.Warn("adjusted workflow failed validation, rolling back",
			"unit_id", unitID,
			"changes", len(records),
			"error", err,
		)
		return a.rollback(base, reason), nil
	}

	// Commit: the point of no return.
	if err := ctx.Err(); err != nil {
		return a.rollback(base, ReasonCancelled), err
	}
	now := a.now().UTC()
	for i := range records {
		records[i].ID = a.ids.Generate()
		records[i].UnitID = unitID
		records[i].CreatedAt = now
	}
	if err := a.ledger.CommitAdjustments(ctx, unitID, count, a.maxAdjustments, records); err != nil {
		if errors.Is(err, ErrBudgetExhausted) {
			return a.rollback(base, ReasonBudgetExhausted), nil
		}
		a.logger.Warn("adjustment commit failed, returning base workflow",
			"unit_id", unitID,
			"error", err,
		)
		return a.rollback(base, ReasonLedgerUnavailable), nil
	}

	a.logger.Info("workflow adjusted",
		"unit_id", unitID,
		"changes", len(records),
		"steps_added", quota.Used(),
		"adjustment", fmt.Sprintf("%d/%d", count+1, a.maxAdjustments),
	)
	return Result{
		Graph:    candidate,
		Adjusted: true,
		State:    StateCommitted,
		Records:  records,
	}, nil
}

func (a *Adjuster) rollback(base *workflow.Graph, reason string) Result {
	return Result{
		Graph:  base,
		Reason: reason,
		State:  StateRolledBack,
	}
}
