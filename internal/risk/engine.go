package risk

import (
	"time"

	"github.com/richxcame/order-risk/pkg/logger"
	"go.uber.org/zap"
)

// Engine evaluates orders against the six fraud signals. It holds no
// per-call state and is safe for concurrent use.
type Engine struct {
	source ConfigSource
	logger *zap.Logger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used to report fail-open evaluations.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the clock used to stamp RiskResult.EvaluatedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine that reads one config snapshot from source per
// evaluation.
func NewEngine(source ConfigSource, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		logger: logger.Get(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type evaluateOptions struct {
	baseline      *float64
	referenceTime time.Time
}

// EvaluateOption tunes a single evaluation.
type EvaluateOption func(*evaluateOptions)

// WithBaseline supplies the customer's typical order value. Without it the
// mean of the history is used.
func WithBaseline(v float64) EvaluateOption {
	return func(o *evaluateOptions) {
		o.baseline = &v
	}
}

// WithReferenceTime sets the "now" the velocity window ends at. It defaults
// to the order's CreatedAt so that results only depend on the inputs.
func WithReferenceTime(t time.Time) EvaluateOption {
	return func(o *evaluateOptions) {
		o.referenceTime = t
	}
}

// Evaluate scores an order against the customer's history using the current
// config snapshot.
//
// The returned result is never nil. If evaluation fails internally, the
// result is the zero low-risk result and err is an *EvaluationError; a
// scoring defect must not block an order.
func (e *Engine) Evaluate(order Order, history []Order, opts ...EvaluateOption) (result *RiskResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = e.failOpen(order.ID, nil, r)
		}
	}()

	if e.source == nil {
		return e.failOpen(order.ID, ErrNoConfig, nil)
	}
	return e.EvaluateWith(e.source.Current(), order, history, opts...)
}

// EvaluateWith is Evaluate against an explicit config snapshot.
func (e *Engine) EvaluateWith(cfg Config, order Order, history []Order, opts ...EvaluateOption) (result *RiskResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = e.failOpen(order.ID, nil, r)
		}
	}()

	var o evaluateOptions
	for _, opt := range opts {
		opt(&o)
	}
	now := o.referenceTime
	if now.IsZero() {
		now = order.CreatedAt
	}

	in := &evaluation{
		order:    order,
		history:  history,
		cfg:      cfg,
		baseline: o.baseline,
		now:      now,
	}

	details := make(map[Signal]FlagDetail, signalCount)
	flags := make([]Signal, 0, signalCount)
	for _, s := range evaluationOrder {
		d := detectorFor(s)(in)
		if !d.Raised {
			d = FlagDetail{}
		}
		details[s] = d
		if d.Raised {
			flags = append(flags, s)
		}
	}

	score := Aggregate(details)
	return &RiskResult{
		OrderID:     order.ID,
		RiskScore:   score,
		RiskLevel:   Classify(score, cfg),
		FlagsRaised: flags,
		Details:     details,
		EvaluatedAt: e.now(),
	}, nil
}

func (e *Engine) failOpen(orderID string, cause error, recovered interface{}) (*RiskResult, error) {
	evalErr := &EvaluationError{OrderID: orderID, Cause: cause, Panic: recovered}
	e.logger.Error("Risk evaluation failed, returning low-risk result",
		zap.String("order_id", orderID),
		zap.Error(evalErr),
	)
	return ZeroResult(orderID, e.now()), evalErr
}
