package fraud

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/order-risk/internal/review"
	"github.com/richxcame/order-risk/internal/risk"
	"github.com/richxcame/order-risk/internal/riskconfig"
	"github.com/richxcame/order-risk/pkg/logger"
	"github.com/richxcame/order-risk/pkg/resilience"
	"github.com/richxcame/order-risk/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultHistoryLimit is how many past orders feed one evaluation.
const DefaultHistoryLimit = 20

type baselineInvalidator interface {
	Invalidate(ctx context.Context, customerID string) error
}

// Service screens orders: it gathers the customer's history, scores the
// order, applies the review policy and records the outcome. Dependency
// failures degrade the assessment instead of failing the request.
type Service struct {
	config    *riskconfig.Manager
	engine    *risk.Engine
	store     AssessmentStore
	history   OrderHistory
	baselines BaselineSource
	policy    *review.Policy
	alerts    AlertPublisher
	reporter  ErrorReporter

	historyBreaker *resilience.CircuitBreaker
	historyLimit   int
	storeRetry     resilience.RetryConfig

	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithHistory sets where past orders are read from and new ones saved to.
func WithHistory(h OrderHistory) Option {
	return func(s *Service) { s.history = h }
}

// WithBaselineSource sets where customer baselines come from.
func WithBaselineSource(b BaselineSource) Option {
	return func(s *Service) { s.baselines = b }
}

// WithPolicy replaces the default review policy.
func WithPolicy(p *review.Policy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithAlertPublisher sets where security alerts go.
func WithAlertPublisher(p AlertPublisher) Option {
	return func(s *Service) {
		if p != nil {
			s.alerts = p
		}
	}
}

// WithErrorReporter sets where absorbed failures are reported.
func WithErrorReporter(r ErrorReporter) Option {
	return func(s *Service) {
		if r != nil {
			s.reporter = r
		}
	}
}

// WithHistoryBreaker guards history lookups with b.
func WithHistoryBreaker(b *resilience.CircuitBreaker) Option {
	return func(s *Service) {
		if b != nil {
			s.historyBreaker = b
		}
	}
}

// WithHistoryLimit caps how many past orders are loaded.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithStoreRetry sets the retry policy for recording assessments.
func WithStoreRetry(cfg resilience.RetryConfig) Option {
	return func(s *Service) { s.storeRetry = cfg }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used to stamp assessments.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a screening service on top of the given config manager
// and assessment store.
func NewService(manager *riskconfig.Manager, store AssessmentStore, opts ...Option) *Service {
	s := &Service{
		config:       manager,
		store:        store,
		policy:       review.DefaultPolicy(),
		alerts:       LogPublisher{},
		reporter:     LogReporter{},
		historyLimit: DefaultHistoryLimit,
		storeRetry:   resilience.FastRetryConfig(),
		logger:       logger.Get(),
		tracer:       tracing.Tracer("fraud"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.historyBreaker == nil {
		s.historyBreaker = resilience.NewCircuitBreaker(
			resilience.Settings{Name: "order-history"},
			resilience.GracefulDegradation("order-history"),
		)
	}
	s.engine = risk.NewEngine(manager, risk.WithLogger(s.logger), risk.WithClock(s.now))
	return s
}

// ScreenOrder scores one order and records the assessment. Only invalid
// requests fail; every other problem yields a degraded assessment.
func (s *Service) ScreenOrder(ctx context.Context, req *ScreenRequest) (*Assessment, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "fraud.ScreenOrder")
	defer span.End()

	if req == nil {
		req = &ScreenRequest{}
	}
	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid request")
		return nil, err
	}

	order := req.Order
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.now()
	}
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("customer.id", order.CustomerID),
	)
	log := logger.WithContext(ctx).With(
		zap.String("order_id", order.ID),
		zap.String("customer_id", order.CustomerID),
	)

	a := &Assessment{
		ID:         uuid.New(),
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		CreatedAt:  s.now(),
	}

	history := req.History
	if history == nil {
		history = s.loadHistory(ctx, a, order.CustomerID)
	}
	history = excludeOrder(history, order.ID)

	var evalOpts []risk.EvaluateOption
	if baseline := s.resolveBaseline(ctx, a, req); baseline != nil {
		evalOpts = append(evalOpts, risk.WithBaseline(*baseline))
	}

	result, err := s.engine.Evaluate(order, history, evalOpts...)
	if err != nil {
		failOpenTotal.Inc()
		a.degrade(DegradedEvaluationFailed)
		span.RecordError(err)
		s.reporter.Report(ctx, err, map[string]string{"component": "risk_engine", "order_id": order.ID})
	}
	a.Result = result

	decision, err := s.policy.Decide(result)
	if err != nil {
		a.degrade(DegradedReviewFailed)
		s.reporter.Report(ctx, err, map[string]string{"component": "review_policy", "order_id": order.ID})
		decision = review.Decision{MatchedRules: []string{}}
	}
	a.Review = decision

	s.persist(ctx, a)
	if req.History == nil {
		s.rememberOrder(ctx, order)
	}
	if decision.NotifySecurity {
		s.publishAlert(ctx, a)
	}

	recordScreening(a)
	screeningDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Float64("risk.score", result.RiskScore),
		attribute.String("risk.level", string(result.RiskLevel)),
		attribute.Bool("risk.degraded", a.Degraded),
	)

	log.Info("Order screened",
		zap.Float64("risk_score", result.RiskScore),
		zap.String("risk_level", string(result.RiskLevel)),
		zap.Int("flags_raised", len(result.FlagsRaised)),
		zap.Bool("requires_review", decision.RequiresReview),
		zap.Bool("degraded", a.Degraded),
	)
	return a, nil
}

func (s *Service) loadHistory(ctx context.Context, a *Assessment, customerID string) []risk.Order {
	if s.history == nil {
		return nil
	}

	out, err := s.historyBreaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return s.history.RecentOrders(ctx, customerID, s.historyLimit)
	})
	if err != nil {
		a.degrade(DegradedHistoryUnavailable)
		logger.WithContext(ctx).Warn("Order history unavailable, screening without it",
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
		return nil
	}
	orders, _ := out.([]risk.Order)
	return orders
}

// resolveBaseline prefers the baseline carried by the request. A nil return
// lets the engine fall back to the history mean.
func (s *Service) resolveBaseline(ctx context.Context, a *Assessment, req *ScreenRequest) *float64 {
	if req.BaselineOrderValue != nil {
		return req.BaselineOrderValue
	}
	if s.baselines == nil || req.History != nil {
		return nil
	}

	v, err := s.baselines.AverageOrderValue(ctx, req.Order.CustomerID)
	if err != nil {
		a.degrade(DegradedBaselineUnavailable)
		logger.WithContext(ctx).Warn("Customer baseline unavailable",
			zap.String("customer_id", req.Order.CustomerID),
			zap.Error(err),
		)
		return nil
	}
	return v
}

func (s *Service) persist(ctx context.Context, a *Assessment) {
	_, err := resilience.Retry(ctx, s.storeRetry, func(ctx context.Context) (interface{}, error) {
		return nil, s.store.Record(ctx, a)
	})
	if err != nil {
		sideEffectFailures.WithLabelValues("record_assessment").Inc()
		logger.WithContext(ctx).Error("Failed to record assessment",
			zap.String("order_id", a.OrderID),
			zap.Error(err),
		)
		s.reporter.Report(ctx, err, map[string]string{"component": "assessment_store", "order_id": a.OrderID})
	}
}

func (s *Service) rememberOrder(ctx context.Context, order risk.Order) {
	if s.history == nil {
		return
	}
	if err := s.history.SaveOrder(ctx, order); err != nil {
		sideEffectFailures.WithLabelValues("save_order").Inc()
		logger.WithContext(ctx).Warn("Failed to save order to history",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		return
	}
	if inv, ok := s.baselines.(baselineInvalidator); ok {
		if err := inv.Invalidate(ctx, order.CustomerID); err != nil {
			logger.WithContext(ctx).Warn("Failed to invalidate cached baseline",
				zap.String("customer_id", order.CustomerID),
				zap.Error(err),
			)
		}
	}
}

func (s *Service) publishAlert(ctx context.Context, a *Assessment) {
	if err := s.alerts.PublishHighRisk(ctx, a); err != nil {
		sideEffectFailures.WithLabelValues("publish_alert").Inc()
		logger.WithContext(ctx).Error("Failed to publish security alert",
			zap.String("order_id", a.OrderID),
			zap.Error(err),
		)
		s.reporter.Report(ctx, err, map[string]string{"component": "alert_publisher", "order_id": a.OrderID})
	}
}

// excludeOrder drops earlier copies of the order being screened, so a
// re-screen does not count the order against itself.
func excludeOrder(history []risk.Order, orderID string) []risk.Order {
	out := make([]risk.Order, 0, len(history))
	for _, o := range history {
		if o.ID != orderID {
			out = append(out, o)
		}
	}
	return out
}

// GetAssessment returns the latest assessment of an order.
func (s *Service) GetAssessment(ctx context.Context, orderID string) (*Assessment, error) {
	a, err := s.store.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get assessment of order %s: %w", orderID, err)
	}
	return a, nil
}

// ListCustomerAssessments pages through a customer's assessments.
func (s *Service) ListCustomerAssessments(ctx context.Context, customerID string, limit, offset int) ([]*Assessment, int, error) {
	assessments, total, err := s.store.ListByCustomer(ctx, customerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list assessments of customer %s: %w", customerID, err)
	}
	return assessments, total, nil
}

// CurrentConfig returns the active risk configuration.
func (s *Service) CurrentConfig() risk.Config {
	return s.config.Current()
}

// UpdateConfig patches the active risk configuration.
func (s *Service) UpdateConfig(ctx context.Context, patch risk.ConfigPatch) (risk.Config, error) {
	cfg, err := s.config.Update(patch)
	if err != nil {
		return cfg, err
	}
	logger.WithContext(ctx).Info("Risk config updated over API")
	return cfg, nil
}

// ApplyProfile switches the active configuration to a named profile.
func (s *Service) ApplyProfile(ctx context.Context, name string) (risk.Config, error) {
	cfg, err := s.config.ApplyProfile(name)
	if err != nil {
		return cfg, err
	}
	logger.WithContext(ctx).Info("Risk profile applied", zap.String("profile", name))
	return cfg, nil
}
