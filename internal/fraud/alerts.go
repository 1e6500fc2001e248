package fraud

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/richxcame/order-risk/internal/risk"
	"github.com/richxcame/order-risk/pkg/logger"
	"go.uber.org/zap"
)

// AlertEventType is the type tag of alerts sent to the security team.
const AlertEventType = "fraud.order.high_risk"

// AlertEvent is the payload published for assessments that need the
// security team.
type AlertEvent struct {
	Type         string         `json:"type"`
	AssessmentID uuid.UUID      `json:"assessment_id"`
	OrderID      string         `json:"order_id"`
	CustomerID   string         `json:"customer_id"`
	RiskScore    float64        `json:"risk_score"`
	RiskLevel    risk.RiskLevel `json:"risk_level"`
	FlagsRaised  []risk.Signal  `json:"flags_raised"`
	MatchedRules []string       `json:"matched_rules"`
	Degraded     bool           `json:"degraded"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// AlertPublisher delivers security alerts.
type AlertPublisher interface {
	PublishHighRisk(ctx context.Context, a *Assessment) error
}

// MessagePublisher is the part of a NATS connection alerts need.
type MessagePublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSPublisher publishes alerts as JSON on a NATS subject.
type NATSPublisher struct {
	conn    MessagePublisher
	subject string
}

var _ AlertPublisher = (*NATSPublisher)(nil)

// NewNATSPublisher creates a publisher on subject.
func NewNATSPublisher(conn MessagePublisher, subject string) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: subject}
}

// PublishHighRisk sends the alert, tagging it with the request's
// correlation ID when there is one.
func (p *NATSPublisher) PublishHighRisk(ctx context.Context, a *Assessment) error {
	msg, err := newAlertMsg(ctx, p.subject, a)
	if err != nil {
		return err
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish alert for order %s: %w", a.OrderID, err)
	}
	return nil
}

func newAlertMsg(ctx context.Context, subject string, a *Assessment) (*nats.Msg, error) {
	event := AlertEvent{
		Type:         AlertEventType,
		AssessmentID: a.ID,
		OrderID:      a.OrderID,
		CustomerID:   a.CustomerID,
		RiskScore:    a.Result.RiskScore,
		RiskLevel:    a.Result.RiskLevel,
		FlagsRaised:  a.Result.FlagsRaised,
		MatchedRules: nonNil(a.Review.MatchedRules),
		Degraded:     a.Degraded,
		OccurredAt:   a.CreatedAt,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode alert: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")
	msg.Header.Set(nats.MsgIdHdr, a.ID.String())
	if id := logger.CorrelationID(ctx); id != "" {
		msg.Header.Set("X-Request-ID", id)
	}
	return msg, nil
}

// LogPublisher writes alerts to the log. It stands in when no broker is
// configured.
type LogPublisher struct{}

func (LogPublisher) PublishHighRisk(ctx context.Context, a *Assessment) error {
	logger.WithContext(ctx).Warn("High risk order needs security review",
		zap.String("order_id", a.OrderID),
		zap.String("customer_id", a.CustomerID),
		zap.Float64("risk_score", a.Result.RiskScore),
		zap.Strings("matched_rules", a.Review.MatchedRules),
	)
	return nil
}

// ConnectNATS dials the broker and logs connection state changes.
func ConnectNATS(url, clientName string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
}
