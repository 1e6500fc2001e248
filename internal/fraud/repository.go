package fraud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/richxcame/order-risk/internal/risk"
	"github.com/shopspring/decimal"
)

// Repository stores order history and assessments in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

var (
	_ OrderHistory    = (*Repository)(nil)
	_ BaselineSource  = (*Repository)(nil)
	_ AssessmentStore = (*Repository)(nil)
)

// NewRepository creates a new fraud repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SaveOrder upserts an order into the customer's history. The resolved
// order value is stored alongside the raw lines so averages stay in SQL.
func (r *Repository) SaveOrder(ctx context.Context, order risk.Order) error {
	value, err := risk.OrderValue(order)
	if err != nil {
		value = 0
	}

	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	addressJSON, err := marshalNullable(order.DeliveryAddress)
	if err != nil {
		return fmt.Errorf("encode delivery address: %w", err)
	}
	paymentJSON, err := marshalNullable(order.PaymentMethod)
	if err != nil {
		return fmt.Errorf("encode payment method: %w", err)
	}

	query := `
		INSERT INTO customer_orders (
			id, customer_id, created_at, total, delivery_address, payment_method, items
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			created_at = EXCLUDED.created_at,
			total = EXCLUDED.total,
			delivery_address = EXCLUDED.delivery_address,
			payment_method = EXCLUDED.payment_method,
			items = EXCLUDED.items
	`

	_, err = r.db.Exec(ctx, query,
		order.ID,
		order.CustomerID,
		order.CreatedAt,
		decimal.NewFromFloat(value).Round(2),
		addressJSON,
		paymentJSON,
		itemsJSON,
	)
	return err
}

// RecentOrders returns the customer's latest orders, newest first.
func (r *Repository) RecentOrders(ctx context.Context, customerID string, limit int) ([]risk.Order, error) {
	query := `
		SELECT id, customer_id, created_at, total, delivery_address, payment_method, items
		FROM customer_orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]risk.Order, 0)
	for rows.Next() {
		var o risk.Order
		var total decimal.Decimal
		var addressJSON, paymentJSON, itemsJSON []byte

		if err := rows.Scan(
			&o.ID,
			&o.CustomerID,
			&o.CreatedAt,
			&total,
			&addressJSON,
			&paymentJSON,
			&itemsJSON,
		); err != nil {
			return nil, err
		}

		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, fmt.Errorf("decode items of order %s: %w", o.ID, err)
		}
		if len(addressJSON) > 0 {
			o.DeliveryAddress = &risk.Address{}
			if err := json.Unmarshal(addressJSON, o.DeliveryAddress); err != nil {
				return nil, fmt.Errorf("decode address of order %s: %w", o.ID, err)
			}
		}
		if len(paymentJSON) > 0 {
			o.PaymentMethod = &risk.PaymentMethod{}
			if err := json.Unmarshal(paymentJSON, o.PaymentMethod); err != nil {
				return nil, fmt.Errorf("decode payment method of order %s: %w", o.ID, err)
			}
		}
		v := total.InexactFloat64()
		o.Total = &v

		orders = append(orders, o)
	}

	return orders, rows.Err()
}

// AverageOrderValue returns the mean stored order total, or nil when the
// customer has no orders.
func (r *Repository) AverageOrderValue(ctx context.Context, customerID string) (*float64, error) {
	query := `SELECT AVG(total)::float8 FROM customer_orders WHERE customer_id = $1`

	var avg *float64
	if err := r.db.QueryRow(ctx, query, customerID).Scan(&avg); err != nil {
		return nil, err
	}
	return avg, nil
}

// Record inserts an assessment.
func (r *Repository) Record(ctx context.Context, a *Assessment) error {
	resultJSON, err := json.Marshal(a.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	query := `
		INSERT INTO risk_assessments (
			id, order_id, customer_id, risk_score, risk_level, flags_raised, result,
			requires_review, notify_security, matched_rules, degraded, degraded_reasons,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.Exec(ctx, query,
		a.ID,
		a.OrderID,
		a.CustomerID,
		a.Result.RiskScore,
		string(a.Result.RiskLevel),
		signalNames(a.Result.FlagsRaised),
		resultJSON,
		a.Review.RequiresReview,
		a.Review.NotifySecurity,
		nonNil(a.Review.MatchedRules),
		a.Degraded,
		nonNil(a.DegradedReasons),
		a.CreatedAt,
	)
	return err
}

const assessmentColumns = `
	id, order_id, customer_id, result, requires_review, notify_security,
	matched_rules, degraded, degraded_reasons, created_at
`

// GetByOrderID returns the latest assessment of an order.
func (r *Repository) GetByOrderID(ctx context.Context, orderID string) (*Assessment, error) {
	query := `SELECT ` + assessmentColumns + `
		FROM risk_assessments
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	a, err := scanAssessment(r.db.QueryRow(ctx, query, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAssessmentNotFound
	}
	return a, err
}

// ListByCustomer returns a page of a customer's assessments, newest first.
func (r *Repository) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*Assessment, int, error) {
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM risk_assessments WHERE customer_id = $1`, customerID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + assessmentColumns + `
		FROM risk_assessments
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, customerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	assessments := make([]*Assessment, 0)
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, 0, err
		}
		assessments = append(assessments, a)
	}

	return assessments, total, rows.Err()
}

func scanAssessment(row pgx.Row) (*Assessment, error) {
	var a Assessment
	var resultJSON []byte
	var createdAt time.Time

	if err := row.Scan(
		&a.ID,
		&a.OrderID,
		&a.CustomerID,
		&resultJSON,
		&a.Review.RequiresReview,
		&a.Review.NotifySecurity,
		&a.Review.MatchedRules,
		&a.Degraded,
		&a.DegradedReasons,
		&createdAt,
	); err != nil {
		return nil, err
	}

	a.Result = &risk.RiskResult{}
	if err := json.Unmarshal(resultJSON, a.Result); err != nil {
		return nil, fmt.Errorf("decode result of order %s: %w", a.OrderID, err)
	}
	if len(a.DegradedReasons) == 0 {
		a.DegradedReasons = nil
	}
	a.CreatedAt = createdAt
	return &a, nil
}

func marshalNullable(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case *risk.Address:
		if t == nil {
			return nil, nil
		}
	case *risk.PaymentMethod:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func signalNames(signals []risk.Signal) []string {
	names := make([]string, 0, len(signals))
	for _, s := range signals {
		names = append(names, s.String())
	}
	return names
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
