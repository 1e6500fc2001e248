package risk

import (
	"time"
)

// Address is a delivery address. Only ZipCode and Number take part in
// equality checks, see SameAddress.
type Address struct {
	Street       string `json:"street,omitempty"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	ZipCode      string `json:"zip_code"`
}

// SameAddress reports whether two addresses are the same delivery point.
// Both must carry a non-empty zip code and number, and both must match.
func SameAddress(a, b *Address) bool {
	if a == nil || b == nil {
		return false
	}
	sameZip := a.ZipCode != "" && b.ZipCode != "" && a.ZipCode == b.ZipCode
	sameNumber := a.Number != "" && b.Number != "" && a.Number == b.Number
	return sameZip && sameNumber
}

// PaymentMethod identifies how an order was paid, e.g. "credit_card", "pix",
// "money", optionally narrowed to a provider-side identifier.
type PaymentMethod struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// String renders the method as "type", "id" or "type:id".
func (p PaymentMethod) String() string {
	if p.ID == "" {
		return p.Type
	}
	if p.Type == "" {
		return p.ID
	}
	return p.Type + ":" + p.ID
}

// ItemOption is an extra charge attached to a line item.
type ItemOption struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// OrderItem is a single order line.
type OrderItem struct {
	ProductID string       `json:"product_id,omitempty"`
	Name      string       `json:"name,omitempty"`
	UnitPrice float64      `json:"unit_price" validate:"gte=0"`
	Quantity  int          `json:"quantity" validate:"gte=0"`
	Options   []ItemOption `json:"options,omitempty"`
}

// Order is a placed order, either the one being evaluated or one from the
// customer's history.
type Order struct {
	ID              string         `json:"id" validate:"required"`
	CustomerID      string         `json:"customer_id,omitempty" validate:"required"`
	CreatedAt       time.Time      `json:"created_at"`
	Items           []OrderItem    `json:"items" validate:"dive"`
	DeliveryAddress *Address       `json:"delivery_address,omitempty"`
	PaymentMethod   *PaymentMethod `json:"payment_method,omitempty"`
	// Total is a pre-computed order value. When set it is used instead of
	// resolving the items.
	Total *float64 `json:"total,omitempty" validate:"omitempty,gte=0"`
}

// FlagDetail is the outcome of one signal.
type FlagDetail struct {
	Raised bool    `json:"raised"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// RiskResult is the outcome of evaluating a single order. Details always
// holds an entry for every signal, raised or not.
type RiskResult struct {
	OrderID     string                `json:"order_id"`
	RiskScore   float64               `json:"risk_score"`
	RiskLevel   RiskLevel             `json:"risk_level"`
	FlagsRaised []Signal              `json:"flags_raised"`
	Details     map[Signal]FlagDetail `json:"details"`
	EvaluatedAt time.Time             `json:"evaluated_at"`
}

// HasFlag reports whether the given signal was raised.
func (r *RiskResult) HasFlag(s Signal) bool {
	return r.Details[s].Raised
}

// Clone returns a deep copy of the result.
func (r *RiskResult) Clone() *RiskResult {
	if r == nil {
		return nil
	}
	out := *r
	out.FlagsRaised = append(make([]Signal, 0, len(r.FlagsRaised)), r.FlagsRaised...)
	out.Details = make(map[Signal]FlagDetail, len(r.Details))
	for k, v := range r.Details {
		out.Details[k] = v
	}
	return &out
}

// ZeroResult is the harmless low-risk result: score 0, nothing raised.
func ZeroResult(orderID string, evaluatedAt time.Time) *RiskResult {
	details := make(map[Signal]FlagDetail, signalCount)
	for _, s := range evaluationOrder {
		details[s] = FlagDetail{}
	}
	return &RiskResult{
		OrderID:     orderID,
		RiskScore:   0,
		RiskLevel:   RiskLevelLow,
		FlagsRaised: []Signal{},
		Details:     details,
		EvaluatedAt: evaluatedAt,
	}
}
