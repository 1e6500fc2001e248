// Package risk implements order risk scoring.
//
// Every order is evaluated against six independent signals: order velocity,
// delivery address novelty, value above the customer's baseline, time of day,
// payment method novelty and rapid address change. Raised signals contribute
// their configured weight to a score clamped to [0, 100], which is then mapped
// to a low/medium/high tier. The package performs no I/O.
package risk

import (
	"fmt"
)

// Signal identifies one of the fraud signals the engine evaluates.
type Signal int

const (
	SignalMultipleOrders Signal = iota
	SignalUnusualAddress
	SignalHighValue
	SignalUnusualTime
	SignalUnusualPayment
	SignalRapidAddressChange

	signalCount int = iota
)

// evaluationOrder fixes the order detectors run in, and therefore the order
// of RiskResult.FlagsRaised.
var evaluationOrder = [signalCount]Signal{
	SignalMultipleOrders,
	SignalUnusualAddress,
	SignalHighValue,
	SignalUnusualTime,
	SignalUnusualPayment,
	SignalRapidAddressChange,
}

var signalNames = [signalCount]string{
	SignalMultipleOrders:     "multiple_orders_short_period",
	SignalUnusualAddress:     "unusual_delivery_address",
	SignalHighValue:          "high_value_order",
	SignalUnusualTime:        "unusual_order_time",
	SignalUnusualPayment:     "unusual_payment_method",
	SignalRapidAddressChange: "rapid_address_change",
}

// Signals returns every signal in evaluation order.
func Signals() []Signal {
	out := make([]Signal, signalCount)
	copy(out, evaluationOrder[:])
	return out
}

func (s Signal) valid() bool {
	return s >= 0 && int(s) < signalCount
}

// String returns the wire name of the signal.
func (s Signal) String() string {
	if !s.valid() {
		return fmt.Sprintf("signal(%d)", int(s))
	}
	return signalNames[s]
}

// MarshalText implements encoding.TextMarshaler so signals serialize by name,
// including when used as map keys.
func (s Signal) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("unknown signal %d", int(s))
	}
	return []byte(signalNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Signal) UnmarshalText(text []byte) error {
	parsed, err := ParseSignal(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSignal resolves a wire name to its Signal.
func ParseSignal(name string) (Signal, error) {
	for i, n := range signalNames {
		if n == name {
			return Signal(i), nil
		}
	}
	return 0, fmt.Errorf("unknown signal %q", name)
}

// RiskLevel is the tier an order is classified into.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// MaxRiskScore is the ceiling every aggregated score is clamped to.
const MaxRiskScore = 100.0
