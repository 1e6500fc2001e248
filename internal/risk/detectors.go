package risk

import (
	"fmt"
	"math"
	"time"
)

const (
	velocityWindow     = 24 * time.Hour
	minHistoryForTime  = 3
	hourPatternSpread  = 2
	hourWraparoundDist = 22
)

// evaluation bundles everything a detector may look at. Detectors only read
// from it.
type evaluation struct {
	order    Order
	history  []Order
	cfg      Config
	baseline *float64
	now      time.Time
}

type detector func(in *evaluation) FlagDetail

// detectorFor returns the detector of a signal. The switch has a case for
// every Signal.
func detectorFor(s Signal) detector {
	switch s {
	case SignalMultipleOrders:
		return detectMultipleOrders
	case SignalUnusualAddress:
		return detectUnusualAddress
	case SignalHighValue:
		return detectHighValue
	case SignalUnusualTime:
		return detectUnusualTime
	case SignalUnusualPayment:
		return detectUnusualPayment
	case SignalRapidAddressChange:
		return detectRapidAddressChange
	default:
		panic(fmt.Sprintf("risk: no detector for %v", s))
	}
}

func raised(score float64, reason string) FlagDetail {
	return FlagDetail{Raised: true, Score: score, Reason: reason}
}

// detectMultipleOrders counts history orders placed in the 24 hours before
// the reference time.
func detectMultipleOrders(in *evaluation) FlagDetail {
	if in.now.IsZero() {
		return FlagDetail{}
	}

	cutoff := in.now.Add(-velocityWindow)
	count := 0
	for _, o := range in.history {
		if o.CreatedAt.IsZero() {
			continue
		}
		if o.CreatedAt.After(cutoff) && !o.CreatedAt.After(in.now) {
			count++
		}
	}

	if count < in.cfg.MultipleOrdersThreshold {
		return FlagDetail{}
	}
	return raised(in.cfg.MultipleOrdersWeight,
		fmt.Sprintf("%d pedidos nas últimas 24 horas (limite: %d)", count, in.cfg.MultipleOrdersThreshold))
}

// detectUnusualAddress raises when the delivery address was never used before.
func detectUnusualAddress(in *evaluation) FlagDetail {
	if len(in.history) == 0 || in.order.DeliveryAddress == nil {
		return FlagDetail{}
	}

	for _, o := range in.history {
		if SameAddress(o.DeliveryAddress, in.order.DeliveryAddress) {
			return FlagDetail{}
		}
	}
	return raised(in.cfg.UnusualAddressWeight, "Endereço de entrega nunca usado anteriormente")
}

// detectHighValue compares the order value with the supplied baseline, or
// with the mean of the history when no baseline was given.
func detectHighValue(in *evaluation) FlagDetail {
	value, err := OrderValue(in.order)
	if err != nil {
		return FlagDetail{}
	}

	var baseline float64
	switch {
	case in.baseline != nil:
		baseline = *in.baseline
	case len(in.history) > 0:
		avg, ok := averageOrderValue(in.history)
		if !ok {
			return FlagDetail{}
		}
		baseline = avg
	default:
		return FlagDetail{}
	}
	if !finite(baseline) || baseline <= 0 {
		return FlagDetail{}
	}

	pctAbove := (value - baseline) / baseline * 100
	if pctAbove <= in.cfg.HighValuePercentage {
		return FlagDetail{}
	}
	return raised(in.cfg.HighValueWeight,
		fmt.Sprintf("Valor %d%% acima da média do usuário", int64(math.Round(pctAbove))))
}

// detectUnusualTime raises when no history order was placed within two hours
// of the order's hour of day, wrapping around midnight.
func detectUnusualTime(in *evaluation) FlagDetail {
	if in.order.CreatedAt.IsZero() {
		return FlagDetail{}
	}

	loc := in.cfg.Location()
	hours := make([]int, 0, len(in.history))
	for _, o := range in.history {
		if o.CreatedAt.IsZero() {
			continue
		}
		hours = append(hours, o.CreatedAt.In(loc).Hour())
	}
	if len(hours) < minHistoryForTime {
		return FlagDetail{}
	}

	orderHour := in.order.CreatedAt.In(loc).Hour()
	for _, h := range hours {
		dist := h - orderHour
		if dist < 0 {
			dist = -dist
		}
		if dist <= hourPatternSpread || dist >= hourWraparoundDist {
			return FlagDetail{}
		}
	}
	return raised(in.cfg.UnusualTimeWeight,
		fmt.Sprintf("Pedido realizado em horário atípico (%dh)", orderHour))
}

// detectUnusualPayment raises when the payment method never appears in the
// history.
func detectUnusualPayment(in *evaluation) FlagDetail {
	pm := in.order.PaymentMethod
	if len(in.history) == 0 || pm == nil || (pm.Type == "" && pm.ID == "") {
		return FlagDetail{}
	}

	for _, o := range in.history {
		if o.PaymentMethod != nil && *o.PaymentMethod == *pm {
			return FlagDetail{}
		}
	}
	return raised(in.cfg.UnusualPaymentWeight,
		fmt.Sprintf("Método de pagamento '%s' nunca usado anteriormente", pm))
}

// detectRapidAddressChange raises when the address differs from the one on
// the most recent addressed order and that order is recent enough.
func detectRapidAddressChange(in *evaluation) FlagDetail {
	if len(in.history) == 0 || in.order.DeliveryAddress == nil || in.order.CreatedAt.IsZero() {
		return FlagDetail{}
	}

	var last *Order
	for i := range in.history {
		o := &in.history[i]
		if o.DeliveryAddress == nil || o.CreatedAt.IsZero() {
			continue
		}
		if last == nil || o.CreatedAt.After(last.CreatedAt) {
			last = o
		}
	}
	if last == nil {
		return FlagDetail{}
	}

	if SameAddress(last.DeliveryAddress, in.order.DeliveryAddress) {
		return FlagDetail{}
	}
	gap := in.order.CreatedAt.Sub(last.CreatedAt).Hours()
	if gap >= in.cfg.AddressChangeWindowHours {
		return FlagDetail{}
	}
	return raised(in.cfg.AddressChangeWeight,
		fmt.Sprintf("Mudança de endereço após %.1f horas do último pedido", gap))
}
