package risk

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// OrderValue resolves the monetary value of an order: the pre-computed Total
// when present, otherwise the sum of unit price times quantity plus option
// charges over every item. Order sources that compute totals themselves must
// use the same rule.
func OrderValue(o Order) (float64, error) {
	if o.Total != nil {
		if !finite(*o.Total) || *o.Total < 0 {
			return 0, fmt.Errorf("%w: order %q has invalid total %v", ErrMalformedOrder, o.ID, *o.Total)
		}
		return *o.Total, nil
	}

	total := decimal.Zero
	for i, item := range o.Items {
		if item.Quantity < 0 {
			return 0, fmt.Errorf("%w: order %q item %d has negative quantity %d", ErrMalformedOrder, o.ID, i, item.Quantity)
		}
		if !finite(item.UnitPrice) || item.UnitPrice < 0 {
			return 0, fmt.Errorf("%w: order %q item %d has invalid unit price %v", ErrMalformedOrder, o.ID, i, item.UnitPrice)
		}
		line := decimal.NewFromFloat(item.UnitPrice).Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)

		for _, opt := range item.Options {
			if !finite(opt.Price) || opt.Price < 0 {
				return 0, fmt.Errorf("%w: order %q item %d option %q has invalid price %v", ErrMalformedOrder, o.ID, i, opt.Name, opt.Price)
			}
			total = total.Add(decimal.NewFromFloat(opt.Price))
		}
	}

	value, _ := total.Float64()
	return value, nil
}

// averageOrderValue is the mean value of the orders that resolve cleanly.
// ok is false when none do.
func averageOrderValue(orders []Order) (avg float64, ok bool) {
	sum := decimal.Zero
	n := 0
	for _, o := range orders {
		v, err := OrderValue(o)
		if err != nil {
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(v))
		n++
	}
	if n == 0 {
		return 0, false
	}
	avg, _ = sum.Div(decimal.NewFromInt(int64(n))).Float64()
	return avg, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
