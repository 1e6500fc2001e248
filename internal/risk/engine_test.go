package risk

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	placedAt    = time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)
	evaluatedAt = time.Date(2025, 6, 15, 14, 0, 5, 0, time.UTC)
	homeAddress = &Address{Street: "Rua das Flores", Number: "10", ZipCode: "00000"}
	workAddress = &Address{Street: "Av. Paulista", Number: "1500", ZipCode: "01310"}
	pix         = &PaymentMethod{Type: "pix"}
)

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	return NewEngine(StaticConfig(cfg),
		WithLogger(zap.NewNop()),
		WithClock(func() time.Time { return evaluatedAt }),
	)
}

// testOrder returns a single-item order paid with pix to the home address.
func testOrder(id string, at time.Time, value float64) Order {
	return Order{
		ID:              id,
		CustomerID:      "customer-1",
		CreatedAt:       at,
		Items:           []OrderItem{{ProductID: "p1", UnitPrice: value, Quantity: 1}},
		DeliveryAddress: homeAddress,
		PaymentMethod:   pix,
	}
}

func assertConsistent(t *testing.T, result *RiskResult) {
	t.Helper()
	require.Len(t, result.Details, len(Signals()))

	sum := 0.0
	var raisedKinds []Signal
	for _, s := range Signals() {
		d, ok := result.Details[s]
		require.True(t, ok, "missing detail for %s", s)
		if d.Raised {
			sum += d.Score
			raisedKinds = append(raisedKinds, s)
		} else {
			assert.Zero(t, d.Score)
			assert.Empty(t, d.Reason)
		}
	}
	if sum > MaxRiskScore {
		sum = MaxRiskScore
	}
	assert.InDelta(t, sum, result.RiskScore, 1e-9)
	assert.GreaterOrEqual(t, result.RiskScore, 0.0)
	assert.LessOrEqual(t, result.RiskScore, MaxRiskScore)
	if len(raisedKinds) == 0 {
		assert.Empty(t, result.FlagsRaised)
	} else {
		assert.Equal(t, raisedKinds, result.FlagsRaised)
	}
}

func TestEvaluateNoHistoryIsLowRisk(t *testing.T) {
	engine := newTestEngine(t, validConfig(t))
	order := testOrder("o-1", placedAt, 100)

	result, err := engine.Evaluate(order, nil)
	require.NoError(t, err)

	assert.Equal(t, "o-1", result.OrderID)
	assert.Equal(t, 0.0, result.RiskScore)
	assert.Equal(t, RiskLevelLow, result.RiskLevel)
	assert.Empty(t, result.FlagsRaised)
	assert.Equal(t, evaluatedAt, result.EvaluatedAt)
	for _, s := range Signals() {
		assert.False(t, result.Details[s].Raised, s.String())
	}
	assertConsistent(t, result)
}

func TestEvaluateMultipleOrdersWithinDay(t *testing.T) {
	history := []Order{
		testOrder("h-1", placedAt.Add(-1*time.Hour), 100),
		testOrder("h-2", placedAt.Add(-10*time.Hour), 100),
		testOrder("h-3", placedAt.Add(-20*time.Hour), 100),
	}
	order := testOrder("o-1", placedAt, 100)

	t.Run("default thresholds classify 25 as low", func(t *testing.T) {
		result, err := newTestEngine(t, validConfig(t)).Evaluate(order, history)
		require.NoError(t, err)

		assert.Equal(t, []Signal{SignalMultipleOrders}, result.FlagsRaised)
		assert.Equal(t, 25.0, result.RiskScore)
		assert.Equal(t, RiskLevelLow, result.RiskLevel)
		assert.Equal(t, "3 pedidos nas últimas 24 horas (limite: 3)", result.Details[SignalMultipleOrders].Reason)
		assertConsistent(t, result)
	})

	t.Run("medium when the medium cut-point is at or below 25", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.MediumRiskThreshold = 20
		result, err := newTestEngine(t, cfg).Evaluate(order, history)
		require.NoError(t, err)

		assert.Equal(t, 25.0, result.RiskScore)
		assert.Equal(t, RiskLevelMedium, result.RiskLevel)
	})
}

func TestEvaluateKnownAddressIsNotUnusual(t *testing.T) {
	engine := newTestEngine(t, validConfig(t))
	order := testOrder("o-1", placedAt, 100)
	order.DeliveryAddress = &Address{ZipCode: "00000", Number: "10"}
	history := []Order{testOrder("h-1", placedAt.Add(-72*time.Hour), 100)}

	result, err := engine.Evaluate(order, history)
	require.NoError(t, err)

	assert.False(t, result.HasFlag(SignalUnusualAddress))
	assert.False(t, result.HasFlag(SignalRapidAddressChange))
}

func TestEvaluateOrderTimeWithinPattern(t *testing.T) {
	engine := newTestEngine(t, validConfig(t))
	at := func(day, hour int) time.Time { return time.Date(2025, 6, day, hour, 0, 0, 0, time.UTC) }

	order := testOrder("o-1", at(15, 2), 100)
	history := []Order{
		testOrder("h-1", at(10, 23), 100),
		testOrder("h-2", at(11, 22), 100),
		testOrder("h-3", at(12, 1), 100),
	}

	result, err := engine.Evaluate(order, history)
	require.NoError(t, err)

	assert.False(t, result.HasFlag(SignalUnusualTime))
	assertConsistent(t, result)
}

func TestEvaluateHighValueAgainstBaseline(t *testing.T) {
	engine := newTestEngine(t, validConfig(t))
	order := testOrder("o-1", placedAt, 200)

	result, err := engine.Evaluate(order, nil, WithBaseline(50))
	require.NoError(t, err)

	require.True(t, result.HasFlag(SignalHighValue))
	assert.Equal(t, 20.0, result.Details[SignalHighValue].Score)
	assert.Equal(t, "Valor 300% acima da média do usuário", result.Details[SignalHighValue].Reason)
	assert.Equal(t, []Signal{SignalHighValue}, result.FlagsRaised)
	assertConsistent(t, result)
}

func TestEvaluateRapidAddressChange(t *testing.T) {
	engine := newTestEngine(t, validConfig(t))
	previous := testOrder("h-1", placedAt.Add(-5*time.Hour), 100)
	order := testOrder("o-1", placedAt, 100)
	order.DeliveryAddress = workAddress

	result, err := engine.Evaluate(order, []Order{previous})
	require.NoError(t, err)

	require.True(t, result.HasFlag(SignalRapidAddressChange))
	assert.Contains(t, result.Details[SignalRapidAddressChange].Reason, "5.0 horas")
	assert.True(t, result.HasFlag(SignalUnusualAddress))
	assert.Equal(t, []Signal{SignalUnusualAddress, SignalRapidAddressChange}, result.FlagsRaised)
	assert.Equal(t, 30.0, result.RiskScore)
	assert.Equal(t, RiskLevelMedium, result.RiskLevel)
	assertConsistent(t, result)
}

func TestEvaluateAllSignalsClampedToMax(t *testing.T) {
	cfg := validConfig(t)
	cfg.MultipleOrdersThreshold = 1
	cfg.MultipleOrdersWeight = 40
	cfg.UnusualAddressWeight = 40
	cfg.HighValueWeight = 40
	cfg.UnusualTimeWeight = 40
	cfg.UnusualPaymentWeight = 40
	cfg.AddressChangeWeight = 40
	engine := newTestEngine(t, cfg)

	history := []Order{
		testOrder("h-1", placedAt.Add(-2*time.Hour-30*time.Minute), 10),
		testOrder("h-2", placedAt.Add(-30*time.Hour), 10),
		testOrder("h-3", placedAt.Add(-54*time.Hour), 10),
	}
	order := testOrder("o-1", placedAt.Add(6*time.Hour), 500)
	order.DeliveryAddress = workAddress
	order.PaymentMethod = &PaymentMethod{Type: "credit_card", ID: "card_9"}

	result, err := engine.Evaluate(order, history)
	require.NoError(t, err)

	assert.Equal(t, Signals(), result.FlagsRaised)
	assert.Equal(t, MaxRiskScore, result.RiskScore)
	assert.Equal(t, RiskLevelHigh, result.RiskLevel)
	assertConsistent(t, result)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	engine := newTestEngine(t, validConfig(t))
	history := []Order{
		testOrder("h-1", placedAt.Add(-3*time.Hour), 40),
		testOrder("h-2", placedAt.Add(-30*time.Hour), 60),
	}
	order := testOrder("o-1", placedAt, 300)
	order.PaymentMethod = &PaymentMethod{Type: "money"}

	first, err := engine.Evaluate(order, history)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := engine.Evaluate(order, history)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEvaluateDoesNotMutateHistory(t *testing.T) {
	engine := newTestEngine(t, validConfig(t))
	history := []Order{
		testOrder("h-1", placedAt.Add(-30*time.Hour), 10),
		testOrder("h-2", placedAt.Add(-2*time.Hour), 10),
		testOrder("h-3", placedAt.Add(-50*time.Hour), 10),
	}
	snapshot := append([]Order(nil), history...)

	_, err := engine.Evaluate(testOrder("o-1", placedAt, 10), history)
	require.NoError(t, err)
	assert.Equal(t, snapshot, history)
}

func TestEvaluateReferenceTimeOverridesOrderTime(t *testing.T) {
	engine := newTestEngine(t, validConfig(t))
	history := []Order{
		testOrder("h-1", placedAt.Add(-1*time.Hour), 100),
		testOrder("h-2", placedAt.Add(-2*time.Hour), 100),
		testOrder("h-3", placedAt.Add(-3*time.Hour), 100),
	}
	order := testOrder("o-1", placedAt, 100)

	result, err := engine.Evaluate(order, history, WithReferenceTime(placedAt.Add(48*time.Hour)))
	require.NoError(t, err)
	assert.False(t, result.HasFlag(SignalMultipleOrders))
}

type panickingSource struct{}

func (panickingSource) Current() Config {
	panic("config store corrupted")
}

func TestEvaluateFailsOpen(t *testing.T) {
	t.Run("panic while reading config", func(t *testing.T) {
		engine := NewEngine(panickingSource{}, WithLogger(zap.NewNop()), WithClock(func() time.Time { return evaluatedAt }))

		result, err := engine.Evaluate(testOrder("o-1", placedAt, 100), nil)

		require.Error(t, err)
		var evalErr *EvaluationError
		require.True(t, errors.As(err, &evalErr))
		assert.Equal(t, "o-1", evalErr.OrderID)
		assert.Equal(t, "config store corrupted", evalErr.Panic)
		assert.Equal(t, ZeroResult("o-1", evaluatedAt), result)
	})

	t.Run("missing config source", func(t *testing.T) {
		engine := NewEngine(nil, WithLogger(zap.NewNop()), WithClock(func() time.Time { return evaluatedAt }))

		result, err := engine.Evaluate(testOrder("o-2", placedAt, 100), nil)

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNoConfig))
		assert.Equal(t, RiskLevelLow, result.RiskLevel)
		assert.Equal(t, 0.0, result.RiskScore)
		assert.Empty(t, result.FlagsRaised)
		assertConsistent(t, result)
	})
}

func TestEvaluateMalformedInputDoesNotFail(t *testing.T) {
	engine := newTestEngine(t, validConfig(t))
	order := testOrder("o-1", placedAt, 100)
	order.Items = append(order.Items, OrderItem{UnitPrice: 10, Quantity: -3})
	history := []Order{
		{ID: "h-1"},
		testOrder("h-2", time.Time{}, 100),
		testOrder("h-3", placedAt.Add(-2*time.Hour), 100),
	}

	result, err := engine.Evaluate(order, history, WithBaseline(1))
	require.NoError(t, err)

	assert.False(t, result.HasFlag(SignalHighValue))
	assert.False(t, result.HasFlag(SignalUnusualTime))
	assertConsistent(t, result)
}

func TestClassifyIsMonotonicInScore(t *testing.T) {
	cfg := validConfig(t)
	rank := map[RiskLevel]int{RiskLevelLow: 0, RiskLevelMedium: 1, RiskLevelHigh: 2}

	prev := RiskLevelLow
	for score := 0.0; score <= MaxRiskScore; score += 0.5 {
		level := Classify(score, cfg)
		assert.GreaterOrEqual(t, rank[level], rank[prev], "score %.1f", score)
		prev = level
	}

	assert.Equal(t, RiskLevelLow, Classify(29.99, cfg))
	assert.Equal(t, RiskLevelMedium, Classify(30, cfg))
	assert.Equal(t, RiskLevelMedium, Classify(59.99, cfg))
	assert.Equal(t, RiskLevelHigh, Classify(60, cfg))
}

func TestAggregateClampsScore(t *testing.T) {
	details := map[Signal]FlagDetail{
		SignalMultipleOrders: {Raised: true, Score: 70},
		SignalHighValue:      {Raised: true, Score: 70},
		SignalUnusualTime:    {Raised: false, Score: 99},
	}
	assert.Equal(t, MaxRiskScore, Aggregate(details))
	assert.Equal(t, 0.0, Aggregate(map[Signal]FlagDetail{}))
}

type swappableSource struct {
	current atomic.Pointer[Config]
}

func (s *swappableSource) Current() Config {
	return *s.current.Load()
}

func TestEvaluateConcurrentWithConfigSwap(t *testing.T) {
	low := validConfig(t)
	high := validConfig(t)
	high.MultipleOrdersWeight = 70

	source := &swappableSource{}
	source.current.Store(&low)
	engine := NewEngine(source, WithLogger(zap.NewNop()))

	history := []Order{
		testOrder("h-1", placedAt.Add(-1*time.Hour), 100),
		testOrder("h-2", placedAt.Add(-2*time.Hour), 100),
		testOrder("h-3", placedAt.Add(-3*time.Hour), 100),
	}
	order := testOrder("o-1", placedAt, 100)

	stop := make(chan struct{})
	var swapper sync.WaitGroup
	swapper.Add(1)
	go func() {
		defer swapper.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				source.current.Store(&high)
			} else {
				source.current.Store(&low)
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				result, err := engine.Evaluate(order, history)
				if !assert.NoError(t, err) {
					return
				}
				switch result.RiskScore {
				case 25:
					assert.Equal(t, RiskLevelLow, result.RiskLevel)
				case 70:
					assert.Equal(t, RiskLevelHigh, result.RiskLevel)
				default:
					t.Errorf("unexpected mixed score %v", result.RiskScore)
				}
			}
		}()
	}
	wg.Wait()
	close(stop)
	swapper.Wait()
}

func TestRiskResultJSON(t *testing.T) {
	engine := newTestEngine(t, validConfig(t))
	result, err := engine.Evaluate(testOrder("o-1", placedAt, 200), nil, WithBaseline(50))
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "o-1", raw["order_id"])
	assert.Equal(t, "low", raw["risk_level"])
	assert.Equal(t, []interface{}{"high_value_order"}, raw["flags_raised"])
	details, ok := raw["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, details, 6)
	assert.Contains(t, details, "rapid_address_change")

	var decoded RiskResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, result.FlagsRaised, decoded.FlagsRaised)
	assert.Equal(t, result.Details, decoded.Details)
	assert.True(t, result.EvaluatedAt.Equal(decoded.EvaluatedAt))
}
