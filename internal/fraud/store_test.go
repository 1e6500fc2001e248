package fraud

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/order-risk/internal/review"
	"github.com/richxcame/order-risk/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRecentOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i, offset := range []time.Duration{3 * time.Hour, time.Hour, 2 * time.Hour} {
		require.NoError(t, store.SaveOrder(ctx, risk.Order{
			ID:         fmt.Sprintf("o-%d", i),
			CustomerID: "c-1",
			CreatedAt:  screenNow.Add(-offset),
			Total:      float(10),
		}))
	}
	require.NoError(t, store.SaveOrder(ctx, risk.Order{ID: "x", CustomerID: "c-2", CreatedAt: screenNow}))

	orders, err := store.RecentOrders(ctx, "c-1", 2)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o-1", orders[0].ID)
	assert.Equal(t, "o-2", orders[1].ID)

	orders, err = store.RecentOrders(ctx, "unknown", 10)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestMemoryStoreSaveOrderReplacesSameID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.SaveOrder(ctx, risk.Order{ID: "o-1", CustomerID: "c-1", CreatedAt: screenNow, Total: float(10)}))
	require.NoError(t, store.SaveOrder(ctx, risk.Order{ID: "o-1", CustomerID: "c-1", CreatedAt: screenNow, Total: float(30)}))

	orders, err := store.RecentOrders(ctx, "c-1", 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 30.0, *orders[0].Total)
}

func TestMemoryStoreCopiesOrders(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	order := risk.Order{
		ID:              "o-1",
		CustomerID:      "c-1",
		CreatedAt:       screenNow,
		DeliveryAddress: &risk.Address{ZipCode: "01000-000", Number: "10"},
		Items:           []risk.OrderItem{{Name: "A", UnitPrice: 5, Quantity: 1}},
		Total:           float(55),
	}
	require.NoError(t, store.SaveOrder(ctx, order))

	order.DeliveryAddress.Number = "changed"
	order.Items[0].Quantity = 99
	*order.Total = 1

	stored, err := store.RecentOrders(ctx, "c-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "10", stored[0].DeliveryAddress.Number)
	assert.Equal(t, 1, stored[0].Items[0].Quantity)
	assert.Equal(t, 55.0, *stored[0].Total)
}

func TestMemoryStoreAverageOrderValue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	v, err := store.AverageOrderValue(ctx, "c-1")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, store.SaveOrder(ctx, risk.Order{ID: "a", CustomerID: "c-1", Total: float(40)}))
	require.NoError(t, store.SaveOrder(ctx, risk.Order{ID: "b", CustomerID: "c-1", Items: []risk.OrderItem{{UnitPrice: 30, Quantity: 2}}}))
	require.NoError(t, store.SaveOrder(ctx, risk.Order{ID: "bad", CustomerID: "c-1", Total: float(-5)}))

	v, err = store.AverageOrderValue(ctx, "c-1")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 50.0, *v)
}

func newStoredAssessment(orderID, customerID string, at time.Time) *Assessment {
	return &Assessment{
		ID:         uuid.New(),
		OrderID:    orderID,
		CustomerID: customerID,
		Result:     risk.ZeroResult(orderID, at),
		Review:     review.Decision{MatchedRules: []string{}},
		CreatedAt:  at,
	}
}

func TestMemoryStoreAssessments(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first := newStoredAssessment("o-1", "c-1", screenNow)
	second := newStoredAssessment("o-1", "c-1", screenNow.Add(time.Minute))
	third := newStoredAssessment("o-2", "c-1", screenNow.Add(2*time.Minute))
	other := newStoredAssessment("o-3", "c-2", screenNow)
	for _, a := range []*Assessment{first, second, third, other} {
		require.NoError(t, store.Record(ctx, a))
	}

	got, err := store.GetByOrderID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = store.GetByOrderID(ctx, "missing")
	assert.ErrorIs(t, err, ErrAssessmentNotFound)

	page, total, err := store.ListByCustomer(ctx, "c-1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, third.ID, page[0].ID)
	assert.Equal(t, second.ID, page[1].ID)

	page, total, err = store.ListByCustomer(ctx, "c-1", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)

	page, total, err = store.ListByCustomer(ctx, "c-1", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, page)
}

func TestMemoryStoreRecordStoresCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a := newStoredAssessment("o-1", "c-1", screenNow)
	require.NoError(t, store.Record(ctx, a))
	a.Result.RiskScore = 99
	a.Review.MatchedRules = append(a.Review.MatchedRules, "late")

	got, err := store.GetByOrderID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Result.RiskScore)
	assert.Empty(t, got.Review.MatchedRules)
}

func TestExcludeOrder(t *testing.T) {
	out := excludeOrder([]risk.Order{{ID: "a"}, {ID: "b"}, {ID: "a"}}, "a")
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ID)
	assert.NotNil(t, excludeOrder(nil, "a"))
}
