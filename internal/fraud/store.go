package fraud

import (
	"context"
	"sort"
	"sync"

	"github.com/richxcame/order-risk/internal/risk"
)

// OrderHistory stores the orders a customer placed.
type OrderHistory interface {
	// RecentOrders returns up to limit orders, newest first.
	RecentOrders(ctx context.Context, customerID string, limit int) ([]risk.Order, error)
	SaveOrder(ctx context.Context, order risk.Order) error
}

// BaselineSource returns a customer's typical order value. A nil value
// means there is no baseline yet.
type BaselineSource interface {
	AverageOrderValue(ctx context.Context, customerID string) (*float64, error)
}

// AssessmentStore persists screening outcomes.
type AssessmentStore interface {
	Record(ctx context.Context, a *Assessment) error
	// GetByOrderID returns the latest assessment of the order.
	GetByOrderID(ctx context.Context, orderID string) (*Assessment, error)
	// ListByCustomer returns a page of assessments, newest first, and the
	// total count.
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*Assessment, int, error)
}

// MemoryStore keeps orders and assessments in process memory. It backs
// development setups and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	orders      map[string][]risk.Order
	assessments []*Assessment
}

var (
	_ OrderHistory    = (*MemoryStore)(nil)
	_ BaselineSource  = (*MemoryStore)(nil)
	_ AssessmentStore = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string][]risk.Order)}
}

func (m *MemoryStore) RecentOrders(ctx context.Context, customerID string, limit int) ([]risk.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orders := m.orders[customerID]
	out := make([]risk.Order, 0, len(orders))
	for i := len(orders) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, orders[i])
	}
	return out, nil
}

// SaveOrder appends the order, replacing an earlier copy with the same ID.
func (m *MemoryStore) SaveOrder(ctx context.Context, order risk.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	orders := m.orders[order.CustomerID]
	for i := range orders {
		if orders[i].ID == order.ID {
			orders = append(orders[:i], orders[i+1:]...)
			break
		}
	}
	orders = append(orders, copyOrder(order))
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	m.orders[order.CustomerID] = orders
	return nil
}

// AverageOrderValue averages every stored order of the customer.
// Orders whose value cannot be resolved are skipped.
func (m *MemoryStore) AverageOrderValue(ctx context.Context, customerID string) (*float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sum float64
	var n int
	for _, o := range m.orders[customerID] {
		v, err := risk.OrderValue(o)
		if err != nil {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return nil, nil
	}
	avg := sum / float64(n)
	return &avg, nil
}

func (m *MemoryStore) Record(ctx context.Context, a *Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assessments = append(m.assessments, a.Clone())
	return nil
}

func (m *MemoryStore) GetByOrderID(ctx context.Context, orderID string) (*Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.assessments) - 1; i >= 0; i-- {
		if m.assessments[i].OrderID == orderID {
			return m.assessments[i].Clone(), nil
		}
	}
	return nil, ErrAssessmentNotFound
}

func (m *MemoryStore) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*Assessment, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*Assessment
	for i := len(m.assessments) - 1; i >= 0; i-- {
		if m.assessments[i].CustomerID == customerID {
			matched = append(matched, m.assessments[i])
		}
	}

	total := len(matched)
	if offset >= total {
		return []*Assessment{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]*Assessment, 0, end-offset)
	for _, a := range matched[offset:end] {
		out = append(out, a.Clone())
	}
	return out, total, nil
}

func copyOrder(o risk.Order) risk.Order {
	out := o
	if o.Items != nil {
		out.Items = make([]risk.OrderItem, len(o.Items))
		for i, item := range o.Items {
			out.Items[i] = item
			if item.Options != nil {
				out.Items[i].Options = append([]risk.ItemOption(nil), item.Options...)
			}
		}
	}
	if o.DeliveryAddress != nil {
		addr := *o.DeliveryAddress
		out.DeliveryAddress = &addr
	}
	if o.PaymentMethod != nil {
		pm := *o.PaymentMethod
		out.PaymentMethod = &pm
	}
	if o.Total != nil {
		total := *o.Total
		out.Total = &total
	}
	return out
}
