package reconciliation

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-recon/internal/shared"
)

// ============================================================================
// MEMORY REPOSITORY
// ============================================================================

type memData struct {
	orders      map[int64]Order
	items       []OrderItem
	customers   map[int64]string
	products    map[int64]string
	salespeople map[int64]string
	audits      []shared.AuditLog
	nextOrderID int64
	nextItemID  int64
}

func (d *memData) clone() *memData {
	return &memData{
		orders:      maps.Clone(d.orders),
		items:       slices.Clone(d.items),
		customers:   maps.Clone(d.customers),
		products:    maps.Clone(d.products),
		salespeople: maps.Clone(d.salespeople),
		audits:      slices.Clone(d.audits),
		nextOrderID: d.nextOrderID,
		nextItemID:  d.nextItemID,
	}
}

// memRepo keeps state in maps. Transactions are serialised and work on a
// copy that replaces the committed state on success.
type memRepo struct {
	mu   sync.Mutex
	txMu *sync.Mutex
	data *memData
	root *memRepo

	snapshotErr error
	updateErr   error
	auditErr    error
	snapshots   int
}

func newMemRepo() *memRepo {
	return &memRepo{
		txMu: &sync.Mutex{},
		data: &memData{
			orders:      make(map[int64]Order),
			customers:   make(map[int64]string),
			products:    make(map[int64]string),
			salespeople: make(map[int64]string),
			nextOrderID: 1,
			nextItemID:  1,
		},
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	if m.root != nil {
		return fn(ctx, m)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	tx := &memRepo{txMu: m.txMu, data: m.data.clone(), root: m, updateErr: m.updateErr, auditErr: m.auditErr}
	m.mu.Unlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.mu.Lock()
	m.data = tx.data
	m.mu.Unlock()
	return nil
}

func (m *memRepo) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots++
	if m.snapshotErr != nil {
		return Snapshot{}, m.snapshotErr
	}
	d := m.data.clone()
	return Snapshot{
		Orders:      d.orders,
		Items:       d.items,
		Customers:   d.customers,
		Products:    d.products,
		Salespeople: d.salespeople,
	}, nil
}

func (m *memRepo) GetOrder(ctx context.Context, id int64) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.data.orders[id]
	if !ok {
		return Order{}, shared.ErrNotFound
	}
	return o, nil
}

func (m *memRepo) ListOrderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []OrderItem
	for _, it := range m.data.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memRepo) UpdatePayment(ctx context.Context, orderID int64, state PaymentState) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.data.orders[orderID]
	if !ok {
		return shared.ErrNotFound
	}
	o.Status = state.Status
	o.ReceivedAmount = state.ReceivedAmount
	o.PaymentReceivedDate = state.PaymentDate
	o.PaymentRemarks = state.Remarks
	o.UpdatedAt = state.UpdatedAt
	m.data.orders[orderID] = o
	return nil
}

func (m *memRepo) CreateOrder(ctx context.Context, order Order) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.data.orders {
		if o.OrderNumber == order.OrderNumber {
			return 0, shared.ErrConflict
		}
	}
	order.ID = m.data.nextOrderID
	m.data.nextOrderID++
	m.data.orders[order.ID] = order
	return order.ID, nil
}

func (m *memRepo) InsertItem(ctx context.Context, item OrderItem) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.orders[item.OrderID]; !ok {
		return 0, errors.New("order does not exist")
	}
	item.ID = m.data.nextItemID
	m.data.nextItemID++
	m.data.items = append(m.data.items, item)
	return item.ID, nil
}

func (m *memRepo) DeleteOrder(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.orders[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.data.orders, id)
	m.data.items = slices.DeleteFunc(m.data.items, func(it OrderItem) bool { return it.OrderID == id })
	return nil
}

func (m *memRepo) LatestOrderNumber(ctx context.Context, prefix string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := ""
	for _, o := range m.data.orders {
		n := o.OrderNumber
		if !strings.HasPrefix(n, prefix) {
			continue
		}
		if len(n) > len(latest) || (len(n) == len(latest) && n > latest) {
			latest = n
		}
	}
	return latest, nil
}

func (m *memRepo) ListReferences(ctx context.Context) (References, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	customers := map[int64]bool{}
	salespeople := map[int64]bool{}
	products := map[int64]bool{}
	for _, o := range m.data.orders {
		customers[o.CustomerID] = true
		salespeople[o.SalespersonID] = true
	}
	for _, it := range m.data.items {
		products[it.ProductID] = true
	}
	return References{
		Customers:   parties(customers, m.data.customers),
		Products:    parties(products, m.data.products),
		Salespeople: parties(salespeople, m.data.salespeople),
	}, nil
}

func (m *memRepo) RecordAudit(ctx context.Context, entry shared.AuditLog) error {
	if m.auditErr != nil {
		return m.auditErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.audits = append(m.data.audits, entry)
	return nil
}

func (m *memRepo) auditLog() []shared.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.data.audits)
}

func parties(ids map[int64]bool, names map[int64]string) []Party {
	out := make([]Party, 0, len(ids))
	for id := range ids {
		out = append(out, Party{ID: id, Name: names[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ============================================================================
// FIXTURES
// ============================================================================

func (m *memRepo) addParty(kind string, id int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch kind {
	case "customer":
		m.data.customers[id] = name
	case "product":
		m.data.products[id] = name
	case "salesperson":
		m.data.salespeople[id] = name
	}
}

// addOrder stores o with one item per total, assigning ids.
func (m *memRepo) addOrder(o Order, productID int64, totals ...string) Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = m.data.nextOrderID
	m.data.nextOrderID++
	if o.Status == "" {
		o.Status = StatusPendingPayment
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(o.ID) * time.Hour)
	}
	if o.OrderNumber == "" {
		o.OrderNumber = formatOrderNumber(OrderNumberPrefix(o.CreatedAt), int(o.ID))
	}
	if o.ExpiryDate.IsZero() {
		o.ExpiryDate = time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	if o.EffectiveDate.IsZero() {
		o.EffectiveDate = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	}
	m.data.orders[o.ID] = o
	for _, total := range totals {
		amount := decimal.RequireFromString(total)
		m.data.items = append(m.data.items, OrderItem{
			ID:          m.data.nextItemID,
			OrderID:     o.ID,
			ProductID:   productID,
			Quantity:    1,
			ActualPrice: amount,
			TotalAmount: amount,
			CreatedAt:   o.CreatedAt,
		})
		m.data.nextItemID++
	}
	return o
}

func (m *memRepo) order(id int64) Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.orders[id]
}
