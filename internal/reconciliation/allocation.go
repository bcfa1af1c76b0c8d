package reconciliation

import (
	"slices"

	"github.com/shopspring/decimal"
)

const (
	moneyPlaces = 2
	ratioPlaces = 1
)

var hundred = decimal.NewFromInt(100)

// Allocation is the payment position of a single order item.
type Allocation struct {
	Received   decimal.Decimal
	Unreceived decimal.Decimal
	Ratio      decimal.Decimal
}

// PaymentAllocator apportions order-level payment state across order items.
type PaymentAllocator struct{}

// OrderTotal sums the item totals of an order.
func OrderTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.TotalAmount)
	}
	return total
}

// Ratio returns received/total as a percentage with one decimal; 0 when total is 0.
func Ratio(received, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return received.Div(total).Mul(hundred).Round(ratioPlaces)
}

// OrderReceived is the order-level amount treated as received: the full
// total once Paid, nothing while PendingPayment, and the recorded amount
// clamped to [0, total] while PartiallyPaid.
func (PaymentAllocator) OrderReceived(order Order, total decimal.Decimal) decimal.Decimal {
	switch order.Status {
	case StatusPaid:
		return total
	case StatusPartiallyPaid:
		received := order.ReceivedAmount.Round(moneyPlaces)
		if received.IsNegative() {
			return decimal.Zero
		}
		return decimal.Min(received, total)
	default:
		return decimal.Zero
	}
}

// AllocateOrder splits the order's received amount across items in
// proportion to their totals. Item amounts are whole cents, sum exactly to
// the order-level amount, and never exceed the item total.
func (a PaymentAllocator) AllocateOrder(order Order, items []OrderItem) map[int64]Allocation {
	total := OrderTotal(items)
	received := a.OrderReceived(order, total)

	weights := make([]decimal.Decimal, len(items))
	for i, it := range items {
		weights[i] = it.TotalAmount
	}
	shares := apportion(received, weights)

	out := make(map[int64]Allocation, len(items))
	for i, it := range items {
		out[it.ID] = newAllocation(shares[i], it.TotalAmount)
	}
	return out
}

// AllocateSnapshot allocates every order in the snapshot, keyed by item id.
func (a PaymentAllocator) AllocateSnapshot(s Snapshot) map[int64]Allocation {
	out := make(map[int64]Allocation, len(s.Items))
	for orderID, items := range s.ItemsByOrder() {
		order, ok := s.Orders[orderID]
		if !ok {
			continue
		}
		for id, alloc := range a.AllocateOrder(order, items) {
			out[id] = alloc
		}
	}
	return out
}

func newAllocation(received, total decimal.Decimal) Allocation {
	received = decimal.Max(decimal.Zero, decimal.Min(received, total))
	return Allocation{
		Received:   received,
		Unreceived: total.Sub(received),
		Ratio:      Ratio(received, total),
	}
}

// apportion distributes amount across weights with the largest-remainder
// method at cent precision. Ties go to the later entry.
func apportion(amount decimal.Decimal, weights []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(weights))
	for i := range out {
		out[i] = decimal.Zero
	}
	total := decimal.Zero
	for _, w := range weights {
		total = total.Add(w)
	}
	if total.Sign() <= 0 || amount.Sign() <= 0 {
		return out
	}

	cents := amount.Shift(moneyPlaces).Round(0)
	type remainder struct {
		idx  int
		frac decimal.Decimal
	}
	rems := make([]remainder, 0, len(weights))
	allocated := decimal.Zero
	for i, w := range weights {
		exact := cents.Mul(w).Div(total)
		floor := exact.Floor()
		out[i] = floor
		allocated = allocated.Add(floor)
		rems = append(rems, remainder{idx: i, frac: exact.Sub(floor)})
	}

	slices.SortStableFunc(rems, func(a, b remainder) int {
		if c := b.frac.Cmp(a.frac); c != 0 {
			return c
		}
		return b.idx - a.idx
	})
	left := int(cents.Sub(allocated).IntPart())
	for k := 0; k < left && k < len(rems); k++ {
		out[rems[k].idx] = out[rems[k].idx].Add(decimal.NewFromInt(1))
	}

	for i := range out {
		out[i] = out[i].Shift(-moneyPlaces)
	}
	return out
}
