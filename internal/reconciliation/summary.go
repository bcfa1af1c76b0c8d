package reconciliation

import "github.com/shopspring/decimal"

// SummaryAggregator reduces a filtered set of lines to totals.
type SummaryAggregator struct{}

// Aggregate totals lines using the per-item allocations. It must be given
// the whole filtered set, never a single page.
func (SummaryAggregator) Aggregate(lines []Line, allocations map[int64]Allocation) Summary {
	total := decimal.Zero
	received := decimal.Zero
	orders := make(map[int64]struct{})
	for _, l := range lines {
		total = total.Add(l.Item.TotalAmount)
		received = received.Add(allocations[l.Item.ID].Received)
		orders[l.Order.ID] = struct{}{}
	}
	return Summary{
		TotalAmount:     total,
		TotalReceived:   received,
		TotalUnreceived: total.Sub(received),
		Ratio:           Ratio(received, total),
		OrderCount:      len(orders),
		OrderItemCount:  len(lines),
	}
}
