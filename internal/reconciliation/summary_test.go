package reconciliation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummaryAggregate(t *testing.T) {
	lines := []Line{
		{Order: Order{ID: 1}, Item: OrderItem{ID: 1, TotalAmount: dec("600.00")}},
		{Order: Order{ID: 1}, Item: OrderItem{ID: 2, TotalAmount: dec("400.00")}},
		{Order: Order{ID: 2}, Item: OrderItem{ID: 3, TotalAmount: dec("500.00")}},
	}
	alloc := map[int64]Allocation{
		1: {Received: dec("240.00")},
		2: {Received: dec("160.00")},
		3: {Received: dec("500.00")},
	}

	s := SummaryAggregator{}.Aggregate(lines, alloc)
	assertDecimal(t, "1500.00", s.TotalAmount)
	assertDecimal(t, "900.00", s.TotalReceived)
	assertDecimal(t, "600.00", s.TotalUnreceived)
	assertDecimal(t, "60.0", s.Ratio)
	assert.Equal(t, 2, s.OrderCount)
	assert.Equal(t, 3, s.OrderItemCount)
}

func TestSummaryAggregateEmpty(t *testing.T) {
	s := SummaryAggregator{}.Aggregate(nil, nil)
	assertDecimal(t, "0", s.TotalAmount)
	assertDecimal(t, "0", s.Ratio)
	assert.Zero(t, s.OrderCount)
	assert.Zero(t, s.OrderItemCount)
}
