package reconciliation

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(totals ...string) []OrderItem {
	out := make([]OrderItem, 0, len(totals))
	for i, t := range totals {
		out = append(out, OrderItem{ID: int64(i + 1), OrderID: 1, Quantity: 1, TotalAmount: dec(t)})
	}
	return out
}

func TestRatio(t *testing.T) {
	assertDecimal(t, "0", Ratio(dec("10"), decimal.Zero))
	assertDecimal(t, "33.3", Ratio(dec("1"), dec("3")))
	assertDecimal(t, "66.7", Ratio(dec("2"), dec("3")))
	assertDecimal(t, "100", Ratio(dec("1000.00"), dec("1000.00")))
}

func TestAllocateOrderByStatus(t *testing.T) {
	its := items("600.00", "400.00")
	var a PaymentAllocator

	pending := a.AllocateOrder(Order{Status: StatusPendingPayment, ReceivedAmount: dec("500")}, its)
	assertDecimal(t, "0", pending[1].Received)
	assertDecimal(t, "600.00", pending[1].Unreceived)
	assertDecimal(t, "0", pending[1].Ratio)

	paid := a.AllocateOrder(Order{Status: StatusPaid}, its)
	assertDecimal(t, "600.00", paid[1].Received)
	assertDecimal(t, "400.00", paid[2].Received)
	assertDecimal(t, "100", paid[2].Ratio)

	partial := a.AllocateOrder(Order{Status: StatusPartiallyPaid, ReceivedAmount: dec("400.00")}, its)
	assertDecimal(t, "240.00", partial[1].Received)
	assertDecimal(t, "160.00", partial[2].Received)
	assertDecimal(t, "40.0", partial[1].Ratio)
}

func TestAllocateOrderClampsReceived(t *testing.T) {
	its := items("30.00", "70.00")
	var a PaymentAllocator

	over := a.AllocateOrder(Order{Status: StatusPartiallyPaid, ReceivedAmount: dec("250.00")}, its)
	assertDecimal(t, "30.00", over[1].Received)
	assertDecimal(t, "70.00", over[2].Received)
	assertDecimal(t, "0", over[2].Unreceived)

	negative := a.AllocateOrder(Order{Status: StatusPartiallyPaid, ReceivedAmount: dec("-5")}, its)
	assertDecimal(t, "0", negative[1].Received)
	assertDecimal(t, "0", negative[2].Received)
}

func TestAllocateOrderLargestRemainder(t *testing.T) {
	var a PaymentAllocator

	skewed := a.AllocateOrder(Order{Status: StatusPartiallyPaid, ReceivedAmount: dec("10.00")}, items("33.33", "33.33", "33.34"))
	assertDecimal(t, "3.33", skewed[1].Received)
	assertDecimal(t, "3.33", skewed[2].Received)
	assertDecimal(t, "3.34", skewed[3].Received)

	// equal remainders go to the later item
	even := a.AllocateOrder(Order{Status: StatusPartiallyPaid, ReceivedAmount: dec("1.00")}, items("5", "5", "5"))
	assertDecimal(t, "0.33", even[1].Received)
	assertDecimal(t, "0.33", even[2].Received)
	assertDecimal(t, "0.34", even[3].Received)
}

func TestAllocateOrderIsConsistent(t *testing.T) {
	var a PaymentAllocator
	orders := []struct {
		received string
		totals   []string
	}{
		{"0.01", []string{"10.00", "10.00", "10.00"}},
		{"12.34", []string{"20.00", "5.00"}},
		{"99.99", []string{"0.01", "0.02", "99.97", "50.00"}},
		{"1234.56", []string{"100.10", "200.20", "300.30", "999.99", "0.00"}},
		{"7.77", []string{"0.00", "0.00", "7.78"}},
	}
	for i, tc := range orders {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			its := items(tc.totals...)
			alloc := a.AllocateOrder(Order{Status: StatusPartiallyPaid, ReceivedAmount: dec(tc.received)}, its)
			require.Len(t, alloc, len(its))

			sum := decimal.Zero
			for _, it := range its {
				got := alloc[it.ID]
				sum = sum.Add(got.Received)
				assert.True(t, got.Received.GreaterThanOrEqual(decimal.Zero))
				assert.True(t, got.Received.LessThanOrEqual(it.TotalAmount), "item %d over-allocated", it.ID)
				assert.True(t, got.Ratio.GreaterThanOrEqual(decimal.Zero))
				assert.True(t, got.Ratio.LessThanOrEqual(hundred))
				assertDecimal(t, it.TotalAmount.Sub(got.Received).String(), got.Unreceived)
			}
			assertDecimal(t, tc.received, sum)
		})
	}
}

func TestAllocateSnapshotUsesWholeOrder(t *testing.T) {
	snap := Snapshot{
		Orders: map[int64]Order{
			1: {ID: 1, Status: StatusPartiallyPaid, ReceivedAmount: dec("50.00")},
			2: {ID: 2, Status: StatusPaid},
		},
		Items: []OrderItem{
			{ID: 10, OrderID: 1, TotalAmount: dec("75.00")},
			{ID: 11, OrderID: 2, TotalAmount: dec("20.00")},
			{ID: 12, OrderID: 1, TotalAmount: dec("25.00")},
			{ID: 13, OrderID: 3, TotalAmount: dec("1.00")},
		},
	}
	alloc := PaymentAllocator{}.AllocateSnapshot(snap)

	assertDecimal(t, "37.50", alloc[10].Received)
	assertDecimal(t, "12.50", alloc[12].Received)
	assertDecimal(t, "20.00", alloc[11].Received)
	_, orphan := alloc[13]
	assert.False(t, orphan)
}
