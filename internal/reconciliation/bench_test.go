package reconciliation

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

// benchLedger builds orders with three items each; every third order is
// partially paid and every fifth fully paid.
func benchLedger(orders int) *memRepo {
	repo := newMemRepo()
	for c := int64(1); c <= 20; c++ {
		repo.addParty("customer", c, fmt.Sprintf("Customer %02d", c))
	}
	repo.addParty("product", 1, "Widget")
	repo.addParty("salesperson", 1, "Sam")
	for i := range orders {
		o := Order{CustomerID: int64(i%20) + 1, SalespersonID: 1}
		switch {
		case i%5 == 0:
			o.Status = StatusPaid
			o.ReceivedAmount = decimal.RequireFromString("60.03")
		case i%3 == 0:
			o.Status = StatusPartiallyPaid
			o.ReceivedAmount = decimal.RequireFromString("17.50")
		}
		repo.addOrder(o, 1, "10.01", "20.01", "30.01")
	}
	return repo
}

func BenchmarkGetOrderDetails(b *testing.B) {
	svc := newTestService(benchLedger(2000))
	ctx := context.Background()
	customer := int64(7)
	criteria := FilterCriteria{CustomerID: &customer, Keyword: "widget", PageSize: 50}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.GetOrderDetails(ctx, criteria); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAllocateSnapshot(b *testing.B) {
	snap, err := benchLedger(2000).LoadSnapshot(context.Background())
	if err != nil {
		b.Fatal(err)
	}
	var allocator PaymentAllocator

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = allocator.AllocateSnapshot(snap)
	}
}
