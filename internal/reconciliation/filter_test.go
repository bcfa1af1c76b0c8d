package reconciliation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(orderID, itemID, customerID int64, status OrderStatus) Line {
	return Line{
		Order: Order{
			ID:          orderID,
			OrderNumber: formatOrderNumber("ORD20261001", int(orderID)),
			CustomerID:  customerID,
			Status:      status,
			ExpiryDate:  day(2026, time.December, 31),
			CreatedAt:   day(2026, time.October, 1).Add(time.Duration(orderID) * time.Hour),
		},
		Item: OrderItem{ID: itemID, OrderID: orderID},
	}
}

func ids(lines []Line) []int64 {
	out := make([]int64, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Order.ID)
	}
	return out
}

func TestFilterComposition(t *testing.T) {
	const a, b = int64(1), int64(2)
	lines := []Line{
		line(1, 1, a, StatusPaid),
		line(2, 2, b, StatusPendingPayment),
		line(3, 3, a, StatusPartiallyPaid),
	}

	customer := a
	byCustomer := NewFilterEngine(FilterCriteria{CustomerID: &customer}, testNow).Apply(lines)
	assert.Equal(t, []int64{1, 3}, ids(byCustomer))

	paid := StatusPaid
	both := NewFilterEngine(FilterCriteria{CustomerID: &customer, Status: &paid}, testNow).Apply(lines)
	assert.Equal(t, []int64{1}, ids(both))
}

func TestFilterUnspecifiedCriteriaMatchEverything(t *testing.T) {
	f := NewFilterEngine(FilterCriteria{Keyword: "   ", Page: 3, PageSize: 10}, testNow)
	assert.Empty(t, f.Predicates())
	assert.True(t, f.Match(line(1, 1, 1, StatusPaid)))
}

func TestFilterPredicatesAreTagged(t *testing.T) {
	customer, product := int64(4), int64(9)
	start := day(2026, time.January, 1)
	preds := FilterCriteria{
		CustomerID:  &customer,
		ProductID:   &product,
		PaymentDate: DateRange{Start: &start},
		Keyword:     "acme",
	}.Predicates()

	kinds := make([]PredicateKind, 0, len(preds))
	for _, p := range preds {
		kinds = append(kinds, p.Kind)
	}
	assert.Equal(t, []PredicateKind{PredicateCustomer, PredicateProduct, PredicatePaymentDate, PredicateKeyword}, kinds)
}

func TestFilterDateRangesAreInclusiveDays(t *testing.T) {
	l := line(1, 1, 1, StatusPendingPayment)
	l.Order.EffectiveDate = time.Date(2026, 3, 15, 23, 59, 0, 0, time.UTC)

	start, end := day(2026, time.March, 15), day(2026, time.March, 15)
	assert.True(t, NewFilterEngine(FilterCriteria{EffectiveDate: DateRange{Start: &start, End: &end}}, testNow).Match(l))

	after := day(2026, time.March, 16)
	assert.False(t, NewFilterEngine(FilterCriteria{EffectiveDate: DateRange{Start: &after}}, testNow).Match(l))

	before := day(2026, time.March, 14)
	assert.False(t, NewFilterEngine(FilterCriteria{EffectiveDate: DateRange{End: &before}}, testNow).Match(l))
	assert.True(t, NewFilterEngine(FilterCriteria{EffectiveDate: DateRange{Start: &before}}, testNow).Match(l))
}

func TestFilterPaymentRangeSkipsUnpaidOrders(t *testing.T) {
	unpaid := line(1, 1, 1, StatusPendingPayment)
	paid := line(2, 2, 1, StatusPaid)
	when := day(2026, time.May, 2)
	paid.Order.PaymentReceivedDate = &when

	start := day(2026, time.May, 1)
	f := NewFilterEngine(FilterCriteria{PaymentDate: DateRange{Start: &start}}, testNow)
	assert.Equal(t, []int64{2}, ids(f.Apply([]Line{unpaid, paid})))
}

func TestFilterKeywordIsCaseFolded(t *testing.T) {
	l := line(7, 1, 1, StatusPaid)
	l.CustomerName = "École Supérieure"
	l.ProductName = "Copper Wire"

	for _, kw := range []string{"ÉCOLE", "copper", "ord20261001007", " wire "} {
		assert.True(t, NewFilterEngine(FilterCriteria{Keyword: kw}, testNow).Match(l), kw)
	}
	assert.False(t, NewFilterEngine(FilterCriteria{Keyword: "steel"}, testNow).Match(l))
}

func TestFilterKeywordSkipsSalespersonName(t *testing.T) {
	l := line(7, 1, 1, StatusPaid)
	l.CustomerName = "Acme"
	l.ProductName = "Copper Wire"
	l.SalespersonName = "Dana Kim"

	assert.False(t, NewFilterEngine(FilterCriteria{Keyword: "dana"}, testNow).Match(l))
}

func TestFilterSeqStopsEarly(t *testing.T) {
	lines := []Line{line(1, 1, 1, StatusPaid), line(2, 2, 1, StatusPaid), line(3, 3, 1, StatusPaid)}
	var seen []int64
	for l := range NewFilterEngine(FilterCriteria{}, testNow).Seq(lines) {
		seen = append(seen, l.Order.ID)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []int64{1, 2}, seen)
}

func TestSortLinesNewestOrderFirst(t *testing.T) {
	lines := []Line{
		line(1, 1, 1, StatusPaid),
		line(2, 5, 1, StatusPaid),
		line(2, 4, 1, StatusPaid),
		line(3, 6, 1, StatusPaid),
	}
	SortLines(lines)

	require.Len(t, lines, 4)
	got := make([]int64, 0, len(lines))
	for _, l := range lines {
		got = append(got, l.Item.ID)
	}
	assert.Equal(t, []int64{6, 4, 5, 1}, got)
}
