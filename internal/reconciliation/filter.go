package reconciliation

import (
	"cmp"
	"iter"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// PredicateKind tags a Predicate with the field it constrains.
type PredicateKind string

const (
	PredicateCustomer      PredicateKind = "customer"
	PredicateProduct       PredicateKind = "product"
	PredicateSalesperson   PredicateKind = "salesperson"
	PredicateStatus        PredicateKind = "status"
	PredicateEffectiveDate PredicateKind = "effective_date"
	PredicateExpiryDate    PredicateKind = "expiry_date"
	PredicatePaymentDate   PredicateKind = "payment_date"
	PredicateKeyword       PredicateKind = "keyword"
)

// Predicate is one storage-agnostic constraint. Only the fields relevant to
// Kind are set.
type Predicate struct {
	Kind    PredicateKind
	ID      int64
	Status  OrderStatus
	Range   DateRange
	Keyword string
}

// Predicates compiles the specified criteria; unspecified ones add nothing.
func (c FilterCriteria) Predicates() []Predicate {
	var preds []Predicate
	if c.CustomerID != nil {
		preds = append(preds, Predicate{Kind: PredicateCustomer, ID: *c.CustomerID})
	}
	if c.ProductID != nil {
		preds = append(preds, Predicate{Kind: PredicateProduct, ID: *c.ProductID})
	}
	if c.SalespersonID != nil {
		preds = append(preds, Predicate{Kind: PredicateSalesperson, ID: *c.SalespersonID})
	}
	if c.Status != nil && *c.Status != "" {
		preds = append(preds, Predicate{Kind: PredicateStatus, Status: *c.Status})
	}
	if !c.EffectiveDate.IsZero() {
		preds = append(preds, Predicate{Kind: PredicateEffectiveDate, Range: c.EffectiveDate})
	}
	if !c.ExpiryDate.IsZero() {
		preds = append(preds, Predicate{Kind: PredicateExpiryDate, Range: c.ExpiryDate})
	}
	if !c.PaymentDate.IsZero() {
		preds = append(preds, Predicate{Kind: PredicatePaymentDate, Range: c.PaymentDate})
	}
	if kw := strings.TrimSpace(c.Keyword); kw != "" {
		preds = append(preds, Predicate{Kind: PredicateKeyword, Keyword: kw})
	}
	return preds
}

// FilterEngine evaluates the conjunction of a predicate list. It is not safe
// for concurrent use; build one per request.
type FilterEngine struct {
	predicates []Predicate
	asOf       time.Time
	fold       cases.Caser
}

// NewFilterEngine compiles criteria. asOf drives the derived Overdue status.
func NewFilterEngine(c FilterCriteria, asOf time.Time) *FilterEngine {
	f := &FilterEngine{asOf: asOf, fold: cases.Fold()}
	for _, p := range c.Predicates() {
		if p.Kind == PredicateKeyword {
			p.Keyword = f.fold.String(p.Keyword)
		}
		f.predicates = append(f.predicates, p)
	}
	return f
}

// Predicates returns the compiled predicate list.
func (f *FilterEngine) Predicates() []Predicate {
	return slices.Clone(f.predicates)
}

// Match reports whether l satisfies every predicate.
func (f *FilterEngine) Match(l Line) bool {
	for _, p := range f.predicates {
		if !f.matchOne(p, l) {
			return false
		}
	}
	return true
}

func (f *FilterEngine) matchOne(p Predicate, l Line) bool {
	switch p.Kind {
	case PredicateCustomer:
		return l.Order.CustomerID == p.ID
	case PredicateProduct:
		return l.Item.ProductID == p.ID
	case PredicateSalesperson:
		return l.Order.SalespersonID == p.ID
	case PredicateStatus:
		return l.Order.DisplayStatus(f.asOf) == p.Status
	case PredicateEffectiveDate:
		return p.Range.Contains(l.Order.EffectiveDate)
	case PredicateExpiryDate:
		return p.Range.Contains(l.Order.ExpiryDate)
	case PredicatePaymentDate:
		return l.Order.PaymentReceivedDate != nil && p.Range.Contains(*l.Order.PaymentReceivedDate)
	case PredicateKeyword:
		return f.contains(l.CustomerName, p.Keyword) ||
			f.contains(l.Order.OrderNumber, p.Keyword) ||
			f.contains(l.ProductName, p.Keyword)
	}
	return false
}

func (f *FilterEngine) contains(haystack, folded string) bool {
	return strings.Contains(f.fold.String(haystack), folded)
}

// Seq lazily yields the lines that match.
func (f *FilterEngine) Seq(lines []Line) iter.Seq[Line] {
	return func(yield func(Line) bool) {
		for _, l := range lines {
			if f.Match(l) && !yield(l) {
				return
			}
		}
	}
}

// Apply materialises Seq.
func (f *FilterEngine) Apply(lines []Line) []Line {
	return slices.Collect(f.Seq(lines))
}

// SortLines orders lines newest order first, ties broken by item id ascending.
func SortLines(lines []Line) {
	slices.SortStableFunc(lines, func(a, b Line) int {
		if c := b.Order.CreatedAt.Compare(a.Order.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Item.ID, b.Item.ID)
	})
}
