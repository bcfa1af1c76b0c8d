package reconciliation

import (
	"context"
	"fmt"
	"slices"
	"time"
)

const (
	monthsBack   = 12
	monthsAhead  = 11
	monthValue   = "2006-01"
	monthDisplay = "January 2006"
)

var statusLabels = map[OrderStatus]string{
	StatusPendingPayment: "Pending payment",
	StatusPartiallyPaid:  "Partially paid",
	StatusPaid:           "Paid",
	StatusOverdue:        "Overdue",
}

// GetFilterOptions lists the parties referenced by at least one order, the
// filterable statuses and a 24-month window for each date picker.
func (s *Service) GetFilterOptions(ctx context.Context) (FilterOptions, error) {
	refs, err := s.repo.ListReferences(ctx)
	if err != nil {
		return FilterOptions{}, fmt.Errorf("list references: %w", err)
	}
	months := MonthWindow(s.now())
	return FilterOptions{
		Customers:            partyOptions(refs.Customers),
		Products:             partyOptions(refs.Products),
		SalesPersons:         partyOptions(refs.Salespeople),
		OrderStatuses:        statusOptions(),
		EffectiveDateOptions: months,
		ExpiryDateOptions:    slices.Clone(months),
		PaymentDateOptions:   slices.Clone(months),
	}, nil
}

// MonthWindow returns year-month options from 12 months before now's month
// through 11 months after it.
func MonthWindow(now time.Time) []Option {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]Option, 0, monthsBack+monthsAhead+1)
	for i := -monthsBack; i <= monthsAhead; i++ {
		m := first.AddDate(0, i, 0)
		out = append(out, Option{Value: m.Format(monthValue), Text: m.Format(monthDisplay)})
	}
	return out
}

func partyOptions(parties []Party) []Option {
	out := make([]Option, 0, len(parties))
	for _, p := range parties {
		out = append(out, Option{Value: formatID(p.ID), Text: p.Name})
	}
	return out
}

func statusOptions() []Option {
	out := make([]Option, 0, len(Statuses))
	for _, st := range Statuses {
		out = append(out, Option{Value: string(st), Text: statusLabels[st]})
	}
	return out
}
