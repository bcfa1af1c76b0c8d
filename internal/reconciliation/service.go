package reconciliation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-recon/internal/shared"
)

// RepositoryPort is the storage port of the service. Inside WithTx the callback
// receives a RepositoryPort bound to the transaction, and GetOrder locks the row.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error
	LoadSnapshot(ctx context.Context) (Snapshot, error)
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrderItems(ctx context.Context, orderID int64) ([]OrderItem, error)
	UpdatePayment(ctx context.Context, orderID int64, state PaymentState) error
	CreateOrder(ctx context.Context, order Order) (int64, error)
	InsertItem(ctx context.Context, item OrderItem) (int64, error)
	DeleteOrder(ctx context.Context, id int64) error
	LatestOrderNumber(ctx context.Context, prefix string) (string, error)
	ListReferences(ctx context.Context) (References, error)
	RecordAudit(ctx context.Context, entry shared.AuditLog) error
}

// Service orchestrates filtering, allocation and aggregation, and applies
// payment mutations.
type Service struct {
	repo      RepositoryPort
	numbers   *NumberGenerator
	cache     *SummaryCache
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
	allocator PaymentAllocator
	summaries SummaryAggregator

	locker   Locker
	attempts int
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source used for timestamps and Overdue.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithSummaryCache enables Redis caching of finance summaries.
func WithSummaryCache(cache *SummaryCache) ServiceOption {
	return func(s *Service) { s.cache = cache }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithLocker sets the lock guarding order-number allocation.
func WithLocker(l Locker) ServiceOption {
	return func(s *Service) { s.locker = l }
}

// WithNumberAttempts bounds order-number regeneration on conflict.
func WithNumberAttempts(n int) ServiceOption {
	return func(s *Service) { s.attempts = n }
}

// NewService builds the reconciliation service.
func NewService(repo RepositoryPort, opts ...ServiceOption) *Service {
	s := &Service{repo: repo, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache != nil {
		s.cache.logger = s.logger
	}
	s.numbers = NewNumberGenerator(repo, s.locker, s.attempts)
	s.numbers.onConflict = s.metrics.NumberConflict
	return s
}

// GetOrderDetails filters, sorts and pages order items and summarises the
// whole filtered set. Page and summary come from one snapshot.
func (s *Service) GetOrderDetails(ctx context.Context, criteria FilterCriteria) (OrderDetailsPage, error) {
	if err := criteria.Validate(); err != nil {
		return OrderDetailsPage{}, err
	}
	asOf := s.now()
	snap, err := s.repo.LoadSnapshot(ctx)
	if err != nil {
		return OrderDetailsPage{}, fmt.Errorf("load snapshot: %w", err)
	}

	lines := NewFilterEngine(criteria, asOf).Apply(snap.Lines())
	SortLines(lines)
	alloc := s.allocator.AllocateSnapshot(snap)

	pg := shared.NewPagination(criteria.Page, criteria.PageSize, len(lines))
	start, end := pg.Window()
	rows := make([]OrderDetailRow, 0, end-start)
	for i, l := range lines[start:end] {
		rows = append(rows, detailRow(l, alloc[l.Item.ID], asOf, start+i+1))
	}

	return OrderDetailsPage{
		Items:      rows,
		TotalCount: len(lines),
		PageNumber: pg.Page,
		PageSize:   pg.PerPage,
		Summary:    s.summaries.Aggregate(lines, alloc),
	}, nil
}

// GetFinanceSummary returns the summary of the filtered set, served from the
// summary cache when one is configured.
func (s *Service) GetFinanceSummary(ctx context.Context, criteria FilterCriteria) (Summary, error) {
	if err := criteria.Validate(); err != nil {
		return Summary{}, err
	}
	asOf := s.now()
	load := func(ctx context.Context) (Summary, error) {
		return s.computeSummary(ctx, criteria, asOf)
	}
	if s.cache == nil {
		return load(ctx)
	}

	key, err := s.cache.Key(ctx, criteria, asOf)
	if err != nil {
		s.logger.Warn("summary cache unavailable", slog.Any("error", err))
		return load(ctx)
	}
	summary, hit, err := s.cache.Fetch(ctx, key, load)
	if err != nil {
		return Summary{}, err
	}
	s.metrics.SummaryLookup(hit)
	return summary, nil
}

func (s *Service) computeSummary(ctx context.Context, criteria FilterCriteria, asOf time.Time) (Summary, error) {
	snap, err := s.repo.LoadSnapshot(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load snapshot: %w", err)
	}
	lines := NewFilterEngine(criteria, asOf).Apply(snap.Lines())
	return s.summaries.Aggregate(lines, s.allocator.AllocateSnapshot(snap)), nil
}

// ConfirmFullPayment marks the order Paid with its full total received.
// Repeating it on a Paid order succeeds; a zero paymentDate keeps the
// recorded date, or uses today when there is none.
func (s *Service) ConfirmFullPayment(ctx context.Context, orderID int64, paymentDate time.Time) (PaymentRecord, error) {
	if orderID <= 0 {
		err := fmt.Errorf("%w: order id is required", shared.ErrValidation)
		s.finishMutation(ctx, "confirm_full_payment", orderID, err)
		return PaymentRecord{}, err
	}

	var rec PaymentRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx RepositoryPort) error {
		order, items, err := loadOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		now := s.now()
		total := OrderTotal(items)
		date := order.PaymentReceivedDate
		if !paymentDate.IsZero() {
			d := dayOf(paymentDate)
			date = &d
		} else if date == nil {
			d := dayOf(now)
			date = &d
		}
		state := PaymentState{
			Status:         StatusPaid,
			ReceivedAmount: total,
			PaymentDate:    date,
			Remarks:        order.PaymentRemarks,
			UpdatedAt:      now,
		}
		if err := tx.UpdatePayment(ctx, orderID, state); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		rec = s.record(order, total, state)
		return tx.RecordAudit(ctx, paymentAudit(ctx, auditConfirmPayment, order, rec))
	})
	s.finishMutation(ctx, "confirm_full_payment", orderID, err)
	return rec, err
}

// UpdatePaymentInfo records an order-level received amount and derives the
// status from it. Paid orders cannot move back to an unpaid status.
func (s *Service) UpdatePaymentInfo(ctx context.Context, u PaymentUpdate) (PaymentRecord, error) {
	if err := u.validate(); err != nil {
		s.finishMutation(ctx, "update_payment", u.OrderID, err)
		return PaymentRecord{}, err
	}

	var rec PaymentRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx RepositoryPort) error {
		order, items, err := loadOrder(ctx, tx, u.OrderID)
		if err != nil {
			return err
		}
		now := s.now()
		total := OrderTotal(items)
		status := DeriveStatus(u.ReceivedAmount, total)
		if order.Status == StatusPaid && status != StatusPaid {
			return fmt.Errorf("%w: %w", shared.ErrValidation, ErrOrderAlreadyPaid)
		}

		state := PaymentState{
			Status:         status,
			ReceivedAmount: u.ReceivedAmount.Round(moneyPlaces),
			PaymentDate:    paymentDateFor(status, u.PaymentDate, order.PaymentReceivedDate, now),
			Remarks:        order.PaymentRemarks,
			UpdatedAt:      now,
		}
		switch status {
		case StatusPaid:
			state.ReceivedAmount = total
		case StatusPendingPayment:
			state.ReceivedAmount = decimal.Zero
		}
		if u.Remarks != nil {
			state.Remarks = u.Remarks
		}
		if err := tx.UpdatePayment(ctx, u.OrderID, state); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		rec = s.record(order, total, state)
		return tx.RecordAudit(ctx, paymentAudit(ctx, auditUpdatePayment, order, rec))
	})
	s.finishMutation(ctx, "update_payment", u.OrderID, err)
	return rec, err
}

// BatchUpdatePaymentInfo applies every update in its own transaction and
// collects failures instead of stopping at the first one.
func (s *Service) BatchUpdatePaymentInfo(ctx context.Context, updates []PaymentUpdate) BatchResult {
	batchID := uuid.NewString()
	var res BatchResult
	for i, u := range updates {
		if _, err := s.UpdatePaymentInfo(ctx, u); err != nil {
			failed := Failed(err)
			res.Errors = append(res.Errors, ItemError{Index: i, OrderID: u.OrderID, Message: failed.Message, Status: failed.Status})
			continue
		}
		res.AffectedCount++
	}
	s.logger.Info("batch payment update",
		slog.String("batch_id", batchID),
		slog.Int("items", len(updates)),
		slog.Int("affected", res.AffectedCount),
		slog.Int("failed", len(res.Errors)),
	)
	return res
}

// GetPaymentHistory describes the order's current payment position. Only
// the order-level state is kept, so the history holds at most one entry.
func (s *Service) GetPaymentHistory(ctx context.Context, orderID int64) ([]PaymentRecord, error) {
	if orderID <= 0 {
		return nil, fmt.Errorf("%w: order id is required", shared.ErrValidation)
	}
	order, items, err := loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == StatusPendingPayment && order.PaymentReceivedDate == nil {
		return []PaymentRecord{}, nil
	}
	state := PaymentState{
		Status:         order.Status,
		ReceivedAmount: order.ReceivedAmount,
		PaymentDate:    order.PaymentReceivedDate,
		Remarks:        order.PaymentRemarks,
		UpdatedAt:      order.UpdatedAt,
	}
	return []PaymentRecord{s.record(order, OrderTotal(items), state)}, nil
}

// DeriveStatus maps a received amount onto a stored status.
func DeriveStatus(received, total decimal.Decimal) OrderStatus {
	switch {
	case received.GreaterThanOrEqual(total):
		return StatusPaid
	case received.IsPositive():
		return StatusPartiallyPaid
	default:
		return StatusPendingPayment
	}
}

func (u PaymentUpdate) validate() error {
	if u.OrderID <= 0 {
		return fmt.Errorf("%w: order id is required", shared.ErrValidation)
	}
	if u.ReceivedAmount.IsNegative() {
		return fmt.Errorf("%w: received amount must not be negative", shared.ErrValidation)
	}
	return nil
}

func paymentDateFor(status OrderStatus, requested, current *time.Time, now time.Time) *time.Time {
	if requested != nil {
		d := dayOf(*requested)
		return &d
	}
	switch status {
	case StatusPaid:
		if current != nil {
			return current
		}
		d := dayOf(now)
		return &d
	case StatusPartiallyPaid:
		return current
	default:
		return nil
	}
}

func loadOrder(ctx context.Context, repo RepositoryPort, id int64) (Order, []OrderItem, error) {
	order, err := repo.GetOrder(ctx, id)
	if err != nil {
		return Order{}, nil, fmt.Errorf("get order %d: %w", id, err)
	}
	items, err := repo.ListOrderItems(ctx, id)
	if err != nil {
		return Order{}, nil, fmt.Errorf("list items of order %d: %w", id, err)
	}
	return order, items, nil
}

func (s *Service) record(order Order, total decimal.Decimal, state PaymentState) PaymentRecord {
	order.Status = state.Status
	order.ReceivedAmount = state.ReceivedAmount
	received := s.allocator.OrderReceived(order, total)
	return PaymentRecord{
		OrderID:          order.ID,
		OrderNumber:      order.OrderNumber,
		Status:           state.Status,
		TotalAmount:      total,
		ReceivedAmount:   received,
		UnreceivedAmount: total.Sub(received),
		PaymentRatio:     Ratio(received, total),
		PaymentDate:      state.PaymentDate,
		Remarks:          state.Remarks,
		UpdatedAt:        state.UpdatedAt,
	}
}

// finishMutation records the outcome of a mutation and invalidates cached
// summaries after a successful write.
func (s *Service) finishMutation(ctx context.Context, operation string, orderID int64, err error) {
	s.metrics.Mutation(operation, err)
	if err != nil {
		if Classify(err) == ClassInternalError {
			s.logger.Error("payment mutation failed",
				slog.String("operation", operation),
				slog.Int64("order_id", orderID),
				slog.Any("error", err),
			)
		}
		return
	}
	s.invalidateSummaries(ctx, operation)
}

func (s *Service) invalidateSummaries(ctx context.Context, operation string) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("summary cache bump failed",
			slog.String("operation", operation),
			slog.Any("error", err),
		)
	}
}

func detailRow(l Line, a Allocation, asOf time.Time, rowNumber int) OrderDetailRow {
	return OrderDetailRow{
		RowNumber:           rowNumber,
		OrderID:             l.Order.ID,
		OrderItemID:         l.Item.ID,
		OrderNumber:         l.Order.OrderNumber,
		CustomerID:          l.Order.CustomerID,
		CustomerName:        l.CustomerName,
		ProductID:           l.Item.ProductID,
		ProductName:         l.ProductName,
		SalespersonID:       l.Order.SalespersonID,
		SalespersonName:     l.SalespersonName,
		EffectiveDate:       l.Order.EffectiveDate,
		ExpiryDate:          l.Order.ExpiryDate,
		PaymentReceivedDate: l.Order.PaymentReceivedDate,
		Status:              l.Order.DisplayStatus(asOf),
		Quantity:            l.Item.Quantity,
		ActualPrice:         l.Item.ActualPrice,
		TotalAmount:         l.Item.TotalAmount,
		ReceivedAmount:      a.Received,
		UnreceivedAmount:    a.Unreceived,
		PaymentRatio:        a.Ratio,
		CreatedAt:           l.Order.CreatedAt,
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
