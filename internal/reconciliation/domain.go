package reconciliation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-recon/internal/shared"
)

// OrderStatus enumerates order payment statuses.
type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "PendingPayment"
	StatusPartiallyPaid  OrderStatus = "PartiallyPaid"
	StatusPaid           OrderStatus = "Paid"
	// StatusOverdue is never stored; it is derived from the expiry date on read.
	StatusOverdue OrderStatus = "Overdue"
)

// Statuses lists every status a caller may filter by, in display order.
var Statuses = []OrderStatus{StatusPendingPayment, StatusPartiallyPaid, StatusPaid, StatusOverdue}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusPartiallyPaid, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

// Order is the payment-relevant view of a customer order.
type Order struct {
	ID                   int64
	OrderNumber          string
	CustomerID           int64
	SalespersonID        int64
	EffectiveDate        time.Time
	ExpiryDate           time.Time
	PaymentReceivedDate  *time.Time
	Status               OrderStatus
	ReceivedAmount       decimal.Decimal
	PaymentRemarks       *string
	SalesCommission      decimal.NullDecimal
	SupervisorCommission decimal.NullDecimal
	ManagerCommission    decimal.NullDecimal
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DisplayStatus returns the stored status, or Overdue when the order is
// unpaid and its expiry date lies before asOf.
func (o Order) DisplayStatus(asOf time.Time) OrderStatus {
	if o.Status != StatusPaid && dayOf(o.ExpiryDate).Before(dayOf(asOf)) {
		return StatusOverdue
	}
	return o.Status
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	Quantity    int
	ActualPrice decimal.Decimal
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
}

// Line joins an order item with its order and the display names it references.
type Line struct {
	Item            OrderItem
	Order           Order
	CustomerName    string
	ProductName     string
	SalespersonName string
}

// Snapshot is a consistent read of every order, item and referenced name.
type Snapshot struct {
	Orders      map[int64]Order
	Items       []OrderItem
	Customers   map[int64]string
	Products    map[int64]string
	Salespeople map[int64]string
}

// Lines joins items with their orders. Items whose order is missing are dropped.
func (s Snapshot) Lines() []Line {
	lines := make([]Line, 0, len(s.Items))
	for _, item := range s.Items {
		order, ok := s.Orders[item.OrderID]
		if !ok {
			continue
		}
		lines = append(lines, Line{
			Item:            item,
			Order:           order,
			CustomerName:    s.Customers[order.CustomerID],
			ProductName:     s.Products[item.ProductID],
			SalespersonName: s.Salespeople[order.SalespersonID],
		})
	}
	return lines
}

// ItemsByOrder groups the snapshot items by owning order.
func (s Snapshot) ItemsByOrder() map[int64][]OrderItem {
	grouped := make(map[int64][]OrderItem, len(s.Orders))
	for _, item := range s.Items {
		grouped[item.OrderID] = append(grouped[item.OrderID], item)
	}
	return grouped
}

// DateRange is an inclusive, optionally one-sided range of calendar days.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// IsZero reports whether the range imposes no constraint.
func (r DateRange) IsZero() bool {
	return r.Start == nil && r.End == nil
}

// Contains reports whether t falls on a day inside the range.
func (r DateRange) Contains(t time.Time) bool {
	day := dayOf(t)
	if r.Start != nil && day.Before(dayOf(*r.Start)) {
		return false
	}
	if r.End != nil && day.After(dayOf(*r.End)) {
		return false
	}
	return true
}

func (r DateRange) validate(name string) error {
	if r.Start != nil && r.End != nil && dayOf(*r.Start).After(dayOf(*r.End)) {
		return fmt.Errorf("%w: %s start date is after end date", shared.ErrValidation, name)
	}
	return nil
}

// FilterCriteria narrows the order-item universe. Nil or empty fields impose
// no constraint. Zero Page and PageSize fall back to the defaults.
type FilterCriteria struct {
	CustomerID    *int64
	ProductID     *int64
	SalespersonID *int64
	Status        *OrderStatus
	EffectiveDate DateRange
	ExpiryDate    DateRange
	PaymentDate   DateRange
	Keyword       string
	Page          int
	PageSize      int
}

// Validate rejects malformed criteria.
func (c FilterCriteria) Validate() error {
	if c.Page < 0 {
		return fmt.Errorf("%w: page must be at least 1", shared.ErrValidation)
	}
	if c.PageSize < 0 {
		return fmt.Errorf("%w: page size must be at least 1", shared.ErrValidation)
	}
	if c.PageSize > shared.MaxPerPage {
		return fmt.Errorf("%w: page size must not exceed %d", shared.ErrValidation, shared.MaxPerPage)
	}
	if c.Status != nil && !c.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", shared.ErrValidation, *c.Status)
	}
	if err := c.EffectiveDate.validate("effective"); err != nil {
		return err
	}
	if err := c.ExpiryDate.validate("expiry"); err != nil {
		return err
	}
	return c.PaymentDate.validate("payment")
}

// OrderDetailRow is one annotated order item on a details page.
type OrderDetailRow struct {
	RowNumber           int             `json:"rowNumber"`
	OrderID             int64           `json:"orderId"`
	OrderItemID         int64           `json:"orderItemId"`
	OrderNumber         string          `json:"orderNumber"`
	CustomerID          int64           `json:"customerId"`
	CustomerName        string          `json:"customerName"`
	ProductID           int64           `json:"productId"`
	ProductName         string          `json:"productName"`
	SalespersonID       int64           `json:"salespersonId"`
	SalespersonName     string          `json:"salespersonName"`
	EffectiveDate       time.Time       `json:"effectiveDate"`
	ExpiryDate          time.Time       `json:"expiryDate"`
	PaymentReceivedDate *time.Time      `json:"paymentReceivedDate,omitempty"`
	Status              OrderStatus     `json:"status"`
	Quantity            int             `json:"quantity"`
	ActualPrice         decimal.Decimal `json:"actualPrice"`
	TotalAmount         decimal.Decimal `json:"totalAmount"`
	ReceivedAmount      decimal.Decimal `json:"receivedAmount"`
	UnreceivedAmount    decimal.Decimal `json:"unreceivedAmount"`
	PaymentRatio        decimal.Decimal `json:"paymentRatio"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// Summary aggregates a whole filtered set, independent of pagination.
type Summary struct {
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	TotalReceived   decimal.Decimal `json:"totalReceived"`
	TotalUnreceived decimal.Decimal `json:"totalUnreceived"`
	Ratio           decimal.Decimal `json:"ratio"`
	OrderCount      int             `json:"orderCount"`
	OrderItemCount  int             `json:"orderItemCount"`
}

// OrderDetailsPage is the response of GetOrderDetails.
type OrderDetailsPage struct {
	Items      []OrderDetailRow `json:"items"`
	TotalCount int              `json:"totalCount"`
	PageNumber int              `json:"pageNumber"`
	PageSize   int              `json:"pageSize"`
	Summary    Summary          `json:"summary"`
}

// Option is a value/text pair for pickers.
type Option struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// FilterOptions feeds the filter form.
type FilterOptions struct {
	Customers            []Option `json:"customers"`
	Products             []Option `json:"products"`
	SalesPersons         []Option `json:"salesPersons"`
	OrderStatuses        []Option `json:"orderStatuses"`
	EffectiveDateOptions []Option `json:"effectiveDateOptions"`
	ExpiryDateOptions    []Option `json:"expiryDateOptions"`
	PaymentDateOptions   []Option `json:"paymentDateOptions"`
}

// Party is a named reference (customer, product or salesperson).
type Party struct {
	ID   int64
	Name string
}

// References holds the parties that appear in at least one order.
type References struct {
	Customers   []Party
	Products    []Party
	Salespeople []Party
}

// PaymentUpdate is one UpdatePaymentInfo request.
type PaymentUpdate struct {
	OrderID        int64
	ReceivedAmount decimal.Decimal
	PaymentDate    *time.Time
	Remarks        *string
}

// PaymentState is the order-level payment data written by mutations.
type PaymentState struct {
	Status         OrderStatus
	ReceivedAmount decimal.Decimal
	PaymentDate    *time.Time
	Remarks        *string
	UpdatedAt      time.Time
}

// PaymentRecord describes the current payment position of an order.
type PaymentRecord struct {
	OrderID          int64           `json:"orderId"`
	OrderNumber      string          `json:"orderNumber"`
	Status           OrderStatus     `json:"status"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	ReceivedAmount   decimal.Decimal `json:"receivedAmount"`
	UnreceivedAmount decimal.Decimal `json:"unreceivedAmount"`
	PaymentRatio     decimal.Decimal `json:"paymentRatio"`
	PaymentDate      *time.Time      `json:"paymentDate,omitempty"`
	Remarks          *string         `json:"remarks,omitempty"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// ItemError reports one failed entry of a batch.
type ItemError struct {
	Index   int            `json:"index"`
	OrderID int64          `json:"orderId"`
	Message string         `json:"message"`
	Status  Classification `json:"status"`
}

// BatchResult summarises BatchUpdatePaymentInfo.
type BatchResult struct {
	AffectedCount int         `json:"affectedCount"`
	Errors        []ItemError `json:"errors,omitempty"`
}

// CreateOrderInput carries a new order and its items.
type CreateOrderInput struct {
	CustomerID           int64
	SalespersonID        int64
	EffectiveDate        time.Time
	ExpiryDate           time.Time
	SalesCommission      decimal.NullDecimal
	SupervisorCommission decimal.NullDecimal
	ManagerCommission    decimal.NullDecimal
	Items                []CreateOrderItemInput
}

// CreateOrderItemInput is one requested order line.
type CreateOrderItemInput struct {
	ProductID   int64
	Quantity    int
	ActualPrice decimal.Decimal
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
