package reconciliation

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-recon/internal/shared"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

type confirmPaymentRequest struct {
	PaymentDate *string `json:"paymentDate" validate:"omitempty,datetime=2006-01-02"`
}

type paymentUpdateRequest struct {
	OrderID        int64            `json:"orderId"`
	ReceivedAmount *decimal.Decimal `json:"receivedAmount" validate:"required"`
	PaymentDate    *string          `json:"paymentDate" validate:"omitempty,datetime=2006-01-02"`
	Remarks        *string          `json:"remarks" validate:"omitempty,max=500"`
}

type batchUpdateRequest struct {
	Items []paymentUpdateRequest `json:"items" validate:"required,min=1,max=500,dive"`
}

type createOrderRequest struct {
	CustomerID           int64                    `json:"customerId" validate:"required,gt=0"`
	SalespersonID        int64                    `json:"salesPersonId" validate:"required,gt=0"`
	EffectiveDate        string                   `json:"effectiveDate" validate:"required,datetime=2006-01-02"`
	ExpiryDate           string                   `json:"expiryDate" validate:"required,datetime=2006-01-02"`
	SalesCommission      *decimal.Decimal         `json:"salesCommission"`
	SupervisorCommission *decimal.Decimal         `json:"supervisorCommission"`
	ManagerCommission    *decimal.Decimal         `json:"managerCommission"`
	Items                []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type createOrderItemRequest struct {
	ProductID   int64            `json:"productId" validate:"required,gt=0"`
	Quantity    int              `json:"quantity" validate:"required,gt=0"`
	ActualPrice *decimal.Decimal `json:"actualPrice" validate:"required"`
}

type orderResponse struct {
	ID                   int64               `json:"id"`
	OrderNumber          string              `json:"orderNumber"`
	CustomerID           int64               `json:"customerId"`
	SalespersonID        int64               `json:"salesPersonId"`
	EffectiveDate        time.Time           `json:"effectiveDate"`
	ExpiryDate           time.Time           `json:"expiryDate"`
	Status               OrderStatus         `json:"status"`
	TotalAmount          decimal.Decimal     `json:"totalAmount"`
	SalesCommission      decimal.NullDecimal `json:"salesCommission"`
	SupervisorCommission decimal.NullDecimal `json:"supervisorCommission"`
	ManagerCommission    decimal.NullDecimal `json:"managerCommission"`
	Items                []orderItemResponse `json:"items"`
	CreatedAt            time.Time           `json:"createdAt"`
}

type orderItemResponse struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"productId"`
	Quantity    int             `json:"quantity"`
	ActualPrice decimal.Decimal `json:"actualPrice"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

func (req paymentUpdateRequest) toUpdate(orderID int64) (PaymentUpdate, error) {
	u := PaymentUpdate{OrderID: orderID, Remarks: req.Remarks}
	if req.ReceivedAmount != nil {
		u.ReceivedAmount = *req.ReceivedAmount
	}
	if req.PaymentDate != nil {
		d, err := time.Parse(dayLayout, *req.PaymentDate)
		if err != nil {
			return PaymentUpdate{}, fmt.Errorf("%w: paymentDate: %v", shared.ErrValidation, err)
		}
		u.PaymentDate = &d
	}
	return u, nil
}

func (req createOrderRequest) toInput() (CreateOrderInput, error) {
	effective, err := time.Parse(dayLayout, req.EffectiveDate)
	if err != nil {
		return CreateOrderInput{}, fmt.Errorf("%w: effectiveDate: %v", shared.ErrValidation, err)
	}
	expiry, err := time.Parse(dayLayout, req.ExpiryDate)
	if err != nil {
		return CreateOrderInput{}, fmt.Errorf("%w: expiryDate: %v", shared.ErrValidation, err)
	}
	in := CreateOrderInput{
		CustomerID:           req.CustomerID,
		SalespersonID:        req.SalespersonID,
		EffectiveDate:        effective,
		ExpiryDate:           expiry,
		SalesCommission:      nullDecimal(req.SalesCommission),
		SupervisorCommission: nullDecimal(req.SupervisorCommission),
		ManagerCommission:    nullDecimal(req.ManagerCommission),
	}
	for _, it := range req.Items {
		item := CreateOrderItemInput{ProductID: it.ProductID, Quantity: it.Quantity}
		if it.ActualPrice != nil {
			item.ActualPrice = *it.ActualPrice
		}
		in.Items = append(in.Items, item)
	}
	return in, nil
}

func newOrderResponse(o Order, items []OrderItem) orderResponse {
	out := orderResponse{
		ID:                   o.ID,
		OrderNumber:          o.OrderNumber,
		CustomerID:           o.CustomerID,
		SalespersonID:        o.SalespersonID,
		EffectiveDate:        o.EffectiveDate,
		ExpiryDate:           o.ExpiryDate,
		Status:               o.Status,
		TotalAmount:          OrderTotal(items),
		SalesCommission:      o.SalesCommission,
		SupervisorCommission: o.SupervisorCommission,
		ManagerCommission:    o.ManagerCommission,
		Items:                make([]orderItemResponse, 0, len(items)),
		CreatedAt:            o.CreatedAt,
	}
	for _, it := range items {
		out.Items = append(out.Items, orderItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			Quantity:    it.Quantity,
			ActualPrice: it.ActualPrice,
			TotalAmount: it.TotalAmount,
		})
	}
	return out
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// parseCriteria reads FilterCriteria from query parameters. Date bounds
// accept a day (2006-01-02) or a month (2006-01); a month start means its
// first day and a month end its last.
func parseCriteria(q url.Values) (FilterCriteria, error) {
	var (
		c   FilterCriteria
		err error
	)
	if c.CustomerID, err = queryID(q, "customerId"); err != nil {
		return c, err
	}
	if c.ProductID, err = queryID(q, "productId"); err != nil {
		return c, err
	}
	if c.SalespersonID, err = queryID(q, "salesPersonId"); err != nil {
		return c, err
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		st := OrderStatus(raw)
		c.Status = &st
	}
	if c.EffectiveDate, err = queryRange(q, "effectiveDate"); err != nil {
		return c, err
	}
	if c.ExpiryDate, err = queryRange(q, "expiryDate"); err != nil {
		return c, err
	}
	if c.PaymentDate, err = queryRange(q, "paymentDate"); err != nil {
		return c, err
	}
	c.Keyword = q.Get("keyword")
	if c.Page, err = queryInt(q, "pageNumber"); err != nil {
		return c, err
	}
	if c.PageSize, err = queryInt(q, "pageSize"); err != nil {
		return c, err
	}
	return c, nil
}

func queryID(q url.Values, name string) (*int64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: %s must be a positive integer", shared.ErrValidation, name)
	}
	return &id, nil
}

func queryInt(q url.Values, name string) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", shared.ErrValidation, name)
	}
	return n, nil
}

func queryRange(q url.Values, name string) (DateRange, error) {
	var r DateRange
	start, err := parseBound(q.Get(name+"Start"), false)
	if err != nil {
		return r, fmt.Errorf("%w: %sStart: %v", shared.ErrValidation, name, err)
	}
	end, err := parseBound(q.Get(name+"End"), true)
	if err != nil {
		return r, fmt.Errorf("%w: %sEnd: %v", shared.ErrValidation, name, err)
	}
	r.Start, r.End = start, end
	return r, nil
}

func parseBound(raw string, end bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if d, err := time.Parse(dayLayout, raw); err == nil {
		return &d, nil
	}
	m, err := time.Parse(monthLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("expected %s or %s", dayLayout, monthLayout)
	}
	if end {
		m = m.AddDate(0, 1, -1)
	}
	return &m, nil
}
