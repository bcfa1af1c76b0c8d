package reconciliation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-recon/internal/shared"
)

// CreateOrder stores an order and its items in one transaction under a
// freshly assigned order number.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (Order, []OrderItem, error) {
	if err := input.validate(); err != nil {
		return Order{}, nil, err
	}
	now := s.now()

	var (
		created Order
		items   []OrderItem
	)
	_, err := s.numbers.Assign(ctx, now, func(ctx context.Context, number string) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx RepositoryPort) error {
			order := Order{
				OrderNumber:          number,
				CustomerID:           input.CustomerID,
				SalespersonID:        input.SalespersonID,
				EffectiveDate:        dayOf(input.EffectiveDate),
				ExpiryDate:           dayOf(input.ExpiryDate),
				Status:               StatusPendingPayment,
				ReceivedAmount:       decimal.Zero,
				SalesCommission:      input.SalesCommission,
				SupervisorCommission: input.SupervisorCommission,
				ManagerCommission:    input.ManagerCommission,
				CreatedAt:            now,
				UpdatedAt:            now,
			}
			id, err := tx.CreateOrder(ctx, order)
			if err != nil {
				return err
			}
			order.ID = id

			inserted := make([]OrderItem, 0, len(input.Items))
			for _, in := range input.Items {
				item := OrderItem{
					OrderID:     id,
					ProductID:   in.ProductID,
					Quantity:    in.Quantity,
					ActualPrice: in.ActualPrice,
					TotalAmount: in.ActualPrice.Mul(decimal.NewFromInt(int64(in.Quantity))).Round(moneyPlaces),
					CreatedAt:   now,
				}
				itemID, err := tx.InsertItem(ctx, item)
				if err != nil {
					return fmt.Errorf("insert item: %w", err)
				}
				item.ID = itemID
				inserted = append(inserted, item)
			}
			created, items = order, inserted
			return tx.RecordAudit(ctx, shared.NewAuditLog(ctx, auditCreateOrder, auditEntityOrder, formatID(id), now, map[string]any{
				"orderNumber": number,
				"customerId":  input.CustomerID,
				"items":       len(inserted),
			}))
		})
	})
	if err != nil {
		return Order{}, nil, fmt.Errorf("create order: %w", err)
	}
	s.invalidateSummaries(ctx, "create_order")
	s.logger.Info("order created",
		slog.Int64("order_id", created.ID),
		slog.String("order_number", created.OrderNumber),
		slog.Int("items", len(items)),
	)
	return created, items, nil
}

// DeleteOrder removes an order together with its items.
func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: order id is required", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx RepositoryPort) error {
		order, err := tx.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteOrder(ctx, id); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.NewAuditLog(ctx, auditDeleteOrder, auditEntityOrder, formatID(id), s.now(), map[string]any{
			"orderNumber": order.OrderNumber,
			"status":      order.Status,
		}))
	})
	if err != nil {
		return fmt.Errorf("delete order %d: %w", id, err)
	}
	s.invalidateSummaries(ctx, "delete_order")
	return nil
}

func (in CreateOrderInput) validate() error {
	switch {
	case in.CustomerID <= 0:
		return fmt.Errorf("%w: customer is required", shared.ErrValidation)
	case in.SalespersonID <= 0:
		return fmt.Errorf("%w: salesperson is required", shared.ErrValidation)
	case in.EffectiveDate.IsZero():
		return fmt.Errorf("%w: effective date is required", shared.ErrValidation)
	case in.ExpiryDate.IsZero():
		return fmt.Errorf("%w: expiry date is required", shared.ErrValidation)
	case dayOf(in.ExpiryDate).Before(dayOf(in.EffectiveDate)):
		return fmt.Errorf("%w: expiry date is before effective date", shared.ErrValidation)
	case len(in.Items) == 0:
		return fmt.Errorf("%w: at least one item is required", shared.ErrValidation)
	}
	for i, it := range in.Items {
		switch {
		case it.ProductID <= 0:
			return fmt.Errorf("%w: item %d: product is required", shared.ErrValidation, i)
		case it.Quantity <= 0:
			return fmt.Errorf("%w: item %d: quantity must be positive", shared.ErrValidation, i)
		case it.ActualPrice.IsNegative():
			return fmt.Errorf("%w: item %d: price must not be negative", shared.ErrValidation, i)
		}
	}
	return nil
}
