package reconciliation

import (
	"context"

	"github.com/odyssey-erp/odyssey-recon/internal/shared"
)

// Audit actions written alongside each mutation.
const (
	auditEntityOrder    = "order"
	auditCreateOrder    = "order.create"
	auditDeleteOrder    = "order.delete"
	auditConfirmPayment = "payment.confirm"
	auditUpdatePayment  = "payment.update"
)

func paymentAudit(ctx context.Context, action string, before Order, after PaymentRecord) shared.AuditLog {
	meta := map[string]any{
		"orderNumber":    after.OrderNumber,
		"fromStatus":     before.Status,
		"toStatus":       after.Status,
		"fromReceived":   before.ReceivedAmount.StringFixed(moneyPlaces),
		"toReceived":     after.ReceivedAmount.StringFixed(moneyPlaces),
		"totalAmount":    after.TotalAmount.StringFixed(moneyPlaces),
		"paymentDateSet": after.PaymentDate != nil,
	}
	if after.PaymentDate != nil {
		meta["paymentDate"] = after.PaymentDate.Format(dayLayout)
	}
	return shared.NewAuditLog(ctx, action, auditEntityOrder, formatID(after.OrderID), after.UpdatedAt, meta)
}
