package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-recon/internal/platform/db"
	"github.com/odyssey-erp/odyssey-recon/internal/shared"
)

const orderNumberConstraint = "orders_order_number_key"

const orderColumns = `id, order_number, customer_id, salesperson_id, effective_date, expiry_date,
	payment_received_date, status, received_amount, payment_remarks,
	sales_commission, supervisor_commission, manager_commission, created_at, updated_at`

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides PostgreSQL backed persistence for reconciliation.
type Repository struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

var _ RepositoryPort = (*Repository)(nil)

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: pool}
}

// WithTx runs fn in a ReadCommitted transaction; GetOrder inside it locks
// the order row until commit.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	return db.WithReadCommitted(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Repository{pool: r.pool, q: tx, inTx: true})
	})
}

// LoadSnapshot reads every order, item and name under one read-only
// RepeatableRead transaction.
func (r *Repository) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	if r.inTx {
		return loadSnapshot(ctx, r.q)
	}
	var snap Snapshot
	err := db.WithSnapshot(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		snap, err = loadSnapshot(ctx, tx)
		return err
	})
	return snap, err
}

func loadSnapshot(ctx context.Context, q querier) (Snapshot, error) {
	snap := Snapshot{Orders: make(map[int64]Order)}

	rows, err := q.Query(ctx, `SELECT `+orderColumns+` FROM orders`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return Snapshot{}, fmt.Errorf("scan orders: %w", err)
	}
	for _, o := range orders {
		snap.Orders[o.ID] = o
	}

	if snap.Items, err = queryItems(ctx, q, `SELECT id, order_id, product_id, quantity, actual_price, total_amount, created_at
		FROM order_items ORDER BY id`); err != nil {
		return Snapshot{}, err
	}
	if snap.Customers, err = queryNames(ctx, q, `SELECT id, name FROM customers`); err != nil {
		return Snapshot{}, err
	}
	if snap.Products, err = queryNames(ctx, q, `SELECT id, name FROM products`); err != nil {
		return Snapshot{}, err
	}
	if snap.Salespeople, err = queryNames(ctx, q, `SELECT id, name FROM employees`); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// GetOrder loads an order, locking it when called inside WithTx.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if r.inTx {
		query += ` FOR UPDATE`
	}
	rows, err := r.q.Query(ctx, query, id)
	if err != nil {
		return Order{}, err
	}
	order, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, shared.ErrNotFound
	}
	return order, err
}

// ListOrderItems returns the items of one order in insertion order.
func (r *Repository) ListOrderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	return queryItems(ctx, r.q, `SELECT id, order_id, product_id, quantity, actual_price, total_amount, created_at
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
}

// UpdatePayment writes the order-level payment state.
func (r *Repository) UpdatePayment(ctx context.Context, orderID int64, state PaymentState) error {
	tag, err := r.q.Exec(ctx, `UPDATE orders
		SET status = $2, received_amount = $3, payment_received_date = $4, payment_remarks = $5, updated_at = $6
		WHERE id = $1`,
		orderID,
		string(state.Status),
		toNumeric(state.ReceivedAmount),
		toDate(state.PaymentDate),
		toText(state.Remarks),
		state.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CreateOrder inserts an order. A taken order number wraps shared.ErrConflict.
func (r *Repository) CreateOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO orders (
			order_number, customer_id, salesperson_id, effective_date, expiry_date, status, received_amount,
			sales_commission, supervisor_commission, manager_commission, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		o.OrderNumber,
		o.CustomerID,
		o.SalespersonID,
		pgtype.Date{Time: o.EffectiveDate, Valid: true},
		pgtype.Date{Time: o.ExpiryDate, Valid: true},
		string(o.Status),
		toNumeric(o.ReceivedAmount),
		toNullNumeric(o.SalesCommission),
		toNullNumeric(o.SupervisorCommission),
		toNullNumeric(o.ManagerCommission),
		o.CreatedAt,
		o.UpdatedAt,
	).Scan(&id)
	if db.IsUniqueViolation(err, orderNumberConstraint) {
		return 0, fmt.Errorf("%w: order number %s already taken", shared.ErrConflict, o.OrderNumber)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// InsertItem inserts one order item.
func (r *Repository) InsertItem(ctx context.Context, it OrderItem) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO order_items (order_id, product_id, quantity, actual_price, total_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		it.OrderID, it.ProductID, it.Quantity, toNumeric(it.ActualPrice), toNumeric(it.TotalAmount), it.CreatedAt,
	).Scan(&id)
	return id, err
}

// DeleteOrder removes an order; its items go with it.
func (r *Repository) DeleteOrder(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// LatestOrderNumber returns the highest order number carrying prefix.
func (r *Repository) LatestOrderNumber(ctx context.Context, prefix string) (string, error) {
	var number string
	err := r.q.QueryRow(ctx, `SELECT order_number FROM orders
		WHERE order_number LIKE $1 || '%'
		ORDER BY length(order_number) DESC, order_number DESC
		LIMIT 1`, prefix).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

// RecordAudit appends an audit entry using the repository's connection, so
// inside WithTx it commits with the mutation.
func (r *Repository) RecordAudit(ctx context.Context, entry shared.AuditLog) error {
	return shared.NewAuditLogger(r.q).Record(ctx, entry)
}

// ListReferences returns the parties that appear on at least one order.
func (r *Repository) ListReferences(ctx context.Context) (References, error) {
	var (
		refs References
		err  error
	)
	if refs.Customers, err = queryParties(ctx, r.q, `SELECT DISTINCT c.id, c.name
		FROM customers c JOIN orders o ON o.customer_id = c.id
		ORDER BY c.name, c.id`); err != nil {
		return References{}, err
	}
	if refs.Products, err = queryParties(ctx, r.q, `SELECT DISTINCT p.id, p.name
		FROM products p JOIN order_items i ON i.product_id = p.id
		ORDER BY p.name, p.id`); err != nil {
		return References{}, err
	}
	if refs.Salespeople, err = queryParties(ctx, r.q, `SELECT DISTINCT e.id, e.name
		FROM employees e JOIN orders o ON o.salesperson_id = e.id
		ORDER BY e.name, e.id`); err != nil {
		return References{}, err
	}
	return refs, nil
}

func scanOrder(row pgx.CollectableRow) (Order, error) {
	var (
		o                          Order
		status                     string
		paymentDate                pgtype.Date
		received                   pgtype.Numeric
		remarks                    pgtype.Text
		sales, supervisor, manager pgtype.Numeric
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &o.SalespersonID, &o.EffectiveDate, &o.ExpiryDate,
		&paymentDate, &status, &received, &remarks,
		&sales, &supervisor, &manager, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return Order{}, err
	}
	o.Status = OrderStatus(status)
	o.ReceivedAmount = fromNumeric(received).Decimal
	o.SalesCommission = fromNumeric(sales)
	o.SupervisorCommission = fromNumeric(supervisor)
	o.ManagerCommission = fromNumeric(manager)
	if paymentDate.Valid {
		d := paymentDate.Time
		o.PaymentReceivedDate = &d
	}
	if remarks.Valid {
		v := remarks.String
		o.PaymentRemarks = &v
	}
	return o, nil
}

func queryItems(ctx context.Context, q querier, sql string, args ...any) ([]OrderItem, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (OrderItem, error) {
		var (
			it           OrderItem
			price, total pgtype.Numeric
		)
		if err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &price, &total, &it.CreatedAt); err != nil {
			return OrderItem{}, err
		}
		it.ActualPrice = fromNumeric(price).Decimal
		it.TotalAmount = fromNumeric(total).Decimal
		return it, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan order items: %w", err)
	}
	return items, nil
}

func queryParties(ctx context.Context, q querier, sql string) ([]Party, error) {
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Party, error) {
		var p Party
		err := row.Scan(&p.ID, &p.Name)
		return p, err
	})
}

func queryNames(ctx context.Context, q querier, sql string) (map[int64]string, error) {
	parties, err := queryParties(ctx, q, sql)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(parties))
	for _, p := range parties {
		names[p.ID] = p.Name
	}
	return names, nil
}

func fromNumeric(n pgtype.Numeric) decimal.NullDecimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.NewFromBigInt(n.Int, n.Exp), Valid: true}
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func toNullNumeric(d decimal.NullDecimal) pgtype.Numeric {
	if !d.Valid {
		return pgtype.Numeric{}
	}
	return toNumeric(d.Decimal)
}

func toDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

func toText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}
