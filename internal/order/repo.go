package order

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound       = errors.New("order not found")
	ErrInvalidStatus  = errors.New("invalid order status")
	ErrNotCancellable = errors.New("order can no longer be cancelled")
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Order, []Line, error)
	GetByNumber(ctx context.Context, number string) (*Order, []Line, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Order, error)
	// UpdateStatus applies a status transition: shipped/delivered stamp
	// their dates once, delivered marks the order paid, cancelled restores
	// stock for every line. Restock and the status write share one tx.
	UpdateStatus(ctx context.Context, id, status string) error
	SetPaymentStatus(ctx context.Context, id, status string) error
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const orderCols = `id, owner_id, order_number, order_status, payment_status, payment_method,
	subtotal::text, tax_amount::text, shipping_amount::text, total_amount::text, currency_code,
	shipping_address_id, billing_address_id, COALESCE(notes,''), shipped_date, delivered_date,
	created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OwnerID, &o.Number, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.TotalAmount, &o.CurrencyCode,
		&o.ShippingAddressID, &o.BillingAddressID, &o.Notes, &o.ShippedDate, &o.DeliveredDate,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Order, []Line, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return nil, nil, err
	}
	lines, err := r.getLines(ctx, o.ID)
	if err != nil {
		return nil, nil, err
	}
	return o, lines, nil
}

func (r *PGRepo) GetByNumber(ctx context.Context, number string) (*Order, []Line, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE order_number=$1`, number))
	if err != nil {
		return nil, nil, err
	}
	lines, err := r.getLines(ctx, o.ID)
	if err != nil {
		return nil, nil, err
	}
	return o, lines, nil
}

func (r *PGRepo) getLines(ctx context.Context, orderID string) ([]Line, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price::text, total_price::text
		FROM order_items WHERE order_id=$1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.TotalPrice); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+orderCols+` FROM orders WHERE owner_id=$1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *PGRepo) UpdateStatus(ctx context.Context, id, status string) error {
	if !ValidStatus(status) {
		return ErrInvalidStatus
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current string
	if err := tx.QueryRow(ctx, `
		SELECT order_status FROM orders WHERE id=$1 FOR UPDATE
	`, id).Scan(&current); err != nil {
		return ErrNotFound
	}

	if status == StatusCancelled && current != StatusCancelled {
		if !Cancellable(current) {
			return ErrNotCancellable
		}
		// Put every line's quantity back on the shelf.
		if _, err := tx.Exec(ctx, `
			UPDATE products p
			SET stock_quantity = p.stock_quantity + oi.quantity, updated_at = NOW()
			FROM order_items oi
			WHERE oi.order_id = $1 AND oi.product_id = p.id
		`, id); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders
		SET order_status = $2,
		    shipped_date   = CASE WHEN $2 = 'shipped'   AND shipped_date   IS NULL THEN NOW() ELSE shipped_date   END,
		    delivered_date = CASE WHEN $2 = 'delivered' AND delivered_date IS NULL THEN NOW() ELSE delivered_date END,
		    payment_status = CASE WHEN $2 = 'delivered' AND payment_status <> 'paid' THEN 'paid' ELSE payment_status END,
		    updated_at = NOW()
		WHERE id = $1
	`, id, status); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PGRepo) SetPaymentStatus(ctx context.Context, id, status string) error {
	if !ValidPaymentStatus(status) {
		return ErrInvalidStatus
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
