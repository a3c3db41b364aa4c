package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storefrontlab/checkout-service/internal/address"
	"github.com/storefrontlab/checkout-service/internal/cart"
	"github.com/storefrontlab/checkout-service/internal/order"
)

// PGStore backs the placement flow with PostgreSQL. Reads go through the
// cart and address repositories; the write side is a single transaction
// owned here.
type PGStore struct {
	db    *pgxpool.Pool
	carts cart.Repository
	addrs address.Repository
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db, carts: cart.NewPGRepo(db), addrs: address.NewPGRepo(db)}
}

func (s *PGStore) CartSnapshot(ctx context.Context, ownerID string) ([]cart.LineWithProduct, error) {
	return s.carts.ListWithProducts(ctx, ownerID)
}

func (s *PGStore) AddressExistsForOwner(ctx context.Context, addressID, ownerID string) (bool, error) {
	return s.addrs.ExistsForOwner(ctx, addressID, ownerID)
}

func (s *PGStore) CreateOrder(ctx context.Context, o *order.Order, lines []order.Line) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO orders (id, owner_id, order_number, order_status, payment_status, payment_method,
		                    subtotal, tax_amount, shipping_amount, total_amount, currency_code,
		                    shipping_address_id, billing_address_id, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW(),NOW())
	`, o.ID, o.OwnerID, o.Number, o.Status, o.PaymentStatus, o.PaymentMethod,
		o.Subtotal, o.TaxAmount, o.ShippingAmount, o.TotalAmount, o.CurrencyCode,
		o.ShippingAddressID, o.BillingAddressID, o.Notes); err != nil {
		if isUniqueViolation(err, "orders_order_number_key") {
			return ErrNumberTaken
		}
		return err
	}

	for _, l := range lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, total_price)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, l.ID, l.OrderID, l.ProductID, l.Quantity, l.UnitPrice, l.TotalPrice); err != nil {
			return err
		}
	}

	// Re-check-on-write: the decrement only applies while stock still
	// covers the line, so a checkout that raced us since the snapshot read
	// fails here and the whole transaction rolls back.
	for _, l := range lines {
		tag, err := tx.Exec(ctx, `
			UPDATE products
			SET stock_quantity = stock_quantity - $2, updated_at = NOW()
			WHERE id = $1 AND stock_quantity >= $2
		`, l.ProductID, l.Quantity)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var avail int
			_ = tx.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id=$1`, l.ProductID).Scan(&avail)
			return &StockConflictError{ProductID: l.ProductID, Available: avail}
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE owner_id=$1`, o.OwnerID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
