package cart

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("cart line not found")
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Line, error)
	GetByOwnerProduct(ctx context.Context, ownerID, productID string) (*Line, error)
	ListWithProducts(ctx context.Context, ownerID string) ([]LineWithProduct, error)
	Add(ctx context.Context, l *Line) error
	UpdateQuantity(ctx context.Context, id string, qty int) error
	Remove(ctx context.Context, id, ownerID string) (bool, error)
	Count(ctx context.Context, ownerID string) (int, error)
	Clear(ctx context.Context, ownerID string) error
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Line, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var l Line
	err := r.db.QueryRow(ctx, `
		SELECT id, owner_id, product_id, quantity, created_at, updated_at
		FROM cart_items WHERE id=$1
	`, id).Scan(&l.ID, &l.OwnerID, &l.ProductID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (r *PGRepo) GetByOwnerProduct(ctx context.Context, ownerID, productID string) (*Line, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var l Line
	err := r.db.QueryRow(ctx, `
		SELECT id, owner_id, product_id, quantity, created_at, updated_at
		FROM cart_items WHERE owner_id=$1 AND product_id=$2
	`, ownerID, productID).Scan(&l.ID, &l.OwnerID, &l.ProductID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *PGRepo) ListWithProducts(ctx context.Context, ownerID string) ([]LineWithProduct, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT ci.id, ci.owner_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
		       p.name, p.price::text, p.stock_quantity, p.is_active
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.owner_id = $1
		ORDER BY ci.created_at
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LineWithProduct
	for rows.Next() {
		var l LineWithProduct
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.ProductID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt,
			&l.ProductName, &l.UnitPrice, &l.StockQuantity, &l.IsActive); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PGRepo) Add(ctx context.Context, l *Line) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// One line per (owner, product): concurrent adds for the same pair
	// collapse into a quantity bump instead of a duplicate row.
	_, err := r.db.Exec(ctx, `
		INSERT INTO cart_items (id, owner_id, product_id, quantity, created_at, updated_at)
		VALUES ($1,$2,$3,$4,NOW(),NOW())
		ON CONFLICT (owner_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
	`, l.ID, l.OwnerID, l.ProductID, l.Quantity)
	return err
}

func (r *PGRepo) UpdateQuantity(ctx context.Context, id string, qty int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `
		UPDATE cart_items SET quantity = $2, updated_at = NOW() WHERE id = $1
	`, id, qty)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) Remove(ctx context.Context, id, ownerID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE id=$1 AND owner_id=$2`, id, ownerID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *PGRepo) Count(ctx context.Context, ownerID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0) FROM cart_items WHERE owner_id=$1
	`, ownerID).Scan(&n)
	return n, err
}

func (r *PGRepo) Clear(ctx context.Context, ownerID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE owner_id=$1`, ownerID)
	return err
}
