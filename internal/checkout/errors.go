package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrAddressNotFound      = errors.New("address not found for owner")
	ErrInvalidPaymentMethod = errors.New("unknown payment method")
	ErrOrderNumberConflict  = errors.New("could not allocate a unique order number")

	// ErrNumberTaken is returned by Store.CreateOrder when the generated
	// order number hit the unique index; the service regenerates and retries.
	ErrNumberTaken = errors.New("order number already taken")
)

// ProductUnavailableError: a cart line references a product that has been
// deactivated since it was added.
type ProductUnavailableError struct {
	ProductID string
	Name      string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %q is no longer available", e.Name)
}

// InsufficientStockError carries enough detail for the caller to tell the
// customer which line to fix and by how much.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d",
		e.Name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Shortfall() int { return e.Requested - e.Available }

// StockConflictError is returned by Store.CreateOrder when the conditional
// decrement lost the race to a concurrent checkout at commit time.
type StockConflictError struct {
	ProductID string
	Available int
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("stock conflict on product %s: %d left", e.ProductID, e.Available)
}

// TransactionFailedError wraps any storage failure during order placement.
// Nothing was persisted; the cart is intact and the caller may retry.
type TransactionFailedError struct {
	Err error
}

func (e *TransactionFailedError) Error() string {
	return "order transaction failed: " + e.Err.Error()
}

func (e *TransactionFailedError) Unwrap() error { return e.Err }
