// Package checkout converts a cart into a durable order as a single
// all-or-nothing operation: price computation, stock validation, order and
// line inserts, conditional stock decrements and the cart clear either all
// happen or none do.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefrontlab/checkout-service/internal/cart"
	"github.com/storefrontlab/checkout-service/internal/order"
)

// Store is everything the placement flow needs from storage. CreateOrder
// must be transactional: order row, order lines, one conditional stock
// decrement per line and the owner's cart clear commit together or roll
// back together. It reports ErrNumberTaken on an order-number collision and
// *StockConflictError when a conditional decrement finds too little stock.
type Store interface {
	CartSnapshot(ctx context.Context, ownerID string) ([]cart.LineWithProduct, error)
	AddressExistsForOwner(ctx context.Context, addressID, ownerID string) (bool, error)
	CreateOrder(ctx context.Context, o *order.Order, lines []order.Line) error
}

type Config struct {
	TaxRate      decimal.Decimal
	ShippingFee  decimal.Decimal
	CurrencyCode string
}

type Service struct {
	store Store
	cfg   Config

	// newNumber is swappable so tests can force collisions.
	newNumber func() string
}

func NewService(store Store, cfg Config) *Service {
	return &Service{store: store, cfg: cfg, newNumber: NewOrderNumber}
}

// The label set accepted on checkout. Payment itself is not processed here;
// the label is recorded on the order as-is.
var paymentMethods = map[string]bool{
	"credit_card":      true,
	"paypal":           true,
	"cash_on_delivery": true,
}

const maxNumberAttempts = 3

type PlaceOrderInput struct {
	OwnerID           string
	ShippingAddressID string
	BillingAddressID  string
	PaymentMethod     string
	Notes             string
}

// PlaceOrder validates the owner's cart against the current catalog,
// computes the totals and commits the order. No mutation happens before the
// transaction, and a failed transaction leaves the cart untouched.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*order.Order, []order.Line, error) {
	if in.OwnerID == "" {
		return nil, nil, errors.New("owner id is required")
	}
	if !paymentMethods[in.PaymentMethod] {
		return nil, nil, ErrInvalidPaymentMethod
	}
	for _, addrID := range []string{in.ShippingAddressID, in.BillingAddressID} {
		ok, err := s.store.AddressExistsForOwner(ctx, addrID, in.OwnerID)
		if err != nil {
			return nil, nil, fmt.Errorf("confirm address %s: %w", addrID, err)
		}
		if !ok {
			return nil, nil, ErrAddressNotFound
		}
	}

	lines, err := s.store.CartSnapshot(ctx, in.OwnerID)
	if err != nil {
		return nil, nil, fmt.Errorf("load cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, nil, ErrEmptyCart
	}

	// Validate and price off the same snapshot. The conditional decrement
	// inside CreateOrder re-checks stock at commit time, so a concurrent
	// checkout between here and the commit cannot oversell.
	unit := make([]decimal.Decimal, len(lines))
	subtotal := decimal.Zero
	for i, l := range lines {
		if !l.IsActive {
			return nil, nil, &ProductUnavailableError{ProductID: l.ProductID, Name: l.ProductName}
		}
		if l.Quantity > l.StockQuantity {
			return nil, nil, &InsufficientStockError{
				ProductID: l.ProductID, Name: l.ProductName,
				Requested: l.Quantity, Available: l.StockQuantity,
			}
		}
		p, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return nil, nil, fmt.Errorf("bad price %q on product %s: %w", l.UnitPrice, l.ProductID, err)
		}
		unit[i] = p
		subtotal = subtotal.Add(p.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	// Tax is rounded exactly once, at the point it is stored.
	tax := subtotal.Mul(s.cfg.TaxRate).Round(2)
	total := subtotal.Add(tax).Add(s.cfg.ShippingFee)

	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		o := &order.Order{
			ID:                uuid.NewString(),
			OwnerID:           in.OwnerID,
			Number:            s.newNumber(),
			Status:            order.StatusPending,
			PaymentStatus:     order.PaymentPending,
			PaymentMethod:     in.PaymentMethod,
			Subtotal:          subtotal.StringFixed(2),
			TaxAmount:         tax.StringFixed(2),
			ShippingAmount:    s.cfg.ShippingFee.StringFixed(2),
			TotalAmount:       total.StringFixed(2),
			CurrencyCode:      s.cfg.CurrencyCode,
			ShippingAddressID: in.ShippingAddressID,
			BillingAddressID:  in.BillingAddressID,
			Notes:             in.Notes,
		}
		olines := make([]order.Line, len(lines))
		for i, l := range lines {
			olines[i] = order.Line{
				ID:         uuid.NewString(),
				OrderID:    o.ID,
				ProductID:  l.ProductID,
				Quantity:   l.Quantity,
				UnitPrice:  unit[i].StringFixed(2),
				TotalPrice: unit[i].Mul(decimal.NewFromInt(int64(l.Quantity))).StringFixed(2),
			}
		}

		err := s.store.CreateOrder(ctx, o, olines)
		if err == nil {
			return o, olines, nil
		}
		if errors.Is(err, ErrNumberTaken) {
			continue
		}
		var sc *StockConflictError
		if errors.As(err, &sc) {
			// Lost the race to a concurrent checkout; whole tx rolled back.
			for _, l := range lines {
				if l.ProductID == sc.ProductID {
					return nil, nil, &InsufficientStockError{
						ProductID: l.ProductID, Name: l.ProductName,
						Requested: l.Quantity, Available: sc.Available,
					}
				}
			}
			return nil, nil, &InsufficientStockError{ProductID: sc.ProductID, Available: sc.Available}
		}
		return nil, nil, &TransactionFailedError{Err: err}
	}
	return nil, nil, ErrOrderNumberConflict
}

// NewOrderNumber yields a human-shareable token like ORD-3F2A9C1B.
func NewOrderNumber() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "ORD-" + raw[:8]
}
