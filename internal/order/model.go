package order

import "time"

// Order statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// Payment statuses.
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func ValidPaymentStatus(s string) bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Cancellable reports whether an order in the given status may still be
// cancelled (stock has not left the warehouse yet).
func Cancellable(status string) bool {
	return status == StatusPending || status == StatusProcessing
}

type Order struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Number  string `json:"order_number"`
	Status  string `json:"order_status"`

	PaymentStatus string `json:"payment_status"`
	PaymentMethod string `json:"payment_method"`

	// NUMERIC -> string, two decimal places
	Subtotal       string `json:"subtotal"`
	TaxAmount      string `json:"tax_amount"`
	ShippingAmount string `json:"shipping_amount"`
	TotalAmount    string `json:"total_amount"`
	CurrencyCode   string `json:"currency_code"`

	ShippingAddressID string `json:"shipping_address_id"`
	BillingAddressID  string `json:"billing_address_id"`
	Notes             string `json:"notes,omitempty"`

	ShippedDate   *time.Time `json:"shipped_date,omitempty"`
	DeliveredDate *time.Time `json:"delivered_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Line is a permanent price snapshot: unit_price never changes after the
// order is placed, even if the product's price does.
type Line struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	// TotalPrice = Quantity * UnitPrice, fixed at placement time.
	TotalPrice string `json:"total_price"`
}
