package cart

import "time"

// Line is one (owner, product) entry. OwnerID is opaque: an authenticated
// user id or an anonymous cart token, the cart does not care which.
type Line struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LineWithProduct joins a cart line with the catalog fields needed to
// render the cart and to validate a checkout.
type LineWithProduct struct {
	Line
	ProductName   string `json:"product_name"`
	UnitPrice     string `json:"unit_price"` // NUMERIC -> string
	StockQuantity int    `json:"stock_quantity"`
	IsActive      bool   `json:"is_active"`
}
