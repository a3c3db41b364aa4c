package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefrontlab/checkout-service/internal/address"
	"github.com/storefrontlab/checkout-service/internal/cart"
	"github.com/storefrontlab/checkout-service/internal/catalog"
	"github.com/storefrontlab/checkout-service/internal/checkout"
	"github.com/storefrontlab/checkout-service/internal/httpx"
	"github.com/storefrontlab/checkout-service/internal/order"
)

// AddToCartRequest payload for POST /cart/items.
// swagger:model AddToCartRequest
type AddToCartRequest struct {
	ProductID string `json:"product_id" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Quantity  int    `json:"quantity"   example:"2"`
}

// UpdateCartItemRequest payload for PUT /cart/items/:id.
// swagger:model UpdateCartItemRequest
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" example:"3"`
}

// PlaceOrderRequest payload for POST /checkout.
// swagger:model PlaceOrderRequest
type PlaceOrderRequest struct {
	ShippingAddressID string `json:"shipping_address_id" example:"b2f5ff47-2b1e-4f22-8a96-5f3c1f2f2e7b"`
	BillingAddressID  string `json:"billing_address_id"  example:"b2f5ff47-2b1e-4f22-8a96-5f3c1f2f2e7b"`
	PaymentMethod     string `json:"payment_method"      example:"credit_card"`
	Notes             string `json:"notes,omitempty"`
}

// UpdateOrderStatusRequest payload for PUT /orders/:id/status.
// swagger:model UpdateOrderStatusRequest
type UpdateOrderStatusRequest struct {
	Status string `json:"status" example:"shipped"`
}

// ---------- catalog ----------

// @Summary List products
// @Produce json
// @Param q query string false "search"
// @Success 200 {object} catalog.ListResponse
// @Router /products [get]
func listProductsHandler(repo catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		q := catalog.Query{Q: c.Query("q"), ActiveOnly: true, Limit: limit, Offset: offset}
		items, err := repo.List(c.Request.Context(), q)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list products failed"})
			return
		}
		c.JSON(http.StatusOK, catalog.ListResponse{Q: q.Q, Limit: limit, Offset: offset, Items: items})
	}
}

// @Summary Get a product
// @Produce json
// @Success 200 {object} catalog.Product
// @Router /products/{id} [get]
func getProductHandler(repo catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// ---------- cart ----------

// @Summary Show the cart with a subtotal
// @Produce json
// @Router /cart [get]
func getCartHandler(carts cart.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := httpx.OwnerID(c)
		if !ok {
			return
		}
		lines, err := carts.ListWithProducts(c.Request.Context(), owner)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "load cart failed"})
			return
		}
		subtotal := decimal.Zero
		for _, l := range lines {
			p, err := decimal.NewFromString(l.UnitPrice)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "bad price data"})
				return
			}
			subtotal = subtotal.Add(p.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		c.JSON(http.StatusOK, gin.H{"items": lines, "subtotal": subtotal.StringFixed(2)})
	}
}

// @Summary Add a product to the cart
// @Accept json
// @Param body body AddToCartRequest true "line"
// @Router /cart/items [post]
func addToCartHandler(carts cart.Repository, products catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := httpx.OwnerID(c)
		if !ok {
			return
		}
		var req AddToCartRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" || req.Quantity < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "product_id and quantity >= 1 required"})
			return
		}
		p, err := products.GetByID(c.Request.Context(), req.ProductID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		if !p.IsActive {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "this product is no longer available"})
			return
		}
		// merged quantity must still fit the shelf
		merged := req.Quantity
		if existing, err := carts.GetByOwnerProduct(c.Request.Context(), owner, req.ProductID); err == nil {
			merged += existing.Quantity
		}
		if p.StockQuantity < merged {
			c.JSON(http.StatusConflict, gin.H{"error": "not enough stock available"})
			return
		}
		l := &cart.Line{ID: uuid.NewString(), OwnerID: owner, ProductID: req.ProductID, Quantity: req.Quantity}
		if err := carts.Add(c.Request.Context(), l); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "add to cart failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "product added to cart"})
	}
}

// @Summary Change a cart line's quantity
// @Accept json
// @Param body body UpdateCartItemRequest true "quantity"
// @Router /cart/items/{id} [put]
func updateCartItemHandler(carts cart.Repository, products catalog.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := httpx.OwnerID(c)
		if !ok {
			return
		}
		var req UpdateCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Quantity < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity >= 1 required"})
			return
		}
		l, err := carts.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "cart line not found"})
			return
		}
		if l.OwnerID != owner {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your cart line"})
			return
		}
		p, err := products.GetByID(c.Request.Context(), l.ProductID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		if p.StockQuantity < req.Quantity {
			c.JSON(http.StatusConflict, gin.H{"error": "not enough stock available"})
			return
		}
		if err := carts.UpdateQuantity(c.Request.Context(), l.ID, req.Quantity); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update cart failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "cart updated"})
	}
}

// @Summary Remove a cart line
// @Router /cart/items/{id} [delete]
func removeCartItemHandler(carts cart.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := httpx.OwnerID(c)
		if !ok {
			return
		}
		removed, err := carts.Remove(c.Request.Context(), c.Param("id"), owner)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "remove failed"})
			return
		}
		if !removed {
			c.JSON(http.StatusNotFound, gin.H{"error": "cart line not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "item removed from cart"})
	}
}

// @Summary Cart badge count
// @Router /cart/count [get]
func cartCountHandler(carts cart.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := httpx.OwnerID(c)
		if !ok {
			return
		}
		n, err := carts.Count(c.Request.Context(), owner)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": n})
	}
}

// ---------- addresses ----------

// @Summary List the owner's addresses
// @Router /addresses [get]
func listAddressesHandler(addrs address.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := httpx.OwnerID(c)
		if !ok {
			return
		}
		out, err := addrs.ListByOwner(c.Request.Context(), owner)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list addresses failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": out})
	}
}

// ---------- checkout & orders ----------

// @Summary Place an order from the current cart
// @Accept json
// @Produce json
// @Param body body PlaceOrderRequest true "checkout"
// @Success 201 {object} order.Order
// @Router /checkout [post]
func placeOrderHandler(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := httpx.OwnerID(c)
		if !ok {
			return
		}
		var req PlaceOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		o, lines, err := svc.PlaceOrder(c.Request.Context(), checkout.PlaceOrderInput{
			OwnerID:           owner,
			ShippingAddressID: req.ShippingAddressID,
			BillingAddressID:  req.BillingAddressID,
			PaymentMethod:     req.PaymentMethod,
			Notes:             req.Notes,
		})
		if err != nil {
			writeCheckoutError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"order": o, "items": lines})
	}
}

// writeCheckoutError maps the service's error taxonomy onto HTTP statuses.
// Business-rule failures carry the product at fault so the storefront can
// point the customer at the right cart line.
func writeCheckoutError(c *gin.Context, err error) {
	var (
		ise *checkout.InsufficientStockError
		pue *checkout.ProductUnavailableError
		tfe *checkout.TransactionFailedError
	)
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "your cart is empty"})
	case errors.Is(err, checkout.ErrInvalidPaymentMethod):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown payment method"})
	case errors.Is(err, checkout.ErrAddressNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "address not found"})
	case errors.As(err, &ise):
		c.JSON(http.StatusConflict, gin.H{
			"error":      ise.Error(),
			"product_id": ise.ProductID,
			"requested":  ise.Requested,
			"available":  ise.Available,
			"shortfall":  ise.Shortfall(),
		})
	case errors.As(err, &pue):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      pue.Error(),
			"product_id": pue.ProductID,
		})
	case errors.Is(err, checkout.ErrOrderNumberConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "could not allocate an order number, please retry"})
	case errors.As(err, &tfe):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to place order, please try again"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to place order, please try again"})
	}
}

// @Summary List the owner's orders
// @Router /orders [get]
func listOrdersHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := httpx.OwnerID(c)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		out, err := repo.ListByOwner(c.Request.Context(), owner, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list orders failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": out, "limit": limit, "offset": offset})
	}
}

// @Summary Get an order with its lines
// @Router /orders/{id} [get]
func getOrderHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := httpx.OwnerID(c)
		if !ok {
			return
		}
		o, lines, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		if o.OwnerID != owner {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your order"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": o, "items": lines})
	}
}

// @Summary Transition an order's status
// @Accept json
// @Param body body UpdateOrderStatusRequest true "status"
// @Router /orders/{id}/status [put]
func updateOrderStatusHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status required"})
			return
		}
		err := repo.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"message": "order status updated"})
		case errors.Is(err, order.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		case errors.Is(err, order.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		case errors.Is(err, order.ErrNotCancellable):
			c.JSON(http.StatusConflict, gin.H{"error": "order can no longer be cancelled"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		}
	}
}
