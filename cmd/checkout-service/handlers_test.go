package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefrontlab/checkout-service/internal/cart"
	"github.com/storefrontlab/checkout-service/internal/catalog"
	"github.com/storefrontlab/checkout-service/internal/checkout"
	"github.com/storefrontlab/checkout-service/internal/httpx"
	"github.com/storefrontlab/checkout-service/internal/order"
)

//
// ---------- STUBS & FAKES ----------
//

// stubCatalog implements catalog.Repository in memory.
type stubCatalog struct {
	products map[string]*catalog.Product
}

func (s *stubCatalog) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubCatalog) List(ctx context.Context, q catalog.Query) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range s.products {
		if !q.ActiveOnly || p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *stubCatalog) DecrementStockIfAvailable(ctx context.Context, id string, qty int) (bool, error) {
	p, ok := s.products[id]
	if !ok || p.StockQuantity < qty {
		return false, nil
	}
	p.StockQuantity -= qty
	return true, nil
}

func (s *stubCatalog) RestoreStock(ctx context.Context, id string, qty int) error {
	p, ok := s.products[id]
	if !ok {
		return catalog.ErrNotFound
	}
	p.StockQuantity += qty
	return nil
}

// stubCarts implements cart.Repository in memory.
type stubCarts struct {
	lines   map[string]*cart.Line
	catalog *stubCatalog
}

func (s *stubCarts) GetByID(ctx context.Context, id string) (*cart.Line, error) {
	l, ok := s.lines[id]
	if !ok {
		return nil, cart.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *stubCarts) GetByOwnerProduct(ctx context.Context, ownerID, productID string) (*cart.Line, error) {
	for _, l := range s.lines {
		if l.OwnerID == ownerID && l.ProductID == productID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, cart.ErrNotFound
}

func (s *stubCarts) ListWithProducts(ctx context.Context, ownerID string) ([]cart.LineWithProduct, error) {
	var out []cart.LineWithProduct
	for _, l := range s.lines {
		if l.OwnerID != ownerID {
			continue
		}
		p := s.catalog.products[l.ProductID]
		out = append(out, cart.LineWithProduct{
			Line:          *l,
			ProductName:   p.Name,
			UnitPrice:     p.Price,
			StockQuantity: p.StockQuantity,
			IsActive:      p.IsActive,
		})
	}
	return out, nil
}

func (s *stubCarts) Add(ctx context.Context, l *cart.Line) error {
	if existing, err := s.GetByOwnerProduct(ctx, l.OwnerID, l.ProductID); err == nil {
		s.lines[existing.ID].Quantity += l.Quantity
		return nil
	}
	cp := *l
	s.lines[l.ID] = &cp
	return nil
}

func (s *stubCarts) UpdateQuantity(ctx context.Context, id string, qty int) error {
	l, ok := s.lines[id]
	if !ok {
		return cart.ErrNotFound
	}
	l.Quantity = qty
	return nil
}

func (s *stubCarts) Remove(ctx context.Context, id, ownerID string) (bool, error) {
	l, ok := s.lines[id]
	if !ok || l.OwnerID != ownerID {
		return false, nil
	}
	delete(s.lines, id)
	return true, nil
}

func (s *stubCarts) Count(ctx context.Context, ownerID string) (int, error) {
	n := 0
	for _, l := range s.lines {
		if l.OwnerID == ownerID {
			n += l.Quantity
		}
	}
	return n, nil
}

func (s *stubCarts) Clear(ctx context.Context, ownerID string) error {
	for id, l := range s.lines {
		if l.OwnerID == ownerID {
			delete(s.lines, id)
		}
	}
	return nil
}

// stubCheckoutStore implements checkout.Store on top of the two stubs above,
// with the same transactional contract as the PG store.
type stubCheckoutStore struct {
	carts   *stubCarts
	catalog *stubCatalog
	addrs   map[string]string // address -> owner
	orders  []*order.Order
}

func (s *stubCheckoutStore) CartSnapshot(ctx context.Context, ownerID string) ([]cart.LineWithProduct, error) {
	return s.carts.ListWithProducts(ctx, ownerID)
}

func (s *stubCheckoutStore) AddressExistsForOwner(ctx context.Context, addressID, ownerID string) (bool, error) {
	return s.addrs[addressID] == ownerID, nil
}

func (s *stubCheckoutStore) CreateOrder(ctx context.Context, o *order.Order, lines []order.Line) error {
	for _, l := range lines {
		p := s.catalog.products[l.ProductID]
		if p == nil || p.StockQuantity < l.Quantity {
			avail := 0
			if p != nil {
				avail = p.StockQuantity
			}
			return &checkout.StockConflictError{ProductID: l.ProductID, Available: avail}
		}
	}
	for _, l := range lines {
		s.catalog.products[l.ProductID].StockQuantity -= l.Quantity
	}
	cp := *o
	s.orders = append(s.orders, &cp)
	return s.carts.Clear(ctx, o.OwnerID)
}

// stubOrders implements order.Repository for the read/status handlers.
type stubOrders struct {
	last      *order.Order
	lastLines []order.Line
	catalog   *stubCatalog
}

func (s *stubOrders) GetByID(ctx context.Context, id string) (*order.Order, []order.Line, error) {
	if s.last == nil || s.last.ID != id {
		return nil, nil, order.ErrNotFound
	}
	return s.last, s.lastLines, nil
}

func (s *stubOrders) GetByNumber(ctx context.Context, number string) (*order.Order, []order.Line, error) {
	if s.last == nil || s.last.Number != number {
		return nil, nil, order.ErrNotFound
	}
	return s.last, s.lastLines, nil
}

func (s *stubOrders) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]order.Order, error) {
	if s.last != nil && s.last.OwnerID == ownerID {
		return []order.Order{*s.last}, nil
	}
	return []order.Order{}, nil
}

func (s *stubOrders) UpdateStatus(ctx context.Context, id, status string) error {
	if !order.ValidStatus(status) {
		return order.ErrInvalidStatus
	}
	if s.last == nil || s.last.ID != id {
		return order.ErrNotFound
	}
	if status == order.StatusCancelled && s.last.Status != order.StatusCancelled {
		if !order.Cancellable(s.last.Status) {
			return order.ErrNotCancellable
		}
		for _, l := range s.lastLines {
			_ = s.catalog.RestoreStock(ctx, l.ProductID, l.Quantity)
		}
	}
	s.last.Status = status
	return nil
}

func (s *stubOrders) SetPaymentStatus(ctx context.Context, id, status string) error {
	if !order.ValidPaymentStatus(status) {
		return order.ErrInvalidStatus
	}
	if s.last == nil || s.last.ID != id {
		return order.ErrNotFound
	}
	s.last.PaymentStatus = status
	return nil
}

func newFixture() (*stubCatalog, *stubCarts, *stubCheckoutStore) {
	cat := &stubCatalog{products: map[string]*catalog.Product{}}
	carts := &stubCarts{lines: map[string]*cart.Line{}, catalog: cat}
	store := &stubCheckoutStore{carts: carts, catalog: cat, addrs: map[string]string{}}
	return cat, carts, store
}

func addProduct(cat *stubCatalog, name, price string, stock int, active bool) string {
	id := uuid.NewString()
	cat.products[id] = &catalog.Product{
		ID: id, Name: name, Price: price, StockQuantity: stock, IsActive: active,
	}
	return id
}

func testRouter(route func(r *gin.Engine)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(httpx.Owner())
	route(r)
	return r
}

func doJSON(r *gin.Engine, method, path, owner, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-ID", owner)
	r.ServeHTTP(w, req)
	return w
}

func testService(store checkout.Store) *checkout.Service {
	return checkout.NewService(store, checkout.Config{
		TaxRate:      decimal.RequireFromString("0.10"),
		ShippingFee:  decimal.RequireFromString("10.00"),
		CurrencyCode: "USD",
	})
}

//
// ---------- TESTS ----------
//

func TestPlaceOrderHandler_HappyPath(t *testing.T) {
	t.Parallel()

	cat, carts, store := newFixture()
	owner := uuid.NewString()
	a := addProduct(cat, "Widget A", "20.00", 5, true)
	b := addProduct(cat, "Widget B", "15.00", 5, true)
	_ = carts.Add(context.Background(), &cart.Line{ID: uuid.NewString(), OwnerID: owner, ProductID: a, Quantity: 2})
	_ = carts.Add(context.Background(), &cart.Line{ID: uuid.NewString(), OwnerID: owner, ProductID: b, Quantity: 1})
	ship, bill := uuid.NewString(), uuid.NewString()
	store.addrs[ship] = owner
	store.addrs[bill] = owner

	r := testRouter(func(r *gin.Engine) { r.POST("/checkout", placeOrderHandler(testService(store))) })
	body := fmt.Sprintf(`{"shipping_address_id":%q,"billing_address_id":%q,"payment_method":"credit_card"}`, ship, bill)
	w := doJSON(r, http.MethodPost, "/checkout", owner, body)

	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Order order.Order  `json:"order"`
		Items []order.Line `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json inválido: %v", err)
	}
	if resp.Order.TotalAmount != "70.50" || resp.Order.Subtotal != "55.00" || resp.Order.TaxAmount != "5.50" {
		t.Fatalf("totales: %+v", resp.Order)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("items=%d", len(resp.Items))
	}
	if cat.products[a].StockQuantity != 3 || cat.products[b].StockQuantity != 4 {
		t.Fatalf("stock no descontado: a=%d b=%d", cat.products[a].StockQuantity, cat.products[b].StockQuantity)
	}
	if n, _ := carts.Count(context.Background(), owner); n != 0 {
		t.Fatalf("carrito no quedó vacío: %d", n)
	}
}

func TestPlaceOrderHandler_EmptyCart(t *testing.T) {
	t.Parallel()

	_, _, store := newFixture()
	owner := uuid.NewString()
	ship := uuid.NewString()
	store.addrs[ship] = owner

	r := testRouter(func(r *gin.Engine) { r.POST("/checkout", placeOrderHandler(testService(store))) })
	body := fmt.Sprintf(`{"shipping_address_id":%q,"billing_address_id":%q,"payment_method":"paypal"}`, ship, ship)
	w := doJSON(r, http.MethodPost, "/checkout", owner, body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s (esperaba 400)", w.Code, w.Body.String())
	}
	if len(store.orders) != 0 {
		t.Fatalf("se creó una orden con carrito vacío")
	}
}

func TestPlaceOrderHandler_InsufficientStock(t *testing.T) {
	t.Parallel()

	cat, carts, store := newFixture()
	owner := uuid.NewString()
	c := addProduct(cat, "Scarce", "5.00", 1, true)
	_ = carts.Add(context.Background(), &cart.Line{ID: uuid.NewString(), OwnerID: owner, ProductID: c, Quantity: 3})
	ship := uuid.NewString()
	store.addrs[ship] = owner

	r := testRouter(func(r *gin.Engine) { r.POST("/checkout", placeOrderHandler(testService(store))) })
	body := fmt.Sprintf(`{"shipping_address_id":%q,"billing_address_id":%q,"payment_method":"credit_card"}`, ship, ship)
	w := doJSON(r, http.MethodPost, "/checkout", owner, body)

	if w.Code != http.StatusConflict {
		t.Fatalf("status=%d body=%s (esperaba 409)", w.Code, w.Body.String())
	}
	var resp struct {
		ProductID string `json:"product_id"`
		Shortfall int    `json:"shortfall"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.ProductID != c || resp.Shortfall != 2 {
		t.Fatalf("detalle: %+v body=%s", resp, w.Body.String())
	}
	if cat.products[c].StockQuantity != 1 {
		t.Fatalf("stock cambió: %d", cat.products[c].StockQuantity)
	}
}

func TestPlaceOrderHandler_InactiveProduct(t *testing.T) {
	t.Parallel()

	cat, carts, store := newFixture()
	owner := uuid.NewString()
	p := addProduct(cat, "Retired", "9.99", 10, false)
	_ = carts.Add(context.Background(), &cart.Line{ID: uuid.NewString(), OwnerID: owner, ProductID: p, Quantity: 1})
	ship := uuid.NewString()
	store.addrs[ship] = owner

	r := testRouter(func(r *gin.Engine) { r.POST("/checkout", placeOrderHandler(testService(store))) })
	body := fmt.Sprintf(`{"shipping_address_id":%q,"billing_address_id":%q,"payment_method":"credit_card"}`, ship, ship)
	w := doJSON(r, http.MethodPost, "/checkout", owner, body)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s (esperaba 422)", w.Code, w.Body.String())
	}
}

func TestAddToCartHandler_MergesAndChecksStock(t *testing.T) {
	t.Parallel()

	cat, carts, _ := newFixture()
	owner := uuid.NewString()
	p := addProduct(cat, "Widget", "10.00", 3, true)

	r := testRouter(func(r *gin.Engine) { r.POST("/cart/items", addToCartHandler(carts, cat)) })

	body := fmt.Sprintf(`{"product_id":%q,"quantity":2}`, p)
	if w := doJSON(r, http.MethodPost, "/cart/items", owner, body); w.Code != http.StatusCreated {
		t.Fatalf("primer add: status=%d body=%s", w.Code, w.Body.String())
	}

	// second add would merge to 4 > stock 3
	if w := doJSON(r, http.MethodPost, "/cart/items", owner, body); w.Code != http.StatusConflict {
		t.Fatalf("segundo add: status=%d body=%s (esperaba 409)", w.Code, w.Body.String())
	}
	if n, _ := carts.Count(context.Background(), owner); n != 2 {
		t.Fatalf("count=%d, esperaba 2", n)
	}
}

func TestAddToCartHandler_InactiveProduct(t *testing.T) {
	t.Parallel()

	cat, carts, _ := newFixture()
	owner := uuid.NewString()
	p := addProduct(cat, "Retired", "10.00", 3, false)

	r := testRouter(func(r *gin.Engine) { r.POST("/cart/items", addToCartHandler(carts, cat)) })
	body := fmt.Sprintf(`{"product_id":%q,"quantity":1}`, p)
	if w := doJSON(r, http.MethodPost, "/cart/items", owner, body); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d (esperaba 422)", w.Code)
	}
}

func TestUpdateCartItemHandler_OwnershipEnforced(t *testing.T) {
	t.Parallel()

	cat, carts, _ := newFixture()
	owner, stranger := uuid.NewString(), uuid.NewString()
	p := addProduct(cat, "Widget", "10.00", 5, true)
	lineID := uuid.NewString()
	_ = carts.Add(context.Background(), &cart.Line{ID: lineID, OwnerID: owner, ProductID: p, Quantity: 1})

	r := testRouter(func(r *gin.Engine) { r.PUT("/cart/items/:id", updateCartItemHandler(carts, cat)) })

	if w := doJSON(r, http.MethodPut, "/cart/items/"+lineID, stranger, `{"quantity":2}`); w.Code != http.StatusForbidden {
		t.Fatalf("status=%d (esperaba 403)", w.Code)
	}
	if w := doJSON(r, http.MethodPut, "/cart/items/"+lineID, owner, `{"quantity":4}`); w.Code != http.StatusOK {
		t.Fatalf("status=%d (esperaba 200)", w.Code)
	}
	if l, _ := carts.GetByID(context.Background(), lineID); l.Quantity != 4 {
		t.Fatalf("quantity=%d", l.Quantity)
	}
}

func TestGetOrderHandler_NotFoundAndForbidden(t *testing.T) {
	t.Parallel()

	cat, _, _ := newFixture()
	owner := uuid.NewString()
	oid := uuid.NewString()
	repo := &stubOrders{catalog: cat, last: &order.Order{ID: oid, OwnerID: owner, Status: order.StatusPending}}

	r := testRouter(func(r *gin.Engine) { r.GET("/orders/:id", getOrderHandler(repo)) })

	if w := doJSON(r, http.MethodGet, "/orders/"+uuid.NewString(), owner, ""); w.Code != http.StatusNotFound {
		t.Fatalf("status=%d (esperaba 404)", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/orders/"+oid, uuid.NewString(), ""); w.Code != http.StatusForbidden {
		t.Fatalf("status=%d (esperaba 403)", w.Code)
	}
	if w := doJSON(r, http.MethodGet, "/orders/"+oid, owner, ""); w.Code != http.StatusOK {
		t.Fatalf("status=%d (esperaba 200)", w.Code)
	}
}

func TestUpdateOrderStatusHandler_CancelRestocks(t *testing.T) {
	t.Parallel()

	cat, _, _ := newFixture()
	p := addProduct(cat, "Widget", "10.00", 3, true)
	oid := uuid.NewString()
	repo := &stubOrders{
		catalog:   cat,
		last:      &order.Order{ID: oid, OwnerID: uuid.NewString(), Status: order.StatusPending},
		lastLines: []order.Line{{ID: uuid.NewString(), OrderID: oid, ProductID: p, Quantity: 2, UnitPrice: "10.00", TotalPrice: "20.00"}},
	}

	r := testRouter(func(r *gin.Engine) { r.PUT("/orders/:id/status", updateOrderStatusHandler(repo)) })

	if w := doJSON(r, http.MethodPut, "/orders/"+oid+"/status", "admin", `{"status":"cancelled"}`); w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if cat.products[p].StockQuantity != 5 {
		t.Fatalf("restock falló: stock=%d, esperado=5", cat.products[p].StockQuantity)
	}
	if repo.last.Status != order.StatusCancelled {
		t.Fatalf("estado final=%s", repo.last.Status)
	}
}

func TestUpdateOrderStatusHandler_InvalidStatus(t *testing.T) {
	t.Parallel()

	cat, _, _ := newFixture()
	oid := uuid.NewString()
	repo := &stubOrders{catalog: cat, last: &order.Order{ID: oid, Status: order.StatusPending}}

	r := testRouter(func(r *gin.Engine) { r.PUT("/orders/:id/status", updateOrderStatusHandler(repo)) })
	if w := doJSON(r, http.MethodPut, "/orders/"+oid+"/status", "admin", `{"status":"wtf"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d (esperaba 400)", w.Code)
	}
}

func TestUpdateOrderStatusHandler_ShippedNotCancellable(t *testing.T) {
	t.Parallel()

	cat, _, _ := newFixture()
	oid := uuid.NewString()
	repo := &stubOrders{catalog: cat, last: &order.Order{ID: oid, Status: order.StatusShipped}}

	r := testRouter(func(r *gin.Engine) { r.PUT("/orders/:id/status", updateOrderStatusHandler(repo)) })
	if w := doJSON(r, http.MethodPut, "/orders/"+oid+"/status", "admin", `{"status":"cancelled"}`); w.Code != http.StatusConflict {
		t.Fatalf("status=%d (esperaba 409)", w.Code)
	}
}

func TestCartCountHandler(t *testing.T) {
	t.Parallel()

	cat, carts, _ := newFixture()
	owner := uuid.NewString()
	p := addProduct(cat, "Widget", "10.00", 10, true)
	_ = carts.Add(context.Background(), &cart.Line{ID: uuid.NewString(), OwnerID: owner, ProductID: p, Quantity: 4})

	r := testRouter(func(r *gin.Engine) { r.GET("/cart/count", cartCountHandler(carts)) })
	w := doJSON(r, http.MethodGet, "/cart/count", owner, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 4 {
		t.Fatalf("count=%d, esperaba 4", resp.Count)
	}
}

func TestGetCartHandler_Subtotal(t *testing.T) {
	t.Parallel()

	cat, carts, _ := newFixture()
	owner := uuid.NewString()
	a := addProduct(cat, "Widget A", "20.00", 5, true)
	b := addProduct(cat, "Widget B", "15.00", 5, true)
	_ = carts.Add(context.Background(), &cart.Line{ID: uuid.NewString(), OwnerID: owner, ProductID: a, Quantity: 2})
	_ = carts.Add(context.Background(), &cart.Line{ID: uuid.NewString(), OwnerID: owner, ProductID: b, Quantity: 1})

	r := testRouter(func(r *gin.Engine) { r.GET("/cart", getCartHandler(carts)) })
	w := doJSON(r, http.MethodGet, "/cart", owner, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Subtotal string `json:"subtotal"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Subtotal != "55.00" {
		t.Fatalf("subtotal=%s, esperaba 55.00", resp.Subtotal)
	}
}

func init() {
	gin.SetMode(gin.TestMode)
	gin.DefaultWriter = io.Discard
	log.SetOutput(io.Discard)
}
