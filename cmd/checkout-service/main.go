package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/storefrontlab/checkout-service/internal/address"
	"github.com/storefrontlab/checkout-service/internal/cart"
	"github.com/storefrontlab/checkout-service/internal/catalog"
	"github.com/storefrontlab/checkout-service/internal/checkout"
	"github.com/storefrontlab/checkout-service/internal/config"
	"github.com/storefrontlab/checkout-service/internal/httpx"
	"github.com/storefrontlab/checkout-service/internal/order"
)

// @title Checkout Service API
// @version 1.0
// @description Cart, checkout and order endpoints for the storefront.
// @BasePath /
func main() {
	cfg := config.Load()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("pgxpool: %v", err)
	}
	defer pool.Close()

	carts := cart.NewPGRepo(pool)
	products := catalog.NewPGRepo(pool)
	addrs := address.NewPGRepo(pool)
	orders := order.NewPGRepo(pool)
	svc := checkout.NewService(checkout.NewPGStore(pool), checkout.Config{
		TaxRate:      cfg.TaxRate,
		ShippingFee:  cfg.ShippingFee,
		CurrencyCode: cfg.CurrencyCode,
	})

	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(), httpx.Owner())

	r.GET("/healthz", func(c *gin.Context) { c.String(200, "ok") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/products", listProductsHandler(products))
	r.GET("/products/:id", getProductHandler(products))

	r.GET("/cart", getCartHandler(carts))
	r.POST("/cart/items", addToCartHandler(carts, products))
	r.PUT("/cart/items/:id", updateCartItemHandler(carts, products))
	r.DELETE("/cart/items/:id", removeCartItemHandler(carts))
	r.GET("/cart/count", cartCountHandler(carts))

	r.GET("/addresses", listAddressesHandler(addrs))

	r.POST("/checkout", placeOrderHandler(svc))
	r.GET("/orders", listOrdersHandler(orders))
	r.GET("/orders/:id", getOrderHandler(orders))
	r.PUT("/orders/:id/status", updateOrderStatusHandler(orders))

	log.Printf("checkout-service listening on %s", cfg.HTTPAddr)
	log.Fatal(r.Run(cfg.HTTPAddr))
}
