// Package routes registers the HTTP surface. Handlers are injected so
// nothing here touches storage directly.
package routes

import (
	"github.com/julienschmidt/httprouter"

	"tienda/auth"
	"tienda/cart"
	"tienda/checkout"
	"tienda/expire"
	"tienda/identity"
	"tienda/live"
	"tienda/middleware"
	"tienda/ratelim"
	"tienda/receipts"
)

func AddAuthRoutes(router *httprouter.Router, rl *ratelim.RateLimiter, signer *identity.Signer, h *auth.Handler) {
	router.POST("/api/auth/register", rl.Limit(h.Register))
	router.POST("/api/auth/login", rl.Limit(h.Login))
	router.POST("/api/auth/refresh", rl.Limit(h.Refresh))
	router.POST("/api/auth/logout", middleware.WithIdentity(signer, h.Logout))
}

func AddCartRoutes(router *httprouter.Router, rl *ratelim.RateLimiter, signer *identity.Signer, h *cart.Handler) {
	router.GET("/api/cart", middleware.WithIdentity(signer, h.List))
	router.POST("/api/cart", rl.Limit(middleware.WithIdentity(signer, h.AddItem)))
	router.PUT("/api/cart/:itemid", rl.Limit(middleware.WithIdentity(signer, h.UpdateItem)))
	router.DELETE("/api/cart/:itemid", rl.Limit(middleware.WithIdentity(signer, h.RemoveItem)))
}

func AddCheckoutRoutes(router *httprouter.Router, rl *ratelim.RateLimiter, signer *identity.Signer, h *checkout.Handler) {
	router.POST("/api/checkout", rl.Limit(middleware.WithIdentity(signer, h.Checkout)))
	router.POST("/api/checkout/confirm", rl.Limit(middleware.WithIdentity(signer, h.Confirm)))
}

func AddOrderRoutes(router *httprouter.Router, cronSecret string, signer *identity.Signer, rec *receipts.Handler, exp *expire.Handler) {
	router.GET("/api/orders/:orderid/qr", middleware.WithIdentity(signer, rec.PickupQR))
	router.GET("/api/orders/:orderid/slip", middleware.WithIdentity(signer, rec.PaymentSlip))
	router.POST("/api/orders/expire", middleware.RequireSecret(cronSecret, exp.Sweep))
}

func AddStockRoutes(router *httprouter.Router, hub *live.Hub) {
	router.GET("/ws/stock", hub.Serve)
}
