package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"tienda/auth"
	"tienda/cart"
	"tienda/checkout"
	"tienda/conekta"
	"tienda/config"
	"tienda/db"
	"tienda/events"
	"tienda/expire"
	"tienda/identity"
	"tienda/inventory"
	"tienda/live"
	"tienda/mailer"
	"tienda/ratelim"
	"tienda/rdx"
	"tienda/receipts"
	"tienda/routes"
)

// securityHeaders applies a set of recommended HTTP security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request method, path, remote address, and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s from %s - %v", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
	})
}

// health is a simple health check handler.
func health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	store, err := db.Connect(connectCtx, cfg)
	connectCancel()
	if err != nil {
		log.Fatalf("mongodb: %v", err)
	}

	cache, err := rdx.Connect(ctx, cfg)
	if err != nil {
		log.Printf("redis unavailable, continuing without cache: %v", err)
		cache = nil
	}

	signer := identity.NewSigner(cfg.JWTSecret)
	hub := live.NewHub()
	ledger := inventory.NewLedger(store, hub)

	var emitter *events.Emitter
	if cache != nil {
		emitter = events.NewEmitter(cache.Conn)
	}

	gateway := conekta.NewClient(cfg.ConektaURL, cfg.ConektaKey)
	mail := mailer.New(cfg)

	var customerCache checkout.CustomerCache
	if cache != nil {
		customerCache = cache
	}

	cartSvc := cart.NewService(store, ledger, cfg.CartExpiry)
	checkoutSvc := checkout.NewService(store, gateway, mail, signer, emitter, customerCache, cfg)
	authSvc := auth.NewService(store, signer, func(err error) bool {
		return errors.Is(err, db.ErrNotFound)
	})
	receiptSvc := receipts.NewService(store, cfg.JWTSecret)
	reconciler := expire.NewReconciler(store, ledger, ledger, emitter)
	reconciler.Start(ctx, 24*time.Hour)

	rateLimiter := ratelim.New(rate.Every(time.Second), 10)

	router := httprouter.New()
	router.GET("/health", health)
	routes.AddAuthRoutes(router, rateLimiter, signer, auth.NewHandler(authSvc))
	routes.AddCartRoutes(router, rateLimiter, signer, cart.NewHandler(cartSvc))
	routes.AddCheckoutRoutes(router, rateLimiter, signer, checkout.NewHandler(checkoutSvc))
	routes.AddOrderRoutes(router, cfg.CronSecret, signer, receipts.NewHandler(receiptSvc), expire.NewHandler(reconciler))
	routes.AddStockRoutes(router, hub)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // lock down in production
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", identity.SessionHeader},
		ExposedHeaders:   []string{identity.AccessHeader, identity.SessionHeader},
		AllowCredentials: true,
	}).Handler(router)

	handler := loggingMiddleware(securityHeaders(corsHandler))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		log.Println("Closing stock feed...")
		hub.Stop()
	})

	go func() {
		log.Printf("Server listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutdown signal received; shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Graceful shutdown failed: %v", err)
	}
	cancel()

	if err := store.Close(context.Background()); err != nil {
		log.Printf("mongodb close: %v", err)
	}
	log.Println("Server stopped cleanly")
}
