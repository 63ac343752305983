// Package expire sweeps carts past their pay-by deadline, returning
// their reserved stock and cancelling the pending purchase record.
package expire

import (
	"context"
	"fmt"
	"log"
	"time"

	"tienda/events"
	"tienda/models"
)

// Ledger releases previously reserved units.
type Ledger interface {
	Release(ctx context.Context, variantID string, qty int) error
}

// Store is the persistence surface of the sweep.
type Store interface {
	ExpiredCarts(ctx context.Context, now time.Time) ([]models.CartMeta, error)
	ListItems(ctx context.Context, cartID string) ([]models.LineItem, error)
	DeleteItems(ctx context.Context, cartID string) error
	DeleteReservations(ctx context.Context, cartID string) error
	MarkCancelled(ctx context.Context, cartID string) error
}

// Checker runs the post-sweep stock consistency pass.
type Checker interface {
	CheckConsistency(ctx context.Context) ([]string, error)
}

// Reconciler finds and unwinds expired carts. It runs daily and on
// demand, and is safe to run concurrently with foreground cart
// mutation: releases are pure increments and deleting already-deleted
// items is a no-op.
type Reconciler struct {
	store   Store
	ledger  Ledger
	checker Checker
	emitter *events.Emitter
}

func NewReconciler(store Store, ledger Ledger, checker Checker, emitter *events.Emitter) *Reconciler {
	return &Reconciler{store: store, ledger: ledger, checker: checker, emitter: emitter}
}

// Run performs one sweep and returns the number of carts expired. A
// missing cart or already-empty item list counts as success so the
// sweep stays idempotent.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	metas, err := r.store.ExpiredCarts(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, meta := range metas {
		if err := r.expireCart(ctx, meta); err != nil {
			log.Printf("expire: cart %s: %v", meta.CartID, err)
			continue
		}
		expired++
	}

	if r.checker != nil {
		if diverged, err := r.checker.CheckConsistency(ctx); err != nil {
			log.Printf("expire: consistency check: %v", err)
		} else if len(diverged) > 0 {
			log.Printf("expire: %d variants with diverged counters: %v", len(diverged), diverged)
		}
	}
	return expired, nil
}

func (r *Reconciler) expireCart(ctx context.Context, meta models.CartMeta) error {
	items, err := r.store.ListItems(ctx, meta.CartID)
	if err != nil {
		return err
	}

	for _, item := range items {
		// A failed release aborts the teardown: the cart keeps its
		// items and expire date, so the next sweep retries. Items
		// released before the failure are released again on the retry.
		if err := r.ledger.Release(ctx, item.VariantID, item.Quantity); err != nil {
			return fmt.Errorf("release %s x%d: %w", item.VariantID, item.Quantity, err)
		}
		r.emitter.Emit(ctx, events.StockReleased, events.Message{
			CartID: meta.CartID,
			Detail: item.VariantID,
		})
	}

	if err := r.store.DeleteItems(ctx, meta.CartID); err != nil {
		return err
	}
	if err := r.store.DeleteReservations(ctx, meta.CartID); err != nil {
		return err
	}
	// Clearing the expire date is the idempotency marker: a null date
	// is never revisited.
	if err := r.store.MarkCancelled(ctx, meta.CartID); err != nil {
		return err
	}

	r.emitter.Emit(ctx, events.OrderExpired, events.Message{CartID: meta.CartID, UserID: meta.UserID})
	return nil
}

// Start launches the daily sweep loop; it stops when ctx is done.
func (r *Reconciler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := r.Run(ctx); err != nil {
					log.Printf("expire: scheduled sweep: %v", err)
				} else if n > 0 {
					log.Printf("expire: scheduled sweep expired %d carts", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
