// Package events publishes order lifecycle events on a redis pub/sub
// channel for downstream consumers (indexing, analytics, back office).
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const channel = "order-events"

// Event names emitted by the engine.
const (
	OrderCreated  = "order-created"
	OrderPaid     = "order-paid"
	OrderExpired  = "order-expired"
	StockReleased = "stock-released"
)

// Message is the wire form of an emitted event.
type Message struct {
	Event   string    `json:"event"`
	CartID  string    `json:"cartId,omitempty"`
	UserID  string    `json:"userId,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	Emitted time.Time `json:"emitted"`
}

// Emitter publishes events; a nil Emitter drops them, so callers
// never need to guard.
type Emitter struct {
	conn *redis.Client
}

func NewEmitter(conn *redis.Client) *Emitter {
	return &Emitter{conn: conn}
}

// Emit publishes one event. Failures are logged, never propagated:
// event delivery is best-effort and must not fail a checkout.
func (e *Emitter) Emit(ctx context.Context, event string, msg Message) {
	if e == nil || e.conn == nil {
		return
	}
	msg.Event = event
	msg.Emitted = time.Now()

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("events: marshal %s: %v", event, err)
		return
	}
	if err := e.conn.Publish(ctx, channel, data).Err(); err != nil {
		log.Printf("events: publish %s: %v", event, err)
	}
}
