// Package events defines the payloads the ledger publishes after a commit
// and the fan-out used to deliver them.
package events

import (
	"log"
	"time"

	"go-ledger-ws/internal/model"
)

const (
	TopicTransactionCreated = "ledger.transaction_created"
	TopicTransactionUpdated = "ledger.transaction_updated"
	TopicTransactionDeleted = "ledger.transaction_deleted"
	TopicStockUpdate        = "inventory.stock_update"
	TopicEntityChanged      = "entity.changed"
)

// Publisher delivers one event to a topic.
type Publisher interface {
	Publish(topic string, event any) error
}

// TransactionEvent is emitted for every committed ledger mutation.
type TransactionEvent struct {
	Action      string                  `json:"action"`
	Transaction model.LedgerTransaction `json:"transaction"`
	Stock       []model.StockAdjustment `json:"stock,omitempty"`
	ActorID     string                  `json:"actor_id"`
	OccurredAt  time.Time               `json:"occurred_at"`
}

// StockEvent is emitted for every stock change, whether it came from a
// ledger transaction or a manual catalog adjustment.
type StockEvent struct {
	Action        string                `json:"action"`
	ProductName   string                `json:"product_name"`
	Adjustment    model.StockAdjustment `json:"adjustment"`
	TransactionID string                `json:"transaction_id,omitempty"`
	ActorID       string                `json:"actor_id"`
	OccurredAt    time.Time             `json:"occurred_at"`
}

// EntityEvent is emitted when an external entity is created, edited or removed.
type EntityEvent struct {
	Action     string             `json:"action"`
	Entity     model.LedgerEntity `json:"entity"`
	ActorID    string             `json:"actor_id"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// Keyed events carry the id that orders them; brokers that partition by
// key keep every event for one entity or product in sequence.
type Keyed interface {
	Key() string
}

func (e TransactionEvent) Key() string { return e.Transaction.EntityID }
func (e StockEvent) Key() string       { return e.Adjustment.ProductID }
func (e EntityEvent) Key() string      { return e.Entity.ID }

// Multi publishes to every publisher and returns the first error. A failing
// publisher does not stop the others.
type Multi []Publisher

func (m Multi) Publish(topic string, event any) error {
	var first error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(topic, event); err != nil {
			log.Printf("publish %s failed: %v", topic, err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(string, any) error { return nil }
