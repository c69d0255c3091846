// Package events fans committed inventory events out to live subscribers of
// the same bakery.
package events

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"bakery_ops_backend/pkg/utils"
)

// Event types.
const (
	TypeLotReceived         = "lot.received"
	TypeStockConsumed       = "stock.consumed"
	TypeLotAdjusted         = "lot.adjusted"
	TypeProductionCompleted = "production.completed"
)

// Event is a ledger change that has been committed.
type Event struct {
	Type              string           `json:"type"`
	BakeryID          string           `json:"bakery_id"`
	IngredientID      string           `json:"ingredient_id,omitempty"`
	IngredientName    string           `json:"ingredient_name,omitempty"`
	LotID             string           `json:"lot_id,omitempty"`
	ProductionSheetID string           `json:"production_sheet_id,omitempty"`
	TransactionID     string           `json:"transaction_id,omitempty"`
	Quantity          *decimal.Decimal `json:"quantity,omitempty"`
	Unit              string           `json:"unit,omitempty"`
	CurrentQty        *decimal.Decimal `json:"current_qty,omitempty"`
	ActorID           string           `json:"actor_id,omitempty"`
	OccurredAt        time.Time        `json:"occurred_at"`
}

// Publisher is what services depend on. Publish must not block.
type Publisher interface {
	Publish(ev Event)
}

// Subscriber receives the events of one bakery on C.
type Subscriber struct {
	BakeryID string
	C        chan Event
	dropped  int
}

// Hub is an in-process Publisher.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	buffer      int
	onChange    func(delta int)
}

// NewHub creates a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{subscribers: make(map[*Subscriber]struct{}), buffer: buffer}
}

// OnSubscriberChange registers a callback for subscriber count changes.
func (h *Hub) OnSubscriberChange(fn func(delta int)) {
	h.mu.Lock()
	h.onChange = fn
	h.mu.Unlock()
}

// Subscribe registers a subscriber for bakeryID.
func (h *Hub) Subscribe(bakeryID string) *Subscriber {
	sub := &Subscriber{BakeryID: bakeryID, C: make(chan Event, h.buffer)}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	fn := h.onChange
	h.mu.Unlock()
	if fn != nil {
		fn(1)
	}
	return sub
}

// Unsubscribe removes sub and closes its channel. It is safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	_, ok := h.subscribers[sub]
	if ok {
		delete(h.subscribers, sub)
		close(sub.C)
	}
	fn := h.onChange
	h.mu.Unlock()
	if ok && fn != nil {
		fn(-1)
	}
}

// Publish delivers ev to the bakery's subscribers. A subscriber whose buffer
// is full misses the event.
func (h *Hub) Publish(ev Event) {
	if h == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		if sub.BakeryID != ev.BakeryID {
			continue
		}
		select {
		case sub.C <- ev:
		default:
			sub.dropped++
			utils.LogWarn("Inventory feed subscriber is slow, dropping event", map[string]interface{}{
				"bakery_id": sub.BakeryID, "type": ev.Type, "dropped": sub.dropped,
			})
		}
	}
}

// Count returns the number of subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
