// Package events publishes domain events after state changes commit.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finapi/pkg/logx"
)

type Type string

const (
	TransactionCreated Type = "transaction.created"
	TransactionUpdated Type = "transaction.updated"
	TransactionDeleted Type = "transaction.deleted"
	GoalContributed    Type = "goal.contributed"
	GoalCompleted      Type = "goal.completed"
	AccountReconciled  Type = "account.reconciled"
)

type Event struct {
	ID         string           `json:"id"`
	Type       Type             `json:"type"`
	UserID     uint             `json:"user_id"`
	EntityID   uint             `json:"entity_id"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func New(typ Type, userID, entityID uint) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		UserID:     userID,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
	}
}

// WithAmount returns a copy of e carrying amount.
func (e Event) WithAmount(amount decimal.Decimal) Event {
	e.Amount = &amount
	return e
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func FromJSON(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if e.Type == "" {
		return Event{}, fmt.Errorf("decode event: missing type")
	}
	return e, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Memory keeps published events in order. Tests only.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Publish(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Types lists the type of every recorded event.
func (m *Memory) Types() []Type {
	var out []Type
	for _, e := range m.Events() {
		out = append(out, e.Type)
	}
	return out
}

// Emitter publishes best-effort: failures are logged, never returned, so a
// committed change is not reported as failed because the broker is down.
// A nil Emitter is valid and does nothing.
type Emitter struct {
	pub Publisher
	log *logx.Logger
}

func NewEmitter(pub Publisher, log *logx.Logger) *Emitter {
	if pub == nil {
		pub = Nop{}
	}
	if log == nil {
		log = logx.Nop()
	}
	return &Emitter{pub: pub, log: log.WithComponent(logx.ComponentEvents)}
}

func (e *Emitter) Emit(ctx context.Context, evs ...Event) {
	if e == nil {
		return
	}
	for _, ev := range evs {
		if err := e.pub.Publish(ctx, ev); err != nil {
			e.log.Err(ctx, "publish", err, "event_type", string(ev.Type), "entity_id", ev.EntityID)
		}
	}
}
