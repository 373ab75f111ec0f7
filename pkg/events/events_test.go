package events

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"finapi/pkg/logx"
)

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, Event) error { return errors.New("broker down") }

func TestEventJSONRoundTrip(t *testing.T) {
	ev := New(GoalContributed, 3, 9).WithAmount(decimal.RequireFromString("12.50"))
	body, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := FromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != GoalContributed || got.UserID != 3 || got.EntityID != 9 {
		t.Fatalf("unexpected event %+v", got)
	}
	if got.Amount == nil || !got.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("amount lost: %+v", got.Amount)
	}
}

func TestFromJSONRejectsMissingType(t *testing.T) {
	if _, err := FromJSON([]byte(`{"id":"x"}`)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestEmitterLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	em := NewEmitter(failingPublisher{}, logx.New(logx.Config{Output: &buf}))
	em.Emit(context.Background(), New(TransactionCreated, 1, 2))
	if !strings.Contains(buf.String(), "broker down") {
		t.Fatalf("expected failure logged, got %q", buf.String())
	}
}

func TestNilEmitterIsSafe(t *testing.T) {
	var em *Emitter
	em.Emit(context.Background(), New(TransactionDeleted, 1, 2))
}

func TestMemoryRecordsInOrder(t *testing.T) {
	m := &Memory{}
	em := NewEmitter(m, nil)
	em.Emit(context.Background(), New(TransactionCreated, 1, 1), New(TransactionDeleted, 1, 1))
	types := m.Types()
	if len(types) != 2 || types[0] != TransactionCreated || types[1] != TransactionDeleted {
		t.Fatalf("unexpected types %v", types)
	}
}
