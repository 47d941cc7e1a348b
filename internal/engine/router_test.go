package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/parcelworks/eventgate/internal/bus"
	"github.com/parcelworks/eventgate/internal/domain"
	"github.com/parcelworks/eventgate/internal/ingress"
	"github.com/parcelworks/eventgate/internal/schema"
	"github.com/parcelworks/eventgate/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry(store.NewMemory())
	key := domain.SchemaKey{Producer: "orders", EventType: "order.created", Version: "1"}
	_, err := reg.Put(context.Background(), key,
		[]byte(`{"type":"object","properties":{"id":{"type":"string"}},"required":["id"]}`))
	if err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}
	return reg
}

func orderEvent(detail map[string]any) domain.CanonicalEvent {
	return domain.CanonicalEvent{
		Source:        "orders",
		DetailType:    "order.created",
		Detail:        detail,
		SchemaVersion: "1",
	}
}

func TestRoute_Accepted(t *testing.T) {
	accepted := bus.NewMemoryBus()
	dlq := bus.NewMemoryDeadLetter()
	router := NewRouter(testRegistry(t), accepted, dlq, discardLogger())

	outcome, err := router.Route(context.Background(), orderEvent(map[string]any{"id": "o-1"}))
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}

	if outcome.Status != domain.StatusAccepted {
		t.Errorf("status: got %q, want %q", outcome.Status, domain.StatusAccepted)
	}
	if outcome.EventType != "order.created" {
		t.Errorf("eventType: got %q, want %q", outcome.EventType, "order.created")
	}
	if outcome.Reason != "" {
		t.Errorf("reason should be empty on accept, got %q", outcome.Reason)
	}
	if got := len(accepted.Events()); got != 1 {
		t.Errorf("expected exactly 1 publish, got %d", got)
	}
	if got := len(dlq.Letters()); got != 0 {
		t.Errorf("expected no dead letters, got %d", got)
	}
}

func TestRoute_SchemaNotFound(t *testing.T) {
	accepted := bus.NewMemoryBus()
	dlq := bus.NewMemoryDeadLetter()
	router := NewRouter(testRegistry(t), accepted, dlq, discardLogger())

	ev := domain.CanonicalEvent{
		Source:        "unknown",
		DetailType:    "nope",
		Detail:        map[string]any{},
		SchemaVersion: "1",
	}
	outcome, err := router.Route(context.Background(), ev)
	if err != nil {
		t.Fatalf("expected rejection outcome, not error: %v", err)
	}

	if outcome.Status != domain.StatusRejected {
		t.Fatalf("status: got %q, want rejected", outcome.Status)
	}
	if !strings.Contains(outcome.Reason, "schema not found for unknown:nope v1") {
		t.Errorf("unexpected reason: %q", outcome.Reason)
	}
	if got := len(accepted.Events()); got != 0 {
		t.Errorf("expected zero publishes, got %d", got)
	}
	if got := len(dlq.Letters()); got != 1 {
		t.Errorf("expected exactly 1 dead letter, got %d", got)
	}
}

func TestRoute_ValidationFailure(t *testing.T) {
	accepted := bus.NewMemoryBus()
	dlq := bus.NewMemoryDeadLetter()
	router := NewRouter(testRegistry(t), accepted, dlq, discardLogger())

	outcome, err := router.Route(context.Background(), orderEvent(map[string]any{"qty": 2}))
	if err != nil {
		t.Fatalf("expected rejection outcome, not error: %v", err)
	}

	if outcome.Reason != "missing required field 'id'" {
		t.Errorf("unexpected reason: %q", outcome.Reason)
	}
	if got := len(dlq.Letters()); got != 1 {
		t.Errorf("expected exactly 1 dead letter, got %d", got)
	}
}

func TestRoute_NoSinkConfigured(t *testing.T) {
	accepted := bus.NewMemoryBus()
	router := NewRouter(testRegistry(t), accepted, nil, discardLogger())

	outcome, err := router.Route(context.Background(), orderEvent(map[string]any{}))
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}
	if outcome.Status != domain.StatusRejected {
		t.Errorf("status: got %q, want rejected", outcome.Status)
	}
}

func TestRoute_PublishFailureIsFatal(t *testing.T) {
	accepted := bus.NewMemoryBus()
	accepted.FailWith = errors.New("bus unreachable")
	router := NewRouter(testRegistry(t), accepted, nil, discardLogger())

	_, err := router.Route(context.Background(), orderEvent(map[string]any{"id": "o-1"}))
	if err == nil {
		t.Fatal("expected publish failure to propagate")
	}
}

func TestRoute_DeadLetterFailureDoesNotChangeOutcome(t *testing.T) {
	accepted := bus.NewMemoryBus()
	dlq := bus.NewMemoryDeadLetter()
	dlq.FailWith = errors.New("sink unreachable")
	router := NewRouter(testRegistry(t), accepted, dlq, discardLogger())

	outcome, err := router.Route(context.Background(), orderEvent(map[string]any{}))
	if err != nil {
		t.Fatalf("sink failure must be swallowed: %v", err)
	}
	if outcome.Status != domain.StatusRejected {
		t.Errorf("status: got %q, want rejected", outcome.Status)
	}
	if outcome.Reason != "missing required field 'id'" {
		t.Errorf("reason must survive sink failure, got %q", outcome.Reason)
	}
}

func TestRouteAll_PreservesOrder(t *testing.T) {
	accepted := bus.NewMemoryBus()
	dlq := bus.NewMemoryDeadLetter()
	router := NewRouter(testRegistry(t), accepted, dlq, discardLogger())

	normalizer := ingress.NewNormalizer("demo.producer", "demo.event")
	batch := []byte(`{"Records": [
		{"body": "{\"source\":\"orders\",\"detail-type\":\"order.created\",\"detail\":{\"id\":\"o-1\"}}"},
		{"body": "not json at all"},
		{"body": "{\"source\":\"orders\",\"detail-type\":\"order.created\",\"detail\":{\"id\":\"o-2\"}}"}
	]}`)

	outcomes, err := router.RouteAll(context.Background(), normalizer.Normalize(batch, ingress.HintBatch))
	if err != nil {
		t.Fatalf("routeAll failed: %v", err)
	}

	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if !outcomes[0].Accepted() {
		t.Errorf("outcome 0 should be accepted, got %+v", outcomes[0])
	}
	if outcomes[1].Status != domain.StatusRejected {
		t.Errorf("outcome 1 should be rejected, got %+v", outcomes[1])
	}
	if !outcomes[2].Accepted() {
		t.Errorf("outcome 2 should be accepted, got %+v", outcomes[2])
	}
	if got := len(accepted.Events()); got != 2 {
		t.Errorf("expected 2 publishes, got %d", got)
	}
}

func TestRouteAll_InfraFaultAbortsBatch(t *testing.T) {
	reg := schema.NewRegistry(failingStore{})
	router := NewRouter(reg, bus.NewMemoryBus(), nil, discardLogger())

	normalizer := ingress.NewNormalizer("demo.producer", "demo.event")
	_, err := router.RouteAll(context.Background(),
		normalizer.Normalize([]byte(`{"detail": {}}`), ingress.HintSingle))
	if err == nil {
		t.Fatal("expected registry fault to propagate")
	}
}

type failingStore struct{}

func (failingStore) PutSchema(context.Context, domain.SchemaKey, []byte) error {
	return errors.New("store down")
}

func (failingStore) GetSchema(context.Context, domain.SchemaKey) ([]byte, error) {
	return nil, errors.New("store down")
}
