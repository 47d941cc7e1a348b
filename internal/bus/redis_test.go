package bus

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/parcelworks/eventgate/internal/domain"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisBus_Publish(t *testing.T) {
	client := testClient(t)
	b := NewRedisBus(client, "events:accepted")
	ctx := context.Background()

	ev := domain.CanonicalEvent{
		Source:        "orders",
		DetailType:    "order.created",
		Detail:        map[string]any{"id": "o-1"},
		SchemaVersion: "1",
	}
	if err := b.Publish(ctx, ev); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	depth, err := b.Depth(ctx)
	if err != nil {
		t.Fatalf("depth failed: %v", err)
	}
	if depth != 1 {
		t.Fatalf("expected stream depth 1, got %d", depth)
	}

	entries, err := client.XRange(ctx, "events:accepted", "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange failed: %v", err)
	}
	values := entries[0].Values
	if values["source"] != "orders" {
		t.Errorf("source: got %v", values["source"])
	}
	if values["detail-type"] != "order.created" {
		t.Errorf("detail-type: got %v", values["detail-type"])
	}

	var detail map[string]any
	if err := json.Unmarshal([]byte(values["detail"].(string)), &detail); err != nil {
		t.Fatalf("detail is not JSON: %v", err)
	}
	if detail["id"] != "o-1" {
		t.Errorf("detail.id: got %v", detail["id"])
	}
}

func TestRedisDeadLetter_SendAndReadRecent(t *testing.T) {
	client := testClient(t)
	d := NewRedisDeadLetter(client, "events:dead-letter")
	ctx := context.Background()

	original := json.RawMessage(`{"source":"orders","detail":{}}`)
	if err := d.Send(ctx, "missing required field 'id'", original); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if err := d.Send(ctx, "schema not found for x:y v1", original); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	letters, err := d.ReadRecent(ctx, 10)
	if err != nil {
		t.Fatalf("readRecent failed: %v", err)
	}
	if len(letters) != 2 {
		t.Fatalf("expected 2 dead letters, got %d", len(letters))
	}

	// Newest first
	if letters[0].Reason != "schema not found for x:y v1" {
		t.Errorf("order: got %q first", letters[0].Reason)
	}
	if letters[1].Reason != "missing required field 'id'" {
		t.Errorf("order: got %q second", letters[1].Reason)
	}
	if letters[0].ID == "" {
		t.Error("dead letter should carry an ID")
	}
	if string(letters[1].Event) != string(original) {
		t.Errorf("event payload mismatch: %s", letters[1].Event)
	}
}

func TestRedisDeadLetter_ReadRecentLimit(t *testing.T) {
	client := testClient(t)
	d := NewRedisDeadLetter(client, "events:dead-letter")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := d.Send(ctx, "reason", json.RawMessage(`{}`)); err != nil {
			t.Fatalf("send failed: %v", err)
		}
	}

	letters, err := d.ReadRecent(ctx, 3)
	if err != nil {
		t.Fatalf("readRecent failed: %v", err)
	}
	if len(letters) != 3 {
		t.Errorf("expected 3, got %d", len(letters))
	}
}
