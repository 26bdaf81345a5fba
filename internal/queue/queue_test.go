package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	body, _ := json.Marshal(map[string]string{"studentId": "STU-001"})
	if err := q.Publish(ctx, Message{Type: TypeCheckin, Body: body}); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume() error: %v", err)
	}

	select {
	case msg := <-messages:
		if msg.Type != TypeCheckin {
			t.Errorf("Type = %q, want %q", msg.Type, TypeCheckin)
		}
		var decoded map[string]string
		if err := json.Unmarshal(msg.Body, &decoded); err != nil {
			t.Fatalf("body did not decode: %v", err)
		}
		if decoded["studentId"] != "STU-001" {
			t.Errorf("studentId = %q", decoded["studentId"])
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestInMemoryPublishRespectsContext(t *testing.T) {
	q := NewInMemory(1)
	ctx := context.Background()
	if err := q.Publish(ctx, Message{Type: TypeCheckin}); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	// Queue full; a canceled context must unblock the publisher.
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Publish(canceled, Message{Type: TypeCheckin}); err == nil {
		t.Fatal("expected error publishing to a full queue with canceled context")
	}
}
