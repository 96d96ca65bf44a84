package hub

import (
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testSubscriber() *Subscriber {
	return NewSubscriber(nil, time.Second, zap.NewNop(), nil)
}

func receive(t *testing.T, sub *Subscriber) []byte {
	t.Helper()
	select {
	case msg := <-sub.send:
		return msg
	case <-time.After(time.Second):
		t.Fatalf("no message received")
		return nil
	}
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	h := NewHub(zap.NewNop())
	first := testSubscriber()
	second := testSubscriber()
	h.Add(first)
	h.Add(second)

	if h.Count() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", h.Count())
	}

	h.Broadcast(map[string]string{"type": "telemetry"})

	for _, sub := range []*Subscriber{first, second} {
		var payload map[string]string
		if err := json.Unmarshal(receive(t, sub), &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["type"] != "telemetry" {
			t.Fatalf("unexpected payload %v", payload)
		}
	}
}

func TestBroadcastSkipsClosedSubscribers(t *testing.T) {
	h := NewHub(zap.NewNop())
	dead := testSubscriber()
	alive := testSubscriber()
	h.Add(dead)
	h.Add(alive)

	// Simulate a subscriber torn down mid-broadcast.
	close(dead.send)

	h.Broadcast(map[string]string{"type": "telemetry"})

	if msg := receive(t, alive); len(msg) == 0 {
		t.Fatalf("live subscriber should still receive broadcasts")
	}
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	h := NewHub(zap.NewNop())
	slow := testSubscriber()
	h.Add(slow)

	for i := 0; i < sendBufferSize+5; i++ {
		h.Broadcast(map[string]int{"seq": i})
	}

	if got := len(slow.send); got != sendBufferSize {
		t.Fatalf("expected buffer capped at %d, got %d", sendBufferSize, got)
	}
}

func TestRemove(t *testing.T) {
	h := NewHub(zap.NewNop())
	sub := testSubscriber()
	h.Add(sub)
	h.Remove(sub.id)
	if h.Count() != 0 {
		t.Fatalf("expected empty hub, got %d", h.Count())
	}
}
