package sse

import (
	"strings"
	"testing"
	"time"
)

func recvWithTimeout(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before message arrived")
		}
		return string(msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return ""
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	a := b.Subscribe()
	c := b.Subscribe()

	b.Publish(Event{Type: EventDisposisiCreated, Data: map[string]int{"noDispo": 12}})

	for _, ch := range []chan []byte{a, c} {
		msg := recvWithTimeout(t, ch)
		if !strings.Contains(msg, "event: disposisi.created\n") {
			t.Errorf("missing event line: %q", msg)
		}
		if !strings.Contains(msg, `"noDispo":12`) {
			t.Errorf("missing payload: %q", msg)
		}
		if !strings.HasSuffix(msg, "\n\n") {
			t.Errorf("frame not terminated by blank line: %q", msg)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ch := b.Subscribe()
	b.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel, got message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Type: EventScanReceived, Data: map[string]string{"file": "a.pdf"}})
}

func TestClientCount(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	if n := b.ClientCount(); n != 0 {
		t.Fatalf("ClientCount = %d, want 0", n)
	}
	ch := b.Subscribe()
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("ClientCount = %d, want 1", n)
	}
	b.Unsubscribe(ch)
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("ClientCount after unsubscribe = %d, want 0", n)
	}
}

func TestCloseShutsDownSubscribers(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after broker Close")
	}

	// All operations are no-ops after Close.
	b.Publish(Event{Type: EventDisposisiOffline})
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("ClientCount after Close = %d, want 0", n)
	}
}
