package relay

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	return l
}

// Property #9: the relay must never block the control loop. Broadcast must
// return promptly even against a client whose send buffer is already full,
// dropping the oldest queued frame rather than blocking on it.
func TestBroadcastDoesNotBlockOnFullClientBuffer(t *testing.T) {
	h := NewHub(testLogger(), nil)
	client := &Client{send: make(chan []byte, clientBuffer)}
	h.clients[client] = struct{}{}

	for i := 0; i < clientBuffer; i++ {
		h.Broadcast("fill", map[string]int{"i": i})
	}

	done := make(chan struct{})
	go func() {
		h.Broadcast("newest", map[string]string{"tag": "newest"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked against a full client send buffer")
	}

	var last []byte
drain:
	for {
		select {
		case msg := <-client.send:
			last = msg
		default:
			break drain
		}
	}

	if last == nil {
		t.Fatal("expected at least one queued message after broadcast")
	}
	if !strings.Contains(string(last), "newest") {
		t.Fatalf("expected the newest payload to survive the drop-oldest policy, got %s", last)
	}
}

func TestHubRegisterAndUnregisterLifecycle(t *testing.T) {
	h := NewHub(testLogger(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	client := &Client{send: make(chan []byte, clientBuffer), hub: h}
	h.register <- client

	waitForCondition(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		_, ok := h.clients[client]
		return ok
	})

	h.Broadcast("ping", map[string]string{"ok": "yes"})
	select {
	case msg := <-client.send:
		if !strings.Contains(string(msg), "ping") {
			t.Fatalf("expected broadcast payload to carry the message id, got %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the registered client to receive the broadcast")
	}

	h.unregister <- client
	waitForCondition(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		_, ok := h.clients[client]
		return !ok
	})

	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatal("expected client.send to be closed after unregister")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for client.send to close")
	}
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
