package websocket

import (
	"encoding/json"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestBroadcastToUser(t *testing.T) {
	hub := NewHub()
	stop := make(chan struct{})
	go hub.Run(stop)
	defer close(stop)

	alice := &Client{send: make(chan []byte, 4), userID: 1}
	aliceTab := &Client{send: make(chan []byte, 4), userID: 1}
	bob := &Client{send: make(chan []byte, 4), userID: 2}
	hub.register <- alice
	hub.register <- aliceTab
	hub.register <- bob
	waitFor(t, func() bool { return hub.GetClientCount() == 3 })

	if got := hub.ConnectedUsers(); got != 2 {
		t.Fatalf("ConnectedUsers = %d, want 2", got)
	}

	hub.BroadcastToUser(1, map[string]string{"type": "notification"})

	for _, c := range []*Client{alice, aliceTab} {
		select {
		case msg := <-c.send:
			var decoded map[string]string
			if err := json.Unmarshal(msg, &decoded); err != nil || decoded["type"] != "notification" {
				t.Fatalf("unexpected payload %s (%v)", msg, err)
			}
		default:
			t.Fatalf("client of user 1 did not receive the message")
		}
	}
	select {
	case msg := <-bob.send:
		t.Fatalf("user 2 should not receive user 1 messages, got %s", msg)
	default:
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := NewHub()
	stop := make(chan struct{})
	go hub.Run(stop)
	defer close(stop)

	slow := &Client{send: make(chan []byte), userID: 9}
	hub.register <- slow
	waitFor(t, func() bool { return hub.GetClientCount() == 1 })

	hub.BroadcastToUser(9, "ping")
	if got := hub.GetClientCount(); got != 0 {
		t.Fatalf("blocked client should be removed, %d left", got)
	}
	if _, ok := <-slow.send; ok {
		t.Fatalf("send channel of a dropped client must be closed")
	}
}

func TestBroadcastAll(t *testing.T) {
	hub := NewHub()
	stop := make(chan struct{})
	go hub.Run(stop)
	defer close(stop)

	a := &Client{send: make(chan []byte, 1), userID: 1}
	b := &Client{send: make(chan []byte, 1), userID: 2}
	hub.register <- a
	hub.register <- b
	waitFor(t, func() bool { return hub.GetClientCount() == 2 })

	hub.Broadcast("hello")
	waitFor(t, func() bool { return len(a.send) == 1 && len(b.send) == 1 })
}
