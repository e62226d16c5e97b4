package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHubRegisterAndDirectSend(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{Hub: hub, UserID: "pat-9", Send: make(chan []byte, 8)}
	hub.Register <- client

	assert.Eventually(t, func() bool {
		return hub.Connected("pat-9")
	}, time.Second, 10*time.Millisecond)

	hub.SendDirectMessage("pat-9", []byte(`{"type":"message.new"}`))

	select {
	case payload := <-client.Send:
		assert.Equal(t, `{"type":"message.new"}`, string(payload))
	case <-time.After(time.Second):
		t.Fatal("payload never reached the client")
	}
}

func TestHubSendToOfflineUserIsDropped(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// No connection for this user; the push is simply lost.
	hub.SendDirectMessage("ghost", []byte("hello"))
	assert.False(t, hub.Connected("ghost"))
}

func TestHubFansOutToAllUserConnections(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	phone := &Client{Hub: hub, UserID: "doc-1", Send: make(chan []byte, 8)}
	laptop := &Client{Hub: hub, UserID: "doc-1", Send: make(chan []byte, 8)}
	hub.Register <- phone
	hub.Register <- laptop

	assert.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.Clients["doc-1"]) == 2
	}, time.Second, 10*time.Millisecond)

	hub.SendDirectMessage("doc-1", []byte("ping"))

	for _, c := range []*Client{phone, laptop} {
		select {
		case payload := <-c.Send:
			assert.Equal(t, "ping", string(payload))
		case <-time.After(time.Second):
			t.Fatal("payload never reached one of the connections")
		}
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{Hub: hub, UserID: "pat-9", Send: make(chan []byte, 8)}
	hub.Register <- client
	assert.Eventually(t, func() bool {
		return hub.Connected("pat-9")
	}, time.Second, 10*time.Millisecond)

	hub.Unregister <- client
	assert.Eventually(t, func() bool {
		return !hub.Connected("pat-9")
	}, time.Second, 10*time.Millisecond)
}
