package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sathi-care/booking-service/internal/notify"
)

func TestHubRegisterDeliverUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := &Client{
		Send:   make(chan []byte, 10),
		Room:   "user-1",
		UserID: "user-1",
	}
	hub.Register(client)

	msg, err := notify.EncodeEnvelope(notify.TopicSlotUpdate, map[string]string{"status": "held"})
	require.NoError(t, err)
	hub.Deliver("user-1", msg)

	select {
	case got := <-client.Send:
		assert.Equal(t, string(msg), string(got))
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for message")
	}

	hub.Unregister(client)
}

func TestHubDeliversOnlyToTargetRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	a := &Client{Send: make(chan []byte, 10), Room: "user-a", UserID: "user-a"}
	b := &Client{Send: make(chan []byte, 10), Room: "user-b", UserID: "user-b"}
	hub.Register(a)
	hub.Register(b)

	hub.Deliver("user-a", []byte("for a only"))

	select {
	case got := <-a.Send:
		assert.Equal(t, "for a only", string(got))
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for message")
	}

	select {
	case got := <-b.Send:
		t.Fatalf("unexpected message for b: %s", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubFansOutToAllUserConnections(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	first := &Client{Send: make(chan []byte, 10), Room: "user-a", UserID: "user-a"}
	second := &Client{Send: make(chan []byte, 10), Room: "user-a", UserID: "user-a"}
	hub.Register(first)
	hub.Register(second)

	hub.Deliver("user-a", []byte("both tabs"))

	for _, c := range []*Client{first, second} {
		select {
		case got := <-c.Send:
			assert.Equal(t, "both tabs", string(got))
		case <-time.After(1 * time.Second):
			t.Fatal("timeout waiting for message")
		}
	}
}
