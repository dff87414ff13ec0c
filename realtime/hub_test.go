package realtime

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testClient(teamID int) *Client {
	return &Client{
		send: make(chan []byte, 4),
		room: teamRoom(teamID),
	}
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case payload := <-c.send:
		var event Event
		require.NoError(t, json.Unmarshal(payload, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubRoutesEventsToTeamRoom(t *testing.T) {
	hub := testHub()
	go hub.Run()

	subscriber := testClient(1)
	bystander := testClient(2)
	hub.register <- subscriber
	hub.register <- bystander

	hub.SessionUpdated(1, 7)

	event := receive(t, subscriber)
	assert.Equal(t, EventSessionUpdated, event.Type)
	assert.Equal(t, 1, event.TeamID)
	assert.Equal(t, 7, event.SessionID)

	select {
	case <-bystander.send:
		t.Fatal("event leaked into another team's room")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubEventTypes(t *testing.T) {
	hub := testHub()
	go hub.Run()

	c := testClient(3)
	hub.register <- c

	hub.TeamUpdated(3)
	assert.Equal(t, EventTeamUpdated, receive(t, c).Type)

	hub.SessionDeleted(3, 9)
	event := receive(t, c)
	assert.Equal(t, EventSessionDeleted, event.Type)
	assert.Equal(t, 9, event.SessionID)
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := testHub()
	go hub.Run()

	c := testClient(1)
	hub.register <- c
	hub.unregister <- c

	select {
	case _, ok := <-c.send:
		assert.False(t, ok, "send channel must be closed on unregister")
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}
}

func TestHubDropsEventsForSlowConsumers(t *testing.T) {
	hub := testHub()
	go hub.Run()

	c := &Client{send: make(chan []byte), room: teamRoom(1)} // unbuffered, never read
	hub.register <- c

	// Must not block the hub.
	hub.TeamUpdated(1)
	hub.TeamUpdated(1)

	done := make(chan struct{})
	go func() {
		hub.register <- testClient(2)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub blocked on a slow consumer")
	}
}
