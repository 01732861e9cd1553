package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/whep-play/internal/util"
)

func TestHubFansOut(t *testing.T) {
	hub := NewHub(4, util.Discard())
	a, cancelA := hub.Subscribe()
	b, cancelB := hub.Subscribe()
	defer cancelA()
	defer cancelB()

	hub.Notify(Event{Type: TypeConnected, Session: "s1"})

	assert.Equal(t, TypeConnected, (<-a).Type)
	assert.Equal(t, TypeConnected, (<-b).Type)
	assert.Equal(t, 2, hub.Subscribers())
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(2, util.Discard())
	ch, cancel := hub.Subscribe()
	defer cancel()

	for i := 0; i < 5; i++ {
		hub.Notify(Event{Type: TypeStats, BytesReceived: uint64(i)})
	}

	assert.Len(t, ch, 2)
	assert.Equal(t, uint64(0), (<-ch).BytesReceived)
	assert.Equal(t, uint64(1), (<-ch).BytesReceived)
}

func TestHubCancelAndClose(t *testing.T) {
	hub := NewHub(0, util.Discard())
	ch, cancel := hub.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, hub.Subscribers())

	other, cancelOther := hub.Subscribe()
	hub.Close()
	hub.Close()
	cancelOther()

	_, ok = <-other
	assert.False(t, ok)

	late, _ := hub.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscription on a closed hub is already closed")

	hub.Notify(Event{Type: TypeFailed}) // no panic on closed channels
}

func TestMultiSkipsNil(t *testing.T) {
	var got []Type
	n := Multi(nil, NotifierFunc(func(e Event) { got = append(got, e.Type) }), Discard)
	n.Notify(Event{Type: TypeStalled})
	n.Notify(Event{Type: TypeRecovered})

	assert.Equal(t, []Type{TypeStalled, TypeRecovered}, got)
}

func TestServerStreamsEvents(t *testing.T) {
	hub := NewHub(8, util.Discard())
	srv := NewServer(hub, util.Discard())
	addr, err := srv.Start("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, fmt.Sprintf("ws://%s/events", addr), nil)
	require.NoError(t, err)
	defer conn.Close()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	hub.Notify(Event{Type: TypeStateChange, Session: "abc", Time: at, State: "connected", From: "negotiated"})
	hub.Notify(Event{Type: TypeFailed, Session: "abc", Time: at, Cause: "boom", CauseKind: "signaling"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first, second Event
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))

	assert.Equal(t, TypeStateChange, first.Type)
	assert.Equal(t, "abc", first.Session)
	assert.True(t, at.Equal(first.Time))
	assert.Equal(t, "connected", first.State)
	assert.Equal(t, "negotiated", first.From)
	assert.Equal(t, "boom", second.Cause)
	assert.Equal(t, "signaling", second.CauseKind)
}

func TestServerClosesFeedWhenHubCloses(t *testing.T) {
	hub := NewHub(8, util.Discard())
	srv := NewServer(hub, util.Discard())
	addr, err := srv.Start("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/events", addr), nil)
	require.NoError(t, err)
	defer conn.Close()

	hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
