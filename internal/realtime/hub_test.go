package realtime

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventix/eventix/internal/domain"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// drain reads everything currently buffered on the client channel.
func drain(c *Client) []Message {
	var out []Message
	for {
		select {
		case msg, ok := <-c.Messages():
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestHub_ConnectDisconnect(t *testing.T) {
	h := newTestHub()

	a := h.Connect()
	b := h.Connect()
	require.NotEmpty(t, a.ID())
	require.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, h.ClientCount())

	h.Disconnect(a)
	assert.Equal(t, 1, h.ClientCount())

	// channel is closed after disconnect
	_, ok := <-a.Messages()
	assert.False(t, ok)

	// disconnecting twice is a no-op
	h.Disconnect(a)
	assert.Equal(t, 1, h.ClientCount())
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	h := newTestHub()

	a := h.Connect()
	b := h.Connect()

	h.Broadcast(EventDeletedMessage(7))

	for _, c := range []*Client{a, b} {
		msgs := drain(c)
		require.Len(t, msgs, 1)
		assert.Equal(t, KindEventDeleted, msgs[0].Kind)
		assert.Equal(t, int64(7), msgs[0].EventID)
	}
}

func TestHub_JoinLeaveTopic(t *testing.T) {
	h := newTestHub()

	a := h.Connect()
	b := h.Connect()

	require.True(t, h.Join(a.ID(), 42))
	assert.False(t, h.Join("no-such-client", 42))

	h.BroadcastEvent(42, SeatUpdateMessage(domain.SeatUpdate{EventID: 42, AvailableSeats: 5}))

	assert.Len(t, drain(a), 1)
	assert.Empty(t, drain(b))

	require.True(t, h.Leave(a.ID(), 42))
	h.BroadcastEvent(42, SeatUpdateMessage(domain.SeatUpdate{EventID: 42, AvailableSeats: 4}))
	assert.Empty(t, drain(a))

	assert.False(t, h.Leave("no-such-client", 42))
}

func TestHub_DispatchSeatUpdateDeliversTwiceToJoined(t *testing.T) {
	h := newTestHub()

	joined := h.Connect()
	global := h.Connect()
	require.True(t, h.Join(joined.ID(), 9))

	h.Dispatch(SeatUpdateMessage(domain.SeatUpdate{EventID: 9, AvailableSeats: 12}))

	// joined viewer sees the global copy and the topic copy
	assert.Len(t, drain(joined), 2)
	assert.Len(t, drain(global), 1)
}

func TestHub_DispatchNonSeatUpdateIsGlobalOnly(t *testing.T) {
	h := newTestHub()

	joined := h.Connect()
	require.True(t, h.Join(joined.ID(), 9))

	h.Dispatch(EventUpdatedMessage(domain.Event{ID: 9, Title: "Updated"}))

	msgs := drain(joined)
	require.Len(t, msgs, 1)
	assert.Equal(t, KindEventUpdated, msgs[0].Kind)
}

func TestHub_DisconnectRemovesTopicMembership(t *testing.T) {
	h := newTestHub()

	a := h.Connect()
	require.True(t, h.Join(a.ID(), 3))
	h.Disconnect(a)

	// nothing to deliver to; must not panic on the closed channel
	h.BroadcastEvent(3, SeatUpdateMessage(domain.SeatUpdate{EventID: 3, AvailableSeats: 1}))
}

func TestHub_SlowClientDropsInsteadOfBlocking(t *testing.T) {
	h := newTestHub()

	c := h.Connect()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < defaultClientBuffer+10; i++ {
			h.Broadcast(EventDeletedMessage(int64(i)))
		}
	}()
	<-done

	// buffer holds at most defaultClientBuffer; the rest were dropped
	msgs := drain(c)
	assert.Len(t, msgs, defaultClientBuffer)

	// the buffered messages are in send order
	for i, msg := range msgs {
		assert.Equal(t, int64(i), msg.EventID)
	}
}
