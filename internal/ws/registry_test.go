package ws

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMember(buffer int) *Client {
	return &Client{send: make(chan []byte, buffer)}
}

func received(c *Client) []string {
	var out []string
	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, string(payload))
		default:
			return out
		}
	}
}

func TestBroadcastDeliversToRegisteredConnectionsOnly(t *testing.T) {
	registry := NewRegistry()

	a := testMember(8)
	b := testMember(8)
	other := testMember(8)

	registry.Register(1, a)
	registry.Register(1, b)
	registry.Register(2, other)

	registry.Broadcast(1, []byte("alice: hi"))

	assert.Equal(t, []string{"alice: hi"}, received(a), "each member receives the payload exactly once")
	assert.Equal(t, []string{"alice: hi"}, received(b))
	assert.Empty(t, received(other), "a connection never registered for the chat receives nothing")
}

func TestBroadcastToUnknownChatIsNoop(t *testing.T) {
	registry := NewRegistry()
	registry.Broadcast(42, []byte("nobody home"))
	assert.Equal(t, 0, registry.SessionCount())
}

func TestUnregisterLastConnectionRemovesSessionEntry(t *testing.T) {
	registry := NewRegistry()

	a := testMember(1)
	b := testMember(1)
	registry.Register(7, a)
	registry.Register(7, b)
	require.Equal(t, 2, registry.ConnectionCount(7))

	registry.Unregister(7, a)
	assert.Equal(t, 1, registry.ConnectionCount(7))
	assert.Equal(t, 1, registry.SessionCount())

	registry.Unregister(7, b)
	assert.Equal(t, 0, registry.SessionCount(), "no residual empty entry after the last member leaves")
}

func TestUnregisterUnknownConnectionIsNoop(t *testing.T) {
	registry := NewRegistry()
	registry.Unregister(1, testMember(1))
	assert.Equal(t, 0, registry.SessionCount())
}

func TestBroadcastEvictsUnwritableConnection(t *testing.T) {
	registry := NewRegistry()

	stalled := testMember(1)
	stalled.send <- []byte("filler") // buffer full, next send would block
	healthy := testMember(8)

	registry.Register(3, stalled)
	registry.Register(3, healthy)

	registry.Broadcast(3, []byte("bob: hello"))

	assert.Equal(t, []string{"bob: hello"}, received(healthy), "one bad connection must not abort delivery to the rest")
	assert.Equal(t, 1, registry.ConnectionCount(3), "the stalled connection is treated as disconnected")

	// The evicted connection's channel is drained and closed
	assert.Equal(t, "filler", string(<-stalled.send))
	_, open := <-stalled.send
	assert.False(t, open)
}

func TestBroadcastEvictingLastConnectionRemovesSession(t *testing.T) {
	registry := NewRegistry()

	stalled := testMember(1)
	stalled.send <- []byte("filler")
	registry.Register(9, stalled)

	registry.Broadcast(9, []byte("payload"))
	assert.Equal(t, 0, registry.SessionCount())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			chatID := uint(n % 4)
			for j := 0; j < 100; j++ {
				c := testMember(1024)
				registry.Register(chatID, c)
				registry.Broadcast(chatID, []byte(fmt.Sprintf("msg-%d-%d", n, j)))
				registry.Unregister(chatID, c)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, registry.SessionCount())
}
