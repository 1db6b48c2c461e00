package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/serverestaa/instagram-client/internal/models"
	"github.com/serverestaa/instagram-client/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer unless configured otherwise
	defaultMaxMessageSize = 64 * 1024 // 64KB

	// disconnectNotice is broadcast to remaining members when a peer leaves
	disconnectNotice = "A user has disconnected."
)

// State is the lifecycle of a chat connection. Transitions only move
// forward; Closed is terminal.
type State int

const (
	// StateConnecting: handshake accepted, identity not yet verified
	StateConnecting State = iota
	// StateResolving: identity verified, no chat bound yet
	StateResolving
	// StateActive: a chat id is bound and the connection is registered
	StateActive
	// StateClosed: transport gone, connection unregistered
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateResolving:
		return "resolving"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// ChatService is the slice of the persistence gateway the protocol needs
type ChatService interface {
	FindPrivateChat(userA, userB uint) (*models.Chat, error)
	EnsurePrivateChat(userA, userB uint) (*models.Chat, error)
	AppendMessage(chatID, authorID uint, content string) (*models.Message, error)
}

// Client is the per-connection protocol state. All state mutations happen on
// the read-pump goroutine; the registry only touches the send channel.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	userID   uint
	username string
	peerID   uint

	state     State
	chatID    uint // 0 until a chat is bound
	readLimit int64

	registry *Registry
	chats    ChatService
	log      *logger.Logger

	// sendMu guards send against the registry closing it mid-delivery:
	// eviction happens on whichever goroutine broadcasts, while notices
	// come from this connection's own read pump.
	sendMu     sync.Mutex
	sendClosed bool
}

func newClient(conn *websocket.Conn, userID uint, username string, peerID uint, readLimit int64, registry *Registry, chats ChatService, log *logger.Logger) *Client {
	if readLimit <= 0 {
		readLimit = defaultMaxMessageSize
	}
	return &Client{
		conn:      conn,
		send:      make(chan []byte, 256),
		userID:    userID,
		username:  username,
		peerID:    peerID,
		state:     StateConnecting,
		readLimit: readLimit,
		registry:  registry,
		chats:     chats,
		log:       log,
	}
}

// resolve looks up an existing private chat with the peer. Creation is
// deferred to the first inbound message so a connection that never sends
// anything never creates an empty chat row.
func (c *Client) resolve() error {
	c.state = StateResolving

	chat, err := c.chats.FindPrivateChat(c.userID, c.peerID)
	if err != nil {
		return err
	}
	if chat != nil {
		c.bind(chat.ID)
	}
	return nil
}

// bind attaches the connection to a chat and registers it for fan-out
func (c *Client) bind(chatID uint) {
	c.chatID = chatID
	c.registry.Register(chatID, c)
	c.state = StateActive
}

// handleInbound runs the Active-state step for one received message:
// lazily create and bind the chat if needed, persist, then broadcast.
// Persistence failures are reported in-band and do not close the connection.
func (c *Client) handleInbound(content string) {
	if c.state == StateClosed {
		return
	}

	if c.chatID == 0 {
		chat, err := c.chats.EnsurePrivateChat(c.userID, c.peerID)
		if err != nil {
			c.log.LogError(err, "failed to create private chat", "user_id", c.userID, "peer_id", c.peerID)
			c.notice("error: could not open chat")
			return
		}
		c.bind(chat.ID)
	}

	msg, err := c.chats.AppendMessage(c.chatID, c.userID, content)
	if err != nil {
		c.log.LogError(err, "failed to persist message", "chat_id", c.chatID, "user_id", c.userID)
		c.notice("error: message could not be saved")
		return
	}

	c.registry.Broadcast(c.chatID, []byte(fmt.Sprintf("%s: %s", c.username, msg.Content)))
}

// shutdown enters the Closed state: unregister if a chat was bound and tell
// the remaining members. Safe to call at most once per connection; the read
// pump is the only caller.
func (c *Client) shutdown() {
	if c.state == StateClosed {
		return
	}
	c.state = StateClosed

	if c.chatID != 0 {
		c.registry.Unregister(c.chatID, c)
		c.registry.Broadcast(c.chatID, []byte(disconnectNotice))
	}
	c.closeSend()
}

// notice queues an in-band text notice for this connection only. A stalled
// or already-evicted connection drops the notice.
func (c *Client) notice(text string) {
	c.trySend([]byte(text))
}

// trySend queues a payload without blocking. Returns false when the buffer
// is full or the channel has already been closed; it never panics, so a
// read pump racing its own eviction stays safe.
func (c *Client) trySend(payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound channel exactly once, stopping the write
// pump. Called by shutdown and by the registry when a broadcast finds the
// connection unwritable.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

// readPump receives messages from the socket until the transport fails,
// feeding each through the protocol in arrival order.
func (c *Client) readPump() {
	defer func() {
		c.shutdown()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read failed", "user_id", c.userID, "error", err.Error())
			}
			break
		}
		c.handleInbound(string(data))
	}
}

// writePump drains the send channel to the socket and keeps the connection
// alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
