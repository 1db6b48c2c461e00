package ws

import (
	"net/http"
	"strconv"
	"time"

	"github.com/serverestaa/instagram-client/pkg/jwt"
	"github.com/serverestaa/instagram-client/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin allow-list is handled by the CORS middleware
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// Handler serves the streaming chat endpoint
type Handler struct {
	registry       *Registry
	chats          ChatService
	jwt            *jwt.Service
	maxMessageSize int64
	log            *logger.Logger
}

// NewHandler creates a websocket handler with its collaborators injected.
// maxMessageSize caps inbound frames; zero falls back to the default.
func NewHandler(registry *Registry, chats ChatService, jwtService *jwt.Service, maxMessageSize int64, log *logger.Logger) *Handler {
	return &Handler{
		registry:       registry,
		chats:          chats,
		jwt:            jwtService,
		maxMessageSize: maxMessageSize,
		log:            log,
	}
}

// ServeWs upgrades a connection addressed at a peer user. The handshake
// token is validated with the same JWT service the HTTP middleware uses,
// and validation happens before the upgrade: an unauthenticated socket is
// never accepted and never reaches the registry.
func (h *Handler) ServeWs(c *gin.Context) {
	peerID, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid peer user id"})
		return
	}

	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token is required"})
		return
	}

	claims, err := h.jwt.ValidateToken(token)
	if err != nil {
		h.log.Warn("websocket handshake rejected", "error", err.Error())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.LogError(err, "websocket upgrade failed")
		return
	}

	client := newClient(conn, claims.UserID, claims.Username, uint(peerID), h.maxMessageSize, h.registry, h.chats, h.log)

	if err := client.resolve(); err != nil {
		h.log.LogError(err, "chat lookup failed", "user_id", claims.UserID, "peer_id", peerID)
		conn.WriteMessage(websocket.TextMessage, []byte("error: could not resolve chat"))
		conn.Close()
		return
	}

	h.log.Info("websocket connected",
		"user_id", claims.UserID,
		"peer_id", peerID,
		"state", client.state.String(),
	)

	go client.writePump()
	go client.readPump()
}
