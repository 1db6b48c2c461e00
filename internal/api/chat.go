package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/serverestaa/instagram-client/internal/models"
	"github.com/serverestaa/instagram-client/internal/service"
	"github.com/serverestaa/instagram-client/pkg/logger"
	"github.com/serverestaa/instagram-client/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// ChatHandler serves the read-only chat query surface
type ChatHandler struct {
	chats    *service.ChatService
	pageSize int
	logger   *logger.Logger
}

// NewChatHandler creates a new chat handler. pageSize bounds message pages
// when the caller passes no limit; zero falls back to the service default.
func NewChatHandler(chats *service.ChatService, pageSize int, log *logger.Logger) *ChatHandler {
	if pageSize <= 0 {
		pageSize = service.DefaultPageSize
	}
	return &ChatHandler{
		chats:    chats,
		pageSize: pageSize,
		logger:   log,
	}
}

// MessageResponse is the message shape returned by GetChatMessages
type MessageResponse struct {
	UserID    uint   `json:"user_id"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// ListUserChats returns the calling user's chats with participant counts
func (h *ChatHandler) ListUserChats(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	summaries, err := h.chats.ListUserChats(userID)
	if err != nil {
		h.logger.Error("error listing user chats", "error", err.Error(), "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list chats"})
		return
	}

	c.JSON(http.StatusOK, summaries)
}

// GetChatMessages returns a page of messages, oldest first. Only
// participants may read a chat.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	chatID, err := strconv.ParseUint(c.Param("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat id"})
		return
	}

	limit := intQuery(c, "limit", h.pageSize)
	offset := intQuery(c, "offset", 0)

	isParticipant, err := h.chats.IsParticipant(uint(chatID), userID)
	if err != nil {
		h.logger.Error("error checking chat membership", "error", err.Error(), "chat_id", chatID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load chat"})
		return
	}
	if !isParticipant {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized to view this chat."})
		return
	}

	messages, err := h.chats.PageMessages(uint(chatID), limit, offset)
	if err != nil {
		h.logger.Error("error paging messages", "error", err.Error(), "chat_id", chatID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, toMessageResponses(messages))
}

func toMessageResponses(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, MessageResponse{
			UserID:    m.UserID,
			Content:   m.Content,
			Timestamp: m.Timestamp.Format(time.RFC3339Nano),
		})
	}
	return out
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
