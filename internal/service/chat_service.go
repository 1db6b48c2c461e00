package service

import (
	"errors"
	"time"

	"github.com/serverestaa/instagram-client/internal/models"

	"gorm.io/gorm"
)

var (
	ErrChatNotFound = errors.New("chat not found")
)

// DefaultPageSize bounds message pages when the caller does not pass a limit.
const DefaultPageSize = 20

// ChatService is the persistence gateway for chat sessions and messages.
// Private-chat uniqueness is enforced by the unique index on chats.pair_key,
// not by application-level checks alone: two handlers racing through
// find-then-create resolve to the same row via the duplicate-key path.
type ChatService struct {
	db *gorm.DB
}

// NewChatService creates a new chat service
func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{db: db}
}

// FindPrivateChat returns the private chat whose participant set is exactly
// {userA, userB}, or nil when none exists. Matching is on the canonical pair
// key, so a chat containing only one of the two users can never match.
func (s *ChatService) FindPrivateChat(userA, userB uint) (*models.Chat, error) {
	key := models.PairKey(userA, userB)

	var chat models.Chat
	err := s.db.Where("is_private = ? AND pair_key = ?", true, key).First(&chat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &chat, nil
}

// CreatePrivateChat creates a private chat with exactly two participant rows
// in one transaction. A concurrent creation for the same pair trips the
// pair_key unique index; the conflict is resolved by re-reading the winner
// rather than surfacing an error.
func (s *ChatService) CreatePrivateChat(userA, userB uint) (*models.Chat, error) {
	key := models.PairKey(userA, userB)
	chat := models.Chat{IsPrivate: true, PairKey: &key}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chat).Error; err != nil {
			return err
		}
		participants := []models.ChatParticipant{
			{ChatID: chat.ID, UserID: userA},
			{ChatID: chat.ID, UserID: userB},
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race; the other handler's chat is the chat.
			existing, findErr := s.FindPrivateChat(userA, userB)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	return &chat, nil
}

// EnsurePrivateChat returns the private chat for the pair, creating it if
// absent. This is the lazy-bind entry point used on first inbound message.
func (s *ChatService) EnsurePrivateChat(userA, userB uint) (*models.Chat, error) {
	chat, err := s.FindPrivateChat(userA, userB)
	if err != nil {
		return nil, err
	}
	if chat != nil {
		return chat, nil
	}
	return s.CreatePrivateChat(userA, userB)
}

// AppendMessage persists a message, assigning its timestamp at write time.
// Returns ErrChatNotFound if the chat does not exist.
func (s *ChatService) AppendMessage(chatID, authorID uint, content string) (*models.Message, error) {
	var chat models.Chat
	if err := s.db.First(&chat, chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}

	message := models.Message{
		ChatID:    chatID,
		UserID:    authorID,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	if err := s.db.Create(&message).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

// PageMessages returns messages for a chat oldest first, tie-broken by id so
// paging over equal timestamps stays deterministic.
func (s *ChatService) PageMessages(chatID uint, limit, offset int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var messages []models.Message
	err := s.db.Where("chat_id = ?", chatID).
		Order("timestamp ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	return messages, err
}

// ListUserChats returns the chats the user participates in, each annotated
// with its participant count.
func (s *ChatService) ListUserChats(userID uint) ([]models.ChatSummary, error) {
	var chats []models.Chat
	err := s.db.
		Joins("JOIN chat_participants ON chat_participants.chat_id = chats.id").
		Where("chat_participants.user_id = ?", userID).
		Find(&chats).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		var count int64
		if err := s.db.Model(&models.ChatParticipant{}).
			Where("chat_id = ?", chat.ID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		summaries = append(summaries, models.ChatSummary{
			ChatID:           chat.ID,
			Name:             chat.Name,
			ParticipantCount: int(count),
		})
	}
	return summaries, nil
}

// IsParticipant reports whether the user belongs to the chat
func (s *ChatService) IsParticipant(chatID, userID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
