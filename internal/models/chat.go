package models

import (
	"fmt"
	"time"
)

// Chat represents a conversation. A private chat has exactly two
// participants and is keyed by its canonical pair key; group chats are
// schema-permitted (PairKey empty) but not driven by the live protocol.
type Chat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	IsPrivate bool      `json:"is_private"`
	Name      string    `gorm:"size:120" json:"name,omitempty"`
	PairKey   *string   `gorm:"uniqueIndex;size:64" json:"-"`
	CreatedAt time.Time `json:"created_at"`

	Participants []ChatParticipant `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Messages     []Message         `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// ChatParticipant binds a user to a chat. For a private chat there are
// exactly two rows, written in the same transaction as the chat itself.
type ChatParticipant struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	ChatID uint `gorm:"index;not null" json:"chat_id"`
	UserID uint `gorm:"index;not null" json:"user_id"`
}

// Message is an immutable chat message. Timestamp is assigned server-side
// at append time; ordering within a chat is timestamp then id.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChatID    uint      `gorm:"index;not null" json:"chat_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
}

// ChatSummary is the listing shape returned by the query surface.
type ChatSummary struct {
	ChatID           uint   `json:"chat_id"`
	Name             string `json:"name"`
	ParticipantCount int    `json:"participant_count"`
}

// PairKey canonicalizes an unordered user pair so the unique index on
// chats.pair_key serializes concurrent first-contact creation.
func PairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}
