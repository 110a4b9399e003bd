package models

import (
	"time"
)

// Conversation groups chat messages into one multi-turn thread. The most
// recently touched conversation is the user's active one; /newchat starts
// a fresh thread without deleting the old one.
type Conversation struct {
	ID            uint      `gorm:"primaryKey"`
	UserID        int64     `gorm:"index;not null"`
	LastMessageAt time.Time `gorm:"index;default:CURRENT_TIMESTAMP"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// ChatMessage is a single stored turn. IsFromUser distinguishes prompts
// from model replies; ModelUsed is set on replies only.
type ChatMessage struct {
	ID             uint      `gorm:"primaryKey"`
	ConversationID uint      `gorm:"index;not null"`
	UserID         int64     `gorm:"not null"`
	Content        string    `gorm:"type:text;not null"`
	IsFromUser     bool      `gorm:"not null"`
	ModelUsed      string    `gorm:"type:varchar(64)"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
