package repositories

import (
	"time"

	"github.com/bszymanski/aichat_bot/internal/models"
	"github.com/bszymanski/aichat_bot/pkg/errors"
	"gorm.io/gorm"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// ActiveConversation returns the user's most recently touched conversation,
// creating a fresh one on first contact.
func (r *ConversationRepository) ActiveConversation(userID int64) (*models.Conversation, error) {
	var conv models.Conversation
	result := r.db.Where("user_id = ?", userID).
		Order("last_message_at DESC, id DESC").
		First(&conv)

	if result.Error == gorm.ErrRecordNotFound {
		return r.StartConversation(userID)
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get conversation")
	}

	return &conv, nil
}

// StartConversation opens a new thread. Earlier conversations stay in place
// but stop receiving messages since the new one is now the most recent.
func (r *ConversationRepository) StartConversation(userID int64) (*models.Conversation, error) {
	conv := &models.Conversation{
		UserID:        userID,
		LastMessageAt: time.Now().UTC(),
	}
	if err := r.db.Create(conv).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to create conversation")
	}
	return conv, nil
}

// SaveMessage appends one turn to the conversation and bumps its
// last-message timestamp so it stays the active one.
func (r *ConversationRepository) SaveMessage(conversationID uint, userID int64, content string, fromUser bool, modelUsed string) (*models.ChatMessage, error) {
	message := &models.ChatMessage{
		ConversationID: conversationID,
		UserID:         userID,
		Content:        content,
		IsFromUser:     fromUser,
		ModelUsed:      modelUsed,
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save message")
		}
		result := tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update("last_message_at", time.Now().UTC())
		if result.Error != nil {
			return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to touch conversation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return message, nil
}

// History returns the newest limit turns of a conversation in chronological
// order, ready to feed into a chat completion.
func (r *ConversationRepository) History(conversationID uint, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	result := r.db.Where("conversation_id = ?", conversationID).
		Order("id DESC").
		Limit(limit).
		Find(&messages)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get history")
	}

	// Reverse into oldest-first order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
