package domain

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validatorInstance is shared by all domain types.
var validatorInstance = validator.New()

// ChatMessage is a single line of chat. It is never mutated after creation.
type ChatMessage struct {
	OwnerID   int64     `json:"ownerId" validate:"gte=0"`
	Content   string    `json:"content" validate:"required"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChatMessage stamps a message with the current UTC time and validates it.
func NewChatMessage(ownerID int64, content string) (ChatMessage, error) {
	msg := ChatMessage{
		OwnerID:   ownerID,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	if err := msg.Validate(); err != nil {
		return ChatMessage{}, err
	}
	return msg, nil
}

// Validate rejects messages with blank content or a negative owner.
func (m ChatMessage) Validate() error {
	if strings.TrimSpace(m.Content) == "" {
		return Validation("ChatMessage", "content must not be empty")
	}
	if err := validatorInstance.Struct(m); err != nil {
		return Validation("ChatMessage", err.Error())
	}
	return nil
}
