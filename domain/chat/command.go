package chat

import (
	"chat-presence/errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SendMessageCommand is the intent of a connected user to send a message.
type SendMessageCommand struct {
	SenderID   UserID `validate:"required,excludesall=:"`
	ReceiverID UserID `validate:"required,excludesall=:"`
	Content    string `validate:"required"`
}

type TypingCommand struct {
	SenderID   UserID `validate:"required"`
	ReceiverID UserID `validate:"required"`
	IsTyping   bool
}

// MarkReadCommand acknowledges every message received from CounterpartID.
type MarkReadCommand struct {
	ReaderID      UserID `validate:"required,excludesall=:"`
	CounterpartID UserID `validate:"required,excludesall=:"`
}

// ConversationQuery asks for the latest messages exchanged with CounterpartID.
type ConversationQuery struct {
	ReaderID      UserID `validate:"required,excludesall=:"`
	CounterpartID UserID `validate:"required,excludesall=:,nefield=ReaderID"`
	Limit         int    `validate:"gte=0"`
}

// Validate checks the command shape. maxContentLength <= 0 disables the length check.
func (c SendMessageCommand) Validate(maxContentLength int) error {
	if strings.TrimSpace(c.Content) == "" {
		return errors.ErrEmptyContent
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidIdentity, err)
	}
	if maxContentLength > 0 && len([]rune(c.Content)) > maxContentLength {
		return fmt.Errorf("%w: %d > %d", errors.ErrContentTooLong, len([]rune(c.Content)), maxContentLength)
	}
	return nil
}

func (c TypingCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidIdentity, err)
	}
	return nil
}

func (c MarkReadCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidIdentity, err)
	}
	return nil
}

func (q ConversationQuery) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidIdentity, err)
	}
	return nil
}
