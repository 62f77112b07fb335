package chat

import (
	"context"

	"github.com/Lina3386/moliya-bot/internal/models"
)

const (
	ParseModePlain = ""
	ParseModeHTML  = "HTML"
)

// Update is one inbound text message.
type Update struct {
	ChatID  int64
	UserID  int64
	Text    string
	Profile models.Profile
}

// Message is one outbound message. A nil Keyboard leaves the current one in place.
type Message struct {
	ChatID         int64
	Text           string
	ParseMode      string
	Keyboard       [][]string
	RemoveKeyboard bool
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
