package client

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Lina3386/moliya-bot/internal/chat"
	"github.com/Lina3386/moliya-bot/internal/models"
)

const pollTimeout = 60

// TelegramClient is the chat transport: long polling in, reply keyboards out.
type TelegramClient struct {
	bot *tgbotapi.BotAPI
	log *logrus.Logger
}

func NewTelegramClient(token string, debug bool, log *logrus.Logger) (*TelegramClient, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize bot: %w", err)
	}
	bot.Debug = debug
	log.WithField("username", bot.Self.UserName).Info("✅ bot authorized")
	return &TelegramClient{bot: bot, log: log}, nil
}

func (c *TelegramClient) Send(_ context.Context, msg chat.Message) error {
	out := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	out.ParseMode = msg.ParseMode
	switch {
	case msg.RemoveKeyboard:
		out.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	case len(msg.Keyboard) > 0:
		out.ReplyMarkup = ReplyKeyboard(msg.Keyboard)
	}

	if _, err := c.bot.Send(out); err != nil {
		c.log.WithError(err).WithField("chat_id", msg.ChatID).Warn("failed to send message")
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// ReplyKeyboard builds a resized reply keyboard from rows of labels.
func ReplyKeyboard(rows [][]string) tgbotapi.ReplyKeyboardMarkup {
	buttons := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		line := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			line = append(line, tgbotapi.NewKeyboardButton(label))
		}
		buttons = append(buttons, tgbotapi.NewKeyboardButtonRow(line...))
	}
	kb := tgbotapi.NewReplyKeyboard(buttons...)
	kb.ResizeKeyboard = true
	return kb
}

// Updates streams text messages until ctx is done. Non-text updates are skipped.
func (c *TelegramClient) Updates(ctx context.Context) <-chan chat.Update {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	raw := c.bot.GetUpdatesChan(u)

	out := make(chan chat.Update)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-raw:
				if !ok {
					return
				}
				in, ok := ConvertUpdate(update)
				if !ok {
					continue
				}
				select {
				case out <- in:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// ConvertUpdate keeps only text messages with a sender.
func ConvertUpdate(update tgbotapi.Update) (chat.Update, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return chat.Update{}, false
	}
	return chat.Update{
		ChatID: msg.Chat.ID,
		UserID: msg.From.ID,
		Text:   msg.Text,
		Profile: models.Profile{
			Username:     msg.From.UserName,
			FirstName:    msg.From.FirstName,
			LastName:     msg.From.LastName,
			LanguageCode: msg.From.LanguageCode,
		},
	}, true
}

// Close stops long polling.
func (c *TelegramClient) Close() error {
	c.bot.StopReceivingUpdates()
	c.log.Info("⏹️ telegram polling stopped")
	return nil
}
