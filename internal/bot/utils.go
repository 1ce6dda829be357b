package bot

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"blindchat/internal/analytics"
	"blindchat/internal/storage"
)

// transientErrorText is the reply for a store outage. It must be
// distinguishable from "not in a chat": a failed lookup is not the same
// as an absent record.
const transientErrorText = "⚠️ Something went wrong on our side. Please try again in a moment."

func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	b.deliver(msg, chatID, text)
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	b.deliver(msg, chatID, text)
}

func (b *Bot) sendKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	b.deliver(msg, chatID, text)
}

func (b *Bot) editText(chatID int64, messageID int, text string) {
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	b.deliver(msg, chatID, text)
}

func (b *Bot) editKeyboard(chatID int64, messageID int, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, keyboard)
	b.deliver(msg, chatID, text)
}

func (b *Bot) replyTransient(chatID int64) {
	b.sendText(chatID, transientErrorText)
}

// deliver sends one outgoing message. A nil api means we are under test.
func (b *Bot) deliver(c tgbotapi.Chattable, chatID int64, text string) {
	if b.sent != nil {
		b.sent(chatID, text)
	}
	if b.api == nil {
		return
	}
	if _, err := b.api.Send(c); err != nil {
		b.logger.Warn("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
		)
	}
}

func notFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}

func staleStep(err error) bool {
	return errors.Is(err, storage.ErrStaleStep)
}

func alreadyExists(err error) bool {
	return errors.Is(err, storage.ErrAlreadyExists)
}

func activeMatchExists(err error) bool {
	return errors.Is(err, storage.ErrActiveMatchExists)
}

// record emits an analytics event. Failures are logged, never surfaced:
// analytics must not affect the chat path.
func (b *Bot) record(ctx context.Context, eventType string, userID int64, matchID uint64) {
	ev := analytics.Event{Type: eventType, UserID: userID, MatchID: matchID}
	if err := b.events.Record(ctx, ev); err != nil {
		b.logger.Warn("Failed to record analytics event",
			zap.Error(err),
			zap.String("type", eventType),
		)
	}
}
