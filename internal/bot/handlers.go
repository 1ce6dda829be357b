package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// handleMessage processes a single message
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage", zap.Any("panic", r))
			b.sendText(message.Chat.ID, "An error occurred while processing your request. Please try again.")
		}
	}()

	if message.From == nil {
		return
	}
	ctx := context.Background()

	// Handle commands
	if message.IsCommand() {
		switch message.Command() {
		case "start":
			b.handleStart(ctx, message)
		case "search":
			b.handleSearch(ctx, message.Chat.ID, message.From.ID)
		case "next":
			b.handleNext(ctx, message.Chat.ID, message.From.ID)
		case "reveal":
			b.handleReveal(ctx, message.Chat.ID, message.From.ID)
		case "stop":
			b.handleStop(ctx, message.Chat.ID, message.From.ID)
		default:
			b.sendText(message.Chat.ID, "Unknown command. Use /start to see available commands.")
		}
		return
	}

	b.routeText(ctx, message)
}

// routeText dispatches free text: users mid-registration go to the
// registration step handler, registered users get their message relayed
// to their active partner.
func (b *Bot) routeText(ctx context.Context, message *tgbotapi.Message) {
	profile, err := b.db.GetProfile(ctx, message.From.ID)
	if notFound(err) {
		b.sendText(message.Chat.ID, "Use /start to set up your profile first!")
		return
	}
	if err != nil {
		b.logger.Error("Failed to load profile",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID),
		)
		b.replyTransient(message.Chat.ID)
		return
	}

	if !profile.Registered() {
		b.handleRegistrationText(ctx, message, profile)
		return
	}
	b.relayText(ctx, message, profile)
}

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery", zap.Any("panic", r))
		}
	}()

	// Answer the callback query to remove loading state
	if b.api != nil {
		b.api.Request(tgbotapi.NewCallback(query.ID, ""))
	}

	if query.Message == nil {
		return
	}
	ctx := context.Background()

	b.dispatchCallback(ctx, query)
}
