package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"blindchat/internal/analytics"
	"blindchat/internal/models"
)

// relayText forwards a registered user's message to their active
// partner verbatim. The sender's name is only attached once both sides
// revealed; until then the fixed anonymous label is used. A store
// failure gets the transient reply, never "you're not in a chat".
func (b *Bot) relayText(ctx context.Context, message *tgbotapi.Message, profile *models.Profile) {
	state, err := b.db.ActiveMatch(ctx, profile.TelegramID)
	if notFound(err) {
		b.sendText(message.Chat.ID, "You're not in a chat. Use /search to find someone!")
		return
	}
	if err != nil {
		b.logger.Error("Failed to look up active match for relay",
			zap.Error(err),
			zap.Int64("user_id", profile.TelegramID),
		)
		b.replyTransient(message.Chat.ID)
		return
	}

	prefix := anonymousLabel
	if state.BothRevealed() {
		prefix = "💬 " + profile.FirstName + ": "
	}
	b.sendText(state.PartnerID, prefix+message.Text)
	b.record(ctx, analytics.EventMessageRelayed, profile.TelegramID, state.MatchID)
}
