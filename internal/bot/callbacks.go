package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// dispatchCallback routes an inline keyboard click by its payload.
// Registration payloads carry the chosen value after a prefix
// ("gender_male", "looking_everyone"); menu payloads are bare verbs.
func (b *Bot) dispatchCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	data := query.Data
	switch {
	case strings.HasPrefix(data, "gender_"):
		b.handleGenderCallback(ctx, query)
	case strings.HasPrefix(data, "looking_"):
		b.handleLookingCallback(ctx, query)
	case data == "search":
		b.handleSearch(ctx, query.Message.Chat.ID, query.From.ID)
	case data == "profile":
		b.handleProfileScreen(ctx, query)
	case data == "help":
		b.handleHelpScreen(ctx, query)
	default:
		b.logger.Debug("Ignoring unknown callback payload", zap.String("data", data))
	}
}

// handleProfileScreen replaces the menu with the caller's profile card.
func (b *Bot) handleProfileScreen(ctx context.Context, query *tgbotapi.CallbackQuery) {
	profile, err := b.db.GetProfile(ctx, query.From.ID)
	if notFound(err) {
		b.editText(query.Message.Chat.ID, query.Message.MessageID, "Use /start to set up your profile first!")
		return
	}
	if err != nil {
		b.logger.Error("Failed to load profile for profile screen", zap.Error(err), zap.Int64("user_id", query.From.ID))
		b.replyTransient(query.Message.Chat.ID)
		return
	}

	text := fmt.Sprintf("👤 Your Profile:\n\nAge: %d\nGender: %s\nLooking for: %s\nBio: %s",
		profile.Age, profile.Gender, profile.LookingFor, profile.Bio)
	b.editText(query.Message.Chat.ID, query.Message.MessageID, text)
}

// handleHelpScreen explains the workflow, with bot-wide totals from the
// Redis counters when they are configured.
func (b *Bot) handleHelpScreen(ctx context.Context, query *tgbotapi.CallbackQuery) {
	var text strings.Builder
	text.WriteString("🎭 How BlindChat Works:\n\n")
	text.WriteString("1️⃣ Complete your profile\n")
	text.WriteString("2️⃣ Use /search to find a match\n")
	text.WriteString("3️⃣ Chat anonymously (they won't see your identity)\n")
	text.WriteString("4️⃣ Use /reveal when you're comfortable\n")
	text.WriteString("5️⃣ Use /next to meet someone new\n\n")
	text.WriteString("Commands:\n")
	text.WriteString("/start - Main menu\n")
	text.WriteString("/search - Find a match\n")
	text.WriteString("/reveal - Reveal your identity\n")
	text.WriteString("/next - Skip to next person\n")
	text.WriteString("/stop - End current chat\n\n")
	text.WriteString("🔒 Your privacy is protected. Chats are anonymous until both users agree to reveal.")

	if b.counters != nil {
		matches, searches, err := b.counters.Totals(ctx)
		if err != nil {
			b.logger.Warn("Failed to read counters for help screen", zap.Error(err))
		} else {
			text.WriteString(fmt.Sprintf("\n\n📈 %d chats matched from %d searches so far.", matches, searches))
		}
	}

	b.editText(query.Message.Chat.ID, query.Message.MessageID, text.String())
}
