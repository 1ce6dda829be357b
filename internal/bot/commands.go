package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"blindchat/internal/analytics"
)

const welcomeText = `🎭 *Welcome to BlindChat!*

Connect with new people anonymously.
Chat without revealing who you are until you're ready.

Let's set up your profile...

📅 How old are you? (Enter a number)`

const matchFoundText = `🎭 *Match Found!*

Start chatting below. Your identity is hidden.

📝 *Commands:*
• /reveal - Show your identity
• /next - Find someone new
• /stop - End chat

💡 *Tip:* Be respectful and have fun!`

const matchFoundPartnerText = `🎭 *Match Found!*

Someone wants to chat with you!
Your identity is hidden. Start talking!`

const queuedText = `⏳ No one available right now.
You're in the queue. We'll notify you when someone joins!`

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔍 Find Match", "search"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👤 My Profile", "profile"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ How it Works", "help"),
		),
	)
}

// handleStart registers a first-time user (at the age step) or shows the
// main menu to a known one. The duplicate-key error from CreateProfile
// covers the race between two concurrent /start commands: whoever loses
// just falls through to the welcome prompt.
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	chatID := message.Chat.ID

	exists, err := b.db.ProfileExists(ctx, userID)
	if err != nil {
		b.logger.Error("Failed to check profile existence", zap.Error(err), zap.Int64("user_id", userID))
		b.replyTransient(chatID)
		return
	}

	if !exists {
		username := message.From.UserName
		if username == "" {
			username = "Unknown"
		}
		firstName := message.From.FirstName
		if firstName == "" {
			firstName = "User"
		}
		switch err := b.db.CreateProfile(ctx, userID, username, firstName); {
		case err == nil:
			b.record(ctx, analytics.EventProfileCreated, userID, 0)
		case alreadyExists(err):
			// A concurrent /start won the insert; the prompt still applies.
		default:
			b.logger.Error("Failed to create profile", zap.Error(err), zap.Int64("user_id", userID))
			b.replyTransient(chatID)
			return
		}
		b.sendMarkdown(chatID, welcomeText)
		return
	}

	b.sendKeyboard(chatID, "🎭 Welcome back to BlindChat!\n\nReady to meet someone new?", mainMenuKeyboard())
}

// handleSearch enqueues the user and attempts an immediate pairing.
// Shared by the /search command and the "Find Match" button.
func (b *Bot) handleSearch(ctx context.Context, chatID, userID int64) {
	profile, err := b.db.GetProfile(ctx, userID)
	if notFound(err) {
		b.sendText(chatID, "Use /start to set up your profile first!")
		return
	}
	if err != nil {
		b.logger.Error("Failed to load profile for search", zap.Error(err), zap.Int64("user_id", userID))
		b.replyTransient(chatID)
		return
	}
	if !profile.Registered() {
		b.sendText(chatID, "Please finish setting up your profile first. Use /start to continue.")
		return
	}

	// Refuse while an active match exists. A store failure here must not
	// fall through to matching; that would risk a double pairing.
	_, err = b.db.ActiveMatch(ctx, userID)
	if err == nil {
		b.sendText(chatID, "You're already in a chat! Use /next to find someone new.")
		return
	}
	if !notFound(err) {
		b.logger.Error("Failed to check active match", zap.Error(err), zap.Int64("user_id", userID))
		b.replyTransient(chatID)
		return
	}

	if err := b.db.Enqueue(ctx, userID); err != nil {
		b.logger.Error("Failed to enqueue", zap.Error(err), zap.Int64("user_id", userID))
		b.replyTransient(chatID)
		return
	}
	if b.counters != nil {
		b.counters.IncrSearches(ctx)
	}
	b.record(ctx, analytics.EventSearch, userID, 0)

	b.sendText(chatID, "🔍 Searching for a match...")

	partner, err := b.db.ClaimCompatiblePartner(ctx, userID)
	if notFound(err) {
		b.sendText(chatID, queuedText)
		return
	}
	if err != nil {
		// Still enqueued; a later searcher can pick us up.
		b.logger.Error("Failed to claim partner", zap.Error(err), zap.Int64("user_id", userID))
		b.replyTransient(chatID)
		return
	}

	matchID, err := b.db.OpenMatch(ctx, userID, partner.TelegramID)
	if err != nil {
		b.recoverFailedOpen(ctx, chatID, userID, partner.TelegramID, err)
		return
	}

	if b.counters != nil {
		b.counters.IncrMatches(ctx)
	}
	b.record(ctx, analytics.EventMatchCreated, userID, matchID)
	b.logger.Info("Match created",
		zap.Uint64("match_id", matchID),
		zap.Int64("user_id", userID),
		zap.Int64("partner_id", partner.TelegramID),
	)

	b.sendMarkdown(chatID, matchFoundText)
	b.sendMarkdown(partner.TelegramID, matchFoundPartnerText)
}

// recoverFailedOpen handles OpenMatch losing to a concurrent pairing
// after we already consumed two queue entries. Whichever side turns out
// to be free goes back into the queue so their request is not lost.
func (b *Bot) recoverFailedOpen(ctx context.Context, chatID, userID, partnerID int64, openErr error) {
	b.logger.Warn("Failed to open match",
		zap.Error(openErr),
		zap.Int64("user_id", userID),
		zap.Int64("partner_id", partnerID),
	)
	if !activeMatchExists(openErr) {
		b.replyTransient(chatID)
		return
	}

	_, err := b.db.ActiveMatch(ctx, userID)
	switch {
	case err == nil:
		// We got matched by someone else mid-flight; release the partner.
		if err := b.db.Enqueue(ctx, partnerID); err != nil {
			b.logger.Error("Failed to re-enqueue partner", zap.Error(err), zap.Int64("user_id", partnerID))
		}
		b.sendText(chatID, "You're already in a chat! Use /next to find someone new.")
	case notFound(err):
		// The partner got matched; put ourselves back in line.
		if err := b.db.Enqueue(ctx, userID); err != nil {
			b.logger.Error("Failed to re-enqueue", zap.Error(err), zap.Int64("user_id", userID))
			b.replyTransient(chatID)
			return
		}
		b.sendText(chatID, queuedText)
	default:
		b.replyTransient(chatID)
	}
}

// handleNext ends the current chat (if any), tells the ex-partner, and
// starts a fresh search.
func (b *Bot) handleNext(ctx context.Context, chatID, userID int64) {
	state, err := b.db.EndMatch(ctx, userID)
	if err == nil {
		b.sendText(state.PartnerID, "💔 Your chat partner left. Use /search to find someone new.")
		b.record(ctx, analytics.EventMatchEnded, userID, state.MatchID)
	} else if !notFound(err) {
		b.logger.Error("Failed to end match", zap.Error(err), zap.Int64("user_id", userID))
		b.replyTransient(chatID)
		return
	}

	b.handleSearch(ctx, chatID, userID)
}

// handleStop ends the current chat without re-searching.
func (b *Bot) handleStop(ctx context.Context, chatID, userID int64) {
	state, err := b.db.EndMatch(ctx, userID)
	if notFound(err) {
		b.sendText(chatID, "You're not in a chat.")
		return
	}
	if err != nil {
		b.logger.Error("Failed to end match", zap.Error(err), zap.Int64("user_id", userID))
		b.replyTransient(chatID)
		return
	}

	b.record(ctx, analytics.EventMatchEnded, userID, state.MatchID)
	b.sendText(chatID, "Chat ended.")
	b.sendText(state.PartnerID, "💔 Your chat partner ended the conversation.")
}

// handleReveal records the caller's consent. Identities are disclosed
// only on the call that completes the mutual reveal, so each side gets
// the disclosure exactly once regardless of repeats or ordering.
//
// Both identity cards are loaded before MarkRevealed. The consent flip
// is one-shot; if it happened first, a failed profile read afterwards
// would lose the disclosure for good, with every retry landing in the
// already-revealed branch. Failing before the flip keeps /reveal
// retryable.
func (b *Bot) handleReveal(ctx context.Context, chatID, userID int64) {
	state, err := b.db.ActiveMatch(ctx, userID)
	if notFound(err) {
		b.sendText(chatID, "You're not in an active chat!")
		return
	}
	if err != nil {
		b.logger.Error("Failed to look up active match for reveal", zap.Error(err), zap.Int64("user_id", userID))
		b.replyTransient(chatID)
		return
	}

	me, err := b.db.GetProfile(ctx, userID)
	if err != nil {
		b.logger.Error("Failed to load profile for reveal", zap.Error(err), zap.Int64("user_id", userID))
		b.replyTransient(chatID)
		return
	}
	partner, err := b.db.GetProfile(ctx, state.PartnerID)
	if err != nil {
		b.logger.Error("Failed to load partner profile for reveal", zap.Error(err), zap.Int64("user_id", state.PartnerID))
		b.replyTransient(chatID)
		return
	}

	st, err := b.db.MarkRevealed(ctx, userID)
	if notFound(err) {
		// The match ended between the lookup and the consent.
		b.sendText(chatID, "You're not in an active chat!")
		return
	}
	if err != nil {
		b.logger.Error("Failed to mark reveal", zap.Error(err), zap.Int64("user_id", userID))
		b.replyTransient(chatID)
		return
	}

	if !st.BothRevealed() {
		b.sendText(chatID, "✋ Waiting for partner to reveal...")
		if !st.AlreadyRevealed {
			b.sendText(st.PartnerID, "👤 Your partner wants to reveal! Type /reveal to accept.")
			b.record(ctx, analytics.EventRevealRequested, userID, st.MatchID)
		}
		return
	}

	if st.AlreadyRevealed {
		b.sendText(chatID, "Identities are already revealed.")
		return
	}

	b.sendText(chatID, identityCard(partner.FirstName, partner.Username, partner.Age))
	b.sendText(st.PartnerID, identityCard(me.FirstName, me.Username, me.Age))
	b.record(ctx, analytics.EventIdentityRevealed, userID, st.MatchID)
}

func identityCard(firstName, username string, age int) string {
	return fmt.Sprintf("🎭 Identity Revealed!\n\nName: %s\nUsername: @%s\nAge: %d",
		firstName, username, age)
}
