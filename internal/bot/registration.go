package bot

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"blindchat/internal/analytics"
	"blindchat/internal/models"
)

const (
	agePromptText     = "📅 How old are you? (Enter a number)"
	ageNotANumberText = "Please enter a valid number."
	ageOutOfRangeText = "Please enter an age between 18 and 100."
	genderPromptText  = "What's your gender?"
	lookingPromptText = "Who are you looking to meet?"
	bioPromptText     = "Tell us a bit about yourself (bio):"
	completeText      = "✅ Profile complete!\n\nUse /search to find your first match!"
)

func genderKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👨 Male", "gender_male"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👩 Female", "gender_female"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌈 Other", "gender_other"),
		),
	)
}

func lookingKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👨 Male", "looking_male"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👩 Female", "looking_female"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌈 Everyone", "looking_everyone"),
		),
	)
}

// handleRegistrationText advances the onboarding flow for free-text
// steps. Invalid input re-prompts without advancing the step; the
// gender and looking_for steps are button-driven, so text there just
// points the user back at the keyboard.
func (b *Bot) handleRegistrationText(ctx context.Context, message *tgbotapi.Message, profile *models.Profile) {
	chatID := message.Chat.ID
	userID := message.From.ID

	switch profile.RegistrationStep {
	case models.StepAge:
		age, err := strconv.Atoi(strings.TrimSpace(message.Text))
		if err != nil {
			b.sendText(chatID, ageNotANumberText)
			return
		}
		if age < 18 || age > 100 {
			b.sendText(chatID, ageOutOfRangeText)
			return
		}
		if err := b.db.SetAge(ctx, userID, age); err != nil {
			b.registrationWriteFailed(chatID, userID, err)
			return
		}
		b.sendKeyboard(chatID, genderPromptText, genderKeyboard())

	case models.StepGender:
		b.sendKeyboard(chatID, "Please use the buttons to pick your gender.", genderKeyboard())

	case models.StepLookingFor:
		b.sendKeyboard(chatID, "Please use the buttons to pick who you'd like to meet.", lookingKeyboard())

	case models.StepBio:
		if err := b.db.SetBio(ctx, userID, message.Text); err != nil {
			b.registrationWriteFailed(chatID, userID, err)
			return
		}
		b.sendText(chatID, completeText)
		b.record(ctx, analytics.EventRegistrationCompleted, userID, 0)
	}
}

// handleGenderCallback stores the gender choice and asks for the
// matching preference.
func (b *Bot) handleGenderCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	value := strings.TrimPrefix(query.Data, "gender_")
	gender, ok := models.ParseGender(value)
	if !ok {
		return
	}

	userID := query.From.ID
	if err := b.db.SetGender(ctx, userID, gender); err != nil {
		b.registrationWriteFailed(query.Message.Chat.ID, userID, err)
		return
	}
	b.editKeyboard(query.Message.Chat.ID, query.Message.MessageID, lookingPromptText, lookingKeyboard())
}

// handleLookingCallback stores the preference and asks for the bio.
func (b *Bot) handleLookingCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	value := strings.TrimPrefix(query.Data, "looking_")
	pref, ok := models.ParsePreference(value)
	if !ok {
		return
	}

	userID := query.From.ID
	if err := b.db.SetLookingFor(ctx, userID, pref); err != nil {
		b.registrationWriteFailed(query.Message.Chat.ID, userID, err)
		return
	}
	b.editText(query.Message.Chat.ID, query.Message.MessageID, bioPromptText)
}

// registrationWriteFailed handles the two failure modes of a step
// setter: a stale step (double tap, replayed callback) is silently
// dropped because the profile already moved on, while a store failure
// gets the transient-error reply.
func (b *Bot) registrationWriteFailed(chatID, userID int64, err error) {
	if staleStep(err) {
		b.logger.Debug("Ignoring stale registration submission", zap.Int64("user_id", userID))
		return
	}
	b.logger.Error("Failed to advance registration",
		zap.Error(err),
		zap.Int64("user_id", userID),
	)
	b.replyTransient(chatID)
}
