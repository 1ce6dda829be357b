package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"blindchat/internal/analytics"
	"blindchat/internal/cache"
	"blindchat/internal/storage"
)

// Bot wraps the Telegram API together with the matchmaking state. All
// conversation state is durable: the registration step lives on the
// profile row and active pairings live in the match tables, so any
// worker can process any update with no in-memory coordination.
type Bot struct {
	api      *tgbotapi.BotAPI
	db       storage.Storage
	events   analytics.Sink
	counters *cache.Counters // nil when Redis is not configured
	logger   *zap.Logger

	// sent, when non-nil, observes every outgoing message. Tests use it
	// to assert on notifications without a live Telegram API.
	sent func(chatID int64, text string)
}

// anonymousLabel prefixes relayed messages until both sides reveal.
const anonymousLabel = "💬 Anonymous: "
