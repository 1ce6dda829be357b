package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"blindchat/internal/analytics"
	"blindchat/internal/cache"
	"blindchat/internal/storage"
)

// NewBot creates a new Telegram bot. counters may be nil when Redis is
// not configured.
func NewBot(token string, db storage.Storage, events analytics.Sink, counters *cache.Counters, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	return &Bot{
		api:      api,
		db:       db,
		events:   events,
		counters: counters,
		logger:   logger,
	}, nil
}
