package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Start starts the bot in polling mode
func (b *Bot) Start() error {
	b.logger.Info("Starting bot in polling mode")

	// Remove webhook (if any was set previously)
	_, err := b.api.Request(tgbotapi.DeleteWebhookConfig{})
	if err != nil {
		b.logger.Warn("Failed to delete webhook", zap.Error(err))
	}

	// Create update configuration
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	// Get updates channel
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Bot started successfully. Waiting for updates...")

	// Handle updates (blocks here)
	b.handleUpdates(updates)
	return nil
}

// StartWebhook sets up the bot to receive updates via webhook
func (b *Bot) StartWebhook(webhookURL string) error {
	b.logger.Info("Setting up webhook", zap.String("webhook_url", webhookURL))

	webhookConfig, err := tgbotapi.NewWebhook(webhookURL + "/telegram-webhook")
	if err != nil {
		return err
	}
	webhookConfig.MaxConnections = 40

	_, err = b.api.Request(webhookConfig)
	if err != nil {
		b.logger.Error("Failed to set webhook", zap.Error(err), zap.String("webhook_url", webhookURL))
		return err
	}

	// Get webhook info to verify
	info, err := b.api.GetWebhookInfo()
	if err != nil {
		b.logger.Warn("Failed to get webhook info", zap.Error(err))
	} else {
		b.logger.Info("Webhook set successfully",
			zap.String("url", info.URL),
			zap.Int("pending_updates", info.PendingUpdateCount),
		)
	}

	b.logger.Info("Bot configured for webhook mode")
	return nil
}

// HandleWebhookUpdate processes a single update. Used both by the
// webhook HTTP endpoint and the polling loop. Each update is independent;
// one user's failure never aborts processing for others.
func (b *Bot) HandleWebhookUpdate(update tgbotapi.Update) {
	if update.Message != nil {
		b.handleMessage(update.Message)
	}
	if update.CallbackQuery != nil {
		b.handleCallbackQuery(update.CallbackQuery)
	}
}

// handleUpdates processes incoming updates from polling mode. Updates
// are dispatched to goroutines: each user's request only orders against
// others through the store, so there is no reason to serialize them.
func (b *Bot) handleUpdates(updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		go b.HandleWebhookUpdate(update)
	}
}
