package commands

import (
	"net/url"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"wagerbot/pkg/utils"
)

func (h *Handler) HandleSlashWebhook(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return
	}
	subCommand := options[0].Name
	userID := interactionUser(i).ID

	ctx, cancel := h.opContext()
	defer cancel()

	switch subCommand {
	case "set":
		rawURL := options[0].Options[0].StringValue()

		if !validWebhookURL(rawURL) {
			respondEphemeral(s, i, utils.ErrorEmbed("Invalid URL. Must start with http:// or https://"))
			return
		}

		if err := h.hooks.SetWebhook(ctx, userID, rawURL); err != nil {
			h.log.Error("save webhook", zap.String("user_id", userID), zap.Error(err))
			respondEphemeral(s, i, utils.ErrorEmbed("Database error saving webhook."))
			return
		}

		respondEphemeral(s, i, utils.SuccessEmbed("Webhook Configured", "Your webhook URL has been saved. It receives a POST whenever one of your wagers settles."))

	case "test":
		targetURL, err := h.hooks.GetWebhook(ctx, userID)
		if err != nil || targetURL == "" {
			respondEphemeral(s, i, utils.ErrorEmbed("You don't have a webhook configured."))
			return
		}

		if err := h.tester.Test(ctx, targetURL); err != nil {
			respondEphemeral(s, i, utils.ErrorEmbed("Test Failed: "+err.Error()))
			return
		}

		respondEphemeral(s, i, utils.SuccessEmbed("Test Sent", "We sent a test payload to your URL."))

	case "delete":
		if err := h.hooks.SetWebhook(ctx, userID, ""); err != nil {
			h.log.Error("remove webhook", zap.String("user_id", userID), zap.Error(err))
			respondEphemeral(s, i, utils.ErrorEmbed("Error removing webhook."))
			return
		}
		respondEphemeral(s, i, utils.SuccessEmbed("Webhook Removed", "You will no longer receive notifications."))
	}
}

func validWebhookURL(raw string) bool {
	parsed, err := url.ParseRequestURI(raw)
	if err != nil || parsed.Host == "" {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}
