package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"wagerbot/internal/wager"
	"wagerbot/pkg/utils"
)

func (h *Handler) helpEmbed(s *discordgo.Session) *discordgo.MessageEmbed {
	embed := utils.InfoEmbed(fmt.Sprintf("%s Help", h.cfg.Bot.Name),
		"Two players, one outcome. Odds decide how much each side risks, and both players must agree on the result.")
	if s != nil && s.State != nil && s.State.User != nil {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: s.State.User.AvatarURL("")}
	}

	ga, gb := Emojis(wager.CategoryGame)
	pa, pb := Emojis(wager.CategoryProp)
	fa, fb := Emojis(wager.CategoryFuture)

	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name: "🎲 Creating",
		Value: "`/wager create <type> <amount> <description>`\nOdds accept American (`+150`, `-200`) or decimal (`2.5`). " +
			"Invalid odds fall back to even money.\n*The underdog risks the amount; the favourite risks what the underdog would win.*",
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name: "🤝 Joining",
		Value: fmt.Sprintf("Press a side's button or react on the wager message.\nGame: %s away / %s home · Prop: %s yes / %s no · Future: %s / %s\n"+
			"The wager goes live once both sides are taken.", ga, gb, pa, pb, fa, fb),
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name: "⚖️ Settling",
		Value: fmt.Sprintf("Both players vote with the buttons, the side reactions, %s to cancel, or `/wager vote`. Matching votes settle the wager.\n"+
			"`/wager resolve <id> <side>` and `/wager cancel <id>` open a request the other player confirms with `/wager confirm`, the button or %s. "+
			"Requests expire after %s.", CancelEmoji, ConfirmEmoji, h.cfg.Consensus.RequestTTL),
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name: "📊 Stats",
		Value: "`/wagers active` · `/wagers history` · `/stats [user]` · `/leaderboard`\n" +
			"`!wagers` · `!history` · `!stats` · `!leaderboard` work too.",
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:  "🔔 Webhooks",
		Value: "`/webhook set <url>` · `/webhook test` · `/webhook delete`\nGet a POST when one of your wagers settles.",
	})
	return embed
}
