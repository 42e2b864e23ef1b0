package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"wagerbot/internal/events"
	"wagerbot/internal/metrics"
	"wagerbot/pkg/utils"
)

// ChannelSender is the part of *discordgo.Session the announcer needs.
type ChannelSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Announcer posts activations and settlements to the wager's channel.
type Announcer struct {
	s        ChannelSender
	currency string
	log      *zap.Logger
}

func NewAnnouncer(s ChannelSender, currency string, log *zap.Logger) *Announcer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Announcer{s: s, currency: currency, log: log.Named("announcer")}
}

func (a *Announcer) Notify(_ context.Context, e events.Event) {
	if e.ChannelID == "" {
		return
	}
	embed := a.render(e)
	if embed == nil {
		return
	}
	if _, err := a.s.ChannelMessageSendEmbed(e.ChannelID, embed); err != nil {
		metrics.NotifyFailures.WithLabelValues("discord").Inc()
		a.log.Warn("failed to announce", zap.Int64("wager_id", e.WagerID), zap.Error(err))
	}
}

func (a *Announcer) render(e events.Event) *discordgo.MessageEmbed {
	players := make([]string, len(e.Participants))
	for i, id := range e.Participants {
		players[i] = utils.Mention(id)
	}
	vs := strings.Join(players, " vs ")
	pot := e.TotalPot
	if a.currency != "" {
		pot = a.currency + " " + pot
	}

	switch e.Kind {
	case events.WagerActivated:
		return utils.GoldEmbed(fmt.Sprintf("Wager #%d is live", e.WagerID),
			fmt.Sprintf("%s\n%s\nPot: **%s**", e.Description, vs, pot))
	case events.WagerResolved:
		return utils.SuccessEmbed(fmt.Sprintf("Wager #%d resolved", e.WagerID),
			fmt.Sprintf("%s\nSide **%s** wins the **%s** pot.\n%s", e.Description, e.Outcome, pot, vs))
	case events.WagerCancelled:
		return utils.InfoEmbed(fmt.Sprintf("Wager #%d cancelled", e.WagerID),
			fmt.Sprintf("%s\nNo stats were changed.", e.Description))
	}
	return nil
}
