package commands

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"wagerbot/internal/wager"
	"wagerbot/pkg/utils"
)

type optionMap = map[string]*discordgo.ApplicationCommandInteractionDataOption

func options(opts []*discordgo.ApplicationCommandInteractionDataOption) optionMap {
	m := make(optionMap, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func optString(m optionMap, name string) string {
	if o, ok := m[name]; ok {
		return o.StringValue()
	}
	return ""
}

// respondEmbed answers an interaction with a public embed.
func respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
}

func (h *Handler) respondError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	if !wager.IsDomain(err) {
		h.log.Error("interaction failed", zap.String("interaction_id", i.ID), zap.Error(err))
	}
	if rerr := respondEphemeral(s, i, utils.ErrorEmbed(errorMessage(err))); rerr != nil {
		h.log.Warn("failed to respond", zap.Error(rerr))
	}
}

func (h *Handler) SlashHandler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	if !h.cfg.Bot.IsChannelAllowed(i.ChannelID) {
		respondEphemeral(s, i, utils.ErrorEmbed("This bot can only be used in designated channels."))
		return
	}

	// Every interaction refreshes the caller's display name.
	if u := interactionUser(i); u != nil {
		ctx, cancel := h.opContext()
		if err := h.manager.RememberUser(ctx, u.ID, displayName(u, i.Member)); err != nil {
			h.log.Warn("remember user", zap.String("user_id", u.ID), zap.Error(err))
		}
		cancel()
	}

	data := i.ApplicationCommandData()
	switch data.Name {
	case "help":
		respondEmbed(s, i, h.helpEmbed(s))
	case "wager":
		h.handleWager(s, i, data.Options)
	case "wagers":
		h.handleWagers(s, i, data.Options)
	case "stats":
		h.handleStats(s, i, options(data.Options))
	case "leaderboard":
		ctx, cancel := h.opContext()
		defer cancel()
		respondEmbed(s, i, h.leaderboard(ctx))
	case "webhook":
		h.HandleSlashWebhook(s, i)
	}
}

func (h *Handler) handleWager(s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(opts) == 0 {
		return
	}
	sub := opts[0]
	args := options(sub.Options)

	switch sub.Name {
	case "create":
		h.handleCreate(s, i, args)
	case "vote":
		h.handleVote(s, i, args)
	case "resolve":
		h.handlePropose(s, i, args["wager_id"].IntValue(), wager.Side(optString(args, "winning_side")))
	case "cancel":
		h.handleCancel(s, i, args["wager_id"].IntValue())
	case "confirm":
		h.handleConfirm(s, i, optString(args, "request_id"))
	}
}

func (h *Handler) handleCreate(s *discordgo.Session, i *discordgo.InteractionCreate, args optionMap) {
	user := interactionUser(i)
	category, err := wager.ParseCategory(optString(args, "type"))
	if err != nil {
		h.respondError(s, i, err)
		return
	}
	var amount decimal.Decimal
	if o, ok := args["amount"]; ok {
		amount = decimal.NewFromFloat(o.FloatValue())
	}

	ctx, cancel := h.opContext()
	defer cancel()
	w, err := h.manager.Create(ctx, wager.CreateParams{
		CreatorID:        user.ID,
		CreatorName:      displayName(user, i.Member),
		Category:         category,
		BaseAmount:       amount,
		Description:      optString(args, "description"),
		SideADescription: optString(args, "side_a"),
		SideBDescription: optString(args, "side_b"),
		OddsA:            optString(args, "odds_a"),
		OddsB:            optString(args, "odds_b"),
		HomeTeam:         optString(args, "home_team"),
		AwayTeam:         optString(args, "away_team"),
		PlayerName:       optString(args, "player"),
		OtherDetails:     optString(args, "details"),
		ChannelID:        i.ChannelID,
	})
	if err != nil {
		h.respondError(s, i, err)
		return
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{utils.WagerEmbed(w, h.symbol())},
			Components: wagerComponents(w),
		},
	})
	if err != nil {
		h.log.Warn("failed to post wager", zap.Int64("wager_id", w.ID), zap.Error(err))
		return
	}

	if notes := oddsCorrections(w, optString(args, "odds_a"), optString(args, "odds_b")); len(notes) > 0 {
		_, err := s.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
			Embeds: []*discordgo.MessageEmbed{utils.InfoEmbed("Odds corrected", strings.Join(notes, "\n"))},
			Flags:  discordgo.MessageFlagsEphemeral,
		})
		if err != nil {
			h.log.Debug("failed to send odds notice", zap.Int64("wager_id", w.ID), zap.Error(err))
		}
	}

	msg, err := s.InteractionResponse(i.Interaction)
	if err != nil {
		h.log.Warn("failed to fetch wager message", zap.Int64("wager_id", w.ID), zap.Error(err))
		return
	}
	if err := h.manager.AttachExternalRef(ctx, w.ID, msg.ID, msg.ChannelID); err != nil {
		h.log.Error("attach wager message", zap.Int64("wager_id", w.ID), zap.Error(err))
		return
	}
	a, b := Emojis(w.Category)
	for _, emoji := range []string{a, b} {
		if err := s.MessageReactionAdd(msg.ChannelID, msg.ID, emoji); err != nil {
			h.log.Debug("failed to seed reaction", zap.String("emoji", emoji), zap.Error(err))
		}
	}
}

func (h *Handler) handleVote(s *discordgo.Session, i *discordgo.InteractionCreate, args optionMap) {
	act := Action{
		Kind:    ActionCastVote,
		WagerID: args["wager_id"].IntValue(),
		Choice:  wager.Choice(optString(args, "choice")),
	}
	h.runInteraction(s, i, act, false)
}

func (h *Handler) handleConfirm(s *discordgo.Session, i *discordgo.InteractionCreate, requestID string) {
	h.runInteraction(s, i, Action{Kind: ActionConfirm, RequestID: requestID}, false)
}

func (h *Handler) handlePropose(s *discordgo.Session, i *discordgo.InteractionCreate, wagerID int64, side wager.Side) {
	user := interactionUser(i)
	ctx, cancel := h.opContext()
	defer cancel()

	req, err := h.coord.ProposeResolution(ctx, wagerID, user.ID, side)
	if err != nil {
		h.respondError(s, i, err)
		return
	}
	h.postRequest(s, i, req)
}

func (h *Handler) handleCancel(s *discordgo.Session, i *discordgo.InteractionCreate, wagerID int64) {
	user := interactionUser(i)
	ctx, cancel := h.opContext()
	defer cancel()

	res, err := h.coord.ProposeCancellation(ctx, wagerID, user.ID)
	if err != nil {
		h.respondError(s, i, err)
		return
	}
	if res.Cancelled {
		respondEmbed(s, i, settledEmbed(res.Wager, h.symbol()))
		h.refreshWagerMessage(s, res.Wager)
		return
	}
	h.postRequest(s, i, res.Request)
}

// postRequest announces an open request and links the message to it so a
// reaction there confirms it.
func (h *Handler) postRequest(s *discordgo.Session, i *discordgo.InteractionCreate, req *wager.ConsensusRequest) {
	ctx, cancel := h.opContext()
	defer cancel()

	w, err := h.manager.Get(ctx, req.WagerID)
	if err != nil {
		h.respondError(s, i, err)
		return
	}
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{requestEmbed(w, req)},
			Components: requestComponents(req),
		},
	})
	if err != nil {
		h.log.Warn("failed to post request", zap.String("request_id", req.ID), zap.Error(err))
		return
	}

	msg, err := s.InteractionResponse(i.Interaction)
	if err != nil {
		h.log.Warn("failed to fetch request message", zap.String("request_id", req.ID), zap.Error(err))
		return
	}
	if err := h.coord.AttachRequestRef(ctx, req.ID, msg.ID); err != nil {
		h.log.Error("attach request message", zap.String("request_id", req.ID), zap.Error(err))
		return
	}
	if err := s.MessageReactionAdd(msg.ChannelID, msg.ID, ConfirmEmoji); err != nil {
		h.log.Debug("failed to seed confirm reaction", zap.Error(err))
	}
}

func (h *Handler) handleWagers(s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(opts) == 0 {
		return
	}
	ctx, cancel := h.opContext()
	defer cancel()

	switch opts[0].Name {
	case "active":
		respondEmbed(s, i, h.activeEmbed(ctx))
	case "history":
		respondEphemeral(s, i, h.historyEmbed(ctx, interactionUser(i).ID))
	}
}

func (h *Handler) handleStats(s *discordgo.Session, i *discordgo.InteractionCreate, args optionMap) {
	userID := interactionUser(i).ID
	if o, ok := args["user"]; ok {
		if u := o.UserValue(nil); u != nil {
			userID = u.ID
		}
	}
	ctx, cancel := h.opContext()
	defer cancel()

	respondEmbed(s, i, h.statsEmbed(ctx, userID))
}
