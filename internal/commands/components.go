package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"wagerbot/internal/wager"
	"wagerbot/pkg/utils"
)

func (h *Handler) ComponentsHandler(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	act, ok := ParseCustomID(i.MessageComponentData().CustomID)
	if !ok {
		return
	}
	h.runInteraction(s, i, act, true)
}

// outcome is what an Action did, ready to render.
type outcome struct {
	Wager     *wager.Wager
	Changed   bool
	Committed bool
	Summary   string
}

// perform runs act on behalf of userID.
func (h *Handler) perform(ctx context.Context, act Action, userID, name string) (*outcome, error) {
	if act.Kind != ActionJoinSide && name != "" {
		if err := h.manager.RememberUser(ctx, userID, name); err != nil {
			h.log.Warn("remember user", zap.String("user_id", userID), zap.Error(err))
		}
	}

	switch act.Kind {
	case ActionJoinSide:
		res, err := h.manager.JoinSide(ctx, act.WagerID, userID, name, act.Side)
		if err != nil {
			return nil, err
		}
		summary := fmt.Sprintf("%s took side %s (%s).", utils.Mention(userID), act.Side, res.Wager.Side(act.Side).Description)
		if res.Activated {
			summary += " Both sides are filled, the wager is live!"
		}
		return &outcome{Wager: res.Wager, Changed: true, Summary: summary}, nil

	case ActionCastVote:
		res, err := h.coord.CastVote(ctx, act.WagerID, userID, act.Choice)
		if err != nil {
			return nil, err
		}
		if res.Committed {
			return &outcome{Wager: res.Wager, Changed: true, Committed: true, Summary: "Both players agree."}, nil
		}
		return &outcome{
			Wager:   res.Wager,
			Summary: fmt.Sprintf("Vote recorded: **%s**. Waiting on %s.", choiceLabel(res.Wager, act.Choice), mentions(res.PendingFrom)),
		}, nil

	case ActionConfirm:
		res, err := h.coord.Confirm(ctx, act.RequestID, userID)
		if err != nil {
			return nil, err
		}
		if res.Committed {
			return &outcome{Wager: res.Wager, Changed: true, Committed: true, Summary: "Request confirmed by both players."}, nil
		}
		return &outcome{Wager: res.Wager, Summary: "Your confirmation is recorded. Waiting on the other player."}, nil
	}
	return nil, wager.ErrInvalidChoice
}

func choiceLabel(w *wager.Wager, c wager.Choice) string {
	if side, ok := c.Side(); ok {
		return fmt.Sprintf("side %s (%s) won", side, w.Side(side).Description)
	}
	return "cancel"
}

func mentions(ids []string) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = utils.Mention(id)
	}
	return strings.Join(out, ", ")
}

// runInteraction performs act for a slash command or button press. A button
// that changed state rewrites the message it sits on.
func (h *Handler) runInteraction(s *discordgo.Session, i *discordgo.InteractionCreate, act Action, fromComponent bool) {
	user := interactionUser(i)
	if user == nil {
		return
	}
	ctx, cancel := h.opContext()
	defer cancel()

	out, err := h.perform(ctx, act, user.ID, displayName(user, i.Member))
	if err != nil {
		h.respondError(s, i, err)
		return
	}
	if !out.Changed {
		respondEphemeral(s, i, utils.InfoEmbed("Got it", out.Summary))
		return
	}

	if fromComponent && i.Message != nil {
		onWager := i.Message.ID == out.Wager.ExternalRef
		embed := settledEmbed(out.Wager, h.symbol())
		components := []discordgo.MessageComponent{}
		if onWager {
			embed = utils.WagerEmbed(out.Wager, h.symbol())
			components = wagerComponents(out.Wager)
		}
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Embeds:     []*discordgo.MessageEmbed{embed},
				Components: components,
			},
		})
		if err != nil {
			h.log.Warn("failed to update message", zap.String("message_id", i.Message.ID), zap.Error(err))
		}
		if !onWager {
			h.refreshWagerMessage(s, out.Wager)
		}
		return
	}

	embed := utils.SuccessEmbed("Joined", out.Summary)
	if out.Committed {
		embed = settledEmbed(out.Wager, h.symbol())
	}
	respondEmbed(s, i, embed)
	h.refreshWagerMessage(s, out.Wager)
}

// refreshWagerMessage redraws the wager's card after a state change.
func (h *Handler) refreshWagerMessage(s *discordgo.Session, w *wager.Wager) {
	if w == nil || w.ExternalRef == "" || w.ChannelID == "" {
		return
	}
	components := wagerComponents(w)
	edit := discordgo.NewMessageEdit(w.ChannelID, w.ExternalRef).SetEmbed(utils.WagerEmbed(w, h.symbol()))
	edit.Components = &components
	if _, err := s.ChannelMessageEditComplex(edit); err != nil {
		h.log.Warn("failed to refresh wager message", zap.Int64("wager_id", w.ID), zap.Error(err))
	}
}
