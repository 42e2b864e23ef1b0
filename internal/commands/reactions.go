package commands

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"wagerbot/internal/wager"
)

// ReactionAdd handles reactions on wager and request messages. Rejected
// reactions are removed again so the message reflects what counted.
func (h *Handler) ReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if s.State != nil && s.State.User != nil && r.UserID == s.State.User.ID {
		return
	}
	if r.Member != nil && r.Member.User != nil && r.Member.User.Bot {
		return
	}
	if !h.cfg.Bot.IsChannelAllowed(r.ChannelID) {
		return
	}

	ctx, cancel := h.opContext()
	defer cancel()

	act, ok, err := h.resolveReaction(ctx, r.MessageID, r.Emoji.Name)
	if err != nil {
		if !errors.Is(err, wager.ErrNotFound) {
			h.log.Error("resolve reaction", zap.String("message_id", r.MessageID), zap.Error(err))
		}
		return
	}
	if !ok {
		return
	}

	var name string
	if r.Member != nil {
		name = displayName(r.Member.User, r.Member)
	}
	out, err := h.perform(ctx, act, r.UserID, name)
	if err != nil {
		if !wager.IsDomain(err) {
			h.log.Error("reaction failed", zap.String("message_id", r.MessageID), zap.Error(err))
		}
		if rerr := s.MessageReactionRemove(r.ChannelID, r.MessageID, r.Emoji.APIName(), r.UserID); rerr != nil {
			h.log.Debug("failed to remove reaction", zap.Error(rerr))
		}
		return
	}

	if !out.Changed {
		return
	}
	h.refreshWagerMessage(s, out.Wager)
	if act.Kind == ActionConfirm {
		components := []discordgo.MessageComponent{}
		edit := discordgo.NewMessageEdit(r.ChannelID, r.MessageID).SetEmbed(settledEmbed(out.Wager, h.symbol()))
		edit.Components = &components
		if _, err := s.ChannelMessageEditComplex(edit); err != nil {
			h.log.Warn("failed to close request message", zap.String("message_id", r.MessageID), zap.Error(err))
		}
	}
}

// resolveReaction works out which message was reacted to and what the
// emoji means there.
func (h *Handler) resolveReaction(ctx context.Context, messageID, emoji string) (Action, bool, error) {
	w, err := h.manager.GetByExternalRef(ctx, messageID)
	if err == nil {
		act, ok := ReactionAction(w, emoji)
		return act, ok, nil
	}
	if !errors.Is(err, wager.ErrNotFound) {
		return Action{}, false, err
	}

	req, err := h.coord.RequestByExternalRef(ctx, messageID)
	if err != nil {
		return Action{}, false, err
	}
	act, ok := RequestReactionAction(req, emoji)
	return act, ok, nil
}
