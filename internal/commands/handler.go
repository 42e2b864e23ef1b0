// Package commands turns Discord interactions, buttons and reactions into
// calls on the wager core and renders the results.
package commands

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"wagerbot/internal/consensus"
	"wagerbot/internal/wager"
	"wagerbot/pkg/config"
	"wagerbot/pkg/utils"
)

// WebhookStore persists per-user webhook URLs.
type WebhookStore interface {
	SetWebhook(ctx context.Context, userID, url string) error
	GetWebhook(ctx context.Context, userID string) (string, error)
}

// WebhookTester sends a test payload to a URL.
type WebhookTester interface {
	Test(ctx context.Context, url string) error
}

type Handler struct {
	cfg     *config.Config
	manager *wager.Manager
	coord   *consensus.Coordinator
	hooks   WebhookStore
	tester  WebhookTester
	log     *zap.Logger
	timeout time.Duration
}

func NewHandler(cfg *config.Config, m *wager.Manager, c *consensus.Coordinator, hooks WebhookStore, tester WebhookTester, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		cfg:     cfg,
		manager: m,
		coord:   c,
		hooks:   hooks,
		tester:  tester,
		log:     log.Named("commands"),
		timeout: 10 * time.Second,
	}
}

// Register attaches every handler to the session.
func (h *Handler) Register(s *discordgo.Session) {
	s.AddHandler(h.MessageCreate)
	s.AddHandler(h.SlashHandler)
	s.AddHandler(h.ComponentsHandler)
	s.AddHandler(h.ReactionAdd)
}

func (h *Handler) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.timeout)
}

func (h *Handler) symbol() string { return h.cfg.Bot.CurrencySymbol }

// MessageCreate serves the read-only text shortcuts.
func (h *Handler) MessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if !strings.HasPrefix(m.Content, "!") || !h.cfg.Bot.IsChannelAllowed(m.ChannelID) {
		return
	}

	args := strings.Fields(m.Content)
	if len(args) == 0 {
		return
	}
	ctx, cancel := h.opContext()
	defer cancel()

	var embed *discordgo.MessageEmbed
	switch strings.ToLower(args[0]) {
	case "!help", "!ajuda":
		embed = h.helpEmbed(s)
	case "!wagers", "!bets":
		embed = h.activeEmbed(ctx)
	case "!history":
		embed = h.historyEmbed(ctx, m.Author.ID)
	case "!stats":
		embed = h.statsEmbed(ctx, m.Author.ID)
	case "!leaderboard", "!top":
		embed = h.leaderboard(ctx)
	default:
		return
	}
	if _, err := s.ChannelMessageSendEmbed(m.ChannelID, embed); err != nil {
		h.log.Warn("failed to send message", zap.String("channel_id", m.ChannelID), zap.Error(err))
	}
}

func (h *Handler) activeEmbed(ctx context.Context) *discordgo.MessageEmbed {
	list, err := h.manager.ListOpen(ctx, 0)
	if err != nil {
		h.log.Error("list open wagers", zap.Error(err))
		return utils.ErrorEmbed(errorMessage(err))
	}
	return listEmbed("Active wagers", list, h.symbol(), "No open wagers. Start one with `/wager create`.")
}

func (h *Handler) historyEmbed(ctx context.Context, userID string) *discordgo.MessageEmbed {
	list, err := h.manager.History(ctx, userID, 0)
	if err != nil {
		h.log.Error("user history", zap.String("user_id", userID), zap.Error(err))
		return utils.ErrorEmbed(errorMessage(err))
	}
	return listEmbed("Your wagers", list, h.symbol(), "You haven't taken part in any wagers yet.")
}

func (h *Handler) statsEmbed(ctx context.Context, userID string) *discordgo.MessageEmbed {
	st, err := h.manager.Stats(ctx, userID)
	if err != nil {
		h.log.Error("user stats", zap.String("user_id", userID), zap.Error(err))
		return utils.ErrorEmbed(errorMessage(err))
	}
	return utils.StatsEmbed(st, h.symbol())
}

func (h *Handler) leaderboard(ctx context.Context) *discordgo.MessageEmbed {
	list, err := h.manager.Leaderboard(ctx, 0)
	if err != nil {
		h.log.Error("leaderboard", zap.Error(err))
		return utils.ErrorEmbed(errorMessage(err))
	}
	return leaderboardEmbed(list, h.symbol())
}
