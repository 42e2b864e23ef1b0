package utils

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"

	"wagerbot/internal/odds"
	"wagerbot/internal/stake"
	"wagerbot/internal/wager"
)

const (
	ColorGold  = 0xFFD700
	ColorGreen = 0x00FF00
	ColorRed   = 0xFF0000
	ColorBlue  = 0x0000FF
	ColorGrey  = 0x95A5A6
)

func ErrorEmbed(description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "❌ Error",
		Description: description,
		Color:       ColorRed,
	}
}

func SuccessEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "✅ " + title,
		Description: description,
		Color:       ColorGreen,
	}
}

func InfoEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "ℹ️ " + title,
		Description: description,
		Color:       ColorBlue,
	}
}

func GoldEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "💰 " + title,
		Description: description,
		Color:       ColorGold,
	}
}

// Mention renders a user mention, or a placeholder for an open seat.
func Mention(userID string) string {
	if userID == "" {
		return "*open*"
	}
	return "<@" + userID + ">"
}

// Money formats an amount with two decimals and the configured symbol.
func Money(amount decimal.Decimal, symbol string) string {
	s := amount.StringFixed(stake.MoneyPlaces)
	if symbol == "" {
		return s
	}
	return symbol + " " + s
}

func statusColor(s wager.Status) int {
	switch s {
	case wager.StatusPending:
		return ColorBlue
	case wager.StatusActive:
		return ColorGold
	case wager.StatusResolved:
		return ColorGreen
	default:
		return ColorGrey
	}
}

// WagerEmbed is the card posted for a wager and refreshed as it changes.
func WagerEmbed(w *wager.Wager, symbol string) *discordgo.MessageEmbed {
	title := fmt.Sprintf("🎲 Wager #%d · %s", w.ID, strings.ToUpper(string(w.Category)))
	e := &discordgo.MessageEmbed{
		Title:       title,
		Description: w.Description,
		Color:       statusColor(w.Status),
	}

	for _, s := range []wager.Side{wager.SideA, wager.SideB} {
		info := w.Side(s)
		label := info.Description
		if w.WinningSide == s {
			label = "🏆 " + label
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name: fmt.Sprintf("Side %s: %s", s, label),
			Value: fmt.Sprintf("Odds %s\nStake %s · To win %s\n%s",
				odds.Display(info.Odds), Money(info.Stake, symbol), Money(info.ToWin, symbol), Mention(info.UserID)),
			Inline: true,
		})
	}

	var details []string
	if w.HomeTeam != "" || w.AwayTeam != "" {
		details = append(details, fmt.Sprintf("%s @ %s", w.AwayTeam, w.HomeTeam))
	}
	if w.PlayerName != "" {
		details = append(details, "Player: "+w.PlayerName)
	}
	if w.OtherDetails != "" {
		details = append(details, w.OtherDetails)
	}
	if len(details) > 0 {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Details", Value: strings.Join(details, "\n")})
	}

	e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
		Name:   "Pot",
		Value:  Money(w.TotalPot(), symbol),
		Inline: true,
	}, &discordgo.MessageEmbedField{
		Name:   "Status",
		Value:  string(w.Status),
		Inline: true,
	})
	e.Footer = &discordgo.MessageEmbedFooter{Text: "Created by " + w.CreatorID}
	e.Timestamp = w.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
	return e
}

// StatsEmbed shows a user's running totals.
func StatsEmbed(s *wager.UserStats, symbol string) *discordgo.MessageEmbed {
	name := s.DisplayName
	if name == "" {
		name = Mention(s.UserID)
	}
	color := ColorGreen
	if s.NetProfit.IsNegative() {
		color = ColorRed
	}
	return &discordgo.MessageEmbed{
		Title:       "📊 Stats",
		Description: name,
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Wagers", Value: fmt.Sprint(s.TotalWagers), Inline: true},
			{Name: "Record", Value: fmt.Sprintf("%dW - %dL", s.Wins, s.Losses), Inline: true},
			{Name: "Win rate", Value: s.WinRate().StringFixed(1) + "%", Inline: true},
			{Name: "Staked", Value: Money(s.TotalStaked, symbol), Inline: true},
			{Name: "Returned", Value: Money(s.TotalReturned, symbol), Inline: true},
			{Name: "Lost", Value: Money(s.TotalLost, symbol), Inline: true},
			{Name: "Net profit", Value: Money(s.NetProfit, symbol)},
		},
	}
}
