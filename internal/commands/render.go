package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"wagerbot/internal/odds"
	"wagerbot/internal/wager"
	"wagerbot/pkg/utils"
)

// wagerComponents returns the buttons for the wager's current state.
func wagerComponents(w *wager.Wager) []discordgo.MessageComponent {
	a, b := Emojis(w.Category)
	switch w.Status {
	case wager.StatusPending:
		return []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Take " + w.SideA.Description,
					Style:    discordgo.PrimaryButton,
					CustomID: JoinButtonID(w.ID, wager.SideA),
					Emoji:    &discordgo.ComponentEmoji{Name: a},
					Disabled: w.SideA.Filled(),
				},
				discordgo.Button{
					Label:    "Take " + w.SideB.Description,
					Style:    discordgo.SecondaryButton,
					CustomID: JoinButtonID(w.ID, wager.SideB),
					Emoji:    &discordgo.ComponentEmoji{Name: b},
					Disabled: w.SideB.Filled(),
				},
			}},
		}
	case wager.StatusActive:
		return []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    w.SideA.Description + " won",
					Style:    discordgo.SuccessButton,
					CustomID: VoteButtonID(w.ID, wager.ChoiceA),
					Emoji:    &discordgo.ComponentEmoji{Name: a},
				},
				discordgo.Button{
					Label:    w.SideB.Description + " won",
					Style:    discordgo.SuccessButton,
					CustomID: VoteButtonID(w.ID, wager.ChoiceB),
					Emoji:    &discordgo.ComponentEmoji{Name: b},
				},
				discordgo.Button{
					Label:    "Cancel",
					Style:    discordgo.DangerButton,
					CustomID: VoteButtonID(w.ID, wager.ChoiceCancel),
					Emoji:    &discordgo.ComponentEmoji{Name: CancelEmoji},
				},
			}},
		}
	}
	return []discordgo.MessageComponent{}
}

func requestComponents(r *wager.ConsensusRequest) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Confirm",
				Style:    discordgo.SuccessButton,
				CustomID: ConfirmButtonID(r.ID),
				Emoji:    &discordgo.ComponentEmoji{Name: ConfirmEmoji},
			},
		}},
	}
}

// requestEmbed describes an open request and who still has to confirm.
func requestEmbed(w *wager.Wager, r *wager.ConsensusRequest) *discordgo.MessageEmbed {
	var waiting string
	for _, s := range []wager.Side{wager.SideA, wager.SideB} {
		if !r.Confirmed(s) {
			waiting = utils.Mention(w.Side(s).UserID)
		}
	}

	what := "cancel the wager"
	if side, ok := r.Choice().Side(); ok {
		what = fmt.Sprintf("settle it as a win for side %s (%s)", side, w.Side(side).Description)
	}
	desc := fmt.Sprintf("%s wants to %s.\n%s, press **Confirm** or react with %s.\n\nRequest `%s` expires <t:%d:R>.",
		utils.Mention(r.ProposerID), what, waiting, ConfirmEmoji, r.ID, r.ExpiresAt.Unix())

	title := fmt.Sprintf("Resolution proposed for wager #%d", w.ID)
	if r.Kind == wager.RequestCancel {
		title = fmt.Sprintf("Cancellation proposed for wager #%d", w.ID)
	}
	return utils.InfoEmbed(title, desc)
}

// settledEmbed summarises a resolved or cancelled wager.
func settledEmbed(w *wager.Wager, symbol string) *discordgo.MessageEmbed {
	if w.Status == wager.StatusCancelled {
		return utils.InfoEmbed(fmt.Sprintf("Wager #%d cancelled", w.ID), w.Description+"\nNo stats were changed.")
	}
	won := w.Side(w.WinningSide)
	lost := w.Side(w.WinningSide.Opposite())
	return utils.SuccessEmbed(fmt.Sprintf("Wager #%d resolved", w.ID), fmt.Sprintf(
		"%s\n🏆 %s wins **%s** on %s.\n%s loses **%s**.",
		w.Description,
		utils.Mention(won.UserID), utils.Money(won.ToWin, symbol), won.Description,
		utils.Mention(lost.UserID), utils.Money(lost.Stake, symbol),
	))
}

// wagerLine is one row in a list of wagers.
func wagerLine(w *wager.Wager, symbol string) string {
	status := "⏳"
	switch w.Status {
	case wager.StatusActive:
		status = "🔥"
	case wager.StatusResolved:
		status = "🏁"
	case wager.StatusCancelled:
		status = "🚫"
	}
	return fmt.Sprintf("%s **#%d** %s · %s %s vs %s %s · pot %s",
		status, w.ID, w.Description,
		utils.Mention(w.SideA.UserID), odds.Format(w.SideA.Odds),
		utils.Mention(w.SideB.UserID), odds.Format(w.SideB.Odds),
		utils.Money(w.TotalPot(), symbol))
}

func listEmbed(title string, list []wager.Wager, symbol, empty string) *discordgo.MessageEmbed {
	if len(list) == 0 {
		return utils.InfoEmbed(title, empty)
	}
	lines := make([]string, len(list))
	for i := range list {
		lines[i] = wagerLine(&list[i], symbol)
	}
	return utils.GoldEmbed(title, strings.Join(lines, "\n"))
}

func leaderboardEmbed(list []wager.UserStats, symbol string) *discordgo.MessageEmbed {
	if len(list) == 0 {
		return utils.InfoEmbed("Leaderboard", "Nobody has settled a wager yet.")
	}
	medals := []string{"🥇", "🥈", "🥉"}
	var sb strings.Builder
	for i, st := range list {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		name := st.DisplayName
		if name == "" {
			name = utils.Mention(st.UserID)
		}
		fmt.Fprintf(&sb, "%s **%s** %s (%dW-%dL, %s%%)\n",
			rank, name, utils.Money(st.NetProfit, symbol), st.Wins, st.Losses, st.WinRate().StringFixed(1))
	}
	return utils.GoldEmbed("Leaderboard", sb.String())
}

// errorMessage turns a core error into something a user can act on.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, wager.ErrInvalidAmount):
		return "The amount must be a positive number."
	case errors.Is(err, wager.ErrInvalidCategory):
		return "Wager type must be game, prop or future."
	case errors.Is(err, wager.ErrInvalidSide), errors.Is(err, wager.ErrInvalidChoice):
		return "That isn't a valid option."
	case errors.Is(err, wager.ErrSideTaken):
		return "That side has already been taken."
	case errors.Is(err, wager.ErrSelfWager):
		return "You can't take both sides of a wager."
	case errors.Is(err, wager.ErrNotActive):
		return "This wager isn't active, so it can't be settled."
	case errors.Is(err, wager.ErrNotPending):
		return "This wager is no longer open."
	case errors.Is(err, wager.ErrUnauthorized):
		return "Only the two players in this wager can do that."
	case errors.Is(err, wager.ErrDuplicateRequest):
		return "There is already an open request for this wager. Confirm it or wait for it to expire."
	case errors.Is(err, wager.ErrNotFound):
		return "Wager or request not found. It may have expired or already been settled."
	}
	return "Something went wrong. Please try again."
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// displayName prefers the server nickname, then the global name.
func displayName(u *discordgo.User, m *discordgo.Member) string {
	if m != nil && m.Nick != "" {
		return m.Nick
	}
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// oddsCorrections lists the odds inputs that were replaced with even money.
func oddsCorrections(w *wager.Wager, oddsA, oddsB string) []string {
	var out []string
	for _, c := range []struct {
		input string
		side  wager.SideInfo
	}{
		{oddsA, w.SideA},
		{oddsB, w.SideB},
	} {
		if odds.IsValid(c.input) {
			continue
		}
		out = append(out, fmt.Sprintf("**%s**: `%s` is not valid odds, using %s",
			c.side.Description, c.input, odds.Display(c.side.Odds)))
	}
	return out
}
