package commands

import "github.com/bwmarrin/discordgo"

var (
	minAmount  float64 = 0.01
	minWagerID float64 = 1
)

var (
	categoryOpt = []*discordgo.ApplicationCommandOptionChoice{
		{Name: "Game", Value: "game"},
		{Name: "Prop", Value: "prop"},
		{Name: "Future", Value: "future"},
	}
	sideOpt = []*discordgo.ApplicationCommandOptionChoice{
		{Name: "Side A", Value: "A"},
		{Name: "Side B", Value: "B"},
	}
	choiceOpt = []*discordgo.ApplicationCommandOptionChoice{
		{Name: "Side A wins", Value: "A"},
		{Name: "Side B wins", Value: "B"},
		{Name: "Cancel", Value: "cancel"},
	}
)

func wagerIDOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "wager_id",
		Description: "The wager number",
		Required:    true,
		MinValue:    &minWagerID,
	}
}

func stringOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

var SlashCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "help",
		Description: "Show all commands and how wagers work",
	},
	{
		Name:        "wager",
		Description: "Create and settle wagers",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "create",
				Description: "Open a new wager for two players",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "type",
						Description: "Kind of wager",
						Required:    true,
						Choices:     categoryOpt,
					},
					{
						Type:        discordgo.ApplicationCommandOptionNumber,
						Name:        "amount",
						Description: "Base stake (the underdog side risks this much)",
						Required:    true,
						MinValue:    &minAmount,
					},
					stringOption("description", "What the wager is about", true),
					stringOption("side_a", "Label for side A (away team for games)", false),
					stringOption("side_b", "Label for side B (home team for games)", false),
					stringOption("odds_a", "Odds for side A, American (+150) or decimal (2.5)", false),
					stringOption("odds_b", "Odds for side B, American (-200) or decimal (1.5)", false),
					stringOption("home_team", "Home team (games)", false),
					stringOption("away_team", "Away team (games)", false),
					stringOption("player", "Player name (props)", false),
					stringOption("details", "Anything else worth writing down", false),
				},
			},
			{
				Name:        "vote",
				Description: "Vote on the outcome of an active wager",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					wagerIDOption(),
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "choice",
						Description: "Who won, or cancel",
						Required:    true,
						Choices:     choiceOpt,
					},
				},
			},
			{
				Name:        "resolve",
				Description: "Propose a winner; the other player must confirm",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					wagerIDOption(),
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "winning_side",
						Description: "The side that won",
						Required:    true,
						Choices:     sideOpt,
					},
				},
			},
			{
				Name:        "cancel",
				Description: "Cancel an open wager, or propose cancelling an active one",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     []*discordgo.ApplicationCommandOption{wagerIDOption()},
			},
			{
				Name:        "confirm",
				Description: "Confirm a pending resolution or cancellation request",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					stringOption("request_id", "The request id shown on the proposal", true),
				},
			},
		},
	},
	{
		Name:        "wagers",
		Description: "List wagers",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "active",
				Description: "Wagers that are open or in progress",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "history",
				Description: "Your past wagers",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
		},
	},
	{
		Name:        "stats",
		Description: "Show your or someone else's wager stats",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "The user to check",
				Required:    false,
			},
		},
	},
	{
		Name:        "leaderboard",
		Description: "Top players by net profit",
	},
	{
		Name:        "webhook",
		Description: "Get notified on your own endpoint when your wagers settle",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "set",
				Description: "Set your webhook URL",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					stringOption("url", "The URL that will receive POST requests", true),
				},
			},
			{
				Name:        "test",
				Description: "Send a test payload to your webhook",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "delete",
				Description: "Remove your webhook",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
		},
	},
}
