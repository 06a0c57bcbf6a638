// AngelaMos | 2026
// commands.go

package discord

import (
	"github.com/bwmarrin/discordgo"
)

var adminOnly = int64(discordgo.PermissionManageServer)

func intOption(name, description string, minValue float64, maxValue float64) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: description,
		Required:    true,
		MinValue:    &minValue,
		MaxValue:    maxValue,
	}
}

// Commands is the slash command set registered on the guild.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{Name: "balance", Description: "Show your point balance"},
		{Name: "daily", Description: "Claim your daily points"},
		{Name: "achievements", Description: "List the achievements you hold"},
		{Name: "leaderboard", Description: "Top members by balance"},
		{Name: "limits", Description: "Show your earning limits"},
		{
			Name:        "birthday",
			Description: "Set your birthday",
			Options: []*discordgo.ApplicationCommandOption{
				intOption("month", "Month (1-12)", 1, 12),
				intOption("day", "Day of month", 1, 31),
			},
		},
		{Name: "help", Description: "How the economy works"},
		{
			Name:                     "give",
			Description:              "Give points to a member",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to credit",
					Required:    true,
				},
				intOption("amount", "Points to give", 1, 1000000),
			},
		},
		{
			Name:                     "give_all",
			Description:              "Give points to every member",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				intOption("amount", "Points to give each member", 1, 1000000),
			},
		},
		{
			Name:                     "economy",
			Description:              "Enable or disable the economy",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "enable or disable",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "enable", Value: "enable"},
						{Name: "disable", Value: "disable"},
					},
				},
			},
		},
	}
}
