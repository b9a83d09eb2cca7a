package gateway

import "github.com/bwmarrin/discordgo"

// Slash command names.
const (
	CommandOpenerPanel  = "delivery-panel"
	CommandRescuePanel  = "rescue-panel"
	CommandRankingStart = "ranking-start"
	CommandRankingStop  = "ranking-stop"
)

// Modal IDs and their input IDs.
const (
	modalDeliver  = "deliver_form"
	inputItem     = "item"
	inputQuantity = "quantity"
	modalRescue   = "rescue_form"
	inputDetails  = "details"
)

const optionChannel = "channel"

// Commands are the guild slash commands the bot registers on start.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{Name: CommandOpenerPanel, Description: "Post the delivery ticket panel in this channel"},
		{Name: CommandRescuePanel, Description: "Post the rescue request panel in this channel"},
		{
			Name:        CommandRankingStart,
			Description: "Publish the delivery ranking and keep it updated",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         optionChannel,
				Description:  "Channel for the ranking (defaults to this one)",
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
			}},
		},
		{Name: CommandRankingStop, Description: "Stop updating the delivery ranking"},
	}
}

func deliverModal() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: modalDeliver,
		Title:    "Register delivery",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{discordgo.TextInput{
				CustomID:    inputItem,
				Label:       "Item delivered",
				Style:       discordgo.TextInputShort,
				Placeholder: "e.g. Wheat, Iron, Wood",
				Required:    true,
				MaxLength:   100,
			}}},
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{discordgo.TextInput{
				CustomID:    inputQuantity,
				Label:       "Quantity",
				Style:       discordgo.TextInputShort,
				Placeholder: "e.g. 1500",
				Required:    true,
				MaxLength:   12,
			}}},
		},
	}
}

func rescueModal() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: modalRescue,
		Title:    "Rescue request",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{discordgo.TextInput{
				CustomID:    inputDetails,
				Label:       "Location and details",
				Style:       discordgo.TextInputParagraph,
				Placeholder: "Where are you and what happened?",
				Required:    true,
				MaxLength:   1000,
			}}},
		},
	}
}

// modalValues collects text input values keyed by input ID.
func modalValues(components []discordgo.MessageComponent) map[string]string {
	values := map[string]string{}
	var walk func([]discordgo.MessageComponent)
	walk = func(items []discordgo.MessageComponent) {
		for _, c := range items {
			switch v := c.(type) {
			case *discordgo.ActionsRow:
				walk(v.Components)
			case discordgo.ActionsRow:
				walk(v.Components)
			case *discordgo.TextInput:
				values[v.CustomID] = v.Value
			case discordgo.TextInput:
				values[v.CustomID] = v.Value
			}
		}
	}
	walk(components)
	return values
}
