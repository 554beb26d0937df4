package infrastructure

import (
	"context"
	"fmt"

	"predictor/events"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const (
	colorRevealed   = 0x2ECC71
	colorCorrection = 0xE67E22
	colorNew        = 0x3498DB
)

// ChannelSender is the part of a Discord session the announcer needs
type ChannelSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordAnnouncer posts prediction lifecycle notices to a Discord channel
type DiscordAnnouncer struct {
	sender    ChannelSender
	channelID string
}

// NewDiscordSession opens a bot session used only for sending messages
func NewDiscordSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("failed to open Discord connection: %w", err)
	}
	return session, nil
}

// NewDiscordAnnouncer creates a new announcer posting to channelID
func NewDiscordAnnouncer(sender ChannelSender, channelID string) *DiscordAnnouncer {
	return &DiscordAnnouncer{
		sender:    sender,
		channelID: channelID,
	}
}

// Attach subscribes the announcer to the events it posts about
func (a *DiscordAnnouncer) Attach(bus *events.Bus) {
	bus.Subscribe(events.EventTypePredictionCreated, a.handle)
	bus.Subscribe(events.EventTypePredictionRevealed, a.handle)
}

func (a *DiscordAnnouncer) handle(ctx context.Context, event events.Event) {
	var embed *discordgo.MessageEmbed
	switch e := event.(type) {
	case events.PredictionCreatedEvent:
		embed = createdEmbed(e)
	case events.PredictionRevealedEvent:
		embed = revealedEmbed(e)
	default:
		return
	}

	if _, err := a.sender.ChannelMessageSendEmbed(a.channelID, embed); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"channelID": a.channelID,
		}).WithError(err).Error("Failed to post Discord announcement")
	}
}

func createdEmbed(e events.PredictionCreatedEvent) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "New prediction",
		Description: e.Title,
		Color:       colorNew,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Prediction #%d", e.PredictionID)},
	}
	if e.Category != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Category", Value: e.Category, Inline: true})
	}
	return embed
}

func revealedEmbed(e events.PredictionRevealedEvent) *discordgo.MessageEmbed {
	title := "Prediction revealed"
	color := colorRevealed
	if e.Correction {
		title = "Prediction result corrected"
		color = colorCorrection
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Correct answer", Value: e.CorrectOption, Inline: true},
		{Name: "Bettors settled", Value: fmt.Sprintf("%d", e.SettledUsers), Inline: true},
	}
	if e.OrphanedBets > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Unsettled bets",
			Value:  fmt.Sprintf("%d bets were on removed options", e.OrphanedBets),
			Inline: false,
		})
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: e.Title,
		Color:       color,
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Prediction #%d", e.PredictionID)},
	}
}
