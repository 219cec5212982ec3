// Package discord adapts the bot's Discord surface: publishing the
// leaderboard embed and handling the slash commands.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/varrock/clogboard/internal/app"
	"github.com/varrock/clogboard/pkg/logger"
)

// Messenger publishes embeds through a Discord session.
type Messenger struct {
	session *discordgo.Session
	log     logger.Logger
}

// NewMessenger wraps an open session.
func NewMessenger(session *discordgo.Session, opts ...MessengerOption) *Messenger {
	m := &Messenger{session: session}

	for _, opt := range opts {
		opt(m)
	}

	if m.log == nil {
		m.log = logger.Get().Named("discord")
	}
	return m
}

// SendEmbed posts a new embed and returns the created message id.
func (m *Messenger) SendEmbed(ctx context.Context, channelID string, embed *app.Embed) (string, error) {
	msg, err := m.session.ChannelMessageSendEmbed(channelID, toMessageEmbed(embed), discordgo.WithContext(ctx))
	if err != nil {
		return "", mapError(err)
	}
	return msg.ID, nil
}

// EditEmbed replaces the embed on an existing message.
func (m *Messenger) EditEmbed(ctx context.Context, channelID, messageID string, embed *app.Embed) error {
	_, err := m.session.ChannelMessageEditEmbed(channelID, messageID, toMessageEmbed(embed), discordgo.WithContext(ctx))
	if err != nil {
		return mapError(err)
	}
	return nil
}

func toMessageEmbed(e *app.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if e.FooterText != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.FooterText}
	}
	if !e.Timestamp.IsZero() {
		out.Timestamp = e.Timestamp.Format("2006-01-02T15:04:05Z07:00")
	}
	return out
}

// mapError folds Discord REST failures onto the app sentinels the
// publisher branches on.
func mapError(err error) error {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return err
	}

	if rest.Message != nil {
		switch rest.Message.Code {
		case discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel:
			return fmt.Errorf("%w: %s", app.ErrArtifactNotFound, rest.Message.Message)
		case discordgo.ErrCodeMissingAccess, discordgo.ErrCodeMissingPermissions:
			return fmt.Errorf("%w: %s", app.ErrForbidden, rest.Message.Message)
		}
	}
	if rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", app.ErrArtifactNotFound, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", app.ErrForbidden, err)
		}
	}
	return err
}
