// Package bot is the Discord command surface: command definitions, the
// interaction router and its middleware, and the /samp handlers.
package bot

import (
	"context"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/MrSnakeDoc/madeline/internal/logger"
)

// Responder is the part of *discordgo.Session the bot answers through.
type Responder interface {
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, edit *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Event is one interaction on its way through middleware and handler.
type Event struct {
	Ctx         context.Context
	Interaction *discordgo.Interaction
	// Command is the full command path, ex: "samp bookmark add".
	Command string
	Log     logger.Logger

	resp     Responder
	options  []*discordgo.ApplicationCommandInteractionDataOption
	deferred bool
	answered bool
}

func newEvent(ctx context.Context, resp Responder, i *discordgo.Interaction, log logger.Logger) *Event {
	return &Event{Ctx: ctx, Interaction: i, Log: log.With(logger.String("interaction_id", i.ID)), resp: resp}
}

// User returns the invoking user, in a guild or in DMs.
func (e *Event) User() *discordgo.User {
	if e.Interaction.Member != nil && e.Interaction.Member.User != nil {
		return e.Interaction.Member.User
	}
	return e.Interaction.User
}

// UserID returns the invoking user's snowflake, or "".
func (e *Event) UserID() string {
	if u := e.User(); u != nil {
		return u.ID
	}
	return ""
}

// AuthorID is UserID as an integer, 0 when unknown.
func (e *Event) AuthorID() int64 { return snowflake(e.UserID()) }

// GuildID returns the guild as an integer, 0 in DMs.
func (e *Event) GuildID() int64 { return snowflake(e.Interaction.GuildID) }

func snowflake(id string) int64 {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (e *Event) option(name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range e.options {
		if opt.Name == name {
			return opt
		}
	}
	return nil
}

// String returns a string option, "" when absent.
func (e *Event) String(name string) string {
	if opt := e.option(name); opt != nil {
		if s, ok := opt.Value.(string); ok {
			return s
		}
	}
	return ""
}

// Int returns an integer option, 0 when absent.
func (e *Event) Int(name string) int {
	if opt := e.option(name); opt != nil {
		switch v := opt.Value.(type) {
		case float64:
			return int(v)
		case int64:
			return int(v)
		case int:
			return v
		}
	}
	return 0
}

// Focused returns the option being typed in an autocomplete event.
func (e *Event) Focused() *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range e.options {
		if opt.Focused {
			return opt
		}
	}
	return nil
}

// CustomID returns the component custom ID of a button event.
func (e *Event) CustomID() string {
	if e.Interaction.Type != discordgo.InteractionMessageComponent {
		return ""
	}
	return e.Interaction.MessageComponentData().CustomID
}

// Answered reports whether a response was already sent.
func (e *Event) Answered() bool { return e.answered }

// Defer acknowledges the command; the answer follows through Send.
func (e *Event) Defer() error {
	if e.answered {
		return nil
	}
	err := e.resp.InteractionRespond(e.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		return err
	}
	e.deferred, e.answered = true, true
	return nil
}

// Send posts embeds and components as the command answer.
func (e *Event) Send(embeds []*discordgo.MessageEmbed, components []discordgo.MessageComponent) error {
	if e.deferred {
		if components == nil {
			components = []discordgo.MessageComponent{}
		}
		_, err := e.resp.InteractionResponseEdit(e.Interaction, &discordgo.WebhookEdit{
			Embeds:     &embeds,
			Components: &components,
		})
		return err
	}
	err := e.resp.InteractionRespond(e.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     embeds,
			Components: components,
		},
	})
	if err == nil {
		e.answered = true
	}
	return err
}

// Deny answers with an error notice, visible only to the member when
// the command has not been deferred yet.
func (e *Event) Deny(msg string) error {
	embeds := []*discordgo.MessageEmbed{errorEmbed(msg)}
	if e.deferred {
		return e.Send(embeds, nil)
	}
	err := e.resp.InteractionRespond(e.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: embeds,
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err == nil {
		e.answered = true
	}
	return err
}

// Update replaces the message a component belongs to.
func (e *Event) Update(embeds []*discordgo.MessageEmbed, components []discordgo.MessageComponent) error {
	err := e.resp.InteractionRespond(e.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     embeds,
			Components: components,
		},
	})
	if err == nil {
		e.answered = true
	}
	return err
}

// Choices answers an autocomplete event.
func (e *Event) Choices(choices []*discordgo.ApplicationCommandOptionChoice) error {
	err := e.resp.InteractionRespond(e.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
	if err == nil {
		e.answered = true
	}
	return err
}
