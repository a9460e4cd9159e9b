package bot

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrSnakeDoc/madeline/internal/domain"
	"github.com/MrSnakeDoc/madeline/internal/logger"
	"github.com/MrSnakeDoc/madeline/internal/samp"
	"github.com/MrSnakeDoc/madeline/internal/wiki"
)

// Member-facing answers.
const (
	msgAlreadyExists  = "You already have a server in the list!"
	msgNotRegistered  = "Your server is not in our database yet, Please register it first!"
	msgAdded          = "Server added to the list!"
	msgUpdated        = "Your server has been updated!"
	msgRemoved        = "Your server has been removed from our database!"
	msgQueryFailed    = "Couldn't connect to the server, or there's an error in our end. Please Try again later!"
	msgInvalidAddress = "That doesn't look like a valid server address. Check the IP and port (1-65535)."
	msgWikiFailed     = "The open.mp wiki is not reachable right now. Please try again later!"
)

// maxChoices is the autocomplete limit Discord enforces.
const maxChoices = 25

// Handlers implements the /samp commands.
type Handlers struct {
	store    *domain.BookmarkStore
	querier  samp.Querier
	wiki     wiki.Searcher
	pages    *Paginator
	commands *CommandIndex
	now      func() time.Time
}

func NewHandlers(store *domain.BookmarkStore, querier samp.Querier, searcher wiki.Searcher, pages *Paginator, commands *CommandIndex, now func() time.Time) *Handlers {
	if now == nil {
		now = time.Now
	}
	return &Handlers{
		store:    store,
		querier:  querier,
		wiki:     searcher,
		pages:    pages,
		commands: commands,
		now:      now,
	}
}

// storeFailure answers a bookmark error: domain outcomes get their own
// message, anything else a generic failure.
func (h *Handlers) storeFailure(e *Event, err error, notFound string) error {
	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		return e.Deny(msgAlreadyExists)
	case errors.Is(err, domain.ErrNotFound):
		return e.Deny(notFound)
	case errors.Is(err, domain.ErrInvalidAddress):
		return e.Deny(msgInvalidAddress)
	}
	e.Log.Error("bookmark store failure", logger.String("command", e.Command), logger.Error(err))
	return e.Deny(msgInternalError)
}

func (h *Handlers) Wiki(e *Event) error {
	if err := e.Defer(); err != nil {
		return err
	}
	query := strings.TrimSpace(e.String("query"))

	articles, err := h.wiki.Search(e.Ctx, query)
	if err != nil {
		e.Log.Warn("wiki search failed", logger.String("query", query), logger.Error(err))
		return e.Deny(msgWikiFailed)
	}
	if len(articles) == 0 {
		return e.Send([]*discordgo.MessageEmbed{noWikiResultsEmbed(query, e.User(), h.now())}, nil)
	}
	return h.pages.Send(e, wikiEmbeds(articles, e.User(), h.now()))
}

func (h *Handlers) Query(e *Event) error {
	if err := e.Defer(); err != nil {
		return err
	}

	ip, port := strings.TrimSpace(e.String("ip")), e.Int("port")
	if ip == "" {
		b, err := h.store.Get(e.Ctx, e.GuildID())
		if errors.Is(err, domain.ErrNotFound) {
			return e.Deny("Cannot find server info in database. Please use " +
				h.commands.Mention(CmdBookmarkAdd) + " to add your server info to bookmark.")
		}
		if err != nil {
			return h.storeFailure(e, err, "")
		}
		ip, port = b.IP, b.Port
	}

	st, err := h.querier.Query(e.Ctx, ip, port)
	if err != nil {
		e.Log.Info("server query failed",
			logger.String("ip", ip), logger.Int("port", port), logger.Error(err))
		return e.Deny(msgQueryFailed)
	}
	return h.pages.Send(e, statusEmbeds(st, e.User(), h.now()))
}

func (h *Handlers) BookmarkAdd(e *Event) error {
	if err := e.Defer(); err != nil {
		return err
	}
	b, err := h.store.Create(e.Ctx, e.GuildID(), e.String("ip"), e.Int("port"), e.AuthorID())
	if err != nil {
		return h.storeFailure(e, err, msgNotRegistered)
	}
	e.Log.Info("bookmark added", logger.Int64("guild_id", b.GuildID), logger.String("full_ip", b.FullIP))
	return e.Send([]*discordgo.MessageEmbed{successEmbed(msgAdded)}, nil)
}

func (h *Handlers) BookmarkEdit(e *Event) error {
	if err := e.Defer(); err != nil {
		return err
	}
	b, err := h.store.Update(e.Ctx, e.GuildID(), e.String("ip"), e.Int("port"))
	if err != nil {
		return h.storeFailure(e, err, msgNotRegistered)
	}
	e.Log.Info("bookmark updated", logger.Int64("guild_id", b.GuildID), logger.String("full_ip", b.FullIP))
	return e.Send([]*discordgo.MessageEmbed{successEmbed(msgUpdated)}, nil)
}

func (h *Handlers) BookmarkRemove(e *Event) error {
	if err := e.Defer(); err != nil {
		return err
	}
	if err := h.store.Delete(e.Ctx, e.GuildID()); err != nil {
		return h.storeFailure(e, err, msgNotRegistered)
	}
	e.Log.Info("bookmark removed", logger.Int64("guild_id", e.GuildID()))
	return e.Send([]*discordgo.MessageEmbed{successEmbed(msgRemoved)}, nil)
}

func (h *Handlers) BookmarkInfo(e *Event) error {
	if err := e.Defer(); err != nil {
		return err
	}
	b, err := h.store.Get(e.Ctx, e.GuildID())
	if err != nil {
		return h.storeFailure(e, err, msgNotRegistered)
	}
	return e.Send([]*discordgo.MessageEmbed{bookmarkEmbed(b, e.User(), h.now())}, nil)
}

// AutocompleteIP suggests the guild's bookmarked addresses that start
// with what the member typed.
func (h *Handlers) AutocompleteIP(e *Event) error {
	typed := ""
	if opt := e.Focused(); opt != nil {
		if s, ok := opt.Value.(string); ok {
			typed = strings.ToLower(strings.TrimSpace(s))
		}
	}

	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, 1)
	if guildID := e.GuildID(); guildID != 0 {
		for ip, err := range h.store.ListByGuildPrefix(e.Ctx, guildID) {
			if err != nil {
				e.Log.Warn("autocomplete lookup failed", logger.Int64("guild_id", guildID), logger.Error(err))
				break
			}
			if !strings.HasPrefix(strings.ToLower(ip), typed) {
				continue
			}
			name := truncate(ip, 100)
			choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: name, Value: ip})
			if len(choices) == maxChoices {
				break
			}
		}
	}
	return e.Choices(choices)
}
