package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrSnakeDoc/madeline/internal/logger"
)

// Standard cooldowns, one use per interval per member.
const (
	WikiCooldown     = 5 * time.Second
	QueryCooldown    = 10 * time.Second
	BookmarkCooldown = 2 * time.Second
)

// Router dispatches interactions to handlers by command path.
type Router struct {
	log          logger.Logger
	mws          []Middleware
	commands     map[string]HandlerFunc
	autocomplete map[string]HandlerFunc // "path/option"
	components   map[string]HandlerFunc // custom ID prefix
}

func NewRouter(log logger.Logger) *Router {
	return &Router{
		log:          log,
		commands:     make(map[string]HandlerFunc),
		autocomplete: make(map[string]HandlerFunc),
		components:   make(map[string]HandlerFunc),
	}
}

// Use appends middleware run around every command and component.
func (r *Router) Use(mws ...Middleware) { r.mws = append(r.mws, mws...) }

// Command routes path through mws to h.
func (r *Router) Command(path string, h HandlerFunc, mws ...Middleware) {
	r.commands[path] = Chain(h, mws...)
}

// Autocomplete routes suggestions for option of path.
func (r *Router) Autocomplete(path, option string, h HandlerFunc) {
	r.autocomplete[path+"/"+option] = h
}

// Component routes button presses whose custom ID starts with prefix.
func (r *Router) Component(prefix string, h HandlerFunc) {
	r.components[prefix] = h
}

// HandleInteraction is the discordgo event handler.
func (r *Router) HandleInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	// Command handlers carry no deadline; the clients bound their own I/O.
	_ = r.Dispatch(context.Background(), s, ic.Interaction)
}

// Dispatch routes one interaction.
func (r *Router) Dispatch(ctx context.Context, resp Responder, i *discordgo.Interaction) error {
	e := newEvent(ctx, resp, i, r.log)

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		e.Command, e.options = commandPath(i.ApplicationCommandData())
		h, ok := r.commands[e.Command]
		if !ok {
			r.log.Warn("unknown command", logger.String("command", e.Command))
			return e.Deny("Unknown command.")
		}
		return Chain(h, r.mws...)(e)

	case discordgo.InteractionApplicationCommandAutocomplete:
		e.Command, e.options = commandPath(i.ApplicationCommandData())
		focused := e.Focused()
		if focused == nil {
			return e.Choices(nil)
		}
		h, ok := r.autocomplete[e.Command+"/"+focused.Name]
		if !ok {
			return e.Choices(nil)
		}
		return Chain(h, Recover())(e)

	case discordgo.InteractionMessageComponent:
		id := e.CustomID()
		e.Command = "component " + id
		for prefix, h := range r.components {
			if strings.HasPrefix(id, prefix) {
				return Chain(h, r.mws...)(e)
			}
		}
		r.log.Debug("unrouted component", logger.String("custom_id", id))
		return e.Deny("Unknown button.")
	}

	return fmt.Errorf("unsupported interaction type %v", i.Type)
}

// commandPath flattens sub-command groups into "root group sub" and
// returns the options of the leaf.
func commandPath(data discordgo.ApplicationCommandInteractionData) (string, []*discordgo.ApplicationCommandInteractionDataOption) {
	path := data.Name
	opts := data.Options
	for len(opts) == 1 &&
		(opts[0].Type == discordgo.ApplicationCommandOptionSubCommand ||
			opts[0].Type == discordgo.ApplicationCommandOptionSubCommandGroup) {
		path += " " + opts[0].Name
		opts = opts[0].Options
	}
	return path, opts
}

// Cooldowns holds the per-command limiters so they can be swept.
// Each command has its own, so one command never blocks another.
type Cooldowns struct {
	Wiki           *Cooldown
	Query          *Cooldown
	BookmarkAdd    *Cooldown
	BookmarkEdit   *Cooldown
	BookmarkRemove *Cooldown
	BookmarkInfo   *Cooldown
}

func NewCooldowns() *Cooldowns {
	return &Cooldowns{
		Wiki:           NewCooldown("wiki", 1, WikiCooldown),
		Query:          NewCooldown("query", 1, QueryCooldown),
		BookmarkAdd:    NewCooldown("bookmark add", 1, BookmarkCooldown),
		BookmarkEdit:   NewCooldown("bookmark edit", 1, BookmarkCooldown),
		BookmarkRemove: NewCooldown("bookmark remove", 1, BookmarkCooldown),
		BookmarkInfo:   NewCooldown("bookmark info", 1, BookmarkCooldown),
	}
}

// All returns every limiter.
func (c *Cooldowns) All() []*Cooldown {
	return []*Cooldown{c.Wiki, c.Query, c.BookmarkAdd, c.BookmarkEdit, c.BookmarkRemove, c.BookmarkInfo}
}

// Routes registers the /samp surface on r.
func Routes(r *Router, h *Handlers, cd *Cooldowns, now func() time.Time) {
	r.Use(Recover(), Log())

	manage := RequirePermission(discordgo.PermissionManageMessages, "Manage Messages")

	r.Command(CmdWiki, h.Wiki, WithCooldown(cd.Wiki, now))
	r.Command(CmdQuery, h.Query, GuildOnly(), WithCooldown(cd.Query, now))
	r.Command(CmdBookmarkAdd, h.BookmarkAdd, GuildOnly(), manage, WithCooldown(cd.BookmarkAdd, now))
	r.Command(CmdBookmarkEdit, h.BookmarkEdit, GuildOnly(), manage, WithCooldown(cd.BookmarkEdit, now))
	r.Command(CmdBookmarkRemove, h.BookmarkRemove, GuildOnly(), manage, WithCooldown(cd.BookmarkRemove, now))
	r.Command(CmdBookmarkInfo, h.BookmarkInfo, GuildOnly(), WithCooldown(cd.BookmarkInfo, now))

	r.Autocomplete(CmdQuery, "ip", h.AutocompleteIP)
	r.Component(PagePrefix, h.pages.HandleComponent)
}
