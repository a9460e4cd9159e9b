package bot

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/MrSnakeDoc/madeline/internal/domain"
)

// Command paths, as routed.
const (
	CmdWiki           = "samp wiki"
	CmdQuery          = "samp query"
	CmdBookmarkAdd    = "samp bookmark add"
	CmdBookmarkEdit   = "samp bookmark edit"
	CmdBookmarkRemove = "samp bookmark remove"
	CmdBookmarkInfo   = "samp bookmark info"
)

const (
	ipDescription   = "Please enter the Server IP (only support public ip address or domains!)"
	portDescription = "Please enter Server Port (optional, default port is 7777)"
)

func addressOptions(required, autocomplete bool) []*discordgo.ApplicationCommandOption {
	minPort := 1.0
	return []*discordgo.ApplicationCommandOption{
		{
			Type:         discordgo.ApplicationCommandOptionString,
			Name:         "ip",
			Description:  ipDescription,
			Required:     required,
			Autocomplete: autocomplete,
			MaxLength:    253,
		},
		{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "port",
			Description: portDescription,
			MinValue:    &minPort,
			MaxValue:    domain.MaxPort,
		},
	}
}

// Commands returns the application commands the bot owns.
func Commands() []*discordgo.ApplicationCommand {
	dm := false
	return []*discordgo.ApplicationCommand{
		{
			Name:         "samp",
			Description:  "All SA-MP Commands",
			DMPermission: &dm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "wiki",
					Description: "Returns an article from open.mp wiki.",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "query",
							Description: "The wiki term to search",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "query",
					Description: "Query your favorite SA-MP server",
					Options:     addressOptions(false, true),
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
					Name:        "bookmark",
					Description: "Manage your guild SA-MP server bookmark",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "add",
							Description: "Add your server to the bookmark",
							Options:     addressOptions(true, false),
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "edit",
							Description: "Edit your SA-MP server's bookmark",
							Options:     addressOptions(true, false),
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "remove",
							Description: "Remove your server's bookmark",
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "info",
							Description: "Show your server's bookmark",
						},
					},
				},
			},
		},
	}
}

// CommandRegistrar is the part of *discordgo.Session used to publish commands.
type CommandRegistrar interface {
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// CommandIndex remembers registered command IDs so answers can link
// to a command.
type CommandIndex struct {
	mu  sync.RWMutex
	ids map[string]string // root command name -> ID
}

func NewCommandIndex() *CommandIndex {
	return &CommandIndex{ids: make(map[string]string)}
}

// Register replaces every command of appID (in guildID, or globally when
// empty) with Commands(). Commands not in the list are removed.
func Register(r CommandRegistrar, appID, guildID string, idx *CommandIndex) ([]*discordgo.ApplicationCommand, error) {
	created, err := r.ApplicationCommandBulkOverwrite(appID, guildID, Commands())
	if err != nil {
		return nil, fmt.Errorf("failed to register commands: %w", err)
	}
	if idx != nil {
		idx.set(created)
	}
	return created, nil
}

func (idx *CommandIndex) set(cmds []*discordgo.ApplicationCommand) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, c := range cmds {
		idx.ids[c.Name] = c.ID
	}
}

// Mention renders a clickable command mention for path, falling back
// to plain text until the command is registered.
func (idx *CommandIndex) Mention(path string) string {
	root, _, _ := strings.Cut(path, " ")
	if idx != nil {
		idx.mu.RLock()
		id := idx.ids[root]
		idx.mu.RUnlock()
		if id != "" {
			return "</" + path + ":" + id + ">"
		}
	}
	return "`/" + path + "`"
}
