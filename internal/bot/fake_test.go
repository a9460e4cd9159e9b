package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrSnakeDoc/madeline/internal/domain"
	"github.com/MrSnakeDoc/madeline/internal/domain/domaintest"
	"github.com/MrSnakeDoc/madeline/internal/index"
	"github.com/MrSnakeDoc/madeline/internal/logger"
	"github.com/MrSnakeDoc/madeline/internal/samp"
	"github.com/MrSnakeDoc/madeline/internal/wiki"
)

// fakeResponder records what the bot sends.
type fakeResponder struct {
	mu        sync.Mutex
	responses []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit
	err       error
}

func (f *fakeResponder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeResponder) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.edits = append(f.edits, edit)
	return &discordgo.Message{}, nil
}

// lastEmbeds returns the embeds of the most recent answer, whichever
// way it was sent.
func (f *fakeResponder) lastEmbeds() []*discordgo.MessageEmbed {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) > 0 && f.edits[len(f.edits)-1].Embeds != nil {
		return *f.edits[len(f.edits)-1].Embeds
	}
	for i := len(f.responses) - 1; i >= 0; i-- {
		if d := f.responses[i].Data; d != nil && d.Embeds != nil {
			return d.Embeds
		}
	}
	return nil
}

func (f *fakeResponder) lastDescription() string {
	embeds := f.lastEmbeds()
	if len(embeds) == 0 {
		return ""
	}
	return embeds[0].Description
}

func (f *fakeResponder) lastResponse() *discordgo.InteractionResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		return nil
	}
	return f.responses[len(f.responses)-1]
}

type fakeQuerier struct {
	status *samp.ServerStatus
	err    error
	host   string
	port   int
}

func (q *fakeQuerier) Query(_ context.Context, host string, port int) (*samp.ServerStatus, error) {
	q.host, q.port = host, port
	if q.err != nil {
		return nil, q.err
	}
	st := *q.status
	st.Host, st.Port = host, port
	return &st, nil
}

type fakeSearcher struct {
	articles []wiki.Article
	err      error
	query    string
}

func (s *fakeSearcher) Search(_ context.Context, query string) ([]wiki.Article, error) {
	s.query = query
	return s.articles, s.err
}

// failingRepo reports every call as a storage outage.
type failingRepo struct{ *index.MemoryIndex }

var errDown = errors.New("connection refused")

func (failingRepo) FindBookmark(context.Context, int64) (*domain.ServerBookmark, error) {
	return nil, errors.Join(domain.ErrStorageUnavailable, errDown)
}

func (failingRepo) InsertBookmark(context.Context, *domain.ServerBookmark) error {
	return errors.Join(domain.ErrStorageUnavailable, errDown)
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	router  *Router
	store   *domain.BookmarkStore
	clock   *domaintest.Clock
	querier *fakeQuerier
	search  *fakeSearcher
	pages   *Paginator
	resp    *fakeResponder
}

func newHarness(repo domain.BookmarkRepository) *harness {
	if repo == nil {
		repo = index.NewMemoryIndex()
	}
	clock := domaintest.NewClock(testNow)
	store := domain.NewBookmarkStore(repo, clock.Now)
	querier := &fakeQuerier{status: &samp.ServerStatus{Hostname: "Test Server", Players: 1, MaxPlayers: 50}}
	search := &fakeSearcher{}
	pages := NewPaginator(30*time.Second, clock.Now, logger.Nop())
	h := NewHandlers(store, querier, search, pages, NewCommandIndex(), clock.Now)

	r := NewRouter(logger.Nop())
	Routes(r, h, NewCooldowns(), clock.Now)

	return &harness{router: r, store: store, clock: clock, querier: querier, search: search, pages: pages, resp: &fakeResponder{}}
}

const managePerms = discordgo.PermissionManageMessages

// command builds a slash command interaction for path ("samp bookmark add").
func command(path string, guildID, userID string, perms int64, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return commandInteraction(discordgo.InteractionApplicationCommand, path, guildID, userID, perms, opts...)
}

func commandInteraction(typ discordgo.InteractionType, path, guildID, userID string, perms int64, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	parts := splitPath(path)
	leaf := opts
	for i := len(parts) - 1; i >= 1; i-- {
		optType := discordgo.ApplicationCommandOptionSubCommand
		if i < len(parts)-1 {
			optType = discordgo.ApplicationCommandOptionSubCommandGroup
		}
		leaf = []*discordgo.ApplicationCommandInteractionDataOption{{Name: parts[i], Type: optType, Options: leaf}}
	}
	return &discordgo.Interaction{
		ID:      "interaction-" + path + "-" + userID,
		Type:    typ,
		GuildID: guildID,
		Member: &discordgo.Member{
			User:        &discordgo.User{ID: userID, Username: "member" + userID},
			Permissions: perms,
		},
		Data: discordgo.ApplicationCommandInteractionData{Name: parts[0], Options: leaf},
	}
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == ' ' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	return parts
}

func strOpt(name, v string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: v}
}

func intOpt(name string, v int) *discordgo.ApplicationCommandInteractionDataOption {
	// JSON numbers arrive as float64.
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(v)}
}

func button(customID, userID string) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:      "button-" + customID + "-" + userID,
		Type:    discordgo.InteractionMessageComponent,
		GuildID: "42",
		Member:  &discordgo.Member{User: &discordgo.User{ID: userID}},
		Data:    discordgo.MessageComponentInteractionData{CustomID: customID, ComponentType: discordgo.ButtonComponent},
	}
}
