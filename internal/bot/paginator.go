package bot

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrSnakeDoc/madeline/internal/logger"
)

// PagePrefix starts the custom ID of every paginator button.
const PagePrefix = "page:"

const (
	pageFirst = "first"
	pagePrev  = "prev"
	pageNext  = "next"
	pageLast  = "last"
)

// Paginator keeps multi-page answers alive for a while after their last
// use. Only the member that ran the command may turn pages.
type Paginator struct {
	timeout time.Duration
	now     func() time.Time
	log     logger.Logger

	mu       sync.Mutex
	sessions map[string]*pageSession // interaction ID -> session
}

type pageSession struct {
	ownerID     string
	pages       []*discordgo.MessageEmbed
	index       int
	expires     time.Time
	resp        Responder
	interaction *discordgo.Interaction
}

// NewPaginator creates a paginator whose sessions expire timeout after
// their last interaction.
func NewPaginator(timeout time.Duration, now func() time.Time, log logger.Logger) *Paginator {
	if now == nil {
		now = time.Now
	}
	return &Paginator{
		timeout:  timeout,
		now:      now,
		log:      log,
		sessions: make(map[string]*pageSession),
	}
}

// Send answers e with pages. A single page is sent without buttons.
func (p *Paginator) Send(e *Event, pages []*discordgo.MessageEmbed) error {
	if len(pages) <= 1 {
		return e.Send(pages, nil)
	}

	id := e.Interaction.ID
	s := &pageSession{
		ownerID:     e.UserID(),
		pages:       pages,
		expires:     p.now().Add(p.timeout),
		resp:        e.resp,
		interaction: e.Interaction,
	}

	p.mu.Lock()
	p.sessions[id] = s
	p.mu.Unlock()

	if err := e.Send(pages[:1], pageButtons(id, 0, len(pages), false)); err != nil {
		p.mu.Lock()
		delete(p.sessions, id)
		p.mu.Unlock()
		return err
	}
	return nil
}

// HandleComponent turns a page for a button press.
func (p *Paginator) HandleComponent(e *Event) error {
	id, action, ok := parsePageID(e.CustomID())
	if !ok {
		return e.Deny("Unknown button.")
	}
	now := p.now()

	p.mu.Lock()
	s := p.sessions[id]
	if s != nil && now.After(s.expires) {
		delete(p.sessions, id)
		s = nil
	}
	if s == nil {
		p.mu.Unlock()
		return e.Deny("This menu has expired. Run the command again.")
	}
	if s.ownerID != e.UserID() {
		p.mu.Unlock()
		return e.Deny("Only the member who ran this command can change pages.")
	}

	last := len(s.pages) - 1
	switch action {
	case pageFirst:
		s.index = 0
	case pagePrev:
		s.index = max(s.index-1, 0)
	case pageNext:
		s.index = min(s.index+1, last)
	case pageLast:
		s.index = last
	}
	s.expires = now.Add(p.timeout)
	page, index, total := s.pages[s.index], s.index, len(s.pages)
	p.mu.Unlock()

	return e.Update([]*discordgo.MessageEmbed{page}, pageButtons(id, index, total, false))
}

// Sweep drops sessions past their expiry and disables their buttons.
// It returns how many were dropped.
func (p *Paginator) Sweep(now time.Time) int {
	p.mu.Lock()
	expired := make(map[string]*pageSession)
	for id, s := range p.sessions {
		if now.After(s.expires) {
			expired[id] = s
			delete(p.sessions, id)
		}
	}
	p.mu.Unlock()

	for id, s := range expired {
		components := pageButtons(id, s.index, len(s.pages), true)
		if _, err := s.resp.InteractionResponseEdit(s.interaction, &discordgo.WebhookEdit{Components: &components}); err != nil {
			p.log.Debug("failed to disable expired paginator", logger.String("session", id), logger.Error(err))
		}
	}
	return len(expired)
}

// Len returns the number of live sessions.
func (p *Paginator) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

func parsePageID(customID string) (id, action string, ok bool) {
	rest, found := strings.CutPrefix(customID, PagePrefix)
	if !found {
		return "", "", false
	}
	id, action, found = strings.Cut(rest, ":")
	if !found || id == "" {
		return "", "", false
	}
	switch action {
	case pageFirst, pagePrev, pageNext, pageLast:
		return id, action, true
	}
	return "", "", false
}

func pageButtons(id string, index, total int, disabled bool) []discordgo.MessageComponent {
	atStart, atEnd := index == 0, index == total-1
	button := func(action, label string, off bool) discordgo.Button {
		return discordgo.Button{
			Label:    label,
			Style:    discordgo.SecondaryButton,
			CustomID: PagePrefix + id + ":" + action,
			Disabled: disabled || off,
		}
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			button(pageFirst, "⏮", atStart),
			button(pagePrev, "◀", atStart),
			discordgo.Button{
				Label:    strconv.Itoa(index+1) + "/" + strconv.Itoa(total),
				Style:    discordgo.PrimaryButton,
				CustomID: PagePrefix + id + ":counter",
				Disabled: true,
			},
			button(pageNext, "▶", atEnd),
			button(pageLast, "⏭", atEnd),
		}},
	}
}
