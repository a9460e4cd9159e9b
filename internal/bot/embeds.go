package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"

	"github.com/MrSnakeDoc/madeline/internal/domain"
	"github.com/MrSnakeDoc/madeline/internal/samp"
	"github.com/MrSnakeDoc/madeline/internal/wiki"
)

const (
	colorError   = 0xFF0000
	colorSuccess = 0x00FF00
	colorInfo    = 0x4B8BE4

	// Discord limits.
	maxFields      = 25
	maxDescription = 4096
	maxFieldValue  = 1024

	playersPerPage = 20
)

func errorEmbed(msg string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: "❌ " + msg, Color: colorError}
}

func successEmbed(msg string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: "✅ " + msg, Color: colorSuccess}
}

// stamp adds the requester footer and timestamp.
func stamp(embed *discordgo.MessageEmbed, author *discordgo.User, now time.Time) *discordgo.MessageEmbed {
	name, icon := "unknown", ""
	if author != nil {
		name, icon = author.Username, author.AvatarURL("")
	}
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text:    "Requested by " + name + " • Powered by open.mp API",
		IconURL: icon,
	}
	embed.Timestamp = now.UTC().Format(time.RFC3339)
	return embed
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func noWikiResultsEmbed(query string, author *discordgo.User, now time.Time) *discordgo.MessageEmbed {
	return stamp(&discordgo.MessageEmbed{
		Title:       truncate("No results: "+query, 256),
		Description: "There were no results for that query.",
		Color:       colorInfo,
	}, author, now)
}

func wikiEmbeds(articles []wiki.Article, author *discordgo.User, now time.Time) []*discordgo.MessageEmbed {
	pages := make([]*discordgo.MessageEmbed, 0, len(articles))
	for _, a := range articles {
		desc := a.Description
		if desc == "" {
			desc = "No description available."
		}
		pages = append(pages, stamp(&discordgo.MessageEmbed{
			Title:       truncate(a.Title, 256),
			URL:         a.URL,
			Description: truncate(desc, maxDescription),
			Color:       colorInfo,
		}, author, now))
	}
	return pages
}

// statusEmbeds renders a server status as an overview page, rule pages
// and player pages.
func statusEmbeds(st *samp.ServerStatus, author *discordgo.User, now time.Time) []*discordgo.MessageEmbed {
	password := "No"
	if st.Password {
		password = "Yes"
	}

	overview := &discordgo.MessageEmbed{
		Title:       truncate(orDash(st.Hostname), 256),
		Description: "`" + st.Address() + "`",
		Color:       colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Players", Value: humanize.Comma(int64(st.Players)) + "/" + humanize.Comma(int64(st.MaxPlayers)), Inline: true},
			{Name: "Ping", Value: strconv.FormatInt(st.Ping.Milliseconds(), 10) + "ms", Inline: true},
			{Name: "Password", Value: password, Inline: true},
			{Name: "Gamemode", Value: truncate(orDash(st.Gamemode), maxFieldValue), Inline: true},
			{Name: "Language", Value: truncate(orDash(st.Language), maxFieldValue), Inline: true},
			{Name: "Version", Value: truncate(orDash(st.Rule("version")), maxFieldValue), Inline: true},
		},
	}
	if web := st.Rule("weburl"); web != "" {
		overview.Fields = append(overview.Fields, &discordgo.MessageEmbedField{Name: "Website", Value: truncate(web, maxFieldValue)})
	}
	pages := []*discordgo.MessageEmbed{stamp(overview, author, now)}

	for start := 0; start < len(st.Rules); start += maxFields {
		end := min(start+maxFields, len(st.Rules))
		page := &discordgo.MessageEmbed{Title: "Server rules", Color: colorInfo}
		for _, r := range st.Rules[start:end] {
			page.Fields = append(page.Fields, &discordgo.MessageEmbedField{
				Name:   truncate(orDash(r.Name), 256),
				Value:  truncate(orDash(r.Value), maxFieldValue),
				Inline: true,
			})
		}
		pages = append(pages, stamp(page, author, now))
	}

	switch {
	case st.PlayerList == nil && st.Players > samp.PlayerListLimit:
		pages = append(pages, stamp(&discordgo.MessageEmbed{
			Title:       "Players",
			Description: fmt.Sprintf("The server does not share its player list above %d players.", samp.PlayerListLimit),
			Color:       colorInfo,
		}, author, now))
	case len(st.PlayerList) > 0:
		for start := 0; start < len(st.PlayerList); start += playersPerPage {
			end := min(start+playersPerPage, len(st.PlayerList))
			var b strings.Builder
			b.WriteString("```\n")
			for _, p := range st.PlayerList[start:end] {
				fmt.Fprintf(&b, "%-24s %6d\n", codeSafe(p.Name), p.Score)
			}
			b.WriteString("```")
			pages = append(pages, stamp(&discordgo.MessageEmbed{
				Title:       fmt.Sprintf("Players (%d-%d of %d)", start+1, end, len(st.PlayerList)),
				Description: b.String(),
				Color:       colorInfo,
			}, author, now))
		}
	}
	return pages
}

// codeSafe keeps s from closing the surrounding code block.
func codeSafe(s string) string {
	return strings.ReplaceAll(s, "`", "'")
}

func bookmarkEmbed(b *domain.ServerBookmark, author *discordgo.User, now time.Time) *discordgo.MessageEmbed {
	edited := "never"
	if b.EditedAt != nil {
		edited = humanize.RelTime(*b.EditedAt, now, "ago", "from now")
	}
	return stamp(&discordgo.MessageEmbed{
		Title:       "Server bookmark",
		Description: "`" + b.FullIP + "`",
		Color:       colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Added by", Value: "<@" + strconv.FormatInt(b.CreatedBy, 10) + ">", Inline: true},
			{Name: "Added", Value: humanize.RelTime(b.CreatedAt, now, "ago", "from now"), Inline: true},
			{Name: "Last edited", Value: edited, Inline: true},
		},
	}, author, now)
}
