package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	// DefaultPort is the SA-MP/open.mp default server port.
	DefaultPort = 7777
	// MaxPort is the highest valid UDP port.
	MaxPort = 65535
)

// ServerBookmark is the persisted association of a guild with one
// game server address.
//
// A ServerBookmark is uniquely identified by its GuildID.
type ServerBookmark struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// GuildID is the Discord guild owning the bookmark.
	GuildID int64

	// ─────────────────────────────
	// Address (mutable via Update)
	// ─────────────────────────────

	// IP is a hostname or address, as typed by the member.
	// Example: 203.0.113.5, play.example.org
	IP string

	// Port is the query port. Example: 7777
	Port int

	// FullIP is always IP + ":" + Port. Kept denormalized for display
	// and autocomplete, recomputed by the store on every write.
	FullIP string

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// CreatedBy is the Discord user that added the bookmark.
	CreatedBy int64

	// CreatedAt is set once at creation and never changes.
	CreatedAt time.Time

	// EditedAt is nil until the first update.
	EditedAt *time.Time
}

// BookmarkPatch is the set of fields an update overwrites.
// CreatedAt and CreatedBy are deliberately absent.
type BookmarkPatch struct {
	IP       string
	Port     int
	FullIP   string
	EditedAt time.Time
}

// Apply writes the patch onto b.
func (p BookmarkPatch) Apply(b *ServerBookmark) {
	edited := p.EditedAt
	b.IP = p.IP
	b.Port = p.Port
	b.FullIP = p.FullIP
	b.EditedAt = &edited
}

// Clone returns a deep copy of b.
func (b *ServerBookmark) Clone() *ServerBookmark {
	if b == nil {
		return nil
	}
	c := *b
	if b.EditedAt != nil {
		edited := *b.EditedAt
		c.EditedAt = &edited
	}
	return &c
}

// FullIP joins an address and a port the way it is displayed and stored.
func FullIP(ip string, port int) string {
	return ip + ":" + strconv.Itoa(port)
}

// NormalizeAddress trims ip, applies the default port and validates both.
func NormalizeAddress(ip string, port int) (string, int, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "", 0, fmt.Errorf("%w: address is empty", ErrInvalidAddress)
	}
	if strings.IndexFunc(ip, unicode.IsSpace) >= 0 {
		return "", 0, fmt.Errorf("%w: address %q contains whitespace", ErrInvalidAddress, ip)
	}
	if port == 0 {
		port = DefaultPort
	}
	if port < 1 || port > MaxPort {
		return "", 0, fmt.Errorf("%w: port %d out of range", ErrInvalidAddress, port)
	}
	return ip, port, nil
}
