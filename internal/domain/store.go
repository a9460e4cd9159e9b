package domain

import (
	"context"
	"iter"
	"time"
)

// BookmarkRepository is the persistence contract a backend provides.
// Implementations must make InsertBookmark an atomic insert-if-absent
// and UpdateBookmark/DeleteBookmark single-document operations, so that
// concurrent commands for one guild cannot lose updates.
type BookmarkRepository interface {
	// FindBookmark returns ErrNotFound when the guild has no bookmark.
	FindBookmark(ctx context.Context, guildID int64) (*ServerBookmark, error)
	// InsertBookmark returns ErrAlreadyExists when one is already stored.
	InsertBookmark(ctx context.Context, b *ServerBookmark) error
	// UpdateBookmark applies patch and returns the stored result, or ErrNotFound.
	UpdateBookmark(ctx context.Context, guildID int64, patch BookmarkPatch) (*ServerBookmark, error)
	// DeleteBookmark returns ErrNotFound when nothing was removed.
	DeleteBookmark(ctx context.Context, guildID int64) error
	// FindBookmarks lazily yields every bookmark stored for the guild.
	FindBookmarks(ctx context.Context, guildID int64) iter.Seq2[*ServerBookmark, error]
	// CountBookmarks returns the number of bookmarks across all guilds.
	CountBookmarks(ctx context.Context) (int64, error)
	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
}

// BookmarkStore owns the one-bookmark-per-guild contract on top of a
// repository: it computes FullIP, stamps CreatedAt/EditedAt and checks
// addresses before anything is written.
type BookmarkStore struct {
	repo BookmarkRepository
	now  func() time.Time
}

// NewBookmarkStore creates a store. now defaults to time.Now.
func NewBookmarkStore(repo BookmarkRepository, now func() time.Time) *BookmarkStore {
	if now == nil {
		now = time.Now
	}
	return &BookmarkStore{repo: repo, now: now}
}

// timestamp is the current time at the persisted resolution.
func (s *BookmarkStore) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

// Create stores a new bookmark for guildID or returns ErrAlreadyExists.
func (s *BookmarkStore) Create(ctx context.Context, guildID int64, ip string, port int, authorID int64) (*ServerBookmark, error) {
	ip, port, err := NormalizeAddress(ip, port)
	if err != nil {
		return nil, err
	}

	b := &ServerBookmark{
		GuildID:   guildID,
		IP:        ip,
		Port:      port,
		FullIP:    FullIP(ip, port),
		CreatedBy: authorID,
		CreatedAt: s.timestamp(),
	}
	if err := s.repo.InsertBookmark(ctx, b); err != nil {
		return nil, err
	}
	return b.Clone(), nil
}

// Get returns the guild bookmark or ErrNotFound.
func (s *BookmarkStore) Get(ctx context.Context, guildID int64) (*ServerBookmark, error) {
	return s.repo.FindBookmark(ctx, guildID)
}

// Update overwrites the address of an existing bookmark or returns ErrNotFound.
func (s *BookmarkStore) Update(ctx context.Context, guildID int64, ip string, port int) (*ServerBookmark, error) {
	ip, port, err := NormalizeAddress(ip, port)
	if err != nil {
		return nil, err
	}

	return s.repo.UpdateBookmark(ctx, guildID, BookmarkPatch{
		IP:       ip,
		Port:     port,
		FullIP:   FullIP(ip, port),
		EditedAt: s.timestamp(),
	})
}

// Delete removes the guild bookmark or returns ErrNotFound.
func (s *BookmarkStore) Delete(ctx context.Context, guildID int64) error {
	return s.repo.DeleteBookmark(ctx, guildID)
}

// ListByGuildPrefix yields the bookmarked addresses of a guild, for
// autocomplete. With uniqueness enforced this is zero or one value.
func (s *BookmarkStore) ListByGuildPrefix(ctx context.Context, guildID int64) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for b, err := range s.repo.FindBookmarks(ctx, guildID) {
			if err != nil {
				yield("", err)
				return
			}
			if !yield(b.IP, nil) {
				return
			}
		}
	}
}

// Count returns the number of stored bookmarks.
func (s *BookmarkStore) Count(ctx context.Context) (int64, error) {
	return s.repo.CountBookmarks(ctx)
}

// Ping checks the backing repository.
func (s *BookmarkStore) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
