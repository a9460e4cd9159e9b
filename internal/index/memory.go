package index

import (
	"context"
	"iter"
	"sync"

	"github.com/MrSnakeDoc/madeline/internal/domain"
)

// MemoryIndex is an in-process BookmarkRepository.
// It backs the "memory" store driver and the tests; nothing survives a restart.
type MemoryIndex struct {
	mu        sync.RWMutex
	bookmarks map[int64]*domain.ServerBookmark // GuildID -> Bookmark
}

// NewMemoryIndex creates an empty memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		bookmarks: make(map[int64]*domain.ServerBookmark),
	}
}

// FindBookmark retrieves a bookmark by guild
func (idx *MemoryIndex) FindBookmark(_ context.Context, guildID int64) (*domain.ServerBookmark, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	b, ok := idx.bookmarks[guildID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b.Clone(), nil
}

// InsertBookmark stores b unless the guild already has one
func (idx *MemoryIndex) InsertBookmark(_ context.Context, b *domain.ServerBookmark) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.bookmarks[b.GuildID]; exists {
		return domain.ErrAlreadyExists
	}
	idx.bookmarks[b.GuildID] = b.Clone()
	return nil
}

// UpdateBookmark applies patch to the stored bookmark
func (idx *MemoryIndex) UpdateBookmark(_ context.Context, guildID int64, patch domain.BookmarkPatch) (*domain.ServerBookmark, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	b, ok := idx.bookmarks[guildID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	patch.Apply(b)
	return b.Clone(), nil
}

// DeleteBookmark removes a bookmark from the index
func (idx *MemoryIndex) DeleteBookmark(_ context.Context, guildID int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.bookmarks[guildID]; !ok {
		return domain.ErrNotFound
	}
	delete(idx.bookmarks, guildID)
	return nil
}

// FindBookmarks yields the bookmarks of a guild.
// The snapshot is taken when iteration starts, so yield never runs under the lock.
func (idx *MemoryIndex) FindBookmarks(_ context.Context, guildID int64) iter.Seq2[*domain.ServerBookmark, error] {
	return func(yield func(*domain.ServerBookmark, error) bool) {
		idx.mu.RLock()
		var matches []*domain.ServerBookmark
		if b, ok := idx.bookmarks[guildID]; ok {
			matches = append(matches, b.Clone())
		}
		idx.mu.RUnlock()

		for _, b := range matches {
			if !yield(b, nil) {
				return
			}
		}
	}
}

// CountBookmarks returns the number of bookmarks in the index
func (idx *MemoryIndex) CountBookmarks(context.Context) (int64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return int64(len(idx.bookmarks)), nil
}

// Ping always succeeds
func (idx *MemoryIndex) Ping(context.Context) error { return nil }
