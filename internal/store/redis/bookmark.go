package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/madeline/internal/domain"
)

// maxTxAttempts bounds optimistic-lock retries when another command
// writes the same guild between WATCH and EXEC.
const maxTxAttempts = 3

// Store handles Redis operations for server bookmarks
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// document is the persisted shape of a bookmark.
// Timestamps are Unix seconds; edited_at stays null until the first edit.
type document struct {
	GuildID   int64  `json:"guild_id"`
	IP        string `json:"ip"`
	Port      int    `json:"port"`
	FullIP    string `json:"full_ip"`
	CreatedBy int64  `json:"created_by"`
	CreatedAt int64  `json:"created_at"`
	EditedAt  *int64 `json:"edited_at"`
}

func encode(b *domain.ServerBookmark) ([]byte, error) {
	doc := document{
		GuildID:   b.GuildID,
		IP:        b.IP,
		Port:      b.Port,
		FullIP:    b.FullIP,
		CreatedBy: b.CreatedBy,
		CreatedAt: b.CreatedAt.Unix(),
	}
	if b.EditedAt != nil {
		edited := b.EditedAt.Unix()
		doc.EditedAt = &edited
	}
	return json.Marshal(doc)
}

func decode(data []byte) (*domain.ServerBookmark, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	b := &domain.ServerBookmark{
		GuildID:   doc.GuildID,
		IP:        doc.IP,
		Port:      doc.Port,
		FullIP:    doc.FullIP,
		CreatedBy: doc.CreatedBy,
		CreatedAt: time.Unix(doc.CreatedAt, 0).UTC(),
	}
	if doc.EditedAt != nil {
		edited := time.Unix(*doc.EditedAt, 0).UTC()
		b.EditedAt = &edited
	}
	return b, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", domain.ErrStorageUnavailable, op, err)
}

// insertScript adds the guild to the set before writing the document.
// Redis does not roll back a script, so the step that can fail on a
// bad set key runs first and nothing is written when it does.
var insertScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("SADD", KEYS[2], ARGV[2])
redis.call("SET", KEYS[1], ARGV[1])
return 1
`)

// deleteScript mirrors insertScript: set membership goes first.
var deleteScript = redis.NewScript(`
redis.call("SREM", KEYS[2], ARGV[1])
return redis.call("DEL", KEYS[1])
`)

// InsertBookmark stores a bookmark only if the guild has none
func (s *Store) InsertBookmark(ctx context.Context, b *domain.ServerBookmark) error {
	data, err := encode(b)
	if err != nil {
		return fmt.Errorf("failed to marshal server: %w", err)
	}

	keys := []string{ServerKey(b.GuildID), AllServersKey()}
	created, err := insertScript.Run(ctx, s.client, keys, data, b.GuildID).Int64()
	if err != nil {
		return unavailable("save server", err)
	}
	if created == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

// FindBookmark retrieves a guild's bookmark from Redis
func (s *Store) FindBookmark(ctx context.Context, guildID int64) (*domain.ServerBookmark, error) {
	data, err := s.client.Get(ctx, ServerKey(guildID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, unavailable("get server", err)
	}

	b, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal server %d: %w", guildID, err)
	}
	return b, nil
}

// UpdateBookmark patches a bookmark inside WATCH/MULTI so a concurrent
// delete or edit of the same guild is never overwritten blindly.
func (s *Store) UpdateBookmark(ctx context.Context, guildID int64, patch domain.BookmarkPatch) (*domain.ServerBookmark, error) {
	key := ServerKey(guildID)
	var updated *domain.ServerBookmark

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		b, err := decode(data)
		if err != nil {
			return fmt.Errorf("failed to unmarshal server %d: %w", guildID, err)
		}
		patch.Apply(b)

		out, err := encode(b)
		if err != nil {
			return fmt.Errorf("failed to marshal server: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = b
		return nil
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return updated, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, domain.ErrNotFound):
			return nil, err
		default:
			return nil, unavailable("update server", err)
		}
	}

	return nil, unavailable("update server", fmt.Errorf("guild %d changed concurrently %d times", guildID, maxTxAttempts))
}

// DeleteBookmark removes a guild's bookmark and its set membership together
func (s *Store) DeleteBookmark(ctx context.Context, guildID int64) error {
	keys := []string{ServerKey(guildID), AllServersKey()}
	removed, err := deleteScript.Run(ctx, s.client, keys, guildID).Int64()
	if err != nil {
		return unavailable("delete server", err)
	}
	if removed == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindBookmarks yields the guild's bookmarks. One key per guild means
// at most one value.
func (s *Store) FindBookmarks(ctx context.Context, guildID int64) iter.Seq2[*domain.ServerBookmark, error] {
	return func(yield func(*domain.ServerBookmark, error) bool) {
		b, err := s.FindBookmark(ctx, guildID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return
		case err != nil:
			yield(nil, err)
			return
		}
		yield(b, nil)
	}
}

// CountBookmarks returns the size of the bookmarked guild set
func (s *Store) CountBookmarks(ctx context.Context) (int64, error) {
	n, err := s.client.SCard(ctx, AllServersKey()).Result()
	if err != nil {
		return 0, unavailable("count servers", err)
	}
	return n, nil
}

// Ping checks the Redis connection
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping redis", err)
	}
	return nil
}
