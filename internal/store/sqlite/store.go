// Package sqlite stores server bookmarks in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrSnakeDoc/madeline/internal/domain"
	"github.com/MrSnakeDoc/madeline/internal/store/sqlite/migrations"
)

// Store is a BookmarkRepository backed by the servers table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the embedded
// migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := "file:" + filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer keeps insert-if-absent and read-back updates serialized.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", domain.ErrStorageUnavailable, op, err)
}

const selectColumns = `SELECT guild_id, ip, port, full_ip, created_by, created_at, edited_at FROM servers`

type scanner interface {
	Scan(dest ...any) error
}

func scanBookmark(row scanner) (*domain.ServerBookmark, error) {
	var (
		b         domain.ServerBookmark
		createdAt int64
		editedAt  sql.NullInt64
	)
	if err := row.Scan(&b.GuildID, &b.IP, &b.Port, &b.FullIP, &b.CreatedBy, &createdAt, &editedAt); err != nil {
		return nil, err
	}
	b.CreatedAt = time.Unix(createdAt, 0).UTC()
	if editedAt.Valid {
		t := time.Unix(editedAt.Int64, 0).UTC()
		b.EditedAt = &t
	}
	return &b, nil
}

// FindBookmark returns the guild bookmark or domain.ErrNotFound.
func (s *Store) FindBookmark(ctx context.Context, guildID int64) (*domain.ServerBookmark, error) {
	b, err := scanBookmark(s.db.QueryRowContext(ctx, selectColumns+` WHERE guild_id = ?`, guildID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("find bookmark", err)
	}
	return b, nil
}

// InsertBookmark relies on the primary key: a conflicting row leaves
// zero rows affected.
func (s *Store) InsertBookmark(ctx context.Context, b *domain.ServerBookmark) error {
	var editedAt sql.NullInt64
	if b.EditedAt != nil {
		editedAt = sql.NullInt64{Int64: b.EditedAt.Unix(), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO servers (guild_id, ip, port, full_ip, created_by, created_at, edited_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(guild_id) DO NOTHING`,
		b.GuildID, b.IP, b.Port, b.FullIP, b.CreatedBy, b.CreatedAt.Unix(), editedAt)
	if err != nil {
		return unavailable("insert bookmark", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("insert bookmark", err)
	}
	if n == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

// UpdateBookmark patches the row and reads it back in one transaction.
func (s *Store) UpdateBookmark(ctx context.Context, guildID int64, patch domain.BookmarkPatch) (*domain.ServerBookmark, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("update bookmark", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE servers SET ip = ?, port = ?, full_ip = ?, edited_at = ? WHERE guild_id = ?`,
		patch.IP, patch.Port, patch.FullIP, patch.EditedAt.Unix(), guildID)
	if err != nil {
		return nil, unavailable("update bookmark", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, unavailable("update bookmark", err)
	}
	if n == 0 {
		return nil, domain.ErrNotFound
	}

	b, err := scanBookmark(tx.QueryRowContext(ctx, selectColumns+` WHERE guild_id = ?`, guildID))
	if err != nil {
		return nil, unavailable("read updated bookmark", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit bookmark update", err)
	}
	return b, nil
}

// DeleteBookmark returns domain.ErrNotFound when no row was removed.
func (s *Store) DeleteBookmark(ctx context.Context, guildID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM servers WHERE guild_id = ?`, guildID)
	if err != nil {
		return unavailable("delete bookmark", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("delete bookmark", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindBookmarks streams the guild rows. The cursor holds the only
// connection until iteration ends, so callers must not issue other
// store calls from inside the loop.
func (s *Store) FindBookmarks(ctx context.Context, guildID int64) iter.Seq2[*domain.ServerBookmark, error] {
	return func(yield func(*domain.ServerBookmark, error) bool) {
		rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE guild_id = ? ORDER BY created_at`, guildID)
		if err != nil {
			yield(nil, unavailable("list bookmarks", err))
			return
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			b, err := scanBookmark(rows)
			if err != nil {
				yield(nil, unavailable("scan bookmark", err))
				return
			}
			if !yield(b, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, unavailable("list bookmarks", err))
		}
	}
}

// CountBookmarks returns the number of rows in servers.
func (s *Store) CountBookmarks(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM servers`).Scan(&n); err != nil {
		return 0, unavailable("count bookmarks", err)
	}
	return n, nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}
