package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/MrSnakeDoc/madeline/internal/domain"
	"github.com/MrSnakeDoc/madeline/internal/domain/domaintest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "madeline.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreContract(t *testing.T) {
	domaintest.RunBookmarkStoreContract(t, func(t *testing.T) domain.BookmarkRepository {
		return openTestStore(t)
	})
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Error("Open() with a blank path should fail")
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "madeline.db")

	first, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	created := time.Unix(1_700_000_000, 0).UTC()
	if err := first.InsertBookmark(ctx, &domain.ServerBookmark{
		GuildID: 42, IP: "203.0.113.5", Port: 7777, FullIP: "203.0.113.5:7777", CreatedBy: 7, CreatedAt: created,
	}); err != nil {
		t.Fatalf("InsertBookmark() error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer func() { _ = second.Close() }()

	got, err := second.FindBookmark(ctx, 42)
	if err != nil {
		t.Fatalf("FindBookmark() error = %v", err)
	}
	if !got.CreatedAt.Equal(created) || got.EditedAt != nil || got.CreatedBy != 7 {
		t.Errorf("reopened bookmark = %+v", got)
	}

	var applied int
	if err := second.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+migrationTable).Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != 1 {
		t.Errorf("schema_migrations rows = %d, want 1", applied)
	}
}

func TestStorageUnavailable(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_ = store.Close()

	if _, err := store.FindBookmark(ctx, 1); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("FindBookmark() error = %v, want ErrStorageUnavailable", err)
	}
	if err := store.InsertBookmark(ctx, &domain.ServerBookmark{GuildID: 1}); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("InsertBookmark() error = %v, want ErrStorageUnavailable", err)
	}
	if _, err := store.UpdateBookmark(ctx, 1, domain.BookmarkPatch{}); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("UpdateBookmark() error = %v, want ErrStorageUnavailable", err)
	}
	if err := store.DeleteBookmark(ctx, 1); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("DeleteBookmark() error = %v, want ErrStorageUnavailable", err)
	}
	if _, err := store.CountBookmarks(ctx); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("CountBookmarks() error = %v, want ErrStorageUnavailable", err)
	}
	if err := store.Ping(ctx); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("Ping() error = %v, want ErrStorageUnavailable", err)
	}
}

func TestUpSection(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{name: "no markers", in: "CREATE TABLE a (x);", want: "CREATE TABLE a (x);"},
		{name: "up only", in: "-- +migrate Up\nCREATE TABLE a (x);", want: "\nCREATE TABLE a (x);"},
		{name: "up and down", in: "-- +migrate Up\nA;\n-- +migrate Down\nB;", want: "\nA;\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := upSection(tt.in); got != tt.want {
				t.Errorf("upSection() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMigrationsInOrderOnce(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	fsys := fstest.MapFS{
		"002_b.sql":  {Data: []byte("INSERT INTO probe (v) VALUES ('b');")},
		"001_a.sql":  {Data: []byte("-- +migrate Up\nCREATE TABLE probe (v TEXT);\n-- +migrate Down\nDROP TABLE probe;")},
		"README.txt": {Data: []byte("ignored")},
	}
	for range 2 {
		if err := applyMigrations(ctx, store.db, fsys); err != nil {
			t.Fatalf("applyMigrations() error = %v", err)
		}
	}

	var rows int
	if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM probe").Scan(&rows); err != nil {
		t.Fatalf("count probe: %v", err)
	}
	if rows != 1 {
		t.Errorf("probe rows = %d, want 1 (002 applied once, after 001)", rows)
	}
}
