package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/madeline/internal/domain"
	"github.com/MrSnakeDoc/madeline/internal/domain/domaintest"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client), mr
}

func TestStoreContract(t *testing.T) {
	domaintest.RunBookmarkStoreContract(t, func(t *testing.T) domain.BookmarkRepository {
		store, _ := newTestStore(t)
		return store
	})
}

func TestDocumentShape(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	created := time.Unix(1_700_000_000, 0).UTC()
	b := &domain.ServerBookmark{
		GuildID:   42,
		IP:        "203.0.113.5",
		Port:      7777,
		FullIP:    "203.0.113.5:7777",
		CreatedBy: 7,
		CreatedAt: created,
	}
	if err := store.InsertBookmark(ctx, b); err != nil {
		t.Fatalf("InsertBookmark() error = %v", err)
	}

	raw, err := mr.Get(ServerKey(42))
	if err != nil {
		t.Fatalf("miniredis Get() error = %v", err)
	}
	want := `{"guild_id":42,"ip":"203.0.113.5","port":7777,"full_ip":"203.0.113.5:7777","created_by":7,"created_at":1700000000,"edited_at":null}`
	if raw != want {
		t.Errorf("stored document = %s, want %s", raw, want)
	}

	if ttl := mr.TTL(ServerKey(42)); ttl != 0 {
		t.Errorf("bookmark TTL = %v, want none", ttl)
	}

	members, err := mr.Members(AllServersKey())
	if err != nil {
		t.Fatalf("miniredis Members() error = %v", err)
	}
	if len(members) != 1 || members[0] != "42" {
		t.Errorf("server set = %v, want [42]", members)
	}
}

func TestDeleteClearsSet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.InsertBookmark(ctx, &domain.ServerBookmark{GuildID: 9, IP: "a", Port: 1, FullIP: "a:1"}); err != nil {
		t.Fatalf("InsertBookmark() error = %v", err)
	}
	if err := store.DeleteBookmark(ctx, 9); err != nil {
		t.Fatalf("DeleteBookmark() error = %v", err)
	}
	if mr.Exists(ServerKey(9)) {
		t.Error("bookmark key still present after delete")
	}
	if ok, _ := mr.SIsMember(AllServersKey(), "9"); ok {
		t.Error("guild still in server set after delete")
	}
}

func TestStorageUnavailable(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	mr.Close()

	if _, err := store.FindBookmark(ctx, 1); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("FindBookmark() error = %v, want ErrStorageUnavailable", err)
	}
	if errors.Is(func() error { _, err := store.FindBookmark(ctx, 1); return err }(), domain.ErrNotFound) {
		t.Error("transport failure reported as ErrNotFound")
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
	if err := store.Ping(ctx); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("Ping() error = %v, want ErrStorageUnavailable", err)
	}
	for _, err := range store.FindBookmarks(ctx, 1) {
		if !errors.Is(err, domain.ErrStorageUnavailable) {
			t.Errorf("FindBookmarks() error = %v, want ErrStorageUnavailable", err)
		}
	}
}

func TestSetFailureWritesNothing(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	b := &domain.ServerBookmark{GuildID: 42, IP: "a", Port: 1, FullIP: "a:1"}

	// A string under the set key makes every set command fail with WRONGTYPE.
	if err := mr.Set(AllServersKey(), "broken"); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertBookmark(ctx, b); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("InsertBookmark() error = %v, want ErrStorageUnavailable", err)
	}
	if mr.Exists(ServerKey(42)) {
		t.Fatal("bookmark stored although the set write failed")
	}

	mr.Del(AllServersKey())
	if err := store.InsertBookmark(ctx, b); err != nil {
		t.Fatalf("retried InsertBookmark() error = %v", err)
	}

	if err := mr.Set(AllServersKey(), "broken"); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteBookmark(ctx, 42); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("DeleteBookmark() error = %v, want ErrStorageUnavailable", err)
	}
	if !mr.Exists(ServerKey(42)) {
		t.Error("bookmark deleted although the set write failed")
	}
}

func TestInsertExistingLeavesDocument(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	first := &domain.ServerBookmark{GuildID: 5, IP: "a", Port: 1, FullIP: "a:1"}
	if err := store.InsertBookmark(ctx, first); err != nil {
		t.Fatal(err)
	}
	before, _ := mr.Get(ServerKey(5))

	second := &domain.ServerBookmark{GuildID: 5, IP: "b", Port: 2, FullIP: "b:2"}
	if err := store.InsertBookmark(ctx, second); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("InsertBookmark() error = %v, want ErrAlreadyExists", err)
	}
	if after, _ := mr.Get(ServerKey(5)); after != before {
		t.Errorf("document changed to %s", after)
	}
}
