// Package domaintest holds the behaviour every BookmarkRepository must
// show once wrapped in a domain.BookmarkStore. Backend packages run it
// from their own tests.
package domaintest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/madeline/internal/domain"
)

// Clock is a settable time source for deterministic timestamps.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at t.
func NewClock(t time.Time) *Clock { return &Clock{now: t} }

// Now returns the current clock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// RunBookmarkStoreContract exercises a fresh repository from newRepo
// for each case.
func RunBookmarkStoreContract(t *testing.T, newRepo func(t *testing.T) domain.BookmarkRepository) {
	t.Helper()
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newStore := func(t *testing.T) (*domain.BookmarkStore, *Clock) {
		clock := NewClock(start)
		return domain.NewBookmarkStore(newRepo(t), clock.Now), clock
	}

	t.Run("create then get", func(t *testing.T) {
		store, _ := newStore(t)

		created, err := store.Create(ctx, 42, "203.0.113.5", 7777, 7)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if created.FullIP != "203.0.113.5:7777" {
			t.Errorf("Create().FullIP = %q, want %q", created.FullIP, "203.0.113.5:7777")
		}

		got, err := store.Get(ctx, 42)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.FullIP != "203.0.113.5:7777" {
			t.Errorf("Get().FullIP = %q, want %q", got.FullIP, "203.0.113.5:7777")
		}
		if got.EditedAt != nil {
			t.Errorf("Get().EditedAt = %v, want nil", got.EditedAt)
		}
		if got.CreatedBy != 7 {
			t.Errorf("Get().CreatedBy = %d, want 7", got.CreatedBy)
		}
		if !got.CreatedAt.Equal(start) {
			t.Errorf("Get().CreatedAt = %v, want %v", got.CreatedAt, start)
		}
	})

	t.Run("default port applied", func(t *testing.T) {
		store, _ := newStore(t)

		created, err := store.Create(ctx, 5, "play.example.org", 0, 1)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if created.Port != domain.DefaultPort {
			t.Errorf("Create().Port = %d, want %d", created.Port, domain.DefaultPort)
		}
		if created.FullIP != "play.example.org:7777" {
			t.Errorf("Create().FullIP = %q", created.FullIP)
		}
	})

	t.Run("duplicate create keeps original", func(t *testing.T) {
		store, _ := newStore(t)

		if _, err := store.Create(ctx, 1, "198.51.100.1", 7777, 10); err != nil {
			t.Fatalf("first Create() error = %v", err)
		}
		_, err := store.Create(ctx, 1, "198.51.100.2", 7778, 11)
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("second Create() error = %v, want ErrAlreadyExists", err)
		}

		got, err := store.Get(ctx, 1)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.IP != "198.51.100.1" || got.Port != 7777 || got.CreatedBy != 10 {
			t.Errorf("Get() = %+v, want original record", got)
		}
	})

	t.Run("absent guild", func(t *testing.T) {
		store, _ := newStore(t)

		if _, err := store.Get(ctx, 99); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
		if _, err := store.Update(ctx, 99, "203.0.113.9", 7777); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Update() error = %v, want ErrNotFound", err)
		}
		if err := store.Delete(ctx, 99); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Delete() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("update keeps creation metadata", func(t *testing.T) {
		store, clock := newStore(t)

		if _, err := store.Create(ctx, 42, "203.0.113.5", 7777, 7); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		clock.Advance(90 * time.Second)

		updated, err := store.Update(ctx, 42, "203.0.113.6", 7778)
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if updated.FullIP != "203.0.113.6:7778" {
			t.Errorf("Update().FullIP = %q, want %q", updated.FullIP, "203.0.113.6:7778")
		}

		got, err := store.Get(ctx, 42)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if !got.CreatedAt.Equal(start) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, start)
		}
		if got.CreatedBy != 7 {
			t.Errorf("CreatedBy = %d, want 7", got.CreatedBy)
		}
		if got.EditedAt == nil {
			t.Fatal("EditedAt = nil after update")
		}
		if got.EditedAt.Before(got.CreatedAt) {
			t.Errorf("EditedAt %v before CreatedAt %v", got.EditedAt, got.CreatedAt)
		}
		if want := start.Add(90 * time.Second); !got.EditedAt.Equal(want) {
			t.Errorf("EditedAt = %v, want %v", got.EditedAt, want)
		}
		if got.IP != "203.0.113.6" || got.Port != 7778 || got.FullIP != "203.0.113.6:7778" {
			t.Errorf("Get() = %+v, want updated address", got)
		}
	})

	t.Run("second update moves edited_at", func(t *testing.T) {
		store, clock := newStore(t)

		if _, err := store.Create(ctx, 3, "203.0.113.5", 7777, 7); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		clock.Advance(time.Minute)
		first, err := store.Update(ctx, 3, "203.0.113.6", 7777)
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		clock.Advance(time.Minute)
		second, err := store.Update(ctx, 3, "203.0.113.7", 7777)
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if !second.EditedAt.After(*first.EditedAt) {
			t.Errorf("second EditedAt %v not after first %v", second.EditedAt, first.EditedAt)
		}
	})

	t.Run("delete then get", func(t *testing.T) {
		store, _ := newStore(t)

		if _, err := store.Create(ctx, 42, "203.0.113.5", 7777, 7); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := store.Delete(ctx, 42); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := store.Get(ctx, 42); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
		}
		if err := store.Delete(ctx, 42); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("second Delete() error = %v, want ErrNotFound", err)
		}
		if _, err := store.Create(ctx, 42, "203.0.113.8", 7777, 8); err != nil {
			t.Errorf("Create() after Delete error = %v", err)
		}
	})

	t.Run("list by guild", func(t *testing.T) {
		store, _ := newStore(t)

		if _, err := store.Create(ctx, 42, "203.0.113.5", 7777, 7); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if _, err := store.Create(ctx, 43, "203.0.113.6", 7777, 7); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		var got []string
		for ip, err := range store.ListByGuildPrefix(ctx, 42) {
			if err != nil {
				t.Fatalf("ListByGuildPrefix() error = %v", err)
			}
			got = append(got, ip)
		}
		if len(got) != 1 || got[0] != "203.0.113.5" {
			t.Errorf("ListByGuildPrefix(42) = %v, want [203.0.113.5]", got)
		}

		for ip, err := range store.ListByGuildPrefix(ctx, 77) {
			t.Errorf("ListByGuildPrefix(77) yielded %q, %v", ip, err)
		}

		count, err := store.Count(ctx)
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if count != 2 {
			t.Errorf("Count() = %d, want 2", count)
		}
	})

	t.Run("invalid address rejected", func(t *testing.T) {
		store, _ := newStore(t)

		if _, err := store.Create(ctx, 42, "  ", 7777, 7); !errors.Is(err, domain.ErrInvalidAddress) {
			t.Errorf("Create(empty) error = %v, want ErrInvalidAddress", err)
		}
		if _, err := store.Create(ctx, 42, "203.0.113.5", 70000, 7); !errors.Is(err, domain.ErrInvalidAddress) {
			t.Errorf("Create(port) error = %v, want ErrInvalidAddress", err)
		}
		if _, err := store.Get(ctx, 42); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("concurrent create has one winner", func(t *testing.T) {
		store, _ := newStore(t)

		const workers = 8
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				_, err := store.Create(ctx, 500, "203.0.113.5", 7777+n, int64(n))
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)

		wins := 0
		for err := range errs {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrAlreadyExists):
			default:
				t.Errorf("Create() unexpected error = %v", err)
			}
		}
		if wins != 1 {
			t.Errorf("concurrent Create() wins = %d, want 1", wins)
		}
	})

	t.Run("ping", func(t *testing.T) {
		store, _ := newStore(t)
		if err := store.Ping(ctx); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})
}
