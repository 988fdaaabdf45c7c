package pebbledb

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"threadsim/internal/domain"
	"threadsim/internal/domain/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := Open(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPersonaStoreCRUD(t *testing.T) {
	store := NewPersonaStore(openTestDB(t))
	ctx := context.Background()

	p := &models.Persona{
		ID:        "p1",
		Username:  "alice",
		Karma:     1200,
		Interests: "coffee",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Username != "alice" || got.Karma != 1200 {
		t.Errorf("round trip mismatch: %+v", got)
	}

	got.Karma = 1300
	found, err := store.Update(ctx, got)
	if err != nil || !found {
		t.Fatalf("Update = %v, %v", found, err)
	}
	got, _ = store.Get(ctx, "p1")
	if got.Karma != 1300 {
		t.Errorf("karma after update = %d, want 1300", got.Karma)
	}

	found, err = store.Delete(ctx, "p1")
	if err != nil || !found {
		t.Fatalf("Delete = %v, %v", found, err)
	}
	if _, err := store.Get(ctx, "p1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get after delete err = %v, want not found", err)
	}

	found, err = store.Delete(ctx, "p1")
	if err != nil || found {
		t.Errorf("second Delete = %v, %v, want false and no error", found, err)
	}
}

func TestPersonaStoreUsernameConflict(t *testing.T) {
	store := NewPersonaStore(openTestDB(t))
	ctx := context.Background()

	if err := store.Create(ctx, &models.Persona{ID: "p1", Username: "alice"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := store.Create(ctx, &models.Persona{ID: "p2", Username: "ALICE"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate username err = %v, want conflict", err)
	}

	// Updating a persona to its own username is not a conflict.
	found, err := store.Update(ctx, &models.Persona{ID: "p1", Username: "alice", Karma: 5})
	if err != nil || !found {
		t.Errorf("self update = %v, %v", found, err)
	}
}

func TestPersonaStoreListOrder(t *testing.T) {
	store := NewPersonaStore(openTestDB(t))
	ctx := context.Background()

	base := time.Now().UTC()
	two := 2
	one := 1
	fixtures := []*models.Persona{
		{ID: "a", Username: "oldest", CreatedAt: base.Add(-2 * time.Hour)},
		{ID: "b", Username: "newest", CreatedAt: base},
		{ID: "c", Username: "second_pinned", Order: &two, CreatedAt: base.Add(-3 * time.Hour)},
		{ID: "d", Username: "first_pinned", Order: &one, CreatedAt: base.Add(-4 * time.Hour)},
	}
	for _, p := range fixtures {
		if err := store.Create(ctx, p); err != nil {
			t.Fatalf("Create %s: %v", p.Username, err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var usernames []string
	for _, p := range list {
		usernames = append(usernames, p.Username)
	}
	want := []string{"first_pinned", "second_pinned", "newest", "oldest"}
	for i := range want {
		if usernames[i] != want[i] {
			t.Fatalf("list order = %v, want %v", usernames, want)
		}
	}
}

func TestThreadStoreMessagesRoundTrip(t *testing.T) {
	store := NewThreadStore(openTestDB(t))
	ctx := context.Background()

	thread := &models.Thread{ID: "t1", Subreddit: "test", Title: "Hello", CreatedAt: time.Now().UTC()}
	if err := store.Create(ctx, thread); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Missing blob loads as an empty tree.
	roots, err := store.LoadMessages(ctx, "t1")
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if roots != nil {
		t.Errorf("empty thread roots = %v, want nil", roots)
	}

	root := models.NewUserMessage("top")
	reply := models.NewAssistantMessage("alice", 10, "nested")
	root.Replies = append(root.Replies, reply)
	if err := store.SaveMessages(ctx, "t1", []*models.Message{root}); err != nil {
		t.Fatalf("SaveMessages: %v", err)
	}

	roots, err = store.LoadMessages(ctx, "t1")
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if len(roots) != 1 || len(roots[0].Replies) != 1 {
		t.Fatalf("tree shape lost in round trip: %+v", roots)
	}
	if roots[0].Replies[0].Username != "alice" {
		t.Errorf("nested author = %q, want alice", roots[0].Replies[0].Username)
	}

	// Deleting the thread drops the message blob too.
	found, err := store.Delete(ctx, "t1")
	if err != nil || !found {
		t.Fatalf("Delete = %v, %v", found, err)
	}
	roots, err = store.LoadMessages(ctx, "t1")
	if err != nil || roots != nil {
		t.Errorf("messages survived thread deletion: %v, %v", roots, err)
	}
}

func TestThreadStoreListNewestFirst(t *testing.T) {
	store := NewThreadStore(openTestDB(t))
	ctx := context.Background()

	base := time.Now().UTC()
	if err := store.Create(ctx, &models.Thread{ID: "old", CreatedAt: base.Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if err := store.Create(ctx, &models.Thread{ID: "new", CreatedAt: base}); err != nil {
		t.Fatal(err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "new" {
		t.Errorf("list order wrong: %+v", list)
	}
}
