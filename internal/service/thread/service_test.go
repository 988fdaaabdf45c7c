package thread

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"threadsim/internal/domain"
	"threadsim/internal/domain/models"
)

type memStore struct {
	threads  map[string]*models.Thread
	messages map[string][]*models.Message
}

func newMemStore() *memStore {
	return &memStore{
		threads:  map[string]*models.Thread{},
		messages: map[string][]*models.Message{},
	}
}

func (m *memStore) List(ctx context.Context) ([]*models.Thread, error) {
	var out []*models.Thread
	for _, t := range m.threads {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) Get(ctx context.Context, id string) (*models.Thread, error) {
	t, ok := m.threads[id]
	if !ok {
		return nil, &domain.NotFoundError{Message: "thread not found"}
	}
	clone := *t
	return &clone, nil
}

func (m *memStore) Create(ctx context.Context, t *models.Thread) error {
	clone := *t
	m.threads[t.ID] = &clone
	return nil
}

func (m *memStore) Update(ctx context.Context, t *models.Thread) (bool, error) {
	if _, ok := m.threads[t.ID]; !ok {
		return false, nil
	}
	clone := *t
	m.threads[t.ID] = &clone
	return true, nil
}

func (m *memStore) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.threads[id]; !ok {
		return false, nil
	}
	delete(m.threads, id)
	delete(m.messages, id)
	return true, nil
}

func (m *memStore) LoadMessages(ctx context.Context, threadID string) ([]*models.Message, error) {
	return m.messages[threadID], nil
}

func (m *memStore) SaveMessages(ctx context.Context, threadID string, roots []*models.Message) error {
	m.messages[threadID] = roots
	return nil
}

func (m *memStore) DeleteMessages(ctx context.Context, threadID string) error {
	delete(m.messages, threadID)
	return nil
}

func newTestService() (*Service, *memStore) {
	store := newMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, logger), store
}

func TestCreateThreadNormalizesSubreddit(t *testing.T) {
	svc, _ := newTestService()

	created, err := svc.Create(context.Background(), &models.CreateThreadRequest{
		Subreddit: "  r/AskTechnology ",
		Title:     "Why does my router need rebooting?",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Subreddit != "AskTechnology" {
		t.Errorf("subreddit = %q, want r/ prefix stripped", created.Subreddit)
	}
	if created.Upvotes != 1 {
		t.Errorf("upvotes = %d, want 1", created.Upvotes)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Errorf("thread not initialized: %+v", created)
	}
}

func TestCreateThreadValidation(t *testing.T) {
	tests := []struct {
		name string
		req  *models.CreateThreadRequest
	}{
		{"empty subreddit", &models.CreateThreadRequest{Title: "hello"}},
		{"empty title", &models.CreateThreadRequest{Subreddit: "test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()
			if _, err := svc.Create(context.Background(), tt.req); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func TestListFiltersBySubstring(t *testing.T) {
	svc, store := newTestService()

	base := time.Now().UTC()
	store.threads["1"] = &models.Thread{
		ID: "1", Subreddit: "AskTechnology", Title: "Mechanical keyboards worth it?",
		CreatedAt: base,
	}
	store.threads["2"] = &models.Thread{
		ID: "2", Subreddit: "cooking", Title: "Cast iron care",
		Description: "Seasoning technology and myths", CreatedAt: base.Add(-time.Minute),
	}
	store.threads["3"] = &models.Thread{
		ID: "3", Subreddit: "hiking", Title: "Trail mix recipes",
		CreatedAt: base.Add(-2 * time.Minute),
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"no query returns all newest first", "", []string{"1", "2", "3"}},
		{"matches subreddit case-insensitively", "asktech", []string{"1"}},
		{"matches title", "cast iron", []string{"2"}},
		{"matches description", "myths", []string{"2"}},
		{"matches across threads", "TECHNOLOGY", []string{"1", "2"}},
		{"no match", "quantum", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.List(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d threads, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("result[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestUpdateThreadReplacesFields(t *testing.T) {
	svc, _ := newTestService()
	created, err := svc.Create(context.Background(), &models.CreateThreadRequest{
		Subreddit:   "test",
		Title:       "before",
		Description: "old",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := svc.Update(context.Background(), created.ID, &models.CreateThreadRequest{
		Subreddit: "r/elsewhere",
		Title:     "after",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Subreddit != "elsewhere" || updated.Title != "after" {
		t.Errorf("fields not replaced: %+v", updated)
	}
	if updated.Description != "" {
		t.Errorf("description = %q, want cleared on full replace", updated.Description)
	}
}

func TestUpdateThreadNotFound(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Update(context.Background(), "missing", &models.CreateThreadRequest{
		Subreddit: "test", Title: "x",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestDeleteThread(t *testing.T) {
	svc, store := newTestService()
	created, err := svc.Create(context.Background(), &models.CreateThreadRequest{
		Subreddit: "test", Title: "x",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := store.threads[created.ID]; ok {
		t.Error("thread survived deletion")
	}

	if err := svc.Delete(context.Background(), created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete err = %v, want not found", err)
	}
}
