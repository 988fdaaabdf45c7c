package pebbledb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"threadsim/internal/domain"
	"threadsim/internal/domain/models"
)

const (
	threadMetaPrefix = "thread:meta:"
	threadMsgsPrefix = "thread:msgs:"
)

// ThreadStore is the pebble-backed thread and message-tree store. The
// whole tree for a thread is stored as one blob and rewritten on every
// mutation; the last writer wins.
type ThreadStore struct {
	db *DB
}

// NewThreadStore creates a thread store on the shared database.
func NewThreadStore(db *DB) *ThreadStore {
	return &ThreadStore{db: db}
}

// List returns every thread, newest first.
func (s *ThreadStore) List(ctx context.Context) ([]*models.Thread, error) {
	var threads []*models.Thread
	err := s.db.scanPrefix(threadMetaPrefix, func(_ string, val []byte) error {
		var t models.Thread
		if err := json.Unmarshal(val, &t); err != nil {
			return fmt.Errorf("unmarshal thread: %w", err)
		}
		threads = append(threads, &t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].CreatedAt.After(threads[j].CreatedAt)
	})
	return threads, nil
}

// Get returns one thread by id.
func (s *ThreadStore) Get(ctx context.Context, id string) (*models.Thread, error) {
	val, err := s.db.get(threadMetaPrefix + id)
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("thread %s not found", id)}
	}
	var t models.Thread
	if err := json.Unmarshal(val, &t); err != nil {
		return nil, fmt.Errorf("unmarshal thread %s: %w", id, err)
	}
	return &t, nil
}

// Create stores a new thread.
func (s *ThreadStore) Create(ctx context.Context, t *models.Thread) error {
	return s.put(t)
}

// Update rewrites an existing thread. Returns false when it does not
// exist.
func (s *ThreadStore) Update(ctx context.Context, t *models.Thread) (bool, error) {
	existing, err := s.db.get(threadMetaPrefix + t.ID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	return true, s.put(t)
}

// Delete removes a thread and its message tree. Returns false when the
// thread did not exist.
func (s *ThreadStore) Delete(ctx context.Context, id string) (bool, error) {
	existing, err := s.db.get(threadMetaPrefix + id)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	if err := s.db.delete(threadMetaPrefix + id); err != nil {
		return false, err
	}
	return true, s.db.delete(threadMsgsPrefix + id)
}

// LoadMessages returns the stored message tree for a thread. A missing
// blob yields an empty tree, not an error.
func (s *ThreadStore) LoadMessages(ctx context.Context, threadID string) ([]*models.Message, error) {
	val, err := s.db.get(threadMsgsPrefix + threadID)
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, nil
	}
	var roots []*models.Message
	if err := json.Unmarshal(val, &roots); err != nil {
		return nil, fmt.Errorf("unmarshal messages for thread %s: %w", threadID, err)
	}
	return roots, nil
}

// SaveMessages rewrites the whole message tree for a thread.
func (s *ThreadStore) SaveMessages(ctx context.Context, threadID string, roots []*models.Message) error {
	data, err := json.Marshal(roots)
	if err != nil {
		return fmt.Errorf("marshal messages for thread %s: %w", threadID, err)
	}
	return s.db.set(threadMsgsPrefix+threadID, data)
}

// DeleteMessages drops the message tree for a thread.
func (s *ThreadStore) DeleteMessages(ctx context.Context, threadID string) error {
	return s.db.delete(threadMsgsPrefix + threadID)
}

func (s *ThreadStore) put(t *models.Thread) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal thread %s: %w", t.ID, err)
	}
	return s.db.set(threadMetaPrefix+t.ID, data)
}
