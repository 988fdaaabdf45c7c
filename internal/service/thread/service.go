// Package thread manages thread metadata: the containers the simulated
// discussions live in.
package thread

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"threadsim/internal/domain"
	"threadsim/internal/domain/models"
	"threadsim/internal/domain/repositories"
)

// Service implements thread CRUD and search.
type Service struct {
	store  repositories.ThreadStore
	logger *slog.Logger
}

// NewService creates a new thread service.
func NewService(store repositories.ThreadStore, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// List returns threads newest first. A non-empty query filters them by a
// case-insensitive substring match over subreddit, title and
// description.
func (s *Service) List(ctx context.Context, query string) ([]*models.Thread, error) {
	threads, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return threads, nil
	}

	filtered := make([]*models.Thread, 0, len(threads))
	for _, t := range threads {
		haystack := strings.ToLower(t.Subreddit + " " + t.Title + " " + t.Description)
		if strings.Contains(haystack, query) {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// Get retrieves a thread by ID.
func (s *Service) Get(ctx context.Context, id string) (*models.Thread, error) {
	return s.store.Get(ctx, id)
}

// Create registers a new thread. The message tree is seeded with the
// moderator welcome on first access.
func (s *Service) Create(ctx context.Context, req *models.CreateThreadRequest) (*models.Thread, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	t := &models.Thread{
		ID:          uuid.New().String(),
		Subreddit:   normalizeSubreddit(req.Subreddit),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   time.Now().UTC(),
		Upvotes:     1,
	}

	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("thread created", "id", t.ID, "subreddit", t.Subreddit, "title", t.Title)
	return t, nil
}

// Update replaces a thread's editable fields.
func (s *Service) Update(ctx context.Context, id string, req *models.CreateThreadRequest) (*models.Thread, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	t.Subreddit = normalizeSubreddit(req.Subreddit)
	t.Title = strings.TrimSpace(req.Title)
	t.Description = strings.TrimSpace(req.Description)

	found, err := s.store.Update(ctx, t)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("thread %s not found", id)}
	}
	return t, nil
}

// Delete removes a thread and its messages.
func (s *Service) Delete(ctx context.Context, id string) error {
	found, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return &domain.NotFoundError{Message: fmt.Sprintf("thread %s not found", id)}
	}
	s.logger.Info("thread deleted", "id", id)
	return nil
}

func validateCreateRequest(req *models.CreateThreadRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Subreddit, validation.Required, validation.Length(1, 50)),
		validation.Field(&req.Title, validation.Required, validation.Length(1, 300)),
		validation.Field(&req.Description, validation.Length(0, 5000)),
	)
}

// normalizeSubreddit strips an optional r/ prefix so stored names are
// bare.
func normalizeSubreddit(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "r/")
	return name
}
