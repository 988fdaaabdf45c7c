package repositories

import (
	"context"

	"threadsim/internal/domain/models"
)

// PersonaStore persists the persona roster. Username uniqueness is
// enforced by the store, not by callers.
type PersonaStore interface {
	List(ctx context.Context) ([]*models.Persona, error) // newest first
	Get(ctx context.Context, id string) (*models.Persona, error)
	Create(ctx context.Context, p *models.Persona) error
	Update(ctx context.Context, p *models.Persona) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ThreadStore persists thread metadata and the per-thread message tree.
// Trees are stored as one blob per thread: load-at-start, save-on-every-
// mutation, no transactions.
type ThreadStore interface {
	List(ctx context.Context) ([]*models.Thread, error)
	Get(ctx context.Context, id string) (*models.Thread, error)
	Create(ctx context.Context, t *models.Thread) error
	Update(ctx context.Context, t *models.Thread) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)

	LoadMessages(ctx context.Context, threadID string) ([]*models.Message, error)
	SaveMessages(ctx context.Context, threadID string, roots []*models.Message) error
	DeleteMessages(ctx context.Context, threadID string) error
}
