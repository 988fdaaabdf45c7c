package pebbledb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"threadsim/internal/domain"
	"threadsim/internal/domain/models"
)

const personaPrefix = "persona:"

// PersonaStore is the pebble-backed persona roster.
type PersonaStore struct {
	db *DB
}

// NewPersonaStore creates a persona store on the shared database.
func NewPersonaStore(db *DB) *PersonaStore {
	return &PersonaStore{db: db}
}

// List returns every persona, newest first. Personas carrying an explicit
// display order come first, sorted by that order.
func (s *PersonaStore) List(ctx context.Context) ([]*models.Persona, error) {
	var personas []*models.Persona
	err := s.db.scanPrefix(personaPrefix, func(_ string, val []byte) error {
		var p models.Persona
		if err := json.Unmarshal(val, &p); err != nil {
			return fmt.Errorf("unmarshal persona: %w", err)
		}
		personas = append(personas, &p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(personas, func(i, j int) bool {
		a, b := personas[i], personas[j]
		switch {
		case a.Order != nil && b.Order != nil:
			return *a.Order < *b.Order
		case a.Order != nil:
			return true
		case b.Order != nil:
			return false
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
	return personas, nil
}

// Get returns one persona by id.
func (s *PersonaStore) Get(ctx context.Context, id string) (*models.Persona, error) {
	val, err := s.db.get(personaPrefix + id)
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("persona %s not found", id)}
	}
	var p models.Persona
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, fmt.Errorf("unmarshal persona %s: %w", id, err)
	}
	return &p, nil
}

// Create stores a new persona. Username uniqueness is enforced here.
func (s *PersonaStore) Create(ctx context.Context, p *models.Persona) error {
	taken, err := s.usernameTaken(ctx, p.Username, "")
	if err != nil {
		return err
	}
	if taken {
		return &domain.ConflictError{Message: fmt.Sprintf("username %q is already taken", p.Username)}
	}
	return s.put(p)
}

// Update rewrites an existing persona. Returns false when the persona
// does not exist.
func (s *PersonaStore) Update(ctx context.Context, p *models.Persona) (bool, error) {
	existing, err := s.db.get(personaPrefix + p.ID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	taken, err := s.usernameTaken(ctx, p.Username, p.ID)
	if err != nil {
		return false, err
	}
	if taken {
		return false, &domain.ConflictError{Message: fmt.Sprintf("username %q is already taken", p.Username)}
	}
	if err := s.put(p); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a persona. Returns false when it did not exist.
func (s *PersonaStore) Delete(ctx context.Context, id string) (bool, error) {
	existing, err := s.db.get(personaPrefix + id)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	return true, s.db.delete(personaPrefix + id)
}

func (s *PersonaStore) put(p *models.Persona) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal persona %s: %w", p.ID, err)
	}
	return s.db.set(personaPrefix+p.ID, data)
}

func (s *PersonaStore) usernameTaken(ctx context.Context, username, exceptID string) (bool, error) {
	personas, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range personas {
		if p.ID != exceptID && strings.EqualFold(p.Username, username) {
			return true, nil
		}
	}
	return false, nil
}
