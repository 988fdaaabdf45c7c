// Package persona manages the roster of simulated authors.
package persona

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"threadsim/internal/config"
	"threadsim/internal/domain"
	"threadsim/internal/domain/models"
	domainllm "threadsim/internal/domain/services/llm"
	"threadsim/internal/domain/repositories"
	"threadsim/internal/metrics"
	"threadsim/internal/modelprofiles"
	llmsvc "threadsim/internal/service/llm"
)

// Service implements persona CRUD plus LLM-assisted persona authoring.
type Service struct {
	store    repositories.PersonaStore
	registry *llmsvc.ProviderRegistry
	profiles *modelprofiles.Registry
	cfg      *config.Config
	logger   *slog.Logger
}

// NewService creates a new persona service.
func NewService(
	store repositories.PersonaStore,
	registry *llmsvc.ProviderRegistry,
	profiles *modelprofiles.Registry,
	cfg *config.Config,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:    store,
		registry: registry,
		profiles: profiles,
		cfg:      cfg,
		logger:   logger,
	}
}

// List returns all personas, display order first, then newest first.
func (s *Service) List(ctx context.Context) ([]*models.Persona, error) {
	return s.store.List(ctx)
}

// Get retrieves a persona by ID.
func (s *Service) Get(ctx context.Context, id string) (*models.Persona, error) {
	return s.store.Get(ctx, id)
}

// Create registers a new persona.
func (s *Service) Create(ctx context.Context, req *models.CreatePersonaRequest) (*models.Persona, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	now := time.Now().UTC()
	p := &models.Persona{
		ID:           uuid.New().String(),
		Username:     strings.TrimSpace(req.Username),
		Karma:        req.Karma,
		Personality:  strings.TrimSpace(req.Personality),
		Interests:    strings.TrimSpace(req.Interests),
		WritingStyle: strings.TrimSpace(req.WritingStyle),
		ImageURL:     req.ImageURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("persona created", "id", p.ID, "username", p.Username)
	return p, nil
}

// Update applies a partial update to a persona.
func (s *Service) Update(ctx context.Context, id string, req *models.UpdatePersonaRequest) (*models.Persona, error) {
	if err := validateUpdateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Username != nil {
		p.Username = strings.TrimSpace(*req.Username)
	}
	if req.Karma != nil {
		p.Karma = *req.Karma
	}
	if req.Personality != nil {
		p.Personality = strings.TrimSpace(*req.Personality)
	}
	if req.Interests != nil {
		p.Interests = strings.TrimSpace(*req.Interests)
	}
	if req.WritingStyle != nil {
		p.WritingStyle = strings.TrimSpace(*req.WritingStyle)
	}
	if req.ImageURL != nil {
		p.ImageURL = *req.ImageURL
	}
	if req.Order != nil {
		p.Order = req.Order
	}
	p.UpdatedAt = time.Now().UTC()

	found, err := s.store.Update(ctx, p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("persona %s not found", id)}
	}
	return p, nil
}

// Delete removes a persona from the roster.
func (s *Service) Delete(ctx context.Context, id string) error {
	found, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return &domain.NotFoundError{Message: fmt.Sprintf("persona %s not found", id)}
	}
	s.logger.Info("persona deleted", "id", id)
	return nil
}

// GenerateFields asks the model to invent a complete persona from a
// short free-text description and returns the parsed fields without
// persisting anything.
func (s *Service) GenerateFields(ctx context.Context, description string) (*models.CreatePersonaRequest, error) {
	if strings.TrimSpace(description) == "" {
		return nil, &domain.ValidationError{Message: "description is required"}
	}

	provider, err := s.registry.ForModel(s.cfg.DefaultModel)
	if err != nil {
		return nil, err
	}

	profile := s.profiles.Lookup(s.cfg.DefaultModel)
	metrics.LLMRequestsTotal.WithLabelValues("persona_fields").Inc()
	response, err := provider.Complete(ctx, &domainllm.Request{
		Model: s.cfg.DefaultModel,
		Messages: []domainllm.Message{
			{Role: "system", Content: "You invent believable Reddit user profiles."},
			{Role: "user", Content: generateFieldsPrompt(description)},
		},
		MaxTokens:   profile.MaxTokens,
		Temperature: profile.Temperature,
	})
	if err != nil {
		return nil, err
	}

	req, err := parseGeneratedFields(response)
	if err != nil {
		s.logger.Warn("persona generation output did not parse",
			"error", err,
			"debug_response", truncate(response, 200),
		)
		return nil, err
	}
	return req, nil
}

// GenerateAvatar creates an avatar image for a persona and stores its
// URL on the persona record.
func (s *Service) GenerateAvatar(ctx context.Context, id string) (*models.Persona, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	images, err := s.registry.Images()
	if err != nil {
		return nil, err
	}

	metrics.LLMRequestsTotal.WithLabelValues("image").Inc()
	url, err := images.GenerateImage(ctx, &domainllm.ImageRequest{
		Prompt: avatarPrompt(p),
		Model:  s.cfg.ImageModel,
		Steps:  s.cfg.ImageSteps,
	})
	if err != nil {
		return nil, err
	}

	p.ImageURL = url
	p.UpdatedAt = time.Now().UTC()
	if _, err := s.store.Update(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("persona avatar generated", "id", p.ID, "username", p.Username)
	return p, nil
}

func validateCreateRequest(req *models.CreatePersonaRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Username,
			validation.Required,
			validation.Length(1, 30),
			validation.NotIn(models.UsernameHuman, models.UsernameModerator),
		),
		validation.Field(&req.Karma, validation.Min(0)),
		validation.Field(&req.Personality, validation.Required),
		validation.Field(&req.Interests, validation.Required),
		validation.Field(&req.WritingStyle, validation.Required),
	)
}

func validateUpdateRequest(req *models.UpdatePersonaRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Username,
			validation.NilOrNotEmpty,
			validation.Length(1, 30),
			validation.NotIn(models.UsernameHuman, models.UsernameModerator),
		),
		validation.Field(&req.Karma, validation.Min(0)),
		validation.Field(&req.Personality, validation.NilOrNotEmpty),
		validation.Field(&req.Interests, validation.NilOrNotEmpty),
		validation.Field(&req.WritingStyle, validation.NilOrNotEmpty),
	)
}

func generateFieldsPrompt(description string) string {
	return fmt.Sprintf(`Create a Reddit user persona based on this description: %q

Format your response EXACTLY like this, one field per line:
Username: [reddit-style username without u/ prefix]
Karma: [number between 100 and 500000]
Personality: [2-3 sentences describing their temperament]
Interests: [comma-separated topics they know about]
Writing Style: [1-2 sentences describing how they write]`, description)
}

// parseGeneratedFields extracts the labeled lines from the model output.
// Any missing field makes the whole response unusable.
func parseGeneratedFields(response string) (*models.CreatePersonaRequest, error) {
	fields := map[string]string{}
	for _, line := range strings.Split(response, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		fields[key] = value
	}

	var missing []string
	for _, key := range []string{"username", "karma", "personality", "interests", "writing style"} {
		if fields[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.MalformedOutputError{
			Message: fmt.Sprintf("persona output is missing fields: %s", strings.Join(missing, ", ")),
		}
	}

	karma := 0
	if _, err := fmt.Sscanf(fields["karma"], "%d", &karma); err != nil || karma < 0 {
		return nil, &domain.MalformedOutputError{
			Message: fmt.Sprintf("persona output has invalid karma %q", fields["karma"]),
		}
	}

	return &models.CreatePersonaRequest{
		Username:     strings.TrimPrefix(fields["username"], "u/"),
		Karma:        karma,
		Personality:  fields["personality"],
		Interests:    fields["interests"],
		WritingStyle: fields["writing style"],
	}, nil
}

func avatarPrompt(p *models.Persona) string {
	return fmt.Sprintf(
		"Reddit avatar profile picture for a user who is into %s. Personality: %s. Cartoon style, centered portrait, plain background.",
		p.Interests, p.Personality,
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
