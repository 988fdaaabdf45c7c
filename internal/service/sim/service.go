// Package sim holds the conversation core: the comment tree, persona
// selection and the turn orchestrator that drives synthetic replies.
package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"threadsim/internal/config"
	"threadsim/internal/domain"
	"threadsim/internal/domain/models"
	domainllm "threadsim/internal/domain/services/llm"
	"threadsim/internal/domain/repositories"
	"threadsim/internal/metrics"
	"threadsim/internal/modelprofiles"
	llmsvc "threadsim/internal/service/llm"
	"threadsim/internal/service/stream"
)

// threadState is the in-memory tree for one thread. The mutex guards
// every tree read and mutation, including streamed content appends.
type threadState struct {
	mu   sync.Mutex
	tree *Tree
}

// Service runs the simulation for all threads. Trees are loaded lazily
// on first use and written back whole after every mutation.
type Service struct {
	cfg      *config.Config
	profiles *modelprofiles.Registry
	registry *llmsvc.ProviderRegistry
	initErr  error

	personas    repositories.PersonaStore
	threads     repositories.ThreadStore
	selector    *Selector
	broadcaster *stream.Broadcaster
	logger      *slog.Logger

	mu     sync.Mutex
	states map[string]*threadState

	// gate and pace inject randomness and delay; replaced in tests.
	gate func() float64
	pace func(ctx context.Context)
}

// registryCompleter routes non-streaming completions through the
// provider registry by model.
type registryCompleter struct {
	registry *llmsvc.ProviderRegistry
}

func (c registryCompleter) Complete(ctx context.Context, req *domainllm.Request) (string, error) {
	p, err := c.registry.ForModel(req.Model)
	if err != nil {
		return "", err
	}
	return p.Complete(ctx, req)
}

// NewService creates the simulation service. initErr, when non-nil,
// marks the service as degraded: reads keep working and every
// generation turn fails with that error.
func NewService(
	cfg *config.Config,
	profiles *modelprofiles.Registry,
	registry *llmsvc.ProviderRegistry,
	initErr error,
	personas repositories.PersonaStore,
	threads repositories.ThreadStore,
	broadcaster *stream.Broadcaster,
	logger *slog.Logger,
) *Service {
	selectorProfile := profiles.Lookup(cfg.SelectorModel)
	return &Service{
		cfg:         cfg,
		profiles:    profiles,
		registry:    registry,
		initErr:     initErr,
		personas:    personas,
		threads:     threads,
		selector:    NewSelector(registryCompleter{registry}, cfg.SelectorModel, selectorProfile.SelectorMaxTokens, logger),
		broadcaster: broadcaster,
		logger:      logger,
		states:      make(map[string]*threadState),
		gate:        rand.Float64,
		pace:        defaultPace,
	}
}

// defaultPace sleeps 2-5 seconds to mimic a human typing cadence.
func defaultPace(ctx context.Context) {
	delay := 2*time.Second + time.Duration(rand.Int63n(int64(3*time.Second)))
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

// state returns the loaded tree state for a thread, loading it from the
// store on first access. An empty or absent tree is seeded with the
// moderator welcome message.
func (s *Service) state(ctx context.Context, threadID string) (*threadState, error) {
	s.mu.Lock()
	st, ok := s.states[threadID]
	if !ok {
		st = &threadState{}
		s.states[threadID] = st
	}
	s.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.tree != nil {
		return st, nil
	}

	if _, err := s.threads.Get(ctx, threadID); err != nil {
		return nil, err
	}
	roots, err := s.threads.LoadMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}
	st.tree = NewTree(roots)
	if len(roots) == 0 {
		st.tree.Clear()
		if err := s.threads.SaveMessages(ctx, threadID, st.tree.Roots()); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// save writes the tree back and refreshes the thread's comment count.
// Callers hold the state lock.
func (s *Service) save(ctx context.Context, threadID string, st *threadState) error {
	if err := s.threads.SaveMessages(ctx, threadID, st.tree.Roots()); err != nil {
		return err
	}
	thread, err := s.threads.Get(ctx, threadID)
	if err != nil {
		return err
	}
	thread.Comments = st.tree.CountComments()
	if _, err := s.threads.Update(ctx, thread); err != nil {
		return err
	}
	return nil
}

// Messages returns a snapshot of the thread's comment tree. The copy is
// detached from the live tree so in-flight streaming turns cannot race
// the caller's serialization.
func (s *Service) Messages(ctx context.Context, threadID string) ([]*models.Message, error) {
	st, err := s.state(ctx, threadID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return cloneMessages(st.tree.Roots())
}

// PostCommentRequest is a user-authored comment plus its placement.
type PostCommentRequest struct {
	Content  string `json:"content"`
	ParentID string `json:"parent_id,omitempty"`
	ReplyID  string `json:"reply_id,omitempty"`
}

// PostComment inserts a user comment and schedules the persona response
// in the background. The inserted message is returned immediately; the
// response arrives over the thread's event stream.
func (s *Service) PostComment(ctx context.Context, threadID string, req *PostCommentRequest) (*models.Message, error) {
	if req.Content == "" {
		return nil, &domain.ValidationError{Message: "content is required"}
	}

	st, err := s.state(ctx, threadID)
	if err != nil {
		return nil, err
	}

	msg := models.NewUserMessage(req.Content)

	st.mu.Lock()
	if req.ParentID != "" {
		if _, ok := st.tree.Find(req.ParentID); !ok {
			st.mu.Unlock()
			return nil, &domain.NotFoundError{Message: fmt.Sprintf("message %s not found", req.ParentID)}
		}
		st.tree.Insert(req.ParentID, req.ReplyID, msg)
		st.tree.CloseAllEditors()
	} else {
		st.tree.Insert("", "", msg)
	}
	saveErr := s.save(ctx, threadID, st)
	st.mu.Unlock()
	if saveErr != nil {
		return nil, saveErr
	}

	s.broadcaster.Publish(threadID, stream.Event{
		Type: stream.EventMessageCreated,
		Data: stream.MessageCreatedData{Message: msg, ParentID: req.ParentID, ReplyID: req.ReplyID},
	})

	// The response runs detached from the request context: the HTTP
	// request finishes long before the persona does.
	go s.respondToComment(context.Background(), threadID, req.Content, req.ParentID, req.ReplyID)

	return msg, nil
}

// respondToComment generates the persona reply to a freshly posted user
// comment. Root comments get an immediate response only half the time;
// the other half waits a beat first, so the thread does not feel like a
// vending machine.
func (s *Service) respondToComment(ctx context.Context, threadID, content, parentID, replyID string) {
	if parentID == "" && s.gate() >= 0.5 {
		s.pace(ctx)
	}
	if err := s.GenerateTurn(ctx, threadID, content, parentID, replyID, false, 0); err != nil {
		s.logger.Error("persona response failed", "thread_id", threadID, "error", err)
	}
}

// Vote applies a user upvote or downvote to a message.
func (s *Service) Vote(ctx context.Context, threadID, messageID string, up bool) error {
	st, err := s.state(ctx, threadID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	ok := st.tree.Vote(messageID, up)
	var saveErr error
	if ok {
		saveErr = s.save(ctx, threadID, st)
	}
	st.mu.Unlock()

	if !ok {
		return &domain.NotFoundError{Message: fmt.Sprintf("message %s not found", messageID)}
	}
	if saveErr != nil {
		return saveErr
	}

	direction := "up"
	if !up {
		direction = "down"
	}
	metrics.VotesTotal.WithLabelValues(direction, "user").Inc()
	return nil
}

// ToggleReplyEditor opens or closes the inline reply editor on one
// message, closing any sibling editor at the same level.
func (s *Service) ToggleReplyEditor(ctx context.Context, threadID, parentID, replyID string) error {
	st, err := s.state(ctx, threadID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	ok := st.tree.ToggleReplyEditor(parentID, replyID)
	var saveErr error
	if ok {
		saveErr = s.save(ctx, threadID, st)
	}
	st.mu.Unlock()

	if !ok {
		return &domain.NotFoundError{Message: fmt.Sprintf("message %s not found", parentID)}
	}
	return saveErr
}

// ClearThread wipes the thread back to the welcome message.
func (s *Service) ClearThread(ctx context.Context, threadID string) error {
	st, err := s.state(ctx, threadID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	st.tree.Clear()
	saveErr := s.save(ctx, threadID, st)
	st.mu.Unlock()
	if saveErr != nil {
		return saveErr
	}

	s.broadcaster.Publish(threadID, stream.Event{Type: stream.EventThreadCleared})
	return nil
}

// Forget drops the in-memory state for a deleted thread.
func (s *Service) Forget(threadID string) {
	s.mu.Lock()
	delete(s.states, threadID)
	s.mu.Unlock()
}

// cloneMessages deep-copies a message forest via JSON round-trip.
func cloneMessages(roots []*models.Message) ([]*models.Message, error) {
	data, err := json.Marshal(roots)
	if err != nil {
		return nil, err
	}
	var out []*models.Message
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
