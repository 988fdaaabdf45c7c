package sim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"threadsim/internal/config"
	"threadsim/internal/domain"
	"threadsim/internal/domain/models"
	domainllm "threadsim/internal/domain/services/llm"
	"threadsim/internal/modelprofiles"
	llmsvc "threadsim/internal/service/llm"
	"threadsim/internal/service/stream"
)

// fakeProvider serves scripted responses per model. When a queue runs
// dry it falls back to defaultResponse so auto-chains can run as long as
// a test needs.
type fakeProvider struct {
	queues          map[string][]string
	defaultResponse string
	completeErr     error
	streamErr       error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "fake-")
}

func (p *fakeProvider) next(model string) string {
	q := p.queues[model]
	if len(q) == 0 {
		return p.defaultResponse
	}
	resp := q[0]
	p.queues[model] = q[1:]
	return resp
}

func (p *fakeProvider) Complete(ctx context.Context, req *domainllm.Request) (string, error) {
	if p.completeErr != nil {
		return "", p.completeErr
	}
	return p.next(req.Model), nil
}

func (p *fakeProvider) Stream(ctx context.Context, req *domainllm.Request) (<-chan domainllm.StreamEvent, error) {
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	text := p.next(req.Model)
	ch := make(chan domainllm.StreamEvent, len(text))
	go func() {
		defer close(ch)
		for _, word := range strings.SplitAfter(text, " ") {
			ch <- domainllm.StreamEvent{TextDelta: word}
		}
	}()
	return ch, nil
}

// memPersonaStore is an in-memory PersonaStore.
type memPersonaStore struct {
	personas []*models.Persona
}

func (s *memPersonaStore) List(ctx context.Context) ([]*models.Persona, error) {
	out := make([]*models.Persona, len(s.personas))
	copy(out, s.personas)
	return out, nil
}

func (s *memPersonaStore) Get(ctx context.Context, id string) (*models.Persona, error) {
	for _, p := range s.personas {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, &domain.NotFoundError{Message: "persona not found"}
}

func (s *memPersonaStore) Create(ctx context.Context, p *models.Persona) error {
	s.personas = append(s.personas, p)
	return nil
}

func (s *memPersonaStore) Update(ctx context.Context, p *models.Persona) (bool, error) {
	for i, existing := range s.personas {
		if existing.ID == p.ID {
			s.personas[i] = p
			return true, nil
		}
	}
	return false, nil
}

func (s *memPersonaStore) Delete(ctx context.Context, id string) (bool, error) {
	for i, p := range s.personas {
		if p.ID == id {
			s.personas = append(s.personas[:i], s.personas[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// memThreadStore is an in-memory ThreadStore.
type memThreadStore struct {
	threads map[string]*models.Thread
	msgs    map[string][]*models.Message
}

func newMemThreadStore() *memThreadStore {
	return &memThreadStore{
		threads: make(map[string]*models.Thread),
		msgs:    make(map[string][]*models.Message),
	}
}

func (s *memThreadStore) List(ctx context.Context) ([]*models.Thread, error) {
	out := make([]*models.Thread, 0, len(s.threads))
	for _, t := range s.threads {
		out = append(out, t)
	}
	return out, nil
}

func (s *memThreadStore) Get(ctx context.Context, id string) (*models.Thread, error) {
	if t, ok := s.threads[id]; ok {
		return t, nil
	}
	return nil, &domain.NotFoundError{Message: "thread not found"}
}

func (s *memThreadStore) Create(ctx context.Context, t *models.Thread) error {
	s.threads[t.ID] = t
	return nil
}

func (s *memThreadStore) Update(ctx context.Context, t *models.Thread) (bool, error) {
	if _, ok := s.threads[t.ID]; !ok {
		return false, nil
	}
	s.threads[t.ID] = t
	return true, nil
}

func (s *memThreadStore) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := s.threads[id]; !ok {
		return false, nil
	}
	delete(s.threads, id)
	delete(s.msgs, id)
	return true, nil
}

func (s *memThreadStore) LoadMessages(ctx context.Context, threadID string) ([]*models.Message, error) {
	return s.msgs[threadID], nil
}

func (s *memThreadStore) SaveMessages(ctx context.Context, threadID string, roots []*models.Message) error {
	s.msgs[threadID] = roots
	return nil
}

func (s *memThreadStore) DeleteMessages(ctx context.Context, threadID string) error {
	delete(s.msgs, threadID)
	return nil
}

type testEnv struct {
	svc      *Service
	provider *fakeProvider
	threads  *memThreadStore
	threadID string
}

func newTestEnv(t *testing.T, initErr error) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Environment:          "test",
		DefaultProvider:      "fake",
		DefaultModel:         "fake-main",
		SelectorModel:        "fake-selector",
		AutoReplyProbability: 0.7,
	}

	provider := &fakeProvider{
		queues:          map[string][]string{},
		defaultResponse: "a perfectly reasonable comment",
	}
	registry := llmsvc.NewProviderRegistry()
	registry.Register(provider)

	profiles, err := modelprofiles.NewRegistry()
	if err != nil {
		t.Fatalf("load profiles: %v", err)
	}

	personas := &memPersonaStore{personas: []*models.Persona{
		{ID: "p1", Username: "alice", Karma: 1200, Interests: "coffee"},
		{ID: "p2", Username: "bob", Karma: 800, Interests: "hiking"},
	}}
	threads := newMemThreadStore()
	threadID := "t1"
	threads.threads[threadID] = &models.Thread{ID: threadID, Subreddit: "test", Title: "Test thread"}

	svc := NewService(cfg, profiles, registry, initErr, personas, threads, stream.NewBroadcaster(testLogger()), testLogger())
	svc.gate = func() float64 { return 1.0 } // suppress auto behavior by default
	svc.pace = func(ctx context.Context) {}

	return &testEnv{svc: svc, provider: provider, threads: threads, threadID: threadID}
}

func (e *testEnv) scriptSelection(n int) {
	e.provider.queues["fake-selector"] = append(e.provider.queues["fake-selector"],
		fmt.Sprintf("Conversation Analysis: No\nSelected Persona: %d", n))
}

func TestGenerateTurnEmptyRosterSkips(t *testing.T) {
	env := newTestEnv(t, nil)
	env.svc.personas = &memPersonaStore{}

	_, events := env.svc.broadcaster.Subscribe(env.threadID)

	if err := env.svc.GenerateTurn(context.Background(), env.threadID, "anyone around?", "", "", false, 0); err != nil {
		t.Fatalf("GenerateTurn: %v", err)
	}

	roots, err := env.svc.Messages(context.Background(), env.threadID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(roots) != 1 || roots[0].Username != models.UsernameModerator {
		t.Fatalf("tree changed on a skipped turn: %d roots", len(roots))
	}
	if len(events) != 0 {
		t.Errorf("skipped turn published %d events", len(events))
	}
}

func TestGenerateTurnRootStreams(t *testing.T) {
	env := newTestEnv(t, nil)
	env.scriptSelection(1)
	env.provider.queues["fake-main"] = []string{"hello from the fake model"}

	_, events := env.svc.broadcaster.Subscribe(env.threadID)

	if err := env.svc.GenerateTurn(context.Background(), env.threadID, "what do people use", "", "", false, 0); err != nil {
		t.Fatalf("GenerateTurn: %v", err)
	}

	roots, err := env.svc.Messages(context.Background(), env.threadID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	// welcome + the generated root
	if len(roots) != 2 {
		t.Fatalf("roots = %d, want 2", len(roots))
	}
	generated := roots[1]
	if generated.Username != "alice" {
		t.Errorf("author = %q, want alice", generated.Username)
	}
	if generated.Content != "hello from the fake model" {
		t.Errorf("content = %q, want the streamed text reassembled", generated.Content)
	}
	if generated.Role != models.RoleAssistant {
		t.Errorf("role = %q, want assistant", generated.Role)
	}

	// Event order: created first, at least one delta, then complete.
	var types []string
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	if len(types) < 3 {
		t.Fatalf("events = %v, want created/deltas/complete", types)
	}
	if types[0] != stream.EventMessageCreated {
		t.Errorf("first event = %q, want %q", types[0], stream.EventMessageCreated)
	}
	if types[1] != stream.EventMessageDelta {
		t.Errorf("second event = %q, want %q", types[1], stream.EventMessageDelta)
	}
	if types[len(types)-1] != stream.EventMessageComplete {
		t.Errorf("last event = %q, want %q", types[len(types)-1], stream.EventMessageComplete)
	}

	// Persisted state matches the in-memory tree.
	if len(env.threads.msgs[env.threadID]) != 2 {
		t.Errorf("persisted roots = %d, want 2", len(env.threads.msgs[env.threadID]))
	}
	if env.threads.threads[env.threadID].Comments != 1 {
		t.Errorf("thread comment count = %d, want 1", env.threads.threads[env.threadID].Comments)
	}
}

func TestGenerateTurnReplyCastsSentimentVote(t *testing.T) {
	env := newTestEnv(t, nil)

	// Seed a root comment to reply to.
	st, err := env.svc.state(context.Background(), env.threadID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	root := models.NewUserMessage("I think tabs beat spaces")
	st.mu.Lock()
	st.tree.Insert("", "", root)
	st.mu.Unlock()

	env.scriptSelection(1)
	env.provider.queues["fake-selector"] = append(env.provider.queues["fake-selector"], "upvote")
	env.provider.queues["fake-main"] = []string{"hard agree, tabs all the way"}

	if err := env.svc.GenerateTurn(context.Background(), env.threadID, "completely agree with this", root.ID, "", false, 0); err != nil {
		t.Fatalf("GenerateTurn: %v", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(root.Replies) != 1 {
		t.Fatalf("root replies = %d, want 1", len(root.Replies))
	}
	reply := root.Replies[0]
	if reply.Content != "hard agree, tabs all the way" {
		t.Errorf("reply content = %q", reply.Content)
	}
	if root.Upvotes != 1 {
		t.Errorf("root upvotes = %d, want 1 from the sentiment vote", root.Upvotes)
	}
}

func TestAutoChainDepthCap(t *testing.T) {
	env := newTestEnv(t, nil)
	env.svc.gate = func() float64 { return 0.0 } // always chain

	if err := env.svc.GenerateTurn(context.Background(), env.threadID, "kick things off", "", "", false, 0); err != nil {
		t.Fatalf("GenerateTurn: %v", err)
	}

	roots, err := env.svc.Messages(context.Background(), env.threadID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}

	total := 0
	for _, r := range roots {
		total += r.CountNodes()
	}
	// welcome + root turn + exactly two chained follow-ups before the
	// depth guard stops the cascade.
	if total != 4 {
		t.Fatalf("message count = %d, want 4 (welcome, root turn, two auto turns)", total)
	}
}

func TestAutoChainSuppressedWhenReplyAddressesUser(t *testing.T) {
	env := newTestEnv(t, nil)
	env.svc.gate = func() float64 { return 0.0 }
	env.provider.defaultResponse = "Nice. What do you think about it?"

	if err := env.svc.GenerateTurn(context.Background(), env.threadID, "kick things off", "", "", false, 0); err != nil {
		t.Fatalf("GenerateTurn: %v", err)
	}

	roots, _ := env.svc.Messages(context.Background(), env.threadID)
	total := 0
	for _, r := range roots {
		total += r.CountNodes()
	}
	// welcome + the single root turn: the question to the user must not
	// provoke a persona answer.
	if total != 2 {
		t.Fatalf("message count = %d, want 2", total)
	}
}

func TestGenerateTurnDegradedModeApologizes(t *testing.T) {
	initErr := &domain.UnavailableError{Message: "default provider not configured"}
	env := newTestEnv(t, initErr)

	_, events := env.svc.broadcaster.Subscribe(env.threadID)

	err := env.svc.GenerateTurn(context.Background(), env.threadID, "anyone home?", "", "", false, 0)
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("err = %v, want unavailable", err)
	}

	roots, _ := env.svc.Messages(context.Background(), env.threadID)
	if len(roots) != 2 {
		t.Fatalf("roots = %d, want welcome plus apology", len(roots))
	}
	apology := roots[1]
	if apology.Username != models.UsernameModerator {
		t.Errorf("apology author = %q, want %q", apology.Username, models.UsernameModerator)
	}
	if !strings.Contains(apology.Content, "error") {
		t.Errorf("apology content = %q", apology.Content)
	}

	sawError := false
	for len(events) > 0 {
		if (<-events).Type == stream.EventTurnError {
			sawError = true
		}
	}
	if !sawError {
		t.Error("no turn_error event published")
	}
}

func TestVoteAndClear(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// Park the background responder so the assertions below see only the
	// user's own mutations. gate() is 1.0, which routes the response
	// through pace first.
	env.svc.pace = func(ctx context.Context) { select {} }

	msg, err := env.svc.PostComment(ctx, env.threadID, &PostCommentRequest{Content: "hello"})
	if err != nil {
		t.Fatalf("PostComment: %v", err)
	}

	if err := env.svc.Vote(ctx, env.threadID, msg.ID, true); err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if err := env.svc.Vote(ctx, env.threadID, "missing", true); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("vote on unknown message err = %v, want not found", err)
	}

	if err := env.svc.ClearThread(ctx, env.threadID); err != nil {
		t.Fatalf("ClearThread: %v", err)
	}
	roots, _ := env.svc.Messages(ctx, env.threadID)
	if len(roots) != 1 || roots[0].Username != models.UsernameModerator {
		t.Errorf("clear did not reset to the welcome message")
	}
	if env.threads.threads[env.threadID].Comments != 0 {
		t.Errorf("comment count after clear = %d, want 0", env.threads.threads[env.threadID].Comments)
	}
}
