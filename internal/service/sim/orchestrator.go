package sim

import (
	"context"
	"fmt"
	"strings"

	"threadsim/internal/domain/models"
	domainllm "threadsim/internal/domain/services/llm"
	"threadsim/internal/metrics"
	"threadsim/internal/service/stream"
)

// maxAutoChainDepth bounds consecutive persona-to-persona turns so two
// personas cannot fill a thread unattended. Auto turns carry depth 1
// and up; the cap allows at most two in a row.
const maxAutoChainDepth = 2

const apologyMessage = "I apologize, but I encountered an error. Please try again."

// GenerateTurn runs one persona turn: it classifies the placement,
// extracts the conversation chain, selects a persona, generates the
// reply and inserts it into the tree, then considers a follow-up turn.
// input is the text being responded to, either a user comment or a
// synthetic continuation prompt for auto turns.
func (s *Service) GenerateTurn(ctx context.Context, threadID, input, parentID, replyID string, auto bool, depth int) error {
	if auto && depth > maxAutoChainDepth {
		metrics.AutoChainsTotal.WithLabelValues("depth_capped").Inc()
		return nil
	}

	st, err := s.state(ctx, threadID)
	if err != nil {
		return err
	}
	thread, err := s.threads.Get(ctx, threadID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	level := st.tree.NestingLevel(parentID, replyID)
	var chain []*models.Message
	if parentID == "" {
		chain = snapshotChain(lastN(st.tree.Roots(), 3))
	} else {
		chain = snapshotChain(st.tree.ExtractChain(parentID, replyID))
	}
	st.mu.Unlock()

	if s.initErr != nil {
		s.failTurn(ctx, threadID, st, parentID == "", s.initErr)
		return s.initErr
	}

	roster, err := s.personas.List(ctx)
	if err != nil {
		s.failTurn(ctx, threadID, st, parentID == "", err)
		return err
	}

	sel := s.selector.Select(ctx, input, roster, chain, thread)
	if sel == nil {
		s.logger.Info("no eligible persona, skipping turn", "thread_id", threadID)
		return nil
	}

	// Before replying, the persona reacts to the message it replies to.
	if parentID != "" {
		s.reactToTarget(ctx, threadID, st, parentID, replyID, input)
	}

	profile := s.profiles.Lookup(s.cfg.DefaultModel)
	provider, err := s.registry.ForModel(s.cfg.DefaultModel)
	if err != nil {
		s.failTurn(ctx, threadID, st, parentID == "", err)
		return err
	}

	req := &domainllm.Request{
		Model:       s.cfg.DefaultModel,
		Messages:    buildTurnMessages(sel.Persona, thread, chain, input),
		MaxTokens:   profile.MaxTokens,
		Temperature: profile.Temperature,
	}
	metrics.LLMRequestsTotal.WithLabelValues("generate").Inc()

	var msg *models.Message
	if parentID == "" {
		msg, err = s.streamRootTurn(ctx, threadID, st, provider, req, sel.Persona)
	} else {
		msg, level, err = s.completeReplyTurn(ctx, threadID, st, provider, req, sel.Persona, parentID, replyID)
	}
	if err != nil {
		s.failTurn(ctx, threadID, st, parentID == "", err)
		return err
	}

	metrics.TurnsTotal.WithLabelValues(fmt.Sprint(level)).Inc()
	s.logger.Info("turn completed",
		"thread_id", threadID,
		"username", sel.Persona.Username,
		"level", level,
		"auto", auto,
	)

	s.maybeAutoChain(ctx, threadID, msg, parentID, replyID, level, depth)
	return nil
}

// streamRootTurn places an empty root message immediately and fills its
// content delta by delta, so subscribers watch the comment being typed.
func (s *Service) streamRootTurn(ctx context.Context, threadID string, st *threadState, provider domainllm.Provider, req *domainllm.Request, persona *models.Persona) (*models.Message, error) {
	events, err := provider.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	msg := models.NewAssistantMessage(persona.Username, persona.Karma, "")
	st.mu.Lock()
	st.tree.Insert("", "", msg)
	st.mu.Unlock()
	s.broadcaster.Publish(threadID, stream.Event{
		Type: stream.EventMessageCreated,
		Data: stream.MessageCreatedData{Message: msg},
	})

	for ev := range events {
		if ev.Err != nil {
			return nil, ev.Err
		}
		st.mu.Lock()
		msg.Content += ev.TextDelta
		st.mu.Unlock()
		s.broadcaster.Publish(threadID, stream.Event{
			Type: stream.EventMessageDelta,
			Data: stream.MessageDeltaData{MessageID: msg.ID, TextDelta: ev.TextDelta},
		})
	}

	st.mu.Lock()
	saveErr := s.save(ctx, threadID, st)
	st.mu.Unlock()
	if saveErr != nil {
		return nil, saveErr
	}
	s.broadcaster.Publish(threadID, stream.Event{
		Type: stream.EventMessageComplete,
		Data: stream.MessageCompleteData{MessageID: msg.ID},
	})
	return msg, nil
}

// completeReplyTurn generates a nested reply in one call and inserts the
// finished message. Replies are small enough that token-level streaming
// adds nothing over the created event.
func (s *Service) completeReplyTurn(ctx context.Context, threadID string, st *threadState, provider domainllm.Provider, req *domainllm.Request, persona *models.Persona, parentID, replyID string) (*models.Message, int, error) {
	content, err := provider.Complete(ctx, req)
	if err != nil {
		return nil, 0, err
	}

	msg := models.NewAssistantMessage(persona.Username, persona.Karma, strings.TrimSpace(content))
	st.mu.Lock()
	level := st.tree.Insert(parentID, replyID, msg)
	saveErr := s.save(ctx, threadID, st)
	st.mu.Unlock()
	if saveErr != nil {
		return nil, 0, saveErr
	}

	s.broadcaster.Publish(threadID, stream.Event{
		Type: stream.EventMessageCreated,
		Data: stream.MessageCreatedData{Message: msg, ParentID: parentID, ReplyID: replyID},
	})
	s.broadcaster.Publish(threadID, stream.Event{
		Type: stream.EventMessageComplete,
		Data: stream.MessageCompleteData{MessageID: msg.ID},
	})
	return msg, level, nil
}

// failTurn reports a failed turn to subscribers. Failed root turns also
// leave a visible moderator apology in the thread; failed replies only
// emit the error event.
func (s *Service) failTurn(ctx context.Context, threadID string, st *threadState, atRoot bool, cause error) {
	s.logger.Error("turn failed", "thread_id", threadID, "error", cause)
	metrics.TurnErrorsTotal.Inc()
	s.broadcaster.Publish(threadID, stream.Event{
		Type: stream.EventTurnError,
		Data: stream.TurnErrorData{Error: cause.Error()},
	})

	if !atRoot {
		return
	}
	apology := models.NewModeratorMessage(apologyMessage)
	st.mu.Lock()
	st.tree.Insert("", "", apology)
	if err := s.save(ctx, threadID, st); err != nil {
		s.logger.Error("saving apology message failed", "thread_id", threadID, "error", err)
	}
	st.mu.Unlock()
	s.broadcaster.Publish(threadID, stream.Event{
		Type: stream.EventMessageCreated,
		Data: stream.MessageCreatedData{Message: apology},
	})
}

// reactToTarget casts a sentiment vote on the message being replied to:
// a cheap model call judges whether the new comment approves of its
// target. Failures are swallowed, a missing vote is not worth a failed
// turn.
func (s *Service) reactToTarget(ctx context.Context, threadID string, st *threadState, parentID, replyID, input string) {
	targetID := replyID
	if targetID == "" {
		targetID = parentID
	}

	st.mu.Lock()
	target, ok := st.tree.Find(targetID)
	var targetContent string
	if ok {
		targetContent = target.Content
	}
	st.mu.Unlock()
	if !ok || targetContent == "" {
		return
	}

	metrics.LLMRequestsTotal.WithLabelValues("sentiment").Inc()
	response, err := registryCompleter{s.registry}.Complete(ctx, &domainllm.Request{
		Model: s.cfg.SelectorModel,
		Messages: []domainllm.Message{
			{Role: "system", Content: "You judge whether a reply agrees with the message it responds to."},
			{Role: "user", Content: fmt.Sprintf(
				"Message: %q\nReply: %q\n\nDoes the reply agree with or approve of the message? Answer with exactly one word: upvote or downvote.",
				targetContent, input,
			)},
		},
		MaxTokens: s.profiles.Lookup(s.cfg.SelectorModel).SelectorMaxTokens,
	})
	if err != nil {
		s.logger.Debug("sentiment call failed", "thread_id", threadID, "error", err)
		return
	}

	answer := strings.ToLower(strings.Trim(strings.TrimSpace(response), `"'.`))
	var up bool
	switch answer {
	case "upvote":
		up = true
	case "downvote":
		up = false
	default:
		s.logger.Debug("sentiment answer not recognized", "debug_answer", truncate(answer, 40))
		return
	}

	st.mu.Lock()
	voted := st.tree.Vote(targetID, up)
	var saveErr error
	if voted {
		saveErr = s.save(ctx, threadID, st)
	}
	st.mu.Unlock()
	if saveErr != nil {
		s.logger.Error("saving sentiment vote failed", "thread_id", threadID, "error", saveErr)
		return
	}
	if voted {
		direction := "down"
		if up {
			direction = "up"
		}
		metrics.VotesTotal.WithLabelValues(direction, "sentiment").Inc()
	}
}

// maybeAutoChain decides whether the finished turn provokes another
// persona. Moderator messages and messages addressed to the human never
// chain; otherwise a probability gate and a typing delay keep the pace
// organic.
func (s *Service) maybeAutoChain(ctx context.Context, threadID string, msg *models.Message, parentID, replyID string, level, depth int) {
	if msg.Username == models.UsernameModerator {
		return
	}
	if AddressesUser(msg.Content) {
		metrics.AutoChainsTotal.WithLabelValues("addressed_user").Inc()
		s.logger.Debug("auto-chain suppressed, message addresses the user", "thread_id", threadID)
		return
	}

	roster, err := s.personas.List(ctx)
	if err != nil {
		s.logger.Error("auto-chain roster load failed", "thread_id", threadID, "error", err)
		return
	}
	hasOther := false
	for _, p := range roster {
		if !strings.EqualFold(p.Username, msg.Username) {
			hasOther = true
			break
		}
	}
	if !hasOther {
		metrics.AutoChainsTotal.WithLabelValues("no_persona").Inc()
		return
	}

	if s.gate() >= s.cfg.AutoReplyProbability {
		metrics.AutoChainsTotal.WithLabelValues("gate_skipped").Inc()
		return
	}
	metrics.AutoChainsTotal.WithLabelValues("triggered").Inc()

	s.pace(ctx)
	if ctx.Err() != nil {
		return
	}

	// The follow-up targets the new message: root turns open their own
	// reply tier, deeper turns stay in the tier the message landed in.
	nextParent, nextReply := parentID, replyID
	switch level {
	case 0:
		nextParent, nextReply = msg.ID, ""
	case 1:
		nextParent, nextReply = parentID, msg.ID
	}

	prompt := fmt.Sprintf("You are participating in a Reddit thread. Reply to this message in a way that encourages further discussion: %q", msg.Content)
	if err := s.GenerateTurn(ctx, threadID, prompt, nextParent, nextReply, true, depth+1); err != nil {
		s.logger.Error("auto-chain turn failed", "thread_id", threadID, "error", err)
	}
}

// snapshotChain copies the fields the prompt builders read, detaching
// them from the live tree.
func snapshotChain(chain []*models.Message) []*models.Message {
	out := make([]*models.Message, 0, len(chain))
	for _, m := range chain {
		out = append(out, &models.Message{
			ID:       m.ID,
			Role:     m.Role,
			Username: m.Username,
			Content:  m.Content,
		})
	}
	return out
}

// buildTurnMessages assembles the chat context for one generation call:
// the persona's system prompt, the chain as prior turns, then the text
// being responded to.
func buildTurnMessages(persona *models.Persona, thread *models.Thread, chain []*models.Message, input string) []domainllm.Message {
	msgs := make([]domainllm.Message, 0, len(chain)+2)
	msgs = append(msgs, domainllm.Message{Role: "system", Content: personaSystemPrompt(persona, thread)})
	for _, m := range chain {
		role := "assistant"
		if m.Role == models.RoleUser {
			role = "user"
		}
		msgs = append(msgs, domainllm.Message{
			Role:    role,
			Content: fmt.Sprintf("u/%s: %s", m.Username, m.Content),
		})
	}
	msgs = append(msgs, domainllm.Message{Role: "user", Content: input})
	return msgs
}

func personaSystemPrompt(persona *models.Persona, thread *models.Thread) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are u/%s, a Reddit user with %d karma.\n", persona.Username, persona.Karma)
	fmt.Fprintf(&b, "Personality: %s\n", persona.Personality)
	fmt.Fprintf(&b, "Interests & Expertise: %s\n", persona.Interests)
	fmt.Fprintf(&b, "Writing style: %s\n\n", persona.WritingStyle)
	if thread != nil {
		fmt.Fprintf(&b, "You are commenting in r/%s on the thread %q.\n%s\n\n", thread.Subreddit, thread.Title, thread.Description)
	}
	b.WriteString("Prior comments appear as \"u/<name>: <text>\" lines.\n")
	b.WriteString("Write a single Reddit comment in character. Keep it conversational and concise. ")
	b.WriteString("Do not prefix your answer with your username and never mention being an AI.")
	return b.String()
}
