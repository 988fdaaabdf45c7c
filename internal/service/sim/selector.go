package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"strings"

	"threadsim/internal/domain/models"
	domainllm "threadsim/internal/domain/services/llm"
	"threadsim/internal/metrics"
)

// Completer is the slice of the provider contract the selector needs:
// one non-streaming completion. Partial or streamed output is never
// interpreted for selection.
type Completer interface {
	Complete(ctx context.Context, req *domainllm.Request) (string, error)
}

// Analysis describes how a persona was chosen.
type Analysis struct {
	IsConversationContinuation bool   `json:"is_conversation_continuation"`
	PreviousSpeaker            string `json:"previous_speaker,omitempty"`
	DirectMention              bool   `json:"direct_mention"`
}

// Selection is a resolved persona plus the reasoning behind it.
type Selection struct {
	Persona  *models.Persona
	Analysis Analysis
}

// Selector picks the most contextually relevant persona for a message.
// It never returns an error: free-text model output is decoded through
// an ordered strategy list and any failure degrades to a deterministic
// fallback, so the caller always receives either a persona or an
// explicit skip (nil).
type Selector struct {
	completer Completer
	model     string
	maxTokens int
	logger    *slog.Logger

	// randIndex picks a fallback roster index; replaced in tests.
	randIndex func(n int) int
}

// NewSelector creates a selector issuing analysis calls against the
// given model.
func NewSelector(completer Completer, model string, maxTokens int, logger *slog.Logger) *Selector {
	return &Selector{
		completer: completer,
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
		randIndex: rand.Intn,
	}
}

// Select resolves a persona for the candidate text. A nil result means
// no persona is eligible and the caller must skip the turn without
// error.
func (s *Selector) Select(ctx context.Context, candidateText string, roster []*models.Persona, chain []*models.Message, thread *models.Thread) *Selection {
	if len(roster) == 0 {
		return nil
	}

	// Direct mentions win immediately and bypass the model entirely.
	if p := findDirectMention(candidateText, roster); p != nil {
		s.logger.Debug("persona selected by direct mention", "username", p.Username)
		return &Selection{
			Persona: p,
			Analysis: Analysis{
				IsConversationContinuation: true,
				PreviousSpeaker:            p.Username,
				DirectMention:              true,
			},
		}
	}

	eligible := eligibleRoster(roster, chain)
	if len(eligible) == 0 {
		return nil
	}

	response, err := s.completer.Complete(ctx, &domainllm.Request{
		Model: s.model,
		Messages: []domainllm.Message{
			{Role: "system", Content: "You are a conversation analyzer that selects the most relevant persona based on conversation continuity first, then interest matching."},
			{Role: "user", Content: buildAnalysisPrompt(candidateText, eligible, chain, thread)},
		},
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		// Selection must never surface an exception; degrade to random.
		s.logger.Warn("persona selection call failed, falling back to random", "error", err)
		metrics.SelectorFallbacksTotal.WithLabelValues("random").Inc()
		return s.randomSelection(eligible)
	}
	metrics.LLMRequestsTotal.WithLabelValues("select").Inc()

	analysis := decodeAnalysis(response)
	index, decodeErr := DecodeSelection(response, len(eligible))

	// Continuity takes priority over the model's numeric answer when a
	// previous speaker was explicitly detected and is still known. The
	// lookup runs against the full roster: the continuing speaker may be
	// the one exclusion filtered out.
	if analysis.continuation && analysis.previousSpeaker != "" {
		if p := findByUsername(roster, analysis.previousSpeaker); p != nil {
			if decodeErr != nil || !strings.EqualFold(eligible[index].Username, p.Username) {
				s.logger.Debug("overriding selection for conversation continuity", "username", p.Username)
				if decodeErr != nil {
					metrics.SelectorFallbacksTotal.WithLabelValues("previous_speaker").Inc()
				}
			}
			return &Selection{
				Persona: p,
				Analysis: Analysis{
					IsConversationContinuation: true,
					PreviousSpeaker:            analysis.previousSpeaker,
				},
			}
		}
	}

	if decodeErr != nil {
		s.logger.Warn("selection response did not decode, falling back to random",
			"error", decodeErr,
			"debug_response", truncate(response, 200),
		)
		metrics.SelectorFallbacksTotal.WithLabelValues("random").Inc()
		return s.randomSelection(eligible)
	}

	return &Selection{
		Persona: eligible[index],
		Analysis: Analysis{
			IsConversationContinuation: analysis.continuation,
			PreviousSpeaker:            analysis.previousSpeaker,
		},
	}
}

func (s *Selector) randomSelection(eligible []*models.Persona) *Selection {
	return &Selection{Persona: eligible[s.randIndex(len(eligible))]}
}

// findDirectMention returns the first roster member mentioned as
// @username or u/username in the text.
func findDirectMention(text string, roster []*models.Persona) *models.Persona {
	for _, p := range roster {
		pattern := fmt.Sprintf(`(?i)@?u/%s\b|@%s\b`, regexp.QuoteMeta(p.Username), regexp.QuoteMeta(p.Username))
		if regexp.MustCompile(pattern).MatchString(text) {
			return p
		}
	}
	return nil
}

// eligibleRoster removes the most recent assistant speaker in the chain
// and the reserved usernames from the candidate roster.
func eligibleRoster(roster []*models.Persona, chain []*models.Message) []*models.Persona {
	lastSpeaker := ""
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].Role == models.RoleAssistant {
			lastSpeaker = chain[i].Username
			break
		}
	}

	eligible := make([]*models.Persona, 0, len(roster))
	for _, p := range roster {
		switch {
		case strings.EqualFold(p.Username, models.UsernameModerator):
		case strings.EqualFold(p.Username, models.UsernameHuman):
		case lastSpeaker != "" && strings.EqualFold(p.Username, lastSpeaker):
		default:
			eligible = append(eligible, p)
		}
	}
	return eligible
}

func findByUsername(roster []*models.Persona, username string) *models.Persona {
	for _, p := range roster {
		if strings.EqualFold(p.Username, username) {
			return p
		}
	}
	return nil
}

// buildAnalysisPrompt asks the model to pick a roster member by number.
// The roster lists usernames and interests only: selection is topic
// matching, not tone matching.
func buildAnalysisPrompt(candidateText string, eligible []*models.Persona, chain []*models.Message, thread *models.Thread) string {
	var b strings.Builder

	b.WriteString("You are analyzing a Reddit discussion to select the most appropriate user to respond, based on the following criteria in order:\n\n")
	b.WriteString("1. Direct mentions (already checked separately)\n")
	b.WriteString("2. Conversation continuity - check if the message is continuing a discussion that one of the personas was involved in\n")
	b.WriteString("3. Interest matching - if no conversation is being continued, select based on matching interests\n\n")

	if thread != nil {
		fmt.Fprintf(&b, "Thread: r/%s - %s\n%s\n\n", thread.Subreddit, thread.Title, thread.Description)
	}

	b.WriteString("Recent conversation:\n")
	b.WriteString(RecentLines(chain, 3))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "New message to analyze: %q\n\nAvailable personas:\n", candidateText)
	for i, p := range eligible {
		fmt.Fprintf(&b, "%d. Username: %s\n   Interests & Expertise: %s\n", i+1, p.Username, p.Interests)
	}

	b.WriteString(`
Instructions:
1. First, identify if this message is continuing a previous conversation or topic with a specific persona
2. If it is continuing a conversation, select that persona if available
3. If it's a new topic, compare the message topics with each persona's interests and expertise
4. Explain your selection reasoning

Format your response EXACTLY like this:
Conversation Analysis: [Is this continuing a previous discussion? Yes/No]
Previous Speaker: [username of the persona this is responding to, if any]
Topic: [topic from message]
Selected Persona: [number]
Reasoning: [2-3 sentences explaining why this persona was selected]

End your response with ONLY the number on the last line.`)

	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
