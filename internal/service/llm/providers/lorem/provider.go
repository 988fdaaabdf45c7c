package lorem

import (
	"context"
	"fmt"
	"strings"
	"time"

	loremgen "github.com/bozaro/golorem"

	domainllm "threadsim/internal/domain/services/llm"
)

// Provider is a mock LLM provider that generates lorem ipsum text.
// Used for development and tests without requiring real API keys.
type Provider struct {
	generator *loremgen.Lorem
}

// NewProvider creates a new lorem ipsum provider.
func NewProvider() *Provider {
	return &Provider{
		generator: loremgen.New(),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "lorem"
}

// SupportsModel returns true if the model name starts with "lorem-".
// Example models: "lorem-fast", "lorem-slow"
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "lorem-")
}

// Complete generates a short lorem ipsum response. When the last user
// message mentions the word "upvote" the response is the single word
// "upvote", so the sentiment flow can be exercised end to end.
func (p *Provider) Complete(ctx context.Context, req *domainllm.Request) (string, error) {
	if !p.SupportsModel(req.Model) {
		return "", fmt.Errorf("model %q is not supported by lorem provider", req.Model)
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	if len(req.Messages) > 0 && strings.Contains(strings.ToLower(req.Messages[len(req.Messages)-1].Content), "upvote") {
		return "upvote", nil
	}
	return p.generator.Paragraph(2, 4), nil
}

// Stream generates a streaming lorem ipsum response, one word per event.
// Speed varies based on model name (lorem-slow, lorem-fast).
func (p *Provider) Stream(ctx context.Context, req *domainllm.Request) (<-chan domainllm.StreamEvent, error) {
	if !p.SupportsModel(req.Model) {
		return nil, fmt.Errorf("model %q is not supported by lorem provider", req.Model)
	}

	eventChan := make(chan domainllm.StreamEvent, 10)
	delay := streamDelay(req.Model)
	text := p.generator.Paragraph(2, 4)

	go func() {
		defer close(eventChan)
		for _, word := range strings.Fields(text) {
			select {
			case <-ctx.Done():
				eventChan <- domainllm.StreamEvent{Err: ctx.Err()}
				return
			default:
			}
			eventChan <- domainllm.StreamEvent{TextDelta: word + " "}
			time.Sleep(delay)
		}
	}()

	return eventChan, nil
}

// GenerateImage returns a deterministic placeholder avatar URL.
func (p *Provider) GenerateImage(ctx context.Context, req *domainllm.ImageRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return fmt.Sprintf("https://placehold.co/256x256?text=%s", p.generator.Word(3, 8)), nil
}

// streamDelay returns the delay between words based on the model name.
// - lorem-slow: 2 words/second
// - lorem-fast: 30 words/second
// - default: 10 words/second
func streamDelay(model string) time.Duration {
	if strings.Contains(model, "slow") {
		return 500 * time.Millisecond
	}
	if strings.Contains(model, "fast") {
		return 33 * time.Millisecond
	}
	return 100 * time.Millisecond
}
