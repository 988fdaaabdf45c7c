package together

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	domainllm "threadsim/internal/domain/services/llm"
)

// Config holds the parameters needed to reach the Together API.
type Config struct {
	APIKey  string
	BaseURL string // OpenAI-compatible endpoint, e.g. https://api.together.xyz/v1
	Model   string // default model when a request leaves Model empty
}

// Provider serves chat completions through Together's OpenAI-compatible
// API and images through its native images endpoint.
type Provider struct {
	llm        *openai.LLM
	cfg        Config
	httpClient *http.Client
}

// NewProvider creates a Together provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("together: API key is required")
	}
	model, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("together: create client: %w", err)
	}
	return &Provider{
		llm:        model,
		cfg:        cfg,
		httpClient: &http.Client{},
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "together"
}

// SupportsModel claims every model that is not a mock. Together serves
// arbitrary "<org>/<model>" identifiers, so there is no useful allowlist.
func (p *Provider) SupportsModel(model string) bool {
	return !strings.HasPrefix(model, "lorem-")
}

// Complete issues a non-streaming chat completion and returns the entire
// response text.
func (p *Provider) Complete(ctx context.Context, req *domainllm.Request) (string, error) {
	resp, err := p.llm.GenerateContent(ctx, toContent(req.Messages), p.callOptions(req)...)
	if err != nil {
		return "", fmt.Errorf("together: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("together: completion returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// Stream issues a streaming chat completion. Chunks are forwarded in
// delivery order; the channel is closed when the stream ends.
func (p *Provider) Stream(ctx context.Context, req *domainllm.Request) (<-chan domainllm.StreamEvent, error) {
	eventChan := make(chan domainllm.StreamEvent, 16)

	opts := p.callOptions(req)
	opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		select {
		case eventChan <- domainllm.StreamEvent{TextDelta: string(chunk)}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))

	go func() {
		defer close(eventChan)
		if _, err := p.llm.GenerateContent(ctx, toContent(req.Messages), opts...); err != nil {
			eventChan <- domainllm.StreamEvent{Err: fmt.Errorf("together: stream: %w", err)}
		}
	}()

	return eventChan, nil
}

// GenerateImage calls the Together images endpoint and returns the URL of
// the generated image. langchaingo has no image API, so this talks to the
// endpoint directly.
func (p *Provider) GenerateImage(ctx context.Context, req *domainllm.ImageRequest) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":  req.Model,
		"prompt": req.Prompt,
		"steps":  req.Steps,
		"n":      1,
	})
	if err != nil {
		return "", fmt.Errorf("together: marshal image request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(p.cfg.BaseURL, "/")+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("together: build image request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("together: image request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("together: image request failed with status %d: %s", resp.StatusCode, msg)
	}

	var parsed struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("together: decode image response: %w", err)
	}
	if len(parsed.Data) == 0 || parsed.Data[0].URL == "" {
		return "", fmt.Errorf("together: image response contained no URL")
	}
	return parsed.Data[0].URL, nil
}

func (p *Provider) callOptions(req *domainllm.Request) []llms.CallOption {
	opts := []llms.CallOption{}
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(req.Temperature))
	}
	return opts
}

// toContent maps role/content pairs onto langchaingo message content.
func toContent(messages []domainllm.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		var role llms.ChatMessageType
		switch m.Role {
		case "system":
			role = llms.ChatMessageTypeSystem
		case "assistant":
			role = llms.ChatMessageTypeAI
		default:
			role = llms.ChatMessageTypeHuman
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}
