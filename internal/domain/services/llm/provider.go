package llm

import (
	"context"
)

// Provider is the narrow contract the orchestration core consumes:
// prompt in, streamed token sequence or single text out. Implementations
// wrap a concrete vendor API.
type Provider interface {
	// Name returns the provider name (e.g. "together", "lorem")
	Name() string

	// SupportsModel returns true if the provider serves the given model.
	SupportsModel(model string) bool

	// Complete issues a non-streaming chat completion and returns the
	// entire response text.
	Complete(ctx context.Context, req *Request) (string, error)

	// Stream issues a streaming chat completion. Fragments arrive on the
	// returned channel in delivery order; concatenating every TextDelta
	// reconstructs the full text. The channel is closed when the stream
	// ends. A terminal failure is delivered as an event with Err set.
	Stream(ctx context.Context, req *Request) (<-chan StreamEvent, error)
}

// ImageGenerator creates persona avatar images. Optional capability:
// providers that cannot generate images simply don't implement it.
type ImageGenerator interface {
	// GenerateImage returns a URL for a generated image.
	GenerateImage(ctx context.Context, req *ImageRequest) (string, error)
}

// Message is a single role/content pair in the conversation context.
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// Request contains the parameters for one chat completion call.
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// StreamEvent is one element of a streaming response.
type StreamEvent struct {
	TextDelta string
	Err       error
}

// ImageRequest contains the parameters for one image generation call.
type ImageRequest struct {
	Prompt string
	Model  string
	Steps  int
}
