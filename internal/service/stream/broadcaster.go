// Package stream fans turn events out to SSE subscribers, one topic per
// thread.
package stream

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"threadsim/internal/domain/models"
)

// Event type constants
const (
	EventMessageCreated  = "message_created"  // a new message node exists
	EventMessageDelta    = "message_delta"    // incremental content for a streaming root turn
	EventMessageComplete = "message_complete" // a message finished streaming / was appended whole
	EventTurnError       = "turn_error"       // a turn failed
	EventThreadCleared   = "thread_cleared"   // the thread's messages were wiped externally
)

// Event is one server-sent event for a thread.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// MessageCreatedData carries a freshly inserted message and where it
// lives in the tree.
type MessageCreatedData struct {
	Message  *models.Message `json:"message"`
	ParentID string          `json:"parent_id,omitempty"`
	ReplyID  string          `json:"reply_id,omitempty"`
}

// MessageDeltaData carries one incremental content fragment.
type MessageDeltaData struct {
	MessageID string `json:"message_id"`
	TextDelta string `json:"text_delta"`
}

// MessageCompleteData signals that a message's content is final.
type MessageCompleteData struct {
	MessageID string `json:"message_id"`
}

// TurnErrorData signals that a turn failed.
type TurnErrorData struct {
	Error string `json:"error"`
}

// Broadcaster delivers events to every subscriber of a thread. Slow
// subscribers are skipped rather than blocking the orchestrator.
type Broadcaster struct {
	mu     sync.RWMutex
	topics map[string]map[string]chan Event
	logger *slog.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		topics: make(map[string]map[string]chan Event),
		logger: logger,
	}
}

// Subscribe registers a new client for a thread and returns its id and
// event channel. The channel is buffered; events overflowing the buffer
// are dropped for that client.
func (b *Broadcaster) Subscribe(threadID string) (string, <-chan Event) {
	clientID := uuid.New().String()
	ch := make(chan Event, 64)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.topics[threadID] == nil {
		b.topics[threadID] = make(map[string]chan Event)
	}
	b.topics[threadID][clientID] = ch

	b.logger.Debug("stream client subscribed", "thread_id", threadID, "client_id", clientID)
	return clientID, ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broadcaster) Unsubscribe(threadID, clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	clients := b.topics[threadID]
	if ch, ok := clients[clientID]; ok {
		delete(clients, clientID)
		close(ch)
	}
	if len(clients) == 0 {
		delete(b.topics, threadID)
	}
}

// Publish delivers an event to every subscriber of a thread.
func (b *Broadcaster) Publish(threadID string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for clientID, ch := range b.topics[threadID] {
		select {
		case ch <- event:
		default:
			b.logger.Warn("dropping event for slow stream client",
				"thread_id", threadID,
				"client_id", clientID,
				"event", event.Type,
			)
		}
	}
}
