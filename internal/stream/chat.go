// Package stream holds the two SSE-driven controllers: the chat agent
// session and the single-shot draft generator. Both consume decoded
// events strictly in arrival order and keep all mutable state behind a
// single mutex; callers observe it through snapshots.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jvaldes/scout-tui/internal/backend"
	"github.com/jvaldes/scout-tui/internal/bus"
	"github.com/jvaldes/scout-tui/internal/services"
	"github.com/jvaldes/scout-tui/internal/sse"
	"github.com/jvaldes/scout-tui/internal/store"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// statusTTL is how long a tool-result status stays visible before it
// clears itself.
const statusTTL = 3 * time.Second

// ChatBackend is the slice of the backend client the chat controller
// needs.
type ChatBackend interface {
	ChatStream(ctx context.Context, req backend.ChatStreamRequest) (io.ReadCloser, error)
	GetChatSession(ctx context.Context, sessionID string) ([]backend.SessionMessage, error)
}

// ToolResult is the outcome of a tool invocation attached to an
// assistant message.
type ToolResult struct {
	Success     bool            `json:"success"`
	ResultCount int             `json:"resultCount"`
	Contacts    []store.Contact `json:"contacts"`
	Arguments   map[string]any  `json:"arguments,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// ChatMessage is one entry in the conversation.
type ChatMessage struct {
	ID          string
	Role        string
	Content     string
	IsStreaming bool
	HasError    bool
	ToolResult  *ToolResult
}

// Status is a transient progress indicator.
type Status struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ChatSnapshot is a consistent copy of the controller state.
type ChatSnapshot struct {
	Messages  []ChatMessage
	Streaming bool
	SessionID string
	Status    *Status
	Err       error
}

// ChatController drives a chat session over the streaming endpoint. One
// turn is in flight at a time; SendMessage blocks until the stream ends.
type ChatController struct {
	backend ChatBackend
	bus     *bus.Bus
	logger  *log.Logger

	// TTL for auto-clearing statuses; tests shorten it.
	statusTTL time.Duration

	mu        sync.Mutex
	messages  []ChatMessage
	streaming bool
	sessionID string
	status    *Status
	statusGen int
	lastErr   error
	cancel    context.CancelFunc
	streamCtx context.Context
	body      io.Closer

	onUpdate func()
}

// NewChatController creates a chat controller.
func NewChatController(b ChatBackend, eventBus *bus.Bus) *ChatController {
	return &ChatController{
		backend:   b,
		bus:       eventBus,
		statusTTL: statusTTL,
	}
}

// SetLogger sets the logger for debug output
func (c *ChatController) SetLogger(logger *log.Logger) {
	c.logger = logger
}

// OnUpdate registers a callback fired after every state change. It is
// invoked without the controller lock held.
func (c *ChatController) OnUpdate(fn func()) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (c *ChatController) Snapshot() ChatSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := ChatSnapshot{
		Messages:  make([]ChatMessage, len(c.messages)),
		Streaming: c.streaming,
		SessionID: c.sessionID,
		Err:       c.lastErr,
	}
	copy(snap.Messages, c.messages)
	if c.status != nil {
		st := *c.status
		snap.Status = &st
	}
	return snap
}

// SendMessage runs one chat turn: it appends the user message plus an
// empty streaming assistant message, opens the stream, and consumes
// events until done. It blocks until the stream finishes and returns
// ErrStreamInProgress when a turn is already running.
func (c *ChatController) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("message cannot be blank: %w", services.ErrValidation)
	}

	c.mu.Lock()
	if c.streaming {
		c.mu.Unlock()
		return services.ErrStreamInProgress
	}
	streamCtx, cancel := context.WithCancel(ctx)
	c.streaming = true
	c.cancel = cancel
	c.streamCtx = streamCtx
	c.lastErr = nil
	c.messages = append(c.messages,
		ChatMessage{ID: uuid.NewString(), Role: RoleUser, Content: text},
		ChatMessage{ID: uuid.NewString(), Role: RoleAssistant, IsStreaming: true},
	)
	sessionID := c.sessionID
	c.mu.Unlock()
	c.notify()

	defer c.finalize()

	body, err := c.backend.ChatStream(streamCtx, backend.ChatStreamRequest{
		Message:   text,
		SessionID: sessionID,
	})
	if err != nil {
		if services.IsCancelled(err) {
			return nil
		}
		c.failTrailing("Sorry, something went wrong. Please try again.", err)
		return err
	}

	c.mu.Lock()
	c.body = body
	c.mu.Unlock()

	return c.consume(body)
}

// consume applies decoded events in arrival order until done or EOF.
func (c *ChatController) consume(body io.ReadCloser) error {
	defer body.Close()

	dec := sse.NewDecoder(body)
	for {
		ev, err := dec.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if services.IsCancelled(err) || c.cancelled() {
				return nil
			}
			c.failTrailing("Sorry, the connection dropped. Please try again.", err)
			return fmt.Errorf("read chat stream: %w", err)
		}
		if ev.IsDone() {
			return nil
		}
		c.apply(ev)
	}
}

// apply handles one decoded event. Unknown event types are logged and
// skipped so newer servers don't break older clients.
func (c *ChatController) apply(ev *sse.Event) {
	switch ev.Type {
	case "session":
		var p struct {
			SessionID string `json:"sessionId"`
		}
		if json.Unmarshal(ev.Data, &p) == nil && p.SessionID != "" {
			c.mu.Lock()
			c.sessionID = p.SessionID
			c.mu.Unlock()
		}

	case "status":
		var st Status
		if json.Unmarshal(ev.Data, &st) == nil {
			c.setStatus(&st, false)
		}

	case "content":
		var p struct {
			Content string `json:"content"`
		}
		if ev.Data != nil {
			if json.Unmarshal(ev.Data, &p) != nil {
				return
			}
		} else {
			p.Content = ev.Raw
		}
		c.mu.Lock()
		if m := c.trailingAssistant(); m != nil {
			m.Content += p.Content
		}
		c.mu.Unlock()
		c.notify()

	case "tool_start":
		var p struct {
			Tool      string         `json:"tool"`
			Arguments map[string]any `json:"arguments"`
		}
		if json.Unmarshal(ev.Data, &p) != nil {
			return
		}
		msg := "Searching..."
		if q, ok := p.Arguments["query"].(string); ok && q != "" {
			msg = fmt.Sprintf("Searching for %s...", q)
		}
		c.setStatus(&Status{Message: msg, Type: "searching"}, false)

	case "tool_result":
		var tr ToolResult
		if json.Unmarshal(ev.Data, &tr) != nil {
			return
		}
		c.mu.Lock()
		if m := c.trailingAssistant(); m != nil {
			m.ToolResult = &tr
		}
		c.mu.Unlock()
		if tr.Success {
			c.setStatus(&Status{
				Message: fmt.Sprintf("Found %d contacts", tr.ResultCount),
				Type:    "success",
			}, true)
		} else {
			c.setStatus(&Status{Message: "Search failed", Type: "error"}, true)
		}

	case "error":
		var p struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(ev.Data, &p)
		msg := p.Error
		if msg == "" {
			msg = p.Message
		}
		if msg == "" {
			msg = "Sorry, something went wrong."
		}
		c.failTrailing(msg, fmt.Errorf("%s: %w", msg, services.ErrGeneration))

	default:
		c.logf("ignoring unknown chat event %q", ev.Type)
	}
}

// setStatus installs a status. Transient statuses clear themselves after
// the TTL unless a newer status has replaced them; the generation counter
// guards against clearing someone else's status.
func (c *ChatController) setStatus(st *Status, transient bool) {
	c.mu.Lock()
	c.status = st
	c.statusGen++
	gen := c.statusGen
	ttl := c.statusTTL
	c.mu.Unlock()
	c.notify()

	if !transient {
		return
	}
	time.AfterFunc(ttl, func() {
		c.mu.Lock()
		if c.statusGen != gen {
			c.mu.Unlock()
			return
		}
		c.status = nil
		c.mu.Unlock()
		c.notify()
	})
}

// failTrailing records the error, marks the trailing assistant message,
// and surfaces a toast.
func (c *ChatController) failTrailing(content string, err error) {
	c.mu.Lock()
	c.lastErr = err
	if m := c.trailingAssistant(); m != nil {
		m.HasError = true
		if m.Content == "" {
			m.Content = content
		}
	}
	c.mu.Unlock()
	c.notify()
	if c.bus != nil {
		c.bus.PublishToast(bus.ToastError, content)
	}
	c.logf("chat stream error: %v", err)
}

// finalize clears the streaming flag and releases the in-flight handles.
// Runs on every exit path so a stream that ends without done still
// settles the trailing message.
func (c *ChatController) finalize() {
	c.mu.Lock()
	c.streaming = false
	if m := c.trailingAssistant(); m != nil {
		m.IsStreaming = false
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.body = nil
	c.mu.Unlock()
	c.notify()
}

// CancelStream aborts the in-flight turn. Cancellation is not an error:
// the trailing assistant message keeps whatever content arrived.
func (c *ChatController) CancelStream() {
	c.mu.Lock()
	cancel := c.cancel
	body := c.body
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if body != nil {
		body.Close()
	}
}

// ClearMessages resets the conversation, session, status and error.
func (c *ChatController) ClearMessages() {
	c.mu.Lock()
	c.messages = nil
	c.sessionID = ""
	c.status = nil
	c.statusGen++
	c.lastErr = nil
	c.mu.Unlock()
	c.notify()
}

// LoadSession replaces the local conversation with the stored history of
// the given session. Tool results are not rehydrated; only messages.
func (c *ChatController) LoadSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty: %w", services.ErrValidation)
	}
	history, err := c.backend.GetChatSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session %s: %w", sessionID, err)
	}
	msgs := make([]ChatMessage, 0, len(history))
	for _, m := range history {
		id := m.ID
		if id == "" {
			id = uuid.NewString()
		}
		msgs = append(msgs, ChatMessage{ID: id, Role: m.Role, Content: m.Content})
	}
	c.mu.Lock()
	c.messages = msgs
	c.sessionID = sessionID
	c.status = nil
	c.statusGen++
	c.lastErr = nil
	c.mu.Unlock()
	c.notify()
	return nil
}

// trailingAssistant returns the last assistant message, or nil. Caller
// holds the lock.
func (c *ChatController) trailingAssistant() *ChatMessage {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == RoleAssistant {
			return &c.messages[i]
		}
	}
	return nil
}

func (c *ChatController) cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamCtx != nil && c.streamCtx.Err() != nil
}

func (c *ChatController) notify() {
	c.mu.Lock()
	fn := c.onUpdate
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *ChatController) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
