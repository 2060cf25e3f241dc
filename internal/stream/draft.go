package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/jvaldes/scout-tui/internal/backend"
	"github.com/jvaldes/scout-tui/internal/services"
	"github.com/jvaldes/scout-tui/internal/sse"
)

// DraftBackend is the slice of the backend client the draft controller
// needs.
type DraftBackend interface {
	DraftStream(ctx context.Context, req backend.DraftRequest) (io.ReadCloser, error)
}

// DraftMetadata is what the server reports alongside a completed draft.
type DraftMetadata struct {
	Model       string `json:"model,omitempty"`
	TokensUsed  int    `json:"tokensUsed,omitempty"`
	GeneratedAt string `json:"generatedAt,omitempty"`
}

// DraftOptions parameterizes one generation run.
type DraftOptions struct {
	Recipient      backend.RecipientInfo
	Tone           string
	Template       string
	JobDescription string

	// Append keeps the current draft content and adds to it instead of
	// starting over.
	Append bool
}

// DraftSnapshot is a consistent copy of the draft controller state.
type DraftSnapshot struct {
	Content   string
	Streaming bool
	Status    string
	Metadata  *DraftMetadata
	Err       error
}

// DraftController drives single-shot email generation over the streaming
// endpoint. Starting a new run cancels the previous one.
type DraftController struct {
	backend DraftBackend
	logger  *log.Logger

	mu        sync.Mutex
	content   string
	streaming bool
	status    string
	metadata  *DraftMetadata
	lastErr   error
	cancel    context.CancelFunc
	body      io.Closer
	run       int

	onUpdate func()
}

// NewDraftController creates a draft controller.
func NewDraftController(b DraftBackend) *DraftController {
	return &DraftController{backend: b}
}

// SetLogger sets the logger for debug output
func (d *DraftController) SetLogger(logger *log.Logger) {
	d.logger = logger
}

// OnUpdate registers a callback fired after every state change.
func (d *DraftController) OnUpdate(fn func()) {
	d.mu.Lock()
	d.onUpdate = fn
	d.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (d *DraftController) Snapshot() DraftSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap := DraftSnapshot{
		Content:   d.content,
		Streaming: d.streaming,
		Status:    d.status,
		Err:       d.lastErr,
	}
	if d.metadata != nil {
		md := *d.metadata
		snap.Metadata = &md
	}
	return snap
}

// GenerateDraft streams one draft and returns the final text. A cancelled
// run is not an error: the content accumulated so far is returned. When
// opts.Append is false the previous content is discarded first.
func (d *DraftController) GenerateDraft(ctx context.Context, opts DraftOptions) (string, error) {
	if strings.TrimSpace(opts.Recipient.CompanyName) == "" {
		return "", fmt.Errorf("recipient company name is required: %w", services.ErrValidation)
	}
	if strings.TrimSpace(opts.Recipient.JobTitle) == "" {
		return "", fmt.Errorf("recipient job title is required: %w", services.ErrValidation)
	}

	// Only one run at a time; a new request supersedes the old one.
	d.CancelStream()

	streamCtx, cancel := context.WithCancel(ctx)

	d.mu.Lock()
	if !opts.Append {
		d.content = ""
	}
	base := d.content
	d.streaming = true
	d.status = "starting"
	d.metadata = nil
	d.lastErr = nil
	d.cancel = cancel
	d.run++
	run := d.run
	d.mu.Unlock()
	d.notify()

	defer d.finalize(run)

	body, err := d.backend.DraftStream(streamCtx, backend.DraftRequest{
		RecipientInfo:  opts.Recipient,
		Tone:           opts.Tone,
		Template:       opts.Template,
		JobDescription: opts.JobDescription,
	})
	if err != nil {
		if services.IsCancelled(err) {
			return base, nil
		}
		d.fail(err)
		return "", fmt.Errorf("open draft stream: %w", err)
	}

	d.mu.Lock()
	if d.run == run {
		d.body = body
	}
	d.mu.Unlock()

	return d.consume(streamCtx, body, base, opts.Append)
}

// consume applies draft events until done, EOF or error. accumulated
// starts from base so append runs carry the prior content forward.
func (d *DraftController) consume(ctx context.Context, body io.ReadCloser, base string, appendMode bool) (string, error) {
	defer body.Close()

	accumulated := base
	dec := sse.NewDecoder(body)
	for {
		ev, err := dec.Next()
		if err == io.EOF {
			return accumulated, nil
		}
		if err != nil {
			if services.IsCancelled(err) || ctx.Err() != nil {
				// Scenario: user aborts mid-stream. Keep what arrived.
				return accumulated, nil
			}
			d.fail(err)
			return "", fmt.Errorf("read draft stream: %w", err)
		}
		if ev.IsDone() {
			return accumulated, nil
		}

		switch ev.Type {
		case "start":
			d.setStatus("generating")

		case "content":
			var p struct {
				Content string `json:"content"`
			}
			if ev.Data != nil {
				if json.Unmarshal(ev.Data, &p) != nil {
					continue
				}
			} else {
				p.Content = ev.Raw
			}
			accumulated += p.Content
			d.mu.Lock()
			d.content = accumulated
			d.mu.Unlock()
			d.notify()

		case "finish":
			d.setStatus("finishing")

		case "complete":
			var p struct {
				FullContent string         `json:"fullContent"`
				Metadata    *DraftMetadata `json:"metadata"`
			}
			if json.Unmarshal(ev.Data, &p) != nil {
				continue
			}
			// The server's canonical text tolerates lost chunks, but it
			// cannot be trusted in append mode where it lacks the base.
			if p.FullContent != "" && !appendMode {
				accumulated = p.FullContent
			}
			d.mu.Lock()
			d.content = accumulated
			d.metadata = p.Metadata
			d.status = "complete"
			d.mu.Unlock()
			d.notify()

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
				msg = "draft generation failed"
			}
			err := fmt.Errorf("%s: %w", msg, services.ErrGeneration)
			d.fail(err)
			return "", err

		default:
			d.logf("ignoring unknown draft event %q", ev.Type)
		}
	}
}

// CancelStream aborts the in-flight run, if any. Silent when idle.
func (d *DraftController) CancelStream() {
	d.mu.Lock()
	cancel := d.cancel
	body := d.body
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if body != nil {
		body.Close()
	}
}

// Clear resets content, status, metadata and error.
func (d *DraftController) Clear() {
	d.mu.Lock()
	d.content = ""
	d.status = ""
	d.metadata = nil
	d.lastErr = nil
	d.mu.Unlock()
	d.notify()
}

func (d *DraftController) setStatus(status string) {
	d.mu.Lock()
	d.status = status
	d.mu.Unlock()
	d.notify()
}

func (d *DraftController) fail(err error) {
	d.mu.Lock()
	d.lastErr = err
	d.status = "error"
	d.mu.Unlock()
	d.notify()
	d.logf("draft stream error: %v", err)
}

// finalize releases the run's handles. A superseded run must not touch
// the newer run's state, so the run counter gates it.
func (d *DraftController) finalize(run int) {
	d.mu.Lock()
	if d.run != run {
		d.mu.Unlock()
		return
	}
	d.streaming = false
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.body = nil
	if d.status == "generating" || d.status == "starting" || d.status == "finishing" {
		d.status = ""
	}
	d.mu.Unlock()
	d.notify()
}

func (d *DraftController) notify() {
	d.mu.Lock()
	fn := d.onUpdate
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (d *DraftController) logf(format string, args ...any) {
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}
