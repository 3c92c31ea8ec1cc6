// Package runtime runs one streaming worker per API-backed agent. Each
// runtime owns its agent's chat session and transcript, consumes
// broadcast prompts from a bounded queue, and streams the reply into
// the transcript fragment by fragment.
package runtime

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/omnichat-dev/omnichat/internal/observability"
	"github.com/omnichat-dev/omnichat/pkg/chat"
	"github.com/omnichat-dev/omnichat/pkg/fanout"
	"github.com/omnichat-dev/omnichat/pkg/transcript"
)

// promptQueueSize bounds how many prompts can wait while a reply is
// still streaming. Prompts past the bound are dropped, not queued
// forever.
const promptQueueSize = 8

// Config describes the agent a runtime drives.
type Config struct {
	AgentID           string
	Model             string
	SystemInstruction string
}

// Runtime drives one agent. Create with New, then Start; it implements
// fanout.Receiver so it can be attached to a coordinator.
type Runtime struct {
	cfg     Config
	client  chat.Client
	prompts chan fanout.Prompt

	mu         sync.Mutex
	session    chat.Session
	transcript *transcript.Transcript
	lastIssued uint64
	typing     bool
	lastErr    error
	cancelSend context.CancelFunc
	stale      bool

	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// New creates a runtime for one API-backed agent.
func New(cfg Config, client chat.Client) *Runtime {
	return &Runtime{
		cfg:        cfg,
		client:     client,
		prompts:    make(chan fanout.Prompt, promptQueueSize),
		transcript: transcript.New(),
		done:       make(chan struct{}),
	}
}

// AgentID returns the agent this runtime drives.
func (r *Runtime) AgentID() string { return r.cfg.AgentID }

// Start launches the worker. The initial session is created eagerly so
// credential problems surface immediately, but a failure only records
// the error; the next prompt retries.
func (r *Runtime) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	if _, err := r.ensureSession(ctx); err != nil {
		log.Printf("runtime: initial session for %s: %v", r.cfg.AgentID, err)
	}

	go r.run(ctx)
}

// Deliver implements fanout.Receiver. It never blocks: when the queue
// is full the prompt is dropped and logged.
func (r *Runtime) Deliver(p fanout.Prompt) {
	select {
	case r.prompts <- p:
	default:
		log.Printf("runtime: %s prompt queue full, dropping prompt %d", r.cfg.AgentID, p.IssuedAt)
	}
}

// Typing reports whether a reply is currently streaming.
func (r *Runtime) Typing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.typing
}

// Err returns the most recent session or stream error, cleared by the
// next successful exchange.
func (r *Runtime) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Turns returns a snapshot of the agent's transcript.
func (r *Runtime) Turns() []transcript.Turn {
	r.mu.Lock()
	t := r.transcript
	r.mu.Unlock()
	return t.Turns()
}

// Reset clears the transcript. The session and its provider-side
// history are kept; only the local record is wiped.
func (r *Runtime) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcript.Reset()
	r.lastErr = nil
}

// Reconfigure changes the model or system instruction. The current
// session is discarded and any in-flight stream cancelled; the next
// prompt opens a fresh session. The transcript is kept.
func (r *Runtime) Reconfigure(model, systemInstruction string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.Model = model
	r.cfg.SystemInstruction = systemInstruction
	r.session = nil
	r.stale = true
	if r.cancelSend != nil {
		r.cancelSend()
	}
}

// Stop cancels the worker and any in-flight stream, then waits for the
// worker to exit.
func (r *Runtime) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	started := r.started
	r.mu.Unlock()

	if !started {
		return
	}
	if cancel != nil {
		cancel()
	}
	<-r.done
}

func (r *Runtime) run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-r.prompts:
			r.handle(ctx, p)
		}
	}
}

func (r *Runtime) handle(ctx context.Context, p fanout.Prompt) {
	r.mu.Lock()
	if p.IssuedAt <= r.lastIssued {
		r.mu.Unlock()
		return
	}
	r.lastIssued = p.IssuedAt
	r.mu.Unlock()

	session, err := r.ensureSession(ctx)
	if err != nil {
		r.mu.Lock()
		r.lastErr = err
		r.mu.Unlock()
		log.Printf("runtime: %s session unavailable: %v", r.cfg.AgentID, err)
		return
	}

	sendCtx, cancelSend := context.WithCancel(ctx)
	defer cancelSend()

	r.mu.Lock()
	r.cancelSend = cancelSend
	r.typing = true
	r.lastErr = nil
	t := r.transcript
	r.mu.Unlock()

	t.AppendUser(p.Text)
	seq := t.AppendPlaceholder()

	start := time.Now()
	streamErr := r.stream(sendCtx, session, p.Text, t, seq)
	observability.RecordStream(r.cfg.AgentID, time.Since(start))

	t.Freeze(seq)

	r.mu.Lock()
	r.typing = false
	r.cancelSend = nil
	if streamErr != nil {
		r.lastErr = streamErr
	}
	r.mu.Unlock()

	if streamErr != nil {
		observability.RecordStreamError(r.cfg.AgentID)
		log.Printf("runtime: %s stream: %v", r.cfg.AgentID, streamErr)
	}
}

// stream pulls fragments until the stream ends. Fragments received
// before an error stay in the transcript.
func (r *Runtime) stream(ctx context.Context, session chat.Session, text string, t *transcript.Transcript, seq uint64) error {
	streamH, err := session.Send(ctx, text)
	if err != nil {
		return err
	}
	defer func() { _ = streamH.Close() }()

	for {
		frag, err := streamH.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if frag.Text == "" {
			continue
		}
		t.AppendText(seq, frag.Text)
		observability.RecordFragment(r.cfg.AgentID)
	}
}

// ensureSession returns the live session, opening one when the runtime
// has none or was reconfigured.
func (r *Runtime) ensureSession(ctx context.Context) (chat.Session, error) {
	r.mu.Lock()
	if r.session != nil && !r.stale {
		s := r.session
		r.mu.Unlock()
		return s, nil
	}
	model := r.cfg.Model
	instruction := r.cfg.SystemInstruction
	r.mu.Unlock()

	session, err := r.client.NewSession(ctx, model, instruction)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.session = session
	r.stale = false
	r.mu.Unlock()
	return session, nil
}
