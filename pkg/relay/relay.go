// Package relay mirrors broadcast prompts for web-embedded agents.
// Those agents have no API session; the relay holds the latest prompt
// so the user can hand-copy it into the embedded page.
package relay

import (
	"log"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"github.com/omnichat-dev/omnichat/internal/observability"
	"github.com/omnichat-dev/omnichat/pkg/fanout"
)

// DefaultCueDuration is how long the copied cue stays set after a
// successful clipboard write.
const DefaultCueDuration = 2 * time.Second

// Clipboard writes text to the system clipboard.
type Clipboard interface {
	WriteText(text string) error
}

// SystemClipboard uses the OS clipboard.
type SystemClipboard struct{}

// WriteText implements Clipboard.
func (SystemClipboard) WriteText(text string) error {
	return clipboard.WriteAll(text)
}

// Relay is the passive receiver for one web-embedded agent. It keeps
// the most recent prompt and exposes a short-lived cue after a copy.
type Relay struct {
	agentID string
	clip    Clipboard
	cueFor  time.Duration

	mu        sync.Mutex
	prompt    fanout.Prompt
	hasPrompt bool
	copied    bool
	cueTimer  *time.Timer
}

// Option configures a Relay.
type Option func(*Relay)

// WithClipboard replaces the system clipboard.
func WithClipboard(c Clipboard) Option {
	return func(r *Relay) { r.clip = c }
}

// WithCueDuration overrides how long the copied cue lasts.
func WithCueDuration(d time.Duration) Option {
	return func(r *Relay) { r.cueFor = d }
}

// New creates a relay for the given agent.
func New(agentID string, opts ...Option) *Relay {
	r := &Relay{
		agentID: agentID,
		clip:    SystemClipboard{},
		cueFor:  DefaultCueDuration,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Deliver implements fanout.Receiver. Accepting a fresh prompt copies
// it to the clipboard and arms the copied cue; prompts older than the
// one already held are ignored.
func (r *Relay) Deliver(p fanout.Prompt) {
	r.mu.Lock()
	if r.hasPrompt && p.IssuedAt <= r.prompt.IssuedAt {
		r.mu.Unlock()
		return
	}
	r.prompt = p
	r.hasPrompt = true
	r.mu.Unlock()

	r.copy(p.Text)
}

// Prompt returns the latest mirrored prompt, if any.
func (r *Relay) Prompt() (fanout.Prompt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prompt, r.hasPrompt
}

// Copy re-copies the held prompt to the clipboard and re-arms the cue.
func (r *Relay) Copy() {
	r.mu.Lock()
	if !r.hasPrompt {
		r.mu.Unlock()
		return
	}
	text := r.prompt.Text
	r.mu.Unlock()

	r.copy(text)
}

// copy writes text to the clipboard and arms the auto-clearing cue.
// Clipboard failures are logged and swallowed; the cue is only set on
// success, and a failed write clears any cue left from an earlier
// prompt.
func (r *Relay) copy(text string) {
	err := r.clip.WriteText(text)
	observability.RecordClipboardCopy(err)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		log.Printf("relay: clipboard write for %s failed: %v", r.agentID, err)
		r.clearCueLocked()
		return
	}

	r.copied = true
	if r.cueTimer != nil {
		r.cueTimer.Stop()
	}
	r.cueTimer = time.AfterFunc(r.cueFor, func() {
		r.mu.Lock()
		r.copied = false
		r.mu.Unlock()
	})
}

// Copied reports whether the copied cue is currently set.
func (r *Relay) Copied() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copied
}

// Stop cancels any armed cue timer.
func (r *Relay) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearCueLocked()
}

func (r *Relay) clearCueLocked() {
	r.copied = false
	if r.cueTimer != nil {
		r.cueTimer.Stop()
		r.cueTimer = nil
	}
}
