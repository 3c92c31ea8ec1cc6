// Package chat wraps remote conversational APIs behind a small client
// port: create a session bound to a model and optional system
// instruction, send a message and consume the reply as a lazy stream of
// text fragments, and probe reachability with a minimal-cost request.
//
// Two real implementations are provided (Gemini via the Google Gen AI
// SDK, and OpenAI-compatible endpoints via go-openai) plus a scripted
// client for tests.
package chat

import (
	"context"
	"fmt"
)

// DefaultProbeModel is the canonical model used for connectivity probes.
// Probes verify that the shared API credential works, not that a specific
// model is reachable, so every client probes against one cheap model.
const DefaultProbeModel = "gemini-2.5-flash"

// Client creates conversational sessions against one remote endpoint and
// credential. A Client may be shared across agent runtimes; the Sessions
// it creates must not be.
type Client interface {
	// NewSession establishes a session bound to the given model and
	// optional system instruction. Returns a *SessionInitError if the
	// endpoint rejects the configuration.
	NewSession(ctx context.Context, model, systemInstruction string) (Session, error)

	// Probe issues a minimal request to verify reachability and
	// credentials without touching any session. Every failure cause
	// (auth, network, quota) collapses to false.
	Probe(ctx context.Context) bool

	// Close releases client resources.
	Close() error
}

// Session is one stateful conversational binding. It accumulates dialogue
// context across sends and is exclusively owned by one agent runtime.
type Session interface {
	// ID returns the session's unique identifier.
	ID() string

	// Send initiates one streaming exchange. Fragments arrive in
	// emission order; concatenating them in that order reconstructs the
	// full reply. The returned stream is finite and not restartable.
	Send(ctx context.Context, text string) (Stream, error)
}

// Stream is a lazy sequence of reply fragments.
// Recv returns io.EOF after the final fragment, or a *StreamError if the
// exchange failed mid-flight. Fragments already received stay valid.
type Stream interface {
	Recv() (*Fragment, error)
	Close() error
}

// Fragment is one incremental chunk of a streamed reply.
type Fragment struct {
	Text string
}

// SessionInitError reports that the remote endpoint rejected session
// configuration, e.g. an unknown model.
type SessionInitError struct {
	Provider string
	Model    string
	Err      error
}

func (e *SessionInitError) Error() string {
	return fmt.Sprintf("%s: create session for model %q: %v", e.Provider, e.Model, e.Err)
}

func (e *SessionInitError) Unwrap() error { return e.Err }

// StreamError reports that a streaming exchange failed mid-flight.
// Partial output already emitted is preserved by the caller.
type StreamError struct {
	Provider string
	Err      error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s: stream failed: %v", e.Provider, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }
