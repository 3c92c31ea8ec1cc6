package chat

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
)

// ScriptedReply describes one canned streaming exchange.
type ScriptedReply struct {
	// Fragments are delivered in order, one per Recv.
	Fragments []string
	// Err, if non-nil, terminates the stream after Fragments in place
	// of the normal end-of-stream.
	Err error
	// Gate, if non-nil, blocks the first Recv until the channel is
	// closed. Used to hold a stream open mid-exchange in tests.
	Gate <-chan struct{}
}

// ScriptedClient is a Client whose sessions replay canned exchanges.
// Replies are consumed client-wide in FIFO order across all sessions.
// The zero probe result is true.
type ScriptedClient struct {
	mu       sync.Mutex
	replies  []ScriptedReply
	next     int
	probeErr bool
	initErr  error
	sent     []string
	probes   int
}

// NewScriptedClient creates a client that will replay the given replies.
func NewScriptedClient(replies ...ScriptedReply) *ScriptedClient {
	return &ScriptedClient{replies: replies}
}

// AddReply queues another canned exchange.
func (c *ScriptedClient) AddReply(r ScriptedReply) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, r)
	return c
}

// FailProbe makes subsequent Probe calls return false.
func (c *ScriptedClient) FailProbe(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probeErr = fail
}

// FailInit makes subsequent NewSession calls fail with a SessionInitError
// wrapping err. Pass nil to clear.
func (c *ScriptedClient) FailInit(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initErr = err
}

// Sent returns every prompt text sent through any session, in order.
func (c *ScriptedClient) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	copy(out, c.sent)
	return out
}

// Probes returns how many times Probe was called.
func (c *ScriptedClient) Probes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.probes
}

// NewSession implements Client.
func (c *ScriptedClient) NewSession(ctx context.Context, model, systemInstruction string) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initErr != nil {
		return nil, &SessionInitError{Provider: "scripted", Model: model, Err: c.initErr}
	}
	return &scriptedSession{id: uuid.New().String(), client: c}, nil
}

// Probe implements Client.
func (c *ScriptedClient) Probe(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes++
	return !c.probeErr
}

// Close implements Client.
func (c *ScriptedClient) Close() error { return nil }

func (c *ScriptedClient) nextReply(text string) ScriptedReply {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sent = append(c.sent, text)
	if c.next < len(c.replies) {
		r := c.replies[c.next]
		c.next++
		return r
	}
	// Default canned exchange.
	return ScriptedReply{Fragments: []string{"scripted ", "reply"}}
}

type scriptedSession struct {
	id     string
	client *ScriptedClient
}

func (s *scriptedSession) ID() string { return s.id }

func (s *scriptedSession) Send(ctx context.Context, text string) (Stream, error) {
	reply := s.client.nextReply(text)
	return &scriptedStream{reply: reply, ctx: ctx}, nil
}

type scriptedStream struct {
	reply  ScriptedReply
	ctx    context.Context
	pos    int
	gated  bool
	closed bool
}

func (s *scriptedStream) Recv() (*Fragment, error) {
	if s.closed {
		return nil, errors.New("stream closed")
	}

	if s.reply.Gate != nil && !s.gated {
		s.gated = true
		select {
		case <-s.reply.Gate:
		case <-s.ctx.Done():
			return nil, s.ctx.Err()
		}
	}

	if s.pos < len(s.reply.Fragments) {
		frag := s.reply.Fragments[s.pos]
		s.pos++
		return &Fragment{Text: frag}, nil
	}

	if s.reply.Err != nil {
		return nil, &StreamError{Provider: "scripted", Err: s.reply.Err}
	}
	return nil, io.EOF
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}
