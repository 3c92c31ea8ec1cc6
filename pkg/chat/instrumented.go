package chat

import (
	"context"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/omnichat-dev/omnichat/internal/observability"
)

// InstrumentedClient wraps a Client with OpenTelemetry spans around
// session creation, sends, and probes.
type InstrumentedClient struct {
	inner Client
	name  string
}

// Instrument wraps a client with tracing. Already-wrapped clients are
// returned unchanged.
func Instrument(c Client, name string) Client {
	if _, ok := c.(*InstrumentedClient); ok {
		return c
	}
	return &InstrumentedClient{inner: c, name: name}
}

// NewSession implements Client.
func (c *InstrumentedClient) NewSession(ctx context.Context, model, systemInstruction string) (Session, error) {
	ctx, span := observability.StartSpan(ctx, "chat."+c.name+".session.create",
		trace.WithAttributes(
			attribute.String("chat.provider", c.name),
			attribute.String("chat.model", model),
			attribute.Bool("chat.has_system_instruction", systemInstruction != ""),
		),
	)
	defer span.End()

	sess, err := c.inner.NewSession(ctx, model, systemInstruction)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("chat.session_id", sess.ID()))
	return &instrumentedSession{inner: sess, provider: c.name, model: model}, nil
}

// Probe implements Client.
func (c *InstrumentedClient) Probe(ctx context.Context) bool {
	ctx, span := observability.StartSpan(ctx, "chat."+c.name+".probe",
		trace.WithAttributes(attribute.String("chat.provider", c.name)),
	)
	defer span.End()

	ok := c.inner.Probe(ctx)
	span.SetAttributes(attribute.Bool("chat.probe_ok", ok))
	return ok
}

// Close implements Client.
func (c *InstrumentedClient) Close() error {
	return c.inner.Close()
}

type instrumentedSession struct {
	inner    Session
	provider string
	model    string
}

func (s *instrumentedSession) ID() string { return s.inner.ID() }

func (s *instrumentedSession) Send(ctx context.Context, text string) (Stream, error) {
	ctx, span := observability.StartSpan(ctx, "chat."+s.provider+".send",
		trace.WithAttributes(
			attribute.String("chat.provider", s.provider),
			attribute.String("chat.model", s.model),
			attribute.String("chat.session_id", s.inner.ID()),
			attribute.Int("chat.prompt_chars", len(text)),
		),
	)

	stream, err := s.inner.Send(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.End()
		return nil, err
	}

	return &tracedStream{
		inner: stream,
		span:  span,
		start: time.Now(),
	}, nil
}

// tracedStream records fragment counts and terminal state on the send
// span, ending it when the stream finishes or is closed.
type tracedStream struct {
	inner     Stream
	span      trace.Span
	start     time.Time
	fragments int
	ended     bool
}

func (s *tracedStream) Recv() (*Fragment, error) {
	frag, err := s.inner.Recv()
	if err != nil {
		s.finish(err)
		return nil, err
	}
	s.fragments++
	return frag, nil
}

func (s *tracedStream) Close() error {
	err := s.inner.Close()
	s.finish(nil)
	return err
}

func (s *tracedStream) finish(err error) {
	if s.ended {
		return
	}
	s.ended = true

	s.span.SetAttributes(
		attribute.Int("chat.fragments", s.fragments),
		attribute.Int64("chat.stream_duration_ms", time.Since(s.start).Milliseconds()),
	)
	if err != nil && !errors.Is(err, io.EOF) {
		s.span.RecordError(err)
	}
	s.span.End()
}
