package chat

import (
	"context"
	"errors"
	"io"
	"strings"
)

// chanStream adapts a producer goroutine feeding two channels into the
// Stream interface. The producer must send at most one error, then close
// errCh before fragments (deferred in reverse order), so a consumer that
// observes fragments closed can read the terminal error without racing.
type chanStream struct {
	fragments <-chan string
	errCh     <-chan error
	ctx       context.Context
	cancel    context.CancelFunc
	done      bool
}

func newChanStream(ctx context.Context) (*chanStream, chan<- string, chan<- error) {
	streamCtx, cancel := context.WithCancel(ctx)
	fragments := make(chan string, 16)
	errCh := make(chan error, 1)
	return &chanStream{
		fragments: fragments,
		errCh:     errCh,
		ctx:       streamCtx,
		cancel:    cancel,
	}, fragments, errCh
}

func (s *chanStream) Recv() (*Fragment, error) {
	if s.done {
		return nil, io.EOF
	}

	// Fragments drain to exhaustion before the terminal error is
	// consulted, so output emitted before a failure is never lost. The
	// producer closes errCh before fragments, which makes the errCh
	// read after fragments closes race-free.
	select {
	case <-s.ctx.Done():
		s.done = true
		return nil, s.ctx.Err()
	case frag, ok := <-s.fragments:
		if !ok {
			s.done = true
			if err, ok := <-s.errCh; ok && err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		return &Fragment{Text: frag}, nil
	}
}

func (s *chanStream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	s.cancel()
	return nil
}

// Collect drains a stream, concatenating fragments in arrival order.
// On failure it returns the text accumulated so far together with the
// error; partial output is never discarded.
func Collect(s Stream) (string, error) {
	var b strings.Builder
	for {
		frag, err := s.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return b.String(), nil
			}
			return b.String(), err
		}
		b.WriteString(frag.Text)
	}
}
