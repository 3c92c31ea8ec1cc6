// Package fanout distributes one outbound prompt to every currently
// attached receiver exactly once. Prompts are stamped with a logical
// monotonic counter; receivers attached after a broadcast never see it,
// and a receiver uses the stamp to reject anything stale or replayed.
package fanout

import (
	"fmt"
	"sync"

	"github.com/omnichat-dev/omnichat/internal/observability"
)

// Prompt is an immutable outbound prompt value.
type Prompt struct {
	// Text is the prompt content.
	Text string
	// IssuedAt is the logical issue stamp, strictly increasing across
	// successive broadcasts. It doubles as the prompt's identity.
	IssuedAt uint64
}

// Receiver consumes broadcast prompts. Deliver must not block; receivers
// that do slow work queue internally.
type Receiver interface {
	Deliver(Prompt)
}

// Coordinator stamps and fans out prompts.
// Coordinator is safe for concurrent use.
type Coordinator struct {
	mu        sync.Mutex
	counter   uint64
	last      Prompt
	issued    bool
	receivers map[string]Receiver
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		receivers: make(map[string]Receiver),
	}
}

// Attach registers a receiver under an agent id. Attaching does not
// replay past prompts; a newly attached receiver waits for the next
// broadcast.
func (c *Coordinator) Attach(id string, r Receiver) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.receivers[id]; exists {
		return fmt.Errorf("receiver %s already attached", id)
	}
	c.receivers[id] = r
	return nil
}

// Detach removes a receiver. Unknown ids are a no-op.
func (c *Coordinator) Detach(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.receivers, id)
}

// Attached reports whether a receiver is registered under id.
func (c *Coordinator) Attached(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.receivers[id]
	return ok
}

// Broadcast stamps the text with the next counter value and delivers it
// to every receiver attached at this moment, exactly once each.
// Delivery order across receivers is unspecified.
func (c *Coordinator) Broadcast(text string) Prompt {
	c.mu.Lock()
	c.counter++
	p := Prompt{Text: text, IssuedAt: c.counter}
	c.last = p
	c.issued = true

	targets := make(map[string]Receiver, len(c.receivers))
	for id, r := range c.receivers {
		targets[id] = r
	}
	c.mu.Unlock()

	observability.RecordBroadcast()
	for id, r := range targets {
		r.Deliver(p)
		observability.RecordDelivery(id)
	}
	return p
}

// Last returns the most recently broadcast prompt, if any.
func (c *Coordinator) Last() (Prompt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.issued
}
