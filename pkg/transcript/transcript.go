// Package transcript holds the per-agent conversation log.
// A Transcript is owned by exactly one agent runtime and is never shared
// across agents. Turns are identified by a logical monotonic clock value
// that doubles as the ordering key; wall-clock time is not used so two
// turns can never collide.
package transcript

import "sync"

// Role identifies who produced a turn.
type Role string

const (
	// RoleUser marks a turn typed by the user.
	RoleUser Role = "user"
	// RoleAgent marks a turn produced by the remote agent.
	RoleAgent Role = "agent"
)

// Turn is a single message in a transcript.
// User turns are immutable once appended. Agent turns start empty and
// grow by appended fragments until the stream completes, then freeze.
type Turn struct {
	// Role is who produced this turn.
	Role Role `json:"role"`
	// Text is the turn content. For agent turns it accumulates streamed
	// fragments in arrival order.
	Text string `json:"text"`
	// Seq is the logical timestamp. It is unique within one transcript
	// and strictly increasing, and serves as the turn identity.
	Seq uint64 `json:"seq"`
}

// Transcript is an append-only ordered sequence of turns.
// The only non-append mutation is a full Reset.
// Transcript is safe for concurrent use.
type Transcript struct {
	mu     sync.RWMutex
	clock  uint64
	turns  []Turn
	frozen map[uint64]bool
}

// New creates an empty transcript.
func New() *Transcript {
	return &Transcript{
		frozen: make(map[uint64]bool),
	}
}

// AppendUser appends an immutable user turn and returns its sequence number.
func (t *Transcript) AppendUser(text string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.clock++
	t.turns = append(t.turns, Turn{Role: RoleUser, Text: text, Seq: t.clock})
	t.frozen[t.clock] = true
	return t.clock
}

// AppendPlaceholder appends an empty agent turn and returns its sequence
// number. The caller grows it with AppendText as fragments arrive.
func (t *Transcript) AppendPlaceholder() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.clock++
	t.turns = append(t.turns, Turn{Role: RoleAgent, Seq: t.clock})
	return t.clock
}

// AppendText appends a fragment to the agent turn identified by seq.
// Returns false if the turn does not exist, is a user turn, or is frozen.
func (t *Transcript) AppendText(seq uint64, fragment string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen[seq] {
		return false
	}
	for i := range t.turns {
		if t.turns[i].Seq == seq {
			if t.turns[i].Role != RoleAgent {
				return false
			}
			t.turns[i].Text += fragment
			return true
		}
	}
	return false
}

// Freeze marks an agent turn as complete. Further AppendText calls for
// that turn are rejected. Partial text already accumulated is kept.
func (t *Transcript) Freeze(seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen[seq] = true
}

// Reset clears the transcript to empty. The logical clock keeps counting
// so sequence numbers stay unique across resets.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = nil
	t.frozen = make(map[uint64]bool)
}

// Turns returns a snapshot copy of all turns in order.
func (t *Transcript) Turns() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// Last returns the most recent turn, if any.
func (t *Transcript) Last() (Turn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}
