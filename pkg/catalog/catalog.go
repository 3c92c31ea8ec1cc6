// Package catalog defines the static agent configuration: which agents
// exist, how each is reached, and which are currently visible. The
// catalog is created at process start and passed down explicitly; the
// activation flag is the only field that changes at runtime.
package catalog

import (
	"fmt"
	"sync"
)

// Kind distinguishes how an agent is reached.
type Kind string

const (
	// KindAPIBacked marks an agent driven through a conversational API.
	KindAPIBacked Kind = "api"
	// KindWebEmbedded marks an agent only reachable as an embedded
	// third-party page. Prompts degrade to a clipboard copy.
	KindWebEmbedded Kind = "web"
)

// Descriptor is the static configuration of one agent.
type Descriptor struct {
	// ID is the unique, stable agent identifier.
	ID string `yaml:"id"`
	// Name is the display name.
	Name string `yaml:"name"`
	// Kind selects api or web.
	Kind Kind `yaml:"kind"`
	// Active is whether the agent is currently visible. The only field
	// mutated at runtime.
	Active bool `yaml:"active"`

	// Model is the model identifier (api agents).
	Model string `yaml:"model,omitempty"`
	// SystemInstruction is an optional system prompt (api agents).
	SystemInstruction string `yaml:"system_instruction,omitempty"`

	// URL is the embedded page target (web agents).
	URL string `yaml:"url,omitempty"`

	// Color is a display hint for the agent's pane.
	Color string `yaml:"color,omitempty"`
}

// Validate checks that a descriptor is internally consistent.
func (d Descriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("agent id is required")
	}
	switch d.Kind {
	case KindAPIBacked:
		if d.Model == "" {
			return fmt.Errorf("agent %s: api agents require a model", d.ID)
		}
	case KindWebEmbedded:
		if d.URL == "" {
			return fmt.Errorf("agent %s: web agents require a url", d.ID)
		}
	default:
		return fmt.Errorf("agent %s: unknown kind %q", d.ID, d.Kind)
	}
	return nil
}

// Catalog holds the agent descriptors in declaration order.
// Catalog is safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	order  []string
	agents map[string]*Descriptor
}

// New creates a catalog from descriptors. IDs must be unique.
func New(descriptors ...Descriptor) (*Catalog, error) {
	c := &Catalog{
		agents: make(map[string]*Descriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, exists := c.agents[d.ID]; exists {
			return nil, fmt.Errorf("duplicate agent id %q", d.ID)
		}
		dd := d
		c.agents[d.ID] = &dd
		c.order = append(c.order, d.ID)
	}
	return c, nil
}

// Get returns the descriptor for an agent id.
func (c *Catalog) Get(id string) (Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.agents[id]
	if !ok {
		return Descriptor{}, false
	}
	return *d, true
}

// List returns all descriptors in declaration order.
func (c *Catalog) List() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Descriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.agents[id])
	}
	return out
}

// Active returns the currently visible descriptors in declaration order.
func (c *Catalog) Active() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Descriptor
	for _, id := range c.order {
		if c.agents[id].Active {
			out = append(out, *c.agents[id])
		}
	}
	return out
}

// APIBacked returns every api-kind descriptor, active or not.
func (c *Catalog) APIBacked() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Descriptor
	for _, id := range c.order {
		if c.agents[id].Kind == KindAPIBacked {
			out = append(out, *c.agents[id])
		}
	}
	return out
}

// SetActive flips an agent's visibility.
func (c *Catalog) SetActive(id string, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.agents[id]
	if !ok {
		return fmt.Errorf("agent %s not found", id)
	}
	d.Active = active
	return nil
}
