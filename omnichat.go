// Package omnichat wires the agent catalog, fan-out coordinator,
// per-agent runtimes, passive relays, and the connectivity registry
// into one dashboard core. A single prompt sent through the Controller
// is broadcast once to every active agent: API-backed agents stream a
// reply into their own transcript, web-embedded agents mirror the
// prompt for manual relay.
package omnichat

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/omnichat-dev/omnichat/internal/observability"
	"github.com/omnichat-dev/omnichat/pkg/catalog"
	"github.com/omnichat-dev/omnichat/pkg/chat"
	"github.com/omnichat-dev/omnichat/pkg/connectivity"
	"github.com/omnichat-dev/omnichat/pkg/fanout"
	"github.com/omnichat-dev/omnichat/pkg/relay"
	"github.com/omnichat-dev/omnichat/pkg/runtime"
)

// Config assembles a Controller.
type Config struct {
	// Catalog lists the available agents. Defaults to catalog.Default().
	Catalog *catalog.Catalog

	// Client opens chat sessions and runs the shared credential probe.
	Client chat.Client

	// Store persists connectivity statuses. Defaults to an in-memory
	// store.
	Store connectivity.Store

	// Clipboard backs the passive relays. Defaults to the system
	// clipboard.
	Clipboard relay.Clipboard
}

// Controller is the dashboard core. Create with New, call Start once,
// and Close when done.
type Controller struct {
	catalog     *catalog.Catalog
	client      chat.Client
	coordinator *fanout.Coordinator
	registry    *connectivity.Registry
	clipboard   relay.Clipboard

	mu       sync.Mutex
	runtimes map[string]*runtime.Runtime
	relays   map[string]*relay.Relay
	ctx      context.Context
	started  bool
}

// New builds a Controller from cfg. cfg.Client is required.
func New(cfg Config) (*Controller, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("omnichat: Config.Client is required")
	}
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	store := cfg.Store
	if store == nil {
		store = connectivity.NewMemoryStore()
	}
	clip := cfg.Clipboard
	if clip == nil {
		clip = relay.SystemClipboard{}
	}

	observability.InitMetrics()

	client := chat.Instrument(cfg.Client, "primary")

	return &Controller{
		catalog:     cat,
		client:      client,
		coordinator: fanout.NewCoordinator(),
		registry:    connectivity.NewRegistry(store, cat, client),
		clipboard:   clip,
		runtimes:    make(map[string]*runtime.Runtime),
		relays:      make(map[string]*relay.Relay),
	}, nil
}

// Start restores persisted connectivity statuses and mounts every
// active agent.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("omnichat: controller already started")
	}
	c.started = true
	c.ctx = ctx
	c.mu.Unlock()

	c.registry.Load(ctx)

	for _, desc := range c.catalog.Active() {
		if err := c.mount(ctx, desc); err != nil {
			return err
		}
	}
	return nil
}

// Send broadcasts one prompt to every active agent and returns the
// stamped prompt. Late-activated agents never receive it. Every
// non-empty send also writes the prompt to the clipboard, so it is
// ready to paste the moment the broadcast lands; clipboard failures
// are swallowed.
func (c *Controller) Send(text string) fanout.Prompt {
	if text != "" {
		if err := c.clipboard.WriteText(text); err != nil {
			log.Printf("omnichat: clipboard write on send: %v", err)
		}
	}

	return c.coordinator.Broadcast(text)
}

// ToggleAgent activates or deactivates an agent. Deactivation detaches
// it from the broadcast and tears its runtime down; reactivation mounts
// a fresh runtime with an empty transcript.
func (c *Controller) ToggleAgent(agentID string, active bool) error {
	desc, ok := c.catalog.Get(agentID)
	if !ok {
		return fmt.Errorf("omnichat: unknown agent %s", agentID)
	}
	if desc.Active == active {
		return nil
	}
	if err := c.catalog.SetActive(agentID, active); err != nil {
		return err
	}

	if !active {
		c.unmount(agentID)
		return nil
	}

	c.mu.Lock()
	ctx := c.ctx
	started := c.started
	c.mu.Unlock()
	if !started {
		// Mounted on Start instead.
		return nil
	}
	return c.mount(ctx, desc)
}

// Verify runs the shared connectivity probe triggered from agentID.
func (c *Controller) Verify(ctx context.Context, agentID string) {
	c.registry.Verify(ctx, agentID)
}

// SetStatus manually asserts one agent's connectivity status.
func (c *Controller) SetStatus(ctx context.Context, agentID string, s connectivity.Status) error {
	return c.registry.SetStatus(ctx, agentID, s)
}

// Status returns one agent's connectivity status.
func (c *Controller) Status(agentID string) connectivity.Status {
	return c.registry.Status(agentID)
}

// Runtime returns the live runtime for an API-backed agent, if mounted.
func (c *Controller) Runtime(agentID string) (*runtime.Runtime, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.runtimes[agentID]
	return r, ok
}

// Relay returns the passive relay for a web-embedded agent, if mounted.
func (c *Controller) Relay(agentID string) (*relay.Relay, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.relays[agentID]
	return r, ok
}

// Agents returns the catalog descriptors in declaration order.
func (c *Controller) Agents() []catalog.Descriptor {
	return c.catalog.List()
}

// Close tears down every mounted agent, the registry, and the client.
func (c *Controller) Close() error {
	c.mu.Lock()
	runtimes := make([]*runtime.Runtime, 0, len(c.runtimes))
	for id, r := range c.runtimes {
		c.coordinator.Detach(id)
		runtimes = append(runtimes, r)
		delete(c.runtimes, id)
	}
	for id, rl := range c.relays {
		c.coordinator.Detach(id)
		rl.Stop()
		delete(c.relays, id)
	}
	c.mu.Unlock()

	var g errgroup.Group
	for _, r := range runtimes {
		g.Go(func() error {
			r.Stop()
			return nil
		})
	}
	_ = g.Wait()

	if err := c.registry.Close(); err != nil {
		return err
	}
	return c.client.Close()
}

func (c *Controller) mount(ctx context.Context, desc catalog.Descriptor) error {
	switch desc.Kind {
	case catalog.KindAPIBacked:
		r := runtime.New(runtime.Config{
			AgentID:           desc.ID,
			Model:             desc.Model,
			SystemInstruction: desc.SystemInstruction,
		}, c.client)
		r.Start(ctx)
		if err := c.coordinator.Attach(desc.ID, r); err != nil {
			r.Stop()
			return err
		}
		c.mu.Lock()
		c.runtimes[desc.ID] = r
		c.mu.Unlock()
	case catalog.KindWebEmbedded:
		rl := relay.New(desc.ID, relay.WithClipboard(c.clipboard))
		if err := c.coordinator.Attach(desc.ID, rl); err != nil {
			rl.Stop()
			return err
		}
		c.mu.Lock()
		c.relays[desc.ID] = rl
		c.mu.Unlock()
	default:
		return fmt.Errorf("omnichat: agent %s has unknown kind %q", desc.ID, desc.Kind)
	}
	return nil
}

func (c *Controller) unmount(agentID string) {
	c.coordinator.Detach(agentID)

	c.mu.Lock()
	r := c.runtimes[agentID]
	delete(c.runtimes, agentID)
	rl := c.relays[agentID]
	delete(c.relays, agentID)
	c.mu.Unlock()

	if r != nil {
		r.Stop()
	}
	if rl != nil {
		rl.Stop()
	}
}
