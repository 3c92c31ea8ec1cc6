package connectivity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/omnichat-dev/omnichat/pkg/catalog"
)

type stubProber struct {
	result bool
	calls  int
}

func (p *stubProber) Probe(ctx context.Context) bool {
	p.calls++
	return p.result
}

type failingStore struct{}

func (failingStore) Save(ctx context.Context, statuses map[string]Status) error { return nil }
func (failingStore) Load(ctx context.Context) (map[string]Status, error) {
	return nil, errors.New("record is garbage")
}
func (failingStore) Close() error { return nil }

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(
		catalog.Descriptor{ID: "gemini-flash", Name: "Gemini Flash", Kind: catalog.KindAPIBacked, Active: true, Model: "gemini-2.5-flash"},
		catalog.Descriptor{ID: "gemini-pro", Name: "Gemini Pro", Kind: catalog.KindAPIBacked, Active: true, Model: "gemini-3-pro-preview"},
		catalog.Descriptor{ID: "deepseek-web", Name: "DeepSeek", Kind: catalog.KindWebEmbedded, Active: true, URL: "https://chat.deepseek.com"},
	)
	if err != nil {
		t.Fatal(err)
	}
	return cat
}

func newTestRegistry(t *testing.T, prober Prober) *Registry {
	t.Helper()
	return NewRegistry(NewMemoryStore(), testCatalog(t), prober,
		WithProbeLimit(rate.NewLimiter(rate.Inf, 1)))
}

func TestVerifyFansResultToAllAPIAgents(t *testing.T) {
	prober := &stubProber{result: true}
	reg := newTestRegistry(t, prober)
	ctx := context.Background()

	reg.Verify(ctx, "gemini-flash")

	if prober.calls != 1 {
		t.Fatalf("probe ran %d times, want 1 shared probe", prober.calls)
	}
	for _, id := range []string{"gemini-flash", "gemini-pro"} {
		if got := reg.Status(id); got != StatusConnected {
			t.Errorf("Status(%s) = %s, want connected", id, got)
		}
	}
	if got := reg.Status("deepseek-web"); got != StatusDisconnected {
		t.Errorf("Status(deepseek-web) = %s, want untouched default", got)
	}
}

func TestVerifyFailedProbeDisconnectsAllAPIAgents(t *testing.T) {
	reg := newTestRegistry(t, &stubProber{result: false})
	ctx := context.Background()

	if err := reg.SetStatus(ctx, "gemini-pro", StatusConnected); err != nil {
		t.Fatal(err)
	}

	reg.Verify(ctx, "gemini-flash")

	for _, id := range []string{"gemini-flash", "gemini-pro"} {
		if got := reg.Status(id); got != StatusDisconnected {
			t.Errorf("Status(%s) = %s, want disconnected", id, got)
		}
	}
}

func TestVerifyWebAgentIsNoOp(t *testing.T) {
	prober := &stubProber{result: true}
	reg := newTestRegistry(t, prober)

	reg.Verify(context.Background(), "deepseek-web")
	reg.Verify(context.Background(), "no-such-agent")

	if prober.calls != 0 {
		t.Errorf("probe ran %d times for non-API agents, want 0", prober.calls)
	}
}

type gatedProber struct {
	gate  chan struct{}
	mu    sync.Mutex
	calls int
}

func (p *gatedProber) Probe(ctx context.Context) bool {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	<-p.gate
	return true
}

func (p *gatedProber) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestConcurrentVerifiesShareOneProbe(t *testing.T) {
	prober := &gatedProber{gate: make(chan struct{})}
	reg := newTestRegistry(t, prober)
	ctx := context.Background()

	first := make(chan struct{})
	go func() {
		defer close(first)
		reg.Verify(ctx, "gemini-flash")
	}()

	deadline := time.Now().Add(time.Second)
	for reg.Status("gemini-flash") != StatusChecking {
		if time.Now().After(deadline) {
			t.Fatal("first verify never reached checking")
		}
		time.Sleep(time.Millisecond)
	}

	// The second verify arrives mid-probe and must wait for the shared
	// result rather than probing again or returning before resolution.
	second := make(chan struct{})
	go func() {
		defer close(second)
		reg.Verify(ctx, "gemini-pro")
	}()

	close(prober.gate)
	<-first
	<-second

	if got := prober.Calls(); got != 1 {
		t.Errorf("probe ran %d times for overlapping verifies, want 1", got)
	}
	for _, id := range []string{"gemini-flash", "gemini-pro"} {
		if got := reg.Status(id); got != StatusConnected {
			t.Errorf("Status(%s) = %s, want connected after both verifies returned", id, got)
		}
	}
}

func TestVerifyRateLimited(t *testing.T) {
	prober := &stubProber{result: true}
	reg := NewRegistry(NewMemoryStore(), testCatalog(t), prober,
		WithProbeLimit(rate.NewLimiter(rate.Every(time.Hour), 1)))
	ctx := context.Background()

	reg.Verify(ctx, "gemini-flash")
	reg.Verify(ctx, "gemini-flash")

	if prober.calls != 1 {
		t.Errorf("probe ran %d times inside the limit window, want 1", prober.calls)
	}
}

func TestVerifyPersistsStatuses(t *testing.T) {
	store := NewMemoryStore()
	reg := NewRegistry(store, testCatalog(t), &stubProber{result: true},
		WithProbeLimit(rate.NewLimiter(rate.Inf, 1)))
	ctx := context.Background()

	reg.Verify(ctx, "gemini-flash")

	persisted, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if persisted["gemini-flash"] != StatusConnected || persisted["gemini-pro"] != StatusConnected {
		t.Errorf("persisted = %v, want both API agents connected", persisted)
	}
}

func TestLoadRecoversFromCorruptStore(t *testing.T) {
	reg := NewRegistry(failingStore{}, testCatalog(t), &stubProber{})

	reg.Load(context.Background())

	if got := reg.Status("gemini-flash"); got != StatusDisconnected {
		t.Errorf("Status after failed load = %s, want disconnected default", got)
	}
	if n := len(reg.Statuses()); n != 0 {
		t.Errorf("Statuses() has %d entries after failed load, want 0", n)
	}
}

func TestLoadDropsInvalidStatuses(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Save(ctx, map[string]Status{
		"gemini-flash": StatusConnected,
		"gemini-pro":   Status("half-open"),
	}); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry(store, testCatalog(t), &stubProber{})
	reg.Load(ctx)

	if got := reg.Status("gemini-flash"); got != StatusConnected {
		t.Errorf("Status(gemini-flash) = %s, want connected", got)
	}
	if got := reg.Status("gemini-pro"); got != StatusDisconnected {
		t.Errorf("Status(gemini-pro) = %s, invalid value should fall back to default", got)
	}
}

func TestSetStatusValidatesAndPersists(t *testing.T) {
	store := NewMemoryStore()
	reg := NewRegistry(store, testCatalog(t), &stubProber{})
	ctx := context.Background()

	if err := reg.SetStatus(ctx, "kimi-web", Status("bogus")); err == nil {
		t.Error("SetStatus() should reject unknown status values")
	}

	if err := reg.SetStatus(ctx, "deepseek-web", StatusConnected); err != nil {
		t.Fatal(err)
	}
	persisted, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if persisted["deepseek-web"] != StatusConnected {
		t.Errorf("persisted = %v, want deepseek-web connected", persisted)
	}
}
