package connectivity

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreSaveAndLoad(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	want := map[string]Status{
		"gemini-flash": StatusConnected,
		"deepseek-web": StatusDisconnected,
	}

	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Load() returned %d entries, want %d", len(got), len(want))
	}
	for id, s := range want {
		if got[id] != s {
			t.Errorf("status[%s] = %s, want %s", id, got[id], s)
		}
	}
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() on missing file error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() = %v, want empty map", got)
	}
}

func TestFileStoreLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := os.WriteFile(filepath.Join(dir, statusFileName), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Load(context.Background()); err == nil {
		t.Error("Load() should report corrupt data; recovery is the registry's job")
	}
}

func TestFileStoreSaveReplacesWholeMap(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if err := store.Save(ctx, map[string]Status{"a": StatusConnected, "b": StatusConnected}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, map[string]Status{"a": StatusDisconnected}); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got["a"] != StatusDisconnected {
		t.Errorf("Load() = %v, want map with only a=disconnected", got)
	}
}

func TestFileStoreClosed(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	if err := store.Save(context.Background(), nil); err != ErrStoreClosed {
		t.Errorf("Save() after close = %v, want ErrStoreClosed", err)
	}
	if _, err := store.Load(context.Background()); err != ErrStoreClosed {
		t.Errorf("Load() after close = %v, want ErrStoreClosed", err)
	}
}
