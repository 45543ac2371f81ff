package memory

import (
	"context"
	"errors"
	"testing"

	"smartledger/internal/categories"
)

func TestBackendLoadStore(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	if _, found, err := b.Load(ctx, "missing"); err != nil || found {
		t.Fatalf("Load(missing) = found=%v err=%v, want absent", found, err)
	}

	if err := b.Store(ctx, "k", "v1"); err != nil {
		t.Fatal(err)
	}
	if v, found, _ := b.Load(ctx, "k"); !found || v != "v1" {
		t.Errorf("Load(k) = %q found=%v, want v1", v, found)
	}

	// Overwrite is a plain replace.
	if err := b.Store(ctx, "k", "v2"); err != nil {
		t.Fatal(err)
	}
	if v, _, _ := b.Load(ctx, "k"); v != "v2" {
		t.Errorf("Load(k) after overwrite = %q, want v2", v)
	}

	b.Delete("k")
	if _, found, _ := b.Load(ctx, "k"); found {
		t.Error("Delete did not remove the key")
	}
}

func TestBackendFailNextStore(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	want := errors.New("quota exceeded")
	b.FailNextStore(want)

	if err := b.Store(ctx, "k", "v"); !errors.Is(err, want) {
		t.Fatalf("Store = %v, want injected failure", err)
	}
	// The failure is one-shot.
	if err := b.Store(ctx, "k", "v"); err != nil {
		t.Fatalf("second Store = %v, want nil", err)
	}
}

func TestBusDeliversToAllHandlers(t *testing.T) {
	bus := NewBus()

	var got []string
	bus.Register(func(_ context.Context, c categories.Change) {
		got = append(got, "a:"+c.Origin)
	})
	bus.Register(func(_ context.Context, c categories.Change) {
		got = append(got, "b:"+c.Origin)
	})

	err := bus.Publish(context.Background(), categories.Change{Key: "k", Origin: "tab1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "a:tab1" || got[1] != "b:tab1" {
		t.Errorf("delivery = %v, want both handlers in registration order", got)
	}
}
