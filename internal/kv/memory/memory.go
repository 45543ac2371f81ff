// Package memory provides the in-process key-value backend and change bus.
// It is the default backend for local development and the test double for
// everything built on the categories ports.
package memory

import (
	"context"
	"sync"

	"smartledger/internal/categories"
)

// Backend is a mutex-guarded map satisfying categories.Backend.
type Backend struct {
	mu     sync.Mutex
	values map[string]string

	// failNext makes the next Store call fail; used by tests to exercise
	// write-failure degradation.
	failNext error
}

func NewBackend() *Backend {
	return &Backend{values: make(map[string]string)}
}

func (b *Backend) Load(_ context.Context, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[key]
	return v, ok, nil
}

func (b *Backend) Store(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNext != nil {
		err := b.failNext
		b.failNext = nil
		return err
	}
	b.values[key] = value
	return nil
}

// FailNextStore makes the next Store call return err, once.
func (b *Backend) FailNextStore(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = err
}

// Delete removes a key outright, simulating cleared storage.
func (b *Backend) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
}

// Raw returns the stored value without going through a store, for
// inspecting persisted state in tests.
func (b *Backend) Raw(key string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[key]
	return v, ok
}

// Bus is a synchronous in-process notifier: every published change is
// delivered to all registered handlers before Publish returns. Wiring two
// stores over one Backend and one Bus simulates two browser contexts
// sharing the same origin storage.
type Bus struct {
	mu       sync.Mutex
	handlers []func(context.Context, categories.Change)
}

func NewBus() *Bus {
	return &Bus{}
}

// Register adds a delivery target for future changes.
func (b *Bus) Register(fn func(context.Context, categories.Change)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, fn)
}

// Publish implements categories.Notifier.
func (b *Bus) Publish(ctx context.Context, change categories.Change) error {
	b.mu.Lock()
	handlers := append(([]func(context.Context, categories.Change))(nil), b.handlers...)
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(ctx, change)
	}
	return nil
}
