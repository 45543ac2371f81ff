// Package categories implements the expense-category store: one JSON
// collection under a fixed key in a shared key-value backend, mutated by
// full read-modify-write cycles and propagated to every interested context.
//
// Concurrency policy is last-writer-wins: there is no version check, so two
// contexts writing at the same time silently keep only the later write. That
// is intentional for a single-user ledger and must not be "fixed" here.
package categories

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"smartledger/internal/core"
)

// Store owns the category collection. It is safe for concurrent use within
// one process; cross-process coordination is advisory only (see package doc).
type Store struct {
	backend  Backend
	notifier Notifier
	origin   string

	mu     sync.Mutex
	nextID int
	subs   map[int]func(core.Collection)
}

// Option configures a Store.
type Option func(*Store)

// WithNotifier attaches a cross-context notifier. Without one the store
// still works, it just cannot signal other contexts.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// NewStore creates a store over the given backend. Every store instance gets
// a random origin id used to recognize (and skip) its own change events.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		origin:  newOriginID(),
		subs:    make(map[int]func(core.Collection)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newOriginID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "origin_unknown"
	}
	return hex.EncodeToString(b)
}

// Origin returns this store instance's origin id.
func (s *Store) Origin() string {
	return s.origin
}

// Categories returns the current collection. A missing or undecodable stored
// value bootstraps the defaults: they are written back and returned, and the
// caller never sees an error for either condition.
func (s *Store) Categories(ctx context.Context) core.Collection {
	raw, found, err := s.backend.Load(ctx, core.CategoriesKey)
	if err != nil {
		slog.ErrorContext(ctx, "Category load failed, serving defaults", "error", err)
		return core.DefaultCategories()
	}
	if !found {
		return s.bootstrap(ctx)
	}

	cc, err := core.DecodeCollection(raw)
	if err != nil {
		slog.WarnContext(ctx, "Stored categories undecodable, re-bootstrapping", "error", err)
		return s.bootstrap(ctx)
	}
	return cc
}

func (s *Store) bootstrap(ctx context.Context) core.Collection {
	defaults := core.DefaultCategories()
	raw, err := core.EncodeCollection(defaults)
	if err != nil {
		slog.ErrorContext(ctx, "Encode defaults failed", "error", err)
		return defaults
	}
	if err := s.backend.Store(ctx, core.CategoriesKey, raw); err != nil {
		// Serve the defaults anyway; the next read retries the write.
		slog.ErrorContext(ctx, "Bootstrap write failed", "error", err)
		return defaults
	}
	slog.InfoContext(ctx, "Bootstrapped default categories", "count", len(defaults))
	return defaults
}

// Save validates and persists the full collection, then notifies: local
// subscribers synchronously with the fresh collection, other contexts via
// the notifier (best effort, failures only logged).
func (s *Store) Save(ctx context.Context, cc core.Collection) error {
	if err := cc.Validate(); err != nil {
		return fmt.Errorf("save categories: %w", err)
	}
	raw, err := core.EncodeCollection(cc)
	if err != nil {
		return fmt.Errorf("save categories: %w", err)
	}
	if err := s.backend.Store(ctx, core.CategoriesKey, raw); err != nil {
		slog.ErrorContext(ctx, "Category write failed", "error", err, "count", len(cc))
		return fmt.Errorf("save categories: %w", err)
	}

	s.notifyLocal(ctx, cc)
	s.notifyRemote(ctx)
	return nil
}

// Add appends a new category with spent 0. An empty icon falls back to the
// placeholder icon id; budget must be non-negative.
func (s *Store) Add(ctx context.Context, name, icon string, budget int64) error {
	if icon == "" {
		icon = core.DefaultIcon
	}
	cc := s.Categories(ctx)
	cc = append(cc, core.Category{Name: name, Spent: 0, Budget: budget, Icon: icon})
	return s.Save(ctx, cc)
}

// Delete removes the category at index. Out-of-range indices leave the
// collection untouched and report core.ErrIndexOutOfRange.
func (s *Store) Delete(ctx context.Context, index int) error {
	cc := s.Categories(ctx)
	if index < 0 || index >= len(cc) {
		slog.DebugContext(ctx, "Delete ignored, index out of range", "index", index, "length", len(cc))
		return core.ErrIndexOutOfRange
	}
	cc = append(cc[:index], cc[index+1:]...)
	return s.Save(ctx, cc)
}

// Rename changes only the name of the category at index.
func (s *Store) Rename(ctx context.Context, index int, newName string) error {
	return s.mutate(ctx, index, func(c *core.Category) {
		c.Name = newName
	})
}

// SetBudget replaces the budget ceiling of the category at index.
func (s *Store) SetBudget(ctx context.Context, index int, budget int64) error {
	return s.mutate(ctx, index, func(c *core.Category) {
		c.Budget = budget
	})
}

// SetSpent replaces the tracked spend of the category at index.
func (s *Store) SetSpent(ctx context.Context, index int, spent int64) error {
	return s.mutate(ctx, index, func(c *core.Category) {
		c.Spent = spent
	})
}

func (s *Store) mutate(ctx context.Context, index int, fn func(*core.Category)) error {
	cc := s.Categories(ctx)
	if index < 0 || index >= len(cc) {
		slog.DebugContext(ctx, "Mutation ignored, index out of range", "index", index, "length", len(cc))
		return core.ErrIndexOutOfRange
	}
	fn(&cc[index])
	return s.Save(ctx, cc)
}

// Reset overwrites the collection with the bootstrap defaults and returns
// the persisted defaults.
func (s *Store) Reset(ctx context.Context) (core.Collection, error) {
	defaults := core.DefaultCategories()
	if err := s.Save(ctx, defaults); err != nil {
		return nil, err
	}
	return defaults, nil
}

// Subscribe registers a callback invoked with the post-mutation collection
// after every successful write by this store, and after every observed write
// by another context. The returned function unregisters the callback.
func (s *Store) Subscribe(fn func(core.Collection)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// HandleRemoteChange processes a change event observed from another context.
// The payload is not trusted: the collection is re-read from the backend
// before fan-out. Events originated by this store are skipped, mirroring the
// platform behavior where a storage event never fires in the writing context.
func (s *Store) HandleRemoteChange(ctx context.Context, change Change) {
	if change.Key != core.CategoriesKey {
		return
	}
	if change.Origin == s.origin {
		return
	}
	cc := s.Categories(ctx)
	slog.DebugContext(ctx, "Applying remote category change", "origin", change.Origin, "count", len(cc))
	s.notifyLocal(ctx, cc)
}

func (s *Store) notifyLocal(ctx context.Context, cc core.Collection) {
	s.mu.Lock()
	callbacks := make([]func(core.Collection), 0, len(s.subs))
	for _, fn := range s.subs {
		callbacks = append(callbacks, fn)
	}
	s.mu.Unlock()

	for _, fn := range callbacks {
		// Each subscriber gets its own copy and cannot break delivery to
		// the others.
		invokeIsolated(ctx, fn, cc.Clone())
	}
}

func invokeIsolated(ctx context.Context, fn func(core.Collection), cc core.Collection) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Category subscriber panicked", "panic", r)
		}
	}()
	fn(cc)
}

func (s *Store) notifyRemote(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	change := Change{
		Event:  core.CategoriesChangedEvent,
		Key:    core.CategoriesKey,
		Origin: s.origin,
	}
	if err := s.notifier.Publish(ctx, change); err != nil {
		slog.WarnContext(ctx, "Category change publish failed", "error", err)
	}
}
